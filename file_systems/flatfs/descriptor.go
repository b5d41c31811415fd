package flatfs

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
	"github.com/dargueta/labdisk/file_systems/common/diskview"
	"github.com/noxer/bytewriter"
)

// descriptor is the in-memory form of a record in the descriptor table.
type descriptor struct {
	length         int64
	occupiedBlocks []c.PhysicalBlock
}

// isInitialized tells whether the file has ever been written to. A descriptor
// reserved by takeDescriptor has every slot set to the free marker until its
// first block is allocated.
func (desc *descriptor) isInitialized() bool {
	if desc.length > 0 {
		return true
	}
	for _, block := range desc.occupiedBlocks {
		if block != c.FreeDescriptorMarker {
			return true
		}
	}
	return false
}

// allocatedBlocks returns the physical blocks holding the file's data.
func (desc *descriptor) allocatedBlocks() []c.PhysicalBlock {
	if !desc.isInitialized() {
		return nil
	}
	blocks := make([]c.PhysicalBlock, 0, len(desc.occupiedBlocks))
	for _, block := range desc.occupiedBlocks {
		if block != c.UnallocatedBlock {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func (fs *FileSystem) newTakenDescriptor() *descriptor {
	desc := &descriptor{
		occupiedBlocks: make([]c.PhysicalBlock, fs.constraints.MaxBlocksPerFile),
	}
	for i := range desc.occupiedBlocks {
		desc.occupiedBlocks[i] = c.FreeDescriptorMarker
	}
	return desc
}

// encodeDescriptor serializes a descriptor into its on-disk form: the length,
// most significant byte first, followed by one byte per block slot. A nil
// descriptor encodes to an all-zero (free) record.
func (fs *FileSystem) encodeDescriptor(desc *descriptor) []byte {
	record := make([]byte, fs.constraints.DescriptorSize())
	if desc == nil {
		return record
	}

	var lengthBytes [8]byte
	binary.BigEndian.PutUint64(lengthBytes[:], uint64(desc.length))

	writer := bytewriter.New(record)
	writer.Write(lengthBytes[8-fs.constraints.BytesForFileLength:])
	for _, block := range desc.occupiedBlocks {
		writer.Write([]byte{byte(block)})
	}
	return record
}

// decodeDescriptor is the inverse of encodeDescriptor. It returns nil for an
// all-zero record.
func (fs *FileSystem) decodeDescriptor(record []byte) *descriptor {
	isFree := true
	for _, b := range record {
		if b != 0 {
			isFree = false
			break
		}
	}
	if isFree {
		return nil
	}

	lengthWidth := fs.constraints.BytesForFileLength
	var lengthBytes [8]byte
	copy(lengthBytes[8-lengthWidth:], record[:lengthWidth])

	desc := &descriptor{
		length:         int64(binary.BigEndian.Uint64(lengthBytes[:])),
		occupiedBlocks: make([]c.PhysicalBlock, fs.constraints.MaxBlocksPerFile),
	}
	for i := range desc.occupiedBlocks {
		desc.occupiedBlocks[i] = c.PhysicalBlock(record[lengthWidth+uint(i)])
	}
	return desc
}

// descriptorView returns a cursor over the descriptor table, i.e. the blocks
// after the bitmap up to the end of the descriptive area.
func (fs *FileSystem) descriptorView(writable bool) (*diskview.View, error) {
	return diskview.New(
		fs.store,
		1,
		c.PhysicalBlock(fs.constraints.DescriptiveBlocks),
		writable,
	)
}

func (fs *FileSystem) descriptorOffset(index uint) (int64, error) {
	if index >= fs.descriptorCount {
		return 0, errors.ErrNotFound.WithMessage(
			fmt.Sprintf(
				"descriptor %d not in range [0, %d)", index, fs.descriptorCount,
			),
		)
	}
	return int64(index) * int64(fs.constraints.DescriptorSize()), nil
}

// getDescriptor returns the descriptor at `index`, or nil if the record is free
// or lies outside the descriptor table.
func (fs *FileSystem) getDescriptor(index uint) (*descriptor, error) {
	desc, ok := fs.descriptors[index]
	if ok {
		return desc, nil
	}

	// Out-of-range records don't exist, same as free ones.
	if index >= fs.descriptorCount {
		return nil, nil
	}
	offset, _ := fs.descriptorOffset(index)

	view, err := fs.descriptorView(false)
	if err != nil {
		return nil, err
	}

	record := make([]byte, fs.constraints.DescriptorSize())
	_, err = view.ReadAt(record, offset)
	if err != nil {
		return nil, errors.ErrFail.Wrap(err)
	}

	desc = fs.decodeDescriptor(record)
	if desc == nil {
		return nil, nil
	}

	err = fs.validateDescriptor(index, desc)
	if err != nil {
		return nil, err
	}
	fs.descriptors[index] = desc
	return desc, nil
}

// validateDescriptor checks a descriptor read from the image against the
// volume's geometry and allocation bitmap.
func (fs *FileSystem) validateDescriptor(index uint, desc *descriptor) error {
	if !desc.isInitialized() {
		return nil
	}

	maxSize := fs.constraints.MaxFileSize(fs.store.BytesPerBlock())
	if desc.length > maxSize {
		return errors.ErrFail.WithMessage(
			fmt.Sprintf(
				"descriptor %d has length %d, maximum is %d", index, desc.length, maxSize,
			),
		)
	}

	firstDataBlock := c.PhysicalBlock(fs.constraints.DescriptiveBlocks)
	endBlock := c.PhysicalBlock(fs.store.TotalBlocks())
	for slot, block := range desc.occupiedBlocks {
		if block == c.UnallocatedBlock {
			continue
		}
		if block < firstDataBlock || block >= endBlock {
			return errors.ErrFail.WithMessage(
				fmt.Sprintf(
					"descriptor %d slot %d points to block %d, not in range [%d, %d)",
					index,
					slot,
					block,
					firstDataBlock,
					endBlock,
				),
			)
		}
		if !fs.alloc.IsAllocated(block) {
			return errors.ErrFail.WithMessage(
				fmt.Sprintf(
					"descriptor %d slot %d points to block %d, which is marked free",
					index,
					slot,
					block,
				),
			)
		}
	}
	return nil
}

// mustGetDescriptor is like getDescriptor but treats a missing descriptor as
// corruption. Use it wherever the directory or an open handle claims the
// descriptor exists.
func (fs *FileSystem) mustGetDescriptor(index uint) (*descriptor, error) {
	desc, err := fs.getDescriptor(index)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.ErrFail.WithMessage(
			fmt.Sprintf("descriptor %d is referenced but free", index),
		)
	}
	return desc, nil
}

// saveDescriptor writes `desc` to the table at `index` and updates the cache. A
// nil descriptor frees the record.
func (fs *FileSystem) saveDescriptor(index uint, desc *descriptor) error {
	offset, err := fs.descriptorOffset(index)
	if err != nil {
		return err
	}

	view, err := fs.descriptorView(true)
	if err != nil {
		return err
	}

	_, err = view.WriteAt(fs.encodeDescriptor(desc), offset)
	if err != nil {
		return errors.ErrFail.Wrap(err)
	}
	view.Flush()

	if desc == nil {
		delete(fs.descriptors, index)
	} else {
		fs.descriptors[index] = desc
	}
	return nil
}

// takeDescriptor reserves the first free record in the table and returns its
// index. The record is marked as taken but uninitialized.
func (fs *FileSystem) takeDescriptor() (uint, error) {
	view, err := fs.descriptorView(false)
	if err != nil {
		return 0, err
	}

	record := make([]byte, fs.constraints.DescriptorSize())
	for index := uint(0); index < fs.descriptorCount; index++ {
		if _, ok := fs.descriptors[index]; ok {
			continue
		}

		_, err = view.ReadAt(record, int64(index)*int64(len(record)))
		if err != nil {
			return 0, errors.ErrFail.Wrap(err)
		}
		if fs.decodeDescriptor(record) != nil {
			continue
		}

		err = fs.saveDescriptor(index, fs.newTakenDescriptor())
		if err != nil {
			return 0, err
		}
		return index, nil
	}

	return 0, errors.ErrNoSpace.WithMessage("descriptor table is full")
}

// releaseDescriptor frees the record at `index`. It doesn't touch the blocks
// the descriptor refers to.
func (fs *FileSystem) releaseDescriptor(index uint) error {
	return fs.saveDescriptor(index, nil)
}

// countFreeDescriptors gives the number of free records in the table.
func (fs *FileSystem) countFreeDescriptors() (uint, error) {
	free := uint(0)
	for index := uint(0); index < fs.descriptorCount; index++ {
		desc, err := fs.getDescriptor(index)
		if err != nil {
			return 0, err
		}
		if desc == nil {
			free++
		}
	}
	return free, nil
}
