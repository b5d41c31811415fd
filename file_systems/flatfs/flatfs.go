// Package flatfs implements a single-directory file system on a small volume of
// fixed-size blocks.
//
// The volume is laid out as follows:
//
//   - Block 0 is the allocation bitmap, one bit per block, most significant bit
//     first.
//   - Blocks 1 up to [Constraints.DescriptiveBlocks] hold the descriptor table.
//     Each descriptor is a big-endian length followed by one byte per block the
//     file may occupy. A block number of 0 means the slot isn't allocated.
//   - Everything after that is file data.
//
// Descriptor 0 is the directory, an ordinary file whose contents are fixed-size
// records mapping file names to descriptor indices.
//
// The whole volume lives in memory. Nothing reaches the host file until
// [FileSystem.Save] is called.
package flatfs

import (
	"fmt"
	"io"
	"strings"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
	"github.com/dargueta/labdisk/file_systems/common/allocator"
	"github.com/dargueta/labdisk/file_systems/common/blockstore"
	"github.com/hashicorp/go-multierror"
)

type FileSystem struct {
	constraints     Constraints
	store           *blockstore.Store
	alloc           *allocator.Allocator
	descriptorCount uint
	// path is the host file the volume was mounted from and is saved to by
	// default. It's empty for volumes that only exist in memory.
	path string
	oft  []*oftEntry
	// descriptors caches decoded descriptors by index.
	descriptors map[uint]*descriptor
	// descriptorIndexes caches descriptor indices by file name.
	descriptorIndexes map[string]uint
}

func newFileSystem(
	totalBlocks uint,
	bytesPerBlock uint,
	constraints Constraints,
) (*FileSystem, error) {
	err := constraints.Validate(totalBlocks, bytesPerBlock)
	if err != nil {
		return nil, err
	}

	return &FileSystem{
		constraints:       constraints,
		store:             blockstore.New(bytesPerBlock, totalBlocks),
		alloc:             allocator.New(totalBlocks, constraints.DescriptiveBlocks),
		descriptorCount:   constraints.DescriptorCount(bytesPerBlock),
		oft:               make([]*oftEntry, constraints.OFTMaxSize),
		descriptors:       make(map[uint]*descriptor),
		descriptorIndexes: make(map[string]uint),
	}, nil
}

func (fs *FileSystem) openDirectory() {
	fs.oft[labdisk.DirectoryHandle] = fs.newOFTEntry("", 0)
}

// Format creates a new, empty volume in memory. The directory exists but has
// no entries, and every other descriptor is free.
func Format(totalBlocks uint, bytesPerBlock uint, constraints Constraints) (*FileSystem, error) {
	fs, err := newFileSystem(totalBlocks, bytesPerBlock, constraints)
	if err != nil {
		return nil, err
	}

	dirIndex, err := fs.takeDescriptor()
	if err != nil {
		return nil, err
	}
	if dirIndex != 0 {
		return nil, errors.ErrFail.WithMessage(
			fmt.Sprintf("directory got descriptor %d on a blank volume", dirIndex),
		)
	}

	fs.openDirectory()
	return fs, fs.writeBitmap()
}

// Mount loads an existing volume image from `stream`, which must contain
// exactly `totalBlocks` blocks.
func Mount(
	stream io.Reader,
	totalBlocks uint,
	bytesPerBlock uint,
	constraints Constraints,
) (*FileSystem, error) {
	fs, err := newFileSystem(totalBlocks, bytesPerBlock, constraints)
	if err != nil {
		return nil, err
	}

	err = fs.store.Load(stream)
	if err != nil {
		return nil, err
	}

	bitmapBlock := make([]byte, bytesPerBlock)
	fs.store.ReadBlock(0, bitmapBlock)
	err = fs.alloc.Decode(bitmapBlock)
	if err != nil {
		return nil, err
	}

	dirDescriptor, err := fs.getDescriptor(0)
	if err != nil {
		return nil, err
	}
	if dirDescriptor == nil {
		return nil, errors.ErrFail.WithMessage("image has no directory descriptor")
	}

	fs.openDirectory()
	return fs, nil
}

// writeBitmap stores the allocation bitmap in block 0.
func (fs *FileSystem) writeBitmap() error {
	bitmapBlock := make([]byte, fs.store.BytesPerBlock())
	err := fs.alloc.Encode(bitmapBlock)
	if err != nil {
		return err
	}
	fs.store.WriteBlock(0, bitmapBlock)
	return nil
}

// Sync writes all modified file buffers and the allocation bitmap to the block
// store. Handles stay open.
func (fs *FileSystem) Sync() error {
	var result *multierror.Error
	for _, entry := range fs.oft {
		if entry != nil {
			result = multierror.Append(result, fs.flushEntry(entry))
		}
	}
	result = multierror.Append(result, fs.writeBitmap())
	return result.ErrorOrNil()
}

// BlockSize implements [labdisk.FileSystem].
func (fs *FileSystem) BlockSize() uint {
	return fs.store.BytesPerBlock()
}

func (fs *FileSystem) Constraints() Constraints {
	return fs.constraints
}

// Path returns the host file the volume is saved to by default.
func (fs *FileSystem) Path() string {
	return fs.path
}

func (fs *FileSystem) validateName(name string) error {
	if name == "" {
		return errors.ErrInvalidName.WithMessage("file name can't be empty")
	}
	if uint(len(name)) > fs.constraints.MaxFilenameLength {
		return errors.ErrInvalidName.WithMessage(
			fmt.Sprintf(
				"%q is longer than %d bytes", name, fs.constraints.MaxFilenameLength,
			),
		)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return errors.ErrInvalidName.WithMessage("file name can't contain NUL")
	}
	return nil
}

// Create implements [labdisk.FileSystem].
func (fs *FileSystem) Create(name string) error {
	err := fs.validateName(name)
	if err != nil {
		return err
	}

	slot, err := fs.takeDirEntry(name)
	if err != nil {
		return err
	}

	index, err := fs.takeDescriptor()
	if err != nil {
		return err
	}

	err = fs.saveDirEntry(slot, name, index)
	if err != nil {
		releaseErr := fs.releaseDescriptor(index)
		if releaseErr != nil {
			return multierror.Append(err, releaseErr)
		}
		return err
	}

	fs.descriptorIndexes[name] = index
	return nil
}

// Open implements [labdisk.FileSystem].
func (fs *FileSystem) Open(name string) (labdisk.Handle, error) {
	err := fs.validateName(name)
	if err != nil {
		return 0, err
	}

	if handle, isOpen := fs.findOpenHandle(name); isOpen {
		return 0, errors.ErrAlreadyOpened.WithMessage(
			fmt.Sprintf("%q is open as handle %d", name, handle),
		)
	}

	handle, err := fs.takeHandle()
	if err != nil {
		return 0, err
	}

	index, err := fs.descriptorIndexFromDirEntry(name)
	if err != nil {
		return 0, err
	}

	_, err = fs.mustGetDescriptor(index)
	if err != nil {
		return 0, err
	}

	fs.oft[handle] = fs.newOFTEntry(name, index)
	return handle, nil
}

// Close implements [labdisk.FileSystem]. The handle is released even if its
// buffer can't be flushed.
func (fs *FileSystem) Close(handle labdisk.Handle) error {
	entry, err := fs.entryForHandle(handle)
	if err != nil {
		return err
	}

	err = fs.flushEntry(entry)
	fs.oft[handle] = nil
	return err
}

// CloseAll closes every open file. The directory stays open.
func (fs *FileSystem) CloseAll() error {
	var result *multierror.Error
	for i := 1; i < len(fs.oft); i++ {
		if fs.oft[i] != nil {
			result = multierror.Append(result, fs.Close(labdisk.Handle(i)))
		}
	}
	return result.ErrorOrNil()
}

// Destroy implements [labdisk.FileSystem].
func (fs *FileSystem) Destroy(name string) error {
	if fs.validateName(name) != nil {
		// A name that can't be created can't exist either.
		return errors.ErrNotFound.WithMessage(name)
	}

	if handle, isOpen := fs.findOpenHandle(name); isOpen {
		err := fs.Close(handle)
		if err != nil {
			return err
		}
	}

	slot, index, err := fs.lookupDirEntry(name)
	if err != nil {
		return err
	}
	if index == 0 {
		return errors.ErrFail.WithMessage(
			fmt.Sprintf("directory entry %q refers to the directory itself", name),
		)
	}

	desc, err := fs.mustGetDescriptor(index)
	if err != nil {
		return err
	}

	var freeErrors *multierror.Error
	for _, block := range desc.allocatedBlocks() {
		freeErrors = multierror.Append(freeErrors, fs.alloc.FreeSingle(block))
	}
	if freeErrors.ErrorOrNil() != nil {
		return errors.ErrFail.Wrap(freeErrors)
	}

	err = fs.releaseDescriptor(index)
	if err != nil {
		return err
	}

	err = fs.overwriteDirEntry(slot)
	delete(fs.descriptorIndexes, name)
	delete(fs.descriptors, index)
	return err
}

// Stat reports how much of the volume is in use.
func (fs *FileSystem) Stat() (labdisk.Stat, error) {
	freeDescriptors, err := fs.countFreeDescriptors()
	if err != nil {
		return labdisk.Stat{}, err
	}

	return labdisk.Stat{
		BlockSize:        fs.store.BytesPerBlock(),
		TotalBlocks:      fs.store.TotalBlocks(),
		FreeBlocks:       fs.alloc.FreeCount(),
		TotalDescriptors: fs.descriptorCount,
		FreeDescriptors:  freeDescriptors,
		OpenHandles:      fs.openHandleCount(),
		MaxOpenHandles:   uint(len(fs.oft)) - 1,
		MaxFileSize:      fs.constraints.MaxFileSize(fs.store.BytesPerBlock()),
	}, nil
}

// IsAllocated tells whether a block is marked as in use in the bitmap.
func (fs *FileSystem) IsAllocated(block c.PhysicalBlock) bool {
	return fs.alloc.IsAllocated(block)
}
