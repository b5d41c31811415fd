package flatfs

import (
	"fmt"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
)

// oftEntry is an open file. It caches exactly one block of the file; changing
// which block that is only ever happens in initializeOFTEntry.
type oftEntry struct {
	filename        string
	descriptorIndex uint
	position        int64
	// currentBlock is the index into the descriptor's block list of the block
	// held in `buffer`. It's only meaningful if `initialized` is true.
	currentBlock c.LogicalBlock
	buffer       []byte
	initialized  bool
	modified     bool
}

func (fs *FileSystem) newOFTEntry(filename string, descriptorIndex uint) *oftEntry {
	return &oftEntry{
		filename:        filename,
		descriptorIndex: descriptorIndex,
		buffer:          make([]byte, fs.store.BytesPerBlock()),
	}
}

// entryForHandle returns the OFT entry for a handle given by a caller. The
// directory's handle isn't accessible this way.
func (fs *FileSystem) entryForHandle(handle labdisk.Handle) (*oftEntry, error) {
	if handle == labdisk.DirectoryHandle || uint(handle) >= uint(len(fs.oft)) ||
		fs.oft[handle] == nil {
		return nil, errors.ErrNotFound.WithMessage(
			fmt.Sprintf("no open file with handle %d", handle),
		)
	}
	return fs.oft[handle], nil
}

// findOpenHandle returns the handle the named file is open under, if any.
func (fs *FileSystem) findOpenHandle(filename string) (labdisk.Handle, bool) {
	for i := 1; i < len(fs.oft); i++ {
		if fs.oft[i] != nil && fs.oft[i].filename == filename {
			return labdisk.Handle(i), true
		}
	}
	return 0, false
}

// takeHandle returns the lowest free slot in the OFT after the directory's.
func (fs *FileSystem) takeHandle() (labdisk.Handle, error) {
	for i := 1; i < len(fs.oft); i++ {
		if fs.oft[i] == nil {
			return labdisk.Handle(i), nil
		}
	}
	return 0, errors.ErrOFTFull
}

func (fs *FileSystem) openHandleCount() uint {
	count := uint(0)
	for i := 1; i < len(fs.oft); i++ {
		if fs.oft[i] != nil {
			count++
		}
	}
	return count
}

// flushEntry writes the entry's buffer back to the block store if it's been
// modified.
func (fs *FileSystem) flushEntry(entry *oftEntry) error {
	if !entry.initialized || !entry.modified {
		return nil
	}

	desc, err := fs.mustGetDescriptor(entry.descriptorIndex)
	if err != nil {
		return err
	}

	block := desc.occupiedBlocks[entry.currentBlock]
	if block == c.UnallocatedBlock || block == c.FreeDescriptorMarker {
		return errors.ErrFail.WithMessage(
			fmt.Sprintf(
				"file %q has a modified buffer for unallocated block %d",
				entry.filename,
				entry.currentBlock,
			),
		)
	}

	fs.store.WriteBlock(block, entry.buffer)
	entry.modified = false
	return nil
}

func (entry *oftEntry) zeroBuffer() {
	for i := range entry.buffer {
		entry.buffer[i] = 0
	}
}

// allocateBlock takes a free block from the bitmap and puts it in the
// descriptor's slot `slot`. On failure nothing is changed.
func (fs *FileSystem) allocateBlock(desc *descriptor, slot c.LogicalBlock) error {
	block, err := fs.alloc.AllocateSingle()
	if err != nil {
		return err
	}
	desc.occupiedBlocks[slot] = block
	return nil
}

// initializeOFTEntry makes the entry's buffer hold block `block` of the file,
// allocating it if the file doesn't have that block yet. A newly allocated
// block is zero-filled and marked modified so it reaches the store even if
// nothing is written to it.
func (fs *FileSystem) initializeOFTEntry(entry *oftEntry, block c.LogicalBlock) error {
	if entry.initialized && entry.currentBlock == block {
		return nil
	}
	if uint(block) >= fs.constraints.MaxBlocksPerFile {
		return errors.ErrTooBig.WithMessage(
			fmt.Sprintf(
				"block %d is past the maximum of %d blocks per file",
				block,
				fs.constraints.MaxBlocksPerFile,
			),
		)
	}

	desc, err := fs.mustGetDescriptor(entry.descriptorIndex)
	if err != nil {
		return err
	}

	if desc.isInitialized() {
		if desc.occupiedBlocks[block] != c.UnallocatedBlock {
			err = fs.flushEntry(entry)
			if err != nil {
				return err
			}
			fs.store.ReadBlock(desc.occupiedBlocks[block], entry.buffer)
			entry.modified = false
		} else {
			err = fs.allocateBlock(desc, block)
			if err != nil {
				return err
			}
			err = fs.flushEntry(entry)
			if err != nil {
				return err
			}
			err = fs.saveDescriptor(entry.descriptorIndex, desc)
			if err != nil {
				return err
			}
			entry.zeroBuffer()
			entry.modified = true
		}
	} else {
		// First block ever given to this file. Allocate before touching the
		// descriptor so that running out of space leaves it as it was.
		newBlock, err := fs.alloc.AllocateSingle()
		if err != nil {
			return err
		}
		for i := range desc.occupiedBlocks {
			desc.occupiedBlocks[i] = c.UnallocatedBlock
		}
		desc.occupiedBlocks[block] = newBlock

		err = fs.saveDescriptor(entry.descriptorIndex, desc)
		if err != nil {
			return err
		}
		entry.zeroBuffer()
		entry.modified = true
	}

	entry.currentBlock = block
	entry.initialized = true
	return nil
}
