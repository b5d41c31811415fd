// Package allocator implements the free-space bitmap: one bit per block on the
// volume, set when the block is in use.
//
// On disk the bitmap is stored most significant bit first, i.e. block 0 is the
// high bit of the first byte. Leftover bits in the last byte are zero.

package allocator

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
)

type Allocator struct {
	AllocationBitmap bitmap.Bitmap
	TotalBlocks      uint
	// ReservedBlocks is the number of blocks at the beginning of the volume
	// that are permanently allocated to metadata.
	ReservedBlocks uint
}

// New creates an allocation bitmap with only the reserved blocks in use.
func New(totalBlocks uint, reservedBlocks uint) *Allocator {
	alloc := &Allocator{
		AllocationBitmap: bitmap.New(int(totalBlocks)),
		TotalBlocks:      totalBlocks,
		ReservedBlocks:   reservedBlocks,
	}
	alloc.markReserved()
	return alloc
}

func (alloc *Allocator) markReserved() {
	for i := uint(0); i < alloc.ReservedBlocks && i < alloc.TotalBlocks; i++ {
		alloc.AllocationBitmap.Set(int(i), true)
	}
}

// EncodedSize gives the number of bytes needed to store the bitmap on disk.
func (alloc *Allocator) EncodedSize() uint {
	return (alloc.TotalBlocks + 7) / 8
}

// Encode writes the bitmap into `dest` in its on-disk form. Bytes in `dest`
// past the end of the bitmap are zeroed.
func (alloc *Allocator) Encode(dest []byte) error {
	if uint(len(dest)) < alloc.EncodedSize() {
		return errors.ErrFail.WithMessage(
			fmt.Sprintf(
				"bitmap for %d blocks needs %d bytes, buffer is only %d",
				alloc.TotalBlocks,
				alloc.EncodedSize(),
				len(dest),
			),
		)
	}

	for i := range dest {
		dest[i] = 0
	}
	for i := uint(0); i < alloc.TotalBlocks; i++ {
		if alloc.AllocationBitmap.Get(int(i)) {
			dest[i/8] |= 0x80 >> (i % 8)
		}
	}
	return nil
}

// Decode replaces the bitmap with the on-disk form in `src`. Reserved blocks
// are always marked as in use, regardless of what `src` says.
func (alloc *Allocator) Decode(src []byte) error {
	if uint(len(src)) < alloc.EncodedSize() {
		return errors.ErrFail.WithMessage(
			fmt.Sprintf(
				"bitmap for %d blocks needs %d bytes, got %d",
				alloc.TotalBlocks,
				alloc.EncodedSize(),
				len(src),
			),
		)
	}

	for i := uint(0); i < alloc.TotalBlocks; i++ {
		bit := src[i/8]&(0x80>>(i%8)) != 0
		alloc.AllocationBitmap.Set(int(i), bit)
	}
	alloc.markReserved()
	return nil
}

func (alloc *Allocator) IsAllocated(block c.PhysicalBlock) bool {
	if uint(block) >= alloc.TotalBlocks {
		return false
	}
	return alloc.AllocationBitmap.Get(int(block))
}

// AllocateSingle allocates the lowest-numbered free block outside of the
// reserved area and returns its index. If no blocks are available, it returns
// [errors.ErrNoFreeBlocks].
func (alloc *Allocator) AllocateSingle() (c.PhysicalBlock, error) {
	for i := alloc.ReservedBlocks; i < alloc.TotalBlocks; i++ {
		if !alloc.AllocationBitmap.Get(int(i)) {
			alloc.AllocationBitmap.Set(int(i), true)
			return c.PhysicalBlock(i), nil
		}
	}
	return c.UnallocatedBlock, errors.ErrNoFreeBlocks
}

// FreeSingle frees an allocated block. Freeing a reserved block, a block past
// the end of the volume, or a block that isn't allocated fails without changing
// anything.
func (alloc *Allocator) FreeSingle(block c.PhysicalBlock) error {
	if uint(block) >= alloc.TotalBlocks {
		msg := fmt.Sprintf(
			"invalid block: %d not in range [0, %d)",
			block,
			alloc.TotalBlocks)
		return errors.ErrFail.WithMessage(msg)
	}
	if uint(block) < alloc.ReservedBlocks {
		msg := fmt.Sprintf("block %d is reserved for metadata", block)
		return errors.ErrFail.WithMessage(msg)
	}
	if !alloc.AllocationBitmap.Get(int(block)) {
		msg := fmt.Sprintf("block %d is already free", block)
		return errors.ErrFail.WithMessage(msg)
	}

	alloc.AllocationBitmap.Set(int(block), false)
	return nil
}

// FreeCount gives the number of blocks available for allocation.
func (alloc *Allocator) FreeCount() uint {
	count := uint(0)
	for i := alloc.ReservedBlocks; i < alloc.TotalBlocks; i++ {
		if !alloc.AllocationBitmap.Get(int(i)) {
			count++
		}
	}
	return count
}
