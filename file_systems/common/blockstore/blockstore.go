// Package blockstore provides the simulated block device: a fixed number of
// equally sized blocks held in memory, plus the bookkeeping needed to write
// changed blocks back to the host file they were loaded from.
//
// All block indices begin at 0.

package blockstore

import (
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
)

type Store struct {
	dirtyBlocks   bitmap.Bitmap
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a zero-filled store. Every block starts out dirty, since nothing
// in it has been written to a host file yet.
func New(bytesPerBlock uint, totalBlocks uint) *Store {
	store := &Store{
		dirtyBlocks:   bitmap.New(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
	store.MarkAllDirty()
	return store
}

// BytesPerBlock returns the size of a single block, in bytes.
func (store *Store) BytesPerBlock() uint {
	return store.bytesPerBlock
}

// TotalBlocks returns the number of blocks on the device.
func (store *Store) TotalBlocks() uint {
	return store.totalBlocks
}

// Size gives the size of the device, in bytes (not blocks!).
func (store *Store) Size() int64 {
	return int64(store.bytesPerBlock) * int64(store.totalBlocks)
}

// mustCheckAccess panics if `index` is outside the device or `bufferSize`
// isn't exactly one block. Callers derive block indices from the bitmap or the
// descriptor table, so a failure here is a bug in the engine and not bad input.
func (store *Store) mustCheckAccess(index c.PhysicalBlock, bufferSize int) {
	if uint(index) >= store.totalBlocks {
		panic(
			fmt.Sprintf(
				"invalid block number: %d not in range [0, %d)",
				index,
				store.totalBlocks,
			),
		)
	}
	if bufferSize != int(store.bytesPerBlock) {
		panic(
			fmt.Sprintf(
				"block I/O must move exactly %d bytes, got a buffer of %d",
				store.bytesPerBlock,
				bufferSize,
			),
		)
	}
}

func (store *Store) blockSlice(index c.PhysicalBlock) []byte {
	start := uint(index) * store.bytesPerBlock
	return store.data[start : start+store.bytesPerBlock]
}

// ReadBlock copies block `index` into `dest`, which must be exactly one block.
func (store *Store) ReadBlock(index c.PhysicalBlock, dest []byte) {
	store.mustCheckAccess(index, len(dest))
	copy(dest, store.blockSlice(index))
}

// WriteBlock overwrites block `index` with `src`, which must be exactly one
// block, and marks it dirty.
func (store *Store) WriteBlock(index c.PhysicalBlock, src []byte) {
	store.mustCheckAccess(index, len(src))
	copy(store.blockSlice(index), src)
	store.dirtyBlocks.Set(int(index), true)
}

// IsDirty tells whether the block has changed since the store was last loaded
// or written out.
func (store *Store) IsDirty(index c.PhysicalBlock) bool {
	if uint(index) >= store.totalBlocks {
		return false
	}
	return store.dirtyBlocks.Get(int(index))
}

// DirtyCount gives the number of blocks that would be written by [Flush].
func (store *Store) DirtyCount() uint {
	count := uint(0)
	for i := 0; i < int(store.totalBlocks); i++ {
		if store.dirtyBlocks.Get(i) {
			count++
		}
	}
	return count
}

// MarkAllDirty forces the next [Flush] to write every block.
func (store *Store) MarkAllDirty() {
	for i := 0; i < int(store.totalBlocks); i++ {
		store.dirtyBlocks.Set(i, true)
	}
}

func (store *Store) markAllClean() {
	for i := 0; i < int(store.totalBlocks); i++ {
		store.dirtyBlocks.Set(i, false)
	}
}

// Load replaces the entire contents of the store with exactly Size() bytes read
// from `stream`. All blocks are clean afterwards.
func (store *Store) Load(stream io.Reader) error {
	buffer := make([]byte, len(store.data))
	_, err := io.ReadFull(stream, buffer)
	if err != nil {
		return errors.ErrFail.Wrap(
			fmt.Errorf("failed to load %d blocks of %d bytes: %w",
				store.totalBlocks, store.bytesPerBlock, err),
		)
	}

	copy(store.data, buffer)
	store.markAllClean()
	return nil
}

// WriteTo writes every block to `stream`, in order. It doesn't change which
// blocks are dirty, since `stream` needn't be the file the store is tracked
// against.
func (store *Store) WriteTo(stream io.Writer) (int64, error) {
	n, err := stream.Write(store.data)
	return int64(n), err
}

// Flush writes out all dirty blocks (and only dirty blocks) to `stream` and
// marks them as clean. `stream` must already hold a full image of this device,
// e.g. the host file the store was loaded from.
func (store *Store) Flush(stream io.WriteSeeker) error {
	for blockIndex := 0; uint(blockIndex) < store.totalBlocks; blockIndex++ {
		if !store.dirtyBlocks.Get(blockIndex) {
			continue
		}

		offset := int64(blockIndex) * int64(store.bytesPerBlock)
		_, err := stream.Seek(offset, io.SeekStart)
		if err != nil {
			return fmt.Errorf("failed to seek to block %d: %w", blockIndex, err)
		}

		_, err = stream.Write(store.blockSlice(c.PhysicalBlock(blockIndex)))
		if err != nil {
			return fmt.Errorf(
				"failed to flush block %d to storage: %w", blockIndex, err,
			)
		}

		store.dirtyBlocks.Set(blockIndex, false)
	}
	return nil
}
