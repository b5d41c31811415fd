// Package diskview gives byte-level access to a contiguous run of blocks on a
// block device, buffering at most two blocks at a time.
//
// A View is intended for sequential scans over small fixed-width records that
// may straddle a block boundary. It keeps the block it's currently looking at
// and the one immediately before or after it in the direction of the scan, so
// a record split across two blocks never forces a block to be read twice.

package diskview

import (
	"fmt"
	"io"

	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
)

var _ io.ReaderAt = (*View)(nil)
var _ io.WriterAt = (*View)(nil)

// BlockDevice is the subset of a block store a View needs.
type BlockDevice interface {
	BytesPerBlock() uint
	ReadBlock(index c.PhysicalBlock, dest []byte)
	WriteBlock(index c.PhysicalBlock, src []byte)
}

type bufferedBlock struct {
	index c.PhysicalBlock
	data  []byte
	dirty bool
}

// View is a cursor over the blocks [first, end) of a device. Offsets passed to
// ReadAt and WriteAt are relative to the beginning of block `first`.
type View struct {
	device   BlockDevice
	first    c.PhysicalBlock
	end      c.PhysicalBlock
	writable bool
	current  *bufferedBlock
	previous *bufferedBlock
}

// New creates a view over the blocks [first, end) of `device`. If `writable` is
// false, the view never calls WriteBlock on the device and WriteAt fails.
func New(
	device BlockDevice,
	first c.PhysicalBlock,
	end c.PhysicalBlock,
	writable bool,
) (*View, error) {
	if end <= first {
		return nil, errors.ErrFail.WithMessage(
			fmt.Sprintf("empty block range [%d, %d)", first, end),
		)
	}
	return &View{
		device:   device,
		first:    first,
		end:      end,
		writable: writable,
	}, nil
}

// Size gives the size of the region covered by the view, in bytes.
func (view *View) Size() int64 {
	return int64(view.end-view.first) * int64(view.device.BytesPerBlock())
}

func (view *View) writeBack(block *bufferedBlock) {
	if block == nil || !view.writable || !block.dirty {
		return
	}
	view.device.WriteBlock(block.index, block.data)
	block.dirty = false
}

func (view *View) load(index c.PhysicalBlock) *bufferedBlock {
	block := &bufferedBlock{
		index: index,
		data:  make([]byte, view.device.BytesPerBlock()),
	}
	view.device.ReadBlock(index, block.data)
	return block
}

func isAdjacent(a, b c.PhysicalBlock) bool {
	return a+1 == b || b+1 == a
}

// buffer returns the buffer holding the absolute block `index`, loading it if
// necessary.
func (view *View) buffer(index c.PhysicalBlock) *bufferedBlock {
	if view.current != nil && view.current.index == index {
		return view.current
	}
	if view.previous != nil && view.previous.index == index {
		return view.previous
	}

	if view.current != nil && isAdjacent(view.current.index, index) {
		// Keep the block we're moving away from; the record being accessed may
		// begin in it.
		view.writeBack(view.previous)
		view.previous = view.current
	} else {
		view.writeBack(view.previous)
		view.writeBack(view.current)
		view.previous = nil
	}

	view.current = view.load(index)
	return view.current
}

func (view *View) checkRange(offset int64) error {
	if offset < 0 || offset > view.Size() {
		return errors.ErrInvalidPos.WithMessage(
			fmt.Sprintf(
				"offset %d not in range [0, %d] of blocks [%d, %d)",
				offset,
				view.Size(),
				view.first,
				view.end,
			),
		)
	}
	return nil
}

// transfer walks the bytes [offset, offset+len(p)) block by block, calling
// `action` with each block's buffer and the matching part of `p`.
func (view *View) transfer(
	p []byte,
	offset int64,
	action func(block *bufferedBlock, blockOffset uint, chunk []byte),
) {
	bytesPerBlock := int64(view.device.BytesPerBlock())
	done := 0
	for done < len(p) {
		absolute := offset + int64(done)
		blockIndex := view.first + c.PhysicalBlock(absolute/bytesPerBlock)
		blockOffset := uint(absolute % bytesPerBlock)

		chunkSize := int(bytesPerBlock) - int(blockOffset)
		if chunkSize > len(p)-done {
			chunkSize = len(p) - done
		}

		action(view.buffer(blockIndex), blockOffset, p[done:done+chunkSize])
		done += chunkSize
	}
}

// ReadAt implements [io.ReaderAt]. Reading past the end of the region returns
// the bytes available along with [io.EOF].
func (view *View) ReadAt(p []byte, offset int64) (int, error) {
	err := view.checkRange(offset)
	if err != nil {
		return 0, err
	}

	var eofErr error
	available := view.Size() - offset
	if int64(len(p)) > available {
		p = p[:available]
		eofErr = io.EOF
	}

	view.transfer(
		p,
		offset,
		func(block *bufferedBlock, blockOffset uint, chunk []byte) {
			copy(chunk, block.data[blockOffset:])
		},
	)
	return len(p), eofErr
}

// WriteAt implements [io.WriterAt]. Changes are only guaranteed to reach the
// device after [View.Flush]. Writes that don't fit entirely inside the region
// are rejected without modifying anything.
func (view *View) WriteAt(p []byte, offset int64) (int, error) {
	if !view.writable {
		return 0, errors.ErrFail.WithMessage("view is read-only")
	}

	err := view.checkRange(offset)
	if err != nil {
		return 0, err
	}
	if int64(len(p)) > view.Size()-offset {
		return 0, errors.ErrInvalidPos.WithMessage(
			fmt.Sprintf(
				"write of %d bytes at offset %d runs past the end of the region (%d)",
				len(p),
				offset,
				view.Size(),
			),
		)
	}

	view.transfer(
		p,
		offset,
		func(block *bufferedBlock, blockOffset uint, chunk []byte) {
			copy(block.data[blockOffset:], chunk)
			block.dirty = true
		},
	)
	return len(p), nil
}

// Flush writes every buffered block back to the device. It does nothing if the
// view isn't writable.
func (view *View) Flush() {
	if !view.writable {
		return
	}
	for _, block := range []*bufferedBlock{view.previous, view.current} {
		if block != nil {
			view.device.WriteBlock(block.index, block.data)
			block.dirty = false
		}
	}
}
