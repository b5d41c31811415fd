// Package common contains definitions of fundamental types and functions used
// across the storage engine's layers.
package common

// LogicalBlock is the index of a block within a single file, i.e. an index
// into a descriptor's list of occupied blocks.
type LogicalBlock uint

// PhysicalBlock is the index of a block on the volume.
type PhysicalBlock uint

// UnallocatedBlock marks a descriptor slot that has no block yet. Block 0 holds
// the allocation bitmap, so it can never be a data block.
const UnallocatedBlock = PhysicalBlock(0)

// FreeDescriptorMarker is written into every block slot of a descriptor when
// it's reserved for a new file that hasn't been written to yet.
const FreeDescriptorMarker = 0xff

// MaxTotalBlocks is the largest volume the format can address. Block indices
// are stored in one byte and 0xff is reserved for FreeDescriptorMarker.
const MaxTotalBlocks = 255

// Truncator is an interface for objects that support a Truncate() method. This
// method must behave just like [os.File.Truncate].
type Truncator interface {
	Truncate(size int64) error
}
