package flatfs

import (
	"fmt"

	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
)

// Constraints gives the layout parameters of a volume. They aren't stored in
// the image, so a volume must always be mounted with the constraints it was
// created with.
type Constraints struct {
	// DescriptiveBlocks is the number of blocks at the beginning of the volume
	// reserved for metadata. This includes block 0, the allocation bitmap; the
	// descriptor table occupies the rest.
	DescriptiveBlocks uint
	// BytesForFileLength is the width of a descriptor's length field.
	BytesForFileLength uint
	MaxBlocksPerFile   uint
	MaxFilenameLength  uint
	// OFTMaxSize is the size of the open file table, including the directory.
	OFTMaxSize uint
}

var DefaultConstraints = Constraints{
	DescriptiveBlocks:  2,
	BytesForFileLength: 2,
	MaxBlocksPerFile:   3,
	MaxFilenameLength:  15,
	OFTMaxSize:         16,
}

// maxDescriptors is the most descriptors the directory can refer to, since a
// descriptor index is stored in one byte.
const maxDescriptors = 256

// DescriptorSize gives the size of one record in the descriptor table.
func (cons Constraints) DescriptorSize() uint {
	return cons.BytesForFileLength + cons.MaxBlocksPerFile
}

// DirEntrySize gives the size of one record in the directory file.
func (cons Constraints) DirEntrySize() uint {
	return cons.MaxFilenameLength + 1
}

// MaxFileSize gives the size of the largest possible file, in bytes.
func (cons Constraints) MaxFileSize(bytesPerBlock uint) int64 {
	return int64(cons.MaxBlocksPerFile) * int64(bytesPerBlock)
}

// DescriptorCount gives the number of records that fit in the descriptor table.
// Records may straddle block boundaries but never run past the end of the
// table.
func (cons Constraints) DescriptorCount(bytesPerBlock uint) uint {
	if cons.DescriptiveBlocks < 2 || cons.DescriptorSize() == 0 {
		return 0
	}
	count := ((cons.DescriptiveBlocks - 1) * bytesPerBlock) / cons.DescriptorSize()
	if count > maxDescriptors {
		return maxDescriptors
	}
	return count
}

func invalidGeometry(format string, args ...interface{}) error {
	return errors.ErrFail.WithMessage("invalid geometry: " + fmt.Sprintf(format, args...))
}

// Validate checks that a volume of `totalBlocks` blocks of `bytesPerBlock`
// bytes each can be laid out with these constraints.
func (cons Constraints) Validate(totalBlocks uint, bytesPerBlock uint) error {
	if cons.DescriptiveBlocks < 2 {
		return invalidGeometry(
			"need at least 2 descriptive blocks (bitmap + descriptors), got %d",
			cons.DescriptiveBlocks,
		)
	}
	if cons.BytesForFileLength < 1 || cons.BytesForFileLength > 8 {
		return invalidGeometry(
			"file length field must be between 1 and 8 bytes, got %d",
			cons.BytesForFileLength,
		)
	}
	if cons.MaxBlocksPerFile < 1 {
		return invalidGeometry("files must be allowed at least one block")
	}
	if cons.MaxFilenameLength < 1 {
		return invalidGeometry("maximum file name length must be at least 1")
	}
	if cons.OFTMaxSize < 2 {
		return invalidGeometry(
			"open file table needs room for the directory and at least one file, got %d",
			cons.OFTMaxSize,
		)
	}
	if totalBlocks > c.MaxTotalBlocks {
		return invalidGeometry(
			"volume can have at most %d blocks, got %d", c.MaxTotalBlocks, totalBlocks,
		)
	}
	if totalBlocks <= cons.DescriptiveBlocks {
		return invalidGeometry(
			"volume of %d blocks leaves no room for data after %d descriptive blocks",
			totalBlocks,
			cons.DescriptiveBlocks,
		)
	}
	if totalBlocks > 8*bytesPerBlock {
		return invalidGeometry(
			"bitmap for %d blocks doesn't fit in one %d-byte block",
			totalBlocks,
			bytesPerBlock,
		)
	}
	if bytesPerBlock < cons.DescriptorSize() {
		return invalidGeometry(
			"block size %d is smaller than one descriptor (%d bytes)",
			bytesPerBlock,
			cons.DescriptorSize(),
		)
	}
	if cons.BytesForFileLength < 8 {
		limit := uint64(1) << (8 * cons.BytesForFileLength)
		if uint64(cons.MaxFileSize(bytesPerBlock)) >= limit {
			return invalidGeometry(
				"maximum file size %d doesn't fit in a %d-byte length field",
				cons.MaxFileSize(bytesPerBlock),
				cons.BytesForFileLength,
			)
		}
	}
	if cons.DescriptorCount(bytesPerBlock) < 1 {
		return invalidGeometry("descriptor table can't hold any descriptors")
	}
	return nil
}
