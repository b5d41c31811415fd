package labdisk

import (
	"fmt"
	"os"
	"time"
)

// Handle is an index into a file system's open file table.
type Handle uint

// DirectoryHandle is the handle of the directory file. It's always open and is
// never handed out by Open.
const DirectoryHandle = Handle(0)

// InitStatus tells whether a volume was created from scratch or restored from
// an existing image.
type InitStatus int

const (
	Created InitStatus = iota
	Restored
)

func (status InitStatus) String() string {
	switch status {
	case Created:
		return "CREATED"
	case Restored:
		return "RESTORED"
	}
	return fmt.Sprintf("InitStatus(%d)", int(status))
}

// FileSystem is the interface implemented by a mounted volume. The shell and
// the file stream only ever talk to a volume through it.
type FileSystem interface {
	// Create adds an empty file to the directory. No data blocks are allocated
	// until the file is first written to.
	Create(name string) error
	// Destroy removes a file and frees all of its blocks, closing it first if
	// it's open.
	Destroy(name string) error
	// Open returns a new handle positioned at the beginning of the file. A file
	// can only be open once at a time.
	Open(name string) (Handle, error)
	Close(handle Handle) error
	// Read fills `buffer` with bytes starting at the handle's current position,
	// stopping at the end of the file. It returns the number of bytes read.
	Read(handle Handle, buffer []byte) (int, error)
	// Write copies `data` into the file at the handle's current position,
	// extending the file if needed. If the file can't hold all of `data`, the
	// bytes that did fit stay written and their count is returned along with
	// the error.
	Write(handle Handle, data []byte) (int, error)
	// Seek moves the handle to the absolute position `pos`, which can't be
	// past the end of the file.
	Seek(handle Handle, pos int64) error
	// Tell returns the handle's current position.
	Tell(handle Handle) (int64, error)
	// Length returns the current size of the open file, in bytes.
	Length(handle Handle) (int64, error)
	Directory() ([]DirectoryEntry, error)
	// Save writes the volume to the host file at `path`. An empty path means
	// the file the volume was mounted from.
	Save(path string) error
	BlockSize() uint
}

// DirectoryEntry is a live file on the volume. It implements [os.FileInfo] so
// listings can be handled with the same code as host directories.
type DirectoryEntry struct {
	name            string
	Length          int64
	DescriptorIndex uint
}

func NewDirectoryEntry(name string, length int64, descriptorIndex uint) DirectoryEntry {
	return DirectoryEntry{
		name:            name,
		Length:          length,
		DescriptorIndex: descriptorIndex,
	}
}

// Name returns the name of the file.
func (d DirectoryEntry) Name() string {
	return d.name
}

// Size returns the length of the file, in bytes.
func (d DirectoryEntry) Size() int64 {
	return d.Length
}

// Mode always reports a regular file readable and writable by everyone, since
// the volume has no notion of ownership.
func (d DirectoryEntry) Mode() os.FileMode {
	return os.FileMode(0o666)
}

// ModTime returns the zero time; the volume doesn't record timestamps.
func (d DirectoryEntry) ModTime() time.Time {
	return time.Time{}
}

func (d DirectoryEntry) IsDir() bool {
	return false
}

func (d DirectoryEntry) Sys() interface{} {
	return nil
}

// Stat summarizes the resource usage of a mounted volume.
type Stat struct {
	BlockSize        uint
	TotalBlocks      uint
	FreeBlocks       uint
	TotalDescriptors uint
	FreeDescriptors  uint
	OpenHandles      uint
	MaxOpenHandles   uint
	MaxFileSize      int64
}
