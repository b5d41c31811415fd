package flatfs

import (
	"fmt"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
)

func (fs *FileSystem) splitPosition(position int64) (c.LogicalBlock, int) {
	bytesPerBlock := int64(fs.store.BytesPerBlock())
	return c.LogicalBlock(position / bytesPerBlock), int(position % bytesPerBlock)
}

func (fs *FileSystem) read(entry *oftEntry, buffer []byte) (int, error) {
	desc, err := fs.mustGetDescriptor(entry.descriptorIndex)
	if err != nil {
		return 0, err
	}

	remaining := desc.length - entry.position
	if remaining <= 0 || len(buffer) == 0 {
		return 0, nil
	}
	if int64(len(buffer)) > remaining {
		buffer = buffer[:remaining]
	}

	totalRead := 0
	for totalRead < len(buffer) {
		block, offset := fs.splitPosition(entry.position)
		err = fs.initializeOFTEntry(entry, block)
		if err != nil {
			return totalRead, err
		}

		n := copy(buffer[totalRead:], entry.buffer[offset:])
		totalRead += n
		entry.position += int64(n)
	}
	return totalRead, nil
}

func (fs *FileSystem) write(entry *oftEntry, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	desc, err := fs.mustGetDescriptor(entry.descriptorIndex)
	if err != nil {
		return 0, err
	}

	maxSize := fs.constraints.MaxFileSize(fs.store.BytesPerBlock())
	totalWritten := 0
	lengthChanged := false

	var writeErr error
	for totalWritten < len(data) {
		if entry.position >= maxSize {
			writeErr = errors.ErrTooBig.WithMessage(
				fmt.Sprintf(
					"file %q can't grow past %d bytes", entry.filename, maxSize,
				),
			)
			break
		}

		block, offset := fs.splitPosition(entry.position)
		writeErr = fs.initializeOFTEntry(entry, block)
		if writeErr != nil {
			break
		}

		n := copy(entry.buffer[offset:], data[totalWritten:])
		entry.modified = true
		totalWritten += n
		entry.position += int64(n)

		if entry.position > desc.length {
			desc.length = entry.position
			lengthChanged = true
		}
	}

	// Whatever made it into the file stays there even if we stopped early, so
	// the new length must be persisted either way.
	if lengthChanged {
		err = fs.saveDescriptor(entry.descriptorIndex, desc)
		if err != nil {
			return totalWritten, err
		}
	}
	return totalWritten, writeErr
}

func (fs *FileSystem) seek(entry *oftEntry, position int64) error {
	desc, err := fs.mustGetDescriptor(entry.descriptorIndex)
	if err != nil {
		return err
	}

	if position < 0 || position > desc.length {
		return errors.ErrInvalidPos.WithMessage(
			fmt.Sprintf(
				"can't seek to %d in %q, file is %d bytes",
				position,
				entry.filename,
				desc.length,
			),
		)
	}

	newBlock, _ := fs.splitPosition(position)
	if entry.initialized && newBlock != entry.currentBlock {
		err = fs.flushEntry(entry)
		if err != nil {
			return err
		}
	}

	entry.position = position
	return nil
}

// Read implements [labdisk.FileSystem].
func (fs *FileSystem) Read(handle labdisk.Handle, buffer []byte) (int, error) {
	entry, err := fs.entryForHandle(handle)
	if err != nil {
		return 0, err
	}
	return fs.read(entry, buffer)
}

// Write implements [labdisk.FileSystem].
func (fs *FileSystem) Write(handle labdisk.Handle, data []byte) (int, error) {
	entry, err := fs.entryForHandle(handle)
	if err != nil {
		return 0, err
	}
	return fs.write(entry, data)
}

// Seek implements [labdisk.FileSystem].
func (fs *FileSystem) Seek(handle labdisk.Handle, position int64) error {
	entry, err := fs.entryForHandle(handle)
	if err != nil {
		return err
	}
	return fs.seek(entry, position)
}

func (fs *FileSystem) Tell(handle labdisk.Handle) (int64, error) {
	entry, err := fs.entryForHandle(handle)
	if err != nil {
		return 0, err
	}
	return entry.position, nil
}

func (fs *FileSystem) Length(handle labdisk.Handle) (int64, error) {
	entry, err := fs.entryForHandle(handle)
	if err != nil {
		return 0, err
	}
	desc, err := fs.mustGetDescriptor(entry.descriptorIndex)
	if err != nil {
		return 0, err
	}
	return desc.length, nil
}
