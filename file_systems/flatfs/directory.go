package flatfs

import (
	"bytes"
	"fmt"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/errors"
	"github.com/noxer/bytewriter"
)

// dirEntry is one record of the directory file: a NUL-padded file name followed
// by a one-byte descriptor index.
type dirEntry struct {
	filename        string
	descriptorIndex uint
}

func (entry dirEntry) isEmpty() bool {
	return entry.filename == "" && entry.descriptorIndex == 0
}

func (fs *FileSystem) encodeDirEntry(entry dirEntry) []byte {
	record := make([]byte, fs.constraints.DirEntrySize())
	writer := bytewriter.New(record[:fs.constraints.MaxFilenameLength])
	writer.Write([]byte(entry.filename))
	record[len(record)-1] = byte(entry.descriptorIndex)
	return record
}

func (fs *FileSystem) decodeDirEntry(record []byte) dirEntry {
	name := record[:fs.constraints.MaxFilenameLength]
	if end := bytes.IndexByte(name, 0); end >= 0 {
		name = name[:end]
	}
	return dirEntry{
		filename:        string(name),
		descriptorIndex: uint(record[len(record)-1]),
	}
}

func (fs *FileSystem) directoryEntry() *oftEntry {
	return fs.oft[labdisk.DirectoryHandle]
}

// directorySlots gives the number of records in the directory file, live or
// not.
func (fs *FileSystem) directorySlots() (uint, error) {
	desc, err := fs.mustGetDescriptor(fs.directoryEntry().descriptorIndex)
	if err != nil {
		return 0, err
	}
	return uint(desc.length) / fs.constraints.DirEntrySize(), nil
}

// maxDirectorySlots gives the number of records the directory file can hold.
func (fs *FileSystem) maxDirectorySlots() uint {
	maxSize := fs.constraints.MaxFileSize(fs.store.BytesPerBlock())
	return uint(maxSize) / fs.constraints.DirEntrySize()
}

func (fs *FileSystem) readDirEntry(slot uint) (dirEntry, error) {
	size := fs.constraints.DirEntrySize()
	dir := fs.directoryEntry()

	err := fs.seek(dir, int64(slot*size))
	if err != nil {
		return dirEntry{}, err
	}

	record := make([]byte, size)
	n, err := fs.read(dir, record)
	if err != nil {
		return dirEntry{}, err
	}
	if uint(n) != size {
		return dirEntry{}, errors.ErrFail.WithMessage(
			fmt.Sprintf("directory record %d is truncated (%d bytes)", slot, n),
		)
	}
	return fs.decodeDirEntry(record), nil
}

// scanDirectory calls `visit` with each live entry in order, stopping at the
// first empty record or when `visit` returns false. It returns the number of
// live entries visited.
func (fs *FileSystem) scanDirectory(visit func(slot uint, entry dirEntry) bool) (uint, error) {
	totalSlots, err := fs.directorySlots()
	if err != nil {
		return 0, err
	}

	slot := uint(0)
	for ; slot < totalSlots; slot++ {
		entry, err := fs.readDirEntry(slot)
		if err != nil {
			return slot, err
		}
		if entry.isEmpty() {
			break
		}
		if !visit(slot, entry) {
			return slot + 1, nil
		}
	}
	return slot, nil
}

// takeDirEntry finds the slot a new file named `filename` should go in: the
// first empty record, or one past the end of the directory if it has none.
func (fs *FileSystem) takeDirEntry(filename string) (uint, error) {
	exists := false
	liveCount, err := fs.scanDirectory(
		func(slot uint, entry dirEntry) bool {
			exists = entry.filename == filename
			return !exists
		},
	)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, errors.ErrExists.WithMessage(filename)
	}

	// Live entries are a dense prefix, so the first free slot is right after
	// them, whether it's an existing empty record or a new one at the end.
	if liveCount >= fs.maxDirectorySlots() {
		return 0, errors.ErrNoSpace.WithMessage("directory is full")
	}
	return liveCount, nil
}

// saveDirEntry writes a record to the directory at `slot`. If the write fails,
// the directory's length is put back to what it was.
func (fs *FileSystem) saveDirEntry(slot uint, filename string, descriptorIndex uint) error {
	return fs.writeDirRecord(
		slot,
		fs.encodeDirEntry(dirEntry{filename: filename, descriptorIndex: descriptorIndex}),
	)
}

func (fs *FileSystem) writeDirRecord(slot uint, record []byte) error {
	dir := fs.directoryEntry()
	desc, err := fs.mustGetDescriptor(dir.descriptorIndex)
	if err != nil {
		return err
	}
	originalLength := desc.length

	err = fs.seek(dir, int64(slot*fs.constraints.DirEntrySize()))
	if err != nil {
		return err
	}

	_, err = fs.write(dir, record)
	if err != nil {
		if desc.length != originalLength {
			desc.length = originalLength
			if dir.position > originalLength {
				dir.position = originalLength
			}
			saveErr := fs.saveDescriptor(dir.descriptorIndex, desc)
			if saveErr != nil {
				return errors.ErrFail.Wrap(saveErr)
			}
		}
		return err
	}
	return nil
}

// lookupDirEntry returns the slot and descriptor index of the named file.
func (fs *FileSystem) lookupDirEntry(filename string) (uint, uint, error) {
	found := false
	var foundSlot uint
	var foundIndex uint

	_, err := fs.scanDirectory(
		func(slot uint, entry dirEntry) bool {
			if entry.filename == filename {
				found = true
				foundSlot = slot
				foundIndex = entry.descriptorIndex
			}
			return !found
		},
	)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return 0, 0, errors.ErrNotFound.WithMessage(filename)
	}
	return foundSlot, foundIndex, nil
}

// descriptorIndexFromDirEntry resolves a file name to its descriptor index,
// using the name cache if possible.
func (fs *FileSystem) descriptorIndexFromDirEntry(filename string) (uint, error) {
	index, ok := fs.descriptorIndexes[filename]
	if ok {
		return index, nil
	}

	_, index, err := fs.lookupDirEntry(filename)
	if err != nil {
		return 0, err
	}
	fs.descriptorIndexes[filename] = index
	return index, nil
}

// overwriteDirEntry removes the record at `slot` by moving the last live record
// into it and clearing the last one. The directory file keeps its length.
func (fs *FileSystem) overwriteDirEntry(slot uint) error {
	liveCount, err := fs.scanDirectory(func(uint, dirEntry) bool { return true })
	if err != nil {
		return err
	}
	if slot >= liveCount {
		return errors.ErrFail.WithMessage(
			fmt.Sprintf("directory slot %d isn't live (%d live entries)", slot, liveCount),
		)
	}

	lastSlot := liveCount - 1
	if slot != lastSlot {
		last, err := fs.readDirEntry(lastSlot)
		if err != nil {
			return err
		}
		err = fs.writeDirRecord(slot, fs.encodeDirEntry(last))
		if err != nil {
			return err
		}
	}
	return fs.writeDirRecord(lastSlot, make([]byte, fs.constraints.DirEntrySize()))
}

// Directory implements [labdisk.FileSystem]. It lists every live file along
// with its length.
func (fs *FileSystem) Directory() ([]labdisk.DirectoryEntry, error) {
	var entries []dirEntry
	_, err := fs.scanDirectory(
		func(slot uint, entry dirEntry) bool {
			entries = append(entries, entry)
			return true
		},
	)
	if err != nil {
		return nil, err
	}

	listing := make([]labdisk.DirectoryEntry, 0, len(entries))
	for _, entry := range entries {
		desc, err := fs.mustGetDescriptor(entry.descriptorIndex)
		if err != nil {
			return nil, err
		}
		listing = append(
			listing,
			labdisk.NewDirectoryEntry(entry.filename, desc.length, entry.descriptorIndex),
		)
	}
	return listing, nil
}
