package flatfs

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
	"github.com/dargueta/labdisk/utilities/compression"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/bytesextra"
)

// Init mounts the volume stored in the host file at `path` using the default
// constraints, or creates a new one if the file doesn't exist. The volume has
// cylinders*surfaces*sections blocks of `sectionLength` bytes each.
//
// If `path` ends in ".gz" the image is stored compressed.
func Init(
	cylinders uint,
	surfaces uint,
	sections uint,
	sectionLength uint,
	path string,
) (*FileSystem, labdisk.InitStatus, error) {
	return InitWithConstraints(
		cylinders, surfaces, sections, sectionLength, path, DefaultConstraints,
	)
}

// InitWithConstraints is like [Init] but lets the caller choose the layout.
func InitWithConstraints(
	cylinders uint,
	surfaces uint,
	sections uint,
	sectionLength uint,
	path string,
	constraints Constraints,
) (*FileSystem, labdisk.InitStatus, error) {
	totalBlocks := cylinders * surfaces * sections
	// Check this up front so a bogus geometry can't overflow the size
	// computations below.
	if totalBlocks > c.MaxTotalBlocks {
		return nil, labdisk.Created, invalidGeometry(
			"%d*%d*%d = %d blocks, maximum is %d",
			cylinders, surfaces, sections, totalBlocks, c.MaxTotalBlocks,
		)
	}

	image, err := readHostImage(path)
	if stderrors.Is(err, os.ErrNotExist) {
		volume, err := Format(totalBlocks, sectionLength, constraints)
		if err != nil {
			return nil, labdisk.Created, err
		}
		volume.path = path
		return volume, labdisk.Created, nil
	} else if err != nil {
		return nil, labdisk.Restored, errors.NewFromError(errors.Fail, err)
	}

	expectedSize := int64(totalBlocks) * int64(sectionLength)
	if int64(len(image)) != expectedSize {
		return nil, labdisk.Restored, errors.ErrFail.WithMessage(
			fmt.Sprintf(
				"image %q is %d bytes, expected %d (%d blocks of %d bytes)",
				path,
				len(image),
				expectedSize,
				totalBlocks,
				sectionLength,
			),
		)
	}

	volume, err := Mount(
		bytesextra.NewReadWriteSeeker(image),
		totalBlocks,
		sectionLength,
		constraints,
	)
	if err != nil {
		return nil, labdisk.Restored, err
	}
	volume.path = path
	return volume, labdisk.Restored, nil
}

// readHostImage returns the raw contents of a volume image, expanding it if
// it's compressed.
func readHostImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !compression.IsCompressedPath(path) {
		return data, nil
	}

	expanded := bytes.Buffer{}
	_, err = compression.DecompressImage(bytes.NewReader(data), &expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return expanded.Bytes(), nil
}

// Save implements [labdisk.FileSystem]. All pending changes are written to the
// block store first.
//
// Saving to the file the volume was mounted from only rewrites blocks changed
// since the last save. Any other path gets a full copy of the volume, and
// doesn't affect what the next save to the mount path writes.
func (fs *FileSystem) Save(path string) error {
	if path == "" {
		path = fs.path
	}
	if path == "" {
		return errors.ErrNotFound.WithMessage("volume has no host file to save to")
	}

	err := fs.Sync()
	if err != nil {
		return err
	}

	if compression.IsCompressedPath(path) {
		err = fs.saveCompressed(path)
	} else if path == fs.path {
		err = fs.saveIncremental(path)
	} else {
		err = fs.saveFull(path)
	}

	if err != nil {
		return errors.NewFromError(errors.Fail, err)
	}
	return nil
}

func (fs *FileSystem) saveCompressed(path string) error {
	raw := bytes.Buffer{}
	_, err := fs.store.WriteTo(&raw)
	if err != nil {
		return err
	}

	compressed := bytes.Buffer{}
	_, err = compression.CompressImage(&raw, &compressed)
	if err != nil {
		return err
	}
	return os.WriteFile(path, compressed.Bytes(), 0o644)
}

func (fs *FileSystem) saveFull(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	_, writeErr := fs.store.WriteTo(file)
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		return multierror.Append(writeErr, closeErr)
	}
	return nil
}

func (fs *FileSystem) saveIncremental(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}

	var result *multierror.Error
	info, err := file.Stat()
	if err == nil && info.Size() != fs.store.Size() {
		// New or damaged host file; nothing in it can be trusted.
		err = c.Truncator(file).Truncate(fs.store.Size())
		fs.store.MarkAllDirty()
	}
	result = multierror.Append(result, err)

	if err == nil {
		result = multierror.Append(result, fs.store.Flush(file))
	}
	result = multierror.Append(result, file.Close())
	return result.ErrorOrNil()
}
