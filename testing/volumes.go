package testing

import (
	"path/filepath"
	"testing"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/file_systems/flatfs"
	"github.com/stretchr/testify/require"
)

// FormatVolume creates a blank in-memory volume, failing the test if the
// geometry is invalid.
func FormatVolume(
	t *testing.T,
	totalBlocks uint,
	bytesPerBlock uint,
	constraints flatfs.Constraints,
) *flatfs.FileSystem {
	volume, err := flatfs.Format(totalBlocks, bytesPerBlock, constraints)
	require.NoErrorf(
		t,
		err,
		"failed to format %d blocks of %d bytes with %+v",
		totalBlocks,
		bytesPerBlock,
		constraints,
	)
	return volume
}

// FormatDefaultVolume creates a blank 16-block volume with 64-byte blocks and
// the default constraints.
func FormatDefaultVolume(t *testing.T) *flatfs.FileSystem {
	return FormatVolume(t, 16, 64, flatfs.DefaultConstraints)
}

// TempImagePath returns a path for a volume image inside a temporary directory
// that's removed when the test ends. The file doesn't exist yet.
func TempImagePath(t *testing.T, name string) string {
	return filepath.Join(t.TempDir(), name)
}

// CreateFileWithData creates a file, writes `data` to it, and closes it. All
// of `data` must fit.
func CreateFileWithData(t *testing.T, fs labdisk.FileSystem, name string, data []byte) {
	require.NoError(t, fs.Create(name), "failed to create %q", name)

	handle, err := fs.Open(name)
	require.NoError(t, err, "failed to open %q", name)

	n, err := fs.Write(handle, data)
	require.NoError(t, err, "failed to write to %q", name)
	require.Equal(t, len(data), n, "short write to %q", name)

	require.NoError(t, fs.Close(handle), "failed to close %q", name)
}

// ReadWholeFile opens a file, reads all of it, and closes it.
func ReadWholeFile(t *testing.T, fs labdisk.FileSystem, name string) []byte {
	handle, err := fs.Open(name)
	require.NoError(t, err, "failed to open %q", name)

	length, err := fs.Length(handle)
	require.NoError(t, err)

	data := make([]byte, length)
	n, err := fs.Read(handle, data)
	require.NoError(t, err, "failed to read %q", name)
	require.EqualValues(t, length, n, "short read from %q", name)

	require.NoError(t, fs.Close(handle), "failed to close %q", name)
	return data
}
