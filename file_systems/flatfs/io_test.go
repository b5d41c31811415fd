package flatfs_test

import (
	"bytes"
	"testing"

	"github.com/dargueta/labdisk/errors"
	"github.com/dargueta/labdisk/file_systems/flatfs"
	labdisktest "github.com/dargueta/labdisk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite__TooBig(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	require.NoError(t, fs.Create("big"))
	handle, err := fs.Open("big")
	require.NoError(t, err)

	data := labdisktest.SequenceBytes(200)
	n, err := fs.Write(handle, data)
	assert.ErrorIs(t, err, errors.ErrTooBig)
	assert.Equal(t, 192, n, "should've written up to the maximum file size")

	length, err := fs.Length(handle)
	require.NoError(t, err)
	assert.EqualValues(t, 192, length)

	n, err = fs.Write(handle, []byte{1})
	assert.ErrorIs(t, err, errors.ErrTooBig, "write at the maximum size should fail")
	assert.Zero(t, n)

	require.NoError(t, fs.Close(handle))
	assert.Equal(t, data[:192], labdisktest.ReadWholeFile(t, fs, "big"))
}

func TestWrite__NoFreeBlocksKeepsPartialWrite(t *testing.T) {
	// Blocks 2-4 are data, and the directory takes block 2.
	fs := labdisktest.FormatVolume(t, 5, 64, flatfs.DefaultConstraints)
	require.NoError(t, fs.Create("a"))
	handle, err := fs.Open("a")
	require.NoError(t, err)

	data := labdisktest.SequenceBytes(150)
	n, err := fs.Write(handle, data)
	assert.ErrorIs(t, err, errors.ErrNoSpace)
	assert.ErrorIs(t, err, errors.ErrNoFreeBlocks)
	assert.Equal(t, 128, n)

	length, err := fs.Length(handle)
	require.NoError(t, err)
	assert.EqualValues(t, 128, length, "length of the partial write wasn't saved")

	require.NoError(t, fs.Close(handle))
	assert.Equal(t, data[:128], labdisktest.ReadWholeFile(t, fs, "a"))
}

func TestWrite__Empty(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	before, err := fs.Stat()
	require.NoError(t, err)

	require.NoError(t, fs.Create("a"))
	handle, err := fs.Open("a")
	require.NoError(t, err)

	n, err := fs.Write(handle, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	after, err := fs.Stat()
	require.NoError(t, err)
	// Only the directory grew.
	assert.Equal(t, before.FreeBlocks-1, after.FreeBlocks, "empty write allocated a block")
}

func TestSeek(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	labdisktest.CreateFileWithData(t, fs, "a", labdisktest.SequenceBytes(100))
	handle, err := fs.Open("a")
	require.NoError(t, err)

	position, err := fs.Tell(handle)
	require.NoError(t, err)
	assert.Zero(t, position, "new handle isn't at the beginning")

	assert.NoError(t, fs.Seek(handle, 100), "seeking to the end should work")
	assert.ErrorIs(t, fs.Seek(handle, 101), errors.ErrInvalidPos)
	assert.ErrorIs(t, fs.Seek(handle, -1), errors.ErrInvalidPos)

	position, err = fs.Tell(handle)
	require.NoError(t, err)
	assert.EqualValues(t, 100, position, "failed seek moved the handle")

	require.NoError(t, fs.Seek(handle, 70))
	buffer := make([]byte, 4)
	n, err := fs.Read(handle, buffer)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{70, 71, 72, 73}, buffer)

	position, err = fs.Tell(handle)
	require.NoError(t, err)
	assert.EqualValues(t, 74, position)
}

func TestRead__ClampedToLength(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	labdisktest.CreateFileWithData(t, fs, "a", []byte("0123456789"))
	handle, err := fs.Open("a")
	require.NoError(t, err)

	require.NoError(t, fs.Seek(handle, 5))
	buffer := make([]byte, 100)
	n, err := fs.Read(handle, buffer)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("56789"), buffer[:n])

	n, err = fs.Read(handle, buffer)
	assert.NoError(t, err, "reading at the end isn't an error")
	assert.Zero(t, n)
}

func TestWrite__OverwriteMiddle(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	original := labdisktest.SequenceBytes(130)
	labdisktest.CreateFileWithData(t, fs, "a", original)

	handle, err := fs.Open("a")
	require.NoError(t, err)

	// Crosses the boundary between the first and second blocks.
	patch := bytes.Repeat([]byte{0xaa}, 10)
	require.NoError(t, fs.Seek(handle, 60))
	n, err := fs.Write(handle, patch)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	length, err := fs.Length(handle)
	require.NoError(t, err)
	assert.EqualValues(t, 130, length, "overwrite changed the length")
	require.NoError(t, fs.Close(handle))

	expected := append([]byte{}, original...)
	copy(expected[60:], patch)
	assert.Equal(t, expected, labdisktest.ReadWholeFile(t, fs, "a"))
}

func TestWrite__AppendAfterReopen(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	labdisktest.CreateFileWithData(t, fs, "a", []byte("hello"))

	handle, err := fs.Open("a")
	require.NoError(t, err)
	require.NoError(t, fs.Seek(handle, 5))
	_, err = fs.Write(handle, []byte(", world"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(handle))

	assert.Equal(t, []byte("hello, world"), labdisktest.ReadWholeFile(t, fs, "a"))
}

func TestWrite__InterleavedHandles(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	require.NoError(t, fs.Create("a"))
	require.NoError(t, fs.Create("b"))

	handleA, err := fs.Open("a")
	require.NoError(t, err)
	handleB, err := fs.Open("b")
	require.NoError(t, err)

	var expectedA, expectedB []byte
	for i := 0; i < 15; i++ {
		chunkA := bytes.Repeat([]byte{byte('a' + i)}, 11)
		chunkB := bytes.Repeat([]byte{byte('A' + i)}, 7)

		_, err = fs.Write(handleA, chunkA)
		require.NoError(t, err)
		_, err = fs.Write(handleB, chunkB)
		require.NoError(t, err)

		expectedA = append(expectedA, chunkA...)
		expectedB = append(expectedB, chunkB...)
	}

	require.NoError(t, fs.Close(handleA))
	require.NoError(t, fs.Close(handleB))
	assert.Equal(t, expectedA, labdisktest.ReadWholeFile(t, fs, "a"))
	assert.Equal(t, expectedB, labdisktest.ReadWholeFile(t, fs, "b"))
}
