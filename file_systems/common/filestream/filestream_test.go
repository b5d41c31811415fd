package filestream_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/dargueta/labdisk/errors"
	"github.com/dargueta/labdisk/file_systems/common/filestream"
	labdisktest "github.com/dargueta/labdisk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SeekInfo describes one relative seek and where the stream should end up.
type SeekInfo struct {
	Offset                int64
	Whence                int
	ExpectedFinalPosition int64
}

func openStreamWithData(t *testing.T, data []byte) *filestream.Stream {
	fs := labdisktest.FormatDefaultVolume(t)
	labdisktest.CreateFileWithData(t, fs, "file", data)

	stream, err := filestream.Open(fs, "file", false)
	require.NoError(t, err, "couldn't open stream")
	return stream
}

func doCheckedSeek(t *testing.T, stream *filestream.Stream, seek SeekInfo) {
	where, err := stream.Seek(seek.Offset, seek.Whence)
	require.NoErrorf(
		t,
		err,
		"failed to seek to %d using offset %d, origin %d",
		seek.ExpectedFinalPosition,
		seek.Offset,
		seek.Whence,
	)
	assert.Equal(t, seek.ExpectedFinalPosition, where, "return value of Seek() is wrong")

	position, err := stream.Tell()
	require.NoError(t, err)
	assert.Equal(t, seek.ExpectedFinalPosition, position, "Tell() returned the wrong value")
}

func TestStream__ReadAll(t *testing.T) {
	data := labdisktest.SequenceBytes(170)
	stream := openStreamWithData(t, data)
	defer stream.Close()

	readBack, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, data, readBack)

	n, err := stream.Read(make([]byte, 10))
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestStream__SeekStart(t *testing.T) {
	data := labdisktest.SequenceBytes(190)
	stream := openStreamWithData(t, data)
	defer stream.Close()

	byteOffsets := []int64{0, 64, 39, 120}
	readSizes := []int{1, 20, 64}

	for _, readSize := range readSizes {
		for _, offset := range byteOffsets {
			t.Run(
				fmt.Sprintf("Offset_%d_Size_%d", offset, readSize),
				func(t *testing.T) {
					doCheckedSeek(
						t,
						stream,
						SeekInfo{
							Offset:                offset,
							Whence:                io.SeekStart,
							ExpectedFinalPosition: offset,
						},
					)

					buffer := make([]byte, readSize)
					n, err := stream.Read(buffer)
					require.NoError(t, err)
					assert.Equal(t, readSize, n, "read wrong number of bytes")
					assert.Equal(t, data[offset:offset+int64(readSize)], buffer)
				},
			)
		}
	}
}

func TestStream__SeekJumpingAround(t *testing.T) {
	stream := openStreamWithData(t, labdisktest.SequenceBytes(150))
	defer stream.Close()

	seeks := []SeekInfo{
		{Offset: 10, Whence: io.SeekStart, ExpectedFinalPosition: 10},
		// Backwards from the current position
		{Offset: -3, Whence: io.SeekCurrent, ExpectedFinalPosition: 7},
		// Don't go anywhere
		{Offset: 0, Whence: io.SeekCurrent, ExpectedFinalPosition: 7},
		{Offset: 100, Whence: io.SeekCurrent, ExpectedFinalPosition: 107},
		{Offset: -39, Whence: io.SeekEnd, ExpectedFinalPosition: 111},
		{Offset: 0, Whence: io.SeekEnd, ExpectedFinalPosition: 150},
		{Offset: 0, Whence: io.SeekStart, ExpectedFinalPosition: 0},
	}
	for _, seek := range seeks {
		doCheckedSeek(t, stream, seek)
	}
}

func TestStream__SeekPastEnd(t *testing.T) {
	stream := openStreamWithData(t, labdisktest.SequenceBytes(20))
	defer stream.Close()

	doCheckedSeek(t, stream, SeekInfo{Offset: 5, Whence: io.SeekStart, ExpectedFinalPosition: 5})

	where, err := stream.Seek(1, io.SeekEnd)
	assert.ErrorIs(t, err, errors.ErrInvalidPos)
	assert.EqualValues(t, 5, where, "failed seek should report the unchanged position")

	_, err = stream.Seek(0, 17)
	assert.ErrorIs(t, err, errors.ErrInvalidPos)
}

func TestStream__ReadFromAndWriteTo(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	data := labdisktest.SequenceBytes(150)

	stream, err := filestream.Open(fs, "copy", true)
	require.NoError(t, err)
	n, err := stream.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, 150, n)
	require.NoError(t, stream.Close())

	stream, err = filestream.Open(fs, "copy", true)
	require.NoError(t, err, "opening an existing file with create=true failed")
	defer stream.Close()

	output := bytes.Buffer{}
	n, err = stream.WriteTo(&output)
	require.NoError(t, err)
	assert.EqualValues(t, 150, n)
	assert.Equal(t, data, output.Bytes())
}

func TestStream__ReadFromTooBig(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	stream, err := filestream.Open(fs, "big", true)
	require.NoError(t, err)
	defer stream.Close()

	n, err := stream.ReadFrom(bytes.NewReader(make([]byte, 500)))
	assert.ErrorIs(t, err, errors.ErrTooBig)
	assert.EqualValues(t, 192, n)

	length, err := stream.Length()
	require.NoError(t, err)
	assert.EqualValues(t, 192, length)
}

func TestStream__Close(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	stream, err := filestream.Open(fs, "a", true)
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	assert.ErrorIs(t, stream.Close(), errors.ErrNotFound, "double close should fail")

	_, err = stream.Read(make([]byte, 1))
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = stream.Write([]byte{1})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// The handle was released, so the file can be opened again.
	again, err := filestream.Open(fs, "a", false)
	require.NoError(t, err)
	assert.Equal(t, stream.Handle(), again.Handle())
	require.NoError(t, again.Close())
}

func TestOpen__Missing(t *testing.T) {
	fs := labdisktest.FormatDefaultVolume(t)
	_, err := filestream.Open(fs, "missing", false)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
