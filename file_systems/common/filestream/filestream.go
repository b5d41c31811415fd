// Package filestream adapts an open file on a volume to the standard io
// interfaces, so host data can be copied in and out with io.Copy and friends.
package filestream

import (
	"fmt"
	"io"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/errors"
)

// Stream is an open file on a [labdisk.FileSystem]. It implements
// [io.ReadWriteSeeker] and [io.Closer], along with the optional copying
// interfaces.
type Stream struct {
	fs     labdisk.FileSystem
	handle labdisk.Handle
	closed bool
}

var _ io.ReadWriteSeeker = (*Stream)(nil)
var _ io.Closer = (*Stream)(nil)
var _ io.WriterTo = (*Stream)(nil)
var _ io.ReaderFrom = (*Stream)(nil)
var _ io.StringWriter = (*Stream)(nil)

// New wraps a handle that's already open. Closing the stream closes the handle.
func New(fs labdisk.FileSystem, handle labdisk.Handle) *Stream {
	return &Stream{
		fs:     fs,
		handle: handle,
	}
}

// Open opens the named file and wraps the new handle. If `create` is true and
// the file doesn't exist, it's created first.
func Open(fs labdisk.FileSystem, name string, create bool) (*Stream, error) {
	if create {
		err := fs.Create(name)
		if err != nil && errors.CodeOf(err) != errors.Exists {
			return nil, err
		}
	}

	handle, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	return New(fs, handle), nil
}

func (stream *Stream) Handle() labdisk.Handle {
	return stream.handle
}

func (stream *Stream) checkOpen() error {
	if stream.closed {
		return errors.ErrNotFound.WithMessage(
			fmt.Sprintf("stream for handle %d is closed", stream.handle),
		)
	}
	return nil
}

// Read implements [io.Reader]. It returns [io.EOF] once the position reaches
// the end of the file.
func (stream *Stream) Read(buffer []byte) (int, error) {
	err := stream.checkOpen()
	if err != nil {
		return 0, err
	}

	n, err := stream.fs.Read(stream.handle, buffer)
	if err != nil {
		return n, err
	}
	if n == 0 && len(buffer) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements [io.Writer]. A short write always comes with an error.
func (stream *Stream) Write(data []byte) (int, error) {
	err := stream.checkOpen()
	if err != nil {
		return 0, err
	}
	return stream.fs.Write(stream.handle, data)
}

func (stream *Stream) WriteString(data string) (int, error) {
	return stream.Write([]byte(data))
}

// Seek implements [io.Seeker]. Unlike most streams, the resulting position
// can't be past the end of the file.
func (stream *Stream) Seek(offset int64, whence int) (int64, error) {
	err := stream.checkOpen()
	if err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base, err = stream.fs.Tell(stream.handle)
	case io.SeekEnd:
		base, err = stream.fs.Length(stream.handle)
	default:
		return 0, errors.ErrInvalidPos.WithMessage(
			fmt.Sprintf("invalid `whence`: %d", whence),
		)
	}
	if err != nil {
		return 0, err
	}

	position := base + offset
	err = stream.fs.Seek(stream.handle, position)
	if err != nil {
		current, _ := stream.fs.Tell(stream.handle)
		return current, err
	}
	return position, nil
}

// Tell gives the current position in the file.
func (stream *Stream) Tell() (int64, error) {
	err := stream.checkOpen()
	if err != nil {
		return 0, err
	}
	return stream.fs.Tell(stream.handle)
}

func (stream *Stream) Length() (int64, error) {
	err := stream.checkOpen()
	if err != nil {
		return 0, err
	}
	return stream.fs.Length(stream.handle)
}

// Close implements [io.Closer]. Closing a stream twice is an error.
func (stream *Stream) Close() error {
	err := stream.checkOpen()
	if err != nil {
		return err
	}
	stream.closed = true
	return stream.fs.Close(stream.handle)
}

// WriteTo implements [io.WriterTo]. It copies from the current position to the
// end of the file, one block at a time.
func (stream *Stream) WriteTo(output io.Writer) (int64, error) {
	buffer := make([]byte, stream.fs.BlockSize())
	total := int64(0)

	for {
		n, err := stream.Read(buffer)
		if err == io.EOF {
			return total, nil
		} else if err != nil {
			return total, err
		}

		written, err := output.Write(buffer[:n])
		total += int64(written)
		if err != nil {
			return total, err
		}
	}
}

// ReadFrom implements [io.ReaderFrom]. It copies everything from `input` into
// the file at the current position, one block at a time. If the file fills
// up, the bytes that fit stay written and the error is returned.
func (stream *Stream) ReadFrom(input io.Reader) (int64, error) {
	buffer := make([]byte, stream.fs.BlockSize())
	total := int64(0)

	for {
		n, readErr := input.Read(buffer)
		if n > 0 {
			written, err := stream.Write(buffer[:n])
			total += int64(written)
			if err != nil {
				return total, err
			}
		}

		if readErr == io.EOF {
			return total, nil
		} else if readErr != nil {
			return total, readErr
		}
	}
}
