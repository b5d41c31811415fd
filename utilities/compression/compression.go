package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// CompressedExtension is the file name extension of compressed images.
const CompressedExtension = ".gz"

// IsCompressedPath tells whether the image at `path` is stored compressed.
func IsCompressedPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), CompressedExtension)
}

type countingWriter struct {
	output       io.Writer
	bytesWritten int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.output.Write(p)
	w.bytesWritten += int64(n)
	return n, err
}

// CompressImage compresses a volume image using RLE8 and gzip.
//
// The returned int64 gives the number of bytes written to the output stream. If
// an error occurred, the value is undefined and should not be used.
func CompressImage(input io.Reader, output io.Writer) (int64, error) {
	counter := &countingWriter{output: output}

	// Images are at most 255 blocks so the speed difference between the
	// default and the best compression levels doesn't matter.
	gzWriter, err := gzip.NewWriterLevel(counter, gzip.BestCompression)
	if err != nil {
		return 0, err
	}

	_, compressErr := CompressRLE8(input, gzWriter)
	// The gzip footer is only written on Close, so this must happen before we
	// report the size.
	closeErr := gzWriter.Close()
	if compressErr != nil || closeErr != nil {
		return counter.bytesWritten, multierror.Append(compressErr, closeErr)
	}
	return counter.bytesWritten, nil
}

// DecompressImage takes a gzipped, RLE8-encoded volume image and expands it to
// the original raw bytes.
//
// The returned int64 gives the number of bytes written to the output (i.e. the
// expanded size of the image). If an error occurred, the value is undefined and
// should not be used.
func DecompressImage(input io.Reader, output io.Writer) (int64, error) {
	gzReader, err := gzip.NewReader(input)
	if err != nil {
		return 0, err
	}
	defer gzReader.Close()
	return DecompressRLE8(gzReader, output)
}

// DecompressImageToBytes is a convenience wrapper around [DecompressImage] that
// returns the expanded image in a new byte slice.
func DecompressImageToBytes(input io.Reader) ([]byte, error) {
	buffer := bytes.Buffer{}
	_, err := DecompressImage(input, &buffer)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
