package compression

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// maxRunPerGroup is the longest run one RLE8 group can encode: two literal
// bytes plus up to 255 repeats.
const maxRunPerGroup = 257

// CompressRLE8 reads bytes from the input and writes RLE8-encoded data to the
// output until the input is exhausted. It returns the number of bytes written.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	grouper := NewRLEGrouper(input)
	totalBytesWritten := int64(0)

	for {
		run, err := grouper.GetNextRun()
		if errors.Is(err, io.EOF) {
			return totalBytesWritten, nil
		} else if err != nil {
			return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		for run.RunLength > 0 {
			var group []byte
			switch {
			case run.RunLength == 1:
				group = []byte{run.Byte}
				run.RunLength = 0
			case run.RunLength > maxRunPerGroup:
				group = []byte{run.Byte, run.Byte, 255}
				run.RunLength -= maxRunPerGroup
			default:
				group = []byte{run.Byte, run.Byte, byte(run.RunLength - 2)}
				run.RunLength = 0
			}

			n, err := output.Write(group)
			totalBytesWritten += int64(n)
			if err != nil {
				return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
			}
		}
	}
}

// DecompressRLE8 is the inverse of [CompressRLE8]. It returns the number of
// bytes written to the output.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	lastByteRead := -1
	totalBytesWritten := int64(0)

	for {
		currentByte, err := source.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return totalBytesWritten, nil
			}
			return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		var currentOutput []byte
		if int(currentByte) == lastByteRead {
			// Second byte of a pair; the next one is the repeat count.
			repeatCountByte, err := source.ReadByte()
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = fmt.Errorf(
						"%w: missing repeat count after two %02x bytes",
						io.ErrUnexpectedEOF,
						uint(lastByteRead),
					)
				}
				return totalBytesWritten, err
			}

			// The first byte of the pair was already written, so this is one
			// more than the repeat count.
			currentOutput = bytes.Repeat([]byte{currentByte}, int(repeatCountByte)+1)

			// A group never continues into the next one, even if the byte is
			// the same.
			lastByteRead = -1
		} else {
			lastByteRead = int(currentByte)
			currentOutput = []byte{currentByte}
		}

		n, err := output.Write(currentOutput)
		totalBytesWritten += int64(n)
		if err != nil {
			return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
		}
	}
}
