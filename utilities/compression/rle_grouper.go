package compression

import (
	"bufio"
	"errors"
	"io"
)

// ByteRun is a single run of a particular byte value.
type ByteRun struct {
	Byte byte
	// RunLength gives the number of times the byte occurs in the run (not the
	// number of times it's repeated). It's 0 only for [InvalidRLERun].
	RunLength int
}

// InvalidRLERun is returned by [RLEGrouper.GetNextRun] at the end of the input
// or on error.
var InvalidRLERun = ByteRun{Byte: 0, RunLength: 0}

// RLEGrouper splits a byte stream into runs of identical bytes.
type RLEGrouper struct {
	rd *bufio.Reader
}

func NewRLEGrouper(rd io.Reader) RLEGrouper {
	return RLEGrouper{rd: bufio.NewReader(rd)}
}

// GetNextRun returns the next run in the stream. At the end of the stream it
// returns [InvalidRLERun] and io.EOF.
func (grouper RLEGrouper) GetNextRun() (ByteRun, error) {
	firstByte, err := grouper.rd.ReadByte()
	if err != nil {
		return InvalidRLERun, err
	}

	runLength := 1
	for {
		currentByte, err := grouper.rd.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return InvalidRLERun, err
		}
		if currentByte != firstByte {
			// Start of the next run; leave it for the next call.
			_ = grouper.rd.UnreadByte()
			break
		}
		runLength++
	}
	return ByteRun{Byte: firstByte, RunLength: runLength}, nil
}
