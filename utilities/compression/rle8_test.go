package compression_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	c "github.com/dargueta/labdisk/utilities/compression"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRLE8__Basic(t *testing.T) {
	tests := []struct {
		Name           string
		Input          []byte
		ExpectedOutput []byte
	}{
		{"empty", []byte{}, []byte{}},
		{"run with two only", []byte{4, 4}, []byte{4, 4, 0}},
		{"no runs", []byte{0, 1, 2, 3, 4}, []byte{0, 1, 2, 3, 4}},
		{"two at end", []byte{6, 1, 3, 0, 0}, []byte{6, 1, 3, 0, 0, 0}},
		{"three at end", []byte{6, 1, 0, 0, 0}, []byte{6, 1, 0, 0, 1}},
		{"short run", []byte{9, 5, 5, 5, 5, 5, 3, 7}, []byte{9, 5, 5, 3, 3, 7}},
		{
			"adjacent runs",
			[]byte{9, 5, 5, 5, 5, 5, 5, 3, 3, 3, 3, 7, 2, 6},
			[]byte{9, 5, 5, 4, 3, 3, 2, 7, 2, 6},
		},
		{
			"single long run",
			bytes.Repeat([]byte{5}, 1024),
			[]byte{5, 5, 255, 5, 5, 255, 5, 5, 255, 5, 5, 251},
		},
		{"257", bytes.Repeat([]byte{8}, 257), []byte{8, 8, 255}},
		{"258", bytes.Repeat([]byte{8}, 258), []byte{8, 8, 255, 8}},
		{"259", bytes.Repeat([]byte{8}, 259), []byte{8, 8, 255, 8, 8, 0}},
	}

	for _, test := range tests {
		t.Run(
			test.Name,
			func(t *testing.T) {
				outputBuffer := make([]byte, len(test.ExpectedOutput)*2)
				outputWriter := bytewriter.New(outputBuffer)

				n, err := c.CompressRLE8(bytes.NewBuffer(test.Input), outputWriter)
				require.NoError(t, err)
				assert.EqualValues(t, len(test.ExpectedOutput), n, "bytes written is wrong")
				assert.Equal(t, test.ExpectedOutput, outputBuffer[:n], "output data is wrong")
			},
		)
	}
}

func TestRLE8RoundTrip(t *testing.T) {
	randomData := make([]byte, 1852)
	_, err := rand.Read(randomData)
	require.NoError(t, err)

	tests := []struct {
		Name string
		Data []byte
	}{
		{"completely random", randomData},
		{"entirely nulls", make([]byte, 571)},
		{"entirely non-null run", bytes.Repeat([]byte{182}, 934)},
		{"empty", []byte{}},
	}

	for _, test := range tests {
		t.Run(
			test.Name,
			func(t *testing.T) {
				// Random data can come out larger than it went in.
				compressedBuffer := make([]byte, len(test.Data)*2)
				compressedWriter := bytewriter.New(compressedBuffer)

				n, err := c.CompressRLE8(bytes.NewBuffer(test.Data), compressedWriter)
				require.NoError(t, err, "unexpected error while compressing")
				t.Logf("compressed %d to %d", len(test.Data), n)

				outputBuffer := make([]byte, len(test.Data))
				outputWriter := bytewriter.New(outputBuffer)
				n, err = c.DecompressRLE8(
					bytes.NewReader(compressedBuffer[:n]), outputWriter)
				require.NoError(t, err, "unexpected error while decompressing")
				assert.EqualValues(t, len(test.Data), n, "decompressed size is wrong")
				assert.Equal(t, test.Data, outputBuffer, "decompressed data is wrong")
			},
		)
	}
}

func TestRLE8Decompress__MissingRepeatCount(t *testing.T) {
	decompressed := make([]byte, 16)
	writer := bytewriter.New(decompressed)

	_, err := c.DecompressRLE8(bytes.NewReader([]byte{9, 1, 4, 4}), writer)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
