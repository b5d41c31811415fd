package testing

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/dargueta/labdisk/file_systems/common/blockstore"
	"github.com/dargueta/labdisk/utilities/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// CreateRandomImage creates an image with the given number of blocks and bytes
// per block. It is guaranteed to either return a valid slice or fail the test
// and abort.
func CreateRandomImage(bytesPerBlock, totalBlocks uint, t *testing.T) []byte {
	backingData := make([]byte, bytesPerBlock*totalBlocks)

	_, err := rand.Read(backingData)
	require.NoErrorf(
		t,
		err,
		"failed to initialize %d blocks of size %d with random bytes",
		totalBlocks,
		bytesPerBlock,
	)
	return backingData
}

// CreateLoadedStore creates a block store holding a copy of `backingData`, with
// no dirty blocks. Pass nil for `backingData` to get random contents.
func CreateLoadedStore(
	bytesPerBlock,
	totalBlocks uint,
	backingData []byte,
	t *testing.T,
) *blockstore.Store {
	if backingData == nil {
		backingData = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}

	store := blockstore.New(bytesPerBlock, totalBlocks)
	require.NoError(t, store.Load(bytes.NewReader(backingData)), "failed to load store")
	assert.EqualValues(t, bytesPerBlock, store.BytesPerBlock(), "wrong bytes per block")
	assert.EqualValues(t, totalBlocks, store.TotalBlocks(), "wrong total blocks")
	assert.EqualValues(t, 0, store.DirtyCount(), "loaded store has dirty blocks")
	return store
}

// LoadDiskImage takes a compressed image and returns a stream to access the
// expanded data.
//
//   - Writes to the stream do not affect `compressedImageBytes`.
//   - The size of the stream is fixed to `bytesPerBlock * totalBlocks`.
func LoadDiskImage(
	t *testing.T, compressedImageBytes []byte, bytesPerBlock, totalBlocks uint,
) io.ReadWriteSeeker {
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	imageBytes, err := compression.DecompressImageToBytes(
		bytes.NewReader(compressedImageBytes))
	require.NoError(t, err)

	require.Equal(
		t,
		totalBlocks*bytesPerBlock,
		uint(len(imageBytes)),
		"uncompressed image is wrong size",
	)
	return bytesextra.NewReadWriteSeeker(imageBytes)
}

// SequenceBytes returns `count` bytes following the pattern 0, 1, ..., 255, 0,
// 1, ...
func SequenceBytes(count int) []byte {
	data := make([]byte, count)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}
