package allocator_test

import (
	"testing"

	"github.com/dargueta/labdisk/errors"
	c "github.com/dargueta/labdisk/file_systems/common"
	"github.com/dargueta/labdisk/file_systems/common/allocator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew__ReservedBlocksInUse(t *testing.T) {
	alloc := allocator.New(16, 2)
	assert.True(t, alloc.IsAllocated(0))
	assert.True(t, alloc.IsAllocated(1))
	assert.False(t, alloc.IsAllocated(2))
	assert.False(t, alloc.IsAllocated(16), "out-of-range block can't be allocated")
	assert.EqualValues(t, 14, alloc.FreeCount())
}

func TestAllocateSingle__FirstFit(t *testing.T) {
	alloc := allocator.New(6, 2)

	for expected := c.PhysicalBlock(2); expected < 6; expected++ {
		block, err := alloc.AllocateSingle()
		require.NoError(t, err)
		assert.Equal(t, expected, block)
	}
	assert.EqualValues(t, 0, alloc.FreeCount())

	_, err := alloc.AllocateSingle()
	assert.ErrorIs(t, err, errors.ErrNoSpace)
	assert.ErrorIs(t, err, errors.ErrNoFreeBlocks)

	// Freeing something in the middle makes it the next block handed out.
	require.NoError(t, alloc.FreeSingle(3))
	block, err := alloc.AllocateSingle()
	require.NoError(t, err)
	assert.EqualValues(t, 3, block)
}

func TestFreeSingle__Errors(t *testing.T) {
	alloc := allocator.New(8, 2)

	err := alloc.FreeSingle(1)
	assert.ErrorIs(t, err, errors.ErrFail, "freeing a reserved block should fail")
	assert.True(t, alloc.IsAllocated(1))

	err = alloc.FreeSingle(8)
	assert.ErrorIs(t, err, errors.ErrFail, "freeing past the end should fail")

	err = alloc.FreeSingle(5)
	assert.ErrorIs(t, err, errors.ErrFail, "double free should fail")
}

func TestEncode__MSBFirst(t *testing.T) {
	alloc := allocator.New(12, 2)
	alloc.AllocationBitmap.Set(9, true)
	alloc.AllocationBitmap.Set(7, true)

	encoded := []byte{0xff, 0xff, 0xff}
	require.NoError(t, alloc.Encode(encoded))
	assert.Equal(
		t,
		[]byte{0b11000001, 0b01000000, 0},
		encoded,
		"bitmap encoded in the wrong bit order",
	)

	assert.Error(t, alloc.Encode(make([]byte, 1)), "short buffer should fail")
}

func TestDecode(t *testing.T) {
	alloc := allocator.New(12, 3)
	require.NoError(t, alloc.Decode([]byte{0b01001000, 0b00100000}))

	for i := 0; i < 12; i++ {
		expected := i < 3 || i == 4 || i == 10
		assert.Equal(t, expected, alloc.IsAllocated(c.PhysicalBlock(i)), "bit %d is wrong", i)
	}

	assert.Error(t, alloc.Decode([]byte{0}), "short buffer should fail")
}

func TestEncodeDecodeIdentity(t *testing.T) {
	original := allocator.New(255, 2)
	for i := 0; i < 40; i++ {
		_, err := original.AllocateSingle()
		require.NoError(t, err)
	}
	require.NoError(t, original.FreeSingle(17))

	encoded := make([]byte, 64)
	require.NoError(t, original.Encode(encoded))

	restored := allocator.New(255, 2)
	require.NoError(t, restored.Decode(encoded))
	assert.Equal(t, original.FreeCount(), restored.FreeCount())
	for i := 0; i < 255; i++ {
		block := c.PhysicalBlock(i)
		assert.Equal(t, original.IsAllocated(block), restored.IsAllocated(block), "block %d", i)
	}
}
