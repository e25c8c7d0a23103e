package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	assert.Equal(t, uint64(12), makeAlignUp(12, 3))
	assert.Equal(t, uint64(12), makeAlignUp(10, 3))
	assert.Equal(t, uint64(7), makeAlignUp(7, 1))
	assert.Equal(t, uint64(7), makeAlignUp(7, 0))
}

func TestAllocator(t *testing.T) {
	a := LinearAllocator{Size: 1024}

	assert.Nil(t, a.Allocate(2048, 1))

	first := a.Allocate(512, 1)
	require.NotNil(t, first)
	assert.Equal(t, uint64(0), first.Offset)

	assert.Nil(t, a.Allocate(768, 1))

	second := a.Allocate(500, 1)
	require.NotNil(t, second)
	assert.Equal(t, uint64(512), second.Offset)

	assert.Nil(t, a.Allocate(50, 1))

	tail := a.Allocate(5, 1)
	require.NotNil(t, tail)
	assert.Equal(t, uint64(1012), tail.Offset)

	assert.Nil(t, a.Allocate(20, 1))

	a.Free(second)
	again := a.Allocate(500, 1)
	require.NotNil(t, again)
	assert.Equal(t, uint64(512), again.Offset)

	a.Free(first)
	head := a.Allocate(20, 1)
	require.NotNil(t, head)
	assert.Equal(t, uint64(0), head.Offset)

	assert.NotNil(t, a.Allocate(40, 1))
	assert.NotNil(t, a.Allocate(12, 1))
	assert.Nil(t, a.Allocate(500, 1))
	assert.NotNil(t, a.Allocate(5, 1))
	assert.Equal(t, uint64(500+5+20+40+12+5), a.Used())
}

func TestAllocatorAlignment(t *testing.T) {
	a := LinearAllocator{Size: 256}

	first := a.Allocate(10, 64)
	require.NotNil(t, first)

	second := a.Allocate(10, 64)
	require.NotNil(t, second)
	assert.Equal(t, uint64(64), second.Offset)

	third := a.Allocate(100, 64)
	require.NotNil(t, third)
	assert.Equal(t, uint64(128), third.Offset)

	assert.Nil(t, a.Allocate(100, 64))
}
