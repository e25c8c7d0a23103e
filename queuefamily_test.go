package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func family(index int, flags vk.QueueFlagBits, count uint32) *QueueFamily {
	return &QueueFamily{
		Index:                   index,
		VKQueueFamilyProperties: vk.QueueFamilyProperties{QueueFlags: vk.QueueFlags(flags), QueueCount: count},
	}
}

func TestQueueFamilyCapabilities(t *testing.T) {
	all := family(0, vk.QueueGraphicsBit|vk.QueueComputeBit|vk.QueueTransferBit, 16)
	assert.True(t, all.IsGraphics())
	assert.True(t, all.IsCompute())
	assert.True(t, all.Supports(vk.QueueGraphicsBit|vk.QueueTransferBit))
	assert.False(t, all.Supports(vk.QueueSparseBindingBit))
	assert.Equal(t, "0: graphics|compute|transfer x16", all.String())

	transfer := family(2, vk.QueueTransferBit, 1)
	assert.False(t, transfer.IsGraphics())
	assert.True(t, transfer.IsTransfer())
	assert.Equal(t, "2: transfer x1", transfer.String())

	assert.Equal(t, "3: none x0", family(3, 0, 0).String())
}

func TestQueueFamilyFilters(t *testing.T) {
	families := QueueFamilySlice{
		family(0, vk.QueueGraphicsBit|vk.QueueComputeBit|vk.QueueTransferBit, 16),
		family(1, vk.QueueComputeBit|vk.QueueTransferBit, 8),
		family(2, vk.QueueTransferBit, 2),
	}

	assert.Equal(t, []int{0}, families.FilterGraphics().Indices())
	assert.Equal(t, []int{0, 1}, families.FilterCompute().Indices())
	assert.Equal(t, []int{0, 1, 2}, families.FilterTransfer().Indices())
	assert.Equal(t, []int{1}, families.FilterFlags(vk.QueueComputeBit).Filter(func(q *QueueFamily) bool {
		return !q.IsGraphics()
	}).Indices())

	assert.Equal(t, 1, families.FilterCompute().Filter(func(q *QueueFamily) bool { return q.QueueCount() == 8 }).First().Index)
	assert.Nil(t, families.FilterFlags(vk.QueueSparseBindingBit).First())
	assert.Empty(t, families.FilterFlags(vk.QueueSparseBindingBit).Indices())

	// no surfaces to check leaves every family
	assert.Len(t, families.FilterPresent(), 3)
}
