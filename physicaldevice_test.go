package vkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsAll(t *testing.T) {
	have := []string{SwapchainExtension, "VK_KHR_maintenance1"}
	assert.True(t, containsAll(have, []string{SwapchainExtension}))
	assert.True(t, containsAll(have, nil))
	assert.False(t, containsAll(have, []string{SwapchainExtension, "VK_KHR_ray_query"}))
	assert.False(t, containsAll(nil, []string{SwapchainExtension}))
}

func TestBestScore(t *testing.T) {
	integrated := &PhysicalDevice{DeviceName: "integrated"}
	discrete := &PhysicalDevice{DeviceName: "discrete"}
	other := &PhysicalDevice{DeviceName: "other"}

	best, ok := BestScore([]DeviceScore{
		{Device: integrated, Extensions: true, Surfaces: 2},
		{Device: discrete, Extensions: true, Surfaces: 1, Discrete: true},
	})
	require.True(t, ok)
	assert.Same(t, integrated, best.Device, "more surfaces beats discrete")

	best, ok = BestScore([]DeviceScore{
		{Device: integrated, Extensions: true, Surfaces: 2},
		{Device: discrete, Extensions: true, Surfaces: 2, Discrete: true},
	})
	require.True(t, ok)
	assert.Same(t, discrete, best.Device, "discrete wins a tie")

	best, ok = BestScore([]DeviceScore{
		{Device: discrete, Extensions: false, Surfaces: 3, Discrete: true},
		{Device: other, Extensions: true, Surfaces: 1},
	})
	require.True(t, ok)
	assert.Same(t, other, best.Device, "missing extensions disqualify")

	_, ok = BestScore([]DeviceScore{
		{Device: integrated, Extensions: true, Surfaces: 0},
	})
	assert.False(t, ok)

	_, ok = BestScore(nil)
	assert.False(t, ok)
}

func TestPickPhysicalDeviceNoDevices(t *testing.T) {
	_, err := PickPhysicalDevice(nil, nil, []string{SwapchainExtension})
	assert.Error(t, err)
}
