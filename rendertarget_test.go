package vkg

import (
	"testing"

	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestRenderTargetSurface(t *testing.T) {
	target := &RenderTarget{
		Swapchain:    &Swapchain{Extent: vk.Extent2D{Width: 1920, Height: 1080}},
		Framebuffers: make([]vk.Framebuffer, 3),
	}

	var _ frame.Surface = target
	assert.Equal(t, 3, target.ImageCount())
	assert.Equal(t, frame.Extent{Width: 1920, Height: 1080}, target.Extent())
	assert.InDelta(t, 16.0/9.0, target.Aspect(), 1e-6)

	target.Swapchain.Extent.Height = 0
	assert.Equal(t, float32(1), target.Aspect())
}

func TestAcquireRejectsForeignSignal(t *testing.T) {
	target := &RenderTarget{Swapchain: &Swapchain{}}
	_, _, err := target.AcquireNextImage("not a semaphore")
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrUnsupported))
}

func TestHandleConversions(t *testing.T) {
	_, err := asSemaphore(nil)
	assert.True(t, errors.Is(err, frame.ErrUnsupported))
	_, err = asSemaphore((*Semaphore)(nil))
	assert.Error(t, err)

	_, err = asFence(nil)
	assert.True(t, errors.Is(err, frame.ErrUnsupported))

	_, err = asCommandBuffer(42)
	assert.True(t, errors.Is(err, frame.ErrUnsupported))

	sema := &Semaphore{}
	got, err := asSemaphore(sema)
	require.NoError(t, err)
	assert.Same(t, sema, got)

	cmd := &CommandBuffer{}
	gotCmd, err := asCommandBuffer(cmd)
	require.NoError(t, err)
	assert.Same(t, cmd, gotCmd)
}

func TestDeviceAdapterRejectsForeignHandles(t *testing.T) {
	d := &vkgDevice{}
	err := d.Submit("cmd", &Semaphore{}, &Semaphore{}, &Fence{})
	assert.True(t, errors.Is(err, frame.ErrUnsupported))

	err = d.Submit(&CommandBuffer{}, &Semaphore{}, &Semaphore{}, nil)
	assert.True(t, errors.Is(err, frame.ErrUnsupported))

	_, err = d.Present(0, nil)
	assert.True(t, errors.Is(err, frame.ErrUnsupported))
}

func TestReleaseEmptySlot(t *testing.T) {
	s := &vkgSlots{}
	assert.NotPanics(t, func() { s.ReleaseSlot(&frame.Slot{Index: 1}) })
}
