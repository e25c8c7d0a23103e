package vkg

import (
	"fmt"

	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type Queue struct {
	Device      *Device
	QueueFamily *QueueFamily
	VKQueue     vk.Queue
}

func (q *Queue) WaitIdle() error {
	return vk.Error(vk.QueueWaitIdle(q.VKQueue))
}

func commandBuffers(buffers []*CommandBuffer) []vk.CommandBuffer {
	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}
	return b
}

// SubmitWaitIdle submits the buffers and waits for the queue to drain
func (q *Queue) SubmitWaitIdle(buffers ...*CommandBuffer) error {
	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(buffers))
	submitInfo.PCommandBuffers = commandBuffers(buffers)

	q.Device.QueueLock.Lock()
	defer q.Device.QueueLock.Unlock()

	err := vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence))
	if err != nil {
		return err
	}

	return q.WaitIdle()
}

// SubmitWithFence submits the buffers, the fence is signaled once they complete
func (q *Queue) SubmitWithFence(fence *Fence, buffers ...*CommandBuffer) error {
	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(buffers))
	submitInfo.PCommandBuffers = commandBuffers(buffers)

	q.Device.QueueLock.Lock()
	defer q.Device.QueueLock.Unlock()

	return vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, fence.VKFence))
}

// SubmitFrame submits one frame's command buffer. It waits on the image
// available semaphore at the color output stage and signals render finished
// and the fence. The caller must hold Device.QueueLock.
func (q *Queue) SubmitFrame(cmd *CommandBuffer, wait, signal *Semaphore, fence *Fence) error {
	submitInfo := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{wait.VKSemaphore},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal.VKSemaphore},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.VKCommandBuffer},
	}}

	return vk.Error(vk.QueueSubmit(q.VKQueue, 1, submitInfo, fence.VKFence))
}

// Present queues the swapchain image for display once wait is signaled. The
// caller must hold Device.QueueLock.
func (q *Queue) Present(swapchain *Swapchain, image uint32, wait *Semaphore) (frame.Staleness, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.VKSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain.VKSwapchain},
		PImageIndices:      []uint32{image},
	}

	return staleness(vk.QueuePresent(q.VKQueue, &presentInfo))
}

// staleness maps the swapchain results that call for a rebuild, any other
// failure is returned as an error
func staleness(res vk.Result) (frame.Staleness, error) {
	switch res {
	case vk.Success:
		return frame.Fresh, nil
	case vk.Suboptimal:
		return frame.Suboptimal, nil
	case vk.ErrorOutOfDate:
		return frame.OutOfDate, nil
	}
	return frame.Fresh, errors.WithStack(vk.Error(res))
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %s}", q.Device.String(), q.QueueFamily.String())
}
