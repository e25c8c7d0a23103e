/*
Package vkg wraps the parts of Vulkan a small game engine needs and uses them to draw a
spinning, textured model into one or more windows.

Vulkan leaves almost everything OpenGL used to manage to the application: where data lives,
when it moves to the GPU and how the CPU and GPU stay out of each other's way. The wrappers in
this package keep the native handles visible in fields prefixed with 'VK', so anything the
wrappers don't cover can still be done with the raw API.

Native Vulkan terms
	Instance	the vulkan runtime instance
	PhysicalDevice	the physical hardware device
	Device		the logical device most of the API targets
	Queue		where command buffers are submitted and images presented
	Swapchain	the images a window surface displays, in turn
	Framebuffer	the attachments one render pass instance draws into
	Fence		a signal the GPU raises and the CPU can wait on
	Semaphore	a signal the GPU raises and other GPU work waits on
	DeviceMemory	an allocation buffers and images are bound into
	DescriptorSet	the resources a shader reads, per a DescriptorSetLayout

Frames in flight

Recording frame n+1 while the GPU still renders frame n is what keeps both busy. Each frame
in flight owns a fence, an image available semaphore, a render finished semaphore and a command
buffer, together called a slot. The frame package runs the protocol over those slots:

	wait slot fence -> acquire image -> reset fence -> record -> submit -> present -> next slot

The fence of a slot is created signaled so the first pass through it doesn't block. When the
swapchain reports it is out of date or suboptimal, or the window was resized, the swapchain and
everything sized by it are rebuilt. The slots survive a rebuild.

Objects provided by this package

Client:
	creates the windows, picks a device able to present to all of them and runs one Renderer
	per window, each on its own goroutine when there is more than one
Renderer:
	owns a window's pipeline, uniform buffers, descriptor sets, geometry and texture, and
	records the draw for each frame
RenderTarget:
	the swapchain, depth image, render pass and framebuffers of a window
ResourceManager:
	carves buffers and images out of a few large device memory pools, staging data into device
	local memory where needed
DescriptorLayoutCache:
	creates each descriptor set layout once per device

Submission and presentation go through the device's QueueLock, every window shares it.
*/
package vkg
