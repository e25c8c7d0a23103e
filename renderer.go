package vkg

import (
	"context"
	"image"
	"time"

	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/igor-barinov/vulkan-game-engine/mesh"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// poolSlack covers alignment padding inside the resource pools
const poolSlack = 1 << 16

// uniformStride is the pool space reserved per uniform buffer, 256 is the
// largest minUniformBufferOffsetAlignment a device may report
const uniformStride = 256

// ClearColor is the color every frame starts from
var ClearColor = [4]float32{0, 0, 0, 1}

// ShaderSource is a SPIR-V file and the stage it runs in
type ShaderSource struct {
	Path  string
	Stage vk.ShaderStageFlagBits
}

// RendererOptions configures one window's renderer
type RendererOptions struct {
	Name           string
	FramesInFlight int
	PresentMode    vk.PresentMode
	Shaders        []ShaderSource
	Mesh           *mesh.Mesh
	Texture        image.Image
	Camera         mesh.Camera
	Layouts        *DescriptorLayoutCache
}

// Renderer draws one textured mesh into one window. It records command
// buffers for its frame.Tracker and owns every per window resource.
type Renderer struct {
	Name     string
	Window   *Window
	Target   *RenderTarget
	Pipeline *GraphicsPipeline
	Layout   *PipelineLayout
	Tracker  *frame.Tracker
	Camera   mesh.Camera

	device    *Device
	graphics  *Queue
	present   *Queue
	pool      *CommandPool
	resources *ResourceManager

	pipelineConfig *GraphicsPipelineConfig
	pipelineCache  *PipelineCache

	descriptorPool *DescriptorPool
	sets           []*DescriptorSet
	uniforms       []*BufferResource

	vertices   *BufferResource
	indices    *BufferResource
	indexCount int

	texture     *ImageResource
	textureView *ImageView
	sampler     *Sampler

	start time.Time
}

// NewRenderer uploads the mesh and texture, builds the pipeline for the
// window's surface and allocates the frame slots
func NewRenderer(d *Device, graphics, present *Queue, w *Window, opts RendererOptions) (r *Renderer, err error) {
	if opts.Mesh == nil {
		opts.Mesh = mesh.Cube()
	}
	if err := opts.Mesh.Validate(); err != nil {
		return nil, err
	}
	if opts.Texture == nil {
		opts.Texture = WhiteTexel()
	}
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = frame.DefaultFramesInFlight
	}
	if opts.Name == "" {
		opts.Name = w.Title
	}
	if opts.Camera == (mesh.Camera{}) {
		opts.Camera = mesh.DefaultCamera()
	}
	if opts.Layouts == nil {
		return nil, errors.New("renderer requires a descriptor layout cache")
	}

	r = &Renderer{
		Name:     opts.Name,
		Window:   w,
		Camera:   opts.Camera,
		device:   d,
		graphics: graphics,
		present:  present,
	}
	defer func() {
		if err != nil {
			r.Destroy()
			r = nil
		}
	}()

	r.pool, err = d.CreateCommandPool(graphics.QueueFamily)
	if err != nil {
		return r, err
	}
	r.resources = d.CreateResourceManager()

	size := w.Size()
	r.Target, err = NewRenderTarget(d, r.resources, w.VKSurface, graphics, present,
		vk.Extent2D{Width: size.Width, Height: size.Height}, opts.PresentMode)
	if err != nil {
		return r, err
	}

	if err = r.upload(opts.Mesh, opts.Texture); err != nil {
		return r, err
	}

	if err = r.createDescriptors(opts.Layouts, opts.FramesInFlight); err != nil {
		return r, err
	}

	if err = r.createPipeline(opts.Shaders); err != nil {
		return r, err
	}
	r.Target.OnRenderPass = r.rebuildPipeline

	r.Tracker, err = frame.New(frame.Options{
		FramesInFlight: opts.FramesInFlight,
		Lock:           d.QueueLock,
		Name:           r.Name,
		Device:         &vkgDevice{device: d, graphics: graphics, present: present, target: r.Target},
		Surface:        r.Target,
		Recorder:       r,
		Window:         w,
		Slots:          &vkgSlots{device: d, pool: r.pool},
	})
	if err != nil {
		return r, err
	}

	r.resources.LogDetails()
	logger.Infof("%s: renderer ready, %d frames in flight, %d triangles", r.Name, opts.FramesInFlight, opts.Mesh.Triangles())
	return r, nil
}

// upload copies the geometry into device local buffers and the texture into
// a sampled image, both through the staging pool
func (r *Renderer) upload(m *mesh.Mesh, tex image.Image) error {
	vertices := MeshVertices(m.Vertices)
	indices := IndexSliceUint32(m.Indices)
	rgba := ToRGBA(tex)

	geometrySize := uint64(len(vertices.Bytes()) + len(indices.Bytes()))
	textureSize := uint64(len(rgba.Pix))

	staging := geometrySize
	if textureSize > staging {
		staging = textureSize
	}
	if _, err := r.resources.AllocateStagingPool(staging + poolSlack); err != nil {
		return err
	}

	geometry, err := r.resources.AllocateDeviceVertexAndIndexBufferPool("geometry", geometrySize+poolSlack)
	if err != nil {
		return err
	}

	cmd, err := r.pool.AllocateBuffer(vk.CommandBufferLevelPrimary)
	if err != nil {
		return err
	}
	defer r.pool.FreeBuffer(cmd)

	if r.vertices, err = geometry.Upload(vertices, cmd, r.graphics); err != nil {
		return errors.Wrap(err, "uploading vertices")
	}
	if r.indices, err = geometry.Upload(indices, cmd, r.graphics); err != nil {
		return errors.Wrap(err, "uploading indices")
	}
	r.indexCount = len(indices)

	// optimal tiling may pad rows, so the pool gets room for twice the texels
	textures, err := r.resources.AllocateDeviceTexturePool("textures", 2*textureSize+poolSlack)
	if err != nil {
		return err
	}
	if r.texture, err = textures.StageTexture(rgba, cmd, r.graphics); err != nil {
		return errors.Wrap(err, "uploading texture")
	}
	if r.textureView, err = r.texture.CreateImageView(); err != nil {
		return err
	}
	r.sampler, err = r.device.CreateSampler()
	return err
}

// createDescriptors allocates a uniform buffer and a descriptor set per slot,
// each set binds its slot's buffer and the shared texture
func (r *Renderer) createDescriptors(layouts *DescriptorLayoutCache, n int) error {
	layout, err := layouts.Get(SceneLayoutKey, SceneBindings())
	if err != nil {
		return err
	}

	r.Layout, err = r.device.CreatePipelineLayout(layout)
	if err != nil {
		return err
	}

	uniforms, err := r.resources.AllocateHostUniformBufferPool("uniforms", uint64(n*uniformStride)+poolSlack)
	if err != nil {
		return err
	}

	pool := r.device.NewDescriptorPool()
	pool.AddPoolSize(vk.DescriptorTypeUniformBuffer, n)
	pool.AddPoolSize(vk.DescriptorTypeCombinedImageSampler, n)
	if r.descriptorPool, err = r.device.CreateDescriptorPool(pool, n); err != nil {
		return err
	}

	if r.sets, err = r.descriptorPool.AllocateSets(layout, n); err != nil {
		return err
	}

	r.uniforms = make([]*BufferResource, 0, n)
	for i := 0; i < n; i++ {
		ubo, err := uniforms.AllocateBuffer(uint64(mesh.UBOSize), vk.BufferUsageUniformBufferBit)
		if err != nil {
			return errors.Wrapf(err, "uniform buffer %d", i)
		}
		r.uniforms = append(r.uniforms, ubo)

		r.sets[i].AddBuffer(0, vk.DescriptorTypeUniformBuffer, &ubo.Buffer, 0)
		r.sets[i].AddCombinedImageSampler(1, vk.ImageLayoutShaderReadOnlyOptimal, r.textureView.VKImageView, r.sampler.VKSampler)
		r.sets[i].Write()
	}
	return nil
}

func (r *Renderer) createPipeline(shaders []ShaderSource) error {
	var err error
	if r.pipelineCache, err = r.device.CreatePipelineCache(); err != nil {
		return err
	}

	r.pipelineConfig = r.device.CreateGraphicsPipelineConfig()
	for _, s := range shaders {
		if err := r.pipelineConfig.AddShaderStageFromFile(s.Path, "main", s.Stage); err != nil {
			return err
		}
	}
	r.pipelineConfig.AddVertexDescriptor(MeshVertices(nil))
	r.pipelineConfig.SetPipelineLayout(r.Layout)

	r.Pipeline, err = r.device.CreateGraphicsPipeline(r.pipelineCache, r.Target.VKRenderPass, r.Target.Swapchain.Extent, r.pipelineConfig)
	return err
}

// rebuildPipeline replaces the pipeline after the render pass changed
func (r *Renderer) rebuildPipeline(renderPass vk.RenderPass) error {
	p, err := r.device.CreateGraphicsPipeline(r.pipelineCache, renderPass, r.Target.Swapchain.Extent, r.pipelineConfig)
	if err != nil {
		return err
	}
	r.Pipeline.Destroy()
	r.Pipeline = p
	return nil
}

// Record updates the slot's uniform buffer and records the draw into the
// slot's command buffer
func (r *Renderer) Record(slot *frame.Slot, image uint32, fb frame.Framebuffer) error {
	cmd, err := asCommandBuffer(slot.Commands)
	if err != nil {
		return err
	}
	framebuffer, ok := fb.(vk.Framebuffer)
	if !ok {
		return errors.Wrapf(frame.ErrUnsupported, "framebuffer %T", fb)
	}
	if slot.Index >= len(r.sets) {
		return errors.Wrapf(frame.ErrUnsupported, "slot %d of %d descriptor sets", slot.Index, len(r.sets))
	}

	if r.start.IsZero() {
		r.start = time.Now()
	}
	ubo := r.Camera.UBOAt(time.Since(r.start), r.Target.Aspect())
	if err := r.uniforms[slot.Index].Upload(ubo.Bytes()); err != nil {
		return err
	}

	extent := r.Target.Swapchain.Extent

	if err := cmd.Reset(); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	if err := cmd.Begin(); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	cmd.CmdBeginRenderPass(r.Target.VKRenderPass, framebuffer, extent, ClearColor)
	cmd.CmdSetViewport(extent)
	cmd.CmdSetScissor(extent)
	cmd.CmdBindGraphicsPipeline(r.Pipeline)
	cmd.CmdBindVertexBuffer(r.vertices)
	cmd.CmdBindIndexBuffer(r.indices, vk.IndexTypeUint32)
	cmd.CmdBindDescriptorSets(vk.PipelineBindPointGraphics, r.Layout, 0, r.sets[slot.Index])
	cmd.CmdDrawIndexed(r.indexCount)
	cmd.CmdEndRenderPass()

	return errors.Wrap(cmd.End(), "end command buffer")
}

// Run renders until the window closes or ctx is done
func (r *Renderer) Run(ctx context.Context) error {
	return r.Tracker.Run(ctx)
}

func (r *Renderer) Stats() frame.Stats {
	if r.Tracker == nil {
		return frame.Stats{}
	}
	return r.Tracker.Stats()
}

// Destroy waits for the device and releases everything the renderer created,
// it is safe on a partially constructed renderer
func (r *Renderer) Destroy() error {
	var err error
	if r.Tracker != nil {
		err = r.Tracker.Destroy()
	} else {
		r.device.QueueLock.Lock()
		err = r.device.WaitIdle()
		r.device.QueueLock.Unlock()
	}

	if r.Pipeline != nil {
		r.Pipeline.Destroy()
	}
	if r.pipelineConfig != nil {
		r.pipelineConfig.Destroy()
	}
	if r.pipelineCache != nil {
		r.pipelineCache.Destroy()
	}
	if r.descriptorPool != nil {
		r.descriptorPool.Destroy()
	}
	if r.Layout != nil {
		r.Layout.Destroy()
	}
	if r.sampler != nil {
		r.sampler.Destroy()
	}
	if r.textureView != nil {
		r.textureView.Destroy()
	}
	if r.texture != nil {
		r.texture.Free()
	}
	for _, b := range append([]*BufferResource{r.vertices, r.indices}, r.uniforms...) {
		if b != nil {
			b.Free()
		}
	}
	if r.Target != nil {
		r.Target.Destroy()
	}
	if r.resources != nil {
		r.resources.Destroy()
	}
	if r.pool != nil {
		r.pool.Destroy()
	}
	*r = Renderer{Name: r.Name, Window: r.Window, device: r.device}
	return err
}

// vkgSlots creates the per slot fence, semaphores and command buffer
type vkgSlots struct {
	device *Device
	pool   *CommandPool
}

func (s *vkgSlots) AllocateSlot(index int) (slot *frame.Slot, err error) {
	slot = &frame.Slot{Index: index}
	defer func() {
		if err != nil {
			s.ReleaseSlot(slot)
			slot = nil
		}
	}()

	// signaled so the first wait on a fresh slot returns immediately
	fence, err := s.device.CreateFence(true)
	if err != nil {
		return slot, err
	}
	slot.Complete = fence

	imageAvailable, err := s.device.CreateSemaphore()
	if err != nil {
		return slot, err
	}
	slot.ImageAvailable = imageAvailable

	renderFinished, err := s.device.CreateSemaphore()
	if err != nil {
		return slot, err
	}
	slot.RenderFinished = renderFinished

	cmd, err := s.pool.AllocateBuffer(vk.CommandBufferLevelPrimary)
	if err != nil {
		return slot, err
	}
	slot.Commands = cmd

	return slot, nil
}

func (s *vkgSlots) ReleaseSlot(slot *frame.Slot) {
	if fence, ok := slot.Complete.(*Fence); ok && fence != nil {
		if !fence.Signaled() {
			logger.Warningf("slot %d released while its frame is still executing", slot.Index)
		}
		fence.Destroy()
	}
	if sema, ok := slot.ImageAvailable.(*Semaphore); ok && sema != nil {
		sema.Destroy()
	}
	if sema, ok := slot.RenderFinished.(*Semaphore); ok && sema != nil {
		sema.Destroy()
	}
	if cmd, ok := slot.Commands.(*CommandBuffer); ok && cmd != nil {
		s.pool.FreeBuffer(cmd)
	}
}

// vkgDevice submits to the graphics queue and presents the render target's
// current swapchain on the present queue
type vkgDevice struct {
	device   *Device
	graphics *Queue
	present  *Queue
	target   *RenderTarget
}

func (d *vkgDevice) Submit(c frame.CommandBuffer, wait, signal frame.Signal, gate frame.Gate) error {
	cmd, err := asCommandBuffer(c)
	if err != nil {
		return err
	}
	waitSema, err := asSemaphore(wait)
	if err != nil {
		return err
	}
	signalSema, err := asSemaphore(signal)
	if err != nil {
		return err
	}
	fence, err := asFence(gate)
	if err != nil {
		return err
	}
	return d.graphics.SubmitFrame(cmd, waitSema, signalSema, fence)
}

func (d *vkgDevice) Present(image uint32, wait frame.Signal) (frame.Staleness, error) {
	sema, err := asSemaphore(wait)
	if err != nil {
		return frame.Fresh, err
	}
	return d.present.Present(d.target.Swapchain, image, sema)
}

// WaitIdle takes the queue lock, vkDeviceWaitIdle needs every queue externally synchronized
func (d *vkgDevice) WaitIdle() error {
	d.device.QueueLock.Lock()
	defer d.device.QueueLock.Unlock()
	return d.device.WaitIdle()
}
