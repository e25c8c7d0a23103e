package vkg

import (
	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DepthFormat is the format of every depth attachment
const DepthFormat = vk.FormatD32Sfloat

// RenderTarget owns everything a window draws into: the swapchain, its image
// views, the depth image, the render pass and one framebuffer per swapchain
// image. It satisfies frame.Surface.
type RenderTarget struct {
	Device    *Device
	Resources *ResourceManager
	Swapchain *Swapchain

	Images       []*Image
	Views        []*ImageView
	Depth        *ImageResource
	DepthView    *ImageView
	VKRenderPass vk.RenderPass
	Framebuffers []vk.Framebuffer

	// OnRenderPass is called when a rebuild had to replace the render pass,
	// pipelines built against the old one must be rebuilt
	OnRenderPass func(renderPass vk.RenderPass) error
}

// NewRenderTarget creates the swapchain for surface and every child that depends on it
func NewRenderTarget(d *Device, resources *ResourceManager, surface vk.Surface, graphics, present *Queue, extent vk.Extent2D, mode vk.PresentMode) (*RenderTarget, error) {
	swapchain, err := d.CreateSwapchain(surface, graphics, present, &CreateSwapchainOptions{
		ActualSize:  extent,
		PresentMode: mode,
	})
	if err != nil {
		return nil, err
	}

	t := &RenderTarget{Device: d, Resources: resources, Swapchain: swapchain}

	if err := t.createRenderPass(); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := t.createChildren(); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// VKRenderPassCreateInfo describes a single subpass writing the swapchain
// color attachment and a cleared depth attachment
func (t *RenderTarget) VKRenderPassCreateInfo() vk.RenderPassCreateInfo {
	attachmentDescriptions := []vk.AttachmentDescription{{
		Format:         t.Swapchain.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	},
		{
			Format:         DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorAttachments := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpassDescriptions := []vk.SubpassDescription{{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorAttachments,
		PDepthStencilAttachment: &depthAttachmentRef,
	}}

	// the depth image is shared by every frame in flight, so the previous
	// frame's depth writes must land before this one clears it
	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit)
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		SrcAccessMask: 0,
		DstStageMask:  stages,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      subpassDescriptions,
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
}

func (t *RenderTarget) createRenderPass() error {
	renderPassCreateInfo := t.VKRenderPassCreateInfo()

	var renderPass vk.RenderPass
	err := vk.Error(vk.CreateRenderPass(t.Device.VKDevice, &renderPassCreateInfo, nil, &renderPass))
	if err != nil {
		return errors.Wrap(err, "creating render pass")
	}
	t.VKRenderPass = renderPass
	return nil
}

func (t *RenderTarget) destroyRenderPass() {
	if t.VKRenderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(t.Device.VKDevice, t.VKRenderPass, nil)
		t.VKRenderPass = vk.NullRenderPass
	}
}

// createChildren builds the views, depth image and framebuffers for the current swapchain
func (t *RenderTarget) createChildren() error {
	images, err := t.Swapchain.GetImages()
	if err != nil {
		return errors.Wrap(err, "getting swapchain images")
	}
	t.Images = images

	t.Views = make([]*ImageView, 0, len(images))
	for _, image := range images {
		view, err := image.CreateImageView()
		if err != nil {
			return err
		}
		t.Views = append(t.Views, view)
	}

	t.Depth, err = t.Resources.NewImageResourceWithOptions(t.Swapchain.Extent, DepthFormat, vk.ImageTilingOptimal,
		vk.ImageUsageDepthStencilAttachmentBit, vk.SharingModeExclusive, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return errors.Wrap(err, "creating depth image")
	}

	t.DepthView, err = t.Depth.CreateImageViewWithAspectMask(vk.ImageAspectDepthBit)
	if err != nil {
		return err
	}

	t.Framebuffers = make([]vk.Framebuffer, 0, len(t.Views))
	for _, view := range t.Views {
		attachments := []vk.ImageView{
			view.VKImageView,
			t.DepthView.VKImageView,
		}
		fbCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      t.VKRenderPass,
			Layers:          1,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           t.Swapchain.Extent.Width,
			Height:          t.Swapchain.Extent.Height,
		}
		var fb vk.Framebuffer
		err := vk.Error(vk.CreateFramebuffer(t.Device.VKDevice, &fbCreateInfo, nil, &fb))
		if err != nil {
			return errors.Wrap(err, "creating framebuffer")
		}
		t.Framebuffers = append(t.Framebuffers, fb)
	}
	return nil
}

func (t *RenderTarget) destroyChildren() {
	for _, fb := range t.Framebuffers {
		vk.DestroyFramebuffer(t.Device.VKDevice, fb, nil)
	}
	t.Framebuffers = nil

	if t.DepthView != nil {
		t.DepthView.Destroy()
		t.DepthView = nil
	}
	if t.Depth != nil {
		t.Depth.Free()
		t.Depth = nil
	}

	for _, view := range t.Views {
		view.Destroy()
	}
	t.Views = nil
	// swapchain images belong to the swapchain
	t.Images = nil
}

// Rebuild replaces the swapchain with one sized for extent and recreates its
// children. The device must be idle. The render pass survives unless the
// surface format changed.
func (t *RenderTarget) Rebuild(extent frame.Extent) error {
	swapchain, err := t.Swapchain.Recreate(vk.Extent2D{Width: extent.Width, Height: extent.Height})
	if err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}

	t.destroyChildren()
	format := t.Swapchain.Format
	t.Swapchain.Destroy()
	t.Swapchain = swapchain

	if swapchain.Format != format {
		logger.Noticef("surface format changed from %d to %d, replacing render pass", format, swapchain.Format)
		t.destroyRenderPass()
		if err := t.createRenderPass(); err != nil {
			return err
		}
		if t.OnRenderPass != nil {
			if err := t.OnRenderPass(t.VKRenderPass); err != nil {
				return errors.Wrap(err, "rebuilding pipelines")
			}
		}
	}

	return t.createChildren()
}

// AcquireNextImage acquires the next swapchain image, signal must be a *Semaphore
func (t *RenderTarget) AcquireNextImage(signal frame.Signal) (uint32, frame.Staleness, error) {
	sema, err := asSemaphore(signal)
	if err != nil {
		return 0, frame.Fresh, err
	}
	return t.Swapchain.AcquireNextImage(sema)
}

func (t *RenderTarget) ImageCount() int {
	return len(t.Framebuffers)
}

// Framebuffer returns the vk.Framebuffer for a swapchain image
func (t *RenderTarget) Framebuffer(image uint32) frame.Framebuffer {
	return t.Framebuffers[image]
}

func (t *RenderTarget) Extent() frame.Extent {
	return frame.Extent{Width: t.Swapchain.Extent.Width, Height: t.Swapchain.Extent.Height}
}

// Aspect is the width over height ratio of the swapchain images
func (t *RenderTarget) Aspect() float32 {
	if t.Swapchain.Extent.Height == 0 {
		return 1
	}
	return float32(t.Swapchain.Extent.Width) / float32(t.Swapchain.Extent.Height)
}

func (t *RenderTarget) Destroy() {
	t.destroyChildren()
	t.destroyRenderPass()
	if t.Swapchain != nil {
		t.Swapchain.Destroy()
		t.Swapchain = nil
	}
}

func asSemaphore(s frame.Signal) (*Semaphore, error) {
	sema, ok := s.(*Semaphore)
	if !ok || sema == nil {
		return nil, errors.Wrapf(frame.ErrUnsupported, "signal %T is not a semaphore", s)
	}
	return sema, nil
}

func asFence(g frame.Gate) (*Fence, error) {
	fence, ok := g.(*Fence)
	if !ok || fence == nil {
		return nil, errors.Wrapf(frame.ErrUnsupported, "gate %T is not a fence", g)
	}
	return fence, nil
}

func asCommandBuffer(c frame.CommandBuffer) (*CommandBuffer, error) {
	cmd, ok := c.(*CommandBuffer)
	if !ok || cmd == nil {
		return nil, errors.Wrapf(frame.ErrUnsupported, "command buffer %T is not a *CommandBuffer", c)
	}
	return cmd, nil
}
