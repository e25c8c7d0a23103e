package vkg

import (
	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Swapchain is immutable once created, a rebuild asks it for a replacement
// through Recreate.
type Swapchain struct {
	Extent      vk.Extent2D
	Format      vk.Format
	PresentMode vk.PresentMode
	Device      *Device
	VKSwapchain vk.Swapchain

	surface  vk.Surface
	graphics *Queue
	present  *Queue
	images   int
}

func (s *Swapchain) Destroy() {
	vk.DestroySwapchain(s.Device.VKDevice, s.VKSwapchain, nil)
}

func (s *Swapchain) GetImages() ([]*Image, error) {
	var imageCount uint32
	err := vk.Error(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &imageCount, nil))
	if err != nil {
		return nil, err
	}

	swapchainImages := make([]vk.Image, imageCount)
	err = vk.Error(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &imageCount, swapchainImages))
	if err != nil {
		return nil, err
	}

	ret := make([]*Image, imageCount)
	for i := range swapchainImages {
		ret[i] = &Image{
			Device:   s.Device,
			VKImage:  swapchainImages[i],
			VKFormat: s.Format,
			Extent:   s.Extent,
		}
	}

	return ret, nil
}

// AcquireNextImage asks for the next presentable image, signal is raised once
// the presentation engine has released it
func (s *Swapchain) AcquireNextImage(signal *Semaphore) (uint32, frame.Staleness, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(s.Device.VKDevice, s.VKSwapchain, vk.MaxUint64, signal.VKSemaphore, vk.NullFence, &imageIndex)
	st, err := staleness(res)
	return imageIndex, st, err
}

// Recreate builds a replacement swapchain for the new extent, handing this
// one over as the old swapchain. The caller destroys the receiver afterwards.
func (s *Swapchain) Recreate(extent vk.Extent2D) (*Swapchain, error) {
	return s.Device.CreateSwapchain(s.surface, s.graphics, s.present, &CreateSwapchainOptions{
		OldSwapchain:              s,
		ActualSize:                extent,
		DesiredNumSwapchainImages: s.images,
		PresentMode:               s.PresentMode,
	})
}

type CreateSwapchainOptions struct {
	OldSwapchain              *Swapchain
	ActualSize                vk.Extent2D
	DesiredNumSwapchainImages int
	// PresentMode is used when the surface supports it, FIFO otherwise
	PresentMode vk.PresentMode
}

var presentModes = map[string]vk.PresentMode{
	"mailbox":   vk.PresentModeMailbox,
	"fifo":      vk.PresentModeFifo,
	"immediate": vk.PresentModeImmediate,
}

// ParsePresentMode converts a configured present mode name
func ParsePresentMode(name string) (vk.PresentMode, error) {
	if name == "" {
		return vk.PresentModeMailbox, nil
	}
	if m, ok := presentModes[name]; ok {
		return m, nil
	}
	return vk.PresentModeFifo, errors.Errorf("unknown present mode '%s'", name)
}

// ChooseSurfaceFormat prefers 8 bit BGRA sRGB, otherwise the first format offered
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, errors.New("surface reports no formats")
	}
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return preferred, nil
	}
	for _, f := range formats {
		if f.Format == preferred.Format && f.ColorSpace == preferred.ColorSpace {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode returns preferred when offered, FIFO is always available
func ChoosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless the surface leaves it
// to the application, in which case the window size is clamped to the limits.
func ChooseExtent(caps vk.SurfaceCapabilities, window vk.Extent2D) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clamp(window.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(window.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum, a zero maximum means unbounded
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount != 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (p *Device) CreateSwapchain(surface vk.Surface, graphicsQueue, presentQueue *Queue, options *CreateSwapchainOptions) (*Swapchain, error) {
	if options == nil {
		options = &CreateSwapchainOptions{PresentMode: vk.PresentModeMailbox}
	}

	modes, err := p.PhysicalDevice.GetSurfacePresentModes(surface)
	if err != nil {
		return nil, errors.Wrap(err, "querying present modes")
	}
	presentMode := ChoosePresentMode(modes, options.PresentMode)

	formats, err := p.PhysicalDevice.GetSurfaceFormats(surface)
	if err != nil {
		return nil, errors.Wrap(err, "querying surface formats")
	}
	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}

	caps, err := p.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return nil, errors.Wrap(err, "querying surface capabilities")
	}

	swapchainSize := ChooseExtent(*caps, options.ActualSize)

	imageCount := uint32(options.DesiredNumSwapchainImages)
	if imageCount == 0 {
		imageCount = ChooseImageCount(*caps)
	}

	var swapchain vk.Swapchain

	createInfo := &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      swapchainSize,
		PresentMode:      presentMode,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageArrayLayers: 1,
		Clipped:          vk.True,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		OldSwapchain:     vk.NullSwapchain,
	}

	if options.OldSwapchain != nil {
		createInfo.OldSwapchain = options.OldSwapchain.VKSwapchain
	}

	if graphicsQueue.QueueFamily.Index != presentQueue.QueueFamily.Index {
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(graphicsQueue.QueueFamily.Index), uint32(presentQueue.QueueFamily.Index)}
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	err = vk.Error(vk.CreateSwapchain(p.VKDevice, createInfo, nil, &swapchain))
	if err != nil {
		return nil, errors.Wrapf(err, "creating %dx%d swapchain", swapchainSize.Width, swapchainSize.Height)
	}

	var ret Swapchain
	ret.VKSwapchain = swapchain
	ret.Device = p
	ret.Extent = swapchainSize
	ret.Format = format.Format
	ret.PresentMode = presentMode
	ret.surface = surface
	ret.graphics = graphicsQueue
	ret.present = presentQueue
	ret.images = int(imageCount)

	logger.Debugf("swapchain %dx%d, %d images, present mode %d", swapchainSize.Width, swapchainSize.Height, imageCount, presentMode)

	return &ret, nil

}
