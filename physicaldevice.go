package vkg

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type PhysicalDevice struct {
	DeviceName                 string
	VKPhysicalDevice           vk.PhysicalDevice
	VKPhysicalDeviceProperties vk.PhysicalDeviceProperties
}

func (p *PhysicalDevice) GetSurfacePresentModes(surface vk.Surface) ([]vk.PresentMode, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}

	f := make([]vk.PresentMode, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, f))
	if err != nil {
		return nil, err
	}

	return f, nil

}

// GetSurfaceFormats returns the dereferenced formats the surface supports on this device
func (p *PhysicalDevice) GetSurfaceFormats(surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}

	f := make([]vk.SurfaceFormat, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, f))
	if err != nil {
		return nil, err
	}
	for i := range f {
		f[i].Deref()
	}

	return f, nil

}

// GetSurfaceCapabilities returns the dereferenced capabilities, extents included
func (p *PhysicalDevice) GetSurfaceCapabilities(surface vk.Surface) (*vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(p.VKPhysicalDevice, surface, &caps))
	if err != nil {
		return nil, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return &caps, nil
}

func (p *PhysicalDevice) String() string {
	return p.DeviceName
}

// IsDiscrete reports whether this is a dedicated GPU
func (p *PhysicalDevice) IsDiscrete() bool {
	return p.VKPhysicalDeviceProperties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
}

var deviceTypes = map[vk.PhysicalDeviceType]string{
	vk.PhysicalDeviceTypeOther:         "other",
	vk.PhysicalDeviceTypeIntegratedGpu: "integrated",
	vk.PhysicalDeviceTypeDiscreteGpu:   "discrete",
	vk.PhysicalDeviceTypeVirtualGpu:    "virtual",
	vk.PhysicalDeviceTypeCpu:           "cpu",
}

// TypeName is a short name for the device type
func (p *PhysicalDevice) TypeName() string {
	if n, ok := deviceTypes[p.VKPhysicalDeviceProperties.DeviceType]; ok {
		return n
	}
	return "unknown"
}

// APIVersion returns the supported Vulkan version
func (p *PhysicalDevice) APIVersion() Version {
	v := p.VKPhysicalDeviceProperties.ApiVersion
	return Version{Major: int(v >> 22), Minor: int((v >> 12) & 0x3ff), Patch: int(v & 0xfff)}
}

func (p *PhysicalDevice) QueueFamilies() (QueueFamilySlice, error) {
	var queueFamilyCount uint32

	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &queueFamilyCount, nil)

	if queueFamilyCount == 0 {
		return nil, nil
	}

	queues := make([]vk.QueueFamilyProperties, queueFamilyCount)

	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &queueFamilyCount, queues)

	ret := make([]*QueueFamily, queueFamilyCount)
	for i, queue := range queues {

		ret[i] = &QueueFamily{Index: i, PhysicalDevice: p, VKQueueFamilyProperties: queue}

		ret[i].VKQueueFamilyProperties.Deref()

	}

	return ret, nil

}

type CreateDeviceOptions struct {
	EnabledExtensions []string
	EnabledLayers     []string
}

func (p *PhysicalDevice) CreateLogicalDeviceWithOptions(qfs QueueFamilySlice, options *CreateDeviceOptions) (*Device, error) {

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(qfs))
	for j, q := range qfs {

		queueCreateInfo := vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(q.Index),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}

		queueCreateInfos[j] = queueCreateInfo

	}

	deviceFeatures := p.VKPhysicalDeviceFeatures()

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(qfs)),
		PQueueCreateInfos:    queueCreateInfos,
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{deviceFeatures},
	}

	if options != nil {
		if options.EnabledExtensions != nil {
			deviceCreateInfo.EnabledExtensionCount = uint32(len(options.EnabledExtensions))
			deviceCreateInfo.PpEnabledExtensionNames = safeStrings(options.EnabledExtensions)
		}
		if options.EnabledLayers != nil {
			deviceCreateInfo.EnabledLayerCount = uint32(len(options.EnabledLayers))
			deviceCreateInfo.PpEnabledLayerNames = safeStrings(options.EnabledLayers)
		}
	}

	var ldevice vk.Device

	err := vk.Error(vk.CreateDevice(p.VKPhysicalDevice, &deviceCreateInfo, nil, &ldevice))
	if err != nil {
		return nil, errors.Wrapf(err, "creating logical device on %s", p)
	}

	var device Device
	device.PhysicalDevice = p
	device.VKDevice = ldevice
	device.QueueLock = &sync.Mutex{}

	return &device, nil
}

func (p *PhysicalDevice) VKPhysicalDeviceFeatures() vk.PhysicalDeviceFeatures {
	var deviceFeatures vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(p.VKPhysicalDevice, &deviceFeatures)
	return deviceFeatures
}

func (p *PhysicalDevice) VKPhysicalDeviceMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var memoryProperties vk.PhysicalDeviceMemoryProperties

	vk.GetPhysicalDeviceMemoryProperties(p.VKPhysicalDevice, &memoryProperties)
	return memoryProperties
}

// DeviceLocalHeapSize sums the device local memory heaps
func (p *PhysicalDevice) DeviceLocalHeapSize() uint64 {
	mp := p.VKPhysicalDeviceMemoryProperties()
	mp.Deref()

	var total uint64
	var i uint32
	for i = 0; i < mp.MemoryHeapCount; i++ {
		h := mp.MemoryHeaps[i]
		h.Deref()
		if vk.MemoryHeapFlagBits(h.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			total += uint64(h.Size)
		}
	}
	return total
}

func (p *PhysicalDevice) FindMemoryType(memoryTypeBits uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	memoryProperties := p.VKPhysicalDeviceMemoryProperties()
	mp := &memoryProperties
	mp.Deref()

	// See the documentation of VkPhysicalDeviceMemoryProperties for a detailed description.
	var i uint32
	for i = 0; i < mp.MemoryTypeCount; i++ {
		mt := mp.MemoryTypes[i]

		mt.Deref()
		if memoryTypeBits&(1<<i) != 0 &&
			vk.MemoryPropertyFlagBits(mt.PropertyFlags)&properties == properties {
			return i, nil
		}
	}
	return 0, errors.Errorf("no memory type matching %x among %x", properties, memoryTypeBits)
}

func (p *PhysicalDevice) SupportedExtensions() ([]vk.ExtensionProperties, error) {
	var count uint32
	err := vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, nil))
	if err != nil {
		return nil, err
	}

	ext := make([]vk.ExtensionProperties, count)

	err = vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, ext))
	if err != nil {
		return nil, err
	}
	for i := range ext {
		ext[i].Deref()
	}
	return ext, nil
}

// SupportsExtensions reports whether every named device extension is available
func (p *PhysicalDevice) SupportsExtensions(names ...string) bool {
	ext, err := p.SupportedExtensions()
	if err != nil {
		return false
	}
	have := make([]string, len(ext))
	for i := range ext {
		have[i] = vk.ToString(ext[i].ExtensionName[:])
	}
	return containsAll(have, names)
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

// SupportsSurface reports whether the device can present to the surface at all
func (p *PhysicalDevice) SupportsSurface(surface vk.Surface) bool {
	formats, err := p.GetSurfaceFormats(surface)
	if err != nil || len(formats) == 0 {
		return false
	}
	modes, err := p.GetSurfacePresentModes(surface)
	if err != nil || len(modes) == 0 {
		return false
	}
	qf, err := p.QueueFamilies()
	if err != nil {
		return false
	}
	return len(qf.FilterGraphics().FilterPresent(surface)) > 0
}

// DeviceScore ranks a physical device for rendering to a set of surfaces
type DeviceScore struct {
	Device     *PhysicalDevice
	Extensions bool
	Surfaces   int
	Discrete   bool
}

// Usable reports whether the device can render to at least one surface
func (s DeviceScore) Usable() bool {
	return s.Extensions && s.Surfaces > 0
}

// ScoreDevice checks the extensions and counts the surfaces the device supports
func ScoreDevice(p *PhysicalDevice, surfaces []vk.Surface, extensions []string) DeviceScore {
	s := DeviceScore{Device: p, Discrete: p.IsDiscrete()}
	s.Extensions = p.SupportsExtensions(extensions...)
	if !s.Extensions {
		return s
	}
	for _, surface := range surfaces {
		if p.SupportsSurface(surface) {
			s.Surfaces++
		}
	}
	return s
}

// BestScore orders usable candidates by compatible surface count, preferring
// discrete devices on a tie
func BestScore(scores []DeviceScore) (DeviceScore, bool) {
	usable := make([]DeviceScore, 0, len(scores))
	for _, s := range scores {
		if s.Usable() {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return DeviceScore{}, false
	}
	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Surfaces != usable[j].Surfaces {
			return usable[i].Surfaces > usable[j].Surfaces
		}
		return usable[i].Discrete && !usable[j].Discrete
	})
	return usable[0], true
}

// PickPhysicalDevice selects the device that can present to the most surfaces
func PickPhysicalDevice(devices []*PhysicalDevice, surfaces []vk.Surface, extensions []string) (*PhysicalDevice, error) {
	scores := make([]DeviceScore, len(devices))
	for i, d := range devices {
		scores[i] = ScoreDevice(d, surfaces, extensions)
		logger.Debugf("device %s: extensions %v, %d of %d surfaces", d, scores[i].Extensions, scores[i].Surfaces, len(surfaces))
	}
	best, ok := BestScore(scores)
	if !ok {
		return nil, errors.Errorf("none of %d devices can present to the window surfaces", len(devices))
	}
	if best.Surfaces < len(surfaces) {
		return nil, errors.Errorf("device %s supports only %d of %d window surfaces", best.Device, best.Surfaces, len(surfaces))
	}
	return best.Device, nil
}
