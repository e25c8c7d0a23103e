package vkg

import (
	"sync"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorSetLayout describes the layout of a descriptorset
type DescriptorSetLayout struct {
	Device                        *Device
	VKDescriptorSetLayout         vk.DescriptorSetLayout
	VKDescriptorSetLayoutBindings []vk.DescriptorSetLayoutBinding
}

func (d *Device) NewDescriptorSetLayout() *DescriptorSetLayout {
	return &DescriptorSetLayout{Device: d}
}

// AddBinding adds a binding to the descriptor set
func (d *DescriptorSetLayout) AddBinding(binding vk.DescriptorSetLayoutBinding) {
	d.VKDescriptorSetLayoutBindings = append(d.VKDescriptorSetLayoutBindings, binding)
}

// Destroy destroys this descriptor set layout
func (d *DescriptorSetLayout) Destroy() {
	vk.DestroyDescriptorSetLayout(d.Device.VKDevice, d.VKDescriptorSetLayout, nil)
}

// CreateDescriptorSetLayout creates this descriptor set layout
func (d *Device) CreateDescriptorSetLayout(layout *DescriptorSetLayout) (*DescriptorSetLayout, error) {
	var descriptorSetLayoutCreateInfo = &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layout.VKDescriptorSetLayoutBindings)),
		PBindings:    layout.VKDescriptorSetLayoutBindings,
	}

	var descriptorSetLayout vk.DescriptorSetLayout
	err := vk.Error(vk.CreateDescriptorSetLayout(d.VKDevice, descriptorSetLayoutCreateInfo, nil, &descriptorSetLayout))
	if err != nil {
		return nil, errors.Wrap(err, "creating descriptor set layout")
	}

	layout.Device = d
	layout.VKDescriptorSetLayout = descriptorSetLayout

	return layout, nil
}

// UniformBufferBinding is a single uniform buffer visible to the given stages
func UniformBufferBinding(binding int, stages vk.ShaderStageFlagBits) vk.DescriptorSetLayoutBinding {
	return vk.DescriptorSetLayoutBinding{
		Binding:         uint32(binding),
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(stages),
	}
}

// CombinedImageSamplerBinding is a single sampled texture visible to the given stages
func CombinedImageSamplerBinding(binding int, stages vk.ShaderStageFlagBits) vk.DescriptorSetLayoutBinding {
	return vk.DescriptorSetLayoutBinding{
		Binding:         uint32(binding),
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(stages),
	}
}

// SceneLayoutKey names the layout every renderer uses: the vertex stage UBO
// at binding 0 and the fragment stage texture at binding 1
const SceneLayoutKey = "scene"

func SceneBindings() []vk.DescriptorSetLayoutBinding {
	return []vk.DescriptorSetLayoutBinding{
		UniformBufferBinding(0, vk.ShaderStageVertexBit),
		CombinedImageSamplerBinding(1, vk.ShaderStageFragmentBit),
	}
}

// DescriptorLayoutCache creates each named layout once per device and owns
// it until Destroy. It is safe for concurrent use by several renderers.
type DescriptorLayoutCache struct {
	create  func(bindings []vk.DescriptorSetLayoutBinding) (*DescriptorSetLayout, error)
	destroy func(l *DescriptorSetLayout)

	mu        sync.Mutex
	layouts   map[string]*DescriptorSetLayout
	destroyed bool
}

func (d *Device) NewDescriptorLayoutCache() *DescriptorLayoutCache {
	return newDescriptorLayoutCache(
		func(bindings []vk.DescriptorSetLayoutBinding) (*DescriptorSetLayout, error) {
			l := d.NewDescriptorSetLayout()
			for _, b := range bindings {
				l.AddBinding(b)
			}
			return d.CreateDescriptorSetLayout(l)
		},
		func(l *DescriptorSetLayout) { l.Destroy() },
	)
}

func newDescriptorLayoutCache(create func([]vk.DescriptorSetLayoutBinding) (*DescriptorSetLayout, error), destroy func(*DescriptorSetLayout)) *DescriptorLayoutCache {
	return &DescriptorLayoutCache{
		create:  create,
		destroy: destroy,
		layouts: make(map[string]*DescriptorSetLayout),
	}
}

// Get returns the layout stored under key, creating it from bindings on the
// first request. Later requests ignore bindings.
func (c *DescriptorLayoutCache) Get(key string, bindings []vk.DescriptorSetLayoutBinding) (*DescriptorSetLayout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil, errors.Errorf("descriptor layout cache destroyed, can't get '%s'", key)
	}
	if l, ok := c.layouts[key]; ok {
		return l, nil
	}
	l, err := c.create(bindings)
	if err != nil {
		return nil, errors.Wrapf(err, "layout '%s'", key)
	}
	c.layouts[key] = l
	logger.Debugf("created descriptor set layout '%s' with %d bindings", key, len(bindings))
	return l, nil
}

func (c *DescriptorLayoutCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.layouts)
}

// Destroy releases every cached layout, Get fails afterwards
func (c *DescriptorLayoutCache) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, l := range c.layouts {
		c.destroy(l)
		delete(c.layouts, key)
	}
	c.destroyed = true
}
