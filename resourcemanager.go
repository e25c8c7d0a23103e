package vkg

import (
	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const StagingPoolName = "staging"

var errInsufficientPoolSpace = errors.New("insufficient storage space in resource pool")

type ImageResourcePool struct {
	Device           *Device
	Name             string
	Usage            vk.ImageUsageFlagBits
	Sharing          vk.SharingMode
	MemoryProperties vk.MemoryPropertyFlagBits
	Size             uint64
	Allocator        *LinearAllocator
	Memory           *DeviceMemory
	NeedsStaging     bool
	ResourceManager  *ResourceManager
}

type BufferResourcePool struct {
	Device           *Device
	Name             string
	Usage            vk.BufferUsageFlagBits
	Sharing          vk.SharingMode
	MemoryProperties vk.MemoryPropertyFlagBits
	Size             uint64
	Allocator        *LinearAllocator
	Memory           *DeviceMemory
	NeedsStaging     bool
	ResourceManager  *ResourceManager
}

func (p *ImageResourcePool) AllocateImage(extent vk.Extent2D, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlagBits) (*ImageResource, error) {
	i, err := p.Device.CreateImageWithOptions(extent, format, tiling, usage)
	if err != nil {
		return nil, err
	}

	mr := i.VKMemoryRequirements()

	allocation := p.Allocator.Allocate(uint64(mr.Size), uint64(mr.Alignment))
	if allocation == nil {
		i.Destroy()
		return nil, errors.Wrapf(errInsufficientPoolSpace, "image pool '%s' allocating %s", p.Name, units.BytesSize(float64(mr.Size)))
	}

	err = vk.Error(vk.BindImageMemory(p.Device.VKDevice, i.VKImage, p.Memory.VKDeviceMemory, vk.DeviceSize(allocation.Offset)))
	if err != nil {
		p.Allocator.Free(allocation)
		i.Destroy()
		return nil, errors.Wrap(err, "binding image memory")
	}

	img := &ImageResource{}
	img.Image = *i
	img.Size = uint64(mr.Size)
	img.Allocation = allocation
	img.ResourcePool = p

	return img, nil
}

func (p *ImageResourcePool) LogDetails() {
	logger.Infof("image pool '%s': %s of %s used", p.Name,
		units.BytesSize(float64(p.Allocator.Used())), units.BytesSize(float64(p.Size)))
}

func (p *ImageResourcePool) Destroy() {
	if p.Memory != nil {
		p.Memory.Destroy()
		p.Memory = nil
	}
	if p.ResourceManager != nil {
		delete(p.ResourceManager.imagePools, p.Name)
	}
}

// AllocateFor allocates a buffer sized and typed for a vertex or index source
func (p *BufferResourcePool) AllocateFor(src BufferObject) (*BufferResource, error) {
	switch src.(type) {
	case VertexSource:
		return p.AllocateBuffer(uint64(len(src.Bytes())), vk.BufferUsageVertexBufferBit)
	case IndexSource:
		return p.AllocateBuffer(uint64(len(src.Bytes())), vk.BufferUsageIndexBufferBit)
	}
	return nil, errors.Errorf("unknown buffer object type %T", src)
}

func (p *BufferResourcePool) AllocateBuffer(size uint64, usage vk.BufferUsageFlagBits) (*BufferResource, error) {
	if p.NeedsStaging {
		usage |= vk.BufferUsageTransferDstBit
	}

	buffer, err := p.Device.CreateBufferWithOptions(size, usage, p.Sharing)
	if err != nil {
		return nil, err
	}

	mr := buffer.VKMemoryRequirements()

	allocation := p.Allocator.Allocate(uint64(mr.Size), uint64(mr.Alignment))
	if allocation == nil {
		buffer.Destroy()
		return nil, errors.Wrapf(errInsufficientPoolSpace, "buffer pool '%s' allocating %s", p.Name, units.BytesSize(float64(mr.Size)))
	}

	if err := buffer.Bind(p.Memory, allocation.Offset); err != nil {
		p.Allocator.Free(allocation)
		buffer.Destroy()
		return nil, errors.Wrap(err, "binding buffer memory")
	}

	ret := &BufferResource{
		Buffer:       *buffer,
		Allocation:   allocation,
		ResourcePool: p,
	}

	return ret, nil
}

// Upload allocates a buffer for src and fills it. Device local pools go
// through a staging buffer and a one time submit on queue.
func (p *BufferResourcePool) Upload(src BufferObject, cmd *CommandBuffer, queue *Queue) (*BufferResource, error) {
	r, err := p.AllocateFor(src)
	if err != nil {
		return nil, err
	}
	if !r.RequiresStaging() {
		if err := r.Upload(src.Bytes()); err != nil {
			r.Free()
			return nil, err
		}
		return r, nil
	}

	if err := r.AllocateStagingResource(); err != nil {
		r.Free()
		return nil, err
	}
	defer r.FreeStagingResource()

	if err := r.StagingResource.Upload(src.Bytes()); err != nil {
		r.Free()
		return nil, err
	}

	err = submitOneTime(cmd, queue, func() {
		cmd.CmdCopyBufferFromStagedResource(r)
	})
	if err != nil {
		r.Free()
		return nil, err
	}
	return r, nil
}

func (p *BufferResourcePool) LogDetails() {
	logger.Infof("buffer pool '%s' (%s): %s of %s used", p.Name, usageToString(p.Usage),
		units.BytesSize(float64(p.Allocator.Used())), units.BytesSize(float64(p.Size)))
}

func (p *BufferResourcePool) Destroy() {
	if p.Memory != nil {
		p.Memory.Destroy()
		p.Memory = nil
	}
	delete(p.ResourceManager.bufferPools, p.Name)
}

type ResourceManager struct {
	Device      *Device
	bufferPools map[string]*BufferResourcePool
	imagePools  map[string]*ImageResourcePool
}

func (d *Device) CreateResourceManager() *ResourceManager {
	return &ResourceManager{Device: d, bufferPools: make(map[string]*BufferResourcePool), imagePools: make(map[string]*ImageResourcePool)}
}

func (r *ResourceManager) GetStagingPool() *BufferResourcePool {
	return r.bufferPools[StagingPoolName]
}

func (r *ResourceManager) AllocateDeviceTexturePool(name string, size uint64) (*ImageResourcePool, error) {
	return r.AllocateImagePoolWithOptions(name, size, vk.MemoryPropertyDeviceLocalBit, vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit, vk.SharingModeExclusive)
}

func needsStaging(mprops vk.MemoryPropertyFlagBits) bool {
	return mprops&vk.MemoryPropertyDeviceLocalBit == vk.MemoryPropertyDeviceLocalBit &&
		mprops&vk.MemoryPropertyHostVisibleBit == 0
}

func (r *ResourceManager) AllocateImagePoolWithOptions(name string, size uint64, mprops vk.MemoryPropertyFlagBits, usage vk.ImageUsageFlagBits, sharing vk.SharingMode) (*ImageResourcePool, error) {
	if _, ok := r.imagePools[name]; ok {
		return nil, errors.Errorf("image pool '%s' already exists", name)
	}

	p := &ImageResourcePool{
		Device:           r.Device,
		Name:             name,
		Usage:            usage,
		Sharing:          sharing,
		MemoryProperties: mprops,
		Size:             size,
		Allocator:        &LinearAllocator{Size: size},
		NeedsStaging:     needsStaging(mprops),
		ResourceManager:  r,
	}

	if p.NeedsStaging {
		usage |= vk.ImageUsageTransferDstBit
	}

	// a scratch image yields the memory type bits the pool must satisfy
	scratch, err := r.Device.CreateImageWithOptions(vk.Extent2D{Width: 64, Height: 64}, vk.FormatR8g8b8a8Unorm, vk.ImageTilingOptimal, usage)
	if err != nil {
		return nil, err
	}
	defer scratch.Destroy()

	mr := scratch.VKMemoryRequirements()

	memory, err := r.Device.Allocate(int(size), mr.MemoryTypeBits, mprops)
	if err != nil {
		return nil, errors.Wrapf(err, "image pool '%s'", name)
	}
	p.Memory = memory

	r.imagePools[name] = p

	return p, nil

}

func (r *ResourceManager) Destroy() {
	for _, p := range r.bufferPools {
		p.Destroy()
	}
	for _, p := range r.imagePools {
		p.Destroy()
	}
}

func (r *ResourceManager) AllocateStagingPool(size uint64) (*BufferResourcePool, error) {
	return r.AllocateBufferPoolWithOptions(StagingPoolName, size, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit, vk.BufferUsageTransferSrcBit, vk.SharingModeExclusive)
}

// AllocateDeviceVertexAndIndexBufferPool creates a device local pool filled through staging
func (r *ResourceManager) AllocateDeviceVertexAndIndexBufferPool(name string, size uint64) (*BufferResourcePool, error) {
	return r.AllocateBufferPoolWithOptions(name, size, vk.MemoryPropertyDeviceLocalBit, vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit, vk.SharingModeExclusive)
}

// AllocateHostUniformBufferPool creates a mapped pool for per frame uniform data
func (r *ResourceManager) AllocateHostUniformBufferPool(name string, size uint64) (*BufferResourcePool, error) {
	return r.AllocateBufferPoolWithOptions(name, size, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit, vk.BufferUsageUniformBufferBit, vk.SharingModeExclusive)
}

func (r *ResourceManager) AllocateBufferPoolWithOptions(name string, size uint64, mprops vk.MemoryPropertyFlagBits, usage vk.BufferUsageFlagBits, sharing vk.SharingMode) (*BufferResourcePool, error) {
	if _, ok := r.bufferPools[name]; ok {
		return nil, errors.Errorf("buffer pool '%s' already exists", name)
	}

	p := &BufferResourcePool{
		Device:           r.Device,
		Name:             name,
		Usage:            usage,
		Sharing:          sharing,
		MemoryProperties: mprops,
		Size:             size,
		Allocator:        &LinearAllocator{Size: size},
		NeedsStaging:     needsStaging(mprops),
		ResourceManager:  r,
	}

	if p.NeedsStaging {
		usage |= vk.BufferUsageTransferDstBit
	}

	scratch, err := r.Device.CreateBufferWithOptions(size, usage, sharing)
	if err != nil {
		return nil, err
	}
	defer scratch.Destroy()

	mr := scratch.VKMemoryRequirements()

	memory, err := r.Device.Allocate(int(size), mr.MemoryTypeBits, mprops)
	if err != nil {
		return nil, errors.Wrapf(err, "buffer pool '%s'", name)
	}
	p.Memory = memory

	if !p.NeedsStaging {
		if _, err := memory.Map(); err != nil {
			memory.Destroy()
			return nil, err
		}
	}

	r.bufferPools[name] = p

	return p, nil
}

func (r *ResourceManager) LogDetails() {
	for _, pool := range r.bufferPools {
		pool.LogDetails()
	}
	for _, pool := range r.imagePools {
		pool.LogDetails()
	}
}
