package vkg

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Buffer are used to map hunks of data that are then bound to resources used by the pipeline
// and command buffers to render data.
type Buffer struct {
	Device   *Device
	VKBuffer vk.Buffer
	Size     uint64
	Usage    vk.BufferUsageFlagBits
}

func (d *Device) CreateBufferWithOptions(sizeInBytes uint64, usage vk.BufferUsageFlagBits, sharing vk.SharingMode) (*Buffer, error) {

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(sizeInBytes),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: sharing,
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(d.VKDevice, &bufferCreateInfo, nil, &buffer))
	if err != nil {
		return nil, errors.Wrapf(err, "creating %d byte %s buffer", sizeInBytes, usageToString(usage))
	}

	var ret Buffer
	ret.VKBuffer = buffer
	ret.Device = d
	ret.Size = sizeInBytes
	ret.Usage = usage

	return &ret, nil

}

func (b *Buffer) VKMemoryRequirements() vk.MemoryRequirements {
	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.Device.VKDevice, b.VKBuffer, &memoryRequirements)
	memoryRequirements.Deref()
	return memoryRequirements
}

// DSInfo describes the whole buffer for a descriptor write
func (b *Buffer) DSInfo(offset int) vk.DescriptorBufferInfo {
	var descriptorBufferInfo = vk.DescriptorBufferInfo{}
	descriptorBufferInfo.Buffer = b.VKBuffer
	descriptorBufferInfo.Offset = vk.DeviceSize(offset)
	descriptorBufferInfo.Range = vk.DeviceSize(b.Size)
	return descriptorBufferInfo
}

func (b *Buffer) Bind(memory *DeviceMemory, offset uint64) error {
	return vk.Error((vk.BindBufferMemory(b.Device.VKDevice, b.VKBuffer, memory.VKDeviceMemory, vk.DeviceSize(offset))))
}

func (b *Buffer) String() string {
	return fmt.Sprintf("{%s %d}", usageToString(b.Usage), b.Size)
}

func (b *Buffer) Destroy() {
	vk.DestroyBuffer(b.Device.VKDevice, b.VKBuffer, nil)
}

var bufferUsageNames = []struct {
	bit  vk.BufferUsageFlagBits
	name string
}{
	{vk.BufferUsageTransferSrcBit, "transfer-src"},
	{vk.BufferUsageTransferDstBit, "transfer-dst"},
	{vk.BufferUsageUniformBufferBit, "uniform"},
	{vk.BufferUsageStorageBufferBit, "storage"},
	{vk.BufferUsageIndexBufferBit, "index"},
	{vk.BufferUsageVertexBufferBit, "vertex"},
}

func usageToString(usage vk.BufferUsageFlagBits) string {
	s := ""
	for _, u := range bufferUsageNames {
		if usage&u.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += u.name
	}
	if s == "" {
		return "none"
	}
	return s
}
