package vkg

import (
	"fmt"
	"strings"

	vk "github.com/vulkan-go/vulkan"
)

// QueueFamily is one family of queues a physical device exposes
type QueueFamily struct {
	Index                   int
	PhysicalDevice          *PhysicalDevice
	VKQueueFamilyProperties vk.QueueFamilyProperties
}

var queueCapabilities = []struct {
	bit  vk.QueueFlagBits
	name string
}{
	{vk.QueueGraphicsBit, "graphics"},
	{vk.QueueComputeBit, "compute"},
	{vk.QueueTransferBit, "transfer"},
	{vk.QueueSparseBindingBit, "sparse"},
}

// Supports reports whether every bit in flags is set for this family
func (q *QueueFamily) Supports(flags vk.QueueFlagBits) bool {
	f := vk.QueueFlags(flags)
	return q.VKQueueFamilyProperties.QueueFlags&f == f
}

func (q *QueueFamily) IsGraphics() bool { return q.Supports(vk.QueueGraphicsBit) }
func (q *QueueFamily) IsCompute() bool  { return q.Supports(vk.QueueComputeBit) }
func (q *QueueFamily) IsTransfer() bool { return q.Supports(vk.QueueTransferBit) }

// QueueCount is how many queues the family offers
func (q *QueueFamily) QueueCount() int {
	return int(q.VKQueueFamilyProperties.QueueCount)
}

func (q *QueueFamily) SupportsPresent(surface vk.Surface) bool {
	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(q.PhysicalDevice.VKPhysicalDevice, uint32(q.Index), surface, &supported)
	return supported == vk.True
}

// String renders the family as "index: graphics|compute xN"
func (q *QueueFamily) String() string {
	var caps []string
	for _, c := range queueCapabilities {
		if q.Supports(c.bit) {
			caps = append(caps, c.name)
		}
	}
	if len(caps) == 0 {
		caps = append(caps, "none")
	}
	return fmt.Sprintf("%d: %s x%d", q.Index, strings.Join(caps, "|"), q.QueueCount())
}

type QueueFamilySlice []*QueueFamily

func (ql QueueFamilySlice) Filter(f func(q *QueueFamily) bool) QueueFamilySlice {
	var ret QueueFamilySlice
	for _, q := range ql {
		if f(q) {
			ret = append(ret, q)
		}
	}
	return ret
}

// FilterFlags keeps the families supporting every bit in flags
func (ql QueueFamilySlice) FilterFlags(flags vk.QueueFlagBits) QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool { return q.Supports(flags) })
}

func (ql QueueFamilySlice) FilterGraphics() QueueFamilySlice {
	return ql.FilterFlags(vk.QueueGraphicsBit)
}

func (ql QueueFamilySlice) FilterCompute() QueueFamilySlice {
	return ql.FilterFlags(vk.QueueComputeBit)
}

func (ql QueueFamilySlice) FilterTransfer() QueueFamilySlice {
	return ql.FilterFlags(vk.QueueTransferBit)
}

// FilterPresent keeps the families able to present to every surface
func (ql QueueFamilySlice) FilterPresent(surfaces ...vk.Surface) QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool {
		for _, s := range surfaces {
			if !q.SupportsPresent(s) {
				return false
			}
		}
		return true
	})
}

// Indices lists the family indices in order
func (ql QueueFamilySlice) Indices() []int {
	ret := make([]int, len(ql))
	for i, q := range ql {
		ret[i] = q.Index
	}
	return ret
}

// First returns the first family or nil when the slice is empty
func (ql QueueFamilySlice) First() *QueueFamily {
	if len(ql) == 0 {
		return nil
	}
	return ql[0]
}
