package vkg

import (
	"unsafe"

	"github.com/igor-barinov/vulkan-game-engine/mesh"
	vk "github.com/vulkan-go/vulkan"
)

type IndexSliceUint16 []uint16

func (i IndexSliceUint16) Bytes() []byte {
	if len(i) == 0 {
		return []byte{}
	}
	size := len(i) * int(unsafe.Sizeof(uint16(1)))
	return ToBytes(unsafe.Pointer(&i[0]), size)
}

func (i IndexSliceUint16) IndexType() vk.IndexType {
	return vk.IndexTypeUint16
}

type IndexSliceUint32 []uint32

func (i IndexSliceUint32) Bytes() []byte {
	if len(i) == 0 {
		return []byte{}
	}
	size := len(i) * int(unsafe.Sizeof(uint32(1)))
	return ToBytes(unsafe.Pointer(&i[0]), size)
}

func (i IndexSliceUint32) IndexType() vk.IndexType {
	return vk.IndexTypeUint32
}

// MeshVertices adapts mesh vertices to a pipeline vertex source
type MeshVertices []mesh.Vertex

func (m MeshVertices) Bytes() []byte {
	return mesh.VertexBytes(m)
}

func (m MeshVertices) GetBindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(mesh.VertexSize),
		InputRate: vk.VertexInputRateVertex,
	}
}

var componentFormats = map[int]vk.Format{
	1: vk.FormatR32Sfloat,
	2: vk.FormatR32g32Sfloat,
	3: vk.FormatR32g32b32Sfloat,
	4: vk.FormatR32g32b32a32Sfloat,
}

func (m MeshVertices) GetAttributeDescriptions() []vk.VertexInputAttributeDescription {
	attrs := mesh.VertexAttributes()
	ret := make([]vk.VertexInputAttributeDescription, len(attrs))
	for i, a := range attrs {
		ret[i] = vk.VertexInputAttributeDescription{
			Binding:  0,
			Location: uint32(a.Location),
			Format:   componentFormats[a.Components],
			Offset:   uint32(a.Offset),
		}
	}
	return ret
}
