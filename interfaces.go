package vkg

import (
	vk "github.com/vulkan-go/vulkan"
)

// Destroyer is anything owning Vulkan objects that must be released explicitly
type Destroyer interface {
	Destroy()
}

type BufferObject interface {
	Bytes() []byte
}

type IndexSource interface {
	BufferObject
	IndexType() vk.IndexType
}

// VertexDescriptor describes how a vertex buffer is fed into the pipeline
type VertexDescriptor interface {
	GetBindingDescription() vk.VertexInputBindingDescription
	GetAttributeDescriptions() []vk.VertexInputAttributeDescription
}

type VertexSource interface {
	BufferObject
	VertexDescriptor
}
