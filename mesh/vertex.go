package mesh

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is laid out exactly as the vertex shader consumes it
type Vertex struct {
	Pos      mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// VertexSize is the stride between vertices in a vertex buffer
const VertexSize = int(unsafe.Sizeof(Vertex{}))

// Attribute describes one vertex shader input
type Attribute struct {
	Location   int
	Offset     int
	Components int
}

// VertexAttributes lists position, color and texture coordinate at locations 0, 1 and 2
func VertexAttributes() []Attribute {
	return []Attribute{
		{Location: 0, Offset: int(unsafe.Offsetof(Vertex{}.Pos)), Components: 3},
		{Location: 1, Offset: int(unsafe.Offsetof(Vertex{}.Color)), Components: 3},
		{Location: 2, Offset: int(unsafe.Offsetof(Vertex{}.TexCoord)), Components: 2},
	}
}

// VertexBytes views the vertices as raw bytes without copying
func VertexBytes(vs []Vertex) []byte {
	if len(vs) == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vs[0])), len(vs)*VertexSize)
}

// IndexBytes views 32 bit indices as raw bytes without copying
func IndexBytes(is []uint32) []byte {
	if len(is) == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&is[0])), len(is)*4)
}
