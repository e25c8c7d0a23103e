// Package mesh holds indexed triangle geometry, the OBJ loader that produces
// it and the per frame uniform data used to draw it.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/igor-barinov/vulkan-game-engine/log"
	"github.com/pkg/errors"
)

var logger = log.New("mesh")

// Mesh is an indexed triangle list
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

func (m *Mesh) VertexBytes() []byte {
	return VertexBytes(m.Vertices)
}

func (m *Mesh) IndexBytes() []byte {
	return IndexBytes(m.Indices)
}

// Triangles is the number of triangles drawn
func (m *Mesh) Triangles() int {
	return len(m.Indices) / 3
}

// Validate checks the mesh can be drawn as a triangle list
func (m *Mesh) Validate() error {
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return errors.New("mesh is empty")
	}
	if len(m.Indices)%3 != 0 {
		return errors.Errorf("%d indices is not a whole number of triangles", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return errors.Errorf("index %d refers to vertex %d of %d", i, idx, len(m.Vertices))
		}
	}
	return nil
}

// Scale multiplies every position by s
func (m *Mesh) Scale(s float32) {
	for i := range m.Vertices {
		m.Vertices[i].Pos = m.Vertices[i].Pos.Mul(s)
	}
}

// Rotate turns every position about axis by degrees
func (m *Mesh) Rotate(axis mgl32.Vec3, degrees float32) {
	r := mgl32.HomogRotate3D(mgl32.DegToRad(degrees), axis.Normalize())
	for i := range m.Vertices {
		m.Vertices[i].Pos = mgl32.TransformCoordinate(m.Vertices[i].Pos, r)
	}
}

var white = mgl32.Vec3{1, 1, 1}

// Cube is a unit cube centered on the origin with outward, counter clockwise
// faces, each textured with the whole image
func Cube() *Mesh {
	type face struct {
		normal, u, v mgl32.Vec3
		color        mgl32.Vec3
	}
	faces := []face{
		{normal: mgl32.Vec3{0, 0, 1}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 1, 0}, color: white},
		{normal: mgl32.Vec3{0, 0, -1}, u: mgl32.Vec3{-1, 0, 0}, v: mgl32.Vec3{0, 1, 0}, color: white},
		{normal: mgl32.Vec3{1, 0, 0}, u: mgl32.Vec3{0, 0, -1}, v: mgl32.Vec3{0, 1, 0}, color: white},
		{normal: mgl32.Vec3{-1, 0, 0}, u: mgl32.Vec3{0, 0, 1}, v: mgl32.Vec3{0, 1, 0}, color: white},
		{normal: mgl32.Vec3{0, 1, 0}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 0, -1}, color: white},
		{normal: mgl32.Vec3{0, -1, 0}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 0, 1}, color: white},
	}

	m := &Mesh{
		Vertices: make([]Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		center := f.normal.Mul(0.5)
		for _, c := range corners {
			pos := center.Add(f.u.Mul(c[0] * 0.5)).Add(f.v.Mul(c[1] * 0.5))
			m.Vertices = append(m.Vertices, Vertex{
				Pos:      pos,
				Color:    f.color,
				TexCoord: mgl32.Vec2{(c[0] + 1) / 2, 1 - (c[1]+1)/2},
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return m
}
