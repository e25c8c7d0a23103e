package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, 32, VertexSize)

	attrs := VertexAttributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, Attribute{Location: 0, Offset: 0, Components: 3}, attrs[0])
	assert.Equal(t, Attribute{Location: 1, Offset: 12, Components: 3}, attrs[1])
	assert.Equal(t, Attribute{Location: 2, Offset: 24, Components: 2}, attrs[2])
}

func TestBytes(t *testing.T) {
	m := &Mesh{
		Vertices: []Vertex{{}, {}, {}},
		Indices:  []uint32{0, 1, 2},
	}
	assert.Len(t, m.VertexBytes(), 96)
	assert.Len(t, m.IndexBytes(), 12)
	assert.Equal(t, []byte{}, (&Mesh{}).VertexBytes())
	assert.Equal(t, []byte{}, (&Mesh{}).IndexBytes())
}

func TestCube(t *testing.T) {
	c := Cube()
	require.NoError(t, c.Validate())
	assert.Len(t, c.Vertices, 24)
	assert.Len(t, c.Indices, 36)
	assert.Equal(t, 12, c.Triangles())

	// every triangle winds counter clockwise seen from outside
	for i := 0; i < len(c.Indices); i += 3 {
		a := c.Vertices[c.Indices[i]].Pos
		b := c.Vertices[c.Indices[i+1]].Pos
		d := c.Vertices[c.Indices[i+2]].Pos
		n := b.Sub(a).Cross(d.Sub(a))
		centroid := a.Add(b).Add(d).Mul(1.0 / 3)
		assert.Greater(t, n.Dot(centroid), float32(0), "triangle %d", i/3)
	}

	for _, v := range c.Vertices {
		assert.InDelta(t, 0.5, abs(v.Pos.X()), 1e-6)
		assert.InDelta(t, 0.5, abs(v.Pos.Y()), 1e-6)
		assert.InDelta(t, 0.5, abs(v.Pos.Z()), 1e-6)
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Mesh{}).Validate())
	assert.Error(t, (&Mesh{Vertices: []Vertex{{}}, Indices: []uint32{0, 0}}).Validate())
	assert.Error(t, (&Mesh{Vertices: []Vertex{{}, {}}, Indices: []uint32{0, 1, 2}}).Validate())
	assert.NoError(t, (&Mesh{Vertices: []Vertex{{}, {}, {}}, Indices: []uint32{0, 1, 2}}).Validate())
}

func TestScaleAndRotate(t *testing.T) {
	m := &Mesh{Vertices: []Vertex{{Pos: mgl32.Vec3{1, 0, 0}}}}
	m.Scale(2)
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, m.Vertices[0].Pos)

	m.Rotate(mgl32.Vec3{0, 0, 1}, 90)
	p := m.Vertices[0].Pos
	assert.InDelta(t, 0, p.X(), 1e-5)
	assert.InDelta(t, 2, p.Y(), 1e-5)
}
