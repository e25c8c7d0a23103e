package mesh

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestUBOBytes(t *testing.T) {
	assert.Equal(t, 192, UBOSize)

	u := UBO{Model: mgl32.Ident4(), View: mgl32.Ident4(), Proj: mgl32.Ident4()}
	b := u.Bytes()
	assert.Len(t, b, 192)
	// 1.0f little endian
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, b[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, b[4:8])
}

func TestClipCorrection(t *testing.T) {
	near := ClipCorrection.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	assert.Equal(t, mgl32.Vec4{0, -1, 0, 1}, near)

	far := ClipCorrection.Mul4x1(mgl32.Vec4{0, 0, 1, 1})
	assert.Equal(t, mgl32.Vec4{0, 0, 1, 1}, far)
}

func TestCameraSpin(t *testing.T) {
	c := DefaultCamera()

	u0 := c.UBOAt(0, 16.0/9)
	assert.True(t, u0.Model.ApproxEqual(mgl32.Ident4()))

	u1 := c.UBOAt(time.Second, 16.0/9)
	x := u1.Model.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0, x.X(), 1e-5)
	assert.InDelta(t, 1, x.Y(), 1e-5)

	// the view is unaffected by time
	assert.Equal(t, u0.View, u1.View)
	// the origin lands in the middle of the viewport
	o := u1.Proj.Mul4(u1.View).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, o.X()/o.W(), 1e-5)
	assert.InDelta(t, 0, o.Y()/o.W(), 1e-5)
	depth := o.Z() / o.W()
	assert.True(t, depth > 0 && depth < 1, "depth %f", depth)

	// Y is flipped relative to the OpenGL projection
	gl := mgl32.Perspective(mgl32.DegToRad(45), 16.0/9, 0.1, 10)
	assert.InDelta(t, -gl.At(1, 1), u1.Proj.At(1, 1), 1e-6)
}
