package mesh

import (
	"time"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// UBO is the uniform block read by the vertex shader, three column major matrices
type UBO struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// UBOSize is the size of the uniform buffer each frame slot owns
const UBOSize = int(unsafe.Sizeof(UBO{}))

// Bytes returns a copy of the block in the layout the shader expects
func (u UBO) Bytes() []byte {
	b := make([]byte, UBOSize)
	copy(b, unsafe.Slice((*byte)(unsafe.Pointer(&u)), UBOSize))
	return b
}

// ClipCorrection maps OpenGL clip space onto Vulkan's, flipping Y and
// moving depth from [-1, 1] to [0, 1]
var ClipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera spins the model about Z while looking at the origin
type Camera struct {
	Eye      mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32
	Near     float32
	Far      float32
	SpinRate float32
}

// DefaultCamera sits at (2,2,2) with Z up and spins 90 degrees a second
func DefaultCamera() Camera {
	return Camera{
		Eye:      mgl32.Vec3{2, 2, 2},
		Target:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 0, 1},
		FovY:     45,
		Near:     0.1,
		Far:      10,
		SpinRate: 90,
	}
}

// UBOAt computes the matrices elapsed into the run for a viewport of aspect width/height
func (c Camera) UBOAt(elapsed time.Duration, aspect float32) UBO {
	angle := float32(elapsed.Seconds()) * mgl32.DegToRad(c.SpinRate)
	return UBO{
		Model: mgl32.HomogRotate3DZ(angle),
		View:  mgl32.LookAtV(c.Eye, c.Target, c.Up),
		Proj:  ClipCorrection.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)),
	}
}
