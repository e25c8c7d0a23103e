/*
Package frame drives the frames-in-flight presentation protocol of a renderer.

A Tracker owns N frame slots. Each slot has an image available signal, a
render finished signal, a completion gate and a command buffer. Every
iteration waits on the current slot's gate, acquires a surface image, records,
submits and presents, then moves to the next slot:

	gate-wait -> acquire -> gate-reset -> record -> submit -> present -> advance

A stale surface (out of date or suboptimal) triggers a rebuild of the surface
dependent resources. Slots persist across rebuilds.

The package knows nothing about Vulkan. Device, Surface, Recorder and Window
are implemented by the vkg package for real rendering and by fakes in tests.
*/
package frame

import (
	"fmt"
)

// Extent is a two dimensional size in pixels
type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero, as it is for a minimized window
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Staleness is reported by acquire and present, it is never an error
type Staleness int

const (
	Fresh Staleness = iota
	// Suboptimal images can still be presented but the surface should be rebuilt
	Suboptimal
	// OutOfDate images cannot be used at all
	OutOfDate
)

// Stale reports whether the surface must be rebuilt
func (s Staleness) Stale() bool {
	return s != Fresh
}

func (s Staleness) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Suboptimal:
		return "suboptimal"
	case OutOfDate:
		return "out of date"
	}
	return fmt.Sprintf("staleness(%d)", int(s))
}

// Signal is an opaque GPU side synchronization primitive
type Signal interface{}

// CommandBuffer is an opaque handle to recorded GPU work
type CommandBuffer interface{}

// Framebuffer is an opaque handle to a render target
type Framebuffer interface{}

// Gate is a CPU observable signal raised when the GPU finishes a submission
type Gate interface {
	// Wait blocks until the gate is signaled
	Wait() error
	// Reset clears the gate so a submission can raise it again
	Reset() error
}

// Slot holds the resources of one frame in flight
type Slot struct {
	Index          int
	ImageAvailable Signal
	RenderFinished Signal
	Complete       Gate
	Commands       CommandBuffer
}

// Device submits work and presents images
type Device interface {
	Submit(cmd CommandBuffer, wait Signal, signal Signal, gate Gate) error
	Present(image uint32, wait Signal) (Staleness, error)
	WaitIdle() error
}

// Surface owns the presentable images and the resources that depend on their size
type Surface interface {
	AcquireNextImage(signal Signal) (uint32, Staleness, error)
	Rebuild(extent Extent) error
	ImageCount() int
	Framebuffer(image uint32) Framebuffer
	Extent() Extent
}

// Recorder fills a slot's command buffer for the given image, it must not block on the GPU
type Recorder interface {
	Record(slot *Slot, image uint32, fb Framebuffer) error
}

// Window is the source of close requests, events and the drawable size
type Window interface {
	ShouldClose() bool
	Poll()
	Size() Extent
	// Idle blocks until the window receives an event
	Idle()
	Resized() bool
	ResetResized()
}

// SlotAllocator creates and destroys the per slot resources
type SlotAllocator interface {
	AllocateSlot(index int) (*Slot, error)
	ReleaseSlot(slot *Slot)
}
