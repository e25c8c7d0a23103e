package vkg

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/pkg/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// idleTimeout bounds how long Idle blocks, so a minimized window still
// notices ShouldClose and a cancelled run in time
const idleTimeout = 100 * time.Millisecond

// InitializeForWindows loads GLFW and points the Vulkan loader at it. It must
// be called from the main goroutine before any window is created.
func InitializeForWindows() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("vulkan is unsupported")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "initializing vulkan")
	}
	return nil
}

// Window is a GLFW window with a Vulkan surface, it satisfies frame.Window.
//
// GLFW events are only processed on the main goroutine. A window rendered on
// the main goroutine pumps events itself in Poll and Idle. Windows rendered on
// other goroutines rely on the main goroutine pumping for them.
type Window struct {
	Title     string
	GLFW      *glfw.Window
	VKSurface vk.Surface

	pumps   bool
	resized atomic.Bool
	events  chan struct{}

	mu   sync.Mutex
	size frame.Extent
}

// NewWindow creates a resizable window without a client API
func NewWindow(title string, width, height int) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	gw, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "creating window '%s'", title)
	}

	w := &Window{
		Title:  title,
		GLFW:   gw,
		pumps:  true,
		events: make(chan struct{}, 1),
	}
	fw, fh := gw.GetFramebufferSize()
	w.setSize(fw, fh)

	gw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.setSize(width, height)
		w.resized.Store(true)
		select {
		case w.events <- struct{}{}:
		default:
		}
	})

	logger.Debugf("window '%s' %dx%d, framebuffer %s", title, width, height, w.Size())
	return w, nil
}

func (w *Window) setSize(width, height int) {
	w.mu.Lock()
	w.size = frame.Extent{Width: uint32(width), Height: uint32(height)}
	w.mu.Unlock()
}

// RequiredExtensions lists the instance extensions GLFW needs for surfaces
func (w *Window) RequiredExtensions() []string {
	return w.GLFW.GetRequiredInstanceExtensions()
}

// CreateSurface creates the Vulkan surface for this window
func (w *Window) CreateSurface(instance *Instance) error {
	surface, err := w.GLFW.CreateWindowSurface(instance.VKInstance, nil)
	if err != nil {
		return errors.Wrapf(err, "creating surface for '%s'", w.Title)
	}
	w.VKSurface = vk.SurfaceFromPointer(surface)
	return nil
}

// SetPumpsEvents chooses whether Poll and Idle process GLFW events themselves
func (w *Window) SetPumpsEvents(pumps bool) {
	w.pumps = pumps
}

func (w *Window) ShouldClose() bool {
	return w.GLFW.ShouldClose()
}

func (w *Window) Poll() {
	if w.pumps {
		glfw.PollEvents()
	}
}

// Size is the framebuffer size in pixels, zero while minimized
func (w *Window) Size() frame.Extent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Idle blocks until the window sees an event or idleTimeout passes
func (w *Window) Idle() {
	if w.pumps {
		glfw.WaitEventsTimeout(idleTimeout.Seconds())
		return
	}
	select {
	case <-w.events:
	case <-time.After(idleTimeout):
	}
}

func (w *Window) Resized() bool {
	return w.resized.Load()
}

func (w *Window) ResetResized() {
	w.resized.Store(false)
}

// Destroy releases the surface and closes the window
func (w *Window) Destroy(instance *Instance) {
	if w.VKSurface != vk.NullSurface && instance != nil {
		instance.DestroySurface(w.VKSurface)
		w.VKSurface = vk.NullSurface
	}
	if w.GLFW != nil {
		w.GLFW.Destroy()
		w.GLFW = nil
	}
}
