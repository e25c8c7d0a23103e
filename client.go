package vkg

import (
	"context"
	"image"
	"time"

	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/igor-barinov/vulkan-game-engine/mesh"
	"github.com/pkg/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/sync/errgroup"
)

// eventPumpInterval is how long the main goroutine blocks on GLFW events
// between checks on the render goroutines
const eventPumpInterval = 10 * time.Millisecond

type windowSpec struct {
	title         string
	width, height int
}

// WindowStats pairs a window with its tracker counters
type WindowStats struct {
	Title string
	frame.Stats
}

// Client renders one scene into any number of windows sharing a device.
// Init, Run and Destroy must be called from the main goroutine.
type Client struct {
	App            *App
	Instance       *Instance
	PhysicalDevice *PhysicalDevice
	Device         *Device
	Windows        []*Window
	Renderers      []*Renderer

	FramesInFlight int
	PresentMode    vk.PresentMode
	Validation     bool
	Camera         mesh.Camera

	specs   []windowSpec
	shaders []ShaderSource
	model   *mesh.Mesh
	texture image.Image
	layouts *DescriptorLayoutCache
	glfw    bool
}

func NewClient(app *App) *Client {
	return &Client{
		App:            app,
		FramesInFlight: frame.DefaultFramesInFlight,
		PresentMode:    vk.PresentModeMailbox,
		Camera:         mesh.DefaultCamera(),
	}
}

// AddWindow queues a window, windows are created by Init
func (c *Client) AddWindow(title string, width, height int) {
	c.specs = append(c.specs, windowSpec{title: title, width: width, height: height})
}

func (c *Client) AddShader(path string, stage vk.ShaderStageFlagBits) {
	c.shaders = append(c.shaders, ShaderSource{Path: path, Stage: stage})
}

// SetModel replaces the built in cube
func (c *Client) SetModel(m *mesh.Mesh) {
	c.model = m
}

// SetTexture replaces the white texel
func (c *Client) SetTexture(img image.Image) {
	c.texture = img
}

// Init creates the windows, the instance, their surfaces, a device able to
// present to every surface and a renderer per window. extensions are extra
// device extensions to require.
func (c *Client) Init(extensions ...string) error {
	if len(c.specs) == 0 {
		return errors.New("no windows added")
	}

	if err := InitializeForWindows(); err != nil {
		return err
	}
	c.glfw = true

	for _, ws := range c.specs {
		w, err := NewWindow(ws.title, ws.width, ws.height)
		if err != nil {
			return err
		}
		c.Windows = append(c.Windows, w)
		for _, ext := range w.RequiredExtensions() {
			c.App.EnableExtension(ext)
		}
	}

	if c.Validation {
		if err := c.App.EnableValidation(); err != nil {
			logger.Warningf("validation disabled: %v", err)
		}
	}

	var err error
	c.Instance, err = c.App.CreateInstance()
	if err != nil {
		return err
	}
	if c.Validation && len(c.App.EnabledLayers) > 0 {
		if err := c.Instance.UseLoggingDebugCallback(); err != nil {
			return err
		}
	}

	surfaces := make([]vk.Surface, len(c.Windows))
	for i, w := range c.Windows {
		if err := w.CreateSurface(c.Instance); err != nil {
			return err
		}
		surfaces[i] = w.VKSurface
	}

	devices, err := c.Instance.PhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "listing physical devices")
	}
	deviceExtensions := append([]string{SwapchainExtension}, extensions...)
	c.PhysicalDevice, err = PickPhysicalDevice(devices, surfaces, deviceExtensions)
	if err != nil {
		return err
	}
	logger.Noticef("using %s (%s, Vulkan %s)", c.PhysicalDevice.DeviceName, c.PhysicalDevice.TypeName(), c.PhysicalDevice.APIVersion())

	family, err := c.queueFamily(surfaces)
	if err != nil {
		return err
	}

	c.Device, err = c.PhysicalDevice.CreateLogicalDeviceWithOptions(QueueFamilySlice{family}, &CreateDeviceOptions{
		EnabledExtensions: deviceExtensions,
	})
	if err != nil {
		return err
	}
	queue := c.Device.GetQueue(family)
	c.layouts = c.Device.NewDescriptorLayoutCache()

	for _, w := range c.Windows {
		w.SetPumpsEvents(len(c.Windows) == 1)
		r, err := NewRenderer(c.Device, queue, queue, w, RendererOptions{
			FramesInFlight: c.FramesInFlight,
			PresentMode:    c.PresentMode,
			Shaders:        c.shaders,
			Mesh:           c.model,
			Texture:        c.texture,
			Camera:         c.Camera,
			Layouts:        c.layouts,
		})
		if err != nil {
			return errors.Wrapf(err, "renderer for '%s'", w.Title)
		}
		c.Renderers = append(c.Renderers, r)
	}
	return nil
}

// queueFamily finds one graphics family that can present to every surface,
// so every window submits and presents on a single queue
func (c *Client) queueFamily(surfaces []vk.Surface) (*QueueFamily, error) {
	families, err := c.PhysicalDevice.QueueFamilies()
	if err != nil {
		return nil, errors.Wrap(err, "loading queue families")
	}
	if qf := families.FilterGraphics().FilterPresent(surfaces...).First(); qf != nil {
		return qf, nil
	}
	return nil, errors.Errorf("no queue family on %s presents to all %d windows", c.PhysicalDevice, len(surfaces))
}

// Run renders every window until all of them close or ctx is done. A single
// window renders on the calling goroutine. Several windows render on one
// goroutine each while the calling goroutine pumps GLFW events, the first
// failure cancels the others.
func (c *Client) Run(ctx context.Context) error {
	if len(c.Renderers) == 1 {
		return c.Renderers[0].Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range c.Renderers {
		r := r
		g.Go(func() error {
			return errors.Wrap(r.Run(gctx), r.Name)
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	for {
		select {
		case err := <-done:
			return err
		default:
			glfw.WaitEventsTimeout(eventPumpInterval.Seconds())
		}
	}
}

// Stats returns the counters of every window in the order they were added
func (c *Client) Stats() []WindowStats {
	stats := make([]WindowStats, 0, len(c.Renderers))
	for _, r := range c.Renderers {
		stats = append(stats, WindowStats{Title: r.Name, Stats: r.Stats()})
	}
	return stats
}

// Destroy tears down in reverse creation order, it returns the first failure
// but keeps releasing the rest
func (c *Client) Destroy() error {
	var first error
	for _, r := range c.Renderers {
		if err := r.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	c.Renderers = nil

	if c.layouts != nil {
		c.layouts.Destroy()
		c.layouts = nil
	}
	if c.Device != nil {
		c.Device.Destroy()
		c.Device = nil
	}
	for _, w := range c.Windows {
		w.Destroy(c.Instance)
	}
	c.Windows = nil
	if c.Instance != nil {
		c.Instance.Destroy()
		c.Instance = nil
	}
	if c.glfw {
		glfw.Terminate()
		c.glfw = false
	}
	return first
}
