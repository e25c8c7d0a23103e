// Package config loads the engine settings from YAML.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/igor-barinov/vulkan-game-engine/frame"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type App struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Window is one top level window, every window renders the same scene
type Window struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

func (w Window) Extent() frame.Extent {
	return frame.Extent{Width: uint32(w.Width), Height: uint32(w.Height)}
}

func (w Window) String() string {
	return fmt.Sprintf("%s:%dx%d", w.Title, w.Width, w.Height)
}

// ParseWindow reads a "Title:WxH" flag value
func ParseWindow(s string) (Window, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return Window{}, errors.Errorf("window '%s' is not Title:WxH", s)
	}
	dims := strings.SplitN(s[i+1:], "x", 2)
	if len(dims) != 2 {
		return Window{}, errors.Errorf("window size '%s' is not WxH", s[i+1:])
	}
	w, err := strconv.Atoi(dims[0])
	if err != nil {
		return Window{}, errors.Wrapf(err, "window width in '%s'", s)
	}
	h, err := strconv.Atoi(dims[1])
	if err != nil {
		return Window{}, errors.Wrapf(err, "window height in '%s'", s)
	}
	return Window{Title: s[:i], Width: w, Height: h}, nil
}

const (
	StageVertex   = "vertex"
	StageFragment = "fragment"
)

type Shader struct {
	Path  string `yaml:"path"`
	Stage string `yaml:"stage"`
}

var presentModes = map[string]bool{"mailbox": true, "fifo": true, "immediate": true}

type Config struct {
	App            App      `yaml:"app"`
	FramesInFlight int      `yaml:"frames_in_flight"`
	Validation     bool     `yaml:"validation"`
	PresentMode    string   `yaml:"present_mode"`
	Windows        []Window `yaml:"windows"`
	Shaders        []Shader `yaml:"shaders"`
	Model          string   `yaml:"model"`
	Texture        string   `yaml:"texture"`
}

// Default is a single 1920x1080 window drawing with vert.spv and frag.spv
// and two frames in flight
func Default() *Config {
	return &Config{
		App:            App{Name: "Game Engine", Version: "1.0.0"},
		FramesInFlight: 2,
		PresentMode:    "mailbox",
		Windows:        []Window{{Title: "Game Engine", Width: 1920, Height: 1080}},
		Shaders: []Shader{
			{Path: "vert.spv", Stage: StageVertex},
			{Path: "frag.spv", Stage: StageFragment},
		},
	}
}

// Load reads the file at path over the defaults
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening config")
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// Parse decodes YAML over the defaults and validates the result. Lists given
// in the document replace the default lists.
func Parse(r io.Reader) (*Config, error) {
	c := Default()
	raw := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(raw); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding config")
	}
	c.merge(raw)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) merge(o *Config) {
	if o.App.Name != "" {
		c.App.Name = o.App.Name
	}
	if o.App.Version != "" {
		c.App.Version = o.App.Version
	}
	if o.FramesInFlight != 0 {
		c.FramesInFlight = o.FramesInFlight
	}
	c.Validation = c.Validation || o.Validation
	if o.PresentMode != "" {
		c.PresentMode = o.PresentMode
	}
	if o.Windows != nil {
		c.Windows = o.Windows
	}
	if o.Shaders != nil {
		c.Shaders = o.Shaders
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.Texture != "" {
		c.Texture = o.Texture
	}
}

func (c *Config) Validate() error {
	if c.FramesInFlight < 1 {
		return errors.Errorf("frames_in_flight must be at least 1, got %d", c.FramesInFlight)
	}
	if len(c.Windows) == 0 {
		return errors.New("at least one window is required")
	}
	for i, w := range c.Windows {
		if w.Width <= 0 || w.Height <= 0 {
			return errors.Errorf("window %d '%s' has size %dx%d", i, w.Title, w.Width, w.Height)
		}
	}
	for _, s := range c.Shaders {
		if s.Stage != StageVertex && s.Stage != StageFragment {
			return errors.Errorf("shader %s has unknown stage '%s'", s.Path, s.Stage)
		}
		if s.Path == "" {
			return errors.Errorf("%s shader has no path", s.Stage)
		}
	}
	if !presentModes[c.PresentMode] {
		return errors.Errorf("unknown present mode '%s'", c.PresentMode)
	}
	if _, _, _, err := c.AppVersion(); err != nil {
		return err
	}
	return nil
}

// AppVersion splits the dotted application version, missing parts are zero
func (c *Config) AppVersion() (major, minor, patch int, err error) {
	parts := strings.Split(c.App.Version, ".")
	if len(parts) > 3 {
		return 0, 0, 0, errors.Errorf("app version '%s' has more than 3 parts", c.App.Version)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, errors.Errorf("app version '%s' is not of the form major.minor.patch", c.App.Version)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
