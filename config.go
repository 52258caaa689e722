package voxmesh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	BackendWGPU = "wgpu"
	BackendCPU  = "cpu"
)

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

type CameraConfig struct {
	Eye         [3]float32 `yaml:"eye"`
	Target      [3]float32 `yaml:"target"`
	Up          [3]float32 `yaml:"up"`
	FovYDegrees float32    `yaml:"fovy_degrees"`
	Near        float32    `yaml:"near"`
	Far         float32    `yaml:"far"`
}

type RotationConfig struct {
	Axis [3]float32 `yaml:"axis"`
	// radians added per frame
	Step float32 `yaml:"step"`
}

// Config drives the renderer. Zero values in a YAML file keep the defaults
// only for fields the file omits.
type Config struct {
	Asset           string `yaml:"asset"`
	Shape           string `yaml:"shape"`
	ShapeSize       int    `yaml:"shape_size"`
	Model           int    `yaml:"model"`
	ConvertZUpToYUp bool   `yaml:"convert_z_up"`

	Pipeline string `yaml:"pipeline"`
	Backend  string `yaml:"backend"`

	MaxFramesInFlight int           `yaml:"max_frames_in_flight"`
	FrameTimeout      time.Duration `yaml:"frame_timeout"`
	SampleCount       int           `yaml:"sample_count"`
	Workers           int           `yaml:"workers"`

	Window   WindowConfig   `yaml:"window"`
	Camera   CameraConfig   `yaml:"camera"`
	Rotation RotationConfig `yaml:"rotation"`
	Clear    [4]float64     `yaml:"clear_color"`

	Debug         bool   `yaml:"debug"`
	DebugFaceMask bool   `yaml:"debug_face_mask"`
	MeshCacheDir  string `yaml:"mesh_cache_dir"`
}

func DefaultConfig() Config {
	return Config{
		Shape:             "sphere",
		ShapeSize:         16,
		Pipeline:          string(core.VariantCompute),
		Backend:           BackendWGPU,
		MaxFramesInFlight: 1,
		FrameTimeout:      2 * time.Second,
		SampleCount:       1,
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "voxmesh",
			VSync:  true,
		},
		Camera: CameraConfig{
			Eye:         [3]float32{0, 0, 16},
			Up:          [3]float32{0, 1, 0},
			FovYDegrees: 90,
			Near:        1,
			Far:         1000,
		},
		Rotation: RotationConfig{
			Axis: [3]float32{1, 1, 0},
			Step: 0.01,
		},
		Clear: [4]float64{0.1, 0.1, 0.12, 1},
	}
}

// LoadConfig decodes a YAML file over DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig rejects unknown keys so typos do not silently fall back to
// defaults.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Variant() core.Variant {
	v, err := core.ParseVariant(c.Pipeline)
	if err != nil {
		return core.VariantCompute
	}
	return v
}

func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if _, err := core.ParseVariant(c.Pipeline); err != nil {
		return invalid("%v", err)
	}
	switch c.Backend {
	case BackendWGPU, BackendCPU:
	default:
		return invalid("unknown backend %q", c.Backend)
	}
	if c.Asset == "" {
		known := false
		for _, s := range volume.Shapes {
			known = known || s == c.Shape
		}
		if !known {
			return invalid("no asset and unknown shape %q", c.Shape)
		}
		if c.ShapeSize < 1 || c.ShapeSize > volume.MaxGridSize {
			return invalid("shape_size %d out of [1,%d]", c.ShapeSize, volume.MaxGridSize)
		}
	}
	if c.Model < 0 {
		return invalid("model index %d", c.Model)
	}
	if c.MaxFramesInFlight < 1 {
		return invalid("max_frames_in_flight must be >= 1, got %d", c.MaxFramesInFlight)
	}
	if c.FrameTimeout <= 0 {
		return invalid("frame_timeout must be positive, got %s", c.FrameTimeout)
	}
	if c.SampleCount != 1 && c.SampleCount != 4 {
		return invalid("sample_count must be 1 or 4, got %d", c.SampleCount)
	}
	if c.Workers < 0 {
		return invalid("workers must be >= 0, got %d", c.Workers)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return invalid("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return invalid("camera planes near=%g far=%g", c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.FovYDegrees <= 0 || c.Camera.FovYDegrees >= 180 {
		return invalid("camera fovy %g", c.Camera.FovYDegrees)
	}
	if c.Camera.Eye == c.Camera.Target {
		return invalid("camera eye equals target")
	}
	if c.DebugFaceMask && c.Variant() == core.VariantVertexPulling {
		return invalid("debug_face_mask needs a mesh-generating pipeline")
	}
	return nil
}

// NewCamera builds the runtime camera described by the config.
func (c Config) NewCamera() *core.Camera {
	cam := core.NewCamera()
	cam.Eye = c.Camera.Eye
	cam.Target = c.Camera.Target
	cam.Up = c.Camera.Up
	cam.FovYDegrees = c.Camera.FovYDegrees
	cam.Near = c.Camera.Near
	cam.Far = c.Camera.Far
	cam.SetViewport(c.Window.Width, c.Window.Height)
	return cam
}

// LoadModel returns the configured asset, or the procedural shape when no
// asset is set.
func (c Config) LoadModel() (*volume.Grid, *volume.Palette, error) {
	if c.Asset != "" {
		return LoadVoxGrid(c.Asset, LoadOptions{Model: c.Model, ConvertZUpToYUp: c.ConvertZUpToYUp})
	}
	g, err := volume.Procedural(c.Shape, c.ShapeSize)
	if err != nil {
		return nil, nil, err
	}
	return g, DefaultShapePalette(), nil
}

// DefaultShapePalette shades procedural layers from warm to cool.
func DefaultShapePalette() *volume.Palette {
	colors := make([][4]uint8, volume.MaxPaletteColors)
	for i := range colors {
		t := float32(i%16) / 15
		colors[i] = [4]uint8{uint8(230 - 150*t), uint8(120 + 60*t), uint8(60 + 180*t), 255}
	}
	p, _ := volume.NewPalette(colors)
	return p
}
