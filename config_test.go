package voxmesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gekko3d/voxmesh/voxelrt/rt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, core.VariantCompute, cfg.Variant())
	assert.Equal(t, 1, cfg.MaxFramesInFlight)
	assert.Equal(t, [3]float32{1, 1, 0}, cfg.Rotation.Axis)
	assert.InDelta(t, 0.01, cfg.Rotation.Step, 1e-9)
}

func TestParseConfig_OverridesDefaults(t *testing.T) {
	src := `
pipeline: static
backend: cpu
max_frames_in_flight: 3
frame_timeout: 250ms
sample_count: 4
window:
  width: 640
  height: 480
camera:
  eye: [0, 4, 32]
rotation:
  axis: [0, 1, 0]
  step: 0.05
mesh_cache_dir: /tmp/voxmesh
`
	cfg, err := ParseConfig(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, core.VariantStatic, cfg.Variant())
	assert.Equal(t, BackendCPU, cfg.Backend)
	assert.Equal(t, 3, cfg.MaxFramesInFlight)
	assert.Equal(t, 250*time.Millisecond, cfg.FrameTimeout)
	assert.Equal(t, 4, cfg.SampleCount)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, "voxmesh", cfg.Window.Title, "untouched nested fields keep defaults")
	assert.Equal(t, [3]float32{0, 4, 32}, cfg.Camera.Eye)
	assert.Equal(t, float32(90), cfg.Camera.FovYDegrees)
	assert.Equal(t, [3]float32{0, 1, 0}, cfg.Rotation.Axis)
	assert.Equal(t, "/tmp/voxmesh", cfg.MeshCacheDir)
}

func TestParseConfig_EmptyDocument(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "pipelines: static\n"},
		{"bad variant", "pipeline: mesh-shader\n"},
		{"bad backend", "backend: metal\n"},
		{"zero in flight", "max_frames_in_flight: 0\n"},
		{"bad timeout", "frame_timeout: -1s\n"},
		{"bad samples", "sample_count: 2\n"},
		{"bad planes", "camera:\n  near: 10\n  far: 5\n"},
		{"bad shape", "shape: torus\n"},
		{"face mask without mesh", "pipeline: vertex-pulling\ndebug_face_mask: true\n"},
		{"short array", "rotation:\n  axis: [1, 1]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: vertex-pulling\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, core.VariantVertexPulling, cfg.Variant())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigLoadModel_Procedural(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shape = "cube"
	cfg.ShapeSize = 3

	grid, palette, err := cfg.LoadModel()
	require.NoError(t, err)
	assert.Equal(t, 27, grid.Count())
	assert.NoError(t, palette.Validate(grid))

	cam := cfg.NewCamera()
	assert.InDelta(t, 1280.0/720.0, cam.Aspect, 1e-6)
	assert.Equal(t, cfg.Camera.Eye, [3]float32(cam.Eye))
}
