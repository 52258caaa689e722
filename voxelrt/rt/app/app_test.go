package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gekko3d/voxmesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/compute"
	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/frame"

	"github.com/stretchr/testify/assert"
)

// failingBackend rejects every uniform upload.
type failingBackend struct{}

func (failingBackend) Name() string { return "failing" }

func (failingBackend) WriteUniforms(*frame.Frame) error { return errors.New("upload failed") }

func (failingBackend) DispatchGeometry(*frame.Frame) (*compute.Fence, error) { return nil, nil }

func (failingBackend) Render(*frame.Frame, *compute.Fence) error { return nil }

func (failingBackend) Present(*frame.Frame, func(error)) error { return nil }

func TestDroppedFrameIsLoggedOnce(t *testing.T) {
	var out, errOut bytes.Buffer
	log := voxmesh.NewLoggerTo("test", false, &out, &errOut)
	cfg := voxmesh.DefaultConfig()

	a := &App{Settings: cfg, Log: log}
	a.Orchestrator = frame.New(failingBackend{}, cfg.NewCamera(), core.CenteredOn(4, 4, 4), 1, FrameOptions(cfg, log))
	a.step(context.Background())

	all := out.String() + errOut.String()
	assert.Equal(t, 1, strings.Count(all, "upload failed"), all)
	assert.Equal(t, uint64(1), a.Orchestrator.Stats().Dropped)
}
