// Package software runs the voxel pipeline on the CPU: the mesh kernel on a
// worker pool and a small rasterizer for the render stage. It backs headless
// runs and tests.
package software

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gekko3d/voxmesh/voxelrt/rt/compute"
	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/frame"
	"github.com/gekko3d/voxmesh/voxelrt/rt/mesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/texture"
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"
)

// ErrStaleGeometry is returned when the render stage finds buffers that were
// not written for the frame it is drawing.
var ErrStaleGeometry = errors.New("geometry buffers belong to another frame")

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

type Options struct {
	Variant           core.Variant
	Workers           int
	Batch             int
	MaxFramesInFlight int
	MeshCacheDir      string
	Raster            core.RasterState
	DebugFaceMask     bool

	// Width and Height size the color target. Zero renders statistics only.
	Width, Height int
	ClearColor    [4]float64

	FenceTimeout time.Duration
	Logger       Logger
}

func DefaultOptions() Options {
	return Options{
		Variant:           core.VariantCompute,
		MaxFramesInFlight: 1,
		Raster:            core.DefaultRasterState(),
		ClearColor:        [4]float64{0, 0, 0, 1},
		FenceTimeout:      2 * time.Second,
	}
}

// RenderStats describe the last rendered frame.
type RenderStats struct {
	Triangles  int // rasterized
	Culled     int
	Degenerate int
	Clipped    int
	Fragments  int
}

// Backend implements frame.Backend on the CPU.
type Backend struct {
	opts    Options
	log     Logger
	grid    *volume.Grid
	texture *texture.Texture

	dispatcher *compute.PoolDispatcher
	ring       *core.UniformRing

	buffers   *mesh.Buffers
	job       *mesh.Job
	slotStats []mesh.Stats
	meshStats mesh.Stats

	target *target

	mu        sync.Mutex
	last      RenderStats
	presented atomic.Uint64
	pending   sync.WaitGroup
}

// New builds the voxel texture and, for the static variant, the mesh.
func New(g *volume.Grid, p *volume.Palette, opts Options) (*Backend, error) {
	if opts.Variant == "" {
		opts.Variant = core.VariantCompute
	}
	if opts.MaxFramesInFlight < 1 {
		opts.MaxFramesInFlight = 1
	}
	if opts.FenceTimeout <= 0 {
		opts.FenceTimeout = DefaultOptions().FenceTimeout
	}
	if opts.Raster == (core.RasterState{}) {
		opts.Raster = core.DefaultRasterState()
	}

	tex, err := texture.BuildRGBA(g, p)
	if err != nil {
		return nil, fmt.Errorf("build voxel texture: %w", err)
	}

	b := &Backend{
		opts:       opts,
		log:        opts.Logger,
		grid:       g,
		texture:    tex,
		dispatcher: compute.NewPoolDispatcher(opts.Workers, opts.Batch),
		ring:       core.NewUniformRing(opts.MaxFramesInFlight),
	}
	if b.log == nil {
		b.log = nopLogger{}
	}
	if opts.Width > 0 && opts.Height > 0 {
		b.target = newTarget(opts.Width, opts.Height, opts.ClearColor)
	}

	if opts.Variant.UsesMeshBuffers() {
		b.buffers = mesh.NewBuffers(g.Count())
		b.job = mesh.NewJob(g, b.buffers)
		b.slotStats = make([]mesh.Stats, g.Count())
		if opts.DebugFaceMask {
			b.job.FaceMasks = make([]mesh.FaceMask, g.Count())
		}
	}
	if opts.Variant == core.VariantStatic {
		if err := b.prepareStatic(); err != nil {
			b.dispatcher.Close()
			return nil, err
		}
	}
	b.log.Infof("cpu backend: %s pipeline, %d voxels in %dx%dx%d", opts.Variant, g.Count(), g.SizeX, g.SizeY, g.SizeZ)
	return b, nil
}

// prepareStatic generates the mesh once, reusing a capture when one exists.
func (b *Backend) prepareStatic() error {
	if dir := b.opts.MeshCacheDir; dir != "" {
		buf, found, err := mesh.LoadCapture(dir, b.grid)
		if err != nil {
			b.log.Warnf("ignoring mesh capture: %v", err)
		}
		if found {
			b.buffers = buf
			b.job.Buffers = buf
			if b.job.FaceMasks != nil {
				for i, c := range b.job.Voxels {
					b.job.FaceMasks[i] = mesh.ExposedFaces(b.grid, c.X, c.Y, c.Z)
				}
			}
			b.meshStats = statsFor(b.grid)
			b.log.Infof("static mesh loaded from %s", mesh.CapturePath(dir, mesh.Key(b.grid)))
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.FenceTimeout)
	defer cancel()
	if err := b.dispatch(0).Wait(ctx); err != nil {
		return fmt.Errorf("generate static mesh: %w", err)
	}
	b.meshStats = b.sumSlotStats()

	if dir := b.opts.MeshCacheDir; dir != "" {
		path, err := mesh.SaveCapture(dir, b.grid, b.buffers)
		if err != nil {
			b.log.Warnf("saving mesh capture: %v", err)
		} else {
			b.log.Debugf("static mesh captured to %s", path)
		}
	}
	return nil
}

func statsFor(g *volume.Grid) mesh.Stats {
	faces := mesh.CountExposedFaces(g)
	return mesh.Stats{
		Faces:      faces,
		Triangles:  faces * 2,
		Degenerate: g.Count()*int(mesh.FaceCount)*2 - faces*2,
	}
}

func (b *Backend) sumSlotStats() mesh.Stats {
	var total mesh.Stats
	for _, st := range b.slotStats {
		total.Add(st)
	}
	return total
}

// dispatch runs the mesh kernel over every voxel. The returned fence is
// signaled after the buffers are stamped with id.
func (b *Backend) dispatch(id uint64) *compute.Fence {
	kernel := func(i int) error {
		st, err := b.job.Invoke(i)
		b.slotStats[i] = st
		return err
	}
	inner := b.dispatcher.Dispatch(id, "generate_mesh", b.job.Invocations(), kernel)

	out := compute.NewFence(id)
	go func() {
		err := inner.Wait(context.Background())
		if err == nil {
			b.buffers.Generation = id
		}
		out.Signal(err)
	}()
	return out
}

func (b *Backend) Name() string {
	return "cpu"
}

func (b *Backend) WriteUniforms(f *frame.Frame) error {
	return b.ring.Write(f.Slot, f.Uniforms)
}

func (b *Backend) DispatchGeometry(f *frame.Frame) (*compute.Fence, error) {
	if b.opts.Variant.PerFrameGeometry() {
		return b.dispatch(f.ID), nil
	}
	// Static geometry is already resident and vertex pulling has no
	// prepass; the render stage may start at once.
	return compute.SignaledFence(f.ID, nil), nil
}

// Render waits for the geometry fence, then culls and rasterizes the
// frame's triangles with the uniforms of its ring slot.
func (b *Backend) Render(f *frame.Frame, geometry *compute.Fence) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.FenceTimeout)
	defer cancel()
	if err := geometry.Wait(ctx); err != nil {
		return fmt.Errorf("geometry for frame %d: %w", f.ID, err)
	}

	u, err := b.ring.Read(f.Slot)
	if err != nil {
		return err
	}

	var (
		tris       []mesh.Triangle
		degenerate int
	)
	switch b.opts.Variant {
	case core.VariantVertexPulling:
		tris, degenerate = mesh.PullTriangles(b.grid)
	default:
		if b.opts.Variant.PerFrameGeometry() && b.buffers.Generation != f.ID {
			return fmt.Errorf("%w: frame %d found generation %d", ErrStaleGeometry, f.ID, b.buffers.Generation)
		}
		if b.opts.Variant.PerFrameGeometry() {
			b.meshStats = b.sumSlotStats()
		}
		tris = b.buffers.Triangles()
		degenerate = len(b.buffers.Indices)/3 - len(tris)
	}

	if u.Flags&core.FlagDebugFaceMask != 0 && b.job != nil && b.job.FaceMasks != nil {
		b.log.Debugf("frame %d: %d exposed faces", f.ID, b.meshStats.Faces)
	}

	mvp := u.Projection.Mul4(u.ModelView)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = b.draw(mvp, tris)
	b.last.Degenerate = degenerate
	return nil
}

// Present completes the frame from another goroutine, the way a GPU
// completion handler would.
func (b *Backend) Present(f *frame.Frame, done func(error)) error {
	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		b.presented.Add(1)
		done(nil)
	}()
	return nil
}

// Close waits for outstanding completions and stops the worker pool.
func (b *Backend) Close() {
	b.pending.Wait()
	b.dispatcher.Close()
}

func (b *Backend) Stats() RenderStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// MeshStats describes the last generated mesh. It is zero for vertex
// pulling.
func (b *Backend) MeshStats() mesh.Stats {
	return b.meshStats
}

func (b *Backend) Presented() uint64 {
	return b.presented.Load()
}

// Buffers returns the generated mesh, or nil for vertex pulling.
func (b *Backend) Buffers() *mesh.Buffers {
	return b.buffers
}

// FaceMasks returns the per-voxel exposed-face masks of the last
// generation when DebugFaceMask is set.
func (b *Backend) FaceMasks() []mesh.FaceMask {
	if b.job == nil {
		return nil
	}
	return b.job.FaceMasks
}

func (b *Backend) Texture() *texture.Texture {
	return b.texture
}

// Image returns a copy of the color target, or nil when rendering
// statistics only.
func (b *Backend) Image() *image.RGBA {
	if b.target == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	img := image.NewRGBA(b.target.color.Rect)
	copy(img.Pix, b.target.color.Pix)
	return img
}
