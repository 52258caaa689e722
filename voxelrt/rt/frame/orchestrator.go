package frame

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gekko3d/voxmesh/voxelrt/rt/compute"
	"github.com/gekko3d/voxmesh/voxelrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/semaphore"
)

// Backend executes the stages of one frame. Calls for a frame happen in
// order on the host goroutine; done may be called from any goroutine, and
// exactly once unless Present returns an error.
type Backend interface {
	Name() string
	WriteUniforms(f *Frame) error
	DispatchGeometry(f *Frame) (*compute.Fence, error)
	Render(f *Frame, geometry *compute.Fence) error
	Present(f *Frame, done func(error)) error
}

// Poller is implemented by backends whose completion callbacks only fire
// while the host polls the device.
type Poller interface {
	Poll(wait bool)
}

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
	MaxFramesInFlight int
	FrameTimeout      time.Duration
	RotationAxis      mgl32.Vec3
	RotationStep      float32
	Flags             uint32
	Logger            Logger
	Profiler          *Profiler
}

func DefaultOptions() Options {
	return Options{
		MaxFramesInFlight: 1,
		FrameTimeout:      2 * time.Second,
		RotationAxis:      mgl32.Vec3{1, 1, 0},
		RotationStep:      0.01,
	}
}

type Stats struct {
	Submitted uint64
	Completed uint64
	Dropped   uint64
}

// Orchestrator sequences frames through a Backend while bounding how many
// are in flight.
type Orchestrator struct {
	backend    Backend
	camera     *core.Camera
	model      *core.Transform
	voxelCount uint32
	opts       Options
	log        Logger
	profiler   *Profiler

	gate   *semaphore.Weighted
	nextID uint64
	angle  float32

	submitted atomic.Uint64
	completed atomic.Uint64
	dropped   atomic.Uint64
}

func New(backend Backend, camera *core.Camera, model *core.Transform, voxelCount int, opts Options) *Orchestrator {
	if opts.MaxFramesInFlight < 1 {
		opts.MaxFramesInFlight = 1
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultOptions().FrameTimeout
	}
	o := &Orchestrator{
		backend:    backend,
		camera:     camera,
		model:      model,
		voxelCount: uint32(voxelCount),
		opts:       opts,
		log:        opts.Logger,
		profiler:   opts.Profiler,
		gate:       semaphore.NewWeighted(int64(opts.MaxFramesInFlight)),
	}
	if o.log == nil {
		o.log = nopLogger{}
	}
	if o.profiler == nil {
		o.profiler = NewProfiler()
	}
	return o
}

func (o *Orchestrator) Profiler() *Profiler {
	return o.profiler
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Submitted: o.submitted.Load(),
		Completed: o.completed.Load(),
		Dropped:   o.dropped.Load(),
	}
}

// Resize recomputes the projection for a new drawable size.
func (o *Orchestrator) Resize(width, height int) {
	o.camera.SetViewport(width, height)
}

// Angle is the current model rotation in radians.
func (o *Orchestrator) Angle() float32 {
	return o.angle
}

// acquire takes n gate units, polling the backend while waiting when it
// needs polling for completions to run.
func (o *Orchestrator) acquire(ctx context.Context, n int64) error {
	poller, ok := o.backend.(Poller)
	if !ok {
		return o.gate.Acquire(ctx, n)
	}
	for !o.gate.TryAcquire(n) {
		if err := ctx.Err(); err != nil {
			return err
		}
		poller.Poll(true)
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

// Update advances the model rotation and returns the uniforms for the next
// frame.
func (o *Orchestrator) Update() core.Uniforms {
	o.angle += o.opts.RotationStep
	o.model.SetAxisAngle(o.angle, o.opts.RotationAxis)

	u := core.NewUniforms(o.camera.ProjectionMatrix(), o.camera.ViewMatrix(), o.model.ObjectToWorld(), o.voxelCount)
	u.Flags = o.opts.Flags
	return u
}

// Frame runs one frame up to presentation. It returns once the frame has
// been handed to Present; completion is reported asynchronously. A failing
// stage drops the frame, frees its slot and returns the error.
func (o *Orchestrator) Frame(ctx context.Context) error {
	id := o.nextID
	waitCtx, cancel := context.WithTimeout(ctx, o.opts.FrameTimeout)
	defer cancel()

	o.profiler.BeginScope("wait in-flight")
	err := o.acquire(waitCtx, 1)
	o.profiler.EndScope("wait in-flight")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.dropped.Add(1)
		o.log.Warnf("frame %d: no free slot after %s", id, o.opts.FrameTimeout)
		return fmt.Errorf("%w: frame %d: %v", ErrInFlightTimeout, id, err)
	}

	o.nextID++
	f := newFrame(id, int(id%uint64(o.opts.MaxFramesInFlight)))
	o.submitted.Add(1)

	if err := o.run(f); err != nil {
		o.dropped.Add(1)
		o.gate.Release(1)
		o.log.Errorf("frame %d dropped in %s: %v", f.ID, f.State(), err)
		return err
	}
	return nil
}

func (o *Orchestrator) run(f *Frame) error {
	o.profiler.BeginScope(UniformsUpdated.String())
	f.Uniforms = o.Update()
	if err := o.backend.WriteUniforms(f); err != nil {
		return fmt.Errorf("write uniforms: %w", err)
	}
	if err := f.Advance(UniformsUpdated); err != nil {
		return err
	}
	o.profiler.EndScope(UniformsUpdated.String())

	o.profiler.BeginScope(GeometryDispatched.String())
	fence, err := o.backend.DispatchGeometry(f)
	if err != nil {
		return fmt.Errorf("dispatch geometry: %w", err)
	}
	if err := f.Advance(GeometryDispatched); err != nil {
		return err
	}
	o.profiler.EndScope(GeometryDispatched.String())

	// The render stage is ordered after this fence; it must belong to f.
	if fence == nil || fence.ID() != f.ID {
		got := "nil"
		if fence != nil {
			got = fmt.Sprint(fence.ID())
		}
		return fmt.Errorf("%w: frame %d got fence %s", ErrFenceMismatch, f.ID, got)
	}
	if err := f.Advance(SynchronizationSignaled); err != nil {
		return err
	}

	o.profiler.BeginScope(Rendered.String())
	if err := o.backend.Render(f, fence); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := f.Advance(Rendered); err != nil {
		return err
	}
	o.profiler.EndScope(Rendered.String())

	o.profiler.BeginScope(Presented.String())
	err = o.backend.Present(f, func(err error) { o.complete(f, err) })
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	f.advanceFrom(Rendered)
	o.profiler.EndScope(Presented.String())
	return nil
}

// complete runs when the backend finished the frame. The frame is in
// Rendered or Presented depending on whether done raced Present's return.
func (o *Orchestrator) complete(f *Frame, err error) {
	defer o.gate.Release(1)

	f.advanceFrom(Rendered)
	if advErr := f.Advance(Idle); advErr != nil && err == nil {
		err = advErr
	}
	if err != nil {
		o.dropped.Add(1)
		o.log.Errorf("frame %d failed on completion: %v", f.ID, err)
		return
	}
	o.completed.Add(1)
	o.profiler.SetCount("frames completed", int(o.completed.Load()))
	o.log.Debugf("frame %d complete in %s", f.ID, time.Since(f.Started))
}

// Run renders frames until n have been issued (n <= 0 means until ctx ends),
// then drains. Per-frame errors are logged and do not stop the loop.
func (o *Orchestrator) Run(ctx context.Context, n int) error {
	for i := 0; n <= 0 || i < n; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		_ = o.Frame(ctx)
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), o.opts.FrameTimeout)
	defer cancel()
	return o.Drain(drainCtx)
}

// Drain waits until no frame is in flight.
func (o *Orchestrator) Drain(ctx context.Context) error {
	n := int64(o.opts.MaxFramesInFlight)
	if err := o.acquire(ctx, n); err != nil {
		return fmt.Errorf("%w: drain: %v", ErrInFlightTimeout, err)
	}
	o.gate.Release(n)
	return nil
}
