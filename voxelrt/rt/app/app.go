package app

import (
	"context"
	"fmt"

	"github.com/gekko3d/voxmesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/frame"
	"github.com/gekko3d/voxmesh/voxelrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// App hosts the WebGPU renderer in a GLFW window.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Settings     voxmesh.Config
	Log          voxmesh.Logger
	Camera       *core.Camera
	Renderer     *gpu.Renderer
	Orchestrator *frame.Orchestrator

	MouseX, MouseY float64
	Dragging       bool

	LastRenderTime float64
	FrameCount     int
	FPS            float64
	FPSTime        float64
}

func NewApp(window *glfw.Window, settings voxmesh.Config, log voxmesh.Logger) *App {
	return &App{
		Window:   window,
		Settings: settings,
		Log:      voxmesh.LoggerOrNop(log),
		Camera:   settings.NewCamera(),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	presentMode := wgpu.PresentModeFifo
	if !a.Settings.Window.VSync {
		presentMode = wgpu.PresentModeImmediate
	}
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	grid, palette, err := a.Settings.LoadModel()
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	raster := core.DefaultRasterState()
	raster.SampleCount = uint32(a.Settings.SampleCount)
	a.Renderer, err = gpu.NewRenderer(a.Device, a.Surface, a.Config.Format, width, height, grid, palette, gpu.Options{
		Variant:           a.Settings.Variant(),
		MaxFramesInFlight: a.Settings.MaxFramesInFlight,
		Raster:            raster,
		ClearColor:        a.Settings.Clear,
		DebugFaceMask:     a.Settings.DebugFaceMask,
		Logger:            a.Log,
	})
	if err != nil {
		return err
	}

	a.Camera.SetViewport(width, height)
	a.Orchestrator = frame.New(a.Renderer, a.Camera, core.CenteredOn(grid.SizeX, grid.SizeY, grid.SizeZ), grid.Count(), FrameOptions(a.Settings, a.Log))
	return nil
}

// FrameOptions maps the configuration onto orchestrator options.
func FrameOptions(settings voxmesh.Config, log voxmesh.Logger) frame.Options {
	opts := frame.DefaultOptions()
	opts.MaxFramesInFlight = settings.MaxFramesInFlight
	opts.FrameTimeout = settings.FrameTimeout
	opts.RotationAxis = settings.Rotation.Axis
	opts.RotationStep = settings.Rotation.Step
	opts.Logger = log
	if settings.DebugFaceMask {
		opts.Flags |= core.FlagDebugFaceMask
	}
	return opts
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	if err := a.Renderer.Resize(w, h); err != nil {
		a.Log.Errorf("resize to %dx%d: %v", w, h, err)
	}
	a.Orchestrator.Resize(w, h)
}

// Render runs one frame through the orchestrator and updates the FPS
// counter shown in the window title.
func (a *App) Render(ctx context.Context) {
	a.step(ctx)

	now := glfw.GetTime()
	if a.LastRenderTime > 0 {
		a.FrameCount++
		a.FPSTime += now - a.LastRenderTime
		if a.FPSTime >= 1.0 {
			a.FPS = float64(a.FrameCount) / a.FPSTime
			a.FrameCount = 0
			a.FPSTime = 0
			a.Window.SetTitle(fmt.Sprintf("%s - %s - %.1f FPS", a.Settings.Window.Title, a.Settings.Variant(), a.FPS))
			if a.Log.DebugEnabled() {
				a.Log.Debugf("%s", a.Orchestrator.Profiler().GetStatsString())
			}
		}
	}
	a.LastRenderTime = now
}

// step runs one frame. The orchestrator logs dropped frames itself.
func (a *App) step(ctx context.Context) {
	_ = a.Orchestrator.Frame(ctx)
}

// HandleCursor orbits the camera while the left button is held.
func (a *App) HandleCursor(x, y float64) {
	if a.Dragging {
		a.Camera.Orbit(float32(x-a.MouseX), float32(y-a.MouseY))
	}
	a.MouseX, a.MouseY = x, y
}

func (a *App) HandleClick(button glfw.MouseButton, action glfw.Action) {
	if button == glfw.MouseButtonLeft {
		a.Dragging = action == glfw.Press
	}
}

func (a *App) HandleScroll(yoff float64) {
	a.Camera.Zoom(float32(yoff))
}

// Shutdown waits for in-flight frames and releases GPU resources.
func (a *App) Shutdown(ctx context.Context) {
	if a.Orchestrator != nil {
		if err := a.Orchestrator.Drain(ctx); err != nil {
			a.Log.Warnf("%v", err)
		}
		st := a.Orchestrator.Stats()
		a.Log.Infof("frames: %d submitted, %d completed, %d dropped", st.Submitted, st.Completed, st.Dropped)
	}
	if a.Renderer != nil {
		a.Renderer.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}
