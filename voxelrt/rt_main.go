package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/gekko3d/voxmesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/app"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	asset := flag.String("asset", "", "MagicaVoxel .vox file (overrides config)")
	shape := flag.String("shape", "", "procedural shape when no asset is given")
	backend := flag.String("backend", "", "wgpu or cpu")
	pipeline := flag.String("pipeline", "", "compute, static or vertex-pulling")
	frames := flag.Int("frames", 60, "frames to render headless; 0 runs until interrupted")
	preview := flag.String("preview", "", "write the last headless frame to this PNG")
	exportPath := flag.String("export", "", "write the generated mesh to this .glb")
	slicePath := flag.String("slice", "", "write one Z slice of a volume texture to this PNG")
	sliceZ := flag.Int("slice-z", 0, "Z index of the slice")
	sliceTex := flag.String("slice-texture", app.SliceColors, "colors, indices, occupancy or palette")
	debug := flag.Bool("debug", false, "Enable debug logging and face masks")
	flag.Parse()

	log := voxmesh.NewDefaultLogger("voxmesh", *debug)
	cfg, err := loadSettings(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}
	if *asset != "" {
		cfg.Asset = *asset
	}
	if *shape != "" {
		cfg.Shape = *shape
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *pipeline != "" {
		cfg.Pipeline = *pipeline
	}
	if *debug {
		cfg.Debug = true
		cfg.DebugFaceMask = cfg.Variant().UsesMeshBuffers()
	}
	log.SetDebug(cfg.Debug)
	if err := cfg.Validate(); err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Backend == voxmesh.BackendCPU {
		report, err := app.RunHeadless(ctx, cfg, app.HeadlessOptions{
			Frames:       *frames,
			Preview:      *preview,
			Export:       *exportPath,
			Slice:        *slicePath,
			SliceZ:       *sliceZ,
			SliceTexture: *sliceTex,
		}, log)
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		fmt.Print(report.Profile)
		return
	}

	if err := runWindow(ctx, cfg, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func loadSettings(path string) (voxmesh.Config, error) {
	if path == "" {
		return voxmesh.DefaultConfig(), nil
	}
	return voxmesh.LoadConfig(path)
}

func runWindow(ctx context.Context, cfg voxmesh.Config, log voxmesh.Logger) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FrameTimeout)
		defer cancel()
		application.Shutdown(shutdownCtx)
	}()
	if err := application.Init(); err != nil {
		return err
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		application.HandleCursor(xpos, ypos)
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		application.HandleClick(button, action)
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		application.HandleScroll(yoff)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() && ctx.Err() == nil {
		glfw.PollEvents()
		application.Render(ctx)
	}
	return nil
}
