package app

import (
	"context"
	"fmt"
	"image/color"

	"github.com/gekko3d/voxmesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/export"
	"github.com/gekko3d/voxmesh/voxelrt/rt/frame"
	"github.com/gekko3d/voxmesh/voxelrt/rt/mesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/software"
	"github.com/gekko3d/voxmesh/voxelrt/rt/texture"
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"
)

type HeadlessOptions struct {
	Frames int
	// Preview is a PNG path for the last frame. Empty skips rasterization.
	Preview string
	// Export is a .glb path for the generated mesh.
	Export string
	// Slice is a PNG path for one Z slice of SliceTexture.
	Slice        string
	SliceZ       int
	SliceTexture string
}

// Volume textures a slice dump can show.
const (
	SliceColors    = "colors"
	SliceIndices   = "indices"
	SliceOccupancy = "occupancy"
	SlicePalette   = "palette"
)

type Report struct {
	Backend string
	Voxels  int
	Frames  frame.Stats
	Render  software.RenderStats
	Mesh    mesh.Stats
	Export  *export.Stats
	Profile string
}

// RunHeadless renders settings' model on the CPU backend without a window.
func RunHeadless(ctx context.Context, settings voxmesh.Config, opts HeadlessOptions, log voxmesh.Logger) (Report, error) {
	log = voxmesh.LoggerOrNop(log)
	grid, palette, err := settings.LoadModel()
	if err != nil {
		return Report{}, fmt.Errorf("load model: %w", err)
	}

	swOpts := software.DefaultOptions()
	swOpts.Variant = settings.Variant()
	swOpts.Workers = settings.Workers
	swOpts.MaxFramesInFlight = settings.MaxFramesInFlight
	swOpts.MeshCacheDir = settings.MeshCacheDir
	swOpts.DebugFaceMask = settings.DebugFaceMask
	swOpts.ClearColor = settings.Clear
	swOpts.FenceTimeout = settings.FrameTimeout
	swOpts.Logger = log
	if opts.Preview != "" {
		swOpts.Width, swOpts.Height = settings.Window.Width, settings.Window.Height
	}

	backend, err := software.New(grid, palette, swOpts)
	if err != nil {
		return Report{}, err
	}
	defer backend.Close()

	orch := frame.New(backend, settings.NewCamera(), core.CenteredOn(grid.SizeX, grid.SizeY, grid.SizeZ), grid.Count(), FrameOptions(settings, log))
	if err := orch.Run(ctx, opts.Frames); err != nil {
		return Report{}, err
	}

	report := Report{
		Backend: backend.Name(),
		Voxels:  grid.Count(),
		Frames:  orch.Stats(),
		Render:  backend.Stats(),
		Mesh:    backend.MeshStats(),
		Profile: orch.Profiler().GetStatsString(),
	}
	log.Infof("%d frames completed, %d dropped; last frame %d triangles, %d culled, %d degenerate",
		report.Frames.Completed, report.Frames.Dropped, report.Render.Triangles, report.Render.Culled, report.Render.Degenerate)

	if opts.Preview != "" {
		img := backend.Image()
		texture.Annotate(img, []string{
			fmt.Sprintf("%s / %s", backend.Name(), settings.Variant()),
			fmt.Sprintf("%d voxels, %d triangles", grid.Count(), report.Render.Triangles),
			fmt.Sprintf("frame %d", report.Frames.Submitted),
		}, color.White)
		if err := texture.WritePNG(opts.Preview, img); err != nil {
			return report, err
		}
		log.Infof("preview written to %s", opts.Preview)
	}

	if opts.Slice != "" {
		if err := writeSlice(opts, grid, palette, backend.Texture()); err != nil {
			return report, err
		}
		log.Infof("%s slice %d written to %s", sliceKind(opts), opts.SliceZ, opts.Slice)
	}

	if opts.Export != "" {
		st, err := export.SaveGrid(opts.Export, grid, palette)
		if err != nil {
			return report, err
		}
		report.Export = &st
		log.Infof("exported %d faces to %s", st.Faces, opts.Export)
	}
	return report, nil
}

func sliceKind(opts HeadlessOptions) string {
	if opts.SliceTexture == "" {
		return SliceColors
	}
	return opts.SliceTexture
}

func writeSlice(opts HeadlessOptions, g *volume.Grid, p *volume.Palette, colors *texture.Texture) error {
	var tex *texture.Texture
	switch kind := sliceKind(opts); kind {
	case SliceColors:
		tex = colors
	case SliceIndices:
		tex = texture.BuildPaletted(g)
	case SliceOccupancy:
		tex = texture.BuildOccupancy(g)
	case SlicePalette:
		tex = texture.BuildPalette(p)
	default:
		return fmt.Errorf("unknown slice texture %q", kind)
	}
	img, err := texture.SlicePreview(tex, opts.SliceZ, sliceScale(tex.Width, tex.Height))
	if err != nil {
		return err
	}
	return texture.WritePNG(opts.Slice, img)
}

// sliceScale blows small grids up to roughly 256 pixels on the long side.
func sliceScale(w, h int) int {
	return max(1, 256/max(w, h))
}
