package gpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/voxmesh/voxelrt/rt/compute"
	"github.com/gekko3d/voxmesh/voxelrt/rt/core"
	"github.com/gekko3d/voxmesh/voxelrt/rt/frame"
	"github.com/gekko3d/voxmesh/voxelrt/rt/mesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/shaders"
	"github.com/gekko3d/voxmesh/voxelrt/rt/texture"
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"github.com/cogentcore/webgpu/wgpu"
)

var ErrNothingToPresent = errors.New("no rendered surface texture to present")

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
	MaxFramesInFlight int
	Raster            core.RasterState
	ClearColor        [4]float64
	DebugFaceMask     bool
	Logger            Logger
}

// Renderer is the WebGPU frame backend. The mesh kernel runs as a compute
// pass submitted ahead of the render pass, so queue order keeps the render
// stage behind geometry generation.
type Renderer struct {
	Device  *wgpu.Device
	Queue   *wgpu.Queue
	Surface *wgpu.Surface
	Format  wgpu.TextureFormat

	opts       Options
	log        Logger
	width      uint32
	height     uint32
	voxelCount uint32
	indexCount uint32
	ring       *core.UniformRing

	UniformBuf  *wgpu.Buffer
	VoxelBuf    *wgpu.Buffer
	VertexBuf   *wgpu.Buffer
	IndexBuf    *wgpu.Buffer
	FaceMaskBuf *wgpu.Buffer

	ColorTex      *wgpu.Texture
	ColorView     *wgpu.TextureView
	OccupancyTex  *wgpu.Texture
	OccupancyView *wgpu.TextureView
	DepthTex      *wgpu.Texture
	DepthView     *wgpu.TextureView
	MSAATex       *wgpu.Texture
	MSAAView      *wgpu.TextureView

	ComputePipeline *wgpu.ComputePipeline
	RenderPipeline  *wgpu.RenderPipeline
	ComputeGroups   []*wgpu.BindGroup // one per uniform ring slot
	RenderGroups    []*wgpu.BindGroup

	frameTex  *wgpu.Texture
	frameView *wgpu.TextureView
}

// NewRenderer uploads the model and builds the pipelines for opts.Variant.
// On failure everything created so far is released.
func NewRenderer(device *wgpu.Device, surface *wgpu.Surface, format wgpu.TextureFormat, width, height int, g *volume.Grid, p *volume.Palette, opts Options) (*Renderer, error) {
	if opts.Variant == "" {
		opts.Variant = core.VariantCompute
	}
	if opts.MaxFramesInFlight < 1 {
		opts.MaxFramesInFlight = 1
	}
	if opts.Raster == (core.RasterState{}) {
		opts.Raster = core.DefaultRasterState()
	}
	if opts.Raster.SampleCount == 0 {
		opts.Raster.SampleCount = 1
	}
	if opts.Raster.SampleCount != 1 && opts.Raster.SampleCount != 4 {
		return nil, fmt.Errorf("unsupported sample count %d", opts.Raster.SampleCount)
	}

	r := &Renderer{
		Device:     device,
		Queue:      device.GetQueue(),
		Surface:    surface,
		Format:     format,
		opts:       opts,
		log:        opts.Logger,
		voxelCount: uint32(g.Count()),
		ring:       core.NewUniformRing(opts.MaxFramesInFlight),
	}
	if r.log == nil {
		r.log = nopLogger{}
	}
	if err := r.init(g, p, width, height); err != nil {
		r.Release()
		return nil, err
	}
	r.log.Infof("wgpu renderer: %s pipeline, %d voxels, %dx MSAA", opts.Variant, g.Count(), opts.Raster.SampleCount)
	return r, nil
}

func (r *Renderer) init(g *volume.Grid, p *volume.Palette, width, height int) error {
	colors, err := texture.BuildRGBA(g, p)
	if err != nil {
		return fmt.Errorf("build voxel texture: %w", err)
	}
	if r.ColorTex, r.ColorView, err = r.uploadTexture(colors); err != nil {
		return err
	}
	if r.OccupancyTex, r.OccupancyView, err = r.uploadTexture(texture.BuildOccupancy(g)); err != nil {
		return err
	}

	if err := r.createBuffers(g); err != nil {
		return err
	}
	if err := r.createPipelines(); err != nil {
		return err
	}
	if err := r.createBindGroups(); err != nil {
		return err
	}
	if err := r.createAttachments(width, height); err != nil {
		return err
	}

	if r.opts.Variant == core.VariantStatic {
		return r.generateStatic()
	}
	return nil
}

// uploadTexture copies tex through a row-aligned staging buffer into a new
// 3D texture.
func (r *Renderer) uploadTexture(tex *texture.Texture) (*wgpu.Texture, *wgpu.TextureView, error) {
	format, err := textureFormat(tex.Format)
	if err != nil {
		return nil, nil, err
	}
	extent := wgpu.Extent3D{
		Width:              uint32(tex.Width),
		Height:             uint32(tex.Height),
		DepthOrArrayLayers: uint32(tex.Depth),
	}
	t, err := r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         tex.Label,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension3D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s texture: %w", tex.Label, err)
	}

	data, bytesPerRow, err := tex.Staging(TextureRowAlignment)
	if err == nil {
		err = r.Queue.WriteTexture(t.AsImageCopy(), data, &wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(bytesPerRow),
			RowsPerImage: uint32(tex.Height),
		}, &extent)
	}
	if err != nil {
		t.Release()
		return nil, nil, fmt.Errorf("upload %s texture: %w", tex.Label, err)
	}

	view, err := t.CreateView(nil)
	if err != nil {
		t.Release()
		return nil, nil, err
	}
	r.log.Debugf("uploaded %s texture %dx%dx%d (%s)", tex.Label, tex.Width, tex.Height, tex.Depth, tex.ID)
	return t, view, nil
}

func (r *Renderer) createBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := r.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer: %w", label, err)
	}
	return buf, nil
}

func (r *Renderer) createBuffers(g *volume.Grid) error {
	if err := checkBufferLimits(g.Count(), r.opts.Variant.UsesMeshBuffers(), r.Device.GetLimits().Limits); err != nil {
		return err
	}
	var err error
	if r.UniformBuf, err = r.createBuffer("uniforms", uint64(len(r.ring.Bytes())), wgpu.BufferUsageUniform); err != nil {
		return err
	}

	voxels := packVoxels(g.Voxels())
	if r.VoxelBuf, err = r.createBuffer("voxels", bufferSize(len(voxels)*4), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if len(voxels) > 0 {
		if err := r.Queue.WriteBuffer(r.VoxelBuf, 0, wgpu.ToBytes(voxels)); err != nil {
			return err
		}
	}

	if !r.opts.Variant.UsesMeshBuffers() {
		return nil
	}
	vertices, indices := mesh.Capacity(g.Count())
	r.indexCount = uint32(indices)
	if r.VertexBuf, err = r.createBuffer("vertices", bufferSize(vertices*mesh.VertexStride), wgpu.BufferUsageStorage|wgpu.BufferUsageVertex); err != nil {
		return err
	}
	if r.IndexBuf, err = r.createBuffer("indices", bufferSize(indices*4), wgpu.BufferUsageStorage|wgpu.BufferUsageIndex); err != nil {
		return err
	}
	if r.FaceMaskBuf, err = r.createBuffer("face masks", bufferSize(g.Count()*4), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) createPipelines() error {
	if r.opts.Variant.UsesMeshBuffers() {
		module, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          "mesh generation",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.MeshGenWGSL},
		})
		if err != nil {
			return fmt.Errorf("failed to create mesh generation shader module: %w", err)
		}
		defer module.Release()

		r.ComputePipeline, err = r.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label: "mesh generation",
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: shaders.MeshGenEntry,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create mesh generation pipeline: %w", err)
		}
	}

	code, label := shaders.VoxelMeshWGSL, "voxel mesh"
	var buffers []wgpu.VertexBufferLayout
	if r.opts.Variant.UsesMeshBuffers() {
		layout, err := vertexBufferLayout(mesh.DefaultLayout())
		if err != nil {
			return err
		}
		buffers = []wgpu.VertexBufferLayout{layout}
	} else {
		code, label = shaders.VoxelPullWGSL, "voxel pull"
	}

	module, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return fmt.Errorf("failed to create %s shader module: %w", label, err)
	}
	defer module.Release()

	raster := r.opts.Raster
	r.RenderPipeline, err = r.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: label,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: shaders.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: shaders.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    r.Format,
				Blend:     blendState(raster),
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive:    primitiveState(raster),
		DepthStencil: depthStencilState(raster),
		Multisample: wgpu.MultisampleState{
			Count: r.opts.Raster.SampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create %s pipeline: %w", label, err)
	}
	return nil
}

// createBindGroups binds each uniform ring slot to its own group so a frame
// only ever reads the slot it wrote.
func (r *Renderer) createBindGroups() error {
	for slot := 0; slot < r.ring.Slots(); slot++ {
		uniforms := wgpu.BindGroupEntry{Binding: 0, Buffer: r.UniformBuf, Offset: r.ring.Offset(slot), Size: core.UniformsSize}

		if r.ComputePipeline != nil {
			bg, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Layout: r.ComputePipeline.GetBindGroupLayout(0),
				Entries: []wgpu.BindGroupEntry{
					uniforms,
					{Binding: 1, TextureView: r.OccupancyView},
					{Binding: 2, Buffer: r.VoxelBuf, Size: wgpu.WholeSize},
					{Binding: 3, Buffer: r.VertexBuf, Size: wgpu.WholeSize},
					{Binding: 4, Buffer: r.IndexBuf, Size: wgpu.WholeSize},
					{Binding: 5, Buffer: r.FaceMaskBuf, Size: wgpu.WholeSize},
				},
			})
			if err != nil {
				return fmt.Errorf("mesh generation bind group %d: %w", slot, err)
			}
			r.ComputeGroups = append(r.ComputeGroups, bg)
		}

		entries := []wgpu.BindGroupEntry{
			uniforms,
			{Binding: 1, TextureView: r.ColorView},
		}
		if !r.opts.Variant.UsesMeshBuffers() {
			entries = append(entries,
				wgpu.BindGroupEntry{Binding: 2, TextureView: r.OccupancyView},
				wgpu.BindGroupEntry{Binding: 3, Buffer: r.VoxelBuf, Size: wgpu.WholeSize},
			)
		}
		bg, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout:  r.RenderPipeline.GetBindGroupLayout(0),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("render bind group %d: %w", slot, err)
		}
		r.RenderGroups = append(r.RenderGroups, bg)
	}
	return nil
}

func (r *Renderer) createAttachments(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid drawable size %dx%d", width, height)
	}
	r.releaseAttachments()
	r.width, r.height = uint32(width), uint32(height)
	size := wgpu.Extent3D{Width: r.width, Height: r.height, DepthOrArrayLayers: 1}

	var err error
	r.DepthTex, err = r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   r.opts.Raster.SampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        DepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	if r.DepthView, err = r.DepthTex.CreateView(nil); err != nil {
		return err
	}

	if r.opts.Raster.SampleCount == 1 {
		return nil
	}
	r.MSAATex, err = r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "msaa color",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   r.opts.Raster.SampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        r.Format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create msaa texture: %w", err)
	}
	r.MSAAView, err = r.MSAATex.CreateView(nil)
	return err
}

// generateStatic runs the mesh kernel once and blocks until it finished.
func (r *Renderer) generateStatic() error {
	if r.voxelCount == 0 {
		return nil
	}
	u := core.Uniforms{VoxelCount: r.voxelCount}
	if r.opts.DebugFaceMask {
		u.Flags = core.FlagDebugFaceMask
	}
	if err := r.writeSlot(0, u); err != nil {
		return err
	}
	fence, err := r.dispatch(0, 0)
	if err != nil {
		return err
	}
	for !fence.Signaled() {
		r.Device.Poll(true, nil)
	}
	if err := fence.Err(); err != nil {
		return fmt.Errorf("generate static mesh: %w", err)
	}
	return nil
}

func (r *Renderer) writeSlot(slot int, u core.Uniforms) error {
	if err := r.ring.Write(slot, u); err != nil {
		return err
	}
	return r.Queue.WriteBuffer(r.UniformBuf, r.ring.Offset(slot), r.ring.Slot(slot))
}

// dispatch submits the mesh generation pass on its own. The fence is
// signaled once the queue reports the submission done.
func (r *Renderer) dispatch(id uint64, slot int) (*compute.Fence, error) {
	encoder, err := r.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "mesh generation"})
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(r.ComputePipeline)
	pass.SetBindGroup(0, r.ComputeGroups[slot%len(r.ComputeGroups)], nil)
	x, y := compute.Workgroups(int(r.voxelCount), compute.WorkgroupSize)
	pass.DispatchWorkgroups(x, y, 1)
	if err := pass.End(); err != nil {
		return nil, fmt.Errorf("mesh generation pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer cmd.Release()
	r.Queue.Submit(cmd)

	fence := compute.NewFence(id)
	r.Queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
		fence.Signal(workDoneErr(status))
	})
	return fence, nil
}

func workDoneErr(status wgpu.QueueWorkDoneStatus) error {
	if status == wgpu.QueueWorkDoneStatusSuccess {
		return nil
	}
	return fmt.Errorf("queue work done with status %v", status)
}

func (r *Renderer) Name() string {
	return "wgpu"
}

func (r *Renderer) WriteUniforms(f *frame.Frame) error {
	return r.writeSlot(f.Slot, f.Uniforms)
}

func (r *Renderer) DispatchGeometry(f *frame.Frame) (*compute.Fence, error) {
	if !r.opts.Variant.PerFrameGeometry() || r.voxelCount == 0 {
		return compute.SignaledFence(f.ID, nil), nil
	}
	return r.dispatch(f.ID, f.Slot)
}

// Render encodes and submits the draw. The compute submission for this frame
// is already ahead of it in the queue.
func (r *Renderer) Render(f *frame.Frame, geometry *compute.Fence) error {
	if geometry.ID() != f.ID {
		return fmt.Errorf("%w: frame %d got fence %d", frame.ErrFenceMismatch, f.ID, geometry.ID())
	}
	if geometry.Signaled() && geometry.Err() != nil {
		return geometry.Err()
	}

	surfaceTex, err := r.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := surfaceTex.CreateView(nil)
	if err != nil {
		surfaceTex.Release()
		return err
	}

	if err := r.encodeDraw(f, view); err != nil {
		view.Release()
		surfaceTex.Release()
		return err
	}
	r.frameTex, r.frameView = surfaceTex, view
	return nil
}

func (r *Renderer) encodeDraw(f *frame.Frame, target *wgpu.TextureView) error {
	encoder, err := r.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	c := r.opts.ClearColor
	color := wgpu.RenderPassColorAttachment{
		View:       target,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: wgpu.Color{R: c[0], G: c[1], B: c[2], A: c[3]},
	}
	if r.MSAAView != nil {
		color.View = r.MSAAView
		color.ResolveTarget = target
		color.StoreOp = wgpu.StoreOpDiscard
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	if r.voxelCount > 0 {
		pass.SetPipeline(r.RenderPipeline)
		pass.SetBindGroup(0, r.RenderGroups[f.Slot%len(r.RenderGroups)], nil)
		if r.opts.Variant.UsesMeshBuffers() {
			pass.SetVertexBuffer(0, r.VertexBuf, 0, wgpu.WholeSize)
			pass.SetIndexBuffer(r.IndexBuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			pass.DrawIndexed(r.indexCount, 1, 0, 0, 0)
		} else {
			pass.Draw(uint32(mesh.IndicesPerVoxel), r.voxelCount, 0, 0)
		}
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("render pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	r.Queue.Submit(cmd)
	return nil
}

// Present shows the rendered texture. done runs from Device.Poll once the
// queue has drained the frame's work.
func (r *Renderer) Present(f *frame.Frame, done func(error)) error {
	if r.frameTex == nil {
		return fmt.Errorf("%w: frame %d", ErrNothingToPresent, f.ID)
	}
	r.Surface.Present()
	r.frameView.Release()
	r.frameTex.Release()
	r.frameTex, r.frameView = nil, nil

	r.Queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
		done(workDoneErr(status))
	})
	return nil
}

// Poll lets queued completion callbacks run.
func (r *Renderer) Poll(wait bool) {
	r.Device.Poll(wait, nil)
}

// Resize recreates the depth and multisample attachments. The surface must
// already be reconfigured.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	return r.createAttachments(width, height)
}

func (r *Renderer) releaseAttachments() {
	if r.MSAAView != nil {
		r.MSAAView.Release()
		r.MSAAView = nil
	}
	if r.MSAATex != nil {
		r.MSAATex.Release()
		r.MSAATex = nil
	}
	if r.DepthView != nil {
		r.DepthView.Release()
		r.DepthView = nil
	}
	if r.DepthTex != nil {
		r.DepthTex.Release()
		r.DepthTex = nil
	}
}

// Release frees every GPU object the renderer created. Safe on a partially
// initialized renderer.
func (r *Renderer) Release() {
	if r.frameView != nil {
		r.frameView.Release()
		r.frameView = nil
	}
	if r.frameTex != nil {
		r.frameTex.Release()
		r.frameTex = nil
	}
	r.releaseAttachments()

	for _, bg := range r.RenderGroups {
		bg.Release()
	}
	for _, bg := range r.ComputeGroups {
		bg.Release()
	}
	r.RenderGroups, r.ComputeGroups = nil, nil

	if r.RenderPipeline != nil {
		r.RenderPipeline.Release()
		r.RenderPipeline = nil
	}
	if r.ComputePipeline != nil {
		r.ComputePipeline.Release()
		r.ComputePipeline = nil
	}

	for _, buf := range []**wgpu.Buffer{&r.FaceMaskBuf, &r.IndexBuf, &r.VertexBuf, &r.VoxelBuf, &r.UniformBuf} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
	for _, view := range []**wgpu.TextureView{&r.OccupancyView, &r.ColorView} {
		if *view != nil {
			(*view).Release()
			*view = nil
		}
	}
	for _, tex := range []**wgpu.Texture{&r.OccupancyTex, &r.ColorTex} {
		if *tex != nil {
			(*tex).Release()
			*tex = nil
		}
	}
}
