package renderer

import (
	"errors"
	"reflect"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	width, height uint32
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	shaderModules shaderModuleCache

	// Frame state between BeginFrame and Present
	frameEncoder *wgpu.CommandEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

type wgpuRendererBackend interface {
	graph.Device

	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Surface() *wgpu.Surface

	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SurfaceInfo returns the size and format the surface was last configured with.
	//
	// Returns:
	//   - graph.SurfaceInfo: the surface size and format
	SurfaceInfo() graph.SurfaceInfo

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the next swapchain texture and creates the frame's command encoder.
	// Must be paired with EndFrame and Present.
	//
	// Returns:
	//   - graph.Frame: the frame passes are recorded into
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() (graph.Frame, error)

	// EndFrame finishes the frame's command encoder and submits it to the GPU queue.
	// Does not present the surface; call Present after EndFrame to display the frame.
	//
	// Returns:
	//   - error: an error if no frame is open or the encoder could not be finished
	EndFrame() error

	// Present presents the surface to the display and releases the swapchain texture.
	Present()

	// Destroy releases the cached shader modules and the device objects.
	Destroy()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, maxBindGroups uint32) wgpuRendererBackend {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeImmediate,
		shaderModules: make(shaderModuleCache),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	limits := wgpu.DefaultLimits()
	if maxBindGroups > limits.MaxBindGroups {
		limits.MaxBindGroups = maxBindGroups
	}

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]
	b.width, b.height = uint32(width), uint32(height)

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       b.width,
		Height:      b.height,
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuRendererBackendImpl) SurfaceInfo() graph.SurfaceInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return graph.SurfaceInfo{Width: b.width, Height: b.height, Format: b.surfaceFormat}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = wgpuPresentMode(mode)
}

func (b *wgpuRendererBackendImpl) CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	return b.device.CreateBuffer(desc)
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	if buf == nil {
		return errors.New("write to nil buffer")
	}
	b.queue.WriteBuffer(buf, offset, data)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	return b.device.CreateTexture(desc)
}

func (b *wgpuRendererBackendImpl) CreateTextureView(tex *wgpu.Texture) (*wgpu.TextureView, error) {
	if tex == nil {
		return nil, errors.New("view of nil texture")
	}
	return tex.CreateView(nil)
}

func (b *wgpuRendererBackendImpl) WriteTexture(tex *wgpu.Texture, staging common.TextureStagingData) error {
	if tex == nil {
		return errors.New("write to nil texture")
	}
	if len(staging.Pixels) == 0 {
		return nil
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		staging.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow(staging),
			RowsPerImage: staging.Height,
		},
		&wgpu.Extent3D{
			Width:              staging.Width,
			Height:             staging.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// bytesPerRow derives the row pitch from the staging size, so float formats upload as well as RGBA8.
func bytesPerRow(staging common.TextureStagingData) uint32 {
	texels := staging.Width * staging.Height
	if texels == 0 || uint32(len(staging.Pixels))%texels != 0 {
		return staging.Width * 4
	}
	return uint32(len(staging.Pixels)) / texels * staging.Width
}

func (b *wgpuRendererBackendImpl) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	return b.device.CreateSampler(desc)
}

func (b *wgpuRendererBackendImpl) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	return b.device.CreateBindGroupLayout(desc)
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return b.device.CreateBindGroup(desc)
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(req graph.PipelineRequest) (*wgpu.RenderPipeline, error) {
	if req.Program == nil {
		return nil, errors.New("render pipeline needs a program")
	}
	if err := req.Program.Validate(); err != nil {
		return nil, err
	}

	vs, err := b.shaderModule(req.Program.Shader(shader.ShaderTypeVertex))
	if err != nil {
		return nil, err
	}
	fs, err := b.shaderModule(req.Program.Shader(shader.ShaderTypeFragment))
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            req.Label,
		BindGroupLayouts: req.BindGroupLayouts,
	})
	if err != nil {
		return nil, err
	}
	defer pipelineLayout.Release()

	return b.device.CreateRenderPipeline(renderPipelineDescriptor(req, pipelineLayout, vs, fs))
}

func (b *wgpuRendererBackendImpl) shaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shaderModules.get(s, b.device.CreateShaderModule, (*wgpu.ShaderModule).Release)
}

// renderPipelineDescriptor builds the render pipeline for one pass: one colour target per pass target
// and a depth state only when the pass has a depth attachment.
func renderPipelineDescriptor(req graph.PipelineRequest, layout *wgpu.PipelineLayout, vs, fs *wgpu.ShaderModule) *wgpu.RenderPipelineDescriptor {
	p := req.Program
	targets := make([]wgpu.ColorTargetState, 0, len(req.ColorFormats))
	for _, format := range req.ColorFormats {
		state := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: p.WriteMask(),
		}
		if p.BlendEnabled() {
			state.Blend = p.BlendState()
		}
		targets = append(targets, state)
	}

	return &wgpu.RenderPipelineDescriptor{
		Label:  req.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: p.Shader(shader.ShaderTypeVertex).EntryPoint(),
			Buffers:    p.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: p.Shader(shader.ShaderTypeFragment).EntryPoint(),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencilState(p, req.DepthFormat),
	}
}

func depthStencilState(p pipeline.Pipeline, format wgpu.TextureFormat) *wgpu.DepthStencilState {
	if format == wgpu.TextureFormatUndefined {
		return nil
	}
	depthCompare := p.DepthCompare()
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}
	return &wgpu.DepthStencilState{
		Format:              format,
		DepthWriteEnabled:   p.DepthTestEnabled() && p.DepthWriteEnabled(),
		DepthCompare:        depthCompare,
		DepthBias:           p.DepthBias(),
		DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
		StencilFront: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
		StencilBack: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
	}
}

func (b *wgpuRendererBackendImpl) Release(resource graph.Releasable) {
	if isNil(resource) {
		return
	}
	resource.Release()
}

// isNil reports whether r is nil or a typed nil pointer.
func isNil(r graph.Releasable) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func (b *wgpuRendererBackendImpl) BeginFrame() (graph.Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A held surface texture means the previous frame was never presented; acquiring another one
	// fails in wgpu-native with "Surface image is already acquired".
	if b.frameSurface != nil {
		return nil, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view

	return &wgpuFrame{encoder: encoder, surfaceView: view}, nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errors.New("no frame in progress")
	}
	encoder := b.frameEncoder
	b.frameEncoder = nil
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		b.releaseFrameSurface()
		return err
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameSurface()
}

func (b *wgpuRendererBackendImpl) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseFrameSurface()
	b.shaderModules.releaseAll((*wgpu.ShaderModule).Release)
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

// wgpuFrame records passes into the frame's command encoder.
type wgpuFrame struct {
	encoder     *wgpu.CommandEncoder
	surfaceView *wgpu.TextureView
}

var _ graph.Frame = &wgpuFrame{}

func (f *wgpuFrame) SurfaceView() *wgpu.TextureView {
	return f.surfaceView
}

func (f *wgpuFrame) BeginRenderPass(desc *wgpu.RenderPassDescriptor) (graph.RenderPass, error) {
	if f.encoder == nil {
		return nil, errors.New("frame has no command encoder")
	}
	return &wgpuRenderPass{pass: f.encoder.BeginRenderPass(desc)}, nil
}

// wgpuRenderPass adapts a render pass encoder to graph.RenderPass. Every draw is a single instance
// with indices in uint32.
type wgpuRenderPass struct {
	pass *wgpu.RenderPassEncoder
}

var _ graph.RenderPass = &wgpuRenderPass{}

func (p *wgpuRenderPass) SetPipeline(rp *wgpu.RenderPipeline) {
	p.pass.SetPipeline(rp)
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, bg *wgpu.BindGroup) {
	p.pass.SetBindGroup(index, bg, nil)
}

func (p *wgpuRenderPass) SetVertexBuffer(buf *wgpu.Buffer, size uint64) {
	p.pass.SetVertexBuffer(0, buf, 0, size)
}

func (p *wgpuRenderPass) SetIndexBuffer(buf *wgpu.Buffer, size uint64) {
	p.pass.SetIndexBuffer(buf, wgpu.IndexFormatUint32, 0, size)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount uint32) {
	p.pass.DrawIndexed(indexCount, 1, 0, 0, 0)
}

func (p *wgpuRenderPass) End() error {
	if p.pass == nil {
		return errors.New("render pass already ended")
	}
	p.pass.End()
	p.pass.Release()
	p.pass = nil
	return nil
}
