package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	maxBindGroups        uint32
}

// Renderer owns the GPU device and the presentation surface.
//
// It is the graph.Device a render graph is compiled against, and it opens the frames a compiled
// pipeline executes into. The Renderer implements a backend which allows for multiple backend API
// implementations to exist.
type Renderer interface {
	graph.Device

	// SurfaceInfo returns the size and format of the presentation surface. Pass it to graph.Finalize
	// so surface-sized targets and surface passes match the swapchain.
	//
	// Returns:
	//   - graph.SurfaceInfo: the surface size and format
	SurfaceInfo() graph.SurfaceInfo

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the swapchain texture and opens a command encoder.
	// Must be paired with EndFrame and Present.
	//
	// Returns:
	//   - graph.Frame: the frame a compiled pipeline executes into
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() (graph.Frame, error)

	// EndFrame submits every pass recorded into the current frame.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	EndFrame() error

	// Present presents the surface to the display and releases the swapchain texture.
	// Must be called once per frame after EndFrame.
	Present()

	// Destroy releases the device, the surface and every cached shader module.
	Destroy()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type for the given window.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - window: the window whose surface is rendered to
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter, r.maxBindGroups)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.ConfigureSurface(window.Width(), window.Height())
	graph.Logger().Info("renderer ready", "surface", r.backend.SurfaceInfo().Format,
		"width", window.Width(), "height", window.Height())

	return r
}

func (r *renderer) SurfaceInfo() graph.SurfaceInfo {
	return r.backend.SurfaceInfo()
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	return r.backend.CreateBuffer(desc)
}

func (r *renderer) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	return r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	return r.backend.CreateTexture(desc)
}

func (r *renderer) CreateTextureView(tex *wgpu.Texture) (*wgpu.TextureView, error) {
	return r.backend.CreateTextureView(tex)
}

func (r *renderer) WriteTexture(tex *wgpu.Texture, staging common.TextureStagingData) error {
	return r.backend.WriteTexture(tex, staging)
}

func (r *renderer) CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	return r.backend.CreateSampler(desc)
}

func (r *renderer) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	return r.backend.CreateBindGroupLayout(desc)
}

func (r *renderer) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return r.backend.CreateBindGroup(desc)
}

func (r *renderer) CreateRenderPipeline(req graph.PipelineRequest) (*wgpu.RenderPipeline, error) {
	return r.backend.CreateRenderPipeline(req)
}

func (r *renderer) Release(resource graph.Releasable) {
	r.backend.Release(resource)
}

func (r *renderer) BeginFrame() (graph.Frame, error) {
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Destroy()
}
