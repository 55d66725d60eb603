package graph

import (
	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// Releasable is any GPU handle the device can release.
type Releasable = bind_group_provider.Releasable

// PipelineRequest carries what the device needs to build one render pipeline: the program, the
// bind group layouts in group order and the formats of the pass it will run in.
type PipelineRequest struct {
	Label            string
	Program          pipeline.Pipeline
	BindGroupLayouts []*wgpu.BindGroupLayout
	ColorFormats     []wgpu.TextureFormat
	// DepthFormat is TextureFormatUndefined when the pass has no depth attachment.
	DepthFormat wgpu.TextureFormat
}

// Device creates and releases GPU resources for the compiler. The wgpu backend in engine/renderer
// implements it; tests substitute a recording fake.
type Device interface {
	CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error)
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error
	CreateTexture(desc *wgpu.TextureDescriptor) (*wgpu.Texture, error)
	CreateTextureView(tex *wgpu.Texture) (*wgpu.TextureView, error)
	WriteTexture(tex *wgpu.Texture, staging common.TextureStagingData) error
	CreateSampler(desc *wgpu.SamplerDescriptor) (*wgpu.Sampler, error)
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error)
	CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)
	CreateRenderPipeline(req PipelineRequest) (*wgpu.RenderPipeline, error)
	// Release frees a handle created by this device. Nil handles are ignored.
	Release(resource Releasable)
}

// Frame is one frame being recorded.
type Frame interface {
	// SurfaceView is the presentation target for nodes without Targets.
	SurfaceView() *wgpu.TextureView
	BeginRenderPass(desc *wgpu.RenderPassDescriptor) (RenderPass, error)
}

// RenderPass records the commands of one pass.
type RenderPass interface {
	SetPipeline(p *wgpu.RenderPipeline)
	SetBindGroup(index uint32, bg *wgpu.BindGroup)
	SetVertexBuffer(buf *wgpu.Buffer, size uint64)
	SetIndexBuffer(buf *wgpu.Buffer, size uint64)
	DrawIndexed(indexCount uint32)
	End() error
}
