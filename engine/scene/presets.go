package scene

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/light"
	"github.com/Carmen-Shannon/oxy-graph/engine/mesh"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	//go:embed assets/forward_vertex.wgsl
	forwardVertexSource string
	//go:embed assets/forward_fragment.wgsl
	forwardFragmentSource string
	//go:embed assets/g_pass_vertex.wgsl
	gPassVertexSource string
	//go:embed assets/g_pass_fragment.wgsl
	gPassFragmentSource string
	//go:embed assets/composite_vertex.wgsl
	compositeVertexSource string
	//go:embed assets/composite_fragment.wgsl
	compositeFragmentSource string
)

// Forward preset labels.
const (
	ForwardMeshBuffer  graph.Label = "mesh-buffer"
	ForwardCamera      graph.Label = "mesh-camera"
	ForwardTexture     graph.Label = "mesh-texture"
	ForwardDepth       graph.Label = "mesh-depth"
	ForwardShaderNode  graph.Label = "mesh-shader"
	forwardTextureSlot             = "mesh-texture-%d"
)

// Deferred preset labels. Each G-buffer target is sampled through a bind group of the same name.
const (
	DeferredMeshBuffer       graph.Label = "mesh-buffer"
	DeferredCamera           graph.Label = "camera-uniform"
	DeferredTexture          graph.Label = "texture-buffer"
	DeferredGPass            graph.Label = "g-pass-shader"
	DeferredPosition         graph.Label = "g-position-buffer"
	DeferredAlbedo           graph.Label = "g-albedo-buffer"
	DeferredNormal           graph.Label = "g-normal-buffer"
	DeferredDepth            graph.Label = "g-depth-buffer"
	DeferredScreenQuadBuffer graph.Label = "screen-quad-buffer"
	DeferredComposite        graph.Label = "composite-shader"
	DeferredLight            graph.Label = "light-uniform"
	deferredTextureSlot                  = "texture-buffer-%d"
)

const (
	// RenderWidth and RenderHeight are the default G-buffer resolution of the deferred preset.
	RenderWidth  uint32 = 1920
	RenderHeight uint32 = 1080

	// DefaultTextureSlots is the default number of per-mesh texture slots.
	DefaultTextureSlots = 4
)

// Layout is what a preset produces for one surface: the descriptors to compile and the live
// component bindings to register on the compiled pipeline.
type Layout struct {
	Set      *graph.DescriptorSet
	Bindings []Binding
	// Watch lists files whose changes should rebuild the pipeline.
	Watch []string
}

// Preset builds a Layout for a surface. It runs again whenever the scene recompiles, so any state
// its rebuild functions keep starts fresh with each compiled pipeline.
type Preset func(surface graph.SurfaceInfo) (Layout, error)

var (
	// defaultMeshTexture is the texture of meshes without their own.
	defaultMeshTexture = common.SolidColor(255, 0, 0, 255)

	meshSampler = common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeNearest,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
	}

	gBufferSampler = common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeNearest,
		MinFilter:    wgpu.FilterModeNearest,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
	}

	cameraUniformSize = uint64((&camera.GPUCameraUniform{}).Size())
	lightUniformSize  = uint64((&light.GPULightUniform{}).Size())
)

// ForwardPipeline is the single-pass preset: every mesh is drawn straight to the surface with its
// texture and the camera uniform, depth tested against a surface-sized depth buffer.
//
// Parameters:
//   - options: optional PresetOption values
//
// Returns:
//   - Preset: the preset
func ForwardPipeline(options ...PresetOption) Preset {
	cfg := newPresetConfig(options)
	return func(surface graph.SurfaceInfo) (Layout, error) {
		b := newLayoutBuilder()
		b.texture(graph.DepthTexture(ForwardDepth, surface.Width, surface.Height))
		b.bindGroup(graph.UniformBindGroup(ForwardCamera,
			graph.UniformLayout(cameraUniformSize, wgpu.ShaderStageVertex), make([]byte, cameraUniformSize)))
		b.bindGroup(graph.UnloadedTextureBindGroup(ForwardTexture, defaultMeshTexture, meshSampler))
		slots := b.textureSlots(forwardTextureSlot, cfg.textureSlots)
		b.bufferGroup(graph.BufferGroupDescriptor{
			Label:            ForwardMeshBuffer,
			ObjectBindGroups: []graph.Label{ForwardTexture},
		})
		b.node(graph.ShaderNodeDescriptor{
			Label:       ForwardShaderNode,
			BufferGroup: ForwardMeshBuffer,
			BindGroups:  []graph.Label{ForwardCamera},
			Depth:       ForwardDepth,
			Program: program(string(ForwardShaderNode), forwardVertexSource, forwardFragmentSource,
				pipeline.WithCullMode(cfg.cull)),
			Clear: cfg.clear,
		})
		if b.err != nil {
			return Layout{}, fmt.Errorf("scene: forward pipeline: %w", b.err)
		}
		return Layout{
			Set: b.set,
			Bindings: []Binding{
				Bind(ForwardMeshBuffer, MeshRebuild(slots...)),
				Bind(ForwardMeshBuffer, CameraRebuild(ForwardCamera)),
			},
		}, nil
	}
}

// DeferredPipeline is the two-pass preset. The geometry pass writes normal, albedo and position
// targets plus depth at the render size; the composite pass samples the three targets and lights a
// screen quad onto the surface with the first light.Light in the world, or a default white light.
//
// Parameters:
//   - options: optional PresetOption values
//
// Returns:
//   - Preset: the preset
func DeferredPipeline(options ...PresetOption) Preset {
	cfg := newPresetConfig(options)
	return func(surface graph.SurfaceInfo) (Layout, error) {
		w, h := cfg.renderWidth, cfg.renderHeight
		gBuffer := []graph.Label{DeferredNormal, DeferredAlbedo, DeferredPosition}

		b := newLayoutBuilder()
		b.texture(graph.RenderTarget(DeferredNormal, w, h, wgpu.TextureFormatRGBA16Float))
		b.texture(graph.RenderTarget(DeferredAlbedo, w, h, wgpu.TextureFormatRGBA8Unorm))
		b.texture(graph.RenderTarget(DeferredPosition, w, h, wgpu.TextureFormatRGBA16Float))
		b.texture(graph.DepthTexture(DeferredDepth, w, h))

		b.bindGroup(graph.UniformBindGroup(DeferredCamera,
			graph.UniformLayout(cameraUniformSize, wgpu.ShaderStageVertex), make([]byte, cameraUniformSize)))
		b.bindGroup(graph.UnloadedTextureBindGroup(DeferredTexture, defaultMeshTexture, meshSampler))
		slots := b.textureSlots(deferredTextureSlot, cfg.textureSlots)
		for _, l := range gBuffer {
			b.bindGroup(graph.TextureBindGroup(l, l, gBufferSampler))
		}
		sun := light.NewLight().Uniform()
		b.bindGroup(graph.UniformBindGroup(DeferredLight,
			graph.UniformLayout(lightUniformSize, wgpu.ShaderStageFragment), sun.Marshal()))

		quadVertices, quadIndices := mesh.ScreenQuad()
		b.bufferGroup(graph.BufferGroupDescriptor{
			Label:            DeferredMeshBuffer,
			ObjectBindGroups: []graph.Label{DeferredTexture},
		})
		b.bufferGroup(graph.BufferGroupDescriptor{
			Label: DeferredScreenQuadBuffer,
			Initial: []graph.MeshBytes{{
				Vertices:    mesh.MarshalVertices(quadVertices),
				VertexCount: len(quadVertices),
				Indices:     mesh.MarshalIndices(quadIndices),
			}},
		})

		b.node(graph.ShaderNodeDescriptor{
			Label:       DeferredGPass,
			BufferGroup: DeferredMeshBuffer,
			BindGroups:  []graph.Label{DeferredCamera},
			Targets:     gBuffer,
			Depth:       DeferredDepth,
			Program: program(string(DeferredGPass), gPassVertexSource, gPassFragmentSource,
				pipeline.WithCullMode(cfg.cull)),
			Clear: &wgpu.Color{},
		})
		b.node(graph.ShaderNodeDescriptor{
			Label:       DeferredComposite,
			BufferGroup: DeferredScreenQuadBuffer,
			BindGroups:  append(gBuffer, DeferredLight),
			Program: program(string(DeferredComposite), compositeVertexSource, compositeFragmentSource,
				pipeline.WithDepthTestEnabled(false),
				pipeline.WithDepthWriteEnabled(false)),
			Clear: cfg.clear,
		})
		if b.err != nil {
			return Layout{}, fmt.Errorf("scene: deferred pipeline: %w", b.err)
		}
		return Layout{
			Set: b.set,
			Bindings: []Binding{
				Bind(DeferredMeshBuffer, MeshRebuild(slots...)),
				Bind(DeferredMeshBuffer, CameraRebuild(DeferredCamera)),
				Bind(DeferredScreenQuadBuffer, LightRebuild(DeferredLight)),
			},
		}, nil
	}
}

// program builds a pipeline from embedded WGSL. The sources ship with the package, so a failure
// here is a programming error.
func program(key, vertex, fragment string, opts ...pipeline.PipelineBuilderOption) pipeline.Pipeline {
	vs, err := shader.NewShaderFromSource(key+"-vertex", shader.ShaderTypeVertex, vertex)
	if err != nil {
		panic(fmt.Sprintf("scene: %s vertex shader: %v", key, err))
	}
	fs, err := shader.NewShaderFromSource(key+"-fragment", shader.ShaderTypeFragment, fragment)
	if err != nil {
		panic(fmt.Sprintf("scene: %s fragment shader: %v", key, err))
	}
	return pipeline.NewPipeline(key, append([]pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
	}, opts...)...)
}

// layoutBuilder adds descriptors to a set, keeping the first error.
type layoutBuilder struct {
	set *graph.DescriptorSet
	err error
}

func newLayoutBuilder() *layoutBuilder {
	return &layoutBuilder{set: graph.NewDescriptorSet()}
}

func (b *layoutBuilder) texture(d graph.TextureDescriptor) {
	if b.err == nil {
		b.err = b.set.AddTexture(d)
	}
}

func (b *layoutBuilder) bindGroup(d graph.BindGroupDescriptor) {
	if b.err == nil {
		b.err = b.set.AddBindGroup(d)
	}
}

func (b *layoutBuilder) bufferGroup(d graph.BufferGroupDescriptor) {
	if b.err == nil {
		b.err = b.set.AddBufferGroup(d)
	}
}

func (b *layoutBuilder) node(d graph.ShaderNodeDescriptor) {
	if b.err == nil {
		b.err = b.set.AddNode(d)
	}
}

// textureSlots declares n mesh texture bind groups named by pattern, each laid out like the default
// mesh texture so it can stand in for it per object.
func (b *layoutBuilder) textureSlots(pattern string, n int) []graph.Label {
	slots := make([]graph.Label, n)
	for i := range slots {
		slots[i] = graph.Label(fmt.Sprintf(pattern, i))
		b.bindGroup(graph.UnloadedTextureBindGroup(slots[i], defaultMeshTexture, meshSampler))
	}
	return slots
}
