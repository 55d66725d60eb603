package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It is a shader program: the vertex and fragment shaders plus the fixed-function state a render
// pipeline is built from. The realized *wgpu.RenderPipeline is owned by the compiled graph, not by this value.
type pipeline struct {
	// pipelineKey is the unique identifier for this program, used as the GPU object label
	pipelineKey string

	vertexShader, fragmentShader shader.Shader

	// vertexLayouts overrides the layouts reflected from the vertex shader when non-nil
	vertexLayouts []wgpu.VertexBufferLayout

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        wgpu.CompareFunction
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState
}

// Pipeline is the shader program of one render pass: a vertex shader, a fragment shader, the vertex
// buffer layout and the fixed-function state (depth, blend, cull and topology settings). It is
// immutable after construction and consumed by the graph compiler.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this program.
	//
	// Returns:
	//   - string: the unique key for this program
	PipelineKey() string

	// Shader retrieves the shader of the given stage, nil if not set.
	//
	// Parameters:
	//   - shaderType: the stage of the shader to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader for that stage
	Shader(shaderType shader.ShaderType) shader.Shader

	// VertexLayouts returns the vertex buffer layouts: the explicit override if one was provided,
	// otherwise the layouts reflected from the vertex shader.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts
	VertexLayouts() []wgpu.VertexBufferLayout

	// DepthTestEnabled returns whether depth testing is enabled when the pass has a depth attachment.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// DepthCompare returns the depth comparison function used when depth testing is enabled.
	//
	// Returns:
	//   - wgpu.CompareFunction: the comparison function
	DepthCompare() wgpu.CompareFunction

	// DepthBias returns the depth bias value configured for this program.
	//
	// Returns:
	//   - int32: the depth bias value
	DepthBias() int32

	// DepthBiasSlopeScale returns the depth bias slope scale configured for this program.
	//
	// Returns:
	//   - float32: the depth bias slope scale
	DepthBiasSlopeScale() float32

	// BlendEnabled returns whether blending is enabled for this program.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this program.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this program.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this program.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask applied to every colour target.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state, or nil if blending is not enabled.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state
	BlendState() *wgpu.BlendState

	// Validate checks that both stages are present and of the right type.
	//
	// Returns:
	//   - error: a description of the first problem found, or nil
	Validate() error
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new shader program.
//
// Parameters:
//   - pipelineKey: the unique key for this program
//   - opts: a variadic list of PipelineBuilderOption functions to configure the program
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      wgpu.CompareFunctionLessEqual,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) VertexLayouts() []wgpu.VertexBufferLayout {
	if p.vertexLayouts != nil {
		return p.vertexLayouts
	}
	if p.vertexShader == nil {
		return nil
	}
	return p.vertexShader.VertexLayouts()
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthCompare() wgpu.CompareFunction {
	if !p.depthTestEnabled {
		return wgpu.CompareFunctionAlways
	}
	return p.depthCompare
}

func (p *pipeline) DepthBias() int32 {
	return p.depthBias
}

func (p *pipeline) DepthBiasSlopeScale() float32 {
	return p.depthBiasSlopeScale
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	if !p.blendEnabled {
		return nil
	}
	return p.blendState
}

func (p *pipeline) Validate() error {
	var errs []error
	if p.pipelineKey == "" {
		errs = append(errs, errors.New("pipeline key is empty"))
	}
	if p.vertexShader == nil {
		errs = append(errs, fmt.Errorf("program %s has no vertex shader", p.pipelineKey))
	} else if p.vertexShader.ShaderType() != shader.ShaderTypeVertex {
		errs = append(errs, fmt.Errorf("program %s: %s is not a vertex shader", p.pipelineKey, p.vertexShader.Key()))
	}
	if p.fragmentShader == nil {
		errs = append(errs, fmt.Errorf("program %s has no fragment shader", p.pipelineKey))
	} else if p.fragmentShader.ShaderType() != shader.ShaderTypeFragment {
		errs = append(errs, fmt.Errorf("program %s: %s is not a fragment shader", p.pipelineKey, p.fragmentShader.Key()))
	}
	return errors.Join(errs...)
}
