package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexSource = `
//@oxy:include mesh_vertex

@vertex
fn vs_main(in: MeshVertex) -> @builtin(position) vec4<f32> {
    return vec4<f32>(in.world_pos, 1.0);
}
`

const fragmentSource = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func testShaders(t *testing.T) (shader.Shader, shader.Shader) {
	t.Helper()
	vs, err := shader.NewShaderFromSource("vs", shader.ShaderTypeVertex, vertexSource)
	require.NoError(t, err)
	fs, err := shader.NewShaderFromSource("fs", shader.ShaderTypeFragment, fragmentSource)
	require.NoError(t, err)
	return vs, fs
}

func TestNewPipelineDefaults(t *testing.T) {
	vs, fs := testShaders(t)
	p := NewPipeline("forward", WithVertexShader(vs), WithFragmentShader(fs))

	assert.Equal(t, "forward", p.PipelineKey())
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.CompareFunctionLessEqual, p.DepthCompare())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Nil(t, p.BlendState())
	assert.NoError(t, p.Validate())

	layouts := p.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(36), layouts[0].ArrayStride)
	assert.Len(t, layouts[0].Attributes, 4)
}

func TestPipelineOptions(t *testing.T) {
	override := wgpu.VertexBufferLayout{ArrayStride: 16, StepMode: wgpu.VertexStepModeVertex}
	p := NewPipeline("composite",
		WithDepthTestEnabled(false),
		WithBlendEnabled(true),
		WithVertexLayouts(override),
		WithCullMode(wgpu.CullModeBack),
	)
	assert.Equal(t, wgpu.CompareFunctionAlways, p.DepthCompare())
	assert.NotNil(t, p.BlendState())
	assert.Equal(t, []wgpu.VertexBufferLayout{override}, p.VertexLayouts())
	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
}

func TestValidateRejectsMissingOrSwappedStages(t *testing.T) {
	vs, fs := testShaders(t)

	assert.Error(t, NewPipeline("empty").Validate())
	assert.Error(t, NewPipeline("swapped", WithVertexShader(fs), WithFragmentShader(vs)).Validate())
	assert.Error(t, NewPipeline("", WithVertexShader(vs), WithFragmentShader(fs)).Validate())
}
