package graph

import (
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeDeferredPipeline(t *testing.T) {
	device := newFakeDevice()
	compiled, err := Finalize(device, deferredSet(t), testSurface)
	require.NoError(t, err)
	defer compiled.Release()

	passes := compiled.Passes()
	require.Len(t, passes, 2)
	assert.Equal(t, Label("g-pass"), passes[0].Label)
	assert.Equal(t, Label("composite"), passes[1].Label)

	// The geometry pass output is the texture behind the composite pass input.
	require.Len(t, passes[0].Targets, 1)
	input, ok := compiled.BindGroupTexture(passes[1].BindGroups[0])
	require.True(t, ok)
	assert.Equal(t, passes[0].Targets[0], input)
	assert.Equal(t, Label("g-depth"), passes[0].Depth)
	assert.Empty(t, passes[1].Targets)

	require.Len(t, device.pipelines, 2)
	assert.Equal(t, []wgpu.TextureFormat{wgpu.TextureFormatRGBA16Float}, device.pipelines[0].ColorFormats)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, device.pipelines[0].DepthFormat)
	assert.Equal(t, []wgpu.TextureFormat{testSurface.Format}, device.pipelines[1].ColorFormats)
	assert.Equal(t, wgpu.TextureFormatUndefined, device.pipelines[1].DepthFormat)
	assert.Len(t, device.pipelines[0].BindGroupLayouts, 1)

	// The composite pass borrows the g-pass target view rather than creating its own.
	view, ok := compiled.TextureView("g-normal")
	require.True(t, ok)
	provider, ok := compiled.BindGroupProvider("g-normal-input")
	require.True(t, ok)
	assert.Same(t, view, provider.TextureView(0))
	assert.NotNil(t, provider.Sampler(1))

	camera, ok := compiled.BindGroupProvider("camera")
	require.True(t, ok)
	assert.Equal(t, uint64(64), camera.BufferSize(0))

	quad, ok := compiled.BufferGroup("screen-quad")
	require.True(t, ok)
	assert.Equal(t, 1, quad.Draws)
	assert.Equal(t, 6, quad.Indices)
}

func TestFinalizeValidatesBeforeAnyDeviceCall(t *testing.T) {
	set := deferredSet(t)
	set.nodes[1].BindGroups = []Label{"missing"}
	device := newFakeDevice()

	compiled, err := Finalize(device, set, testSurface)
	assert.Nil(t, compiled)
	assert.ErrorIs(t, err, ErrUnknownLabel)
	assert.Zero(t, device.creations())
}

func TestFinalizeRequiresSurfaceFormat(t *testing.T) {
	device := newFakeDevice()
	_, err := Finalize(device, deferredSet(t), SurfaceInfo{Width: 640, Height: 480})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.Zero(t, device.creations())
}

func TestFinalizeReleasesEverythingOnDeviceFailure(t *testing.T) {
	// failAfter lets some creations succeed first so a partially built pipeline must be unwound.
	cases := map[string]int{
		"texture":           1,
		"view":              1,
		"buffer":            1,
		"write_buffer":      1,
		"sampler":           0,
		"bind_group_layout": 1,
		"bind_group":        1,
		"render_pipeline":   1,
	}
	for kind, failAfter := range cases {
		t.Run(kind, func(t *testing.T) {
			device := newFakeDevice()
			device.failKind = kind
			device.failAfter = failAfter

			compiled, err := Finalize(device, deferredSet(t), testSurface)
			assert.Nil(t, compiled)
			assert.ErrorIs(t, err, ErrDeviceResource)
			assert.Empty(t, device.live, "every created handle is released")
			assert.Zero(t, device.doubleRelease)
		})
	}
}

func TestFinalizeWithShaderValidation(t *testing.T) {
	set := deferredSet(t)
	set.nodes[1].Program = program(t, "broken", compositeVertex, `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return undefined_value;
}
`)
	device := newFakeDevice()

	_, err := Finalize(device, set, testSurface, WithShaderValidation(true))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.Zero(t, device.creations())
}

func TestReleaseIsIdempotent(t *testing.T) {
	device := newFakeDevice()
	compiled, err := Finalize(device, deferredSet(t), testSurface)
	require.NoError(t, err)
	require.NotEmpty(t, device.live)

	compiled.Release()
	assert.Empty(t, device.live)
	compiled.Release()
	assert.Zero(t, device.doubleRelease)

	_, err = compiled.Execute(&fakeFrame{surface: &wgpu.TextureView{}})
	assert.Error(t, err)
}

func TestSamplerDefaultsFollowLayout(t *testing.T) {
	filtering := samplerDescriptor("albedo", common.SamplerStagingData{}, wgpu.SamplerBindingTypeFiltering)
	assert.Equal(t, wgpu.FilterModeLinear, filtering.MagFilter)
	assert.Equal(t, wgpu.AddressModeRepeat, filtering.AddressModeU)
	assert.Equal(t, float32(32), filtering.LodMaxClamp)
	assert.Equal(t, uint16(1), filtering.MaxAnisotropy)

	depth := samplerDescriptor("depth", common.SamplerStagingData{MagFilter: wgpu.FilterModeNearest}, wgpu.SamplerBindingTypeComparison)
	assert.Equal(t, wgpu.FilterModeNearest, depth.MinFilter)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, depth.Compare)

	custom := samplerDescriptor("clamped", common.SamplerStagingData{AddressModeU: wgpu.AddressModeClampToEdge}, wgpu.SamplerBindingTypeFiltering)
	assert.Equal(t, wgpu.AddressModeClampToEdge, custom.AddressModeU)
	assert.Equal(t, wgpu.AddressModeRepeat, custom.AddressModeV)
}

func TestGraphErrorMessage(t *testing.T) {
	err := newError(ErrUnknownLabel, NamespaceBindGroups, "albedo", "forward", fmt.Errorf("boom"))
	assert.Equal(t, `unknown label: node "forward": bind group "albedo": boom`, err.Error())
}
