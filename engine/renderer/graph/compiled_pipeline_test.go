package graph

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileDeferred(t *testing.T) (*fakeDevice, CompiledPipeline) {
	t.Helper()
	device := newFakeDevice()
	compiled, err := Finalize(device, deferredSet(t), testSurface)
	require.NoError(t, err)
	t.Cleanup(compiled.Release)
	return device, compiled
}

func TestExecuteEmptyBufferGroupDrawsNothing(t *testing.T) {
	_, compiled := compileDeferred(t)
	frame := &fakeFrame{surface: &wgpu.TextureView{}}

	stats, err := compiled.Execute(frame)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Passes)
	assert.Zero(t, stats.Skipped)
	assert.Equal(t, 1, stats.Draws, "only the screen quad draws")

	require.Len(t, frame.passes, 2)
	assert.Empty(t, frame.passes[0].draws)
	assert.True(t, frame.passes[0].ended, "an empty pass still clears its targets")
	assert.Equal(t, []uint32{6}, frame.passes[1].draws)
	assert.True(t, frame.passes[1].ended)
}

func TestExecuteBuildsAttachments(t *testing.T) {
	_, compiled := compileDeferred(t)
	surface := &wgpu.TextureView{}
	frame := &fakeFrame{surface: surface}

	_, err := compiled.Execute(frame)
	require.NoError(t, err)

	normal, _ := compiled.TextureView("g-normal")
	depth, _ := compiled.TextureView("g-depth")
	gpass := frame.descs[0]
	require.Len(t, gpass.ColorAttachments, 1)
	assert.Same(t, normal, gpass.ColorAttachments[0].View)
	assert.Equal(t, wgpu.LoadOpClear, gpass.ColorAttachments[0].LoadOp)
	assert.Equal(t, defaultClear, gpass.ColorAttachments[0].ClearValue)
	require.NotNil(t, gpass.DepthStencilAttachment)
	assert.Same(t, depth, gpass.DepthStencilAttachment.View)
	assert.Equal(t, float32(1.0), gpass.DepthStencilAttachment.DepthClearValue)

	composite := frame.descs[1]
	require.Len(t, composite.ColorAttachments, 1)
	assert.Same(t, surface, composite.ColorAttachments[0].View)
	assert.Nil(t, composite.DepthStencilAttachment)

	provider, _ := compiled.BindGroupProvider("g-normal-input")
	assert.Equal(t, []*wgpu.BindGroup{provider.BindGroup()}, frame.passes[1].bindGroups[0])
	assert.Same(t, compiled.Passes()[1].RenderPipeline, frame.passes[1].pipeline)
}

func TestExecuteWithoutSurfaceView(t *testing.T) {
	_, compiled := compileDeferred(t)
	_, err := compiled.Execute(&fakeFrame{})
	assert.ErrorContains(t, err, "composite")
}

func TestReplaceBufferGroupVertexCounts(t *testing.T) {
	for _, n := range []int{0, 1, 1000} {
		_, compiled := compileDeferred(t)
		objects := make([]MeshBytes, n)
		for i := range objects {
			objects[i] = cubeBytes()
		}
		require.NoError(t, compiled.ReplaceBufferGroup("meshes", objects))

		info, ok := compiled.BufferGroup("meshes")
		require.True(t, ok)
		assert.Equal(t, n*24, info.Vertices, "n=%d", n)
		assert.Equal(t, n, info.Draws)

		frame := &fakeFrame{surface: &wgpu.TextureView{}}
		stats, err := compiled.Execute(frame)
		require.NoError(t, err)
		assert.Len(t, frame.passes[0].draws, n)
		assert.Equal(t, n+1, stats.Draws)
	}
}

func TestReplaceBufferGroupReusesBuffers(t *testing.T) {
	device, compiled := compileDeferred(t)
	require.NoError(t, compiled.ReplaceBufferGroup("meshes", []MeshBytes{cubeBytes(), cubeBytes()}))
	created := device.counts["buffer"]
	live := device.liveOf("buffer")

	require.NoError(t, compiled.ReplaceBufferGroup("meshes", []MeshBytes{cubeBytes(), cubeBytes()}))
	assert.Equal(t, created, device.counts["buffer"], "same sized data reuses buffers")

	bigger := cubeBytes()
	bigger.Vertices = make([]byte, 48*36)
	bigger.VertexCount = 48
	require.NoError(t, compiled.ReplaceBufferGroup("meshes", []MeshBytes{bigger}))
	assert.Equal(t, created+1, device.counts["buffer"])
	assert.Equal(t, live-2, device.liveOf("buffer"), "the grown buffer and the surplus object are released")
	assert.Zero(t, device.doubleRelease)
}

func TestReplaceBufferGroupIsIdempotent(t *testing.T) {
	device, compiled := compileDeferred(t)
	objects := []MeshBytes{cubeBytes()}
	objects[0].Vertices[0] = 7

	require.NoError(t, compiled.ReplaceBufferGroup("meshes", objects))
	first := snapshot(device)
	require.NoError(t, compiled.ReplaceBufferGroup("meshes", objects))
	assert.Equal(t, first, snapshot(device))
}

func snapshot(d *fakeDevice) map[*wgpu.Buffer]string {
	out := make(map[*wgpu.Buffer]string, len(d.contents))
	for b, c := range d.contents {
		if _, ok := d.live[b]; ok {
			out[b] = string(c)
		}
	}
	return out
}

func TestReplaceBufferGroupRejectsInvalidObjects(t *testing.T) {
	_, compiled := compileDeferred(t)
	require.NoError(t, compiled.ReplaceBufferGroup("meshes", []MeshBytes{cubeBytes()}))

	bad := cubeBytes()
	bad.IndexCount = 1000
	err := compiled.ReplaceBufferGroup("meshes", []MeshBytes{cubeBytes(), bad})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	info, _ := compiled.BufferGroup("meshes")
	assert.Equal(t, 1, info.Objects, "a rejected replace changes nothing")
	assert.ErrorIs(t, compiled.ReplaceBufferGroup("missing", nil), ErrUnknownLabel)
}

func TestInvalidatedGroupsSkipTheirPasses(t *testing.T) {
	_, compiled := compileDeferred(t)
	require.NoError(t, compiled.InvalidateBufferGroup("meshes"))

	stats, err := compiled.Execute(&fakeFrame{surface: &wgpu.TextureView{}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Passes)
	assert.Equal(t, []Label{"g-pass"}, stats.SkippedPasses)

	require.NoError(t, compiled.RestoreBufferGroup("meshes"))
	info, ok := compiled.BufferGroup("meshes")
	require.True(t, ok)
	assert.False(t, info.Stale)
	stats, err = compiled.Execute(&fakeFrame{surface: &wgpu.TextureView{}})
	require.NoError(t, err)
	assert.Empty(t, stats.SkippedPasses, "a restored group draws its current objects")

	require.NoError(t, compiled.InvalidateBufferGroup("meshes"))
	require.NoError(t, compiled.ReplaceBufferGroup("meshes", nil))
	require.NoError(t, compiled.InvalidateBindGroup("g-normal-input"))
	stats, err = compiled.Execute(&fakeFrame{surface: &wgpu.TextureView{}})
	require.NoError(t, err)
	assert.Equal(t, []Label{"composite"}, stats.SkippedPasses)

	assert.ErrorIs(t, compiled.InvalidateBufferGroup("missing"), ErrUnknownLabel)
	assert.ErrorIs(t, compiled.InvalidateBindGroup("missing"), ErrUnknownLabel)
	assert.ErrorIs(t, compiled.RestoreBufferGroup("missing"), ErrUnknownLabel)
}

func TestWriteBindGroup(t *testing.T) {
	device, compiled := compileDeferred(t)
	camera, _ := compiled.BindGroupProvider("camera")

	require.NoError(t, compiled.WriteBindGroup("camera", 60, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, device.contents[camera.Buffer(0)][60:])

	assert.ErrorIs(t, compiled.WriteBindGroup("camera", 62, []byte{1}), ErrInvalidDescriptor)
	assert.ErrorIs(t, compiled.WriteBindGroup("camera", 64, []byte{1}), ErrInvalidDescriptor)
	assert.ErrorIs(t, compiled.WriteBindGroup("g-normal-input", 0, []byte{1}), ErrInvalidDescriptor)
	assert.ErrorIs(t, compiled.WriteBindGroup("missing", 0, nil), ErrUnknownLabel)

	device.failKind = "write_buffer"
	device.failAfter = device.counts["write_buffer"]
	assert.ErrorIs(t, compiled.WriteBindGroup("camera", 0, make([]byte, 64)), ErrDeviceResource)
	stats, err := compiled.Execute(&fakeFrame{surface: &wgpu.TextureView{}})
	require.NoError(t, err)
	assert.Equal(t, []Label{"g-pass"}, stats.SkippedPasses, "a failed write skips the passes reading it")

	device.failKind = ""
	require.NoError(t, compiled.WriteBindGroup("camera", 0, make([]byte, 64)))
	stats, err = compiled.Execute(&fakeFrame{surface: &wgpu.TextureView{}})
	require.NoError(t, err)
	assert.Zero(t, stats.Skipped)
}

// forwardSet draws textured meshes straight to the surface, each object binding its own texture.
func forwardSet(t *testing.T) *DescriptorSet {
	t.Helper()
	pixels := solid(2, 2)
	set := NewDescriptorSet()
	require.NoError(t, set.AddTexture(DepthTexture("depth", 640, 480)))
	require.NoError(t, set.AddBindGroup(UniformBindGroup("camera", UniformLayout(64, wgpu.ShaderStageVertex), make([]byte, 64))))
	require.NoError(t, set.AddBindGroup(UnloadedTextureBindGroup("albedo", pixels, common.SamplerStagingData{})))
	require.NoError(t, set.AddBindGroup(UnloadedTextureBindGroup("albedo-alt", pixels, common.SamplerStagingData{})))

	alt := cubeBytes()
	alt.BindGroups = []Label{"albedo-alt"}
	require.NoError(t, set.AddBufferGroup(BufferGroupDescriptor{
		Label:            "meshes",
		ObjectBindGroups: []Label{"albedo"},
		Initial:          []MeshBytes{cubeBytes(), alt},
	}))
	require.NoError(t, set.AddNode(ShaderNodeDescriptor{
		Label:       "forward",
		BufferGroup: "meshes",
		BindGroups:  []Label{"camera"},
		Depth:       "depth",
		Program:     program(t, "forward", geometryVertex, texturedFragment),
	}))
	return set
}

func TestObjectBindGroups(t *testing.T) {
	device := newFakeDevice()
	compiled, err := Finalize(device, forwardSet(t), testSurface)
	require.NoError(t, err)
	defer compiled.Release()

	require.Len(t, device.pipelines, 1)
	assert.Len(t, device.pipelines[0].BindGroupLayouts, 2, "shared then object groups")

	frame := &fakeFrame{surface: &wgpu.TextureView{}}
	stats, err := compiled.Execute(frame)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Draws)

	albedo, _ := compiled.BindGroupProvider("albedo")
	alt, _ := compiled.BindGroupProvider("albedo-alt")
	assert.Equal(t, []*wgpu.BindGroup{albedo.BindGroup(), alt.BindGroup()}, frame.passes[0].bindGroups[1])
	assert.Equal(t, 2, device.textureWrites[albedo.Texture()]+device.textureWrites[alt.Texture()])
}

func TestObjectOverrideNeedsMatchingLayout(t *testing.T) {
	set := forwardSet(t)
	set.bufferGroups[0].Initial[1].BindGroups = []Label{"camera"}
	assert.ErrorIs(t, set.Validate(), ErrLayoutMismatch)

	set.bufferGroups[0].Initial[1].BindGroups = []Label{"albedo", "albedo-alt"}
	assert.ErrorIs(t, set.Validate(), ErrInvalidDescriptor)
}

func TestWriteTexture(t *testing.T) {
	device := newFakeDevice()
	compiled, err := Finalize(device, forwardSet(t), testSurface)
	require.NoError(t, err)
	defer compiled.Release()

	albedo, _ := compiled.BindGroupProvider("albedo")
	tex, bg := albedo.Texture(), albedo.BindGroup()

	require.NoError(t, compiled.WriteTexture("albedo", solid(2, 2)))
	assert.Same(t, tex, albedo.Texture(), "same size writes in place")
	assert.Equal(t, 2, device.textureWrites[tex])

	require.NoError(t, compiled.WriteTexture("albedo", solid(4, 4)))
	assert.NotSame(t, tex, albedo.Texture())
	assert.NotSame(t, bg, albedo.BindGroup())
	assert.NotContains(t, device.live, Releasable(tex))
	assert.NotContains(t, device.live, Releasable(bg))

	assert.ErrorIs(t, compiled.WriteTexture("camera", solid(1, 1)), ErrInvalidDescriptor)
	assert.ErrorIs(t, compiled.WriteTexture("albedo", common.TextureStagingData{Width: 2, Height: 2, Pixels: []byte{1}}), ErrInvalidDescriptor)
}
