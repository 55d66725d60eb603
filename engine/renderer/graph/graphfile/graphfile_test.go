package graphfile

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gPassShader = `
//@oxy:include camera
//@oxy:group 0 0 storage_uniform camera camera
//@oxy:include mesh_vertex

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) normal: vec3<f32>,
}

@vertex
fn vs_main(in: MeshVertex) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = camera.view_proj * vec4<f32>(in.world_pos, 1.0);
    out.normal = in.normal;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(normalize(in.normal), 1.0);
}
`

const compositeShader = `
//@oxy:include screen_quad_vertex

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var normal_tex: texture_2d<f32>;
@group(0) @binding(1) var normal_sampler: sampler;

@vertex
fn vs_main(in: ScreenQuadVertex) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = vec4<f32>(in.position, 0.0, 1.0);
    out.uv = in.tex_coords;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(normal_tex, normal_sampler, in.uv);
}
`

const deferredYAML = `
textures:
  - label: g-normal
    kind: render_target
    format: rgba16float
  - label: g-depth
    kind: depth
  - label: logo
    kind: image
    image: textures/logo.png
bind_groups:
  - label: camera
    kind: uniform
    size: 64
    visibility: [vertex]
  - label: g-normal
    kind: texture
    texture: g-normal
    sampler:
      filter: nearest
      address: clamp
  - label: white
    kind: color
    color: [255, 255, 255, 255]
  - label: logo-input
    kind: image
    image: textures/logo.png
buffer_groups:
  - label: meshes
  - label: screen-quad
    screen_quad: true
nodes:
  - label: g-pass
    buffer_group: meshes
    bind_groups: [camera]
    targets: [g-normal]
    depth: g-depth
    vertex: shaders/g_pass.wgsl
    fragment: shaders/g_pass.wgsl
    cull: back
  - label: composite
    buffer_group: screen-quad
    bind_groups: [g-normal]
    vertex: shaders/composite.wgsl
    fragment: shaders/composite.wgsl
    depth_test: false
    clear: [0, 0, 0, 1]
`

const deferredTOML = `
[[textures]]
label = "g-normal"
kind = "render_target"
format = "rgba16float"
width = 320
height = 240

[[textures]]
label = "g-depth"
kind = "depth"
width = 320
height = 240

[[bind_groups]]
label = "camera"
kind = "uniform"
size = 64
visibility = ["vertex"]

[[bind_groups]]
label = "g-normal"
kind = "texture"
texture = "g-normal"

[[buffer_groups]]
label = "meshes"

[[buffer_groups]]
label = "screen-quad"
screen_quad = true

[[nodes]]
label = "g-pass"
buffer_group = "meshes"
bind_groups = ["camera"]
targets = ["g-normal"]
depth = "g-depth"
vertex = "shaders/g_pass.wgsl"
fragment = "shaders/g_pass.wgsl"

[[nodes]]
label = "composite"
buffer_group = "screen-quad"
bind_groups = ["g-normal"]
vertex = "shaders/composite.wgsl"
fragment = "shaders/composite.wgsl"
depth_test = false
`

var testSurface = graph.SurfaceInfo{Width: 640, Height: 480, Format: wgpu.TextureFormatBGRA8UnormSrgb}

// writeTree lays out a description with its shaders and a 3x2 PNG under a temp directory.
func writeTree(t *testing.T, name, description string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shaders"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "g_pass.wgsl"), []byte(gPassShader), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "composite.wgsl"), []byte(compositeShader), 0o644))

	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(filepath.Join(dir, "textures", "logo.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(description), 0o644))
	return path
}

func TestLoadYAMLDescriptorSet(t *testing.T) {
	path := writeTree(t, "deferred.yaml", deferredYAML)
	file, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(path), file.Dir)

	set, err := file.DescriptorSet(testSurface, WithDecodeWorkers(2))
	require.NoError(t, err)
	require.NoError(t, set.Validate())

	textures := set.Textures()
	require.Len(t, textures, 3)
	assert.Equal(t, uint32(640), textures[0].Width, "zero size takes the surface size")
	assert.Equal(t, uint32(480), textures[0].Height)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, textures[0].Format)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, textures[1].Format)
	assert.Equal(t, graph.TextureKindUnloaded, textures[2].Kind)
	require.NotNil(t, textures[2].Staging)
	assert.Equal(t, uint32(3), textures[2].Width)
	assert.Equal(t, byte(255), textures[2].Staging.Pixels[0])

	bindGroups := set.BindGroups()
	require.Len(t, bindGroups, 4)
	assert.Equal(t, graph.BindGroupKindUniform, bindGroups[0].Kind)
	assert.Len(t, bindGroups[0].Contents, 64)
	assert.Equal(t, wgpu.FilterModeNearest, bindGroups[1].Texture.Sampler.MagFilter)
	assert.Equal(t, wgpu.AddressModeClampToEdge, bindGroups[1].Texture.Sampler.AddressModeU)
	assert.Equal(t, []byte{255, 255, 255, 255}, bindGroups[2].Texture.Staging.Pixels)
	assert.Equal(t, graph.TextureSourceUnloaded, bindGroups[3].Texture.Source)

	buffers := set.BufferGroups()
	require.Len(t, buffers, 2)
	assert.Empty(t, buffers[0].Initial)
	require.Len(t, buffers[1].Initial, 1)
	assert.Equal(t, 4, buffers[1].Initial[0].VertexCount)

	nodes := set.Nodes()
	require.Len(t, nodes, 2)
	assert.Nil(t, nodes[1].Targets, "no targets draws to the surface")
	assert.Equal(t, wgpu.CullModeBack, nodes[0].Program.CullMode())
	assert.False(t, nodes[1].Program.DepthTestEnabled())
	require.NotNil(t, nodes[1].Clear)
	assert.Equal(t, 1.0, nodes[1].Clear.A)
	assert.NotSame(t,
		nodes[0].Program.Shader(shader.ShaderTypeVertex),
		nodes[0].Program.Shader(shader.ShaderTypeFragment),
		"one file supplies both stages as separate shaders")
}

func TestLoadTOMLMatchesYAML(t *testing.T) {
	path := writeTree(t, "deferred.toml", deferredTOML)
	file, err := Load(path)
	require.NoError(t, err)

	set, err := file.DescriptorSet(testSurface)
	require.NoError(t, err)
	require.NoError(t, set.Validate())

	textures := set.Textures()
	require.Len(t, textures, 2)
	assert.Equal(t, uint32(320), textures[0].Width)
	assert.Len(t, set.Nodes(), 2)
}

func TestShadersAreReadOncePerStage(t *testing.T) {
	path := writeTree(t, "deferred.yaml", deferredYAML)
	file, err := Load(path)
	require.NoError(t, err)
	file.Nodes = append(file.Nodes, file.Nodes[1])
	file.Nodes[2].Label = "composite-2"

	set, err := file.DescriptorSet(testSurface)
	require.NoError(t, err)
	nodes := set.Nodes()
	assert.Same(t,
		nodes[1].Program.Shader(shader.ShaderTypeFragment),
		nodes[2].Program.Shader(shader.ShaderTypeFragment))
}

func TestDecodeImagesJoinsFailures(t *testing.T) {
	path := writeTree(t, "deferred.yaml", deferredYAML)
	dir := filepath.Dir(path)
	logo := filepath.Join(dir, "textures", "logo.png")

	images, err := decodeImages([]string{logo, logo + ".copy"}, 4)
	assert.Nil(t, images)
	assert.ErrorContains(t, err, "logo.png.copy")

	images, err = decodeImages([]string{logo}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), images[logo].Height)

	images, err = decodeImages(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestPaths(t *testing.T) {
	path := writeTree(t, "deferred.yaml", deferredYAML)
	file, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, []string{
		path,
		filepath.Join(dir, "shaders", "g_pass.wgsl"),
		filepath.Join(dir, "shaders", "composite.wgsl"),
		filepath.Join(dir, "textures", "logo.png"),
	}, file.Paths())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("pipeline.json")
	assert.ErrorContains(t, err, "unknown description extension")

	_, err = Parse([]byte("nodes:\n  - label: a\n    shape: round\n"), FormatYAML, ".")
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Parse([]byte("[[nodes]]\nlabel = \"a\"\nshape = \"round\"\n"), FormatTOML, ".")
	assert.Error(t, err)

	f, err := Parse(nil, FormatYAML, ".")
	require.NoError(t, err)
	assert.Empty(t, f.Nodes)
}

func TestDescriptorSetErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"texture kind", "textures:\n  - label: a\n    kind: cube\n", `texture "a": unknown texture kind`},
		{"texture format", "textures:\n  - label: a\n    kind: render_target\n    format: rgb9e5\n", "unknown texture format"},
		{"render target format", "textures:\n  - label: a\n    kind: render_target\n", "needs a format"},
		{"uniform size", "bind_groups:\n  - label: a\n    kind: uniform\n", "non-zero size"},
		{"visibility", "bind_groups:\n  - label: a\n    kind: uniform\n    size: 4\n    visibility: [compute]\n", "unknown shader stage"},
		{"color", "bind_groups:\n  - label: a\n    kind: color\n    color: [1, 2, 3]\n", "4 channels"},
		{"color range", "bind_groups:\n  - label: a\n    kind: color\n    color: [1, 2, 3, 300]\n", "out of range"},
		{"filter", "bind_groups:\n  - label: a\n    kind: texture\n    texture: t\n    sampler: {filter: cubic}\n", "unknown filter"},
		{"missing image", "bind_groups:\n  - label: a\n    kind: image\n    image: nope.png\n", "nope.png"},
		{"missing shader", "nodes:\n  - label: a\n    buffer_group: g\n    vertex: nope.wgsl\n    fragment: nope.wgsl\n", `node "a"`},
		{"duplicate", "buffer_groups:\n  - label: a\n  - label: a\n", "duplicate label"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Parse([]byte(tc.yaml), FormatYAML, t.TempDir())
			require.NoError(t, err)
			_, err = f.DescriptorSet(testSurface)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	path := writeTree(t, "deferred.yaml", deferredYAML)
	file, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(file.Paths()...)
	require.NoError(t, err)
	defer w.Close()

	assert.Empty(t, w.Poll())
	shaderPath := filepath.Join(filepath.Dir(path), "shaders", "composite.wgsl")
	require.NoError(t, os.WriteFile(shaderPath, []byte(compositeShader+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "shaders", "unrelated.txt"), []byte("x"), 0o644))

	var changed []string
	require.Eventually(t, func() bool {
		changed = append(changed, w.Poll()...)
		return len(changed) > 0
	}, 5*time.Second, 20*time.Millisecond)

	abs, err := filepath.Abs(shaderPath)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, changed)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close(), "closing twice is a no-op")
}
