package graph

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/require"
)

// fakeDevice hands out zero-valued wgpu handles and records every call.
type fakeDevice struct {
	live          map[Releasable]string
	counts        map[string]int
	doubleRelease int

	// failKind makes the call creating failKind fail once counts[failKind] exceeds failAfter.
	failKind  string
	failAfter int

	contents      map[*wgpu.Buffer][]byte
	textureWrites map[*wgpu.Texture]int
	pipelines     []PipelineRequest
	bindGroups    []*wgpu.BindGroupDescriptor
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		live:          make(map[Releasable]string),
		counts:        make(map[string]int),
		contents:      make(map[*wgpu.Buffer][]byte),
		textureWrites: make(map[*wgpu.Texture]int),
	}
}

var _ Device = &fakeDevice{}

func (d *fakeDevice) track(kind string, r Releasable) error {
	d.counts[kind]++
	if d.failKind == kind && d.counts[kind] > d.failAfter {
		return fmt.Errorf("fake %s failure", kind)
	}
	if r != nil {
		d.live[r] = kind
	}
	return nil
}

func (d *fakeDevice) creations() int {
	n := 0
	for kind, c := range d.counts {
		if kind != "write_buffer" && kind != "write_texture" {
			n += c
		}
	}
	return n
}

func (d *fakeDevice) liveOf(kind string) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *fakeDevice) CreateBuffer(desc *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	b := &wgpu.Buffer{}
	if err := d.track("buffer", b); err != nil {
		return nil, err
	}
	d.contents[b] = make([]byte, desc.Size)
	return b, nil
}

func (d *fakeDevice) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) error {
	if err := d.track("write_buffer", nil); err != nil {
		return err
	}
	dst, ok := d.contents[buf]
	if !ok || offset+uint64(len(data)) > uint64(len(dst)) {
		return fmt.Errorf("write of %d bytes at %d outside buffer", len(data), offset)
	}
	copy(dst[offset:], data)
	return nil
}

func (d *fakeDevice) CreateTexture(*wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	t := &wgpu.Texture{}
	if err := d.track("texture", t); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *fakeDevice) CreateTextureView(*wgpu.Texture) (*wgpu.TextureView, error) {
	v := &wgpu.TextureView{}
	if err := d.track("view", v); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *fakeDevice) WriteTexture(tex *wgpu.Texture, _ common.TextureStagingData) error {
	if err := d.track("write_texture", nil); err != nil {
		return err
	}
	d.textureWrites[tex]++
	return nil
}

func (d *fakeDevice) CreateSampler(*wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	s := &wgpu.Sampler{}
	if err := d.track("sampler", s); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *fakeDevice) CreateBindGroupLayout(*wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	l := &wgpu.BindGroupLayout{}
	if err := d.track("bind_group_layout", l); err != nil {
		return nil, err
	}
	return l, nil
}

func (d *fakeDevice) CreateBindGroup(desc *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	g := &wgpu.BindGroup{}
	if err := d.track("bind_group", g); err != nil {
		return nil, err
	}
	d.bindGroups = append(d.bindGroups, desc)
	return g, nil
}

func (d *fakeDevice) CreateRenderPipeline(req PipelineRequest) (*wgpu.RenderPipeline, error) {
	p := &wgpu.RenderPipeline{}
	if err := d.track("render_pipeline", p); err != nil {
		return nil, err
	}
	d.pipelines = append(d.pipelines, req)
	return p, nil
}

func (d *fakeDevice) Release(r Releasable) {
	if r == nil || reflect.ValueOf(r).IsNil() {
		return
	}
	if _, ok := d.live[r]; !ok {
		d.doubleRelease++
		return
	}
	delete(d.live, r)
}

// fakeFrame records every pass begun on it.
type fakeFrame struct {
	surface *wgpu.TextureView
	descs   []*wgpu.RenderPassDescriptor
	passes  []*fakePass
}

func (f *fakeFrame) SurfaceView() *wgpu.TextureView {
	return f.surface
}

func (f *fakeFrame) BeginRenderPass(desc *wgpu.RenderPassDescriptor) (RenderPass, error) {
	p := &fakePass{bindGroups: make(map[uint32][]*wgpu.BindGroup)}
	f.descs = append(f.descs, desc)
	f.passes = append(f.passes, p)
	return p, nil
}

type fakePass struct {
	pipeline   *wgpu.RenderPipeline
	bindGroups map[uint32][]*wgpu.BindGroup
	vertices   []*wgpu.Buffer
	draws      []uint32
	ended      bool
}

func (p *fakePass) SetPipeline(rp *wgpu.RenderPipeline) { p.pipeline = rp }
func (p *fakePass) SetBindGroup(i uint32, bg *wgpu.BindGroup) {
	p.bindGroups[i] = append(p.bindGroups[i], bg)
}
func (p *fakePass) SetVertexBuffer(buf *wgpu.Buffer, _ uint64) { p.vertices = append(p.vertices, buf) }
func (p *fakePass) SetIndexBuffer(*wgpu.Buffer, uint64)        {}
func (p *fakePass) DrawIndexed(n uint32)                       { p.draws = append(p.draws, n) }
func (p *fakePass) End() error {
	p.ended = true
	return nil
}

const geometryVertex = `
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
`

const geometryFragment = `
struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) normal: vec3<f32>,
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(normalize(in.normal), 1.0);
}
`

const texturedFragment = `
struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) normal: vec3<f32>,
}

@group(1) @binding(0) var albedo: texture_2d<f32>;
@group(1) @binding(1) var albedo_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(albedo, albedo_sampler, in.normal.xy);
}
`

const compositeVertex = `
//@oxy:include screen_quad_vertex

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(in: ScreenQuadVertex) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = vec4<f32>(in.position, 0.0, 1.0);
    out.uv = in.tex_coords;
    return out;
}
`

const compositeFragment = `
struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var normal_tex: texture_2d<f32>;
@group(0) @binding(1) var normal_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(normal_tex, normal_sampler, in.uv);
}
`

func program(t *testing.T, key, vertex, fragment string, opts ...pipeline.PipelineBuilderOption) pipeline.Pipeline {
	t.Helper()
	vs, err := shader.NewShaderFromSource(key+"-vs", shader.ShaderTypeVertex, vertex)
	require.NoError(t, err)
	fs, err := shader.NewShaderFromSource(key+"-fs", shader.ShaderTypeFragment, fragment)
	require.NoError(t, err)
	return pipeline.NewPipeline(key, append([]pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
	}, opts...)...)
}

var testSurface = SurfaceInfo{Width: 640, Height: 480, Format: wgpu.TextureFormatBGRA8UnormSrgb}

// deferredSet builds the two-pass set: a geometry pass writing a normal target and a composite pass
// sampling it onto the surface.
func deferredSet(t *testing.T) *DescriptorSet {
	t.Helper()
	set := NewDescriptorSet()
	require.NoError(t, set.AddTexture(RenderTarget("g-normal", 640, 480, wgpu.TextureFormatRGBA16Float)))
	require.NoError(t, set.AddTexture(DepthTexture("g-depth", 640, 480)))
	require.NoError(t, set.AddBindGroup(UniformBindGroup("camera", UniformLayout(64, wgpu.ShaderStageVertex), make([]byte, 64))))
	require.NoError(t, set.AddBindGroup(TextureBindGroup("g-normal-input", "g-normal", common.SamplerStagingData{})))
	require.NoError(t, set.AddBufferGroup(BufferGroupDescriptor{Label: "meshes"}))
	require.NoError(t, set.AddBufferGroup(BufferGroupDescriptor{Label: "screen-quad", Initial: []MeshBytes{quadBytes()}}))
	require.NoError(t, set.AddNode(ShaderNodeDescriptor{
		Label:       "g-pass",
		BufferGroup: "meshes",
		BindGroups:  []Label{"camera"},
		Targets:     []Label{"g-normal"},
		Depth:       "g-depth",
		Program:     program(t, "g-pass", geometryVertex, geometryFragment),
	}))
	require.NoError(t, set.AddNode(ShaderNodeDescriptor{
		Label:       "composite",
		BufferGroup: "screen-quad",
		BindGroups:  []Label{"g-normal-input"},
		Program:     program(t, "composite", compositeVertex, compositeFragment, pipeline.WithDepthTestEnabled(false)),
	}))
	return set
}

func indexBytes(indices ...uint32) []byte {
	out := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		out = append(out, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
	}
	return out
}

func quadBytes() MeshBytes {
	return MeshBytes{
		Vertices:    make([]byte, 4*16),
		VertexCount: 4,
		Indices:     indexBytes(0, 1, 2, 0, 2, 3),
	}
}

// cubeBytes stands in for one mesh instance: 24 vertices of 36 bytes and 36 indices.
func cubeBytes() MeshBytes {
	idx := make([]uint32, 36)
	for i := range idx {
		idx[i] = uint32(i % 24)
	}
	return MeshBytes{
		Vertices:    make([]byte, 24*36),
		VertexCount: 24,
		Indices:     indexBytes(idx...),
	}
}

func solid(width, height uint32) common.TextureStagingData {
	pixels := make([]byte, width*height*4)
	for i := range pixels {
		pixels[i] = 0xff
	}
	return common.TextureStagingData{Pixels: pixels, Width: width, Height: height}
}
