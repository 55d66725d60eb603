package graphfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/mesh"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// DescriptorSet builds the descriptor set the file describes. Image files are decoded in parallel
// and every shader file is read and reflected once, however many nodes use it. The returned set has
// not been validated; graph.Finalize does that.
//
// Parameters:
//   - surface: the presentation surface; zero-sized textures and the surface format name resolve against it
//   - options: optional DescriptorSetBuilderOption values
//
// Returns:
//   - *graph.DescriptorSet: the descriptor set
//   - error: an error naming the first entry that could not be built
func (f *File) DescriptorSet(surface graph.SurfaceInfo, options ...DescriptorSetBuilderOption) (*graph.DescriptorSet, error) {
	cfg := buildConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	images, err := decodeImages(f.imagePaths(), cfg.decodeWorkers)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	b := &setBuilder{
		file:    f,
		surface: surface,
		images:  images,
		shaders: make(map[string]shader.Shader),
		set:     graph.NewDescriptorSet(),
	}

	for _, t := range f.Textures {
		if err := b.addTexture(t); err != nil {
			return nil, fmt.Errorf("graphfile: texture %q: %w", t.Label, err)
		}
	}
	for _, bg := range f.BindGroups {
		if err := b.addBindGroup(bg); err != nil {
			return nil, fmt.Errorf("graphfile: bind group %q: %w", bg.Label, err)
		}
	}
	for _, g := range f.BufferGroups {
		if err := b.addBufferGroup(g); err != nil {
			return nil, fmt.Errorf("graphfile: buffer group %q: %w", g.Label, err)
		}
	}
	for _, n := range f.Nodes {
		if err := b.addNode(n); err != nil {
			return nil, fmt.Errorf("graphfile: node %q: %w", n.Label, err)
		}
	}

	graph.Logger().Debug("graph description built",
		"path", f.Path,
		"textures", len(f.Textures),
		"bind_groups", len(f.BindGroups),
		"buffer_groups", len(f.BufferGroups),
		"nodes", len(f.Nodes),
		"images", len(images),
		"shaders", len(b.shaders))
	return b.set, nil
}

func (f *File) imagePaths() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p = f.resolve(p); p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, t := range f.Textures {
		if t.Kind == "image" {
			add(t.Image)
		}
	}
	for _, bg := range f.BindGroups {
		if bg.Kind == "image" {
			add(bg.Image)
		}
	}
	return out
}

type setBuilder struct {
	file    *File
	surface graph.SurfaceInfo
	images  map[string]common.TextureStagingData
	shaders map[string]shader.Shader
	set     *graph.DescriptorSet
}

func (b *setBuilder) size(w, h uint32) (uint32, uint32) {
	return common.Coalesce(w, b.surface.Width), common.Coalesce(h, b.surface.Height)
}

func (b *setBuilder) image(path string) (common.TextureStagingData, error) {
	if path == "" {
		return common.TextureStagingData{}, fmt.Errorf("image path is empty")
	}
	staging, ok := b.images[b.file.resolve(path)]
	if !ok {
		return common.TextureStagingData{}, fmt.Errorf("image %q was not decoded", path)
	}
	return staging, nil
}

func (b *setBuilder) addTexture(t TextureSpec) error {
	var desc graph.TextureDescriptor
	switch t.Kind {
	case "depth":
		w, h := b.size(t.Width, t.Height)
		desc = graph.DepthTexture(graph.Label(t.Label), w, h)
		if t.Format != "" {
			format, err := textureFormat(t.Format, b.surface.Format)
			if err != nil {
				return err
			}
			desc.Format = format
		}
	case "render_target":
		if t.Format == "" {
			return fmt.Errorf("render target needs a format")
		}
		format, err := textureFormat(t.Format, b.surface.Format)
		if err != nil {
			return err
		}
		w, h := b.size(t.Width, t.Height)
		desc = graph.RenderTarget(graph.Label(t.Label), w, h, format)
	case "image":
		staging, err := b.image(t.Image)
		if err != nil {
			return err
		}
		format := wgpu.TextureFormatRGBA8UnormSrgb
		if t.Format != "" {
			if format, err = textureFormat(t.Format, b.surface.Format); err != nil {
				return err
			}
		}
		desc = graph.UnloadedTexture(graph.Label(t.Label), staging, format)
	default:
		return fmt.Errorf("unknown texture kind %q", t.Kind)
	}
	return b.set.AddTexture(desc)
}

func (b *setBuilder) addBindGroup(bg BindGroupSpec) error {
	label := graph.Label(bg.Label)
	var desc graph.BindGroupDescriptor
	switch bg.Kind {
	case "uniform":
		if bg.Size == 0 {
			return fmt.Errorf("uniform needs a non-zero size")
		}
		stages, err := shaderStages(bg.Visibility)
		if err != nil {
			return err
		}
		desc = graph.UniformBindGroup(label, graph.UniformLayout(bg.Size, stages), make([]byte, bg.Size))
	case "texture", "image", "color":
		sampler, err := samplerStaging(bg.Sampler)
		if err != nil {
			return err
		}
		switch bg.Kind {
		case "texture":
			desc = graph.TextureBindGroup(label, graph.Label(bg.Texture), sampler)
		case "image":
			staging, err := b.image(bg.Image)
			if err != nil {
				return err
			}
			desc = graph.UnloadedTextureBindGroup(label, staging, sampler)
		default:
			staging, err := solidColor(bg.Color)
			if err != nil {
				return err
			}
			desc = graph.UnloadedTextureBindGroup(label, staging, sampler)
		}
	default:
		return fmt.Errorf("unknown bind group kind %q", bg.Kind)
	}
	return b.set.AddBindGroup(desc)
}

func samplerStaging(s SamplerSpec) (common.SamplerStagingData, error) {
	filter, mipmap, err := filterMode(s.Filter)
	if err != nil {
		return common.SamplerStagingData{}, err
	}
	address, err := addressMode(s.Address)
	if err != nil {
		return common.SamplerStagingData{}, err
	}
	return common.SamplerStagingData{
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: mipmap,
	}, nil
}

func solidColor(c []int) (common.TextureStagingData, error) {
	if len(c) != 4 {
		return common.TextureStagingData{}, fmt.Errorf("color needs 4 channels, got %d", len(c))
	}
	var rgba [4]uint8
	for i, v := range c {
		if v < 0 || v > 255 {
			return common.TextureStagingData{}, fmt.Errorf("color channel %d out of range: %d", i, v)
		}
		rgba[i] = uint8(v)
	}
	return common.SolidColor(rgba[0], rgba[1], rgba[2], rgba[3]), nil
}

func (b *setBuilder) addBufferGroup(g BufferGroupSpec) error {
	desc := graph.BufferGroupDescriptor{
		Label:            graph.Label(g.Label),
		ObjectBindGroups: labels(g.ObjectBindGroups),
	}
	if g.ScreenQuad {
		vertices, indices := mesh.ScreenQuad()
		desc.Initial = []graph.MeshBytes{{
			Vertices:    mesh.MarshalVertices(vertices),
			VertexCount: len(vertices),
			Indices:     mesh.MarshalIndices(indices),
		}}
	}
	return b.set.AddBufferGroup(desc)
}

func (b *setBuilder) addNode(n NodeSpec) error {
	vs, err := b.shader(n.Vertex, shader.ShaderTypeVertex)
	if err != nil {
		return err
	}
	fs, err := b.shader(n.Fragment, shader.ShaderTypeFragment)
	if err != nil {
		return err
	}

	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithBlendEnabled(n.Blend),
	}
	if n.DepthTest != nil {
		opts = append(opts, pipeline.WithDepthTestEnabled(*n.DepthTest))
	}
	if n.DepthWrite != nil {
		opts = append(opts, pipeline.WithDepthWriteEnabled(*n.DepthWrite))
	}
	compare, err := compareFunction(n.DepthCompare)
	if err != nil {
		return err
	}
	cull, err := cullMode(n.Cull)
	if err != nil {
		return err
	}
	opts = append(opts, pipeline.WithDepthCompare(compare), pipeline.WithCullMode(cull))

	desc := graph.ShaderNodeDescriptor{
		Label:       graph.Label(n.Label),
		BufferGroup: graph.Label(n.BufferGroup),
		BindGroups:  labels(n.BindGroups),
		Targets:     labels(n.Targets),
		Depth:       graph.Label(n.Depth),
		Program:     pipeline.NewPipeline(n.Label, opts...),
	}
	if n.Clear != nil {
		if len(n.Clear) != 4 {
			return fmt.Errorf("clear needs 4 channels, got %d", len(n.Clear))
		}
		desc.Clear = &wgpu.Color{R: n.Clear[0], G: n.Clear[1], B: n.Clear[2], A: n.Clear[3]}
	}
	return b.set.AddNode(desc)
}

// shader reads and reflects a WGSL file once per stage.
func (b *setBuilder) shader(path string, stage shader.ShaderType) (shader.Shader, error) {
	if path == "" {
		return nil, fmt.Errorf("%s shader path is empty", stageName(stage))
	}
	resolved := b.file.resolve(path)
	key := resolved + "#" + stageName(stage)
	if s, ok := b.shaders[key]; ok {
		return s, nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, err
	}
	s, err := shader.NewShaderFromSource(key, stage, string(data))
	if err != nil {
		return nil, err
	}
	b.shaders[key] = s
	return s, nil
}

func stageName(stage shader.ShaderType) string {
	if stage == shader.ShaderTypeFragment {
		return "fragment"
	}
	return "vertex"
}

// labels converts names to labels; an empty list stays nil so a node without targets draws to the surface.
func labels(names []string) []graph.Label {
	if len(names) == 0 {
		return nil
	}
	out := make([]graph.Label, len(names))
	for i, n := range names {
		out[i] = graph.Label(strings.TrimSpace(n))
	}
	return out
}
