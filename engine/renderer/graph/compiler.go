package graph

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Finalize compiles a descriptor set into an executable pipeline. Every check that needs no device
// runs first; only then are GPU resources created, textures first, then bind groups, buffer groups
// and finally one render pipeline per node in declared order. Any failure releases everything
// created so far and returns no pipeline.
//
// Parameters:
//   - device: the device that creates GPU resources
//   - set: the descriptor set to compile
//   - surface: the presentation target used by nodes without Targets
//   - opts: optional CompileOption values
//
// Returns:
//   - CompiledPipeline: the compiled pipeline
//   - error: a *GraphError describing the first failure
func Finalize(device Device, set *DescriptorSet, surface SurfaceInfo, opts ...CompileOption) (CompiledPipeline, error) {
	cfg := &compileConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	p, err := set.plan(surface)
	if err != nil {
		return nil, err
	}
	for _, n := range p.nodes {
		if n.toSurface() && surface.Format == wgpu.TextureFormatUndefined {
			return nil, newError(ErrInvalidDescriptor, NamespaceNodes, n.label, n.label,
				fmt.Errorf("node renders to the surface but no surface format was given"))
		}
	}
	if cfg.validateShaders {
		if err := validateShaders(p); err != nil {
			return nil, err
		}
	}

	c := &compiledPipeline{
		mu:                &sync.Mutex{},
		device:            device,
		bufferGroupLabels: set.bufferGroupLabels.clone(),
		bindGroupLabels:   set.bindGroupLabels.clone(),
		textureLabels:     set.textureLabels.clone(),
		textures:          make([]textureState, len(set.textures)),
		bindGroups:        make([]bindGroupState, len(set.bindGroups)),
		bufferGroups:      make([]bufferGroupState, len(set.bufferGroups)),
	}
	steps := []func(*compilePlan) error{c.realizeTextures, c.realizeBindGroups, c.realizeBufferGroups, c.realizePasses}
	for _, step := range steps {
		if err := step(p); err != nil {
			c.Release()
			return nil, err
		}
	}

	Logger().Info("pipeline compiled",
		"passes", len(c.passes),
		"textures", len(c.textures),
		"bind_groups", len(c.bindGroups),
		"buffer_groups", len(c.bufferGroups))
	return c, nil
}

func validateShaders(p *compilePlan) error {
	seen := make(map[string]bool)
	for _, n := range p.nodes {
		for _, st := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
			s := n.program.Shader(st)
			if seen[s.Key()] {
				continue
			}
			seen[s.Key()] = true
			if err := shader.Validate(s); err != nil {
				return newError(ErrInvalidDescriptor, NamespaceNodes, n.label, n.label, err)
			}
		}
	}
	return nil
}

func (c *compiledPipeline) realizeTextures(p *compilePlan) error {
	for i, t := range p.set.textures {
		c.textures[i].desc = t
		tex, err := c.device.CreateTexture(textureDescriptor(string(t.Label), t.Width, t.Height, t.Format, t.usage()))
		if err != nil {
			return newError(ErrDeviceResource, NamespaceTextures, t.Label, "", err)
		}
		c.textures[i].texture = tex
		if t.Kind == TextureKindUnloaded && t.Staging != nil && t.Staging.Pixels != nil {
			if err := c.device.WriteTexture(tex, *t.Staging); err != nil {
				return newError(ErrDeviceResource, NamespaceTextures, t.Label, "", err)
			}
		}
		view, err := c.device.CreateTextureView(tex)
		if err != nil {
			return newError(ErrDeviceResource, NamespaceTextures, t.Label, "", err)
		}
		c.textures[i].view = view
		Logger().Debug("texture realized", "texture", t.Label, "kind", t.Kind.String(), "width", t.Width, "height", t.Height)
	}
	return nil
}

func textureDescriptor(label string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) *wgpu.TextureDescriptor {
	return &wgpu.TextureDescriptor{
		Label:     label,
		Usage:     usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	}
}

// samplerDescriptor fills zero fields of s with defaults suited to the layout's sampler type.
func samplerDescriptor(label string, s common.SamplerStagingData, samplerType wgpu.SamplerBindingType) *wgpu.SamplerDescriptor {
	filter, mip := wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear
	if samplerType != wgpu.SamplerBindingTypeFiltering {
		filter, mip = wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest
	}
	compare := s.Compare
	if samplerType == wgpu.SamplerBindingTypeComparison {
		compare = common.Coalesce(compare, wgpu.CompareFunctionLessEqual)
	}
	return &wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(s.MagFilter, filter),
		MinFilter:     common.Coalesce(s.MinFilter, filter),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, mip),
		LodMinClamp:   common.Coalesce(s.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
		Compare:       compare,
	}
}

func (c *compiledPipeline) realizeBindGroups(p *compilePlan) error {
	for i, d := range p.set.bindGroups {
		bg := &c.bindGroups[i]
		bg.desc = d
		bg.layout = p.layouts[i]
		bg.texture = p.textureOf[i]
		bg.provider = bind_group_provider.NewBindGroupProvider(string(d.Label))

		bgl, err := c.device.CreateBindGroupLayout(&bg.layout)
		if err != nil {
			return newError(ErrDeviceResource, NamespaceBindGroups, d.Label, "", err)
		}
		bg.provider.SetBindGroupLayout(bgl)

		if err := c.realizeBindGroupResources(bg); err != nil {
			return newError(ErrDeviceResource, NamespaceBindGroups, d.Label, "", err)
		}
		if err := c.rebuildBindGroup(bg); err != nil {
			return newError(ErrDeviceResource, NamespaceBindGroups, d.Label, "", err)
		}
		Logger().Debug("bind group realized", "bind_group", d.Label, "entries", len(bg.layout.Entries))
	}
	return nil
}

func (c *compiledPipeline) realizeBindGroupResources(bg *bindGroupState) error {
	d := bg.desc
	if d.Kind == BindGroupKindUniform {
		entry := bg.layout.Entries[0]
		size := entry.Buffer.MinBindingSize
		buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: string(d.Label) + " Buffer",
			Size:  size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		bg.provider.SetBuffer(int(entry.Binding), buf, size)
		if len(d.Contents) > 0 {
			return c.device.WriteBuffer(buf, 0, common.PadTo4(d.Contents))
		}
		return nil
	}

	ti, si, err := textureEntries(bg.layout)
	if err != nil {
		return err
	}
	texBinding := int(bg.layout.Entries[ti].Binding)
	switch d.Texture.Source {
	case TextureSourceRealized:
		bg.provider.BorrowTextureView(texBinding, c.textures[bg.texture].view)
	case TextureSourceUnloaded:
		tex, view, err := c.createOwnedTexture(string(d.Label), d.Texture.Staging, unloadedFormat(d.Texture))
		if err != nil {
			return err
		}
		bg.provider.SetTexture(tex)
		bg.provider.SetTextureView(texBinding, view)
		bg.ownedWidth, bg.ownedHeight = d.Texture.Staging.Width, d.Texture.Staging.Height
	case TextureSourceLoaded:
		bg.provider.BorrowTextureView(texBinding, d.Texture.View)
	}

	if si < 0 {
		return nil
	}
	samplerEntry := bg.layout.Entries[si]
	if d.Texture.Source == TextureSourceLoaded {
		bg.loadedSampler = d.Texture.LoadedSampler
		return nil
	}
	samp, err := c.device.CreateSampler(samplerDescriptor(string(d.Label), d.Texture.Sampler, samplerEntry.Sampler.Type))
	if err != nil {
		return err
	}
	bg.provider.SetSampler(int(samplerEntry.Binding), samp)
	return nil
}

// createOwnedTexture creates a sampled texture, uploads staging and creates its view. On failure
// nothing is left allocated.
func (c *compiledPipeline) createOwnedTexture(label string, staging common.TextureStagingData, format wgpu.TextureFormat) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := c.device.CreateTexture(textureDescriptor(label+" Texture", staging.Width, staging.Height, format,
		wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst))
	if err != nil {
		return nil, nil, err
	}
	if staging.Pixels != nil {
		if err := c.device.WriteTexture(tex, staging); err != nil {
			c.device.Release(tex)
			return nil, nil, err
		}
	}
	view, err := c.device.CreateTextureView(tex)
	if err != nil {
		c.device.Release(tex)
		return nil, nil, err
	}
	return tex, view, nil
}

// rebuildBindGroup creates the bind group from the provider's current resources and swaps it in.
func (c *compiledPipeline) rebuildBindGroup(bg *bindGroupState) error {
	entries := make([]wgpu.BindGroupEntry, len(bg.layout.Entries))
	for i, e := range bg.layout.Entries {
		binding := int(e.Binding)
		entries[i] = wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer.Type != wgpu.BufferBindingTypeUndefined:
			entries[i].Buffer = bg.provider.Buffer(binding)
			entries[i].Size = wgpu.WholeSize
		case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			entries[i].TextureView = bg.provider.TextureView(binding)
		case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			entries[i].Sampler = bg.provider.Sampler(binding)
			if bg.loadedSampler != nil {
				entries[i].Sampler = bg.loadedSampler
			}
		}
	}
	created, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   string(bg.desc.Label) + " Bind Group",
		Layout:  bg.provider.BindGroupLayout(),
		Entries: entries,
	})
	if err != nil {
		return err
	}
	bg.provider.SetBindGroup(c.device, created)
	return nil
}

func (c *compiledPipeline) realizeBufferGroups(p *compilePlan) error {
	for i, g := range p.set.bufferGroups {
		c.bufferGroups[i] = bufferGroupState{label: g.Label, objectGroups: p.objectGroups[i]}
		if err := c.replaceBufferGroup(i, g.Initial); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiledPipeline) realizePasses(p *compilePlan) error {
	for _, n := range p.nodes {
		groups := slices.Concat(n.bindGroups, p.objectGroups[n.bufferGroup])
		layouts := make([]*wgpu.BindGroupLayout, len(groups))
		for k, gi := range groups {
			layouts[k] = c.bindGroups[gi].provider.BindGroupLayout()
		}
		rp, err := c.device.CreateRenderPipeline(PipelineRequest{
			Label:            string(n.label),
			Program:          n.program,
			BindGroupLayouts: layouts,
			ColorFormats:     n.colorFormats,
			DepthFormat:      n.depthFormat,
		})
		if err != nil {
			return newError(ErrDeviceResource, NamespaceNodes, n.label, n.label, err)
		}
		c.passes = append(c.passes, passState{plan: n, pipeline: rp, info: c.passInfo(n, rp)})
	}
	return nil
}

func (c *compiledPipeline) passInfo(n nodePlan, rp *wgpu.RenderPipeline) Pass {
	info := Pass{
		Label:          n.label,
		BufferGroup:    c.bufferGroups[n.bufferGroup].label,
		RenderPipeline: rp,
	}
	for _, gi := range n.bindGroups {
		info.BindGroups = append(info.BindGroups, c.bindGroups[gi].desc.Label)
	}
	for _, ti := range n.targets {
		info.Targets = append(info.Targets, c.textures[ti].desc.Label)
	}
	if n.depth >= 0 {
		info.Depth = c.textures[n.depth].desc.Label
	}
	return info
}
