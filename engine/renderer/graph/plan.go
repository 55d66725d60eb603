package graph

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// nodePlan is one shader node with every label resolved to an index.
type nodePlan struct {
	label        Label
	bufferGroup  int
	bindGroups   []int
	targets      []int
	depth        int
	colorFormats []wgpu.TextureFormat
	depthFormat  wgpu.TextureFormat
	clear        wgpu.Color
	program      pipeline.Pipeline
}

func (n nodePlan) toSurface() bool {
	return len(n.targets) == 0
}

// compilePlan is a fully validated descriptor set, ready to realize.
type compilePlan struct {
	set *DescriptorSet
	// layouts are the effective bind group layouts, indexed like set.bindGroups.
	layouts []wgpu.BindGroupLayoutDescriptor
	// textureOf maps a bind group index to the set texture it samples, or -1.
	textureOf []int
	// objectGroups are the resolved ObjectBindGroups of each buffer group.
	objectGroups [][]int
	nodes        []nodePlan
}

// plan validates the set and resolves every label. It makes no device calls.
func (s *DescriptorSet) plan(surface SurfaceInfo) (*compilePlan, error) {
	p := &compilePlan{
		set:          s,
		layouts:      make([]wgpu.BindGroupLayoutDescriptor, len(s.bindGroups)),
		textureOf:    make([]int, len(s.bindGroups)),
		objectGroups: make([][]int, len(s.bufferGroups)),
	}

	for _, t := range s.textures {
		if err := t.validate(); err != nil {
			return nil, newError(ErrInvalidDescriptor, NamespaceTextures, t.Label, "", err)
		}
	}
	for i, bg := range s.bindGroups {
		if err := p.resolveBindGroup(i, bg); err != nil {
			return nil, err
		}
	}
	for i, g := range s.bufferGroups {
		if err := p.resolveBufferGroup(i, g); err != nil {
			return nil, err
		}
	}
	for _, n := range s.nodes {
		np, err := p.resolveNode(n, surface)
		if err != nil {
			return nil, err
		}
		p.nodes = append(p.nodes, np)
	}
	if err := p.checkInitial(); err != nil {
		return nil, err
	}
	if err := p.checkPassOrder(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *compilePlan) resolveBindGroup(i int, bg BindGroupDescriptor) error {
	p.textureOf[i] = -1
	if err := bg.validate(); err != nil {
		return newError(ErrInvalidDescriptor, NamespaceBindGroups, bg.Label, "", err)
	}
	layout := cloneLayout(bg.Layout)
	if layout.Label == "" {
		layout.Label = string(bg.Label)
	}

	if bg.Kind == BindGroupKindUniform {
		layout.Entries[0].Buffer.MinBindingSize = uniformSize(bg)
		p.layouts[i] = layout
		return nil
	}

	var format wgpu.TextureFormat
	switch bg.Texture.Source {
	case TextureSourceRealized:
		ti, ok := p.set.textureLabels.lookup(bg.Texture.Texture)
		if !ok {
			return newError(ErrUnknownLabel, NamespaceTextures, bg.Texture.Texture, "",
				fmt.Errorf("sampled by bind group %q", bg.Label))
		}
		p.textureOf[i] = ti
		format = p.set.textures[ti].Format
	case TextureSourceUnloaded:
		format = unloadedFormat(bg.Texture)
	case TextureSourceLoaded:
		p.layouts[i] = layout
		return nil
	}

	if len(layout.Entries) == 0 {
		derived := layoutForFormat(format)
		derived.Label = layout.Label
		layout = derived
	}
	ti, _, _ := textureEntries(layout)
	if st := layout.Entries[ti].Texture.SampleType; !sampleTypeAccepts(st, format) {
		return newError(ErrFormatMismatch, NamespaceBindGroups, bg.Label, "",
			fmt.Errorf("layout sample type %v cannot sample format %v", st, format))
	}
	p.layouts[i] = layout
	return nil
}

func (p *compilePlan) resolveBufferGroup(i int, g BufferGroupDescriptor) error {
	groups, err := p.resolveBindGroupLabels(g.ObjectBindGroups, "")
	if err != nil {
		return err
	}
	p.objectGroups[i] = groups
	return nil
}

// checkInitial validates the initial objects of every buffer group. It runs after the nodes so that
// override layouts are compared with their final visibility.
func (p *compilePlan) checkInitial() error {
	for i, g := range p.set.bufferGroups {
		for _, m := range g.Initial {
			if err := m.validate(len(p.objectGroups[i])); err != nil {
				return newError(ErrInvalidDescriptor, NamespaceBufferGroups, g.Label, "", err)
			}
			if _, err := p.resolveOverrides(m.BindGroups, p.objectGroups[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *compilePlan) resolveBindGroupLabels(labels []Label, node Label) ([]int, error) {
	out := make([]int, 0, len(labels))
	for _, l := range labels {
		idx, ok := p.set.bindGroupLabels.lookup(l)
		if !ok {
			return nil, newError(ErrUnknownLabel, NamespaceBindGroups, l, node, nil)
		}
		out = append(out, idx)
	}
	return out, nil
}

// resolveOverrides resolves per-object bind group overrides. Each override must have the same layout
// as the group it replaces. A nil list keeps the defaults.
func (p *compilePlan) resolveOverrides(overrides []Label, defaults []int) ([]int, error) {
	if overrides == nil {
		return defaults, nil
	}
	out, err := p.resolveBindGroupLabels(overrides, "")
	if err != nil {
		return nil, err
	}
	for k, idx := range out {
		if !layoutsEqual(p.layouts[idx], p.layouts[defaults[k]]) {
			return nil, newError(ErrLayoutMismatch, NamespaceBindGroups, overrides[k], "",
				fmt.Errorf("layout differs from object bind group %q", p.set.bindGroups[defaults[k]].Label))
		}
	}
	return out, nil
}

func (p *compilePlan) resolveNode(n ShaderNodeDescriptor, surface SurfaceInfo) (nodePlan, error) {
	np := nodePlan{label: n.Label, depth: -1, program: n.Program, clear: defaultClear}
	if n.Clear != nil {
		np.clear = *n.Clear
	}
	if n.Program == nil {
		return np, newError(ErrInvalidDescriptor, NamespaceNodes, n.Label, n.Label, fmt.Errorf("node has no program"))
	}
	if err := n.Program.Validate(); err != nil {
		return np, newError(ErrInvalidDescriptor, NamespaceNodes, n.Label, n.Label, err)
	}

	bg, ok := p.set.bufferGroupLabels.lookup(n.BufferGroup)
	if !ok {
		return np, newError(ErrUnknownLabel, NamespaceBufferGroups, n.BufferGroup, n.Label, nil)
	}
	np.bufferGroup = bg

	groups, err := p.resolveBindGroupLabels(n.BindGroups, n.Label)
	if err != nil {
		return np, err
	}
	np.bindGroups = groups

	if err := p.resolveTargets(&np, n, surface); err != nil {
		return np, err
	}

	fs := n.Program.Shader(shader.ShaderTypeFragment)
	want := max(len(np.targets), 1)
	if outs := fs.FragmentOutputs(); outs > 0 && outs != want {
		return np, newError(ErrTargetCount, NamespaceNodes, n.Label, n.Label,
			fmt.Errorf("fragment shader %s writes %d outputs, node has %d targets", fs.Key(), outs, want))
	}

	all := slices.Concat(np.bindGroups, p.objectGroups[np.bufferGroup])
	reflected := mergeShaderLayouts(n.Program.Shader(shader.ShaderTypeVertex), fs)
	for _, g := range sortedGroups(reflected) {
		if g >= len(all) {
			return np, newError(ErrLayoutMismatch, NamespaceNodes, n.Label, n.Label,
				fmt.Errorf("shader group %d has no bind group, node supplies %d", g, len(all)))
		}
		idx := all[g]
		if err := layoutSatisfies(p.layouts[idx], reflected[g]); err != nil {
			return np, newError(ErrLayoutMismatch, NamespaceBindGroups, p.set.bindGroups[idx].Label, n.Label,
				fmt.Errorf("group %d: %w", g, err))
		}
		for _, e := range reflected[g].Entries {
			k, _ := findEntry(p.layouts[idx], e.Binding)
			p.layouts[idx].Entries[k].Visibility |= e.Visibility
		}
	}
	return np, nil
}

func (p *compilePlan) resolveTargets(np *nodePlan, n ShaderNodeDescriptor, surface SurfaceInfo) error {
	var width, height uint32
	for _, l := range n.Targets {
		ti, ok := p.set.textureLabels.lookup(l)
		if !ok {
			return newError(ErrUnknownLabel, NamespaceTextures, l, n.Label, nil)
		}
		if slices.Contains(np.targets, ti) {
			return newError(ErrInvalidDescriptor, NamespaceTextures, l, n.Label, fmt.Errorf("target listed twice"))
		}
		t := p.set.textures[ti]
		if t.Kind != TextureKindRenderTarget {
			return newError(ErrFormatMismatch, NamespaceTextures, l, n.Label,
				fmt.Errorf("colour target is a %s texture", t.Kind))
		}
		if width == 0 {
			width, height = t.Width, t.Height
		} else if t.Width != width || t.Height != height {
			return newError(ErrFormatMismatch, NamespaceTextures, l, n.Label,
				fmt.Errorf("target is %dx%d, other targets are %dx%d", t.Width, t.Height, width, height))
		}
		np.targets = append(np.targets, ti)
		np.colorFormats = append(np.colorFormats, t.Format)
	}
	if len(np.targets) == 0 {
		np.colorFormats = []wgpu.TextureFormat{surface.Format}
		width, height = surface.Width, surface.Height
	}

	if n.Depth == "" {
		return nil
	}
	di, ok := p.set.textureLabels.lookup(n.Depth)
	if !ok {
		return newError(ErrUnknownLabel, NamespaceTextures, n.Depth, n.Label, nil)
	}
	d := p.set.textures[di]
	if d.Kind != TextureKindDepthAttachment {
		return newError(ErrFormatMismatch, NamespaceTextures, n.Depth, n.Label,
			fmt.Errorf("depth target is a %s texture", d.Kind))
	}
	if width != 0 && (d.Width != width || d.Height != height) {
		return newError(ErrFormatMismatch, NamespaceTextures, n.Depth, n.Label,
			fmt.Errorf("depth target is %dx%d, colour targets are %dx%d", d.Width, d.Height, width, height))
	}
	np.depth = di
	np.depthFormat = d.Format
	return nil
}

// checkPassOrder enforces write-before-read: a pass may only sample a texture some earlier pass
// wrote, and never one it writes itself.
func (p *compilePlan) checkPassOrder() error {
	writers := make(map[int][]int)
	for ni, n := range p.nodes {
		for _, t := range n.targets {
			writers[t] = append(writers[t], ni)
		}
		if n.depth >= 0 {
			writers[n.depth] = append(writers[n.depth], ni)
		}
	}

	warned := make(map[int]bool)
	for ni, n := range p.nodes {
		for _, gi := range slices.Concat(n.bindGroups, p.objectGroups[n.bufferGroup]) {
			ti := p.textureOf[gi]
			if ti < 0 {
				continue
			}
			tex := p.set.textures[ti]
			ws := writers[ti]
			if len(ws) == 0 {
				if tex.Kind != TextureKindUnloaded && !warned[ti] {
					warned[ti] = true
					Logger().Warn("render target sampled but never written", "texture", tex.Label, "node", n.label)
				}
				continue
			}
			if slices.Contains(ws, ni) {
				return newError(ErrPassOrder, NamespaceTextures, tex.Label, n.label,
					fmt.Errorf("pass %d samples a texture it also writes", ni))
			}
			if ws[0] > ni {
				return newError(ErrPassOrder, NamespaceTextures, tex.Label, n.label,
					fmt.Errorf("pass %d samples it before node %q writes it at pass %d", ni, p.nodes[ws[0]].label, ws[0]))
			}
		}
	}
	return nil
}
