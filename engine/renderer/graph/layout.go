package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// mergeShaderLayouts combines the reflected layouts of both stages. A group or binding present in
// both keeps one entry with the visibility ORed.
func mergeShaderLayouts(vs, fs shader.Shader) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, s := range []shader.Shader{vs, fs} {
		if s == nil {
			continue
		}
		for g, desc := range s.BindGroupLayoutDescriptors() {
			existing := merged[g]
			entries := slices.Clone(existing.Entries)
			for _, e := range desc.Entries {
				i := slices.IndexFunc(entries, func(x wgpu.BindGroupLayoutEntry) bool { return x.Binding == e.Binding })
				if i >= 0 {
					entries[i].Visibility |= e.Visibility
					continue
				}
				entries = append(entries, e)
			}
			slices.SortFunc(entries, func(a, b wgpu.BindGroupLayoutEntry) int { return int(a.Binding) - int(b.Binding) })
			merged[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
		}
	}
	return merged
}

func sortedGroups(m map[int]wgpu.BindGroupLayoutDescriptor) []int {
	return slices.Sorted(maps.Keys(m))
}

func cloneLayout(d wgpu.BindGroupLayoutDescriptor) wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{Label: d.Label, Entries: slices.Clone(d.Entries)}
}

func findEntry(d wgpu.BindGroupLayoutDescriptor, binding uint32) (int, bool) {
	i := slices.IndexFunc(d.Entries, func(e wgpu.BindGroupLayoutEntry) bool { return e.Binding == binding })
	return i, i >= 0
}

// viewDimension treats an undefined dimension as 2D, the WebGPU default.
func viewDimension(d wgpu.TextureViewDimension) wgpu.TextureViewDimension {
	if d == wgpu.TextureViewDimensionUndefined {
		return wgpu.TextureViewDimension2D
	}
	return d
}

// layoutSatisfies checks that every binding the shader reflects exists in the declared layout with a
// compatible resource type. Extra declared bindings are allowed.
func layoutSatisfies(declared, reflected wgpu.BindGroupLayoutDescriptor) error {
	for _, want := range reflected.Entries {
		i, ok := findEntry(declared, want.Binding)
		if !ok {
			return fmt.Errorf("shader binding %d is not declared", want.Binding)
		}
		if err := entrySatisfies(declared.Entries[i], want); err != nil {
			return fmt.Errorf("binding %d: %w", want.Binding, err)
		}
	}
	return nil
}

func entrySatisfies(have, want wgpu.BindGroupLayoutEntry) error {
	switch {
	case want.Buffer.Type != wgpu.BufferBindingTypeUndefined:
		if have.Buffer.Type != want.Buffer.Type {
			return fmt.Errorf("buffer type %v, shader expects %v", have.Buffer.Type, want.Buffer.Type)
		}
		if have.Buffer.MinBindingSize < want.Buffer.MinBindingSize {
			return fmt.Errorf("buffer holds %d bytes, shader reads %d", have.Buffer.MinBindingSize, want.Buffer.MinBindingSize)
		}
	case want.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		ok := have.Sampler.Type == want.Sampler.Type ||
			(want.Sampler.Type == wgpu.SamplerBindingTypeFiltering && have.Sampler.Type == wgpu.SamplerBindingTypeNonFiltering)
		if !ok {
			return fmt.Errorf("sampler type %v, shader expects %v", have.Sampler.Type, want.Sampler.Type)
		}
	case want.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
		ok := have.Texture.SampleType == want.Texture.SampleType ||
			(want.Texture.SampleType == wgpu.TextureSampleTypeFloat && have.Texture.SampleType == wgpu.TextureSampleTypeUnfilterableFloat)
		if !ok {
			return fmt.Errorf("texture sample type %v, shader expects %v", have.Texture.SampleType, want.Texture.SampleType)
		}
		if viewDimension(have.Texture.ViewDimension) != viewDimension(want.Texture.ViewDimension) {
			return fmt.Errorf("texture dimension %v, shader expects %v", have.Texture.ViewDimension, want.Texture.ViewDimension)
		}
		if have.Texture.Multisampled != want.Texture.Multisampled {
			return fmt.Errorf("texture multisampled %t, shader expects %t", have.Texture.Multisampled, want.Texture.Multisampled)
		}
	}
	return nil
}

// layoutsEqual reports whether two layouts are interchangeable for the same pipeline slot.
func layoutsEqual(a, b wgpu.BindGroupLayoutDescriptor) bool {
	if len(a.Entries) != len(b.Entries) {
		return false
	}
	for _, ea := range a.Entries {
		i, ok := findEntry(b, ea.Binding)
		if !ok {
			return false
		}
		eb := b.Entries[i]
		if ea.Visibility != eb.Visibility || ea.Buffer.Type != eb.Buffer.Type || ea.Sampler.Type != eb.Sampler.Type {
			return false
		}
		if ea.Texture.SampleType != eb.Texture.SampleType || ea.Texture.Multisampled != eb.Texture.Multisampled ||
			viewDimension(ea.Texture.ViewDimension) != viewDimension(eb.Texture.ViewDimension) {
			return false
		}
	}
	return true
}
