package graph

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureKind selects how a texture descriptor is realized.
type TextureKind int

const (
	// TextureKindDepthAttachment is a depth buffer written by a pass and optionally sampled later.
	TextureKindDepthAttachment TextureKind = iota
	// TextureKindRenderTarget is an offscreen colour attachment written by one pass and sampled by later ones.
	TextureKindRenderTarget
	// TextureKindUnloaded is a sampled texture uploaded from staged pixels.
	TextureKindUnloaded
)

func (k TextureKind) String() string {
	switch k {
	case TextureKindDepthAttachment:
		return "depth attachment"
	case TextureKindRenderTarget:
		return "render target"
	case TextureKindUnloaded:
		return "unloaded"
	default:
		return fmt.Sprintf("TextureKind(%d)", int(k))
	}
}

// TextureDescriptor describes one pipeline-level texture.
type TextureDescriptor struct {
	Label  Label
	Kind   TextureKind
	Format wgpu.TextureFormat
	Width  uint32
	Height uint32
	// Staging holds the initial pixels of an Unloaded texture. Nil leaves the texture uninitialised.
	Staging *common.TextureStagingData
}

// DepthTexture describes a Depth32Float depth attachment.
//
// Parameters:
//   - label: the texture label
//   - width, height: the attachment size in pixels
//
// Returns:
//   - TextureDescriptor: the descriptor
func DepthTexture(label Label, width, height uint32) TextureDescriptor {
	return TextureDescriptor{
		Label:  label,
		Kind:   TextureKindDepthAttachment,
		Format: wgpu.TextureFormatDepth32Float,
		Width:  width,
		Height: height,
	}
}

// RenderTarget describes an offscreen colour attachment.
//
// Parameters:
//   - label: the texture label
//   - width, height: the target size in pixels
//   - format: the colour format
//
// Returns:
//   - TextureDescriptor: the descriptor
func RenderTarget(label Label, width, height uint32, format wgpu.TextureFormat) TextureDescriptor {
	return TextureDescriptor{
		Label:  label,
		Kind:   TextureKindRenderTarget,
		Format: format,
		Width:  width,
		Height: height,
	}
}

// UnloadedTexture describes a sampled texture seeded from staged pixels. The size comes from staging.
//
// Parameters:
//   - label: the texture label
//   - staging: the initial pixels
//   - format: a four-byte-per-texel colour format
//
// Returns:
//   - TextureDescriptor: the descriptor
func UnloadedTexture(label Label, staging common.TextureStagingData, format wgpu.TextureFormat) TextureDescriptor {
	return TextureDescriptor{
		Label:   label,
		Kind:    TextureKindUnloaded,
		Format:  format,
		Width:   staging.Width,
		Height:  staging.Height,
		Staging: &staging,
	}
}

// usage returns the usage flags the texture is created with.
func (d TextureDescriptor) usage() wgpu.TextureUsage {
	if d.Kind == TextureKindUnloaded {
		return wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	}
	return wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
}

func (d TextureDescriptor) validate() error {
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("texture size %dx%d must be non-zero", d.Width, d.Height)
	}
	switch d.Kind {
	case TextureKindDepthAttachment:
		if !isDepthFormat(d.Format) {
			return fmt.Errorf("depth attachment needs a depth format, got %v", d.Format)
		}
	case TextureKindRenderTarget:
		if isDepthFormat(d.Format) || d.Format == wgpu.TextureFormatUndefined {
			return fmt.Errorf("render target needs a colour format, got %v", d.Format)
		}
	case TextureKindUnloaded:
		if !uploadFormats[d.Format] {
			return fmt.Errorf("unloaded texture needs an 8-bit RGBA or BGRA format, got %v", d.Format)
		}
		if d.Staging != nil {
			return validateStaging(*d.Staging, d.Width, d.Height)
		}
	default:
		return fmt.Errorf("unknown texture kind %v", d.Kind)
	}
	return nil
}

func validateStaging(s common.TextureStagingData, width, height uint32) error {
	if s.Width != width || s.Height != height {
		return fmt.Errorf("staged pixels are %dx%d, texture is %dx%d", s.Width, s.Height, width, height)
	}
	if s.Pixels != nil && len(s.Pixels) != int(width)*int(height)*4 {
		return fmt.Errorf("staged pixels hold %d bytes, want %d", len(s.Pixels), int(width)*int(height)*4)
	}
	return nil
}

// BindGroupKind selects the variant of a BindGroupDescriptor.
type BindGroupKind int

const (
	// BindGroupKindUniform is a single uniform buffer seeded with bytes.
	BindGroupKindUniform BindGroupKind = iota
	// BindGroupKindReadOnlyTexture is a sampled texture plus its sampler.
	BindGroupKindReadOnlyTexture
)

// TextureSource selects where a ReadOnlyTexture bind group gets its texture.
type TextureSource int

const (
	// TextureSourceRealized binds a texture declared in the same descriptor set.
	TextureSourceRealized TextureSource = iota
	// TextureSourceUnloaded realizes a texture owned by the bind group from staged pixels.
	TextureSourceUnloaded
	// TextureSourceLoaded binds a view and sampler created by the caller. They are never released by the graph.
	TextureSourceLoaded
)

// TextureBinding is the texture half of a ReadOnlyTexture bind group.
type TextureBinding struct {
	Source TextureSource

	// Texture names the declared texture for TextureSourceRealized.
	Texture Label

	// Staging and Format describe the owned texture for TextureSourceUnloaded.
	// Format defaults to RGBA8UnormSrgb.
	Staging common.TextureStagingData
	Format  wgpu.TextureFormat

	// Sampler configures the sampler created for Realized and Unloaded sources.
	// Zero fields fall back to defaults chosen by the layout's sampler type.
	Sampler common.SamplerStagingData

	// View and LoadedSampler are bound as-is for TextureSourceLoaded.
	View          *wgpu.TextureView
	LoadedSampler *wgpu.Sampler
}

// BindGroupDescriptor describes one labeled bind group.
type BindGroupDescriptor struct {
	Label Label
	Kind  BindGroupKind
	// Layout is the binding layout shaders must match. Texture bind groups may leave it empty to
	// derive it from the bound texture's format.
	Layout wgpu.BindGroupLayoutDescriptor
	// Contents seeds the uniform buffer of a Uniform bind group.
	Contents []byte
	// Texture configures a ReadOnlyTexture bind group.
	Texture TextureBinding
}

// UniformLayout returns a layout with one uniform buffer at binding 0.
//
// Parameters:
//   - size: the minimum binding size in bytes
//   - visibility: the shader stages that read the buffer
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the layout
func UniformLayout(size uint64, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: visibility,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: size,
			},
		}},
	}
}

// SampledTextureLayout returns the layout of a fragment-stage 2D colour texture at binding 0 and its
// sampler at binding 1.
//
// Parameters:
//   - filterable: whether the texture format supports filtering
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the layout
func SampledTextureLayout(filterable bool) wgpu.BindGroupLayoutDescriptor {
	sampleType, samplerType := wgpu.TextureSampleTypeFloat, wgpu.SamplerBindingTypeFiltering
	if !filterable {
		sampleType, samplerType = wgpu.TextureSampleTypeUnfilterableFloat, wgpu.SamplerBindingTypeNonFiltering
	}
	return textureLayout(sampleType, samplerType)
}

// DepthTextureLayout returns the layout of a fragment-stage 2D depth texture at binding 0 and a
// non-filtering sampler at binding 1.
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the layout
func DepthTextureLayout() wgpu.BindGroupLayoutDescriptor {
	return textureLayout(wgpu.TextureSampleTypeDepth, wgpu.SamplerBindingTypeNonFiltering)
}

func textureLayout(sampleType wgpu.TextureSampleType, samplerType wgpu.SamplerBindingType) wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    sampleType,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: samplerType},
			},
		},
	}
}

// layoutForFormat derives the texture layout for sampling a texture of format f.
func layoutForFormat(f wgpu.TextureFormat) wgpu.BindGroupLayoutDescriptor {
	switch st := sampleTypeFor(f); st {
	case wgpu.TextureSampleTypeDepth:
		return DepthTextureLayout()
	case wgpu.TextureSampleTypeFloat:
		return SampledTextureLayout(true)
	default:
		return textureLayout(st, wgpu.SamplerBindingTypeNonFiltering)
	}
}

// UniformBindGroup describes a uniform bind group seeded with contents.
//
// Parameters:
//   - label: the bind group label
//   - layout: the binding layout, normally from UniformLayout
//   - contents: the initial bytes
//
// Returns:
//   - BindGroupDescriptor: the descriptor
func UniformBindGroup(label Label, layout wgpu.BindGroupLayoutDescriptor, contents []byte) BindGroupDescriptor {
	return BindGroupDescriptor{Label: label, Kind: BindGroupKindUniform, Layout: layout, Contents: contents}
}

// TextureBindGroup describes a bind group sampling a texture declared in the same set. The layout
// is derived from the texture's format.
//
// Parameters:
//   - label: the bind group label
//   - texture: the label of the texture to sample
//   - sampler: the sampler configuration
//
// Returns:
//   - BindGroupDescriptor: the descriptor
func TextureBindGroup(label, texture Label, sampler common.SamplerStagingData) BindGroupDescriptor {
	return BindGroupDescriptor{
		Label: label,
		Kind:  BindGroupKindReadOnlyTexture,
		Texture: TextureBinding{
			Source:  TextureSourceRealized,
			Texture: texture,
			Sampler: sampler,
		},
	}
}

// UnloadedTextureBindGroup describes a bind group that owns its own RGBA8UnormSrgb texture,
// uploaded from staging at compile time.
//
// Parameters:
//   - label: the bind group label
//   - staging: the initial pixels
//   - sampler: the sampler configuration
//
// Returns:
//   - BindGroupDescriptor: the descriptor
func UnloadedTextureBindGroup(label Label, staging common.TextureStagingData, sampler common.SamplerStagingData) BindGroupDescriptor {
	return BindGroupDescriptor{
		Label: label,
		Kind:  BindGroupKindReadOnlyTexture,
		Texture: TextureBinding{
			Source:  TextureSourceUnloaded,
			Staging: staging,
			Format:  wgpu.TextureFormatRGBA8UnormSrgb,
			Sampler: sampler,
		},
	}
}

// LoadedTextureBindGroup describes a bind group over a caller-owned view and sampler.
//
// Parameters:
//   - label: the bind group label
//   - layout: the binding layout, one texture entry and at most one sampler entry
//   - view: the texture view
//   - sampler: the sampler, may be nil when the layout has no sampler entry
//
// Returns:
//   - BindGroupDescriptor: the descriptor
func LoadedTextureBindGroup(label Label, layout wgpu.BindGroupLayoutDescriptor, view *wgpu.TextureView, sampler *wgpu.Sampler) BindGroupDescriptor {
	return BindGroupDescriptor{
		Label:  label,
		Kind:   BindGroupKindReadOnlyTexture,
		Layout: layout,
		Texture: TextureBinding{
			Source:        TextureSourceLoaded,
			View:          view,
			LoadedSampler: sampler,
		},
	}
}

// textureEntries locates the texture and sampler bindings of a texture layout. sampler is -1 when absent.
func textureEntries(layout wgpu.BindGroupLayoutDescriptor) (texture, sampler int, err error) {
	texture, sampler = -1, -1
	for i, e := range layout.Entries {
		switch {
		case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			if texture >= 0 {
				return -1, -1, errors.New("texture layout has more than one texture entry")
			}
			texture = i
		case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			if sampler >= 0 {
				return -1, -1, errors.New("texture layout has more than one sampler entry")
			}
			sampler = i
		default:
			return -1, -1, fmt.Errorf("texture layout binding %d is neither a texture nor a sampler", e.Binding)
		}
	}
	if texture < 0 {
		return -1, -1, errors.New("texture layout has no texture entry")
	}
	return texture, sampler, nil
}

// validate checks the descriptor on its own, without resolving labels.
func (d BindGroupDescriptor) validate() error {
	switch d.Kind {
	case BindGroupKindUniform:
		if len(d.Layout.Entries) != 1 || d.Layout.Entries[0].Buffer.Type != wgpu.BufferBindingTypeUniform {
			return errors.New("uniform bind group layout must hold exactly one uniform buffer entry")
		}
		if uniformSize(d) == 0 {
			return errors.New("uniform bind group has neither contents nor a minimum binding size")
		}
	case BindGroupKindReadOnlyTexture:
		if len(d.Layout.Entries) > 0 {
			if _, _, err := textureEntries(d.Layout); err != nil {
				return err
			}
		}
		switch d.Texture.Source {
		case TextureSourceRealized:
			if d.Texture.Texture == "" {
				return errors.New("realized texture binding names no texture")
			}
		case TextureSourceUnloaded:
			if !uploadFormats[unloadedFormat(d.Texture)] {
				return fmt.Errorf("unloaded texture binding needs an 8-bit RGBA or BGRA format, got %v", d.Texture.Format)
			}
			if d.Texture.Staging.Width == 0 || d.Texture.Staging.Height == 0 {
				return errors.New("unloaded texture binding has an empty size")
			}
			if err := validateStaging(d.Texture.Staging, d.Texture.Staging.Width, d.Texture.Staging.Height); err != nil {
				return err
			}
		case TextureSourceLoaded:
			if d.Texture.View == nil {
				return errors.New("loaded texture binding has no view")
			}
			if len(d.Layout.Entries) == 0 {
				return errors.New("loaded texture binding needs an explicit layout")
			}
			if _, s, _ := textureEntries(d.Layout); s >= 0 && d.Texture.LoadedSampler == nil {
				return errors.New("loaded texture binding layout has a sampler entry but no sampler")
			}
		default:
			return fmt.Errorf("unknown texture source %d", d.Texture.Source)
		}
	default:
		return fmt.Errorf("unknown bind group kind %d", d.Kind)
	}
	return nil
}

func unloadedFormat(t TextureBinding) wgpu.TextureFormat {
	return common.Coalesce(t.Format, wgpu.TextureFormatRGBA8UnormSrgb)
}

// uniformSize is the allocated buffer size of a uniform bind group: the larger of its contents and
// its declared minimum, rounded up to four bytes.
func uniformSize(d BindGroupDescriptor) uint64 {
	size := uint64(len(d.Contents))
	if len(d.Layout.Entries) == 1 {
		size = max(size, d.Layout.Entries[0].Buffer.MinBindingSize)
	}
	return common.AlignUp(size, 4)
}

// MeshBytes is the GPU-ready geometry of one drawable object.
type MeshBytes struct {
	Vertices    []byte
	VertexCount int
	// Indices are little-endian uint32 values.
	Indices []byte
	// IndexCount defaults to len(Indices)/4 when zero.
	IndexCount int
	// BindGroups overrides the buffer group's ObjectBindGroups for this object. When set it must have
	// the same length, and each override must have a layout identical to the group it replaces.
	BindGroups []Label
}

func (m MeshBytes) indexCount() int {
	if m.IndexCount > 0 {
		return m.IndexCount
	}
	return len(m.Indices) / 4
}

func (m MeshBytes) validate(objectGroups int) error {
	if len(m.Indices)%4 != 0 {
		return fmt.Errorf("index data length %d is not a multiple of 4", len(m.Indices))
	}
	if m.IndexCount*4 > len(m.Indices) {
		return fmt.Errorf("index count %d exceeds the %d indices supplied", m.IndexCount, len(m.Indices)/4)
	}
	if m.VertexCount < 0 {
		return fmt.Errorf("negative vertex count %d", m.VertexCount)
	}
	if m.BindGroups != nil && len(m.BindGroups) != objectGroups {
		return fmt.Errorf("object overrides %d bind groups, buffer group declares %d", len(m.BindGroups), objectGroups)
	}
	return nil
}

// BufferGroupDescriptor describes the per-object geometry one or more passes draw.
type BufferGroupDescriptor struct {
	Label Label
	// ObjectBindGroups are bound after a node's shared bind groups for every object of the group.
	ObjectBindGroups []Label
	// Initial is uploaded at compile time. An empty group is valid and draws nothing.
	Initial []MeshBytes
}

// ShaderNodeDescriptor describes one render pass.
type ShaderNodeDescriptor struct {
	Label       Label
	BufferGroup Label
	// BindGroups are bound in order: group index i is BindGroups[i].
	BindGroups []Label
	// Targets are written simultaneously, fragment output location i to Targets[i]. Nil renders to the surface.
	Targets []Label
	// Depth names a DepthAttachment texture, empty for none.
	Depth   Label
	Program pipeline.Pipeline
	// Clear is the load colour for every colour target. Nil clears to opaque dark grey.
	Clear *wgpu.Color
}

var defaultClear = wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1}

// BindGroupWrite replaces bytes of a uniform bind group.
type BindGroupWrite struct {
	Label  Label
	Offset uint64
	Data   []byte
}

// TextureWrite replaces the pixels of a bind group that owns its texture.
type TextureWrite struct {
	BindGroup Label
	Staging   common.TextureStagingData
}

// SurfaceInfo describes the presentation target nodes without Targets draw to.
type SurfaceInfo struct {
	Width  uint32
	Height uint32
	Format wgpu.TextureFormat
}
