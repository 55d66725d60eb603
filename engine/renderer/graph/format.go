package graph

import "github.com/cogentcore/webgpu/wgpu"

var depthFormats = map[wgpu.TextureFormat]bool{
	wgpu.TextureFormatDepth16Unorm:         true,
	wgpu.TextureFormatDepth24Plus:          true,
	wgpu.TextureFormatDepth24PlusStencil8:  true,
	wgpu.TextureFormatDepth32Float:         true,
	wgpu.TextureFormatDepth32FloatStencil8: true,
}

// uploadFormats are the colour formats accepted for textures carrying staged pixels, all four bytes per texel.
var uploadFormats = map[wgpu.TextureFormat]bool{
	wgpu.TextureFormatRGBA8Unorm:     true,
	wgpu.TextureFormatRGBA8UnormSrgb: true,
	wgpu.TextureFormatBGRA8Unorm:     true,
	wgpu.TextureFormatBGRA8UnormSrgb: true,
}

var unfilterableFormats = map[wgpu.TextureFormat]bool{
	wgpu.TextureFormatR32Float:    true,
	wgpu.TextureFormatRG32Float:   true,
	wgpu.TextureFormatRGBA32Float: true,
}

var uintFormats = map[wgpu.TextureFormat]bool{
	wgpu.TextureFormatR16Uint:    true,
	wgpu.TextureFormatR32Uint:    true,
	wgpu.TextureFormatRG32Uint:   true,
	wgpu.TextureFormatRGBA8Uint:  true,
	wgpu.TextureFormatRGBA16Uint: true,
	wgpu.TextureFormatRGBA32Uint: true,
}

var sintFormats = map[wgpu.TextureFormat]bool{
	wgpu.TextureFormatR16Sint:    true,
	wgpu.TextureFormatR32Sint:    true,
	wgpu.TextureFormatRG32Sint:   true,
	wgpu.TextureFormatRGBA8Sint:  true,
	wgpu.TextureFormatRGBA16Sint: true,
	wgpu.TextureFormatRGBA32Sint: true,
}

func isDepthFormat(f wgpu.TextureFormat) bool {
	return depthFormats[f]
}

// sampleTypeFor returns the texture sample type a bind group layout should declare to sample f.
func sampleTypeFor(f wgpu.TextureFormat) wgpu.TextureSampleType {
	switch {
	case depthFormats[f]:
		return wgpu.TextureSampleTypeDepth
	case uintFormats[f]:
		return wgpu.TextureSampleTypeUint
	case sintFormats[f]:
		return wgpu.TextureSampleTypeSint
	case unfilterableFormats[f]:
		return wgpu.TextureSampleTypeUnfilterableFloat
	default:
		return wgpu.TextureSampleTypeFloat
	}
}

// sampleTypeAccepts reports whether a layout declaring declared can bind a texture of format f.
func sampleTypeAccepts(declared wgpu.TextureSampleType, f wgpu.TextureFormat) bool {
	actual := sampleTypeFor(f)
	if declared == actual {
		return true
	}
	return declared == wgpu.TextureSampleTypeUnfilterableFloat && actual == wgpu.TextureSampleTypeFloat
}
