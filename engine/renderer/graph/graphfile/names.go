package graphfile

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// surfaceFormatName stands for the presentation surface format.
const surfaceFormatName = "surface"

var textureFormats = map[string]wgpu.TextureFormat{
	"r8unorm":         wgpu.TextureFormatR8Unorm,
	"rg8unorm":        wgpu.TextureFormatRG8Unorm,
	"rgba8unorm":      wgpu.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb": wgpu.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":      wgpu.TextureFormatBGRA8Unorm,
	"bgra8unorm-srgb": wgpu.TextureFormatBGRA8UnormSrgb,
	"r16float":        wgpu.TextureFormatR16Float,
	"rg16float":       wgpu.TextureFormatRG16Float,
	"rgba16float":     wgpu.TextureFormatRGBA16Float,
	"r32float":        wgpu.TextureFormatR32Float,
	"rg32float":       wgpu.TextureFormatRG32Float,
	"rgba32float":     wgpu.TextureFormatRGBA32Float,
	"depth24plus":     wgpu.TextureFormatDepth24Plus,
	"depth32float":    wgpu.TextureFormatDepth32Float,
}

// textureFormat resolves a WebGPU format name. surface resolves to the given surface format.
func textureFormat(name string, surface wgpu.TextureFormat) (wgpu.TextureFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == surfaceFormatName {
		return surface, nil
	}
	if f, ok := textureFormats[name]; ok {
		return f, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("unknown texture format %q", name)
}

func shaderStages(names []string) (wgpu.ShaderStage, error) {
	if len(names) == 0 {
		return wgpu.ShaderStageVertex | wgpu.ShaderStageFragment, nil
	}
	var stages wgpu.ShaderStage
	for _, n := range names {
		switch strings.ToLower(n) {
		case "vertex":
			stages |= wgpu.ShaderStageVertex
		case "fragment":
			stages |= wgpu.ShaderStageFragment
		default:
			return 0, fmt.Errorf("unknown shader stage %q", n)
		}
	}
	return stages, nil
}

func cullMode(name string) (wgpu.CullMode, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return wgpu.CullModeNone, nil
	case "front":
		return wgpu.CullModeFront, nil
	case "back":
		return wgpu.CullModeBack, nil
	default:
		return wgpu.CullModeNone, fmt.Errorf("unknown cull mode %q", name)
	}
}

func compareFunction(name string) (wgpu.CompareFunction, error) {
	switch strings.ToLower(name) {
	case "", "less_equal":
		return wgpu.CompareFunctionLessEqual, nil
	case "less":
		return wgpu.CompareFunctionLess, nil
	case "greater":
		return wgpu.CompareFunctionGreater, nil
	case "greater_equal":
		return wgpu.CompareFunctionGreaterEqual, nil
	case "equal":
		return wgpu.CompareFunctionEqual, nil
	case "always":
		return wgpu.CompareFunctionAlways, nil
	default:
		return wgpu.CompareFunctionUndefined, fmt.Errorf("unknown depth compare %q", name)
	}
}

func filterMode(name string) (wgpu.FilterMode, wgpu.MipmapFilterMode, error) {
	switch strings.ToLower(name) {
	case "":
		return 0, 0, nil
	case "linear":
		return wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear, nil
	case "nearest":
		return wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest, nil
	default:
		return 0, 0, fmt.Errorf("unknown filter %q", name)
	}
}

func addressMode(name string) (wgpu.AddressMode, error) {
	switch strings.ToLower(name) {
	case "":
		return 0, nil
	case "repeat":
		return wgpu.AddressModeRepeat, nil
	case "clamp":
		return wgpu.AddressModeClampToEdge, nil
	case "mirror":
		return wgpu.AddressModeMirrorRepeat, nil
	default:
		return 0, fmt.Errorf("unknown address mode %q", name)
	}
}
