package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormat is a vertex attribute format and its packed byte size.
type vertexFormat struct {
	format wgpu.VertexFormat
	size   uint64
}

// textureShape is the view dimension and multisampling of a WGSL texture type.
type textureShape struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// typeLayout is the WGSL host-shareable size and alignment of a type.
type typeLayout struct {
	size  uint64
	align uint64
}

// wgslField is one member of a parsed WGSL struct.
type wgslField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// wgslStruct is a parsed WGSL struct declaration.
type wgslStruct struct {
	name   string
	fields []wgslField
}

// primitiveLayouts holds size and alignment of scalar, vector and matrix types.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var primitiveLayouts = map[string]typeLayout{
	"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "f16": {2, 2}, "bool": {4, 4},
	"vec2<f32>": {8, 8}, "vec2f": {8, 8}, "vec3<f32>": {12, 16}, "vec3f": {12, 16}, "vec4<f32>": {16, 16}, "vec4f": {16, 16},
	"vec2<i32>": {8, 8}, "vec2i": {8, 8}, "vec3<i32>": {12, 16}, "vec3i": {12, 16}, "vec4<i32>": {16, 16}, "vec4i": {16, 16},
	"vec2<u32>": {8, 8}, "vec2u": {8, 8}, "vec3<u32>": {12, 16}, "vec3u": {12, 16}, "vec4<u32>": {16, 16}, "vec4u": {16, 16},
	"mat2x2<f32>": {16, 8}, "mat3x3<f32>": {48, 16}, "mat4x4<f32>": {64, 16},
	"mat2x2f": {16, 8}, "mat3x3f": {48, 16}, "mat4x4f": {64, 16},
	"atomic<u32>": {4, 4}, "atomic<i32>": {4, 4},
}

// isVertexInput reports whether the struct is a pure vertex input: at least one @location field and no @builtin.
func (ws wgslStruct) isVertexInput() bool {
	hasLocation := false
	for _, f := range ws.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

// vertexBufferLayout packs the struct's fields into a per-vertex buffer layout in declaration order.
// It fails if any field type is not a valid vertex attribute type.
func (ws wgslStruct) vertexBufferLayout() (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(ws.fields))
	var offset uint64
	for _, f := range ws.fields {
		vf, ok := wgslVertexFormats[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         vf.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += vf.size
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

func roundUp(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// resolveTypeLayout resolves a type name against primitives, known structs and arrays. A runtime-sized
// array resolves to a single element stride.
func resolveTypeLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	parts := strings.SplitN(strings.TrimSuffix(inner, ">"), ",", 2)
	elem, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), known)
	if !ok {
		return typeLayout{}, false
	}
	stride := roundUp(elem.align, elem.size)
	if len(parts) == 1 {
		return typeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{count * stride, elem.align}, true
}

// structLayout lays out a struct's members at aligned offsets and rounds the size to the struct alignment.
func (ws wgslStruct) structLayout(known map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	maxAlign := uint64(1)
	for _, f := range ws.fields {
		if f.isBuiltin {
			continue
		}
		fl, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = roundUp(fl.align, offset) + fl.size
		maxAlign = max(maxAlign, fl.align)
	}
	return typeLayout{roundUp(maxAlign, offset), maxAlign}, true
}

// computeStructLayouts resolves struct layouts iteratively so structs may nest in any declaration order.
func computeStructLayouts(structs []wgslStruct) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	pending := structs
	for len(pending) > 0 {
		var next []wgslStruct
		for _, ws := range pending {
			if l, ok := ws.structLayout(resolved); ok {
				resolved[ws.name] = l
			} else {
				next = append(next, ws)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return resolved
}
