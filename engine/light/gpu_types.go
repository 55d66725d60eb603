package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPULightUniformSource is the canonical WGSL definition of the LightUniform struct.
// Matches GPULightUniform layout exactly (32 bytes).
//
//go:embed assets/light_uniform.wgsl
var GPULightUniformSource string

// GPULightUniform is the GPU-aligned representation of a directional light.
// Size: 32 bytes.
type GPULightUniform struct {
	Direction [3]float32 // offset  0: normalized, pointing towards the light
	Intensity float32    // offset 12
	Color     [3]float32 // offset 16: linear RGB
	Ambient   float32    // offset 28: fraction of albedo lit regardless of the normal
}

// Size returns the size of the uniform in bytes.
func (g *GPULightUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the uniform into little-endian bytes for GPU upload.
//
// Returns:
//   - []byte: the 32-byte buffer
func (g *GPULightUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	vals := []float32{
		g.Direction[0], g.Direction[1], g.Direction[2], g.Intensity,
		g.Color[0], g.Color[1], g.Color[2], g.Ambient,
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
