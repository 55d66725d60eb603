package mesh

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// MeshVertexSource is the canonical WGSL definition of the MeshVertex input struct.
// Matches MeshVertex layout exactly (36 bytes, tightly packed vertex attributes).
//
//go:embed assets/mesh_vertex.wgsl
var MeshVertexSource string

// ScreenQuadVertexSource is the canonical WGSL definition of the ScreenQuadVertex input struct.
// Matches ScreenQuadVertex layout exactly (16 bytes).
//
//go:embed assets/screen_quad_vertex.wgsl
var ScreenQuadVertexSource string

// Vertex is any GPU vertex type that can serialize itself into a vertex buffer.
type Vertex interface {
	// Size returns the stride of the vertex in bytes.
	Size() int
	// Marshal returns the little-endian bytes of the vertex.
	Marshal() []byte
}

// MeshVertex is the vertex format used by world-space geometry.
// Size: 36 bytes (vertex attributes are tightly packed, no std430 padding).
type MeshVertex struct {
	WorldPos  [3]float32 // offset  0: world-space position (12 bytes)
	TexCoords [2]float32 // offset 12: UV texture coordinate (8 bytes)
	Material  uint32     // offset 20: material index (4 bytes)
	Normal    [3]float32 // offset 24: surface normal (12 bytes)
}

const (
	meshVertexSize       = 36
	screenQuadVertexSize = 16
)

var _ Vertex = MeshVertex{}
var _ Vertex = ScreenQuadVertex{}

// Size returns the stride of MeshVertex in bytes.
//
// Returns:
//   - int: 36
func (v MeshVertex) Size() int {
	return meshVertexSize
}

// Marshal serializes the vertex into a 36-byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the vertex bytes
func (v MeshVertex) Marshal() []byte {
	buf := make([]byte, meshVertexSize)
	putFloats(buf[0:], v.WorldPos[:]...)
	putFloats(buf[12:], v.TexCoords[:]...)
	binary.LittleEndian.PutUint32(buf[20:24], v.Material)
	putFloats(buf[24:], v.Normal[:]...)
	return buf
}

// ScreenQuadVertex is the vertex format of the full-screen composite quad.
// Size: 16 bytes.
type ScreenQuadVertex struct {
	Position  [2]float32 // offset 0: clip-space position (8 bytes)
	TexCoords [2]float32 // offset 8: UV texture coordinate (8 bytes)
}

// Size returns the stride of ScreenQuadVertex in bytes.
//
// Returns:
//   - int: 16
func (v ScreenQuadVertex) Size() int {
	return screenQuadVertexSize
}

// Marshal serializes the vertex into a 16-byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the vertex bytes
func (v ScreenQuadVertex) Marshal() []byte {
	buf := make([]byte, screenQuadVertexSize)
	putFloats(buf[0:], v.Position[:]...)
	putFloats(buf[8:], v.TexCoords[:]...)
	return buf
}

func putFloats(buf []byte, vals ...float32) {
	for i, f := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}

// MarshalVertices concatenates the bytes of every vertex in order.
//
// Parameters:
//   - vertices: the vertices to serialize
//
// Returns:
//   - []byte: the packed vertex buffer contents
func MarshalVertices[V Vertex](vertices []V) []byte {
	if len(vertices) == 0 {
		return nil
	}
	out := make([]byte, 0, len(vertices)*vertices[0].Size())
	for _, v := range vertices {
		out = append(out, v.Marshal()...)
	}
	return out
}

// MarshalIndices serializes 32-bit indices into little-endian bytes.
//
// Parameters:
//   - indices: the index list
//
// Returns:
//   - []byte: the packed index buffer contents
func MarshalIndices(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}
