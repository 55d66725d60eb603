package mesh

import "github.com/Carmen-Shannon/oxy-graph/common"

// cubeFaces lists each face as its outward normal followed by the four corners, counter-clockwise
// when viewed from outside. Corners are in unit-cube space [-0.5, 0.5].
var cubeFaces = [6]struct {
	normal  [3]float32
	corners [4][3]float32
}{
	{[3]float32{0, 0, 1}, [4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}}},
	{[3]float32{0, 0, -1}, [4][3]float32{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}},
	{[3]float32{1, 0, 0}, [4][3]float32{{0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}}},
	{[3]float32{-1, 0, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}}},
	{[3]float32{0, 1, 0}, [4][3]float32{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}}},
	{[3]float32{0, -1, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}}},
}

var quadUVs = [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

// Cube builds a 24-vertex, 36-index cube centred at center with the given edge length.
//
// Parameters:
//   - center: the world-space centre of the cube
//   - size: the edge length
//   - material: the material index written to every vertex
//
// Returns:
//   - []MeshVertex: the cube vertices
//   - []uint32: the cube indices
func Cube(center common.Vec3, size float32, material uint32) ([]MeshVertex, []uint32) {
	vertices := make([]MeshVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, face := range cubeFaces {
		base := uint32(len(vertices))
		for i, c := range face.corners {
			vertices = append(vertices, MeshVertex{
				WorldPos:  [3]float32{center[0] + c[0]*size, center[1] + c[1]*size, center[2] + c[2]*size},
				TexCoords: quadUVs[i],
				Material:  material,
				Normal:    face.normal,
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

// Translate returns a copy of vertices moved by offset.
//
// Parameters:
//   - vertices: the source vertices
//   - offset: the world-space translation
//
// Returns:
//   - []MeshVertex: the translated vertices
func Translate(vertices []MeshVertex, offset common.Vec3) []MeshVertex {
	out := make([]MeshVertex, len(vertices))
	for i, v := range vertices {
		v.WorldPos = [3]float32{v.WorldPos[0] + offset[0], v.WorldPos[1] + offset[1], v.WorldPos[2] + offset[2]}
		out[i] = v
	}
	return out
}

// ScreenQuad builds the full-screen quad used by composite passes: four clip-space corners
// and six indices. Texture coordinates place (0, 0) at the top-left of the screen.
//
// Returns:
//   - []ScreenQuadVertex: the quad vertices
//   - []uint32: the quad indices
func ScreenQuad() ([]ScreenQuadVertex, []uint32) {
	return []ScreenQuadVertex{
		{Position: [2]float32{-1, -1}, TexCoords: [2]float32{0, 1}},
		{Position: [2]float32{1, -1}, TexCoords: [2]float32{1, 1}},
		{Position: [2]float32{1, 1}, TexCoords: [2]float32{1, 0}},
		{Position: [2]float32{-1, 1}, TexCoords: [2]float32{0, 0}},
	}, []uint32{0, 1, 2, 0, 2, 3}
}
