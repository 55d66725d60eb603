package mesh

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// MeshBuilderOption is a functional option applied to a mesh during NewMesh.
type MeshBuilderOption[V Vertex] func(*meshImpl[V])

// WithGeometry sets the initial vertex and index lists.
//
// Parameters:
//   - vertices: the vertices
//   - indices: the triangle indices
//
// Returns:
//   - MeshBuilderOption[V]: a function that applies the geometry
func WithGeometry[V Vertex](vertices []V, indices []uint32) MeshBuilderOption[V] {
	return func(m *meshImpl[V]) {
		m.vertices = slices.Clone(vertices)
		m.indices = slices.Clone(indices)
	}
}

// WithTexture sets the initial mesh texture.
//
// Parameters:
//   - staging: the texture pixels
//
// Returns:
//   - MeshBuilderOption[V]: a function that applies the texture
func WithTexture[V Vertex](staging common.TextureStagingData) MeshBuilderOption[V] {
	return func(m *meshImpl[V]) {
		m.texture = &staging
	}
}
