package mesh

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// meshImpl is the implementation of the Mesh interface.
type meshImpl[V Vertex] struct {
	mu       *sync.Mutex
	vertices []V
	indices  []uint32
	texture  *common.TextureStagingData
	version  uint64
}

// Mesh is an indexed triangle list stored as a live component. The per-frame rebuild reads its
// geometry and optional texture and streams them into the graph's buffer group.
type Mesh[V Vertex] interface {
	// Vertices returns a copy of the vertex list.
	//
	// Returns:
	//   - []V: the vertices
	Vertices() []V

	// Indices returns a copy of the index list.
	//
	// Returns:
	//   - []uint32: the triangle indices
	Indices() []uint32

	// SetGeometry replaces the vertex and index lists.
	//
	// Parameters:
	//   - vertices: the new vertices
	//   - indices: the new triangle indices
	SetGeometry(vertices []V, indices []uint32)

	// Texture returns the mesh texture, if any.
	//
	// Returns:
	//   - common.TextureStagingData: the texture pixels
	//   - bool: false when the mesh has no texture
	Texture() (common.TextureStagingData, bool)

	// SetTexture replaces the mesh texture.
	//
	// Parameters:
	//   - staging: the texture pixels
	SetTexture(staging common.TextureStagingData)

	// Version increments every time the geometry or texture changes.
	//
	// Returns:
	//   - uint64: the change counter
	Version() uint64

	// Bytes serializes the geometry for upload.
	//
	// Returns:
	//   - []byte: the vertex buffer contents
	//   - []byte: the index buffer contents (uint32)
	Bytes() ([]byte, []byte)
}

var _ Mesh[MeshVertex] = &meshImpl[MeshVertex]{}

// NewMesh creates a mesh from the given options.
//
// Parameters:
//   - options: MeshBuilderOption values applied in order
//
// Returns:
//   - Mesh[V]: the new mesh
func NewMesh[V Vertex](options ...MeshBuilderOption[V]) Mesh[V] {
	m := &meshImpl[V]{mu: &sync.Mutex{}}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *meshImpl[V]) Vertices() []V {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.vertices)
}

func (m *meshImpl[V]) Indices() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.indices)
}

func (m *meshImpl[V]) SetGeometry(vertices []V, indices []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vertices = slices.Clone(vertices)
	m.indices = slices.Clone(indices)
	m.version++
}

func (m *meshImpl[V]) Texture() (common.TextureStagingData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.texture == nil {
		return common.TextureStagingData{}, false
	}
	return *m.texture, true
}

func (m *meshImpl[V]) SetTexture(staging common.TextureStagingData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texture = &staging
	m.version++
}

func (m *meshImpl[V]) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *meshImpl[V]) Bytes() ([]byte, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MarshalVertices(m.vertices), MarshalIndices(m.indices)
}
