package dynamic

import (
	"reflect"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
)

// Store is the live-data source a dynamic pipeline pulls from each frame.
type Store interface {
	// Query returns every live instance of componentType in a stable order. No instances is valid.
	//
	// Parameters:
	//   - componentType: the component type to query
	//
	// Returns:
	//   - []any: the instances, each assignable to componentType
	Query(componentType reflect.Type) []any
}

// Context is what a rebuild function knows about the frame being prepared.
type Context struct {
	Surface graph.SurfaceInfo
	// Frame counts frames from zero.
	Frame uint64
	// Delta is the time since the previous frame.
	Delta time.Duration
	// Retry is set when the binding's previous rebuild or upload failed. A rebuild that skips
	// uploads it believes are current must send them again.
	Retry bool
}

// Rebuild is the GPU-ready output of one rebuild function.
type Rebuild struct {
	// Meshes replaces the binding's buffer group, one entry per drawable object. A nil slice leaves
	// the group as it is; an empty non-nil slice clears it.
	Meshes []graph.MeshBytes
	// Writes refresh uniform bind groups.
	Writes []graph.BindGroupWrite
	// Textures replace the pixels of bind groups that own their texture.
	Textures []graph.TextureWrite
}

// RebuildFunc derives a Rebuild from the live instances of one component type.
type RebuildFunc func(instances []any, ctx Context) (Rebuild, error)
