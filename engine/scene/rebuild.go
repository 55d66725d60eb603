package scene

import (
	"reflect"

	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/light"
	"github.com/Carmen-Shannon/oxy-graph/engine/mesh"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/dynamic"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
)

// Binding pairs a live component type with the buffer group its rebuild function feeds.
type Binding struct {
	ComponentType reflect.Type
	BufferGroup   graph.Label
	Rebuild       dynamic.RebuildFunc
}

// Bind creates a Binding over the concrete component type T.
//
// Parameters:
//   - bufferGroup: the buffer group the rebuild feeds
//   - rebuild: the typed rebuild function
//
// Returns:
//   - Binding: the binding
func Bind[T any](bufferGroup graph.Label, rebuild func([]T, dynamic.Context) (dynamic.Rebuild, error)) Binding {
	return Binding{
		ComponentType: reflect.TypeFor[T](),
		BufferGroup:   bufferGroup,
		Rebuild:       dynamic.Typed(rebuild),
	}
}

// MeshRebuildFunc is the rebuild function over live MeshVertex meshes.
type MeshRebuildFunc = func([]mesh.Mesh[mesh.MeshVertex], dynamic.Context) (dynamic.Rebuild, error)

// MeshRebuild returns a rebuild function that streams every live mesh into its buffer group, one
// object per mesh in query order. Textured meshes take the texture slots in order and draw with the
// slot's bind group in place of the group's default texture. A slot's pixels are uploaded only when a
// different mesh, or a newer version of the same mesh, lands in it, or when the previous upload
// failed. Untextured meshes and textured
// meshes beyond the last slot draw with the default texture.
//
// The returned function keeps the slot state of one compiled pipeline; create a new one per compile.
//
// Parameters:
//   - slots: texture bind groups with the same layout as the buffer group's object bind group
//
// Returns:
//   - MeshRebuildFunc: the rebuild function
func MeshRebuild(slots ...graph.Label) MeshRebuildFunc {
	type upload struct {
		mesh    mesh.Mesh[mesh.MeshVertex]
		version uint64
	}
	uploaded := make([]upload, len(slots))
	vertexSize := mesh.MeshVertex{}.Size()

	return func(meshes []mesh.Mesh[mesh.MeshVertex], ctx dynamic.Context) (dynamic.Rebuild, error) {
		if ctx.Retry {
			clear(uploaded)
		}
		r := dynamic.Rebuild{Meshes: make([]graph.MeshBytes, 0, len(meshes))}
		next := 0
		for _, m := range meshes {
			version := m.Version()
			vertices, indices := m.Bytes()
			object := graph.MeshBytes{
				Vertices:    vertices,
				VertexCount: len(vertices) / vertexSize,
				Indices:     indices,
			}

			if staging, ok := m.Texture(); ok && next < len(slots) {
				slot := slots[next]
				object.BindGroups = []graph.Label{slot}
				if u := uploaded[next]; u.mesh != m || u.version != version {
					r.Textures = append(r.Textures, graph.TextureWrite{BindGroup: slot, Staging: staging})
					uploaded[next] = upload{mesh: m, version: version}
				}
				next++
			}
			r.Meshes = append(r.Meshes, object)
		}
		return r, nil
	}
}

// CameraRebuild returns a rebuild function that writes the view-projection of the first live camera
// into the uniform bind group. The camera's aspect follows the surface. No camera leaves the
// uniform as it is.
//
// Parameters:
//   - uniform: the camera uniform bind group
//
// Returns:
//   - func([]camera.Camera, dynamic.Context) (dynamic.Rebuild, error): the rebuild function
func CameraRebuild(uniform graph.Label) func([]camera.Camera, dynamic.Context) (dynamic.Rebuild, error) {
	return func(cams []camera.Camera, ctx dynamic.Context) (dynamic.Rebuild, error) {
		if len(cams) == 0 {
			return dynamic.Rebuild{}, nil
		}
		cam := cams[0]
		if w, h := ctx.Surface.Width, ctx.Surface.Height; w > 0 && h > 0 && cam.Aspect() != float32(w)/float32(h) {
			cam.Resize(w, h)
		}
		u := cam.Uniform()
		return dynamic.Rebuild{
			Writes: []graph.BindGroupWrite{{Label: uniform, Data: u.Marshal()}},
		}, nil
	}
}

// LightRebuild returns a rebuild function that writes the first live light into the uniform bind
// group. No light leaves the uniform as it is.
//
// Parameters:
//   - uniform: the light uniform bind group
//
// Returns:
//   - func([]light.Light, dynamic.Context) (dynamic.Rebuild, error): the rebuild function
func LightRebuild(uniform graph.Label) func([]light.Light, dynamic.Context) (dynamic.Rebuild, error) {
	return func(lights []light.Light, _ dynamic.Context) (dynamic.Rebuild, error) {
		if len(lights) == 0 {
			return dynamic.Rebuild{}, nil
		}
		u := lights[0].Uniform()
		return dynamic.Rebuild{
			Writes: []graph.BindGroupWrite{{Label: uniform, Data: u.Marshal()}},
		}, nil
	}
}
