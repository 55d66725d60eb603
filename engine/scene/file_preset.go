package scene

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph/graphfile"
)

// FilePreset builds the pipeline from a YAML or TOML description. The file is read again on every
// compile, and the scene watches it together with the shaders and images it references, so editing
// any of them recompiles the pipeline on the next frame.
//
// Parameters:
//   - path: the description file
//   - bindings: called on every compile with the parsed file to produce fresh bindings
//   - options: optional graphfile.DescriptorSetBuilderOption values
//
// Returns:
//   - Preset: the preset
func FilePreset(path string, bindings func(f *graphfile.File) []Binding, options ...graphfile.DescriptorSetBuilderOption) Preset {
	return func(surface graph.SurfaceInfo) (Layout, error) {
		f, err := graphfile.Load(path)
		if err != nil {
			return Layout{Watch: []string{path}}, err
		}
		layout := Layout{Watch: f.Paths()}
		set, err := f.DescriptorSet(surface, options...)
		if err != nil {
			return layout, fmt.Errorf("scene: %w", err)
		}
		layout.Set = set
		if bindings != nil {
			layout.Bindings = bindings(f)
		}
		return layout, nil
	}
}

// MeshBindings binds live meshes and the camera to a described pipeline: meshes feed meshBuffer,
// drawing textured meshes through every bind group whose label starts with slotPrefix, and the first
// camera is written to cameraUniform.
//
// Parameters:
//   - meshBuffer: the buffer group meshes are streamed into
//   - cameraUniform: the camera uniform bind group
//   - slotPrefix: the label prefix of the texture slot bind groups, empty for none
//
// Returns:
//   - func(*graphfile.File) []Binding: the bindings callback for FilePreset
func MeshBindings(meshBuffer, cameraUniform graph.Label, slotPrefix string) func(f *graphfile.File) []Binding {
	return func(f *graphfile.File) []Binding {
		var slots []graph.Label
		if slotPrefix != "" {
			for _, bg := range f.BindGroups {
				if strings.HasPrefix(bg.Label, slotPrefix) {
					slots = append(slots, graph.Label(bg.Label))
				}
			}
		}
		return []Binding{
			Bind(meshBuffer, MeshRebuild(slots...)),
			Bind(meshBuffer, CameraRebuild(cameraUniform)),
		}
	}
}
