package scene

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/dynamic"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithPreset sets the pipeline the scene compiles. Default is DeferredPipeline().
//
// Parameters:
//   - preset: the pipeline preset
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPreset(preset Preset) SceneBuilderOption {
	return func(s *scene) {
		if preset != nil {
			s.preset = preset
		}
	}
}

// WithCompileOptions passes options to graph.Finalize every time the scene compiles.
//
// Parameters:
//   - options: the compile options
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCompileOptions(options ...graph.CompileOption) SceneBuilderOption {
	return func(s *scene) {
		s.compileOptions = append(s.compileOptions, options...)
	}
}

// WithDynamicOptions passes options to every dynamic pipeline the scene creates.
//
// Parameters:
//   - options: the dynamic pipeline options
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithDynamicOptions(options ...dynamic.DynamicPipelineBuilderOption) SceneBuilderOption {
	return func(s *scene) {
		s.dynamicOptions = append(s.dynamicOptions, options...)
	}
}
