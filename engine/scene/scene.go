package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/dynamic"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph/graphfile"
	"github.com/Carmen-Shannon/oxy-graph/engine/world"
)

// Scene owns a live world and the dynamic pipeline that renders it. A preset describes the pipeline;
// Prepare compiles it for a device and surface and registers the preset's bindings, after which
// every frame rebuilds the bound buffer groups from the world before the passes execute.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is rendered.
	Active() bool

	// SetActive sets whether this scene is rendered.
	SetActive(active bool)

	// World returns the live component store the scene renders.
	//
	// Returns:
	//   - world.World: the world
	World() world.World

	// Pipeline returns the current dynamic pipeline, or nil before Prepare succeeds.
	//
	// Returns:
	//   - dynamic.DynamicPipeline: the pipeline
	Pipeline() dynamic.DynamicPipeline

	// Prepare compiles the preset for device and surface and registers its bindings, replacing and
	// releasing any previous pipeline. A binding whose first rebuild fails stays registered and is
	// retried every frame.
	//
	// Parameters:
	//   - device: the device that realizes GPU resources
	//   - surface: the presentation surface
	//
	// Returns:
	//   - error: an error if the preset or compilation fails; the previous pipeline is kept
	Prepare(device graph.Device, surface graph.SurfaceInfo) error

	// Resize resizes every camera in the world and recompiles for the new surface.
	//
	// Parameters:
	//   - surface: the resized surface
	//
	// Returns:
	//   - error: an error if recompilation fails
	Resize(surface graph.SurfaceInfo) error

	// Frame reloads the pipeline if a watched description file changed, then rebuilds every bound
	// buffer group from the world.
	//
	// Parameters:
	//   - ctx: the frame context
	//
	// Returns:
	//   - error: a *dynamic.FrameError listing failed bindings, or an error if the scene is not prepared
	Frame(ctx dynamic.Context) error

	// Execute records the pipeline's passes into frame.
	//
	// Parameters:
	//   - frame: the frame being recorded
	//
	// Returns:
	//   - graph.ExecuteStats: pass and draw counts
	//   - error: an error if a pass could not be recorded
	Execute(frame graph.Frame) (graph.ExecuteStats, error)

	// Release releases the pipeline and stops any file watcher.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	w      world.World
	preset Preset

	device  graph.Device
	surface graph.SurfaceInfo
	dp      dynamic.DynamicPipeline
	watcher *graphfile.Watcher

	compileOptions []graph.CompileOption
	dynamicOptions []dynamic.DynamicPipelineBuilderOption
}

var _ Scene = &scene{}

// ErrNotPrepared is returned by Frame and Execute before Prepare has succeeded.
var ErrNotPrepared = errors.New("scene: not prepared")

// NewScene creates an active scene rendering w with the deferred preset unless WithPreset says
// otherwise.
//
// Parameters:
//   - name: the name of the scene
//   - w: the live world to render, a new empty world when nil
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, w world.World, options ...SceneBuilderOption) Scene {
	if w == nil {
		w = world.NewWorld()
	}
	s := &scene{
		mu:     &sync.RWMutex{},
		name:   name,
		active: true,
		w:      w,
		preset: DeferredPipeline(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) World() world.World {
	return s.w
}

func (s *scene) Pipeline() dynamic.DynamicPipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dp
}

func (s *scene) Prepare(device graph.Device, surface graph.SurfaceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = device
	return s.compile(surface)
}

func (s *scene) Resize(surface graph.SurfaceInfo) error {
	for _, c := range world.QueryTyped[camera.Camera](s.w) {
		c.Resize(surface.Width, surface.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		s.surface = surface
		return nil
	}
	return s.compile(surface)
}

// compile builds and registers a new pipeline, swapping it in only when compilation succeeds.
// Callers hold s.mu.
func (s *scene) compile(surface graph.SurfaceInfo) error {
	layout, err := s.preset(surface)
	if err != nil {
		return err
	}
	compiled, err := graph.Finalize(s.device, layout.Set, surface, s.compileOptions...)
	if err != nil {
		return fmt.Errorf("scene %s: %w", s.name, err)
	}

	dp := dynamic.NewDynamicPipeline(compiled, s.dynamicOptions...)
	ctx := dynamic.Context{Surface: surface}
	for _, b := range layout.Bindings {
		err := dp.Register(b.ComponentType, b.BufferGroup, b.Rebuild, s.w, ctx)
		var rebuildErr *dynamic.RebuildError
		if err != nil && !errors.As(err, &rebuildErr) {
			dp.Release()
			return fmt.Errorf("scene %s: %w", s.name, err)
		}
	}

	watcher, err := s.watch(layout.Watch)
	if err != nil {
		graph.Logger().Warn("scene files will not be reloaded", "scene", s.name, "error", err)
	}

	if s.dp != nil {
		s.dp.Release()
	}
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.dp, s.watcher, s.surface = dp, watcher, surface

	graph.Logger().Info("scene prepared",
		"scene", s.name,
		"passes", len(compiled.Passes()),
		"bindings", len(layout.Bindings),
		"width", surface.Width,
		"height", surface.Height)
	return nil
}

func (s *scene) watch(paths []string) (*graphfile.Watcher, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	return graphfile.NewWatcher(paths...)
}

func (s *scene) Frame(ctx dynamic.Context) error {
	s.mu.Lock()
	if s.dp == nil {
		s.mu.Unlock()
		return ErrNotPrepared
	}
	if s.watcher != nil {
		if changed := s.watcher.Poll(); len(changed) > 0 {
			graph.Logger().Info("scene files changed, recompiling", "scene", s.name, "files", changed)
			if err := s.compile(s.surface); err != nil {
				graph.Logger().Warn("reload failed, keeping the current pipeline", "scene", s.name, "error", err)
			}
		}
	}
	dp := s.dp
	s.mu.Unlock()

	return dp.Frame(s.w, ctx)
}

func (s *scene) Execute(frame graph.Frame) (graph.ExecuteStats, error) {
	s.mu.RLock()
	dp := s.dp
	s.mu.RUnlock()
	if dp == nil {
		return graph.ExecuteStats{}, ErrNotPrepared
	}
	return dp.Compiled().Execute(frame)
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dp != nil {
		s.dp.Release()
		s.dp = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}
