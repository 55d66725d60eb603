package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/profiler"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/dynamic"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/scene"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
)

// ErrNoWindow is returned by Run when the engine has neither a window nor a renderer.
var ErrNoWindow = errors.New("engine: no window to render into")

type engine struct {
	mu *sync.RWMutex

	tickRateChannel chan time.Duration
	resizeChannel   chan [2]int

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window          window.Window
	renderer        renderer.Renderer
	rendererOptions []renderer.RendererBuilderOption

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	// engineTickRate is guarded by mu; a running tick goroutine learns of changes on tickRateChannel.
	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenes map[int]scene.Scene
	frame  uint64

	renderFrameLimit atomic.Int64 // nanoseconds, 0 = uncapped
}

// Engine drives a window, a renderer and the scenes rendered into it. A fixed-rate tick goroutine
// runs game logic while the render goroutine rebuilds every active scene's dynamic pipeline and
// executes its passes once per frame.
type Engine interface {
	// Window returns the window the engine presents into, or nil.
	Window() window.Window

	// Renderer returns the renderer, or nil before Run creates it.
	Renderer() renderer.Renderer

	// EnableProfiler enables periodic frame statistics in the log.
	EnableProfiler()

	// DisableProfiler disables profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick. Spawn, despawn and mutate
	// world components here; the next render frame picks the changes up.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit caps the render loop. Pass 0 to uncap it (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key, replacing and releasing any scene already
	// there. Once a renderer exists the scene is prepared immediately.
	//
	// Parameters:
	//   - key: the z-index; lower keys execute first
	//   - s: the scene
	//
	// Returns:
	//   - error: an error if the scene could not be prepared; it is not registered then
	AddScene(key int, s scene.Scene) error

	// RemoveScene removes and releases the scene at the given key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene returns the scene at key, or nil.
	//
	// Parameters:
	//   - key: the z-index of the scene
	//
	// Returns:
	//   - scene.Scene: the scene, or nil if none is registered
	Scene(key int) scene.Scene

	// Scenes returns a copy of the registered scenes keyed by z-index.
	Scenes() map[int]scene.Scene

	// Run creates the renderer if none was supplied, prepares every scene and blocks in the window
	// message loop until the window closes or Quit is called. Scenes and the renderer are released
	// before it returns.
	//
	// Returns:
	//   - error: an error if there is nothing to render into or a scene could not be prepared
	Run() error

	// Quit signals every engine goroutine to stop. Safe to call multiple times.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates an engine. The window and renderer are supplied through options; without a
// renderer, Run creates a wgpu renderer for the window.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:              &sync.RWMutex{},
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan [2]int, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(time.Second)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.renderer
}

func (e *engine) Run() error {
	if err := e.prepare(); err != nil {
		return err
	}
	if e.window == nil {
		return ErrNoWindow
	}
	e.window.SetResizeCallback(e.requestResize)

	e.running.Store(true)
	e.handle()
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()
	e.shutdown()
	_ = e.window.Close()
	return nil
}

// prepare creates the renderer when needed and prepares every registered scene.
func (e *engine) prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderer == nil {
		if e.window == nil {
			return ErrNoWindow
		}
		e.renderer = renderer.NewRenderer(renderer.BackendTypeWGPU, e.window, e.rendererOptions...)
	}
	surface := e.renderer.SurfaceInfo()
	for _, key := range e.sortedKeys() {
		if err := e.scenes[key].Prepare(e.renderer, surface); err != nil {
			return fmt.Errorf("engine: prepare scene %d: %w", key, err)
		}
	}
	return nil
}

func (e *engine) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.scenes {
		s.Release()
	}
	if e.renderer != nil {
		e.renderer.Destroy()
		e.renderer = nil
	}
}

func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil {
		e.window.RequestClose()
	}
}

func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// requestResize hands a framebuffer resize to the render goroutine, replacing any pending one.
func (e *engine) requestResize(width, height int) {
	for {
		select {
		case e.resizeChannel <- [2]int{width, height}:
			return
		default:
			select {
			case <-e.resizeChannel:
			default:
			}
		}
	}
}

func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine fires the tick callback at the configured rate until quit.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	e.mu.RLock()
	ticker := time.NewTicker(e.engineTickRate)
	e.mu.RUnlock()
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

// handleRender renders frames until quit. A panic is logged and stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			graph.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.Quit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := now.Sub(lastRender)
		lastRender = now

		stats := e.renderFrame(dt)
		if e.renderCallback != nil {
			e.renderCallback(float32(dt.Seconds()))
		}
		if e.profilingEnabled.Load() {
			e.profiler.Tick(stats)
		}

		if limit := time.Duration(e.renderFrameLimit.Load()); limit > 0 {
			if remaining := limit - time.Since(lastRender); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// renderFrame applies a pending resize, rebuilds every active scene from its world and executes
// their passes into one presented frame. Binding failures are logged and the frame still renders.
func (e *engine) renderFrame(dt time.Duration) graph.ExecuteStats {
	e.applyResize()

	e.mu.RLock()
	defer e.mu.RUnlock()

	var total graph.ExecuteStats
	surface := e.renderer.SurfaceInfo()
	if surface.Width == 0 || surface.Height == 0 {
		return total
	}
	active := e.activeScenes()
	if len(active) == 0 {
		return total
	}

	ctx := dynamic.Context{Surface: surface, Frame: e.frame, Delta: dt}
	e.frame++
	for _, s := range active {
		if err := s.Frame(ctx); err != nil {
			graph.Logger().Warn("scene rebuild failed", "scene", s.Name(), "error", err)
		}
	}

	frame, err := e.renderer.BeginFrame()
	if err != nil {
		graph.Logger().Warn("frame skipped", "error", err)
		return total
	}
	for _, s := range active {
		stats, err := s.Execute(frame)
		if err != nil {
			graph.Logger().Error("scene execute failed", "scene", s.Name(), "error", err)
		}
		total.Passes += stats.Passes
		total.Skipped += stats.Skipped
		total.Draws += stats.Draws
		total.SkippedPasses = append(total.SkippedPasses, stats.SkippedPasses...)
	}
	if err := e.renderer.EndFrame(); err != nil {
		graph.Logger().Error("frame submit failed", "error", err)
	}
	e.renderer.Present()
	return total
}

// applyResize reconfigures the surface and recompiles every scene for a pending resize. A zero size
// (minimized window) leaves the surface alone until the window is restored.
func (e *engine) applyResize() {
	var size [2]int
	select {
	case size = <-e.resizeChannel:
	default:
		return
	}
	if size[0] <= 0 || size[1] <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderer.Resize(size[0], size[1])
	surface := e.renderer.SurfaceInfo()
	for _, key := range e.sortedKeys() {
		if err := e.scenes[key].Resize(surface); err != nil {
			graph.Logger().Error("scene resize failed", "scene", e.scenes[key].Name(), "error", err)
		}
	}
}

// sortedKeys returns the scene keys in ascending order. Callers hold e.mu.
func (e *engine) sortedKeys() []int {
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// activeScenes returns the active scenes in key order. Callers hold e.mu.
func (e *engine) activeScenes() []scene.Scene {
	var active []scene.Scene
	for _, k := range e.sortedKeys() {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	return active
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	e.mu.Lock()
	e.engineTickRate = newRate
	e.mu.Unlock()
	if !e.running.Load() {
		return
	}
	for {
		select {
		case e.tickRateChannel <- newRate:
			return
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
		}
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit.Store(0)
		return
	}
	e.renderFrameLimit.Store(int64(time.Second / time.Duration(fps)))
}

func (e *engine) AddScene(key int, s scene.Scene) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderer != nil {
		if err := s.Prepare(e.renderer, e.renderer.SurfaceInfo()); err != nil {
			return fmt.Errorf("engine: prepare scene %d: %w", key, err)
		}
	}
	if old, ok := e.scenes[key]; ok && old != s {
		old.Release()
	}
	e.scenes[key] = s
	return nil
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.scenes[key]; ok {
		s.Release()
		delete(e.scenes, key)
	}
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
