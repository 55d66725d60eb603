package dynamic

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
)

// Binding associates a component type with the buffer group its rebuild function feeds.
type Binding struct {
	ComponentType reflect.Type
	Label         graph.Label
}

// DynamicPipeline wraps a compiled pipeline with one rebuild function per live component type. Each
// frame it re-derives buffer group and bind group contents from the live store before the passes run.
// The compiled pass list is never changed.
type DynamicPipeline interface {
	// Compiled returns the wrapped pipeline.
	//
	// Returns:
	//   - graph.CompiledPipeline: the compiled pipeline
	Compiled() graph.CompiledPipeline

	// Register binds componentType to the buffer group label and runs the rebuild once against store
	// so the group holds data before the first frame. Registering a type again replaces its rebuild
	// function and label but keeps its place in the frame order.
	//
	// Parameters:
	//   - componentType: the live component type
	//   - label: the buffer group the rebuild feeds
	//   - rebuild: the rebuild function
	//   - store: the live-data store for the initial rebuild
	//   - ctx: the context for the initial rebuild
	//
	// Returns:
	//   - error: graph.ErrUnknownLabel for an unknown buffer group, or a *RebuildError if the initial
	//     rebuild failed; the binding stays registered in that case and is retried every frame
	Register(componentType reflect.Type, label graph.Label, rebuild RebuildFunc, store Store, ctx Context) error

	// Bindings returns the registered bindings in frame order.
	//
	// Returns:
	//   - []Binding: the bindings
	Bindings() []Binding

	// Frame runs every binding in registration order. A failing binding invalidates its buffer group
	// so the passes drawing it are skipped. The group is restored once none of its bindings fail, or
	// after the next successful replacement if the failed upload had already overwritten some of its
	// objects. A binding that failed is called with Context.Retry set.
	//
	// Parameters:
	//   - store: the live-data store
	//   - ctx: the frame context
	//
	// Returns:
	//   - error: a *FrameError listing the failed bindings, or nil
	Frame(store Store, ctx Context) error

	// Release releases the wrapped pipeline.
	Release()
}

type binding struct {
	Binding
	rebuild RebuildFunc
}

// failure is the outcome of a binding's last failed run.
type failure struct {
	label graph.Label
	// partial reports that the buffer group's objects were partly overwritten.
	partial bool
}

// dynamicPipeline is the implementation of DynamicPipeline.
type dynamicPipeline struct {
	mu          *sync.Mutex
	compiled    graph.CompiledPipeline
	bindings    []binding
	index       map[reflect.Type]int
	haltOnError bool

	failed map[reflect.Type]failure
	// invalidated holds the buffer groups marked stale here, true when only a replacement revives them.
	invalidated map[graph.Label]bool
}

var _ DynamicPipeline = &dynamicPipeline{}

// NewDynamicPipeline wraps compiled for per-frame rebinding.
//
// Parameters:
//   - compiled: the compiled pipeline
//   - options: optional DynamicPipelineBuilderOption values
//
// Returns:
//   - DynamicPipeline: the wrapper with no bindings
func NewDynamicPipeline(compiled graph.CompiledPipeline, options ...DynamicPipelineBuilderOption) DynamicPipeline {
	d := &dynamicPipeline{
		mu:          &sync.Mutex{},
		compiled:    compiled,
		index:       make(map[reflect.Type]int),
		failed:      make(map[reflect.Type]failure),
		invalidated: make(map[graph.Label]bool),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// RegisterTyped registers a rebuild function over a concrete component type T.
//
// Parameters:
//   - d: the dynamic pipeline
//   - label: the buffer group the rebuild feeds
//   - rebuild: the typed rebuild function
//   - store: the live-data store for the initial rebuild
//   - ctx: the context for the initial rebuild
//
// Returns:
//   - error: see DynamicPipeline.Register
func RegisterTyped[T any](d DynamicPipeline, label graph.Label, rebuild func([]T, Context) (Rebuild, error), store Store, ctx Context) error {
	return d.Register(reflect.TypeFor[T](), label, Typed(rebuild), store, ctx)
}

// Typed adapts a rebuild function over []T to a RebuildFunc. An instance that is not a T fails the
// rebuild.
//
// Parameters:
//   - rebuild: the typed rebuild function
//
// Returns:
//   - RebuildFunc: the untyped rebuild function
func Typed[T any](rebuild func([]T, Context) (Rebuild, error)) RebuildFunc {
	componentType := reflect.TypeFor[T]()
	return func(instances []any, ctx Context) (Rebuild, error) {
		typed := make([]T, 0, len(instances))
		for i, v := range instances {
			t, ok := v.(T)
			if !ok {
				return Rebuild{}, fmt.Errorf("instance %d is %T, want %v", i, v, componentType)
			}
			typed = append(typed, t)
		}
		return rebuild(typed, ctx)
	}
}

func (d *dynamicPipeline) Compiled() graph.CompiledPipeline {
	return d.compiled
}

func (d *dynamicPipeline) Register(componentType reflect.Type, label graph.Label, rebuild RebuildFunc, store Store, ctx Context) error {
	if componentType == nil || rebuild == nil {
		return errors.New("register needs a component type and a rebuild function")
	}
	if _, ok := d.compiled.BufferGroup(label); !ok {
		return &graph.GraphError{Kind: graph.ErrUnknownLabel, Namespace: graph.NamespaceBufferGroups, Label: label}
	}

	d.mu.Lock()
	b := binding{Binding: Binding{ComponentType: componentType, Label: label}, rebuild: rebuild}
	if i, ok := d.index[componentType]; ok {
		d.bindings[i] = b
		graph.Logger().Debug("binding replaced", "component", componentType.String(), "buffer_group", label)
	} else {
		d.index[componentType] = len(d.bindings)
		d.bindings = append(d.bindings, b)
	}
	d.mu.Unlock()

	err := d.run(b, store, ctx)
	if err != nil {
		d.settle([]*RebuildError{err})
		return err
	}
	d.settle(nil)
	return nil
}

func (d *dynamicPipeline) Bindings() []Binding {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Binding, len(d.bindings))
	for i, b := range d.bindings {
		out[i] = b.Binding
	}
	return out
}

func (d *dynamicPipeline) Frame(store Store, ctx Context) error {
	d.mu.Lock()
	bindings := make([]binding, len(d.bindings))
	copy(bindings, d.bindings)
	d.mu.Unlock()

	var failures []*RebuildError
	for _, b := range bindings {
		if err := d.run(b, store, ctx); err != nil {
			failures = append(failures, err)
			if d.haltOnError {
				break
			}
		}
	}
	d.settle(failures)
	if len(failures) > 0 {
		return &FrameError{Frame: ctx.Frame, Failures: failures}
	}
	return nil
}

// run rebuilds one binding and uploads the result, recording the outcome for settle.
func (d *dynamicPipeline) run(b binding, store Store, ctx Context) *RebuildError {
	d.mu.Lock()
	_, ctx.Retry = d.failed[b.ComponentType]
	d.mu.Unlock()

	instances := store.Query(b.ComponentType)
	r, err := b.rebuild(instances, ctx)
	partial := false
	if err == nil {
		partial, err = d.apply(b.Label, r)
	}

	d.mu.Lock()
	if err != nil {
		d.failed[b.ComponentType] = failure{label: b.Label, partial: partial}
	} else {
		delete(d.failed, b.ComponentType)
	}
	d.mu.Unlock()

	if err != nil {
		graph.Logger().Warn("rebuild failed, skipping its passes",
			"component", b.ComponentType.String(), "buffer_group", b.Label, "frame", ctx.Frame, "retry", ctx.Retry, "error", err)
		return &RebuildError{ComponentType: b.ComponentType, Label: b.Label, Err: err}
	}
	graph.Logger().Debug("binding rebuilt",
		"component", b.ComponentType.String(),
		"buffer_group", b.Label,
		"instances", len(instances),
		"meshes", len(r.Meshes),
		"writes", len(r.Writes)+len(r.Textures))
	return nil
}

// settle invalidates the buffer group of every failing binding and restores the groups it
// invalidated earlier whose bindings all succeed again. A partly overwritten group is left to the
// next successful replacement.
func (d *dynamicPipeline) settle(failures []*RebuildError) {
	d.mu.Lock()
	failing := make(map[graph.Label]bool)
	for _, f := range d.failed {
		failing[f.label] = true
		d.invalidated[f.label] = d.invalidated[f.label] || f.partial
	}
	var restore []graph.Label
	for label, partial := range d.invalidated {
		if failing[label] {
			continue
		}
		delete(d.invalidated, label)
		if !partial {
			restore = append(restore, label)
		}
	}
	d.mu.Unlock()

	for label := range failing {
		err := d.compiled.InvalidateBufferGroup(label)
		if err == nil {
			continue
		}
		attached := false
		for _, f := range failures {
			if f.Label == label {
				f.Err = errors.Join(f.Err, err)
				attached = true
			}
		}
		if !attached {
			graph.Logger().Warn("failed to invalidate buffer group", "buffer_group", label, "error", err)
		}
	}
	for _, label := range restore {
		if err := d.compiled.RestoreBufferGroup(label); err != nil {
			graph.Logger().Warn("failed to restore buffer group", "buffer_group", label, "error", err)
			continue
		}
		graph.Logger().Debug("buffer group restored", "buffer_group", label)
	}
}

// apply uploads r. partial reports a buffer group replacement that failed after it began writing
// objects.
func (d *dynamicPipeline) apply(label graph.Label, r Rebuild) (partial bool, err error) {
	if r.Meshes != nil {
		if err := d.compiled.ReplaceBufferGroup(label, r.Meshes); err != nil {
			return errors.Is(err, graph.ErrDeviceResource), err
		}
	}
	for _, w := range r.Writes {
		if err := d.compiled.WriteBindGroup(w.Label, w.Offset, w.Data); err != nil {
			return false, err
		}
	}
	for _, w := range r.Textures {
		if err := d.compiled.WriteTexture(w.BindGroup, w.Staging); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (d *dynamicPipeline) Release() {
	d.compiled.Release()
}
