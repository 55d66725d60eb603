package world

import (
	"reflect"
	"slices"
	"sync"
)

// Entity identifies one spawned set of components. Zero is never a live entity.
type Entity uint64

// typed is a component stored under an explicit type, so interface-typed components can be queried
// by their interface rather than their hidden implementation.
type typed struct {
	componentType reflect.Type
	value         any
}

// As stores v under type T when passed to Spawn or Insert. Use it for components whose static type is
// an interface, such as mesh.Mesh[mesh.MeshVertex].
//
// Parameters:
//   - v: the component value
//
// Returns:
//   - any: a value Spawn and Insert understand
func As[T any](v T) any {
	return typed{componentType: reflect.TypeFor[T](), value: v}
}

func unwrap(c any) (reflect.Type, any) {
	if t, ok := c.(typed); ok {
		return t.componentType, t.value
	}
	return reflect.TypeOf(c), c
}

// column holds every instance of one component type in spawn order.
type column struct {
	entities []Entity
	values   []any
}

// world is the implementation of World.
type world struct {
	mu      *sync.RWMutex
	next    Entity
	columns map[reflect.Type]*column
	// owned records the component types of each live entity.
	owned map[Entity][]reflect.Type
}

// World is a minimal component store. Components are grouped by type and returned in the order their
// entities were spawned. It satisfies dynamic.Store.
type World interface {
	// Spawn creates an entity holding components. Each component is stored under its dynamic type
	// unless wrapped with As. An entity holds at most one component per type; later ones win.
	//
	// Parameters:
	//   - components: the components
	//
	// Returns:
	//   - Entity: the new entity
	Spawn(components ...any) Entity

	// Insert adds or replaces components on a live entity.
	//
	// Parameters:
	//   - e: the entity
	//   - components: the components
	//
	// Returns:
	//   - bool: false if e is not alive
	Insert(e Entity, components ...any) bool

	// Despawn removes an entity and all its components.
	//
	// Parameters:
	//   - e: the entity
	//
	// Returns:
	//   - bool: false if e was not alive
	Despawn(e Entity) bool

	// Alive reports whether e has been spawned and not despawned.
	Alive(e Entity) bool

	// Len returns the number of live entities.
	Len() int

	// Query returns every instance of componentType in spawn order.
	//
	// Parameters:
	//   - componentType: the component type
	//
	// Returns:
	//   - []any: the instances, possibly none
	Query(componentType reflect.Type) []any

	// Entities returns the entities holding componentType in spawn order.
	//
	// Parameters:
	//   - componentType: the component type
	//
	// Returns:
	//   - []Entity: the entities
	Entities(componentType reflect.Type) []Entity
}

var _ World = &world{}

// NewWorld creates an empty World.
//
// Returns:
//   - World: the empty world
func NewWorld() World {
	return &world{
		mu:      &sync.RWMutex{},
		columns: make(map[reflect.Type]*column),
		owned:   make(map[Entity][]reflect.Type),
	}
}

// QueryTyped returns every instance of T in spawn order.
//
// Parameters:
//   - w: the world
//
// Returns:
//   - []T: the instances
func QueryTyped[T any](w World) []T {
	instances := w.Query(reflect.TypeFor[T]())
	out := make([]T, 0, len(instances))
	for _, v := range instances {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func (w *world) Spawn(components ...any) Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	e := w.next
	w.owned[e] = nil
	w.insert(e, components)
	return e
}

func (w *world) Insert(e Entity, components ...any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.owned[e]; !ok {
		return false
	}
	w.insert(e, components)
	return true
}

func (w *world) insert(e Entity, components []any) {
	for _, c := range components {
		t, v := unwrap(c)
		if t == nil {
			continue
		}
		col, ok := w.columns[t]
		if !ok {
			col = &column{}
			w.columns[t] = col
		}
		if i := slices.Index(col.entities, e); i >= 0 {
			col.values[i] = v
			continue
		}
		// Keep spawn order: entities are increasing, so insert at the sorted position.
		i, _ := slices.BinarySearch(col.entities, e)
		col.entities = slices.Insert(col.entities, i, e)
		col.values = slices.Insert(col.values, i, v)
		w.owned[e] = append(w.owned[e], t)
	}
}

func (w *world) Despawn(e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	types, ok := w.owned[e]
	if !ok {
		return false
	}
	for _, t := range types {
		col := w.columns[t]
		if i := slices.Index(col.entities, e); i >= 0 {
			col.entities = slices.Delete(col.entities, i, i+1)
			col.values = slices.Delete(col.values, i, i+1)
		}
	}
	delete(w.owned, e)
	return true
}

func (w *world) Alive(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.owned[e]
	return ok
}

func (w *world) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.owned)
}

func (w *world) Query(componentType reflect.Type) []any {
	w.mu.RLock()
	defer w.mu.RUnlock()

	col, ok := w.columns[componentType]
	if !ok {
		return nil
	}
	return slices.Clone(col.values)
}

func (w *world) Entities(componentType reflect.Type) []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()

	col, ok := w.columns[componentType]
	if !ok {
		return nil
	}
	return slices.Clone(col.entities)
}
