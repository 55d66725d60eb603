package dynamic

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiled records what the dynamic pipeline uploads.
type fakeCompiled struct {
	groups    map[graph.Label][]graph.MeshBytes
	stale     map[graph.Label]bool
	writes    []graph.BindGroupWrite
	textures  []graph.TextureWrite
	replaces    int
	failWrite   bool
	failReplace bool
	released    bool
}

func newFakeCompiled(labels ...graph.Label) *fakeCompiled {
	f := &fakeCompiled{groups: make(map[graph.Label][]graph.MeshBytes), stale: make(map[graph.Label]bool)}
	for _, l := range labels {
		f.groups[l] = nil
	}
	return f
}

var _ graph.CompiledPipeline = &fakeCompiled{}

func (f *fakeCompiled) Passes() []graph.Pass { return nil }

func (f *fakeCompiled) BufferGroup(label graph.Label) (graph.BufferGroupInfo, bool) {
	meshes, ok := f.groups[label]
	if !ok {
		return graph.BufferGroupInfo{}, false
	}
	info := graph.BufferGroupInfo{Label: label, Objects: len(meshes), Stale: f.stale[label]}
	for _, m := range meshes {
		info.Vertices += m.VertexCount
	}
	return info, true
}

func (f *fakeCompiled) ReplaceBufferGroup(label graph.Label, objects []graph.MeshBytes) error {
	if _, ok := f.groups[label]; !ok {
		return graph.ErrUnknownLabel
	}
	if f.failReplace {
		f.stale[label] = true
		return &graph.GraphError{Kind: graph.ErrDeviceResource, Namespace: graph.NamespaceBufferGroups, Label: label}
	}
	f.replaces++
	f.groups[label] = objects
	f.stale[label] = false
	return nil
}

func (f *fakeCompiled) InvalidateBufferGroup(label graph.Label) error {
	f.stale[label] = true
	return nil
}

func (f *fakeCompiled) RestoreBufferGroup(label graph.Label) error {
	f.stale[label] = false
	return nil
}

func (f *fakeCompiled) InvalidateBindGroup(graph.Label) error { return nil }

func (f *fakeCompiled) WriteBindGroup(label graph.Label, offset uint64, data []byte) error {
	if f.failWrite {
		return graph.ErrDeviceResource
	}
	f.writes = append(f.writes, graph.BindGroupWrite{Label: label, Offset: offset, Data: data})
	return nil
}

func (f *fakeCompiled) WriteTexture(label graph.Label, staging common.TextureStagingData) error {
	f.textures = append(f.textures, graph.TextureWrite{BindGroup: label, Staging: staging})
	return nil
}

func (f *fakeCompiled) TextureView(graph.Label) (*wgpu.TextureView, bool) { return nil, false }

func (f *fakeCompiled) BindGroupProvider(graph.Label) (bind_group_provider.BindGroupProvider, bool) {
	return nil, false
}

func (f *fakeCompiled) BindGroupTexture(graph.Label) (graph.Label, bool) { return "", false }

func (f *fakeCompiled) Execute(graph.Frame) (graph.ExecuteStats, error) { return graph.ExecuteStats{}, nil }

func (f *fakeCompiled) Release() { f.released = true }

type mapStore map[reflect.Type][]any

func (s mapStore) Query(t reflect.Type) []any { return s[t] }

type meshInstance struct{ vertices int }

type cameraInstance struct{ viewProj byte }

func meshRebuild(instances []meshInstance, _ Context) (Rebuild, error) {
	out := make([]graph.MeshBytes, 0, len(instances))
	for _, m := range instances {
		out = append(out, graph.MeshBytes{Vertices: make([]byte, m.vertices*36), VertexCount: m.vertices})
	}
	return Rebuild{Meshes: out}, nil
}

func storeWith(meshes int) mapStore {
	instances := make([]any, meshes)
	for i := range instances {
		instances[i] = meshInstance{vertices: 24}
	}
	return mapStore{reflect.TypeFor[meshInstance](): instances}
}

func TestRegisterRunsInitialRebuild(t *testing.T) {
	for _, n := range []int{0, 1, 1000} {
		compiled := newFakeCompiled("meshes")
		d := NewDynamicPipeline(compiled)

		require.NoError(t, RegisterTyped(d, "meshes", meshRebuild, storeWith(n), Context{}))
		info, ok := compiled.BufferGroup("meshes")
		require.True(t, ok)
		assert.Equal(t, n*24, info.Vertices, "n=%d", n)
		assert.Equal(t, n, info.Objects)
		assert.Equal(t, 1, compiled.replaces)
	}
}

func TestRegisterUnknownLabel(t *testing.T) {
	d := NewDynamicPipeline(newFakeCompiled("meshes"))
	err := RegisterTyped(d, "missing", meshRebuild, storeWith(1), Context{})
	assert.ErrorIs(t, err, graph.ErrUnknownLabel)
	assert.Empty(t, d.Bindings())
}

func TestReRegisterReplacesInPlace(t *testing.T) {
	compiled := newFakeCompiled("meshes", "screen-quad")
	d := NewDynamicPipeline(compiled)
	store := storeWith(2)

	require.NoError(t, RegisterTyped(d, "meshes", meshRebuild, store, Context{}))
	require.NoError(t, RegisterTyped(d, "screen-quad", func([]cameraInstance, Context) (Rebuild, error) {
		return Rebuild{}, nil
	}, store, Context{}))

	calls := 0
	require.NoError(t, RegisterTyped(d, "meshes", func(instances []meshInstance, ctx Context) (Rebuild, error) {
		calls++
		return meshRebuild(instances, ctx)
	}, store, Context{}))

	bindings := d.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, reflect.TypeFor[meshInstance](), bindings[0].ComponentType)
	assert.Equal(t, reflect.TypeFor[cameraInstance](), bindings[1].ComponentType)

	require.NoError(t, d.Frame(store, Context{Frame: 1}))
	assert.Equal(t, 2, calls, "only the replacement runs: once on register, once per frame")
}

func TestNilMeshesLeavesGroupUntouched(t *testing.T) {
	compiled := newFakeCompiled("meshes")
	d := NewDynamicPipeline(compiled)
	store := storeWith(3)
	store[reflect.TypeFor[cameraInstance]()] = []any{cameraInstance{viewProj: 9}}

	require.NoError(t, RegisterTyped(d, "meshes", meshRebuild, store, Context{}))
	require.NoError(t, RegisterTyped(d, "meshes", func(cams []cameraInstance, _ Context) (Rebuild, error) {
		return Rebuild{Writes: []graph.BindGroupWrite{{Label: "camera", Data: []byte{cams[0].viewProj}}}}, nil
	}, store, Context{}))

	info, _ := compiled.BufferGroup("meshes")
	assert.Equal(t, 3, info.Objects)
	assert.Equal(t, 1, compiled.replaces)
	require.Len(t, compiled.writes, 1)
	assert.Equal(t, []byte{9}, compiled.writes[0].Data)
}

func TestFrameFailureInvalidatesAndContinues(t *testing.T) {
	compiled := newFakeCompiled("meshes", "screen-quad")
	d := NewDynamicPipeline(compiled)
	store := storeWith(1)
	store[reflect.TypeFor[cameraInstance]()] = []any{cameraInstance{}}

	boom := errors.New("boom")
	fail := false
	require.NoError(t, RegisterTyped(d, "screen-quad", func([]cameraInstance, Context) (Rebuild, error) {
		if fail {
			return Rebuild{}, boom
		}
		return Rebuild{Meshes: []graph.MeshBytes{}}, nil
	}, store, Context{}))
	require.NoError(t, RegisterTyped(d, "meshes", meshRebuild, store, Context{}))

	fail = true
	err := d.Frame(store, Context{Frame: 7})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRebuild)
	assert.ErrorIs(t, err, boom)

	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Equal(t, uint64(7), frameErr.Frame)
	require.Len(t, frameErr.Failures, 1)
	assert.Equal(t, graph.Label("screen-quad"), frameErr.Failures[0].Label)

	assert.True(t, compiled.stale["screen-quad"])
	assert.False(t, compiled.stale["meshes"], "the remaining binding still ran")
	assert.Equal(t, 3, compiled.replaces)

	fail = false
	require.NoError(t, d.Frame(store, Context{Frame: 8}))
	assert.False(t, compiled.stale["screen-quad"])
}

func TestUniformFailureRestoresGroupOnRecovery(t *testing.T) {
	compiled := newFakeCompiled("screen-quad")
	d := NewDynamicPipeline(compiled)
	store := mapStore{reflect.TypeFor[cameraInstance](): []any{cameraInstance{viewProj: 1}}}

	var retries []bool
	require.NoError(t, RegisterTyped(d, "screen-quad", func(cams []cameraInstance, ctx Context) (Rebuild, error) {
		retries = append(retries, ctx.Retry)
		return Rebuild{Writes: []graph.BindGroupWrite{{Label: "light", Data: []byte{cams[0].viewProj}}}}, nil
	}, store, Context{}))

	compiled.failWrite = true
	require.Error(t, d.Frame(store, Context{Frame: 1}))
	assert.True(t, compiled.stale["screen-quad"])

	require.Error(t, d.Frame(store, Context{Frame: 2}))
	assert.True(t, compiled.stale["screen-quad"], "still failing")

	compiled.failWrite = false
	require.NoError(t, d.Frame(store, Context{Frame: 3}))
	assert.False(t, compiled.stale["screen-quad"], "a binding that never supplies meshes still revives its group")
	assert.Equal(t, []bool{false, false, true, true}, retries)

	require.NoError(t, d.Frame(store, Context{Frame: 4}))
	assert.False(t, retries[4])
	assert.Zero(t, compiled.replaces)
}

func TestGroupStaysStaleWhileAnotherBindingFails(t *testing.T) {
	compiled := newFakeCompiled("meshes")
	d := NewDynamicPipeline(compiled)
	store := storeWith(1)
	store[reflect.TypeFor[cameraInstance]()] = []any{cameraInstance{}}

	boom := errors.New("boom")
	fail := true
	require.NoError(t, RegisterTyped(d, "meshes", meshRebuild, store, Context{}))
	require.Error(t, RegisterTyped(d, "meshes", func([]cameraInstance, Context) (Rebuild, error) {
		if fail {
			return Rebuild{}, boom
		}
		return Rebuild{}, nil
	}, store, Context{}))

	require.Error(t, d.Frame(store, Context{Frame: 1}))
	assert.True(t, compiled.stale["meshes"], "the later failure wins over the earlier replacement")

	fail = false
	require.NoError(t, d.Frame(store, Context{Frame: 2}))
	assert.False(t, compiled.stale["meshes"])
}

func TestPartialReplacementWaitsForNextReplacement(t *testing.T) {
	compiled := newFakeCompiled("meshes")
	d := NewDynamicPipeline(compiled)
	store := storeWith(2)

	withMeshes := true
	require.NoError(t, RegisterTyped(d, "meshes", func(instances []meshInstance, ctx Context) (Rebuild, error) {
		if !withMeshes {
			return Rebuild{}, nil
		}
		return meshRebuild(instances, ctx)
	}, store, Context{}))

	compiled.failReplace = true
	err := d.Frame(store, Context{Frame: 1})
	assert.ErrorIs(t, err, graph.ErrDeviceResource)
	assert.True(t, compiled.stale["meshes"])

	compiled.failReplace = false
	withMeshes = false
	require.NoError(t, d.Frame(store, Context{Frame: 2}))
	assert.True(t, compiled.stale["meshes"], "partly overwritten objects are not drawn")

	withMeshes = true
	require.NoError(t, d.Frame(store, Context{Frame: 3}))
	assert.False(t, compiled.stale["meshes"])
}

func TestHaltOnError(t *testing.T) {
	compiled := newFakeCompiled("meshes")
	compiled.failWrite = true
	d := NewDynamicPipeline(compiled, WithHaltOnError(true))
	store := storeWith(1)
	store[reflect.TypeFor[cameraInstance]()] = []any{cameraInstance{}}

	err := RegisterTyped(d, "meshes", func([]cameraInstance, Context) (Rebuild, error) {
		return Rebuild{Writes: []graph.BindGroupWrite{{Label: "camera"}}}, nil
	}, store, Context{})
	assert.ErrorIs(t, err, graph.ErrDeviceResource)
	require.Len(t, d.Bindings(), 1, "a failed initial rebuild stays registered")

	require.NoError(t, RegisterTyped(d, "meshes", meshRebuild, store, Context{}))
	compiled.replaces = 0

	err = d.Frame(store, Context{})
	var frameErr *FrameError
	require.ErrorAs(t, err, &frameErr)
	assert.Len(t, frameErr.Failures, 1)
	assert.Zero(t, compiled.replaces, "the frame stopped at the first failure")
}

func TestRegisterTypedRejectsForeignInstances(t *testing.T) {
	compiled := newFakeCompiled("meshes")
	d := NewDynamicPipeline(compiled)
	store := mapStore{reflect.TypeFor[meshInstance](): []any{"not a mesh"}}

	err := RegisterTyped(d, "meshes", meshRebuild, store, Context{})
	assert.ErrorIs(t, err, ErrRebuild)
	assert.True(t, compiled.stale["meshes"])
}

func TestReleaseReleasesCompiled(t *testing.T) {
	compiled := newFakeCompiled()
	d := NewDynamicPipeline(compiled)
	assert.Same(t, compiled, d.Compiled())
	d.Release()
	assert.True(t, compiled.released)
}
