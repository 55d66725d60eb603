package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moduleRecorder struct {
	created  []string
	released []*wgpu.ShaderModule
	fail     bool
}

func (r *moduleRecorder) create(desc *wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error) {
	if r.fail {
		return nil, errors.New("invalid module")
	}
	r.created = append(r.created, desc.WGSLDescriptor.Code)
	return &wgpu.ShaderModule{}, nil
}

func (r *moduleRecorder) release(m *wgpu.ShaderModule) {
	r.released = append(r.released, m)
}

func TestShaderModuleCacheSharesByKey(t *testing.T) {
	vs, err := shader.NewShaderFromSource("mesh.wgsl#vertex", shader.ShaderTypeVertex, testVertex)
	require.NoError(t, err)
	again, err := shader.NewShaderFromSource("mesh.wgsl#vertex", shader.ShaderTypeVertex, testVertex)
	require.NoError(t, err)

	rec := &moduleRecorder{}
	cache := make(shaderModuleCache)
	first, err := cache.get(vs, rec.create, rec.release)
	require.NoError(t, err)
	second, err := cache.get(again, rec.create, rec.release)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, rec.created, 1)

	cache.releaseAll(rec.release)
	assert.Equal(t, []*wgpu.ShaderModule{first}, rec.released)
	assert.Empty(t, cache)
}

func TestShaderModuleCacheRecompilesChangedSource(t *testing.T) {
	vs, err := shader.NewShaderFromSource("mesh.wgsl#vertex", shader.ShaderTypeVertex, testVertex)
	require.NoError(t, err)
	reloaded, err := shader.NewShaderFromSource("mesh.wgsl#vertex", shader.ShaderTypeVertex, testVertex+"\nfn unused() {}\n")
	require.NoError(t, err)

	rec := &moduleRecorder{}
	cache := make(shaderModuleCache)
	old, err := cache.get(vs, rec.create, rec.release)
	require.NoError(t, err)

	rec.fail = true
	_, err = cache.get(reloaded, rec.create, rec.release)
	assert.ErrorContains(t, err, `shader "mesh.wgsl#vertex"`)
	assert.Empty(t, rec.released, "a failed compile keeps the working module")

	rec.fail = false
	fresh, err := cache.get(reloaded, rec.create, rec.release)
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, []*wgpu.ShaderModule{old}, rec.released)
	require.Len(t, rec.created, 2)
	assert.Contains(t, rec.created[1], "fn unused")
}
