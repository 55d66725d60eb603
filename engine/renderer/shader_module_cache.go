package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type cachedShaderModule struct {
	module *wgpu.ShaderModule
	source string
}

// shaderModuleCache holds one compiled module per shader key. Passes sharing a shader share its
// module; a key whose source changed, as after a shader file reload, is compiled again and the old
// module released.
type shaderModuleCache map[string]cachedShaderModule

// get returns the module for s, compiling it with create when the key is new or its source changed.
func (c shaderModuleCache) get(s shader.Shader, create func(*wgpu.ShaderModuleDescriptor) (*wgpu.ShaderModule, error), release func(*wgpu.ShaderModule)) (*wgpu.ShaderModule, error) {
	key, source := s.Key(), s.Source()
	cached, ok := c[key]
	if ok && cached.source == source {
		return cached.module, nil
	}

	m, err := create(s.Module())
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", key, err)
	}
	if ok {
		release(cached.module)
	}
	c[key] = cachedShaderModule{module: m, source: source}
	return m, nil
}

// releaseAll releases and forgets every cached module.
func (c shaderModuleCache) releaseAll(release func(*wgpu.ShaderModule)) {
	for key, cached := range c {
		release(cached.module)
		delete(c, key)
	}
}
