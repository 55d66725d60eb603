package scene

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// PresetOption is a functional option for configuring the built-in pipeline presets.
type PresetOption func(c *presetConfig)

type presetConfig struct {
	textureSlots int
	renderWidth  uint32
	renderHeight uint32
	clear        *wgpu.Color
	cull         wgpu.CullMode
}

func newPresetConfig(options []PresetOption) presetConfig {
	c := presetConfig{
		textureSlots: DefaultTextureSlots,
		renderWidth:  RenderWidth,
		renderHeight: RenderHeight,
		cull:         wgpu.CullModeNone,
	}
	for _, opt := range options {
		opt(&c)
	}
	return c
}

// WithTextureSlots sets how many textured meshes can draw with their own texture at once.
// Default is DefaultTextureSlots.
//
// Parameters:
//   - n: the slot count, zero draws every mesh with the default texture
//
// Returns:
//   - PresetOption: option function to apply
func WithTextureSlots(n int) PresetOption {
	return func(c *presetConfig) {
		c.textureSlots = max(n, 0)
	}
}

// WithRenderSize sets the G-buffer resolution of the deferred preset. The composite pass scales it
// to the surface. Default is RenderWidth x RenderHeight.
//
// Parameters:
//   - width: the G-buffer width in pixels
//   - height: the G-buffer height in pixels
//
// Returns:
//   - PresetOption: option function to apply
func WithRenderSize(width, height uint32) PresetOption {
	return func(c *presetConfig) {
		c.renderWidth = width
		c.renderHeight = height
	}
}

// WithClearColor sets the colour the pass drawing to the surface clears to.
//
// Parameters:
//   - color: the clear colour
//
// Returns:
//   - PresetOption: option function to apply
func WithClearColor(color wgpu.Color) PresetOption {
	return func(c *presetConfig) {
		c.clear = &color
	}
}

// WithCullMode sets the face culling of the mesh pass. Default is no culling.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - PresetOption: option function to apply
func WithCullMode(mode wgpu.CullMode) PresetOption {
	return func(c *presetConfig) {
		c.cull = mode
	}
}
