package graph

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorSetRejectsDuplicateLabels(t *testing.T) {
	set := NewDescriptorSet()
	require.NoError(t, set.AddTexture(RenderTarget("shared", 4, 4, wgpu.TextureFormatRGBA8Unorm)))
	require.NoError(t, set.AddBindGroup(UniformBindGroup("shared", UniformLayout(16, wgpu.ShaderStageVertex), nil)))
	require.NoError(t, set.AddBufferGroup(BufferGroupDescriptor{Label: "shared"}))

	assert.ErrorIs(t, set.AddTexture(DepthTexture("shared", 4, 4)), ErrDuplicateLabel)
	assert.ErrorIs(t, set.AddBindGroup(UniformBindGroup("shared", UniformLayout(16, wgpu.ShaderStageVertex), nil)), ErrDuplicateLabel)
	assert.ErrorIs(t, set.AddBufferGroup(BufferGroupDescriptor{Label: "shared"}), ErrDuplicateLabel)

	require.NoError(t, set.AddNode(ShaderNodeDescriptor{Label: "pass"}))
	err := set.AddNode(ShaderNodeDescriptor{Label: "pass"})
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, NamespaceNodes, gerr.Namespace)
	assert.Equal(t, Label("pass"), gerr.Label)

	assert.Len(t, set.Textures(), 1)
	assert.Len(t, set.Nodes(), 1)
}

func TestDescriptorSetRejectsEmptyLabel(t *testing.T) {
	set := NewDescriptorSet()
	assert.ErrorIs(t, set.AddBufferGroup(BufferGroupDescriptor{}), ErrInvalidDescriptor)
}

func TestValidateUnknownLabels(t *testing.T) {
	cases := map[string]func(*DescriptorSet){
		"bind group": func(s *DescriptorSet) {
			s.nodes[0].BindGroups = []Label{"missing"}
		},
		"buffer group": func(s *DescriptorSet) {
			s.nodes[0].BufferGroup = "missing"
		},
		"target": func(s *DescriptorSet) {
			s.nodes[0].Targets = []Label{"missing"}
		},
		"depth": func(s *DescriptorSet) {
			s.nodes[0].Depth = "missing"
		},
		"sampled texture": func(s *DescriptorSet) {
			s.bindGroups[1].Texture.Texture = "missing"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			set := deferredSet(t)
			mutate(set)
			err := set.Validate()
			assert.ErrorIs(t, err, ErrUnknownLabel)

			var gerr *GraphError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, Label("missing"), gerr.Label)
		})
	}
}

func TestValidateLayoutMismatch(t *testing.T) {
	t.Run("missing group", func(t *testing.T) {
		set := deferredSet(t)
		set.nodes[0].BindGroups = nil
		assert.ErrorIs(t, set.Validate(), ErrLayoutMismatch)
	})

	t.Run("texture bound where uniform expected", func(t *testing.T) {
		set := deferredSet(t)
		set.nodes[0].BindGroups = []Label{"g-normal-input"}
		assert.ErrorIs(t, set.Validate(), ErrLayoutMismatch)
	})

	t.Run("uniform too small", func(t *testing.T) {
		set := deferredSet(t)
		set.bindGroups[0] = UniformBindGroup("camera", UniformLayout(16, wgpu.ShaderStageVertex), make([]byte, 16))
		assert.ErrorIs(t, set.Validate(), ErrLayoutMismatch)
	})
}

func TestValidateFormatMismatch(t *testing.T) {
	t.Run("depth texture as colour target", func(t *testing.T) {
		set := deferredSet(t)
		set.nodes[0].Targets = []Label{"g-depth"}
		set.nodes[0].Depth = ""
		assert.ErrorIs(t, set.Validate(), ErrFormatMismatch)
	})

	t.Run("depth size differs from targets", func(t *testing.T) {
		set := deferredSet(t)
		require.NoError(t, set.AddTexture(DepthTexture("small-depth", 320, 240)))
		set.nodes[0].Depth = "small-depth"
		assert.ErrorIs(t, set.Validate(), ErrFormatMismatch)
	})

	t.Run("integer texture behind a float layout", func(t *testing.T) {
		set := NewDescriptorSet()
		require.NoError(t, set.AddTexture(RenderTarget("ids", 4, 4, wgpu.TextureFormatR32Uint)))
		bg := TextureBindGroup("ids-input", "ids", common.SamplerStagingData{})
		bg.Layout = SampledTextureLayout(true)
		require.NoError(t, set.AddBindGroup(bg))
		assert.ErrorIs(t, set.Validate(), ErrFormatMismatch)
	})
}

func TestValidateTargetCount(t *testing.T) {
	set := deferredSet(t)
	require.NoError(t, set.AddTexture(RenderTarget("g-albedo", 640, 480, wgpu.TextureFormatRGBA8Unorm)))
	set.nodes[0].Targets = []Label{"g-normal", "g-albedo"}

	err := set.Validate()
	assert.ErrorIs(t, err, ErrTargetCount)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, Label("g-pass"), gerr.Node)
}

func TestValidatePassOrder(t *testing.T) {
	t.Run("declared order", func(t *testing.T) {
		assert.NoError(t, deferredSet(t).Validate())
	})

	t.Run("reader before writer", func(t *testing.T) {
		set := deferredSet(t)
		set.nodes[0], set.nodes[1] = set.nodes[1], set.nodes[0]
		err := set.Validate()
		assert.ErrorIs(t, err, ErrPassOrder)
		var gerr *GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, Label("g-normal"), gerr.Label)
		assert.Equal(t, Label("composite"), gerr.Node)
	})

	t.Run("pass samples its own target", func(t *testing.T) {
		set := deferredSet(t)
		set.nodes[1].Targets = []Label{"g-normal"}
		assert.ErrorIs(t, set.Validate(), ErrPassOrder)
	})
}

func TestValidateWarnsForUnwrittenTarget(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	set := deferredSet(t)
	require.NoError(t, set.AddTexture(RenderTarget("g-spare", 640, 480, wgpu.TextureFormatRGBA16Float)))
	set.bindGroups[1].Texture.Texture = "g-spare"

	require.NoError(t, set.Validate())
	assert.Contains(t, buf.String(), "never written")
	assert.Contains(t, buf.String(), "g-spare")
}

func TestValidateRejectsMalformedDescriptors(t *testing.T) {
	cases := map[string]func(*DescriptorSet){
		"zero sized texture": func(s *DescriptorSet) {
			s.textures[0].Width = 0
		},
		"uniform without size": func(s *DescriptorSet) {
			s.bindGroups[0] = UniformBindGroup("camera", UniformLayout(0, wgpu.ShaderStageVertex), nil)
		},
		"node without program": func(s *DescriptorSet) {
			s.nodes[1].Program = nil
		},
		"ragged index data": func(s *DescriptorSet) {
			s.bufferGroups[1].Initial[0].Indices = []byte{1, 2, 3}
		},
		"duplicate target": func(s *DescriptorSet) {
			s.nodes[0].Targets = []Label{"g-normal", "g-normal"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			set := deferredSet(t)
			mutate(set)
			err := set.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDescriptor), err.Error())
		})
	}
}
