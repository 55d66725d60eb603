package graph

import (
	"slices"
)

// DescriptorSet collects every buffer group, bind group, texture and shader node of one pipeline.
// It performs no GPU work; Validate and Finalize check it as a whole.
type DescriptorSet struct {
	bufferGroups []BufferGroupDescriptor
	bindGroups   []BindGroupDescriptor
	textures     []TextureDescriptor
	nodes        []ShaderNodeDescriptor

	bufferGroupLabels *labelTable
	bindGroupLabels   *labelTable
	textureLabels     *labelTable
	nodeLabels        *labelTable
}

// NewDescriptorSet returns an empty descriptor set.
//
// Returns:
//   - *DescriptorSet: the empty set
func NewDescriptorSet() *DescriptorSet {
	return &DescriptorSet{
		bufferGroupLabels: newLabelTable(NamespaceBufferGroups),
		bindGroupLabels:   newLabelTable(NamespaceBindGroups),
		textureLabels:     newLabelTable(NamespaceTextures),
		nodeLabels:        newLabelTable(NamespaceNodes),
	}
}

// AddBufferGroup adds a buffer group.
//
// Parameters:
//   - d: the buffer group descriptor
//
// Returns:
//   - error: ErrDuplicateLabel if the label is taken, ErrInvalidDescriptor if it is empty
func (s *DescriptorSet) AddBufferGroup(d BufferGroupDescriptor) error {
	if _, err := s.bufferGroupLabels.intern(d.Label); err != nil {
		return err
	}
	d.ObjectBindGroups = slices.Clone(d.ObjectBindGroups)
	s.bufferGroups = append(s.bufferGroups, d)
	return nil
}

// AddBindGroup adds a bind group.
//
// Parameters:
//   - d: the bind group descriptor
//
// Returns:
//   - error: ErrDuplicateLabel if the label is taken, ErrInvalidDescriptor if it is empty
func (s *DescriptorSet) AddBindGroup(d BindGroupDescriptor) error {
	if _, err := s.bindGroupLabels.intern(d.Label); err != nil {
		return err
	}
	s.bindGroups = append(s.bindGroups, d)
	return nil
}

// AddTexture adds a texture.
//
// Parameters:
//   - d: the texture descriptor
//
// Returns:
//   - error: ErrDuplicateLabel if the label is taken, ErrInvalidDescriptor if it is empty
func (s *DescriptorSet) AddTexture(d TextureDescriptor) error {
	if _, err := s.textureLabels.intern(d.Label); err != nil {
		return err
	}
	s.textures = append(s.textures, d)
	return nil
}

// AddNode appends a shader node. Node order is execution order.
//
// Parameters:
//   - d: the node descriptor
//
// Returns:
//   - error: ErrDuplicateLabel if the label is taken, ErrInvalidDescriptor if it is empty
func (s *DescriptorSet) AddNode(d ShaderNodeDescriptor) error {
	if _, err := s.nodeLabels.intern(d.Label); err != nil {
		return err
	}
	d.BindGroups = slices.Clone(d.BindGroups)
	d.Targets = slices.Clone(d.Targets)
	s.nodes = append(s.nodes, d)
	return nil
}

// BufferGroups returns the buffer group descriptors in insertion order.
func (s *DescriptorSet) BufferGroups() []BufferGroupDescriptor {
	return slices.Clone(s.bufferGroups)
}

// BindGroups returns the bind group descriptors in insertion order.
func (s *DescriptorSet) BindGroups() []BindGroupDescriptor {
	return slices.Clone(s.bindGroups)
}

// Textures returns the texture descriptors in insertion order.
func (s *DescriptorSet) Textures() []TextureDescriptor {
	return slices.Clone(s.textures)
}

// Nodes returns the shader nodes in execution order.
func (s *DescriptorSet) Nodes() []ShaderNodeDescriptor {
	return slices.Clone(s.nodes)
}

// Validate runs every compile-time check that needs no device: label resolution, bind group
// layout matching, target formats and counts, and write-before-read ordering. Surface size is not
// known here, so surface nodes with a depth attachment are only checked by Finalize.
//
// Returns:
//   - error: a *GraphError describing the first failure, or nil
func (s *DescriptorSet) Validate() error {
	_, err := s.plan(SurfaceInfo{})
	return err
}
