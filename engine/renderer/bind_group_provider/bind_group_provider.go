package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Releasable is any GPU handle that can be released.
type Releasable interface {
	Release()
}

// Releaser releases GPU handles on behalf of a provider. The device backend implements it so that
// every release goes through one place.
type Releaser interface {
	Release(resource Releasable)
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is the resource label this provider was realized from.
	label string

	// The following fields are GPU allocated resources owned by the provider and released with it.

	bindGroup       *wgpu.BindGroup
	bindGroupLayout *wgpu.BindGroupLayout
	// buffers holds the GPU buffers created for this provider, keyed by binding index.
	buffers map[int]*wgpu.Buffer
	// bufferSizes holds the allocated size of each buffer in buffers, keyed by binding index.
	bufferSizes map[int]uint64
	// textureViews holds the texture views bound by this provider, keyed by binding index.
	textureViews map[int]*wgpu.TextureView
	// borrowed marks texture views owned by someone else (a pipeline-level texture); they are not released.
	borrowed map[int]bool
	// texture is a texture owned by this provider, set when the bind group realizes its own pixels.
	texture *wgpu.Texture
	// samplers holds the samplers created for this provider, keyed by binding index.
	samplers map[int]*wgpu.Sampler

	// The following fields are used by providers that hold one drawable object of a buffer group.

	vertexBuffer   *wgpu.Buffer
	indexBuffer    *wgpu.Buffer
	vertexCapacity uint64
	indexCapacity  uint64
	vertexCount    int
	indexCount     int
}

// BindGroupProvider holds the realized GPU resources behind one labeled bind group, or the vertex
// and index buffers of one object in a buffer group. The compiled pipeline creates providers during
// compilation and swaps their contents during per-frame rebinding.
type BindGroupProvider interface {
	// Release releases every GPU resource owned by this provider through r.
	// Borrowed texture views are left alone.
	//
	// Parameters:
	//   - r: the releaser that frees each handle
	Release(r Releaser)

	// Label returns the resource label for this provider.
	//
	// Returns:
	//   - string: the label
	Label() string

	// BindGroup returns the created bind group for shader binding, or nil for object providers.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the layout the bind group was created with.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer bound at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	Buffer(binding int) *wgpu.Buffer

	// BufferSize returns the allocated size of the buffer at binding, or 0.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - uint64: the buffer size in bytes
	BufferSize(binding int) uint64

	// TextureView returns the texture view bound at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the view
	TextureView(binding int) *wgpu.TextureView

	// Texture returns the texture owned by this provider, or nil when its views are borrowed.
	//
	// Returns:
	//   - *wgpu.Texture: the owned texture
	Texture() *wgpu.Texture

	// Sampler returns the sampler bound at binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler
	Sampler(binding int) *wgpu.Sampler

	// VertexBuffer returns the object's vertex buffer, or nil.
	//
	// Returns:
	//   - *wgpu.Buffer: the vertex buffer
	VertexBuffer() *wgpu.Buffer

	// IndexBuffer returns the object's index buffer, or nil.
	//
	// Returns:
	//   - *wgpu.Buffer: the index buffer
	IndexBuffer() *wgpu.Buffer

	// VertexCapacity returns the allocated size of the vertex buffer in bytes.
	//
	// Returns:
	//   - uint64: the capacity
	VertexCapacity() uint64

	// IndexCapacity returns the allocated size of the index buffer in bytes.
	//
	// Returns:
	//   - uint64: the capacity
	IndexCapacity() uint64

	// VertexCount returns the number of vertices currently uploaded.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// IndexCount returns the number of indices to draw.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// SetBindGroup replaces the bind group, releasing the previous one through r.
	//
	// Parameters:
	//   - r: the releaser for the previous bind group
	//   - bg: the new bind group
	SetBindGroup(r Releaser, bg *wgpu.BindGroup)

	// SetBindGroupLayout sets the layout.
	//
	// Parameters:
	//   - bgl: the layout
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer stores an owned buffer for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	//   - size: the allocated size in bytes
	SetBuffer(binding int, buf *wgpu.Buffer, size uint64)

	// SetTextureView stores an owned texture view for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	SetTextureView(binding int, tv *wgpu.TextureView)

	// BorrowTextureView stores a texture view owned elsewhere for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	BorrowTextureView(binding int, tv *wgpu.TextureView)

	// SetTexture stores the owned texture.
	//
	// Parameters:
	//   - tex: the texture
	SetTexture(tex *wgpu.Texture)

	// SetSampler stores an owned sampler for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding int, s *wgpu.Sampler)

	// SetVertexBuffer stores the object's vertex buffer and its capacity.
	//
	// Parameters:
	//   - buf: the vertex buffer
	//   - capacity: the allocated size in bytes
	SetVertexBuffer(buf *wgpu.Buffer, capacity uint64)

	// SetIndexBuffer stores the object's index buffer and its capacity.
	//
	// Parameters:
	//   - buf: the index buffer
	//   - capacity: the allocated size in bytes
	SetIndexBuffer(buf *wgpu.Buffer, capacity uint64)

	// SetCounts records how many vertices were uploaded and how many indices to draw.
	//
	// Parameters:
	//   - vertices: the vertex count
	//   - indices: the index count
	SetCounts(vertices, indices int)

	// ReleaseTexture releases the owned texture and every owned texture view through r.
	//
	// Parameters:
	//   - r: the releaser
	ReleaseTexture(r Releaser)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the resource label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]*wgpu.Buffer),
		bufferSizes:  make(map[int]uint64),
		textureViews: make(map[int]*wgpu.TextureView),
		borrowed:     make(map[int]bool),
		samplers:     make(map[int]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) BufferSize(binding int) uint64 {
	return p.bufferSizes[binding]
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Texture() *wgpu.Texture {
	return p.texture
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) VertexCapacity() uint64 {
	return p.vertexCapacity
}

func (p *bindGroupProvider) IndexCapacity() uint64 {
	return p.indexCapacity
}

func (p *bindGroupProvider) VertexCount() int {
	return p.vertexCount
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBindGroup(r Releaser, bg *wgpu.BindGroup) {
	if p.bindGroup != nil && p.bindGroup != bg {
		r.Release(p.bindGroup)
	}
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer, size uint64) {
	p.buffers[binding] = buf
	p.bufferSizes[binding] = size
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.textureViews[binding] = tv
	delete(p.borrowed, binding)
}

func (p *bindGroupProvider) BorrowTextureView(binding int, tv *wgpu.TextureView) {
	p.textureViews[binding] = tv
	p.borrowed[binding] = true
}

func (p *bindGroupProvider) SetTexture(tex *wgpu.Texture) {
	p.texture = tex
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.samplers[binding] = s
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer, capacity uint64) {
	p.vertexBuffer = buf
	p.vertexCapacity = capacity
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer, capacity uint64) {
	p.indexBuffer = buf
	p.indexCapacity = capacity
}

func (p *bindGroupProvider) SetCounts(vertices, indices int) {
	p.vertexCount = vertices
	p.indexCount = indices
}

func (p *bindGroupProvider) ReleaseTexture(r Releaser) {
	for i, tv := range p.textureViews {
		if tv != nil && !p.borrowed[i] {
			r.Release(tv)
			delete(p.textureViews, i)
		}
	}
	if p.texture != nil {
		r.Release(p.texture)
		p.texture = nil
	}
}

func (p *bindGroupProvider) Release(r Releaser) {
	if p.bindGroup != nil {
		r.Release(p.bindGroup)
		p.bindGroup = nil
	}
	p.ReleaseTexture(r)
	for i := range p.borrowed {
		delete(p.textureViews, i)
		delete(p.borrowed, i)
	}
	for i, s := range p.samplers {
		if s != nil {
			r.Release(s)
		}
		delete(p.samplers, i)
	}
	for i, buf := range p.buffers {
		if buf != nil {
			r.Release(buf)
		}
		delete(p.buffers, i)
		delete(p.bufferSizes, i)
	}
	if p.bindGroupLayout != nil {
		r.Release(p.bindGroupLayout)
		p.bindGroupLayout = nil
	}
	if p.vertexBuffer != nil {
		r.Release(p.vertexBuffer)
		p.vertexBuffer = nil
	}
	if p.indexBuffer != nil {
		r.Release(p.indexBuffer)
		p.indexBuffer = nil
	}
	p.vertexCapacity, p.indexCapacity = 0, 0
	p.vertexCount, p.indexCount = 0, 0
}
