package graph

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pass is one executable render pass of a compiled pipeline, in declared order.
type Pass struct {
	Label          Label
	BufferGroup    Label
	BindGroups     []Label
	Targets        []Label
	Depth          Label
	RenderPipeline *wgpu.RenderPipeline
}

// BufferGroupInfo reports the current contents of a buffer group.
type BufferGroupInfo struct {
	Label Label
	// Objects is the number of objects uploaded; Draws counts those with geometry to draw.
	Objects  int
	Draws    int
	Vertices int
	Indices  int
	Stale    bool
}

// ExecuteStats summarizes one call to Execute.
type ExecuteStats struct {
	Passes        int
	Skipped       int
	Draws         int
	SkippedPasses []Label
}

// CompiledPipeline is the executable result of Finalize. It owns every GPU resource it realized.
// The pass list is fixed; only the contents of buffer groups, uniform bind groups and owned textures
// change after compilation.
type CompiledPipeline interface {
	// Passes returns the passes in execution order.
	//
	// Returns:
	//   - []Pass: the passes
	Passes() []Pass

	// BufferGroup reports the contents of a buffer group.
	//
	// Parameters:
	//   - label: the buffer group label
	//
	// Returns:
	//   - BufferGroupInfo: the group's counts
	//   - bool: false if no such group exists
	BufferGroup(label Label) (BufferGroupInfo, bool)

	// ReplaceBufferGroup uploads new objects into a buffer group, replacing every previous object.
	// Existing GPU buffers are reused when large enough. Nothing is changed if any object is invalid.
	//
	// Parameters:
	//   - label: the buffer group label
	//   - objects: the objects to draw, possibly none
	//
	// Returns:
	//   - error: a *GraphError on an unknown label, invalid object or device failure
	ReplaceBufferGroup(label Label, objects []MeshBytes) error

	// InvalidateBufferGroup marks a buffer group stale. Passes that draw it are skipped until the next
	// successful ReplaceBufferGroup.
	//
	// Parameters:
	//   - label: the buffer group label
	//
	// Returns:
	//   - error: ErrUnknownLabel if no such group exists
	InvalidateBufferGroup(label Label) error

	// RestoreBufferGroup clears the stale mark of a buffer group whose objects are still current, so
	// its passes draw again without a new upload.
	//
	// Parameters:
	//   - label: the buffer group label
	//
	// Returns:
	//   - error: ErrUnknownLabel if no such group exists
	RestoreBufferGroup(label Label) error

	// InvalidateBindGroup marks a bind group stale. Passes that bind it are skipped until its next
	// successful write.
	//
	// Parameters:
	//   - label: the bind group label
	//
	// Returns:
	//   - error: ErrUnknownLabel if no such group exists
	InvalidateBindGroup(label Label) error

	// WriteBindGroup writes bytes into the buffer of a uniform bind group.
	//
	// Parameters:
	//   - label: the bind group label
	//   - offset: the byte offset, a multiple of 4
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: a *GraphError if the group is unknown, not a uniform, or the write is out of bounds
	WriteBindGroup(label Label, offset uint64, data []byte) error

	// WriteTexture replaces the pixels of a bind group that owns its texture. A new size reallocates
	// the texture and recreates the bind group.
	//
	// Parameters:
	//   - label: the bind group label
	//   - staging: the new pixels
	//
	// Returns:
	//   - error: a *GraphError if the group does not own a texture or the device fails
	WriteTexture(label Label, staging common.TextureStagingData) error

	// TextureView returns the view of a declared texture.
	//
	// Parameters:
	//   - label: the texture label
	//
	// Returns:
	//   - *wgpu.TextureView: the view
	//   - bool: false if no such texture exists
	TextureView(label Label) (*wgpu.TextureView, bool)

	// BindGroupProvider returns the realized resources of a bind group.
	//
	// Parameters:
	//   - label: the bind group label
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider
	//   - bool: false if no such bind group exists
	BindGroupProvider(label Label) (bind_group_provider.BindGroupProvider, bool)

	// BindGroupTexture returns the declared texture a bind group samples.
	//
	// Parameters:
	//   - label: the bind group label
	//
	// Returns:
	//   - Label: the texture label
	//   - bool: false if the bind group samples no declared texture
	BindGroupTexture(label Label) (Label, bool)

	// Execute records every pass in order into frame.
	//
	// Parameters:
	//   - frame: the frame being recorded
	//
	// Returns:
	//   - ExecuteStats: what was drawn and skipped
	//   - error: an error if a render pass could not be recorded
	Execute(frame Frame) (ExecuteStats, error)

	// Release frees every GPU resource the pipeline owns. Later calls do nothing.
	Release()
}

type textureState struct {
	desc    TextureDescriptor
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

type bindGroupState struct {
	desc     BindGroupDescriptor
	layout   wgpu.BindGroupLayoutDescriptor
	provider bind_group_provider.BindGroupProvider
	// texture is the declared texture sampled, or -1.
	texture       int
	loadedSampler *wgpu.Sampler
	// ownedWidth and ownedHeight are the size of a texture the group owns.
	ownedWidth  uint32
	ownedHeight uint32
	stale       bool
}

type bufferGroupState struct {
	label        Label
	objectGroups []int
	objects      []bind_group_provider.BindGroupProvider
	// objectBindGroups holds the bind groups of each object, normally objectGroups.
	objectBindGroups [][]int
	stale            bool
}

type passState struct {
	plan     nodePlan
	pipeline *wgpu.RenderPipeline
	info     Pass
}

// compiledPipeline is the implementation of CompiledPipeline.
type compiledPipeline struct {
	mu       *sync.Mutex
	device   Device
	released bool

	bufferGroupLabels *labelTable
	bindGroupLabels   *labelTable
	textureLabels     *labelTable

	textures     []textureState
	bindGroups   []bindGroupState
	bufferGroups []bufferGroupState
	passes       []passState
}

var _ CompiledPipeline = &compiledPipeline{}

func (c *compiledPipeline) Passes() []Pass {
	out := make([]Pass, len(c.passes))
	for i, p := range c.passes {
		out[i] = p.info
	}
	return out
}

func (c *compiledPipeline) BufferGroup(label Label) (BufferGroupInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bufferGroupLabels.lookup(label)
	if !ok {
		return BufferGroupInfo{}, false
	}
	g := &c.bufferGroups[i]
	info := BufferGroupInfo{Label: label, Objects: len(g.objects), Stale: g.stale}
	for _, o := range g.objects {
		info.Vertices += o.VertexCount()
		info.Indices += o.IndexCount()
		if drawable(o) {
			info.Draws++
		}
	}
	return info, true
}

func drawable(o bind_group_provider.BindGroupProvider) bool {
	return o.VertexBuffer() != nil && o.VertexCapacity() > 0 && o.IndexCount() > 0
}

func (c *compiledPipeline) ReplaceBufferGroup(label Label, objects []MeshBytes) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bufferGroupLabels.lookup(label)
	if !ok {
		return newError(ErrUnknownLabel, NamespaceBufferGroups, label, "", nil)
	}
	return c.replaceBufferGroup(i, objects)
}

// replaceBufferGroup validates every object before touching the device, then uploads them.
func (c *compiledPipeline) replaceBufferGroup(i int, objects []MeshBytes) error {
	g := &c.bufferGroups[i]
	groups := make([][]int, len(objects))
	for k, m := range objects {
		if err := m.validate(len(g.objectGroups)); err != nil {
			return newError(ErrInvalidDescriptor, NamespaceBufferGroups, g.label, "", fmt.Errorf("object %d: %w", k, err))
		}
		resolved, err := c.resolveOverrides(m.BindGroups, g.objectGroups)
		if err != nil {
			return err
		}
		groups[k] = resolved
	}

	for k, m := range objects {
		if k == len(g.objects) {
			g.objects = append(g.objects, bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s[%d]", g.label, k)))
		}
		if err := c.uploadObject(g.objects[k], m); err != nil {
			g.stale = true
			return newError(ErrDeviceResource, NamespaceBufferGroups, g.label, "", fmt.Errorf("object %d: %w", k, err))
		}
	}
	for _, surplus := range g.objects[len(objects):] {
		surplus.Release(c.device)
	}
	g.objects = g.objects[:len(objects)]
	g.objectBindGroups = groups
	g.stale = false
	return nil
}

func (c *compiledPipeline) resolveOverrides(overrides []Label, defaults []int) ([]int, error) {
	if overrides == nil {
		return defaults, nil
	}
	out := make([]int, len(overrides))
	for k, l := range overrides {
		idx, ok := c.bindGroupLabels.lookup(l)
		if !ok {
			return nil, newError(ErrUnknownLabel, NamespaceBindGroups, l, "", nil)
		}
		if !layoutsEqual(c.bindGroups[idx].layout, c.bindGroups[defaults[k]].layout) {
			return nil, newError(ErrLayoutMismatch, NamespaceBindGroups, l, "",
				fmt.Errorf("layout differs from object bind group %q", c.bindGroups[defaults[k]].desc.Label))
		}
		out[k] = idx
	}
	return out, nil
}

func (c *compiledPipeline) uploadObject(o bind_group_provider.BindGroupProvider, m MeshBytes) error {
	vertices := common.PadTo4(m.Vertices)
	vb, vcap, err := c.ensureBuffer(o.VertexBuffer(), o.VertexCapacity(), vertices, o.Label()+" Vertex Buffer", wgpu.BufferUsageVertex)
	o.SetVertexBuffer(vb, vcap)
	if err != nil {
		o.SetCounts(0, 0)
		return err
	}

	ib, icap, err := c.ensureBuffer(o.IndexBuffer(), o.IndexCapacity(), m.Indices, o.Label()+" Index Buffer", wgpu.BufferUsageIndex)
	o.SetIndexBuffer(ib, icap)
	if err != nil {
		o.SetCounts(0, 0)
		return err
	}

	indices := m.indexCount()
	if len(vertices) == 0 {
		indices = 0
	}
	o.SetCounts(m.VertexCount, indices)
	return nil
}

// ensureBuffer writes data into buf, replacing it with a larger buffer when it does not fit. Empty
// data leaves the buffer as it is. The returned buffer is owned by the caller even on error.
func (c *compiledPipeline) ensureBuffer(buf *wgpu.Buffer, capacity uint64, data []byte, label string, usage wgpu.BufferUsage) (*wgpu.Buffer, uint64, error) {
	size := uint64(len(data))
	if size == 0 {
		return buf, capacity, nil
	}
	if buf == nil || size > capacity {
		created, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label,
			Size:  size,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return buf, capacity, err
		}
		if buf != nil {
			c.device.Release(buf)
		}
		buf, capacity = created, size
	}
	if err := c.device.WriteBuffer(buf, 0, data); err != nil {
		return buf, capacity, err
	}
	return buf, capacity, nil
}

func (c *compiledPipeline) InvalidateBufferGroup(label Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bufferGroupLabels.lookup(label)
	if !ok {
		return newError(ErrUnknownLabel, NamespaceBufferGroups, label, "", nil)
	}
	c.bufferGroups[i].stale = true
	return nil
}

func (c *compiledPipeline) RestoreBufferGroup(label Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bufferGroupLabels.lookup(label)
	if !ok {
		return newError(ErrUnknownLabel, NamespaceBufferGroups, label, "", nil)
	}
	c.bufferGroups[i].stale = false
	return nil
}

func (c *compiledPipeline) InvalidateBindGroup(label Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bindGroupLabels.lookup(label)
	if !ok {
		return newError(ErrUnknownLabel, NamespaceBindGroups, label, "", nil)
	}
	c.bindGroups[i].stale = true
	return nil
}

func (c *compiledPipeline) WriteBindGroup(label Label, offset uint64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bindGroupLabels.lookup(label)
	if !ok {
		return newError(ErrUnknownLabel, NamespaceBindGroups, label, "", nil)
	}
	bg := &c.bindGroups[i]
	if bg.desc.Kind != BindGroupKindUniform {
		return newError(ErrInvalidDescriptor, NamespaceBindGroups, label, "", fmt.Errorf("bind group is not a uniform"))
	}
	if offset%4 != 0 {
		return newError(ErrInvalidDescriptor, NamespaceBindGroups, label, "", fmt.Errorf("offset %d is not a multiple of 4", offset))
	}

	binding := int(bg.layout.Entries[0].Binding)
	write := bind_group_provider.BufferWrite{Provider: bg.provider, Binding: binding, Offset: offset, Data: common.PadTo4(data)}
	if !write.InBounds() {
		return newError(ErrInvalidDescriptor, NamespaceBindGroups, label, "",
			fmt.Errorf("write of %d bytes at offset %d exceeds buffer of %d bytes", len(data), offset, bg.provider.BufferSize(binding)))
	}
	if err := c.device.WriteBuffer(bg.provider.Buffer(binding), offset, write.Data); err != nil {
		bg.stale = true
		return newError(ErrDeviceResource, NamespaceBindGroups, label, "", err)
	}
	bg.stale = false
	return nil
}

func (c *compiledPipeline) WriteTexture(label Label, staging common.TextureStagingData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.bindGroupLabels.lookup(label)
	if !ok {
		return newError(ErrUnknownLabel, NamespaceBindGroups, label, "", nil)
	}
	bg := &c.bindGroups[i]
	if bg.desc.Kind != BindGroupKindReadOnlyTexture || bg.desc.Texture.Source != TextureSourceUnloaded {
		return newError(ErrInvalidDescriptor, NamespaceBindGroups, label, "", fmt.Errorf("bind group does not own its texture"))
	}
	if staging.Width == 0 || staging.Height == 0 {
		return newError(ErrInvalidDescriptor, NamespaceBindGroups, label, "", fmt.Errorf("texture size %dx%d", staging.Width, staging.Height))
	}
	if err := validateStaging(staging, staging.Width, staging.Height); err != nil {
		return newError(ErrInvalidDescriptor, NamespaceBindGroups, label, "", err)
	}

	if staging.Width == bg.ownedWidth && staging.Height == bg.ownedHeight {
		if staging.Pixels == nil {
			return nil
		}
		if err := c.device.WriteTexture(bg.provider.Texture(), staging); err != nil {
			bg.stale = true
			return newError(ErrDeviceResource, NamespaceBindGroups, label, "", err)
		}
		bg.stale = false
		return nil
	}

	tex, view, err := c.createOwnedTexture(string(label), staging, unloadedFormat(bg.desc.Texture))
	if err != nil {
		bg.stale = true
		return newError(ErrDeviceResource, NamespaceBindGroups, label, "", err)
	}
	ti, _, _ := textureEntries(bg.layout)
	binding := int(bg.layout.Entries[ti].Binding)
	oldTex, oldView := bg.provider.Texture(), bg.provider.TextureView(binding)
	bg.provider.SetTexture(tex)
	bg.provider.SetTextureView(binding, view)
	if err := c.rebuildBindGroup(bg); err != nil {
		bg.provider.SetTexture(oldTex)
		bg.provider.SetTextureView(binding, oldView)
		c.device.Release(view)
		c.device.Release(tex)
		bg.stale = true
		return newError(ErrDeviceResource, NamespaceBindGroups, label, "", err)
	}
	c.device.Release(oldView)
	c.device.Release(oldTex)
	bg.ownedWidth, bg.ownedHeight = staging.Width, staging.Height
	bg.stale = false
	Logger().Debug("bind group texture resized", "bind_group", label, "width", staging.Width, "height", staging.Height)
	return nil
}

func (c *compiledPipeline) TextureView(label Label) (*wgpu.TextureView, bool) {
	i, ok := c.textureLabels.lookup(label)
	if !ok {
		return nil, false
	}
	return c.textures[i].view, true
}

func (c *compiledPipeline) BindGroupProvider(label Label) (bind_group_provider.BindGroupProvider, bool) {
	i, ok := c.bindGroupLabels.lookup(label)
	if !ok {
		return nil, false
	}
	return c.bindGroups[i].provider, true
}

func (c *compiledPipeline) BindGroupTexture(label Label) (Label, bool) {
	i, ok := c.bindGroupLabels.lookup(label)
	if !ok || c.bindGroups[i].texture < 0 {
		return "", false
	}
	return c.textures[c.bindGroups[i].texture].desc.Label, true
}

func (c *compiledPipeline) Execute(frame Frame) (ExecuteStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats ExecuteStats
	if c.released {
		return stats, fmt.Errorf("execute on a released pipeline")
	}
	for _, p := range c.passes {
		if reason, skip := c.skipReason(p.plan); skip {
			stats.Skipped++
			stats.SkippedPasses = append(stats.SkippedPasses, p.plan.label)
			Logger().Debug("pass skipped", "node", p.plan.label, "stale", reason)
			continue
		}
		draws, err := c.executePass(frame, p)
		if err != nil {
			return stats, fmt.Errorf("pass %q: %w", p.plan.label, err)
		}
		stats.Passes++
		stats.Draws += draws
	}
	return stats, nil
}

// skipReason names the stale buffer group or bind group that keeps a pass from running.
func (c *compiledPipeline) skipReason(n nodePlan) (Label, bool) {
	g := &c.bufferGroups[n.bufferGroup]
	if g.stale {
		return g.label, true
	}
	for _, gi := range n.bindGroups {
		if c.bindGroups[gi].stale {
			return c.bindGroups[gi].desc.Label, true
		}
	}
	for _, groups := range g.objectBindGroups {
		for _, gi := range groups {
			if c.bindGroups[gi].stale {
				return c.bindGroups[gi].desc.Label, true
			}
		}
	}
	return "", false
}

func (c *compiledPipeline) renderPassDescriptor(frame Frame, n nodePlan) (*wgpu.RenderPassDescriptor, error) {
	desc := &wgpu.RenderPassDescriptor{Label: string(n.label)}
	views := make([]*wgpu.TextureView, 0, max(len(n.targets), 1))
	for _, ti := range n.targets {
		views = append(views, c.textures[ti].view)
	}
	if n.toSurface() {
		sv := frame.SurfaceView()
		if sv == nil {
			return nil, fmt.Errorf("frame has no surface view")
		}
		views = append(views, sv)
	}
	for _, v := range views {
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       v,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: n.clear,
		})
	}
	if n.depth >= 0 {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            c.textures[n.depth].view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	return desc, nil
}

func (c *compiledPipeline) executePass(frame Frame, p passState) (int, error) {
	desc, err := c.renderPassDescriptor(frame, p.plan)
	if err != nil {
		return 0, err
	}
	rp, err := frame.BeginRenderPass(desc)
	if err != nil {
		return 0, err
	}

	rp.SetPipeline(p.pipeline)
	for k, gi := range p.plan.bindGroups {
		rp.SetBindGroup(uint32(k), c.bindGroups[gi].provider.BindGroup())
	}
	base := uint32(len(p.plan.bindGroups))
	g := &c.bufferGroups[p.plan.bufferGroup]
	draws := 0
	for k, o := range g.objects {
		if !drawable(o) {
			continue
		}
		for j, gi := range g.objectBindGroups[k] {
			rp.SetBindGroup(base+uint32(j), c.bindGroups[gi].provider.BindGroup())
		}
		rp.SetVertexBuffer(o.VertexBuffer(), o.VertexCapacity())
		rp.SetIndexBuffer(o.IndexBuffer(), o.IndexCapacity())
		rp.DrawIndexed(uint32(o.IndexCount()))
		draws++
	}
	return draws, rp.End()
}

func (c *compiledPipeline) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true
	for _, p := range c.passes {
		if p.pipeline != nil {
			c.device.Release(p.pipeline)
		}
	}
	for _, g := range c.bufferGroups {
		for _, o := range g.objects {
			o.Release(c.device)
		}
	}
	for _, bg := range c.bindGroups {
		if bg.provider != nil {
			bg.provider.Release(c.device)
		}
	}
	for _, t := range c.textures {
		if t.view != nil {
			c.device.Release(t.view)
		}
		if t.texture != nil {
			c.device.Release(t.texture)
		}
	}
	Logger().Debug("pipeline released", "passes", len(c.passes))
}
