// Package graphtest provides GPU-free implementations of graph.Device and graph.Frame for tests of
// code built on compiled pipelines.
package graphtest

import (
	"errors"
	"reflect"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device hands out zero-valued wgpu handles and tracks which of them are still live.
type Device struct {
	mu *sync.Mutex

	live          map[graph.Releasable]bool
	textureWrites int
	bufferWrites  int
	pipelines     int

	failTextureWrites int
}

// ErrInjected is returned by device calls set up to fail.
var ErrInjected = errors.New("graphtest: injected device failure")

var _ graph.Device = &Device{}

// NewDevice creates an empty Device.
func NewDevice() *Device {
	return &Device{
		mu:   &sync.Mutex{},
		live: make(map[graph.Releasable]bool),
	}
}

// Live returns the number of created handles not yet released.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// TextureWrites returns how many times WriteTexture was called.
func (d *Device) TextureWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.textureWrites
}

// FailTextureWrites makes the next n WriteTexture calls return ErrInjected.
func (d *Device) FailTextureWrites(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failTextureWrites = n
}

// BufferWrites returns how many times WriteBuffer was called.
func (d *Device) BufferWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bufferWrites
}

// Pipelines returns how many render pipelines were created.
func (d *Device) Pipelines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipelines
}

func (d *Device) keep(r graph.Releasable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[r] = true
}

func (d *Device) CreateBuffer(*wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	b := &wgpu.Buffer{}
	d.keep(b)
	return b, nil
}

func (d *Device) WriteBuffer(*wgpu.Buffer, uint64, []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bufferWrites++
	return nil
}

func (d *Device) CreateTexture(*wgpu.TextureDescriptor) (*wgpu.Texture, error) {
	t := &wgpu.Texture{}
	d.keep(t)
	return t, nil
}

func (d *Device) CreateTextureView(*wgpu.Texture) (*wgpu.TextureView, error) {
	v := &wgpu.TextureView{}
	d.keep(v)
	return v, nil
}

func (d *Device) WriteTexture(*wgpu.Texture, common.TextureStagingData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failTextureWrites > 0 {
		d.failTextureWrites--
		return ErrInjected
	}
	d.textureWrites++
	return nil
}

func (d *Device) CreateSampler(*wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	s := &wgpu.Sampler{}
	d.keep(s)
	return s, nil
}

func (d *Device) CreateBindGroupLayout(*wgpu.BindGroupLayoutDescriptor) (*wgpu.BindGroupLayout, error) {
	l := &wgpu.BindGroupLayout{}
	d.keep(l)
	return l, nil
}

func (d *Device) CreateBindGroup(*wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	g := &wgpu.BindGroup{}
	d.keep(g)
	return g, nil
}

func (d *Device) CreateRenderPipeline(graph.PipelineRequest) (*wgpu.RenderPipeline, error) {
	p := &wgpu.RenderPipeline{}
	d.keep(p)
	d.mu.Lock()
	d.pipelines++
	d.mu.Unlock()
	return p, nil
}

func (d *Device) Release(r graph.Releasable) {
	if r == nil || reflect.ValueOf(r).IsNil() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, r)
}

// Frame counts the passes begun and draws recorded into it.
type Frame struct {
	Passes int
	Draws  int
}

var _ graph.Frame = &Frame{}

func (f *Frame) SurfaceView() *wgpu.TextureView {
	return &wgpu.TextureView{}
}

func (f *Frame) BeginRenderPass(*wgpu.RenderPassDescriptor) (graph.RenderPass, error) {
	f.Passes++
	return &pass{frame: f}, nil
}

type pass struct {
	frame *Frame
}

func (p *pass) SetPipeline(*wgpu.RenderPipeline)     {}
func (p *pass) SetBindGroup(uint32, *wgpu.BindGroup) {}
func (p *pass) SetVertexBuffer(*wgpu.Buffer, uint64) {}
func (p *pass) SetIndexBuffer(*wgpu.Buffer, uint64)  {}
func (p *pass) DrawIndexed(uint32)                   { p.frame.Draws++ }
func (p *pass) End() error                           { return nil }
