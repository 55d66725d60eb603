// Package graphfile reads render graph descriptions from YAML or TOML files and turns them into a
// graph.DescriptorSet. Shader and image paths are resolved relative to the description file.
package graphfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a description file.
type Format int

const (
	// FormatYAML is selected by the .yaml and .yml extensions.
	FormatYAML Format = iota
	// FormatTOML is selected by the .toml extension.
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatForPath selects the encoding from a file extension.
//
// Parameters:
//   - path: the description file path
//
// Returns:
//   - Format: the encoding
//   - error: an error for an unknown extension
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("graphfile: unknown description extension %q", filepath.Ext(path))
	}
}

// File is one parsed pipeline description. Resources are listed per namespace in declaration
// order; nodes run in the order they are listed.
type File struct {
	// Dir is the directory relative paths resolve against.
	Dir string `yaml:"-" toml:"-"`
	// Path is the file the description was loaded from, empty for parsed bytes.
	Path string `yaml:"-" toml:"-"`

	Textures     []TextureSpec     `yaml:"textures" toml:"textures"`
	BindGroups   []BindGroupSpec   `yaml:"bind_groups" toml:"bind_groups"`
	BufferGroups []BufferGroupSpec `yaml:"buffer_groups" toml:"buffer_groups"`
	Nodes        []NodeSpec        `yaml:"nodes" toml:"nodes"`
}

// TextureSpec declares a pipeline texture.
type TextureSpec struct {
	Label string `yaml:"label" toml:"label"`
	// Kind is depth, render_target or image.
	Kind string `yaml:"kind" toml:"kind"`
	// Width and Height of zero take the surface size. Image textures take the image size.
	Width  uint32 `yaml:"width,omitempty" toml:"width,omitempty"`
	Height uint32 `yaml:"height,omitempty" toml:"height,omitempty"`
	// Format is a WebGPU texture format name such as rgba16float, or surface.
	Format string `yaml:"format,omitempty" toml:"format,omitempty"`
	Image  string `yaml:"image,omitempty" toml:"image,omitempty"`
}

// SamplerSpec configures the sampler of a texture bind group. Empty fields keep the defaults.
type SamplerSpec struct {
	// Filter is linear or nearest.
	Filter string `yaml:"filter,omitempty" toml:"filter,omitempty"`
	// Address is repeat, clamp or mirror.
	Address string `yaml:"address,omitempty" toml:"address,omitempty"`
}

// BindGroupSpec declares a bind group.
type BindGroupSpec struct {
	Label string `yaml:"label" toml:"label"`
	// Kind is uniform, texture (samples a declared texture), image (owns a texture decoded from a
	// file) or color (owns a one-texel texture).
	Kind string `yaml:"kind" toml:"kind"`

	// Size and Visibility describe a uniform buffer. Visibility lists vertex and/or fragment.
	Size       uint64   `yaml:"size,omitempty" toml:"size,omitempty"`
	Visibility []string `yaml:"visibility,omitempty" toml:"visibility,omitempty"`

	Texture string      `yaml:"texture,omitempty" toml:"texture,omitempty"`
	Image   string      `yaml:"image,omitempty" toml:"image,omitempty"`
	Color   []int       `yaml:"color,omitempty" toml:"color,omitempty"`
	Sampler SamplerSpec `yaml:"sampler,omitempty" toml:"sampler,omitempty"`
}

// BufferGroupSpec declares a buffer group.
type BufferGroupSpec struct {
	Label            string   `yaml:"label" toml:"label"`
	ObjectBindGroups []string `yaml:"object_bind_groups,omitempty" toml:"object_bind_groups,omitempty"`
	// ScreenQuad seeds the group with the full-screen quad.
	ScreenQuad bool `yaml:"screen_quad,omitempty" toml:"screen_quad,omitempty"`
}

// NodeSpec declares one render pass.
type NodeSpec struct {
	Label       string   `yaml:"label" toml:"label"`
	BufferGroup string   `yaml:"buffer_group" toml:"buffer_group"`
	BindGroups  []string `yaml:"bind_groups,omitempty" toml:"bind_groups,omitempty"`
	Targets     []string `yaml:"targets,omitempty" toml:"targets,omitempty"`
	Depth       string   `yaml:"depth,omitempty" toml:"depth,omitempty"`

	// Vertex and Fragment are WGSL files. Both may name the same file.
	Vertex   string `yaml:"vertex" toml:"vertex"`
	Fragment string `yaml:"fragment" toml:"fragment"`

	// Clear is the RGBA load colour.
	Clear        []float64 `yaml:"clear,omitempty" toml:"clear,omitempty"`
	DepthTest    *bool     `yaml:"depth_test,omitempty" toml:"depth_test,omitempty"`
	DepthWrite   *bool     `yaml:"depth_write,omitempty" toml:"depth_write,omitempty"`
	DepthCompare string    `yaml:"depth_compare,omitempty" toml:"depth_compare,omitempty"`
	Cull         string    `yaml:"cull,omitempty" toml:"cull,omitempty"`
	Blend        bool      `yaml:"blend,omitempty" toml:"blend,omitempty"`
}

// Load reads and parses a description file.
//
// Parameters:
//   - path: the .yaml, .yml or .toml file
//
// Returns:
//   - *File: the parsed description
//   - error: an error if the file cannot be read or parsed
func Load(path string) (*File, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	f, err := Parse(data, format, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("graphfile: %s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse decodes a description held in memory.
//
// Parameters:
//   - data: the encoded description
//   - format: the encoding
//   - dir: the directory relative paths resolve against
//
// Returns:
//   - *File: the parsed description
//   - error: an error if the data cannot be decoded
func Parse(data []byte, format Format, dir string) (*File, error) {
	f := &File{Dir: dir}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %v", format)
	}
	return f, nil
}

// resolve joins a relative path onto the file's directory.
func (f *File) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.Dir, path)
}

// Paths returns every file the description depends on: the description itself, its shaders and
// its images, each once.
//
// Returns:
//   - []string: the resolved paths
func (f *File) Paths() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	add(f.Path)
	for _, n := range f.Nodes {
		add(f.resolve(n.Vertex))
		add(f.resolve(n.Fragment))
	}
	for _, t := range f.Textures {
		add(f.resolve(t.Image))
	}
	for _, bg := range f.BindGroups {
		add(f.resolve(bg.Image))
	}
	return out
}
