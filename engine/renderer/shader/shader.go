package shader

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies which render stage a shader module supplies.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex stage of a render program.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment stage of a render program.
	ShaderTypeFragment
)

// String returns the WGSL attribute name of the stage.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// Visibility returns the wgpu shader stage flag for the stage.
//
// Returns:
//   - wgpu.ShaderStage: the visibility flag used on bind group layout entries
func (t ShaderType) Visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	default:
		return wgpu.ShaderStageNone
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	entryPoint                 string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []wgpu.VertexBufferLayout
	fragmentOutputs            int
}

// Shader is one pre-processed and reflected WGSL stage of a render program. The graph compiler
// treats the source as opaque and relies on the reflected metadata to validate declared bind
// group layouts and render target counts before any GPU object is created.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for labels and error reporting.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the render stage this shader supplies.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex or ShaderTypeFragment
	ShaderType() ShaderType

	// EntryPoint returns the entry point function name for this shader's stage.
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs_main")
	EntryPoint() string

	// BindGroupLayoutDescriptor retrieves the reflected layout of one bind group.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the reflected layout
	//   - bool: false if the shader declares nothing in the group
	BindGroupLayoutDescriptor(group int) (wgpu.BindGroupLayoutDescriptor, bool)

	// BindGroupLayoutDescriptors retrieves all reflected bind group layouts keyed by group index.
	// Entry visibility is set to this shader's stage.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the WGSL variable name declared at a group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if nothing is declared there
	BindGroupVarName(group, binding int) string

	// VertexLayouts returns the vertex buffer layouts reflected from the vertex input struct.
	// Fragment shaders return nil.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts in slot order
	VertexLayouts() []wgpu.VertexBufferLayout

	// FragmentOutputs returns the number of @location outputs written by the fragment entry point,
	// or 0 when the shader is not a fragment shader or the outputs could not be reflected.
	//
	// Returns:
	//   - int: the number of colour outputs
	FragmentOutputs() int

	// Module builds the wgpu shader module descriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the module descriptor carrying the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader reads, pre-processes and reflects a WGSL file. It panics if the file cannot be read
// or processed, which makes it suitable for package-level program declarations.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the render stage the file supplies
//   - sourcePath: the file path to read WGSL source from
//
// Returns:
//   - Shader: the reflected shader
func NewShader(key string, shaderType ShaderType, sourcePath string) Shader {
	if sourcePath == "" {
		panic(fmt.Sprintf("shader: %s must have a valid source path", key))
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		panic(fmt.Sprintf("shader: failed to read source file %q: %v", sourcePath, err))
	}
	s, err := NewShaderFromSource(key, shaderType, string(data))
	if err != nil {
		panic(fmt.Sprintf("shader: %q: %v", sourcePath, err))
	}
	return s
}

// NewShaderFromSource pre-processes and reflects WGSL source held in memory.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the render stage the source supplies
//   - source: the raw WGSL source, which may contain @oxy: annotations
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if pre-processing fails or the stage entry point is missing
func NewShaderFromSource(key string, shaderType ShaderType, source string) (Shader, error) {
	processed, err := NewPreProcessor().Process(source)
	if err != nil {
		return nil, fmt.Errorf("failed to pre-process shader source: %w", err)
	}

	s := &shader{
		key:        key,
		source:     processed,
		shaderType: shaderType,
	}

	cleaned := stripComments(processed)
	s.entryPoint = parseEntryPoint(cleaned, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no @%s entry point found", key, shaderType)
	}

	structs := parseStructBlocks(cleaned)
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(cleaned, structs, shaderType.Visibility())
	switch shaderType {
	case ShaderTypeVertex:
		s.vertexLayouts = parseVertexLayouts(structs)
	case ShaderTypeFragment:
		s.fragmentOutputs = parseFragmentOutputs(cleaned, s.entryPoint, structs)
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) BindGroupLayoutDescriptor(group int) (wgpu.BindGroupLayoutDescriptor, bool) {
	desc, ok := s.bindGroupLayoutDescriptors[group]
	return desc, ok
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) FragmentOutputs() int {
	return s.fragmentOutputs
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
}
