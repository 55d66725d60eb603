// annotations.go defines the @oxy: annotations understood by the WGSL pre-processor.
// Annotations are single-line WGSL comments that inject engine-owned struct definitions
// or generate @group/@binding declarations for them, so shader sources never drift from
// the Go types that marshal the bytes.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source of a registered struct.
	//
	// Syntax: //@oxy:include <struct_type>
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding variable declaration for a registered struct.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <struct_type>
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// AnnotationArg is a typed annotation argument: a struct type key or an address space key.
type AnnotationArg string

const (
	// AnnotationArgCamera identifies the CameraUniform struct (engine/camera).
	AnnotationArgCamera AnnotationArg = "camera"

	// AnnotationArgMeshVertex identifies the MeshVertex input struct (engine/mesh).
	AnnotationArgMeshVertex AnnotationArg = "mesh_vertex"

	// AnnotationArgScreenQuadVertex identifies the ScreenQuadVertex input struct (engine/mesh).
	AnnotationArgScreenQuadVertex AnnotationArg = "screen_quad_vertex"

	// AnnotationArgLight identifies the LightUniform struct (engine/light).
	AnnotationArgLight AnnotationArg = "light"
)

const (
	annotationArgUniform AnnotationArg = "storage_uniform"
	annotationArgRead    AnnotationArg = "storage_read"
)

// Annotation is one parsed @oxy: annotation.
type Annotation struct {
	Type    AnnotationType
	Args    []AnnotationArg
	Line    int
	Group   int
	Binding int
}

var validAddressSpaces = []AnnotationArg{annotationArgUniform, annotationArgRead}

// parseAnnotation parses one source line. Lines without the prefix return nil and no error.
func parseAnnotation(line string, lineNum int, structTypes []AnnotationArg) (*Annotation, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(line), annotationPrefix)
	if !ok {
		return nil, nil
	}
	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(structTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{Type: AnnotationTypeInclude, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires group, binding, address space, var name and struct type", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %w", lineNum, args[1], err)
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q: %w", lineNum, args[2], err)
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		if !slices.Contains(structTypes, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   group,
			Binding: binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
