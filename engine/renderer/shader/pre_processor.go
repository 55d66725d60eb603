package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/camera"
	"github.com/Carmen-Shannon/oxy-graph/engine/light"
	"github.com/Carmen-Shannon/oxy-graph/engine/mesh"
)

// registryEntry pairs an embedded WGSL struct definition with its type name.
type registryEntry struct {
	Source string
	Type   string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	structRegistry map[AnnotationArg]registryEntry
	addressSpaces  map[AnnotationArg]string
	declarations   []Annotation
}

// PreProcessor expands @oxy: annotations in WGSL source into the engine's struct definitions and
// binding declarations.
type PreProcessor interface {
	// Process replaces every annotation in source with its generated WGSL.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if an annotation is malformed or references an unknown type
	Process(source string) (string, error)

	// Declarations returns the @oxy:group annotations seen by the last Process call, in source order.
	//
	// Returns:
	//   - []Annotation: the generated binding declarations
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's GPU structs registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgCamera:           {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
			AnnotationArgMeshVertex:       {Source: mesh.MeshVertexSource, Type: "MeshVertex"},
			AnnotationArgScreenQuadVertex: {Source: mesh.ScreenQuadVertexSource, Type: "ScreenQuadVertex"},
			AnnotationArgLight:            {Source: light.GPULightUniformSource, Type: "LightUniform"},
		},
		addressSpaces: map[AnnotationArg]string{
			annotationArgUniform: "var<uniform>",
			annotationArgRead:    "var<storage, read>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	structTypes := make([]AnnotationArg, 0, len(p.structRegistry))
	for k := range p.structRegistry {
		structTypes = append(structTypes, k)
	}
	slices.Sort(structTypes)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1, structTypes)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			out = append(out, p.structRegistry[a.Args[0]].Source)
		case AnnotationTypeBindingGroup:
			entry := p.structRegistry[a.Args[2]]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", a.Group, a.Binding, p.addressSpaces[a.Args[0]], a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
