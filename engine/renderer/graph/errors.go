package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this package matches exactly one of them with errors.Is.
var (
	// ErrDuplicateLabel means two descriptors in one namespace share a label.
	ErrDuplicateLabel = errors.New("duplicate label")
	// ErrUnknownLabel means a node or buffer group references a label with no descriptor.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrLayoutMismatch means a declared bind group layout does not satisfy the shader that uses it.
	ErrLayoutMismatch = errors.New("bind group layout mismatch")
	// ErrFormatMismatch means a texture cannot serve in the role a node gives it.
	ErrFormatMismatch = errors.New("texture format mismatch")
	// ErrTargetCount means a fragment shader writes a different number of outputs than the node has targets.
	ErrTargetCount = errors.New("colour target count mismatch")
	// ErrPassOrder means a pass samples a texture that is only written by the same or a later pass.
	ErrPassOrder = errors.New("texture read before write")
	// ErrInvalidDescriptor means a descriptor is malformed on its own.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	// ErrDeviceResource means the device failed to create a resource.
	ErrDeviceResource = errors.New("device resource failure")
)

// GraphError carries the context of a compile or rebind failure.
type GraphError struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Namespace and Label identify the offending resource, when there is one.
	Namespace Namespace
	Label     Label
	// Node is the shader node being compiled, when the failure is tied to one.
	Node Label
	// Err is the underlying cause, may be nil.
	Err error
}

func newError(kind error, ns Namespace, label, node Label, err error) *GraphError {
	return &GraphError{Kind: kind, Namespace: ns, Label: label, Node: node, Err: err}
}

func (e *GraphError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Node != "" {
		fmt.Fprintf(&b, ": node %q", e.Node)
	}
	if e.Label != "" {
		fmt.Fprintf(&b, ": %s %q", e.Namespace, e.Label)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *GraphError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
