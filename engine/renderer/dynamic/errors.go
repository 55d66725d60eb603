package dynamic

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/graph"
)

// ErrRebuild matches every failure of a rebuild function or of uploading its result.
var ErrRebuild = errors.New("dynamic rebuild failed")

// RebuildError is the failure of one binding.
type RebuildError struct {
	ComponentType reflect.Type
	Label         graph.Label
	Err           error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("%v: %v into buffer group %q: %v", ErrRebuild, e.ComponentType, e.Label, e.Err)
}

// Unwrap exposes ErrRebuild and the cause.
func (e *RebuildError) Unwrap() []error {
	return []error{ErrRebuild, e.Err}
}

// FrameError collects the bindings that failed during one frame. The passes drawing their buffer
// groups were skipped; every other binding ran.
type FrameError struct {
	Frame    uint64
	Failures []*RebuildError
}

func (e *FrameError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("frame %d: %d binding(s) failed: %s", e.Frame, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *FrameError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}
