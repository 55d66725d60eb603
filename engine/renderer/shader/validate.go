package shader

import (
	"fmt"

	"github.com/gogpu/naga"
)

// Validate compiles the shader's WGSL to SPIR-V with naga and reports any front-end or lowering
// error. It needs no GPU, so it can run before any device object exists.
//
// Parameters:
//   - s: the shader to validate
//
// Returns:
//   - error: a descriptive error if the WGSL does not compile
func Validate(s Shader) error {
	if _, err := naga.Compile(s.Source()); err != nil {
		return fmt.Errorf("shader %s: WGSL validation failed: %w", s.Key(), err)
	}
	return nil
}
