package graph

// compileConfig holds the settings applied by CompileOption values.
type compileConfig struct {
	validateShaders bool
}

// CompileOption is a functional option used to configure Finalize.
type CompileOption func(*compileConfig)

// WithShaderValidation compiles every node's WGSL with naga before any device call, so shader
// errors surface as ErrInvalidDescriptor instead of a device failure.
//
// Parameters:
//   - enabled: whether to validate shaders
//
// Returns:
//   - CompileOption: a function that applies the setting
func WithShaderValidation(enabled bool) CompileOption {
	return func(c *compileConfig) {
		c.validateShaders = enabled
	}
}
