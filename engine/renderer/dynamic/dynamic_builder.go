package dynamic

// DynamicPipelineBuilderOption is a functional option used to configure a DynamicPipeline at creation time.
type DynamicPipelineBuilderOption func(*dynamicPipeline)

// WithHaltOnError stops a frame at the first failing binding instead of running the rest.
// The failing binding's buffer group is invalidated either way.
//
// Parameters:
//   - halt: whether to stop at the first failure
//
// Returns:
//   - DynamicPipelineBuilderOption: a function that applies the setting
func WithHaltOnError(halt bool) DynamicPipelineBuilderOption {
	return func(d *dynamicPipeline) {
		d.haltOnError = halt
	}
}
