package graphfile

// DescriptorSetBuilderOption configures (*File).DescriptorSet.
type DescriptorSetBuilderOption func(*buildConfig)

type buildConfig struct {
	decodeWorkers int
}

// WithDecodeWorkers sets how many image files are decoded at once. Zero or less uses one worker
// per CPU but one.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - DescriptorSetBuilderOption: a function that applies the worker count
func WithDecodeWorkers(n int) DescriptorSetBuilderOption {
	return func(c *buildConfig) {
		c.decodeWorkers = n
	}
}
