package light

import "github.com/Carmen-Shannon/oxy-graph/common"

// LightBuilderOption is a functional option applied by NewLight.
type LightBuilderOption func(l *lightImpl)

// WithDirection sets the direction towards the light. A zero vector keeps DefaultDirection.
//
// Parameters:
//   - d: the direction
//
// Returns:
//   - LightBuilderOption: option function to apply
func WithDirection(d common.Vec3) LightBuilderOption {
	return func(l *lightImpl) {
		if d != (common.Vec3{}) {
			l.direction = d.Normalize()
		}
	}
}

// WithColor sets the linear RGB color. Default is white.
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = [3]float32{r, g, b}
	}
}

// WithIntensity sets the intensity. Default is 1.
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = max(intensity, 0)
	}
}

// WithAmbient sets the ambient fraction, clamped to [0, 1]. Default is 0.15.
func WithAmbient(ambient float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.ambient = max(0, min(ambient, 1))
	}
}
