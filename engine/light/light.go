package light

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

type lightImpl struct {
	mu *sync.RWMutex

	direction common.Vec3
	color     [3]float32
	intensity float32
	ambient   float32
}

// Light is a directional light, the sun of a scene. Composite passes read it as a LightUniform.
// Thread-safe for concurrent access.
type Light interface {
	// Direction returns the normalized direction from the scene towards the light.
	Direction() common.Vec3

	// Color returns the linear RGB color of the light.
	Color() [3]float32

	// Intensity returns the scalar applied to the diffuse and specular terms.
	Intensity() float32

	// Ambient returns the fraction of albedo lit regardless of orientation.
	Ambient() float32

	// SetDirection points the light. The direction is normalized; a zero vector is ignored.
	//
	// Parameters:
	//   - d: the direction towards the light
	SetDirection(d common.Vec3)

	// SetColor sets the linear RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: the color channels
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar applied to the diffuse and specular terms.
	//
	// Parameters:
	//   - intensity: the intensity, clamped at zero
	SetIntensity(intensity float32)

	// Uniform returns the light in its GPU layout.
	//
	// Returns:
	//   - GPULightUniform: the uniform contents
	Uniform() GPULightUniform
}

var _ Light = &lightImpl{}

// DefaultDirection is the direction of a light built without WithDirection: above and slightly in
// front of the origin.
var DefaultDirection = common.Vec3{0.4, 1, 0.6}

// NewLight creates a white directional light.
//
// Parameters:
//   - options: optional LightBuilderOption values
//
// Returns:
//   - Light: the light
func NewLight(options ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:        &sync.RWMutex{},
		direction: DefaultDirection.Normalize(),
		color:     [3]float32{1, 1, 1},
		intensity: 1,
		ambient:   0.15,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *lightImpl) Direction() common.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.direction
}

func (l *lightImpl) Color() [3]float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.intensity
}

func (l *lightImpl) Ambient() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ambient
}

func (l *lightImpl) SetDirection(d common.Vec3) {
	if d == (common.Vec3{}) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.direction = d.Normalize()
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = [3]float32{r, g, b}
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = max(intensity, 0)
}

func (l *lightImpl) Uniform() GPULightUniform {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return GPULightUniform{
		Direction: l.direction,
		Intensity: l.intensity,
		Color:     l.color,
		Ambient:   l.ambient,
	}
}
