package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/stretchr/testify/assert"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight()
	assert.InDelta(t, 1.0, l.Direction().Dot(l.Direction()), 1e-6, "direction is normalized")
	assert.Equal(t, [3]float32{1, 1, 1}, l.Color())
	assert.Equal(t, float32(1), l.Intensity())
	assert.Equal(t, float32(0.15), l.Ambient())
}

func TestOptionsAndSetters(t *testing.T) {
	l := NewLight(
		WithDirection(common.Vec3{0, 2, 0}),
		WithColor(1, 0, 0),
		WithIntensity(-3),
		WithAmbient(4),
	)
	assert.Equal(t, common.Vec3{0, 1, 0}, l.Direction())
	assert.Zero(t, l.Intensity())
	assert.Equal(t, float32(1), l.Ambient())

	l.SetDirection(common.Vec3{})
	assert.Equal(t, common.Vec3{0, 1, 0}, l.Direction(), "zero direction is ignored")
	l.SetDirection(common.Vec3{3, 0, 0})
	assert.Equal(t, common.Vec3{1, 0, 0}, l.Direction())
	l.SetIntensity(2)
	l.SetColor(0, 1, 0)
	assert.Equal(t, float32(2), l.Intensity())
	assert.Equal(t, [3]float32{0, 1, 0}, l.Color())
}

func TestUniformMarshal(t *testing.T) {
	l := NewLight(WithDirection(common.Vec3{0, 0, 1}), WithColor(0.5, 0.25, 1), WithIntensity(2), WithAmbient(0.1))
	u := l.Uniform()
	assert.Equal(t, 32, u.Size())

	buf := u.Marshal()
	assert.Len(t, buf, 32)
	f := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])) }
	assert.Equal(t, []float32{0, 0, 1, 2, 0.5, 0.25, 1, 0.1}, []float32{f(0), f(1), f(2), f(3), f(4), f(5), f(6), f(7)})
}
