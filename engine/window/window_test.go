package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowOptions(t *testing.T) {
	w := newEngineWindow(nil)
	assert.Equal(t, "oxy-graph", w.title)
	assert.True(t, w.resizable)
	width, height := w.Size()
	assert.Equal(t, 1280, width)
	assert.Equal(t, 720, height)

	w = newEngineWindow([]WindowBuilderOption{
		WithTitle("graph"),
		WithSize(800, 600),
		WithSize(0, 100),
		WithMinSize(64, 48),
		WithResizable(false),
	})
	assert.Equal(t, "graph", w.title)
	assert.False(t, w.resizable)
	assert.Equal(t, 800, w.Width())
	assert.Equal(t, 600, w.Height())
	assert.Equal(t, 64, w.minWidth)
	assert.Equal(t, 48, w.minHeight)
}

func TestResizedNotifiesCallback(t *testing.T) {
	w := newEngineWindow(nil)
	var got [2]int
	w.SetResizeCallback(func(width, height int) { got = [2]int{width, height} })

	w.resized(1024, 0)
	assert.Equal(t, [2]int{1024, 0}, got)
	assert.Equal(t, 1024, w.Width())
	assert.Zero(t, w.Height())
}

func TestUninitializedWindow(t *testing.T) {
	w := newEngineWindow(nil)
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.Error(t, w.Close())
	w.RequestClose()
	w.ProcessMessages()
}
