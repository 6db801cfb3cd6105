package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampSize(t *testing.T) {
	w := &engineWindow{minWidth: 320, minHeight: 200, maxWidth: 1920}

	width, height := w.clampSize(100, 100)
	assert.Equal(t, 320, width)
	assert.Equal(t, 200, height)

	width, height = w.clampSize(4000, 3000)
	assert.Equal(t, 1920, width)
	assert.Equal(t, 3000, height)
}

func TestClosedWindowIsNotRunning(t *testing.T) {
	w := &engineWindow{}
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.ErrorIs(t, w.Close(), ErrNotInitialized)

	w.internalWindow = &glfwWindow{closed: true}
	assert.False(t, w.IsRunning())
	assert.NoError(t, w.Close())
}

func TestMouseButtonString(t *testing.T) {
	assert.Equal(t, "right", MouseButtonRight.String())
	assert.Equal(t, "MouseButton(7)", MouseButton(7).String())
}
