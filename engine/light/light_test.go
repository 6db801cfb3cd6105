package light

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight()
	assert.Equal(t, common.ColorWhite, l.Color())
	assert.Equal(t, float32(50), l.Range())
	assert.Equal(t, float32(1), l.Intensity())
	assert.Equal(t, FalloffQuadratic, l.Falloff())
	assert.True(t, l.DiffuseEnabled())
	assert.True(t, l.SpecularEnabled())
	assert.Zero(t, l.ID())
	assert.Nil(t, l.Node())
}

func TestLightOptions(t *testing.T) {
	l := NewLight(
		WithColor(common.ColorCyan),
		WithRange(12),
		WithIntensity(3),
		WithFalloff(FalloffConstant),
		WithContributions(true, false),
	)
	assert.Equal(t, common.ColorCyan, l.Color())
	assert.Equal(t, float32(12), l.Range())
	assert.Equal(t, float32(3), l.Intensity())
	assert.Equal(t, FalloffConstant, l.Falloff())
	assert.False(t, l.SpecularEnabled())
}

func TestLightAttachesToScene(t *testing.T) {
	s := scene.NewScene()
	n := s.CreateChild("lamp")

	l, err := scene.AddComponent(n, NewLight())
	require.NoError(t, err)
	assert.NotZero(t, l.ID())
	assert.Equal(t, n, l.Node())

	found, ok := scene.GetComponent[Light](n)
	require.True(t, ok)
	assert.Same(t, l, found)
	assert.Len(t, scene.AllComponents[Light](s), 1)
}

func TestParseFalloff(t *testing.T) {
	f, err := ParseFalloff("Linear")
	require.NoError(t, err)
	assert.Equal(t, FalloffLinear, f)
	assert.Equal(t, "linear", f.String())

	_, err = ParseFalloff("cubic")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	name, props := NewLight(WithRange(5)).(scene.Describer).Describe()
	assert.Equal(t, "Light", name)
	assert.Equal(t, float32(5), props["range"])
	assert.Equal(t, "quadratic", props["falloff"])
}
