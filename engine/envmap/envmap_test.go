package envmap

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cubeDevice struct {
	device.Device
	textures int
}

func (d *cubeDevice) CreateTexture(device.TextureTarget, int, int, [][]byte) (device.Handle, error) {
	d.textures++
	return device.Handle(d.textures), nil
}

type recordingBuilder struct {
	dev     *cubeDevice
	targets []*texture.CubeMap
	scenes  []scene.Scene
	views   [][]camera.RenderView
	err     error
}

func (b *recordingBuilder) Device() device.Device {
	return b.dev
}

func (b *recordingBuilder) RenderCubeMap(target *texture.CubeMap, s scene.Scene, views []camera.RenderView) error {
	if b.err != nil {
		return b.err
	}
	b.targets = append(b.targets, target)
	b.scenes = append(b.scenes, s)
	b.views = append(b.views, views)
	return nil
}

func assertVecNear(t *testing.T, want, got common.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d", i)
	}
}

func TestFaceViews(t *testing.T) {
	pos := common.Vec3{1, 2, 3}
	views := FaceViews(pos)
	require.Len(t, views, device.CubeFaces)

	for i, v := range views {
		assertVecNear(t, pos, v.Position())
		assertVecNear(t, cubeForward[i], v.Forward())
		assert.InDelta(t, 1, v.Projection[0], 1e-5)
		assert.InDelta(t, 1, v.Projection[5], 1e-5)
	}
}

func TestBuildRendersOwningScene(t *testing.T) {
	s := scene.NewScene()
	n := s.CreateChild("probe")
	n.SetLocalPosition(common.Vec3{0, 5, 0})
	e, err := scene.AddComponent(n, NewEnvironmentMap(WithResolution(32)))
	require.NoError(t, err)
	assert.Nil(t, e.CubeMap())

	b := &recordingBuilder{dev: &cubeDevice{}}
	require.NoError(t, e.Build(b))
	require.NotNil(t, e.CubeMap())
	assert.Equal(t, 32, e.CubeMap().Resolution)
	assert.Same(t, e.CubeMap(), b.targets[0])
	assert.Same(t, s, b.scenes[0])
	assertVecNear(t, common.Vec3{0, 5, 0}, b.views[0][3].Position())

	require.NoError(t, e.Build(b))
	assert.Equal(t, 1, b.dev.textures)

	e.SetResolution(64)
	require.NoError(t, e.Build(b))
	assert.Equal(t, 2, b.dev.textures)
	assert.Equal(t, 64, e.CubeMap().Resolution)
}

func TestBuildErrors(t *testing.T) {
	b := &recordingBuilder{dev: &cubeDevice{}}
	assert.ErrorIs(t, NewEnvironmentMap().Build(b), ErrNotInScene)

	s := scene.NewScene()
	n := s.CreateChild("probe")
	e, err := scene.AddComponent(n, NewEnvironmentMap())
	require.NoError(t, err)
	require.NoError(t, n.Remove())
	assert.ErrorIs(t, e.Build(b), ErrNotInScene)

	s = scene.NewScene()
	e, err = scene.AddComponent(s.CreateChild("probe"), NewEnvironmentMap())
	require.NoError(t, err)
	b.err = errors.New("device lost")
	assert.ErrorContains(t, e.Build(b), "device lost")
	assert.Nil(t, e.CubeMap())
}
