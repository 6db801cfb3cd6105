package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVecNear(t *testing.T, want, got common.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3, "component %d", i)
	}
}

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.False(t, c.Orthographic())
	assert.Equal(t, float32(10), c.OrthographicSize())
	assert.Equal(t, float32(60), c.FieldOfView())
	assert.Equal(t, float32(0.5), c.Aspect())
	assert.Equal(t, float32(0.01), c.Near())
	assert.Equal(t, float32(1000), c.Far())
}

func TestProjectionMatrix(t *testing.T) {
	c := NewCamera(WithFieldOfView(90), WithAspect(2), WithClip(0.1, 100))
	assert.Equal(t, common.Perspective(common.DegToRad(90), 2, 0.1, 100), c.ProjectionMatrix())

	c.SetOrthographic(true)
	c.SetOrthographicSize(10)
	p := c.ProjectionMatrix()
	assert.InDelta(t, 0.2, p[0], 1e-6)
	assert.InDelta(t, 0.4, p[5], 1e-6)
	assert.Equal(t, float32(1), p[15])
}

func TestViewMatrixIsInverseWorld(t *testing.T) {
	assert.Equal(t, common.Identity(), NewCamera().ViewMatrix())

	s := scene.NewScene()
	n := s.CreateChild("camera")
	n.SetLocalPosition(common.Vec3{0, 0, 5})
	c, err := scene.AddComponent(n, NewCamera())
	require.NoError(t, err)

	assertVecNear(t, common.Vec3{}, c.ViewMatrix().MulPoint(common.Vec3{0, 0, 5}))

	view := c.RenderView()
	assertVecNear(t, common.Vec3{0, 0, 5}, view.Position())
	assertVecNear(t, common.Vec3{0, 0, -1}, view.Forward())
	assert.Equal(t, view.Projection.Mul(view.View), view.ViewProjection)
}

func TestCameraDescribe(t *testing.T) {
	name, props := NewCamera(WithOrthographic(4)).(scene.Describer).Describe()
	assert.Equal(t, "Camera", name)
	assert.Equal(t, true, props["orthographic"])
	assert.Equal(t, float32(4), props["orthographicSize"])
}

func TestOrbitControllerPlacesNode(t *testing.T) {
	s := scene.NewScene()
	parent := s.CreateChild("rig")
	parent.SetLocalPosition(common.Vec3{10, 0, 0})
	n := parent.CreateChild("camera")

	oc, err := scene.AddComponent(n, NewOrbitController(WithTarget(common.Vec3{1, 2, 3}), WithRadius(100)))
	require.NoError(t, err)
	oc.Update(0)

	elev := math32.Pi / 6
	want := common.Vec3{1, 2 + 100*math32.Sin(elev), 3 + 100*math32.Cos(elev)}
	assertVecNear(t, want, oc.Position())
	assertVecNear(t, want, n.WorldPosition())
	assertVecNear(t, common.Vec3{1, 2, 3}.Sub(want).Normalize(), n.Forward())
}

func TestOrbitControllerInput(t *testing.T) {
	oc := NewOrbitController()

	oc.HandleMouseMove(0, 0)
	oc.HandleMouseMove(40, 0)
	oc.Update(0)
	assert.Equal(t, float32(0), oc.Azimuth())

	oc.HandleDrag(true, 0, 0)
	oc.HandleMouseMove(10, 0)
	oc.Update(0)
	assert.InDelta(t, 0.05, oc.Azimuth(), 1e-6)
	oc.HandleDrag(false, 10, 0)

	oc.HandleScroll(2)
	oc.Update(0)
	assert.Equal(t, float32(220), oc.Radius())

	oc.HandleKey(common.KeyD, true)
	oc.SetAzimuth(0)
	oc.Update(1)
	assertVecNear(t, common.Vec3{50, 0, 0}, oc.Target())
	oc.HandleKey(common.KeyD, false)
	oc.Update(1)
	assertVecNear(t, common.Vec3{50, 0, 0}, oc.Target())
}

func TestOrbitControllerBounds(t *testing.T) {
	oc := NewOrbitController(WithRadiusBounds(5, 50), WithElevationBounds(0, 1))
	assert.Equal(t, float32(50), oc.Radius())

	oc.SetRadius(1)
	assert.Equal(t, float32(5), oc.Radius())
	oc.Zoom(-100)
	assert.Equal(t, float32(50), oc.Radius())

	oc.SetElevation(3)
	assert.Equal(t, float32(1), oc.Elevation())
	oc.Orbit(0.5, -4)
	assert.Equal(t, float32(0), oc.Elevation())
	assert.Equal(t, float32(0.5), oc.Azimuth())
}

func TestFlyControllerMoves(t *testing.T) {
	s := scene.NewScene()
	n := s.CreateChild("camera")
	fc, err := scene.AddComponent(n, NewFlyController())
	require.NoError(t, err)

	fc.HandleKey(common.KeyW, true)
	fc.Update(2)
	assertVecNear(t, common.Vec3{0, 0, -10}, n.WorldPosition())

	fc.HandleKey(common.KeyW, false)
	fc.HandleKey(common.KeyD, true)
	fc.HandleKey(common.KeyE, true)
	fc.Update(1)
	assertVecNear(t, common.Vec3{5, 5, -10}, n.WorldPosition())

	// An arrow key and its letter alias move at the normal speed.
	fc.HandleKey(common.KeyD, false)
	fc.HandleKey(common.KeyE, false)
	fc.HandleKey(common.KeyLeft, true)
	fc.HandleKey(common.KeyA, true)
	fc.Update(1)
	assertVecNear(t, common.Vec3{0, 5, -10}, n.WorldPosition())
}

func TestFlyControllerLook(t *testing.T) {
	s := scene.NewScene()
	n := s.CreateChild("camera")
	fc, err := scene.AddComponent(n, NewFlyController(WithMouseSensitivity(0.005)))
	require.NoError(t, err)

	fc.HandleMouseMove(0, 0)
	fc.HandleMouseMove(100, 0)
	fc.Update(0)
	assertVecNear(t, common.Vec3{0, 0, -1}, n.Forward())

	free, err := scene.AddComponent(s.CreateChild("free"), NewFlyController(WithFreeLook()))
	require.NoError(t, err)
	free.HandleMouseMove(0, 0)
	free.HandleMouseMove(100, 0)
	free.Update(0)
	assertVecNear(t, common.Vec3{math32.Sin(0.5), 0, -math32.Cos(0.5)}, free.Node().Forward())

	free.HandleMouseMove(100, 100)
	free.Update(0)
	assert.Less(t, free.Node().Forward()[1], float32(0))
	assert.InDelta(t, 0, free.Node().Right()[1], 1e-5)
}
