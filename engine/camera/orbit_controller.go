package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/chewxy/math32"
)

type orbitController struct {
	scene.ComponentBase
	mu sync.Mutex

	input inputState

	target common.Vec3

	radius    float32
	azimuth   float32 // horizontal angle around the Y axis
	elevation float32 // vertical angle from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32
}

// OrbitController places its node on a sphere around a target point, looking at the target.
// Dragging orbits, scrolling zooms and the movement keys pan the target.
type OrbitController interface {
	Controller

	// Position returns the point on the orbit sphere the node is placed at.
	//
	// Returns:
	//   - common.Vec3: the orbit position in world space
	Position() common.Vec3

	// Target returns the orbit center.
	Target() common.Vec3

	// SetTarget moves the orbit center.
	SetTarget(t common.Vec3)

	// Radius returns the distance from the target.
	Radius() float32

	// SetRadius sets the distance from the target, clamped to the radius bounds.
	SetRadius(radius float32)

	// Azimuth returns the horizontal angle around the Y axis in radians.
	Azimuth() float32

	// SetAzimuth sets the horizontal angle in radians.
	SetAzimuth(azimuth float32)

	// Elevation returns the vertical angle above the horizontal plane in radians.
	Elevation() float32

	// SetElevation sets the vertical angle in radians, clamped to the elevation bounds.
	SetElevation(elevation float32)

	// Zoom moves toward (positive delta) or away from the target by delta times the zoom speed.
	//
	// Parameters:
	//   - delta: zoom amount
	Zoom(delta float32)

	// Orbit rotates around the target.
	//
	// Parameters:
	//   - dAzimuth: change of the horizontal angle in radians
	//   - dElevation: change of the vertical angle in radians, clamped to the elevation bounds
	Orbit(dAzimuth, dElevation float32)

	// Pan moves the target and the orbit position together along the view axes. The right
	// axis stays horizontal.
	//
	// Parameters:
	//   - right, up, forward: distances along the view axes
	Pan(right, up, forward float32)
}

var _ OrbitController = &orbitController{}

// NewOrbitController creates an orbit controller.
// Defaults: radius 250 within [20, 2000], elevation 30 degrees within [0.05, pi/2 - 0.1],
// mouse sensitivity 0.005 radians per pixel, zoom speed 15, pan speed 50 units per second.
//
// Parameters:
//   - options: variadic list of OrbitControllerOption functions
//
// Returns:
//   - OrbitController: a controller ready to attach with scene.AddComponent
func NewOrbitController(options ...OrbitControllerOption) OrbitController {
	oc := &orbitController{
		input: newInputState(),

		radius:    250.0,
		elevation: math32.Pi / 6,

		minRadius:    20.0,
		maxRadius:    2000.0,
		minElevation: 0.05,
		maxElevation: math32.Pi/2 - 0.1,

		mouseSensitivity: 0.005,
		zoomSpeed:        15.0,
		panSpeed:         50.0,
	}
	for _, option := range options {
		option(oc)
	}
	oc.radius = common.Clamp(oc.radius, oc.minRadius, oc.maxRadius)
	oc.elevation = common.Clamp(oc.elevation, oc.minElevation, oc.maxElevation)
	return oc
}

func (oc *orbitController) HandleKey(keyCode uint32, down bool) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.input.key(keyCode, down)
}

func (oc *orbitController) HandleMouseMove(x, y int32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.input.move(x, y, oc.input.dragging)
}

func (oc *orbitController) HandleDrag(down bool, x, y int32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.input.drag(down, x, y)
}

func (oc *orbitController) HandleScroll(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.input.scroll += delta
}

// Update applies the input accumulated since the last frame and moves the node.
func (oc *orbitController) Update(dt float32) {
	oc.mu.Lock()
	move := oc.input.axes().Scale(oc.panSpeed * dt)
	dx, dy := oc.input.takeMouse()
	scroll := oc.input.takeScroll()

	oc.orbit(dx*oc.mouseSensitivity, -dy*oc.mouseSensitivity)
	if scroll != 0 {
		oc.zoom(scroll)
	}
	if move != common.Vec3Zero {
		oc.pan(move[0], move[1], move[2])
	}
	pos, target := oc.position(), oc.target
	oc.mu.Unlock()

	if n := oc.Node(); n != nil {
		placeNode(n, lookAtWorld(pos, target))
	}
}

func (oc *orbitController) position() common.Vec3 {
	sinElev, cosElev := math32.Sincos(oc.elevation)
	sinAzim, cosAzim := math32.Sincos(oc.azimuth)
	return oc.target.Add(common.Vec3{
		oc.radius * cosElev * sinAzim,
		oc.radius * sinElev,
		oc.radius * cosElev * cosAzim,
	})
}

// localAxes returns the pan axes: a horizontal right vector, the view up vector and the
// look direction.
func (oc *orbitController) localAxes() (right, up, forward common.Vec3) {
	back := oc.position().Sub(oc.target)
	if back.LengthSquared() < 1e-16 {
		return
	}
	back = back.Normalize()
	right = common.Vec3{back[2], 0, -back[0]}
	if right.LengthSquared() < 1e-16 {
		return common.Vec3{}, common.Vec3{}, common.Vec3{}
	}
	right = right.Normalize()
	up = back.Cross(right)
	forward = back.Scale(-1)
	return right, up, forward
}

func (oc *orbitController) zoom(delta float32) {
	oc.radius = common.Clamp(oc.radius-delta*oc.zoomSpeed, oc.minRadius, oc.maxRadius)
}

func (oc *orbitController) orbit(dAzimuth, dElevation float32) {
	oc.azimuth += dAzimuth
	oc.elevation = common.Clamp(oc.elevation+dElevation, oc.minElevation, oc.maxElevation)
}

func (oc *orbitController) pan(right, up, forward float32) {
	r, u, f := oc.localAxes()
	oc.target = oc.target.Add(r.Scale(right)).Add(u.Scale(up)).Add(f.Scale(forward))
}

func (oc *orbitController) Position() common.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.position()
}

func (oc *orbitController) Target() common.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target
}

func (oc *orbitController) SetTarget(t common.Vec3) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.target = t
}

func (oc *orbitController) Radius() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.radius
}

func (oc *orbitController) SetRadius(radius float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius = common.Clamp(radius, oc.minRadius, oc.maxRadius)
}

func (oc *orbitController) Azimuth() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.azimuth
}

func (oc *orbitController) SetAzimuth(azimuth float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.azimuth = azimuth
}

func (oc *orbitController) Elevation() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.elevation
}

func (oc *orbitController) SetElevation(elevation float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.elevation = common.Clamp(elevation, oc.minElevation, oc.maxElevation)
}

func (oc *orbitController) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.zoom(delta)
}

func (oc *orbitController) Orbit(dAzimuth, dElevation float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.orbit(dAzimuth, dElevation)
}

func (oc *orbitController) Pan(right, up, forward float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.pan(right, up, forward)
}

func (oc *orbitController) Describe() (string, map[string]any) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return "OrbitController", map[string]any{
		"target":    oc.target,
		"radius":    oc.radius,
		"azimuth":   oc.azimuth,
		"elevation": oc.elevation,
	}
}

// lookAtWorld returns the world transform of an object at eye facing center.
func lookAtWorld(eye, center common.Vec3) common.Mat4 {
	world, ok := common.LookAt(eye, center, common.Vec3Up).Inverse()
	if !ok {
		return common.Translation(eye)
	}
	return world
}
