package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

type flyController struct {
	scene.ComponentBase
	mu sync.Mutex

	input inputState

	moveSpeed        float32
	mouseSensitivity float32
	freeLook         bool
}

// FlyController moves its node like a free flying camera: W/S move along the look direction,
// A/D strafe, E/Q move up and down. Mouse movement yaws around the world up axis and pitches
// around the node's right axis, while dragging or, with free look, on every move.
type FlyController interface {
	Controller

	// MoveSpeed returns the movement speed in units per second.
	MoveSpeed() float32

	// SetMoveSpeed sets the movement speed in units per second.
	SetMoveSpeed(speed float32)

	// MouseSensitivity returns the rotation in radians per pixel of mouse movement.
	MouseSensitivity() float32
}

var _ FlyController = &flyController{}

// NewFlyController creates a fly controller.
// Defaults: 5 units per second, 0.005 radians per pixel, look only while dragging.
//
// Parameters:
//   - options: variadic list of FlyControllerOption functions
//
// Returns:
//   - FlyController: a controller ready to attach with scene.AddComponent
func NewFlyController(options ...FlyControllerOption) FlyController {
	fc := &flyController{
		input:            newInputState(),
		moveSpeed:        5,
		mouseSensitivity: 0.005,
	}
	for _, option := range options {
		option(fc)
	}
	return fc
}

func (fc *flyController) HandleKey(keyCode uint32, down bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.input.key(keyCode, down)
}

func (fc *flyController) HandleMouseMove(x, y int32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.input.move(x, y, fc.freeLook || fc.input.dragging)
}

func (fc *flyController) HandleDrag(down bool, x, y int32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.input.drag(down, x, y)
}

// HandleScroll is a no-op; flying has no zoom.
func (fc *flyController) HandleScroll(float32) {}

func (fc *flyController) Update(dt float32) {
	fc.mu.Lock()
	move := fc.input.axes()
	dx, dy := fc.input.takeMouse()
	speed, sens := fc.moveSpeed, fc.mouseSensitivity
	fc.mu.Unlock()

	n := fc.Node()
	if n == nil {
		return
	}

	if move != common.Vec3Zero {
		d := n.Right().Scale(move[0]).
			Add(n.Up().Scale(move[1])).
			Add(n.Forward().Scale(move[2]))
		n.SetWorldPosition(n.WorldPosition().Add(d.Scale(speed * dt)))
	}

	if dx != 0 || dy != 0 {
		yaw := common.QuatFromAxisAngle(common.Vec3Up, -dx*sens)
		pitch := common.QuatFromAxisAngle(common.Vec3{1, 0, 0}, -dy*sens)
		n.SetLocalRotation(yaw.Mul(n.LocalRotation()).Mul(pitch).Normalize())
	}
}

func (fc *flyController) MoveSpeed() float32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.moveSpeed
}

func (fc *flyController) SetMoveSpeed(speed float32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.moveSpeed = speed
}

func (fc *flyController) MouseSensitivity() float32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.mouseSensitivity
}

func (fc *flyController) Describe() (string, map[string]any) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return "FlyController", map[string]any{
		"moveSpeed":        fc.moveSpeed,
		"mouseSensitivity": fc.mouseSensitivity,
		"freeLook":         fc.freeLook,
	}
}
