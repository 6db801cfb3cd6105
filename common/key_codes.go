package common

// Key codes as reported by the window. Printable keys use their upper-case ASCII value,
// the rest follow GLFW.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyA = 65
	KeyD = 68
	KeyE = 69
	KeyQ = 81
	KeyS = 83
	KeyW = 87

	KeyRight    = 262
	KeyLeft     = 263
	KeyDown     = 264
	KeyUp       = 265
	KeyPageUp   = 266
	KeyPageDown = 267
)

// Movement axes indexed by MovementKey.
const (
	AxisRight = iota
	AxisUp
	AxisForward
)

// movementKeys binds WASD/QE and the arrow and page keys to a movement axis and direction.
var movementKeys = map[uint32]struct {
	axis int
	sign float32
}{
	KeyD: {AxisRight, 1}, KeyRight: {AxisRight, 1},
	KeyA: {AxisRight, -1}, KeyLeft: {AxisRight, -1},
	KeyE: {AxisUp, 1}, KeyPageUp: {AxisUp, 1},
	KeyQ: {AxisUp, -1}, KeyPageDown: {AxisUp, -1},
	KeyW: {AxisForward, 1}, KeyUp: {AxisForward, 1},
	KeyS: {AxisForward, -1}, KeyDown: {AxisForward, -1},
}

// MovementKey reports the axis and direction a key moves along.
//
// Parameters:
//   - keyCode: the key code
//
// Returns:
//   - int: AxisRight, AxisUp or AxisForward
//   - float32: +1 or -1
//   - bool: false if the key is not a movement key
func MovementKey(keyCode uint32) (int, float32, bool) {
	b, ok := movementKeys[keyCode]
	return b.axis, b.sign, ok
}
