package camera

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

// Controller is a component that drives its node from user input. Input handlers may be
// called from window callbacks; the accumulated input is applied to the node in Update,
// which runs on the render loop.
type Controller interface {
	scene.Component
	scene.Updater

	// HandleKey records a key press or release.
	//
	// Parameters:
	//   - keyCode: the key code (see the common.Key constants)
	//   - down: true on press, false on release
	HandleKey(keyCode uint32, down bool)

	// HandleMouseMove records the cursor position in window coordinates.
	//
	// Parameters:
	//   - x, y: the cursor position in pixels
	HandleMouseMove(x, y int32)

	// HandleDrag records the start or end of a drag with the look button held.
	//
	// Parameters:
	//   - down: true when the button is pressed
	//   - x, y: the cursor position in pixels
	HandleDrag(down bool, x, y int32)

	// HandleScroll records scroll wheel movement.
	//
	// Parameters:
	//   - delta: scroll offset, positive away from the user
	HandleScroll(delta float32)
}

// inputState accumulates input between two Update calls. Callers hold the controller lock.
type inputState struct {
	keys     map[uint32]bool
	dragging bool
	tracking bool
	lastX    int32
	lastY    int32
	dx       float32
	dy       float32
	scroll   float32
}

func newInputState() inputState {
	return inputState{keys: make(map[uint32]bool)}
}

func (s *inputState) key(keyCode uint32, down bool) {
	if down {
		s.keys[keyCode] = true
		return
	}
	delete(s.keys, keyCode)
}

// move records a cursor position and, when accumulate is set, the delta since the last one.
func (s *inputState) move(x, y int32, accumulate bool) {
	if s.tracking && accumulate {
		s.dx += float32(x - s.lastX)
		s.dy += float32(y - s.lastY)
	}
	s.lastX, s.lastY = x, y
	s.tracking = true
}

func (s *inputState) drag(down bool, x, y int32) {
	s.dragging = down
	s.lastX, s.lastY = x, y
	s.tracking = true
}

// axes sums the held movement keys into right, up and forward components, each clamped
// so that a key and its arrow alias do not double the speed.
func (s *inputState) axes() common.Vec3 {
	var v common.Vec3
	for key := range s.keys {
		if axis, sign, ok := common.MovementKey(key); ok {
			v[axis] += sign
		}
	}
	for i := range v {
		v[i] = common.Clamp(v[i], -1, 1)
	}
	return v
}

func (s *inputState) takeMouse() (dx, dy float32) {
	dx, dy = s.dx, s.dy
	s.dx, s.dy = 0, 0
	return dx, dy
}

func (s *inputState) takeScroll() float32 {
	d := s.scroll
	s.scroll = 0
	return d
}

// placeNode sets the node's local transform so that its world transform becomes world.
func placeNode(n scene.Node, world common.Mat4) {
	local := world
	if parent := n.Parent(); parent != nil {
		inv, ok := parent.WorldTransform().Inverse()
		if !ok {
			common.Logger().Warn("camera: parent world transform is singular", "node", n.ID())
			return
		}
		local = inv.Mul(world)
	}
	p, r, s := common.DecomposeTRS(local)
	n.SetLocalPosition(p)
	n.SetLocalRotation(r)
	n.SetLocalScale(s)
}
