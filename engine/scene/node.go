package scene

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

type node struct {
	id      uint64
	name    string
	enabled bool
	scene   *scene
	parent  *node
	root    bool

	children   []*node
	components []Component

	position common.Vec3
	rotation common.Quat
	scale    common.Vec3

	world common.Mat4
	dirty bool
}

// Node is a single object in a scene hierarchy. A node owns a local transform, an ordered
// list of children that move relative to it, and the components attached to it.
//
// Nodes are created with CreateChild only. A Node is not safe for concurrent use: the
// hierarchy is mutated and read from the render goroutine. Structural edits (CreateChild,
// SetParent, RemoveChild) made from inside a Walk callback are not supported.
type Node interface {
	// ID returns the node's identifier. The scene root has id 0; every other node has a
	// unique, never reused id starting at 1.
	//
	// Returns:
	//   - uint64: the node id
	ID() uint64

	// Name returns the node's name. Names are not unique.
	Name() string

	// SetName sets the node's name.
	SetName(name string)

	// Enabled reports whether the node and its subtree take part in rendering.
	Enabled() bool

	// SetEnabled enables or disables the node. A disabled node hides its whole subtree.
	SetEnabled(enabled bool)

	// Scene returns the scene the node belongs to, or nil once the node has been removed.
	Scene() Scene

	// Parent returns the node's parent. Top-level nodes return the Scene itself;
	// the scene root and removed nodes return nil.
	Parent() Node

	// Children returns a copy of the node's ordered child list.
	Children() []Node

	// Components returns a copy of the node's ordered component list.
	Components() []Component

	// LocalPosition returns the position relative to the parent.
	LocalPosition() common.Vec3

	// SetLocalPosition sets the position relative to the parent and marks the subtree dirty.
	//
	// Parameters:
	//   - p: the new local position
	SetLocalPosition(p common.Vec3)

	// LocalRotation returns the rotation relative to the parent.
	LocalRotation() common.Quat

	// SetLocalRotation sets the rotation relative to the parent and marks the subtree dirty.
	//
	// Parameters:
	//   - q: the new local rotation
	SetLocalRotation(q common.Quat)

	// LocalScale returns the per-axis scale relative to the parent.
	LocalScale() common.Vec3

	// SetLocalScale sets the per-axis scale and marks the subtree dirty.
	//
	// Parameters:
	//   - s: the new local scale
	SetLocalScale(s common.Vec3)

	// TranslateLocal adds delta to the local position.
	TranslateLocal(delta common.Vec3)

	// RotateLocal post-multiplies the local rotation by q.
	RotateLocal(q common.Quat)

	// ScaleLocal multiplies the local scale component-wise by s.
	ScaleLocal(s common.Vec3)

	// LocalTransform composes the local position, rotation and scale into a matrix.
	LocalTransform() common.Mat4

	// WorldTransform returns the node's world transform, recomputing it first if it is dirty.
	WorldTransform() common.Mat4

	// WorldTransformRecompute is WorldTransform that also reports whether a recompute happened.
	//
	// Returns:
	//   - common.Mat4: the world transform
	//   - bool: true if the cached matrix was stale and has been recomputed
	WorldTransformRecompute() (common.Mat4, bool)

	// WorldPosition returns the translation of the world transform.
	WorldPosition() common.Vec3

	// SetWorldPosition sets the local position so the node ends up at p in world space.
	//
	// Parameters:
	//   - p: the desired world position
	SetWorldPosition(p common.Vec3)

	// Forward returns the normalized world space -Z axis of the node.
	Forward() common.Vec3

	// Right returns the normalized world space +X axis of the node.
	Right() common.Vec3

	// Up returns the normalized world space +Y axis of the node.
	Up() common.Vec3

	// Dirty reports whether the cached world transform is stale.
	Dirty() bool

	// UpdateHierarchy recomputes the world transform of every dirty node in the subtree.
	//
	// Parameters:
	//   - force: recompute every node regardless of its dirty flag
	UpdateHierarchy(force bool)

	// CreateChild creates a new node registered with the scene and parented to this node.
	//
	// Parameters:
	//   - name: the child's name
	//
	// Returns:
	//   - Node: the new child
	CreateChild(name string) Node

	// SetParent moves the node under parent. A nil parent means the scene root.
	//
	// Parameters:
	//   - parent: the new parent, or nil
	//   - keepWorldTransform: recompute the local transform so the world transform is unchanged
	//
	// Returns:
	//   - error: ErrInvalidParent or ErrCyclicParent
	SetParent(parent Node, keepWorldTransform bool) error

	// RemoveChild detaches child and its subtree and unregisters every node and component
	// in it from the scene.
	//
	// Returns:
	//   - error: ErrNotChild if child is not a direct child of this node
	RemoveChild(child Node) error

	// Remove removes the node from its parent. See RemoveChild.
	Remove() error

	// WalkEnabled visits the node and its descendants depth-first in child order, skipping
	// disabled nodes together with their subtrees. Returning false from fn skips the
	// visited node's children.
	WalkEnabled(fn func(Node) bool)

	// WalkAll visits the node and every descendant depth-first regardless of Enabled.
	WalkAll(fn func(Node) bool)
}

var _ Node = &node{}

func newNode(name string) *node {
	return &node{
		name:     name,
		enabled:  true,
		rotation: common.QuatIdentity(),
		scale:    common.Vec3One,
		world:    common.Identity(),
	}
}

func (n *node) ID() uint64 {
	return n.id
}

func (n *node) Name() string {
	return n.name
}

func (n *node) SetName(name string) {
	n.name = name
}

func (n *node) Enabled() bool {
	return n.enabled
}

func (n *node) SetEnabled(enabled bool) {
	n.enabled = enabled
}

func (n *node) Scene() Scene {
	if n.scene == nil {
		return nil
	}
	return n.scene
}

func (n *node) Parent() Node {
	switch {
	case n.parent == nil:
		return nil
	case n.parent.root:
		return n.parent.scene
	default:
		return n.parent
	}
}

func (n *node) Children() []Node {
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *node) Components() []Component {
	return slices.Clone(n.components)
}

func (n *node) LocalPosition() common.Vec3 {
	return n.position
}

func (n *node) SetLocalPosition(p common.Vec3) {
	n.markDirty()
	n.position = p
}

func (n *node) LocalRotation() common.Quat {
	return n.rotation
}

func (n *node) SetLocalRotation(q common.Quat) {
	n.markDirty()
	n.rotation = q
}

func (n *node) LocalScale() common.Vec3 {
	return n.scale
}

func (n *node) SetLocalScale(s common.Vec3) {
	n.markDirty()
	n.scale = s
}

func (n *node) TranslateLocal(delta common.Vec3) {
	n.SetLocalPosition(n.position.Add(delta))
}

func (n *node) RotateLocal(q common.Quat) {
	n.SetLocalRotation(n.rotation.Mul(q).Normalize())
}

func (n *node) ScaleLocal(s common.Vec3) {
	n.SetLocalScale(n.scale.Mul(s))
}

func (n *node) LocalTransform() common.Mat4 {
	return common.ComposeTRS(n.position, n.rotation, n.scale)
}

func (n *node) WorldTransform() common.Mat4 {
	m, _ := n.WorldTransformRecompute()
	return m
}

func (n *node) WorldTransformRecompute() (common.Mat4, bool) {
	if !n.dirty {
		return n.world, false
	}
	n.updateWorldTransform()
	return n.world, true
}

func (n *node) WorldPosition() common.Vec3 {
	return n.WorldTransform().GetTranslation()
}

func (n *node) SetWorldPosition(p common.Vec3) {
	if n.parent == nil || n.parent.root {
		n.SetLocalPosition(p)
		return
	}
	inv, ok := n.parent.WorldTransform().Inverse()
	if !ok {
		common.Logger().Warn("scene: parent world transform is singular", "node", n.id)
		return
	}
	n.SetLocalPosition(inv.MulPoint(p))
}

func (n *node) Forward() common.Vec3 {
	return n.WorldTransform().Column(2).Scale(-1).Normalize()
}

func (n *node) Right() common.Vec3 {
	return n.WorldTransform().Column(0).Normalize()
}

func (n *node) Up() common.Vec3 {
	return n.WorldTransform().Column(1).Normalize()
}

func (n *node) Dirty() bool {
	return n.dirty
}

func (n *node) UpdateHierarchy(force bool) {
	dirty := force || n.dirty
	if dirty {
		n.updateWorldTransform()
	}
	for _, c := range n.children {
		c.UpdateHierarchy(dirty)
	}
}

func (n *node) CreateChild(name string) Node {
	child := newNode(name)
	if n.scene != nil {
		n.scene.registerNode(child)
	}
	// a fresh node cannot form a cycle and shares the scene, so this never fails
	_ = child.setParent(n, false)
	return child
}

func (n *node) SetParent(parent Node, keepWorldTransform bool) error {
	if n.root || n.scene == nil {
		return ErrInvalidParent
	}

	var target *node
	switch p := parent.(type) {
	case nil:
		target = &n.scene.node
	case *node:
		target = p
		if p == nil {
			target = &n.scene.node
		}
	case *scene:
		target = &p.node
		if p == nil {
			target = &n.scene.node
		}
	default:
		return ErrInvalidParent
	}
	if target.scene != n.scene {
		return ErrInvalidParent
	}
	for a := target; a != nil; a = a.parent {
		if a == n {
			return ErrCyclicParent
		}
	}
	return n.setParent(target, keepWorldTransform)
}

func (n *node) setParent(target *node, keepWorldTransform bool) error {
	var world common.Mat4
	if keepWorldTransform {
		world = n.WorldTransform()
	}

	if n.parent != nil {
		n.parent.unlinkChild(n)
	}
	n.parent = target
	target.children = append(target.children, n)

	if keepWorldTransform {
		local := world
		if !target.root {
			inv, ok := target.WorldTransform().Inverse()
			if ok {
				local = inv.Mul(world)
			}
		}
		n.position, n.rotation, n.scale = common.DecomposeTRS(local)
	}
	n.markDirty()
	return nil
}

func (n *node) RemoveChild(child Node) error {
	c, ok := child.(*node)
	if !ok || c.parent != n {
		return ErrNotChild
	}
	n.unlinkChild(c)
	c.parent = nil
	if n.scene != nil {
		n.scene.unregisterSubtree(c)
	}
	return nil
}

func (n *node) Remove() error {
	if n.parent == nil {
		return ErrNotChild
	}
	return n.parent.RemoveChild(n)
}

func (n *node) WalkEnabled(fn func(Node) bool) {
	if !n.enabled {
		return
	}
	if !fn(n.self()) {
		return
	}
	for _, c := range n.children {
		c.WalkEnabled(fn)
	}
}

func (n *node) WalkAll(fn func(Node) bool) {
	if !fn(n.self()) {
		return
	}
	for _, c := range n.children {
		c.WalkAll(fn)
	}
}

// self returns the public face of the node: the Scene for the root, the node otherwise.
func (n *node) self() Node {
	if n.root && n.scene != nil {
		return n.scene
	}
	return n
}

func (n *node) unlinkChild(c *node) {
	if i := slices.Index(n.children, c); i >= 0 {
		n.children = slices.Delete(n.children, i, i+1)
	}
}

// markDirty flags the node and its subtree. A node that is already dirty implies a dirty
// subtree, so the walk stops there.
func (n *node) markDirty() {
	if n.dirty {
		return
	}
	n.dirty = true
	if n.scene != nil {
		n.scene.dirtyMarks.Add(1)
	}
	for _, c := range n.children {
		c.markDirty()
	}
}

func (n *node) updateWorldTransform() {
	n.dirty = false
	if n.parent != nil && !n.parent.root {
		n.world = n.parent.WorldTransform().Mul(n.LocalTransform())
		return
	}
	n.world = n.LocalTransform()
}
