package scene

import (
	"errors"
	"slices"
)

// ErrDetachedNode is returned when a component is added to a node that is not part of a scene.
var ErrDetachedNode = errors.New("scene: node is not part of a scene")

// Component is a unit of behavior or data attached to a Node. Concrete component types
// embed ComponentBase, which provides the id and node back-reference.
//
// Capabilities (renderable, light source, environment map override, ...) are expressed as
// separate interfaces that a component type may implement; GetComponent and AllComponents
// accept such an interface as the type parameter.
type Component interface {
	// ID returns the component id, unique within the scene. It is 0 until the component is attached.
	ID() uint64

	// Node returns the node the component is attached to, or nil.
	Node() Node

	attach(n *node, id uint64)
	detach()
	attachedNode() *node
}

// ComponentBase implements the bookkeeping part of Component. Embed it in component structs.
type ComponentBase struct {
	id   uint64
	node *node
}

func (b *ComponentBase) ID() uint64 {
	return b.id
}

func (b *ComponentBase) Node() Node {
	if b.node == nil {
		return nil
	}
	return b.node.self()
}

func (b *ComponentBase) attach(n *node, id uint64) {
	b.node = n
	b.id = id
}

func (b *ComponentBase) detach() {
	b.node = nil
}

func (b *ComponentBase) attachedNode() *node {
	return b.node
}

// Describer is implemented by components that contribute to scene snapshots.
type Describer interface {
	// Describe returns the component's type name and its exported properties.
	Describe() (typeName string, props map[string]any)
}

// Updater is implemented by components that advance every frame, such as camera controllers.
type Updater interface {
	Update(dt float32)
}

// AddComponent attaches c to n: the component receives a fresh id, is appended to the node's
// component list and registered in the scene.
//
// Parameters:
//   - n: the node to attach to; the Scene itself is accepted
//   - c: a component that is not attached yet
//
// Returns:
//   - T: c, for chaining
//   - error: ErrComponentAttached, ErrDetachedNode or ErrInvalidParent
func AddComponent[T Component](n Node, c T) (T, error) {
	nn := asNode(n)
	if nn == nil {
		return c, ErrInvalidParent
	}
	if nn.scene == nil {
		return c, ErrDetachedNode
	}
	if c.attachedNode() != nil {
		return c, ErrComponentAttached
	}
	id := nn.scene.registerComponent(c)
	c.attach(nn, id)
	nn.components = append(nn.components, c)
	return c, nil
}

// RemoveComponent detaches c from n and unregisters it from the scene.
//
// Returns:
//   - error: ErrComponentNotFound if n does not own c
func RemoveComponent(n Node, c Component) error {
	nn := asNode(n)
	if nn == nil || c == nil {
		return ErrComponentNotFound
	}
	i := slices.IndexFunc(nn.components, func(x Component) bool { return x == c })
	if i < 0 {
		return ErrComponentNotFound
	}
	nn.components = slices.Delete(nn.components, i, i+1)
	if nn.scene != nil {
		nn.scene.unregisterComponent(c.ID())
	}
	c.detach()
	return nil
}

// GetComponent returns the first component on n assignable to T.
//
// Returns:
//   - T: the component, or the zero value
//   - bool: whether one was found
func GetComponent[T any](n Node) (T, bool) {
	var zero T
	nn := asNode(n)
	if nn == nil {
		return zero, false
	}
	for _, c := range nn.components {
		if t, ok := any(c).(T); ok {
			return t, true
		}
	}
	return zero, false
}

// GetComponents returns every component on n assignable to T, in attach order.
func GetComponents[T any](n Node) []T {
	nn := asNode(n)
	if nn == nil {
		return nil
	}
	var out []T
	for _, c := range nn.components {
		if t, ok := any(c).(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// AllComponents returns every registered component in s assignable to T, ordered by id.
// Components on disabled nodes are included.
func AllComponents[T any](s Scene) []T {
	sc, ok := s.(*scene)
	if !ok {
		return nil
	}
	var out []T
	for _, c := range sc.sortedComponents() {
		if t, ok := any(c).(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func asNode(n Node) *node {
	switch v := n.(type) {
	case *node:
		return v
	case *scene:
		return &v.node
	}
	return nil
}
