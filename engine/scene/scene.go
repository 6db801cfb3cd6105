package scene

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

var (
	// ErrInvalidParent is returned when a parent does not belong to the same scene, or is not a
	// node created by a scene.
	ErrInvalidParent = errors.New("scene: invalid parent")

	// ErrCyclicParent is returned when a node would become its own ancestor.
	ErrCyclicParent = errors.New("scene: node cannot be parented to itself or a descendant")

	// ErrNotChild is returned when removing a node that is not a direct child.
	ErrNotChild = errors.New("scene: node is not a child")

	// ErrComponentAttached is returned when attaching a component that already has a node.
	ErrComponentAttached = errors.New("scene: component is already attached")

	// ErrComponentNotFound is returned when removing a component the node does not own.
	ErrComponentNotFound = errors.New("scene: component not found on node")
)

// FogMode selects the fog falloff curve.
type FogMode int

const (
	FogLinear FogMode = iota
	FogQuadratic
)

func (m FogMode) String() string {
	if m == FogQuadratic {
		return "quadratic"
	}
	return "linear"
}

// Fog holds the scene's distance fog settings.
type Fog struct {
	Enabled  bool
	Mode     FogMode
	Color    common.Color
	Start    float32
	Distance float32
}

// Params returns the fog start and end distances in the form the shaders consume.
func (f Fog) Params() [2]float32 {
	return [2]float32{f.Start, f.Start + f.Distance}
}

type scene struct {
	node

	mu         sync.RWMutex
	nextNodeID uint64
	nextCompID uint64
	nodes      map[uint64]*node
	comps      map[uint64]Component

	background common.Color
	ambient    common.Color
	fog        Fog

	dirtyMarks atomic.Uint64
}

// Scene is the root of a node hierarchy. It owns the id registries for nodes and components
// and the global render settings: background color, ambient light and fog.
//
// The registries are safe for concurrent lookups; the hierarchy itself follows the Node rules.
type Scene interface {
	Node

	// Background returns the clear color.
	Background() common.Color

	// SetBackground sets the clear color.
	SetBackground(c common.Color)

	// AmbientColor returns the ambient light color.
	AmbientColor() common.Color

	// SetAmbientColor sets the ambient light color.
	SetAmbientColor(c common.Color)

	// Fog returns the fog settings.
	Fog() Fog

	// SetFog replaces the fog settings.
	SetFog(f Fog)

	// NodeByID looks up a registered node.
	//
	// Parameters:
	//   - id: the node id
	//
	// Returns:
	//   - Node: the node, or nil
	//   - bool: whether the node was found
	NodeByID(id uint64) (Node, bool)

	// NodeByName returns the registered node with the given name and the lowest id.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - Node: the node, or nil
	//   - bool: whether a node was found
	NodeByName(name string) (Node, bool)

	// ComponentByID looks up a registered component.
	ComponentByID(id uint64) (Component, bool)

	// NodeCount returns the number of registered nodes, excluding the root.
	NodeCount() int

	// ComponentCount returns the number of registered components.
	ComponentCount() int

	// DirtyMarks returns how many times a node went from clean to dirty. Marking an already
	// dirty node is not counted.
	DirtyMarks() uint64
}

var _ Scene = &scene{}

// NewScene creates an empty scene.
//
// Parameters:
//   - options: builder options for the scene settings
//
// Returns:
//   - Scene: the new scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		nextNodeID: 1,
		nextCompID: 1,
		nodes:      make(map[uint64]*node),
		comps:      make(map[uint64]Component),
		background: common.Color{0.15, 0.15, 0.15, 1},
		ambient:    common.Color{0.01, 0.01, 0.01, 1},
		fog: Fog{
			Enabled:  true,
			Mode:     FogLinear,
			Color:    common.Color{0.1, 0.1, 0.1, 1},
			Start:    10,
			Distance: 30,
		},
	}
	s.node = *newNode("scene")
	s.node.root = true
	s.node.scene = s

	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) Background() common.Color {
	return s.background
}

func (s *scene) SetBackground(c common.Color) {
	s.background = c
}

func (s *scene) AmbientColor() common.Color {
	return s.ambient
}

func (s *scene) SetAmbientColor(c common.Color) {
	s.ambient = c
}

func (s *scene) Fog() Fog {
	return s.fog
}

func (s *scene) SetFog(f Fog) {
	s.fog = f
}

func (s *scene) NodeByID(id uint64) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n, true
}

func (s *scene) NodeByName(name string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *node
	for _, n := range s.nodes {
		if n.name == name && (found == nil || n.id < found.id) {
			found = n
		}
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

func (s *scene) ComponentByID(id uint64) (Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comps[id]
	return c, ok
}

func (s *scene) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *scene) ComponentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.comps)
}

func (s *scene) DirtyMarks() uint64 {
	return s.dirtyMarks.Load()
}

func (s *scene) registerNode(n *node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.id = s.nextNodeID
	s.nextNodeID++
	n.scene = s
	s.nodes[n.id] = n
}

func (s *scene) registerComponent(c Component) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextCompID
	s.nextCompID++
	s.comps[id] = c
	return id
}

func (s *scene) unregisterComponent(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.comps, id)
}

// unregisterSubtree drops n and all its descendants, with their components, from the registries.
func (s *scene) unregisterSubtree(n *node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var drop func(*node)
	drop = func(x *node) {
		delete(s.nodes, x.id)
		for _, c := range x.components {
			delete(s.comps, c.ID())
		}
		x.scene = nil
		for _, child := range x.children {
			drop(child)
		}
	}
	drop(n)
}

// sortedComponents returns every registered component ordered by id.
func (s *scene) sortedComponents() []Component {
	s.mu.RLock()
	out := make([]Component, 0, len(s.comps))
	for _, c := range s.comps {
		out = append(out, c)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Component) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return out
}
