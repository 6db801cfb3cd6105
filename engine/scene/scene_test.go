package scene

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagComponent struct {
	ComponentBase
	tag string
}

func (t *tagComponent) Describe() (string, map[string]any) {
	return "Tag", map[string]any{"tag": t.tag}
}

type tagger interface {
	Tag() string
}

func (t *tagComponent) Tag() string { return t.tag }

type otherComponent struct {
	ComponentBase
}

// fakeNode implements Node but was not created by a scene.
type fakeNode struct {
	Node
}

func assertMatNear(t *testing.T, want, got common.Mat4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "element %d", i)
	}
}

func TestCreateChildAssignsIncreasingIDs(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")
	c := s.CreateChild("c")

	assert.Equal(t, uint64(0), s.ID())
	assert.Equal(t, uint64(1), a.ID())
	assert.Equal(t, uint64(2), b.ID())
	assert.Equal(t, uint64(3), c.ID())
	assert.Equal(t, 3, s.NodeCount())

	assert.Equal(t, Node(s), a.Parent())
	assert.Equal(t, a, b.Parent())
	assert.Nil(t, s.Parent())

	got, ok := s.NodeByID(2)
	require.True(t, ok)
	assert.Equal(t, b, got)

	got, ok = s.NodeByName("c")
	require.True(t, ok)
	assert.Equal(t, c, got)
}

func TestSceneDefaults(t *testing.T) {
	s := NewScene()
	assert.Equal(t, common.Color{0.15, 0.15, 0.15, 1}, s.Background())
	assert.Equal(t, common.Color{0.01, 0.01, 0.01, 1}, s.AmbientColor())
	fog := s.Fog()
	assert.True(t, fog.Enabled)
	assert.Equal(t, FogLinear, fog.Mode)
	assert.Equal(t, [2]float32{10, 40}, fog.Params())

	s = NewScene(WithBackground(common.ColorWhite), WithFog(Fog{Mode: FogQuadratic}))
	assert.Equal(t, common.ColorWhite, s.Background())
	assert.False(t, s.Fog().Enabled)
}

func TestWorldTransformComposesParentChain(t *testing.T) {
	s := NewScene()
	parent := s.CreateChild("parent")
	child := parent.CreateChild("child")

	parent.SetLocalPosition(common.V3(1, 0, 0))
	parent.SetLocalScale(common.V3(2, 2, 2))
	child.SetLocalPosition(common.V3(0, 1, 0))

	want := parent.LocalTransform().Mul(child.LocalTransform())
	assertMatNear(t, want, child.WorldTransform())
	assert.Equal(t, common.V3(1, 2, 0), child.WorldPosition())

	// top-level nodes ignore the scene root transform
	s.SetLocalPosition(common.V3(100, 0, 0))
	parent.SetLocalPosition(common.V3(1, 0, 0))
	assert.Equal(t, common.V3(1, 0, 0), parent.WorldPosition())
}

func TestDirtyMarkingShortCircuits(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")
	c := b.CreateChild("c")
	s.UpdateHierarchy(false)
	require.False(t, c.Dirty())

	before := s.DirtyMarks()
	a.SetLocalPosition(common.V3(1, 0, 0))
	assert.True(t, a.Dirty())
	assert.True(t, b.Dirty())
	assert.True(t, c.Dirty())
	assert.Equal(t, before+3, s.DirtyMarks())

	// a second mutation of an already dirty node marks nothing new
	a.SetLocalPosition(common.V3(2, 0, 0))
	b.SetLocalPosition(common.V3(0, 1, 0))
	assert.Equal(t, before+3, s.DirtyMarks())
}

func TestWorldTransformRecomputesOnlyWhenDirty(t *testing.T) {
	s := NewScene()
	n := s.CreateChild("n")
	n.SetLocalPosition(common.V3(0, 0, 5))

	_, recomputed := n.WorldTransformRecompute()
	assert.True(t, recomputed)
	_, recomputed = n.WorldTransformRecompute()
	assert.False(t, recomputed)

	n.TranslateLocal(common.V3(0, 0, 1))
	m, recomputed := n.WorldTransformRecompute()
	assert.True(t, recomputed)
	assert.Equal(t, float32(6), m[14])
}

func TestUpdateHierarchyCleansSubtree(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")
	a.SetLocalPosition(common.V3(0, 3, 0))

	s.UpdateHierarchy(false)
	assert.False(t, a.Dirty())
	assert.False(t, b.Dirty())
	assert.Equal(t, common.V3(0, 3, 0), b.WorldPosition())
}

func TestReadingChildCleansAncestors(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")
	a.SetLocalPosition(common.V3(1, 0, 0))

	_ = b.WorldTransform()
	assert.False(t, a.Dirty())
	assert.False(t, b.Dirty())
}

func TestAxesFollowRotation(t *testing.T) {
	s := NewScene()
	n := s.CreateChild("n")
	assert.Equal(t, common.V3(0, 0, -1), n.Forward())
	assert.Equal(t, common.V3(1, 0, 0), n.Right())
	assert.Equal(t, common.V3(0, 1, 0), n.Up())

	n.SetLocalRotation(common.QuatFromAxisAngle(common.Vec3Up, math32.Pi/2))
	fwd := n.Forward()
	assert.InDelta(t, -1, fwd[0], 1e-5)
	assert.InDelta(t, 0, fwd[2], 1e-5)
}

func TestSetParent(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := s.CreateChild("b")
	a.SetLocalPosition(common.V3(5, 0, 0))
	b.SetLocalPosition(common.V3(1, 1, 1))
	s.UpdateHierarchy(false)

	require.NoError(t, b.SetParent(a, false))
	assert.Equal(t, a, b.Parent())
	assert.Len(t, s.Children(), 1)
	assert.True(t, b.Dirty())
	assert.Equal(t, common.V3(6, 1, 1), b.WorldPosition())

	require.NoError(t, b.SetParent(nil, false))
	assert.Equal(t, Node(s), b.Parent())
	assert.Empty(t, a.Children())
	assert.Equal(t, common.V3(1, 1, 1), b.WorldPosition())
}

func TestSetParentTypedNilMeansRoot(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")

	var none *node
	require.NoError(t, b.SetParent(none, false))
	assert.Equal(t, Node(s), b.Parent())
	assert.Empty(t, a.Children())

	require.NoError(t, b.SetParent(a, false))
	var noScene *scene
	require.NoError(t, b.SetParent(noScene, false))
	assert.Equal(t, Node(s), b.Parent())
}

func TestSetParentKeepsWorldTransform(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	a.SetLocalPosition(common.V3(5, 0, 0))
	a.SetLocalRotation(common.QuatFromAxisAngle(common.Vec3Up, 0.6))
	a.SetLocalScale(common.V3(2, 2, 2))

	b := s.CreateChild("b")
	b.SetLocalPosition(common.V3(1, 2, 3))
	before := b.WorldTransform()

	require.NoError(t, b.SetParent(a, true))
	assertMatNear(t, before, b.WorldTransform())
}

func TestSetParentRejectsCyclesAndForeignNodes(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")

	assert.ErrorIs(t, a.SetParent(b, false), ErrCyclicParent)
	assert.ErrorIs(t, a.SetParent(a, false), ErrCyclicParent)
	assert.ErrorIs(t, a.SetParent(fakeNode{}, false), ErrInvalidParent)

	other := NewScene().CreateChild("x")
	assert.ErrorIs(t, a.SetParent(other, false), ErrInvalidParent)
	assert.ErrorIs(t, s.SetParent(a, false), ErrInvalidParent)
}

func TestRemoveChildUnregistersSubtree(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")
	_, err := AddComponent(b, &tagComponent{tag: "x"})
	require.NoError(t, err)
	keep := s.CreateChild("keep")

	require.Equal(t, 3, s.NodeCount())
	require.Equal(t, 1, s.ComponentCount())

	require.NoError(t, a.Remove())
	assert.Equal(t, 1, s.NodeCount())
	assert.Equal(t, 0, s.ComponentCount())
	assert.Nil(t, a.Scene())
	assert.Nil(t, b.Scene())
	assert.Nil(t, a.Parent())
	assert.Equal(t, []Node{keep}, s.Children())

	_, ok := s.NodeByID(b.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, s.RemoveChild(b), ErrNotChild)

	// ids are never reused
	assert.Equal(t, uint64(4), s.CreateChild("new").ID())
}

func TestWalkEnabledPrunesDisabledSubtrees(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	a.CreateChild("a1")
	b := s.CreateChild("b")
	b.CreateChild("b1")
	b.SetEnabled(false)

	var names []string
	s.WalkEnabled(func(n Node) bool {
		names = append(names, n.Name())
		return true
	})
	assert.Equal(t, []string{"scene", "a", "a1"}, names)

	names = nil
	s.WalkAll(func(n Node) bool {
		names = append(names, n.Name())
		return n.Name() != "a"
	})
	assert.Equal(t, []string{"scene", "a", "b", "b1"}, names)
}

func TestComponentQueries(t *testing.T) {
	s := NewScene()
	n := s.CreateChild("n")
	m := s.CreateChild("m")

	first, err := AddComponent(n, &tagComponent{tag: "first"})
	require.NoError(t, err)
	_, err = AddComponent(n, &otherComponent{})
	require.NoError(t, err)
	second, err := AddComponent(m, &tagComponent{tag: "second"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.ID())
	assert.Equal(t, uint64(3), second.ID())
	assert.Equal(t, n, first.Node())

	got, ok := GetComponent[*tagComponent](n)
	require.True(t, ok)
	assert.Equal(t, first, got)

	// capability interface queries match every implementing component
	tags := AllComponents[tagger](s)
	require.Len(t, tags, 2)
	assert.Equal(t, "first", tags[0].Tag())
	assert.Equal(t, "second", tags[1].Tag())
	assert.Len(t, GetComponents[Component](n), 2)

	_, ok = GetComponent[*otherComponent](m)
	assert.False(t, ok)

	c, ok := s.ComponentByID(3)
	require.True(t, ok)
	assert.Equal(t, Component(second), c)
}

func TestAddComponentErrors(t *testing.T) {
	s := NewScene()
	n := s.CreateChild("n")
	c, err := AddComponent(n, &tagComponent{})
	require.NoError(t, err)

	_, err = AddComponent(s.CreateChild("o"), c)
	assert.ErrorIs(t, err, ErrComponentAttached)

	_, err = AddComponent(fakeNode{}, &tagComponent{})
	assert.ErrorIs(t, err, ErrInvalidParent)

	require.NoError(t, n.Remove())
	_, err = AddComponent(n, &tagComponent{})
	assert.ErrorIs(t, err, ErrDetachedNode)
}

func TestRemoveComponent(t *testing.T) {
	s := NewScene()
	n := s.CreateChild("n")
	c, err := AddComponent(n, &tagComponent{})
	require.NoError(t, err)

	require.NoError(t, RemoveComponent(n, c))
	assert.Nil(t, c.Node())
	assert.Empty(t, n.Components())
	assert.Equal(t, 0, s.ComponentCount())
	assert.ErrorIs(t, RemoveComponent(n, c), ErrComponentNotFound)

	// a detached component can be attached again
	_, err = AddComponent(n, c)
	assert.NoError(t, err)
}

func TestWriteSnapshot(t *testing.T) {
	s := NewScene()
	a := s.CreateChild("a")
	b := a.CreateChild("b")
	_, err := AddComponent(b, &tagComponent{tag: "hello"})
	require.NoError(t, err)
	_, err = AddComponent(b, &otherComponent{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, s))

	var doc SceneSnapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "linear", doc.FogMode)
	assert.Equal(t, "node:0", doc.Nodes[0].Parent)
	assert.Equal(t, "node:1", doc.Nodes[1].Parent)

	comps := doc.Nodes[1].Components
	require.Len(t, comps, 2)
	assert.Equal(t, "Tag", comps[0].Type)
	assert.Equal(t, "component:1", comps[0].Ref)
	assert.Equal(t, "hello", comps[0].Properties["tag"])
	assert.Equal(t, "*scene.otherComponent", comps[1].Type)
}
