package scene

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// SceneSnapshot is a JSON-encodable description of a scene. It is an export format only.
type SceneSnapshot struct {
	Background   common.Color   `json:"background"`
	AmbientColor common.Color   `json:"ambientColor"`
	FogEnabled   bool           `json:"fogEnabled"`
	FogMode      string         `json:"fogMode"`
	FogColor     common.Color   `json:"fogColor"`
	FogStart     float32        `json:"fogStart"`
	FogDistance  float32        `json:"fogDistance"`
	Nodes        []NodeSnapshot `json:"nodes"`
}

// NodeSnapshot describes one node. Parent is a "node:<id>" reference; "node:0" is the scene root.
type NodeSnapshot struct {
	ID            uint64              `json:"id"`
	Name          string              `json:"name"`
	Enabled       bool                `json:"enabled"`
	LocalPosition common.Vec3         `json:"localPosition"`
	LocalRotation common.Quat         `json:"localRotation"`
	LocalScale    common.Vec3         `json:"localScale"`
	Parent        string              `json:"parent"`
	Components    []ComponentSnapshot `json:"components"`
}

// ComponentSnapshot describes one component. Type and Properties come from Describer when implemented.
type ComponentSnapshot struct {
	ID         uint64         `json:"id"`
	Ref        string         `json:"ref"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// NodeRef formats a tagged node reference.
func NodeRef(n Node) string {
	if n == nil {
		return "node:0"
	}
	return fmt.Sprintf("node:%d", n.ID())
}

// ComponentRef formats a tagged component reference.
func ComponentRef(c Component) string {
	if c == nil {
		return "component:0"
	}
	return fmt.Sprintf("component:%d", c.ID())
}

// Snapshot captures every node below the scene root in depth-first order.
//
// Parameters:
//   - s: the scene to capture
//
// Returns:
//   - SceneSnapshot: the captured document
func Snapshot(s Scene) SceneSnapshot {
	fog := s.Fog()
	snap := SceneSnapshot{
		Background:   s.Background(),
		AmbientColor: s.AmbientColor(),
		FogEnabled:   fog.Enabled,
		FogMode:      fog.Mode.String(),
		FogColor:     fog.Color,
		FogStart:     fog.Start,
		FogDistance:  fog.Distance,
		Nodes:        []NodeSnapshot{},
	}

	for _, top := range s.Children() {
		top.WalkAll(func(n Node) bool {
			snap.Nodes = append(snap.Nodes, snapshotNode(n))
			return true
		})
	}
	return snap
}

func snapshotNode(n Node) NodeSnapshot {
	ns := NodeSnapshot{
		ID:            n.ID(),
		Name:          n.Name(),
		Enabled:       n.Enabled(),
		LocalPosition: n.LocalPosition(),
		LocalRotation: n.LocalRotation(),
		LocalScale:    n.LocalScale(),
		Parent:        NodeRef(n.Parent()),
		Components:    []ComponentSnapshot{},
	}
	for _, c := range n.Components() {
		cs := ComponentSnapshot{ID: c.ID(), Ref: ComponentRef(c), Type: fmt.Sprintf("%T", c)}
		if d, ok := c.(Describer); ok {
			cs.Type, cs.Properties = d.Describe()
		}
		ns.Components = append(ns.Components, cs)
	}
	return ns
}

// WriteSnapshot encodes the scene snapshot as indented JSON.
//
// Parameters:
//   - w: destination writer
//   - s: the scene to capture
//
// Returns:
//   - error: encoding or write error
func WriteSnapshot(w io.Writer, s Scene) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Snapshot(s)); err != nil {
		return fmt.Errorf("failed to encode scene snapshot: %w", err)
	}
	return nil
}
