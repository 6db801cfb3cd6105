// Package envmap provides the EnvironmentMap component: a cube map captured by rendering the
// scene from the component's node along the six axis directions.
package envmap

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
)

// Capture projection. Every face covers a 90 degree square frustum.
const (
	DefaultResolution = 256
	FieldOfView       = 90
	Near              = 2.0
	Far               = 100.0
)

// ErrNotInScene is returned by Build when the component is not attached to a scene.
var ErrNotInScene = errors.New("envmap: environment map is not assigned to a scene")

// Face look directions and up vectors in +x, -x, +y, -y, +z, -z order.
var (
	cubeForward = [device.CubeFaces]common.Vec3{
		{1, 0, 0},
		{-1, 0, 0},
		{0, 1, 0},
		{0, -1, 0},
		{0, 0, 1},
		{0, 0, -1},
	}
	cubeUp = [device.CubeFaces]common.Vec3{
		{0, -1, 0},
		{0, -1, 0},
		{0, 0, 1},
		{0, 0, 1},
		{0, -1, 0},
		{0, -1, 0},
	}
)

// Builder renders a scene into the faces of a cube map. The renderer implements it.
type Builder interface {
	// Device returns the device cube maps are allocated on.
	Device() device.Device

	// RenderCubeMap renders s once per view into the matching face of target.
	//
	// Parameters:
	//   - target: the cube map to render into
	//   - s: the scene to render
	//   - views: exactly six views in face order
	//
	// Returns:
	//   - error: a precondition error for a nil target or a wrong view count
	RenderCubeMap(target *texture.CubeMap, s scene.Scene, views []camera.RenderView) error
}

type environmentMap struct {
	scene.ComponentBase
	resolution int
	cubeMap    *texture.CubeMap
}

// EnvironmentMap is a component holding a captured cube map. Reflective materials on
// renderables near the node sample it.
type EnvironmentMap interface {
	scene.Component

	// Resolution returns the edge length of each face in pixels.
	Resolution() int

	// SetResolution changes the face size used by the next Build.
	SetResolution(resolution int)

	// CubeMap returns the captured cube map, or nil before the first Build.
	CubeMap() *texture.CubeMap

	// Build captures the scene from the node's world position. It renders the whole scene
	// six times and is meant for on-demand captures, not for every frame.
	//
	// Parameters:
	//   - b: the renderer used for the capture
	//
	// Returns:
	//   - error: ErrNotInScene, or the allocation or render error
	Build(b Builder) error
}

var _ EnvironmentMap = &environmentMap{}
var _ scene.Describer = &environmentMap{}

// NewEnvironmentMap creates an environment map component with no cube map yet.
//
// Parameters:
//   - options: variadic list of EnvironmentMapBuilderOption functions
//
// Returns:
//   - EnvironmentMap: a component ready to attach with scene.AddComponent
func NewEnvironmentMap(options ...EnvironmentMapBuilderOption) EnvironmentMap {
	e := &environmentMap{resolution: DefaultResolution}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *environmentMap) Resolution() int {
	return e.resolution
}

func (e *environmentMap) SetResolution(resolution int) {
	e.resolution = resolution
}

func (e *environmentMap) CubeMap() *texture.CubeMap {
	return e.cubeMap
}

func (e *environmentMap) Build(b Builder) error {
	n := e.Node()
	if n == nil || n.Scene() == nil {
		return ErrNotInScene
	}

	target := e.cubeMap
	if target == nil || target.Resolution != e.resolution {
		cm, err := texture.NewCubeMap(b.Device(), e.resolution, nil)
		if err != nil {
			return fmt.Errorf("failed to allocate environment map: %w", err)
		}
		target = cm
	}

	if err := b.RenderCubeMap(target, n.Scene(), FaceViews(n.WorldPosition())); err != nil {
		return fmt.Errorf("failed to capture environment map: %w", err)
	}
	e.cubeMap = target
	common.Logger().Debug("envmap: captured", "component", e.ID(), "resolution", e.resolution)
	return nil
}

func (e *environmentMap) Describe() (string, map[string]any) {
	return "EnvironmentMap", map[string]any{
		"resolution": e.resolution,
	}
}

// FaceViews returns the six capture views from position in +x, -x, +y, -y, +z, -z order.
//
// Parameters:
//   - position: the capture point in world space
//
// Returns:
//   - []camera.RenderView: one view per cube face
func FaceViews(position common.Vec3) []camera.RenderView {
	projection := common.Perspective(common.DegToRad(FieldOfView), 1, Near, Far)
	views := make([]camera.RenderView, device.CubeFaces)
	for i := range views {
		view := common.LookAt(position, position.Add(cubeForward[i]), cubeUp[i])
		views[i] = camera.NewRenderView(projection, view)
	}
	return views
}
