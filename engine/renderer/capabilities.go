package renderer

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/envmap"
	"github.com/Carmen-Shannon/oxy-scene/engine/light"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

// Renderable is implemented by components that supply geometry to draw. Material i is used
// for geometry i; missing or nil materials fall back to the renderer's default material.
// A nil geometry or material list skips the component entirely.
type Renderable interface {
	scene.Component
	RenderGeometries() []*model.Geometry
	RenderMaterials() []material.Material
}

// LightSource is implemented by components that light the scene from their node's position.
type LightSource interface {
	scene.Component
	Color() common.Color
	Range() float32
	Intensity() float32
}

// EnvironmentMapOverride is implemented by renderables that may pin an environment map
// instead of using the nearest one.
type EnvironmentMapOverride interface {
	// StaticEnvironmentMap returns the pinned map and whether one is pinned. A pinned nil map
	// disables reflections for the renderable.
	StaticEnvironmentMap() (envmap.EnvironmentMap, bool)
}

var (
	_ Renderable             = model.NewModel()
	_ EnvironmentMapOverride = model.NewModel()
	_ LightSource            = light.NewLight()
)
