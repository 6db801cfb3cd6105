package renderer

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/envmap"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
)

// GeometryBatch groups every instance of one geometry drawn with one material and one
// environment map. All three are matched by identity.
type GeometryBatch struct {
	Geometry       *model.Geometry
	Material       material.Material
	EnvironmentMap envmap.EnvironmentMap
	Transforms     []common.Mat4
}

// LightBatch is a light queued for the frame with its node's world transform.
type LightBatch struct {
	Transform common.Mat4
	Light     LightSource
	// Priority is the squared camera distance times the light intensity. Lower values are
	// kept first when lights are culled.
	Priority float32
}

// Position returns the light's world position.
func (b LightBatch) Position() common.Vec3 {
	return b.Transform.GetTranslation()
}

// batchSet is the ordered list of batches of one pass.
type batchSet struct {
	batches []*GeometryBatch
}

// queue appends transform to the batch matching (geometry, material, envMap), creating the
// batch at the end of the list when none matches.
func (s *batchSet) queue(envMap envmap.EnvironmentMap, geometry *model.Geometry, mat material.Material, transform common.Mat4) {
	for _, b := range s.batches {
		if b.Geometry == geometry && b.Material == mat && b.EnvironmentMap == envMap {
			b.Transforms = append(b.Transforms, transform)
			return
		}
	}
	s.batches = append(s.batches, &GeometryBatch{
		Geometry:       geometry,
		Material:       mat,
		EnvironmentMap: envMap,
		Transforms:     []common.Mat4{transform},
	})
}

func (s *batchSet) reset() {
	s.batches = nil
}

// CullLights ranks lights against the camera and keeps at most maxLights of them, never more
// than shader.MaxLights. Lights are ordered by ascending priority with ties kept in queue
// order. The slice is sorted and truncated in place.
//
// Parameters:
//   - lights: the queued lights
//   - cameraPosition: the view position in world space
//   - maxLights: the working light cap
//
// Returns:
//   - []LightBatch: the surviving lights in priority order
func CullLights(lights []LightBatch, cameraPosition common.Vec3, maxLights int) []LightBatch {
	maxLights = common.Clamp(maxLights, 0, MaxLights)
	for i := range lights {
		lights[i].Priority = lights[i].Position().DistanceSquared(cameraPosition) * lights[i].Light.Intensity()
	}
	if len(lights) <= maxLights {
		return lights
	}
	slices.SortStableFunc(lights, func(a, b LightBatch) int {
		switch {
		case a.Priority < b.Priority:
			return -1
		case a.Priority > b.Priority:
			return 1
		}
		return 0
	})
	return lights[:maxLights]
}
