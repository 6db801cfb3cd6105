package model

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/envmap"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithMesh is an option builder that sets the mesh to draw.
//
// Parameters:
//   - mesh: the uploaded mesh
//
// Returns:
//   - ModelBuilderOption: a function that applies the mesh option to a model
func WithMesh(mesh *Mesh) ModelBuilderOption {
	return func(m *model) {
		m.mesh = mesh
	}
}

// WithMaterials is an option builder that sets the per-geometry materials.
//
// Parameters:
//   - mats: material i is used for geometry i
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithMaterials(mats ...material.Material) ModelBuilderOption {
	return func(m *model) {
		m.materials = mats
	}
}

// WithStaticEnvironmentMap is an option builder that fixes the environment map used for
// reflections. A nil map disables reflections for the model.
func WithStaticEnvironmentMap(e envmap.EnvironmentMap) ModelBuilderOption {
	return func(m *model) {
		m.staticEnvMap = true
		m.envMap = e
	}
}
