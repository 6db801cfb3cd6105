package model

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/envmap"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

// model is the implementation of the Model interface.
type model struct {
	scene.ComponentBase
	mesh      *Mesh
	materials []material.Material

	staticEnvMap bool
	envMap       envmap.EnvironmentMap
}

// Model is the renderable component that draws a mesh. Material i is used for geometry i;
// a missing or nil material falls back to the renderer's default material.
type Model interface {
	scene.Component

	// Mesh returns the mesh to draw, or nil.
	Mesh() *Mesh

	// SetMesh replaces the mesh.
	SetMesh(mesh *Mesh)

	// Materials returns the material list. The slice is owned by the model.
	Materials() []material.Material

	// SetMaterials replaces the material list.
	SetMaterials(mats ...material.Material)

	// Material returns material i, or nil when the index is out of range.
	//
	// Parameters:
	//   - i: the geometry index
	//
	// Returns:
	//   - material.Material: the material or nil
	Material(i int) material.Material

	// SetMaterial sets material i, growing the list with nil entries as needed.
	//
	// Parameters:
	//   - i: the geometry index
	//   - m: the material
	SetMaterial(i int, m material.Material)

	// RenderGeometries returns the mesh geometries, or nil without a mesh.
	RenderGeometries() []*Geometry

	// RenderMaterials returns the materials used for RenderGeometries.
	RenderMaterials() []material.Material

	// StaticEnvironmentMap reports whether the model uses a fixed environment map instead
	// of the nearest one.
	//
	// Returns:
	//   - envmap.EnvironmentMap: the fixed map; nil means no reflections at all
	//   - bool: whether a fixed map is set
	StaticEnvironmentMap() (envmap.EnvironmentMap, bool)

	// SetStaticEnvironmentMap fixes the environment map. A nil map disables reflections
	// for this model.
	SetStaticEnvironmentMap(e envmap.EnvironmentMap)

	// ClearStaticEnvironmentMap returns to nearest environment map selection.
	ClearStaticEnvironmentMap()
}

var _ Model = &model{}
var _ scene.Describer = &model{}

// NewModel creates a Model component configured with the provided options.
//
// Parameters:
//   - options: variadic list of ModelBuilderOption functions
//
// Returns:
//   - Model: a component ready to attach with scene.AddComponent
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) Mesh() *Mesh {
	return m.mesh
}

func (m *model) SetMesh(mesh *Mesh) {
	m.mesh = mesh
}

func (m *model) Materials() []material.Material {
	return m.materials
}

func (m *model) SetMaterials(mats ...material.Material) {
	m.materials = mats
}

func (m *model) Material(i int) material.Material {
	if i < 0 || i >= len(m.materials) {
		return nil
	}
	return m.materials[i]
}

func (m *model) SetMaterial(i int, mat material.Material) {
	if i < 0 {
		return
	}
	for len(m.materials) <= i {
		m.materials = append(m.materials, nil)
	}
	m.materials[i] = mat
}

func (m *model) RenderGeometries() []*Geometry {
	if m.mesh == nil {
		return nil
	}
	return m.mesh.Geometries
}

func (m *model) RenderMaterials() []material.Material {
	if m.materials == nil {
		return []material.Material{}
	}
	return m.materials
}

func (m *model) StaticEnvironmentMap() (envmap.EnvironmentMap, bool) {
	return m.envMap, m.staticEnvMap
}

func (m *model) SetStaticEnvironmentMap(e envmap.EnvironmentMap) {
	m.staticEnvMap = true
	m.envMap = e
}

func (m *model) ClearStaticEnvironmentMap() {
	m.staticEnvMap = false
	m.envMap = nil
}

func (m *model) Describe() (string, map[string]any) {
	props := map[string]any{}
	if m.mesh != nil {
		props["mesh"] = "mesh:" + m.mesh.Name
	}
	names := make([]string, len(m.materials))
	for i, mat := range m.materials {
		if mat != nil {
			names[i] = "material:" + mat.Name()
		}
	}
	props["materials"] = names
	if m.staticEnvMap && m.envMap != nil {
		props["environmentMap"] = scene.ComponentRef(m.envMap)
	}
	return "Model", props
}
