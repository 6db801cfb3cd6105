package material

import (
	"maps"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithDiffuseColor is an option builder that sets the diffuse tint.
//
// Parameters:
//   - c: the diffuse color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the diffuse color option to a material
func WithDiffuseColor(c common.Color) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseColor = c
	}
}

// WithSpecularColor is an option builder that sets the specular tint. Alpha is the hardness.
//
// Parameters:
//   - c: the specular color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular color option to a material
func WithSpecularColor(c common.Color) MaterialBuilderOption {
	return func(m *material) {
		m.specularColor = c
	}
}

// WithOpaque is an option builder that selects the opaque or the transparent pass.
func WithOpaque(opaque bool) MaterialBuilderOption {
	return func(m *material) {
		m.opaque = opaque
	}
}

// WithCullFaces is an option builder that toggles back face culling.
func WithCullFaces(cull bool) MaterialBuilderOption {
	return func(m *material) {
		m.cullFaces = cull
	}
}

// WithDepth is an option builder that sets depth testing and depth writes.
//
// Parameters:
//   - test: whether fragments are depth tested
//   - write: whether fragments write depth
//
// Returns:
//   - MaterialBuilderOption: a function that applies the depth options to a material
func WithDepth(test, write bool) MaterialBuilderOption {
	return func(m *material) {
		m.depthTest = test
		m.depthWrite = write
	}
}

// WithBlendMode is an option builder that sets the blend mode.
func WithBlendMode(mode BlendMode) MaterialBuilderOption {
	return func(m *material) {
		m.blendMode = mode
	}
}

// WithInstancing is an option builder that allows or forbids instanced drawing.
func WithInstancing(allow bool) MaterialBuilderOption {
	return func(m *material) {
		m.allowInstancing = allow
	}
}

// WithReflections is an option builder that allows or forbids environment map reflections.
func WithReflections(allow bool) MaterialBuilderOption {
	return func(m *material) {
		m.allowReflections = allow
	}
}

// WithShader is an option builder that sets the shader source.
//
// Parameters:
//   - src: the shader source; nil selects the renderer default
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shader option to a material
func WithShader(src *shader.Source) MaterialBuilderOption {
	return func(m *material) {
		m.shader = src
	}
}

// WithDrawType is an option builder that sets the draw type: points, lines or triangles.
func WithDrawType(drawType string) MaterialBuilderOption {
	return func(m *material) {
		m.drawType = drawType
	}
}

// WithTextures is an option builder that sets the texture slot mapping. The map is copied.
//
// Parameters:
//   - textures: slot name to texture, e.g. "diffuseMap"
//
// Returns:
//   - MaterialBuilderOption: a function that applies the textures option to a material
func WithTextures(textures map[string]*texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.textures = cloneTextures(textures)
	}
}

// WithDefines is an option builder that enables shader defines. The map is copied.
func WithDefines(defines shader.Defines) MaterialBuilderOption {
	return func(m *material) {
		maps.Copy(m.defines, defines)
	}
}
