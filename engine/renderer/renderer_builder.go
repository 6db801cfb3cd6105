package renderer

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithInstancing toggles instanced drawing of large batches. Enabled by default.
//
// Parameters:
//   - enabled: whether batches with more than MinInstancesPerBatch instances are drawn instanced
//
// Returns:
//   - RendererBuilderOption: a function that applies the instancing option to a renderer
func WithInstancing(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.instancing = enabled
	}
}

// WithReflections toggles environment map assignment. Enabled by default.
//
// Parameters:
//   - enabled: whether renderables with reflective materials are assigned environment maps
//
// Returns:
//   - RendererBuilderOption: a function that applies the reflections option to a renderer
func WithReflections(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.reflections = enabled
	}
}

// WithMaxLights sets the working light cap, clamped to [0, MaxLights].
//
// Parameters:
//   - n: the number of lights kept per frame
//
// Returns:
//   - RendererBuilderOption: a function that applies the light cap to a renderer
func WithMaxLights(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxLights = n
	}
}

// WithDisabledDefines removes the named defines from every compiled variant.
//
// Parameters:
//   - names: the define names to disable
//
// Returns:
//   - RendererBuilderOption: a function that applies the disabled defines to a renderer
func WithDisabledDefines(names ...string) RendererBuilderOption {
	return func(r *renderer) {
		for _, n := range names {
			r.disabledDefines.Add(n)
		}
	}
}

// WithDefaultMaterial replaces the material used for geometry without one.
func WithDefaultMaterial(m material.Material) RendererBuilderOption {
	return func(r *renderer) {
		r.defaultMaterial = m
	}
}

// WithDefaultShader replaces the shader used by materials without one.
func WithDefaultShader(src shader.Source) RendererBuilderOption {
	return func(r *renderer) {
		r.defaultShader = src
	}
}
