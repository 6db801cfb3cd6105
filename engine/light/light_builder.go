package light

import "github.com/Carmen-Shannon/oxy-scene/common"

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithColor is an option builder that sets the light color.
//
// Parameters:
//   - c: the light color
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(c common.Color) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = c
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithRange is an option builder that sets the maximum distance the light reaches.
//
// Parameters:
//   - lightRange: the range value
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a lightImpl
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightRange = lightRange
	}
}

// WithFalloff is an option builder that sets the falloff mode.
func WithFalloff(f Falloff) LightBuilderOption {
	return func(l *lightImpl) {
		l.falloff = f
	}
}

// WithContributions is an option builder that toggles the diffuse and specular contributions.
//
// Parameters:
//   - diffuse: whether the light adds diffuse shading
//   - specular: whether the light adds specular highlights
//
// Returns:
//   - LightBuilderOption: a function that applies the contribution options to a lightImpl
func WithContributions(diffuse, specular bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.diffuseEnabled = diffuse
		l.specularEnabled = specular
	}
}
