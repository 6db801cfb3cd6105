package scene

import "github.com/Carmen-Shannon/oxy-scene/common"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithBackground sets the clear color.
//
// Parameters:
//   - c: the background color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBackground(c common.Color) SceneBuilderOption {
	return func(s *scene) {
		s.background = c
	}
}

// WithAmbientColor sets the ambient light color.
//
// Parameters:
//   - c: the ambient color
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAmbientColor(c common.Color) SceneBuilderOption {
	return func(s *scene) {
		s.ambient = c
	}
}

// WithFog replaces the default fog settings.
//
// Parameters:
//   - f: the fog settings
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithFog(f Fog) SceneBuilderOption {
	return func(s *scene) {
		s.fog = f
	}
}
