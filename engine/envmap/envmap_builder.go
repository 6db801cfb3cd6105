package envmap

// EnvironmentMapBuilderOption is a function that configures an environment map during construction.
type EnvironmentMapBuilderOption func(*environmentMap)

// WithResolution sets the edge length of each cube face in pixels.
//
// Parameters:
//   - resolution: face size in pixels
//
// Returns:
//   - EnvironmentMapBuilderOption: a function that sets the resolution
func WithResolution(resolution int) EnvironmentMapBuilderOption {
	return func(e *environmentMap) {
		e.resolution = resolution
	}
}
