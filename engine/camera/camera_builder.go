package camera

type CameraBuilderOption func(*cameraImpl)

// WithOrthographic switches the camera to an orthographic projection.
//
// Parameters:
//   - size: width of the orthographic view volume
//
// Returns:
//   - CameraBuilderOption: a function that enables the orthographic projection
func WithOrthographic(size float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.orthographic = true
		c.orthographicSize = size
	}
}

// WithFieldOfView sets the camera's vertical field of view in degrees.
//
// Parameters:
//   - deg: field of view in degrees
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFieldOfView(deg float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = deg
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithClip sets the near and far clipping plane distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's clipping planes
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}
