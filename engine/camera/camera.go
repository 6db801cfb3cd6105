package camera

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

type cameraImpl struct {
	scene.ComponentBase

	orthographic     bool
	orthographicSize float32

	fov    float32
	aspect float32
	near   float32
	far    float32
}

// Camera is a component that turns its node into a point of view. The node's world transform
// is the camera transform: the camera looks down the node's -Z axis.
type Camera interface {
	scene.Component

	// Orthographic reports whether the camera uses an orthographic projection.
	Orthographic() bool

	// SetOrthographic switches between orthographic and perspective projection.
	SetOrthographic(orthographic bool)

	// OrthographicSize returns the width of the orthographic view volume.
	OrthographicSize() float32

	// SetOrthographicSize sets the width of the orthographic view volume. Its height is
	// the size divided by the aspect ratio.
	SetOrthographicSize(size float32)

	// FieldOfView returns the vertical field of view in degrees.
	//
	// Returns:
	//   - float32: field of view in degrees
	FieldOfView() float32

	// SetFieldOfView sets the vertical field of view in degrees.
	SetFieldOfView(deg float32)

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// SetAspect sets the aspect ratio, typically on window resize.
	SetAspect(aspect float32)

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// SetClip sets the near and far clipping plane distances.
	//
	// Parameters:
	//   - near: near plane distance
	//   - far: far plane distance
	SetClip(near, far float32)

	// ProjectionMatrix builds the projection matrix from the current settings.
	//
	// Returns:
	//   - common.Mat4: the projection matrix (column-major, depth in [0, 1])
	ProjectionMatrix() common.Mat4

	// ViewMatrix returns the inverse of the node's world transform. A detached camera,
	// or one whose node has a singular transform, returns the identity.
	//
	// Returns:
	//   - common.Mat4: the view matrix
	ViewMatrix() common.Mat4

	// RenderView bundles the current projection and view for the renderer.
	//
	// Returns:
	//   - RenderView: the camera's render view
	RenderView() RenderView
}

var _ Camera = &cameraImpl{}
var _ scene.Describer = &cameraImpl{}

// NewCamera creates a new Camera configured with the provided options.
// Defaults: perspective, field of view 60 degrees, aspect 0.5, near 0.01, far 1000,
// orthographic size 10.
//
// Parameters:
//   - options: variadic list of CameraBuilderOption functions to configure the camera
//
// Returns:
//   - Camera: a camera ready to attach with scene.AddComponent
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		orthographicSize: 10,
		fov:              60,
		aspect:           0.5,
		near:             0.01,
		far:              1000,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Orthographic() bool {
	return c.orthographic
}

func (c *cameraImpl) SetOrthographic(orthographic bool) {
	c.orthographic = orthographic
}

func (c *cameraImpl) OrthographicSize() float32 {
	return c.orthographicSize
}

func (c *cameraImpl) SetOrthographicSize(size float32) {
	c.orthographicSize = size
}

func (c *cameraImpl) FieldOfView() float32 {
	return c.fov
}

func (c *cameraImpl) SetFieldOfView(deg float32) {
	c.fov = deg
}

func (c *cameraImpl) Aspect() float32 {
	return c.aspect
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.aspect = aspect
}

func (c *cameraImpl) Near() float32 {
	return c.near
}

func (c *cameraImpl) Far() float32 {
	return c.far
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.near = near
	c.far = far
}

func (c *cameraImpl) ProjectionMatrix() common.Mat4 {
	if c.orthographic {
		w := c.orthographicSize / 2
		h := w / c.aspect
		return common.Orthographic(-w, w, -h, h, c.near, c.far)
	}
	return common.Perspective(common.DegToRad(c.fov), c.aspect, c.near, c.far)
}

func (c *cameraImpl) ViewMatrix() common.Mat4 {
	n := c.Node()
	if n == nil {
		return common.Identity()
	}
	view, ok := n.WorldTransform().Inverse()
	if !ok {
		common.Logger().Warn("camera: node world transform is singular", "node", n.ID())
		return common.Identity()
	}
	return view
}

func (c *cameraImpl) RenderView() RenderView {
	return NewRenderView(c.ProjectionMatrix(), c.ViewMatrix())
}

func (c *cameraImpl) Describe() (string, map[string]any) {
	return "Camera", map[string]any{
		"orthographic":     c.orthographic,
		"orthographicSize": c.orthographicSize,
		"fieldOfView":      c.fov,
		"aspect":           c.aspect,
		"near":             c.near,
		"far":              c.far,
	}
}
