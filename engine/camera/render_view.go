package camera

import "github.com/Carmen-Shannon/oxy-scene/common"

// RenderView is the set of matrices a scene is rendered with. Cameras produce one per frame
// and environment maps produce six, one per cube face.
type RenderView struct {
	Projection     common.Mat4
	View           common.Mat4
	InverseView    common.Mat4
	ViewProjection common.Mat4
}

// NewRenderView derives the inverse view and view-projection matrices. A singular view
// leaves InverseView at the identity.
//
// Parameters:
//   - projection: the projection matrix
//   - view: the world to view matrix
//
// Returns:
//   - RenderView: the populated render view
func NewRenderView(projection, view common.Mat4) RenderView {
	inv, ok := view.Inverse()
	if !ok {
		inv = common.Identity()
	}
	return RenderView{
		Projection:     projection,
		View:           view,
		InverseView:    inv,
		ViewProjection: projection.Mul(view),
	}
}

// Position returns the eye position in world space.
func (v RenderView) Position() common.Vec3 {
	return v.InverseView.GetTranslation()
}

// Forward returns the normalized world space look direction.
func (v RenderView) Forward() common.Vec3 {
	return v.InverseView.Column(2).Scale(-1).Normalize()
}
