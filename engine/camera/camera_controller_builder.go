package camera

import "github.com/Carmen-Shannon/oxy-scene/common"

// OrbitControllerOption is a function that configures an orbit controller during construction.
type OrbitControllerOption func(*orbitController)

// FlyControllerOption is a function that configures a fly controller during construction.
type FlyControllerOption func(*flyController)

// WithRadius sets the initial distance from the target.
//
// Parameters:
//   - radius: distance from the target
//
// Returns:
//   - OrbitControllerOption: a function that sets the orbit radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle in radians.
//
// Parameters:
//   - azimuth: horizontal angle around the Y axis in radians
//
// Returns:
//   - OrbitControllerOption: a function that sets the azimuth
func WithAzimuth(azimuth float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle in radians.
//
// Parameters:
//   - elevation: vertical angle from the horizontal plane in radians
//
// Returns:
//   - OrbitControllerOption: a function that sets the elevation
func WithElevation(elevation float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.elevation = elevation
	}
}

// WithTarget sets the orbit center.
//
// Parameters:
//   - target: the world space point to orbit around
//
// Returns:
//   - OrbitControllerOption: a function that sets the target
func WithTarget(target common.Vec3) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.target = target
	}
}

// WithRadiusBounds sets the minimum and maximum orbit radius.
//
// Parameters:
//   - minRadius: minimum distance from the target
//   - maxRadius: maximum distance from the target
//
// Returns:
//   - OrbitControllerOption: a function that sets the radius bounds
func WithRadiusBounds(minRadius, maxRadius float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.minRadius = minRadius
		oc.maxRadius = maxRadius
	}
}

// WithElevationBounds sets the minimum and maximum elevation in radians.
//
// Parameters:
//   - minElevation: minimum elevation in radians
//   - maxElevation: maximum elevation in radians
//
// Returns:
//   - OrbitControllerOption: a function that sets the elevation bounds
func WithElevationBounds(minElevation, maxElevation float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.minElevation = minElevation
		oc.maxElevation = maxElevation
	}
}

// WithOrbitSensitivity sets the orbit rotation per dragged pixel in radians.
func WithOrbitSensitivity(sensitivity float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.mouseSensitivity = sensitivity
	}
}

// WithZoomSpeed sets the radius change per unit of scroll.
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.zoomSpeed = speed
	}
}

// WithPanSpeed sets the keyboard pan speed in units per second.
func WithPanSpeed(speed float32) OrbitControllerOption {
	return func(oc *orbitController) {
		oc.panSpeed = speed
	}
}

// WithMoveSpeed sets the fly speed in units per second.
//
// Parameters:
//   - speed: units per second
//
// Returns:
//   - FlyControllerOption: a function that sets the move speed
func WithMoveSpeed(speed float32) FlyControllerOption {
	return func(fc *flyController) {
		fc.moveSpeed = speed
	}
}

// WithMouseSensitivity sets the look rotation per pixel in radians.
//
// Parameters:
//   - sensitivity: radians per pixel
//
// Returns:
//   - FlyControllerOption: a function that sets the mouse sensitivity
func WithMouseSensitivity(sensitivity float32) FlyControllerOption {
	return func(fc *flyController) {
		fc.mouseSensitivity = sensitivity
	}
}

// WithFreeLook makes every mouse move rotate the view instead of only drags.
func WithFreeLook() FlyControllerOption {
	return func(fc *flyController) {
		fc.freeLook = true
	}
}
