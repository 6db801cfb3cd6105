// Package light provides the point light component.
package light

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
)

// Falloff selects how a light fades with distance.
type Falloff int

const (
	// FalloffQuadratic fades with the square of the normalized distance.
	FalloffQuadratic Falloff = iota
	// FalloffLinear fades linearly to zero at the range.
	FalloffLinear
	// FalloffConstant keeps full strength up to the range.
	FalloffConstant
)

var falloffNames = map[Falloff]string{
	FalloffQuadratic: "quadratic",
	FalloffLinear:    "linear",
	FalloffConstant:  "constant",
}

func (f Falloff) String() string {
	if s, ok := falloffNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Falloff(%d)", int(f))
}

// ParseFalloff converts a falloff name. Matching ignores case.
func ParseFalloff(s string) (Falloff, error) {
	for f, name := range falloffNames {
		if strings.EqualFold(name, s) {
			return f, nil
		}
	}
	return FalloffQuadratic, fmt.Errorf("unknown falloff %q", s)
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	scene.ComponentBase
	color           common.Color
	lightRange      float32
	intensity       float32
	falloff         Falloff
	diffuseEnabled  bool
	specularEnabled bool
}

// Light is a point light component. It emits from the world position of its node.
//
// The renderer collects every Light under enabled nodes each frame, ranks them against the
// camera and uploads the survivors into the shader's light slots.
type Light interface {
	scene.Component

	// Color returns the color the light is tinted to.
	//
	// Returns:
	//   - common.Color: the light color
	Color() common.Color

	// Range returns the distance at which the light stops having any effect.
	//
	// Returns:
	//   - float32: the range in world units
	Range() float32

	// Intensity returns the light's intensity multiplier. It also scales the light's
	// culling priority.
	//
	// Returns:
	//   - float32: the intensity
	Intensity() float32

	// Falloff returns how the light fades with distance.
	Falloff() Falloff

	// DiffuseEnabled reports whether the light contributes to diffuse shading.
	DiffuseEnabled() bool

	// SpecularEnabled reports whether the light contributes to specular highlights.
	SpecularEnabled() bool

	// SetColor sets the light color.
	SetColor(c common.Color)

	// SetRange sets the light range.
	SetRange(r float32)

	// SetIntensity sets the intensity multiplier.
	SetIntensity(i float32)

	// SetFalloff sets the falloff mode.
	SetFalloff(f Falloff)
}

var _ Light = &lightImpl{}
var _ scene.Describer = &lightImpl{}

// NewLight creates a detached light. Attach it with scene.AddComponent.
// Defaults: white, range 50, intensity 1, quadratic falloff, diffuse and specular enabled.
//
// Parameters:
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(opts ...LightBuilderOption) Light {
	l := &lightImpl{
		color:           common.ColorWhite,
		lightRange:      50,
		intensity:       1,
		falloff:         FalloffQuadratic,
		diffuseEnabled:  true,
		specularEnabled: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Color() common.Color {
	return l.color
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Falloff() Falloff {
	return l.falloff
}

func (l *lightImpl) DiffuseEnabled() bool {
	return l.diffuseEnabled
}

func (l *lightImpl) SpecularEnabled() bool {
	return l.specularEnabled
}

func (l *lightImpl) SetColor(c common.Color) {
	l.color = c
}

func (l *lightImpl) SetRange(r float32) {
	l.lightRange = r
}

func (l *lightImpl) SetIntensity(i float32) {
	l.intensity = i
}

func (l *lightImpl) SetFalloff(f Falloff) {
	l.falloff = f
}

func (l *lightImpl) Describe() (string, map[string]any) {
	return "Light", map[string]any{
		"color":           l.color,
		"range":           l.lightRange,
		"intensity":       l.intensity,
		"falloff":         l.falloff.String(),
		"diffuseEnabled":  l.diffuseEnabled,
		"specularEnabled": l.specularEnabled,
	}
}
