package shader

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
)

// MaxLights is the hard cap of simultaneous lights a variant can be built for.
const MaxLights = 8

// Uniform names the renderer writes.
const (
	UniformModelMatrix          = "uModelMatrix"
	UniformModelViewMatrix      = "uModelViewMatrix"
	UniformDiffuseColor         = "uDiffuseColor"
	UniformSpecularColor        = "uSpecularColor"
	UniformAmbientColor         = "uAmbientColor"
	UniformViewMatrix           = "uViewMatrix"
	UniformViewForward          = "uViewForward"
	UniformViewPosition         = "uViewPosition"
	UniformViewProjectionMatrix = "uViewProjectionMatrix"
	UniformProjectionMatrix     = "uProjectionMatrix"
	UniformInverseViewMatrix    = "uInverseViewMatrix"
	UniformFogParams            = "uFogParams"
	UniformFogColor             = "uFogColor"
	UniformTint                 = "uTint"
)

// AttributeInstanceModelMatrix is the per-instance model matrix input. It occupies four
// consecutive locations.
const AttributeInstanceModelMatrix = "iInstanceModelMatrix"

var builtinUniforms = []string{
	UniformModelMatrix, UniformModelViewMatrix,
	UniformDiffuseColor, UniformSpecularColor, UniformAmbientColor,
	UniformViewMatrix, UniformViewForward, UniformViewPosition,
	UniformViewProjectionMatrix, UniformProjectionMatrix, UniformInverseViewMatrix,
	UniformFogParams, UniformFogColor, UniformTint,
}

// TextureSlots maps material texture names to fixed texture units.
var TextureSlots = map[string]int{
	"diffuseMap":     0,
	"specularMap":    1,
	"normalMap":      2,
	"heightMap":      3,
	"ambientMap":     4,
	"emissionMap":    5,
	"environmentMap": 6,
}

// EnvironmentMapSlot is the texture name of the reflection cube map.
const EnvironmentMapSlot = "environmentMap"

// LightLocations holds the uniform locations of one light slot.
type LightLocations struct {
	Position int32
	Color    int32
	Range    int32
}

// Program is a linked shader variant together with its location tables. Tables hold -1 for
// names the program does not declare.
type Program struct {
	Source  Source
	Handle  device.Handle
	Defines Defines
	Key     string

	Uniforms   map[string]int32
	Textures   map[string]int32
	Attributes map[string]int32
	Lights     [MaxLights]LightLocations
}

// NewProgram wraps a linked program handle.
func NewProgram(src Source, handle device.Handle, defines Defines, key string) *Program {
	return &Program{
		Source:     src,
		Handle:     handle,
		Defines:    defines.Clone(),
		Key:        key,
		Uniforms:   make(map[string]int32),
		Textures:   make(map[string]int32),
		Attributes: make(map[string]int32),
	}
}

// Locate queries the device for the locations of every builtin uniform, texture and light slot.
//
// Parameters:
//   - dev: the device the program was linked on
func (p *Program) Locate(dev device.Device) {
	for _, name := range builtinUniforms {
		p.Uniforms[name] = dev.UniformLocation(p.Handle, name)
	}
	for name := range TextureSlots {
		p.Textures[name] = dev.UniformLocation(p.Handle, SamplerUniformName(name))
	}
	for i := range p.Lights {
		prefix := "uLights[" + strconv.Itoa(i) + "]."
		p.Lights[i] = LightLocations{
			Position: dev.UniformLocation(p.Handle, prefix+"position"),
			Color:    dev.UniformLocation(p.Handle, prefix+"color"),
			Range:    dev.UniformLocation(p.Handle, prefix+"range"),
		}
	}
	p.Attributes[AttributeInstanceModelMatrix] = dev.AttribLocation(p.Handle, AttributeInstanceModelMatrix)
}

// Uniform returns the location of a uniform, querying and caching names outside the builtin table.
func (p *Program) Uniform(dev device.Device, name string) int32 {
	if loc, ok := p.Uniforms[name]; ok {
		return loc
	}
	loc := dev.UniformLocation(p.Handle, name)
	p.Uniforms[name] = loc
	return loc
}

// Attribute returns the input location of a mesh attribute, using the "i" + capitalized name
// convention (position becomes iPosition).
func (p *Program) Attribute(dev device.Device, attribute string) int32 {
	name := AttributeInputName(attribute)
	if loc, ok := p.Attributes[name]; ok {
		return loc
	}
	loc := dev.AttribLocation(p.Handle, name)
	p.Attributes[name] = loc
	return loc
}

// Texture returns the sampler location of a texture slot name, or -1.
func (p *Program) Texture(name string) int32 {
	if loc, ok := p.Textures[name]; ok {
		return loc
	}
	return -1
}

// AttributeInputName converts a mesh attribute name to its shader input name.
func AttributeInputName(attribute string) string {
	return "i" + capitalize(attribute)
}

// SamplerUniformName converts a texture slot name to its shader variable name.
func SamplerUniformName(slot string) string {
	return "s" + capitalize(slot)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	var sb strings.Builder
	sb.WriteRune(unicode.ToUpper(r))
	sb.WriteString(s[size:])
	return sb.String()
}
