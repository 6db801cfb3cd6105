package material

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
)

// BlendMode selects how a material's fragments combine with the target.
type BlendMode int

const (
	// BlendReplace writes fragments without blending.
	BlendReplace BlendMode = iota
	// BlendAdd adds alpha-weighted fragments to the target.
	BlendAdd
	// BlendAlpha is classic alpha blending.
	BlendAlpha
	// BlendMultiply multiplies the target by the fragment color.
	BlendMultiply
)

var blendModeNames = map[BlendMode]string{
	BlendReplace:  "replace",
	BlendAdd:      "add",
	BlendAlpha:    "alpha",
	BlendMultiply: "multiply",
}

func (b BlendMode) String() string {
	if s, ok := blendModeNames[b]; ok {
		return s
	}
	return fmt.Sprintf("BlendMode(%d)", int(b))
}

// ParseBlendMode converts a blend mode name. Matching ignores case.
func ParseBlendMode(s string) (BlendMode, error) {
	for mode, name := range blendModeNames {
		if strings.EqualFold(name, s) {
			return mode, nil
		}
	}
	return BlendReplace, fmt.Errorf("unknown blend mode %q", s)
}

// Draw types understood by Primitive. Any other value, "wireframe" included, draws triangles.
const (
	DrawPoints    = "points"
	DrawLines     = "lines"
	DrawTriangles = "triangles"
)

// ErrUnsupportedUniform is returned by SetUniform for values that are not a float or a vector.
var ErrUnsupportedUniform = errors.New("material: unsupported uniform value")

// material is the implementation of the Material interface.
type material struct {
	name             string
	diffuseColor     common.Color
	specularColor    common.Color
	opaque           bool
	cullFaces        bool
	depthTest        bool
	depthWrite       bool
	blendMode        BlendMode
	allowInstancing  bool
	allowReflections bool
	shader           *shader.Source
	drawType         string
	textures         map[string]*texture.Texture
	uniforms         map[string]any
	defines          shader.Defines
}

// Material describes how geometry is drawn: colors, render state, the shader and its defines,
// textures by slot name and custom uniforms.
//
// Materials are compared by identity when the renderer batches geometry, so two materials
// with equal properties still form separate batches.
type Material interface {
	// Name returns the material name, usually its source path.
	Name() string

	// DiffuseColor returns the diffuse tint.
	DiffuseColor() common.Color

	// SetDiffuseColor sets the diffuse tint.
	SetDiffuseColor(c common.Color)

	// SpecularColor returns the specular tint. Its alpha is the specular hardness.
	SpecularColor() common.Color

	// SetSpecularColor sets the specular tint.
	SetSpecularColor(c common.Color)

	// Opaque reports whether the material is drawn in the opaque pass. Transparent materials
	// are drawn after all opaque geometry.
	Opaque() bool

	// SetOpaque moves the material between the opaque and transparent passes.
	SetOpaque(opaque bool)

	// CullFaces reports whether back faces are culled.
	CullFaces() bool

	// DepthTest reports whether fragments are depth tested.
	DepthTest() bool

	// DepthWrite reports whether fragments write depth.
	DepthWrite() bool

	// BlendMode returns the blend mode.
	BlendMode() BlendMode

	// Blend converts the blend mode to device state.
	//
	// Returns:
	//   - bool: false for BlendReplace, which disables blending
	//   - device.BlendFunc: the source and destination factors
	Blend() (bool, device.BlendFunc)

	// AllowInstancing reports whether the renderer may draw this material instanced.
	AllowInstancing() bool

	// AllowReflections reports whether the material samples environment maps.
	AllowReflections() bool

	// Shader returns the shader source, or nil when the renderer default should be used.
	Shader() *shader.Source

	// SetShader replaces the shader source.
	SetShader(src *shader.Source)

	// DrawType returns the draw type name.
	DrawType() string

	// Primitive maps the draw type to a device primitive.
	Primitive() device.Primitive

	// Textures returns the texture slot mapping. The map is owned by the material.
	Textures() map[string]*texture.Texture

	// SetTexture binds a texture to a slot name such as "diffuseMap". A nil texture clears the slot.
	SetTexture(slot string, tex *texture.Texture)

	// Uniforms returns the custom uniforms. The map is owned by the material.
	Uniforms() map[string]any

	// SetUniform sets a custom uniform uploaded whenever the material is bound.
	//
	// Parameters:
	//   - name: the uniform name in the shader
	//   - value: float32, float64, [2]float32, [3]float32, common.Vec3, [4]float32 or common.Color
	//
	// Returns:
	//   - error: ErrUnsupportedUniform for any other value type
	SetUniform(name string, value any) error

	// Defines returns the material's shader defines. The map is owned by the material.
	Defines() shader.Defines

	// EnableDefine enables a shader define with an optional value.
	// Builtin defines such as INSTANCING are set by the renderer and should not be enabled here.
	EnableDefine(name string, value ...string)

	// DisableDefine disables a shader define.
	DisableDefine(name string)

	// EnableDefines enables several valueless defines.
	EnableDefines(names ...string)

	// DisableDefines disables several defines.
	DisableDefines(names ...string)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Defaults: white diffuse and specular, opaque, culled, depth tested and written, no blending,
// instancing and reflections allowed, triangles, no shader, textures or defines.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		diffuseColor:     common.ColorWhite,
		specularColor:    common.ColorWhite,
		opaque:           true,
		cullFaces:        true,
		depthTest:        true,
		depthWrite:       true,
		blendMode:        BlendReplace,
		allowInstancing:  true,
		allowReflections: true,
		drawType:         DrawTriangles,
		textures:         make(map[string]*texture.Texture),
		uniforms:         make(map[string]any),
		defines:          make(shader.Defines),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) DiffuseColor() common.Color {
	return m.diffuseColor
}

func (m *material) SetDiffuseColor(c common.Color) {
	m.diffuseColor = c
}

func (m *material) SpecularColor() common.Color {
	return m.specularColor
}

func (m *material) SetSpecularColor(c common.Color) {
	m.specularColor = c
}

func (m *material) Opaque() bool {
	return m.opaque
}

func (m *material) SetOpaque(opaque bool) {
	m.opaque = opaque
}

func (m *material) CullFaces() bool {
	return m.cullFaces
}

func (m *material) DepthTest() bool {
	return m.depthTest
}

func (m *material) DepthWrite() bool {
	return m.depthWrite
}

func (m *material) BlendMode() BlendMode {
	return m.blendMode
}

func (m *material) Blend() (bool, device.BlendFunc) {
	switch m.blendMode {
	case BlendAlpha:
		return true, device.BlendFunc{Src: device.BlendSrcAlpha, Dst: device.BlendOneMinusSrcAlpha}
	case BlendAdd:
		return true, device.BlendFunc{Src: device.BlendSrcAlpha, Dst: device.BlendOne}
	case BlendMultiply:
		return true, device.BlendFunc{Src: device.BlendDstColor, Dst: device.BlendOneMinusSrcAlpha}
	default:
		return false, device.BlendFunc{Src: device.BlendOne, Dst: device.BlendZero}
	}
}

func (m *material) AllowInstancing() bool {
	return m.allowInstancing
}

func (m *material) AllowReflections() bool {
	return m.allowReflections
}

func (m *material) Shader() *shader.Source {
	return m.shader
}

func (m *material) SetShader(src *shader.Source) {
	m.shader = src
}

func (m *material) DrawType() string {
	return m.drawType
}

func (m *material) Primitive() device.Primitive {
	switch m.drawType {
	case DrawPoints:
		return device.Points
	case DrawLines:
		return device.Lines
	default:
		return device.Triangles
	}
}

func (m *material) Textures() map[string]*texture.Texture {
	return m.textures
}

func (m *material) SetTexture(slot string, tex *texture.Texture) {
	if tex == nil {
		delete(m.textures, slot)
		return
	}
	m.textures[slot] = tex
}

func (m *material) Uniforms() map[string]any {
	return m.uniforms
}

func (m *material) SetUniform(name string, value any) error {
	switch v := value.(type) {
	case float32, [2]float32, [4]float32:
		m.uniforms[name] = v
	case float64:
		m.uniforms[name] = float32(v)
	case [3]float32:
		m.uniforms[name] = common.Vec3(v)
	case common.Vec3:
		m.uniforms[name] = v
	case common.Color:
		m.uniforms[name] = [4]float32(v)
	default:
		return fmt.Errorf("%s: %T: %w", name, value, ErrUnsupportedUniform)
	}
	return nil
}

func (m *material) Defines() shader.Defines {
	return m.defines
}

func (m *material) EnableDefine(name string, value ...string) {
	m.defines.Enable(name, value...)
}

func (m *material) DisableDefine(name string) {
	m.defines.Disable(name)
}

func (m *material) EnableDefines(names ...string) {
	for _, n := range names {
		m.defines.Enable(n)
	}
}

func (m *material) DisableDefines(names ...string) {
	for _, n := range names {
		m.defines.Disable(n)
	}
}

// cloneTextures copies a texture map so builder options do not alias caller state.
func cloneTextures(in map[string]*texture.Texture) map[string]*texture.Texture {
	out := make(map[string]*texture.Texture, len(in))
	maps.Copy(out, in)
	return out
}
