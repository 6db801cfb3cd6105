package material

import (
	"bytes"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
	"github.com/pelletier/go-toml/v2"
)

// File is the TOML representation of a material. Unset optional fields keep the NewMaterial
// defaults.
//
//	name = "brick"
//	diffuse = [1.0, 0.8, 0.8, 1.0]
//	blend = "alpha"
//	opaque = false
//	shader = "shaders/phong.wgsl"
//
//	[textures]
//	diffuseMap = "textures/brick.png"
//
//	[uniforms]
//	uGlow = 0.25
//
//	[defines]
//	LIGHTS = ""
//	QUALITY = "2"
type File struct {
	Name        string            `toml:"name"`
	Diffuse     []float32         `toml:"diffuse"`
	Specular    []float32         `toml:"specular"`
	Opaque      *bool             `toml:"opaque"`
	CullFaces   *bool             `toml:"cull_faces"`
	DepthTest   *bool             `toml:"depth_test"`
	DepthWrite  *bool             `toml:"depth_write"`
	Blend       string            `toml:"blend"`
	DrawType    string            `toml:"draw_type"`
	Instancing  *bool             `toml:"instancing"`
	Reflections *bool             `toml:"reflections"`
	Shader      string            `toml:"shader"`
	Textures    map[string]string `toml:"textures"`
	Uniforms    map[string]any    `toml:"uniforms"`
	Defines     map[string]string `toml:"defines"`
}

// Resolver loads the resources a material file refers to.
type Resolver interface {
	// Shader returns the shader source stored at path.
	Shader(path string) (*shader.Source, error)

	// Texture returns the texture stored at path.
	Texture(path string) (*texture.Texture, error)
}

// DecodeFile parses TOML material data. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - *File: the parsed file
//   - error: a decode error naming the offending key or position
func DecodeFile(data []byte) (*File, error) {
	var f File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode material: %w", err)
	}
	return &f, nil
}

// Build creates the material, loading its shader and textures through r.
//
// Parameters:
//   - name: the fallback name when the file has none, usually the source path
//   - r: resolves shader and texture paths; may be nil when the file references none
//
// Returns:
//   - Material: the built material
//   - error: an error for malformed values or failed dependencies
func (f *File) Build(name string, r Resolver) (Material, error) {
	opts := []MaterialBuilderOption{WithName(common.Coalesce(f.Name, name))}

	if f.Diffuse != nil {
		c, err := colorFrom("diffuse", f.Diffuse)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDiffuseColor(c))
	}
	if f.Specular != nil {
		c, err := colorFrom("specular", f.Specular)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSpecularColor(c))
	}
	if f.Blend != "" {
		mode, err := ParseBlendMode(f.Blend)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBlendMode(mode))
	}
	if f.DrawType != "" {
		opts = append(opts, WithDrawType(f.DrawType))
	}

	m := NewMaterial(opts...).(*material)
	setBool(&m.opaque, f.Opaque)
	setBool(&m.cullFaces, f.CullFaces)
	setBool(&m.depthTest, f.DepthTest)
	setBool(&m.depthWrite, f.DepthWrite)
	setBool(&m.allowInstancing, f.Instancing)
	setBool(&m.allowReflections, f.Reflections)

	if (f.Shader != "" || len(f.Textures) > 0) && r == nil {
		return nil, fmt.Errorf("material %s: dependencies need a resolver", m.name)
	}
	if f.Shader != "" {
		src, err := r.Shader(f.Shader)
		if err != nil {
			return nil, fmt.Errorf("material %s: shader %s: %w", m.name, f.Shader, err)
		}
		m.shader = src
	}
	for slot, path := range f.Textures {
		tex, err := r.Texture(path)
		if err != nil {
			return nil, fmt.Errorf("material %s: texture %s: %w", m.name, path, err)
		}
		m.SetTexture(slot, tex)
	}

	for uname, raw := range f.Uniforms {
		value, err := uniformFrom(raw)
		if err != nil {
			return nil, fmt.Errorf("material %s: uniform %s: %w", m.name, uname, err)
		}
		if err := m.SetUniform(uname, value); err != nil {
			return nil, err
		}
	}
	for dname, value := range f.Defines {
		m.EnableDefine(dname, value)
	}
	return m, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// colorFrom accepts RGB or RGBA components; RGB gets an alpha of 1.
func colorFrom(field string, v []float32) (common.Color, error) {
	switch len(v) {
	case 3:
		return common.Color{v[0], v[1], v[2], 1}, nil
	case 4:
		return common.Color(v), nil
	default:
		return common.Color{}, fmt.Errorf("%s: expected 3 or 4 components, got %d", field, len(v))
	}
}

// uniformFrom converts a decoded TOML value (number or array of 2 to 4 numbers) to a
// uniform value.
func uniformFrom(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return float32(v), nil
	case int64:
		return float32(v), nil
	case []any:
		comps := make([]float32, len(v))
		for i, c := range v {
			f, err := uniformFrom(c)
			if err != nil {
				return nil, err
			}
			s, ok := f.(float32)
			if !ok {
				return nil, ErrUnsupportedUniform
			}
			comps[i] = s
		}
		switch len(comps) {
		case 2:
			return [2]float32(comps), nil
		case 3:
			return [3]float32(comps), nil
		case 4:
			return [4]float32(comps), nil
		}
	}
	return nil, ErrUnsupportedUniform
}
