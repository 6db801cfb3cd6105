package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeyIsOrderIndependent(t *testing.T) {
	a := Defines{}
	a.Enable("LIGHTS")
	a.Enable("FOG")
	a.Enable("QUALITY", "2")

	b := Defines{}
	b.Enable("QUALITY", "2")
	b.Enable("LIGHTS")
	b.Enable("FOG")

	disabled := NewDefineSet("SPECMAP", "FOG")
	assert.Equal(t, BuildKey("phong", a, disabled), BuildKey("phong", b, disabled))
	assert.Equal(t, "phong;FOG;LIGHTS;QUALITY=2;!FOG;!SPECMAP", BuildKey("phong", a, disabled))

	b.Enable("QUALITY", "3")
	assert.NotEqual(t, BuildKey("phong", a, disabled), BuildKey("phong", b, disabled))
	assert.NotEqual(t, BuildKey("phong", a, nil), BuildKey("phong", a, disabled))
	assert.Equal(t, "debug", BuildKey("debug", nil, nil))
}

func TestBuildVariantPreamble(t *testing.T) {
	defines := Defines{"LIGHTS": "", "FOG": "", "LEVEL": "3"}
	text := BuildVariant("", device.StageFragment, Source{Name: "s", Text: "body"}, defines, NewDefineSet("FOG"), 4)

	want := strings.Join([]string{
		"",
		"",
		"#define COMPILE_FRAGMENT",
		"#define MAX_LIGHTS 4",
		"#define LEVEL 3",
		"#define LIGHTS",
		"",
		"#line 1",
		"body",
	}, "\n")
	assert.Equal(t, want, text)

	text = BuildVariant("#version 300 es", device.StageVertex, Source{Text: "x"}, nil, nil, 8)
	assert.True(t, strings.HasPrefix(text, "#version 300 es\n"))
	assert.Contains(t, text, "#define COMPILE_VERTEX\n#define MAX_LIGHTS 8\n")
}

func TestDefinesCloneAndMerge(t *testing.T) {
	base := Defines{"A": ""}
	merged := base.Merge(Defines{"B": "1", "A": "x"})
	assert.Equal(t, Defines{"A": "x", "B": "1"}, merged)
	assert.Equal(t, Defines{"A": ""}, base)
	assert.Equal(t, Defines{}, Defines(nil).Clone())

	merged.Disable("A")
	assert.False(t, merged.Has("A"))
	assert.Equal(t, []string{"B"}, merged.SortedNames())
}

func TestCacheDistinguishesFailureFromMiss(t *testing.T) {
	c := NewCache()

	p, attempted := c.Lookup("phong;LIGHTS")
	assert.Nil(t, p)
	assert.False(t, attempted)

	c.Store("phong;LIGHTS", nil)
	p, attempted = c.Lookup("phong;LIGHTS")
	assert.Nil(t, p)
	assert.True(t, attempted)

	prog := NewProgram(Source{Name: "phong"}, 7, nil, "phong;FOG")
	c.Store("phong;FOG", prog)
	c.Store("debug_lines", NewProgram(Source{Name: "debug_lines"}, 8, nil, "debug_lines"))
	c.Store("phongish;FOG", nil)
	assert.Equal(t, []string{"debug_lines", "phong;FOG", "phong;LIGHTS", "phongish;FOG"}, c.Keys())

	dropped := c.Invalidate("phong")
	assert.Equal(t, []*Program{prog}, dropped)
	assert.Equal(t, []string{"debug_lines", "phongish;FOG"}, c.Keys())

	assert.Len(t, c.Clear(), 1)
	assert.Equal(t, 0, c.Len())
}

func TestPreprocessConditionals(t *testing.T) {
	src := strings.Join([]string{
		"#version 300 es",
		"#define LIGHTS",
		"#define COUNT 4",
		"#ifdef LIGHTS",
		"lit COUNT;",
		"#ifndef FOG",
		"nofog;",
		"#else",
		"fog;",
		"#endif",
		"#else",
		"unlit;",
		"#endif",
		"#undef LIGHTS",
		"#ifdef LIGHTS",
		"gone;",
		"#endif",
		"COUNTER COUNT",
	}, "\n")

	out, err := Preprocess(src)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 18)
	assert.Equal(t, "lit 4;", lines[4])
	assert.Equal(t, "nofog;", lines[6])
	assert.Equal(t, "", lines[8])
	assert.Equal(t, "", lines[11])
	assert.Equal(t, "", lines[15])
	assert.Equal(t, "COUNTER 4", lines[17])
	assert.NotContains(t, out, "#")
}

func TestPreprocessErrors(t *testing.T) {
	_, err := Preprocess("#ifdef A\nx")
	assert.ErrorContains(t, err, "line 1")

	_, err = Preprocess("x\n#endif")
	assert.ErrorContains(t, err, "line 2")

	_, err = Preprocess("#ifdef A\n#else\n#else\n#endif")
	assert.ErrorContains(t, err, "duplicate #else")

	_, err = Preprocess("#define 9bad")
	assert.Error(t, err)

	_, err = Preprocess("#include \"x\"")
	assert.ErrorContains(t, err, "unknown directive")
}

func phongVariant(t *testing.T, defines Defines) *Reflection {
	t.Helper()
	text := BuildVariant("", device.StageVertex, Phong(), defines, nil, 4)
	wgsl, err := Preprocess(text)
	require.NoError(t, err)
	r, err := Reflect(wgsl)
	require.NoError(t, err)
	return r
}

func TestReflectPhongUniformLayout(t *testing.T) {
	r := phongVariant(t, Defines{"LIGHTS": ""})

	assert.Equal(t, "vs_main", r.VertexEntry)
	assert.Equal(t, "fs_main", r.FragmentEntry)

	block, ok := r.Resource("u")
	require.True(t, ok)
	assert.Equal(t, ResourceUniform, block.Kind)
	assert.Equal(t, 752, block.Size)

	cases := map[string]int{
		"uModelMatrix":        0,
		"uDiffuseColor":       384,
		"uFogColor":           432,
		"uViewForward":        448,
		"uViewPosition":       464,
		"uFogParams":          480,
		"uLights[0].position": 496,
		"uLights[0].range":    508,
		"uLights[2].color":    576,
		"uLights[7].color":    736,
	}
	for name, offset := range cases {
		_, f, ok := r.Uniform(name)
		require.True(t, ok, name)
		assert.Equal(t, offset, f.Offset, name)
	}

	_, f, _ := r.Uniform("uViewMatrix")
	assert.Equal(t, 64, f.Size)
	assert.Equal(t, "mat4x4f", f.Type)

	_, _, ok = r.Uniform("uLights[8].color")
	assert.False(t, ok)
}

func TestReflectPhongInputsAndTextures(t *testing.T) {
	r := phongVariant(t, Defines{"INSTANCING": "", "DIFFUSEMAP": "", "ENVIRONMENTMAP": ""})

	names := make([]string, 0, len(r.Inputs))
	for _, in := range r.Inputs {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{
		"iPosition", "iNormal", "iTexCoord",
		"iInstanceModelMatrix", "iInstanceModelMatrix1", "iInstanceModelMatrix2", "iInstanceModelMatrix3",
	}, names)

	in, ok := r.Input("iTexCoord")
	require.True(t, ok)
	assert.Equal(t, 2, in.Location)
	assert.Equal(t, 2, in.Components)

	env, ok := r.Resource("sEnvironmentMap")
	require.True(t, ok)
	assert.Equal(t, ResourceTexture, env.Kind)
	assert.Equal(t, 1, env.Group)
	assert.Equal(t, 12, env.Binding)

	smp, ok := r.Resource("sDiffuseMapSampler")
	require.True(t, ok)
	assert.Equal(t, ResourceSampler, smp.Kind)

	_, ok = r.Resource("sSpecularMap")
	assert.False(t, ok)
}

func TestReflectFallsBackToInputStructs(t *testing.T) {
	src := `
struct In {
    @location(3) iColor: vec4f, // trailing comment
    /* block /* nested */ comment */
    @location(0) iPosition: vec3f,
}
@group(0) @binding(1) var<uniform> uTint: vec4f;
`
	r, err := Reflect(src)
	require.NoError(t, err)
	require.Len(t, r.Inputs, 2)
	assert.Equal(t, "iPosition", r.Inputs[0].Name)
	assert.Equal(t, 3, r.Inputs[1].Location)

	_, f, ok := r.Uniform("uTint")
	require.True(t, ok)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, 16, f.Size)
}

func TestReflectRejectsUnknownUniformType(t *testing.T) {
	_, err := Reflect("@group(0) @binding(0) var<uniform> u: Missing;")
	assert.Error(t, err)
}

type locatingDevice struct {
	device.Device
	uniforms map[string]int32
	queries  int
}

func (d *locatingDevice) UniformLocation(_ device.Handle, name string) int32 {
	d.queries++
	if loc, ok := d.uniforms[name]; ok {
		return loc
	}
	return -1
}

func (d *locatingDevice) AttribLocation(_ device.Handle, name string) int32 {
	d.queries++
	if name == "iPosition" {
		return 0
	}
	return -1
}

func TestProgramLocate(t *testing.T) {
	dev := &locatingDevice{uniforms: map[string]int32{
		"uModelMatrix":     3,
		"sDiffuseMap":      10,
		"uLights[1].range": 21,
		"uCustom":          30,
	}}
	p := NewProgram(Phong(), 1, Defines{"LIGHTS": ""}, "phong;LIGHTS")
	p.Locate(dev)

	assert.Equal(t, int32(3), p.Uniforms[UniformModelMatrix])
	assert.Equal(t, int32(-1), p.Uniforms[UniformFogColor])
	assert.Equal(t, int32(10), p.Texture("diffuseMap"))
	assert.Equal(t, int32(-1), p.Texture("unknownMap"))
	assert.Equal(t, int32(21), p.Lights[1].Range)
	assert.Equal(t, int32(-1), p.Lights[7].Color)

	assert.Equal(t, int32(0), p.Attribute(dev, "position"))
	assert.Equal(t, int32(-1), p.Attribute(dev, "tangent"))

	before := dev.queries
	assert.Equal(t, int32(30), p.Uniform(dev, "uCustom"))
	assert.Equal(t, int32(30), p.Uniform(dev, "uCustom"))
	assert.Equal(t, int32(0), p.Attribute(dev, "position"))
	assert.Equal(t, before+1, dev.queries)
}

func TestNamingConventions(t *testing.T) {
	assert.Equal(t, "iTexCoord", AttributeInputName("texCoord"))
	assert.Equal(t, "sEnvironmentMap", SamplerUniformName("environmentMap"))
	assert.Equal(t, "i", AttributeInputName(""))
}
