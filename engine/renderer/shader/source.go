// Package shader holds everything about shader variants that does not depend on a GPU API:
// define sets and cache keys, variant text assembly, the variant cache, the WGSL
// preprocessor and WGSL reflection.
package shader

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
)

// Builtin define names the renderer sets on its own.
const (
	DefineCompileVertex   = "COMPILE_VERTEX"
	DefineCompileFragment = "COMPILE_FRAGMENT"
	DefineMaxLights       = "MAX_LIGHTS"
	DefineEnvironmentMap  = "ENVIRONMENTMAP"
	DefineInstancing      = "INSTANCING"
	DefineFog             = "FOG"
)

// Preamble is inserted after the version line of every variant.
const Preamble = ""

// Source is a named shader source holding both stages; COMPILE_VERTEX and COMPILE_FRAGMENT
// select the stage at variant build time.
type Source struct {
	Name string
	Text string
}

// Defines maps define names to an optional value. An empty value means a bare "#define NAME".
type Defines map[string]string

// Enable sets a define. Passing no value defines the bare name.
func (d Defines) Enable(name string, value ...string) {
	v := ""
	if len(value) > 0 {
		v = value[0]
	}
	d[name] = v
}

// Disable removes a define.
func (d Defines) Disable(name string) {
	delete(d, name)
}

// Has reports whether name is defined.
func (d Defines) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Clone returns an independent copy. Cloning nil returns an empty set.
func (d Defines) Clone() Defines {
	out := make(Defines, len(d))
	maps.Copy(out, d)
	return out
}

// Merge returns a copy of d with every define of other added, other winning on conflicts.
func (d Defines) Merge(other Defines) Defines {
	out := d.Clone()
	maps.Copy(out, other)
	return out
}

// SortedNames returns the define names in ascending order.
func (d Defines) SortedNames() []string {
	return slices.Sorted(maps.Keys(d))
}

// DefineSet is a set of define names, used for globally force-disabled defines.
type DefineSet map[string]struct{}

// NewDefineSet builds a set from names.
func NewDefineSet(names ...string) DefineSet {
	s := make(DefineSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s DefineSet) Add(name string) {
	s[name] = struct{}{}
}

func (s DefineSet) Remove(name string) {
	delete(s, name)
}

func (s DefineSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Clone returns an independent copy.
func (s DefineSet) Clone() DefineSet {
	out := make(DefineSet, len(s))
	maps.Copy(out, s)
	return out
}

// SortedNames returns the names in ascending order.
func (s DefineSet) SortedNames() []string {
	return slices.Sorted(maps.Keys(s))
}

// BuildKey builds the cache key of a variant. Every define of the set is part of the key,
// including ones that are force-disabled, followed by the disabled names, all sorted by name:
//
//	name;A;B=1;!C
//
// Parameters:
//   - name: the shader source name
//   - defines: the variant's defines before disabled names are removed
//   - disabled: the globally disabled define names
//
// Returns:
//   - string: the cache key
func BuildKey(name string, defines Defines, disabled DefineSet) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range defines.SortedNames() {
		sb.WriteByte(';')
		sb.WriteString(k)
		if v := defines[k]; v != "" {
			sb.WriteByte('=')
			sb.WriteString(v)
		}
	}
	for _, k := range disabled.SortedNames() {
		sb.WriteString(";!")
		sb.WriteString(k)
	}
	return sb.String()
}

// BuildVariant assembles the full text of one stage of a variant: the version line, the
// preamble, the stage define, MAX_LIGHTS, the sorted defines minus disabled ones, a line
// reset and the source text.
//
// Parameters:
//   - version: the device's version directive, may be empty
//   - stage: the stage to select
//   - src: the shader source
//   - defines: the variant's defines
//   - disabled: names removed from the define block
//   - maxLights: value of MAX_LIGHTS
//
// Returns:
//   - string: the variant text
func BuildVariant(version string, stage device.ShaderStage, src Source, defines Defines, disabled DefineSet, maxLights int) string {
	var sb strings.Builder
	sb.WriteString(version)
	sb.WriteByte('\n')
	sb.WriteString(Preamble)
	sb.WriteByte('\n')

	if stage == device.StageFragment {
		sb.WriteString("#define " + DefineCompileFragment + "\n")
	} else {
		sb.WriteString("#define " + DefineCompileVertex + "\n")
	}
	sb.WriteString("#define " + DefineMaxLights + " " + strconv.Itoa(maxLights) + "\n")

	for _, k := range defines.SortedNames() {
		if disabled.Has(k) {
			continue
		}
		sb.WriteString("#define ")
		sb.WriteString(k)
		if v := defines[k]; v != "" {
			sb.WriteByte(' ')
			sb.WriteString(v)
		}
		sb.WriteByte('\n')
	}

	sb.WriteString("\n#line 1\n")
	sb.WriteString(src.Text)
	return sb.String()
}
