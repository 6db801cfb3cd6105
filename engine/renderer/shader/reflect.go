package shader

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ResourceKind classifies a @group/@binding declaration.
type ResourceKind int

const (
	ResourceUniform ResourceKind = iota
	ResourceStorage
	ResourceTexture
	ResourceSampler
)

// VertexInput is one @location field of a vertex input struct.
type VertexInput struct {
	Name       string
	Location   int
	Type       string
	Components int
}

// UniformField is a leaf value inside a uniform buffer. Nested members are flattened with
// dotted and indexed names, e.g. uLights[2].color.
type UniformField struct {
	Name   string
	Type   string
	Offset int
	Size   int
}

// Binding is one resource declaration.
type Binding struct {
	Group   int
	Binding int
	Name    string
	Kind    ResourceKind
	// Type is the declared WGSL type, e.g. "Uniforms" or "texture_cube<f32>".
	Type string
	// Size is the byte size of uniform and storage buffers, 0 otherwise.
	Size int
	// Fields is the flattened layout of uniform buffers.
	Fields []UniformField
}

// Reflection describes the interface of a WGSL module.
type Reflection struct {
	VertexEntry   string
	FragmentEntry string
	// Inputs are the vertex inputs ordered by location.
	Inputs []VertexInput
	// Bindings are ordered by group, then binding.
	Bindings []Binding
}

// Input returns the vertex input called name.
func (r *Reflection) Input(name string) (VertexInput, bool) {
	for _, in := range r.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return VertexInput{}, false
}

// Resource returns the binding whose variable is called name.
func (r *Reflection) Resource(name string) (Binding, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Uniform finds a flattened uniform field across every uniform buffer.
//
// Returns:
//   - Binding: the buffer holding the field
//   - UniformField: the field
//   - bool: whether it was found
func (r *Reflection) Uniform(name string) (Binding, UniformField, bool) {
	for _, b := range r.Bindings {
		if b.Kind != ResourceUniform {
			continue
		}
		for _, f := range b.Fields {
			if f.Name == name {
				return b, f, true
			}
		}
	}
	return Binding{}, UniformField{}, false
}

type typeLayout struct {
	size  uint64
	align uint64
}

type wgslField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

type wgslStruct struct {
	name   string
	fields []wgslField
}

// primitiveLayouts holds size and alignment of host-shareable WGSL types.
var primitiveLayouts = map[string]typeLayout{
	"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "f16": {2, 2}, "bool": {4, 4},

	"vec2<f32>": {8, 8}, "vec2f": {8, 8}, "vec2<i32>": {8, 8}, "vec2i": {8, 8}, "vec2<u32>": {8, 8}, "vec2u": {8, 8},
	"vec3<f32>": {12, 16}, "vec3f": {12, 16}, "vec3<i32>": {12, 16}, "vec3i": {12, 16}, "vec3<u32>": {12, 16}, "vec3u": {12, 16},
	"vec4<f32>": {16, 16}, "vec4f": {16, 16}, "vec4<i32>": {16, 16}, "vec4i": {16, 16}, "vec4<u32>": {16, 16}, "vec4u": {16, 16},

	"mat2x2<f32>": {16, 8}, "mat2x2f": {16, 8},
	"mat3x3<f32>": {48, 16}, "mat3x3f": {48, 16},
	"mat4x4<f32>": {64, 16}, "mat4x4f": {64, 16},
}

// inputComponents is the float component count of vertex input types.
var inputComponents = map[string]int{
	"f32": 1, "vec2f": 2, "vec2<f32>": 2, "vec3f": 3, "vec3<f32>": 3, "vec4f": 4, "vec4<f32>": 4,
	"i32": 1, "u32": 1, "vec2i": 2, "vec2u": 2, "vec3i": 3, "vec3u": 3, "vec4i": 4, "vec4u": 4,
}

var (
	structRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationAttr  = regexp.MustCompile(`@location\((\d+)\)`)
	builtinAttr   = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldDecl     = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)
	vertexEntry   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentEntry = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)
	resourceDecl  = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// Reflect extracts entry points, vertex inputs and resource bindings from preprocessed WGSL.
// Uniform buffers are laid out with the WGSL alignment rules so every leaf value has a byte offset.
//
// Parameters:
//   - source: WGSL text without preprocessor directives
//
// Returns:
//   - *Reflection: the extracted interface
//   - error: if a uniform buffer uses a type whose layout cannot be resolved
func Reflect(source string) (*Reflection, error) {
	cleaned := stripComments(source)
	structs := parseStructs(cleaned)
	byName := make(map[string]wgslStruct, len(structs))
	for _, s := range structs {
		byName[s.name] = s
	}
	layouts := structLayouts(structs)

	r := &Reflection{}
	if m := vertexEntry.FindStringSubmatch(cleaned); m != nil {
		r.VertexEntry = m[1]
	}
	if m := fragmentEntry.FindStringSubmatch(cleaned); m != nil {
		r.FragmentEntry = m[1]
	}

	for _, f := range vertexInputs(cleaned, structs, byName) {
		r.Inputs = append(r.Inputs, VertexInput{
			Name:       f.name,
			Location:   f.location,
			Type:       f.typeName,
			Components: inputComponents[f.typeName],
		})
	}
	slices.SortFunc(r.Inputs, func(a, b VertexInput) int { return a.Location - b.Location })

	for _, m := range resourceDecl.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		space := strings.TrimSpace(m[3])
		b := Binding{
			Group:   group,
			Binding: binding,
			Name:    strings.TrimSpace(m[4]),
			Type:    strings.TrimSpace(m[5]),
		}

		switch {
		case space == "uniform":
			b.Kind = ResourceUniform
			layout, ok := resolveLayout(b.Type, layouts)
			if !ok {
				return nil, fmt.Errorf("uniform %s: cannot resolve layout of type %q", b.Name, b.Type)
			}
			b.Size = int(roundUp(16, layout.size))
			prefix := b.Name
			if _, isStruct := byName[b.Type]; isStruct {
				prefix = ""
			}
			b.Fields = flatten(prefix, b.Type, 0, byName, layouts)
		case strings.HasPrefix(space, "storage"):
			b.Kind = ResourceStorage
			if layout, ok := resolveLayout(b.Type, layouts); ok {
				b.Size = int(layout.size)
			}
		case strings.HasPrefix(b.Type, "sampler"):
			b.Kind = ResourceSampler
		default:
			b.Kind = ResourceTexture
		}
		r.Bindings = append(r.Bindings, b)
	}
	slices.SortFunc(r.Bindings, func(a, b Binding) int {
		if a.Group != b.Group {
			return a.Group - b.Group
		}
		return a.Binding - b.Binding
	})
	return r, nil
}

// flatten walks a type and returns its leaf values with absolute offsets.
func flatten(prefix, typeName string, base uint64, structs map[string]wgslStruct, layouts map[string]typeLayout) []UniformField {
	if s, ok := structs[typeName]; ok {
		var out []UniformField
		offset := uint64(0)
		for _, f := range s.fields {
			fl, ok := resolveLayout(f.typeName, layouts)
			if !ok {
				return out
			}
			offset = roundUp(fl.align, offset)
			name := f.name
			if prefix != "" {
				name = prefix + "." + f.name
			}
			out = append(out, flatten(name, f.typeName, base+offset, structs, layouts)...)
			offset += fl.size
		}
		return out
	}

	if elem, count, ok := fixedArray(typeName); ok {
		el, ok := resolveLayout(elem, layouts)
		if !ok {
			return nil
		}
		stride := roundUp(el.align, el.size)
		var out []UniformField
		for i := uint64(0); i < count; i++ {
			name := prefix + "[" + strconv.FormatUint(i, 10) + "]"
			out = append(out, flatten(name, elem, base+i*stride, structs, layouts)...)
		}
		return out
	}

	l, _ := resolveLayout(typeName, layouts)
	return []UniformField{{Name: prefix, Type: typeName, Offset: int(base), Size: int(l.size)}}
}

// fixedArray splits array<T, N> into T and N.
func fixedArray(typeName string) (string, uint64, bool) {
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return "", 0, false
	}
	parts := splitTopLevel(inner[:len(inner)-1])
	if len(parts) != 2 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(parts[0]), n, true
}

func roundUp(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveLayout resolves primitives, known structs and fixed or runtime sized arrays.
// Runtime sized arrays report the stride of one element.
func resolveLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	if elem, count, ok := fixedArray(typeName); ok {
		el, ok := resolveLayout(elem, known)
		if !ok {
			return typeLayout{}, false
		}
		return typeLayout{count * roundUp(el.align, el.size), el.align}, true
	}
	if inner, ok := strings.CutPrefix(typeName, "array<"); ok && strings.HasSuffix(inner, ">") {
		el, ok := resolveLayout(strings.TrimSpace(inner[:len(inner)-1]), known)
		if !ok {
			return typeLayout{}, false
		}
		return typeLayout{roundUp(el.align, el.size), el.align}, true
	}
	return typeLayout{}, false
}

// structLayouts resolves every struct, repeating until nested struct members settle.
func structLayouts(structs []wgslStruct) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	pending := slices.Clone(structs)
	for len(pending) > 0 {
		next := pending[:0]
		for _, s := range pending {
			if l, ok := structLayout(s, resolved); ok {
				resolved[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return resolved
}

func structLayout(s wgslStruct, known map[string]typeLayout) (typeLayout, bool) {
	offset, maxAlign := uint64(0), uint64(1)
	for _, f := range s.fields {
		if f.isBuiltin {
			continue
		}
		l, ok := resolveLayout(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = roundUp(l.align, offset) + l.size
		maxAlign = max(maxAlign, l.align)
	}
	return typeLayout{roundUp(maxAlign, offset), maxAlign}, true
}

func parseStructs(source string) []wgslStruct {
	var out []wgslStruct
	for _, m := range structRegex.FindAllStringSubmatch(source, -1) {
		s := wgslStruct{name: m[1]}
		for _, part := range splitTopLevel(m[2]) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f := wgslField{location: -1, isBuiltin: builtinAttr.MatchString(part)}
			if lm := locationAttr.FindStringSubmatch(part); lm != nil {
				f.location, _ = strconv.Atoi(lm[1])
			}
			fm := fieldDecl.FindStringSubmatch(part)
			if fm == nil {
				continue
			}
			f.name, f.typeName = fm[1], strings.TrimSpace(fm[2])
			s.fields = append(s.fields, f)
		}
		out = append(out, s)
	}
	return out
}

// vertexInputs collects the @location inputs of the vertex entry point, either declared as
// parameters or as members of a parameter struct. Without an entry point every pure input
// struct is used.
func vertexInputs(source string, structs []wgslStruct, byName map[string]wgslStruct) []wgslField {
	params, ok := entryParams(source, "@vertex")
	if !ok {
		var out []wgslField
		for _, s := range structs {
			if isVertexInput(s) {
				out = append(out, s.fields...)
			}
		}
		return out
	}

	var out []wgslField
	for _, part := range splitTopLevel(params) {
		part = strings.TrimSpace(part)
		fm := fieldDecl.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		typeName := strings.TrimSpace(fm[2])
		if s, ok := byName[typeName]; ok {
			for _, f := range s.fields {
				if !f.isBuiltin && f.location >= 0 {
					out = append(out, f)
				}
			}
			continue
		}
		if lm := locationAttr.FindStringSubmatch(part); lm != nil {
			loc, _ := strconv.Atoi(lm[1])
			out = append(out, wgslField{name: fm[1], typeName: typeName, location: loc})
		}
	}
	return out
}

// entryParams returns the raw parameter list of the first function tagged with attr.
func entryParams(source, attr string) (string, bool) {
	i := strings.Index(source, attr)
	if i < 0 {
		return "", false
	}
	rest := source[i+len(attr):]
	fn := strings.Index(rest, "fn ")
	if fn < 0 {
		return "", false
	}
	rest = rest[fn:]
	open := strings.IndexByte(rest, '(')
	if open < 0 {
		return "", false
	}
	depth := 0
	for j := open; j < len(rest); j++ {
		switch rest[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return rest[open+1 : j], true
			}
		}
	}
	return "", false
}

// isVertexInput reports whether a struct only carries @location fields, which separates
// vertex inputs from stage outputs that also declare @builtin(position).
func isVertexInput(s wgslStruct) bool {
	has := false
	for _, f := range s.fields {
		if f.isBuiltin {
			return false
		}
		has = has || f.location >= 0
	}
	return has
}

// splitTopLevel splits at commas outside angle brackets, so array<T, N> stays whole.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComments removes // comments and nested /* */ comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case depth == 0 && source[i] == '/' && source[i+1] == '/':
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
