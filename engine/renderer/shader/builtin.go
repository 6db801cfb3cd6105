package shader

import _ "embed"

//go:embed builtin/phong.wgsl
var phongSource string

//go:embed builtin/debug_lines.wgsl
var debugLinesSource string

// Phong returns the default material shader.
func Phong() Source {
	return Source{Name: "phong", Text: phongSource}
}

// DebugLines returns the unlit shader used for debug line and face drawing.
func DebugLines() Source {
	return Source{Name: "debug_lines", Text: debugLinesSource}
}
