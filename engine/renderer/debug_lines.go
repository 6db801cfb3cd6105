package renderer

import (
	"encoding/binary"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/chewxy/math32"
)

// DefaultMaxDebugLines is the line capacity of NewDebugLines(0).
const DefaultMaxDebugLines = 500

// Debug vertices are a position followed by an RGBA color.
const (
	debugVertexFloats = 3 + 4
	debugVertexSize   = debugVertexFloats * 4
)

var debugAttributes = []model.Attribute{
	{Name: model.AttributePosition, Offset: 0, Size: 3},
	{Name: model.AttributeColor, Offset: 12, Size: 4},
}

// Tints multiplied into the vertex colors of debug faces and lines.
var (
	debugFaceTint = [4]float32{1, 1, 1, 0.05}
	debugLineTint = [4]float32{1, 1, 1, 1}
)

// cubeCorners are the unit cube corners used by Cube, bottom ring then top ring.
var cubeCorners = [8]common.Vec3{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

var cubeEdges = [24]uint16{
	0, 1, 1, 2, 2, 3, 3, 0,
	4, 5, 5, 6, 6, 7, 7, 4,
	0, 4, 1, 5, 2, 6, 3, 7,
}

var cubeFaces = [36]uint16{
	0, 1, 2, 0, 2, 3,
	4, 6, 5, 4, 7, 6,
	0, 4, 5, 0, 5, 1,
	2, 6, 7, 2, 7, 3,
	0, 3, 7, 0, 7, 4,
	1, 5, 6, 1, 6, 2,
}

// DebugLines accumulates colored lines and translucent faces for RenderDebugLines. Shapes
// that would exceed the capacity are dropped with a warning. Call Clear once the lines have
// been drawn.
type DebugLines struct {
	maxVertices int
	vertices    []float32
	lineIndices []uint16
	faceIndices []uint16
	full        bool
}

// NewDebugLines creates an empty accumulator holding up to maxLines lines worth of vertices.
// Zero or negative means DefaultMaxDebugLines; the capacity is capped so 16-bit indices can
// address every vertex.
//
// Parameters:
//   - maxLines: the line capacity
//
// Returns:
//   - *DebugLines: the accumulator
func NewDebugLines(maxLines int) *DebugLines {
	if maxLines <= 0 {
		maxLines = DefaultMaxDebugLines
	}
	maxLines = min(maxLines, 0x8000)
	return &DebugLines{maxVertices: maxLines * 2}
}

// VertexCount returns the number of accumulated vertices.
func (d *DebugLines) VertexCount() int {
	return len(d.vertices) / debugVertexFloats
}

// LineIndexCount returns the number of accumulated line indices, two per line.
func (d *DebugLines) LineIndexCount() int {
	return len(d.lineIndices)
}

// FaceIndexCount returns the number of accumulated face indices, three per triangle.
func (d *DebugLines) FaceIndexCount() int {
	return len(d.faceIndices)
}

// Empty reports whether nothing has been accumulated.
func (d *DebugLines) Empty() bool {
	return len(d.vertices) == 0
}

// Clear drops everything accumulated.
func (d *DebugLines) Clear() {
	d.vertices = d.vertices[:0]
	d.lineIndices = d.lineIndices[:0]
	d.faceIndices = d.faceIndices[:0]
	d.full = false
}

// Line adds a line segment.
func (d *DebugLines) Line(start, end common.Vec3, color common.Color) {
	if !d.reserve(2) {
		return
	}
	base := d.addVertex(start, color)
	d.addVertex(end, color)
	d.lineIndices = append(d.lineIndices, base, base+1)
}

// Circle adds a circle outline of segments lines.
//
// Parameters:
//   - center: the circle center
//   - radius: the circle radius
//   - normal: the axis the circle is perpendicular to
//   - color: the line color
//   - segments: the number of lines, at least 3
func (d *DebugLines) Circle(center common.Vec3, radius float32, normal common.Vec3, color common.Color, segments int) {
	d.circle(center, radius, normal, color, segments, false)
}

// DottedCircle adds every other segment of a circle outline.
func (d *DebugLines) DottedCircle(center common.Vec3, radius float32, normal common.Vec3, color common.Color, segments int) {
	d.circle(center, radius, normal, color, segments, true)
}

func (d *DebugLines) circle(center common.Vec3, radius float32, normal common.Vec3, color common.Color, segments int, dotted bool) {
	if segments < 3 {
		return
	}
	points := circlePoints(center, radius, normal, segments)
	for i := 0; i < segments; i++ {
		if dotted && i%2 == 1 {
			continue
		}
		d.Line(points[i], points[i+1], color)
	}
}

// Cube adds an axis aligned cube outline, and its translucent faces when filled.
//
// Parameters:
//   - center: the cube center
//   - size: the edge length
//   - color: the line and face color
//   - filled: whether to add faces
func (d *DebugLines) Cube(center common.Vec3, size float32, color common.Color, filled bool) {
	if !d.reserve(len(cubeCorners)) {
		return
	}
	half := size / 2
	var base uint16
	for i, c := range cubeCorners {
		idx := d.addVertex(center.Add(c.Scale(half)), color)
		if i == 0 {
			base = idx
		}
	}
	for _, e := range cubeEdges {
		d.lineIndices = append(d.lineIndices, base+e)
	}
	if filled {
		for _, f := range cubeFaces {
			d.faceIndices = append(d.faceIndices, base+f)
		}
	}
}

// Sphere adds a wire sphere made of rings latitude circles and sectors longitude circles.
func (d *DebugLines) Sphere(center common.Vec3, radius float32, color common.Color, rings, sectors int) {
	rings = max(rings, 1)
	sectors = max(sectors, 2)
	for i := 1; i <= rings; i++ {
		lat := math32.Pi * (float32(i)/float32(rings+1) - 0.5)
		sin, cos := math32.Sincos(lat)
		d.Circle(center.Add(common.Vec3{0, radius * sin, 0}), radius*cos, common.Vec3Up, color, sectors*2)
	}
	for i := 0; i < sectors; i++ {
		angle := math32.Pi * float32(i) / float32(sectors)
		sin, cos := math32.Sincos(angle)
		d.Circle(center, radius, common.Vec3{cos, 0, sin}, color, rings*4+4)
	}
}

// Cone adds a wire cone with its apex at origin opening along direction.
//
// Parameters:
//   - origin: the apex
//   - direction: the cone axis
//   - length: the distance from the apex to the base
//   - radius: the base radius
//   - color: the line and face color
//   - filled: whether to add the side faces
//   - segments: the number of base segments, at least 3
func (d *DebugLines) Cone(origin, direction common.Vec3, length, radius float32, color common.Color, filled bool, segments int) {
	if segments < 3 || direction.LengthSquared() == 0 {
		return
	}
	baseCenter := origin.Add(direction.Normalize().Scale(length))
	points := circlePoints(baseCenter, radius, direction, segments)
	if !d.reserve(1 + segments) {
		return
	}
	apex := d.addVertex(origin, color)
	for i := 0; i < segments; i++ {
		d.addVertex(points[i], color)
	}
	for i := 0; i < segments; i++ {
		cur := apex + 1 + uint16(i)
		next := apex + 1 + uint16((i+1)%segments)
		d.lineIndices = append(d.lineIndices, apex, cur, cur, next)
		if filled {
			d.faceIndices = append(d.faceIndices, apex, cur, next)
		}
	}
}

// reserve reports whether n more vertices fit, warning once per Clear when they do not.
func (d *DebugLines) reserve(n int) bool {
	if d.VertexCount()+n <= d.maxVertices {
		return true
	}
	if !d.full {
		d.full = true
		common.Logger().Warn("debug line capacity reached", "vertices", d.maxVertices)
	}
	return false
}

func (d *DebugLines) addVertex(p common.Vec3, c common.Color) uint16 {
	idx := uint16(d.VertexCount())
	d.vertices = append(d.vertices, p[0], p[1], p[2], c[0], c[1], c[2], c[3])
	return idx
}

// circlePoints returns segments+1 points around a circle, the last equal to the first. The
// circle starts on the +Z side for a +Y normal.
func circlePoints(center common.Vec3, radius float32, normal common.Vec3, segments int) []common.Vec3 {
	rot := common.QuatFromTo(common.Vec3Up, normal)
	step := 2 * math32.Pi / float32(segments)
	points := make([]common.Vec3, segments+1)
	for i := range segments {
		sin, cos := math32.Sincos(step * float32(i))
		points[i] = center.Add(rot.Rotate(common.Vec3{sin, 0, cos}).Scale(radius))
	}
	points[segments] = points[0]
	return points
}

// debugBuffers are the device buffers debug geometry is streamed into, grown on demand.
type debugBuffers struct {
	vertexBuffer device.Handle
	lineBuffer   device.Handle
	faceBuffer   device.Handle
	vertexCap    int
	lineCap      int
	faceCap      int
}

// stream writes data into the buffer at *h, replacing it with a larger one when it is too small.
func (r *renderer) stream(kind device.BufferKind, h *device.Handle, capacity *int, data []byte) error {
	if len(data) > *capacity || *h == 0 {
		size := max(len(data), *capacity*2, 256)
		buf, err := r.dev.CreateBuffer(kind, size)
		if err != nil {
			return err
		}
		*h, *capacity = buf, size
	}
	if len(data) > 0 {
		r.dev.BufferSubData(*h, 0, data)
	}
	return nil
}

// indexBytes packs 16-bit indices little endian, padded to a multiple of four bytes.
func indexBytes(indices []uint16) []byte {
	out := make([]byte, (len(indices)*2+3)&^3)
	for i, idx := range indices {
		binary.LittleEndian.PutUint16(out[i*2:], idx)
	}
	return out
}

func (r *renderer) RenderDebugLines(view camera.RenderView, lines *DebugLines) error {
	if lines == nil || lines.Empty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	program := r.shaderProgram(shader.DebugLines(), nil)
	if program == nil {
		return nil
	}
	r.bindShader(program)
	r.activeMaterial = nil

	b := &r.debug
	if err := r.stream(device.VertexBuffer, &b.vertexBuffer, &b.vertexCap, common.SliceToBytes(lines.vertices)); err != nil {
		return fmt.Errorf("failed to stream debug vertices: %w", err)
	}
	if err := r.stream(device.IndexBuffer, &b.lineBuffer, &b.lineCap, indexBytes(lines.lineIndices)); err != nil {
		return fmt.Errorf("failed to stream debug lines: %w", err)
	}
	if err := r.stream(device.IndexBuffer, &b.faceBuffer, &b.faceCap, indexBytes(lines.faceIndices)); err != nil {
		return fmt.Errorf("failed to stream debug faces: %w", err)
	}

	r.bindRenderView(view)

	r.dev.SetBlend(true, device.BlendFunc{Src: device.BlendSrcAlpha, Dst: device.BlendOneMinusSrcAlpha})
	r.dev.SetDepthTest(true)
	r.dev.SetCullFace(false)
	r.dev.SetDepthWrite(false)

	attributes := make([]device.VertexAttribute, 0, len(debugAttributes))
	for _, a := range debugAttributes {
		if loc := program.Attribute(r.dev, a.Name); loc >= 0 {
			attributes = append(attributes, device.VertexAttribute{Location: loc, Components: a.Size, Offset: a.Offset})
		}
	}
	r.dev.BindVertexBuffer(b.vertexBuffer, debugVertexSize, attributes)
	r.activeMesh = nil

	tint := program.Uniforms[shader.UniformTint]
	if n := lines.FaceIndexCount(); n > 0 {
		r.dev.SetUniformVec4(tint, debugFaceTint)
		r.dev.BindIndexBuffer(b.faceBuffer)
		r.dev.Draw(device.Triangles, n, device.IndexUint16, 0)
		r.perf.DrawCalls++
		r.perf.Vertices += n
	}
	if n := lines.LineIndexCount(); n > 0 {
		r.dev.SetUniformVec4(tint, debugLineTint)
		r.dev.BindIndexBuffer(b.lineBuffer)
		r.dev.Draw(device.Lines, n, device.IndexUint16, 0)
		r.perf.DrawCalls++
		r.perf.Vertices += n
	}
	return nil
}
