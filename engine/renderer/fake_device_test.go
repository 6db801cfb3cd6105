package renderer

import (
	"errors"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
)

// brokenMarker makes fakeDevice reject any stage whose text contains it.
const brokenMarker = "BROKEN"

var errFakeCompile = errors.New("fake compile error")

type drawCall struct {
	primitive device.Primitive
	count     int
	indexType device.IndexType
	offset    int
	instances int
}

type boundTexture struct {
	slot    int
	target  device.TextureTarget
	texture device.Handle
}

// fakeDevice records what the renderer asks of the device. Every uniform and attribute name
// gets a stable location except the names listed in absent.
type fakeDevice struct {
	next      device.Handle
	compiles  []string
	deleted   []device.Handle
	programs  []device.Handle
	locations map[string]int32
	names     map[int32]string
	absent    map[string]bool

	uniforms  map[string]any
	draws     []drawCall
	clears    int
	textures  []boundTexture
	buffers   map[device.Handle]int
	uploads   map[device.Handle][]byte
	attribs   [][]device.VertexAttribute
	instances []int32
	targets   []device.CubeFace
	mipmaps   []device.Handle
	blend     []bool
}

var _ device.Device = &fakeDevice{}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		locations: make(map[string]int32),
		names:     make(map[int32]string),
		absent:    make(map[string]bool),
		uniforms:  make(map[string]any),
		buffers:   make(map[device.Handle]int),
		uploads:   make(map[device.Handle][]byte),
	}
}

func (d *fakeDevice) handle() device.Handle {
	d.next++
	return d.next
}

func (d *fakeDevice) location(name string) int32 {
	if d.absent[name] {
		return -1
	}
	if name == "iInstanceModelMatrix" {
		return 8
	}
	loc, ok := d.locations[name]
	if !ok {
		loc = int32(len(d.locations) + 100)
		d.locations[name] = loc
		d.names[loc] = name
	}
	return loc
}

func (d *fakeDevice) set(loc int32, v any) {
	if loc < 0 {
		return
	}
	d.uniforms[d.names[loc]] = v
}

func (d *fakeDevice) resetFrame() {
	d.draws = nil
	d.textures = nil
	d.attribs = nil
	clear(d.uniforms)
}

func (d *fakeDevice) VersionDirective() string { return "// fake" }

func (d *fakeDevice) CompileShader(stage device.ShaderStage, source string) (device.Handle, error) {
	d.compiles = append(d.compiles, source)
	if strings.Contains(source, brokenMarker) {
		return 0, errFakeCompile
	}
	return d.handle(), nil
}

func (d *fakeDevice) LinkProgram(vertex, fragment device.Handle) (device.Handle, error) {
	h := d.handle()
	d.programs = append(d.programs, h)
	return h, nil
}

func (d *fakeDevice) DeleteShader(h device.Handle) { d.deleted = append(d.deleted, h) }
func (d *fakeDevice) UseProgram(device.Handle)     {}

func (d *fakeDevice) AttribLocation(_ device.Handle, name string) int32  { return d.location(name) }
func (d *fakeDevice) UniformLocation(_ device.Handle, name string) int32 { return d.location(name) }

func (d *fakeDevice) CreateBuffer(_ device.BufferKind, size int) (device.Handle, error) {
	h := d.handle()
	d.buffers[h] = size
	return h, nil
}

func (d *fakeDevice) BufferSubData(buffer device.Handle, _ int, data []byte) {
	d.uploads[buffer] = append([]byte(nil), data...)
}

func (d *fakeDevice) BindVertexBuffer(_ device.Handle, _ int, attributes []device.VertexAttribute) {
	d.attribs = append(d.attribs, attributes)
}

func (d *fakeDevice) BindIndexBuffer(device.Handle) {}

func (d *fakeDevice) BindInstanceBuffer(_ device.Handle, location int32) {
	d.instances = append(d.instances, location)
}

func (d *fakeDevice) UnbindInstanceBuffer(int32) {}

func (d *fakeDevice) CreateTexture(device.TextureTarget, int, int, [][]byte) (device.Handle, error) {
	return d.handle(), nil
}

func (d *fakeDevice) BindTexture(slot int, target device.TextureTarget, texture device.Handle, _ int32) {
	d.textures = append(d.textures, boundTexture{slot: slot, target: target, texture: texture})
}

func (d *fakeDevice) GenerateMipmaps(_ device.TextureTarget, texture device.Handle) {
	d.mipmaps = append(d.mipmaps, texture)
}

func (d *fakeDevice) SetUniformFloat(loc int32, v float32)       { d.set(loc, v) }
func (d *fakeDevice) SetUniformVec2(loc int32, v [2]float32)     { d.set(loc, v) }
func (d *fakeDevice) SetUniformVec3(loc int32, v common.Vec3)    { d.set(loc, v) }
func (d *fakeDevice) SetUniformVec4(loc int32, v [4]float32)     { d.set(loc, v) }
func (d *fakeDevice) SetUniformMat4(loc int32, m common.Mat4)    { d.set(loc, m) }
func (d *fakeDevice) SetDepthTest(bool)                          {}
func (d *fakeDevice) SetDepthWrite(bool)                         {}
func (d *fakeDevice) SetCullFace(bool)                           {}
func (d *fakeDevice) SetBlend(enabled bool, _ device.BlendFunc)  { d.blend = append(d.blend, enabled) }
func (d *fakeDevice) SetFrontFace(device.Winding)                {}
func (d *fakeDevice) SetDither(bool)                             {}
func (d *fakeDevice) Clear(common.Color)                         { d.clears++ }
func (d *fakeDevice) EndRenderTarget()                           {}

func (d *fakeDevice) Draw(primitive device.Primitive, count int, indexType device.IndexType, byteOffset int) {
	d.draws = append(d.draws, drawCall{primitive: primitive, count: count, indexType: indexType, offset: byteOffset})
}

func (d *fakeDevice) DrawInstanced(primitive device.Primitive, count int, indexType device.IndexType, byteOffset int, instances int) {
	d.draws = append(d.draws, drawCall{primitive: primitive, count: count, indexType: indexType, offset: byteOffset, instances: instances})
}

func (d *fakeDevice) BeginRenderTarget(_ device.Handle, face device.CubeFace, _ int) error {
	d.targets = append(d.targets, face)
	return nil
}
