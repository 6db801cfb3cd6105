// Package device defines the graphics device abstraction the renderer draws through.
// The renderer never talks to a GPU API directly; wgpu_device provides the WebGPU
// implementation and tests substitute a recording fake.
package device

import "github.com/Carmen-Shannon/oxy-scene/common"

// Handle identifies a device object (shader, program, buffer, texture). Zero is never valid.
type Handle uint32

// ShaderStage selects the pipeline stage a shader is compiled for.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// Primitive is the primitive topology of a draw.
type Primitive int

const (
	Triangles Primitive = iota
	Lines
	Points
)

// IndexType is the element type of an index buffer.
type IndexType int

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

// Size returns the byte size of one index.
func (t IndexType) Size() int {
	if t == IndexUint32 {
		return 4
	}
	return 2
}

// BufferKind selects how a buffer is bound.
type BufferKind int

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
	InstanceBuffer
)

// TextureTarget selects 2D textures or cube maps.
type TextureTarget int

const (
	Texture2D TextureTarget = iota
	TextureCube
)

// BlendFactor is a blend equation factor.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstColor
)

// BlendFunc pairs the source and destination blend factors.
type BlendFunc struct {
	Src BlendFactor
	Dst BlendFactor
}

// Winding selects which triangle winding is front facing.
type Winding int

const (
	WindingCW Winding = iota
	WindingCCW
)

// CubeFace indexes the six faces of a cube map in +X, -X, +Y, -Y, +Z, -Z order.
type CubeFace int

const CubeFaces = 6

// VertexAttribute describes one float attribute inside an interleaved vertex.
type VertexAttribute struct {
	// Location is the shader input location.
	Location int32
	// Components is the number of float32 components (1 to 4).
	Components int
	// Offset is the byte offset inside the vertex.
	Offset int
}

// Device is the set of GPU operations the renderer needs. Implementations are used from a
// single goroutine.
type Device interface {
	// VersionDirective returns the first line every shader variant must start with, or "".
	VersionDirective() string

	// CompileShader compiles one shader stage.
	//
	// Parameters:
	//   - stage: the pipeline stage
	//   - source: the full variant text
	//
	// Returns:
	//   - Handle: the shader handle
	//   - error: compile diagnostics on failure
	CompileShader(stage ShaderStage, source string) (Handle, error)

	// LinkProgram links a vertex and a fragment shader into a program.
	//
	// Returns:
	//   - Handle: the program handle
	//   - error: link diagnostics on failure
	LinkProgram(vertex, fragment Handle) (Handle, error)

	// DeleteShader releases a shader or program handle.
	DeleteShader(h Handle)

	// UseProgram makes program current for subsequent uniform writes and draws.
	UseProgram(program Handle)

	// AttribLocation returns the input location of a vertex attribute, or -1.
	AttribLocation(program Handle, name string) int32

	// UniformLocation returns the location of a uniform or texture, or -1.
	UniformLocation(program Handle, name string) int32

	// CreateBuffer allocates a buffer of size bytes.
	CreateBuffer(kind BufferKind, size int) (Handle, error)

	// BufferSubData writes data at a byte offset into a buffer.
	BufferSubData(buffer Handle, offset int, data []byte)

	// BindVertexBuffer binds an interleaved vertex buffer and enables exactly the given attributes.
	BindVertexBuffer(buffer Handle, stride int, attributes []VertexAttribute)

	// BindIndexBuffer binds an index buffer.
	BindIndexBuffer(buffer Handle)

	// BindInstanceBuffer binds a buffer of column-major 4x4 matrices, one per instance,
	// to the four consecutive locations starting at location.
	BindInstanceBuffer(buffer Handle, location int32)

	// UnbindInstanceBuffer turns the per-instance stream at location back off.
	UnbindInstanceBuffer(location int32)

	// CreateTexture creates a texture. Each entry of faces is tightly packed RGBA8 data;
	// one entry for Texture2D, six for TextureCube. A nil face leaves its contents undefined.
	CreateTexture(target TextureTarget, width, height int, faces [][]byte) (Handle, error)

	// BindTexture binds a texture to a unit and points the sampler uniform at location to it.
	BindTexture(slot int, target TextureTarget, texture Handle, location int32)

	// GenerateMipmaps builds the mip chain of a texture.
	GenerateMipmaps(target TextureTarget, texture Handle)

	SetUniformFloat(location int32, v float32)
	SetUniformVec2(location int32, v [2]float32)
	SetUniformVec3(location int32, v common.Vec3)
	SetUniformVec4(location int32, v [4]float32)
	SetUniformMat4(location int32, m common.Mat4)

	SetDepthTest(enabled bool)
	SetDepthWrite(enabled bool)
	SetCullFace(enabled bool)
	SetBlend(enabled bool, fn BlendFunc)
	SetFrontFace(w Winding)
	SetDither(enabled bool)

	// Clear clears the current target's color and depth.
	Clear(color common.Color)

	// Draw issues an indexed draw.
	//
	// Parameters:
	//   - primitive: topology
	//   - count: number of indices
	//   - indexType: element type of the bound index buffer
	//   - byteOffset: byte offset of the first index
	Draw(primitive Primitive, count int, indexType IndexType, byteOffset int)

	// DrawInstanced issues an indexed draw of instances copies.
	DrawInstanced(primitive Primitive, count int, indexType IndexType, byteOffset int, instances int)

	// BeginRenderTarget redirects drawing into one face of a cube map.
	BeginRenderTarget(cube Handle, face CubeFace, resolution int) error

	// EndRenderTarget restores drawing to the default target.
	EndRenderTarget()
}

// Presenter is implemented by devices that draw into a window surface.
type Presenter interface {
	// BeginFrame acquires the next surface texture.
	BeginFrame() error

	// Present submits the recorded frame and presents it.
	Present() error

	// Resize reconfigures the surface.
	Resize(width, height int)
}
