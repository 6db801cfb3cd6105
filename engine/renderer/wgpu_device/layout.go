package wgpu_device

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// textureLocationBase separates texture locations from uniform locations. Uniform locations
// index the flattened uniform fields, texture locations index the texture bindings.
const textureLocationBase = 1 << 16

const (
	instanceStride     = 64
	instanceAttributes = 4
)

// uniformSlot locates one flattened uniform value inside a program's uniform blocks.
type uniformSlot struct {
	block  int
	offset int
	size   int
}

type uniformBlock struct {
	group   int
	binding int
	size    int
}

type textureSlot struct {
	name    string
	group   int
	binding int
	cube    bool
}

// groupEntry is what gets bound at one binding of a bind group; index points into the
// blocks, textures or samplers of the layout depending on kind.
type groupEntry struct {
	kind    shader.ResourceKind
	binding int
	index   int
	cube    bool
}

// programLayout is the resource interface of a linked program, derived from reflection.
type programLayout struct {
	blocks       []uniformBlock
	uniforms     []uniformSlot
	uniformIndex map[string]int32
	textures     []textureSlot
	textureIndex map[string]int32
	groups       [][]groupEntry
	layouts      [][]wgpu.BindGroupLayoutEntry
}

// buildLayout derives uniform locations, texture locations and bind group layout entries from
// a reflected program. Uniform buffers use dynamic offsets into the uniform arena. Samplers
// follow the dimension of the texture they are named after (sFooSampler pairs with sFoo).
//
// Parameters:
//   - r: the program reflection
//
// Returns:
//   - *programLayout: the layout
//   - error: ErrUnsupportedBinding for storage buffers, storage or depth textures and
//     comparison samplers
func buildLayout(r *shader.Reflection) (*programLayout, error) {
	l := &programLayout{
		uniformIndex: make(map[string]int32),
		textureIndex: make(map[string]int32),
	}

	cubes := make(map[string]bool)
	for _, b := range r.Bindings {
		if b.Kind == shader.ResourceTexture {
			cubes[b.Name] = strings.HasPrefix(b.Type, "texture_cube")
		}
	}

	maxGroup := -1
	for _, b := range r.Bindings {
		maxGroup = max(maxGroup, b.Group)
	}
	l.groups = make([][]groupEntry, maxGroup+1)
	l.layouts = make([][]wgpu.BindGroupLayoutEntry, maxGroup+1)

	visibility := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	for _, b := range r.Bindings {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(b.Binding),
			Visibility: visibility,
		}
		ge := groupEntry{kind: b.Kind, binding: b.Binding}

		switch b.Kind {
		case shader.ResourceUniform:
			ge.index = len(l.blocks)
			for _, f := range b.Fields {
				l.uniformIndex[f.Name] = int32(len(l.uniforms))
				l.uniforms = append(l.uniforms, uniformSlot{block: ge.index, offset: f.Offset, size: f.Size})
			}
			l.blocks = append(l.blocks, uniformBlock{group: b.Group, binding: b.Binding, size: b.Size})
			entry.Buffer = wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64(b.Size),
			}
		case shader.ResourceTexture:
			dim, ok := textureDimension(b.Type)
			if !ok {
				return nil, fmt.Errorf("%s: %s: %w", b.Name, b.Type, ErrUnsupportedBinding)
			}
			ge.index = len(l.textures)
			ge.cube = dim == wgpu.TextureViewDimensionCube
			l.textureIndex[b.Name] = int32(textureLocationBase + len(l.textures))
			l.textures = append(l.textures, textureSlot{name: b.Name, group: b.Group, binding: b.Binding, cube: ge.cube})
			entry.Texture = wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: dim,
			}
		case shader.ResourceSampler:
			if strings.HasPrefix(b.Type, "sampler_comparison") {
				return nil, fmt.Errorf("%s: %s: %w", b.Name, b.Type, ErrUnsupportedBinding)
			}
			ge.cube = cubes[strings.TrimSuffix(b.Name, "Sampler")]
			entry.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
		default:
			return nil, fmt.Errorf("%s: storage buffer: %w", b.Name, ErrUnsupportedBinding)
		}

		l.groups[b.Group] = append(l.groups[b.Group], ge)
		l.layouts[b.Group] = append(l.layouts[b.Group], entry)
	}
	return l, nil
}

func textureDimension(typeName string) (wgpu.TextureViewDimension, bool) {
	switch {
	case strings.HasPrefix(typeName, "texture_2d_array"):
		return 0, false
	case strings.HasPrefix(typeName, "texture_2d"):
		return wgpu.TextureViewDimension2D, true
	case strings.HasPrefix(typeName, "texture_cube_array"):
		return 0, false
	case strings.HasPrefix(typeName, "texture_cube"):
		return wgpu.TextureViewDimensionCube, true
	}
	return 0, false
}

// bufferSlots records which vertex buffer slot carries instances and which the zero stream.
// -1 means unused.
type bufferSlots struct {
	instance int
	zero     int
}

// vertexLayouts builds the vertex state of a draw. Slot 0 is the mesh buffer. Instance
// matrices take the next slot when instanceLocation is set. Shader inputs the mesh does not
// provide read zeros from a stride 0 buffer in the last slot.
//
// Parameters:
//   - inputs: the reflected vertex inputs
//   - stride: the mesh vertex size in bytes
//   - attributes: the enabled mesh attributes
//   - instanceLocation: the first instance matrix location, or -1
//
// Returns:
//   - []wgpu.VertexBufferLayout: the buffer layouts in slot order
//   - bufferSlots: the instance and zero slots
func vertexLayouts(inputs []shader.VertexInput, stride int, attributes []device.VertexAttribute, instanceLocation int32) ([]wgpu.VertexBufferLayout, bufferSlots) {
	provided := make(map[int]bool, len(attributes)+instanceAttributes)
	mesh := wgpu.VertexBufferLayout{
		ArrayStride: uint64(stride),
		StepMode:    wgpu.VertexStepModeVertex,
	}
	for _, a := range attributes {
		provided[int(a.Location)] = true
		mesh.Attributes = append(mesh.Attributes, wgpu.VertexAttribute{
			Format:         vertexFormat(a.Components),
			Offset:         uint64(a.Offset),
			ShaderLocation: uint32(a.Location),
		})
	}
	layouts := []wgpu.VertexBufferLayout{mesh}
	slots := bufferSlots{instance: -1, zero: -1}

	if instanceLocation >= 0 {
		inst := wgpu.VertexBufferLayout{
			ArrayStride: instanceStride,
			StepMode:    wgpu.VertexStepModeInstance,
		}
		for i := range instanceAttributes {
			loc := int(instanceLocation) + i
			provided[loc] = true
			inst.Attributes = append(inst.Attributes, wgpu.VertexAttribute{
				Format:         wgpu.VertexFormatFloat32x4,
				Offset:         uint64(i * 16),
				ShaderLocation: uint32(loc),
			})
		}
		slots.instance = len(layouts)
		layouts = append(layouts, inst)
	}

	zero := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	for _, in := range inputs {
		if provided[in.Location] {
			continue
		}
		zero.Attributes = append(zero.Attributes, wgpu.VertexAttribute{
			Format:         vertexFormat(in.Components),
			ShaderLocation: uint32(in.Location),
		})
	}
	if len(zero.Attributes) > 0 {
		slots.zero = len(layouts)
		layouts = append(layouts, zero)
	}
	return layouts, slots
}

func vertexFormat(components int) wgpu.VertexFormat {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

// attributeKey encodes a vertex binding for pipeline cache keys.
func attributeKey(stride int, attributes []device.VertexAttribute) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(stride))
	for _, a := range attributes {
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(int(a.Location)))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(a.Components))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(a.Offset))
	}
	return sb.String()
}

// fixedState is the fixed function state set through the device setters.
type fixedState struct {
	depthTest  bool
	depthWrite bool
	cull       bool
	blend      bool
	blendFunc  device.BlendFunc
	winding    device.Winding
	dither     bool
}

func defaultFixedState() fixedState {
	return fixedState{
		depthTest:  true,
		depthWrite: true,
		winding:    device.WindingCCW,
		blendFunc:  device.BlendFunc{Src: device.BlendOne, Dst: device.BlendZero},
	}
}

// pipelineKey identifies a cached render pipeline. Dither has no WebGPU equivalent and is
// not part of it.
type pipelineKey struct {
	program          device.Handle
	primitive        device.Primitive
	depthTest        bool
	depthWrite       bool
	cull             bool
	blend            bool
	blendFunc        device.BlendFunc
	winding          device.Winding
	attributes       string
	instanceLocation int32
	format           wgpu.TextureFormat
	samples          uint32
}

func primitiveTopology(p device.Primitive) wgpu.PrimitiveTopology {
	switch p {
	case device.Lines:
		return wgpu.PrimitiveTopologyLineList
	case device.Points:
		return wgpu.PrimitiveTopologyPointList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func frontFace(w device.Winding) wgpu.FrontFace {
	if w == device.WindingCW {
		return wgpu.FrontFaceCW
	}
	return wgpu.FrontFaceCCW
}

func indexFormat(t device.IndexType) wgpu.IndexFormat {
	if t == device.IndexUint32 {
		return wgpu.IndexFormatUint32
	}
	return wgpu.IndexFormatUint16
}

func blendFactor(f device.BlendFactor, alpha bool) wgpu.BlendFactor {
	switch f {
	case device.BlendZero:
		return wgpu.BlendFactorZero
	case device.BlendSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case device.BlendOneMinusSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case device.BlendDstColor:
		if alpha {
			return wgpu.BlendFactorDstAlpha
		}
		return wgpu.BlendFactorDst
	default:
		return wgpu.BlendFactorOne
	}
}

// blendState converts a blend function, or returns nil when blending is off.
func blendState(enabled bool, fn device.BlendFunc) *wgpu.BlendState {
	if !enabled {
		return nil
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: blendFactor(fn.Src, false),
			DstFactor: blendFactor(fn.Dst, false),
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: blendFactor(fn.Src, true),
			DstFactor: blendFactor(fn.Dst, true),
		},
	}
}

// mipLevels returns the length of the full mip chain of a width by height texture.
func mipLevels(width, height int) uint32 {
	return uint32(bits.Len(uint(max(width, height, 1))))
}
