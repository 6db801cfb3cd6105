package wgpu_device

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phongReflection(t *testing.T, stage device.ShaderStage, defines shader.Defines) *shader.Reflection {
	t.Helper()
	text := shader.BuildVariant("", stage, shader.Phong(), defines, nil, 4)
	wgsl, err := shader.Preprocess(text)
	require.NoError(t, err)
	r, err := shader.Reflect(wgsl)
	require.NoError(t, err)
	return r
}

func phongProgram(t *testing.T, defines shader.Defines) *shader.Reflection {
	t.Helper()
	return mergeReflections(
		phongReflection(t, device.StageVertex, defines),
		phongReflection(t, device.StageFragment, defines),
	)
}

func TestBuildLayoutPhong(t *testing.T) {
	r := phongProgram(t, shader.Defines{"LIGHTS": "", "DIFFUSEMAP": "", "ENVIRONMENTMAP": ""})
	l, err := buildLayout(r)
	require.NoError(t, err)

	require.Len(t, l.blocks, 1)
	assert.Equal(t, uniformBlock{group: 0, binding: 0, size: 752}, l.blocks[0])

	loc, ok := l.uniformIndex["uModelMatrix"]
	require.True(t, ok)
	assert.Less(t, loc, int32(textureLocationBase))
	assert.Equal(t, uniformSlot{block: 0, offset: 0, size: 64}, l.uniforms[loc])

	loc, ok = l.uniformIndex["uLights[2].color"]
	require.True(t, ok)
	assert.Equal(t, 576, l.uniforms[loc].offset)

	diffuse, ok := l.textureIndex["sDiffuseMap"]
	require.True(t, ok)
	assert.GreaterOrEqual(t, diffuse, int32(textureLocationBase))
	assert.False(t, l.textures[diffuse-textureLocationBase].cube)

	env, ok := l.textureIndex["sEnvironmentMap"]
	require.True(t, ok)
	slot := l.textures[env-textureLocationBase]
	assert.True(t, slot.cube)
	assert.Equal(t, 1, slot.group)
	assert.Equal(t, 12, slot.binding)

	require.Len(t, l.groups, 2)
	require.Len(t, l.layouts[0], 1)
	assert.True(t, l.layouts[0][0].Buffer.HasDynamicOffset)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, l.layouts[0][0].Buffer.Type)
	assert.Equal(t, uint64(752), l.layouts[0][0].Buffer.MinBindingSize)

	var cubeSamplers, samplers int
	for i, e := range l.groups[1] {
		assert.Equal(t, uint32(e.binding), l.layouts[1][i].Binding)
		if e.kind == shader.ResourceSampler {
			samplers++
			if e.cube {
				cubeSamplers++
			}
			assert.Equal(t, wgpu.SamplerBindingTypeFiltering, l.layouts[1][i].Sampler.Type)
		}
		if e.kind == shader.ResourceTexture && e.cube {
			assert.Equal(t, wgpu.TextureViewDimensionCube, l.layouts[1][i].Texture.ViewDimension)
		}
	}
	assert.Equal(t, 2, samplers)
	assert.Equal(t, 1, cubeSamplers)
}

func TestBuildLayoutRejectsUnsupportedBindings(t *testing.T) {
	cases := map[string]shader.Binding{
		"storage":    {Name: "data", Kind: shader.ResourceStorage, Type: "array<f32>"},
		"comparison": {Name: "shadowSampler", Kind: shader.ResourceSampler, Type: "sampler_comparison"},
		"array":      {Name: "layers", Kind: shader.ResourceTexture, Type: "texture_2d_array<f32>"},
		"depth":      {Name: "shadow", Kind: shader.ResourceTexture, Type: "texture_depth_2d"},
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := buildLayout(&shader.Reflection{Bindings: []shader.Binding{b}})
			assert.ErrorIs(t, err, ErrUnsupportedBinding)
		})
	}
}

func TestMergeReflections(t *testing.T) {
	vertex := &shader.Reflection{
		VertexEntry: "vs_main",
		Inputs:      []shader.VertexInput{{Name: "iPosition", Location: 0, Components: 3}},
		Bindings: []shader.Binding{
			{Group: 1, Binding: 0, Name: "sA", Kind: shader.ResourceTexture},
			{Group: 0, Binding: 0, Name: "u", Kind: shader.ResourceUniform},
		},
	}
	fragment := &shader.Reflection{
		FragmentEntry: "fs_main",
		Bindings: []shader.Binding{
			{Group: 0, Binding: 0, Name: "u", Kind: shader.ResourceUniform},
			{Group: 1, Binding: 1, Name: "sASampler", Kind: shader.ResourceSampler},
		},
	}

	merged := mergeReflections(vertex, fragment)
	assert.Equal(t, "vs_main", merged.VertexEntry)
	assert.Equal(t, "fs_main", merged.FragmentEntry)
	assert.Equal(t, vertex.Inputs, merged.Inputs)

	names := make([]string, 0, len(merged.Bindings))
	for _, b := range merged.Bindings {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"u", "sA", "sASampler"}, names)
	assert.Equal(t, "sA", vertex.Bindings[0].Name, "inputs are not reordered in place")
}

func TestVertexLayouts(t *testing.T) {
	r := phongProgram(t, shader.Defines{"INSTANCING": ""})
	attrs := []device.VertexAttribute{
		{Location: 0, Components: 3, Offset: 0},
		{Location: 1, Components: 3, Offset: 12},
	}

	layouts, slots := vertexLayouts(r.Inputs, 24, attrs, 8)
	require.Len(t, layouts, 3)
	assert.Equal(t, bufferSlots{instance: 1, zero: 2}, slots)

	assert.Equal(t, uint64(24), layouts[0].ArrayStride)
	assert.Len(t, layouts[0].Attributes, 2)

	inst := layouts[1]
	assert.Equal(t, uint64(instanceStride), inst.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, inst.StepMode)
	require.Len(t, inst.Attributes, instanceAttributes)
	for i, a := range inst.Attributes {
		assert.Equal(t, uint32(8+i), a.ShaderLocation)
		assert.Equal(t, uint64(i*16), a.Offset)
		assert.Equal(t, wgpu.VertexFormatFloat32x4, a.Format)
	}

	zero := layouts[2]
	assert.Equal(t, uint64(0), zero.ArrayStride)
	require.Len(t, zero.Attributes, 1)
	assert.Equal(t, uint32(2), zero.Attributes[0].ShaderLocation)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, zero.Attributes[0].Format)
}

func TestVertexLayoutsWithoutInstancing(t *testing.T) {
	r := phongProgram(t, shader.Defines{})
	attrs := []device.VertexAttribute{
		{Location: 0, Components: 3, Offset: 0},
		{Location: 1, Components: 3, Offset: 12},
		{Location: 2, Components: 2, Offset: 24},
	}

	layouts, slots := vertexLayouts(r.Inputs, 32, attrs, -1)
	assert.Len(t, layouts, 1)
	assert.Equal(t, bufferSlots{instance: -1, zero: -1}, slots)
}

func TestAttributeKey(t *testing.T) {
	a := attributeKey(32, []device.VertexAttribute{{Location: 0, Components: 3, Offset: 0}})
	b := attributeKey(32, []device.VertexAttribute{{Location: 0, Components: 3, Offset: 0}})
	c := attributeKey(32, []device.VertexAttribute{{Location: 0, Components: 3, Offset: 4}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "32|0:3:0", a)
}

func TestArena(t *testing.T) {
	a := newCPUArena(256, 1024)

	off, ok := a.push(make([]byte, 100))
	require.True(t, ok)
	assert.Equal(t, 0, off)

	off, ok = a.push(make([]byte, 100))
	require.True(t, ok)
	assert.Equal(t, 256, off)

	off, ok = a.push(make([]byte, 512))
	require.True(t, ok)
	assert.Equal(t, 512, off)

	_, ok = a.push(make([]byte, 1))
	assert.False(t, ok, "arena is full")
	assert.True(t, a.fits(1024))
	assert.False(t, a.fits(1025))

	a.reset()
	off, ok = a.push([]byte{1})
	require.True(t, ok)
	assert.Equal(t, 0, off)
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 0, alignUp(0, 256))
	assert.Equal(t, 256, alignUp(1, 256))
	assert.Equal(t, 256, alignUp(256, 256))
	assert.Equal(t, 8, alignUp(5, 4))
	assert.Equal(t, 7, alignUp(7, 1))
}

func TestMipLevels(t *testing.T) {
	assert.Equal(t, uint32(1), mipLevels(1, 1))
	assert.Equal(t, uint32(9), mipLevels(256, 256))
	assert.Equal(t, uint32(11), mipLevels(1024, 3))
	assert.Equal(t, uint32(3), mipLevels(5, 4))
}

func TestBlendState(t *testing.T) {
	assert.Nil(t, blendState(false, device.BlendFunc{Src: device.BlendSrcAlpha, Dst: device.BlendOneMinusSrcAlpha}))

	s := blendState(true, device.BlendFunc{Src: device.BlendSrcAlpha, Dst: device.BlendOneMinusSrcAlpha})
	require.NotNil(t, s)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, s.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, s.Color.DstFactor)
	assert.Equal(t, wgpu.BlendOperationAdd, s.Color.Operation)

	mul := blendState(true, device.BlendFunc{Src: device.BlendDstColor, Dst: device.BlendZero})
	assert.Equal(t, wgpu.BlendFactorDst, mul.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorDstAlpha, mul.Alpha.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorZero, mul.Alpha.DstFactor)
}

func TestPipelineStateMapping(t *testing.T) {
	assert.Equal(t, wgpu.PrimitiveTopologyLineList, primitiveTopology(device.Lines))
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, primitiveTopology(device.Points))
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, primitiveTopology(device.Triangles))
	assert.Equal(t, wgpu.FrontFaceCW, frontFace(device.WindingCW))
	assert.Equal(t, wgpu.FrontFaceCCW, frontFace(device.WindingCCW))
	assert.Equal(t, wgpu.IndexFormatUint16, indexFormat(device.IndexUint16))
	assert.Equal(t, wgpu.IndexFormatUint32, indexFormat(device.IndexUint32))
}
