package wgpu_device

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

type shaderObject struct {
	stage      device.ShaderStage
	module     *wgpu.ShaderModule
	reflection *shader.Reflection
}

// programObject is a linked vertex and fragment module pair with its CPU uniform blocks and the
// textures bound to its texture locations.
type programObject struct {
	handle           device.Handle
	vertex           *shaderObject
	fragment         *shaderObject
	inputs           []shader.VertexInput
	layout           *programLayout
	blocks           [][]byte
	bound            map[int32]device.Handle
	bindGroupLayouts []*wgpu.BindGroupLayout
	pipelineLayout   *wgpu.PipelineLayout
	bindGroups       map[string]*wgpu.BindGroup
}

// CompileShader preprocesses a variant, validates the WGSL with naga and creates the module.
// Validation errors are returned synchronously with naga's diagnostics.
func (d *wgpuDevice) CompileShader(stage device.ShaderStage, source string) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	wgsl, err := shader.Preprocess(source)
	if err != nil {
		return 0, fmt.Errorf("%s shader: %w", stage, err)
	}
	if _, err := naga.Compile(wgsl); err != nil {
		return 0, fmt.Errorf("%s shader: %w", stage, err)
	}
	reflection, err := shader.Reflect(wgsl)
	if err != nil {
		return 0, fmt.Errorf("%s shader: %w", stage, err)
	}
	if stage == device.StageVertex && reflection.VertexEntry == "" {
		return 0, fmt.Errorf("%s shader: no @vertex entry point", stage)
	}
	if stage == device.StageFragment && reflection.FragmentEntry == "" {
		return 0, fmt.Errorf("%s shader: no @fragment entry point", stage)
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: stage.String() + " shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: wgsl,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%s shader: %w", stage, err)
	}

	h := d.handle()
	d.shaders[h] = &shaderObject{stage: stage, module: module, reflection: reflection}
	return h, nil
}

// LinkProgram merges the bindings both stages declare and creates the bind group layouts and
// pipeline layout. Render pipelines are created lazily per draw state.
func (d *wgpuDevice) LinkProgram(vertex, fragment device.Handle) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vs, ok := d.shaders[vertex]
	if !ok || vs.stage != device.StageVertex {
		return 0, fmt.Errorf("vertex shader %d: %w", vertex, ErrUnknownHandle)
	}
	fs, ok := d.shaders[fragment]
	if !ok || fs.stage != device.StageFragment {
		return 0, fmt.Errorf("fragment shader %d: %w", fragment, ErrUnknownHandle)
	}

	merged := mergeReflections(vs.reflection, fs.reflection)
	layout, err := buildLayout(merged)
	if err != nil {
		return 0, err
	}

	p := &programObject{
		vertex:     vs,
		fragment:   fs,
		inputs:     merged.Inputs,
		layout:     layout,
		bound:      make(map[int32]device.Handle),
		bindGroups: make(map[string]*wgpu.BindGroup),
	}
	for _, b := range layout.blocks {
		p.blocks = append(p.blocks, make([]byte, b.size))
	}

	for g, entries := range layout.layouts {
		bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("program group %d", g),
			Entries: entries,
		})
		if err != nil {
			d.releaseProgramObjects(p)
			return 0, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		p.bindGroupLayouts = append(p.bindGroupLayouts, bgl)
	}
	p.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "program layout",
		BindGroupLayouts: p.bindGroupLayouts,
	})
	if err != nil {
		d.releaseProgramObjects(p)
		return 0, fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	p.handle = d.handle()
	d.programs[p.handle] = p
	common.Logger().Debug("program linked", "program", p.handle, "uniforms", len(layout.uniforms), "textures", len(layout.textures))
	return p.handle, nil
}

// mergeReflections combines the interfaces of both stages: vertex inputs come from the vertex
// stage, bindings are the union keyed by group and binding, sorted.
func mergeReflections(vertex, fragment *shader.Reflection) *shader.Reflection {
	merged := &shader.Reflection{
		VertexEntry:   vertex.VertexEntry,
		FragmentEntry: fragment.FragmentEntry,
		Inputs:        vertex.Inputs,
		Bindings:      slices.Clone(vertex.Bindings),
	}
	for _, b := range fragment.Bindings {
		dup := slices.ContainsFunc(merged.Bindings, func(e shader.Binding) bool {
			return e.Group == b.Group && e.Binding == b.Binding
		})
		if !dup {
			merged.Bindings = append(merged.Bindings, b)
		}
	}
	slices.SortFunc(merged.Bindings, func(a, b shader.Binding) int {
		if a.Group != b.Group {
			return a.Group - b.Group
		}
		return a.Binding - b.Binding
	})
	return merged
}

// DeleteShader releases a shader module or a program together with its cached pipelines.
func (d *wgpuDevice) DeleteShader(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.shaders[h]; ok {
		s.module.Release()
		delete(d.shaders, h)
		return
	}
	d.deleteProgram(h)
}

func (d *wgpuDevice) deleteProgram(h device.Handle) {
	p, ok := d.programs[h]
	if !ok {
		return
	}
	for key, pipeline := range d.pipelines {
		if key.program == h {
			pipeline.pipeline.Release()
			delete(d.pipelines, key)
		}
	}
	d.releaseProgramObjects(p)
	if d.program == p {
		d.program = nil
	}
	delete(d.programs, h)
}

func (d *wgpuDevice) releaseProgramObjects(p *programObject) {
	for _, bg := range p.bindGroups {
		bg.Release()
	}
	clear(p.bindGroups)
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	for _, bgl := range p.bindGroupLayouts {
		bgl.Release()
	}
	p.bindGroupLayouts = nil
}

func (d *wgpuDevice) UseProgram(program device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.program = d.programs[program]
}

func (d *wgpuDevice) AttribLocation(program device.Handle, name string) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[program]
	if !ok {
		return -1
	}
	for _, in := range p.inputs {
		if in.Name == name {
			return int32(in.Location)
		}
	}
	return -1
}

func (d *wgpuDevice) UniformLocation(program device.Handle, name string) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[program]
	if !ok {
		return -1
	}
	if loc, ok := p.layout.uniformIndex[name]; ok {
		return loc
	}
	if loc, ok := p.layout.textureIndex[name]; ok {
		return loc
	}
	return -1
}

func (d *wgpuDevice) SetUniformFloat(location int32, v float32) {
	d.writeUniform(location, []float32{v})
}

func (d *wgpuDevice) SetUniformVec2(location int32, v [2]float32) {
	d.writeUniform(location, v[:])
}

func (d *wgpuDevice) SetUniformVec3(location int32, v common.Vec3) {
	d.writeUniform(location, v[:])
}

func (d *wgpuDevice) SetUniformVec4(location int32, v [4]float32) {
	d.writeUniform(location, v[:])
}

func (d *wgpuDevice) SetUniformMat4(location int32, m common.Mat4) {
	d.writeUniform(location, m[:])
}

// writeUniform stores values into the current program's uniform block at the reflected offset
// of location, truncated to the field size.
func (d *wgpuDevice) writeUniform(location int32, values []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.program
	if p == nil || location < 0 || int(location) >= len(p.layout.uniforms) {
		return
	}
	slot := p.layout.uniforms[location]
	block := p.blocks[slot.block]
	end := slot.offset + slot.size
	for i, v := range values {
		off := slot.offset + i*4
		if off+4 > end || off+4 > len(block) {
			break
		}
		binary.LittleEndian.PutUint32(block[off:], math.Float32bits(v))
	}
}
