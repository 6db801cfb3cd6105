package renderer

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
)

// renderPass draws batches in queue order. The bound state trackers are reset and the
// default device state is restored before the first batch.
func (r *renderer) renderPass(s scene.Scene, view camera.RenderView, batches []*GeometryBatch) {
	r.activeMaterial = nil
	r.activeShader = nil
	r.activeMesh = nil

	r.dev.SetDepthTest(true)
	r.dev.SetCullFace(true)
	r.dev.SetDither(true)
	r.dev.SetDepthWrite(true)
	r.dev.SetFrontFace(device.WindingCW)

	r.perf.Batches += len(batches)
	fogEnabled := s.Fog().Enabled

	for _, batch := range batches {
		geom, mat, env := batch.Geometry, batch.Material, batch.EnvironmentMap
		if geom == nil || geom.Mesh == nil || mat == nil {
			common.Logger().Warn("skipping incomplete batch")
			continue
		}

		instanced := r.instancing && mat.AllowInstancing() && len(batch.Transforms) > MinInstancesPerBatch

		defines := mat.Defines()
		fogOff := !fogEnabled && defines.Has(shader.DefineFog)
		if env != nil || instanced || fogOff {
			defines = defines.Clone()
			if env != nil {
				defines.Enable(shader.DefineEnvironmentMap)
			}
			if instanced {
				defines.Enable(shader.DefineInstancing)
			}
			if fogOff {
				defines.Disable(shader.DefineFog)
			}
		}

		r.bindMaterial(mat, defines)
		if r.activeShader == nil {
			continue
		}

		mesh := geom.Mesh
		r.bindMesh(mesh)
		r.bindRenderView(view)
		r.bindScene(s)
		r.bindLights()

		if geom.IndexOffset < 0 || geom.IndexOffset+geom.IndexCount > mesh.IndexCount {
			common.Logger().Warn("geometry indices out of range",
				"mesh", mesh.Name, "offset", geom.IndexOffset, "count", geom.IndexCount, "indices", mesh.IndexCount)
			continue
		}

		r.perf.Vertices += geom.IndexCount * len(batch.Transforms)

		// Materials enabling ENVIRONMENTMAP themselves sample the default cube.
		if env != nil {
			r.bindCubeMap(shader.EnvironmentMapSlot, env.CubeMap())
		} else if defines.Has(shader.DefineEnvironmentMap) && !r.disabledDefines.Has(shader.DefineEnvironmentMap) {
			r.bindCubeMap(shader.EnvironmentMapSlot, nil)
		}

		if instanced {
			r.drawInstanced(mat.Primitive(), batch)
		} else {
			r.drawIndividual(mat.Primitive(), batch)
		}
	}
}

// drawIndividual issues one draw per transform.
func (r *renderer) drawIndividual(prim device.Primitive, batch *GeometryBatch) {
	geom := batch.Geometry
	for _, t := range batch.Transforms {
		r.bindTransform(t)
		r.dev.Draw(prim, geom.IndexCount, geom.Mesh.IndexType, geom.ByteOffset())
		r.perf.DrawCalls++
	}
}

// drawInstanced streams the batch transforms through the instance buffer in chunks of
// MaxInstancesPerBatch and issues one instanced draw per chunk.
func (r *renderer) drawInstanced(prim device.Primitive, batch *GeometryBatch) {
	geom := batch.Geometry
	loc := r.activeShader.Attributes[shader.AttributeInstanceModelMatrix]
	if loc < 0 {
		common.Logger().Warn("instanced shader has no instance matrix input", "shader", r.activeShader.Key)
		return
	}

	r.dev.BindInstanceBuffer(r.instanceBuffer, loc)
	for start := 0; start < len(batch.Transforms); start += MaxInstancesPerBatch {
		end := min(start+MaxInstancesPerBatch, len(batch.Transforms))
		r.instanceData = append(r.instanceData[:0], batch.Transforms[start:end]...)
		r.dev.BufferSubData(r.instanceBuffer, 0, common.SliceToBytes(r.instanceData))
		r.dev.DrawInstanced(prim, geom.IndexCount, geom.Mesh.IndexType, geom.ByteOffset(), end-start)
		r.perf.DrawCalls++
	}
	r.dev.UnbindInstanceBuffer(loc)
}

// bindMaterial resolves the shader variant of mat for defines and uploads the material state.
// Nothing is uploaded when the same material is already bound with the same variant.
func (r *renderer) bindMaterial(mat material.Material, defines shader.Defines) {
	src := mat.Shader()
	if src == nil {
		src = &r.defaultShader
	}
	program := r.shaderProgram(*src, defines)

	if mat == r.activeMaterial && program == r.activeShader {
		return
	}

	r.perf.BindMaterial++
	r.activeMaterial = mat

	r.bindShader(program)
	if r.activeShader == nil {
		return
	}

	p := r.activeShader
	r.dev.SetUniformVec4(p.Uniforms[shader.UniformDiffuseColor], mat.DiffuseColor())
	r.dev.SetUniformVec4(p.Uniforms[shader.UniformSpecularColor], mat.SpecularColor())
	for name, value := range mat.Uniforms() {
		r.setUniform(p.Uniform(r.dev, name), value)
	}

	for slot, tex := range mat.Textures() {
		r.bindTexture(slot, tex)
	}

	r.dev.SetDepthTest(mat.DepthTest())
	r.dev.SetDepthWrite(mat.DepthWrite())
	r.dev.SetCullFace(mat.CullFaces())
	r.dev.SetBlend(mat.Blend())
}

// bindShader makes program current. A nil program leaves no active shader.
func (r *renderer) bindShader(program *shader.Program) {
	if program == r.activeShader {
		return
	}
	r.perf.BindShader++
	r.activeShader = program
	// Attribute locations differ between programs.
	r.activeMesh = nil
	if program != nil {
		r.dev.UseProgram(program.Handle)
	}
}

// bindMesh binds the vertex and index buffers of mesh, enabling only the attributes the active
// shader declares.
func (r *renderer) bindMesh(mesh *model.Mesh) {
	if mesh == r.activeMesh {
		return
	}
	r.perf.BindMesh++
	r.activeMesh = mesh

	attributes := make([]device.VertexAttribute, 0, len(mesh.Attributes))
	for _, a := range mesh.Attributes {
		loc := r.activeShader.Attribute(r.dev, a.Name)
		if loc < 0 {
			continue
		}
		attributes = append(attributes, device.VertexAttribute{Location: loc, Components: a.Size, Offset: a.Offset})
	}
	r.dev.BindVertexBuffer(mesh.VertexBuffer, mesh.VertexSize, attributes)
	r.dev.BindIndexBuffer(mesh.IndexBuffer)
}

func (r *renderer) bindRenderView(view camera.RenderView) {
	r.activeView = view
	u := r.activeShader.Uniforms
	r.dev.SetUniformMat4(u[shader.UniformViewMatrix], view.View)
	r.dev.SetUniformMat4(u[shader.UniformProjectionMatrix], view.Projection)
	r.dev.SetUniformMat4(u[shader.UniformInverseViewMatrix], view.InverseView)
	r.dev.SetUniformMat4(u[shader.UniformViewProjectionMatrix], view.ViewProjection)
	r.dev.SetUniformVec3(u[shader.UniformViewForward], view.Forward())
	r.dev.SetUniformVec3(u[shader.UniformViewPosition], view.Position())
}

// bindScene uploads the ambient color and fog. Materials drawn while fog is disabled are
// compiled without FOG, so the zero range uploaded then is never read.
func (r *renderer) bindScene(s scene.Scene) {
	u := r.activeShader.Uniforms
	r.dev.SetUniformVec4(u[shader.UniformAmbientColor], s.AmbientColor())

	fog := s.Fog()
	r.dev.SetUniformVec3(u[shader.UniformFogColor], fog.Color.RGB())
	params := [2]float32{}
	if fog.Enabled {
		params = fog.Params()
	}
	r.dev.SetUniformVec2(u[shader.UniformFogParams], params)
}

// bindLights fills every light slot. Slots past the culled lights are zeroed so no earlier
// batch's lights leak through.
func (r *renderer) bindLights() {
	r.perf.BindLights++
	for i, loc := range r.activeShader.Lights {
		var (
			pos   common.Vec3
			color = common.ColorBlack
			rng   float32
		)
		if i < len(r.lights) {
			l := r.lights[i]
			pos = l.Position()
			color = l.Light.Color()
			rng = l.Light.Range()
		}
		r.dev.SetUniformVec3(loc.Position, pos)
		r.dev.SetUniformVec4(loc.Color, color)
		r.dev.SetUniformFloat(loc.Range, rng)
	}
}

func (r *renderer) bindTransform(t common.Mat4) {
	r.perf.BindTransform++
	u := r.activeShader.Uniforms
	r.dev.SetUniformMat4(u[shader.UniformModelViewMatrix], r.activeView.View.Mul(t))
	r.dev.SetUniformMat4(u[shader.UniformModelMatrix], t)
}

// bindTexture binds a 2D texture to the unit of its slot name.
func (r *renderer) bindTexture(slot string, tex *texture.Texture) {
	r.perf.BindTexture++
	unit, ok := shader.TextureSlots[slot]
	if !ok {
		common.Logger().Warn("unknown texture slot", "slot", slot)
		return
	}
	if tex == nil {
		return
	}
	r.dev.BindTexture(unit, device.Texture2D, tex.Handle, r.activeShader.Texture(slot))
}

// bindCubeMap binds a cube map to the unit of its slot name, falling back to the default
// checker cube map when cube is missing or is the target currently rendered into.
func (r *renderer) bindCubeMap(slot string, cube *texture.CubeMap) {
	r.perf.BindTexture++
	unit, ok := shader.TextureSlots[slot]
	if !ok {
		common.Logger().Warn("unknown texture slot", "slot", slot)
		return
	}
	handle := r.defaultCubeMap.Handle
	if cube != nil && cube.Handle != r.cubeTarget {
		handle = cube.Handle
	}
	r.dev.BindTexture(unit, device.TextureCube, handle, r.activeShader.Texture(slot))
}

// setUniform uploads a custom material uniform.
func (r *renderer) setUniform(loc int32, value any) {
	if loc < 0 {
		return
	}
	switch v := value.(type) {
	case float32:
		r.dev.SetUniformFloat(loc, v)
	case [2]float32:
		r.dev.SetUniformVec2(loc, v)
	case common.Vec3:
		r.dev.SetUniformVec3(loc, v)
	case [4]float32:
		r.dev.SetUniformVec4(loc, v)
	case common.Color:
		r.dev.SetUniformVec4(loc, v)
	case common.Mat4:
		r.dev.SetUniformMat4(loc, v)
	}
}
