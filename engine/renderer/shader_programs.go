package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
)

// shaderProgram returns the variant of src for defines, compiling it on the first request.
// A failed compile or link is cached as nil and never retried for the same key.
func (r *renderer) shaderProgram(src shader.Source, defines shader.Defines) *shader.Program {
	key := shader.BuildKey(src.Name, defines, r.disabledDefines)
	if p, ok := r.cache.Lookup(key); ok {
		return p
	}

	r.perf.ShaderCompiles++
	p, err := r.compileProgram(src, defines, key)
	if err != nil {
		r.perf.ShaderFailures++
		common.Logger().Warn("shader variant failed", "key", key, "error", err)
		r.cache.Store(key, nil)
		return nil
	}
	common.Logger().Debug("compiled shader variant", "key", key)
	r.cache.Store(key, p)
	return p
}

func (r *renderer) compileProgram(src shader.Source, defines shader.Defines, key string) (*shader.Program, error) {
	version := r.dev.VersionDirective()

	vsText := shader.BuildVariant(version, device.StageVertex, src, defines, r.disabledDefines, r.maxLights)
	vs, err := r.dev.CompileShader(device.StageVertex, vsText)
	if err != nil {
		return nil, fmt.Errorf("%s vertex stage: %w", src.Name, err)
	}

	fsText := shader.BuildVariant(version, device.StageFragment, src, defines, r.disabledDefines, r.maxLights)
	fs, err := r.dev.CompileShader(device.StageFragment, fsText)
	if err != nil {
		r.dev.DeleteShader(vs)
		return nil, fmt.Errorf("%s fragment stage: %w", src.Name, err)
	}

	handle, err := r.dev.LinkProgram(vs, fs)
	r.dev.DeleteShader(vs)
	r.dev.DeleteShader(fs)
	if err != nil {
		return nil, fmt.Errorf("%s link: %w", src.Name, err)
	}

	p := shader.NewProgram(src, handle, defines, key)
	p.Locate(r.dev)
	return p, nil
}

// releasePrograms deletes the device handles of dropped cache entries and forgets the active
// shader if it was one of them.
func (r *renderer) releasePrograms(programs []*shader.Program) {
	for _, p := range programs {
		if p == r.activeShader {
			r.activeShader = nil
			r.activeMaterial = nil
		}
		r.dev.DeleteShader(p.Handle)
	}
}
