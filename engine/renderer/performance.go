package renderer

import "fmt"

// Performance accumulates render statistics until ResetPerformance is called. RenderScene
// never resets it, so a frame that also captures environment maps reports the total work.
type Performance struct {
	Vertices  int
	DrawCalls int
	Models    int
	Lights    int
	Batches   int

	BindShader    int
	BindMaterial  int
	BindMesh      int
	BindTexture   int
	BindLights    int
	BindTransform int

	ShaderCompiles int
	ShaderFailures int
}

// String formats the counters on one line for the profiler log.
func (p Performance) String() string {
	return fmt.Sprintf("vertices=%d draws=%d models=%d lights=%d batches=%d bind[shader=%d material=%d mesh=%d texture=%d lights=%d transform=%d] shaders[compiled=%d failed=%d]",
		p.Vertices, p.DrawCalls, p.Models, p.Lights, p.Batches,
		p.BindShader, p.BindMaterial, p.BindMesh, p.BindTexture, p.BindLights, p.BindTransform,
		p.ShaderCompiles, p.ShaderFailures)
}
