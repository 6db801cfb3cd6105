package wgpu_device

// WGPUDeviceBuilderOption is a functional option applied to a device during NewWGPUDevice.
type WGPUDeviceBuilderOption func(*wgpuDevice)

// WithMSAA sets the sample count of the main render target. Cube map targets are never
// multisampled.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the sample count to a device
func WithMSAA(count MSAASampleCount) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.sampleCount = count
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallback = force
	}
}

// WithPresentMode sets the initial present mode.
func WithPresentMode(mode PresentMode) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.SetPresentMode(mode)
	}
}

// WithArenaSizes sets the byte capacity of the uniform and instance arenas. A submission is
// flushed early when either fills up.
//
// Parameters:
//   - uniforms: uniform arena size in bytes
//   - instances: instance arena size in bytes
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the arena sizes to a device
func WithArenaSizes(uniforms, instances int) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		if uniforms > 0 {
			d.uniformArenaSize = uniforms
		}
		if instances > 0 {
			d.instanceArenaSize = instances
		}
	}
}
