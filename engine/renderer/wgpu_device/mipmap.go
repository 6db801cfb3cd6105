package wgpu_device

import (
	_ "embed"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed mipmap.wgsl
var mipmapSource string

// blitPipeline returns the downsampling pipeline for a color format, creating the shared module
// and bind group layout on first use.
func (d *wgpuDevice) blitPipeline(format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if p, ok := d.blitPipelines[format]; ok {
		return p, nil
	}

	if d.blitModule == nil {
		module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: "Mipmap Shader",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: mipmapSource,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mipmap shader: %w", err)
		}
		d.blitModule = module
	}
	if d.blitLayout == nil {
		layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label: "Mipmap Bind Group Layout",
			Entries: []wgpu.BindGroupLayoutEntry{
				{
					Binding:    0,
					Visibility: wgpu.ShaderStageFragment,
					Texture: wgpu.TextureBindingLayout{
						SampleType:    wgpu.TextureSampleTypeFloat,
						ViewDimension: wgpu.TextureViewDimension2D,
					},
				},
				{
					Binding:    1,
					Visibility: wgpu.ShaderStageFragment,
					Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create mipmap bind group layout: %w", err)
		}
		d.blitLayout = layout
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Mipmap Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.blitLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mipmap pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	p, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Mipmap Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     d.blitModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     d.blitModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mipmap pipeline: %w", err)
	}
	d.blitPipelines[format] = p
	return p, nil
}

// generateMipmaps fills mip levels 1 and up of every layer by downsampling the level above
// with a linear filter. The passes are recorded into the current command encoder, after any
// draws already recorded.
func (d *wgpuDevice) generateMipmaps(t *textureObject) error {
	if t.mips <= 1 {
		return nil
	}
	pipeline, err := d.blitPipeline(t.format)
	if err != nil {
		return err
	}
	d.endPass()
	encoder, err := d.ensureEncoder()
	if err != nil {
		return err
	}

	for layer := range uint32(t.layers) {
		for mip := uint32(1); mip < t.mips; mip++ {
			src, err := t.layerView(layer, mip-1)
			if err != nil {
				return fmt.Errorf("failed to create mip view: %w", err)
			}
			dst, err := t.layerView(layer, mip)
			if err != nil {
				return fmt.Errorf("failed to create mip view: %w", err)
			}
			bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Label:  "Mipmap Bind Group",
				Layout: d.blitLayout,
				Entries: []wgpu.BindGroupEntry{
					{Binding: 0, TextureView: src},
					{Binding: 1, Sampler: d.linearClamp},
				},
			})
			if err != nil {
				return fmt.Errorf("failed to create mipmap bind group: %w", err)
			}
			d.transient = append(d.transient, bindGroup)

			pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
				Label: "Mipmap Pass",
				ColorAttachments: []wgpu.RenderPassColorAttachment{
					{
						View:    dst,
						LoadOp:  wgpu.LoadOpClear,
						StoreOp: wgpu.StoreOpStore,
					},
				},
			})
			pass.SetPipeline(pipeline)
			pass.SetBindGroup(0, bindGroup, nil)
			pass.Draw(3, 1, 0, 0)
			pass.End()
			pass.Release()
		}
	}
	return nil
}
