package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
)

// Group 0 slots of the trace shader.
const (
	bindCamera uint32 = iota
	bindFrame
	bindVertices
	bindTriangles
	bindBLASNodes
	bindInstances
	bindTLASNodes
	bindMaterials
	bindAccum
	bindOutput
	bindSkybox
	bindNoise
)

func computeBindings() []uint32 {
	entries := computeLayoutEntries()
	out := make([]uint32, len(entries))
	for i, e := range entries {
		out[i] = e.Binding
	}
	return out
}

func computeLayoutEntries() []wgpu.BindGroupLayoutEntry {
	storage := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeReadOnlyStorage,
			},
		}
	}
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    bindCamera,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: renderer.CameraUniformSize,
			},
		},
		{
			Binding:    bindFrame,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: renderer.FrameParamsSize,
			},
		},
		storage(bindVertices),
		storage(bindTriangles),
		storage(bindBLASNodes),
		storage(bindInstances),
		storage(bindTLASNodes),
		storage(bindMaterials),
		{
			Binding:    bindAccum,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeStorage,
			},
		},
		{
			Binding:    bindOutput,
			Visibility: wgpu.ShaderStageCompute,
			StorageTexture: wgpu.StorageTextureBindingLayout{
				Access:        wgpu.StorageTextureAccessWriteOnly,
				Format:        OutputFormat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		},
		{
			Binding:    bindSkybox,
			Visibility: wgpu.ShaderStageCompute,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		},
		{
			Binding:    bindNoise,
			Visibility: wgpu.ShaderStageCompute,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
				ViewDimension: wgpu.TextureViewDimension2DArray,
			},
		},
	}
}

// rebuildBindGroups recreates the trace bind group and, on the blit path, the
// present bind group. Called whenever a bound resource is replaced.
func (r *ResourceSet) rebuildBindGroups() error {
	if r.ComputeLayout == nil {
		return renderer.ErrNotInitialized
	}
	buf := func(binding uint32, b *wgpu.Buffer) wgpu.BindGroupEntry {
		return wgpu.BindGroupEntry{Binding: binding, Buffer: b, Size: wgpu.WholeSize}
	}
	bg, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Raytrace BG",
		Layout: r.ComputeLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: bindCamera, Buffer: r.CameraBuf, Size: renderer.CameraUniformSize},
			{Binding: bindFrame, Buffer: r.FrameBuf, Size: renderer.FrameParamsSize},
			buf(bindVertices, r.VertexBuf),
			buf(bindTriangles, r.TriangleBuf),
			buf(bindBLASNodes, r.BLASBuf),
			buf(bindInstances, r.InstanceBuf),
			buf(bindTLASNodes, r.TLASBuf),
			buf(bindMaterials, r.MaterialBuf),
			buf(bindAccum, r.AccumBuf),
			{Binding: bindOutput, TextureView: r.OutputView},
			{Binding: bindSkybox, TextureView: r.SkyboxView},
			{Binding: bindNoise, TextureView: r.NoiseView},
		},
	})
	if err != nil {
		return fmt.Errorf("create trace bind group: %w", err)
	}
	if r.BindGroup != nil {
		r.BindGroup.Release()
	}
	r.BindGroup = bg

	if r.present != renderer.PresentBlit || r.BlitPipeline == nil {
		return nil
	}
	layout := r.BlitPipeline.GetBindGroupLayout(0)
	defer layout.Release()
	blit, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Blit BG",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: r.OutputView},
			{Binding: 1, Sampler: r.BlitSampler},
		},
	})
	if err != nil {
		return fmt.Errorf("create blit bind group: %w", err)
	}
	if r.BlitBindGroup != nil {
		r.BlitBindGroup.Release()
	}
	r.BlitBindGroup = blit
	return nil
}
