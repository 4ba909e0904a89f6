package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
	"github.com/gekko3d/raytrace/tracer/rt/shaders"
)

// frameState holds the objects acquired between BeginFrame and EndFrame.
type frameState struct {
	surfaceTex  *wgpu.Texture
	surfaceView *wgpu.TextureView
	encoder     *wgpu.CommandEncoder
}

func (f *frameState) release() {
	if f.encoder != nil {
		f.encoder.Release()
		f.encoder = nil
	}
	if f.surfaceView != nil {
		f.surfaceView.Release()
		f.surfaceView = nil
	}
	if f.surfaceTex != nil {
		f.surfaceTex.Release()
		f.surfaceTex = nil
	}
}

// acquireSurfaceTexture fetches the next swapchain texture. A bad surface
// status comes back as an error and is classified.
func (r *ResourceSet) acquireSurfaceTexture() (*wgpu.Texture, error) {
	tex, err := r.acquire()
	if err != nil {
		return nil, classifySurfaceError(err)
	}
	if tex == nil {
		return nil, fmt.Errorf("%w: no surface texture", renderer.ErrSurfaceOutdated)
	}
	return tex, nil
}

// BeginFrame acquires the next surface texture and opens a command encoder.
func (r *ResourceSet) BeginFrame() error {
	if r.Device == nil || r.BindGroup == nil {
		return renderer.ErrNotInitialized
	}
	if r.frame != nil {
		return errors.New("frame already in flight")
	}
	tex, err := r.acquireSurfaceTexture()
	if err != nil {
		return err
	}
	f := &frameState{surfaceTex: tex}
	f.surfaceView, err = tex.CreateView(nil)
	if err != nil {
		f.release()
		return fmt.Errorf("create surface view: %w", err)
	}
	f.encoder, err = r.Device.CreateCommandEncoder(nil)
	if err != nil {
		f.release()
		return fmt.Errorf("create command encoder: %w", err)
	}
	r.frame = f
	return nil
}

// Dispatch writes the frame parameters and records one trace pass.
func (r *ResourceSet) Dispatch(params []byte, gx, gy uint32) error {
	if r.frame == nil {
		return errors.New("dispatch outside of a frame")
	}
	if err := r.Queue.WriteBuffer(r.FrameBuf, 0, params); err != nil {
		return fmt.Errorf("write frame params: %w", err)
	}
	pass := r.frame.encoder.BeginComputePass(nil)
	pass.SetPipeline(r.ComputePipeline)
	pass.SetBindGroup(0, r.BindGroup, nil)
	pass.DispatchWorkgroups(gx, gy, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("trace pass: %w", err)
	}
	return nil
}

// EndFrame moves the output image onto the surface, submits and presents.
func (r *ResourceSet) EndFrame() error {
	f := r.frame
	if f == nil {
		return errors.New("no frame in flight")
	}
	defer r.AbortFrame()

	switch r.present {
	case renderer.PresentCopy:
		f.encoder.CopyTextureToTexture(
			r.OutputTexture.AsImageCopy(),
			f.surfaceTex.AsImageCopy(),
			&wgpu.Extent3D{Width: r.size.Width, Height: r.size.Height, DepthOrArrayLayers: 1},
		)
	default:
		pass := f.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       f.surfaceView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			}},
		})
		pass.SetPipeline(r.BlitPipeline)
		pass.SetBindGroup(0, r.BlitBindGroup, nil)
		pass.Draw(3, 1, 0, 0)
		if err := pass.End(); err != nil {
			return fmt.Errorf("blit pass: %w", err)
		}
	}

	cmd, err := f.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish encoder: %w", err)
	}
	defer cmd.Release()
	r.Queue.Submit(cmd)
	r.Surface.Present()
	return nil
}

// AbortFrame drops the in-flight frame without presenting it.
func (r *ResourceSet) AbortFrame() {
	if r.frame == nil {
		return
	}
	r.frame.release()
	r.frame = nil
}

func (r *ResourceSet) createBlitPipeline() error {
	module, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BlitWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: blit: %v", renderer.ErrShaderCompile, err)
	}
	defer module.Release()

	r.BlitPipeline, err = r.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    r.SurfaceConfig.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: blit pipeline: %v", renderer.ErrShaderCompile, err)
	}
	r.BlitSampler, err = r.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("create blit sampler: %w", err)
	}
	return nil
}

func (r *ResourceSet) releaseBlit() {
	if r.BlitBindGroup != nil {
		r.BlitBindGroup.Release()
		r.BlitBindGroup = nil
	}
	if r.BlitSampler != nil {
		r.BlitSampler.Release()
		r.BlitSampler = nil
	}
	if r.BlitPipeline != nil {
		r.BlitPipeline.Release()
		r.BlitPipeline = nil
	}
}
