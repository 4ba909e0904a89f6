package gpu

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
	"github.com/gekko3d/raytrace/tracer/rt/shaders"
)

// OutputFormat is the storage format the trace writes and the format a
// surface must have for the copy present path.
const OutputFormat = wgpu.TextureFormatRGBA8Unorm

// SurfaceTarget is anything that can describe a native surface, typically a
// GLFW window.
type SurfaceTarget interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

type Config struct {
	PresentMode     wgpu.PresentMode
	PowerPreference wgpu.PowerPreference
	// Tile is used when the shader workgroup size cannot be reflected.
	Tile [2]uint32
}

func DefaultConfig() Config {
	return Config{
		PresentMode:     wgpu.PresentModeFifo,
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
		Tile:            renderer.DefaultTile,
	}
}

// ResourceSet owns every device-side object of the tracer and implements
// renderer.Backend. It must be used from the thread that created the window.
type ResourceSet struct {
	logger core.Logger
	cfg    Config

	Instance      *wgpu.Instance
	Adapter       *wgpu.Adapter
	Device        *wgpu.Device
	Queue         *wgpu.Queue
	Surface       *wgpu.Surface
	SurfaceConfig *wgpu.SurfaceConfiguration

	Reflection      Reflection
	ComputeLayout   *wgpu.BindGroupLayout
	PipelineLayout  *wgpu.PipelineLayout
	ComputePipeline *wgpu.ComputePipeline

	OutputTexture *wgpu.Texture
	OutputView    *wgpu.TextureView
	AccumBuf      *wgpu.Buffer

	CameraBuf *wgpu.Buffer
	FrameBuf  *wgpu.Buffer

	VertexBuf   *wgpu.Buffer
	TriangleBuf *wgpu.Buffer
	BLASBuf     *wgpu.Buffer
	InstanceBuf *wgpu.Buffer
	TLASBuf     *wgpu.Buffer
	MaterialBuf *wgpu.Buffer

	SkyboxTexture *wgpu.Texture
	SkyboxView    *wgpu.TextureView
	NoiseTexture  *wgpu.Texture
	NoiseView     *wgpu.TextureView

	BindGroup *wgpu.BindGroup

	present       renderer.PresentPath
	BlitPipeline  *wgpu.RenderPipeline
	BlitSampler   *wgpu.Sampler
	BlitBindGroup *wgpu.BindGroup

	size    renderer.Size
	frame   *frameState
	acquire func() (*wgpu.Texture, error)
}

var _ renderer.Backend = (*ResourceSet)(nil)

func NewResourceSet(logger core.Logger, cfg Config) *ResourceSet {
	if cfg.Tile[0] == 0 || cfg.Tile[1] == 0 {
		cfg.Tile = renderer.DefaultTile
	}
	r := &ResourceSet{logger: core.OrNop(logger), cfg: cfg}
	r.acquire = func() (*wgpu.Texture, error) { return r.Surface.GetCurrentTexture() }
	return r
}

// Initialize creates the device, the trace pipeline and every resource sized
// to size. On error everything created so far is released.
func (r *ResourceSet) Initialize(target any, size renderer.Size) (caps renderer.Capabilities, err error) {
	st, ok := target.(SurfaceTarget)
	if !ok {
		return caps, fmt.Errorf("%w: %T cannot provide a surface", renderer.ErrMissingCapability, target)
	}
	defer func() {
		if err != nil {
			r.Release()
		}
	}()

	r.Instance = wgpu.CreateInstance(nil)
	r.Surface = r.Instance.CreateSurface(st.SurfaceDescriptor())
	if r.Surface == nil {
		return caps, fmt.Errorf("%w: surface creation failed", renderer.ErrMissingCapability)
	}

	r.Adapter, err = r.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: r.Surface,
		PowerPreference:   r.cfg.PowerPreference,
	})
	if err != nil || r.Adapter == nil {
		return caps, fmt.Errorf("%w: %v", renderer.ErrNoAdapter, err)
	}

	r.Device, err = r.Adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Tracer Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return caps, fmt.Errorf("%w: request device: %v", renderer.ErrNoAdapter, err)
	}
	r.Queue = r.Device.GetQueue()

	surfaceCaps := r.Surface.GetCapabilities(r.Adapter)
	if len(surfaceCaps.Formats) == 0 || len(surfaceCaps.AlphaModes) == 0 {
		return caps, fmt.Errorf("%w: surface reports no formats", renderer.ErrMissingCapability)
	}
	format := surfaceCaps.Formats[0]
	r.present = choosePresentPath(surfaceCaps.Formats)
	if r.present == renderer.PresentCopy {
		format = OutputFormat
	}

	usage := wgpu.TextureUsageRenderAttachment
	if r.present == renderer.PresentCopy {
		usage |= wgpu.TextureUsageCopyDst
	}
	r.SurfaceConfig = &wgpu.SurfaceConfiguration{
		Usage:       usage,
		Format:      format,
		Width:       size.Width,
		Height:      size.Height,
		PresentMode: r.cfg.PresentMode,
		AlphaMode:   surfaceCaps.AlphaModes[0],
	}
	r.Surface.Configure(r.Adapter, r.Device, r.SurfaceConfig)
	r.size = size

	if err = r.createComputePipeline(); err != nil {
		return caps, err
	}
	if err = r.createStaticBuffers(); err != nil {
		return caps, err
	}
	if err = r.createDefaultEnvironment(); err != nil {
		return caps, err
	}
	if err = r.createSizedResources(size); err != nil {
		return caps, err
	}
	if r.present == renderer.PresentBlit {
		if err = r.createBlitPipeline(); err != nil {
			return caps, err
		}
	}
	if err = r.rebuildBindGroups(); err != nil {
		return caps, err
	}

	tile := r.Reflection.Tile(r.cfg.Tile)
	caps = renderer.Capabilities{
		SurfaceFormat: fmt.Sprint(format),
		Present:       r.present,
		Workgroup:     tile,
	}
	r.logger.Debugf("surface format %v, present path %s, workgroup %dx%d", format, r.present, tile[0], tile[1])
	return caps, nil
}

// choosePresentPath picks a plain copy when the surface accepts the output
// format and a blit otherwise.
func choosePresentPath(formats []wgpu.TextureFormat) renderer.PresentPath {
	for _, f := range formats {
		if f == OutputFormat {
			return renderer.PresentCopy
		}
	}
	return renderer.PresentBlit
}

func (r *ResourceSet) createComputePipeline() error {
	refl, err := ReflectCompute(shaders.RaytraceWGSL, shaders.RaytraceEntryPoint)
	if err != nil {
		return err
	}
	if !refl.Complete {
		r.logger.Warnf("shader reflection incomplete, using %dx%d tile: %v", r.cfg.Tile[0], r.cfg.Tile[1], refl.LowerErr)
	}
	if err := checkLayout(refl, 0, computeBindings()); err != nil {
		return err
	}
	r.Reflection = refl

	shader, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Raytrace CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RaytraceWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", renderer.ErrShaderCompile, err)
	}
	defer shader.Release()

	r.ComputeLayout, err = r.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Raytrace BGL",
		Entries: computeLayoutEntries(),
	})
	if err != nil {
		return fmt.Errorf("%w: bind group layout: %v", renderer.ErrMissingCapability, err)
	}
	r.PipelineLayout, err = r.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Raytrace PL",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.ComputeLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: pipeline layout: %v", renderer.ErrMissingCapability, err)
	}
	r.ComputePipeline, err = r.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "Raytrace Pipeline",
		Layout: r.PipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: shaders.RaytraceEntryPoint,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", renderer.ErrShaderCompile, err)
	}
	return nil
}

// Resize reconfigures the surface and replaces the output texture and the
// accumulation buffer. The pipeline and scene buffers are kept.
func (r *ResourceSet) Resize(size renderer.Size) error {
	if r.Device == nil {
		return renderer.ErrNotInitialized
	}
	if size.Width == 0 || size.Height == 0 {
		return nil
	}
	r.AbortFrame()

	r.SurfaceConfig.Width = size.Width
	r.SurfaceConfig.Height = size.Height
	r.Surface.Configure(r.Adapter, r.Device, r.SurfaceConfig)

	if err := r.createSizedResources(size); err != nil {
		return err
	}
	r.size = size
	return r.rebuildBindGroups()
}

// Release drops every GPU object. It is safe to call more than once.
func (r *ResourceSet) Release() {
	r.AbortFrame()
	r.releaseSized()
	r.releaseBlit()
	if r.BindGroup != nil {
		r.BindGroup.Release()
		r.BindGroup = nil
	}
	for _, b := range r.sceneBuffers() {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	r.releaseEnvironment()
	if r.ComputePipeline != nil {
		r.ComputePipeline.Release()
		r.ComputePipeline = nil
	}
	if r.PipelineLayout != nil {
		r.PipelineLayout.Release()
		r.PipelineLayout = nil
	}
	if r.ComputeLayout != nil {
		r.ComputeLayout.Release()
		r.ComputeLayout = nil
	}
	if r.Queue != nil {
		r.Queue.Release()
		r.Queue = nil
	}
	if r.Device != nil {
		r.Device.Release()
		r.Device = nil
	}
	if r.Adapter != nil {
		r.Adapter.Release()
		r.Adapter = nil
	}
	if r.Surface != nil {
		r.Surface.Release()
		r.Surface = nil
	}
	if r.Instance != nil {
		r.Instance.Release()
		r.Instance = nil
	}
}

// classifySurfaceError maps a surface acquisition failure onto the renderer
// error taxonomy. Status names arrive as "device-lost", "outdated" and so on.
func classifySurfaceError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, renderer.ErrSurfaceOutdated) || errors.Is(err, renderer.ErrDeviceLost) {
		return err
	}
	msg := surfaceStatusKey(err.Error())
	switch {
	case strings.Contains(msg, "devicelost"):
		return fmt.Errorf("%w: %v", renderer.ErrDeviceLost, err)
	case strings.Contains(msg, "outdated"), strings.Contains(msg, "lost"), strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %v", renderer.ErrSurfaceOutdated, err)
	}
	return fmt.Errorf("acquire surface texture: %w", err)
}

// surfaceStatusKey lowercases s and drops separators.
func surfaceStatusKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
