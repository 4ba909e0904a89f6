package renderer

import (
	"fmt"

	"github.com/gekko3d/raytrace/tracer/rt/accel"
	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateRendering
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRendering:
		return "rendering"
	case StateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Config struct {
	// Tile is used when the backend cannot report the shader workgroup size.
	Tile [2]uint32
}

// Renderer drives progressive accumulation: one traced sample per presented
// frame, reset whenever the view or the scene changes. It is owned by a
// single goroutine and does no locking.
type Renderer struct {
	backend Backend
	accel   *accel.Manager
	logger  core.Logger
	cfg     Config

	state   State
	size    Size
	samples uint32
	tile    [2]uint32
	caps    Capabilities
}

func New(backend Backend, mgr *accel.Manager, logger core.Logger, cfg Config) *Renderer {
	if cfg.Tile[0] == 0 || cfg.Tile[1] == 0 {
		cfg.Tile = DefaultTile
	}
	if mgr == nil {
		mgr = accel.NewManager(logger)
	}
	return &Renderer{
		backend: backend,
		accel:   mgr,
		logger:  core.OrNop(logger),
		cfg:     cfg,
		tile:    cfg.Tile,
	}
}

func (r *Renderer) State() State               { return r.state }
func (r *Renderer) Samples() uint32            { return r.samples }
func (r *Renderer) Size() Size                 { return r.size }
func (r *Renderer) Tile() [2]uint32            { return r.tile }
func (r *Renderer) Capabilities() Capabilities { return r.caps }
func (r *Renderer) Accel() *accel.Manager      { return r.accel }

// Initialize brings up the device, uploads an identity camera and the current
// scene. Every error is fatal; the renderer stays uninitialized.
func (r *Renderer) Initialize(target any, width, height uint32) error {
	switch r.state {
	case StateDisposed:
		return ErrDisposed
	case StateUninitialized:
	default:
		return ErrAlreadyInitialized
	}
	if width == 0 || height == 0 {
		return ErrInvalidSize
	}
	size := Size{Width: width, Height: height}

	caps, err := r.backend.Initialize(target, size)
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	fail := func(step string, err error) error {
		r.backend.Release()
		return fmt.Errorf("initialize %s: %w", step, err)
	}
	if err := r.backend.WriteCamera(PackCamera(mgl32.Ident4(), mgl32.Ident4())); err != nil {
		return fail("camera", err)
	}
	if err := r.backend.UploadScene(r.accel.Buffers()); err != nil {
		return fail("scene", err)
	}

	r.caps = caps
	if caps.Workgroup[0] > 0 && caps.Workgroup[1] > 0 {
		r.tile = caps.Workgroup
	}
	r.size = size
	r.samples = 0
	r.state = StateReady
	r.logger.Infof("renderer ready at %s: surface=%s present=%s tile=%dx%d",
		size, caps.SurfaceFormat, caps.Present, r.tile[0], r.tile[1])
	return nil
}

func (r *Renderer) ready() error {
	switch r.state {
	case StateReady:
		return nil
	case StateUninitialized:
		return ErrNotInitialized
	case StateDisposed:
		return ErrDisposed
	default:
		return ErrBusy
	}
}

// Render traces one sample into the accumulation, presents it and returns the
// new sample count. On error the count is unchanged and nothing is presented.
func (r *Renderer) Render(elapsed float32) (uint32, error) {
	if err := r.ready(); err != nil {
		return r.samples, err
	}
	r.state = StateRendering
	defer func() {
		if r.state == StateRendering {
			r.state = StateReady
		}
	}()

	if err := r.backend.BeginFrame(); err != nil {
		r.backend.AbortFrame()
		return r.samples, fmt.Errorf("acquire frame: %w", err)
	}

	gx, gy := DispatchSize(r.size.Width, r.size.Height, r.tile)
	params := FrameParams{Elapsed: elapsed, Samples: r.samples}.Bytes()
	if err := r.backend.Dispatch(params, gx, gy); err != nil {
		r.backend.AbortFrame()
		return r.samples, fmt.Errorf("dispatch %dx%d: %w", gx, gy, err)
	}
	if err := r.backend.EndFrame(); err != nil {
		r.backend.AbortFrame()
		return r.samples, fmt.Errorf("present frame: %w", err)
	}

	r.samples++
	return r.samples, nil
}

// UpdateCamera uploads the inverse matrices and restarts accumulation.
func (r *Renderer) UpdateCamera(view, proj mgl32.Mat4) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := r.backend.WriteCamera(PackCamera(view, proj)); err != nil {
		return fmt.Errorf("write camera: %w", err)
	}
	r.resetAccumulation("camera")
	return nil
}

// Resize reallocates size-dependent resources and restarts accumulation.
func (r *Renderer) Resize(width, height uint32) error {
	if err := r.ready(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return ErrInvalidSize
	}
	size := Size{Width: width, Height: height}
	if err := r.backend.Resize(size); err != nil {
		return fmt.Errorf("resize to %s: %w", size, err)
	}
	r.size = size
	r.resetAccumulation("resize")
	return nil
}

// SetInstances rebuilds or refits the top-level structure, uploads the scene
// and restarts accumulation. On a build error the previous scene stays bound.
func (r *Renderer) SetInstances(instances []accel.Instance) (accel.TLASHandle, error) {
	if err := r.ready(); err != nil {
		return accel.TLASHandle{}, err
	}
	h, err := r.accel.BuildTopLevel(instances)
	if err != nil {
		return accel.TLASHandle{}, err
	}
	if err := r.backend.UploadScene(r.accel.Buffers()); err != nil {
		return h, fmt.Errorf("upload scene: %w", err)
	}
	r.resetAccumulation("scene")
	return h, nil
}

// ClearInstances empties the top level, uploads the scene and restarts
// accumulation so removed instances stop contributing.
func (r *Renderer) ClearInstances() (accel.TLASHandle, error) {
	if err := r.ready(); err != nil {
		return accel.TLASHandle{}, err
	}
	h := r.accel.ClearTopLevel()
	if err := r.backend.UploadScene(r.accel.Buffers()); err != nil {
		return h, fmt.Errorf("upload scene: %w", err)
	}
	r.resetAccumulation("scene")
	return h, nil
}

// SetEnvironment replaces the skybox and noise inputs and restarts accumulation.
func (r *Renderer) SetEnvironment(env Environment) error {
	if err := r.ready(); err != nil {
		return err
	}
	if err := r.backend.UploadEnvironment(env); err != nil {
		return fmt.Errorf("upload environment: %w", err)
	}
	r.resetAccumulation("environment")
	return nil
}

func (r *Renderer) resetAccumulation(reason string) {
	if r.samples > 0 {
		r.logger.Debugf("accumulation reset after %d samples (%s)", r.samples, reason)
	}
	r.samples = 0
}

// Dispose releases the device. The renderer cannot be reused.
func (r *Renderer) Dispose() {
	if r.state == StateDisposed {
		return
	}
	if r.state != StateUninitialized {
		r.backend.Release()
	}
	r.state = StateDisposed
}
