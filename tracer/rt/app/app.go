package app

import (
	"context"
	"errors"
	"fmt"

	raytrace "github.com/gekko3d/raytrace"
	"github.com/gekko3d/raytrace/tracer/rt/accel"
	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/gekko3d/raytrace/tracer/rt/loader"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// App ties a preset scene, the orbit camera and window input to one renderer.
type App struct {
	logger core.Logger

	Preset     *raytrace.Preset
	Assets     *raytrace.AssetServer
	Scene      *core.Scene
	Camera     *core.OrbitCamera
	Controller *raytrace.OrbitController
	Renderer   *renderer.Renderer
	Accel      *accel.Manager
	Stats      *FrameStats

	blas          []accel.BLASHandle
	width, height uint32
}

// New prepares an app over backend. A nil preset uses the default scene.
func New(backend renderer.Backend, preset *raytrace.Preset, assets *raytrace.AssetServer, logger core.Logger) *App {
	logger = core.OrNop(logger)
	if preset == nil {
		preset = raytrace.DefaultPreset()
	}
	if assets == nil {
		assets = raytrace.NewAssetServer(logger)
	}
	mgr := accel.NewManager(logger)
	cam := core.NewOrbitCamera(mgl32.Vec3(preset.Camera.Target), preset.Camera.Radius)
	cam.Yaw = preset.Camera.Yaw
	cam.Pitch = preset.Camera.Pitch

	return &App{
		logger:     logger,
		Preset:     preset,
		Assets:     assets,
		Scene:      core.NewScene(),
		Camera:     cam,
		Controller: raytrace.NewOrbitController(cam),
		Renderer:   renderer.New(backend, mgr, logger, renderer.Config{Tile: preset.Tile}),
		Accel:      mgr,
		Stats:      NewFrameStats(),
	}
}

// Init builds the scene's acceleration structures, brings up the renderer on
// target and uploads environment, instances and camera.
func (a *App) Init(ctx context.Context, target any, width, height uint32) error {
	if err := a.loadScene(ctx); err != nil {
		return err
	}
	if err := a.Renderer.Initialize(target, width, height); err != nil {
		return err
	}
	a.width, a.height = width, height

	env, err := a.environment()
	if err != nil {
		return err
	}
	if env != nil {
		if err := a.Renderer.SetEnvironment(*env); err != nil {
			return err
		}
	}
	if err := a.syncScene(); err != nil {
		return err
	}
	return a.syncCamera()
}

func (a *App) loadScene(ctx context.Context) error {
	p := a.Preset
	mats, err := p.CoreMaterials()
	if err != nil {
		return err
	}
	a.Scene.Materials = mats
	a.Accel.SetMaterials(mats)

	geoms := make([]accel.Geometry, 0, len(p.Meshes))
	for i, mp := range p.Meshes {
		mesh, err := a.meshFor(mp)
		if err != nil {
			return fmt.Errorf("mesh %d: %w", i, err)
		}
		a.Scene.AddMesh(mesh)
		geoms = append(geoms, accel.GeometryFromMesh(mesh))
	}
	if len(geoms) > 0 {
		a.blas, err = a.Accel.BuildBottomLevels(ctx, geoms)
		if err != nil {
			return err
		}
	}

	for _, ip := range p.Instances {
		a.Scene.AddInstance(&core.Instance{
			Mesh:      ip.Mesh,
			Transform: ip.InstanceTransform(),
			CustomID:  ip.CustomID,
			Mask:      ip.Mask,
		})
	}
	a.logger.Infof("scene %q: %d meshes, %d instances, %d materials",
		p.Name, len(a.Scene.Meshes), len(a.Scene.Instances), len(mats))
	return nil
}

func (a *App) meshFor(mp raytrace.MeshPreset) (*core.Mesh, error) {
	if mp.Shape != "" {
		mesh := raytrace.ShapeMesh(mp.Shape, a.Preset.MaterialIndex(mp.Material))
		if mesh == nil {
			return nil, fmt.Errorf("%w: unknown shape %q", raytrace.ErrInvalidPreset, mp.Shape)
		}
		if mp.Name != "" {
			mesh.Name = mp.Name
		}
		return mesh, nil
	}
	id, err := a.Assets.LoadMesh(a.Preset.ResolvePath(mp.Path), a.Preset.MaterialTable(mp))
	if err != nil {
		return nil, err
	}
	mesh, _ := a.Assets.Mesh(id)
	return mesh, nil
}

// environment loads the preset's skybox and noise. It returns nil when the
// preset names neither, leaving the backend defaults in place.
func (a *App) environment() (*renderer.Environment, error) {
	p := a.Preset
	if p.Skybox == "" && len(p.Noise) == 0 {
		return nil, nil
	}
	var env renderer.Environment
	if p.Skybox != "" {
		id, err := a.Assets.LoadSkybox(p.ResolvePath(p.Skybox))
		if err != nil {
			return nil, fmt.Errorf("skybox: %w", err)
		}
		env.Skybox, _ = a.Assets.Image(id)
	}
	if len(p.Noise) > 0 {
		paths := make([]string, len(p.Noise))
		for i, n := range p.Noise {
			paths[i] = p.ResolvePath(n)
		}
		layers, err := a.Assets.LoadNoise(paths)
		if err != nil {
			return nil, fmt.Errorf("noise: %w", err)
		}
		env.Noise = layers
	}
	return &env, nil
}

// SetSkybox replaces the sky with img and restarts accumulation.
func (a *App) SetSkybox(img loader.Image) error {
	return a.Renderer.SetEnvironment(renderer.Environment{Skybox: img})
}

func (a *App) instances() []accel.Instance {
	out := make([]accel.Instance, 0, len(a.Scene.Instances))
	for _, inst := range a.Scene.Instances {
		out = append(out, accel.Instance{
			BLAS:      a.blas[inst.Mesh],
			Transform: inst.Transform.Affine(),
			CustomID:  inst.CustomID,
			Mask:      inst.Mask,
		})
	}
	return out
}

// syncScene pushes pending instance changes to the renderer. The scene stays
// dirty when the upload fails.
func (a *App) syncScene() error {
	membership, transforms := a.Scene.Dirty()
	if !membership && !transforms {
		return nil
	}
	if len(a.Scene.Instances) == 0 {
		h, err := a.Renderer.ClearInstances()
		if err != nil {
			return err
		}
		a.Scene.Commit()
		a.Stats.RecordScene(h)
		return nil
	}
	for i, inst := range a.Scene.Instances {
		if inst.Mesh < 0 || inst.Mesh >= len(a.blas) {
			return fmt.Errorf("instance %d: mesh %d: %w", i, inst.Mesh, accel.ErrUnknownBLAS)
		}
	}
	h, err := a.Renderer.SetInstances(a.instances())
	if err != nil {
		return err
	}
	a.Scene.Commit()
	a.Stats.RecordScene(h)
	return nil
}

// syncCamera uploads the camera when it moved.
func (a *App) syncCamera() error {
	if !a.Camera.Dirty {
		return nil
	}
	aspect := float32(a.width) / float32(max(a.height, 1))
	if err := a.Renderer.UpdateCamera(a.Camera.ViewMatrix(), a.Camera.ProjectionMatrix(aspect)); err != nil {
		return err
	}
	a.Camera.Dirty = false
	return nil
}

// Resize follows the drawable size. A zero size means the window is
// minimised and rendering pauses until it comes back.
func (a *App) Resize(width, height uint32) error {
	if width == a.width && height == a.height {
		return nil
	}
	a.width, a.height = width, height
	if width == 0 || height == 0 {
		return nil
	}
	if err := a.Renderer.Resize(width, height); err != nil {
		return err
	}
	a.Camera.Dirty = true
	return nil
}

// Frame applies one frame of input and renders one sample. It returns the
// accumulated sample count.
func (a *App) Frame(in *raytrace.Input, elapsed float32) (uint32, error) {
	if err := a.applyInput(in); err != nil {
		return a.Renderer.Samples(), err
	}
	if a.width == 0 || a.height == 0 {
		a.Stats.Skipped++
		return a.Renderer.Samples(), nil
	}
	if err := a.sync(); err != nil {
		return a.Renderer.Samples(), err
	}

	defer a.Stats.Time(PhaseRender)()
	return a.Render(elapsed)
}

func (a *App) applyInput(in *raytrace.Input) error {
	defer a.Stats.Time(PhaseInput)()
	if in.Resized && in.WindowWidth >= 0 && in.WindowHeight >= 0 {
		if err := a.Resize(uint32(in.WindowWidth), uint32(in.WindowHeight)); err != nil {
			return err
		}
	}
	a.Controller.Apply(in)
	return nil
}

func (a *App) sync() error {
	defer a.Stats.Time(PhaseScene)()
	if err := a.syncScene(); err != nil {
		return err
	}
	return a.syncCamera()
}

// Render traces one sample. An outdated surface is reconfigured at the
// current size and the frame retried once.
func (a *App) Render(elapsed float32) (uint32, error) {
	n, err := a.Renderer.Render(elapsed)
	if errors.Is(err, renderer.ErrSurfaceOutdated) {
		a.logger.Warnf("surface outdated, reconfiguring at %dx%d", a.width, a.height)
		if rerr := a.Renderer.Resize(a.width, a.height); rerr != nil {
			return a.Renderer.Samples(), fmt.Errorf("reconfigure surface: %w", rerr)
		}
		n, err = a.Renderer.Render(elapsed)
	}
	if err != nil {
		return a.Renderer.Samples(), err
	}
	a.Stats.RecordSample(n)
	return n, nil
}

// Close disposes of the renderer and its device.
func (a *App) Close() {
	a.Renderer.Dispose()
}
