package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	raytrace "github.com/gekko3d/raytrace"
	"github.com/gekko3d/raytrace/tracer/rt/accel"
	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	beginErrs []error

	cameraWrites int
	scenes       []accel.Buffers
	environments []renderer.Environment
	dispatches   int
	resizes      []renderer.Size
	released     int
}

func (s *stubBackend) Initialize(any, renderer.Size) (renderer.Capabilities, error) {
	return renderer.Capabilities{}, nil
}

func (s *stubBackend) Resize(size renderer.Size) error {
	s.resizes = append(s.resizes, size)
	return nil
}

func (s *stubBackend) WriteCamera([]byte) error {
	s.cameraWrites++
	return nil
}

func (s *stubBackend) UploadScene(buf accel.Buffers) error {
	s.scenes = append(s.scenes, buf)
	return nil
}

func (s *stubBackend) UploadEnvironment(env renderer.Environment) error {
	s.environments = append(s.environments, env)
	return nil
}

func (s *stubBackend) BeginFrame() error {
	if len(s.beginErrs) > 0 {
		err := s.beginErrs[0]
		s.beginErrs = s.beginErrs[1:]
		return err
	}
	return nil
}

func (s *stubBackend) Dispatch([]byte, uint32, uint32) error {
	s.dispatches++
	return nil
}

func (s *stubBackend) EndFrame() error { return nil }
func (s *stubBackend) AbortFrame()     {}
func (s *stubBackend) Release()        { s.released++ }

func newInitialized(t *testing.T, preset *raytrace.Preset) (*App, *stubBackend) {
	t.Helper()
	sb := &stubBackend{}
	a := New(sb, preset, nil, core.NewNopLogger())
	require.NoError(t, a.Init(context.Background(), nil, 640, 480))
	return a, sb
}

func TestApp_InitDefaultScene(t *testing.T) {
	a, sb := newInitialized(t, nil)

	assert.Equal(t, renderer.StateReady, a.Renderer.State())
	assert.Len(t, a.Scene.Meshes, 6)
	assert.Len(t, a.Scene.Instances, 8)
	assert.Equal(t, 6, a.Accel.Stats().BLASBuilds)
	assert.Equal(t, 1, a.Accel.Stats().TLASBuilds)

	// Identity camera at init plus the orbit camera.
	assert.Equal(t, 2, sb.cameraWrites)
	assert.False(t, a.Camera.Dirty)
	require.Len(t, sb.scenes, 2)
	assert.NotEmpty(t, sb.scenes[1].Instances)
	assert.Empty(t, sb.environments, "no skybox or noise in the default preset")
	assert.Equal(t, uint32(0), a.Renderer.Samples())
}

func TestApp_FrameAccumulatesAndCameraResets(t *testing.T) {
	a, sb := newInitialized(t, nil)

	n, err := a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	n, err = a.Frame(&raytrace.Input{}, 0.016)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	drag := &raytrace.Input{MouseDeltaX: 20}
	drag.Pressed[raytrace.MouseButtonLeft] = true
	n, err = a.Frame(drag, 0.032)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, 3, sb.cameraWrites)
	assert.Equal(t, 3, sb.dispatches)
}

func TestApp_TransformChangeRefits(t *testing.T) {
	a, sb := newInitialized(t, nil)
	_, err := a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)

	ball := a.Scene.Instances[6]
	moved := ball.Transform
	moved.Position = moved.Position.Add(mgl32.Vec3{0, 0.1, 0})
	a.Scene.SetTransform(ball, moved)

	n, err := a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, 1, a.Accel.Stats().TLASRefits)
	assert.Len(t, sb.scenes, 3)

	// Nothing pending: no further upload.
	_, err = a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)
	assert.Len(t, sb.scenes, 3)
}

func TestApp_RenderRetriesOutdatedSurfaceOnce(t *testing.T) {
	a, sb := newInitialized(t, nil)
	for i := 0; i < 3; i++ {
		_, err := a.Frame(&raytrace.Input{}, 0)
		require.NoError(t, err)
	}

	sb.beginErrs = []error{fmt.Errorf("wgpu: %w", renderer.ErrSurfaceOutdated)}
	n, err := a.Render(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n, "reconfiguring restarts accumulation")
	assert.Equal(t, []renderer.Size{{Width: 640, Height: 480}}, sb.resizes)

	sb.beginErrs = []error{renderer.ErrSurfaceOutdated, renderer.ErrSurfaceOutdated}
	n, err = a.Render(0)
	assert.ErrorIs(t, err, renderer.ErrSurfaceOutdated)
	assert.Equal(t, uint32(0), n)
	assert.Len(t, sb.resizes, 2)
}

func TestApp_MinimizedWindowSkipsRendering(t *testing.T) {
	a, sb := newInitialized(t, nil)

	n, err := a.Frame(&raytrace.Input{Resized: true}, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, sb.dispatches)
	assert.Empty(t, sb.resizes)

	n, err = a.Frame(&raytrace.Input{Resized: true, WindowWidth: 800, WindowHeight: 600}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, []renderer.Size{{Width: 800, Height: 600}}, sb.resizes)
	assert.Equal(t, renderer.Size{Width: 800, Height: 600}, a.Renderer.Size())
	assert.False(t, a.Camera.Dirty)
}

func TestApp_InitLoadsEnvironment(t *testing.T) {
	dir := t.TempDir()
	hdr := append([]byte("#?RADIANCE\n\n-Y 1 +X 2\n"), 128, 128, 128, 129, 128, 128, 128, 129)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sky.hdr"), hdr, 0644))

	p := raytrace.DefaultPreset()
	p.Skybox = "sky.hdr"
	p.Dir = dir
	_, sb := newInitialized(t, p)

	require.Len(t, sb.environments, 1)
	assert.Equal(t, 2, sb.environments[0].Skybox.Width)
	assert.Empty(t, sb.environments[0].Noise)
}

func TestApp_InitFailsOnMissingMesh(t *testing.T) {
	p := &raytrace.Preset{
		Meshes: []raytrace.MeshPreset{{Path: "missing.obj"}},
		Dir:    t.TempDir(),
	}
	p.Normalize()
	sb := &stubBackend{}
	a := New(sb, p, nil, nil)

	err := a.Init(context.Background(), nil, 64, 64)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, renderer.StateUninitialized, a.Renderer.State())

	a.Close()
	assert.Zero(t, sb.released)
}

func TestApp_RemovingEveryInstanceClearsScene(t *testing.T) {
	a, sb := newInitialized(t, nil)
	_, err := a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)
	_, err = a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)
	require.Len(t, sb.scenes, 2)
	before := a.Stats.TLASGeneration

	for len(a.Scene.Instances) > 0 {
		a.Scene.RemoveInstance(a.Scene.Instances[0])
	}

	n, err := a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n, "emptied scene restarts accumulation")
	require.Len(t, sb.scenes, 3)
	assert.Zero(t, sb.scenes[2].InstanceCount)
	_, ok := a.Accel.TopLevel()
	assert.False(t, ok)
	assert.Greater(t, a.Stats.TLASGeneration, before)
	assert.Zero(t, a.Stats.Instances)

	membership, transforms := a.Scene.Dirty()
	assert.False(t, membership)
	assert.False(t, transforms)
	_, err = a.Frame(&raytrace.Input{}, 0)
	require.NoError(t, err)
	assert.Len(t, sb.scenes, 3)
}

func TestApp_FrameTimesPhasesOnError(t *testing.T) {
	a, _ := newInitialized(t, nil)
	now := time.Unix(0, 0)
	a.Stats = newFrameStats(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	})

	a.Scene.AddInstance(&core.Instance{Mesh: 99, Transform: core.NewTransform()})
	_, err := a.Frame(&raytrace.Input{}, 0)
	assert.ErrorIs(t, err, accel.ErrUnknownBLAS)
	assert.Equal(t, time.Millisecond, a.Stats.Phases[PhaseInput])
	assert.Equal(t, time.Millisecond, a.Stats.Phases[PhaseScene], "failed sync still closes its phase")
	assert.Zero(t, a.Stats.Phases[PhaseRender])
	assert.Zero(t, a.Stats.Frames)
}

func TestFrameStats(t *testing.T) {
	now := time.Unix(0, 0)
	s := newFrameStats(func() time.Time { return now })

	done := s.Time(PhaseRender)
	now = now.Add(1500 * time.Microsecond)
	done()
	s.RecordScene(accel.TLASHandle{Generation: 3, Instances: 8})
	s.RecordScene(accel.TLASHandle{Generation: 4, Instances: 8, Refit: true})
	s.RecordSample(1)
	s.RecordSample(2)
	s.RecordSample(1)

	assert.Equal(t, uint64(3), s.Frames)
	assert.Equal(t, uint64(1), s.Restarts)
	assert.Equal(t, uint64(4), s.TLASGeneration)

	stats := s.String()
	assert.True(t, strings.Contains(stats, "render         : 1.50 ms"), stats)
	assert.True(t, strings.Contains(stats, "samples        : 1"), stats)
	assert.True(t, strings.Contains(stats, "generation     : 4"), stats)
	assert.True(t, strings.Contains(stats, "rebuild/refit  : 1/1"), stats)
	assert.Equal(t, "phase(7)", Phase(7).String())

	s.Reset()
	assert.Zero(t, s.Phases[PhaseRender])
	assert.Equal(t, uint32(1), s.Samples)
}
