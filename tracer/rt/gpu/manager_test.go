package gpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
	"github.com/stretchr/testify/assert"
)

func TestChoosePresentPath(t *testing.T) {
	assert.Equal(t, renderer.PresentCopy, choosePresentPath([]wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm, OutputFormat}))
	assert.Equal(t, renderer.PresentBlit, choosePresentPath([]wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb}))
	assert.Equal(t, renderer.PresentBlit, choosePresentPath(nil))
}

func TestClassifySurfaceError(t *testing.T) {
	assert.Nil(t, classifySurfaceError(nil))
	assert.ErrorIs(t, classifySurfaceError(errors.New("Surface texture is Outdated")), renderer.ErrSurfaceOutdated)
	assert.ErrorIs(t, classifySurfaceError(errors.New("acquire timeout")), renderer.ErrSurfaceOutdated)
	assert.ErrorIs(t, classifySurfaceError(errors.New("DeviceLost")), renderer.ErrDeviceLost)

	status := func(s string) error {
		return errors.New("wgpu.(*Surface).GetCurrentTexture(): surface status " + s)
	}
	deviceLost := classifySurfaceError(status("device-lost"))
	assert.ErrorIs(t, deviceLost, renderer.ErrDeviceLost)
	assert.False(t, renderer.IsTransient(deviceLost))
	assert.ErrorIs(t, classifySurfaceError(status("outdated")), renderer.ErrSurfaceOutdated)
	assert.ErrorIs(t, classifySurfaceError(status("lost")), renderer.ErrSurfaceOutdated)
	assert.ErrorIs(t, classifySurfaceError(status("timeout")), renderer.ErrSurfaceOutdated)

	for _, msg := range []string{"out of memory", "surface status out-of-memory"} {
		other := classifySurfaceError(errors.New(msg))
		assert.False(t, errors.Is(other, renderer.ErrSurfaceOutdated), msg)
		assert.False(t, errors.Is(other, renderer.ErrDeviceLost), msg)
	}

	wrapped := renderer.ErrSurfaceOutdated
	assert.Same(t, wrapped, classifySurfaceError(wrapped))
}

func TestAcquireSurfaceTexture_MapsStatus(t *testing.T) {
	r := NewResourceSet(nil, Config{})
	cases := map[string]error{
		"surface status outdated":    renderer.ErrSurfaceOutdated,
		"surface status timeout":     renderer.ErrSurfaceOutdated,
		"surface status device-lost": renderer.ErrDeviceLost,
	}
	for msg, want := range cases {
		r.acquire = func() (*wgpu.Texture, error) {
			return nil, errors.New("wgpu.(*Surface).GetCurrentTexture(): " + msg)
		}
		tex, err := r.acquireSurfaceTexture()
		assert.Nil(t, tex, msg)
		assert.ErrorIs(t, err, want, msg)
	}

	r.acquire = func() (*wgpu.Texture, error) { return nil, nil }
	_, err := r.acquireSurfaceTexture()
	assert.ErrorIs(t, err, renderer.ErrSurfaceOutdated)
}

func TestComputeLayoutEntries(t *testing.T) {
	entries := computeLayoutEntries()
	bindings := computeBindings()
	assert.Len(t, entries, 12)
	assert.Len(t, bindings, len(entries))
	for i, e := range entries {
		assert.Equal(t, uint32(i), e.Binding)
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[bindCamera].Buffer.Type)
	assert.Equal(t, uint64(renderer.CameraUniformSize), entries[bindCamera].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[bindAccum].Buffer.Type)
	assert.Equal(t, OutputFormat, entries[bindOutput].StorageTexture.Format)
	assert.Equal(t, wgpu.TextureViewDimension2DArray, entries[bindNoise].Texture.ViewDimension)
}

func TestInitialize_RejectsNonSurfaceTarget(t *testing.T) {
	r := NewResourceSet(nil, Config{})
	_, err := r.Initialize("not a window", renderer.Size{Width: 4, Height: 4})
	assert.ErrorIs(t, err, renderer.ErrMissingCapability)
	assert.Nil(t, r.Device)
	assert.Equal(t, renderer.DefaultTile, r.cfg.Tile)
}

func TestUninitializedResourceSet(t *testing.T) {
	r := NewResourceSet(nil, DefaultConfig())
	assert.ErrorIs(t, r.Resize(renderer.Size{Width: 2, Height: 2}), renderer.ErrNotInitialized)
	assert.ErrorIs(t, r.BeginFrame(), renderer.ErrNotInitialized)
	assert.ErrorIs(t, r.WriteCamera(make([]byte, renderer.CameraUniformSize)), renderer.ErrNotInitialized)
	assert.ErrorIs(t, r.UploadEnvironment(renderer.Environment{}), renderer.ErrNotInitialized)
	assert.Error(t, r.EndFrame())
	r.AbortFrame()
	r.Release()
	r.Release()
}

func TestFloatBytes(t *testing.T) {
	b := floatBytes([]float32{1, -2})
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0xc0}, b)
}
