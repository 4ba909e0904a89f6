package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/raytrace/tracer/rt/loader"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
)

const (
	environmentFormat = wgpu.TextureFormatRGBA32Float
	texelBytes        = 16
	accumTexelBytes   = 16
)

var (
	defaultSky   = [4]float32{0.6, 0.7, 0.9, 1}
	defaultNoise = [4]float32{0.5, 0.5, 0.5, 0.5}
)

// createSizedResources replaces the output texture and the accumulation
// buffer. The old objects are released only after the new ones exist.
func (r *ResourceSet) createSizedResources(size renderer.Size) error {
	if size.Width == 0 || size.Height == 0 {
		return renderer.ErrInvalidSize
	}
	tex, err := r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Trace Output",
		Size:          wgpu.Extent3D{Width: size.Width, Height: size.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        OutputFormat,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create output texture %s: %w", size, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("create output view: %w", err)
	}
	accum, err := r.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Accumulation",
		Size:  uint64(size.Width) * uint64(size.Height) * accumTexelBytes,
		Usage: wgpu.BufferUsageStorage,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return fmt.Errorf("create accumulation buffer %s: %w", size, err)
	}

	r.releaseSized()
	r.OutputTexture, r.OutputView, r.AccumBuf = tex, view, accum
	return nil
}

func (r *ResourceSet) releaseSized() {
	if r.OutputView != nil {
		r.OutputView.Release()
		r.OutputView = nil
	}
	if r.OutputTexture != nil {
		r.OutputTexture.Release()
		r.OutputTexture = nil
	}
	if r.AccumBuf != nil {
		r.AccumBuf.Release()
		r.AccumBuf = nil
	}
}

func (r *ResourceSet) createDefaultEnvironment() error {
	return r.setEnvironment(renderer.Environment{})
}

// UploadEnvironment replaces the sky and blue-noise textures. Missing or
// invalid images fall back to flat 1x1 defaults.
func (r *ResourceSet) UploadEnvironment(env renderer.Environment) error {
	if r.Device == nil {
		return renderer.ErrNotInitialized
	}
	if err := r.setEnvironment(env); err != nil {
		return err
	}
	return r.rebuildBindGroups()
}

func (r *ResourceSet) setEnvironment(env renderer.Environment) error {
	sky := env.Skybox
	if !sky.Valid() {
		sky = loader.Solid(defaultSky)
	}
	layers := make([]loader.Image, 0, len(env.Noise))
	for _, n := range env.Noise {
		if !n.Valid() {
			continue
		}
		if len(layers) > 0 && (n.Width != layers[0].Width || n.Height != layers[0].Height) {
			return fmt.Errorf("noise layer %dx%d does not match %dx%d", n.Width, n.Height, layers[0].Width, layers[0].Height)
		}
		layers = append(layers, n)
	}
	if len(layers) == 0 {
		layers = append(layers, loader.Solid(defaultNoise))
	}

	skyTex, skyView, err := r.uploadLayers("Skybox", []loader.Image{sky}, wgpu.TextureViewDimension2D)
	if err != nil {
		return err
	}
	noiseTex, noiseView, err := r.uploadLayers("Blue Noise", layers, wgpu.TextureViewDimension2DArray)
	if err != nil {
		skyView.Release()
		skyTex.Release()
		return err
	}

	r.releaseEnvironment()
	r.SkyboxTexture, r.SkyboxView = skyTex, skyView
	r.NoiseTexture, r.NoiseView = noiseTex, noiseView
	return nil
}

// uploadLayers creates a float texture with one array layer per image.
func (r *ResourceSet) uploadLayers(label string, imgs []loader.Image, dim wgpu.TextureViewDimension) (*wgpu.Texture, *wgpu.TextureView, error) {
	w, h := uint32(imgs[0].Width), uint32(imgs[0].Height)
	n := uint32(len(imgs))
	tex, err := r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: n},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        environmentFormat,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	for i, img := range imgs {
		r.Queue.WriteTexture(&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{Z: uint32(i)},
			Aspect:   wgpu.TextureAspectAll,
		}, floatBytes(img.Pix), &wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  w * texelBytes,
			RowsPerImage: h,
		}, &wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1})
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " View",
		Format:          environmentFormat,
		Dimension:       dim,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: n,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return tex, view, nil
}

func (r *ResourceSet) releaseEnvironment() {
	if r.SkyboxView != nil {
		r.SkyboxView.Release()
		r.SkyboxView = nil
	}
	if r.SkyboxTexture != nil {
		r.SkyboxTexture.Release()
		r.SkyboxTexture = nil
	}
	if r.NoiseView != nil {
		r.NoiseView.Release()
		r.NoiseView = nil
	}
	if r.NoiseTexture != nil {
		r.NoiseTexture.Release()
		r.NoiseTexture = nil
	}
}

func floatBytes(pix []float32) []byte {
	out := make([]byte, len(pix)*4)
	for i, f := range pix {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
