package loader

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOBJ_QuadFanAndMaterials(t *testing.T) {
	src := `
# unit quad, then a triangle in another material
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
usemtl white
f 1//1 2//1 3//1 4//1
usemtl light
f -4 -3 -2
`
	mesh, err := LoadOBJ(strings.NewReader(src), map[string]uint32{"white": 0, "light": 2})
	require.NoError(t, err)

	assert.Equal(t, "quad", mesh.Name)
	assert.Equal(t, 3, mesh.TriangleCount())
	require.Len(t, mesh.Vertices, 9)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}, mesh.Indices)

	// Fan 0-1-2, 0-2-3.
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, mesh.Vertices[3].Position)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, mesh.Vertices[4].Position)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, mesh.Vertices[5].Position)
	assert.Equal(t, uint32(0), mesh.Vertices[5].Material)

	// Negative indices resolve against the positions read so far.
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, mesh.Vertices[6].Position)
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, mesh.Vertices[8].Position)
	assert.Equal(t, uint32(2), mesh.Vertices[8].Material)
	// No vn on these corners, so the face normal is used.
	assert.InDelta(t, 1.0, float64(mesh.Vertices[7].Normal.Z()), 1e-6)
}

func TestLoadOBJ_UnknownMaterialIsZero(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl chrome\nf 1/1 2/2 3/3\n"
	mesh, err := LoadOBJ(strings.NewReader(src), nil)
	require.NoError(t, err)
	require.Len(t, mesh.Vertices, 3)
	assert.Equal(t, uint32(0), mesh.Vertices[0].Material)
}

func TestLoadOBJ_Errors(t *testing.T) {
	cases := map[string]struct {
		src  string
		want error
	}{
		"bad float":     {"v 0 zero 0\n", ErrMalformedOBJ},
		"short vertex":  {"v 0 0\n", ErrMalformedOBJ},
		"two corners":   {"v 0 0 0\nv 1 0 0\nf 1 2\n", ErrMalformedOBJ},
		"bad index":     {"v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 x\n", ErrMalformedOBJ},
		"out of range":  {"v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", ErrIndexOutOfRange},
		"zero index":    {"v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", ErrIndexOutOfRange},
		"normal range":  {"v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1//1 2//1 3//1\n", ErrIndexOutOfRange},
		"usemtl noname": {"usemtl\n", ErrMalformedOBJ},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadOBJ(strings.NewReader(tc.src), nil)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

const hdrHeader = "#?RADIANCE\nFORMAT=32-bit_rle_rgbe\nEXPOSURE=1.0\n\n"

func assertPixel(t *testing.T, want, got [4]float32, msgAndArgs ...any) {
	t.Helper()
	assert.InDeltaSlice(t, want[:], got[:], 0.01, msgAndArgs...)
}

func TestLoadHDR_Flat(t *testing.T) {
	data := []byte(hdrHeader + "-Y 1 +X 2\n")
	data = append(data, 128, 64, 0, 129, 0, 0, 0, 0)

	img, err := LoadHDR(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assertPixel(t, [4]float32{1, 0.5, 0, 1}, img.At(0, 0))
	assertPixel(t, [4]float32{0, 0, 0, 1}, img.At(1, 0))
}

// Run-length scanlines as written by Radiance's own encoder.
func TestLoadHDR_AdaptiveRLE(t *testing.T) {
	data := []byte(hdrHeader + "-Y 1 +X 8\n")
	data = append(data, 2, 2, 0, 8)
	data = append(data, 128+8, 128)                // R run
	data = append(data, 8, 0, 1, 2, 3, 4, 5, 6, 7) // G literal
	data = append(data, 128+4, 0, 128+4, 0)        // B two runs
	data = append(data, 128+8, 129)                // E run

	img, err := LoadHDR(bytes.NewReader(data))
	require.NoError(t, err)
	for x := 0; x < 8; x++ {
		assertPixel(t, [4]float32{1, float32(x) / 128, 0, 1}, img.At(x, 0), "x=%d", x)
	}
}

func TestLoadHDR_BottomUpRows(t *testing.T) {
	data := []byte("#?RGBE\n\n+Y 2 +X 3\n")
	for x := 0; x < 3; x++ {
		data = append(data, 128, 128, 128, 129) // bottom row
	}
	data = append(data, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)

	img, err := LoadHDR(bytes.NewReader(data))
	require.NoError(t, err)
	for x := 0; x < 3; x++ {
		assertPixel(t, [4]float32{1, 1, 1, 1}, img.At(x, 1))
		assertPixel(t, [4]float32{0, 0, 0, 1}, img.At(x, 0))
	}
}

func TestLoadHDR_MultiRowRLE(t *testing.T) {
	data := []byte(hdrHeader + "-Y 2 +X 8\n")
	for _, e := range []byte{129, 130} {
		data = append(data, 2, 2, 0, 8)
		data = append(data, 128+8, 128, 128+8, 0, 128+8, 0, 128+8, e)
	}

	img, err := LoadHDR(bytes.NewReader(data))
	require.NoError(t, err)
	assertPixel(t, [4]float32{1, 0, 0, 1}, img.At(7, 0))
	assertPixel(t, [4]float32{2, 0, 0, 1}, img.At(0, 1))
}

func TestLoadHDR_Errors(t *testing.T) {
	cases := map[string][]byte{
		"no signature": []byte("P6\n\n-Y 1 +X 1\n\x00\x00\x00\x00"),
		"bad format":   []byte("#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n"),
		"orientation":  []byte("#?RADIANCE\n\n+X 1 -Y 1\n\x00\x00\x00\x00"),
		"truncated":    append([]byte(hdrHeader+"-Y 2 +X 2\n"), 1, 2, 3),
		"rle width":    append([]byte(hdrHeader+"-Y 1 +X 8\n"), 2, 2, 0, 9),
		"empty":        nil,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadHDR(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrMalformedHDR)
		})
	}
}

func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.NRGBA) io.Reader {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestLoadNoise_ResizesToLayerSize(t *testing.T) {
	small := encodePNG(t, 2, 2, func(x, y int) color.NRGBA {
		if x == 0 {
			return color.NRGBA{R: 255, A: 255}
		}
		return color.NRGBA{B: 255, A: 255}
	})
	exact := encodePNG(t, NoiseSize, NoiseSize, func(x, y int) color.NRGBA {
		return color.NRGBA{G: uint8(x), A: 255}
	})

	layers, err := LoadNoise([]io.Reader{small, exact})
	require.NoError(t, err)
	require.Len(t, layers, 2)
	for _, l := range layers {
		assert.True(t, l.Valid())
		assert.Equal(t, NoiseSize, l.Width)
		assert.Equal(t, NoiseSize, l.Height)
	}
	assert.Equal(t, [4]float32{1, 0, 0, 1}, layers[0].At(0, 0))
	assert.Equal(t, [4]float32{0, 0, 1, 1}, layers[0].At(NoiseSize-1, NoiseSize-1))
	assert.InDelta(t, 10.0/255, float64(layers[1].At(10, 3)[1]), 1e-6)
}

func TestLoadNoise_BadImage(t *testing.T) {
	_, err := LoadNoise([]io.Reader{strings.NewReader("not an image")})
	assert.Error(t, err)
}

func TestImageHelpers(t *testing.T) {
	img := Solid([4]float32{0.1, 0.2, 0.3, 1})
	assert.True(t, img.Valid())
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, img.At(0, 0))
	assert.False(t, Image{Width: 2, Height: 2}.Valid())
}
