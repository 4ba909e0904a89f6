package loader

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
)

// NoiseSize is the side of every blue-noise layer.
const NoiseSize = 256

// LoadNoise decodes one image per reader into a NoiseSize square float RGBA
// layer. Layers of another size are resampled with nearest neighbour so the
// noise spectrum is not smoothed.
func LoadNoise(readers []io.Reader) ([]Image, error) {
	layers := make([]Image, 0, len(readers))
	for i, r := range readers {
		src, _, err := image.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("noise layer %d: %w", i, err)
		}
		layers = append(layers, imageToFloat(fitNoise(src)))
	}
	return layers, nil
}

func fitNoise(src image.Image) *image.RGBA64 {
	b := src.Bounds()
	dst := image.NewRGBA64(image.Rect(0, 0, NoiseSize, NoiseSize))
	if b.Dx() == NoiseSize && b.Dy() == NoiseSize {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func imageToFloat(src *image.RGBA64) Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := src.RGBA64At(b.Min.X+x, b.Min.Y+y)
			out.Set(x, y, [4]float32{
				float32(c.R) / 0xffff,
				float32(c.G) / 0xffff,
				float32(c.B) / 0xffff,
				float32(c.A) / 0xffff,
			})
		}
	}
	return out
}
