package loader

// Image is a linear float RGBA raster, row-major from the top-left.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

func NewImage(w, h int) Image {
	return Image{Width: w, Height: h, Pix: make([]float32, w*h*4)}
}

// At returns the RGBA texel at (x, y).
func (img Image) At(x, y int) [4]float32 {
	o := (y*img.Width + x) * 4
	return [4]float32{img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]}
}

func (img Image) Set(x, y int, c [4]float32) {
	o := (y*img.Width + x) * 4
	copy(img.Pix[o:o+4], c[:])
}

// Valid reports whether the raster holds exactly Width*Height texels.
func (img Image) Valid() bool {
	return img.Width > 0 && img.Height > 0 && len(img.Pix) == img.Width*img.Height*4
}

// Solid returns a 1x1 image of the given color.
func Solid(c [4]float32) Image {
	img := NewImage(1, 1)
	img.Set(0, 0, c)
	return img
}
