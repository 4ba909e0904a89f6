package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
)

var ErrMalformedHDR = errors.New("malformed HDR")

const hdrMaxSide = 1 << 15

// LoadHDR decodes a Radiance RGBE image into linear float RGBA with alpha 1.
// Flat and adaptive run-length scanlines are accepted in -Y or +Y order.
func LoadHDR(r io.Reader) (Image, error) {
	br := bufio.NewReader(r)
	w, h, flipY, err := readHDRHeader(br)
	if err != nil {
		return Image{}, err
	}

	// The codec reads scanlines top down, so it gets a -Y header.
	header := fmt.Sprintf("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y %d +X %d\n", h, w)
	src, err := rgbe.Decode(io.MultiReader(strings.NewReader(header), br))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformedHDR, err)
	}
	m, ok := src.(hdr.Image)
	if !ok {
		return Image{}, fmt.Errorf("%w: decoded %T is not an HDR image", ErrMalformedHDR, src)
	}
	bounds := m.Bounds()
	if bounds.Dx() != w || bounds.Dy() != h {
		return Image{}, fmt.Errorf("%w: decoded %dx%d, want %dx%d", ErrMalformedHDR, bounds.Dx(), bounds.Dy(), w, h)
	}

	img := NewImage(w, h)
	for y := 0; y < h; y++ {
		row := y
		if flipY {
			row = h - 1 - y
		}
		for x := 0; x < w; x++ {
			r, g, b, _ := m.HDRAt(bounds.Min.X+x, bounds.Min.Y+y).HDRRGBA()
			img.Set(x, row, [4]float32{float32(r), float32(g), float32(b), 1})
		}
	}
	return img, nil
}

func readHDRHeader(br *bufio.Reader) (w, h int, flipY bool, err error) {
	magic, err := readLine(br)
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: %v", ErrMalformedHDR, err)
	}
	if !strings.HasPrefix(magic, "#?") {
		return 0, 0, false, fmt.Errorf("%w: missing #? signature", ErrMalformedHDR)
	}
	for {
		line, err := readLine(br)
		if err != nil {
			return 0, 0, false, fmt.Errorf("%w: header: %v", ErrMalformedHDR, err)
		}
		if line == "" {
			break
		}
		if f, ok := strings.CutPrefix(line, "FORMAT="); ok && f != "32-bit_rle_rgbe" {
			return 0, 0, false, fmt.Errorf("%w: unsupported format %q", ErrMalformedHDR, f)
		}
	}

	res, err := readLine(br)
	if err != nil {
		return 0, 0, false, fmt.Errorf("%w: resolution: %v", ErrMalformedHDR, err)
	}
	var ySign, xSign string
	if _, err := fmt.Sscanf(res, "%s %d %s %d", &ySign, &h, &xSign, &w); err != nil {
		return 0, 0, false, fmt.Errorf("%w: resolution %q", ErrMalformedHDR, res)
	}
	if (ySign != "-Y" && ySign != "+Y") || xSign != "+X" {
		return 0, 0, false, fmt.Errorf("%w: unsupported orientation %q", ErrMalformedHDR, res)
	}
	if w <= 0 || h <= 0 || w > hdrMaxSide || h > hdrMaxSide {
		return 0, 0, false, fmt.Errorf("%w: size %dx%d", ErrMalformedHDR, w, h)
	}
	return w, h, ySign == "+Y", nil
}

func readLine(br *bufio.Reader) (string, error) {
	s, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}
