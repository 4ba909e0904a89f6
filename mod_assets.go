package raytrace

import (
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/gekko3d/raytrace/tracer/rt/loader"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
)

type AssetId string

// AssetServer loads and caches meshes and images by path.
type AssetServer struct {
	logger core.Logger
	open   func(path string) (io.ReadCloser, error)

	meshes map[AssetId]*core.Mesh
	images map[AssetId]loader.Image
	byPath map[string]AssetId
}

func NewAssetServer(logger core.Logger) *AssetServer {
	return &AssetServer{
		logger: core.OrNop(logger),
		open:   func(path string) (io.ReadCloser, error) { return os.Open(path) },
		meshes: make(map[AssetId]*core.Mesh),
		images: make(map[AssetId]loader.Image),
		byPath: make(map[string]AssetId),
	}
}

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// AddMesh registers an in-memory mesh.
func (s *AssetServer) AddMesh(m *core.Mesh) AssetId {
	id := makeAssetId()
	s.meshes[id] = m
	return id
}

func (s *AssetServer) Mesh(id AssetId) (*core.Mesh, bool) {
	m, ok := s.meshes[id]
	return m, ok
}

func (s *AssetServer) Image(id AssetId) (loader.Image, bool) {
	img, ok := s.images[id]
	return img, ok
}

// LoadMesh reads an OBJ file once per path and material table.
func (s *AssetServer) LoadMesh(path string, materials map[string]uint32) (AssetId, error) {
	key := "mesh:" + path + fmt.Sprint(materials)
	if id, ok := s.byPath[key]; ok {
		return id, nil
	}
	f, err := s.open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	mesh, err := loader.LoadOBJ(f, materials)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if mesh.Name == "" {
		mesh.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	id := s.AddMesh(mesh)
	s.byPath[key] = id
	s.logger.Debugf("loaded mesh %s: %d triangles", path, mesh.TriangleCount())
	return id, nil
}

// LoadSkybox reads a Radiance .hdr file, or any registered image format for
// low dynamic range skies.
func (s *AssetServer) LoadSkybox(path string) (AssetId, error) {
	key := "sky:" + path
	if id, ok := s.byPath[key]; ok {
		return id, nil
	}
	f, err := s.open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var img loader.Image
	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		img, err = loader.LoadHDR(f)
	} else {
		img, err = decodeLDR(f)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	id := makeAssetId()
	s.images[id] = img
	s.byPath[key] = id
	s.logger.Debugf("loaded skybox %s: %dx%d", path, img.Width, img.Height)
	return id, nil
}

// LoadNoise reads every path as one blue-noise layer.
func (s *AssetServer) LoadNoise(paths []string) ([]loader.Image, error) {
	readers := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		f, err := s.open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		readers = append(readers, f)
	}
	return loader.LoadNoise(readers)
}

// decodeLDR reads an 8-bit sRGB image into linear RGB with straight alpha.
func decodeLDR(r io.Reader) (loader.Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return loader.Image{}, err
	}
	b := src.Bounds()
	img := loader.NewImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := src.At(b.Min.X+x, b.Min.Y+y)
			_, _, _, a := px.RGBA()
			c, _ := colorful.MakeColor(px)
			lr, lg, lb := c.LinearRgb()
			img.Set(x, y, [4]float32{float32(lr), float32(lg), float32(lb), float32(a) / 0xffff})
		}
	}
	return img, nil
}
