package raytrace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidPreset     = errors.New("invalid preset")
	ErrUnsupportedFormat = errors.New("unsupported preset format")
)

// Preset formats, chosen by file extension.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

type MaterialPreset struct {
	Name      string     `json:"name" yaml:"name" toml:"name"`
	Kind      string     `json:"kind" yaml:"kind" toml:"kind"`
	BaseColor [3]float32 `json:"base_color" yaml:"base_color" toml:"base_color"`
	Emission  [3]float32 `json:"emission,omitempty" yaml:"emission,omitempty" toml:"emission,omitempty"`
	Roughness float32    `json:"roughness,omitempty" yaml:"roughness,omitempty" toml:"roughness,omitempty"`
}

// MeshPreset names either an OBJ file or a procedural shape. Material is the
// default material; Materials maps OBJ usemtl names to preset material names.
type MeshPreset struct {
	Name      string            `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Path      string            `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Shape     string            `json:"shape,omitempty" yaml:"shape,omitempty" toml:"shape,omitempty"`
	Material  string            `json:"material,omitempty" yaml:"material,omitempty" toml:"material,omitempty"`
	Materials map[string]string `json:"materials,omitempty" yaml:"materials,omitempty" toml:"materials,omitempty"`
}

type InstancePreset struct {
	Mesh int `json:"mesh" yaml:"mesh" toml:"mesh"`
	// Rotation is XYZ Euler angles in degrees.
	Position [3]float32 `json:"position" yaml:"position" toml:"position"`
	Rotation [3]float32 `json:"rotation,omitempty" yaml:"rotation,omitempty" toml:"rotation,omitempty"`
	Scale    [3]float32 `json:"scale,omitempty" yaml:"scale,omitempty" toml:"scale,omitempty"`
	CustomID uint32     `json:"custom_id,omitempty" yaml:"custom_id,omitempty" toml:"custom_id,omitempty"`
	Mask     uint8      `json:"mask,omitempty" yaml:"mask,omitempty" toml:"mask,omitempty"`
}

type CameraPreset struct {
	Target [3]float32 `json:"target" yaml:"target" toml:"target"`
	Radius float32    `json:"radius" yaml:"radius" toml:"radius"`
	Yaw    float32    `json:"yaw,omitempty" yaml:"yaw,omitempty" toml:"yaw,omitempty"`
	Pitch  float32    `json:"pitch,omitempty" yaml:"pitch,omitempty" toml:"pitch,omitempty"`
}

// Preset is a complete scene description: materials, meshes, instances,
// camera and environment.
type Preset struct {
	Name      string           `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Materials []MaterialPreset `json:"materials" yaml:"materials" toml:"materials"`
	Meshes    []MeshPreset     `json:"meshes" yaml:"meshes" toml:"meshes"`
	Instances []InstancePreset `json:"instances" yaml:"instances" toml:"instances"`
	Camera    CameraPreset     `json:"camera" yaml:"camera" toml:"camera"`
	Skybox    string           `json:"skybox,omitempty" yaml:"skybox,omitempty" toml:"skybox,omitempty"`
	Noise     []string         `json:"noise,omitempty" yaml:"noise,omitempty" toml:"noise,omitempty"`
	Tile      [2]uint32        `json:"tile,omitempty" yaml:"tile,omitempty" toml:"tile,omitempty"`

	// Dir resolves relative asset paths. Set by LoadPreset.
	Dir string `json:"-" yaml:"-" toml:"-"`
}

// Normalize fills defaults: unit scale, full mask, a default material and the
// default tile and camera radius.
func (p *Preset) Normalize() {
	if len(p.Materials) == 0 {
		p.Materials = []MaterialPreset{{Name: "default", Kind: "diffuse", BaseColor: [3]float32{0.8, 0.8, 0.8}}}
	}
	for i := range p.Materials {
		if p.Materials[i].Kind == "" {
			p.Materials[i].Kind = "diffuse"
		}
	}
	for i := range p.Instances {
		inst := &p.Instances[i]
		if inst.Scale == ([3]float32{}) {
			inst.Scale = [3]float32{1, 1, 1}
		}
		if inst.Mask == 0 {
			inst.Mask = 0xFF
		}
	}
	if p.Camera.Radius <= 0 {
		p.Camera.Radius = 5
	}
	if p.Tile[0] == 0 || p.Tile[1] == 0 {
		p.Tile = renderer.DefaultTile
	}
}

// Validate checks cross references. Call after Normalize.
func (p *Preset) Validate() error {
	names := make(map[string]bool, len(p.Materials))
	for i, m := range p.Materials {
		if _, err := materialKind(m.Kind); err != nil {
			return fmt.Errorf("%w: material %d: %v", ErrInvalidPreset, i, err)
		}
		names[m.Name] = true
	}
	for i, m := range p.Meshes {
		if (m.Path == "") == (m.Shape == "") {
			return fmt.Errorf("%w: mesh %d needs exactly one of path or shape", ErrInvalidPreset, i)
		}
		if m.Shape != "" && ShapeMesh(m.Shape, 0) == nil {
			return fmt.Errorf("%w: mesh %d: unknown shape %q", ErrInvalidPreset, i, m.Shape)
		}
		if m.Material != "" && !names[m.Material] {
			return fmt.Errorf("%w: mesh %d: unknown material %q", ErrInvalidPreset, i, m.Material)
		}
		for obj, name := range m.Materials {
			if !names[name] {
				return fmt.Errorf("%w: mesh %d: %q maps to unknown material %q", ErrInvalidPreset, i, obj, name)
			}
		}
	}
	for i, inst := range p.Instances {
		if inst.Mesh < 0 || inst.Mesh >= len(p.Meshes) {
			return fmt.Errorf("%w: instance %d: mesh %d of %d", ErrInvalidPreset, i, inst.Mesh, len(p.Meshes))
		}
	}
	return nil
}

// CoreMaterials converts the material list in order, so a material's index
// is its shader material id.
func (p *Preset) CoreMaterials() ([]core.Material, error) {
	out := make([]core.Material, 0, len(p.Materials))
	for i, m := range p.Materials {
		kind, err := materialKind(m.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: material %d: %v", ErrInvalidPreset, i, err)
		}
		out = append(out, core.Material{
			Name:      m.Name,
			Kind:      kind,
			BaseColor: m.BaseColor,
			Emission:  m.Emission,
			Roughness: m.Roughness,
		})
	}
	return out, nil
}

// MaterialIndex returns the index of the named material, or 0.
func (p *Preset) MaterialIndex(name string) uint32 {
	for i, m := range p.Materials {
		if m.Name == name {
			return uint32(i)
		}
	}
	return 0
}

// MaterialTable builds the usemtl lookup for an OBJ mesh. Every preset
// material is reachable by its own name; the mesh's explicit mapping wins.
func (p *Preset) MaterialTable(m MeshPreset) map[string]uint32 {
	table := make(map[string]uint32, len(p.Materials)+len(m.Materials))
	for i, mat := range p.Materials {
		table[mat.Name] = uint32(i)
	}
	for obj, name := range m.Materials {
		table[obj] = p.MaterialIndex(name)
	}
	return table
}

// ResolvePath makes a relative asset path relative to the preset file.
func (p *Preset) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || p.Dir == "" {
		return path
	}
	return filepath.Join(p.Dir, path)
}

// InstanceTransform converts an instance preset into a transform.
func (ip InstancePreset) InstanceTransform() core.Transform {
	return core.TransformFromEuler(ip.Position, ip.Rotation, ip.Scale)
}

func materialKind(s string) (core.MaterialKind, error) {
	switch strings.ToLower(s) {
	case "", "diffuse":
		return core.MaterialDiffuse, nil
	case "mirror", "metal":
		return core.MaterialMirror, nil
	case "emissive", "light":
		return core.MaterialEmissive, nil
	}
	return 0, fmt.Errorf("unknown material kind %q", s)
}

// FormatFromPath maps a file extension to a preset format.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// DecodePreset reads, normalizes and validates a preset.
func DecodePreset(r io.Reader, format string) (*Preset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var p Preset
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&p)
	case FormatYAML:
		err = yaml.Unmarshal(data, &p)
	case FormatTOML:
		err = toml.Unmarshal(data, &p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidPreset, format, err)
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func LoadPreset(path string) (*Preset, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := DecodePreset(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.Dir = filepath.Dir(path)
	return p, nil
}

// EncodePreset writes p in the given format.
func EncodePreset(w io.Writer, p *Preset, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(p)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func SavePreset(path string, p *Preset) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := EncodePreset(&buf, p, format); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// DefaultPreset is a Cornell-like box: white floor, ceiling and back wall,
// red and green sides, an area light, a mirror sphere and a diffuse block.
func DefaultPreset() *Preset {
	p := &Preset{
		Name: "cornell",
		Materials: []MaterialPreset{
			{Name: "white", Kind: "diffuse", BaseColor: [3]float32{0.73, 0.73, 0.73}},
			{Name: "red", Kind: "diffuse", BaseColor: [3]float32{0.65, 0.05, 0.05}},
			{Name: "green", Kind: "diffuse", BaseColor: [3]float32{0.12, 0.45, 0.15}},
			{Name: "light", Kind: "emissive", BaseColor: [3]float32{1, 1, 1}, Emission: [3]float32{15, 15, 15}},
			{Name: "mirror", Kind: "mirror", BaseColor: [3]float32{0.95, 0.95, 0.95}, Roughness: 0.02},
		},
		Meshes: []MeshPreset{
			{Name: "wall", Shape: ShapeQuad, Material: "white"},
			{Name: "red wall", Shape: ShapeQuad, Material: "red"},
			{Name: "green wall", Shape: ShapeQuad, Material: "green"},
			{Name: "lamp", Shape: ShapeQuad, Material: "light"},
			{Name: "ball", Shape: ShapeSphere, Material: "mirror"},
			{Name: "block", Shape: ShapeBox, Material: "white"},
		},
		Instances: []InstancePreset{
			{Mesh: 0, Position: [3]float32{0, 0, 0}, Scale: [3]float32{2, 1, 2}},
			{Mesh: 0, Position: [3]float32{0, 2, 0}, Rotation: [3]float32{180, 0, 0}, Scale: [3]float32{2, 1, 2}},
			{Mesh: 0, Position: [3]float32{0, 1, -1}, Rotation: [3]float32{90, 0, 0}, Scale: [3]float32{2, 1, 2}},
			{Mesh: 1, Position: [3]float32{-1, 1, 0}, Rotation: [3]float32{0, 0, -90}, Scale: [3]float32{2, 1, 2}},
			{Mesh: 2, Position: [3]float32{1, 1, 0}, Rotation: [3]float32{0, 0, 90}, Scale: [3]float32{2, 1, 2}},
			{Mesh: 3, Position: [3]float32{0, 1.99, 0}, Rotation: [3]float32{180, 0, 0}, Scale: [3]float32{0.5, 1, 0.5}, CustomID: 1},
			{Mesh: 4, Position: [3]float32{0.4, 0.35, 0.3}, Scale: [3]float32{0.7, 0.7, 0.7}, CustomID: 2},
			{Mesh: 5, Position: [3]float32{-0.4, 0.6, -0.3}, Rotation: [3]float32{0, 20, 0}, Scale: [3]float32{0.5, 1.2, 0.5}, CustomID: 3},
		},
		Camera: CameraPreset{Target: [3]float32{0, 1, 0}, Radius: 3.5},
	}
	p.Normalize()
	return p
}
