package core

type MaterialKind uint32

const (
	MaterialDiffuse MaterialKind = iota
	MaterialMirror
	MaterialEmissive
)

// Material is one row of the scene material table. Mesh vertices refer to
// rows by index.
type Material struct {
	Name      string
	Kind      MaterialKind
	BaseColor [3]float32
	Emission  [3]float32
	Roughness float32
}

func DefaultMaterial() Material {
	return Material{
		Name:      "default",
		Kind:      MaterialDiffuse,
		BaseColor: [3]float32{0.8, 0.8, 0.8},
		Roughness: 1.0,
	}
}

// MaterialStride is the GPU size of one material row.
const MaterialStride = 48

// PackMaterials lays out materials as
// { base_color: vec3<f32>, kind: u32, emission: vec3<f32>, roughness: f32, _pad: vec4<u32> }.
// An empty table packs the default material so the buffer is never empty.
func PackMaterials(mats []Material) []byte {
	if len(mats) == 0 {
		mats = []Material{DefaultMaterial()}
	}
	buf := make([]byte, len(mats)*MaterialStride)
	for i, m := range mats {
		o := i * MaterialStride
		putF32(buf[o:], m.BaseColor[0])
		putF32(buf[o+4:], m.BaseColor[1])
		putF32(buf[o+8:], m.BaseColor[2])
		putU32(buf[o+12:], uint32(m.Kind))
		putF32(buf[o+16:], m.Emission[0])
		putF32(buf[o+20:], m.Emission[1])
		putF32(buf[o+24:], m.Emission[2])
		putF32(buf[o+28:], m.Roughness)
	}
	return buf
}
