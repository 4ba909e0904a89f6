package raytrace

import (
	"math"

	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Procedural shape names accepted by MeshPreset.Shape.
const (
	ShapeQuad   = "quad"
	ShapeBox    = "box"
	ShapeSphere = "sphere"
)

const sphereSegments = 24

// QuadMesh is a unit square in the XZ plane facing +Y, centred on the origin.
func QuadMesh(material uint32) *core.Mesh {
	m := &core.Mesh{Name: ShapeQuad}
	addQuad(m, material,
		mgl32.Vec3{-0.5, 0, 0.5}, mgl32.Vec3{0.5, 0, 0.5},
		mgl32.Vec3{0.5, 0, -0.5}, mgl32.Vec3{-0.5, 0, -0.5})
	return m
}

// BoxMesh is a unit cube centred on the origin with outward faces.
func BoxMesh(material uint32) *core.Mesh {
	m := &core.Mesh{Name: ShapeBox}
	p := func(x, y, z float32) mgl32.Vec3 { return mgl32.Vec3{x * 0.5, y * 0.5, z * 0.5} }
	addQuad(m, material, p(-1, -1, 1), p(1, -1, 1), p(1, 1, 1), p(-1, 1, 1))     // +Z
	addQuad(m, material, p(1, -1, -1), p(-1, -1, -1), p(-1, 1, -1), p(1, 1, -1)) // -Z
	addQuad(m, material, p(1, -1, 1), p(1, -1, -1), p(1, 1, -1), p(1, 1, 1))     // +X
	addQuad(m, material, p(-1, -1, -1), p(-1, -1, 1), p(-1, 1, 1), p(-1, 1, -1)) // -X
	addQuad(m, material, p(-1, 1, 1), p(1, 1, 1), p(1, 1, -1), p(-1, 1, -1))     // +Y
	addQuad(m, material, p(-1, -1, -1), p(1, -1, -1), p(1, -1, 1), p(-1, -1, 1)) // -Y
	return m
}

// SphereMesh is a UV sphere of radius 0.5 with smooth normals.
func SphereMesh(material uint32) *core.Mesh {
	m := &core.Mesh{Name: ShapeSphere}
	rings, segs := sphereSegments/2, sphereSegments
	point := func(ring, seg int) mgl32.Vec3 {
		theta := math.Pi * float64(ring) / float64(rings)
		phi := 2 * math.Pi * float64(seg) / float64(segs)
		st, ct := math.Sincos(theta)
		sp, cp := math.Sincos(phi)
		return mgl32.Vec3{float32(st * cp), float32(ct), float32(-st * sp)}
	}
	for r := 0; r < rings; r++ {
		for s := 0; s < segs; s++ {
			a, b := point(r, s), point(r+1, s)
			c, d := point(r+1, s+1), point(r, s+1)
			if r > 0 {
				addTriangle(m, material, a, b, d)
			}
			if r < rings-1 {
				addTriangle(m, material, b, c, d)
			}
		}
	}
	return m
}

// ShapeMesh returns the named procedural mesh, or nil for an unknown name.
func ShapeMesh(shape string, material uint32) *core.Mesh {
	switch shape {
	case ShapeQuad:
		return QuadMesh(material)
	case ShapeBox:
		return BoxMesh(material)
	case ShapeSphere:
		return SphereMesh(material)
	}
	return nil
}

// addQuad appends a counter-clockwise quad as two triangles with a flat normal.
func addQuad(m *core.Mesh, material uint32, a, b, c, d mgl32.Vec3) {
	n := core.FaceNormal(a, b, c)
	for _, p := range [6]mgl32.Vec3{a, b, c, a, c, d} {
		m.Indices = append(m.Indices, uint32(len(m.Vertices)))
		m.Vertices = append(m.Vertices, core.Vertex{Position: p, Normal: n, Material: material})
	}
}

// addTriangle appends a triangle on the unit sphere, using positions as normals.
func addTriangle(m *core.Mesh, material uint32, a, b, c mgl32.Vec3) {
	for _, p := range [3]mgl32.Vec3{a, b, c} {
		m.Indices = append(m.Indices, uint32(len(m.Vertices)))
		m.Vertices = append(m.Vertices, core.Vertex{Position: p.Mul(0.5), Normal: p.Normalize(), Material: material})
	}
}
