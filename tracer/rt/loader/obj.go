package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrMalformedOBJ    = errors.New("malformed OBJ")
	ErrIndexOutOfRange = errors.New("OBJ index out of range")
)

// corner is one face vertex: position and optional normal, both zero-based.
type corner struct {
	v, n int
}

// LoadOBJ reads positions, normals, usemtl groups and faces. Faces with more
// than three corners are fanned 0-1-2, 0-2-3, and so on. Every corner becomes
// its own vertex, so Indices is 0..n-1. Corners without a normal get the face
// normal. Material names missing from materials map to index 0.
func LoadOBJ(r io.Reader, materials map[string]uint32) (*core.Mesh, error) {
	var (
		positions []mgl32.Vec3
		normals   []mgl32.Vec3
		material  uint32
		mesh      = &core.Mesh{}
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			p, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedOBJ, line, err)
			}
			positions = append(positions, p)
		case "vn":
			n, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedOBJ, line, err)
			}
			normals = append(normals, n)
		case "o", "g":
			if mesh.Name == "" && len(fields) > 1 {
				mesh.Name = fields[1]
			}
		case "usemtl":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: line %d: usemtl without a name", ErrMalformedOBJ, line)
			}
			material = materials[fields[1]]
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs at least 3 corners", ErrMalformedOBJ, line)
			}
			corners := make([]corner, 0, len(fields)-1)
			for _, f := range fields[1:] {
				c, err := parseCorner(f, len(positions), len(normals))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				corners = append(corners, c)
			}
			for i := 1; i+1 < len(corners); i++ {
				emitTriangle(mesh, positions, normals, material, corners[0], corners[i], corners[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read OBJ: %w", err)
	}
	return mesh, nil
}

func emitTriangle(mesh *core.Mesh, positions, normals []mgl32.Vec3, material uint32, a, b, c corner) {
	tri := [3]corner{a, b, c}
	face := core.FaceNormal(positions[a.v], positions[b.v], positions[c.v])
	for _, k := range tri {
		n := face
		if k.n >= 0 {
			n = normals[k.n]
		}
		mesh.Indices = append(mesh.Indices, uint32(len(mesh.Vertices)))
		mesh.Vertices = append(mesh.Vertices, core.Vertex{
			Position: positions[k.v],
			Normal:   n,
			Material: material,
		})
	}
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	var out mgl32.Vec3
	if len(fields) < 3 {
		return out, fmt.Errorf("want 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// parseCorner accepts v, v/vt, v//vn and v/vt/vn with 1-based or negative
// indices.
func parseCorner(s string, nPos, nNorm int) (corner, error) {
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return corner{}, fmt.Errorf("%w: corner %q", ErrMalformedOBJ, s)
	}
	v, err := resolveIndex(parts[0], nPos)
	if err != nil {
		return corner{}, err
	}
	c := corner{v: v, n: -1}
	if len(parts) == 3 && parts[2] != "" {
		if c.n, err = resolveIndex(parts[2], nNorm); err != nil {
			return corner{}, err
		}
	}
	return c, nil
}

func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrMalformedOBJ, s)
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, count)
}
