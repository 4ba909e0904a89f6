package accel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"

	"github.com/gekko3d/raytrace/tracer/rt/bvh"
	"github.com/gekko3d/raytrace/tracer/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyGeometry     = errors.New("accel: empty geometry")
	ErrMalformedGeometry = errors.New("accel: malformed geometry")
	ErrUnknownBLAS       = errors.New("accel: unknown bottom-level structure")
	ErrNoInstances       = errors.New("accel: top-level structure needs at least one instance")
	ErrSingularTransform = errors.New("accel: instance transform is not invertible")
	ErrBLASInUse         = errors.New("accel: bottom-level structure referenced by the top level")
)

// MaxTrianglesPerLeaf bounds the triangle count of a bottom-level leaf.
const MaxTrianglesPerLeaf = 4

// BLASHandle names a built bottom-level structure. The zero value is invalid.
type BLASHandle struct {
	id uuid.UUID
}

func (h BLASHandle) ID() uuid.UUID  { return h.id }
func (h BLASHandle) IsZero() bool   { return h.id == uuid.Nil }
func (h BLASHandle) String() string { return h.id.String() }

// TLASHandle identifies one successful top-level build or refit.
type TLASHandle struct {
	Generation uint64
	Instances  int
	Refit      bool
}

// Geometry is the input of a bottom-level build. With nil Indices every three
// consecutive vertices form a triangle.
type Geometry struct {
	Name     string
	Vertices []core.Vertex
	Indices  []uint32
	Opaque   bool
}

func GeometryFromMesh(m *core.Mesh) Geometry {
	return Geometry{Name: m.Name, Vertices: m.Vertices, Indices: m.Indices, Opaque: true}
}

// Instance places a bottom-level structure in the top level.
type Instance struct {
	BLAS      BLASHandle
	Transform core.Affine3x4
	CustomID  uint32
	Mask      uint8
}

type Stats struct {
	BLASBuilds int
	TLASBuilds int
	TLASRefits int
}

type blas struct {
	id        uuid.UUID
	name      string
	vertices  []core.Vertex
	triangles [][3]uint32 // in leaf order
	tree      *bvh.Tree
	min, max  mgl32.Vec3
	opaque    bool
}

type tlas struct {
	members   []uuid.UUID
	instances []Instance
	inverses  []core.Affine3x4
	bounds    [][2]mgl32.Vec3
	tree      *bvh.Tree
}

// Manager owns every bottom-level structure and the single top-level one.
// It is not safe for concurrent use.
type Manager struct {
	logger    core.Logger
	blases    map[uuid.UUID]*blas
	order     []uuid.UUID
	tlas      *tlas
	materials []core.Material

	generation uint64
	stats      Stats
}

func NewManager(logger core.Logger) *Manager {
	return &Manager{
		logger: core.OrNop(logger),
		blases: make(map[uuid.UUID]*blas),
	}
}

// BuildBottomLevel validates and builds one structure. Built structures are
// immutable.
func (m *Manager) BuildBottomLevel(g Geometry) (BLASHandle, error) {
	b, err := buildBLAS(g)
	if err != nil {
		return BLASHandle{}, err
	}
	m.commitBLAS(b)
	return BLASHandle{id: b.id}, nil
}

// BuildBottomLevels builds several structures in parallel. Either every
// geometry is committed or none is.
func (m *Manager) BuildBottomLevels(ctx context.Context, geoms []Geometry) ([]BLASHandle, error) {
	built := make([]*blas, len(geoms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range geoms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := buildBLAS(geoms[i])
			if err != nil {
				return fmt.Errorf("geometry %d (%s): %w", i, geoms[i].Name, err)
			}
			built[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	handles := make([]BLASHandle, len(built))
	for i, b := range built {
		m.commitBLAS(b)
		handles[i] = BLASHandle{id: b.id}
	}
	return handles, nil
}

func (m *Manager) commitBLAS(b *blas) {
	m.blases[b.id] = b
	m.order = append(m.order, b.id)
	m.stats.BLASBuilds++
	m.logger.Debugf("built BLAS %s (%q): %d triangles, %d nodes", b.id, b.name, len(b.triangles), len(b.tree.Nodes))
}

// DestroyBottomLevel releases a structure that no instance references.
func (m *Manager) DestroyBottomLevel(h BLASHandle) error {
	if _, ok := m.blases[h.id]; !ok {
		return ErrUnknownBLAS
	}
	if m.tlas != nil && slices.Contains(m.tlas.members, h.id) {
		return ErrBLASInUse
	}
	delete(m.blases, h.id)
	m.order = slices.DeleteFunc(m.order, func(id uuid.UUID) bool { return id == h.id })
	return nil
}

// BuildTopLevel builds the top-level structure over instances. When the
// ordered list of referenced bottom-level structures matches the current top
// level only bounds are refit. On error the current top level is kept.
func (m *Manager) BuildTopLevel(instances []Instance) (TLASHandle, error) {
	if len(instances) == 0 {
		return TLASHandle{}, ErrNoInstances
	}

	next := &tlas{
		members:   make([]uuid.UUID, len(instances)),
		instances: slices.Clone(instances),
		inverses:  make([]core.Affine3x4, len(instances)),
		bounds:    make([][2]mgl32.Vec3, len(instances)),
	}
	for i, inst := range instances {
		b, ok := m.blases[inst.BLAS.id]
		if !ok {
			return TLASHandle{}, fmt.Errorf("instance %d: %w", i, ErrUnknownBLAS)
		}
		inv, ok := inst.Transform.Inverse()
		if !ok {
			return TLASHandle{}, fmt.Errorf("instance %d: %w", i, ErrSingularTransform)
		}
		if next.instances[i].Mask == 0 {
			next.instances[i].Mask = 0xFF
		}
		next.members[i] = b.id
		next.inverses[i] = inv
		wMin, wMax := inst.Transform.TransformAABB(b.min, b.max)
		next.bounds[i] = [2]mgl32.Vec3{wMin, wMax}
	}

	refit := m.tlas != nil && slices.Equal(m.tlas.members, next.members)
	if refit {
		next.tree = m.tlas.tree
		next.tree.Refit(func(item int) (mgl32.Vec3, mgl32.Vec3) {
			return next.bounds[item][0], next.bounds[item][1]
		})
		m.stats.TLASRefits++
	} else {
		items := make([]bvh.AABBItem, len(instances))
		for i, b := range next.bounds {
			items[i] = bvh.NewItem(i, b[0], b[1])
		}
		next.tree = bvh.Build(items, 1)
		m.stats.TLASBuilds++
	}

	m.tlas = next
	m.generation++
	m.logger.Debugf("TLAS generation %d: %d instances (refit=%v)", m.generation, len(instances), refit)
	return TLASHandle{Generation: m.generation, Instances: len(instances), Refit: refit}, nil
}

// ClearTopLevel drops the top-level structure so the packed buffers trace
// nothing. The generation advances when a structure was present.
func (m *Manager) ClearTopLevel() TLASHandle {
	if m.tlas != nil {
		m.tlas = nil
		m.generation++
		m.logger.Debugf("TLAS generation %d: cleared", m.generation)
	}
	return TLASHandle{Generation: m.generation}
}

// TopLevel returns the current top-level handle and whether one exists.
func (m *Manager) TopLevel() (TLASHandle, bool) {
	if m.tlas == nil {
		return TLASHandle{}, false
	}
	return TLASHandle{Generation: m.generation, Instances: len(m.tlas.instances)}, true
}

// SetMaterials replaces the material table packed alongside the geometry.
func (m *Manager) SetMaterials(mats []core.Material) {
	m.materials = slices.Clone(mats)
}

func (m *Manager) Stats() Stats { return m.stats }

func buildBLAS(g Geometry) (*blas, error) {
	if len(g.Vertices) == 0 {
		return nil, ErrEmptyGeometry
	}
	for i, v := range g.Vertices {
		if !finite(v.Position) {
			return nil, fmt.Errorf("%w: vertex %d has a non-finite position", ErrMalformedGeometry, i)
		}
	}

	var tris [][3]uint32
	if g.Indices == nil {
		if len(g.Vertices)%3 != 0 {
			return nil, fmt.Errorf("%w: %d vertices is not a whole number of triangles", ErrMalformedGeometry, len(g.Vertices))
		}
		tris = make([][3]uint32, len(g.Vertices)/3)
		for i := range tris {
			b := uint32(3 * i)
			tris[i] = [3]uint32{b, b + 1, b + 2}
		}
	} else {
		if len(g.Indices) == 0 {
			return nil, ErrEmptyGeometry
		}
		if len(g.Indices)%3 != 0 {
			return nil, fmt.Errorf("%w: %d indices is not a whole number of triangles", ErrMalformedGeometry, len(g.Indices))
		}
		tris = make([][3]uint32, len(g.Indices)/3)
		for i := range tris {
			for k := 0; k < 3; k++ {
				idx := g.Indices[3*i+k]
				if int(idx) >= len(g.Vertices) {
					return nil, fmt.Errorf("%w: index %d references vertex %d of %d", ErrMalformedGeometry, 3*i+k, idx, len(g.Vertices))
				}
				tris[i][k] = idx
			}
		}
	}

	sizes := bvh.BuildSizes(len(tris))
	items := make([]bvh.AABBItem, 0, sizes.Items)
	for i, t := range tris {
		a, b, c := g.Vertices[t[0]].Position, g.Vertices[t[1]].Position, g.Vertices[t[2]].Position
		lo := mgl32.Vec3{min(a[0], b[0], c[0]), min(a[1], b[1], c[1]), min(a[2], b[2], c[2])}
		hi := mgl32.Vec3{max(a[0], b[0], c[0]), max(a[1], b[1], c[1]), max(a[2], b[2], c[2])}
		items = append(items, bvh.NewItem(i, lo, hi))
	}
	tree := bvh.Build(items, MaxTrianglesPerLeaf)

	ordered := make([][3]uint32, len(tris))
	for i, src := range tree.Order {
		ordered[i] = tris[src]
	}

	return &blas{
		id:        uuid.New(),
		name:      g.Name,
		vertices:  g.Vertices,
		triangles: ordered,
		tree:      tree,
		min:       tree.Nodes[0].Min,
		max:       tree.Nodes[0].Max,
		opaque:    g.Opaque,
	}, nil
}

func finite(v mgl32.Vec3) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
