package core

import "slices"

// Instance places a mesh in the world.
type Instance struct {
	Mesh      int
	Transform Transform
	CustomID  uint32
	Mask      uint8
}

// Scene is the CPU-side description the renderer traces: meshes, a material
// table and instances. It records whether membership or only transforms
// changed since the last Commit.
type Scene struct {
	Meshes    []*Mesh
	Materials []Material
	Instances []*Instance

	membershipDirty bool
	transformsDirty bool
}

func NewScene() *Scene {
	return &Scene{membershipDirty: true}
}

// AddMesh appends a mesh and returns its index.
func (s *Scene) AddMesh(m *Mesh) int {
	s.Meshes = append(s.Meshes, m)
	return len(s.Meshes) - 1
}

func (s *Scene) AddInstance(inst *Instance) {
	if inst.Mask == 0 {
		inst.Mask = 0xFF
	}
	s.Instances = append(s.Instances, inst)
	s.membershipDirty = true
}

func (s *Scene) RemoveInstance(inst *Instance) {
	for i, o := range s.Instances {
		if o == inst {
			s.Instances = slices.Delete(s.Instances, i, i+1)
			s.membershipDirty = true
			return
		}
	}
}

// SetTransform moves an instance without changing membership.
func (s *Scene) SetTransform(inst *Instance, t Transform) {
	inst.Transform = t
	s.transformsDirty = true
}

// Dirty reports pending membership and transform changes.
func (s *Scene) Dirty() (membership, transforms bool) {
	return s.membershipDirty, s.transformsDirty
}

// Commit clears the dirty flags and reports whether anything changed.
func (s *Scene) Commit() bool {
	changed := s.membershipDirty || s.transformsDirty
	s.membershipDirty = false
	s.transformsDirty = false
	return changed
}
