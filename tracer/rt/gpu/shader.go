package gpu

import (
	"fmt"
	"slices"

	"github.com/gekko3d/raytrace/tracer/rt/renderer"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ShaderBinding is one resource declared by a shader.
type ShaderBinding struct {
	Group   uint32
	Binding uint32
	Name    string
}

// Reflection describes a compute entry point as declared in WGSL.
type Reflection struct {
	EntryPoint string
	Workgroup  [3]uint32
	Bindings   []ShaderBinding
	// Complete is false when the WGSL parsed but could not be lowered. Only
	// syntax has been checked, LowerErr says why, and Workgroup and Bindings
	// are empty. The driver compiler still has the final word.
	Complete bool
	LowerErr error
}

// Tile returns the x/y workgroup footprint, or fallback when unknown.
func (r Reflection) Tile(fallback [2]uint32) [2]uint32 {
	if !r.Complete || r.Workgroup[0] == 0 || r.Workgroup[1] == 0 {
		return fallback
	}
	return [2]uint32{r.Workgroup[0], r.Workgroup[1]}
}

// Declares reports whether the shader binds (group, binding).
func (r Reflection) Declares(group, binding uint32) bool {
	return slices.ContainsFunc(r.Bindings, func(b ShaderBinding) bool {
		return b.Group == group && b.Binding == binding
	})
}

// ReflectCompute parses source and extracts the workgroup size and resource
// bindings of the named compute entry point. Syntax errors and a missing or
// non-compute entry point wrap renderer.ErrShaderCompile.
func ReflectCompute(source, entry string) (Reflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return Reflection{}, fmt.Errorf("%w: parse: %v", renderer.ErrShaderCompile, err)
	}
	mod, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return Reflection{EntryPoint: entry, LowerErr: err}, nil
	}

	idx := slices.IndexFunc(mod.EntryPoints, func(ep ir.EntryPoint) bool { return ep.Name == entry })
	if idx < 0 {
		return Reflection{}, fmt.Errorf("%w: entry point %q not found", renderer.ErrShaderCompile, entry)
	}
	ep := mod.EntryPoints[idx]
	if ep.Stage != ir.StageCompute {
		return Reflection{}, fmt.Errorf("%w: entry point %q is not a compute shader", renderer.ErrShaderCompile, entry)
	}

	refl := Reflection{EntryPoint: entry, Workgroup: ep.Workgroup, Complete: true}
	for _, gv := range mod.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		refl.Bindings = append(refl.Bindings, ShaderBinding{
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Name:    gv.Name,
		})
	}
	return refl, nil
}

// checkLayout fails when the layout binds a slot the shader does not declare.
func checkLayout(refl Reflection, group uint32, bindings []uint32) error {
	if !refl.Complete {
		return nil
	}
	for _, b := range bindings {
		if !refl.Declares(group, b) {
			return fmt.Errorf("%w: shader does not declare @group(%d) @binding(%d)", renderer.ErrShaderCompile, group, b)
		}
	}
	return nil
}
