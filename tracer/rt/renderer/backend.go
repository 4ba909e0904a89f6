package renderer

import (
	"fmt"

	"github.com/gekko3d/raytrace/tracer/rt/accel"
	"github.com/gekko3d/raytrace/tracer/rt/loader"
)

type Size struct {
	Width  uint32
	Height uint32
}

func (s Size) Aspect() float32 {
	if s.Height == 0 {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// PresentPath is how the compute output reaches the surface.
type PresentPath int

const (
	// PresentCopy copies the output texture straight into the surface image.
	PresentCopy PresentPath = iota
	// PresentBlit draws the output texture with a fullscreen triangle,
	// converting to the surface format.
	PresentBlit
)

func (p PresentPath) String() string {
	if p == PresentCopy {
		return "copy"
	}
	return "blit"
}

// Capabilities is what the backend negotiated at initialization.
type Capabilities struct {
	SurfaceFormat string
	Present       PresentPath
	// Workgroup is the compute tile reported by the shader. Zero means unknown.
	Workgroup [2]uint32
}

// Environment is the read-only lighting input of the trace.
type Environment struct {
	Skybox loader.Image
	Noise  []loader.Image
}

// Backend owns the device-side resources. Calls arrive from one goroutine.
type Backend interface {
	Initialize(target any, size Size) (Capabilities, error)
	Resize(size Size) error
	WriteCamera(data []byte) error
	UploadScene(buf accel.Buffers) error
	UploadEnvironment(env Environment) error

	// BeginFrame acquires the next surface image.
	BeginFrame() error
	// Dispatch records the trace pass with the per-frame parameter block.
	Dispatch(params []byte, groupsX, groupsY uint32) error
	// EndFrame records the present path, submits and presents.
	EndFrame() error
	// AbortFrame drops any frame-scoped objects without presenting.
	AbortFrame()
	Release()
}
