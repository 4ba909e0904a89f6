package renderer

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/raytrace/tracer/rt/accel"
)

type dispatchCall struct {
	params FrameParams
	gx, gy uint32
}

// fakeBackend records calls and lets tests inject failures.
type fakeBackend struct {
	caps Capabilities
	size Size

	initErr     error
	beginErrs   []error
	dispatchErr error
	endErr      error

	cameraWrites [][]byte
	scenes       []accel.Buffers
	environments []Environment
	dispatches   []dispatchCall
	presented    int
	aborted      int
	released     int
	resizes      []Size
}

func (f *fakeBackend) Initialize(target any, size Size) (Capabilities, error) {
	if f.initErr != nil {
		return Capabilities{}, f.initErr
	}
	f.size = size
	return f.caps, nil
}

func (f *fakeBackend) Resize(size Size) error {
	f.size = size
	f.resizes = append(f.resizes, size)
	return nil
}

func (f *fakeBackend) WriteCamera(data []byte) error {
	f.cameraWrites = append(f.cameraWrites, data)
	return nil
}

func (f *fakeBackend) UploadScene(buf accel.Buffers) error {
	f.scenes = append(f.scenes, buf)
	return nil
}

func (f *fakeBackend) UploadEnvironment(env Environment) error {
	f.environments = append(f.environments, env)
	return nil
}

func (f *fakeBackend) BeginFrame() error {
	if len(f.beginErrs) > 0 {
		err := f.beginErrs[0]
		f.beginErrs = f.beginErrs[1:]
		return err
	}
	return nil
}

func (f *fakeBackend) Dispatch(params []byte, gx, gy uint32) error {
	if f.dispatchErr != nil {
		return f.dispatchErr
	}
	f.dispatches = append(f.dispatches, dispatchCall{
		params: FrameParams{
			Elapsed: math.Float32frombits(binary.LittleEndian.Uint32(params[0:])),
			Samples: binary.LittleEndian.Uint32(params[4:]),
		},
		gx: gx,
		gy: gy,
	})
	return nil
}

func (f *fakeBackend) EndFrame() error {
	if f.endErr != nil {
		return f.endErr
	}
	f.presented++
	return nil
}

func (f *fakeBackend) AbortFrame() { f.aborted++ }
func (f *fakeBackend) Release()    { f.released++ }
