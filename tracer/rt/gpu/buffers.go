package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/raytrace/tracer/rt/accel"
	"github.com/gekko3d/raytrace/tracer/rt/renderer"
)

// ensureBuffer grows *buf to hold data plus headroom and uploads data. It
// reports whether the buffer object was replaced, in which case bind groups
// referencing it are stale.
func (r *ResourceSet) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) (bool, error) {
	needed := uint64(len(data) + headroom)
	if needed%4 != 0 {
		needed += 4 - needed%4
	}
	if needed == 0 {
		needed = 4
	}

	recreated := false
	if cur := *buf; cur == nil || cur.GetSize() < needed {
		nb, err := r.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  needed,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return false, fmt.Errorf("create %s buffer (%d bytes): %w", name, needed, err)
		}
		if cur != nil {
			cur.Release()
		}
		*buf = nb
		recreated = true
	}
	if len(data) > 0 {
		if err := r.Queue.WriteBuffer(*buf, 0, data); err != nil {
			return recreated, fmt.Errorf("write %s buffer: %w", name, err)
		}
	}
	return recreated, nil
}

func (r *ResourceSet) sceneBuffers() []**wgpu.Buffer {
	return []**wgpu.Buffer{
		&r.CameraBuf, &r.FrameBuf,
		&r.VertexBuf, &r.TriangleBuf, &r.BLASBuf,
		&r.InstanceBuf, &r.TLASBuf, &r.MaterialBuf,
	}
}

// createStaticBuffers allocates the uniforms and seeds the scene buffers with
// an empty scene so the first bind group is complete.
func (r *ResourceSet) createStaticBuffers() error {
	uniform := wgpu.BufferUsageUniform
	if _, err := r.ensureBuffer("Camera", &r.CameraBuf, make([]byte, renderer.CameraUniformSize), uniform, 0); err != nil {
		return err
	}
	if _, err := r.ensureBuffer("FrameParams", &r.FrameBuf, make([]byte, renderer.FrameParamsSize), uniform, 0); err != nil {
		return err
	}
	_, err := r.writeScene(accel.NewManager(r.logger).Buffers())
	return err
}

func (r *ResourceSet) WriteCamera(data []byte) error {
	if r.CameraBuf == nil {
		return renderer.ErrNotInitialized
	}
	if len(data) != renderer.CameraUniformSize {
		return fmt.Errorf("camera uniform is %d bytes, want %d", len(data), renderer.CameraUniformSize)
	}
	return r.Queue.WriteBuffer(r.CameraBuf, 0, data)
}

// UploadScene writes the packed acceleration structures. Buffers grow with a
// quarter of headroom so small edits do not reallocate.
func (r *ResourceSet) UploadScene(b accel.Buffers) error {
	if r.Device == nil {
		return renderer.ErrNotInitialized
	}
	recreated, err := r.writeScene(b)
	if err != nil {
		return err
	}
	if recreated {
		r.logger.Debugf("scene buffers reallocated, generation %d", b.Generation)
		return r.rebuildBindGroups()
	}
	return nil
}

func (r *ResourceSet) writeScene(b accel.Buffers) (bool, error) {
	storage := wgpu.BufferUsageStorage
	uploads := []struct {
		name string
		buf  **wgpu.Buffer
		data []byte
	}{
		{"Vertices", &r.VertexBuf, b.Vertices},
		{"Triangles", &r.TriangleBuf, b.Triangles},
		{"BLAS Nodes", &r.BLASBuf, b.BLASNodes},
		{"Instances", &r.InstanceBuf, b.Instances},
		{"TLAS Nodes", &r.TLASBuf, b.TLASNodes},
		{"Materials", &r.MaterialBuf, b.Materials},
	}
	changed := false
	for _, u := range uploads {
		recreated, err := r.ensureBuffer(u.name, u.buf, u.data, storage, len(u.data)/4)
		if err != nil {
			return changed, err
		}
		changed = changed || recreated
	}
	return changed, nil
}
