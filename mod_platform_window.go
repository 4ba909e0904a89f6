package raytrace

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultTitle  = "Gekko Raytrace"
)

// Window is the single GLFW window the tracer presents into. All methods must
// be called from the thread that created it.
type Window struct {
	glfw   *glfw.Window
	title  string
	scroll float64
}

// NewWindow initialises GLFW and opens a resizable window without a client
// API, so the surface is owned by WebGPU.
func NewWindow(width, height int, title string) (*Window, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if title == "" {
		title = DefaultTitle
	}
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("init glfw: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	w := &Window{glfw: win, title: title}
	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		w.scroll += yoff
	})
	return w, nil
}

// SurfaceDescriptor lets the GPU layer create a surface for this window.
func (w *Window) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w.glfw)
}

// FramebufferSize is the drawable size in pixels.
func (w *Window) FramebufferSize() (uint32, uint32) {
	fw, fh := w.glfw.GetFramebufferSize()
	return uint32(max(fw, 0)), uint32(max(fh, 0))
}

func (w *Window) ShouldClose() bool {
	return w.glfw.ShouldClose()
}

func (w *Window) Close() {
	w.glfw.SetShouldClose(true)
}

func (w *Window) SetTitleSuffix(suffix string) {
	w.glfw.SetTitle(w.title + " " + suffix)
}

// Poll pumps GLFW events into in.
func (w *Window) Poll(in *Input) {
	glfw.PollEvents()

	buttons := [mouseButtonCount]glfw.MouseButton{
		MouseButtonLeft:   glfw.MouseButtonLeft,
		MouseButtonRight:  glfw.MouseButtonRight,
		MouseButtonMiddle: glfw.MouseButtonMiddle,
	}
	for btn, gb := range buttons {
		in.setButton(btn, w.glfw.GetMouseButton(gb) == glfw.Press)
	}
	in.setCursor(w.glfw.GetCursorPos())

	in.ScrollY = w.scroll
	w.scroll = 0

	fw, fh := w.glfw.GetFramebufferSize()
	in.setSize(fw, fh)
	in.EscapePressed = w.glfw.GetKey(glfw.KeyEscape) == glfw.Press
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	if w.glfw != nil {
		w.glfw.Destroy()
		w.glfw = nil
	}
	glfw.Terminate()
}
