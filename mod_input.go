package raytrace

import (
	"github.com/gekko3d/raytrace/tracer/rt/core"
)

const (
	MouseButtonLeft int = iota
	MouseButtonRight
	MouseButtonMiddle
	mouseButtonCount
)

// Input is the per-frame snapshot of the pointer and window, filled by
// Window.Poll.
type Input struct {
	Pressed      [mouseButtonCount]bool
	JustPressed  [mouseButtonCount]bool
	JustReleased [mouseButtonCount]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	// ScrollY is the wheel movement since the last poll.
	ScrollY float64

	WindowWidth, WindowHeight int
	Resized                   bool
	EscapePressed             bool
}

// setButton updates the edge flags of one button.
func (in *Input) setButton(btn int, down bool) {
	in.JustPressed[btn] = down && !in.Pressed[btn]
	in.JustReleased[btn] = !down && in.Pressed[btn]
	in.Pressed[btn] = down
}

// setCursor records the new position. The delta is only kept while a button
// is held so the first sample after a press does not jump.
func (in *Input) setCursor(x, y float64) {
	if in.anyPressed() && !in.anyJustPressed() {
		in.MouseDeltaX = x - in.MouseX
		in.MouseDeltaY = y - in.MouseY
	} else {
		in.MouseDeltaX, in.MouseDeltaY = 0, 0
	}
	in.MouseX, in.MouseY = x, y
}

func (in *Input) setSize(w, h int) {
	in.Resized = w != in.WindowWidth || h != in.WindowHeight
	in.WindowWidth, in.WindowHeight = w, h
}

func (in *Input) anyPressed() bool {
	for _, p := range in.Pressed {
		if p {
			return true
		}
	}
	return false
}

func (in *Input) anyJustPressed() bool {
	for _, p := range in.JustPressed {
		if p {
			return true
		}
	}
	return false
}

// OrbitController turns drags into yaw/pitch and the wheel into zoom.
type OrbitController struct {
	Camera *core.OrbitCamera
	Button int
}

func NewOrbitController(cam *core.OrbitCamera) *OrbitController {
	return &OrbitController{Camera: cam, Button: MouseButtonLeft}
}

// Apply feeds one input snapshot to the camera and reports whether it moved.
func (c *OrbitController) Apply(in *Input) bool {
	moved := false
	if in.Pressed[c.Button] && (in.MouseDeltaX != 0 || in.MouseDeltaY != 0) {
		c.Camera.UpdateAngles(float32(in.MouseDeltaX), float32(in.MouseDeltaY))
		moved = true
	}
	if in.ScrollY != 0 {
		c.Camera.Zoom(float32(in.ScrollY))
		moved = true
	}
	return moved
}
