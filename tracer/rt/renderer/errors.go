package renderer

import "errors"

// Fatal initialization errors.
var (
	ErrNoAdapter         = errors.New("renderer: no compatible GPU adapter")
	ErrMissingCapability = errors.New("renderer: required GPU capability missing")
	ErrShaderCompile     = errors.New("renderer: shader compilation failed")
)

// ErrSurfaceOutdated is returned when the presentable image could not be
// acquired because the surface no longer matches the window. Resize and retry.
var ErrSurfaceOutdated = errors.New("renderer: surface outdated")

// ErrDeviceLost ends the session.
var ErrDeviceLost = errors.New("renderer: device lost")

var (
	ErrNotInitialized     = errors.New("renderer: not initialized")
	ErrAlreadyInitialized = errors.New("renderer: already initialized")
	ErrDisposed           = errors.New("renderer: disposed")
	ErrBusy               = errors.New("renderer: frame in progress")
	ErrInvalidSize        = errors.New("renderer: drawable size must be non-zero")
)

// IsTransient reports whether a frame error can be recovered by resizing and
// retrying the frame.
func IsTransient(err error) bool {
	return errors.Is(err, ErrSurfaceOutdated)
}

// IsFatal reports whether err ends the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNoAdapter) ||
		errors.Is(err, ErrMissingCapability) ||
		errors.Is(err, ErrShaderCompile) ||
		errors.Is(err, ErrDeviceLost) ||
		errors.Is(err, ErrDisposed)
}
