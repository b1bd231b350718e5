package tiledcam

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SceneRef is scene-description source text describing user geometry.
// Backends that drive a scene-description renderer merge it with their
// synthesized camera declarations; the sensor backend has no use for it.
type SceneRef string

// FrameInput is one frame's camera state, one entry per environment.
// Intrinsics may be nil after the first frame for backends that only
// need them once.
type FrameInput struct {
	Pos        []mgl32.Vec3
	Orn        []mgl32.Quat
	Intrinsics []mgl32.Mat3
}

// Backend is a rendering strategy behind the Renderer. Two strategies
// ship with the module: the native tiled sensor (backend/sensor) and
// the generic scene-description renderer (backend/scenegraph).
//
// Backends are registered by name in the backend package and
// constructed there; the Renderer drives whichever instance it is
// given.
type Backend interface {
	// Name returns the backend identifier (e.g. "sensor", "scenegraph").
	Name() string

	// Init prepares the backend for rendering.
	Init() error

	// RequiresScene reports whether the backend needs BindScene before
	// it can render. Sensor-style backends own their scene and return
	// false.
	RequiresScene() bool

	// BindScene hands the backend the user geometry and establishes its
	// bindings. Only called when RequiresScene is true.
	BindScene(scene SceneRef) error

	// Render produces one frame into out. Recoverable per-frame
	// failures are the backend's to absorb where the contract says so;
	// a returned error means out still holds the previous frame.
	Render(in FrameInput, out *Output) error

	// Reset discards accumulated render state without touching the
	// scene or bindings.
	Reset() error

	// Close releases the backend and its external collaborators.
	Close() error
}
