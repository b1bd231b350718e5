package tiledcam

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// State is the renderer lifecycle state.
type State int

const (
	// StateUninitialized is the state after New, before Initialize.
	StateUninitialized State = iota
	// StateInitialized means the backend is initialized but no scene is
	// bound yet.
	StateInitialized
	// StateSceneBound means Render may be called.
	StateSceneBound
	// StateClosed is terminal.
	StateClosed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateSceneBound:
		return "SceneBound"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Config fixes the batch geometry: how many environments render, and
// the per-environment image size. The atlas dimensions follow from it
// (see Grid).
type Config struct {
	// Envs is the number of environments (cameras).
	Envs int

	// Width and Height are the per-environment image dimensions in
	// pixels.
	Width  int
	Height int

	// EnableDepth requests the depth plane in addition to color.
	EnableDepth bool
}

// Renderer orchestrates batched multi-environment camera rendering: it
// owns the output buffers and the lifecycle state machine, and drives
// the configured backend strategy once per frame.
//
// Not safe for concurrent use; one goroutine drives the frame loop.
type Renderer struct {
	cfg     Config
	grid    Grid
	backend Backend

	out   *Output
	state State

	// frame counts Render calls, including failed ones. Diagnostics
	// only.
	frame uint64

	// failStreak counts consecutive recoverable step failures.
	failStreak  int
	maxFailures int
}

// New creates a renderer for the given configuration. Configuration
// problems surface from Initialize, not New.
func New(cfg Config, opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Renderer{
		cfg:         cfg,
		backend:     o.backend,
		maxFailures: o.maxFailures,
	}
}

// State returns the current lifecycle state.
func (r *Renderer) State() State { return r.state }

// Frame returns the number of Render calls so far, including frames
// whose step failed.
func (r *Renderer) Frame() uint64 { return r.frame }

// Grid returns the tile grid addressing of the configured batch. Valid
// after Initialize.
func (r *Renderer) Grid() Grid { return r.grid }

// Initialize validates the configuration, initializes the backend, and
// allocates the output planes. Backends that own their scene advance
// straight to SceneBound; the others need BindScene first.
func (r *Renderer) Initialize() error {
	switch r.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
	default:
		return nil
	}

	if r.cfg.Envs <= 0 {
		return fmt.Errorf("%w: %d environments", ErrEnvCount, r.cfg.Envs)
	}
	if r.cfg.Width <= 0 || r.cfg.Height <= 0 {
		return fmt.Errorf("tiledcam: invalid image size %dx%d", r.cfg.Width, r.cfg.Height)
	}
	if r.backend == nil {
		return ErrNoBackend
	}

	if err := r.backend.Init(); err != nil {
		return fmt.Errorf("tiledcam: backend init: %w", err)
	}

	r.grid = NewGrid(r.cfg.Envs, r.cfg.Width, r.cfg.Height)
	r.out = NewOutput(r.cfg.Envs, r.cfg.Width, r.cfg.Height)

	r.state = StateInitialized
	if !r.backend.RequiresScene() {
		r.state = StateSceneBound
	}

	Logger().Info("renderer initialized",
		"backend", r.backend.Name(),
		"envs", r.cfg.Envs,
		"atlas", fmt.Sprintf("%dx%d", r.grid.AtlasWidth(), r.grid.AtlasHeight()))
	return nil
}

// BindScene hands the user geometry to the backend and establishes its
// bindings. A no-op for backends that own their scene.
func (r *Renderer) BindScene(scene SceneRef) error {
	switch r.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
		return ErrNotInitialized
	case StateSceneBound:
		if !r.backend.RequiresScene() {
			return nil
		}
	}

	if err := r.backend.BindScene(scene); err != nil {
		return err
	}
	r.state = StateSceneBound
	return nil
}

// Render produces one frame from the given camera states, one entry
// per environment. Intrinsics are required on the first frame and may
// be nil afterwards.
//
// A recoverable backend step failure is absorbed: it is logged, the
// output keeps the previous frame, the frame counter still advances,
// and Render returns nil. Configuration errors (wrong input lengths,
// atlas mismatch, calls in the wrong state) are returned.
func (r *Renderer) Render(pos []mgl32.Vec3, orn []mgl32.Quat, intrinsics []mgl32.Mat3) error {
	switch r.state {
	case StateClosed:
		return ErrClosed
	case StateSceneBound:
	default:
		return ErrNotBound
	}

	if len(pos) != r.cfg.Envs || len(orn) != r.cfg.Envs {
		return fmt.Errorf("%w: %d positions, %d orientations, %d environments",
			ErrEnvCount, len(pos), len(orn), r.cfg.Envs)
	}
	if intrinsics != nil && len(intrinsics) != r.cfg.Envs {
		return fmt.Errorf("%w: %d intrinsics, %d environments",
			ErrEnvCount, len(intrinsics), r.cfg.Envs)
	}

	r.frame++

	err := r.backend.Render(FrameInput{Pos: pos, Orn: orn, Intrinsics: intrinsics}, r.out)
	if err == nil {
		r.failStreak = 0
		return nil
	}
	if isFatal(err) {
		return err
	}

	// Recoverable: the output still holds the last good frame.
	r.failStreak++
	Logger().Warn("render step failed, keeping previous frame",
		"frame", r.frame, "error", err)
	if r.failStreak == r.maxFailures {
		Logger().Warn("render step failing persistently",
			"consecutive_failures", r.failStreak)
	}
	return nil
}

// Output returns the cross-environment plane for the requested data
// type. Exactly one of the returned slices is non-nil: u8 for
// DataTypeRGBA (aliasing the output plane) and DataTypeRGB (dense
// copy), f32 for DataTypeDepth (aliasing). Aliased slices are
// overwritten by the next successful Render.
func (r *Renderer) Output(dt DataType) (u8 []uint8, f32 []float32, err error) {
	if r.out == nil {
		return nil, nil, ErrNotInitialized
	}
	switch dt {
	case DataTypeRGBA:
		return r.out.rgba, nil, nil
	case DataTypeRGB:
		dst := make([]uint8, 0, r.cfg.Envs*r.cfg.Width*r.cfg.Height*3)
		for env := 0; env < r.cfg.Envs; env++ {
			dst = r.out.RGB(env).AppendTo(dst)
		}
		return dst, nil, nil
	case DataTypeDepth:
		if !r.cfg.EnableDepth {
			return nil, nil, fmt.Errorf("%w: depth not enabled", ErrUnknownDataType)
		}
		return nil, r.out.depth, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDataType, dt)
	}
}

// Buffers returns the output planes for per-environment access. Valid
// after Initialize; contents follow the Output aliasing rules.
func (r *Renderer) Buffers() *Output { return r.out }

// Reset discards the backend's accumulated render state. Bindings and
// output contents stay.
func (r *Renderer) Reset() error {
	switch r.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
		return ErrNotInitialized
	}
	return r.backend.Reset()
}

// Close releases the backend and its collaborators. Idempotent; the
// renderer cannot be reused afterwards.
func (r *Renderer) Close() error {
	if r.state == StateClosed {
		return nil
	}
	prev := r.state
	r.state = StateClosed
	if prev == StateUninitialized || r.backend == nil {
		return nil
	}
	return r.backend.Close()
}

// isFatal reports whether err is a configuration error that must
// surface instead of being absorbed as a per-frame failure.
func isFatal(err error) bool {
	for _, fatal := range []error{ErrNotBound, ErrNotInitialized, ErrClosed, ErrAtlasSize, ErrEnvCount} {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return false
}
