package tiledcam

import "errors"

// Fatal configuration errors. These indicate a programming error in the
// calling sequence and halt the state machine; they are never retried.
var (
	// ErrNotBound is returned by Render when no scene has been bound.
	// Backends that require an explicit scene (see Backend.RequiresScene)
	// must see BindScene complete before the first Render call.
	ErrNotBound = errors.New("tiledcam: render called before scene bind")

	// ErrNotInitialized is returned when operations are called before Initialize.
	ErrNotInitialized = errors.New("tiledcam: renderer not initialized")

	// ErrClosed is returned when the renderer is used after Close.
	// Close itself is idempotent and never returns ErrClosed.
	ErrClosed = errors.New("tiledcam: renderer closed")

	// ErrAtlasSize is returned when an atlas produced by the external
	// renderer does not match the tile grid dimensions. Unpacking such a
	// buffer would silently corrupt every per-environment image, so the
	// codec refuses it instead.
	ErrAtlasSize = errors.New("tiledcam: atlas dimensions do not match tile grid")

	// ErrEnvCount is returned when per-frame input slices disagree with
	// the configured environment count.
	ErrEnvCount = errors.New("tiledcam: input length does not match environment count")

	// ErrNoBackend is returned by Initialize when no backend was
	// configured. Backends are built in the backend package and injected
	// with WithBackend.
	ErrNoBackend = errors.New("tiledcam: no backend configured")

	// ErrUnknownDataType is returned by Output for a DataType the
	// renderer does not produce.
	ErrUnknownDataType = errors.New("tiledcam: unknown output data type")
)
