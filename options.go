package tiledcam

// Option configures a Renderer during creation.
// Use functional options to customize Renderer behavior.
//
// Example:
//
//	be, _ := backend.Default(cfg)
//	r := tiledcam.New(tiledcam.Config{Envs: 16, Width: 64, Height: 64},
//		tiledcam.WithBackend(be))
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	backend     Backend
	maxFailures int
}

// defaultMaxFailures is the consecutive-failure streak length at which
// Render escalates its warning.
const defaultMaxFailures = 30

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		maxFailures: defaultMaxFailures,
	}
}

// WithBackend sets the rendering strategy the renderer drives. Build
// one in the backend package (backend.New or backend.Default) and
// inject it here; Initialize fails with ErrNoBackend without one.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithMaxConsecutiveFailures sets the recoverable-failure streak length
// at which Render escalates its warning. Values below 1 keep the
// default.
func WithMaxConsecutiveFailures(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxFailures = n
		}
	}
}
