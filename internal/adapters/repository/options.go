package repository

// Option applies a configuration option to Open.
type Option func(*options)

type options struct {
	maxConns     int32
	instrumented bool
}

func newOptions(opts []Option) options {
	o := options{instrumented: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxConns caps the Postgres pool size.
func WithMaxConns(n int32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithInstrumentation toggles per-operation latency metrics. On by default.
func WithInstrumentation(enabled bool) Option {
	return func(o *options) {
		o.instrumented = enabled
	}
}
