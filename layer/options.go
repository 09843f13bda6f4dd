package layer

import "go.uber.org/zap"

type options struct {
	logger *zap.Logger
	strict bool
	name   string
	dtype  string
}

// Option configures layer construction and FromConfig reconstruction.
type Option func(*options)

// WithLogger sets the logger used for diagnostics. If nil is passed, logging
// is disabled.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l
	}
}

// WithStrict rejects malformed distance calls with an error instead of
// returning a fallback tensor.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithName sets the layer name. FromConfig uses the saved name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDType sets the dtype spelling reported by Config. FromConfig passes the
// saved value so configs written by other frameworks round-trip unchanged.
func WithDType(dtype string) Option {
	return func(o *options) {
		o.dtype = dtype
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
