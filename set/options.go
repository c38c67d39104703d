package set

import "go.uber.org/zap"

const (
	// DefaultBufferLimit is the number of pending adds and deletes
	// that triggers a flush.
	DefaultBufferLimit = 10000

	// Scratch buffers hold this many records.
	batchRecords = 1000
)

type options struct {
	limit           int
	flushBeforeRead bool
	log             *zap.Logger
}

// Option configures a Set.
type Option func(*options)

// WithBufferLimit sets the number of pending adds and deletes
// that triggers a flush.
func WithBufferLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithFlushBeforeRead controls whether Get flushes pending changes first.
// It is on by default.
// When off, the entries Get returns from the pending-add buffer
// are not ordered with respect to the entries it returns from disk.
func WithFlushBeforeRead(on bool) Option {
	return func(o *options) {
		o.flushBeforeRead = on
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func defaultOptions() options {
	return options{
		limit:           DefaultBufferLimit,
		flushBeforeRead: true,
		log:             zap.NewNop(),
	}
}
