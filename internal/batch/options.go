package batch

import "time"

// Option configures Run and RunBatch.
type Option func(*options)

type options struct {
	progress func(completed, total int)
	retries  int
	delay    time.Duration
	onRetry  func(err error, attempt int)
}

// WithProgress registers a hook invoked once per settled item (success,
// failure or skip). Calls are serialized and completed is strictly
// increasing, ending at total.
func WithProgress(fn func(completed, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithRetries sets how many times RunBatch re-invokes a failing item and the
// constant delay between attempts. Run ignores it.
func WithRetries(retries int, delay time.Duration) Option {
	return func(o *options) {
		o.retries = retries
		o.delay = delay
	}
}

// WithOnRetry registers an observer called before each retry in RunBatch.
func WithOnRetry(fn func(err error, attempt int)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
