package scheduler

import "log/slog"

type options struct {
	name     string
	throttle Throttle
	queue    Queue
	logger   *slog.Logger
}

// Option configures a scheduler node.
type Option func(*options)

// WithThrottle bounds the total cost of tasks running on the node.
func WithThrottle(t Throttle) Option {
	return func(o *options) {
		o.throttle = t
	}
}

// WithQueue sets the queue for tasks waiting on the throttle.
// It has no effect without a throttle. The default is a FIFO queue.
func WithQueue(q Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// WithLogger sets the logger. Children inherit it unless overridden.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithName names a root node. Children are named by NewSubScheduler.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func applyOptions(base options, opts []Option) options {
	for _, opt := range opts {
		opt(&base)
	}
	if base.throttle != nil && base.queue == nil {
		base.queue = NewFIFOQueue()
	}
	if base.logger == nil {
		base.logger = slog.New(slog.DiscardHandler)
	}
	return base
}
