package buffer

// Option configures a buffer at construction time.
type Option[T any] func(*bufferOptions[T])

type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]
}

// WithOverflowPolicy sets the overflow policy. Default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *bufferOptions[T]) {
		o.overflowPolicy = policy
	}
}

// WithDropCallback registers a callback invoked for every dropped item.
// The callback runs outside the buffer lock.
func WithDropCallback[T any](cb DropCallback[T]) Option[T] {
	return func(o *bufferOptions[T]) {
		o.dropCallback = cb
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowPolicy: DropOldest,
	}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}
