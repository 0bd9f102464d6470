package bus

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithBufferSize sets the per-subscriber event buffer.
func WithBufferSize(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.bufferSize = size
		}
	}
}
