package dedupe

// DefaultMaxSize is the window used when no size is configured.
const DefaultMaxSize = 4096

// Option applies a configuration option to the window deduper.
type Option func(*windowDeduper)

// WithMaxSize sets how many ids are remembered.
// If maxSize > 0 the oldest id is forgotten once the window is full.
// If maxSize <= 0 every id is kept.
func WithMaxSize(maxSize int) Option {
	return func(d *windowDeduper) {
		d.maxSize = maxSize
	}
}
