package dedupe

// Option configures the in-memory deduper.
type Option func(*batchSet)

// WithMaxSize caps the number of remembered batches. Zero or negative means
// unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *batchSet) {
		d.maxSize = maxSize
	}
}
