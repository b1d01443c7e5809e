package analyzer

// DefaultStripRows is the strip height used by parallel traversal.
const DefaultStripRows = 64

// Options controls how the pixel traversal is executed. The result of a
// sequential traversal is the plain row-major running sum; a parallel
// traversal sums each strip row-major and combines strips in ascending order,
// so it is reproducible for a fixed StripRows.
type Options struct {
	// Parallel splits the image into horizontal strips processed by the
	// analyzer's worker pool.
	Parallel bool

	// StripRows is the number of rows per strip in parallel mode.
	StripRows int
}

// DefaultOptions returns sequential row-major traversal
func DefaultOptions() Options {
	return Options{
		Parallel:  false,
		StripRows: DefaultStripRows,
	}
}

// ParallelOptions returns strip-parallel traversal with the default strip height
func ParallelOptions() Options {
	opts := DefaultOptions()
	opts.Parallel = true
	return opts
}

// WithParallel enables strip-parallel traversal. Non-positive stripRows keeps
// the current strip height.
func (opts Options) WithParallel(stripRows int) Options {
	opts.Parallel = true
	if stripRows > 0 {
		opts.StripRows = stripRows
	}
	return opts
}

// WithSequential disables strip-parallel traversal
func (opts Options) WithSequential() Options {
	opts.Parallel = false
	return opts
}

// stripRows returns a usable strip height.
func (opts Options) stripRows() int {
	if opts.StripRows <= 0 {
		return DefaultStripRows
	}
	return opts.StripRows
}
