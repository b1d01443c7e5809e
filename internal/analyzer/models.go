package analyzer

import (
	"errors"
	"time"
)

// ErrEmptyImage is returned when an image has no pixels to average.
var ErrEmptyImage = errors.New("empty image")

// Result holds the outcome of classifying every pixel of one image.
type Result struct {
	// AverageConcentration is the unweighted arithmetic mean over all pixels.
	AverageConcentration float64
	PixelCount           int
	Width, Height        int

	// Counts holds the number of pixels classified to each legend entry,
	// in legend declaration order.
	Counts []int64

	// Strips is the number of row strips the traversal was split into
	// (1 for sequential traversal).
	Strips int

	Timestamp      time.Time
	ProcessingTime time.Duration
}

// StripResult is the partial reduction of one horizontal strip.
type StripResult struct {
	Sum    float64
	Counts []int64
	Pixels int
}
