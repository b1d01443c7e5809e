package analyzer

import (
	"image"

	"github.com/anime-shed/heatmap-inspector/internal/legend"
)

// ConcentrationAnalyzer classifies pixels against a legend and aggregates them
type ConcentrationAnalyzer interface {
	// AverageConcentration returns the mean concentration using default options
	AverageConcentration(img image.Image, lg *legend.Legend) (float64, error)

	// Analyze returns the mean together with the per-entry pixel distribution
	Analyze(img image.Image, lg *legend.Legend, options Options) (Result, error)

	// Lifecycle management
	Close() error
}

// PixelClassifier reduces a band of image rows to a partial sum
type PixelClassifier interface {
	ClassifyRows(img image.Image, lg *legend.Legend, minY, maxY int) StripResult
}
