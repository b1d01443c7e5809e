package analyzer

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/anime-shed/heatmap-inspector/internal/legend"
)

// coreAnalyzer implements ConcentrationAnalyzer and owns the worker pool used
// for strip-parallel traversal.
type coreAnalyzer struct {
	workerPool *WorkerPool
	classifier PixelClassifier
}

// NewConcentrationAnalyzer creates an analyzer backed by a pool of the given
// size (runtime.NumCPU() when workers <= 0).
func NewConcentrationAnalyzer(workers int) ConcentrationAnalyzer {
	workerPool := NewWorkerPool(workers)
	workerPool.Start()

	return &coreAnalyzer{
		workerPool: workerPool,
		classifier: NewPixelClassifier(),
	}
}

// AverageConcentration returns the mean concentration over every pixel of img
// using sequential row-major traversal. It needs no analyzer instance.
func AverageConcentration(img image.Image, lg *legend.Legend) (float64, error) {
	res, err := analyze(img, lg, NewPixelClassifier(), nil, DefaultOptions())
	if err != nil {
		return 0, err
	}
	return res.AverageConcentration, nil
}

// AverageConcentration performs sequential analysis and returns only the mean
func (ca *coreAnalyzer) AverageConcentration(img image.Image, lg *legend.Legend) (float64, error) {
	res, err := ca.Analyze(img, lg, DefaultOptions())
	if err != nil {
		return 0, err
	}
	return res.AverageConcentration, nil
}

// Analyze classifies every pixel and aggregates the result
func (ca *coreAnalyzer) Analyze(img image.Image, lg *legend.Legend, options Options) (Result, error) {
	return analyze(img, lg, ca.classifier, ca.workerPool, options)
}

// Close shuts down the worker pool
func (ca *coreAnalyzer) Close() error {
	ca.workerPool.Close()
	return nil
}

func analyze(img image.Image, lg *legend.Legend, classifier PixelClassifier, pool *WorkerPool, options Options) (Result, error) {
	start := time.Now()

	if lg == nil || lg.Len() == 0 {
		return Result{}, fmt.Errorf("%w: no reference colors", legend.ErrInvalidLegend)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return Result{}, fmt.Errorf("%w: %dx%d", ErrEmptyImage, width, height)
	}

	var strips []StripResult
	if options.Parallel && pool != nil && height > options.stripRows() {
		strips = classifyStrips(img, lg, classifier, pool, options.stripRows())
	} else {
		strips = []StripResult{classifier.ClassifyRows(img, lg, bounds.Min.Y, bounds.Max.Y)}
	}

	// Combine partial results in ascending strip order so the floating-point
	// sum does not depend on worker scheduling.
	result := Result{
		Width:     width,
		Height:    height,
		Counts:    make([]int64, lg.Len()),
		Strips:    len(strips),
		Timestamp: start,
	}
	var sum float64
	for _, s := range strips {
		sum += s.Sum
		result.PixelCount += s.Pixels
		for i, n := range s.Counts {
			result.Counts[i] += n
		}
	}

	result.AverageConcentration = sum / float64(result.PixelCount)
	result.ProcessingTime = time.Since(start)
	return result, nil
}

// classifyStrips fans horizontal strips out to the pool. Each job writes only
// its own slot of the returned slice.
func classifyStrips(img image.Image, lg *legend.Legend, classifier PixelClassifier, pool *WorkerPool, stripRows int) []StripResult {
	bounds := img.Bounds()
	height := bounds.Dy()
	numStrips := (height + stripRows - 1) / stripRows // ceil division

	strips := make([]StripResult, numStrips)
	var wg sync.WaitGroup

	for i := 0; i < numStrips; i++ {
		startY := bounds.Min.Y + i*stripRows
		endY := startY + stripRows
		if endY > bounds.Max.Y {
			endY = bounds.Max.Y
		}

		slot := i
		job := func() {
			defer wg.Done()
			strips[slot] = classifier.ClassifyRows(img, lg, startY, endY)
		}

		wg.Add(1)
		if !pool.Submit(job) {
			// pool closed: run inline
			job()
		}
	}

	wg.Wait()
	return strips
}
