package strategy

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/heatmap-inspector/internal/analyzer"
	"github.com/anime-shed/heatmap-inspector/internal/legend"
)

// ErrEmptyHistogram is returned when no pixel has been counted.
var ErrEmptyHistogram = errors.New("empty histogram")

// Histogram is the per-entry pixel distribution of one classified image.
// Values[i] is the concentration of legend entry i and Counts[i] the number of
// pixels classified to it.
type Histogram struct {
	Values []float64
	Counts []int64
}

// NewHistogram pairs the legend values with the counts of an analysis result
func NewHistogram(lg *legend.Legend, res analyzer.Result) Histogram {
	return Histogram{
		Values: lg.Values(),
		Counts: append([]int64(nil), res.Counts...),
	}
}

// Total returns the number of counted pixels
func (h Histogram) Total() int64 {
	var n int64
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// sorted returns the non-empty bins ordered by value, as gonum quantiles need.
func (h Histogram) sorted() (x, weights []float64, err error) {
	if len(h.Values) != len(h.Counts) {
		return nil, nil, fmt.Errorf("histogram has %d values and %d counts", len(h.Values), len(h.Counts))
	}
	for i, c := range h.Counts {
		if c > 0 {
			x = append(x, h.Values[i])
			weights = append(weights, float64(c))
		}
	}
	if len(x) == 0 {
		return nil, nil, ErrEmptyHistogram
	}
	sort.Sort(byValue{x, weights})
	return x, weights, nil
}

type byValue struct{ x, w []float64 }

func (b byValue) Len() int           { return len(b.x) }
func (b byValue) Less(i, j int) bool { return b.x[i] < b.x[j] }
func (b byValue) Swap(i, j int) {
	b.x[i], b.x[j] = b.x[j], b.x[i]
	b.w[i], b.w[j] = b.w[j], b.w[i]
}

// SummaryStrategy defines the interface for histogram summary statistics
type SummaryStrategy interface {
	Summarize(h Histogram) (float64, error)
	GetStrategyName() string
}

// MeanStrategy computes the pixel-weighted mean
type MeanStrategy struct{}

// NewMeanStrategy creates a new mean strategy
func NewMeanStrategy() SummaryStrategy {
	return &MeanStrategy{}
}

// Summarize returns the weighted mean of the histogram
func (s *MeanStrategy) Summarize(h Histogram) (float64, error) {
	x, w, err := h.sorted()
	if err != nil {
		return 0, err
	}
	return stat.Mean(x, w), nil
}

// GetStrategyName returns the strategy name
func (s *MeanStrategy) GetStrategyName() string {
	return "mean"
}

// PercentileStrategy computes an empirical percentile over pixels
type PercentileStrategy struct {
	p    float64
	name string
}

// NewPercentileStrategy creates a strategy for the p-th quantile, p in [0,1]
func NewPercentileStrategy(p float64) (SummaryStrategy, error) {
	if p < 0 || p > 1 || p != p {
		return nil, fmt.Errorf("percentile %v out of range [0,1]", p)
	}
	return &PercentileStrategy{p: p, name: fmt.Sprintf("p%g", p*100)}, nil
}

// NewMedianStrategy creates a strategy for the median pixel value
func NewMedianStrategy() SummaryStrategy {
	return &PercentileStrategy{p: 0.5, name: "median"}
}

// Summarize returns the empirical quantile of the histogram
func (s *PercentileStrategy) Summarize(h Histogram) (float64, error) {
	x, w, err := h.sorted()
	if err != nil {
		return 0, err
	}
	return stat.Quantile(s.p, stat.Empirical, x, w), nil
}

// GetStrategyName returns the strategy name
func (s *PercentileStrategy) GetStrategyName() string {
	return s.name
}

// StdDevStrategy computes the sample standard deviation over pixels
type StdDevStrategy struct{}

// NewStdDevStrategy creates a new standard deviation strategy
func NewStdDevStrategy() SummaryStrategy {
	return &StdDevStrategy{}
}

// Summarize returns the weighted standard deviation. A single pixel has zero
// spread.
func (s *StdDevStrategy) Summarize(h Histogram) (float64, error) {
	x, w, err := h.sorted()
	if err != nil {
		return 0, err
	}
	if h.Total() < 2 {
		return 0, nil
	}
	return stat.StdDev(x, w), nil
}

// GetStrategyName returns the strategy name
func (s *StdDevStrategy) GetStrategyName() string {
	return "std_dev"
}

// SummaryContext manages the summary strategies applied to a histogram
type SummaryContext struct {
	strategies []SummaryStrategy
}

// NewSummaryContext creates a new summary context
func NewSummaryContext(strategies ...SummaryStrategy) *SummaryContext {
	return &SummaryContext{
		strategies: strategies,
	}
}

// DefaultSummaryContext returns the median, p95 and standard deviation
func DefaultSummaryContext() *SummaryContext {
	p95, _ := NewPercentileStrategy(0.95)
	return NewSummaryContext(NewMedianStrategy(), p95, NewStdDevStrategy())
}

// AddStrategy appends a strategy
func (c *SummaryContext) AddStrategy(strategy SummaryStrategy) {
	c.strategies = append(c.strategies, strategy)
}

// ExecuteSummaries runs every strategy and returns the values keyed by name
func (c *SummaryContext) ExecuteSummaries(h Histogram) (map[string]float64, error) {
	out := make(map[string]float64, len(c.strategies))
	for _, s := range c.strategies {
		v, err := s.Summarize(h)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.GetStrategyName(), err)
		}
		out[s.GetStrategyName()] = v
	}
	return out, nil
}

// GetStrategyNames returns the configured strategy names in order
func (c *SummaryContext) GetStrategyNames() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.GetStrategyName()
	}
	return names
}
