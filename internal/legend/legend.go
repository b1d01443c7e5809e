// Package legend holds the calibration points of a color-coded concentration map:
// a fixed, ordered set of reference colors each mapped to a concentration value.
package legend

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidLegend is returned when a legend cannot be constructed.
var ErrInvalidLegend = errors.New("invalid legend")

const (
	DefaultPollutant = "NO2"
	DefaultSymbol    = "NO₂"
	DefaultUnit      = "µg/m³"
)

// RGB is a reference or query color. Channels are plain ints so that values
// outside [0,255] can still be measured.
type RGB struct {
	R, G, B int
}

// distanceSq returns the squared Euclidean distance between two colors.
// Channel differences are integers, so the result is exact in float64 and
// ties compare equal.
func (c RGB) distanceSq(o RGB) float64 {
	dr := float64(c.R - o.R)
	dg := float64(c.G - o.G)
	db := float64(c.B - o.B)
	return dr*dr + dg*dg + db*db
}

// Distance returns the Euclidean distance between two colors in RGB space.
func Distance(a, b RGB) float64 {
	return math.Sqrt(a.distanceSq(b))
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// Entry is one reference point of the legend.
type Entry struct {
	Color         RGB     `json:"color" yaml:"-"`
	Concentration float64 `json:"concentration" yaml:"-"`
	Label         string  `json:"label,omitempty" yaml:"-"`
}

// Legend is an immutable, ordered mapping from reference colors to
// concentration values. Declaration order is significant: when a query color
// is equidistant from several reference colors, the first declared one wins.
type Legend struct {
	entries   []Entry
	pollutant string
	symbol    string
	unit      string
	min, max  float64
}

// Option customizes legend metadata.
type Option func(*Legend)

// WithPollutant sets the pollutant name used in table headers (e.g. "NO2").
func WithPollutant(name string) Option {
	return func(l *Legend) { l.pollutant = name }
}

// WithSymbol sets the display symbol used in annotations (e.g. "NO₂").
func WithSymbol(symbol string) Option {
	return func(l *Legend) { l.symbol = symbol }
}

// WithUnit sets the concentration unit.
func WithUnit(unit string) Option {
	return func(l *Legend) { l.unit = unit }
}

// New builds a legend from entries in declaration order.
func New(entries []Entry, opts ...Option) (*Legend, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no reference colors", ErrInvalidLegend)
	}

	seen := make(map[RGB]int, len(entries))
	for i, e := range entries {
		if j, dup := seen[e.Color]; dup {
			return nil, fmt.Errorf("%w: color %s declared twice (entries %d and %d)", ErrInvalidLegend, e.Color, j, i)
		}
		seen[e.Color] = i
		if math.IsNaN(e.Concentration) || math.IsInf(e.Concentration, 0) || e.Concentration < 0 {
			return nil, fmt.Errorf("%w: entry %d has concentration %v", ErrInvalidLegend, i, e.Concentration)
		}
	}

	l := &Legend{
		entries:   append([]Entry(nil), entries...),
		pollutant: DefaultPollutant,
		unit:      DefaultUnit,
		min:       entries[0].Concentration,
		max:       entries[0].Concentration,
	}
	for _, e := range entries[1:] {
		l.min = math.Min(l.min, e.Concentration)
		l.max = math.Max(l.max, e.Concentration)
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.symbol == "" {
		l.symbol = l.pollutant
	}
	return l, nil
}

// Nearest returns the index of the reference color closest to c.
func (l *Legend) Nearest(c RGB) int {
	best := 0
	bestDist := l.entries[0].Color.distanceSq(c)
	for i := 1; i < len(l.entries); i++ {
		// strict comparison keeps the first declared entry on ties
		if d := l.entries[i].Color.distanceSq(c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// NearestConcentration returns the concentration of the reference color
// closest to c.
func (l *Legend) NearestConcentration(c RGB) float64 {
	return l.entries[l.Nearest(c)].Concentration
}

// Len returns the number of reference colors.
func (l *Legend) Len() int { return len(l.entries) }

// Entry returns the i-th entry in declaration order.
func (l *Legend) Entry(i int) Entry { return l.entries[i] }

// Entries returns a copy of all entries in declaration order.
func (l *Legend) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Values returns the concentration values in declaration order.
func (l *Legend) Values() []float64 {
	values := make([]float64, len(l.entries))
	for i, e := range l.entries {
		values[i] = e.Concentration
	}
	return values
}

// Min returns the smallest concentration in the legend.
func (l *Legend) Min() float64 { return l.min }

// Max returns the largest concentration in the legend.
func (l *Legend) Max() float64 { return l.max }

func (l *Legend) Pollutant() string { return l.pollutant }
func (l *Legend) Symbol() string    { return l.symbol }
func (l *Legend) Unit() string      { return l.unit }
