package legend

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk legend description:
//
//	pollutant: NO2
//	symbol: NO₂
//	unit: µg/m³
//	entries:
//	  - color: "#ff0000"
//	    value: 100
//	  - color: [0, 255, 0]
//	    value: 50
type fileFormat struct {
	Pollutant string      `yaml:"pollutant"`
	Symbol    string      `yaml:"symbol"`
	Unit      string      `yaml:"unit"`
	Entries   []fileEntry `yaml:"entries"`
}

type fileEntry struct {
	Color colorSpec `yaml:"color"`
	Value float64   `yaml:"value"`
	Label string    `yaml:"label"`
}

// colorSpec accepts either a hex string or an [r, g, b] sequence.
type colorSpec RGB

func (c *colorSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		rgb, err := ParseHex(node.Value)
		if err != nil {
			return err
		}
		*c = colorSpec(rgb)
		return nil
	case yaml.SequenceNode:
		var channels []int
		if err := node.Decode(&channels); err != nil {
			return fmt.Errorf("line %d: color channels: %w", node.Line, err)
		}
		if len(channels) != 3 {
			return fmt.Errorf("line %d: color needs 3 channels, got %d", node.Line, len(channels))
		}
		*c = colorSpec{R: channels[0], G: channels[1], B: channels[2]}
		return nil
	default:
		return fmt.Errorf("line %d: color must be a hex string or [r, g, b]", node.Line)
	}
}

// ParseHex parses "#rrggbb" or "rrggbb" into an RGB color.
func ParseHex(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: int(r), G: int(g), B: int(b)}, nil
}

// Hex formats c as "#rrggbb". Channels are clamped to [0,255].
func (c RGB) Hex() string {
	return colorful.Color{
		R: clampChannel(c.R) / 255,
		G: clampChannel(c.G) / 255,
		B: clampChannel(c.B) / 255,
	}.Hex()
}

func clampChannel(v int) float64 {
	return math.Min(255, math.Max(0, float64(v)))
}

// Load decodes a YAML legend description.
func Load(r io.Reader) (*Legend, error) {
	var f fileFormat
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty legend file", ErrInvalidLegend)
		}
		return nil, fmt.Errorf("decode legend: %w", err)
	}

	entries := make([]Entry, len(f.Entries))
	for i, fe := range f.Entries {
		entries[i] = Entry{Color: RGB(fe.Color), Concentration: fe.Value, Label: fe.Label}
	}

	var opts []Option
	if f.Pollutant != "" {
		opts = append(opts, WithPollutant(f.Pollutant))
	}
	if f.Symbol != "" {
		opts = append(opts, WithSymbol(f.Symbol))
	}
	if f.Unit != "" {
		opts = append(opts, WithUnit(f.Unit))
	}
	return New(entries, opts...)
}

// LoadFile reads a YAML legend from path.
func LoadFile(path string) (*Legend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open legend file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Resolve returns the legend from path when set, otherwise the named preset.
func Resolve(path, preset string) (*Legend, error) {
	if path != "" {
		return LoadFile(path)
	}
	if preset == "" {
		return NO2(), nil
	}
	return Preset(preset)
}
