package legend

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyLegend(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidLegend))
}

func TestNew_RejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{"duplicate color", []Entry{
			{Color: RGB{1, 2, 3}, Concentration: 1},
			{Color: RGB{1, 2, 3}, Concentration: 2},
		}},
		{"negative concentration", []Entry{{Color: RGB{0, 0, 0}, Concentration: -1}}},
		{"NaN concentration", []Entry{{Color: RGB{0, 0, 0}, Concentration: math.NaN()}}},
		{"infinite concentration", []Entry{{Color: RGB{0, 0, 0}, Concentration: math.Inf(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			assert.ErrorIs(t, err, ErrInvalidLegend)
		})
	}
}

func TestNearestConcentration_ExactColors(t *testing.T) {
	l := NO2()

	for _, e := range l.Entries() {
		assert.Equal(t, e.Concentration, l.NearestConcentration(e.Color), "color %s", e.Color)
	}
}

func TestNearestConcentration_NearColor(t *testing.T) {
	l := NO2()
	assert.Equal(t, 100.0, l.NearestConcentration(RGB{250, 5, 5}))
}

func TestNearestConcentration_OutOfRangeChannels(t *testing.T) {
	l := NO2()
	// measured as-is: (300,-20,-20) is still closest to red
	assert.Equal(t, 100.0, l.NearestConcentration(RGB{300, -20, -20}))
	assert.Equal(t, 10.0, l.NearestConcentration(RGB{-50, -50, 400}))
}

func TestNearest_TieBreakFirstDeclaredWins(t *testing.T) {
	black := RGB{0, 0, 0}
	white := RGB{255, 255, 255}
	red := RGB{255, 0, 0}
	blue := RGB{0, 0, 255}
	query := RGB{128, 0, 128}
	require.Equal(t, Distance(query, red), Distance(query, blue))

	first, err := New([]Entry{
		{Color: red, Concentration: 100},
		{Color: blue, Concentration: 10},
		{Color: black, Concentration: 0},
		{Color: white, Concentration: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, first.NearestConcentration(query))
	assert.Equal(t, 0, first.Nearest(query))

	swapped, err := New([]Entry{
		{Color: blue, Concentration: 10},
		{Color: red, Concentration: 100},
		{Color: black, Concentration: 0},
		{Color: white, Concentration: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, swapped.NearestConcentration(query))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(RGB{1, 2, 3}, RGB{1, 2, 3}))
	assert.Equal(t, 5.0, Distance(RGB{0, 0, 0}, RGB{3, 4, 0}))
	assert.InDelta(t, 255*math.Sqrt(2), Distance(RGB{255, 0, 0}, RGB{0, 255, 0}), 1e-9)
}

func TestLegend_MinMaxValues(t *testing.T) {
	l := NO2()
	assert.Equal(t, 10.0, l.Min())
	assert.Equal(t, 100.0, l.Max())
	assert.Equal(t, []float64{100, 50, 10, 75}, l.Values())
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, "NO2", l.Pollutant())
	assert.Equal(t, "NO₂", l.Symbol())
	assert.Equal(t, "µg/m³", l.Unit())
}

func TestLegend_EntriesIsACopy(t *testing.T) {
	l := NO2()
	entries := l.Entries()
	entries[0].Concentration = 1

	assert.Equal(t, 100.0, l.Entry(0).Concentration)
}

func TestPreset(t *testing.T) {
	l, err := Preset(" NO2 ")
	require.NoError(t, err)
	assert.Equal(t, 4, l.Len())

	_, err = Preset("no-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "no2"`)

	_, err = Preset("ozone-hourly")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_HexAndSequenceColors(t *testing.T) {
	doc := `
pollutant: PM25
symbol: PM₂.₅
unit: µg/m³
entries:
  - color: "#ff0000"
    value: 100
    label: red
  - color: [0, 255, 0]
    value: 50
  - color: "0000ff"
    value: 10
`
	l, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, RGB{255, 0, 0}, l.Entry(0).Color)
	assert.Equal(t, "red", l.Entry(0).Label)
	assert.Equal(t, RGB{0, 255, 0}, l.Entry(1).Color)
	assert.Equal(t, RGB{0, 0, 255}, l.Entry(2).Color)
	assert.Equal(t, "PM25", l.Pollutant())
	assert.Equal(t, "PM₂.₅", l.Symbol())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"no entries", "pollutant: NO2\nentries: []\n"},
		{"bad hex", "entries:\n  - color: \"#zzzzzz\"\n    value: 1\n"},
		{"two channels", "entries:\n  - color: [1, 2]\n    value: 1\n"},
		{"mapping color", "entries:\n  - color: {r: 1}\n    value: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestResolve_DefaultsToNO2(t *testing.T) {
	l, err := Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, NO2().Values(), l.Values())

	_, err = Resolve("/does/not/exist.yaml", "")
	assert.Error(t, err)
}

func TestRGB_Hex(t *testing.T) {
	assert.Equal(t, "#ff0000", RGB{R: 255}.Hex())
	assert.Equal(t, "#00ff0a", RGB{G: 255, B: 10}.Hex())
	assert.Equal(t, "#ff0000", RGB{R: 300, G: -4}.Hex())

	rgb, err := ParseHex(RGB{R: 12, G: 200, B: 7}.Hex())
	require.NoError(t, err)
	assert.Equal(t, RGB{R: 12, G: 200, B: 7}, rgb)
}
