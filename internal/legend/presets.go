package legend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arbovm/levenshtein"
)

// NO2 returns the default nitrogen dioxide legend. Entry order fixes the
// tie-break: red, green, blue, yellow.
func NO2() *Legend {
	l, err := New([]Entry{
		{Color: RGB{255, 0, 0}, Concentration: 100, Label: "red"},
		{Color: RGB{0, 255, 0}, Concentration: 50, Label: "green"},
		{Color: RGB{0, 0, 255}, Concentration: 10, Label: "blue"},
		{Color: RGB{255, 255, 0}, Concentration: 75, Label: "yellow"},
	}, WithPollutant(DefaultPollutant), WithSymbol(DefaultSymbol), WithUnit(DefaultUnit))
	if err != nil {
		panic(err)
	}
	return l
}

var presets = map[string]func() *Legend{
	"no2": NO2,
}

// PresetNames lists the built-in legends in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a built-in legend by name (case-insensitive).
func Preset(name string) (*Legend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if build, ok := presets[key]; ok {
		return build(), nil
	}
	if suggestion := closestPreset(key); suggestion != "" {
		return nil, fmt.Errorf("unknown legend preset %q (did you mean %q?)", name, suggestion)
	}
	return nil, fmt.Errorf("unknown legend preset %q", name)
}

// closestPreset suggests a preset within edit distance 3 of name.
func closestPreset(name string) string {
	best, bestDist := "", 4
	for _, candidate := range PresetNames() {
		if d := levenshtein.Distance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
