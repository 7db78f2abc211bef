package track

import (
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
)

//nolint:gochecknoglobals // builtin data
var builtins = map[string]Definition{
	"oval": {
		FormatVersion: "v1.0.0",
		Name:          "oval",
		Spacing:       12,
		Points:        ovalPoints(),
	},
	"square": {
		FormatVersion: "v1.0.0",
		Name:          "square",
		Points:        [][2]float64{{0, 0}, {70, 0}, {70, 70}, {0, 70}},
	},
	"hairpin": {
		FormatVersion:  "v1.0.0",
		Name:           "hairpin",
		Spacing:        10,
		MaxSpeed:       42,
		MinCornerSpeed: 10,
		Points: [][2]float64{
			{0, 0}, {140, 0}, {170, 20}, {140, 40}, {60, 40},
			{40, 70}, {60, 100}, {160, 100}, {170, 130}, {0, 130}, {-30, 60},
		},
	},
}

func ovalPoints() [][2]float64 {
	const n = 12
	ret := make([][2]float64, n)
	for i := range n {
		a := 2 * math.Pi * float64(i) / n
		ret[i] = [2]float64{120 * math.Cos(a), 60 * math.Sin(a)}
	}
	return ret
}

// BuiltinNames returns the names of the builtin tracks, sorted
func BuiltinNames() []string {
	names := lo.Keys(builtins)
	slices.Sort(names)
	return names
}

// BuiltinDefinition returns a copy of the builtin definition
func BuiltinDefinition(name string) (Definition, bool) {
	d, ok := builtins[name]
	if !ok {
		return Definition{}, false
	}
	d.Points = slices.Clone(d.Points)
	return d, true
}

func Builtin(name string) (*RacingLine, error) {
	d, ok := BuiltinDefinition(name)
	if !ok {
		return nil, fmt.Errorf("unknown track %q (builtin: %v)", name, BuiltinNames())
	}
	return d.Build()
}
