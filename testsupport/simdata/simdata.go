// Package simdata provides shared fixtures for simulation tests.
package simdata

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/track"
)

// BaseStats is a neutral car: max speed 40, every other stat 1
var BaseStats = model.Stats{40, 1, 1, 1, 1, 1, 1, 1}

// TrackYAML is a small valid track definition
const TrackYAML = `formatVersion: 1.0.0
name: triangle
spacing: 8
points:
  - [0, 0]
  - [80, 0]
  - [40, 60]
`

// Rand returns a deterministic generator
func Rand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Line returns the named builtin racing line
func Line(t testing.TB, name string) *track.RacingLine {
	t.Helper()
	l, err := track.Builtin(name)
	if err != nil {
		t.Fatalf("builtin track %s: %v", name, err)
	}
	return l
}

// Car creates a car with BaseStats at pos
func Car(id string, kind model.CarKind, pos geom.Vec3) *car.Car {
	c := car.New(id, kind, BaseStats)
	c.Position = pos
	return c
}

// WriteTrackFile writes TrackYAML into a temp dir and returns the path
func WriteTrackFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triangle.yml")
	if err := os.WriteFile(path, []byte(TrackYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
