// Package difficulty adapts the skill tier of the AI field to the player's results.
package difficulty

import (
	"math"
	"slices"

	"github.com/samber/lo"
)

const DefaultWindow = 10

// Record is the rolling performance window of the player.
type Record struct {
	window    int
	lapTimes  []float64
	finishes  []int // finishing positions of recent races
	wins      int
	losses    int
	position  int // current race position, 0 if unknown
	fieldSize int
}

type RecordOption func(*Record)

// WithWindow bounds the number of lap times and finishes kept
func WithWindow(n int) RecordOption {
	return func(r *Record) {
		r.window = max(1, n)
	}
}

func NewRecord(opts ...RecordOption) *Record {
	r := &Record{window: DefaultWindow}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddLap appends a completed lap time, dropping the oldest beyond the window.
// Non positive times are ignored.
func (r *Record) AddLap(seconds float64) {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return
	}
	r.lapTimes = append(r.lapTimes, seconds)
	if len(r.lapTimes) > r.window {
		r.lapTimes = slices.Delete(r.lapTimes, 0, len(r.lapTimes)-r.window)
	}
}

// AddResult records a finished race. Position 1 counts as a win.
func (r *Record) AddResult(position, fieldSize int) {
	if position < 1 {
		return
	}
	if position == 1 {
		r.wins++
	} else {
		r.losses++
	}
	r.finishes = append(r.finishes, position)
	if len(r.finishes) > r.window {
		r.finishes = slices.Delete(r.finishes, 0, len(r.finishes)-r.window)
	}
	r.fieldSize = max(r.fieldSize, fieldSize)
}

// SetPosition updates the live race position
func (r *Record) SetPosition(position, fieldSize int) {
	r.position = position
	r.fieldSize = fieldSize
}

func (r *Record) LapTimes() []float64 { return slices.Clone(r.lapTimes) }
func (r *Record) Finishes() []int     { return slices.Clone(r.finishes) }
func (r *Record) Wins() int           { return r.wins }
func (r *Record) Losses() int         { return r.losses }
func (r *Record) Position() int       { return r.position }
func (r *Record) FieldSize() int      { return r.fieldSize }
func (r *Record) Window() int         { return r.window }

// Reset drops all samples
func (r *Record) Reset() {
	r.lapTimes = nil
	r.finishes = nil
	r.wins, r.losses = 0, 0
	r.position, r.fieldSize = 0, 0
}

// Signals are the inputs of the adjustment table.
type Signals struct {
	Sufficient      bool // false if there were too few samples
	AvgPosition     float64
	FieldSize       int
	Consistency     float64 // 1 means identical lap times
	Competitiveness float64
	Improvement     float64 // > 0 is getting faster
}

// Signals computes the adjustment inputs. With fewer than minSamples lap times the
// result is not sufficient and must be treated as neutral.
func (r *Record) Signals(minSamples int) Signals {
	if len(r.lapTimes) < max(1, minSamples) || r.fieldSize < 1 {
		return Signals{}
	}
	s := Signals{Sufficient: true, FieldSize: r.fieldSize}
	s.AvgPosition = r.avgPosition()
	s.Consistency = consistency(r.lapTimes)
	s.Competitiveness = r.competitiveness(s.AvgPosition)
	s.Improvement = improvement(r.lapTimes)
	return s
}

// avgPosition prefers finished races over the live position
func (r *Record) avgPosition() float64 {
	if len(r.finishes) > 0 {
		return lo.Mean(lo.Map(r.finishes, func(p int, _ int) float64 { return float64(p) }))
	}
	if r.position > 0 {
		return float64(r.position)
	}
	return float64(r.fieldSize+1) / 2
}

// competitiveness blends win rate and the position score evenly
func (r *Record) competitiveness(avgPos float64) float64 {
	posScore := 1.0
	if r.fieldSize > 1 {
		posScore = (float64(r.fieldSize) - avgPos) / float64(r.fieldSize-1)
	}
	winRate := posScore
	if races := r.wins + r.losses; races > 0 {
		winRate = float64(r.wins) / float64(races)
	}
	return math.Max(0, math.Min(1, 0.5*winRate+0.5*posScore))
}

func consistency(laps []float64) float64 {
	mean := lo.Mean(laps)
	if mean <= 0 {
		return 0
	}
	var sq float64
	for _, l := range laps {
		sq += (l - mean) * (l - mean)
	}
	cv := math.Sqrt(sq/float64(len(laps))) / mean
	return math.Max(0, 1-cv)
}

const trendSpan = 5

// improvement compares the last 5 laps with the 5 before. Needs 10 laps.
func improvement(laps []float64) float64 {
	if len(laps) < 2*trendSpan {
		return 0
	}
	n := len(laps)
	recent := lo.Mean(laps[n-trendSpan:])
	previous := lo.Mean(laps[n-2*trendSpan : n-trendSpan])
	if previous <= 0 {
		return 0
	}
	return (previous - recent) / previous
}
