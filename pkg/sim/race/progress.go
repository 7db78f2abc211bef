package race

import (
	"cmp"
	"slices"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
)

// Standing is one leaderboard row
type Standing struct {
	Position    int
	CarID       string
	Name        string
	Kind        model.CarKind
	Lap         int
	Checkpoints int
	Distance    float64 // to the next checkpoint
	BestLapTime float64
	Finished    bool
}

// Leaderboard returns the current standings, positions 1..N without ties
func (d *Director) Leaderboard() []Standing {
	return slices.Clone(d.standings)
}

// Progress is checkpoints passed plus the covered share of the current segment.
// It only grows while the car drives forward.
func (d *Director) Progress(c *car.Car) float64 {
	p := c.Progress
	if d.line.Len() < 2 {
		return float64(p.Checkpoints)
	}
	from := d.line.At(d.line.Prev(p.Next)).Position
	to := d.line.At(p.Next).Position
	seg := to.Sub(from)
	l2 := seg.LenSq()
	if l2 == 0 {
		return float64(p.Checkpoints)
	}
	share := geom.Clamp(c.Position.Horizontal().Sub(from).Dot(seg)/l2, 0, 0.999)
	return float64(p.Checkpoints) + share
}

func (d *Director) distanceToNext(c *car.Car) float64 {
	if d.line.Empty() {
		return 0
	}
	return c.Position.Horizontal().Dist(d.line.At(c.Progress.Next).Position)
}

func (d *Director) updateProgress() {
	if d.line.Empty() {
		return
	}
	for _, c := range d.cars {
		for range d.line.Len() {
			if !d.line.Reached(c.Progress.Next, c.Position, d.cfg.CheckpointRadius) {
				break
			}
			d.passCheckpoint(c)
		}
	}
}

// passCheckpoint handles reaching c.Progress.Next. Waypoint 0 is the start/finish
// line: the first crossing starts the clock, later ones complete a lap.
func (d *Director) passCheckpoint(c *car.Car) {
	p := &c.Progress
	if p.Next == 0 {
		if p.Started {
			d.completeLap(c)
		} else {
			p.Started = true
			p.LapStart = d.now
		}
		p.Passed = 0
	} else {
		p.Passed++
	}
	p.Checkpoints++
	p.Next = d.line.Next(p.Next)
}

func (d *Director) completeLap(c *car.Car) {
	p := &c.Progress
	lapTime := d.now - p.LapStart
	p.Lap++
	p.LastLapTime = lapTime
	if p.BestLapTime == 0 || lapTime < p.BestLapTime {
		p.BestLapTime = lapTime
	}
	p.LapStart = d.now
	d.log.Debug("lap completed",
		log.String("car", c.ID), log.Int("lap", p.Lap), log.Float64("time", lapTime))

	if c == d.player {
		d.record.AddLap(lapTime)
	}
	if d.cfg.Laps <= 0 || p.Lap < d.cfg.Laps || p.Finished {
		return
	}
	p.Finished = true
	p.FinishTime = d.now
	if c != d.player {
		return
	}
	d.updateStandings()
	pos := d.positions[c.ID]
	d.record.AddResult(pos, len(d.cars))
	d.finished = true
	d.log.Info("race finished",
		log.String("race", d.raceID),
		log.Int("position", pos),
		log.Float64("time", d.now),
		log.Float64("bestLap", p.BestLapTime))
}

// updateStandings orders by laps, checkpoints, distance to the next checkpoint, id
func (d *Director) updateStandings() {
	rows := make([]Standing, 0, len(d.cars))
	for _, c := range d.cars {
		rows = append(rows, Standing{
			CarID:       c.ID,
			Name:        c.Name,
			Kind:        c.Kind,
			Lap:         c.Progress.Lap,
			Checkpoints: c.Progress.Checkpoints,
			Distance:    d.distanceToNext(c),
			BestLapTime: c.Progress.BestLapTime,
			Finished:    c.Progress.Finished,
		})
	}
	slices.SortFunc(rows, func(a, b Standing) int {
		if r := cmp.Compare(b.Lap, a.Lap); r != 0 {
			return r
		}
		if r := cmp.Compare(b.Checkpoints, a.Checkpoints); r != 0 {
			return r
		}
		if r := cmp.Compare(a.Distance, b.Distance); r != 0 {
			return r
		}
		return cmp.Compare(a.CarID, b.CarID)
	})
	clear(d.positions)
	for i := range rows {
		rows[i].Position = i + 1
		d.positions[rows[i].CarID] = i + 1
	}
	d.standings = rows
}

// resolveCollisions separates overlapping cars and exchanges the velocity
// components along the contact normal. Fast contacts count as hits.
func (d *Director) resolveCollisions() {
	const (
		iterations  = 4
		restitution = 0.5
	)
	minDist := 2 * d.cfg.CarRadius
	if minDist <= 0 || len(d.cars) < 2 {
		return
	}
	contacted := make(map[[2]int]bool)
	for range iterations {
		adjusted := false
		for i := range d.cars {
			for j := i + 1; j < len(d.cars); j++ {
				a, b := d.cars[i], d.cars[j]
				delta := b.Position.Sub(a.Position).Horizontal()
				dist := delta.Len()
				if dist >= minDist {
					continue
				}
				n := geom.V(1, 0, 0)
				if dist > 1e-9 {
					n = delta.Scale(1 / dist)
				}
				if !contacted[[2]int{i, j}] {
					contacted[[2]int{i, j}] = true
					d.powerups.Contact(a, b)
				}
				overlap := (minDist - dist) / 2
				a.Position = a.Position.Sub(n.Scale(overlap))
				b.Position = b.Position.Add(n.Scale(overlap))

				if vn := b.Velocity.Sub(a.Velocity).Dot(n); vn < 0 {
					impulse := -(1 + restitution) * vn / 2
					a.Velocity = a.Velocity.Sub(n.Scale(impulse))
					b.Velocity = b.Velocity.Add(n.Scale(impulse))
				}
				adjusted = true
			}
		}
		if !adjusted {
			break
		}
	}
}

// limitSpeeds clamps every car to its resolved max speed once the tick's effects
// are settled, so an expired boost takes the excess speed with it.
func (d *Director) limitSpeeds() {
	for _, c := range d.cars {
		if limit := c.Stat(model.MaxSpeed); c.Speed() > limit {
			d.vehicle.LimitSpeed(c, limit)
		}
	}
}
