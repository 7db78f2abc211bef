package track

import (
	"math"

	"github.com/mpapenbr/racesim/pkg/geom"
)

// LateralBand is the distance along the dominant axis below which two cars are
// considered side by side
const LateralBand = 2.0

type Relation int

const (
	Behind Relation = iota - 1
	Beside
	Ahead
)

func (r Relation) String() string {
	switch r {
	case Behind:
		return "behind"
	case Ahead:
		return "ahead"
	default:
		return "beside"
	}
}

// Subject is a car as seen by the ahead/behind test
type Subject struct {
	ID       string
	Position geom.Vec3
	Progress float64 // race progress, e.g. checkpoints passed plus fraction
}

// Relation tells where other is seen from self. When both cars are on the same
// segment of the racing line their positions are compared along the dominant axis of
// that segment, otherwise by their distance along the line (the shorter way around).
// Within the lateral band the race progress decides, then the id, so the result is
// never Beside for two different cars. Relation(a, b) is always -Relation(b, a).
func (l *RacingLine) Relation(self, other Subject) Relation {
	if r := l.trackRelation(self.Position, other.Position); r != Beside {
		return r
	}
	switch {
	case other.Progress > self.Progress:
		return Ahead
	case other.Progress < self.Progress:
		return Behind
	case other.ID < self.ID:
		return Ahead
	case other.ID > self.ID:
		return Behind
	default:
		return Beside
	}
}

func (l *RacingLine) trackRelation(self, other geom.Vec3) Relation {
	if l.Len() < 2 {
		return bandRelation(axisDelta(geom.Forward(0), self, other))
	}
	selfSeg, selfStation := l.Locate(self)
	otherSeg, otherStation := l.Locate(other)
	if selfSeg == otherSeg {
		return bandRelation(axisDelta(l.Direction(selfSeg), self, other))
	}
	half := l.length / 2
	delta := otherStation - selfStation
	switch {
	case delta > half:
		delta -= l.length
	case delta < -half:
		delta += l.length
	}
	if math.Abs(delta) == half {
		// exactly opposite on the lap
		return Beside
	}
	return bandRelation(delta)
}

// axisDelta is the offset of other from self along the dominant axis of dir
func axisDelta(dir, self, other geom.Vec3) float64 {
	if math.Abs(dir.X) >= math.Abs(dir.Z) {
		return (other.X - self.X) * geom.Sign(dir.X)
	}
	return (other.Z - self.Z) * geom.Sign(dir.Z)
}

func bandRelation(delta float64) Relation {
	switch {
	case delta > LateralBand:
		return Ahead
	case delta < -LateralBand:
		return Behind
	default:
		return Beside
	}
}
