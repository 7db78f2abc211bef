// Package track contains the racing line of a track and the helpers to navigate it.
package track

import (
	"errors"
	"math"

	"github.com/mpapenbr/racesim/pkg/geom"
)

var ErrNoWaypoints = errors.New("racing line has no waypoints")

const (
	DefaultMaxSpeed       = 40.0
	DefaultMinCornerSpeed = 12.0
	DefaultBrakeMargin    = 6.0
	BrakingZoneShare      = 0.85
)

type Waypoint struct {
	Position    geom.Vec3
	TargetSpeed float64
	BrakingZone bool
}

// RacingLine is a cyclic sequence of waypoints. It is never modified after creation.
// The zero value is an empty line on which navigation is a no-op.
type RacingLine struct {
	name           string
	waypoints      []Waypoint
	maxSpeed       float64
	minCornerSpeed float64
	brakeMargin    float64
	length         float64
	stations       []float64 // distance from waypoint 0 to each waypoint along the line
}

type Option func(*RacingLine)

func WithName(name string) Option {
	return func(l *RacingLine) {
		l.name = name
	}
}

func WithMaxSpeed(v float64) Option {
	return func(l *RacingLine) {
		if v > 0 {
			l.maxSpeed = v
		}
	}
}

func WithMinCornerSpeed(v float64) Option {
	return func(l *RacingLine) {
		if v > 0 {
			l.minCornerSpeed = v
		}
	}
}

func WithBrakeMargin(v float64) Option {
	return func(l *RacingLine) {
		if v > 0 {
			l.brakeMargin = v
		}
	}
}

// NewRacingLine builds a racing line with computed target speeds from raw points.
func NewRacingLine(points []geom.Vec3, opts ...Option) (*RacingLine, error) {
	if len(points) == 0 {
		return nil, ErrNoWaypoints
	}
	l := &RacingLine{
		maxSpeed:       DefaultMaxSpeed,
		minCornerSpeed: DefaultMinCornerSpeed,
		brakeMargin:    DefaultBrakeMargin,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.waypoints = make([]Waypoint, len(points))
	for i, p := range points {
		l.waypoints[i] = Waypoint{Position: p.Horizontal()}
	}
	l.computeSpeeds()
	l.stations = make([]float64, len(l.waypoints))
	for i := range l.waypoints {
		l.stations[i] = l.length
		l.length += l.waypoints[i].Position.Dist(l.waypoints[l.Next(i)].Position)
	}
	return l, nil
}

// Generate subdivides the closed control polygon with a Catmull-Rom spline,
// placing waypoints roughly every spacing units.
func Generate(control []geom.Vec3, spacing float64, opts ...Option) (*RacingLine, error) {
	n := len(control)
	if n == 0 {
		return nil, ErrNoWaypoints
	}
	if n < 3 || spacing <= 0 {
		return NewRacingLine(control, opts...)
	}
	points := make([]geom.Vec3, 0, n*4)
	for i := range n {
		p0 := control[(i-1+n)%n]
		p1 := control[i]
		p2 := control[(i+1)%n]
		p3 := control[(i+2)%n]
		steps := max(1, int(math.Round(p1.Dist(p2)/spacing)))
		for s := range steps {
			points = append(points, catmullRom(p0, p1, p2, p3, float64(s)/float64(steps)))
		}
	}
	return NewRacingLine(points, opts...)
}

func catmullRom(p0, p1, p2, p3 geom.Vec3, t float64) geom.Vec3 {
	t2 := t * t
	t3 := t2 * t
	f := func(a, b, c, d float64) float64 {
		return 0.5 * (2*b + (-a+c)*t + (2*a-5*b+4*c-d)*t2 + (-a+3*b-3*c+d)*t3)
	}
	return geom.Vec3{
		X: f(p0.X, p1.X, p2.X, p3.X),
		Y: f(p0.Y, p1.Y, p2.Y, p3.Y),
		Z: f(p0.Z, p1.Z, p2.Z, p3.Z),
	}
}

// computeSpeeds derives the target speed from the turn angle at each waypoint and
// lowers the speeds before slow corners so they can be reached by braking.
func (l *RacingLine) computeSpeeds() {
	n := len(l.waypoints)
	for i := range l.waypoints {
		angle := 0.0
		if n > 2 {
			in := l.waypoints[i].Position.Sub(l.waypoints[l.Prev(i)].Position)
			out := l.waypoints[l.Next(i)].Position.Sub(l.waypoints[i].Position)
			angle = math.Abs(geom.WrapAngle(out.Yaw() - in.Yaw()))
		}
		l.waypoints[i].TargetSpeed = math.Max(l.minCornerSpeed, l.maxSpeed*(1-angle/math.Pi))
	}
	// two passes around the cycle settle the backwards propagation
	for range 2 {
		for i := n - 1; i >= 0; i-- {
			next := l.waypoints[l.Next(i)].TargetSpeed
			if l.waypoints[i].TargetSpeed > next+l.brakeMargin {
				l.waypoints[i].TargetSpeed = next + l.brakeMargin
			}
		}
	}
	for i := range l.waypoints {
		l.waypoints[i].BrakingZone = l.waypoints[l.Next(i)].TargetSpeed <
			BrakingZoneShare*l.waypoints[i].TargetSpeed
	}
}

func (l *RacingLine) Name() string { return l.name }

func (l *RacingLine) Len() int { return len(l.waypoints) }

func (l *RacingLine) Empty() bool { return len(l.waypoints) == 0 }

func (l *RacingLine) MaxSpeed() float64 { return l.maxSpeed }

// Length is the length of one lap along the waypoints
func (l *RacingLine) Length() float64 { return l.length }

// At returns the waypoint at index i (wrapped).
func (l *RacingLine) At(i int) Waypoint {
	if l.Empty() {
		return Waypoint{}
	}
	return l.waypoints[l.wrap(i)]
}

// Waypoints returns a copy of the waypoints
func (l *RacingLine) Waypoints() []Waypoint {
	ret := make([]Waypoint, len(l.waypoints))
	copy(ret, l.waypoints)
	return ret
}

func (l *RacingLine) Next(i int) int { return l.Advance(i, 1) }

func (l *RacingLine) Prev(i int) int { return l.Advance(i, -1) }

// Advance moves the index n steps along the cycle
func (l *RacingLine) Advance(i, n int) int {
	if l.Empty() {
		return 0
	}
	return l.wrap(i + n)
}

func (l *RacingLine) wrap(i int) int {
	n := len(l.waypoints)
	return ((i % n) + n) % n
}

// SpeedShare is the target speed of waypoint i relative to the line's max speed
func (l *RacingLine) SpeedShare(i int) float64 {
	if l.Empty() || l.maxSpeed <= 0 {
		return 1
	}
	return l.At(i).TargetSpeed / l.maxSpeed
}

// Direction is the unit vector from waypoint i to its successor
func (l *RacingLine) Direction(i int) geom.Vec3 {
	if l.Len() < 2 {
		return geom.Forward(0)
	}
	return l.At(i + 1).Position.Sub(l.At(i).Position).Normalize()
}

// Nearest returns the index of the waypoint closest to pos, -1 for an empty line.
func (l *RacingLine) Nearest(pos geom.Vec3) int {
	best, bestDist := -1, math.Inf(1)
	for i := range l.waypoints {
		if d := l.waypoints[i].Position.DistSq(pos); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Locate projects pos onto the closest segment of the line. It returns the index of
// the segment's start waypoint and the distance along the line from waypoint 0 to the
// projected point. An empty line yields -1.
func (l *RacingLine) Locate(pos geom.Vec3) (seg int, station float64) {
	if l.Len() < 2 {
		return l.Nearest(pos), 0
	}
	p := pos.Horizontal()
	best := math.Inf(1)
	for i := range l.waypoints {
		a := l.waypoints[i].Position
		ab := l.waypoints[l.Next(i)].Position.Sub(a)
		t := 0.0
		if lsq := ab.LenSq(); lsq > 0 {
			t = geom.Clamp(p.Sub(a).Dot(ab)/lsq, 0, 1)
		}
		if d := p.DistSq(a.Add(ab.Scale(t))); d < best {
			best, seg, station = d, i, l.stations[i]+t*ab.Len()
		}
	}
	return seg, station
}

// Reached reports whether pos counts as having passed waypoint i: either inside the
// radius or beyond the plane through the waypoint facing the direction of travel
// (within a corridor of three radii).
func (l *RacingLine) Reached(i int, pos geom.Vec3, radius float64) bool {
	if l.Empty() {
		return false
	}
	wp := l.At(i).Position
	d := pos.Horizontal().Sub(wp)
	if d.Len() <= radius {
		return true
	}
	if l.Len() < 2 {
		return false
	}
	in := wp.Sub(l.At(i - 1).Position).Normalize()
	return d.Dot(in) >= 0 && d.Len() <= 3*radius
}

// SpawnPoints returns pickup locations at every n-th waypoint, alternating between
// the left side, the middle and the right side of the line.
func (l *RacingLine) SpawnPoints(every int, lateral float64) []geom.Vec3 {
	if l.Empty() {
		return nil
	}
	every = max(1, every)
	ret := []geom.Vec3{}
	for i, k := 0, 0; i < l.Len(); i, k = i+every, k+1 {
		mid := l.At(i).Position.Lerp(l.At(i+1).Position, 0.5)
		side := float64(k%3 - 1)
		ret = append(ret, mid.Add(l.Direction(i).Right().Scale(side*lateral)))
	}
	return ret
}

type GridSlot struct {
	Position geom.Vec3
	Yaw      float64
}

const (
	gridRowGap  = 7.0
	gridLateral = 3.0
)

// Grid returns n start positions in rows of two on the segment leading to waypoint 0,
// all facing waypoint 0.
func (l *RacingLine) Grid(n int) []GridSlot {
	ret := make([]GridSlot, 0, n)
	start := l.At(0).Position
	dir := geom.Forward(0)
	if l.Len() > 1 {
		dir = start.Sub(l.At(-1).Position).Normalize()
	}
	right := dir.Right()
	for i := range n {
		row := float64(i/2 + 1)
		side := -1.0
		if i%2 == 1 {
			side = 1
		}
		pos := start.Sub(dir.Scale(row * gridRowGap)).Add(right.Scale(side * gridLateral))
		ret = append(ret, GridSlot{Position: pos, Yaw: dir.Yaw()})
	}
	return ret
}
