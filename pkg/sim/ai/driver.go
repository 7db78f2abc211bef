package ai

import (
	"math"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/personality"
	"github.com/mpapenbr/racesim/pkg/sim/track"
)

const (
	WaypointRadius   = 8.0
	OvertakeOffset   = 4.0
	OvertakeLead     = 5.0
	FollowBase       = 10.0
	SwerveOffset     = 6.0
	DefendMaxOffset  = 4.0
	BrakeOvershoot   = 1.1
	SteerGain        = 2.0
	StoppedSpeed     = 1.0
	maxSteerAngleRef = 0.6
)

// World is the view a driver has on the race
type World interface {
	Line() *track.RacingLine
	Cars() []*car.Car
	Car(id string) *car.Car
	// Progress is a monotonic race progress value used for tie-breaks
	Progress(c *car.Car) float64
	Now() float64
}

// Driver controls one car
type Driver struct {
	car      *car.Car
	profile  personality.Profile
	stats    personality.EffectiveStats
	strategy *Strategy
	rng      Roller
	log      *log.Logger
	mistakes *MistakeInjector
	noErrors bool

	navIndex      int
	passed        int
	decisionTimer float64
	overtakeSide  float64
	swerveOffset  float64
}

type Option func(*Driver)

func WithLogger(l *log.Logger) Option {
	return func(d *Driver) {
		d.log = l
	}
}

// WithoutMistakes disables the mistake injector (used for the autopilot)
func WithoutMistakes() Option {
	return func(d *Driver) {
		d.noErrors = true
	}
}

func NewDriver(
	c *car.Car,
	profile personality.Profile,
	tier model.SkillTier,
	rng Roller,
	opts ...Option,
) *Driver {
	d := &Driver{
		car:      c,
		profile:  profile,
		strategy: StrategyFor(profile.Tag),
		rng:      rng,
		log:      log.Default().Named("sim.ai"),
		mistakes: NewMistakeInjector(rng),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.SetTier(tier)
	d.Reset()
	return d
}

func (d *Driver) Car() *car.Car { return d.car }

func (d *Driver) Stats() personality.EffectiveStats { return d.stats }

func (d *Driver) Tier() model.SkillTier { return d.stats.Tier }

// SetTier re-derives the car's base values from the immutable profile.
func (d *Driver) SetTier(t model.SkillTier) {
	d.stats = personality.Derive(d.profile, t)
	d.car.Base = d.stats.Base()
}

// NavIndex is the waypoint the driver is heading to
func (d *Driver) NavIndex() int { return d.navIndex }

// WaypointsPassed counts the waypoints reached since the last reset
func (d *Driver) WaypointsPassed() int { return d.passed }

func (d *Driver) Reset() {
	d.navIndex = 0
	d.passed = 0
	d.decisionTimer = DecisionInterval // decide on the first tick
	d.overtakeSide = 1
	d.swerveOffset = 0
	d.mistakes.Reset()
}

// Update runs the driver for one tick and sets the car's controls.
// Returns true if a new decision was taken in this tick.
func (d *Driver) Update(w World, dt float64) bool {
	line := w.Line()
	if line == nil || line.Empty() {
		// nothing to navigate, coast on the current heading
		d.car.Controls = car.Controls{}
		return false
	}
	d.advanceWaypoint(line)

	decided := false
	d.decisionTimer += dt
	if d.decisionTimer >= DecisionInterval {
		d.decisionTimer = math.Mod(d.decisionTimer, DecisionInterval)
		d.decide(w)
		decided = true
	}

	if !d.noErrors {
		if k := d.mistakes.Update(w.Now(), d.car, d.mistakeChance()); k != MistakeNone {
			d.log.Debug("mistake", log.String("car", d.car.ID), log.String("kind", k.String()))
		}
	}

	stats := d.car.Effective()
	target := d.targetPosition(w, line)
	speed := d.TargetSpeed(line, stats)
	d.car.Controls = Steer(d.car, target, speed)
	return decided
}

// mistakeChance is the tier chance scaled up for inconsistent drivers, a fully
// consistent driver keeps the tier chance and one with zero consistency doubles it.
func (d *Driver) mistakeChance() float64 {
	return d.stats.MistakeChance * (2 - d.stats.Traits.Consistency)
}

func (d *Driver) advanceWaypoint(line *track.RacingLine) {
	// bounded in case several waypoints are inside the radius
	for range line.Len() {
		if !line.Reached(d.navIndex, d.car.Position, WaypointRadius) {
			return
		}
		d.navIndex = line.Next(d.navIndex)
		d.passed++
	}
}

// Observe finds the nearest car ahead and behind
func (d *Driver) Observe(w World) (ahead, behind *car.Car, aheadDist, behindDist float64) {
	aheadDist, behindDist = NoCar, NoCar
	self := track.Subject{ID: d.car.ID, Position: d.car.Position, Progress: w.Progress(d.car)}
	for _, other := range w.Cars() {
		if other == d.car {
			continue
		}
		dist := d.car.Position.Dist(other.Position)
		rel := w.Line().Relation(self, track.Subject{
			ID: other.ID, Position: other.Position, Progress: w.Progress(other),
		})
		switch rel {
		case track.Ahead:
			if dist < aheadDist {
				ahead, aheadDist = other, dist
			}
		case track.Behind:
			if dist < behindDist {
				behind, behindDist = other, dist
			}
		case track.Beside:
		}
	}
	return ahead, behind, aheadDist, behindDist
}

func (d *Driver) decide(w World) {
	ahead, behind, aheadDist, behindDist := d.Observe(w)
	dec := d.strategy.Decide(Situation{
		Ahead:  aheadDist,
		Behind: behindDist,
		Traits: d.stats.Traits,
	}, d.rng)
	// a stopped car cannot be followed
	if dec == model.DecisionFollow && ahead != nil && ahead.Speed() < StoppedSpeed {
		dec = model.DecisionOvertake
	}

	d.car.TargetID = ""
	switch dec {
	case model.DecisionOvertake, model.DecisionRam, model.DecisionFollow:
		if ahead != nil {
			d.car.TargetID = ahead.ID
		}
	case model.DecisionDefend, model.DecisionBrakeCheck:
		if behind != nil {
			d.car.TargetID = behind.ID
		}
	case model.DecisionRace, model.DecisionRandomSwerve:
	}
	switch dec {
	case model.DecisionOvertake:
		d.overtakeSide = 1
		if d.rng.Float64() < 0.5 {
			d.overtakeSide = -1
		}
	case model.DecisionRandomSwerve:
		d.swerveOffset = (d.rng.Float64()*2 - 1) * SwerveOffset
	default:
	}
	if dec != d.car.Decision && d.log.Enabled(log.DebugLevel) {
		d.log.Debug("decision",
			log.String("car", d.car.ID),
			log.String("from", d.car.Decision.String()),
			log.String("to", dec.String()),
			log.String("target", d.car.TargetID))
	}
	d.car.Decision = dec
}

// targetPosition derives the navigation target from the current decision.
// A missing target car falls back to the waypoint.
func (d *Driver) targetPosition(w World, line *track.RacingLine) geom.Vec3 {
	wp := line.At(d.navIndex).Position
	dir := line.Direction(line.Prev(d.navIndex))
	var target *car.Car
	if d.car.TargetID != "" {
		target = w.Car(d.car.TargetID)
	}

	switch d.car.Decision {
	case model.DecisionOvertake:
		if target == nil {
			return wp
		}
		fwd := target.Forward()
		return target.Position.
			Add(fwd.Right().Scale(d.overtakeSide * OvertakeOffset)).
			Add(fwd.Scale(OvertakeLead))
	case model.DecisionDefend:
		if target == nil {
			return wp
		}
		// move onto the follower's line
		lateral := target.Position.Sub(d.car.Position).Dot(dir.Right())
		return wp.Add(dir.Right().Scale(geom.Clamp(lateral, -DefendMaxOffset, DefendMaxOffset)))
	case model.DecisionFollow:
		if target == nil {
			return wp
		}
		gap := FollowBase * (2 - d.stats.Traits.Consistency)
		return target.Position.Sub(target.Forward().Scale(gap))
	case model.DecisionRam:
		if target == nil {
			return wp
		}
		return target.Position
	case model.DecisionRandomSwerve:
		return wp.Add(dir.Right().Scale(d.swerveOffset))
	case model.DecisionRace, model.DecisionBrakeCheck:
		return wp
	default:
		return wp
	}
}

// TargetSpeed is the speed the driver aims for at the current waypoint
func (d *Driver) TargetSpeed(line *track.RacingLine, stats model.Stats) float64 {
	return line.SpeedShare(d.navIndex) * stats[model.MaxSpeed] *
		stats[model.TargetSpeed] * SpeedMultiplier(d.car.Decision)
}

// Steer computes the controls to chase target at the given speed: full throttle
// below the target speed, brake above target*1.1, coast in between.
func Steer(c *car.Car, target geom.Vec3, speed float64) car.Controls {
	ctl := car.Controls{}
	to := target.Sub(c.Position).Horizontal()
	if to.LenSq() > 1e-9 {
		diff := geom.WrapAngle(to.Yaw() - c.Yaw)
		ctl.Steer = geom.Clamp(diff/maxSteerAngleRef*SteerGain, -1, 1)
	}
	cur := c.Speed()
	switch {
	case cur < speed:
		ctl.Throttle = 1
	case cur > speed*BrakeOvershoot:
		ctl.Brake = true
	}
	return ctl
}
