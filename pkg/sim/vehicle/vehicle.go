// Package vehicle integrates the car dynamics for one tick.
package vehicle

import (
	"math"

	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
)

//nolint:gochecknoglobals // tuning values
var DefaultParams = Params{
	MaxSteerAngle:     0.6,
	SteerRate:         6,
	WheelBase:         2.6,
	AccelerationScale: 20,
	BrakeScale:        3,
	MinBrakeDamping:   0.5,
	Drag:              0.15,
	GripScale:         8,
	ReverseShare:      0.3,
	TiltThreshold:     0.35,
	Stabilize:         8,
	AngularDamping:    2,
	RollFactor:        0.002,
	PitchFactor:       0.002,
}

type Params struct {
	MaxSteerAngle     float64 // rad
	SteerRate         float64 // 1/s, share of the steering gap closed per second
	WheelBase         float64
	AccelerationScale float64 // acceleration stat 1.0 gives this many u/s²
	BrakeScale        float64
	MinBrakeDamping   float64 // lower bound of the per tick damping factor
	Drag              float64
	GripScale         float64
	ReverseShare      float64 // reverse speed limit as share of max speed
	TiltThreshold     float64 // rad of roll/pitch before the upright torque kicks in
	Stabilize         float64
	AngularDamping    float64
	RollFactor        float64
	PitchFactor       float64
}

type Model struct {
	params Params
}

type Option func(*Model)

func WithParams(p Params) Option {
	return func(m *Model) {
		m.params = p
	}
}

func New(opts ...Option) *Model {
	m := &Model{params: DefaultParams}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) Params() Params {
	return m.params
}

// Step advances c by dt using its current controls and the resolved stats.
//
//nolint:funlen // one integration step
func (m *Model) Step(c *car.Car, stats model.Stats, dt float64) {
	if dt <= 0 {
		return
	}
	p := &m.params
	ctl := c.Controls

	// rate limited steering
	target := geom.Clamp(ctl.Steer, -1, 1) * p.MaxSteerAngle * stats[model.SteerAuthority]
	c.Steer = geom.Lerp(c.Steer, target, math.Min(1, p.SteerRate*dt))

	forward := c.Forward()
	vForward := c.Velocity.Dot(forward)
	yawRate := vForward / p.WheelBase * math.Tan(c.Steer)
	c.Yaw = geom.WrapAngle(c.Yaw + yawRate*dt)

	// forces along the new heading
	forward = c.Forward()
	right := forward.Right()
	oldVel := c.Velocity

	throttle := geom.Clamp(ctl.Throttle, -1, 1)
	accel := throttle * stats[model.Acceleration] * p.AccelerationScale *
		stats[model.ThrottleAuthority]
	c.Velocity = c.Velocity.Add(forward.Scale(accel * dt))

	if ctl.Brake {
		damp := geom.Clamp(1-stats[model.BrakeForce]*p.BrakeScale*dt, p.MinBrakeDamping, 1)
		c.Velocity = c.Velocity.Scale(damp)
	}
	c.Velocity = c.Velocity.Scale(math.Max(0, 1-p.Drag*dt))

	lateral := c.Velocity.Dot(right)
	c.Velocity = c.Velocity.Sub(right.Scale(lateral * math.Min(1, stats[model.Grip]*p.GripScale*dt)))

	m.limitSpeed(c, stats[model.MaxSpeed])

	c.Position = c.Position.Add(c.Velocity.Scale(dt))

	// roll from cornering, pitch from longitudinal load
	lateralAccel := c.Speed() * yawRate
	longAccel := c.Velocity.Sub(oldVel).Dot(forward) / dt
	c.RollRate -= lateralAccel * p.RollFactor * dt
	c.PitchRate -= longAccel * p.PitchFactor * dt
	m.stabilize(c, dt)
}

// LimitSpeed clamps the velocity to the given max speed, reverse to its share of it.
func (m *Model) LimitSpeed(c *car.Car, maxSpeed float64) {
	m.limitSpeed(c, maxSpeed)
}

func (m *Model) limitSpeed(c *car.Car, maxSpeed float64) {
	limit := maxSpeed
	if c.ForwardSpeed() < 0 {
		limit = maxSpeed * m.params.ReverseShare
	}
	if s := c.Speed(); s > limit {
		if limit <= 0 {
			c.Velocity = geom.Zero
			return
		}
		c.Velocity = c.Velocity.Scale(limit / s)
	}
}

// stabilize applies the upright torque and angular damping
func (m *Model) stabilize(c *car.Car, dt float64) {
	p := &m.params
	if math.Abs(c.Roll) > p.TiltThreshold {
		c.RollRate -= c.Roll * p.Stabilize * dt
	}
	if math.Abs(c.Pitch) > p.TiltThreshold {
		c.PitchRate -= c.Pitch * p.Stabilize * dt
	}
	damp := math.Max(0, 1-p.AngularDamping*dt)
	c.RollRate *= damp
	c.PitchRate *= damp
	c.Roll += c.RollRate * dt
	c.Pitch += c.PitchRate * dt
}
