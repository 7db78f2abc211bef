// Package car contains the car record shared by every simulation component.
package car

import (
	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/modifier"
)

// ShieldKey is the stack key of an active shield. Its Charges are the hits left.
const ShieldKey = "powerup.shield"

// Controls are the inputs for one tick. Throttle and Steer are in [-1,1].
type Controls struct {
	Throttle float64
	Steer    float64
	Brake    bool
	UseItem  bool
}

type Progress struct {
	Lap         int     // completed laps
	Next        int     // index of the next checkpoint to pass
	Passed      int     // checkpoints passed in the current lap
	Checkpoints int     // checkpoints passed in the whole race
	Started     bool    // start line crossed
	LapStart    float64 // race time when the current lap started
	LastLapTime float64
	BestLapTime float64
	Finished    bool
	FinishTime  float64
}

type Car struct {
	ID          string
	Kind        model.CarKind
	Name        string
	Personality model.PersonalityTag // empty for the player
	Color       string

	Position  geom.Vec3
	Velocity  geom.Vec3
	Yaw       float64
	Steer     float64 // actual front wheel angle, chases the input
	Roll      float64
	Pitch     float64
	RollRate  float64
	PitchRate float64

	Controls Controls
	Base     model.Stats
	Effects  *modifier.Stack

	HeldPowerUp model.PowerUpType
	Progress    Progress

	Decision model.Decision
	TargetID string // car currently tracked by the decision engine, lookup only

	spawnPos geom.Vec3
	spawnYaw float64
}

type Option func(*Car)

func WithName(name string) Option {
	return func(c *Car) {
		c.Name = name
	}
}

func WithPersonality(tag model.PersonalityTag, color string) Option {
	return func(c *Car) {
		c.Personality = tag
		c.Color = color
	}
}

func WithSpawn(pos geom.Vec3, yaw float64) Option {
	return func(c *Car) {
		c.spawnPos = pos
		c.spawnYaw = yaw
		c.Position = pos
		c.Yaw = yaw
	}
}

func New(id string, kind model.CarKind, base model.Stats, opts ...Option) *Car {
	c := &Car{
		ID:      id,
		Kind:    kind,
		Name:    id,
		Base:    base,
		Effects: modifier.NewStack(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Speed is always derived from the velocity vector
func (c *Car) Speed() float64 {
	return c.Velocity.Len()
}

func (c *Car) Forward() geom.Vec3 {
	return geom.Forward(c.Yaw)
}

// ForwardSpeed is the signed velocity component along the heading
func (c *Car) ForwardSpeed() float64 {
	return c.Velocity.Dot(c.Forward())
}

// Effective resolves the base stats against the active effects
func (c *Car) Effective() model.Stats {
	return c.Effects.Resolve(c.Base)
}

func (c *Car) Stat(f model.StatField) float64 {
	return c.Effective()[f]
}

func (c *Car) IsAI() bool {
	return c.Kind == model.CarKindAI
}

func (c *Car) ShieldActive() bool {
	return c.Effects.Has(ShieldKey)
}

// AbsorbHit consumes one shield charge if a shield is up.
func (c *Car) AbsorbHit() bool {
	ok, _ := c.Effects.ConsumeCharge(ShieldKey)
	return ok
}

// SetSpawn changes the place the car returns to on Reset
func (c *Car) SetSpawn(pos geom.Vec3, yaw float64) {
	c.spawnPos = pos
	c.spawnYaw = yaw
}

// Reset puts the car back to its spawn and clears every transient state.
func (c *Car) Reset() {
	c.Position = c.spawnPos
	c.Yaw = c.spawnYaw
	c.Velocity = geom.Zero
	c.Steer = 0
	c.Roll, c.Pitch, c.RollRate, c.PitchRate = 0, 0, 0, 0
	c.Controls = Controls{}
	c.Effects.Clear()
	c.HeldPowerUp = model.PowerUpNone
	c.Progress = Progress{}
	c.Decision = model.DecisionRace
	c.TargetID = ""
}
