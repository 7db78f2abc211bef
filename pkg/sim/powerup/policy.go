package powerup

import (
	"math"

	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/track"
)

// Usage describes how trigger happy (Probability) and how picky (Timing) a
// personality is with an item.
type Usage struct {
	Probability float64
	Timing      model.Timing
}

const (
	StrategicRange = 30.0
	CombatRange    = 10.0
	DefensiveRange = 15.0
	RandomChance   = 0.3
	DesperateShare = 0.7 // positions beyond this share of the field are desperate
)

//nolint:gochecknoglobals,mnd,lll // tuning table
var usageTable = map[model.PersonalityTag]map[model.PowerUpType]Usage{
	model.Aggressive: {
		model.PowerUpSpeedBoost: {0.9, model.TimingImmediate},
		model.PowerUpShield:     {0.5, model.TimingCombat},
		model.PowerUpMissile:    {0.95, model.TimingCombat},
		model.PowerUpOilSlick:   {0.6, model.TimingDefensive},
		model.PowerUpNitro:      {0.9, model.TimingOvertake},
		model.PowerUpEMP:        {0.8, model.TimingCombat},
	},
	model.Tactical: {
		model.PowerUpSpeedBoost: {0.7, model.TimingStrategic},
		model.PowerUpShield:     {0.7, model.TimingDefensive},
		model.PowerUpMissile:    {0.8, model.TimingOptimal},
		model.PowerUpOilSlick:   {0.8, model.TimingDefensive},
		model.PowerUpNitro:      {0.7, model.TimingStrategic},
		model.PowerUpEMP:        {0.7, model.TimingOptimal},
	},
	model.Defensive: {
		model.PowerUpSpeedBoost: {0.5, model.TimingEscape},
		model.PowerUpShield:     {0.9, model.TimingDefensive},
		model.PowerUpMissile:    {0.5, model.TimingDesperate},
		model.PowerUpOilSlick:   {0.9, model.TimingBlocking},
		model.PowerUpNitro:      {0.5, model.TimingEscape},
		model.PowerUpEMP:        {0.6, model.TimingDefensive},
	},
	model.Unpredictable: {
		model.PowerUpSpeedBoost: {0.6, model.TimingRandom},
		model.PowerUpShield:     {0.5, model.TimingRandom},
		model.PowerUpMissile:    {0.7, model.TimingRandom},
		model.PowerUpOilSlick:   {0.6, model.TimingRandom},
		model.PowerUpNitro:      {0.6, model.TimingRandom},
		model.PowerUpEMP:        {0.6, model.TimingDesperate},
	},
	model.Professional: {
		model.PowerUpSpeedBoost: {0.8, model.TimingStrategic},
		model.PowerUpShield:     {0.8, model.TimingDefensive},
		model.PowerUpMissile:    {0.85, model.TimingOptimal},
		model.PowerUpOilSlick:   {0.7, model.TimingBlocking},
		model.PowerUpNitro:      {0.8, model.TimingOvertake},
		model.PowerUpEMP:        {0.75, model.TimingOptimal},
	},
}

// UsageFor looks up the usage entry. Unknown combinations use the item at once.
func UsageFor(tag model.PersonalityTag, t model.PowerUpType) Usage {
	if byType, ok := usageTable[tag]; ok {
		if u, ok := byType[t]; ok {
			return u
		}
	}
	return Usage{Probability: 0.5, Timing: model.TimingImmediate}
}

// Env is what the usage policy needs to know about the race
type Env interface {
	Cars() []*car.Car
	Line() *track.RacingLine
	// Standing returns the race position (1 based) and the number of cars
	Standing(c *car.Car) (pos, field int)
	Relation(self, other *car.Car) track.Relation
}

// situation is computed once per usage check
type situation struct {
	nearest       float64 // distance to the nearest car
	nearestBehind float64
	pos, field    int
	goodTrackPos  bool // not heading into a braking zone
}

func observe(env Env, c *car.Car) situation {
	s := situation{nearest: math.Inf(1), nearestBehind: math.Inf(1)}
	for _, other := range env.Cars() {
		if other == c {
			continue
		}
		d := c.Position.Dist(other.Position)
		s.nearest = math.Min(s.nearest, d)
		if env.Relation(c, other) == track.Behind {
			s.nearestBehind = math.Min(s.nearestBehind, d)
		}
	}
	s.pos, s.field = env.Standing(c)
	if line := env.Line(); line != nil && !line.Empty() {
		s.goodTrackPos = !line.At(line.Nearest(c.Position)).BrakingZone
	}
	return s
}

// timingMet evaluates the timing predicate. The random timing rolls on its own.
func timingMet(t model.Timing, c *car.Car, s situation, r Roller) bool {
	favorable := s.field > 0 && s.pos <= (s.field+1)/2
	switch t {
	case model.TimingImmediate:
		return true
	case model.TimingStrategic:
		return s.nearest < StrategicRange && s.goodTrackPos
	case model.TimingCombat:
		return s.nearest < CombatRange
	case model.TimingDefensive:
		return s.nearestBehind < DefensiveRange
	case model.TimingEscape:
		return s.field > 0 && s.pos > (s.field+1)/2
	case model.TimingOvertake:
		return c.Decision == model.DecisionOvertake
	case model.TimingOptimal:
		return favorable && c.TargetID != "" && s.goodTrackPos
	case model.TimingRandom:
		return r.Float64() < RandomChance
	case model.TimingDesperate:
		return s.field > 0 && float64(s.pos) > DesperateShare*float64(s.field)
	case model.TimingBlocking:
		return c.Decision == model.DecisionDefend || c.Decision == model.DecisionRace
	default:
		return false
	}
}

// ShouldUse is the two stage check: roll against the probability, then the timing.
func ShouldUse(env Env, c *car.Car, r Roller) bool {
	if c.HeldPowerUp == model.PowerUpNone {
		return false
	}
	u := UsageFor(c.Personality, c.HeldPowerUp)
	if r.Float64() >= u.Probability {
		return false
	}
	return timingMet(u.Timing, c, observe(env, c), r)
}
