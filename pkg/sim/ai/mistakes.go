package ai

import (
	"math"

	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/modifier"
)

const (
	MistakeKey          = "mistake"
	MistakeBaseInterval = 2.0
)

type MistakeKind int

const (
	MistakeNone MistakeKind = iota
	MistakeBrakeLate
	MistakeOversteer
	MistakeUndersteer
	MistakeThrottle
)

func (k MistakeKind) String() string {
	switch k {
	case MistakeBrakeLate:
		return "brake_late"
	case MistakeOversteer:
		return "oversteer"
	case MistakeUndersteer:
		return "understeer"
	case MistakeThrottle:
		return "throttle_error"
	default:
		return "none"
	}
}

type mistakeEffect struct {
	field    model.StatField
	factor   float64
	duration float64
}

//nolint:gochecknoglobals,mnd // tuning table
var mistakeEffects = map[MistakeKind]mistakeEffect{
	MistakeBrakeLate:  {model.TargetSpeed, 1.3, 1.0},
	MistakeOversteer:  {model.SteerAuthority, 1.5, 0.5},
	MistakeUndersteer: {model.SteerAuthority, 0.6, 0.7},
	MistakeThrottle:   {model.TargetSpeed, 0.7, 0.8},
}

// MistakeInjector schedules random driving errors. The perturbation is a stack entry
// so it is undone by expiry inside the tick loop.
type MistakeInjector struct {
	rng      Roller
	next     float64
	interval float64
}

func NewMistakeInjector(rng Roller) *MistakeInjector {
	return &MistakeInjector{rng: rng, next: math.NaN(), interval: MistakeBaseInterval}
}

// Next is the race time of the next scheduled mistake
func (m *MistakeInjector) Next() float64 {
	return m.next
}

// Reset drops the schedule, the next Update schedules anew
func (m *MistakeInjector) Reset() {
	m.next = math.NaN()
}

// Schedule computes the time of the next mistake. A chance of zero never fires.
func (m *MistakeInjector) Schedule(now, chance float64) {
	if chance <= 0 {
		m.next = math.Inf(1)
		return
	}
	m.next = now + m.interval*(0.5+m.rng.Float64())/chance
}

// Update fires a mistake if it is due. chance is the tier mistake chance and is
// scaled by the car's MistakeRate.
func (m *MistakeInjector) Update(now float64, c *car.Car, chance float64) MistakeKind {
	chance *= c.Stat(model.MistakeRate)
	if math.IsNaN(m.next) {
		m.Schedule(now, chance)
		return MistakeNone
	}
	if now < m.next {
		return MistakeNone
	}
	kind := MistakeKind(1 + int(m.rng.Float64()*4))
	Apply(c, kind)
	m.Schedule(now, chance)
	return kind
}

// Apply installs the perturbation of kind on the car, replacing a running mistake.
func Apply(c *car.Car, kind MistakeKind) {
	eff, ok := mistakeEffects[kind]
	if !ok {
		return
	}
	c.Effects.Apply(modifier.Entry{
		Key:      MistakeKey,
		Source:   kind.String(),
		Duration: eff.duration,
		Mul:      map[model.StatField]float64{eff.field: eff.factor},
	})
}
