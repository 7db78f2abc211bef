package ai

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
)

func sampleCar() *car.Car {
	return car.New("ai-1", model.CarKindAI, model.Stats{41, 1, 1, 1, 1, 1, 1, 1})
}

func TestMistakeInjector_ScheduleAndFire(t *testing.T) {
	// schedule roll, kind roll, reschedule roll
	r := rolls{0.5, 0.3, 0.5}
	m := NewMistakeInjector(&r)
	c := sampleCar()

	assert.Equal(t, MistakeNone, m.Update(10, c, 0.1))
	assert.InDelta(t, 10+MistakeBaseInterval/0.1, m.Next(), 1e-9)
	assert.Equal(t, MistakeNone, m.Update(29.9, c, 0.1))

	kind := m.Update(30, c, 0.1)
	assert.Equal(t, MistakeOversteer, kind)
	assert.InDelta(t, 1.5, c.Stat(model.SteerAuthority), 1e-12)
	assert.InDelta(t, 50, m.Next(), 1e-9)

	// reverted exactly after the window
	for range 31 {
		c.Effects.Advance(1.0 / 60)
	}
	assert.Equal(t, c.Base, c.Effective())
}

func TestMistakeInjector_TierScaling(t *testing.T) {
	novice := NewMistakeInjector(rand.New(rand.NewPCG(5, 5)))
	legend := NewMistakeInjector(rand.New(rand.NewPCG(5, 5)))
	for range 20 {
		novice.Schedule(0, 0.10)
		legend.Schedule(0, 0.01)
		assert.InDelta(t, 10, legend.Next()/novice.Next(), 1e-9)
	}
}

func TestMistakeInjector_ZeroChanceNeverFires(t *testing.T) {
	m := NewMistakeInjector(rand.New(rand.NewPCG(1, 1)))
	c := sampleCar()
	m.Update(0, c, 0)
	assert.True(t, math.IsInf(m.Next(), 1))
	assert.Equal(t, MistakeNone, m.Update(1e9, c, 0))
}

func TestMistakeInjector_MistakeRateScales(t *testing.T) {
	r := rolls{0.5}
	m := NewMistakeInjector(&r)
	c := sampleCar()
	c.Base[model.MistakeRate] = 2
	m.Update(0, c, 0.1)
	assert.InDelta(t, MistakeBaseInterval/0.2, m.Next(), 1e-9)
}

func TestApply_Kinds(t *testing.T) {
	tests := []struct {
		kind  MistakeKind
		field model.StatField
		want  float64
	}{
		{MistakeBrakeLate, model.TargetSpeed, 1.3},
		{MistakeOversteer, model.SteerAuthority, 1.5},
		{MistakeUndersteer, model.SteerAuthority, 0.6},
		{MistakeThrottle, model.TargetSpeed, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			c := sampleCar()
			Apply(c, tt.kind)
			assert.InDelta(t, tt.want, c.Stat(tt.field), 1e-12)
			e, ok := c.Effects.Get(MistakeKey)
			require.True(t, ok)
			assert.Equal(t, tt.kind.String(), e.Source)
		})
	}

	// a new mistake replaces the running one
	c := sampleCar()
	Apply(c, MistakeBrakeLate)
	Apply(c, MistakeUndersteer)
	assert.Equal(t, 1, c.Effects.Len())
	assert.Equal(t, 1.0, c.Stat(model.TargetSpeed))
}
