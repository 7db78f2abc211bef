package rubberband

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/modifier"
	"github.com/mpapenbr/racesim/pkg/sim/track"
)

var baseStats = model.Stats{40, 1, 1, 1, 1, 1, 0.5, 1}

func newController(strength float64) *Controller {
	return New(WithStrength(strength), WithLogger(log.NewNop()))
}

func TestExcess(t *testing.T) {
	c := newController(1)
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 0},
		{50, 0},
		{75, 0.5},
		{100, 1},
		{500, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, c.Excess(tt.distance), 1e-12, "distance %v", tt.distance)
	}
}

func TestAdjustment_Symmetric(t *testing.T) {
	for _, strength := range []float64{0.2, 0.5, 1} {
		c := newController(strength)
		for _, d := range []float64{1, 10, 25, 49, 80} {
			ahead := c.Adjustment(track.Ahead, 50+d)
			behind := c.Adjustment(track.Behind, 50+d)
			assert.Less(t, ahead, 0.0)
			assert.Greater(t, behind, 0.0)
			assert.Equal(t, -ahead, behind)
		}
	}
}

func TestApply_SymmetricSpeed(t *testing.T) {
	c := newController(0.8)
	front := car.New("front", model.CarKindAI, baseStats)
	back := car.New("back", model.CarKindAI, baseStats)

	c.Apply(front, track.Ahead, 70)
	c.Apply(back, track.Behind, 70)

	// 20/50 * 0.8 * 0.25
	a := 0.08
	assert.InDelta(t, 40*(1-a), front.Stat(model.MaxSpeed), 1e-9)
	assert.InDelta(t, 40*(1+a), back.Stat(model.MaxSpeed), 1e-9)
	assert.InDelta(t, 40-front.Stat(model.MaxSpeed), back.Stat(model.MaxSpeed)-40, 1e-9)
	assert.InDelta(t, 0.5*(1+2*a), front.Stat(model.MistakeRate), 1e-9)
	assert.InDelta(t, 0.5*(1-2*a), back.Stat(model.MistakeRate), 1e-9)
}

func TestApply_ExpiresAfterWindow(t *testing.T) {
	c := newController(1)
	ai := car.New("ai", model.CarKindAI, baseStats)
	c.Apply(ai, track.Ahead, 100)
	assert.InDelta(t, 30, ai.Stat(model.MaxSpeed), 1e-9)

	// renewed while the gap persists
	ai.Effects.Advance(0.6)
	c.Apply(ai, track.Ahead, 100)
	ai.Effects.Advance(0.6)
	assert.True(t, ai.Effects.Has(Key))

	// gap closed: nothing new, the old adjustment runs out
	assert.Equal(t, 0.0, c.Apply(ai, track.Ahead, 40))
	ai.Effects.Advance(0.5)
	assert.False(t, ai.Effects.Has(Key))
	assert.Equal(t, baseStats, ai.Effective())
}

func TestApply_ZeroStrengthRemoves(t *testing.T) {
	c := newController(1)
	ai := car.New("ai", model.CarKindAI, baseStats)
	c.Apply(ai, track.Behind, 100)
	require.True(t, ai.Effects.Has(Key))

	c.SetStrength(0)
	assert.Equal(t, 0.0, c.Apply(ai, track.Behind, 100))
	assert.False(t, ai.Effects.Has(Key))
	assert.Equal(t, baseStats, ai.Effective())
}

func TestSetStrength_Clamps(t *testing.T) {
	c := newController(0)
	c.SetStrength(3)
	assert.Equal(t, 1.0, c.Strength())
	c.SetStrength(-1)
	assert.Equal(t, 0.0, c.Strength())
}

func TestApply_StacksWithNitro(t *testing.T) {
	c := newController(1)
	ai := car.New("ai", model.CarKindAI, baseStats)
	ai.Effects.Apply(modifier.Entry{
		Key:      "powerup.nitro",
		Duration: 3,
		Add:      map[model.StatField]float64{model.Acceleration: 1},
	})
	c.Apply(ai, track.Behind, 100)
	assert.InDelta(t, 2.25, ai.Stat(model.Acceleration), 1e-9)

	ai.Effects.Remove("powerup.nitro")
	assert.InDelta(t, 1.25, ai.Stat(model.Acceleration), 1e-9)
	ai.Effects.Remove(Key)
	assert.Equal(t, baseStats, ai.Effective())
}
