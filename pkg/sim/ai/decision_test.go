//nolint:funlen // ok for tests
package ai

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/personality"
)

// rolls returns the given values in order, then 0.99
type rolls []float64

func (r *rolls) Float64() float64 {
	if len(*r) == 0 {
		return 0.99
	}
	v := (*r)[0]
	*r = (*r)[1:]
	return v
}

func traits(tag model.PersonalityTag) personality.Traits {
	p, _ := personality.Lookup(tag)
	return p.Traits
}

func TestDecide_Table(t *testing.T) {
	type args struct {
		ahead  float64
		behind float64
		rolls  rolls
	}
	tests := []struct {
		name string
		tag  model.PersonalityTag
		args args
		want model.Decision
	}{
		{"aggressive close ahead low roll", model.Aggressive, args{10, NoCar, rolls{0.5}}, model.DecisionOvertake},
		{"aggressive close ahead high roll", model.Aggressive, args{10, NoCar, rolls{0.8}}, model.DecisionRam},
		{"aggressive ignores behind", model.Aggressive, args{NoCar, 3, nil}, model.DecisionRace},

		{"defensive behind first", model.Defensive, args{5, 10, nil}, model.DecisionDefend},
		{"defensive very close ahead", model.Defensive, args{5, NoCar, nil}, model.DecisionFollow},
		{"defensive close ahead overtake", model.Defensive, args{12, NoCar, rolls{0.2}}, model.DecisionOvertake},
		{"defensive close ahead follow", model.Defensive, args{12, NoCar, rolls{0.5}}, model.DecisionFollow},
		{"defensive alone", model.Defensive, args{NoCar, NoCar, nil}, model.DecisionRace},

		{"tactical sandwich defend", model.Tactical, args{10, 10, rolls{0.5}}, model.DecisionDefend},
		{"tactical sandwich overtake", model.Tactical, args{10, 10, rolls{0.7}}, model.DecisionOvertake},
		{"tactical very close ahead", model.Tactical, args{5, NoCar, nil}, model.DecisionOvertake},
		{"tactical close ahead follow", model.Tactical, args{12, NoCar, rolls{0.5}}, model.DecisionFollow},
		{"tactical close ahead overtake", model.Tactical, args{12, NoCar, rolls{0.7}}, model.DecisionOvertake},
		{"tactical brake check", model.Tactical, args{NoCar, 5, rolls{0.1}}, model.DecisionBrakeCheck},
		{"tactical defend very close", model.Tactical, args{NoCar, 5, rolls{0.5}}, model.DecisionDefend},
		{"tactical close behind ignored", model.Tactical, args{NoCar, 12, nil}, model.DecisionRace},

		{"unpredictable swerve first", model.Unpredictable, args{NoCar, NoCar, rolls{0.05}}, model.DecisionRandomSwerve},
		{"unpredictable ahead overtake", model.Unpredictable, args{10, NoCar, rolls{0.5, 0.2}}, model.DecisionOvertake},
		{"unpredictable ahead ram", model.Unpredictable, args{10, NoCar, rolls{0.5, 0.5}}, model.DecisionRam},
		{"unpredictable ahead swerve", model.Unpredictable, args{10, NoCar, rolls{0.5, 0.9}}, model.DecisionRandomSwerve},
		{"unpredictable behind brake check", model.Unpredictable, args{NoCar, 10, rolls{0.5, 0.3}}, model.DecisionBrakeCheck},
		{"unpredictable behind swerve", model.Unpredictable, args{NoCar, 10, rolls{0.5, 0.6}}, model.DecisionRandomSwerve},
		{"unpredictable alone", model.Unpredictable, args{NoCar, NoCar, rolls{0.5}}, model.DecisionRace},

		{"professional very close ahead", model.Professional, args{5, 5, nil}, model.DecisionFollow},
		{"professional close ahead", model.Professional, args{12, 5, nil}, model.DecisionOvertake},
		{"professional very close behind", model.Professional, args{NoCar, 5, nil}, model.DecisionDefend},
		{"professional close behind", model.Professional, args{NoCar, 12, nil}, model.DecisionRace},

		{"unknown personality", model.PersonalityTag("sneaky"), args{5, 5, nil}, model.DecisionRace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.args.rolls
			got := Decide(tt.tag, Situation{
				Ahead: tt.args.ahead, Behind: tt.args.behind, Traits: traits(tt.tag),
			}, &r)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide_DeterministicUnderSeed(t *testing.T) {
	sit := Situation{Ahead: 10, Behind: 6, Traits: traits(model.Unpredictable)}
	r1 := rand.New(rand.NewPCG(7, 11))
	r2 := rand.New(rand.NewPCG(7, 11))
	for range 200 {
		assert.Equal(t,
			Decide(model.Unpredictable, sit, r1),
			Decide(model.Unpredictable, sit, r2))
	}
}

func TestDecide_AggressiveShares(t *testing.T) {
	const trials = 10000
	r := rand.New(rand.NewPCG(1, 2))
	sit := Situation{Ahead: 10, Behind: NoCar, Traits: traits(model.Aggressive)}
	counts := map[model.Decision]int{}
	for range trials {
		counts[Decide(model.Aggressive, sit, r)]++
	}
	assert.Len(t, counts, 2)
	assert.InDelta(t, 0.7, float64(counts[model.DecisionOvertake])/trials, 0.03)
	assert.InDelta(t, 0.3, float64(counts[model.DecisionRam])/trials, 0.03)
}

func TestSpeedMultiplier(t *testing.T) {
	assert.Equal(t, 1.1, SpeedMultiplier(model.DecisionOvertake))
	assert.Equal(t, 1.2, SpeedMultiplier(model.DecisionRam))
	assert.Equal(t, 0.3, SpeedMultiplier(model.DecisionBrakeCheck))
	assert.Equal(t, 1.0, SpeedMultiplier(model.Decision(99)))
}
