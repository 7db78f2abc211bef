// Package ai contains the opponent driver: the tactical decision engine, navigation
// along the racing line and the mistake injector.
package ai

import (
	"math"

	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/personality"
)

const (
	DecisionInterval  = 0.1 // seconds between two decisions
	CloseDistance     = 15.0
	VeryCloseDistance = 8.0
)

// Roller yields uniform values in [0,1). *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// Situation is what a decision is based on. Distances are +Inf if there is no car.
type Situation struct {
	Ahead  float64
	Behind float64
	Traits personality.Traits
}

// Strategy is the decision table of one personality
type Strategy struct {
	Close     float64
	VeryClose float64
	decide    func(s *Strategy, sit Situation, r Roller) model.Decision
}

func (s *Strategy) Decide(sit Situation, r Roller) model.Decision {
	return s.decide(s, sit, r)
}

//nolint:gochecknoglobals,mnd // tuning table
var strategies = map[model.PersonalityTag]*Strategy{
	model.Aggressive: {
		Close: CloseDistance, VeryClose: VeryCloseDistance,
		decide: func(s *Strategy, sit Situation, r Roller) model.Decision {
			// threats from behind are ignored
			if sit.Ahead < s.Close {
				if r.Float64() < 0.7 {
					return model.DecisionOvertake
				}
				return model.DecisionRam
			}
			return model.DecisionRace
		},
	},
	model.Defensive: {
		Close: CloseDistance, VeryClose: VeryCloseDistance,
		decide: func(s *Strategy, sit Situation, r Roller) model.Decision {
			switch {
			case sit.Behind < s.Close:
				return model.DecisionDefend
			case sit.Ahead < s.VeryClose:
				return model.DecisionFollow
			case sit.Ahead < s.Close:
				if r.Float64() < 0.3 {
					return model.DecisionOvertake
				}
				return model.DecisionFollow
			}
			return model.DecisionRace
		},
	},
	model.Tactical: {
		Close: CloseDistance, VeryClose: VeryCloseDistance,
		decide: func(s *Strategy, sit Situation, r Roller) model.Decision {
			switch {
			case sit.Ahead < s.Close && sit.Behind < s.Close:
				if r.Float64() < sit.Traits.Defensiveness {
					return model.DecisionDefend
				}
				return model.DecisionOvertake
			case sit.Ahead < s.VeryClose:
				return model.DecisionOvertake
			case sit.Ahead < s.Close:
				if r.Float64() < 0.6 {
					return model.DecisionFollow
				}
				return model.DecisionOvertake
			case sit.Behind < s.VeryClose:
				if r.Float64() < 0.2 {
					return model.DecisionBrakeCheck
				}
				return model.DecisionDefend
			}
			return model.DecisionRace
		},
	},
	model.Unpredictable: {
		Close: CloseDistance, VeryClose: VeryCloseDistance,
		decide: func(s *Strategy, sit Situation, r Roller) model.Decision {
			if r.Float64() < 0.1 {
				return model.DecisionRandomSwerve
			}
			switch {
			case sit.Ahead < s.Close:
				roll := r.Float64()
				switch {
				case roll < 0.4:
					return model.DecisionOvertake
				case roll < 0.7:
					return model.DecisionRam
				default:
					return model.DecisionRandomSwerve
				}
			case sit.Behind < s.Close:
				if r.Float64() < 0.5 {
					return model.DecisionBrakeCheck
				}
				return model.DecisionRandomSwerve
			}
			return model.DecisionRace
		},
	},
	model.Professional: {
		Close: CloseDistance, VeryClose: VeryCloseDistance,
		decide: func(s *Strategy, sit Situation, _ Roller) model.Decision {
			switch {
			case sit.Ahead < s.VeryClose:
				return model.DecisionFollow
			case sit.Ahead < s.Close:
				return model.DecisionOvertake
			case sit.Behind < s.VeryClose:
				return model.DecisionDefend
			}
			return model.DecisionRace
		},
	},
}

// StrategyFor returns the decision table for tag. Unknown tags race only.
func StrategyFor(tag model.PersonalityTag) *Strategy {
	if s, ok := strategies[tag]; ok {
		return s
	}
	return &Strategy{
		Close: CloseDistance, VeryClose: VeryCloseDistance,
		decide: func(*Strategy, Situation, Roller) model.Decision { return model.DecisionRace },
	}
}

// Decide picks the decision of a personality for the given distances.
func Decide(tag model.PersonalityTag, sit Situation, r Roller) model.Decision {
	return StrategyFor(tag).Decide(sit, r)
}

// NoCar is the distance used when there is no car in a direction
var NoCar = math.Inf(1)

//nolint:gochecknoglobals // tuning table
var speedMultipliers = map[model.Decision]float64{
	model.DecisionRace:         1.0,
	model.DecisionOvertake:     1.1,
	model.DecisionDefend:       0.95,
	model.DecisionFollow:       0.9,
	model.DecisionRam:          1.2,
	model.DecisionBrakeCheck:   0.3,
	model.DecisionRandomSwerve: 0.85,
}

// SpeedMultiplier is applied to the waypoint's target speed
func SpeedMultiplier(d model.Decision) float64 {
	if m, ok := speedMultipliers[d]; ok {
		return m
	}
	return 1
}
