// Package personality holds the immutable AI personality profiles and the skill tier
// table. Per car values are derived copies, the shared tables are never modified.
package personality

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mpapenbr/racesim/pkg/model"
)

var ErrUnknownPersonality = errors.New("unknown personality")

type Traits struct {
	Aggressiveness    float64
	RiskTaking        float64
	Consistency       float64
	Defensiveness     float64
	StrategicThinking float64
}

type Profile struct {
	Tag          model.PersonalityTag
	Traits       Traits
	MaxSpeed     float64
	Acceleration float64
	BrakeForce   float64
	Color        string
}

type TierMultipliers struct {
	Speed         float64
	Acceleration  float64
	Consistency   float64
	MistakeChance float64
}

//nolint:gochecknoglobals,mnd // tuning tables
var (
	profiles = map[model.PersonalityTag]Profile{
		model.Aggressive: {
			Tag:          model.Aggressive,
			Traits:       Traits{0.9, 0.8, 0.6, 0.3, 0.4},
			MaxSpeed:     42,
			Acceleration: 1.1,
			BrakeForce:   0.8,
			Color:        "#ff3b30",
		},
		model.Tactical: {
			Tag:          model.Tactical,
			Traits:       Traits{0.5, 0.5, 0.8, 0.6, 0.9},
			MaxSpeed:     40,
			Acceleration: 1.0,
			BrakeForce:   0.95,
			Color:        "#34c759",
		},
		model.Defensive: {
			Tag:          model.Defensive,
			Traits:       Traits{0.3, 0.3, 0.8, 0.9, 0.6},
			MaxSpeed:     38,
			Acceleration: 0.95,
			BrakeForce:   1.0,
			Color:        "#007aff",
		},
		model.Unpredictable: {
			Tag:          model.Unpredictable,
			Traits:       Traits{0.6, 0.9, 0.4, 0.4, 0.3},
			MaxSpeed:     41,
			Acceleration: 1.05,
			BrakeForce:   0.85,
			Color:        "#af52de",
		},
		model.Professional: {
			Tag:          model.Professional,
			Traits:       Traits{0.6, 0.5, 0.95, 0.7, 0.8},
			MaxSpeed:     41,
			Acceleration: 1.0,
			BrakeForce:   1.0,
			Color:        "#ff9500",
		},
	}

	tiers = [...]TierMultipliers{
		model.Novice:  {0.8, 0.8, 0.6, 0.10},
		model.Amateur: {0.9, 0.9, 0.75, 0.05},
		model.Skilled: {1, 1, 0.85, 0.03},
		model.Expert:  {1.05, 1.05, 0.92, 0.02},
		model.Legend:  {1.1, 1.1, 0.98, 0.01},
	}

	// player car, not scaled by tiers
	playerProfile = Profile{
		Traits:       Traits{Consistency: 1},
		MaxSpeed:     40,
		Acceleration: 1,
		BrakeForce:   1,
		Color:        "#ffffff",
	}
)

// Lookup returns a copy of the profile for tag
func Lookup(tag model.PersonalityTag) (Profile, error) {
	p, ok := profiles[tag]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownPersonality, tag)
	}
	return p, nil
}

// ParseTags parses a comma separated list like "aggressive,tactical"
func ParseTags(s string) ([]model.PersonalityTag, error) {
	ret := []model.PersonalityTag{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		tag := model.PersonalityTag(part)
		if _, err := Lookup(tag); err != nil {
			return nil, err
		}
		ret = append(ret, tag)
	}
	return ret, nil
}

func Tier(t model.SkillTier) TierMultipliers {
	if t < model.Novice {
		t = model.Novice
	}
	if t > model.Legend {
		t = model.Legend
	}
	return tiers[t]
}

// EffectiveStats are the per car values derived from a profile and a tier.
type EffectiveStats struct {
	Tag           model.PersonalityTag
	Tier          model.SkillTier
	Traits        Traits
	MaxSpeed      float64
	Acceleration  float64
	BrakeForce    float64
	MistakeChance float64
	Color         string
}

// Derive scales the profile by the tier multipliers. Consistency is the profile's
// trait scaled by the tier, clamped to 1.
func Derive(p Profile, t model.SkillTier) EffectiveStats {
	m := Tier(t)
	traits := p.Traits
	traits.Consistency = min(1, traits.Consistency*m.Consistency/Tier(model.Skilled).Consistency)
	return EffectiveStats{
		Tag:           p.Tag,
		Tier:          t,
		Traits:        traits,
		MaxSpeed:      p.MaxSpeed * m.Speed,
		Acceleration:  p.Acceleration * m.Acceleration,
		BrakeForce:    p.BrakeForce,
		MistakeChance: m.MistakeChance,
		Color:         p.Color,
	}
}

// Player returns the stats of the player car
func Player() EffectiveStats {
	return EffectiveStats{
		Tier:         model.Skilled,
		Traits:       playerProfile.Traits,
		MaxSpeed:     playerProfile.MaxSpeed,
		Acceleration: playerProfile.Acceleration,
		BrakeForce:   playerProfile.BrakeForce,
		Color:        playerProfile.Color,
	}
}

// Base converts the stats to the base values of a car
func (e EffectiveStats) Base() model.Stats {
	return model.Stats{
		model.MaxSpeed:          e.MaxSpeed,
		model.Acceleration:      e.Acceleration,
		model.BrakeForce:        e.BrakeForce,
		model.Grip:              1,
		model.SteerAuthority:    1,
		model.ThrottleAuthority: 1,
		model.MistakeRate:       1,
		model.TargetSpeed:       1,
	}
}
