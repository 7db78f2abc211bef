package race

import (
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/difficulty"
	"github.com/mpapenbr/racesim/pkg/sim/powerup"
	"github.com/mpapenbr/racesim/pkg/sim/rubberband"
)

// Config is the configuration surface of a race. It is set once at setup; the
// runtime setters of the Director cover the values that may change mid race.
type Config struct {
	SkillTier          model.SkillTier
	RubberBandStrength float64
	AdaptiveDifficulty bool
	MaxOpponents       int
	Laps               int  // 0 means endless
	Autopilot          bool // the player car is driven by an AI driver

	CarRadius        float64
	CheckpointRadius float64

	PowerUps   powerup.Config
	RubberBand rubberband.Config
	Difficulty difficulty.Config
}

//nolint:mnd // defaults
func DefaultConfig() Config {
	return Config{
		SkillTier:          model.Skilled,
		RubberBandStrength: 0.5,
		AdaptiveDifficulty: true,
		MaxOpponents:       7,
		CarRadius:          1.5,
		CheckpointRadius:   12,
		PowerUps:           powerup.DefaultConfig(),
		RubberBand:         rubberband.DefaultConfig(),
		Difficulty:         difficulty.DefaultConfig(),
	}
}
