package config

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/personality"
	"github.com/mpapenbr/racesim/pkg/sim/race"
)

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	LogLevel           string  // sets the log level (zap log level values)
	LogFormat          string  // text vs json
	LogFilter          string  // zapfilter rules, empty disables filtering
	EnableTelemetry    bool    // enable telemetry
	TelemetryEndpoint  string  // endpoint for telemetry, "stdout" writes to console
	WatchConfig        bool    // reload rubber band and adaptive settings on config file change
	Track              string  // builtin track name or path to a track file
	Opponents          int     // number of AI opponents
	Personalities      string  // comma separated personality tags, cycled over the opponents
	SkillTier          string  // initial skill tier of the AI field
	RubberBandStrength float64 // 0 disables rubber banding
	AdaptiveDifficulty bool    // enable adaptive difficulty
	MaxOpponents       int     // upper bound of AI opponents
	PowerUpInterval    string  // duration between power-up spawns, 0 disables power-ups
	TickRate           int     // simulation ticks per second
	Ticks              int     // number of ticks to run, 0 runs until the race is finished
	Seed               uint64  // random seed, 0 picks one
	Laps               int     // laps to finish, 0 means endless
	Autopilot          bool    // let an AI drive the player car
	Realtime           bool    // pace ticks to wall clock
	PlayerID           string  // id of the player in the history store
	PlayerName         string  // display name of the player
	NatsURL            string  // publish snapshots to this NATS server, empty disables publishing
	PublishEvery       int     // publish every n-th tick
	HistoryDB          string  // history database: postgres DSN, sqlite file or empty for none
	HistoryWindow      int     // number of laps and results loaded from history
	WaitForServices    string  // duration to wait for NATS and postgres to be reachable
)

// SimConfig holds the configuration values which are used by a race run
type SimConfig struct {
	Race          race.Config
	Personalities []model.PersonalityTag
	Opponents     int
	TickRate      int
	Ticks         int
	Seed          uint64
}

// Dt is the fixed tick duration
func (c *SimConfig) Dt() float64 {
	return 1 / float64(c.TickRate)
}

// OpponentTags cycles the configured personalities over the opponents.
// Without configured personalities all known ones are used.
func (c *SimConfig) OpponentTags() []model.PersonalityTag {
	tags := c.Personalities
	if len(tags) == 0 {
		tags = model.AllPersonalities
	}
	return lo.Times(c.Opponents, func(i int) model.PersonalityTag {
		return tags[i%len(tags)]
	})
}

// NewSimConfig validates the resolved values and builds the race configuration
func NewSimConfig() (*SimConfig, error) {
	cfg := race.DefaultConfig()
	tier, err := model.ParseSkillTier(SkillTier)
	if err != nil {
		return nil, err
	}
	cfg.SkillTier = tier
	if RubberBandStrength < 0 || RubberBandStrength > 1 {
		return nil, fmt.Errorf("rubber band strength %v not within [0,1]", RubberBandStrength)
	}
	cfg.RubberBandStrength = RubberBandStrength
	cfg.AdaptiveDifficulty = AdaptiveDifficulty
	if MaxOpponents > 0 {
		cfg.MaxOpponents = MaxOpponents
	}
	if Opponents < 0 || Opponents > cfg.MaxOpponents {
		return nil, fmt.Errorf("opponents %d not within [0,%d]", Opponents, cfg.MaxOpponents)
	}
	cfg.Laps = Laps
	cfg.Autopilot = Autopilot

	if PowerUpInterval != "" {
		d, err := time.ParseDuration(PowerUpInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid power-up interval: %w", err)
		}
		cfg.PowerUps.SpawnInterval = d.Seconds()
	}

	tags, err := personality.ParseTags(Personalities)
	if err != nil {
		return nil, err
	}
	if TickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", TickRate)
	}
	return &SimConfig{
		Race:          cfg,
		Personalities: tags,
		Opponents:     Opponents,
		TickRate:      TickRate,
		Ticks:         max(0, Ticks),
		Seed:          Seed,
	}, nil
}
