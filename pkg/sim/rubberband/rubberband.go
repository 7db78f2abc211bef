// Package rubberband keeps AI cars within reach of the player.
//
// Beyond the threshold distance an AI car ahead of the player gets slower and makes
// more mistakes, an AI car behind gets the mirrored bonus. The adjustment lives in the
// car's effect stack under Key and expires after Window unless renewed.
package rubberband

import (
	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/modifier"
	"github.com/mpapenbr/racesim/pkg/sim/track"
)

const Key = "rubberband"

type Config struct {
	Threshold float64 // distance to the player before any adjustment
	Window    float64 // lifetime of an adjustment
	MaxAdjust float64 // relative adjustment at full excess and full strength
}

//nolint:mnd // tuning values
func DefaultConfig() Config {
	return Config{Threshold: 50, Window: 1, MaxAdjust: 0.25}
}

type Controller struct {
	cfg      Config
	strength float64
	log      *log.Logger
}

type Option func(*Controller)

func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

func WithStrength(v float64) Option {
	return func(c *Controller) {
		c.strength = geom.Clamp(v, 0, 1)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

func New(opts ...Option) *Controller {
	c := &Controller{
		cfg: DefaultConfig(),
		log: log.Default().Named("sim.rubberband"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Strength() float64 { return c.strength }

// SetStrength clamps v to [0,1]. 0 disables rubber-banding.
func (c *Controller) SetStrength(v float64) {
	c.strength = geom.Clamp(v, 0, 1)
}

func (c *Controller) Config() Config { return c.cfg }

// Excess is the share of distance beyond the threshold, in [0,1]
func (c *Controller) Excess(distance float64) float64 {
	if c.cfg.Threshold <= 0 {
		return 0
	}
	return geom.Clamp((distance-c.cfg.Threshold)/c.cfg.Threshold, 0, 1)
}

// Adjustment returns the signed relative speed adjustment for an AI car seen at rel
// from the player: negative slows the car down.
func (c *Controller) Adjustment(rel track.Relation, distance float64) float64 {
	a := c.Excess(distance) * c.strength * c.cfg.MaxAdjust
	switch rel {
	case track.Ahead:
		return -a
	case track.Behind:
		return a
	default:
		return 0
	}
}

// Apply evaluates the gap of ai to the player and installs the adjustment.
// Returns the applied speed adjustment.
func (c *Controller) Apply(ai *car.Car, rel track.Relation, distance float64) float64 {
	if c.strength <= 0 {
		ai.Effects.Remove(Key)
		return 0
	}
	adj := c.Adjustment(rel, distance)
	if adj == 0 {
		return 0
	}
	ai.Effects.Apply(modifier.Entry{
		Key:      Key,
		Source:   "rubberband",
		Duration: c.cfg.Window,
		Add: map[model.StatField]float64{
			model.MaxSpeed:     adj,
			model.Acceleration: adj,
			model.MistakeRate:  -2 * adj,
		},
	})
	if c.log.Enabled(log.DebugLevel) {
		c.log.Debug("rubberband",
			log.String("car", ai.ID),
			log.String("relation", rel.String()),
			log.Float64("distance", distance),
			log.Float64("adjust", adj))
	}
	return adj
}
