package difficulty

import (
	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/model"
)

type Config struct {
	Cooldown   float64 // seconds between evaluations
	MinSamples int     // lap times needed for a non neutral verdict
}

//nolint:mnd // tuning values
func DefaultConfig() Config {
	return Config{Cooldown: 30, MinSamples: 3}
}

type Verdict int

const (
	Keep Verdict = iota
	Increase
	Decrease
)

func (v Verdict) String() string {
	return [...]string{"keep", "increase", "decrease"}[v]
}

// Evaluate is the adjustment table.
//
//nolint:mnd // thresholds
func Evaluate(s Signals) Verdict {
	if !s.Sufficient {
		return Keep
	}
	nearLast := s.AvgPosition >= float64(s.FieldSize-1)
	switch {
	case s.Competitiveness > 0.8 && s.AvgPosition <= 2, s.Improvement > 0.1:
		return Increase
	case s.Competitiveness < 0.3 && nearLast, s.Improvement < -0.05 && s.Competitiveness < 0.4:
		return Decrease
	default:
		return Keep
	}
}

type Controller struct {
	cfg     Config
	tier    model.SkillTier
	enabled bool
	elapsed float64
	log     *log.Logger
}

type Option func(*Controller)

func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

func WithEnabled(enabled bool) Option {
	return func(c *Controller) {
		c.enabled = enabled
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

func NewController(tier model.SkillTier, opts ...Option) *Controller {
	c := &Controller{
		cfg:     DefaultConfig(),
		tier:    tier,
		enabled: true,
		log:     log.Default().Named("sim.difficulty"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Tier() model.SkillTier { return c.tier }
func (c *Controller) Enabled() bool         { return c.enabled }

// SetEnabled toggles the controller. The cooldown restarts on enable.
func (c *Controller) SetEnabled(v bool) {
	if v && !c.enabled {
		c.elapsed = 0
	}
	c.enabled = v
}

// SetTier overrides the current tier, e.g. after loading a saved session
func (c *Controller) SetTier(t model.SkillTier) {
	c.tier = t
}

// Reset restarts the cooldown
func (c *Controller) Reset() {
	c.elapsed = 0
}

// Update advances the cooldown and evaluates rec once it elapsed.
// Returns the (possibly new) tier and whether it changed.
func (c *Controller) Update(dt float64, rec *Record) (model.SkillTier, bool) {
	if !c.enabled || rec == nil {
		return c.tier, false
	}
	c.elapsed += dt
	if c.elapsed < c.cfg.Cooldown {
		return c.tier, false
	}
	c.elapsed = 0
	s := rec.Signals(c.cfg.MinSamples)
	verdict := Evaluate(s)
	next := c.tier
	switch verdict {
	case Increase:
		next = c.tier.Up()
	case Decrease:
		next = c.tier.Down()
	case Keep:
	}
	c.log.Debug("difficulty evaluated",
		log.String("verdict", verdict.String()),
		log.Bool("sufficient", s.Sufficient),
		log.Float64("competitiveness", s.Competitiveness),
		log.Float64("improvement", s.Improvement),
		log.Float64("avgPosition", s.AvgPosition))
	if next == c.tier {
		return c.tier, false
	}
	c.log.Info("skill tier changed",
		log.String("from", c.tier.String()),
		log.String("to", next.String()))
	c.tier = next
	return c.tier, true
}
