package powerup

import (
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/modifier"
)

// stack keys of the effects owned by this package
const (
	KeyBoost   = "powerup.speed_boost"
	KeyNitro   = "powerup.nitro"
	KeyShield  = car.ShieldKey
	KeyOil     = "hazard.oil"
	KeyEMP     = "hazard.emp"
	KeyMissile = "hazard.missile"
	KeyContact = "hazard.contact"
)

// HitPenalty is the slowdown applied by a hit that was not absorbed
type HitPenalty struct {
	Key      string
	Factor   float64 // MaxSpeed multiplier
	Duration float64
}

func applyBoost(c *car.Car, cfg *Config) {
	if c.Effects.Extend(KeyBoost, cfg.BoostDuration, cfg.BoostMaxDuration) {
		return
	}
	c.Effects.Apply(modifier.Entry{
		Key:      KeyBoost,
		Source:   c.ID,
		Duration: cfg.BoostDuration,
		Mul: map[model.StatField]float64{
			model.MaxSpeed:    cfg.BoostFactor,
			model.TargetSpeed: cfg.BoostFactor,
		},
	})
}

func applyNitro(c *car.Car, cfg *Config) {
	if c.Effects.Extend(KeyNitro, cfg.NitroDuration, cfg.NitroMaxDuration) {
		return
	}
	c.Effects.Apply(modifier.Entry{
		Key:      KeyNitro,
		Source:   c.ID,
		Duration: cfg.NitroDuration,
		Decay:    true,
		Add:      map[model.StatField]float64{model.Acceleration: cfg.NitroBonus},
	})
}

// applyShield installs a fresh shield. Using a shield again resets the hit
// counter to the cap and refreshes the duration.
func applyShield(c *car.Car, cfg *Config) {
	c.Effects.Apply(modifier.Entry{
		Key:      KeyShield,
		Source:   c.ID,
		Duration: cfg.ShieldDuration,
		Charges:  cfg.ShieldHits,
	})
}

// applyOil installs the slick penalty. A car still on a slick only gets the
// remaining time topped up.
func applyOil(c *car.Car, source string, cfg *Config) {
	if c.Effects.Refresh(KeyOil, cfg.OilRefresh) {
		return
	}
	c.Effects.Apply(modifier.Entry{
		Key:      KeyOil,
		Source:   source,
		Duration: cfg.OilRefresh,
		Mul: map[model.StatField]float64{
			model.Grip:           cfg.OilGrip,
			model.SteerAuthority: cfg.OilSteer,
		},
	})
}

func applyEMP(c *car.Car, source string, cfg *Config) {
	c.Effects.Apply(modifier.Entry{
		Key:      KeyEMP,
		Source:   source,
		Duration: cfg.EMPDisable,
		Mul:      map[model.StatField]float64{model.ThrottleAuthority: 0},
	})
}

// Hit applies the penalty to c unless a shield absorbs it.
func Hit(c *car.Car, source string, p HitPenalty) (absorbed bool) {
	if c.AbsorbHit() {
		return true
	}
	c.Effects.Apply(modifier.Entry{
		Key:      p.Key,
		Source:   source,
		Duration: p.Duration,
		Mul:      map[model.StatField]float64{model.MaxSpeed: p.Factor},
	})
	return false
}
