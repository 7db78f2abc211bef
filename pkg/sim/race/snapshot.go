package race

import (
	"github.com/samber/lo"

	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/modifier"
	"github.com/mpapenbr/racesim/pkg/sim/powerup"
)

// EffectState is an active effect as shown to observers
type EffectState struct {
	Key       string
	Source    string
	Remaining float64
	Charges   int
}

type CarState struct {
	ID          string
	Name        string
	Kind        string
	Personality string
	Color       string
	Position    geom.Vec3
	Yaw         float64
	Roll        float64
	Pitch       float64
	Speed       float64
	Decision    string
	Target      string
	HeldPowerUp string
	Effects     []EffectState
	Lap         int
	Checkpoints int
	LastLapTime float64
	BestLapTime float64
	Finished    bool
}

type PickupState struct {
	Type     string
	Position geom.Vec3
}

// Snapshot is the outbound state after a tick
type Snapshot struct {
	RaceID      string
	Tick        int64
	Time        float64
	Tier        string
	Finished    bool
	Cars        []CarState
	Leaderboard []Standing
	Pickups     []PickupState
	Projectiles []geom.Vec3
	OilSlicks   []geom.Vec3
}

func (d *Director) Snapshot() Snapshot {
	return Snapshot{
		RaceID:      d.raceID,
		Tick:        d.ticks,
		Time:        d.now,
		Tier:        d.difficulty.Tier().String(),
		Finished:    d.finished,
		Cars:        lo.Map(d.cars, func(c *car.Car, _ int) CarState { return carState(c) }),
		Leaderboard: d.Leaderboard(),
		Pickups: lo.Map(d.powerups.Pickups(), func(p powerup.Pickup, _ int) PickupState {
			return PickupState{Type: p.Type.String(), Position: p.Position}
		}),
		Projectiles: lo.Map(d.powerups.Projectiles(), func(p powerup.Projectile, _ int) geom.Vec3 {
			return p.Position
		}),
		OilSlicks: lo.Map(d.powerups.Slicks(), func(s powerup.OilSlick, _ int) geom.Vec3 {
			return s.Position
		}),
	}
}

func carState(c *car.Car) CarState {
	ret := CarState{
		ID:          c.ID,
		Name:        c.Name,
		Kind:        c.Kind.String(),
		Personality: string(c.Personality),
		Color:       c.Color,
		Position:    c.Position,
		Yaw:         c.Yaw,
		Roll:        c.Roll,
		Pitch:       c.Pitch,
		Speed:       c.Speed(),
		HeldPowerUp: c.HeldPowerUp.String(),
		Effects: lo.Map(c.Effects.Entries(), func(e modifier.Entry, _ int) EffectState {
			return EffectState{Key: e.Key, Source: e.Source, Remaining: e.Remaining, Charges: e.Charges}
		}),
		Lap:         c.Progress.Lap,
		Checkpoints: c.Progress.Checkpoints,
		LastLapTime: c.Progress.LastLapTime,
		BestLapTime: c.Progress.BestLapTime,
		Finished:    c.Progress.Finished,
	}
	if c.IsAI() {
		ret.Decision = c.Decision.String()
		ret.Target = c.TargetID
	}
	return ret
}
