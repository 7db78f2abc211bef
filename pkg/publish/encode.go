package publish

import (
	"github.com/ohler55/ojg/oj"
	"github.com/samber/lo"

	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/sim/race"
)

var jsonOpts = &oj.Options{Sort: true}

// Encode renders a snapshot as JSON with sorted keys
func Encode(s *race.Snapshot) []byte {
	return []byte(oj.JSON(toMap(s), jsonOpts))
}

func toMap(s *race.Snapshot) map[string]any {
	return map[string]any{
		"raceId":   s.RaceID,
		"tick":     s.Tick,
		"time":     s.Time,
		"tier":     s.Tier,
		"finished": s.Finished,
		"cars":     lo.Map(s.Cars, func(c race.CarState, _ int) any { return carMap(&c) }),
		"leaderboard": lo.Map(s.Leaderboard, func(st race.Standing, _ int) any {
			return map[string]any{
				"pos":         int64(st.Position),
				"id":          st.CarID,
				"name":        st.Name,
				"kind":        st.Kind.String(),
				"lap":         int64(st.Lap),
				"checkpoints": int64(st.Checkpoints),
				"distance":    st.Distance,
				"bestLap":     st.BestLapTime,
				"finished":    st.Finished,
			}
		}),
		"pickups": lo.Map(s.Pickups, func(p race.PickupState, _ int) any {
			return map[string]any{"type": p.Type, "pos": vec(p.Position)}
		}),
		"projectiles": lo.Map(s.Projectiles, func(p geom.Vec3, _ int) any { return vec(p) }),
		"oilSlicks":   lo.Map(s.OilSlicks, func(p geom.Vec3, _ int) any { return vec(p) }),
	}
}

func carMap(c *race.CarState) map[string]any {
	ret := map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"kind":        c.Kind,
		"color":       c.Color,
		"pos":         vec(c.Position),
		"yaw":         c.Yaw,
		"roll":        c.Roll,
		"pitch":       c.Pitch,
		"speed":       c.Speed,
		"item":        c.HeldPowerUp,
		"lap":         int64(c.Lap),
		"checkpoints": int64(c.Checkpoints),
		"lastLap":     c.LastLapTime,
		"bestLap":     c.BestLapTime,
		"finished":    c.Finished,
		"effects": lo.Map(c.Effects, func(e race.EffectState, _ int) any {
			return map[string]any{
				"key":       e.Key,
				"source":    e.Source,
				"remaining": e.Remaining,
				"charges":   int64(e.Charges),
			}
		}),
	}
	if c.Personality != "" {
		ret["personality"] = c.Personality
	}
	if c.Decision != "" {
		ret["decision"] = c.Decision
		ret["target"] = c.Target
	}
	return ret
}

func vec(v geom.Vec3) []any {
	return []any{v.X, v.Y, v.Z}
}
