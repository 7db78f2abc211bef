//nolint:funlen // ok for tests
package race

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/personality"
	"github.com/mpapenbr/racesim/pkg/sim/powerup"
	"github.com/mpapenbr/racesim/pkg/sim/track"
	"github.com/mpapenbr/racesim/testsupport/simdata"
)

const dt = 1.0 / 60

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.PowerUps.SpawnInterval = 0
	cfg.AdaptiveDifficulty = false
	return cfg
}

func newTestDirector(t *testing.T, cfg Config, opts ...Option) *Director {
	t.Helper()
	all := append([]Option{
		WithConfig(cfg),
		WithSeed(42),
		WithLogger(log.NewNop()),
		WithRaceID("test-race"),
	}, opts...)
	return New(simdata.Line(t, "square"), all...)
}

func TestEndToEnd_FourOpponents(t *testing.T) {
	cfg := quietConfig()
	cfg.RubberBandStrength = 0.5
	d := newTestDirector(t, cfg)
	for _, tag := range []model.PersonalityTag{
		model.Aggressive, model.Tactical, model.Defensive, model.Professional,
	} {
		_, err := d.AddOpponent(tag)
		require.NoError(t, err)
	}
	_, err := d.AddPlayer("tester")
	require.NoError(t, err)

	for i := range 1000 {
		d.Tick(dt, car.Controls{})
		for _, c := range d.Cars() {
			if c.Speed() > c.Base[model.MaxSpeed]*1.21 {
				t.Fatalf("tick %d: car %s speed %.2f exceeds limit %.2f",
					i, c.ID, c.Speed(), c.Base[model.MaxSpeed]*1.21)
			}
		}
	}

	line := d.Line()
	for _, drv := range d.Drivers() {
		assert.GreaterOrEqual(t, drv.WaypointsPassed(), line.Len(), drv.Car().ID)
	}

	board := d.Leaderboard()
	require.Len(t, board, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, lo.Map(board, func(s Standing, _ int) int { return s.Position }))
	assert.Len(t, lo.UniqBy(board, func(s Standing) string { return s.CarID }), 5)
	// the idle player stays behind
	assert.Equal(t, PlayerID, board[4].CarID)
}

func TestEndToEnd_AllPersonalitiesWithPowerUps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptiveDifficulty = false
	d := newTestDirector(t, cfg)
	for _, tag := range model.AllPersonalities {
		_, err := d.AddOpponent(tag)
		require.NoError(t, err)
	}
	_, err := d.AddPlayer("tester")
	require.NoError(t, err)
	require.Len(t, d.Drivers(), 5)

	for i := range 3600 {
		d.Tick(dt, car.Controls{})
		for _, c := range d.Cars() {
			if limit := c.Stat(model.MaxSpeed); c.Speed() > limit+1e-9 {
				t.Fatalf("tick %d: car %s speed %.2f exceeds effective max speed %.2f",
					i, c.ID, c.Speed(), limit)
			}
		}
	}

	line := d.Line()
	for _, drv := range d.Drivers() {
		assert.GreaterOrEqual(t, drv.WaypointsPassed(), line.Len(), drv.Car().ID)
	}
	assert.Len(t, d.Leaderboard(), 6)
}

func TestAddCars(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxOpponents = 2
	d := newTestDirector(t, cfg)

	_, err := d.AddOpponent("rookie")
	require.ErrorIs(t, err, personality.ErrUnknownPersonality)

	for range 2 {
		_, err = d.AddOpponent(model.Tactical)
		require.NoError(t, err)
	}
	_, err = d.AddOpponent(model.Tactical)
	require.ErrorIs(t, err, ErrTooManyOpponents)

	p, err := d.AddPlayer("tester")
	require.NoError(t, err)
	assert.Equal(t, model.CarKindPlayer, p.Kind)
	assert.Equal(t, 40.0, p.Base[model.MaxSpeed])
	_, err = d.AddPlayer("again")
	require.ErrorIs(t, err, ErrPlayerExists)

	// grid slots are distinct
	positions := lo.Map(d.Cars(), func(c *car.Car, _ int) geom.Vec3 { return c.Position })
	assert.Len(t, lo.Uniq(positions), 3)

	d.Tick(dt, car.Controls{})
	_, err = d.AddOpponent(model.Tactical)
	require.Error(t, err)
}

func TestAutopilotKeepsPlayerStats(t *testing.T) {
	cfg := quietConfig()
	cfg.Autopilot = true
	d := newTestDirector(t, cfg)
	p, err := d.AddPlayer("bot")
	require.NoError(t, err)
	assert.Equal(t, personality.Player().Base(), p.Base)

	for range 120 {
		d.Tick(dt, car.Controls{})
	}
	assert.Greater(t, p.Speed(), 5.0)
}

func TestLapsAndFinish(t *testing.T) {
	cfg := quietConfig()
	cfg.Laps = 1
	d := newTestDirector(t, cfg)
	p, err := d.AddPlayer("tester")
	require.NoError(t, err)
	line := d.Line()

	for i, wp := range []int{0, 1, 2, 3, 0} {
		d.now = float64(i) * 10
		p.Position = line.At(wp).Position
		d.updateProgress()
	}
	assert.Equal(t, 1, p.Progress.Lap)
	assert.Equal(t, 5, p.Progress.Checkpoints)
	assert.InDelta(t, 40, p.Progress.LastLapTime, 1e-9)
	assert.InDelta(t, 40, p.Progress.BestLapTime, 1e-9)
	assert.True(t, p.Progress.Finished)
	assert.True(t, d.Finished())
	assert.Equal(t, []float64{40}, d.Record().LapTimes())
	assert.Equal(t, 1, d.Record().Wins())
}

func TestLeaderboardOrder(t *testing.T) {
	d := newTestDirector(t, quietConfig())
	for range 3 {
		_, err := d.AddOpponent(model.Professional)
		require.NoError(t, err)
	}
	p, err := d.AddPlayer("tester")
	require.NoError(t, err)
	cars := d.Cars()
	line := d.Line()

	// ai-1 one lap ahead, ai-2 and ai-3 same checkpoint but ai-3 closer, player tied with ai-2
	cars[0].Progress = car.Progress{Lap: 1, Checkpoints: 5, Next: 1}
	cars[0].Position = line.At(0).Position
	cars[1].Progress = car.Progress{Checkpoints: 2, Next: 2}
	cars[1].Position = geom.Flat(70, 40)
	cars[2].Progress = car.Progress{Checkpoints: 2, Next: 2}
	cars[2].Position = geom.Flat(70, 50)
	p.Progress = car.Progress{Checkpoints: 2, Next: 2}
	p.Position = geom.Flat(70, 40)
	d.updateStandings()

	ids := lo.Map(d.Leaderboard(), func(s Standing, _ int) string { return s.CarID })
	assert.Equal(t, []string{"ai-1", "ai-3", "ai-2", PlayerID}, ids)
	pos, field := d.Standing(p)
	assert.Equal(t, 4, pos)
	assert.Equal(t, 4, field)
}

func TestReset(t *testing.T) {
	cfg := quietConfig()
	d := newTestDirector(t, cfg)
	drv, err := d.AddOpponent(model.Aggressive)
	require.NoError(t, err)
	p, err := d.AddPlayer("tester")
	require.NoError(t, err)
	spawn := p.Position

	for range 200 {
		d.Tick(dt, car.Controls{Throttle: 1})
	}
	p.HeldPowerUp = model.PowerUpNitro
	d.PowerUps().Use(p)
	p.HeldPowerUp = model.PowerUpMissile
	d.PowerUps().Use(p)
	p.HeldPowerUp = model.PowerUpShield
	powerup.Hit(drv.Car(), p.ID, d.Config().PowerUps.MissilePenalty)
	require.NotEqual(t, spawn, p.Position)
	require.Len(t, d.PowerUps().Projectiles(), 1)

	d.Reset()
	assert.Equal(t, spawn, p.Position)
	assert.Equal(t, geom.Zero, p.Velocity)
	assert.Equal(t, car.Progress{}, p.Progress)
	assert.Equal(t, model.PowerUpNone, p.HeldPowerUp)
	for _, c := range d.Cars() {
		assert.Equal(t, 0, c.Effects.Len(), c.ID)
		assert.Equal(t, c.Base, c.Effective())
	}
	assert.Equal(t, model.DecisionRace, drv.Car().Decision)
	assert.Empty(t, drv.Car().TargetID)
	assert.Equal(t, 0, drv.WaypointsPassed())
	assert.Equal(t, int64(0), d.Ticks())
	assert.Empty(t, d.PowerUps().Projectiles())
}

func TestQueuedChanges(t *testing.T) {
	cfg := quietConfig()
	d := newTestDirector(t, cfg)
	drv, err := d.AddOpponent(model.Tactical)
	require.NoError(t, err)

	d.SetRubberBandStrength(0.2)
	d.SetAdaptiveDifficulty(true)
	d.SetSkillTier(model.Legend)
	assert.Equal(t, 0.5, d.RubberBandStrength())
	assert.False(t, d.AdaptiveDifficultyEnabled())
	assert.Equal(t, model.Skilled, drv.Tier())

	d.Tick(0, car.Controls{})
	assert.Equal(t, 0.2, d.RubberBandStrength())
	assert.True(t, d.AdaptiveDifficultyEnabled())
	assert.Equal(t, model.Legend, d.Tier())
	assert.Equal(t, model.Legend, drv.Tier())
	assert.InDelta(t, 40*1.1, drv.Car().Base[model.MaxSpeed], 1e-9)
}

func TestRubberBand_TrailingOnLastStraight(t *testing.T) {
	cfg := quietConfig()
	cfg.RubberBandStrength = 1
	d := newTestDirector(t, cfg)
	drv, err := d.AddOpponent(model.Professional)
	require.NoError(t, err)
	p, err := d.AddPlayer("tester")
	require.NoError(t, err)
	ai := drv.Car()

	// the player is past the middle of the first straight, the AI is on the last one
	p.Position = geom.Flat(45, 0)
	ai.Position = geom.Flat(0, 30)
	assert.Equal(t, track.Behind, d.Relation(p, ai))
	assert.Equal(t, track.Ahead, d.Relation(ai, p))

	adj := d.rubberband.Apply(ai, d.Relation(p, ai), ai.Position.Dist(p.Position))
	assert.Greater(t, adj, 0.0)
	assert.Greater(t, ai.Stat(model.MaxSpeed), ai.Base[model.MaxSpeed])
}

func TestCollision(t *testing.T) {
	d := newTestDirector(t, quietConfig())
	a, err := d.AddOpponent(model.Professional)
	require.NoError(t, err)
	b, err := d.AddOpponent(model.Professional)
	require.NoError(t, err)
	ca, cb := a.Car(), b.Car()
	ca.Position, cb.Position = geom.Flat(10, 30), geom.Flat(11, 30)
	ca.Velocity, cb.Velocity = geom.Flat(8, 0), geom.Flat(-8, 0)

	d.resolveCollisions()
	assert.GreaterOrEqual(t, ca.Position.Dist(cb.Position), 2*d.Config().CarRadius-1e-9)
	assert.Less(t, ca.Velocity.X, 0.0)
	assert.Greater(t, cb.Velocity.X, 0.0)
	assert.True(t, ca.Effects.Has(powerup.KeyContact))
	assert.True(t, cb.Effects.Has(powerup.KeyContact))
}

func TestSnapshotChannel(t *testing.T) {
	ch := make(chan Snapshot, 1)
	d := newTestDirector(t, quietConfig(), WithSnapshotChannel(ch, 2))
	_, err := d.AddOpponent(model.Defensive)
	require.NoError(t, err)
	_, err = d.AddPlayer("tester")
	require.NoError(t, err)

	for range 4 {
		d.Tick(dt, car.Controls{})
	}
	snap := <-ch
	assert.Equal(t, "test-race", snap.RaceID)
	assert.Equal(t, int64(2), snap.Tick)
	assert.Len(t, snap.Cars, 2)
	assert.Len(t, snap.Leaderboard, 2)
	assert.Equal(t, "ai", snap.Cars[0].Kind)
	assert.NotEmpty(t, snap.Cars[0].Decision)
	assert.Empty(t, snap.Cars[1].Decision)
	assert.Equal(t, 1, d.DroppedSnapshots())
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	d := newTestDirector(t, quietConfig(), WithMeter(mp.Meter("test")))
	_, err := d.AddOpponent(model.Professional)
	require.NoError(t, err)

	for range 10 {
		d.Tick(dt, car.Controls{})
	}
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					values[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(10), values["racesim.ticks"])
	assert.GreaterOrEqual(t, values["racesim.decisions"], int64(1))
}
