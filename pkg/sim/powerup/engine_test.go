//nolint:funlen // ok for tests
package powerup

import (
	"math/rand/v2"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/track"
	"github.com/mpapenbr/racesim/testsupport/simdata"
)

var baseStats = simdata.BaseStats

type fakeEnv struct {
	line *track.RacingLine
	cars []*car.Car
}

func (e *fakeEnv) Cars() []*car.Car        { return e.cars }
func (e *fakeEnv) Line() *track.RacingLine { return e.line }

// standing by list order
func (e *fakeEnv) Standing(c *car.Car) (pos, field int) {
	_, idx, _ := lo.FindIndexOf(e.cars, func(o *car.Car) bool { return o == c })
	return idx + 1, len(e.cars)
}

func (e *fakeEnv) Relation(self, other *car.Car) track.Relation {
	_, si, _ := lo.FindIndexOf(e.cars, func(o *car.Car) bool { return o == self })
	_, oi, _ := lo.FindIndexOf(e.cars, func(o *car.Car) bool { return o == other })
	if oi > si {
		return track.Behind
	}
	return track.Ahead
}

func newCar(id string, pos geom.Vec3) *car.Car {
	return simdata.Car(id, model.CarKindPlayer, pos)
}

func newTestEngine(opts ...Option) *Engine {
	cfg := DefaultConfig()
	cfg.SpawnInterval = 0
	all := append([]Option{WithConfig(cfg), WithLogger(log.NewNop())}, opts...)
	return NewEngine(rand.New(rand.NewPCG(1, 2)), all...)
}

func TestShield_AbsorbsUpToThreeHits(t *testing.T) {
	e := newTestEngine()
	c := newCar("a", geom.Zero)
	c.HeldPowerUp = model.PowerUpShield
	require.True(t, e.Use(c))
	assert.Equal(t, model.PowerUpNone, c.HeldPowerUp)

	p := e.Config().MissilePenalty
	for i := range 3 {
		assert.True(t, e.HitCar(c, "b", model.PowerUpMissile, p), "hit %d", i+1)
		assert.Equal(t, baseStats, c.Effective())
	}
	assert.False(t, c.ShieldActive())
	assert.False(t, e.HitCar(c, "b", model.PowerUpMissile, p))
	assert.InDelta(t, 20, c.Stat(model.MaxSpeed), 1e-9)
}

func TestShield_Expires(t *testing.T) {
	e := newTestEngine()
	c := newCar("a", geom.Zero)
	c.HeldPowerUp = model.PowerUpShield
	e.Use(c)
	c.Effects.Advance(3)
	assert.True(t, c.ShieldActive())
	c.Effects.Advance(3)
	assert.False(t, c.ShieldActive())
}

func TestEffects_Reversible(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name  string
		apply func(c *car.Car)
		field model.StatField
		want  float64
		dur   float64
	}{
		{"boost", func(c *car.Car) { applyBoost(c, &cfg) }, model.MaxSpeed, 60, cfg.BoostDuration},
		{"boost target", func(c *car.Car) { applyBoost(c, &cfg) }, model.TargetSpeed, 1.5, cfg.BoostDuration},
		{"nitro", func(c *car.Car) { applyNitro(c, &cfg) }, model.Acceleration, 2, cfg.NitroDuration},
		{"oil grip", func(c *car.Car) { applyOil(c, "x", &cfg) }, model.Grip, 0.3, cfg.OilRefresh},
		{"oil steer", func(c *car.Car) { applyOil(c, "x", &cfg) }, model.SteerAuthority, 0.5, cfg.OilRefresh},
		{"emp", func(c *car.Car) { applyEMP(c, "x", &cfg) }, model.ThrottleAuthority, 0, cfg.EMPDisable},
		{
			"missile",
			func(c *car.Car) { Hit(c, "x", cfg.MissilePenalty) },
			model.MaxSpeed, 20, cfg.MissilePenalty.Duration,
		},
		{
			"contact",
			func(c *car.Car) { Hit(c, "x", cfg.ContactPenalty) },
			model.MaxSpeed, 32, cfg.ContactPenalty.Duration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCar("a", geom.Zero)
			tt.apply(c)
			assert.InDelta(t, tt.want, c.Stat(tt.field), 1e-9)
			c.Effects.Advance(tt.dur / 2)
			c.Effects.Advance(tt.dur / 2)
			assert.Equal(t, baseStats, c.Effective())
			assert.Equal(t, 0, c.Effects.Len())
		})
	}
}

func TestBoost_ExtendIsCapped(t *testing.T) {
	e := newTestEngine()
	c := newCar("a", geom.Zero)
	for range 3 {
		c.HeldPowerUp = model.PowerUpSpeedBoost
		e.Use(c)
	}
	entry, ok := c.Effects.Get(KeyBoost)
	require.True(t, ok)
	assert.InDelta(t, 10, entry.Remaining, 1e-9)
	// stacking extends the time, not the factor
	assert.InDelta(t, 60, c.Stat(model.MaxSpeed), 1e-9)
}

func TestNitro_Decays(t *testing.T) {
	e := newTestEngine()
	c := newCar("a", geom.Zero)
	c.HeldPowerUp = model.PowerUpNitro
	e.Use(c)
	assert.InDelta(t, 2, c.Stat(model.Acceleration), 1e-9)
	c.Effects.Advance(1.5)
	assert.InDelta(t, 1.5, c.Stat(model.Acceleration), 1e-9)
	c.Effects.Advance(1.5)
	assert.Equal(t, 1.0, c.Stat(model.Acceleration))
}

func TestMissile_HitsCarAhead(t *testing.T) {
	e := newTestEngine()
	shooter := newCar("a", geom.Zero) // heading +Z
	target := newCar("b", geom.Flat(0.5, 50))
	env := &fakeEnv{cars: []*car.Car{shooter, target}}

	shooter.HeldPowerUp = model.PowerUpMissile
	e.Use(shooter)
	require.Len(t, e.Projectiles(), 1)

	var events []Event
	for range 60 {
		events = append(events, e.Update(env, 1.0/60)...)
	}
	assert.Empty(t, e.Projectiles())
	assert.InDelta(t, 20, target.Stat(model.MaxSpeed), 1e-9)
	assert.Equal(t, baseStats, shooter.Effective())
	hit, ok := lo.Find(events, func(ev Event) bool { return ev.Kind == EventHit })
	require.True(t, ok)
	assert.Equal(t, Event{Kind: EventHit, Type: model.PowerUpMissile, Car: "a", Target: "b"}, hit)
}

func TestMissile_ExpiresAfterRange(t *testing.T) {
	e := newTestEngine()
	shooter := newCar("a", geom.Zero)
	env := &fakeEnv{cars: []*car.Car{shooter}}
	shooter.HeldPowerUp = model.PowerUpMissile
	e.Use(shooter)

	for range 100 {
		e.Update(env, 1.0/60)
	}
	require.Len(t, e.Projectiles(), 1)
	for range 30 {
		e.Update(env, 1.0/60)
	}
	assert.Empty(t, e.Projectiles())
}

func TestOil_OwnerImmunity(t *testing.T) {
	e := newTestEngine()
	owner := newCar("a", geom.Zero) // slick lands at z=-4
	victim := newCar("b", geom.Flat(0, -4))
	env := &fakeEnv{cars: []*car.Car{owner, victim}}

	owner.HeldPowerUp = model.PowerUpOilSlick
	e.Use(owner)
	require.Len(t, e.Slicks(), 1)

	e.Update(env, 0.1)
	assert.True(t, victim.Effects.Has(KeyOil))
	assert.False(t, owner.Effects.Has(KeyOil))

	for range 11 {
		e.Update(env, 0.1)
	}
	assert.True(t, owner.Effects.Has(KeyOil))

	// leaving the slick wears off after the refresh window
	victim.Position = geom.Flat(0, 50)
	e.Update(env, 0.1)
	victim.Effects.Advance(e.Config().OilRefresh)
	assert.False(t, victim.Effects.Has(KeyOil))
}

func TestOil_StayingOnSlickRefreshes(t *testing.T) {
	cfg := DefaultConfig()
	c := newCar("b", geom.Zero)
	applyOil(c, "a", &cfg)
	c.Effects.Advance(cfg.OilRefresh / 2)
	applyOil(c, "c", &cfg)

	assert.Equal(t, 1, c.Effects.Len())
	e, ok := c.Effects.Get(KeyOil)
	require.True(t, ok)
	assert.InDelta(t, cfg.OilRefresh, e.Remaining, 1e-12)
	assert.Equal(t, "a", e.Source)
	assert.InDelta(t, cfg.OilGrip, c.Stat(model.Grip), 1e-12)
}

func TestOil_SlickExpires(t *testing.T) {
	e := newTestEngine()
	owner := newCar("a", geom.Zero)
	env := &fakeEnv{cars: []*car.Car{owner}}
	owner.HeldPowerUp = model.PowerUpOilSlick
	e.Use(owner)
	e.Update(env, 14)
	assert.Len(t, e.Slicks(), 1)
	e.Update(env, 1.5)
	assert.Empty(t, e.Slicks())
}

func TestEMP_ChargeAndShield(t *testing.T) {
	e := newTestEngine()
	owner := newCar("a", geom.Zero)
	shielded := newCar("b", geom.Flat(0, 10))
	exposed := newCar("c", geom.Flat(10, 10))
	far := newCar("d", geom.Flat(0, 40))
	env := &fakeEnv{cars: []*car.Car{owner, shielded, exposed, far}}

	shielded.HeldPowerUp = model.PowerUpShield
	e.Use(shielded)
	owner.HeldPowerUp = model.PowerUpEMP
	e.Use(owner)

	e.Update(env, 0.5)
	assert.Equal(t, 1, e.PendingEMPs())
	assert.Equal(t, 1.0, exposed.Stat(model.ThrottleAuthority))

	events := e.Update(env, 0.6)
	assert.Equal(t, 0, e.PendingEMPs())
	assert.Equal(t, 0.0, exposed.Stat(model.ThrottleAuthority))
	assert.Equal(t, 1.0, shielded.Stat(model.ThrottleAuthority))
	assert.Equal(t, 1.0, far.Stat(model.ThrottleAuthority))
	assert.Equal(t, 1.0, owner.Stat(model.ThrottleAuthority))

	entry, ok := shielded.Effects.Get(KeyShield)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Charges)

	kinds := lo.Map(events, func(ev Event, _ int) EventKind { return ev.Kind })
	assert.Equal(t, []EventKind{EventDetonated, EventAbsorbed, EventHit}, kinds)
}

func TestSpawn_RespectsCapAndInterval(t *testing.T) {
	line, err := track.Builtin("oval")
	require.NoError(t, err)
	cfg := DefaultConfig()
	e := NewEngine(rand.New(rand.NewPCG(3, 4)),
		WithConfig(cfg),
		WithLogger(log.NewNop()),
		WithSpawnPoints(line.SpawnPoints(1, 2)))
	env := &fakeEnv{line: line}

	e.Update(env, 7.9)
	assert.Empty(t, e.Pickups())
	e.Update(env, 0.1)
	assert.Len(t, e.Pickups(), 1)
	for range 10 {
		e.Update(env, 8)
	}
	assert.Len(t, e.Pickups(), cfg.MaxPickups)
	positions := lo.Map(e.Pickups(), func(p Pickup, _ int) geom.Vec3 { return p.Position })
	assert.Len(t, lo.Uniq(positions), cfg.MaxPickups)

	e.Reset()
	e.SetSpawnInterval(0)
	for range 10 {
		e.Update(env, 8)
	}
	assert.Empty(t, e.Pickups())
}

func TestCollect_OneItemPerCar(t *testing.T) {
	e := newTestEngine()
	holder := newCar("a", geom.Zero)
	holder.HeldPowerUp = model.PowerUpNitro
	free := newCar("b", geom.Flat(50, 0))
	env := &fakeEnv{cars: []*car.Car{holder, free}}

	e.Spawn(model.PowerUpMissile, geom.Flat(1, 1))
	e.Spawn(model.PowerUpShield, geom.Flat(51, 0))
	events := e.Update(env, 0.1)

	assert.Equal(t, model.PowerUpNitro, holder.HeldPowerUp)
	assert.Equal(t, model.PowerUpShield, free.HeldPowerUp)
	require.Len(t, e.Pickups(), 1)
	assert.Equal(t, model.PowerUpMissile, e.Pickups()[0].Type)
	assert.Contains(t, events, Event{Kind: EventCollected, Type: model.PowerUpShield, Car: "b"})
}

func TestUse_EmptySlot(t *testing.T) {
	e := newTestEngine()
	c := newCar("a", geom.Zero)
	assert.False(t, e.Use(c))
	assert.Equal(t, 0, c.Effects.Len())
}

func TestContact(t *testing.T) {
	e := newTestEngine()
	a := newCar("a", geom.Zero)
	b := newCar("b", geom.Flat(1, 0))

	a.Velocity = geom.Flat(0, 8)
	e.Contact(a, b)
	assert.Equal(t, 0, a.Effects.Len()+b.Effects.Len())

	a.Velocity = geom.Flat(0, 12)
	e.Contact(a, b)
	assert.InDelta(t, 32, a.Stat(model.MaxSpeed), 1e-9)
	assert.InDelta(t, 32, b.Stat(model.MaxSpeed), 1e-9)
}

func TestReset(t *testing.T) {
	e := newTestEngine()
	c := newCar("a", geom.Zero)
	e.Spawn(model.PowerUpNitro, geom.Flat(100, 0))
	for _, pt := range []model.PowerUpType{model.PowerUpMissile, model.PowerUpOilSlick, model.PowerUpEMP} {
		c.HeldPowerUp = pt
		e.Use(c)
	}
	e.Reset()
	assert.Empty(t, e.Pickups())
	assert.Empty(t, e.Projectiles())
	assert.Empty(t, e.Slicks())
	assert.Equal(t, 0, e.PendingEMPs())
}
