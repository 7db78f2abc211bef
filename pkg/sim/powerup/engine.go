// Package powerup handles the item lifecycle: pickups spawn on the track, cars
// collect them, and using an item applies its effect.
package powerup

import (
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/geom"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/car"
)

// Roller yields uniform values in [0,1)
type Roller interface {
	Float64() float64
	IntN(n int) int
}

type Config struct {
	SpawnInterval float64 // seconds, <= 0 disables spawning
	MaxPickups    int
	CollectRadius float64
	UsageInterval float64 // AI usage checks
	SpawnEvery    int     // a spawn point every n waypoints
	SpawnLateral  float64

	BoostFactor      float64
	BoostDuration    float64
	BoostMaxDuration float64

	ShieldDuration float64
	ShieldHits     int

	MissileSpeed    float64
	MissileRange    float64
	MissileRadius   float64
	MissilePenalty  HitPenalty
	MissileLaunchAt float64 // distance in front of the car

	OilRadius   float64
	OilLifetime float64
	OilImmunity float64 // owner is immune for this long after dropping
	OilGrip     float64
	OilSteer    float64
	OilRefresh  float64
	OilDropAt   float64 // distance behind the car

	NitroBonus       float64
	NitroDuration    float64
	NitroMaxDuration float64

	EMPCharge  float64
	EMPRadius  float64
	EMPDisable float64

	ContactSpeed   float64 // relative speed above which a contact is a hit
	ContactPenalty HitPenalty
}

//nolint:mnd // tuning values
func DefaultConfig() Config {
	return Config{
		SpawnInterval: 8,
		MaxPickups:    5,
		CollectRadius: 3,
		UsageInterval: 0.5,
		SpawnEvery:    3,
		SpawnLateral:  2.5,

		BoostFactor:      1.5,
		BoostDuration:    5,
		BoostMaxDuration: 10,

		ShieldDuration: 6,
		ShieldHits:     3,

		MissileSpeed:    80,
		MissileRange:    150,
		MissileRadius:   2.5,
		MissilePenalty:  HitPenalty{Key: KeyMissile, Factor: 0.5, Duration: 2},
		MissileLaunchAt: 3,

		OilRadius:   4,
		OilLifetime: 15,
		OilImmunity: 1,
		OilGrip:     0.3,
		OilSteer:    0.5,
		OilRefresh:  0.25,
		OilDropAt:   4,

		NitroBonus:       1.0,
		NitroDuration:    3,
		NitroMaxDuration: 6,

		EMPCharge:  1,
		EMPRadius:  30,
		EMPDisable: 2,

		ContactSpeed:   10,
		ContactPenalty: HitPenalty{Key: KeyContact, Factor: 0.8, Duration: 1},
	}
}

type Pickup struct {
	ID       int
	Type     model.PowerUpType
	Position geom.Vec3
}

type Projectile struct {
	ID        int
	Owner     string
	Position  geom.Vec3
	Direction geom.Vec3
	Traveled  float64
}

// OilSlick is owned by the world, not by a car
type OilSlick struct {
	ID        int
	Owner     string
	Position  geom.Vec3
	Age       float64
	Remaining float64
}

type pendingEMP struct {
	Owner     string
	Remaining float64
}

type EventKind int

const (
	EventSpawned EventKind = iota
	EventCollected
	EventUsed
	EventHit
	EventAbsorbed
	EventDetonated
)

func (k EventKind) String() string {
	return [...]string{"spawned", "collected", "used", "hit", "absorbed", "detonated"}[k]
}

type Event struct {
	Kind   EventKind
	Type   model.PowerUpType
	Car    string // the acting car
	Target string // the affected car, if any
}

type Engine struct {
	cfg         Config
	rng         Roller
	log         *log.Logger
	spawnPoints []geom.Vec3

	nextID      int
	spawnTimer  float64
	usageTimers map[string]float64
	pickups     []Pickup
	projectiles []Projectile
	slicks      []OilSlick
	emps        []pendingEMP
	events      []Event
}

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func WithSpawnPoints(pts []geom.Vec3) Option {
	return func(e *Engine) {
		e.spawnPoints = slices.Clone(pts)
	}
}

func NewEngine(rng Roller, opts ...Option) *Engine {
	e := &Engine{
		cfg:         DefaultConfig(),
		rng:         rng,
		log:         log.Default().Named("sim.powerup"),
		usageTimers: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// SetSpawnInterval changes the spawn interval, <= 0 disables spawning
func (e *Engine) SetSpawnInterval(v float64) {
	e.cfg.SpawnInterval = v
}

func (e *Engine) Pickups() []Pickup         { return slices.Clone(e.pickups) }
func (e *Engine) Projectiles() []Projectile { return slices.Clone(e.projectiles) }
func (e *Engine) Slicks() []OilSlick        { return slices.Clone(e.slicks) }

// PendingEMPs is the number of charging EMPs
func (e *Engine) PendingEMPs() int { return len(e.emps) }

// Reset removes every world object and timer
func (e *Engine) Reset() {
	e.spawnTimer = 0
	clear(e.usageTimers)
	e.pickups = nil
	e.projectiles = nil
	e.slicks = nil
	e.emps = nil
	e.events = nil
}

// Update advances the item world by dt. Returns the events of this tick.
func (e *Engine) Update(env Env, dt float64) []Event {
	e.events = e.events[:0]
	cars := env.Cars()
	e.spawn(dt)
	e.collect(cars)
	e.aiUsage(env, dt)
	e.moveProjectiles(cars, dt)
	e.updateSlicks(cars, dt)
	e.updateEMPs(cars, dt)
	return slices.Clone(e.events)
}

func (e *Engine) emit(ev Event) {
	e.events = append(e.events, ev)
	if e.log.Enabled(log.DebugLevel) {
		e.log.Debug("powerup event",
			log.String("kind", ev.Kind.String()),
			log.String("type", ev.Type.String()),
			log.String("car", ev.Car),
			log.String("target", ev.Target))
	}
}

// Spawn places a pickup of type t at pos, ignoring the limits. Mainly for setups.
func (e *Engine) Spawn(t model.PowerUpType, pos geom.Vec3) Pickup {
	e.nextID++
	p := Pickup{ID: e.nextID, Type: t, Position: pos}
	e.pickups = append(e.pickups, p)
	e.emit(Event{Kind: EventSpawned, Type: t})
	return p
}

func (e *Engine) spawn(dt float64) {
	if e.cfg.SpawnInterval <= 0 || len(e.spawnPoints) == 0 {
		return
	}
	e.spawnTimer += dt
	if e.spawnTimer < e.cfg.SpawnInterval {
		return
	}
	e.spawnTimer -= e.cfg.SpawnInterval
	if len(e.pickups) >= e.cfg.MaxPickups {
		return
	}
	free := lo.Filter(e.spawnPoints, func(p geom.Vec3, _ int) bool {
		return !lo.ContainsBy(e.pickups, func(pk Pickup) bool { return pk.Position == p })
	})
	if len(free) == 0 {
		return
	}
	pos := free[e.rng.IntN(len(free))]
	t := model.AllPowerUps[e.rng.IntN(len(model.AllPowerUps))]
	e.Spawn(t, pos)
}

// collect gives each pickup to the first car in range that has a free slot
func (e *Engine) collect(cars []*car.Car) {
	r2 := e.cfg.CollectRadius * e.cfg.CollectRadius
	e.pickups = lo.Filter(e.pickups, func(p Pickup, _ int) bool {
		for _, c := range cars {
			if c.HeldPowerUp != model.PowerUpNone || c.Position.DistSq(p.Position) > r2 {
				continue
			}
			c.HeldPowerUp = p.Type
			e.emit(Event{Kind: EventCollected, Type: p.Type, Car: c.ID})
			return false
		}
		return true
	})
}

func (e *Engine) aiUsage(env Env, dt float64) {
	for _, c := range env.Cars() {
		if !c.IsAI() || c.HeldPowerUp == model.PowerUpNone {
			continue
		}
		e.usageTimers[c.ID] += dt
		if e.usageTimers[c.ID] < e.cfg.UsageInterval {
			continue
		}
		e.usageTimers[c.ID] = 0
		if ShouldUse(env, c, e.rng) {
			e.Use(c)
		}
	}
}

// Use consumes the held item of c. Returns false if c holds nothing.
func (e *Engine) Use(c *car.Car) bool {
	t := c.HeldPowerUp
	if t == model.PowerUpNone {
		return false
	}
	c.HeldPowerUp = model.PowerUpNone
	switch t {
	case model.PowerUpSpeedBoost:
		applyBoost(c, &e.cfg)
	case model.PowerUpShield:
		applyShield(c, &e.cfg)
	case model.PowerUpNitro:
		applyNitro(c, &e.cfg)
	case model.PowerUpMissile:
		fwd := c.Forward()
		e.nextID++
		e.projectiles = append(e.projectiles, Projectile{
			ID:        e.nextID,
			Owner:     c.ID,
			Position:  c.Position.Add(fwd.Scale(e.cfg.MissileLaunchAt)),
			Direction: fwd,
		})
	case model.PowerUpOilSlick:
		e.nextID++
		e.slicks = append(e.slicks, OilSlick{
			ID:        e.nextID,
			Owner:     c.ID,
			Position:  c.Position.Sub(c.Forward().Scale(e.cfg.OilDropAt)),
			Remaining: e.cfg.OilLifetime,
		})
	case model.PowerUpEMP:
		e.emps = append(e.emps, pendingEMP{Owner: c.ID, Remaining: e.cfg.EMPCharge})
	case model.PowerUpNone:
	}
	e.emit(Event{Kind: EventUsed, Type: t, Car: c.ID})
	return true
}

// HitCar applies a hit penalty to target and records the event.
func (e *Engine) HitCar(target *car.Car, source string, t model.PowerUpType, p HitPenalty) bool {
	absorbed := Hit(target, source, p)
	kind := EventHit
	if absorbed {
		kind = EventAbsorbed
	}
	e.emit(Event{Kind: kind, Type: t, Car: source, Target: target.ID})
	return absorbed
}

// Contact handles a collision between two cars. Above the contact speed both
// cars take a hit.
func (e *Engine) Contact(a, b *car.Car) {
	if a.Velocity.Sub(b.Velocity).Len() <= e.cfg.ContactSpeed {
		return
	}
	e.HitCar(a, b.ID, model.PowerUpNone, e.cfg.ContactPenalty)
	e.HitCar(b, a.ID, model.PowerUpNone, e.cfg.ContactPenalty)
}

func (e *Engine) moveProjectiles(cars []*car.Car, dt float64) {
	r2 := e.cfg.MissileRadius * e.cfg.MissileRadius
	step := e.cfg.MissileSpeed * dt
	e.projectiles = lo.FilterMap(e.projectiles, func(p Projectile, _ int) (Projectile, bool) {
		from := p.Position
		to := from.Add(p.Direction.Scale(step))
		for _, c := range cars {
			if c.ID == p.Owner {
				continue
			}
			if segmentDistSq(from, to, c.Position) <= r2 {
				e.HitCar(c, p.Owner, model.PowerUpMissile, e.cfg.MissilePenalty)
				return p, false
			}
		}
		p.Position = to
		p.Traveled += step
		return p, p.Traveled < e.cfg.MissileRange
	})
}

func (e *Engine) updateSlicks(cars []*car.Car, dt float64) {
	r2 := e.cfg.OilRadius * e.cfg.OilRadius
	e.slicks = lo.FilterMap(e.slicks, func(s OilSlick, _ int) (OilSlick, bool) {
		s.Age += dt
		s.Remaining -= dt
		if s.Remaining <= 0 {
			return s, false
		}
		for _, c := range cars {
			if c.ID == s.Owner && s.Age < e.cfg.OilImmunity {
				continue
			}
			if c.Position.DistSq(s.Position) <= r2 {
				applyOil(c, s.Owner, &e.cfg)
			}
		}
		return s, true
	})
}

func (e *Engine) updateEMPs(cars []*car.Car, dt float64) {
	e.emps = lo.FilterMap(e.emps, func(p pendingEMP, _ int) (pendingEMP, bool) {
		p.Remaining -= dt
		if p.Remaining > 0 {
			return p, true
		}
		owner, ok := lo.Find(cars, func(c *car.Car) bool { return c.ID == p.Owner })
		if !ok {
			return p, false
		}
		e.emit(Event{Kind: EventDetonated, Type: model.PowerUpEMP, Car: owner.ID})
		r2 := e.cfg.EMPRadius * e.cfg.EMPRadius
		for _, c := range cars {
			if c == owner || c.Position.DistSq(owner.Position) > r2 {
				continue
			}
			if c.AbsorbHit() {
				e.emit(Event{Kind: EventAbsorbed, Type: model.PowerUpEMP, Car: owner.ID, Target: c.ID})
				continue
			}
			applyEMP(c, owner.ID, &e.cfg)
			e.emit(Event{Kind: EventHit, Type: model.PowerUpEMP, Car: owner.ID, Target: c.ID})
		}
		return p, false
	})
}

// segmentDistSq is the squared distance between p and the segment a-b
func segmentDistSq(a, b, p geom.Vec3) float64 {
	ab := b.Sub(a)
	l2 := ab.LenSq()
	if l2 == 0 {
		return p.DistSq(a)
	}
	t := geom.Clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return p.DistSq(a.Add(ab.Scale(t)))
}
