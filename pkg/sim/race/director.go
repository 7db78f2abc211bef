// Package race orchestrates a race: it advances every car per tick, applies
// rubber-banding, runs the power-up engine, tracks laps and the leaderboard and
// adapts the AI skill tier.
package race

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/model"
	"github.com/mpapenbr/racesim/pkg/sim/ai"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/difficulty"
	"github.com/mpapenbr/racesim/pkg/sim/personality"
	"github.com/mpapenbr/racesim/pkg/sim/powerup"
	"github.com/mpapenbr/racesim/pkg/sim/rubberband"
	"github.com/mpapenbr/racesim/pkg/sim/track"
	"github.com/mpapenbr/racesim/pkg/sim/vehicle"
)

const PlayerID = "player"

var (
	ErrPlayerExists       = errors.New("player already added")
	ErrTooManyOpponents   = errors.New("maximum number of opponents reached")
	ErrRaceAlreadyStarted = errors.New("cars cannot be added after the first tick")
)

type Director struct {
	cfg    Config
	raceID string
	rng    *rand.Rand
	log    *log.Logger
	meter  metric.Meter
	m      *metrics

	line       *track.RacingLine
	vehicle    *vehicle.Model
	powerups   *powerup.Engine
	rubberband *rubberband.Controller
	difficulty *difficulty.Controller
	record     *difficulty.Record

	cars      []*car.Car
	byID      map[string]*car.Car
	drivers   []*ai.Driver
	player    *car.Car
	autopilot *ai.Driver

	standings []Standing
	positions map[string]int
	events    []powerup.Event
	prevUse   bool
	now       float64
	ticks     int64
	finished  bool

	snapshots     chan<- Snapshot
	snapshotEvery int
	dropped       int

	mu      sync.Mutex
	pending []func()
}

type Option func(*Director)

func WithConfig(cfg Config) Option {
	return func(d *Director) {
		d.cfg = cfg
	}
}

func WithRand(r *rand.Rand) Option {
	return func(d *Director) {
		d.rng = r
	}
}

// WithSeed is a shortcut for a PCG source with the given seed
func WithSeed(seed uint64) Option {
	return func(d *Director) {
		d.rng = rand.New(rand.NewPCG(seed, seed^0x5eed))
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Director) {
		d.log = l
	}
}

func WithRaceID(id string) Option {
	return func(d *Director) {
		d.raceID = id
	}
}

func WithMeter(m metric.Meter) Option {
	return func(d *Director) {
		d.meter = m
	}
}

// WithRecord uses an existing performance record, e.g. loaded from history
func WithRecord(r *difficulty.Record) Option {
	return func(d *Director) {
		d.record = r
	}
}

// WithSnapshotChannel pushes a snapshot every n ticks into ch. Full channels drop
// the snapshot, the tick loop never blocks.
func WithSnapshotChannel(ch chan<- Snapshot, every int) Option {
	return func(d *Director) {
		d.snapshots = ch
		d.snapshotEvery = max(1, every)
	}
}

// New creates a director for a race on line. A nil line is treated as a track
// without waypoints.
func New(line *track.RacingLine, opts ...Option) *Director {
	d := &Director{
		cfg:       DefaultConfig(),
		line:      line,
		byID:      make(map[string]*car.Car),
		positions: make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.line == nil {
		d.line = &track.RacingLine{}
	}
	if d.raceID == "" {
		d.raceID = uuid.NewString()
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if d.log == nil {
		d.log = log.Default().Named("sim.race")
	}
	if d.meter == nil {
		d.meter = otel.GetMeterProvider().Meter("racesim.director")
	}
	if d.record == nil {
		d.record = difficulty.NewRecord()
	}
	d.m = newMetrics(d.meter, d.raceID, d.log)
	d.vehicle = vehicle.New()
	d.powerups = powerup.NewEngine(d.rng,
		powerup.WithConfig(d.cfg.PowerUps),
		powerup.WithLogger(d.log.Named("powerup")),
		powerup.WithSpawnPoints(d.line.SpawnPoints(d.cfg.PowerUps.SpawnEvery, d.cfg.PowerUps.SpawnLateral)),
	)
	d.rubberband = rubberband.New(
		rubberband.WithConfig(d.cfg.RubberBand),
		rubberband.WithStrength(d.cfg.RubberBandStrength),
		rubberband.WithLogger(d.log.Named("rubberband")),
	)
	d.difficulty = difficulty.NewController(d.cfg.SkillTier,
		difficulty.WithConfig(d.cfg.Difficulty),
		difficulty.WithEnabled(d.cfg.AdaptiveDifficulty),
		difficulty.WithLogger(d.log.Named("difficulty")),
	)
	return d
}

func (d *Director) RaceID() string                  { return d.raceID }
func (d *Director) Config() Config                  { return d.cfg }
func (d *Director) Player() *car.Car                { return d.player }
func (d *Director) Drivers() []*ai.Driver           { return d.drivers }
func (d *Director) Record() *difficulty.Record      { return d.record }
func (d *Director) Tier() model.SkillTier           { return d.difficulty.Tier() }
func (d *Director) PowerUps() *powerup.Engine       { return d.powerups }
func (d *Director) Events() []powerup.Event         { return d.events }
func (d *Director) Ticks() int64                    { return d.ticks }
func (d *Director) Finished() bool                  { return d.finished }
func (d *Director) DroppedSnapshots() int           { return d.dropped }
func (d *Director) RubberBandStrength() float64     { return d.rubberband.Strength() }
func (d *Director) AdaptiveDifficultyEnabled() bool { return d.difficulty.Enabled() }

// AddPlayer places the player car on the next free grid slot.
func (d *Director) AddPlayer(name string) (*car.Car, error) {
	if d.player != nil {
		return nil, ErrPlayerExists
	}
	if d.ticks > 0 {
		return nil, ErrRaceAlreadyStarted
	}
	p := personality.Player()
	c := car.New(PlayerID, model.CarKindPlayer, p.Base(), car.WithName(name))
	if d.cfg.Autopilot {
		prof, err := personality.Lookup(model.Professional)
		if err != nil {
			return nil, err
		}
		d.autopilot = ai.NewDriver(c, prof, p.Tier, d.rng,
			ai.WithoutMistakes(), ai.WithLogger(d.log.Named("autopilot")))
		// the driver derived AI values, the player keeps its own
		c.Base = p.Base()
	}
	d.player = c
	d.addCar(c)
	d.log.Info("player added", log.String("name", name), log.Bool("autopilot", d.cfg.Autopilot))
	return c, nil
}

// AddOpponent creates an AI car with the given personality at the current tier.
func (d *Director) AddOpponent(tag model.PersonalityTag) (*ai.Driver, error) {
	if len(d.drivers) >= d.cfg.MaxOpponents {
		return nil, ErrTooManyOpponents
	}
	if d.ticks > 0 {
		return nil, ErrRaceAlreadyStarted
	}
	prof, err := personality.Lookup(tag)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("ai-%d", len(d.drivers)+1)
	c := car.New(id, model.CarKindAI, model.Stats{},
		car.WithName(fmt.Sprintf("%s %d", tag, len(d.drivers)+1)),
		car.WithPersonality(tag, prof.Color))
	drv := ai.NewDriver(c, prof, d.difficulty.Tier(), d.rng, ai.WithLogger(d.log.Named("ai")))
	d.drivers = append(d.drivers, drv)
	d.addCar(c)
	d.log.Debug("opponent added", log.String("id", id), log.String("personality", string(tag)))
	return drv, nil
}

func (d *Director) addCar(c *car.Car) {
	slots := d.line.Grid(len(d.cars) + 1)
	if len(slots) > 0 {
		slot := slots[len(slots)-1]
		c.SetSpawn(slot.Position, slot.Yaw)
	}
	c.Reset()
	d.cars = append(d.cars, c)
	d.byID[c.ID] = c
	d.updateStandings()
}

// SetRubberBandStrength is applied at the next tick boundary
func (d *Director) SetRubberBandStrength(v float64) {
	d.enqueue(func() {
		d.rubberband.SetStrength(v)
		d.log.Info("rubberband strength changed", log.Float64("strength", d.rubberband.Strength()))
	})
}

// SetAdaptiveDifficulty is applied at the next tick boundary
func (d *Director) SetAdaptiveDifficulty(enabled bool) {
	d.enqueue(func() {
		d.difficulty.SetEnabled(enabled)
		d.log.Info("adaptive difficulty changed", log.Bool("enabled", enabled))
	})
}

// SetPowerUpInterval is applied at the next tick boundary, <= 0 disables spawning
func (d *Director) SetPowerUpInterval(seconds float64) {
	d.enqueue(func() {
		d.powerups.SetSpawnInterval(seconds)
		d.log.Info("powerup interval changed", log.Float64("seconds", seconds))
	})
}

// SetSkillTier moves the whole field to tier at the next tick boundary
func (d *Director) SetSkillTier(tier model.SkillTier) {
	d.enqueue(func() {
		d.difficulty.SetTier(tier)
		d.applyTier(tier)
	})
}

func (d *Director) enqueue(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, f)
}

func (d *Director) applyPending() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (d *Director) applyTier(tier model.SkillTier) {
	for _, drv := range d.drivers {
		drv.SetTier(tier)
	}
}

// Tick advances the race by dt seconds. input is used for the player car unless the
// autopilot drives it.
//
//nolint:funlen // tick order
func (d *Director) Tick(dt float64, input car.Controls) {
	d.applyPending()
	if dt <= 0 {
		return
	}
	start := time.Now()

	// controls
	if d.player != nil {
		if d.autopilot != nil {
			d.autopilot.Update(d, dt)
			d.player.Controls.UseItem = d.player.HeldPowerUp != model.PowerUpNone
		} else {
			d.player.Controls = input
		}
		if d.player.Controls.UseItem && !d.prevUse {
			d.powerups.Use(d.player)
		}
		d.prevUse = d.player.Controls.UseItem
	}
	decisions := 0
	for _, drv := range d.drivers {
		if drv.Update(d, dt) {
			decisions++
		}
	}

	// physics
	for _, c := range d.cars {
		d.vehicle.Step(c, c.Effective(), dt)
	}
	d.resolveCollisions()

	// adjustments
	if d.player != nil {
		for _, drv := range d.drivers {
			c := drv.Car()
			d.rubberband.Apply(c, d.Relation(d.player, c), c.Position.Dist(d.player.Position))
		}
	}
	d.events = d.powerups.Update(d, dt)
	for _, c := range d.cars {
		c.Effects.Advance(dt)
	}
	d.limitSpeeds()

	d.now += dt
	d.ticks++
	d.updateProgress()
	d.updateStandings()
	if d.player != nil {
		d.record.SetPosition(d.positions[d.player.ID], len(d.cars))
		if tier, changed := d.difficulty.Update(dt, d.record); changed {
			d.applyTier(tier)
			d.m.add(d.m.difficultyChanges, 1)
		}
	}

	d.m.add(d.m.ticks, 1)
	d.m.add(d.m.decisions, decisions)
	d.m.add(d.m.powerupsUsed, lo.CountBy(d.events, func(e powerup.Event) bool {
		return e.Kind == powerup.EventUsed
	}))
	d.m.tickDuration.Record(context.Background(), time.Since(start).Seconds(), d.m.attrs)
	d.publish()
}

func (d *Director) publish() {
	if d.snapshots == nil || d.ticks%int64(d.snapshotEvery) != 0 {
		return
	}
	select {
	case d.snapshots <- d.Snapshot():
	default:
		d.dropped++
	}
}

// Reset restarts the race: every car goes back to its grid slot, every transient
// effect, decision and item is dropped. The performance record is kept.
func (d *Director) Reset() {
	d.applyPending()
	for _, c := range d.cars {
		c.Reset()
	}
	for _, drv := range d.drivers {
		drv.Reset()
	}
	if d.autopilot != nil {
		d.autopilot.Reset()
	}
	d.powerups.Reset()
	d.difficulty.Reset()
	d.events = nil
	d.prevUse = false
	d.now = 0
	d.ticks = 0
	d.finished = false
	d.updateStandings()
	d.log.Info("race reset", log.String("race", d.raceID))
}

// ai.World and powerup.Env

func (d *Director) Line() *track.RacingLine { return d.line }
func (d *Director) Cars() []*car.Car        { return d.cars }
func (d *Director) Now() float64            { return d.now }

func (d *Director) Car(id string) *car.Car {
	return d.byID[id]
}

// Standing returns the race position of c and the field size
func (d *Director) Standing(c *car.Car) (pos, field int) {
	return d.positions[c.ID], len(d.cars)
}

// Relation tells where other is seen from self
func (d *Director) Relation(self, other *car.Car) track.Relation {
	return d.line.Relation(d.subject(self), d.subject(other))
}

func (d *Director) subject(c *car.Car) track.Subject {
	return track.Subject{ID: c.ID, Position: c.Position, Progress: d.Progress(c)}
}
