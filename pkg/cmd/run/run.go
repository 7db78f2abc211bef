package run

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/config"
	"github.com/mpapenbr/racesim/pkg/history"
	"github.com/mpapenbr/racesim/pkg/publish"
	"github.com/mpapenbr/racesim/pkg/sim/car"
	"github.com/mpapenbr/racesim/pkg/sim/race"
	"github.com/mpapenbr/racesim/pkg/sim/track"
	"github.com/mpapenbr/racesim/pkg/utils"
	"github.com/mpapenbr/racesim/pkg/utils/broadcast"
)

//nolint:funlen // by design
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "runs a headless race",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, err := runRace(ctx)
			if err != nil {
				return err
			}
			logResult(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&config.Track,
		"track",
		"oval",
		"builtin track name or path to a track yaml file")
	cmd.Flags().IntVar(&config.Opponents,
		"opponents",
		4,
		"number of AI opponents")
	cmd.Flags().StringVar(&config.Personalities,
		"personalities",
		"",
		"comma separated personalities, cycled over the opponents (default: all)")
	cmd.Flags().StringVar(&config.SkillTier,
		"skill-tier",
		"skilled",
		"initial skill tier (novice, amateur, skilled, expert, legend)")
	cmd.Flags().Float64Var(&config.RubberBandStrength,
		"rubber-band-strength",
		0.5,
		"rubber band strength in [0,1], 0 disables")
	cmd.Flags().BoolVar(&config.AdaptiveDifficulty,
		"adaptive-difficulty",
		true,
		"adapt the skill tier to the player's performance")
	cmd.Flags().IntVar(&config.MaxOpponents,
		"max-opponents",
		7,
		"upper bound of AI opponents")
	cmd.Flags().StringVar(&config.PowerUpInterval,
		"powerup-interval",
		"8s",
		"duration between power-up spawns, 0s disables power-ups")
	cmd.Flags().IntVar(&config.TickRate,
		"tick-rate",
		60,
		"simulation ticks per second")
	cmd.Flags().IntVar(&config.Ticks,
		"ticks",
		0,
		"number of ticks to run, 0 runs until the race is finished")
	cmd.Flags().Uint64Var(&config.Seed,
		"seed",
		0,
		"random seed, 0 picks one")
	cmd.Flags().IntVar(&config.Laps,
		"laps",
		3,
		"laps to finish the race, 0 means endless")
	cmd.Flags().BoolVar(&config.Autopilot,
		"autopilot",
		true,
		"let an AI drive the player car, otherwise it idles")
	cmd.Flags().BoolVar(&config.Realtime,
		"realtime",
		false,
		"pace the ticks to the wall clock")
	cmd.Flags().StringVar(&config.PlayerID,
		"player-id",
		"player",
		"id of the player in the history database")
	cmd.Flags().StringVar(&config.PlayerName,
		"player-name",
		"Player",
		"display name of the player")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"publish snapshots to this NATS server")
	cmd.Flags().IntVar(&config.PublishEvery,
		"publish-every",
		6,
		"publish every n-th tick")
	cmd.Flags().StringVar(&config.HistoryDB,
		"history-db",
		"",
		"history database (postgres DSN or sqlite file), empty disables history")
	cmd.Flags().IntVar(&config.HistoryWindow,
		"history-window",
		10,
		"number of laps and results loaded from the history")
	cmd.Flags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"0s",
		"duration to wait for NATS and the history database to be reachable")
	cmd.Flags().BoolVar(&config.WatchConfig,
		"watch-config",
		false,
		"apply rubber band and adaptive difficulty changes of the config file while running")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data, use stdout for console output")
	return cmd
}

type result struct {
	raceID      string
	ticks       int64
	elapsed     float64
	finished    bool
	leaderboard []race.Standing
	laps        []float64 // player lap times of this race
	tier        string
}

//nolint:funlen,cyclop // by design
func runRace(ctx context.Context) (*result, error) {
	simCfg, err := config.NewSimConfig()
	if err != nil {
		return nil, err
	}
	if simCfg.Ticks == 0 && simCfg.Race.Laps == 0 {
		return nil, fmt.Errorf("either ticks or laps must be set")
	}
	seed := simCfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	line, err := loadTrack(config.Track)
	if err != nil {
		return nil, err
	}

	if err = waitForRequiredServices(ctx); err != nil {
		return nil, err
	}

	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, tErr := config.SetupTelemetry(ctx); tErr == nil {
			defer telemetry.Shutdown()
		} else {
			log.Warn("Could not setup telemetry", log.ErrorField(tErr))
		}
		if rErr := config.StartRuntimeMetrics(); rErr != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(rErr))
		}
	}

	raceID := uuid.NewString()
	l := log.Default().Named("run").With(log.String("race", raceID))
	opts := []race.Option{
		race.WithConfig(simCfg.Race),
		race.WithSeed(seed),
		race.WithRaceID(raceID),
	}

	var store *history.Store
	if config.HistoryDB != "" {
		if store, err = history.Open(config.HistoryDB); err != nil {
			return nil, err
		}
		//nolint:errcheck // by design
		defer store.Close()
		rec, lErr := store.Load(ctx, config.PlayerID, config.HistoryWindow)
		if lErr != nil {
			return nil, lErr
		}
		l.Info("history loaded", log.Int("laps", len(rec.LapTimes())), log.Int("races", len(rec.Finishes())))
		opts = append(opts, race.WithRecord(rec))
	}

	var (
		snapshots chan race.Snapshot
		published chan struct{}
		bcst      broadcast.BroadcastServer[race.Snapshot]
	)
	if config.NatsURL != "" {
		conn, cErr := publish.Connect(config.NatsURL, raceID)
		if cErr != nil {
			return nil, cErr
		}
		defer conn.Close()
		snapshots = make(chan race.Snapshot, 16)
		bcst = broadcast.NewBroadcastServer("snapshots", snapshots,
			broadcast.WithBuffer[race.Snapshot](16),
			broadcast.WithTelemetry[race.Snapshot](raceID))
		pub := publish.NewNatsPublisher(conn)
		sub := bcst.Subscribe()
		published = make(chan struct{})
		go func() {
			defer close(published)
			pub.Run(sub)
		}()
		l.Info("publishing snapshots", log.String("subject", pub.Subject(raceID)))
		opts = append(opts, race.WithSnapshotChannel(snapshots, max(1, config.PublishEvery)))
	}

	d := race.New(line, opts...)
	for _, tag := range simCfg.OpponentTags() {
		if _, err = d.AddOpponent(tag); err != nil {
			return nil, err
		}
	}
	player, err := d.AddPlayer(config.PlayerName)
	if err != nil {
		return nil, err
	}
	if config.WatchConfig {
		watchConfig(d)
	}

	ctx, span := otel.Tracer("racesim").Start(ctx, "race", trace.WithAttributes(
		attribute.String("race.id", raceID),
		attribute.String("race.track", line.Name()),
		attribute.Int("race.opponents", len(d.Drivers())),
		attribute.Int64("race.seed", int64(seed)), //nolint:gosec // display only
	))
	defer span.End()
	l.Info("race started",
		log.String("track", line.Name()),
		log.Int("opponents", len(d.Drivers())),
		log.String("tier", d.Tier().String()),
		log.Uint64("seed", seed))

	res := &result{raceID: raceID}
	dt := simCfg.Dt()
	var ticker *time.Ticker
	if config.Realtime {
		ticker = time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
	}
	lap := 0
loop:
	for simCfg.Ticks == 0 || d.Ticks() < int64(simCfg.Ticks) {
		if ticker != nil {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			break loop
		}
		d.Tick(dt, car.Controls{})
		if player.Progress.Lap != lap {
			lap = player.Progress.Lap
			res.laps = append(res.laps, player.Progress.LastLapTime)
		}
		if d.Finished() {
			break
		}
	}
	span.SetAttributes(attribute.Int64("race.ticks", d.Ticks()))

	if snapshots != nil {
		close(snapshots)
		<-published
		bcst.Close()
	}

	res.ticks = d.Ticks()
	res.elapsed = d.Now()
	res.finished = d.Finished()
	res.leaderboard = d.Leaderboard()
	res.tier = d.Tier().String()

	if store != nil {
		sum := &history.RaceSummary{
			PlayerID:  config.PlayerID,
			RaceID:    raceID,
			LapTimes:  res.laps,
			FieldSize: len(d.Cars()),
			Tier:      res.tier,
		}
		if res.finished {
			sum.Position, _ = d.Standing(player)
		}
		if err := store.Save(context.WithoutCancel(ctx), sum); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func waitForRequiredServices(ctx context.Context) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		return fmt.Errorf("invalid wait-for-services: %w", err)
	}
	if timeout <= 0 {
		return nil
	}
	for _, addr := range []string{
		utils.ExtractFromNatsURL(config.NatsURL),
		utils.ExtractFromDBURL(config.HistoryDB),
	} {
		if addr == "" {
			continue
		}
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			return err
		}
	}
	return nil
}

func loadTrack(name string) (*track.RacingLine, error) {
	if _, ok := track.BuiltinDefinition(name); ok {
		return track.Builtin(name)
	}
	return track.LoadFile(name)
}

// watchConfig queues changed rubber band and adaptive settings into the director
func watchConfig(d *race.Director) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config changed", log.String("file", e.Name))
		if viper.IsSet("rubber-band-strength") {
			d.SetRubberBandStrength(viper.GetFloat64("rubber-band-strength"))
		}
		if viper.IsSet("adaptive-difficulty") {
			d.SetAdaptiveDifficulty(viper.GetBool("adaptive-difficulty"))
		}
		if viper.IsSet("powerup-interval") {
			d.SetPowerUpInterval(viper.GetDuration("powerup-interval").Seconds())
		}
	})
	viper.WatchConfig()
}

func logResult(res *result) {
	log.Info("race ended",
		log.String("race", res.raceID),
		log.Bool("finished", res.finished),
		log.Int64("ticks", res.ticks),
		log.Float64("time", res.elapsed),
		log.String("tier", res.tier))
	for _, s := range res.leaderboard {
		log.Info("result",
			log.Int("pos", s.Position),
			log.String("car", s.CarID),
			log.String("name", s.Name),
			log.Int("lap", s.Lap),
			log.Float64("bestLap", s.BestLapTime),
			log.Bool("finished", s.Finished))
	}
}
