// Package history persists the player's lap times and race results between runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/sim/difficulty"
)

var ErrNotConnected = errors.New("history store not connected")

type (
	LapRecord struct {
		ID        uint   `gorm:"primaryKey"`
		PlayerID  string `gorm:"index;size:64"`
		RaceID    string `gorm:"size:64"`
		Lap       int
		Seconds   float64
		CreatedAt time.Time
	}
	RaceResult struct {
		ID        uint   `gorm:"primaryKey"`
		PlayerID  string `gorm:"index;size:64"`
		RaceID    string `gorm:"uniqueIndex;size:64"`
		Position  int
		FieldSize int
		Tier      string `gorm:"size:16"`
		CreatedAt time.Time
	}
	// RaceSummary is what a finished (or aborted) race contributes to the history
	RaceSummary struct {
		PlayerID  string
		RaceID    string
		LapTimes  []float64
		Position  int // 0 if the race was not finished
		FieldSize int
		Tier      string
	}
)

type (
	Store struct {
		db *gorm.DB
		l  *log.Logger
	}
	Option func(*Store)
)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.l = l
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// Open connects to postgres if dsn is a postgres url or key/value dsn.
// Otherwise dsn is taken as sqlite file, empty means in-memory.
func Open(dsn string, opts ...Option) (*Store, error) {
	var (
		db  *gorm.DB
		err error
	)
	if isPostgres(dsn) {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), gormConfig())
	} else {
		path := dsn
		if path == "" {
			path = "file::memory:"
		}
		db, err = gorm.Open(sqlite.Open(path), gormConfig())
		if err == nil {
			err = singleConn(db)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return NewStore(db, opts...)
}

func isPostgres(dsn string) bool {
	for _, p := range []string{"postgres://", "postgresql://", "host="} {
		if strings.HasPrefix(dsn, p) {
			return true
		}
	}
	return false
}

// in-memory sqlite databases exist per connection
func singleConn(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return nil
}

// NewStore uses db as is and migrates the history tables
func NewStore(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.l == nil {
		s.l = log.Default().Named("history")
	}
	if db == nil {
		return nil, ErrNotConnected
	}
	if err := db.AutoMigrate(&LapRecord{}, &RaceResult{}); err != nil {
		return nil, fmt.Errorf("migrate history tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return ErrNotConnected
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save stores the laps and, for a finished race, the result in one transaction
func (s *Store) Save(ctx context.Context, sum *RaceSummary) error {
	if s == nil || s.db == nil {
		return ErrNotConnected
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(sum.LapTimes) > 0 {
			laps := make([]LapRecord, 0, len(sum.LapTimes))
			for i, t := range sum.LapTimes {
				laps = append(laps, LapRecord{
					PlayerID: sum.PlayerID,
					RaceID:   sum.RaceID,
					Lap:      i + 1,
					Seconds:  t,
				})
			}
			if err := tx.Create(&laps).Error; err != nil {
				return err
			}
		}
		if sum.Position < 1 {
			return nil
		}
		return tx.Create(&RaceResult{
			PlayerID:  sum.PlayerID,
			RaceID:    sum.RaceID,
			Position:  sum.Position,
			FieldSize: sum.FieldSize,
			Tier:      sum.Tier,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("save race %s: %w", sum.RaceID, err)
	}
	s.l.Debug("race saved",
		log.String("player", sum.PlayerID),
		log.String("race", sum.RaceID),
		log.Int("laps", len(sum.LapTimes)),
		log.Int("position", sum.Position))
	return nil
}

// Load rebuilds a performance record from the latest window laps and results
func (s *Store) Load(ctx context.Context, playerID string, window int) (*difficulty.Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConnected
	}
	window = max(1, window)
	var laps []LapRecord
	if err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("id desc").Limit(window).
		Find(&laps).Error; err != nil {
		return nil, fmt.Errorf("load laps of %s: %w", playerID, err)
	}
	var results []RaceResult
	if err := s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("id desc").Limit(window).
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("load results of %s: %w", playerID, err)
	}
	slices.Reverse(laps)
	slices.Reverse(results)

	rec := difficulty.NewRecord(difficulty.WithWindow(window))
	for i := range laps {
		rec.AddLap(laps[i].Seconds)
	}
	for i := range results {
		rec.AddResult(results[i].Position, results[i].FieldSize)
	}
	s.l.Debug("history loaded",
		log.String("player", playerID),
		log.Int("laps", len(laps)),
		log.Int("results", len(results)))
	return rec, nil
}
