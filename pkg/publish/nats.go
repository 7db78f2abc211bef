package publish

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/sim/race"
)

// Conn is the part of *nats.Conn the publisher needs
type Conn interface {
	Publish(subj string, data []byte) error
}

type (
	NatsPublisher struct {
		conn      Conn
		subject   string
		every     int64
		l         *log.Logger
		mu        sync.Mutex
		published int
		failed    int
	}
	Option func(*NatsPublisher)
)

func WithLogger(l *log.Logger) Option {
	return func(p *NatsPublisher) {
		p.l = l
	}
}

// WithEvery publishes only snapshots whose tick is a multiple of n
func WithEvery(n int64) Option {
	return func(p *NatsPublisher) {
		p.every = n
	}
}

// WithSubjectPrefix replaces the default prefix racesim.snapshot
func WithSubjectPrefix(prefix string) Option {
	return func(p *NatsPublisher) {
		p.subject = prefix
	}
}

// Connect opens a NATS connection named after the race
func Connect(url, raceID string) (*nats.Conn, error) {
	conn, err := nats.Connect(url, nats.Name(fmt.Sprintf("racesim-%s", raceID)))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

func NewNatsPublisher(conn Conn, opts ...Option) *NatsPublisher {
	ret := &NatsPublisher{
		conn:    conn,
		subject: "racesim.snapshot",
		every:   1,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.l == nil {
		ret.l = log.Default().Named("publish")
	}
	return ret
}

// Subject is the subject snapshots of the given race are published on
func (p *NatsPublisher) Subject(raceID string) string {
	return fmt.Sprintf("%s.%s", p.subject, raceID)
}

// Publish sends a single snapshot
func (p *NatsPublisher) Publish(s *race.Snapshot) error {
	err := p.conn.Publish(p.Subject(s.RaceID), Encode(s))
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		return fmt.Errorf("publish snapshot %d: %w", s.Tick, err)
	}
	p.published++
	return nil
}

// Run publishes snapshots from source until it is closed
func (p *NatsPublisher) Run(source <-chan race.Snapshot) {
	for s := range source {
		if p.every > 1 && s.Tick%p.every != 0 {
			continue
		}
		if err := p.Publish(&s); err != nil {
			p.l.Warn("could not publish snapshot", log.ErrorField(err))
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.l.Debug("snapshot source closed",
		log.Int("published", p.published), log.Int("failed", p.failed))
}

func (p *NatsPublisher) Stats() (published, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}
