package race

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/mpapenbr/racesim/log"
)

type metrics struct {
	attrs             metric.MeasurementOption
	ticks             metric.Int64Counter
	decisions         metric.Int64Counter
	powerupsUsed      metric.Int64Counter
	difficultyChanges metric.Int64Counter
	tickDuration      metric.Float64Histogram
}

//nolint:lll // readability
func newMetrics(meter metric.Meter, raceID string, l *log.Logger) *metrics {
	nop := noop.NewMeterProvider().Meter("racesim")
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{count}"))
		if err != nil {
			l.Error("failed to register metric", log.String("metric", name), log.ErrorField(err))
			c, _ = nop.Int64Counter(name)
		}
		return c
	}
	hist, err := meter.Float64Histogram("racesim.tick.duration",
		metric.WithDescription("processing time of a simulation tick"),
		metric.WithUnit("s"))
	if err != nil {
		l.Error("failed to register metric", log.String("metric", "racesim.tick.duration"), log.ErrorField(err))
		hist, _ = nop.Float64Histogram("racesim.tick.duration")
	}
	return &metrics{
		attrs:             metric.WithAttributes(attribute.String("race", raceID)),
		ticks:             counter("racesim.ticks", "Number of simulated ticks"),
		decisions:         counter("racesim.decisions", "Number of AI decisions taken"),
		powerupsUsed:      counter("racesim.powerups.used", "Number of used power-ups"),
		difficultyChanges: counter("racesim.difficulty.changes", "Number of skill tier changes"),
		tickDuration:      hist,
	}
}

func (m *metrics) add(c metric.Int64Counter, n int) {
	if n > 0 {
		c.Add(context.Background(), int64(n), m.attrs)
	}
}
