package sim

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/simcore/locomotion/internal/sim"

type metrics struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	removed      metric.Int64Counter
	entities     metric.Int64Gauge
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(instrumentationName)

	ticks, err := meter.Int64Counter("sim.ticks",
		metric.WithDescription("Simulation ticks executed"))
	if err != nil {
		return nil, err
	}
	tickDuration, err := meter.Float64Histogram("sim.tick.duration",
		metric.WithDescription("Wall time spent in one tick"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	removed, err := meter.Int64Counter("sim.entities.removed",
		metric.WithDescription("Entities removed from the world, cascades included"))
	if err != nil {
		return nil, err
	}
	entities, err := meter.Int64Gauge("sim.entities",
		metric.WithDescription("Live entities after the tick"))
	if err != nil {
		return nil, err
	}
	return &metrics{
		ticks:        ticks,
		tickDuration: tickDuration,
		removed:      removed,
		entities:     entities,
	}, nil
}

func (m *metrics) recordTick(ctx context.Context, took time.Duration, live, removed int) {
	m.ticks.Add(ctx, 1)
	m.tickDuration.Record(ctx, float64(took.Microseconds())/1000)
	m.entities.Record(ctx, int64(live))
	if removed > 0 {
		m.removed.Add(ctx, int64(removed))
	}
}
