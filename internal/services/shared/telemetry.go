// Package shared provides shared instrumentation for the agent's services.
package shared

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// instrumentationName is the name used for OpenTelemetry instrumentation.
	instrumentationName = "github.com/meridian-research/aave-liquidator/internal/services"
)

// Telemetry provides OpenTelemetry metrics for the tracking and
// liquidation loops.
type Telemetry struct {
	meter metric.Meter

	trackedSize       metric.Int64Gauge
	minHealthFactor   metric.Float64Gauge
	liquidationsTotal metric.Int64Counter
	gasBumpsTotal     metric.Int64Counter
	trackerIterations metric.Int64Counter
	accountsUntracked metric.Int64Counter
}

// NewTelemetry creates a Telemetry instance on the global meter provider.
func NewTelemetry() (*Telemetry, error) {
	return NewTelemetryWithProvider(otel.GetMeterProvider())
}

// NewTelemetryWithProvider creates a Telemetry instance with a custom
// meter provider.
func NewTelemetryWithProvider(mp metric.MeterProvider) (*Telemetry, error) {
	meter := mp.Meter(instrumentationName)
	t := &Telemetry{meter: meter}

	var err error
	if t.trackedSize, err = meter.Int64Gauge(
		"tracker.tracked.size",
		metric.WithDescription("Number of accounts on the tracked set"),
	); err != nil {
		return nil, err
	}
	if t.minHealthFactor, err = meter.Float64Gauge(
		"tracker.health_factor.min",
		metric.WithDescription("Lowest health factor across the tracked set"),
	); err != nil {
		return nil, err
	}
	if t.liquidationsTotal, err = meter.Int64Counter(
		"liquidator.attempts.total",
		metric.WithDescription("Total number of liquidation attempts dispatched"),
	); err != nil {
		return nil, err
	}
	if t.gasBumpsTotal, err = meter.Int64Counter(
		"liquidator.gas_bumps.total",
		metric.WithDescription("Total number of gas-price bumps against mempool competitors"),
	); err != nil {
		return nil, err
	}
	if t.trackerIterations, err = meter.Int64Counter(
		"tracker.iterations.total",
		metric.WithDescription("Total tracker loop iterations"),
	); err != nil {
		return nil, err
	}
	if t.accountsUntracked, err = meter.Int64Counter(
		"tracker.untracked.total",
		metric.WithDescription("Accounts removed from the tracked set"),
	); err != nil {
		return nil, err
	}
	return t, nil
}

// RecordIteration records one tracker loop pass.
func (t *Telemetry) RecordIteration(ctx context.Context, trackedSize int, minHealthFactor float64) {
	if t == nil {
		return
	}
	t.trackerIterations.Add(ctx, 1)
	t.trackedSize.Record(ctx, int64(trackedSize))
	if minHealthFactor > 0 {
		t.minHealthFactor.Record(ctx, minHealthFactor)
	}
}

// RecordUntracked records accounts leaving the tracked set.
func (t *Telemetry) RecordUntracked(ctx context.Context, count int, reason string) {
	if t == nil || count == 0 {
		return
	}
	t.accountsUntracked.Add(ctx, int64(count), metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordAttempt records one liquidation dispatch.
func (t *Telemetry) RecordAttempt(ctx context.Context, borrower string) {
	if t == nil {
		return
	}
	t.liquidationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("borrower", borrower)))
}

// RecordGasBump records one competitive gas-price bump.
func (t *Telemetry) RecordGasBump(ctx context.Context) {
	if t == nil {
		return
	}
	t.gasBumpsTotal.Add(ctx, 1)
}
