package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	placed   metric.Int64Counter
	rejected metric.Int64Counter
	revenue  metric.Float64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter("github.com/xenking/larek/internal/domain/order")

	var (
		m   metrics
		err error
	)
	if m.placed, err = meter.Int64Counter("larek.orders.placed",
		metric.WithDescription("Orders accepted and stored"),
	); err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	if m.rejected, err = meter.Int64Counter("larek.orders.rejected",
		metric.WithDescription("Orders refused, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	if m.revenue, err = meter.Float64Counter("larek.orders.revenue",
		metric.WithDescription("Sum of accepted order totals"),
		metric.WithUnit("{synapse}"),
	); err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	return &m, nil
}

func noopMetrics() *metrics {
	m, _ := newMetrics(noop.NewMeterProvider())
	return m
}

// rejectReason classifies a PlaceOrder failure for the rejected counter.
// Storage failures are not rejections and yield "".
func rejectReason(err error) string {
	var (
		verr  *ValidationError
		pnf   *ProductNotFoundError
		unp   *UnpricedProductError
		tmErr *TotalMismatchError
	)
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &pnf):
		return "unknown_item"
	case errors.As(err, &unp):
		return "unpriced_item"
	case errors.As(err, &tmErr):
		return "total_mismatch"
	default:
		return ""
	}
}

func (m *metrics) record(ctx context.Context, res *Result, err error) {
	if err == nil {
		m.placed.Add(ctx, 1)
		m.revenue.Add(ctx, res.Total.InexactFloat64())
		return
	}
	if reason := rejectReason(err); reason != "" {
		m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}
