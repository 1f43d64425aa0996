package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/larek/internal/domain/product"
)

// ProductNotFoundError indicates an order references an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// UnpricedProductError indicates an order references a product that has no
// price and therefore cannot be sold.
type UnpricedProductError struct {
	ProductID string
}

func (e *UnpricedProductError) Error() string {
	return fmt.Sprintf("product %s is not for sale", e.ProductID)
}

// TotalMismatchError indicates the submitted total differs from the sum of
// the referenced item prices.
type TotalMismatchError struct {
	Want decimal.Decimal
	Got  decimal.Decimal
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("order total %s does not match items sum %s", e.Got.StringFixed(2), e.Want.StringFixed(2))
}

// Service encapsulates order placement business logic.
type Service struct {
	products  product.Repository
	orders    Repository
	publisher Publisher
	metrics   *metrics
	now       func() time.Time
}

// NewService creates an order Service. A nil publisher disables order events.
func NewService(
	products product.Repository,
	orders Repository,
	publisher Publisher,
) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		products:  products,
		orders:    orders,
		publisher: publisher,
		metrics:   noopMetrics(),
		now:       time.Now,
	}
}

// Instrument reports placed and rejected orders to meters from mp.
func (s *Service) Instrument(mp metric.MeterProvider) error {
	m, err := newMetrics(mp)
	if err != nil {
		return errors.Wrap(err, "order metrics")
	}
	s.metrics = m
	return nil
}

// PlaceOrder validates the form, resolves every item against the catalog,
// checks the total, persists the order and announces it.
func (s *Service) PlaceOrder(ctx context.Context, o Order) (*Result, error) {
	res, err := s.placeOrder(ctx, o)
	s.metrics.record(ctx, res, err)
	return res, err
}

func (s *Service) placeOrder(ctx context.Context, o Order) (*Result, error) {
	if err := o.Validate().Err(); err != nil {
		return nil, err
	}

	// Batch fetch the distinct products in a single query.
	ids := slices.Clone(o.Items)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Every reference counts towards the total, repeated ids included.
	sum := decimal.Zero
	for _, id := range o.Items {
		p, ok := byID[id]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		if !p.Priced() {
			return nil, &UnpricedProductError{ProductID: id}
		}
		sum = sum.Add(p.Price.Decimal)
	}

	if !sum.Equal(o.Total) {
		return nil, &TotalMismatchError{Want: sum, Got: o.Total}
	}

	rec := &Record{
		ID:        uuid.New().String(),
		Order:     o,
		CreatedAt: s.now().UTC(),
	}
	rec.Order.Items = slices.Clone(o.Items)
	rec.Order.Total = sum.Round(2)

	if err := s.orders.Create(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.publisher.OrderPlaced(ctx, rec); err != nil {
		zctx.From(ctx).Warn("Publish order event failed",
			zap.String("order_id", rec.ID),
			zap.Error(err),
		)
	}

	return &Result{
		ID:    rec.ID,
		Total: rec.Order.Total,
	}, nil
}

// Get returns a placed order by id.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return rec, nil
}
