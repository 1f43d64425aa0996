package state

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/product"
)

// OrderPlacer submits checked-out orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, o order.Order) (*order.Result, error)
}

const lockStripes = 64

// Service runs AppState operations against stored sessions. Every call
// loads the session, attaches the current catalog, applies the operation and
// saves the result.
//
// Operations on the same session are serialized within the process.
type Service struct {
	products product.Repository
	sessions Store
	orders   OrderPlacer
	now      func() time.Time

	locks [lockStripes]sync.Mutex
}

// NewService creates a session Service.
func NewService(products product.Repository, sessions Store, orders OrderPlacer) *Service {
	return &Service{
		products: products,
		sessions: sessions,
		orders:   orders,
		now:      time.Now,
	}
}

func (s *Service) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Open starts a new empty session.
func (s *Service) Open(ctx context.Context) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return sess, nil
}

// Close discards a session.
func (s *Service) Close(ctx context.Context, id string) error {
	defer s.lock(id)()
	if err := s.sessions.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*Session, *AppState, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get session")
	}
	catalog, err := s.products.List(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list products")
	}
	return sess, sess.State(catalog), nil
}

// mutate applies fn to the session state and saves it when fn succeeds.
func (s *Service) mutate(ctx context.Context, id string, fn func(st *AppState) error) (*AppState, error) {
	defer s.lock(id)()

	sess, st, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(st); err != nil {
		return nil, err
	}
	sess.Update(st, s.now().UTC())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return st, nil
}

// State returns the current state of a session.
func (s *Service) State(ctx context.Context, id string) (*AppState, error) {
	_, st, err := s.load(ctx, id)
	return st, err
}

// Preview opens a product in preview, or closes the preview when id is nil.
func (s *Service) Preview(ctx context.Context, sessionID string, id *string) (*AppState, error) {
	return s.mutate(ctx, sessionID, func(st *AppState) error {
		if id == nil {
			st.ClearPreview()
			return nil
		}
		return st.SetPreview(*id)
	})
}

// AddItem puts a product into the basket.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string) (*AppState, error) {
	return s.mutate(ctx, sessionID, func(st *AppState) error {
		return st.AddToBasket(productID)
	})
}

// RemoveItem drops a product from the basket. Removing an absent product is
// not an error.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) (*AppState, error) {
	return s.mutate(ctx, sessionID, func(st *AppState) error {
		st.RemoveFromBasket(productID)
		return nil
	})
}

// ClearBasket empties the basket.
func (s *Service) ClearBasket(ctx context.Context, sessionID string) (*AppState, error) {
	return s.mutate(ctx, sessionID, func(st *AppState) error {
		st.ClearBasket()
		return nil
	})
}

// UpdateInfo stores the delivery step of the order form. The fields are
// saved even when they are invalid so the form can be resumed.
func (s *Service) UpdateInfo(ctx context.Context, sessionID string, in order.Info) (order.FormErrors, error) {
	var errs order.FormErrors
	_, err := s.mutate(ctx, sessionID, func(st *AppState) error {
		errs = st.SetOrderInfo(in)
		return nil
	})
	return errs, err
}

// UpdateContacts stores the contact step of the order form.
func (s *Service) UpdateContacts(ctx context.Context, sessionID string, c order.Contacts) (order.FormErrors, error) {
	var errs order.FormErrors
	_, err := s.mutate(ctx, sessionID, func(st *AppState) error {
		errs = st.SetOrderContacts(c)
		return nil
	})
	return errs, err
}

// Checkout places the session's order and resets the session on success.
//
// Once the order is placed the checkout counts as done: a failure to save the
// reset session is logged and the result is still returned.
func (s *Service) Checkout(ctx context.Context, sessionID string) (*order.Result, error) {
	defer s.lock(sessionID)()

	sess, st, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	o, err := st.Checkout()
	if err != nil {
		return nil, err
	}
	res, err := s.orders.PlaceOrder(ctx, o)
	if err != nil {
		return nil, err
	}

	st.Complete()
	sess.Update(st, s.now().UTC())
	if err := s.sessions.Save(ctx, sess); err != nil {
		zctx.From(ctx).Warn("Session not reset after checkout",
			zap.String("session_id", sessionID),
			zap.String("order_id", res.ID),
			zap.Error(err),
		)
	}
	return res, nil
}
