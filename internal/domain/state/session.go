package state

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/product"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the stored form of an AppState. The catalog is not part of it;
// it is attached from the product repository when the session is loaded.
type Session struct {
	ID        string
	Basket    []string
	Preview   *string
	Order     *order.Order
	UpdatedAt time.Time
}

// State materializes the session on top of the given catalog.
func (s *Session) State(catalog []product.Product) *AppState {
	st := &AppState{
		Basket:  slices.Clone(s.Basket),
		Preview: s.Preview,
	}
	if s.Order != nil {
		o := *s.Order
		st.Order = &o
	}
	st.SetCatalog(catalog)
	return st
}

// Update copies the mutable parts of st back into the session.
func (s *Session) Update(st *AppState, now time.Time) {
	s.Basket = slices.Clone(st.Basket)
	s.Preview = st.Preview
	s.Order = nil
	if st.Order != nil {
		o := *st.Order
		s.Order = &o
	}
	s.UpdatedAt = now
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
