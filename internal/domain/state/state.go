// Package state models the storefront's per-visitor application state: the
// catalog being browsed, the basket, the product opened in preview and the
// order form being filled in.
package state

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/product"
)

var (
	// ErrNotInCatalog is returned when an operation references a product
	// missing from the current catalog.
	ErrNotInCatalog = errors.New("product is not in the catalog")
	// ErrUnpriced is returned when adding a product without a price to the basket.
	ErrUnpriced = errors.New("product has no price")
	// ErrEmptyBasket is returned when checking out an empty basket.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrOrderNotStarted is returned when checking out before any order
	// details were provided.
	ErrOrderNotStarted = errors.New("order details are missing")
)

// AppState aggregates the catalog, the basket, the previewed product and the
// order in progress.
//
// Basket holds unique product ids. Preview and Order are nil until set.
type AppState struct {
	Catalog []product.Product
	Basket  []string
	Preview *string
	Order   *order.Order

	index map[string]int
}

// SetCatalog replaces the catalog. Basket entries and the preview that no
// longer resolve are dropped.
func (s *AppState) SetCatalog(items []product.Product) {
	s.Catalog = items
	s.reindex()

	s.Basket = slices.DeleteFunc(s.Basket, func(id string) bool {
		_, ok := s.index[id]
		return !ok
	})
	if s.Preview != nil {
		if _, ok := s.index[*s.Preview]; !ok {
			s.Preview = nil
		}
	}
}

func (s *AppState) reindex() {
	s.index = make(map[string]int, len(s.Catalog))
	for i, p := range s.Catalog {
		s.index[p.ID] = i
	}
}

func (s *AppState) lookup(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok && i < len(s.Catalog) && s.Catalog[i].ID == id
}

// Product looks up a catalog item by id. Catalog may be replaced directly;
// the index is rebuilt when it no longer matches.
func (s *AppState) Product(id string) (product.Product, bool) {
	i, ok := s.lookup(id)
	if !ok {
		s.reindex()
		if i, ok = s.lookup(id); !ok {
			return product.Product{}, false
		}
	}
	return s.Catalog[i], true
}

// SetPreview opens a catalog product in preview.
func (s *AppState) SetPreview(id string) error {
	if _, ok := s.Product(id); !ok {
		return errors.Wrapf(ErrNotInCatalog, "preview %s", id)
	}
	s.Preview = &id
	return nil
}

// ClearPreview closes the preview.
func (s *AppState) ClearPreview() {
	s.Preview = nil
}

// PreviewProduct returns the previewed product, if any.
func (s *AppState) PreviewProduct() (product.Product, bool) {
	if s.Preview == nil {
		return product.Product{}, false
	}
	return s.Product(*s.Preview)
}

// AddToBasket puts a priced catalog product into the basket. Adding a product
// that is already there changes nothing.
func (s *AppState) AddToBasket(id string) error {
	p, ok := s.Product(id)
	if !ok {
		return errors.Wrapf(ErrNotInCatalog, "add %s", id)
	}
	if !p.Priced() {
		return errors.Wrapf(ErrUnpriced, "add %s", id)
	}
	if s.InBasket(id) {
		return nil
	}
	s.Basket = append(s.Basket, id)
	return nil
}

// RemoveFromBasket drops a product from the basket and reports whether it
// was there.
func (s *AppState) RemoveFromBasket(id string) bool {
	i := slices.Index(s.Basket, id)
	if i < 0 {
		return false
	}
	s.Basket = slices.Delete(s.Basket, i, i+1)
	return true
}

// ClearBasket empties the basket.
func (s *AppState) ClearBasket() {
	s.Basket = nil
}

// InBasket reports whether the product is in the basket.
func (s *AppState) InBasket(id string) bool {
	return slices.Contains(s.Basket, id)
}

// BasketCount returns the number of products in the basket.
func (s *AppState) BasketCount() int {
	return len(s.Basket)
}

// BasketLines returns the basket view of every product in the basket, in the
// order they were added.
func (s *AppState) BasketLines() []product.BasketLine {
	lines := make([]product.BasketLine, 0, len(s.Basket))
	for _, id := range s.Basket {
		if p, ok := s.Product(id); ok {
			lines = append(lines, p.BasketLine())
		}
	}
	return lines
}

// BasketTotal sums the prices of the basket products.
func (s *AppState) BasketTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.BasketLines() {
		if line.Price.Valid {
			total = total.Add(line.Price.Decimal)
		}
	}
	return total
}

func (s *AppState) ensureOrder() *order.Order {
	if s.Order == nil {
		s.Order = &order.Order{}
	}
	return s.Order
}

// SetOrderInfo stores the delivery step of the order form and returns its
// problems.
func (s *AppState) SetOrderInfo(in order.Info) order.FormErrors {
	s.ensureOrder().SetInfo(in)
	return order.ValidateInfo(in)
}

// SetOrderContacts stores the contact step of the order form and returns its
// problems.
func (s *AppState) SetOrderContacts(c order.Contacts) order.FormErrors {
	s.ensureOrder().SetContacts(c)
	return order.ValidateContacts(c)
}

// Checkout builds the order to submit from the form and the basket.
func (s *AppState) Checkout() (order.Order, error) {
	if len(s.Basket) == 0 {
		return order.Order{}, ErrEmptyBasket
	}
	if s.Order == nil {
		return order.Order{}, ErrOrderNotStarted
	}

	o := *s.Order
	o.Items = slices.Clone(s.Basket)
	o.Total = s.BasketTotal()
	if err := o.Validate().Err(); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

// Complete resets the state after the order was accepted.
func (s *AppState) Complete() {
	s.ClearBasket()
	s.ClearPreview()
	s.Order = nil
}
