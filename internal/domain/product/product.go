package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrMissingID is returned when a product has an empty identifier.
	ErrMissingID = errors.New("product id is required")
	// ErrMissingTitle is returned when a product has an empty title.
	ErrMissingTitle = errors.New("product title is required")
	// ErrNegativePrice is returned when a product price is below zero.
	ErrNegativePrice = errors.New("product price must not be negative")
)

// Product represents a catalog item.
//
// Price is optional: a product without a price is shown in the catalog but
// cannot be bought.
type Product struct {
	ID          string
	Title       string
	Description string
	Image       string
	Category    Category
	Price       decimal.NullDecimal
}

// Priced reports whether the product has a price set.
func (p Product) Priced() bool {
	return p.Price.Valid
}

// Validate checks the product invariants: non-empty id and title, a known
// category and a non-negative price when one is set.
func (p Product) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Title == "" {
		return errors.Wrapf(ErrMissingTitle, "product %s", p.ID)
	}
	if !p.Category.Valid() {
		return errors.Wrapf(ErrUnknownCategory, "product %s: %q", p.ID, string(p.Category))
	}
	if p.Price.Valid && p.Price.Decimal.IsNegative() {
		return errors.Wrapf(ErrNegativePrice, "product %s", p.ID)
	}
	return nil
}

// BasketLine is the reduced view of a product listed in the basket.
type BasketLine struct {
	ID    string
	Title string
	Price decimal.NullDecimal
}

// BasketLine projects the product onto its basket view.
func (p Product) BasketLine() BasketLine {
	return BasketLine{
		ID:    p.ID,
		Title: p.Title,
		Price: p.Price,
	}
}

// NewPrice returns a set price.
func NewPrice(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(v)
}

// NoPrice returns an unset price.
func NoPrice() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Writer stores catalog items.
type Writer interface {
	Upsert(ctx context.Context, p Product) error
}
