package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Payment is the closed set of payment methods accepted at checkout.
type Payment string

const (
	// PaymentCard pays online by card.
	PaymentCard Payment = "card"
	// PaymentCash pays on delivery.
	PaymentCash Payment = "cash"
)

// ErrUnknownPayment is returned for a payment method outside the fixed set.
var ErrUnknownPayment = errors.New("unknown payment method")

// Valid reports whether p is one of the known payment methods.
func (p Payment) Valid() bool {
	return p == PaymentCard || p == PaymentCash
}

// ParsePayment converts a wire label into a Payment.
func ParsePayment(s string) (Payment, error) {
	p := Payment(s)
	if !p.Valid() {
		return "", errors.Wrapf(ErrUnknownPayment, "%q", s)
	}
	return p, nil
}

// Order is a checkout request: how the customer pays, where to deliver, how
// to reach them, and which catalog items they buy.
//
// Items holds product ids, not copies of the products.
type Order struct {
	Payment Payment
	Email   string
	Phone   string
	Address string
	Total   decimal.Decimal
	Items   []string
}

// Info is the delivery step of the order form.
type Info struct {
	Payment Payment `form:"payment" validate:"required,payment"`
	Address string  `form:"address" validate:"required"`
}

// Contacts is the contact step of the order form.
type Contacts struct {
	Email string `form:"email" validate:"required,email"`
	Phone string `form:"phone" validate:"required,phone"`
}

// Info returns the delivery fields of the order.
func (o Order) Info() Info {
	return Info{Payment: o.Payment, Address: o.Address}
}

// Contacts returns the contact fields of the order.
func (o Order) Contacts() Contacts {
	return Contacts{Email: o.Email, Phone: o.Phone}
}

// SetInfo overwrites the delivery fields.
func (o *Order) SetInfo(in Info) {
	o.Payment = in.Payment
	o.Address = in.Address
}

// SetContacts overwrites the contact fields.
func (o *Order) SetContacts(c Contacts) {
	o.Email = c.Email
	o.Phone = c.Phone
}

// Result is returned to the client once an order is accepted.
type Result struct {
	ID    string
	Total decimal.Decimal
}

// Record is a placed order as stored by the Repository.
type Record struct {
	ID        string
	Order     Order
	CreatedAt time.Time
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
}

// Publisher announces placed orders to downstream consumers.
type Publisher interface {
	OrderPlaced(ctx context.Context, rec *Record) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// OrderPlaced implements Publisher.
func (NopPublisher) OrderPlaced(context.Context, *Record) error { return nil }
