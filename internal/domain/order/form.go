package order

import (
	"reflect"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// Field names an Order field as it appears on the wire.
type Field string

const (
	FieldPayment Field = "payment"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldAddress Field = "address"
	FieldTotal   Field = "total"
	FieldItems   Field = "items"
)

// Fields returns every Order field in form order.
func Fields() []Field {
	return []Field{FieldPayment, FieldAddress, FieldEmail, FieldPhone, FieldTotal, FieldItems}
}

// FormErrors maps order fields to a human-readable problem. Any subset of
// fields may be present; an empty map means the form is valid.
type FormErrors map[Field]string

// Empty reports whether there are no errors.
func (e FormErrors) Empty() bool {
	return len(e) == 0
}

// Merge copies other into e, keeping messages already present in e.
func (e FormErrors) Merge(other FormErrors) FormErrors {
	if e == nil {
		e = make(FormErrors, len(other))
	}
	for f, msg := range other {
		if _, ok := e[f]; !ok {
			e[f] = msg
		}
	}
	return e
}

// Sorted returns the fields with errors in form order.
func (e FormErrors) Sorted() []Field {
	out := make([]Field, 0, len(e))
	for _, f := range Fields() {
		if _, ok := e[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Err returns a *ValidationError when e is not empty, nil otherwise.
func (e FormErrors) Err() error {
	if e.Empty() {
		return nil
	}
	return &ValidationError{Errors: e}
}

// ValidationError carries per-field problems of an order form.
type ValidationError struct {
	Errors FormErrors
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid order")
	for i, f := range e.Errors.Sorted() {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(string(f))
		b.WriteString(": ")
		b.WriteString(e.Errors[f])
	}
	return b.String()
}

var messages = map[Field]map[string]string{
	FieldPayment: {"required": "select a payment method", "payment": "unsupported payment method"},
	FieldAddress: {"required": "enter a delivery address"},
	FieldEmail:   {"required": "enter an email", "email": "email is invalid"},
	FieldPhone:   {"required": "enter a phone number", "phone": "phone number is invalid"},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	if err := v.RegisterValidation("payment", func(fl validator.FieldLevel) bool {
		return Payment(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return validPhone(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// validPhone accepts 10 to 15 digits with an optional leading plus and the
// usual separators.
func validPhone(s string) bool {
	s = strings.TrimPrefix(s, "+")
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case slices.Contains([]rune{' ', '-', '(', ')'}, r):
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

// ValidateInfo checks the delivery step of the order form.
func ValidateInfo(in Info) FormErrors {
	in.Address = strings.TrimSpace(in.Address)
	return collect(validate.Struct(in))
}

// ValidateContacts checks the contact step of the order form.
func ValidateContacts(c Contacts) FormErrors {
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	return collect(validate.Struct(c))
}

// Validate checks every field of the order that can be verified without the
// catalog.
func (o Order) Validate() FormErrors {
	errs := ValidateInfo(o.Info()).Merge(ValidateContacts(o.Contacts()))
	if len(o.Items) == 0 {
		errs[FieldItems] = "basket is empty"
	}
	if o.Total.IsNegative() {
		errs[FieldTotal] = "total must not be negative"
	}
	return errs
}

func collect(err error) FormErrors {
	errs := FormErrors{}
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only reachable on programmer error (non-struct input).
		panic(err)
	}
	for _, fe := range verrs {
		f := Field(fe.Field())
		if _, ok := errs[f]; ok {
			continue
		}
		msg, ok := messages[f][fe.Tag()]
		if !ok {
			msg = string(f) + " is invalid"
		}
		errs[f] = msg
	}
	return errs
}
