package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/larek/internal/domain/order"
)

func encodeOrderFields(e *jx.Encoder, o order.Order) {
	e.FieldStart("payment")
	e.Str(string(o.Payment))
	e.FieldStart("email")
	e.Str(o.Email)
	e.FieldStart("phone")
	e.Str(o.Phone)
	e.FieldStart("address")
	e.Str(o.Address)
	e.FieldStart("total")
	encodeDecimal(e, o.Total)
	e.FieldStart("items")
	encodeStrings(e, o.Items)
}

// EncodeOrder writes an order as submitted by the client.
func EncodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	encodeOrderFields(e, o)
	e.ObjEnd()
}

// decodeOrderField handles one order key and reports whether it was known.
func decodeOrderField(d *jx.Decoder, key string, o *order.Order) (bool, error) {
	var err error
	switch key {
	case "payment":
		var s string
		s, err = d.Str()
		o.Payment = order.Payment(s)
	case "email":
		o.Email, err = d.Str()
	case "phone":
		o.Phone, err = d.Str()
	case "address":
		o.Address, err = d.Str()
	case "total":
		o.Total, err = decodeDecimal(d)
	case "items":
		o.Items, err = decodeStrings(d)
	default:
		return false, nil
	}
	if err != nil {
		return true, badRequest(err, key)
	}
	return true, nil
}

// DecodeOrder reads an order. Field values are not checked here; see
// order.Order.Validate.
func DecodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	if err := decodeObj(d, "order", func(d *jx.Decoder, key string) error {
		ok, err := decodeOrderField(d, key, &o)
		if ok {
			return err
		}
		return d.Skip()
	}); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

// EncodeRecord writes a stored order.
func EncodeRecord(e *jx.Encoder, rec *order.Record) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(rec.ID)
	encodeOrderFields(e, rec.Order)
	e.FieldStart("createdAt")
	encodeTime(e, rec.CreatedAt)
	e.ObjEnd()
}

// DecodeRecord reads a stored order, as published to the broker.
func DecodeRecord(d *jx.Decoder) (*order.Record, error) {
	rec := &order.Record{}
	if err := decodeObj(d, "order", func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, err := d.Str()
			rec.ID = id
			return err
		case "createdAt":
			t, err := decodeTime(d)
			rec.CreatedAt = t
			return err
		}
		ok, err := decodeOrderField(d, key, &rec.Order)
		if ok {
			return err
		}
		return d.Skip()
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// EncodeResult writes the response to an accepted order.
func EncodeResult(e *jx.Encoder, r *order.Result) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("total")
	encodeDecimal(e, r.Total)
	e.ObjEnd()
}

// DecodeInfo reads the delivery step of the order form.
func DecodeInfo(d *jx.Decoder) (order.Info, error) {
	var in order.Info
	err := decodeObj(d, "order info", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "payment":
			var s string
			s, err = d.Str()
			in.Payment = order.Payment(s)
		case "address":
			in.Address, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

// DecodeContacts reads the contact step of the order form.
func DecodeContacts(d *jx.Decoder) (order.Contacts, error) {
	var c order.Contacts
	err := decodeObj(d, "order contacts", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			c.Email, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

// EncodeFormErrors writes field problems in form order.
func EncodeFormErrors(e *jx.Encoder, errs order.FormErrors) {
	e.ObjStart()
	for _, f := range errs.Sorted() {
		e.FieldStart(string(f))
		e.Str(errs[f])
	}
	e.ObjEnd()
}

// EncodeFormReport writes the outcome of a form step.
func EncodeFormReport(e *jx.Encoder, errs order.FormErrors) {
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(errs.Empty())
	e.FieldStart("errors")
	EncodeFormErrors(e, errs)
	e.ObjEnd()
}
