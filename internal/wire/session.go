package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/larek/internal/domain/state"
)

// EncodeSession writes the stored form of a session.
func EncodeSession(e *jx.Encoder, s *state.Session) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(s.ID)
	e.FieldStart("basket")
	encodeStrings(e, s.Basket)
	e.FieldStart("preview")
	encodeNullStr(e, s.Preview)
	e.FieldStart("order")
	if s.Order == nil {
		e.Null()
	} else {
		EncodeOrder(e, *s.Order)
	}
	e.FieldStart("updatedAt")
	encodeTime(e, s.UpdatedAt)
	e.ObjEnd()
}

// DecodeSession reads a session written by EncodeSession.
func DecodeSession(d *jx.Decoder) (*state.Session, error) {
	s := &state.Session{}
	if err := decodeObj(d, "session", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			s.ID, err = d.Str()
		case "basket":
			s.Basket, err = decodeStrings(d)
		case "preview":
			s.Preview, err = decodeNullStr(d)
		case "order":
			if d.Next() == jx.Null {
				return d.Null()
			}
			o, oerr := DecodeOrder(d)
			if oerr != nil {
				return oerr
			}
			s.Order = &o
		case "updatedAt":
			s.UpdatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// EncodeState writes the client view of a session: the basket with its
// total, the previewed product and the order form filled in so far.
func EncodeState(e *jx.Encoder, id string, st *state.AppState, imageBase string) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(id)

	e.FieldStart("basket")
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range st.BasketLines() {
		EncodeBasketLine(e, l)
	}
	e.ArrEnd()
	e.FieldStart("count")
	e.Int(st.BasketCount())
	e.FieldStart("total")
	encodeDecimal(e, st.BasketTotal())
	e.ObjEnd()

	e.FieldStart("preview")
	if p, ok := st.PreviewProduct(); ok {
		EncodeProduct(e, p, imageBase)
	} else {
		e.Null()
	}

	e.FieldStart("order")
	if st.Order == nil {
		e.Null()
	} else {
		o := st.Order
		e.ObjStart()
		e.FieldStart("payment")
		e.Str(string(o.Payment))
		e.FieldStart("address")
		e.Str(o.Address)
		e.FieldStart("email")
		e.Str(o.Email)
		e.FieldStart("phone")
		e.Str(o.Phone)
		e.ObjEnd()
	}
	e.ObjEnd()
}

// DecodeRef reads a {"id": ...} body. A null or missing id yields nil.
func DecodeRef(d *jx.Decoder) (*string, error) {
	var id *string
	err := decodeObj(d, "reference", func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		var err error
		id, err = decodeNullStr(d)
		return err
	})
	return id, err
}
