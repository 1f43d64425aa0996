// Package wire holds the JSON codecs of the storefront. The same encoders
// serve HTTP responses, Redis session snapshots and catalog files, so the
// field names below are the public contract of the service.
package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ErrBadRequest wraps every decoding failure.
var ErrBadRequest = errors.New("malformed request body")

func badRequest(err error, what string) error {
	return errors.Wrapf(ErrBadRequest, "%s: %s", what, err)
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeNullDecimal(e *jx.Encoder, v decimal.NullDecimal) {
	if !v.Valid {
		e.Null()
		return
	}
	encodeDecimal(e, v.Decimal)
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() != jx.Number {
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", d.Next())
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse number")
	}
	return v, nil
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func encodeNullStr(e *jx.Encoder, s *string) {
	if s == nil {
		e.Null()
		return
	}
	e.Str(*s)
}

func decodeNullStr(d *jx.Decoder) (*string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	if err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeStrings(e *jx.Encoder, items []string) {
	e.ArrStart()
	for _, s := range items {
		e.Str(s)
	}
	e.ArrEnd()
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

// decodeObj reads an object and marks any failure as a bad request.
func decodeObj(d *jx.Decoder, what string, fn func(d *jx.Decoder, key string) error) error {
	if err := d.Obj(fn); err != nil {
		if errors.Is(err, ErrBadRequest) {
			return err
		}
		return badRequest(err, what)
	}
	return nil
}
