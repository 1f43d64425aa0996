package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/larek/internal/domain/order"
)

// EncodeError writes the error envelope. errs is omitted when empty.
func EncodeError(e *jx.Encoder, code int, message string, errs order.FormErrors) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(message)
	if !errs.Empty() {
		e.FieldStart("errors")
		EncodeFormErrors(e, errs)
	}
	e.ObjEnd()
}
