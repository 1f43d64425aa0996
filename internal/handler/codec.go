package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/product"
	"github.com/xenking/larek/internal/domain/state"
	"github.com/xenking/larek/internal/wire"
)

const maxBodySize = 1 << 20

// decode reads the request body and passes it to fn.
func decode[T any](w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder) (T, error)) (T, error) {
	var zero T
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return zero, errors.Wrapf(wire.ErrBadRequest, "read body: %s", err)
	}
	// Validate rejects trailing data after the value.
	if err := jx.DecodeBytes(data).Validate(); err != nil {
		return zero, errors.Wrapf(wire.ErrBadRequest, "invalid JSON: %s", err)
	}
	return fn(jx.DecodeBytes(data))
}

// writeJSON writes a JSON response produced by fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string, errs order.FormErrors) {
	writeJSON(w, status, func(e *jx.Encoder) {
		wire.EncodeError(e, status, message, errs)
	})
}

// apiError is the client-facing form of a domain error.
type apiError struct {
	status  int
	message string
	errs    order.FormErrors
}

// mapError converts domain errors to API errors. Unknown errors map to 500.
func mapError(err error) apiError {
	var verr *order.ValidationError
	if errors.As(err, &verr) {
		return apiError{http.StatusBadRequest, "invalid order", verr.Errors}
	}
	if errors.Is(err, wire.ErrBadRequest) {
		return apiError{status: http.StatusBadRequest, message: err.Error()}
	}

	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, state.ErrSessionNotFound),
		errors.Is(err, state.ErrNotInCatalog):
		return apiError{status: http.StatusNotFound, message: err.Error()}
	case errors.Is(err, state.ErrUnpriced),
		errors.Is(err, state.ErrEmptyBasket),
		errors.Is(err, state.ErrOrderNotStarted):
		return apiError{status: http.StatusUnprocessableEntity, message: err.Error()}
	}

	var (
		pnfErr *order.ProductNotFoundError
		upErr  *order.UnpricedProductError
		tmErr  *order.TotalMismatchError
	)
	if errors.As(err, &pnfErr) || errors.As(err, &upErr) || errors.As(err, &tmErr) {
		return apiError{status: http.StatusUnprocessableEntity, message: err.Error()}
	}

	return apiError{status: http.StatusInternalServerError, message: "internal server error"}
}

// fail writes err as an API error. Server errors are logged.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	e := mapError(err)
	if e.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, e.status, e.message, e.errs)
}
