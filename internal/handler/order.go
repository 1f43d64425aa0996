package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/larek/internal/wire"
)

// PlaceOrder validates and stores a complete order submitted by the client.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	o, err := decode(w, r, wire.DecodeOrder)
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.orders.PlaceOrder(r.Context(), o)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeResult(e, res)
	})
}

// GetOrder returns a placed order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	rec, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeRecord(e, rec)
	})
}
