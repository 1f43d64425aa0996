package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/state"
	"github.com/xenking/larek/internal/wire"
)

func (h *Handler) writeState(w http.ResponseWriter, id string, st *state.AppState) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeState(e, id, st, h.imageBaseURL)
	})
}

// mutateState runs a state operation for the session in the path and
// responds with the resulting state.
func (h *Handler) mutateState(w http.ResponseWriter, r *http.Request, op func(id string) (*state.AppState, error)) {
	id := r.PathValue("id")
	st, err := op(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeState(w, id, st)
}

// CreateSession opens an empty session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Open(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/session/"+sess.ID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(sess.ID)
		e.ObjEnd()
	})
}

// GetSession returns the basket, preview and order form of a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.mutateState(w, r, func(id string) (*state.AppState, error) {
		return h.sessions.State(r.Context(), id)
	})
}

// DeleteSession discards a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPreview opens a product in preview; a null id closes it.
func (h *Handler) SetPreview(w http.ResponseWriter, r *http.Request) {
	ref, err := decode(w, r, wire.DecodeRef)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.mutateState(w, r, func(id string) (*state.AppState, error) {
		return h.sessions.Preview(r.Context(), id, ref)
	})
}

// AddToBasket puts a product into the basket.
func (h *Handler) AddToBasket(w http.ResponseWriter, r *http.Request) {
	ref, err := decode(w, r, wire.DecodeRef)
	if err != nil {
		fail(w, r, err)
		return
	}
	if ref == nil || *ref == "" {
		fail(w, r, errors.Wrap(wire.ErrBadRequest, "product id is required"))
		return
	}
	h.mutateState(w, r, func(id string) (*state.AppState, error) {
		return h.sessions.AddItem(r.Context(), id, *ref)
	})
}

// RemoveFromBasket drops a product from the basket.
func (h *Handler) RemoveFromBasket(w http.ResponseWriter, r *http.Request) {
	h.mutateState(w, r, func(id string) (*state.AppState, error) {
		return h.sessions.RemoveItem(r.Context(), id, r.PathValue("productId"))
	})
}

// ClearBasket empties the basket.
func (h *Handler) ClearBasket(w http.ResponseWriter, r *http.Request) {
	h.mutateState(w, r, func(id string) (*state.AppState, error) {
		return h.sessions.ClearBasket(r.Context(), id)
	})
}

func writeFormReport(w http.ResponseWriter, errs order.FormErrors) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeFormReport(e, errs)
	})
}

// UpdateOrderInfo stores the delivery step of the order form and reports
// its problems. Invalid input is stored too.
func (h *Handler) UpdateOrderInfo(w http.ResponseWriter, r *http.Request) {
	in, err := decode(w, r, wire.DecodeInfo)
	if err != nil {
		fail(w, r, err)
		return
	}
	errs, err := h.sessions.UpdateInfo(r.Context(), r.PathValue("id"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeFormReport(w, errs)
}

// UpdateOrderContacts stores the contact step of the order form.
func (h *Handler) UpdateOrderContacts(w http.ResponseWriter, r *http.Request) {
	c, err := decode(w, r, wire.DecodeContacts)
	if err != nil {
		fail(w, r, err)
		return
	}
	errs, err := h.sessions.UpdateContacts(r.Context(), r.PathValue("id"), c)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeFormReport(w, errs)
}

// Checkout places the session order built from the basket and the form.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Checkout(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeResult(e, res)
	})
}
