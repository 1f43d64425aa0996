// Package handler serves the storefront HTTP API: the catalog, order
// placement and the per-visitor session (basket, preview and order form).
package handler

import (
	"net/http"

	"github.com/xenking/larek/internal/domain/auth"
	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/product"
	"github.com/xenking/larek/internal/domain/state"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler implements the API endpoints, delegating business logic to the
// domain services.
type Handler struct {
	products     product.Repository
	orders       *order.Service
	sessions     *state.Service
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products product.Repository,
	orders *order.Service,
	sessions *state.Service,
) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		sessions:     sessions,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts every API route on mux. Order placement and lookup go
// through sec.
func (h *Handler) Register(mux *http.ServeMux, sec *SecurityHandler) {
	mux.HandleFunc("GET /api/product", h.ListProducts)
	mux.HandleFunc("GET /api/product/{id}", h.GetProduct)

	mux.Handle("POST /api/order", sec.Require(auth.ScopePlaceOrder, http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("GET /api/order/{id}", sec.Require(auth.ScopeReadOrder, http.HandlerFunc(h.GetOrder)))

	mux.HandleFunc("POST /api/session", h.CreateSession)
	mux.HandleFunc("GET /api/session/{id}", h.GetSession)
	mux.HandleFunc("DELETE /api/session/{id}", h.DeleteSession)
	mux.HandleFunc("PUT /api/session/{id}/preview", h.SetPreview)
	mux.HandleFunc("POST /api/session/{id}/basket", h.AddToBasket)
	mux.HandleFunc("DELETE /api/session/{id}/basket", h.ClearBasket)
	mux.HandleFunc("DELETE /api/session/{id}/basket/{productId}", h.RemoveFromBasket)
	mux.HandleFunc("PUT /api/session/{id}/order/info", h.UpdateOrderInfo)
	mux.HandleFunc("PUT /api/session/{id}/order/contacts", h.UpdateOrderContacts)
	mux.Handle("POST /api/session/{id}/checkout", sec.Require(auth.ScopePlaceOrder, http.HandlerFunc(h.Checkout)))
}
