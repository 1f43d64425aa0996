package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/larek/internal/domain/auth"
	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/product"
	"github.com/xenking/larek/internal/domain/state"
	"github.com/xenking/larek/internal/storage/memory"
)

const (
	testAPIKey = "test-key"
	testPepper = "pepper"
)

// --- Mock implementations ---

type mockProducts struct {
	items []product.Product
	err   error
}

func (m *mockProducts) List(context.Context) ([]product.Product, error) {
	return m.items, m.err
}

func (m *mockProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.items {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.items {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, m.err
}

type mockOrders struct {
	mu      sync.Mutex
	records map[string]*order.Record
}

func (m *mockOrders) Create(_ context.Context, rec *order.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *mockOrders) GetByID(_ context.Context, id string) (*order.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return rec, nil
}

type mockKeys struct {
	keys map[string]*auth.APIKeyInfo
}

func (m *mockKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return info, nil
}

func price(v int64) decimal.NullDecimal {
	return product.NewPrice(decimal.NewFromInt(v))
}

type testEnv struct {
	mux    *http.ServeMux
	orders *mockOrders
}

func newTestEnv(t *testing.T, scopes ...string) *testEnv {
	t.Helper()

	if len(scopes) == 0 {
		scopes = []string{auth.ScopePlaceOrder, auth.ScopeReadOrder}
	}
	products := &mockProducts{items: []product.Product{
		{ID: "a", Title: "+1 час в сутках", Image: "/5_Dots.svg", Category: product.CategorySoftSkill, Price: price(750)},
		{ID: "b", Title: "HEX-леденец", Image: "/Shell.svg", Category: product.CategoryOther, Price: price(1450)},
		{ID: "timer", Title: "Мамка-таймер", Image: "/Asterisk_2.svg", Category: product.CategorySoftSkill},
	}}
	orders := &mockOrders{records: make(map[string]*order.Record)}
	hash := auth.HashKey([]byte(testPepper), testAPIKey)
	keys := &mockKeys{keys: map[string]*auth.APIKeyInfo{
		hash: {ID: "default", KeyHash: hash, Name: "Default", Scopes: scopes, Active: true},
	}}

	orderSvc := order.NewService(products, orders, nil)
	sessionSvc := state.NewService(products, memory.NewSessionStore(time.Hour), orderSvc)

	h := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.example.com"}, products, orderSvc, sessionSvc)
	mux := http.NewServeMux()
	h.Register(mux, NewSecurityHandler(keys, []byte(testPepper)))

	return &testEnv{mux: mux, orders: orders}
}

func (env *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)
	return w
}

func withKey() []string {
	return []string{APIKeyHeader, testAPIKey}
}

// field extracts a top-level string field from a JSON body.
func field(t *testing.T, body, name string) string {
	t.Helper()
	var out string
	err := jx.DecodeStr(body).Obj(func(d *jx.Decoder, key string) error {
		if key != name {
			return d.Skip()
		}
		s, err := d.Str()
		out = s
		return err
	})
	require.NoError(t, err)
	return out
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/product", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `"total":3`)
	assert.Contains(t, body, `"image":"https://cdn.example.com/5_Dots.svg"`)
	assert.Contains(t, body, `"price":null`)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/product/b", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id":"b","title":"HEX-леденец","description":"",
		"image":"https://cdn.example.com/Shell.svg","category":"другое","price":1450
	}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/product/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"message":"product not found"}`, w.Body.String())
}

func TestListProducts_StorageError(t *testing.T) {
	products := &mockProducts{err: errors.New("connection refused")}
	h := NewHandler(HandlerConfig{}, products, nil, nil)

	w := httptest.NewRecorder()
	h.ListProducts(w, httptest.NewRequest(http.MethodGet, "/api/product", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
}

const validOrder = `{
	"payment":"online","email":"test@test.ru","phone":"+71234567890",
	"address":"Spb Vosstania 1","total":2200,"items":["a","b"]
}`

func TestPlaceOrder(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/order", validOrder)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(http.MethodPost, "/api/order", validOrder, APIKeyHeader, "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing scope", func(t *testing.T) {
		env := newTestEnv(t, auth.ScopeReadOrder)
		w := env.do(http.MethodPost, "/api/order", validOrder, withKey()...)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid payment", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/order", validOrder, withKey()...)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{
			"code":400,"message":"invalid order",
			"errors":{"payment":"unsupported payment method"}
		}`, w.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/order", `{"items":`, withKey()...)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("trailing data", func(t *testing.T) {
		env := newTestEnv(t)
		body := strings.Replace(validOrder, "online", "card", 1)
		w := env.do(http.MethodPost, "/api/order", body+`garbage`, withKey()...)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(http.MethodPost, "/api/order", body+`{}`, withKey()...)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, env.orders.records)
	})

	t.Run("total mismatch", func(t *testing.T) {
		env := newTestEnv(t)
		body := strings.Replace(validOrder, "online", "card", 1)
		body = strings.Replace(body, "2200", "2000", 1)
		w := env.do(http.MethodPost, "/api/order", body, withKey()...)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unpriced item", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"payment":"cash","email":"a@b.ru","phone":"+79991234567","address":"Moscow","total":0,"items":["timer"]}`
		w := env.do(http.MethodPost, "/api/order", body, withKey()...)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("success and lookup", func(t *testing.T) {
		env := newTestEnv(t)
		body := strings.Replace(validOrder, "online", "card", 1)
		w := env.do(http.MethodPost, "/api/order", body, withKey()...)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"total":2200`)

		id := field(t, w.Body.String(), "id")
		require.NotEmpty(t, id)
		require.Contains(t, env.orders.records, id)

		w = env.do(http.MethodGet, "/api/order/"+id, "", withKey()...)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "card", field(t, w.Body.String(), "payment"))

		w = env.do(http.MethodGet, "/api/order/unknown", "", withKey()...)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusCreated, w.Code)
	sid := field(t, w.Body.String(), "id")
	require.NotEmpty(t, sid)
	base := "/api/session/" + sid

	w = env.do(http.MethodPut, base+"/preview", `{"id":"timer"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"preview":{"id":"timer"`)

	w = env.do(http.MethodPost, base+"/basket", `{"id":"timer"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "priceless items cannot be bought")

	w = env.do(http.MethodPost, base+"/basket", `{"id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, base+"/basket", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, base+"/checkout", "", withKey()...)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "empty basket")

	for _, id := range []string{"a", "b", "a"} {
		w = env.do(http.MethodPost, base+"/basket", `{"id":"`+id+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Contains(t, w.Body.String(), `"count":2,"total":2200`)

	w = env.do(http.MethodDelete, base+"/basket/a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1,"total":1450`)

	w = env.do(http.MethodPost, base+"/basket", `{"id":"a"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, base+"/checkout", "", withKey()...)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "order not started")

	w = env.do(http.MethodPut, base+"/order/info", `{"payment":"card","address":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false,"errors":{"address":"enter a delivery address"}}`, w.Body.String())

	w = env.do(http.MethodPut, base+"/order/info", `{"payment":"card","address":"Moscow"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"errors":{}}`, w.Body.String())

	w = env.do(http.MethodPut, base+"/order/contacts", `{"email":"a@b.ru","phone":"+79991234567"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true,"errors":{}}`, w.Body.String())

	w = env.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"order":{"payment":"card","address":"Moscow","email":"a@b.ru","phone":"+79991234567"}`)

	w = env.do(http.MethodPost, base+"/checkout", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, base+"/checkout", "", withKey()...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total":2200`)
	assert.Len(t, env.orders.records, 1)

	w = env.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
	assert.Contains(t, w.Body.String(), `"order":null`)

	w = env.do(http.MethodDelete, base+"/basket", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", order.FormErrors{order.FieldEmail: "enter an email"}.Err(), http.StatusBadRequest},
		{"product not found", product.ErrNotFound, http.StatusNotFound},
		{"session not found", errors.Wrap(state.ErrSessionNotFound, "get session"), http.StatusNotFound},
		{"unknown item", &order.ProductNotFoundError{ProductID: "x"}, http.StatusUnprocessableEntity},
		{"unpriced item", &order.UnpricedProductError{ProductID: "x"}, http.StatusUnprocessableEntity},
		{"total mismatch", &order.TotalMismatchError{}, http.StatusUnprocessableEntity},
		{"empty basket", state.ErrEmptyBasket, http.StatusUnprocessableEntity},
		{"order not started", state.ErrOrderNotStarted, http.StatusUnprocessableEntity},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, mapError(tt.err).status)
		})
	}
}
