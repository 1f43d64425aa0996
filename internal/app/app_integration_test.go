//go:build integration

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/larek/db"
	"github.com/xenking/larek/internal/domain/auth"
	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/storage/memory"
	"github.com/xenking/larek/internal/storage/postgres"
	"github.com/xenking/larek/internal/wire"
	"github.com/xenking/larek/pkg/health"
)

const (
	testAPIKey = "integration-test-key"
	testPepper = "test-pepper-for-integration"

	candyID = "c101ab44-ed99-4a54-990d-47aa2bb4e7d9" // 1450
	hourID  = "854cef69-976d-4c2a-a18c-2aa45046c390" // 750
	timerID = "b06cde61-912f-4663-9751-09956c0eed67" // no price
)

var (
	baseURL    string
	httpClient *http.Client
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "larek",
				"POSTGRES_PASSWORD": "larek",
				"POSTGRES_DB":       "larek",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	pool, err := postgres.NewPool(ctx, fmt.Sprintf("postgres://larek:larek@%s:%s/larek?sslmode=disable", host, port.Port()))
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := seed(ctx, pool); err != nil {
		log.Fatalf("seed: %v", err)
	}

	cfg := &Config{
		APIKeyPepper: testPepper,
		RateLimit:    RateLimitConfig{Max: 1000, Window: time.Minute},
		CORS:         CORSConfig{Origins: []string{"*"}},
	}
	hc := health.New()
	hc.SetReady(true)

	srvCtx, stop := context.WithCancel(context.Background())
	defer stop()
	h, err := newHTTPHandler(srvCtx, cfg, noopTelemetry{}, deps{
		pool:      pool,
		sessions:  memory.NewSessionStore(time.Hour),
		publisher: order.NopPublisher{},
		health:    hc,
	})
	if err != nil {
		log.Fatalf("handler: %v", err)
	}

	srv := httptest.NewServer(h)
	defer srv.Close()
	baseURL = srv.URL
	httpClient = &http.Client{Timeout: 10 * time.Second}

	return m.Run()
}

// seed loads the sample catalog and an API key with every scope.
func seed(ctx context.Context, pool *pgxpool.Pool) error {
	items, err := wire.DecodeProducts(jx.DecodeBytes(db.SampleProducts))
	if err != nil {
		return err
	}
	products := postgres.NewProductRepository(pool)
	for _, p := range items {
		if err := products.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return postgres.NewAPIKeyRepository(pool).Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(testPepper), testAPIKey),
		Name:    "Integration",
		Scopes:  []string{auth.ScopePlaceOrder, auth.ScopeReadOrder},
		Active:  true,
	})
}

// HTTP helpers.

type response struct {
	status int
	header http.Header
	body   string
}

func do(t *testing.T, method, path, body string, headers ...string) response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: string(data)}
}

func withKey() []string {
	return []string{"api_key", testAPIKey}
}

// field extracts a top-level string field from a JSON body.
func field(t *testing.T, body, name string) string {
	t.Helper()
	var out string
	require.NoError(t, jx.DecodeStr(body).Obj(func(d *jx.Decoder, key string) error {
		if key != name {
			return d.Skip()
		}
		s, err := d.Str()
		out = s
		return err
	}))
	return out
}

// --- Health and middleware ---

func TestHealth(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		resp := do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, resp.status, path)
		assert.JSONEq(t, `{"status":"ok"}`, resp.body)
	}
}

func TestRequestID(t *testing.T) {
	resp := do(t, http.MethodGet, "/livez", "")
	assert.NotEmpty(t, resp.header.Get("X-Request-ID"))

	resp = do(t, http.MethodGet, "/livez", "", "X-Request-ID", "custom-request-id-12345")
	assert.Equal(t, "custom-request-id-12345", resp.header.Get("X-Request-ID"))
}

func TestCORS_Preflight(t *testing.T) {
	resp := do(t, http.MethodOptions, "/api/product", "",
		"Origin", "http://example.com",
		"Access-Control-Request-Method", "POST",
	)
	require.Equal(t, http.StatusNoContent, resp.status)
	assert.NotEmpty(t, resp.header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.header.Get("Access-Control-Allow-Methods"))
	assert.Contains(t, resp.header.Get("Access-Control-Allow-Headers"), "api_key")
}

func TestRateLimit_Headers(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/product", "")
	assert.Equal(t, "1000", resp.header.Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, resp.header.Get("X-RateLimit-Remaining"))
}

// --- Catalog ---

func TestListProducts(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/product", "")
	require.Equal(t, http.StatusOK, resp.status)

	var total int
	require.NoError(t, jx.DecodeStr(resp.body).Obj(func(d *jx.Decoder, key string) error {
		if key != "total" {
			return d.Skip()
		}
		v, err := d.Int()
		total = v
		return err
	}))
	assert.Equal(t, 8, total)
	assert.Contains(t, resp.body, `"price":null`)
}

func TestGetProduct(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/product/"+candyID, "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "HEX-леденец", field(t, resp.body, "title"))
	assert.Equal(t, "другое", field(t, resp.body, "category"))

	resp = do(t, http.MethodGet, "/api/product/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.status)
}

// --- Orders ---

func orderBody(payment string, total int, items ...string) string {
	return fmt.Sprintf(`{"payment":%q,"email":"test@test.ru","phone":"+71234567890","address":"Spb Vosstania 1","total":%d,"items":["%s"]}`,
		payment, total, strings.Join(items, `","`))
}

func TestPlaceOrder(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/order", orderBody("card", 1450, candyID))
		assert.Equal(t, http.StatusUnauthorized, resp.status)
	})
	t.Run("wrong key", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/order", orderBody("card", 1450, candyID), "api_key", "wrong-key")
		assert.Equal(t, http.StatusUnauthorized, resp.status)
	})
	t.Run("invalid payment", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/order", orderBody("online", 1450, candyID), withKey()...)
		require.Equal(t, http.StatusBadRequest, resp.status)
		assert.Contains(t, resp.body, `"payment"`)
	})
	t.Run("unknown product", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/order", orderBody("card", 1450, "999"), withKey()...)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	})
	t.Run("unpriced product", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/order", orderBody("cash", 0, timerID), withKey()...)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	})
	t.Run("total mismatch", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/order", orderBody("card", 2000, candyID, hourID), withKey()...)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	})
	t.Run("success", func(t *testing.T) {
		resp := do(t, http.MethodPost, "/api/order", orderBody("card", 2200, candyID, hourID), withKey()...)
		require.Equal(t, http.StatusOK, resp.status, resp.body)
		id := field(t, resp.body, "id")
		assert.Contains(t, resp.body, `"total":2200`)

		resp = do(t, http.MethodGet, "/api/order/"+id, "", withKey()...)
		require.Equal(t, http.StatusOK, resp.status)
		assert.Equal(t, "Spb Vosstania 1", field(t, resp.body, "address"))
	})
}

// --- Sessions ---

func TestSessionCheckout(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusCreated, resp.status)
	sid := field(t, resp.body, "id")
	base := "/api/session/" + sid
	assert.Equal(t, base, resp.header.Get("Location"))

	resp = do(t, http.MethodPost, base+"/basket", `{"id":"`+timerID+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)

	for _, id := range []string{candyID, hourID} {
		resp = do(t, http.MethodPost, base+"/basket", `{"id":"`+id+`"}`)
		require.Equal(t, http.StatusOK, resp.status)
	}
	assert.Contains(t, resp.body, `"count":2,"total":2200`)

	resp = do(t, http.MethodPut, base+"/order/info", `{"payment":"cash","address":"Moscow"}`)
	require.Equal(t, http.StatusOK, resp.status)
	resp = do(t, http.MethodPut, base+"/order/contacts", `{"email":"a@b.ru","phone":"+79991234567"}`)
	require.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"valid":true,"errors":{}}`, resp.body)

	resp = do(t, http.MethodPost, base+"/checkout", "", withKey()...)
	require.Equal(t, http.StatusOK, resp.status, resp.body)
	id := field(t, resp.body, "id")

	resp = do(t, http.MethodGet, "/api/order/"+id, "", withKey()...)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "cash", field(t, resp.body, "payment"))

	resp = do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `"count":0`)

	resp = do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.status)
}
