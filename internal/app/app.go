package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/larek/internal/broker/rabbitmq"
	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/domain/state"
	"github.com/xenking/larek/internal/handler"
	"github.com/xenking/larek/internal/storage/memory"
	"github.com/xenking/larek/internal/storage/postgres"
	redisstore "github.com/xenking/larek/internal/storage/redis"
	"github.com/xenking/larek/pkg/health"
	"github.com/xenking/larek/pkg/httpmiddleware"
)

// cleanup collects closers of the resources opened during wiring.
type cleanup []func()

func (c *cleanup) add(fn func()) { *c = append(*c, fn) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// newSessionStore picks Redis when configured and the in-process store
// otherwise.
func newSessionStore(ctx context.Context, cfg SessionConfig, hc *health.Health, closers *cleanup) (state.Store, error) {
	lg := zctx.From(ctx)
	if !cfg.UseRedis() {
		lg.Info("Sessions are kept in memory", zap.Duration("ttl", cfg.TTL))
		store := memory.NewSessionStore(cfg.TTL)
		store.StartCleanup(ctx, cfg.CleanupInterval)
		return store, nil
	}

	client, err := redisstore.NewClient(redisstore.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		URL:      cfg.RedisURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create redis client")
	}
	closers.add(func() { _ = client.Close() })

	ping := health.PingFunc(redisstore.Ping(client))
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ping.Ping(pingCtx); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	hc.AddPing("redis", 2*time.Second, ping)

	lg.Info("Sessions are kept in Redis", zap.Duration("ttl", cfg.TTL))
	return redisstore.NewSessionStore(client, cfg.TTL), nil
}

// newPublisher connects to RabbitMQ when a broker URL is set. Without one
// order events are dropped.
func newPublisher(ctx context.Context, cfg BrokerConfig, hc *health.Health, closers *cleanup) (order.Publisher, error) {
	lg := zctx.From(ctx)
	if cfg.URL == "" {
		lg.Info("Order events are disabled")
		return order.NopPublisher{}, nil
	}

	pool, err := rabbitmq.NewChannelPool(cfg.URL, cfg.Queue, cfg.PoolSize)
	if err != nil {
		return nil, errors.Wrap(err, "create rabbitmq pool")
	}
	closers.add(pool.Close)
	hc.AddPing("rabbitmq", time.Second, pool)

	lg.Info("Order events are published",
		zap.String("queue", cfg.Queue),
		zap.Int("channels", cfg.PoolSize),
	)
	return rabbitmq.NewPublisher(pool, cfg.Timeout), nil
}

// deps are the connected resources the HTTP API is built from.
type deps struct {
	pool      *pgxpool.Pool
	sessions  state.Store
	publisher order.Publisher
	health    *health.Health
}

// newHTTPHandler wires repositories, domain services and routes and wraps
// them in the middleware chain.
func newHTTPHandler(ctx context.Context, cfg *Config, m httpmiddleware.Telemetry, d deps) (http.Handler, error) {
	// Repositories.
	productRepo := postgres.NewProductRepository(d.pool)
	orderRepo := postgres.NewOrderRepository(d.pool)
	apikeyRepo := postgres.NewAPIKeyRepository(d.pool)

	// Domain services.
	orderService := order.NewService(productRepo, orderRepo, d.publisher)
	if err := orderService.Instrument(m.MeterProvider()); err != nil {
		return nil, err
	}
	sessionService := state.NewService(productRepo, d.sessions, orderService)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		orderService,
		sessionService,
	)
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))

	// Mux: health endpoints and API routes on one server.
	mux := http.NewServeMux()
	d.health.Register(mux)
	h.Register(mux, securityHandler)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("larek-api", routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	), nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	var closers cleanup
	defer closers.run()

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	closers.add(pool.Close)

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New(health.WithChangeHook(func(name string, healthy bool, err error) {
		if healthy {
			lg.Info("Health check recovered", zap.String("check", name))
			return
		}
		lg.Warn("Health check failing", zap.String("check", name), zap.Error(err))
	}))
	healthSvc.AddPing("postgres", 5*time.Second, pool)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	sessionStore, err := newSessionStore(ctx, cfg.Session, healthSvc, &closers)
	if err != nil {
		return err
	}
	publisher, err := newPublisher(ctx, cfg.Broker, healthSvc, &closers)
	if err != nil {
		return err
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	apiHandler, err := newHTTPHandler(ctx, cfg, m, deps{
		pool:      pool,
		sessions:  sessionStore,
		publisher: publisher,
		health:    healthSvc,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           apiHandler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
