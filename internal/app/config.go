package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (LAREK_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (LAREK_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://larek-api.nomoreparties.co/content/weblarek)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (LAREK_API_KEY_PEPPER)" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Session      SessionConfig
	Broker       BrokerConfig
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// SessionConfig selects where visitor sessions live. Sessions are kept in
// process memory unless a Redis address or URL is set.
type SessionConfig struct {
	TTL             time.Duration `default:"24h" usage:"Idle time after which a session is discarded"`
	CleanupInterval time.Duration `default:"5m"  usage:"How often expired in-memory sessions are swept" flag:"session-cleanup-interval"`
	RedisAddr       string        `default:"" usage:"Redis address (host:port)" flag:"redis-addr"`
	RedisPassword   string        `default:"" usage:"Redis password" flag:"redis-password"`
	RedisDB         int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	RedisURL        string        `default:"" usage:"Redis URL (LAREK_SESSION_REDIS_URL or REDIS_URL)" flag:"redis-url"`
}

// UseRedis reports whether sessions go to Redis.
func (c SessionConfig) UseRedis() bool {
	return c.RedisAddr != "" || c.RedisURL != ""
}

// BrokerConfig controls order event publishing. Events are dropped when URL
// is empty.
type BrokerConfig struct {
	URL      string        `default:"" usage:"AMQP URL (LAREK_BROKER_URL or AMQP_URL)" flag:"amqp-url"`
	Queue    string        `default:"larek.orders" usage:"Queue receiving order.placed events" flag:"amqp-queue"`
	PoolSize int           `default:"4" usage:"Number of pooled AMQP channels" flag:"amqp-pool-size"`
	Timeout  time.Duration `default:"5s" usage:"Timeout of a single publish" flag:"amqp-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "LAREK",
		Files:     []string{"config.yaml", "/etc/larek/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set LAREK_DATABASE_URL or DATABASE_URL")
	}
	if c.Session.TTL <= 0 {
		return errors.Errorf("session TTL must be positive, got %s", c.Session.TTL)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's LAREK_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Session.RedisURL == "" && c.Session.RedisAddr == "" {
		c.Session.RedisURL = os.Getenv("REDIS_URL")
	}
	if c.Broker.URL == "" {
		c.Broker.URL = os.Getenv("AMQP_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
