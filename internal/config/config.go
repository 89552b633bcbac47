package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMemory = "memory"
	StoreCRDB   = "crdb"
)

type Config struct {
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	CRDBDSN      string `envconfig:"CRDB_DSN"`
	MongoURI     string `envconfig:"MONGO_URI"`
	MongoDB      string `envconfig:"MONGO_DB" default:"stadium"`
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RabbitURL    string `envconfig:"RABBIT_URL"`
	PaymentQueue string `envconfig:"PAYMENT_QUEUE" default:"bookings.payments.q"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TimeZone     string `envconfig:"TIME_ZONE" default:"UTC"`

	StorageTimeout     time.Duration `envconfig:"STORAGE_TIMEOUT" default:"3s"`
	LockTTL            time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	CacheTTL           time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	CompletionInterval time.Duration `envconfig:"COMPLETION_INTERVAL" default:"1m"`
	CompletionBatch    int           `envconfig:"COMPLETION_BATCH" default:"50"`
	OutboxInterval     time.Duration `envconfig:"OUTBOX_INTERVAL" default:"5s"`
	OutboxBatch        int           `envconfig:"OUTBOX_BATCH" default:"10"`

	RateLimitPerUser int `envconfig:"RATE_LIMIT_PER_USER" default:"10"`
	RateLimitPerIP   int `envconfig:"RATE_LIMIT_PER_IP" default:"100"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreCRDB:
		if c.CRDBDSN == "" {
			return errors.New("CRDB_DSN is required for the crdb store backend")
		}
	default:
		return errors.Newf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.StorageTimeout <= 0 {
		return errors.New("STORAGE_TIMEOUT must be positive")
	}
	return nil
}

// Location is the time zone booking dates and start times are written in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", c.TimeZone)
	}
	return loc, nil
}
