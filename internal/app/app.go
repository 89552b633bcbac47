package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/stadium-bookings/internal/adapters/crdb"
	"github.com/robertarktes/stadium-bookings/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/stadium-bookings/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/stadium-bookings/internal/adapters/redis"
	"github.com/robertarktes/stadium-bookings/internal/booking"
	"github.com/robertarktes/stadium-bookings/internal/config"
	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

// Store is what every binary needs from the booking backend.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Save(ctx context.Context, b domain.Booking, events ...domain.Event) error
	ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// Deps holds the connections shared by the binaries. Optional backends are
// nil when their address is not configured.
type Deps struct {
	Config  *config.Config
	Logger  observability.Logger
	Store   Store
	Service *booking.Service

	Repo    *crdb.Repository
	Redis   *redisclient.Client
	Catalog *mongoadapter.CatalogRepository

	ReadyChecks map[string]func(ctx context.Context) error
	closers     []func()
}

func (d *Deps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// Build opens the configured store and optional Redis and Mongo backends and
// assembles the booking service on top of them.
func Build(ctx context.Context, cfg *config.Config, logger observability.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: logger, ReadyChecks: map[string]func(ctx context.Context) error{}}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	switch cfg.StoreBackend {
	case config.StoreCRDB:
		pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
		if err != nil {
			return nil, errors.Wrap(err, "connect to crdb")
		}
		d.onClose(pool.Close)
		d.Repo = crdb.NewRepository(pool)
		if err := d.Repo.Migrate(ctx); err != nil {
			return nil, errors.Wrap(err, "migrate crdb")
		}
		d.Store = d.Repo
		d.ReadyChecks["crdb"] = pool.Ping
	default:
		d.Store = memory.NewStore()
	}

	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, errors.Wrap(err, "connect to mongo")
		}
		d.onClose(func() { client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDB)
		d.Catalog = mongoadapter.NewCatalogRepository(db, logger)
		d.Store = mongoadapter.NewAuditedStore(d.Store, mongoadapter.NewAuditLogger(db, logger), logger)
		d.ReadyChecks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	opts := []booking.Option{booking.WithStorageTimeout(cfg.StorageTimeout)}
	if cfg.RedisAddr != "" {
		d.Redis = redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		d.onClose(func() { d.Redis.Close() })
		d.Store = redisadapter.NewCachedStore(d.Store, redisadapter.NewCache(d.Redis), cfg.CacheTTL, logger)
		opts = append(opts, booking.WithLocker(redisadapter.NewLocker(d.Redis, cfg.LockTTL)))
		d.ReadyChecks["redis"] = func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() }
	}

	d.Service = booking.NewService(d.Store, opts...)
	ok = true
	return d, nil
}
