package cli

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"cie-scoring-service/internal/app"
	"cie-scoring-service/internal/config"
	"cie-scoring-service/internal/infra/memory"
	pgstore "cie-scoring-service/internal/infra/postgres"
	rediscache "cie-scoring-service/internal/infra/redis"
)

// services is the wired application graph shared by start and recompute.
type services struct {
	engine     *app.Engine
	recomputer *app.Recomputer
	gradebook  *app.Gradebook
	feed       *app.ResultFeed
	relay      *rediscache.Relay
	watchers   *rediscache.FeedStore
	keepalive  time.Duration

	closers []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// wire connects Postgres and Redis when configured and falls back to the
// in-memory backends otherwise.
func wire(ctx context.Context, cfg config.Config) (*services, error) {
	if !cfg.Log.Debug {
		logger.Debug.SetOutput(io.Discard)
	}
	s := &services{}

	var store app.Store
	var roster rosterWriter
	if cfg.Postgres.URL != "" {
		db, err := openBun(cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		if err := migrateDB(ctx, db); err != nil {
			s.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		pg := pgstore.NewStore(pool, db)
		store, roster = pg, pg
	} else {
		logger.Info.Println("postgres url not configured, using in-memory store")
		mem := memory.NewStore()
		store, roster = mem, memoryRoster{store: mem}
	}
	if cfg.Seed.Path != "" {
		if err := seedRoster(ctx, cfg.Seed.Path, roster); err != nil {
			s.Close()
			return nil, err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var catalog interface {
		app.CatalogReader
		app.CatalogInvalidator
	}
	var feeds app.FeedRepository
	if redisClient != nil {
		catalog = rediscache.NewCatalogCache(redisClient, store, catalogTTL)
		s.watchers = rediscache.NewFeedStore(redisClient, redisTTL)
		s.keepalive = redisTTL / 3
		feeds = s.watchers
	} else {
		catalog = memory.NewCatalogCache(store, catalogTTL)
		feeds = memory.NewFeedStore()
	}
	s.feed = app.NewResultFeed(feeds)

	// with Redis every instance learns about recomputations through the relay
	var notifier app.Notifier = s.feed
	if redisClient != nil {
		notifier = rediscache.NewPublisher(redisClient)
		s.relay = rediscache.NewRelay(redisClient, s.feed)
	}

	s.engine = app.NewEngine(catalog, store, store, store)
	s.recomputer = app.NewRecomputer(s.engine, store, cfg.BatchSize())
	listener := app.NewInvalidationListener(catalog, store, s.recomputer, notifier)
	s.gradebook = app.NewGradebook(store, catalog, listener, catalog)
	return s, nil
}
