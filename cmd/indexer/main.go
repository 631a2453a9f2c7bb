// Command indexer starts the index synchronization service.
//
// It exposes the run-trigger API, runs the configured cron schedule and
// copies content from the metadata source into the search indexes. When
// Kafka is enabled, completed RELEASED runs are announced on the
// index-complete topic for the sitemap service; otherwise the shared sitemap
// cache is refreshed in-process.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/api/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/lock"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/journal"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/schedule"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/sitemap"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/source"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/translate"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/elastic"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/redis"
)

const journalMemoryLimit = 500

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"port", cfg.Server.Port,
		"store", cfg.Elasticsearch.Driver,
		"source", cfg.Source.Endpoint,
		"parallelism", cfg.Indexing.Parallelism,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	registry := translate.Default()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Document store.
	var docs store.Store
	switch cfg.Elasticsearch.Driver {
	case "memory":
		mem := store.NewMemory()
		checker.Register("elasticsearch", health.Ping(mem.Ping, health.StatusDown))
		docs = mem
		slog.Warn("using in-memory document store; indexes do not survive restarts")
	default:
		es, err := elastic.NewClient(cfg.Elasticsearch)
		if err != nil {
			slog.Error("failed to connect to elasticsearch", "error", err)
			os.Exit(1)
		}
		checker.Register("elasticsearch", health.Ping(func(ctx context.Context) error {
			return elastic.Ping(ctx, es)
		}, health.StatusDown))
		docs = store.NewElastic(es, store.ElasticConfig{
			ScrollSize: cfg.Elasticsearch.ScrollSize,
			ScrollKeep: cfg.Elasticsearch.ScrollKeep,
		})
		slog.Info("connected to elasticsearch", "addresses", cfg.Elasticsearch.Addresses)
	}

	// Redis: run leases and the shared sitemap cache.
	var rdb *pkgredis.Client
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Enabled {
		rdb, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.Indexing.LockTTL)
		checker.Register("redis", health.Ping(rdb.Ping, health.StatusDegraded))
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	// Run journal.
	var runs interface {
		indexing.Journal
		handler.RunLister
	} = journal.NewMemory(journalMemoryLimit)
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pj, err := journal.NewPostgres(ctx, db)
		if err != nil {
			slog.Error("failed to prepare run journal", "error", err)
			os.Exit(1)
		}
		runs = pj
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
		slog.Info("connected to postgres")
	}

	// Sitemap invalidation.
	var invalidator indexing.Invalidator
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		invalidator = sitemap.NewKafkaNotifier(producer)
		slog.Info("announcing completed runs on kafka", "topic", cfg.Kafka.Topics.IndexComplete)
	} else {
		builder := sitemap.NewBuilder(docs, contentTypes(registry), cfg.Sitemap.BaseURL)
		invalidator = sitemap.NewDirectRefresher(sitemap.NewCache(rdb, builder, cfg.Sitemap.CacheTTL, m))
	}

	src := source.NewClient(cfg.Source)
	checker.Register("metadata-source", func(ctx context.Context) health.ComponentHealth {
		if state := src.BreakerState(); state == "open" {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit breaker open"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	engine := indexing.NewEngine(indexing.Deps{
		Store:       docs,
		Source:      src,
		Registry:    registry,
		Locker:      locker,
		Invalidator: invalidator,
		Journal:     runs,
		Metrics:     m,
	}, indexing.Options{
		Parallelism:     cfg.Indexing.Parallelism,
		MaxPayloadChars: cfg.Indexing.MaxPayloadChars,
		TracingEnabled:  cfg.Tracing.Enabled,
	})

	scheduler, err := schedule.New(schedule.Jobs(cfg.Schedule, engine))
	if err != nil {
		slog.Error("invalid schedule", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	keys := apimw.NewKeySet(cfg.Indexing.APIKeyHashes)
	if keys.Empty() {
		slog.Warn("no API keys configured; trigger endpoints are unauthenticated")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(handler.New(engine, runs), checker, keys, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := scheduler.Stop(shutdownCtx); err != nil {
			slog.Error("scheduler shutdown error", "error", err)
		}
	}()

	slog.Info("indexer service listening", "addr", server.Addr, "scheduled_jobs", scheduler.Entries())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-stopped
	slog.Info("indexer service stopped")
}

func contentTypes(r *translate.Registry) []model.ContentType {
	var types []model.ContentType
	for _, m := range r.All() {
		types = append(types, m.Type)
	}
	return types
}
