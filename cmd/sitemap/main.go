// Command sitemap serves the portal sitemap built from the RELEASED indexes.
//
// The rendered sitemap is cached in Redis (when enabled) and rebuilt whenever
// an IndexRunCompleted event for the RELEASED stage arrives on the
// index-complete topic, or when the cached copy expires.
//
// Usage:
//
//	go run ./cmd/sitemap [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/indexing/store"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/model"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/sitemap"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/internal/translate"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/elastic"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/redis"
)

const buildTimeout = 2 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting sitemap service", "port", cfg.Sitemap.Port, "base_url", cfg.Sitemap.BaseURL)

	if cfg.Elasticsearch.Driver != "elasticsearch" {
		slog.Error("sitemap service needs the elasticsearch driver", "driver", cfg.Elasticsearch.Driver)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()

	var m *metrics.Metrics
	shutdownMetrics := func(context.Context) error { return nil }
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	es, err := elastic.NewClient(cfg.Elasticsearch)
	if err != nil {
		slog.Error("failed to connect to elasticsearch", "error", err)
		os.Exit(1)
	}
	checker.Register("elasticsearch", health.Ping(func(ctx context.Context) error {
		return elastic.Ping(ctx, es)
	}, health.StatusDown))
	docs := store.NewElastic(es, store.ElasticConfig{
		ScrollSize: cfg.Elasticsearch.ScrollSize,
		ScrollKeep: cfg.Elasticsearch.ScrollKeep,
	})

	var rdb *pkgredis.Client
	if cfg.Redis.Enabled {
		rdb, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		checker.Register("redis", health.Ping(rdb.Ping, health.StatusDegraded))
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	var types []model.ContentType
	for _, tm := range translate.Default().All() {
		types = append(types, tm.Type)
	}
	cache := sitemap.NewCache(rdb, sitemap.NewBuilder(docs, types, cfg.Sitemap.BaseURL), cfg.Sitemap.CacheTTL, m)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, sitemap.EventHandler(cache))
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index-complete consumer error", "error", err)
			}
		}()
		slog.Info("consuming run completions",
			"topic", cfg.Kafka.Topics.IndexComplete,
			"group", cfg.Kafka.ConsumerGroup,
		)
	}

	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, buildTimeout)
		defer cancel()
		if _, err := cache.Get(warmCtx); err != nil {
			slog.Warn("initial sitemap build failed", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("GET /sitemap.xml", middleware.Timeout(buildTimeout)(sitemap.NewHandler(cache)))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Sitemap.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: buildTimeout + 5*time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}()

	slog.Info("sitemap service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("sitemap service stopped")
}
