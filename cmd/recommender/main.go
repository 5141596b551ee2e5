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

	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/internal/handler"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting recommender service",
		"port", cfg.Server.Port,
		"corpus_source", cfg.Recommender.CorpusSource,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	var source catalog.Source
	switch cfg.Recommender.CorpusSource {
	case config.SourceFile:
		source = catalog.NewFileSource(cfg.Recommender.CorpusFile)
	case config.SourcePostgres:
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		source = catalog.NewPostgresSource(db)
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	default:
		source = catalog.SampleSource{}
	}

	engineOpts := []engine.Option{engine.WithMetrics(m)}
	handlerOpts := []handler.Option{handler.WithMetrics(m), handler.WithAggregator(analytics.NewAggregator())}

	kafkaEnabled := len(cfg.Kafka.Brokers) > 0
	if kafkaEnabled {
		indexProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt)
		defer indexProducer.Close()
		engineOpts = append(engineOpts, engine.WithPublisher(indexProducer))

		queryProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer queryProducer.Close()
		collector := analytics.NewCollector(queryProducer, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		handlerOpts = append(handlerOpts, handler.WithCollector(collector))
	} else {
		slog.Info("kafka brokers not configured, events disabled")
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			handlerOpts = append(handlerOpts, handler.WithCache(cache.New(redisClient, cfg.Redis.CacheTTL, m)))
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := redisClient.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	eng := engine.New(source, cfg.Recommender, engineOpts...)
	if _, err := eng.Rebuild(ctx, engine.TriggerStartup); err != nil {
		slog.Error("initial index build failed", "error", err)
		os.Exit(1)
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats, ok := eng.Stats()
		if !ok {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index not built"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", stats.Generation, stats.Documents),
		}
	})

	go eng.RunRebuildLoop(ctx)
	if kafkaEnabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusUpdated, eng.HandleCorpusUpdated())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("corpus-updated consumer error", "error", err)
			}
		}()
	}

	adminLimiter := ratelimit.New(cfg.Server.AdminRateLimit, time.Minute)
	go adminLimiter.Run(ctx, 5*time.Minute)
	handlerOpts = append(handlerOpts, handler.WithAdminMiddleware(middleware.RateLimit(adminLimiter)))

	h := handler.New(eng, cfg.Recommender, handlerOpts...)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Metrics sits inside Timeout so it sees the request the mux matched.
	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("recommender service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("recommender service stopped")
}
