package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unimon/unimon/internal/adapter"
	"github.com/unimon/unimon/internal/aggregation"
	"github.com/unimon/unimon/internal/api"
	"github.com/unimon/unimon/internal/bootstrap"
	"github.com/unimon/unimon/internal/config"
	"github.com/unimon/unimon/internal/database"
	"github.com/unimon/unimon/internal/datasource"
	"github.com/unimon/unimon/internal/metrics"
	"github.com/unimon/unimon/internal/middleware"
	"github.com/unimon/unimon/internal/routing"
	"github.com/unimon/unimon/internal/suppression"
)

func main() {
	log.Info().Msg("Starting unimon api server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	adapterTimeout := parseDuration(cfg.Aggregation.AdapterTimeout, 10*time.Second)
	osAdapter := adapter.NewOpenSearchAdapter(adapterTimeout)
	promAdapter := adapter.NewPrometheusAdapter(adapterTimeout)
	resolver := adapter.NewResolver(osAdapter, promAdapter)

	// datasource store: durable when a database is configured, in-memory
	// otherwise
	var registry datasource.Store = datasource.NewRegistry()
	if dsn := cfg.Database.DSN(); dsn != "" {
		db, derr := database.New(dsn)
		if derr != nil {
			log.Error().Err(derr).Msg("database init failed; falling back to in-memory registry")
		} else {
			defer db.Close()
			if merr := db.Migrate(); merr != nil {
				log.Fatal().Err(merr).Msg("database migration failed")
			}
			registry = database.NewDatasourceRepo(db)
		}
	}

	routingEngine := routing.NewEngine()
	suppressionEngine := suppression.NewEngine()

	cacheTTL := parseDuration(cfg.Aggregation.CacheTTL, aggregation.DefaultCacheTTL)
	var cache aggregation.Cache = aggregation.NewMemoryCache(cacheTTL)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		cache = aggregation.NewRedisCache(rdb, cacheTTL)
	}

	reg := prometheus.NewRegistry()
	engine := aggregation.NewEngine(registry, resolver, routingEngine, suppressionEngine,
		aggregation.WithCache(cache),
		aggregation.WithMetrics(metrics.New(reg)),
		aggregation.WithDefaultTimeout(parseDuration(cfg.Aggregation.Timeout, aggregation.DefaultTimeout)),
		aggregation.WithDefaultDatasource(cfg.Aggregation.DefaultDatasource),
	)

	if err := bootstrap.Apply(context.Background(), cfg.Seed.File, registry, routingEngine, suppressionEngine); err != nil {
		log.Error().Err(err).Msg("seed bootstrap failed")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger)
	api.NewApi(router, engine, routingEngine, suppressionEngine, promAdapter)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start unimon api server failed.")
	}
	log.Info().Msg("unimon api server exit...")
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
