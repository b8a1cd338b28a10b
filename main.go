package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/Amund211/canchas/internal/adapters/cache"
	"github.com/Amund211/canchas/internal/adapters/courtprovider"
	"github.com/Amund211/canchas/internal/adapters/database"
	"github.com/Amund211/canchas/internal/adapters/eventrepository"
	"github.com/Amund211/canchas/internal/adapters/statsstore"
	"github.com/Amund211/canchas/internal/app"
	"github.com/Amund211/canchas/internal/circuitbreaker"
	"github.com/Amund211/canchas/internal/config"
	"github.com/Amund211/canchas/internal/logging"
	"github.com/Amund211/canchas/internal/ports"
	"github.com/Amund211/canchas/internal/ratelimiting"
	"github.com/Amund211/canchas/internal/reporting"
	"github.com/Amund211/canchas/internal/telemetry"
)

// TODO: Put in config
const PROD_DOMAIN_SUFFIX = "canchas.app"
const STAGING_DOMAIN_SUFFIX = "canchas-web.pages.dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Only used in development. Real environments set the variables directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err.Error())
	}

	instanceID := uuid.New().String()
	logger := logging.NewRootLogger(os.Stdout, instanceID, os.Getenv("GOOGLE_CLOUD_PROJECT"))

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if !config.IsDevelopment() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "canchas", config.Environment())
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	atc, err := courtprovider.NewATCOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize ATC provider", "error", err.Error())
	}
	logger.Info("Initialized ATC provider")

	availabilityCache := cache.NewAvailabilityCache(cache.DefaultTTL, time.Now)
	defer availabilityCache.Stop()

	upstreamLimiter := ratelimiting.NewTokenBucket(config.UpstreamRequestsPerMinute(), time.Now, time.After)

	breakerLogger := logger.With("component", "circuitbreaker")
	breakerConfig := circuitbreaker.DefaultConfig("atc")
	breakerConfig.OnStateChange = func(name string, from, to circuitbreaker.State) {
		breakerLogger.Warn(
			"Circuit breaker changed state",
			slog.String("name", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	breaker := circuitbreaker.New(breakerConfig)

	stats, err := statsstore.NewRedisOrNoop(config, time.Now)
	if err != nil {
		fail("Failed to initialize stats store", "error", err.Error())
	}
	defer stats.Close()
	logger.Info("Initialized stats store", "redis", config.RedisURL() != "")

	protected := courtprovider.NewProtected(atc, availabilityCache, upstreamLimiter, breaker, stats)
	defer protected.Close()

	var journal eventrepository.EventRepository
	if config.DBConnectionString() != "" {
		logger.Info("Initializing database connection")
		db, err := database.NewPostgresDatabaseFromConfig(config)
		if err != nil {
			fail("Failed to initialize database", "error", err.Error())
		}
		defer db.Close()

		schemaName := database.GetSchemaName(!config.IsProduction())
		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		journal = eventrepository.NewPostgres(db, schemaName)
		logger.Info("Initialized Postgres event journal")
	} else {
		journal = eventrepository.NewMemory()
		logger.Info("Initialized in-memory event journal")
	}

	getAvailability := app.BuildGetAvailability(protected)
	handleDomainEvent := app.BuildHandleDomainEvent(availabilityCache, journal, time.Now)

	if config.RabbitURL() != "" {
		consumer := ports.NewEventsConsumer(
			config.RabbitURL(),
			handleDomainEvent,
			logger.With("component", "events_consumer"),
			time.After,
		)
		go consumer.Run(ctx)
		logger.Info("Started events consumer")
	}

	allowedOrigins, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX, STAGING_DOMAIN_SUFFIX)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	searchLimiter, stopSearchLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(60),
		time.Now,
	)
	defer stopSearchLimiter()
	eventsLimiter, stopEventsLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(50),
		ratelimiting.BurstSize(500),
		time.Now,
	)
	defer stopEventsLimiter()

	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/search",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/search",
		ports.MakeSearchHandler(
			getAvailability,
			allowedOrigins,
			ratelimiting.NewRequestBasedRateLimiter(searchLimiter, ratelimiting.IPKeyFunc),
			logger.With("port", "search"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"POST /v1/events",
		ports.MakePostEventHandler(
			handleDomainEvent,
			ratelimiting.NewRequestBasedRateLimiter(eventsLimiter, ratelimiting.IPKeyFunc),
			logger.With("port", "post_event"),
			sentryMiddleware,
		),
	)
	mux.HandleFunc(
		"GET /v1/events/recent",
		ports.MakeGetRecentEventsHandler(
			journal,
			ratelimiting.NewRequestBasedRateLimiter(searchLimiter, ratelimiting.IPKeyFunc),
			logger.With("port", "recent_events"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"GET /v1/upstream/stats",
		ports.MakeGetUpstreamStatsHandler(
			stats,
			ratelimiting.NewRequestBasedRateLimiter(searchLimiter, ratelimiting.IPKeyFunc),
			logger.With("port", "upstream_stats"),
			sentryMiddleware,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, "canchas"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}()

	logger.Info("Init complete")
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
