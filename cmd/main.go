/**
 * @description
 * Entry point for the onboarding service. Wires together configuration, the
 * PostgreSQL pool, Redis, the RabbitMQ producer (with a no-op fallback when
 * the broker is down at startup), the KYC and brokerage provider clients,
 * and the HTTP server with graceful shutdown.
 *
 * @dependencies
 * - Standard Go libraries for lifecycle and signals.
 * - github.com/jackc/pgx/v5, github.com/joho/godotenv, github.com/redis/go-redis/v9.
 * - internal packages for config, store, app, and api.
 */

package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/quantrail/onboarding-service/internal/api"
	"github.com/quantrail/onboarding-service/internal/app"
	"github.com/quantrail/onboarding-service/internal/config"
	"github.com/quantrail/onboarding-service/internal/store"
	"github.com/quantrail/onboarding-service/pkg/brokerclient"
	"github.com/quantrail/onboarding-service/pkg/kycclient"
	"github.com/quantrail/onboarding-service/pkg/rabbitmq"
)

func maskAMQPURLForLog(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return "<unparseable>"
	}
	if u.User != nil {
		u.User = url.UserPassword("****", "****")
	}
	return u.String()
}

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	// If a platform-provided PORT is set (e.g., Railway/Render), prefer it
	if port := os.Getenv("PORT"); port != "" {
		cfg.ServerPort = port
	}

	// Establish database connection pool
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to parse database URL: %v", err)
	}
	dbConfig.MaxConns = 10
	dbConfig.MinConns = 2
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers
	dbConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbpool.Close()
	log.Println("Database connection established")

	repo := store.NewPostgresRepository(dbpool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Printf("Warning: failed ensuring tables (may already exist): %v", err)
	}

	log.Printf("RABBITMQ_URL (masked)=%s", maskAMQPURLForLog(cfg.RabbitMQURL))

	// Set up RabbitMQ producer with bounded dial timeout; fall back to no-op
	var producer rabbitmq.Publisher
	if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("WARNING: Failed to connect to RabbitMQ at startup: %v. Continuing without MQ.", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = p
		log.Println("RabbitMQ producer connected")
	}
	defer producer.Close()

	// Redis-backed poll limiter; unlimited when Redis is not configured
	var limiter app.KYCPollLimiter = app.UnlimitedKYCPollLimiter{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: invalid REDIS_URL, poll limiting disabled: %v", err)
		} else {
			redisClient := redis.NewClient(opts)
			defer redisClient.Close()
			limiter = app.NewRedisKYCPollLimiter(redisClient, cfg.RedisPrefix, cfg.KYCPollsPerMinute)
			log.Println("Redis poll limiter configured")
		}
	}

	kycClient := kycclient.NewClient(cfg.KYCAPIBaseURL, cfg.KYCAPIKey)
	brokerClient := brokerclient.NewClient(cfg.BrokerAPIBaseURL, cfg.BrokerAPIKey)

	service := app.NewService(repo, kycClient, brokerClient, producer, limiter)
	handlers := api.NewOnboardingHandlers(service)
	router := api.OnboardingRoutes(handlers, cfg.JWKSURL, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// Run the server in a goroutine so shutdown signals can be handled.
	go func() {
		log.Printf("Onboarding service listening on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", cfg.ServerPort, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
