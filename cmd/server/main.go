package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairchat/internal/chat"
	"pairchat/internal/config"
	"pairchat/internal/db"
	myMiddleware "pairchat/internal/middleware"
	"pairchat/internal/user"
	"pairchat/internal/web"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// 1. Config & Flags
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	addr := flag.String("addr", cfg.Addr, "http service address")
	flag.Parse()

	setupLogging(cfg)
	web.ExposeInternalErrors = !cfg.IsProduction()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (Platform Layer)
	var s *stores
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		s = memoryStores()
	default:
		database, err := db.Connect(ctx, cfg.DSN, cfg.DBRetryInterval)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()
		log.Info().Msg("connected to PostgreSQL")

		if err := database.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("database schema initialized")

		go database.Monitor(ctx, cfg.DBRetryInterval)
		s = postgresStores(database.Conn, cfg.StoreTimeout)
	}

	// 3. Redis rate limiting (optional)
	var limiter *myMiddleware.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, rate limiter will fail open until it returns")
		} else {
			log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
		}
		cancel()
		limiter = myMiddleware.NewRateLimiter(redisClient, cfg.RateLimit, cfg.RateWindow)
	}

	// 4. Hub and routes
	hub := chat.NewHub()
	go hub.Run(ctx)

	userService := user.NewService(s.users, cfg.JWTSecret)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(cfg, s, hub, limiter, userService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
