package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/Sternrassler/gamepasses-api/internal/config"
	"github.com/Sternrassler/gamepasses-api/internal/server"
	"github.com/Sternrassler/gamepasses-api/pkg/cache"
	"github.com/Sternrassler/gamepasses-api/pkg/gamepass"
	"github.com/Sternrassler/gamepasses-api/pkg/logging"
	"github.com/Sternrassler/gamepasses-api/pkg/ratelimit"
	"github.com/Sternrassler/gamepasses-api/pkg/upstream"
)

// shutdownTimeout bounds how long in-flight requests may take after a signal.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "gamepasses-api",
		Usage: "Serve the purchasable game passes of Roblox users over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP listen port (overrides server.port)",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "Shared secret expected in the x-api-key header (overrides server.api_key)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error (overrides log.level)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"), config.Overrides{
				Port:     int(c.Int("port")),
				APIKey:   c.String("api-key"),
				LogLevel: c.String("log-level"),
			})
			if err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}

	return app.Run(context.Background(), os.Args)
}

// application is the wired service graph.
type application struct {
	handler http.Handler
	closers []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error while closing")
		}
	}
}

// newApplication builds every component from cfg.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{}

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.closers = append(app.closers, redisClient.Close)

		if err := redisClient.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	client, err := upstream.New(upstream.Config{
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	var strategy upstream.Strategy = upstream.Linear{}
	if cfg.Upstream.Strategy == config.StrategyCircuit {
		strategy = upstream.NewCircuitBreaking(upstream.BreakerConfig{
			FailureThreshold: cfg.Upstream.Breaker.FailureThreshold,
			Delay:            cfg.Upstream.Breaker.Delay,
			SuccessThreshold: cfg.Upstream.Breaker.SuccessThreshold,
		})
	}
	resolver := upstream.NewResolver(client, cfg.Upstream.Hosts, strategy)

	aggregator := gamepass.NewAggregator(resolver, gamepass.Config{
		MaxGames:       cfg.Aggregator.MaxGames,
		MaxConcurrency: cfg.Aggregator.MaxConcurrency,
	})

	var store cache.Cache[[]gamepass.Pass]
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		store = cache.NewRedisStore[[]gamepass.Pass](redisClient, cfg.Cache.TTL)
	default:
		memory := cache.NewMemoryStore[[]gamepass.Pass](cfg.Cache.TTL)
		app.closers = append(app.closers, memory.Close)
		store = memory
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limits := ratelimit.Config{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}
		switch cfg.RateLimit.Backend {
		case config.BackendRedis:
			limiter = ratelimit.NewRedisLimiter(redisClient, limits)
		default:
			memory := ratelimit.NewMemoryLimiter(limits)
			app.closers = append(app.closers, memory.Close)
			limiter = memory
		}
	}

	service := gamepass.NewService(aggregator, store, cfg.Aggregator.Coalesce)
	app.handler = server.New(server.Config{APIKey: cfg.Server.APIKey}, service, limiter).Handler()

	return app, nil
}

// serve runs the HTTP server until ctx ends or SIGINT/SIGTERM arrives.
func serve(ctx context.Context, cfg *config.Config) error {
	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Setup(logging.Config{
		Level:  level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Strs("upstream_hosts", cfg.Upstream.Hosts).
			Str("strategy", cfg.Upstream.Strategy).
			Str("cache_backend", cfg.Cache.Backend).
			Msg("Starting game pass API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exited")
	return nil
}
