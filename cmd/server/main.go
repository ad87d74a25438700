package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"route-results-service/internal/adapters/messaging"
	"route-results-service/internal/adapters/ratelimit"
	"route-results-service/internal/adapters/repositories"
	"route-results-service/internal/api"
	"route-results-service/internal/config"
	"route-results-service/internal/platform/db"
	"route-results-service/internal/platform/logging"
	"route-results-service/internal/ports"
	"route-results-service/internal/services"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// main is the application composition root. It wires the SQL store, the
// publisher and the throttle behind their ports, then runs the engine run
// worker next to the ops HTTP server until a signal arrives.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, dialect, err := openDB(cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Local sqlite runs create their schema on startup.
	if dialect == repositories.DialectSQLite {
		if err := repositories.InitSchema(conn, dialect); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	store := repositories.NewSQLStore(conn, dialect)
	store.ClaimLease = cfg.Worker.ClaimLease

	// In-process transport; consumers of driver.push and optimisation.events
	// subscribe on the same pubsub.
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		messaging.NewZerologAdapter(logging.Logger()),
	)
	breaker := messaging.DefaultBreakerConfig()
	breaker.FailureThreshold = cfg.Breaker.FailureThreshold
	breaker.Timeout = cfg.Breaker.Timeout
	publisher := messaging.NewPublisher(pubsub, breaker)
	defer publisher.Close()

	throttle, closeThrottle := newThrottle(cfg)
	defer closeThrottle()

	worker := &services.Worker{
		Runs:        store,
		Repo:        store,
		Notifier:    messaging.NewPushNotifier(publisher),
		Events:      messaging.NewEventFeed(publisher),
		Throttle:    throttle,
		Concurrency: cfg.Worker.Concurrency,
		Batch:       cfg.Worker.Batch,
		Interval:    cfg.Worker.PollInterval,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(store, store),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		logging.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run: listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, repositories.Dialect, error) {
	dialect, err := repositories.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, "", fmt.Errorf("open db: %w", err)
	}

	var conn *sql.DB
	if dialect == repositories.DialectPostgres {
		conn, err = db.Open(cfg.URL)
	} else {
		conn, err = db.OpenSQLite(cfg.Path)
	}
	if err != nil {
		return nil, "", err
	}
	return conn, dialect, nil
}

// newThrottle shares the status-change window through Redis when an
// address is configured and keeps it in memory otherwise.
func newThrottle(cfg *config.Config) (ports.StatusThrottle, func()) {
	t := cfg.Throttle
	if cfg.Redis.Addr == "" {
		logging.Info().Msg("no redis address, status change throttle is per process")
		return services.NewWindowThrottle(t.Limit, t.Window, t.Pause), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return ratelimit.NewRedisThrottle(client, cfg.Redis.Key, t.Limit, t.Window, t.Pause), func() { _ = client.Close() }
}
