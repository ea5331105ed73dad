package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JINHEE420/ShineDump-sub000/internal/config"
	"github.com/JINHEE420/ShineDump-sub000/internal/db"
	"github.com/JINHEE420/ShineDump-sub000/internal/server"
	"github.com/JINHEE420/ShineDump-sub000/internal/telemetry"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig       func() config.Config
	validateConfig   func(config.Config) error
	connectPostgres  func(config.Config) (*pgxpool.Pool, error)
	connectRedis     func(config.Config) *redis.Client
	connectTelemetry func(string) (*telemetry.Publisher, error)
	notify           func(chan<- os.Signal, ...os.Signal)
	run              func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, *telemetry.Publisher, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:       config.Load,
		validateConfig:   config.Validate,
		connectPostgres:  db.ConnectPostgres,
		connectRedis:     db.ConnectRedis,
		connectTelemetry: telemetry.Connect,
		notify:           signal.Notify,
		run:              Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	if err := deps.validateConfig(cfg); err != nil {
		log.Printf("invalid configuration: %v", err)
		return
	}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed: %v", err)
	}

	rdb := deps.connectRedis(cfg)

	events, err := deps.connectTelemetry(cfg.AmqpURL)
	if err != nil {
		log.Printf("telemetry broker unavailable: %v", err)
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, events, signals, nil); err != nil {
		log.Printf("agent exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the agent, attempts trip recovery and waits for termination
// signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, events *telemetry.Publisher, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, pg, rdb, events)

	// resume an interrupted trip before the device starts pushing positions
	go func() {
		recoverCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		trip, resumed, err := srv.Manager.ResumeLatest(recoverCtx)
		switch {
		case err != nil:
			log.Printf("trip recovery failed: %v", err)
		case resumed:
			log.Printf("resumed trip %s", trip.ID)
		}
	}()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	srv.Telemetry.Close()
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
