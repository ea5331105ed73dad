package server

import (
	"time"

	"github.com/JINHEE420/ShineDump-sub000/internal/area"
	"github.com/JINHEE420/ShineDump-sub000/internal/auth"
	"github.com/JINHEE420/ShineDump-sub000/internal/buffer"
	"github.com/JINHEE420/ShineDump-sub000/internal/config"
	"github.com/JINHEE420/ShineDump-sub000/internal/notify"
	"github.com/JINHEE420/ShineDump-sub000/internal/position"
	"github.com/JINHEE420/ShineDump-sub000/internal/remote"
	"github.com/JINHEE420/ShineDump-sub000/internal/stream"
	"github.com/JINHEE420/ShineDump-sub000/internal/syncer"
	"github.com/JINHEE420/ShineDump-sub000/internal/telemetry"
	"github.com/JINHEE420/ShineDump-sub000/internal/tracking"
	"github.com/JINHEE420/ShineDump-sub000/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Server wires the agent together: the trip lifecycle, the tracking loop,
// the sync protocol and the HTTP surface the device talks to.
type Server struct {
	App       *fiber.App
	Cfg       config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Stream    *stream.Hub
	Source    *position.DeviceSource
	Tracker   *tracking.Tracker
	Manager   *trip.Manager
	Telemetry *telemetry.Publisher
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, events *telemetry.Publisher) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	source := position.NewDeviceSource()
	sink := notify.LogSink{}
	dispatch := remote.NewClient(cfg.RemoteBaseURL)

	store := buffer.NewStore(db)
	sync := syncer.New(store, dispatch, events).WithBatchSize(cfg.SyncBatchSize)

	trackCfg := tracking.DefaultConfig()
	if cfg.WatchdogSec > 0 {
		trackCfg.WatchdogPeriod = time.Duration(cfg.WatchdogSec) * time.Second
		trackCfg.StaleAfter = time.Duration(cfg.WatchdogSec) * time.Second
	}
	var guard tracking.Guard = tracking.NopGuard{}
	if redisClient != nil {
		guard = tracking.NewRedisLease(redisClient, cfg.DriverID)
	}
	tracker := tracking.NewTracker(trackCfg, source, store, sync, sink, hub, guard)

	managerCfg := trip.DefaultManagerConfig(cfg.DriverID)
	if cfg.StatusPollSec > 0 {
		managerCfg.PollInterval = time.Duration(cfg.StatusPollSec) * time.Second
	}
	if cfg.RecoveryWindowHrs > 0 {
		managerCfg.RecoveryWindow = time.Duration(cfg.RecoveryWindowHrs) * time.Hour
	}
	managerCfg.ForceEndFinalSync = cfg.ForceEndFinalSync

	cache := trip.NewCache(redisClient)
	manager := trip.NewManager(managerCfg, dispatch, cache, tracker, events, sink, hub)

	// smart mode closes the loop from arrival detection back to the
	// lifecycle
	tracker.SetDriveModeFn(manager.DriveMode)
	tracker.SetAutoEnd(manager.AutoEnd)

	s := &Server{
		App:       app,
		Cfg:       cfg,
		DB:        db,
		Redis:     redisClient,
		Stream:    hub,
		Source:    source,
		Tracker:   tracker,
		Manager:   manager,
		Telemetry: events,
	}

	registerRoutes(s, sync, store)
	return s
}

func registerRoutes(s *Server, sync *syncer.Syncer, store *buffer.Store) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	trip.RegisterRoutes(s.App.Group("/trips"), s.Manager, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracker, s.Source, jwtMiddleware)
	syncer.RegisterRoutes(s.App.Group("/sync"), sync, store, jwtMiddleware)
	area.RegisterRoutes(s.App.Group("/areas"), area.NewService(s.DB), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
