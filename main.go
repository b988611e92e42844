package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/quantumquest/cache"
	"github.com/wfunc/quantumquest/config"
	"github.com/wfunc/quantumquest/eventbus"
	"github.com/wfunc/quantumquest/logger"
	"github.com/wfunc/quantumquest/monitor"
	"github.com/wfunc/quantumquest/persistence"
	"github.com/wfunc/quantumquest/server"
	"github.com/wfunc/quantumquest/services"
	"github.com/wfunc/quantumquest/timer"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	towerCfg, err := cfg.Game.TowerConfig()
	if err != nil {
		logger.Log.Fatalf("Invalid game configuration: %v", err)
	}

	// Initialize storage. Without a reachable postgres the server keeps
	// running on the in-memory store.
	db, measurements := openStores(cfg.Database.Postgres)
	defer db.Close()
	defer measurements.Close()

	var leaderboardCache cache.Leaderboard = cache.Noop{}
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisLeaderboard(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LeaderboardTTL)
		if err != nil {
			logger.Log.Warnf("Leaderboard cache disabled: %v", err)
		} else {
			defer redisCache.Close()
			leaderboardCache = redisCache
		}
	}

	var publisher services.EventPublisher
	if cfg.NATS.URL != "" {
		bus, err := eventbus.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			logger.Log.Warnf("Event publishing disabled: %v", err)
		} else {
			defer bus.Close()
			publisher = bus
		}
	}

	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	leaderboard := services.NewLeaderboardService(db, leaderboardCache)
	sessions := services.NewSessionService(db, leaderboard, publisher)
	measurementService := services.NewMeasurementService(measurements, publisher)
	defer measurementService.Close()

	svc := server.Services{
		DB:           db,
		Auth:         services.NewAuthService(db, tokens),
		Sessions:     sessions,
		Leaderboard:  leaderboard,
		Achievements: services.NewAchievementService(db, sessions),
		Players:      services.NewPlayerService(db),
		Measurements: measurementService,
		Probability:  services.NewProbabilityService(rand.New(rand.NewSource(time.Now().UnixNano())), measurementService, sessions.RecordRoomCompletion),
	}

	timers := timer.NewTimerManager()
	defer timers.Stop()

	// Initialize Game Server
	gameServer, err := server.NewGameServer(server.Options{
		Addr:           cfg.Server.HTTPAddress,
		RPCAddr:        cfg.Server.RPCAddress,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		Tower:          towerCfg,
		Tick:           config.Tick,
	}, svc, timers, monitor.NewMonitor("quantumquest"))
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(ctx); err != nil {
			logger.Log.Errorf("Shutdown: %v", err)
		}
	}()

	// Start Server
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

type measurementCloser interface {
	persistence.MeasurementLog
	Close() error
}

func openStores(pg config.PostgresConfig) (persistence.Database, measurementCloser) {
	if pg.Host == "" {
		logger.Log.Warn("No database host configured, using the in-memory store.")
		memory := persistence.NewMemory()
		return memory, memory
	}

	dsn := persistence.DSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)
	db, err := persistence.NewGormPostgreSQL(dsn)
	if err != nil {
		logger.Log.Errorf("Failed to connect to database, using the in-memory store: %v", err)
		memory := persistence.NewMemory()
		return memory, memory
	}
	logger.Log.Info("Database connection successful.")

	store, err := persistence.NewMeasurementStore(dsn)
	if err != nil {
		logger.Log.Warnf("Measurement store unavailable, keeping measurements in memory: %v", err)
		return db, persistence.NewMemory()
	}
	return db, store
}
