package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	config "github.com/anjiri1684/guild_social/configs"
	"github.com/anjiri1684/guild_social/database"
	"github.com/anjiri1684/guild_social/database/memstore"
	"github.com/anjiri1684/guild_social/jobs"
	"github.com/anjiri1684/guild_social/logger"
	"github.com/anjiri1684/guild_social/routes"
	"github.com/anjiri1684/guild_social/services"
	"github.com/anjiri1684/guild_social/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	store, err := openStore(cfg, zl)
	if err != nil {
		zl.Fatal("open store", zap.Error(err))
	}

	lastSeen, closeLastSeen := openLastSeen(cfg, zl)
	defer closeLastSeen()

	conversations := services.NewConversationService(store, zl.Named("conversations"))
	gw := websocket.NewGateway(websocket.Config{
		SendBuffer:        cfg.SendBuffer,
		HandshakeTimeout:  cfg.HandshakeTimeout,
		PingInterval:      cfg.PingInterval,
		IdleTimeout:       cfg.IdleTimeout,
		EventTimeout:      cfg.EventTimeout,
		PresenceBroadcast: cfg.PresenceBroadcast,
	}, &websocket.Services{
		Identity:      services.NewJWTVerifier(cfg.JWTSecret, store),
		Conversations: conversations,
		Friends:       services.NewFriendService(store, zl.Named("friends")),
		Alliances:     services.NewAllianceService(store),
		LastSeen:      lastSeen,
	}, zl.Named("gateway"))

	scheduler, err := jobs.Schedule(cfg.IdleSweepSchedule, gw, zl.Named("jobs"))
	if err != nil {
		zl.Fatal("schedule jobs", zap.Error(err))
	}
	scheduler.Start()
	zl.Info("idle session reaper scheduled", zap.String("schedule", cfg.IdleSweepSchedule))

	app := fiber.New(fiber.Config{
		AppName:       "Guild Social",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			zl.Warn("request failed", zap.Error(err), zap.String("path", c.Path()), zap.String("method", c.Method()))
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Guild Social API",
		})
	})

	deps := routes.Deps{
		Config:        cfg,
		Store:         store,
		Conversations: conversations,
		LastSeen:      lastSeen,
		Gateway:       gw,
		Logger:        zl,
	}
	routes.PublicRoutes(app, deps)
	routes.AuthRoutes(app, deps)
	routes.MessagingRoutes(app, deps)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		zl.Info("shutting down")
		<-scheduler.Stop().Done()
		gw.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("shutdown", zap.Error(err))
		}
	}()

	zl.Info("server listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zl.Fatal("server failed to start", zap.Error(err))
	}
}

func openStore(cfg *config.Settings, zl *zap.Logger) (services.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		store := memstore.New()
		if cfg.SeedDemoUsers {
			users, err := store.SeedDemo(cfg.DemoPassword)
			if err != nil {
				return nil, err
			}
			for _, u := range users {
				zl.Info("seeded demo user", zap.String("email", u.Email), zap.String("user_id", u.ID.String()))
			}
		}
		return store, nil
	}

	db, err := database.ConnectDB(cfg.DatabaseURL, zl)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if cfg.SeedDemoUsers {
		if err := database.SeedDemoUsers(db, cfg.DemoPassword, zl); err != nil {
			return nil, err
		}
	}
	return database.NewStore(db), nil
}

func openLastSeen(cfg *config.Settings, zl *zap.Logger) (services.LastSeenStore, func()) {
	if cfg.RedisURL == "" {
		return services.NewMemoryLastSeen(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rls, err := services.NewRedisLastSeen(ctx, cfg.RedisURL)
	if err != nil {
		zl.Warn("redis unavailable, keeping last-seen in memory", zap.Error(err))
		return services.NewMemoryLastSeen(), func() {}
	}
	zl.Info("last-seen backed by redis")
	return rls, func() { _ = rls.Close() }
}
