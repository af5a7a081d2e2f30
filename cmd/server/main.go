package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/vaxtrack/internal/config"
	"github.com/localnerve/vaxtrack/internal/dashboard"
	"github.com/localnerve/vaxtrack/internal/database"
	"github.com/localnerve/vaxtrack/internal/handlers"
	"github.com/localnerve/vaxtrack/internal/logger"
	"github.com/localnerve/vaxtrack/internal/metrics"
	"github.com/localnerve/vaxtrack/internal/render"
	"github.com/localnerve/vaxtrack/internal/session"
	"github.com/localnerve/vaxtrack/internal/store"
	"github.com/localnerve/vaxtrack/internal/types"
	"github.com/localnerve/vaxtrack/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	_ "github.com/localnerve/vaxtrack/docs/api" // Swagger docs
)

// @title Vaxtrack API
// @version 1.0.0
// @description Personal vaccination records and reminders with role-aware dashboards
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/vaxtrack
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	if showHelp {
		fmt.Println("Usage: server [-h] [-f ENV_FILE_PATH]")
		return
	}

	if err := config.LoadEnvFile(envFilename); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat, "vaxtrack")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	loc, err := cfg.Location()
	if err != nil {
		zlog.Fatal("Invalid time zone", zap.Error(err))
	}

	// Connect to database (app pool)
	appDB, err := database.Connect(cfg, zlog.Named("database"))
	if err != nil {
		zlog.Fatal("Failed to connect to app database", zap.Error(err))
	}
	defer database.Close(appDB)

	// Connect to database (user pool)
	userDB, err := database.ConnectUser(cfg, zlog.Named("database"))
	if err != nil {
		zlog.Fatal("Failed to connect to user database", zap.Error(err))
	}
	defer database.Close(userDB)

	// Run auto-migrations, then the row-level security policies
	if err := database.AutoMigrate(appDB); err != nil {
		zlog.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := database.ApplyPolicies(appDB, cfg.DBUser); err != nil {
		zlog.Fatal("Failed to apply row-level security", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	st := store.New(appDB, userDB, zlog.Named("store"),
		store.WithLocation(loc),
		store.WithMetrics(m))

	// Session events travel over redis when configured so every instance
	// drops a signed-out dashboard.
	var rdb *redis.Client
	var bus session.Bus = session.NewLocalBus()
	if cfg.RedisURL != "" {
		rdb, err = session.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Failed to configure redis", zap.Error(err))
		}
		defer rdb.Close()

		redisBus, err := session.NewRedisBus(context.Background(), rdb, zlog.Named("events"))
		if err != nil {
			zlog.Fatal("Failed to subscribe to session events", zap.Error(err))
		}
		bus = redisBus
	}
	defer bus.Close()

	var auth session.Authenticator
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		auth = session.NewJWTAuthenticator(cfg.JWTSecret)
	default:
		auth = session.NewAuthorizerAuthenticator(cfg.AuthzURL, cfg.AuthzClientID, "", zlog.Named("authorizer"))
	}
	bridge := session.NewBridge(auth, bus, zlog.Named("session"))
	defer bridge.Close()

	views, err := render.New()
	if err != nil {
		zlog.Fatal("Failed to parse templates", zap.Error(err))
	}

	newDashboard := func() *dashboard.Dashboard {
		return dashboard.New(st, bridge, views,
			dashboard.WithLocation(loc),
			dashboard.WithLogger(zlog.Named("dashboard")),
			dashboard.WithMetrics(m),
			dashboard.WithSearchDebounce(cfg.SearchDebounce),
			dashboard.WithNoticeTTL(cfg.NoticeTTL))
	}
	manager := dashboard.NewManager(newDashboard, zlog.Named("dashboards"),
		dashboard.WithIdleTimeout(cfg.IdleTimeout),
		dashboard.OnEvict(bridge.Forget))
	bridge.Subscribe(manager.HandleEvent)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go manager.Run(sweepCtx)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prom := fiberprometheus.New("vaxtrack")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.Register(app, handlers.Routes{
		Bridge:    bridge,
		Dashboard: &handlers.DashboardHandler{Manager: manager, New: newDashboard},
		Records:   &handlers.RecordHandler{Manager: manager, Store: st},
		Auth:      &handlers.AuthHandler{Bridge: bridge},
		Health:    &handlers.HealthHandler{Config: cfg, DB: appDB, Redis: rdb, Log: zlog.Named("health")},
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.NotFoundResponse(c, "[404] Resource Not Found")
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		zlog.Info("Gracefully shutting down...")
		stopSweep()
		_ = app.Shutdown()
	}()

	// Start server
	zlog.Info("Starting server", zap.String("port", cfg.Port), zap.String("authMode", cfg.AuthMode))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Error("Failed to start server", zap.Error(err))
	}

	zlog.Info("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	// Check if it's a Fiber error
	var fe *fiber.Error
	var te *types.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.As(err, &te):
		code = utils.StatusFor(err)
		message = types.Message(err)
		errorType = utils.ErrorType(err)
	}

	return utils.ErrorResponse(c, message, code, errorType)
}
