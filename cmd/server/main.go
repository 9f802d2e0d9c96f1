package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hail/internal/app"
	"hail/internal/config"
	"hail/internal/directory"
	"hail/internal/handler"
	"hail/internal/logger"
	"hail/internal/negotiation"
	"hail/internal/pricing"
	"hail/internal/realtime"
	internalRedis "hail/internal/redis"
	"hail/internal/repository/postgres"
	"hail/internal/scheduler"
	"hail/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	zlog, err := logger.New(os.Getenv("LOG_DEVELOPMENT") == "true")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			zlog.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			zlog.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	zlog.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	zlog.Info("connected to Redis")

	server, sched := wireServer(db, redisClient, nrApp, cfg, zlog)

	// Background task sweep.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go sched.Run(bgCtx)

	// Start server in goroutine.
	go func() {
		zlog.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")
	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the
// task scheduler.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, zlog *zap.Logger) (*http.Server, *scheduler.Scheduler) {
	// Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	sessionStore := internalRedis.NewSessionStore(redisClient)

	// Repositories.
	driverRepo := postgres.NewDriverRepository(db)
	vehicleRepo := postgres.NewVehicleRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	pricingRepo := postgres.NewPricingConfigRepository(db)
	receiptRepo := postgres.NewReceiptRepository(db)
	taskRepo := postgres.NewTaskRepository(db)

	// Realtime transport. No join authorizer here: the enclosing auth
	// layer resolves identities before sockets reach this service.
	socketServer := realtime.NewSocketServer(sessionStore, nil, zlog)
	notifier := realtime.NewNotifier(socketServer, zlog)

	// Services.
	pricingService := pricing.NewService(pricingRepo)
	demandService := service.NewDemandService(bookingRepo, locationStore, zlog)
	query := directory.NewQuery(driverRepo, vehicleRepo, locationStore, sessionStore, zlog)
	receiptService := service.NewReceiptService(receiptRepo, pricingService, notifier, zlog)
	sched := scheduler.New(taskRepo, notifier, zlog, scheduler.Config{
		Interval:    cfg.Scheduler.Interval,
		SurveyDelay: cfg.Scheduler.SurveyDelay,
		BatchSize:   cfg.Scheduler.BatchSize,
	})
	machine := negotiation.NewMachine(bookingRepo, driverRepo, query, pricingService, notifier, lockStore, receiptService, sched, zlog, negotiation.Config{
		OfferTTL:               cfg.Matching.OfferTTL,
		OfferBandPercent:       cfg.Matching.OfferBandPercent,
		NegotiationBandPercent: cfg.Matching.NegotiationBandPercent,
		RaiseCapPercent:        cfg.Matching.RaiseCapPercent,
		WindowLockTTL:          cfg.Matching.WindowLockTTL,
	})
	bookingService := service.NewBookingService(bookingRepo, pricingService, demandService, machine, taskRepo, zlog, service.BookingConfig{
		MaxResendAttempts: cfg.Matching.MaxResendAttempts,
	})
	driverService := service.NewDriverService(driverRepo, vehicleRepo, locationStore, zlog)

	// Handlers.
	bookingHandler := handler.NewBookingHandler(bookingService, receiptService, machine)
	driverHandler := handler.NewDriverHandler(driverService)

	router := app.NewRouter(app.RouterDeps{
		BookingHandler: bookingHandler,
		DriverHandler:  driverHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
	})

	// socket.io on its own path; everything else goes to gin.
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer.Handler())
	mux.Handle("/", router)

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sched
}
