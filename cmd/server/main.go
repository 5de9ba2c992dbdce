package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appinvoicing "github.com/tally/backend/internal/application/invoicing"
	apptime "github.com/tally/backend/internal/application/timetracking"
	"github.com/tally/backend/internal/infrastructure/cache"
	"github.com/tally/backend/internal/infrastructure/config"
	"github.com/tally/backend/internal/infrastructure/lock"
	"github.com/tally/backend/internal/infrastructure/logger"
	"github.com/tally/backend/internal/infrastructure/persistence"
	"github.com/tally/backend/internal/infrastructure/telemetry"
	"github.com/tally/backend/internal/interfaces/http/handler"
	"github.com/tally/backend/internal/interfaces/http/middleware"
	"github.com/tally/backend/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Fields: map[string]string{"service": cfg.App.Name, "env": cfg.App.Env},
	})
	if err != nil {
		// Fall back to the console rather than refusing to start.
		baseLog, _ = logger.New(logger.DefaultConfig())
		baseLog.Warn("Log output unavailable, logging to stdout", zap.Error(err))
	}

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log export", zap.Error(err))
	}

	log := telemetry.BridgeLogger(baseLog, cfg.Telemetry.ServiceName, lp)
	zap.ReplaceGlobals(log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Tally backend",
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.Billing.Timezone),
		zap.String("lock_backend", cfg.Billing.LockBackend),
	)

	metrics, err := telemetry.NewBillingMetrics(mp.Meter("tally/billing"))
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormLevel),
		logger.WithSlowThreshold(cfg.Database.SlowQuery))
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog, dbTracing)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	locker, closeLocker, err := lock.New(ctx, cfg.Billing, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to initialize invoice locks", zap.Error(err))
	}
	idempotency, err := cache.New(ctx, cfg.Billing, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}

	// Config.validate has already resolved these.
	cal, _ := cfg.Billing.Calendar()
	currency, _ := cfg.Billing.Currency()
	validation, _ := cfg.Billing.ValidationConfig()

	timerRepo := persistence.NewGormTimerRepository(db.DB)
	entryRepo := persistence.NewGormTimeEntryRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)

	opts := appinvoicing.Options{
		Calendar:        cal,
		DefaultCurrency: currency,
		Metrics:         metrics,
	}
	timerService := apptime.NewTimerService(
		persistence.NewGormTimeTrackingScope(db.DB), timerRepo, entryRepo, cal,
		apptime.WithMetrics(metrics),
	)
	billingScope := persistence.NewGormBillingScope(db.DB)
	invoiceService := appinvoicing.NewInvoiceService(billingScope, invoiceRepo, entryRepo, opts)
	paymentService := appinvoicing.NewPaymentService(billingScope, invoiceRepo, paymentRepo, locker, validation, opts)

	checks := map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
	}
	if pinger, ok := locker.(interface{ Ping(context.Context) error }); ok {
		checks["lock"] = pinger.Ping
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request ID must exist before logging and tracing
	// read it, and recovery must wrap everything after it.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	})...)
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  cfg.HTTP.CORSAllowMethods,
		AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	router.Mount(engine, router.Handlers{
		System:       handler.NewSystemHandler(cfg.App.Name, version, checks),
		TimeTracking: handler.NewTimeTrackingHandler(timerService, cal),
		Invoice:      handler.NewInvoiceHandler(invoiceService, cal),
		Payment:      handler.NewPaymentHandler(paymentService, cal),
		PaymentWrites: []gin.HandlerFunc{
			middleware.Idempotency(idempotency, cfg.Billing.IdempotencyTTL),
		},
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := closeLocker(); err != nil {
		log.Error("Error closing invoice locks", zap.Error(err))
	}
	if err := idempotency.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"traces":  tp.Shutdown,
		"metrics": mp.Shutdown,
		"logs":    lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.String("signal", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
