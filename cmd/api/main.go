package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/homevisit-scheduler/cmd/mainconfig"
	"github.com/wolfman30/homevisit-scheduler/internal/api/router"
	"github.com/wolfman30/homevisit-scheduler/internal/app/bootstrap"
	"github.com/wolfman30/homevisit-scheduler/internal/appointments"
	appconfig "github.com/wolfman30/homevisit-scheduler/internal/config"
	"github.com/wolfman30/homevisit-scheduler/internal/events"
	httpmiddleware "github.com/wolfman30/homevisit-scheduler/internal/http/middleware"
	"github.com/wolfman30/homevisit-scheduler/internal/observability/metrics"
	"github.com/wolfman30/homevisit-scheduler/internal/realtime"
	"github.com/wolfman30/homevisit-scheduler/internal/reminders"
	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting homevisit-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	metricsHandler, schedulingMetrics := setupMetrics()
	hub := realtime.NewHub(logger)
	publisher, deliverer := bootstrap.BuildPublisher(cfg, awsCfg, stores.Pool, logger, hub)

	svc := appointments.NewService(stores.Appointments, stores.Identities,
		appointments.WithLogger(logger),
		appointments.WithPublisher(publisher),
		appointments.WithMetrics(schedulingMetrics),
		appointments.WithLocation(loc),
		appointments.WithRouteSeed(cfg.RouteSeed),
	)

	runner, err := setupScheduler(ctx, cfg, loc, stores, publisher, schedulingMetrics, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build reminder scheduler", "error", err)
		os.Exit(1)
	}

	var background sync.WaitGroup
	if cfg.SchedulerEnabled {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reminder scheduler stopped", "error", err)
			}
		}()
	}
	if deliverer != nil {
		background.Add(1)
		go func() {
			defer background.Done()
			deliverer.Start(ctx)
		}()
	}

	r := router.New(&router.Config{
		Logger:             logger,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: httpmiddleware.SplitOrigins(cfg.CORSAllowedOrigins),
		RateLimiter:        httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
		MetricsHandler:     metricsHandler,
		Appointments:       appointments.NewHandler(svc, logger),
		Reminders:          reminders.NewHandler(runner, logger),
		Hub:                hub,
		HealthCheck:        stores.Ping,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	background.Wait()

	logger.Info("server exited")
}

// setupMetrics builds a private registry so tests can assemble it repeatedly.
func setupMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSchedulingMetrics(reg)
}

func setupScheduler(
	ctx context.Context,
	cfg *appconfig.Config,
	loc *time.Location,
	stores *bootstrap.Stores,
	publisher events.Publisher,
	m *metrics.SchedulingMetrics,
	awsCfg *aws.Config,
	logger *logging.Logger,
) (*reminders.Runner, error) {
	sender, err := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	ledger, err := bootstrap.BuildLedger(cfg, stores.Appointments, redisClient)
	if err != nil {
		return nil, err
	}

	opts := []reminders.Option{
		reminders.WithLogger(logger),
		reminders.WithPublisher(publisher),
		reminders.WithMetrics(m),
		reminders.WithLocation(loc),
		reminders.WithWindow(cfg.ReminderWindow),
	}
	dispatcher := reminders.NewDispatcher(stores.Appointments, stores.Identities, sender, ledger, opts...)
	rollover := reminders.NewRollover(stores.Appointments, opts...)
	return reminders.NewRunner(dispatcher, rollover, cfg.ReminderInterval, cfg.RolloverHour, opts...), nil
}
