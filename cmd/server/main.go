package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"remindly/internal/platform/config"
	"remindly/internal/platform/httpserver"
	"remindly/internal/platform/logger"
	"remindly/internal/platform/metrics"
	"remindly/internal/platform/postgres"
	platformredis "remindly/internal/platform/redis"
	reghandler "remindly/internal/registration/handler"
	regservice "remindly/internal/registration/service"
	"remindly/internal/registration/store"
	memorystore "remindly/internal/registration/store/memory"
	postgresstore "remindly/internal/registration/store/postgres"
	"remindly/internal/reminder/controller"
	"remindly/internal/reminder/cyclelock"
	"remindly/internal/reminder/dispatcher"
	"remindly/internal/reminder/trigger"
	"remindly/internal/reminder/webhook"
	httptransport "remindly/internal/transport/http"
)

// main wires high-level dependencies and keeps the lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Store: postgres when configured, otherwise in-memory for dev runs.
	var regStore store.Store
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err.Error())
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		pgStore := postgresstore.New(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("schema setup failed", "error", err.Error())
			os.Exit(1)
		}
		regStore = pgStore
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		regStore = memorystore.New()
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sender := webhook.New(cfg.WebhookURL, cfg.WebhookTimeout)
	disp, err := dispatcher.New(sender,
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(m),
		dispatcher.WithWorkers(cfg.DispatchWorkers),
		dispatcher.WithQueueSize(cfg.DispatchQueue),
	)
	if err != nil {
		log.Error("dispatcher setup failed", "error", err.Error())
		os.Exit(1)
	}

	ctrlOpts := []controller.Option{
		controller.WithLogger(log),
		controller.WithMetrics(m),
	}
	if redisClient != nil {
		ctrlOpts = append(ctrlOpts, controller.WithLease(cyclelock.New(redisClient.Client, 0)))
	}
	ctrl, err := controller.New(regStore, disp, cfg.BoundaryDays, ctrlOpts...)
	if err != nil {
		log.Error("controller setup failed", "error", err.Error())
		os.Exit(1)
	}

	cycleTrigger, err := trigger.New(cfg.CycleSchedule, ctrl, log)
	if err != nil {
		log.Error("trigger setup failed", "error", err.Error())
		os.Exit(1)
	}

	regService, err := regservice.New(regStore, cfg.BoundaryDays,
		regservice.WithLogger(log),
		regservice.WithMetrics(m),
	)
	if err != nil {
		log.Error("registration service setup failed", "error", err.Error())
		os.Exit(1)
	}

	checks := []httptransport.HealthCheck{
		{Name: "store", Check: regStore.Health},
	}
	if redisClient != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
	}
	router := httptransport.NewRouter(log, reghandler.New(regService, log), checks...)
	srv := httpserver.New(cfg.Addr, router)

	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- disp.Run(context.Background())
	}()

	cycleTrigger.Start()

	log.Info("starting remindly",
		"addr", cfg.Addr,
		"boundaries", cfg.BoundaryDays,
		"schedule", cfg.CycleSchedule,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// Stop new ticks, let an in-flight cycle finish, then drain the dispatch
	// queue before closing the server.
	<-cycleTrigger.Stop().Done()
	disp.Shutdown()
	<-dispatchDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
