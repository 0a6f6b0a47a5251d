package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hookline/hookline/engine/infra/monitoring"
	"github.com/hookline/hookline/engine/infra/postgres"
	"github.com/hookline/hookline/engine/infra/server"
	"github.com/hookline/hookline/engine/queue"
	"github.com/hookline/hookline/engine/scheduler"
	"github.com/hookline/hookline/engine/worker"
	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/version"
)

const monitoringShutdownTimeout = 5 * time.Second

func StartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the supervisor, the worker pool and the health endpoint",
		Long: "start reconciles stored areas into running evaluators, drains the job " +
			"queue with a worker pool and serves /healthz until SIGINT or SIGTERM.",
		RunE: runStart,
	}
	cmd.Flags().Int("workers", 0, "Override worker.count from the configuration")
	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)

	if workers, err := cmd.Flags().GetInt("workers"); err == nil && workers > 0 {
		cfg.Worker.Count = workers
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.ApplyMigrationsWithLock(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	mon := monitoring.NewServiceWithFallback(ctx, &cfg.Monitoring)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), monitoringShutdownTimeout)
		defer cancel()
		if err := mon.Shutdown(shutdownCtx); err != nil {
			log.Warn("Monitoring shutdown failed", "error", err)
		}
	}()

	store, err := postgres.NewStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(context.Background()) }()

	baseQueue, closeQueue, err := openQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeQueue()

	queueMetrics, err := queue.NewMetrics(ctx, mon.Meter())
	if err != nil {
		return fmt.Errorf("failed to build queue metrics: %w", err)
	}
	jobQueue := queue.NewInstrumented(baseQueue, queueMetrics)
	if err := queue.RegisterDepthGauge(mon.Meter(), baseQueue); err != nil {
		return fmt.Errorf("failed to register queue depth gauge: %w", err)
	}
	schedulerMetrics, err := scheduler.NewMetrics(ctx, mon.Meter())
	if err != nil {
		return fmt.Errorf("failed to build scheduler metrics: %w", err)
	}
	workerMetrics, err := worker.NewMetrics(ctx, mon.Meter())
	if err != nil {
		return fmt.Errorf("failed to build worker metrics: %w", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build component registry: %w", err)
	}

	supervisor := scheduler.NewSupervisor(scheduler.SupervisorConfig{
		Registry:          registry,
		Areas:             postgres.NewAreaRepo(store.Pool()),
		Credentials:       postgres.NewCredentialRepo(store.Pool()),
		Queue:             jobQueue,
		ReconcileInterval: cfg.Scheduler.ReconcileInterval,
		ErrorBackoff:      cfg.Scheduler.ErrorBackoff,
		Metrics:           schedulerMetrics,
	})
	pool := worker.NewPool(worker.Config{
		Registry:  registry,
		Queue:     jobQueue,
		Count:     cfg.Worker.Count,
		IdleSleep: cfg.Worker.IdleSleep,
		Metrics:   workerMetrics,
	})
	httpServer := server.New(server.Config{
		Server:     &cfg.Server,
		Monitoring: mon,
		Queue:      baseQueue,
		Database:   store,
		Version:    version.Get().Version,
	})

	log.Info("Starting hookline",
		"version", version.Get().Version,
		"workers", cfg.Worker.Count,
		"queue_driver", cfg.Queue.Driver,
		"reconcile_interval", cfg.Scheduler.ReconcileInterval,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := supervisor.Start(groupCtx); err != nil {
			return err
		}
		<-groupCtx.Done()
		supervisor.Stop()
		return nil
	})
	group.Go(func() error {
		if err := pool.Start(groupCtx); err != nil {
			return err
		}
		<-groupCtx.Done()
		pool.Stop()
		return nil
	})
	group.Go(func() error {
		return httpServer.Start(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("hookline stopped")
	return nil
}
