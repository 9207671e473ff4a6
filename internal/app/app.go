package app

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"printflow-scheduler/internal/adapter/scheduler"
	"printflow-scheduler/internal/config"
	"printflow-scheduler/internal/httpapi"
	"printflow-scheduler/internal/notify"
	"printflow-scheduler/internal/platform/logger"
	"printflow-scheduler/internal/platform/pg"
	"printflow-scheduler/internal/runhistory"
	"printflow-scheduler/internal/runqueue"
	"printflow-scheduler/pkg/retry"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "printflow-scheduler",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the application: it brings up the Postgres pool and SQLite
// run-history store, applies pending migrations, registers the cron_auto
// trigger, and serves the HTTP API until interrupted.
func (a *App) Run() error {
	a.log.Info("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(a.cfg.Schedule.TimeZone)
	if err != nil {
		return err
	}

	dsn := pg.BuildDSN(pg.DSNConfig{
		Host:            a.cfg.Postgres.Host,
		Port:            a.cfg.Postgres.Port,
		User:            a.cfg.Postgres.User,
		Password:        a.cfg.Postgres.Password,
		Database:        a.cfg.Postgres.Database,
		SSLMode:         a.cfg.Postgres.SSLMode,
		ApplicationName: "printflow-scheduler",
	})

	if err := pg.WaitForDBSimple(ctx, dsn, 30*time.Second); err != nil {
		return err
	}
	// Another replica may be holding the migration advisory lock at startup;
	// retry rather than fail the whole process over a transient conflict.
	err = retry.RetryWithAttempts(ctx, 5, func(ctx context.Context) error {
		_, err := pg.ApplyMigrations(dsn, a.cfg.Postgres.MigrationsPath)
		return err
	})
	if err != nil {
		return err
	}

	pool, err := pg.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := runhistory.ApplyMigrations(a.cfg.SQLite.Path, a.cfg.SQLite.MigrationsPath); err != nil {
		return err
	}
	history, err := runhistory.Open(ctx, a.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	notifier := notify.New(a.cfg.Schedule.NotifyURL, a.log)
	queue := runqueue.New(4)
	server := httpapi.NewServer(pool, loc, a.cfg.Schedule.HorizonDays, queue, notifier, history, a.cfg.APIKeys, a.log)

	cron := scheduler.New(scheduler.Config{Logger: a.log})
	if _, err := cron.AddCronJob(a.cfg.Schedule.CronSpec, func(ctx context.Context) error {
		return server.RunAuto(ctx)
	}); err != nil {
		return err
	}
	cron.Start()
	defer cron.Stop()

	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: server.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("server", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
