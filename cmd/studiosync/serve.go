package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/universalyoga/studiosync/internal/autosync"
	"github.com/universalyoga/studiosync/internal/catalog"
	"github.com/universalyoga/studiosync/internal/config"
	"github.com/universalyoga/studiosync/internal/dashboard"
	"github.com/universalyoga/studiosync/internal/replica"
	"github.com/universalyoga/studiosync/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog service with background sync",
	Long: `Run the studiosync service: the local store, the debounced
auto-sync scheduler, and (if enabled) the monitoring dashboard.

The config file is watched while serving, so autosync.enabled and
autosync.debounce can be changed without a restart. The service runs
until interrupted.`,
	RunE: runServe,
}

// newLogWriter routes logs to stderr, plus a rotating file when
// configured.
func newLogWriter(cfg config.LogConfig) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	return io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logWriter := newLogWriter(cfg.Log)
	logger := log.New(logWriter, "[serve] ", log.LstdFlags)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	primary := replica.NewHTTP(replica.HTTPConfig{
		Name:    "primary",
		BaseURL: cfg.Replicas.Primary,
		Timeout: cfg.Replicas.Timeout,
		Logger:  log.New(logWriter, "[replica] ", log.LstdFlags),
	})
	secondary := replica.NewHTTP(replica.HTTPConfig{
		Name:    "secondary",
		BaseURL: cfg.Replicas.Secondary,
		Timeout: cfg.Replicas.Timeout,
		Logger:  log.New(logWriter, "[replica] ", log.LstdFlags),
	})

	// Dashboard first so the scheduler can broadcast through it.
	var dash *dashboard.Server
	var events func(kind string, result *autosync.Result)
	var records func(kind string, id int, action, name string)
	if cfg.Dashboard.Enabled {
		dash, err = dashboard.NewServer(dashboard.Config{
			Port:   cfg.Dashboard.Port,
			Store:  db,
			Logger: log.New(logWriter, "[dashboard] ", log.LstdFlags),
		})
		if err != nil {
			return fmt.Errorf("failed to create dashboard: %w", err)
		}
		handler := dashboard.NewHandler(dash, logger)
		events = handler.OnSyncEvent
		records = handler.OnRecordChange
	}

	// The catalog service is created after the scheduler so mutations can
	// poke it; MarkAllSynced is wired back into the scheduler's success
	// hook through this variable.
	var svc *catalog.Service

	scheduler, err := autosync.New(autosync.Config{
		Store:     db,
		Primary:   primary,
		Secondary: secondary,
		Debounce:  cfg.Autosync.Debounce,
		Enabled:   cfg.Autosync.Enabled,
		OnEvent:   events,
		Logger:    log.New(logWriter, "[autosync] ", log.LstdFlags),
		OnSuccess: func(ctx context.Context, result *autosync.Result) {
			if svc == nil {
				return
			}
			if n, err := svc.MarkAllSynced(ctx); err != nil {
				logger.Printf("Failed to mark records synced: %v", err)
			} else if n > 0 {
				logger.Printf("Marked %d records synced", n)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	svc, err = catalog.New(catalog.Config{
		Store:     db,
		Primary:   primary,
		Secondary: secondary,
		Notifier:  scheduler,
		OnRecord:  records,
		Logger:    log.New(logWriter, "[catalog] ", log.LstdFlags),
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}

	if dash != nil {
		dash.SetStatusProvider(scheduler)
		if err := dash.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		defer dash.Stop()
	}

	// Pick up deletions that were interrupted before confirmation.
	if primary.Ready() && secondary.Ready() {
		if err := svc.ConfirmPendingDeletions(ctx); err != nil {
			logger.Printf("Pending deletion sweep failed: %v", err)
		}
	}

	watcher, err := config.NewWatcher(configPath, func(cfg *config.Config) {
		scheduler.SetEnabled(cfg.Autosync.Enabled)
		scheduler.SetDebounce(cfg.Autosync.Debounce)
	}, logger)
	if err == nil {
		if err := watcher.Start(); err != nil {
			logger.Printf("Config watch unavailable: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	logger.Printf("studiosync serving (db=%s, autosync=%v)", cfg.Database.Path, cfg.Autosync.Enabled)
	<-ctx.Done()

	logger.Printf("Shutting down")
	scheduler.Shutdown()
	svc.Wait()
	return nil
}
