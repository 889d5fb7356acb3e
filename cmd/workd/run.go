package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jzelinskie/cobrautil/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	v1 "github.com/kubev2v/workmanager/api/v1"
	"github.com/kubev2v/workmanager/internal/config"
	"github.com/kubev2v/workmanager/internal/handlers"
	"github.com/kubev2v/workmanager/internal/metrics"
	"github.com/kubev2v/workmanager/internal/server"
	"github.com/kubev2v/workmanager/internal/services"
	"github.com/kubev2v/workmanager/internal/store"
	"github.com/kubev2v/workmanager/internal/store/migrations"
	"github.com/kubev2v/workmanager/pkg/scheduler"
	"github.com/kubev2v/workmanager/pkg/works"
)

// flag name -> configuration key
var runFlagKeys = map[string]string{
	"server-mode":       "server.serverMode",
	"http-port":         "server.httpPort",
	"default-queue":     "engine.defaultQueue",
	"priority-ordering": "engine.priorityOrdering",
	"shutdown-timeout":  "engine.shutdownTimeout",
	"data-folder":       "store.dataFolder",
	"history-retention": "store.historyRetention",
	"log-format":        "logFormat",
	"log-level":         "logLevel",
}

func newRunCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the work manager daemon",
		PreRunE: cobrautil.SyncViperPreRunE(config.EnvPrefix),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindChangedFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML configuration file")
	flags.String("server-mode", "dev", "server mode: dev or prod")
	flags.Int("http-port", 8000, "HTTP API port")
	flags.String("default-queue", scheduler.DefaultQueueID, "queue of items whose category is not mapped")
	flags.Bool("priority-ordering", false, "order scheduled items by priority key")
	flags.Duration("shutdown-timeout", 30*time.Second, "time given to running work on shutdown")
	flags.String("data-folder", "", "folder of the history database, in memory when empty")
	flags.Duration("history-retention", 7*24*time.Hour, "age after which history records are deleted")
	flags.String("log-format", "console", "log format: console or json")
	flags.String("log-level", "debug", "log level")

	return cmd
}

// bindChangedFlags binds the flags set on the command line or by the env
// sync so that unset flags do not shadow the configuration file.
func bindChangedFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := runFlagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

func newLogger(format, level string) (*zap.Logger, error) {
	var zc zap.Config
	if format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc.Level = lvl
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Configuration) error {
	logger, err := newLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	log := zap.S().Named("workd")
	log.Infow("starting workd", "configuration", cfg.DebugMap())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath, err := store.DBPath(cfg.Store.DataFolder)
	if err != nil {
		return err
	}
	db, err := store.NewDB(dbPath)
	if err != nil {
		return err
	}
	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	st := store.NewStore(db)
	defer func() { _ = st.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder := services.NewHistoryRecorder(st.History(),
		services.WithRetention(cfg.Store.HistoryRetention, cfg.Store.PruneInterval),
	)

	var backendOpts []scheduler.MemoryBackendOption
	if cfg.Engine.PriorityOrdering {
		backendOpts = append(backendOpts, scheduler.WithPriorityOrdering())
	}
	engine, err := scheduler.NewEngine(cfg.Engine.SchedulerConfig(),
		scheduler.WithBackend(scheduler.NewMemoryBackend(backendOpts...)),
		scheduler.WithTransactionManager(st.Tx()),
		scheduler.WithMetrics(metrics.NewPrometheus(reg)),
		scheduler.WithListener(recorder),
	)
	if err != nil {
		return err
	}
	reg.MustRegister(metrics.NewQueueCollector(engine))

	// the recorder must outlive the signal to save what shutdown cancels
	recorder.Start(context.WithoutCancel(ctx))
	defer recorder.Stop()

	if err := engine.Start(ctx); err != nil {
		return err
	}

	workSrv := services.NewWorkService(engine, works.DefaultRegistry(), st)
	if err := workSrv.RestoreQueueSettings(ctx); err != nil {
		log.Errorw("failed to restore queue settings", "error", err)
	}

	srv, err := server.NewServer(cfg,
		func(router *gin.RouterGroup) {
			v1.RegisterHandlers(router, handlers.New(workSrv))
		},
		server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		server.WithHealthCheck(func() error {
			if !engine.Started() {
				return scheduler.ErrNotStarted
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err = <-serverErr:
		if err != nil {
			log.Errorw("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout+5*time.Second)
	defer cancel()

	if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
		log.Errorw("failed to stop server", "error", stopErr)
	}

	clean, shutdownErr := engine.Shutdown(shutdownCtx, cfg.Engine.ShutdownTimeout)
	if !clean {
		log.Warnw("some work did not finish before the shutdown timeout", "timeout", cfg.Engine.ShutdownTimeout)
	}
	if dropped := recorder.Dropped(); dropped > 0 {
		log.Warnw("history records dropped", "count", dropped)
	}

	return errors.Join(err, shutdownErr)
}
