package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/datallboy/resample/internal/api"
	"github.com/datallboy/resample/internal/app"
	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/commands"
	"github.com/datallboy/resample/internal/engine"
	"github.com/datallboy/resample/internal/events"
	"github.com/datallboy/resample/internal/infra/logger"
	"github.com/datallboy/resample/internal/infra/metrics"
	"github.com/datallboy/resample/internal/media"
	"github.com/datallboy/resample/internal/platform"
	"github.com/datallboy/resample/internal/settings"
	"github.com/datallboy/resample/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend: command bridge, progress events and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	appCtx := app.NewContext(cfg, log)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appCtx.Metrics = metrics.New(promReg)

	jobStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer jobStore.Close()
	appCtx.Store = jobStore

	bus := events.NewBus(cfg.Jobs.EventBuffer)
	appCtx.Events = bus

	mgr := engine.NewManager(appCtx)
	appCtx.Jobs = mgr

	// Missing tools only disable the features that need them
	platform.ValidateDependencies(cfg.Tools, log.Warn)

	downloader := media.NewDownloader(cfg.Tools.YtDlp)
	separator := media.NewSeparator(cfg.Tools.Separator)
	prober := media.NewProber(cfg.Tools.FFprobe)

	defaults := settings.Defaults(cfg.Paths.DefaultDownloadPath(), cfg.Paths.DefaultModelDirectory())
	backend := &commands.Backend{
		Engine:   mgr,
		Settings: settings.NewFileStore(cfg.Paths.AppDataDir, defaults),
		Pipeline: media.NewPipeline(downloader, separator),
		Library:  media.NewLibrary(prober),
		Info:     downloader,
		Prober:   prober,
		Models:   separator,
		Log:      log,
	}

	reg := bridge.NewRegistry()
	reg.OnCall = appCtx.Metrics.BridgeCall
	backend.Register(reg)

	e := echo.New()
	api.RegisterRoutes(e, appCtx, api.Deps{Registry: reg, Bus: bus, Gatherer: promReg})

	// Invocations block for the whole job; a zero write timeout leaves them
	// bounded by jobs.timeout alone
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Resample backend listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		log.Warn("Active job did not stop in time: %v", err)
	}
	// Closing the bus ends open event streams so Shutdown does not wait on them
	bus.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
