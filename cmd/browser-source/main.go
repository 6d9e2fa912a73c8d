package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/dexcom-browser-source/api/glucose"
	"github.com/ruteri/dexcom-browser-source/cmd/flags"
	"github.com/ruteri/dexcom-browser-source/common"
	"github.com/ruteri/dexcom-browser-source/config"
	"github.com/ruteri/dexcom-browser-source/dexcom"
	"github.com/ruteri/dexcom-browser-source/httpserver"
	"github.com/ruteri/dexcom-browser-source/metrics"
	"github.com/ruteri/dexcom-browser-source/static"
	"github.com/urfave/cli/v2"
)

var cliFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.ConfigFileFlag,
	flags.WatchConfigFlag,
	flags.GracePeriodFlag,
	flags.ReadTimeoutFlag,
	flags.WriteTimeoutFlag,
	flags.LogServiceFlagFn("browser-source"),
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "browser-source",
		Usage:  "Serve Dexcom glucose readings and charts to browser-source overlays",
		Flags:  cliFlags,
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	configPath := cCtx.String(flags.ConfigFileFlag.Name)
	metricsAddr := cCtx.String(flags.MetricsAddrFlag.Name)

	m := metrics.New(common.PackageName)

	load := func() (httpserver.RouteRegistrar, error) {
		handler, err := loadHandler(configPath, m, logger)
		if err != nil {
			return nil, err
		}
		return handler, nil
	}

	handler, err := load()
	if err != nil {
		logger.Error("Failed to load configuration", "err", err, "path", configPath)
		return err
	}

	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger), handler, m)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	if metricsAddr != "" {
		metricsSrv := metrics.NewMetricsServer(m, metricsAddr)
		go func() {
			logger.With("metricsAddress", metricsAddr).Info("Starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(ctx); err != nil {
				logger.Error("Graceful metrics server shutdown failed", "err", err)
			}
		}()
	}

	var changes <-chan struct{}
	if cCtx.Bool(flags.WatchConfigFlag.Name) {
		watcher, err := config.NewWatcher(configPath, config.DefaultDebounce, logger)
		if err != nil {
			logger.Error("Failed to watch configuration file", "err", err, "path", configPath)
			return err
		}
		defer watcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("Config watcher stopped", "err", err)
			}
		}()
		changes = watcher.Changes()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	h := &host{
		log:     logger,
		server:  server,
		signals: signals,
		changes: changes,
		reload:  load,
	}
	return h.run()
}

// loadHandler builds the overlay API from the configuration file. Every call
// produces fresh immutable snapshots; nothing of a previous handler is reused.
func loadHandler(path string, m *metrics.Metrics, logger *slog.Logger) (*glucose.Handler, error) {
	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	renderCfg, err := file.RenderConfig()
	if err != nil {
		return nil, err
	}
	creds, err := file.Credentials()
	if err != nil {
		return nil, err
	}

	gateway, err := dexcom.NewClient(creds, logger, dexcom.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration",
		"path", path,
		"region", string(creds.Region),
		"unit", renderCfg.Unit.String(),
		"windowHours", renderCfg.WindowHours,
	)
	return glucose.NewHandler(gateway, renderCfg, static.FS(), m, logger)
}
