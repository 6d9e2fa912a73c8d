package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/dexcom-browser-source/api"
	"github.com/ruteri/dexcom-browser-source/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		GracefulShutdownDuration: cCtx.Duration(GracePeriodFlag.Name),
		ReadTimeout:              cCtx.Duration(ReadTimeoutFlag.Name),
		WriteTimeout:             cCtx.Duration(WriteTimeoutFlag.Name),
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address the overlay API listens on",
}

var ConfigFileFlag = &cli.StringFlag{
	Name:     "config",
	Aliases:  []string{"c"},
	Required: true,
	Usage:    "path to the YAML configuration file",
	EnvVars:  []string{"BROWSER_SOURCE_CONFIG"},
}

var WatchConfigFlag = &cli.BoolFlag{
	Name:  "watch-config",
	Value: true,
	Usage: "restart the overlay server when the configuration file changes",
}

var GracePeriodFlag = &cli.DurationFlag{
	Name:  "grace-period",
	Value: api.DefaultGracefulShutdownDuration,
	Usage: "time in-flight requests get to finish when the server stops",
}

var ReadTimeoutFlag = &cli.DurationFlag{
	Name:  "read-timeout",
	Value: 10 * time.Second,
	Usage: "maximum duration for reading an entire request",
}

var WriteTimeoutFlag = &cli.DurationFlag{
	Name:  "write-timeout",
	Value: 30 * time.Second,
	Usage: "maximum duration before timing out writes of a response",
}

var ServerAddrFlag = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "base URL of a running overlay server",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics, empty to disable",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	MetricsAddrFlag,
}
