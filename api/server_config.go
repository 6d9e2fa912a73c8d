package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig contains all configuration parameters for the overlay HTTP listener.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr string

	// EnablePprof enables the pprof debugging API when true.
	EnablePprof bool

	// Log is the structured logger for server operations.
	Log *slog.Logger

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// requests to complete during stop before connections are closed forcibly.
	GracefulShutdownDuration time.Duration

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. Chart rendering and provider calls happen within it.
	WriteTimeout time.Duration
}

// DefaultGracefulShutdownDuration is used when the config leaves it unset.
const DefaultGracefulShutdownDuration = 5 * time.Second
