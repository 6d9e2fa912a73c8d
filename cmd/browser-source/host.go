package main

import (
	"log/slog"
	"os"
	"syscall"

	"github.com/ruteri/dexcom-browser-source/httpserver"
)

// lifecycleQueueSize bounds lifecycle commands waiting for the worker.
const lifecycleQueueSize = 8

// host is the single-threaded controller driving the overlay server. Its loop
// only receives events and enqueues commands; every lifecycle call runs on
// the worker goroutine, in submission order.
type host struct {
	log    *slog.Logger
	server *httpserver.Server

	signals <-chan os.Signal
	changes <-chan struct{}
	reload  func() (httpserver.RouteRegistrar, error)
}

func (h *host) run() error {
	events, unsubscribe := h.server.Subscribe(0)
	defer unsubscribe()

	cmds := make(chan func(), lifecycleQueueSize)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for cmd := range cmds {
			cmd()
		}
	}()

	shuttingDown := false
	submit := func(name string, cmd func()) {
		if shuttingDown {
			h.log.Warn("Ignoring lifecycle command during shutdown", "command", name)
			return
		}
		select {
		case cmds <- cmd:
		default:
			h.log.Warn("Lifecycle command queue full, dropping command", "command", name)
		}
	}

	submit("start", h.start)

	for {
		select {
		case change, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			h.onStateChange(change)

		case sig := <-h.signals:
			if sig == syscall.SIGHUP {
				h.log.Info("Restart requested", "signal", sig.String())
				submit("restart", h.restart)
				continue
			}
			if shuttingDown {
				continue
			}
			h.log.Info("Shutdown signal received", "signal", sig.String())
			shuttingDown = true
			go func() {
				cmds <- func() { h.server.Stop() }
				close(cmds)
			}()

		case <-h.changes:
			h.log.Info("Configuration file changed")
			submit("reconfigure", h.reconfigure)

		case <-stopped:
			for _, change := range drainEvents(events) {
				h.onStateChange(change)
			}
			h.log.Info("Server shutdown complete")
			return nil
		}
	}
}

func (h *host) start() {
	if _, err := h.server.Start(); err != nil {
		h.log.Error("Failed to start overlay server, send SIGHUP to retry", "err", err)
	}
}

func (h *host) restart() {
	if _, err := h.server.Restart(); err != nil {
		h.log.Error("Failed to restart overlay server", "err", err)
	}
}

func (h *host) reconfigure() {
	handler, err := h.reload()
	if err != nil {
		h.log.Error("Keeping previous configuration", "err", err)
		return
	}
	if _, err := h.server.Reconfigure(handler); err != nil {
		h.log.Error("Failed to restart overlay server with new configuration", "err", err)
	}
}

func (h *host) onStateChange(change httpserver.StateChange) {
	attrs := []any{"from", change.From.String(), "to", change.To.String()}
	if change.To == httpserver.StateRunning {
		attrs = append(attrs, "listenAddress", h.server.Addr())
	}
	if change.Err != nil {
		h.log.Warn("Overlay server state", append(attrs, "err", change.Err)...)
		return
	}
	h.log.Info("Overlay server state", attrs...)
}

func drainEvents(events <-chan httpserver.StateChange) []httpserver.StateChange {
	var changes []httpserver.StateChange
	for {
		select {
		case change, ok := <-events:
			if !ok {
				return changes
			}
			changes = append(changes, change)
		default:
			return changes
		}
	}
}
