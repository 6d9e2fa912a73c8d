package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/dexcom-browser-source/api"
	"github.com/ruteri/dexcom-browser-source/metrics"
	"go.uber.org/atomic"
)

// RouteRegistrar mounts application routes on the server's router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server is the lifecycle controller of the overlay listener. Start, Stop,
// Restart and Reconfigure are serialized; State, Addr and the health
// endpoints read lock-free.
type Server struct {
	cfg     *api.HTTPServerConfig
	log     *slog.Logger
	metrics *metrics.Metrics

	state    atomic.Int32
	addr     atomic.String
	notifier *notifier

	// mu guards everything below and serializes lifecycle operations
	mu         sync.Mutex
	handler    RouteRegistrar
	srv        *http.Server
	done       chan struct{}
	cancelBase context.CancelFunc
}

// New creates a stopped server. Nothing is bound until Start.
func New(cfg *api.HTTPServerConfig, handler RouteRegistrar, m *metrics.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is required")
	}
	if handler == nil {
		return nil, errors.New("route handler is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	srv := &Server{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		notifier: newNotifier(log, m),
		handler:  handler,
	}
	srv.state.Store(int32(StateStopped))
	m.SetServerState(StateStopped.String())
	return srv, nil
}

// State returns the current lifecycle state.
func (srv *Server) State() ServerState {
	return ServerState(srv.state.Load())
}

// Addr returns the bound listener address, or "" unless Running.
func (srv *Server) Addr() string {
	return srv.addr.Load()
}

// Subscribe registers for lifecycle notifications. The channel is buffered;
// a subscriber that does not keep up loses notifications instead of blocking
// the controller. The returned func unsubscribes and closes the channel.
func (srv *Server) Subscribe(buffer int) (<-chan StateChange, func()) {
	return srv.notifier.subscribe(buffer)
}

// Start binds the listener and begins serving in the background. It is a
// no-op returning the current state unless the server is Stopped; while
// another call is starting or stopping the server it returns immediately
// instead of queueing behind it. A bind failure leaves the server Stopped
// and is returned as *BindError.
func (srv *Server) Start() (ServerState, error) {
	if state := srv.State(); state == StateStarting || state == StateStopping {
		return state, nil
	}

	srv.mu.Lock()
	err := srv.start()
	state := srv.State()
	srv.mu.Unlock()

	srv.notifier.flush()
	return state, err
}

// Stop closes the listener, waits up to the grace period for in-flight
// requests, then closes the remaining connections. Stopping a Stopped server
// is a no-op.
func (srv *Server) Stop() ServerState {
	srv.mu.Lock()
	srv.stop()
	state := srv.State()
	srv.mu.Unlock()

	srv.notifier.flush()
	return state
}

// Restart stops and starts again under one lock hold, so the old listener is
// gone before the new one binds and no other lifecycle call can interleave.
func (srv *Server) Restart() (ServerState, error) {
	srv.mu.Lock()
	srv.stop()
	err := srv.start()
	state := srv.State()
	srv.mu.Unlock()

	srv.notifier.flush()
	return state, err
}

// Reconfigure replaces the routed handler. A Running server is restarted to
// pick it up; otherwise the handler is used by the next Start.
func (srv *Server) Reconfigure(handler RouteRegistrar) (ServerState, error) {
	if handler == nil {
		return srv.State(), errors.New("route handler is required")
	}

	srv.mu.Lock()
	srv.handler = handler
	var err error
	if srv.State() == StateRunning {
		srv.log.Info("Reconfiguring HTTP server")
		srv.stop()
		err = srv.start()
	}
	state := srv.State()
	srv.mu.Unlock()

	srv.notifier.flush()
	return state, err
}

func (srv *Server) start() error {
	if srv.State() != StateStopped {
		return nil
	}
	srv.transition(StateStarting, nil)

	ln, err := net.Listen("tcp", srv.cfg.ListenAddr)
	if err != nil {
		bindErr := &BindError{Addr: srv.cfg.ListenAddr, Err: err}
		srv.log.Error("Failed to bind HTTP listener", "err", err, "listenAddress", srv.cfg.ListenAddr)
		srv.transition(StateStopped, bindErr)
		return bindErr
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	httpSrv := &http.Server{
		Handler:      srv.getRouter(srv.handler),
		ReadTimeout:  srv.cfg.ReadTimeout,
		WriteTimeout: srv.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	done := make(chan struct{})

	srv.srv = httpSrv
	srv.done = done
	srv.cancelBase = cancelBase
	srv.addr.Store(ln.Addr().String())

	go func() {
		err := httpSrv.Serve(ln)
		close(done)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.serveFailed(done, err)
		}
	}()

	srv.log.Info("Started HTTP server", "listenAddress", ln.Addr().String())
	srv.transition(StateRunning, nil)
	return nil
}

func (srv *Server) stop() {
	if srv.State() != StateRunning {
		return
	}
	srv.transition(StateStopping, nil)

	ctx, cancel := context.WithTimeout(context.Background(), srv.gracePeriod())
	defer cancel()

	var forced error
	if err := srv.srv.Shutdown(ctx); err != nil {
		forced = err
		srv.log.Warn("Graceful HTTP server shutdown failed, closing connections", "err", err)
		srv.cancelBase()
		if err := srv.srv.Close(); err != nil {
			srv.log.Error("Failed to close HTTP server", "err", err)
		}
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}
	srv.cancelBase()
	<-srv.done

	srv.release()
	srv.transition(StateStopped, forced)
}

// serveFailed handles the accept loop dying on its own while Running.
func (srv *Server) serveFailed(done chan struct{}, err error) {
	srv.mu.Lock()
	if srv.done != done || srv.State() != StateRunning {
		srv.mu.Unlock()
		return
	}
	srv.log.Error("HTTP server failed", "err", err)
	srv.transition(StateStopping, err)
	srv.cancelBase()
	_ = srv.srv.Close()
	srv.release()
	srv.transition(StateStopped, err)
	srv.mu.Unlock()

	srv.notifier.flush()
}

func (srv *Server) release() {
	srv.srv = nil
	srv.done = nil
	srv.cancelBase = nil
	srv.addr.Store("")
}

// transition must be called with mu held.
func (srv *Server) transition(to ServerState, err error) {
	from := ServerState(srv.state.Swap(int32(to)))
	srv.metrics.SetServerState(to.String())
	srv.log.Info("HTTP server state changed", "from", from.String(), "to", to.String())
	srv.notifier.enqueue(StateChange{From: from, To: to, Err: err, At: time.Now()})
}

func (srv *Server) gracePeriod() time.Duration {
	if srv.cfg.GracefulShutdownDuration > 0 {
		return srv.cfg.GracefulShutdownDuration
	}
	return api.DefaultGracefulShutdownDuration
}

func (srv *Server) getRouter(handler RouteRegistrar) http.Handler {
	mux := chi.NewRouter()
	mux.Use(srv.httpLogger)
	mux.Use(middleware.Recoverer)

	// Health and diagnostic endpoints
	mux.Get("/livez", srv.handleLivenessCheck)
	mux.Get("/readyz", srv.handleReadinessCheck)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}

	handler.RegisterRoutes(mux)
	return mux
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if srv.State() != StateRunning {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
