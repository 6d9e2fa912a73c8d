/*
Package httpserver owns the overlay listener and its lifecycle.

# State machine

	Stopped ──Start──▶ Starting ──bound──▶ Running ──Stop──▶ Stopping ──▶ Stopped
	                      │
	                      └──bind failure (BindError)──▶ Stopped

Start is a no-op unless Stopped, Stop is a no-op unless Running. Restart and
Reconfigure hold the lifecycle lock across stop and start, so the previous
listener has released its port before the next one binds.

# Notifications

Subscribe returns a buffered channel receiving every transition in order.
Transitions are queued while the lifecycle lock is held and delivered after it
is released; a full subscriber channel drops the notification (logged and
counted) instead of blocking the controller.

# Shutdown

Stop closes the listener, then gives in-flight requests
GracefulShutdownDuration to finish. Past that the per-listener base context is
cancelled and remaining connections are closed; the Stopping→Stopped
notification carries the shutdown error in that case.

# Endpoints

Besides the routes of the configured RouteRegistrar:

  - GET /livez - Liveness check
  - GET /readyz - Readiness check, 200 only while Running
  - /debug/pprof - when EnablePprof is set

Every request goes through the slog request logger and chi's Recoverer,
which answers 500 and keeps the accept loop alive.

# Example Usage

	srv, err := httpserver.New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:8080",
		GracefulShutdownDuration: 3 * time.Second,
		Log:                      logger,
	}, handler, m)
	if err != nil {
		return err
	}

	events, unsubscribe := srv.Subscribe(0)
	defer unsubscribe()

	if _, err := srv.Start(); err != nil {
		var bindErr *httpserver.BindError
		if errors.As(err, &bindErr) {
			// port in use, let the user pick another one
		}
	}
*/
package httpserver
