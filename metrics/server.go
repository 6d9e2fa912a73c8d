package metrics

import (
	"context"
	"net/http"
	"time"
)

// MetricsServer serves /metrics on its own listener, independent of the
// overlay listener lifecycle.
type MetricsServer struct {
	srv *http.Server
}

func NewMetricsServer(m *Metrics, addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
