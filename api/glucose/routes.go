package glucose

import (
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type route struct {
	method  string
	pattern string
	handle  func(*Handler, http.ResponseWriter, *http.Request)
}

// routes is the fixed API route table. Static segments win over {params} in
// chi, so /api/current/trend and /api/last/graph never reach the param routes.
var routes = []route{
	{http.MethodGet, "/api/current", (*Handler).HandleCurrent},
	{http.MethodGet, "/api/current/trend", (*Handler).HandleTrend},
	{http.MethodGet, "/api/current/{unit}", (*Handler).HandleCurrentInUnit},
	{http.MethodGet, "/api/last", (*Handler).HandleLast},
	{http.MethodGet, "/api/last/graph", (*Handler).HandleGraph},
	{http.MethodGet, "/api/last/{hours}", (*Handler).HandleLast},
	{http.MethodGet, "/api/last/{hours}/graph", (*Handler).HandleGraph},
}

// staticPrefixes are served from the matching directory of the assets FS.
var staticPrefixes = []string{"glucose", "chart"}

// RegisterRoutes mounts the API route table, the /api fallback and the static
// overlay pages on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(overlayHeaders)
		for _, rt := range routes {
			r.Method(rt.method, rt.pattern, h.instrument(rt))
		}
		r.Handle("/api/*", http.HandlerFunc(h.handleForbidden))
	})

	r.NotFound(h.handleUnmatched(http.StatusNotFound))
	r.MethodNotAllowed(h.handleUnmatched(http.StatusMethodNotAllowed))

	if h.assets == nil {
		return
	}
	for _, prefix := range staticPrefixes {
		sub, err := fs.Sub(h.assets, prefix)
		if err != nil {
			h.log.Error("Static assets unavailable", "err", err, "prefix", prefix)
			continue
		}
		r.Get("/"+prefix, http.RedirectHandler("/"+prefix+"/", http.StatusMovedPermanently).ServeHTTP)
		r.Get("/"+prefix+"/*", http.StripPrefix("/"+prefix, http.FileServerFS(sub)).ServeHTTP)
	}
}

// handleUnmatched keeps the /api namespace closed: anything there that no
// route accepts is forbidden rather than not found.
func (h *Handler) handleUnmatched(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			h.handleForbidden(w, r)
			return
		}
		http.Error(w, http.StatusText(status), status)
	}
}

// instrument records every API request by route and status. A panicking
// handler is counted as a 500 before the panic continues to the server's
// recoverer.
func (h *Handler) instrument(rt route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			if rec := recover(); rec != nil {
				if rec != http.ErrAbortHandler {
					h.metrics.HandlerPanicked()
				}
				h.metrics.ObserveRequest(rt.pattern, http.StatusInternalServerError, time.Since(start))
				panic(rec)
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			h.metrics.ObserveRequest(rt.pattern, status, time.Since(start))
		}()
		rt.handle(h, ww, r)
	})
}

func overlayHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
