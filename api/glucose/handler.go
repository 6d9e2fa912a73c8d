package glucose

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/dexcom-browser-source/api"
	"github.com/ruteri/dexcom-browser-source/interfaces"
	"github.com/ruteri/dexcom-browser-source/metrics"
	"github.com/ruteri/dexcom-browser-source/render"
)

// Handler serves the overlay API on top of a glucose gateway.
type Handler struct {
	gateway interfaces.GlucoseGateway
	cfg     interfaces.RenderConfig
	assets  fs.FS
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHandler creates the overlay API handler.
//
// Parameters:
//   - gateway: Source of readings, called once per request
//   - cfg: Render configuration snapshot, validated here and never modified
//   - assets: Static overlay pages with glucose/ and chart/ directories (may be nil)
//   - m: Metrics sink (may be nil)
//   - log: Structured logger for operational insights
func NewHandler(gateway interfaces.GlucoseGateway, cfg interfaces.RenderConfig, assets fs.FS, m *metrics.Metrics, log *slog.Logger) (*Handler, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render config: %w", err)
	}
	return &Handler{
		gateway: gateway,
		cfg:     cfg,
		assets:  assets,
		metrics: m,
		log:     log,
	}, nil
}

// HandleCurrent writes the current reading in the configured unit.
//
// URL format: GET /api/current
func (h *Handler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	reading, ok := h.currentReading(w, r)
	if !ok {
		return
	}
	writeText(w, http.StatusOK, reading.Format(h.cfg.Unit))
}

// HandleCurrentInUnit writes the current reading in the unit named by the path.
//
// URL format: GET /api/current/{unit}
func (h *Handler) HandleCurrentInUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := interfaces.ParseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		h.log.Debug("Invalid unit", "err", err)
		http.Error(w, "Invalid unit", http.StatusBadRequest)
		return
	}

	reading, ok := h.currentReading(w, r)
	if !ok {
		return
	}
	writeText(w, http.StatusOK, reading.Format(unit))
}

// HandleTrend writes the trend arrow of the current reading.
//
// URL format: GET /api/current/trend
func (h *Handler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	reading, ok := h.currentReading(w, r)
	if !ok {
		return
	}
	w.Header().Set(api.TrendHeader, reading.Trend().String())
	writeText(w, http.StatusOK, reading.TrendArrow())
}

// HandleLast writes an HTML table of the readings of the last hours.
//
// URL format: GET /api/last/{hours}
func (h *Handler) HandleLast(w http.ResponseWriter, r *http.Request) {
	hours, series, ok := h.lastReadings(w, r)
	if !ok {
		return
	}

	page, err := renderTable(series, h.cfg.Unit, hours)
	if err != nil {
		h.log.Error("Failed to render readings table", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", api.ContentTypeHTML)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		h.log.Debug("Failed to write response", "err", err)
	}
}

// HandleGraph writes a PNG chart of the readings of the last hours.
//
// URL format: GET /api/last/{hours}/graph
func (h *Handler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	hours, series, ok := h.lastReadings(w, r)
	if !ok {
		return
	}

	// per-request copy; the shared snapshot stays untouched
	cfg := h.cfg
	cfg.WindowHours = hours

	start := time.Now()
	img, err := render.Render(series, cfg)
	h.metrics.ObserveRender(time.Since(start))
	if err != nil {
		h.log.Error("Failed to render chart", "err", err, "readings", len(series))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", api.ContentTypePNG)
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.log.Debug("Failed to write response", "err", err)
	}
}

// handleForbidden answers every unmatched /api request.
func (h *Handler) handleForbidden(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusForbidden)
}

func (h *Handler) currentReading(w http.ResponseWriter, r *http.Request) (*interfaces.GlucoseReading, bool) {
	reading, err := h.gateway.CurrentReading(r.Context())
	if err != nil {
		h.writeGatewayError(w, err)
		return nil, false
	}
	if reading == nil {
		writeText(w, http.StatusNotFound, api.NoReading)
		return nil, false
	}
	return reading, true
}

func (h *Handler) lastReadings(w http.ResponseWriter, r *http.Request) (int, interfaces.ReadingSeries, bool) {
	hours, err := h.hoursParam(r)
	if err != nil {
		h.log.Debug("Invalid hours", "err", err)
		http.Error(w, "Invalid hours", http.StatusBadRequest)
		return 0, nil, false
	}

	series, err := h.gateway.ReadingsSince(r.Context(), hours*60)
	if err != nil {
		h.writeGatewayError(w, err)
		return 0, nil, false
	}
	return hours, series, true
}

// hoursParam reads {hours}, defaulting to the configured window.
func (h *Handler) hoursParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "hours")
	if raw == "" {
		return h.cfg.WindowHours, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("hours %q is not a number", raw)
	}
	if hours < 1 || hours > interfaces.MaxWindowHours {
		return 0, fmt.Errorf("hours must be between 1 and %d, got %d", interfaces.MaxWindowHours, hours)
	}
	return hours, nil
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	status := gatewayStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Gateway call failed", "err", err)
	} else {
		h.log.Warn("Gateway call failed", "err", err, "status", status)
	}
	http.Error(w, http.StatusText(status), status)
}

// gatewayStatus maps the gateway failure taxonomy onto HTTP statuses.
func gatewayStatus(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrAuthentication):
		return http.StatusBadGateway
	case errors.Is(err, interfaces.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", api.ContentTypeText)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
