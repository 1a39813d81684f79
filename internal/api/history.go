package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/influxdb"
)

const (
	defaultHistoryWindow = time.Hour
	maxHistoryWindow     = 30 * 24 * time.Hour
)

// HistoryReader reads recorded element values. *influxdb.Client
// implements it.
type HistoryReader interface {
	History(ctx context.Context, submodelID, idShortPath string, window time.Duration) ([]influxdb.Sample, error)
}

// historyResponse is the body of the history route.
type historyResponse struct {
	Path    string            `json:"path"`
	Window  string            `json:"window"`
	Samples []influxdb.Sample `json:"samples"`
}

// requireHistory answers 404 on history routes when no recorder is
// configured.
func (s *Server) requireHistory(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			writeNotFound(w, "value history not enabled")
			return
		}
		next(w, r)
	}
}

// handleElementHistory returns recorded values of a Property over the
// window given as a Go duration in ?window= (default 1h).
func (s *Server) handleElementHistory(w http.ResponseWriter, r *http.Request) {
	id, path, ok := s.elementParams(w, r)
	if !ok {
		return
	}

	window := defaultHistoryWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxHistoryWindow {
			writeBadRequest(w, "window must be a positive duration up to 720h")
			return
		}
		window = d
	}

	// The element must exist so a missing path is reported like any
	// other element route.
	if _, err := s.submodels.GetElement(r.Context(), id, path); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	samples, err := s.history.History(r.Context(), id, path.String(), window)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if samples == nil {
		samples = []influxdb.Sample{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Path: path.String(), Window: window.String(), Samples: samples})
}
