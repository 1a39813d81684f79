package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

type fakeHistory struct {
	samples []influxdb.Sample
	err     error

	gotID, gotPath string
	gotWindow      time.Duration
}

func (f *fakeHistory) History(_ context.Context, id, path string, window time.Duration) ([]influxdb.Sample, error) {
	f.gotID, f.gotPath, f.gotWindow = id, path, window
	return f.samples, f.err
}

// historyRouter seeds the sample submodel on a server reading history
// from h.
func historyRouter(t *testing.T, h HistoryReader) http.Handler {
	t.Helper()
	srv := testServer(t)
	srv.history = h
	router := srv.buildRouter()
	if w := do(t, router, http.MethodPost, "/api/v1/submodels", sampleSubmodel); w.Code != http.StatusCreated {
		t.Fatalf("create submodel status = %d: %s", w.Code, w.Body.String())
	}
	return router
}

func TestElementHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &fakeHistory{samples: []influxdb.Sample{{Time: at, Value: 1}, {Time: at.Add(time.Second), Value: 2}}}
	router := historyRouter(t, h)

	w := do(t, router, http.MethodGet, elementURL("B.L[1]")+"/history?window=15m", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp historyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Path != "B.L[1]" || resp.Window != "15m0s" || len(resp.Samples) != 2 {
		t.Errorf("response = %+v", resp)
	}
	if h.gotID != "urn:sm:1" || h.gotPath != "B.L[1]" || h.gotWindow != 15*time.Minute {
		t.Errorf("reader called with %q %q %v", h.gotID, h.gotPath, h.gotWindow)
	}
}

func TestElementHistory_Errors(t *testing.T) {
	tests := []struct {
		name     string
		reader   HistoryReader
		target   string
		wantCode int
		wantErr  string
	}{
		{"disabled", nil, elementURL("A") + "/history", http.StatusNotFound, ErrCodeNotFound},
		{"bad window", &fakeHistory{}, elementURL("A") + "/history?window=soon", http.StatusBadRequest, ErrCodeBadRequest},
		{"window too large", &fakeHistory{}, elementURL("A") + "/history?window=1000h", http.StatusBadRequest, ErrCodeBadRequest},
		{"missing element", &fakeHistory{}, elementURL("B.X") + "/history", http.StatusNotFound, ErrCodeElementNotFound},
		{"missing submodel", &fakeHistory{},
			"/api/v1/submodels/" + submodel.EncodeIdentifier("nope") + "/submodel-elements/A/history",
			http.StatusNotFound, ErrCodeSubmodelNotFound},
		{"query failed", &fakeHistory{err: fmt.Errorf("%w: boom", influxdb.ErrQueryFailed)},
			elementURL("A") + "/history", http.StatusBadGateway, ErrCodeHistory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := historyRouter(t, tt.reader)
			w := do(t, router, http.MethodGet, tt.target, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if got := decodeError(t, w).Code; got != tt.wantErr {
				t.Errorf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestElementHistory_EmptyIsArray(t *testing.T) {
	router := historyRouter(t, &fakeHistory{})
	w := do(t, router, http.MethodGet, elementURL("A")+"/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(raw["samples"]) != "[]" {
		t.Errorf("samples = %s, want []", raw["samples"])
	}
}
