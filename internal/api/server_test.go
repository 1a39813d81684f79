package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-twin-core/internal/eventing"
	"github.com/nerrad567/gray-twin-core/internal/filerepo"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/database"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-twin-core/internal/shell"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/memstore"
	_ "github.com/nerrad567/gray-twin-core/migrations"
)

// testServer creates a Server over an in-memory submodel repository and
// an in-memory SQLite shell repository. Mutations go through a Notifier
// broadcasting to the server's hub.
func testServer(t *testing.T) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	repo := submodel.NewRepository(memstore.New(), filerepo.NewMemory(), 0)
	notifier := eventing.NewNotifier(repo, "test-repo", eventing.NewHubSink(hub))

	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:        wsCfg,
		Logger:    log,
		Submodels: notifier,
		Shells:    shell.NewSQLiteRepository(db),
		Hub:       hub,
		Stats:     db,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

// do runs one request through the router.
func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeError reads the structured error of a response.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal error body %q: %v", w.Body.String(), err)
	}
	return e
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_Degraded(t *testing.T) {
	srv := testServer(t)
	srv.checks = map[string]HealthChecker{
		"mqtt":     checkFunc(func(context.Context) error { return errors.New("not connected") }),
		"database": checkFunc(func(context.Context) error { return nil }),
	}
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" || resp.Components["mqtt"] != "not connected" || resp.Components["database"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestMetrics(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Runtime.Goroutines == 0 || m.Database == nil {
		t.Errorf("metrics = %+v", m)
	}
}

type fakeEventStats struct{ stats mqtt.Stats }

func (f fakeEventStats) Stats() mqtt.Stats { return f.stats }

func TestMetrics_EventStats(t *testing.T) {
	srv := testServer(t)
	srv.events = fakeEventStats{stats: mqtt.Stats{Published: 7, Failed: 2}}

	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", nil)
	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Events == nil || m.Events.Published != 7 || m.Events.Failed != 2 {
		t.Errorf("events = %+v, want published=7 failed=2", m.Events)
	}
}

func TestMetrics_NoEventStats(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", nil)
	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Events != nil {
		t.Errorf("events = %+v, want omitted", m.Events)
	}
}

func TestServer_Lifecycle(t *testing.T) {
	srv := testServer(t)
	ctx := context.Background()

	if err := srv.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() before Start() = nil")
	}
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if srv.Addr() == "" {
		t.Fatal("Addr() empty after Start()")
	}
	if err := srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	// A second server on the same address fails in Start.
	clash := testServer(t)
	_, port, _ := strings.Cut(srv.Addr(), ":")
	fmt.Sscan(port, &clash.cfg.Port) //nolint:errcheck
	if err := clash.Start(ctx); err == nil {
		clash.Close() //nolint:errcheck
		t.Error("Start() on a bound port = nil")
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := srv.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() after Close() = nil")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv := testServer(t)
	srv.cfg.MaxBodySize = 64
	router := srv.buildRouter()

	big := `{"id":"sm1","idShort":"` + strings.Repeat("x", 200) + `"}`
	w := do(t, router, http.MethodPost, "/api/v1/submodels", big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

// ─── WebSocket Tests ───────────────────────────────────────────────

func TestWebSocket_StreamsRepositoryEvents(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events?channels=" + eventing.TypeSubmodelCreated
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Registration happens in the handler; wait for it before mutating.
	deadline := time.Now().Add(time.Second)
	for srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/api/v1/submodels", "application/json", strings.NewReader(`{"id":"urn:sm:ws"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg struct {
		Type      string         `json:"type"`
		EventType string         `json:"event_type"`
		Payload   eventing.Event `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != eventing.TypeSubmodelCreated {
		t.Errorf("message = %+v", msg)
	}
	if msg.Payload.SubmodelID != "urn:sm:ws" || msg.Payload.ID == "" {
		t.Errorf("payload = %+v", msg.Payload)
	}
}
