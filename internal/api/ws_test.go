package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-twin-core/internal/eventing"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// registered returns a connectionless client subscribed to channels on
// submodels.
func registered(t *testing.T, hub *Hub, channels []string, submodels ...string) *WSClient {
	t.Helper()
	c := newWSClient(hub, nil)
	c.subscribe(channels, submodels)
	hub.Register(c)
	return c
}

func received(c *WSClient) bool {
	select {
	case <-c.send:
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

func TestChannelMatches(t *testing.T) {
	tests := []struct {
		pattern, eventType string
		want               bool
	}{
		{"*", eventing.TypeSubmodelCreated, true},
		{eventing.TypeElementUpdated, eventing.TypeElementUpdated, true},
		{eventing.TypeElementUpdated, eventing.TypeElementDeleted, false},
		{"element.*", eventing.TypeElementDeleted, true},
		{"element.*", eventing.TypeElementsPatched, false},
		{"submodel.*", eventing.TypeElementCreated, false},
		{"element", eventing.TypeElementCreated, false},
	}
	for _, tt := range tests {
		if got := channelMatches(tt.pattern, tt.eventType); got != tt.want {
			t.Errorf("channelMatches(%q, %q) = %v, want %v", tt.pattern, tt.eventType, got, tt.want)
		}
	}
}

func TestHub_Routing(t *testing.T) {
	tests := []struct {
		name      string
		channels  []string
		submodels []string
		eventType string
		submodel  string
		want      bool
	}{
		{"exact type", []string{eventing.TypeElementUpdated}, nil, eventing.TypeElementUpdated, "urn:a", true},
		{"other type", []string{eventing.TypeSubmodelDeleted}, nil, eventing.TypeElementUpdated, "urn:a", false},
		{"wildcard", []string{WSChannelAll}, nil, eventing.TypeSubmodelCreated, "urn:a", true},
		{"family", []string{"attachment.*"}, nil, eventing.TypeAttachmentDeleted, "urn:a", true},
		{"submodel match", []string{WSChannelAll}, []string{"urn:a"}, eventing.TypeElementCreated, "urn:a", true},
		{"submodel mismatch", []string{WSChannelAll}, []string{"urn:a"}, eventing.TypeElementCreated, "urn:b", false},
		{"no channels", nil, []string{"urn:a"}, eventing.TypeElementCreated, "urn:a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newTestHub(t)
			c := registered(t, hub, tt.channels, tt.submodels...)

			hub.Broadcast(tt.eventType, tt.submodel, map[string]any{"idShortPath": "A"})
			if got := received(c); got != tt.want {
				t.Errorf("received = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHub_BroadcastEnvelope(t *testing.T) {
	hub := newTestHub(t)
	c := registered(t, hub, []string{WSChannelAll})

	hub.Broadcast(eventing.TypeElementUpdated, "urn:a", map[string]any{"idShortPath": "A"})

	var msg WSMessage
	if err := json.Unmarshal(<-c.send, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != eventing.TypeElementUpdated || msg.Timestamp == "" {
		t.Errorf("message = %+v", msg)
	}
	if hub.Delivered() != 1 {
		t.Errorf("Delivered() = %d, want 1", hub.Delivered())
	}
}

func TestHub_DropsWhenFull(t *testing.T) {
	hub := newTestHub(t)
	c := registered(t, hub, []string{WSChannelAll})

	for i := 0; i < wsSendBufferSize+3; i++ {
		hub.Broadcast(eventing.TypeElementUpdated, "urn:a", nil)
	}
	if hub.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", hub.Dropped())
	}
	if len(c.send) != wsSendBufferSize {
		t.Errorf("queued = %d, want %d", len(c.send), wsSendBufferSize)
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub(t)
	c := registered(t, hub, []string{WSChannelAll})
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send queue still open after Unregister")
	}

	// Broadcasting to nobody must not panic on the closed client.
	hub.Broadcast(eventing.TypeElementUpdated, "urn:a", nil)
}

func TestWSClient_SubscribeMessages(t *testing.T) {
	hub := newTestHub(t)
	c := newWSClient(hub, nil)
	encoded := submodel.EncodeIdentifier("urn:a")

	c.handleMessage([]byte(`{"type":"subscribe","id":"1","payload":{"channels":["element.*","submodel.created"],"submodels":["` + encoded + `"]}}`))
	var resp struct {
		Type    string             `json:"type"`
		ID      string             `json:"id"`
		Payload WSSubscribePayload `json:"payload"`
	}
	if err := json.Unmarshal(<-c.send, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := WSSubscribePayload{Channels: []string{"element.*", "submodel.created"}, Submodels: []string{encoded}}
	if resp.Type != WSTypeResponse || resp.ID != "1" || !reflect.DeepEqual(resp.Payload, want) {
		t.Errorf("subscribe response = %+v", resp)
	}
	if !c.wants(eventing.TypeElementDeleted, "urn:a") || c.wants(eventing.TypeElementDeleted, "urn:b") {
		t.Error("subscription not applied")
	}

	c.handleMessage([]byte(`{"type":"unsubscribe","id":"2","payload":{"channels":["element.*"]}}`))
	<-c.send
	if c.wants(eventing.TypeElementDeleted, "urn:a") {
		t.Error("unsubscribe not applied")
	}
}

func TestWSClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name, frame, wantType string
	}{
		{"ping", `{"type":"ping","id":"p"}`, WSTypePong},
		{"invalid json", `{`, WSTypeError},
		{"unknown type", `{"type":"shout"}`, WSTypeError},
		{"bad submodel", `{"type":"subscribe","payload":{"channels":["*"],"submodels":["***"]}}`, WSTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newWSClient(newTestHub(t), nil)
			c.handleMessage([]byte(tt.frame))
			var msg WSMessage
			if err := json.Unmarshal(<-c.send, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("type = %q, want %q", msg.Type, tt.wantType)
			}
		})
	}
}

func TestWebSocket_RejectsBadSubmodelFilter(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/events?submodels=***", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebSocket_SubmodelFilter(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events?channels=submodel.*&submodels=" +
		submodel.EncodeIdentifier("urn:sm:wanted")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	for _, id := range []string{"urn:sm:other", "urn:sm:wanted"} {
		resp, err := http.Post(ts.URL+"/api/v1/submodels", "application/json", strings.NewReader(`{"id":"`+id+`"}`))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var msg struct {
		Payload eventing.Event `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Payload.SubmodelID != "urn:sm:wanted" {
		t.Errorf("first event for %q, want urn:sm:wanted", msg.Payload.SubmodelID)
	}
}
