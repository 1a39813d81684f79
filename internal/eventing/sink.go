package eventing

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sink receives committed events.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Publisher is the publish side of an MQTT client.
// *mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes events as JSON on their topic.
type MQTTSink struct {
	pub Publisher
	qos byte
}

// NewMQTTSink creates a sink publishing with the given QoS.
func NewMQTTSink(pub Publisher, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, qos: qos}
}

// Emit publishes ev. Events are never retained.
func (s *MQTTSink) Emit(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling event %s: %w", ev.Type, err)
	}
	if err := s.pub.Publish(ev.Topic, payload, s.qos, false); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Topic, err)
	}
	return nil
}

// Broadcaster fans a payload out to subscribers of an event type on a
// submodel. The API's WebSocket hub implements it.
type Broadcaster interface {
	Broadcast(eventType, submodelID string, payload any)
}

// HubSink forwards events to a Broadcaster.
type HubSink struct {
	hub Broadcaster
}

// NewHubSink creates a sink for hub.
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

// Emit broadcasts ev.
func (s *HubSink) Emit(_ context.Context, ev Event) error {
	s.hub.Broadcast(ev.Type, ev.SubmodelID, ev)
	return nil
}
