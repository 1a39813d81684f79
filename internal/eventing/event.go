package eventing

import (
	"time"

	"github.com/google/uuid"
)

// Event types. HubSink uses them as WebSocket channels.
const (
	TypeSubmodelCreated   = "submodel.created"
	TypeSubmodelUpdated   = "submodel.updated"
	TypeSubmodelDeleted   = "submodel.deleted"
	TypeElementCreated    = "element.created"
	TypeElementUpdated    = "element.updated"
	TypeElementDeleted    = "element.deleted"
	TypeElementsPatched   = "elements.patched"
	TypeAttachmentUpdated = "attachment.updated"
	TypeAttachmentDeleted = "attachment.deleted"
)

// Event is the payload delivered to sinks.
//
// Topic is the MQTT topic for the event; it is not part of the JSON
// envelope.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	SubmodelID  string    `json:"submodelId"`
	IDShortPath string    `json:"idShortPath,omitempty"`
	Data        any       `json:"data,omitempty"`

	Topic string `json:"-"`
}

// newEvent stamps an event with a fresh id and the current UTC time.
func newEvent(typ, topic, submodelID, path string, data any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        typ,
		Timestamp:   time.Now().UTC(),
		SubmodelID:  submodelID,
		IDShortPath: path,
		Data:        data,
		Topic:       topic,
	}
}
