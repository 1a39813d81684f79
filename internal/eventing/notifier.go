package eventing

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// Logger is the logging interface used by the notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Notifier is a submodel.Repository that emits an Event after each
// successful mutation. Read operations are inherited unchanged.
//
// Thread Safety:
//   - Safe for concurrent use if the configured sinks are.
type Notifier struct {
	*submodel.Repository

	topics mqtt.Topics
	sinks  []Sink
	logger Logger
}

// NewNotifier wraps repo. Topics are built for repositoryID.
func NewNotifier(repo *submodel.Repository, repositoryID string, sinks ...Sink) *Notifier {
	return &Notifier{
		Repository: repo,
		topics:     mqtt.Topics{RepositoryID: repositoryID},
		sinks:      sinks,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger used for sink failures.
func (n *Notifier) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	n.logger = logger
}

// AddSink registers an additional sink. Not safe to call while
// mutations are in flight.
func (n *Notifier) AddSink(s Sink) {
	n.sinks = append(n.sinks, s)
}

// CreateSubmodel creates sm and emits submodel.created.
func (n *Notifier) CreateSubmodel(ctx context.Context, sm *submodel.Submodel) error {
	if err := n.Repository.CreateSubmodel(ctx, sm); err != nil {
		return err
	}
	n.emit(ctx, newEvent(TypeSubmodelCreated, n.topics.SubmodelCreated(), sm.ID, "", sm))
	return nil
}

// UpdateSubmodel replaces the submodel and emits submodel.updated.
func (n *Notifier) UpdateSubmodel(ctx context.Context, id string, sm *submodel.Submodel) error {
	if err := n.Repository.UpdateSubmodel(ctx, id, sm); err != nil {
		return err
	}
	n.emit(ctx, newEvent(TypeSubmodelUpdated, n.topics.SubmodelUpdated(), id, "", sm))
	return nil
}

// DeleteSubmodel deletes the submodel and emits submodel.deleted.
func (n *Notifier) DeleteSubmodel(ctx context.Context, id string) error {
	if err := n.Repository.DeleteSubmodel(ctx, id); err != nil {
		return err
	}
	n.emit(ctx, newEvent(TypeSubmodelDeleted, n.topics.SubmodelDeleted(), id, "", nil))
	return nil
}

// CreateElement adds a top-level element and emits element.created.
func (n *Notifier) CreateElement(ctx context.Context, id string, e *submodel.Element) error {
	if err := n.Repository.CreateElement(ctx, id, e); err != nil {
		return err
	}
	n.elementEvent(ctx, TypeElementCreated, mqtt.ActionCreated, id, idshort.Path{idshort.NameSegment(e.IDShort)}, e)
	return nil
}

// CreateNestedElement adds e below parent and emits element.created.
// Unnamed list items are reported on the parent path.
func (n *Notifier) CreateNestedElement(ctx context.Context, id string, parent idshort.Path, e *submodel.Element) error {
	if err := n.Repository.CreateNestedElement(ctx, id, parent, e); err != nil {
		return err
	}
	path := parent
	if e.IDShort != "" {
		path = parent.Child(idshort.NameSegment(e.IDShort))
	}
	n.elementEvent(ctx, TypeElementCreated, mqtt.ActionCreated, id, path, e)
	return nil
}

// UpdateElement replaces the element at path and emits element.updated.
func (n *Notifier) UpdateElement(ctx context.Context, id string, path idshort.Path, e *submodel.Element) error {
	if err := n.Repository.UpdateElement(ctx, id, path, e); err != nil {
		return err
	}
	n.elementEvent(ctx, TypeElementUpdated, mqtt.ActionUpdated, id, path, e)
	return nil
}

// DeleteElement removes the element at path and emits element.deleted.
func (n *Notifier) DeleteElement(ctx context.Context, id string, path idshort.Path) error {
	if err := n.Repository.DeleteElement(ctx, id, path); err != nil {
		return err
	}
	n.elementEvent(ctx, TypeElementDeleted, mqtt.ActionDeleted, id, path, nil)
	return nil
}

// PatchElements replaces top-level elements and emits elements.patched
// listing the replaced idShorts. Nothing is emitted when no element
// matched.
func (n *Notifier) PatchElements(ctx context.Context, id string, elements []*submodel.Element) ([]string, error) {
	replaced, err := n.Repository.PatchElements(ctx, id, elements)
	if err != nil {
		return nil, err
	}
	if len(replaced) > 0 {
		topic := n.topics.ElementsPatched(submodel.EncodeIdentifier(id))
		n.emit(ctx, newEvent(TypeElementsPatched, topic, id, "", replaced))
	}
	return replaced, nil
}

// SetElementValue applies a value-only payload and emits element.updated
// carrying the new value.
func (n *Notifier) SetElementValue(ctx context.Context, id string, path idshort.Path, raw json.RawMessage) error {
	if err := n.Repository.SetElementValue(ctx, id, path, raw); err != nil {
		return err
	}
	n.elementEvent(ctx, TypeElementUpdated, mqtt.ActionUpdated, id, path, raw)
	return nil
}

// SetFile stores an attachment and emits attachment.updated.
func (n *Notifier) SetFile(ctx context.Context, id string, path idshort.Path, fileName, contentType string, data []byte) error {
	if err := n.Repository.SetFile(ctx, id, path, fileName, contentType, data); err != nil {
		return err
	}
	meta := map[string]any{"fileName": fileName, "contentType": contentType, "size": len(data)}
	topic := n.topics.Attachment(submodel.EncodeIdentifier(id), path.String(), mqtt.ActionUpdated)
	n.emit(ctx, newEvent(TypeAttachmentUpdated, topic, id, path.String(), meta))
	return nil
}

// DeleteFile removes an attachment and emits attachment.deleted.
func (n *Notifier) DeleteFile(ctx context.Context, id string, path idshort.Path) error {
	if err := n.Repository.DeleteFile(ctx, id, path); err != nil {
		return err
	}
	topic := n.topics.Attachment(submodel.EncodeIdentifier(id), path.String(), mqtt.ActionDeleted)
	n.emit(ctx, newEvent(TypeAttachmentDeleted, topic, id, path.String(), nil))
	return nil
}

func (n *Notifier) elementEvent(ctx context.Context, typ, action, id string, path idshort.Path, data any) {
	topic := n.topics.Element(submodel.EncodeIdentifier(id), path.String(), action)
	n.emit(ctx, newEvent(typ, topic, id, path.String(), data))
}

// emit hands ev to every sink. Failures are logged and skipped.
func (n *Notifier) emit(ctx context.Context, ev Event) {
	for _, s := range n.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			n.logger.Warn("event delivery failed", "type", ev.Type, "topic", ev.Topic, "error", err)
		}
	}
	n.logger.Debug("event emitted", "type", ev.Type, "submodel_id", ev.SubmodelID, "path", ev.IDShortPath)
}
