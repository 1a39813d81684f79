package submodel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-twin-core/internal/filerepo"
	"github.com/nerrad567/gray-twin-core/internal/pagination"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

// ValueRecorder receives numeric Property values after they are written.
// The InfluxDB client implements it.
type ValueRecorder interface {
	RecordElementValue(submodelID, idShortPath string, value float64)
}

// Repository is the submodel repository: whole-submodel CRUD on top of a
// Backend, element operations through Store, and File attachments in a
// filerepo.Repository.
type Repository struct {
	backend  Backend
	store    *Store
	files    filerepo.Repository
	recorder ValueRecorder
	logger   Logger
}

// NewRepository creates a Repository. files may be nil when attachments
// are not supported; file operations then fail with ErrNotAFile.
func NewRepository(backend Backend, files filerepo.Repository, maxAttempts int) *Repository {
	return &Repository{
		backend: backend,
		store:   NewStore(backend, maxAttempts),
		files:   files,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the repository and its store.
func (r *Repository) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
	r.store.SetLogger(logger)
}

// SetValueRecorder enables value history for numeric Properties.
func (r *Repository) SetValueRecorder(rec ValueRecorder) {
	r.recorder = rec
}

// Store returns the element store.
func (r *Repository) Store() *Store {
	return r.store
}

// --- Submodels ---

// ListSubmodels pages through all submodels ordered by id.
func (r *Repository) ListSubmodels(ctx context.Context, info pagination.Info) (pagination.Result[*Submodel], error) {
	return r.ListSubmodelsBySemanticID(ctx, "", info)
}

// ListSubmodelsBySemanticID pages through submodels whose semantic id has
// the given first key value. An empty semanticID matches all.
func (r *Repository) ListSubmodelsBySemanticID(ctx context.Context, semanticID string, info pagination.Info) (pagination.Result[*Submodel], error) {
	src := func(ctx context.Context, after string, n int) ([]*Submodel, error) {
		return r.backend.ListAfter(ctx, semanticID, after, n)
	}
	return pagination.Paginate(ctx, src, submodelKey, info)
}

func submodelKey(s *Submodel) string { return s.ID }

// GetSubmodel returns the full submodel.
func (r *Repository) GetSubmodel(ctx context.Context, id string) (*Submodel, error) {
	doc, err := r.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.Submodel, nil
}

// GetSubmodelMetadata returns the submodel without its elements.
func (r *Repository) GetSubmodelMetadata(ctx context.Context, id string) (*Submodel, error) {
	sm, err := r.GetSubmodel(ctx, id)
	if err != nil {
		return nil, err
	}
	return sm.Metadata(), nil
}

// GetSubmodelValueOnly returns the value-only view of all elements.
func (r *Repository) GetSubmodelValueOnly(ctx context.Context, id string) (map[string]any, error) {
	sm, err := r.GetSubmodel(ctx, id)
	if err != nil {
		return nil, err
	}
	return SubmodelValueOnly(sm), nil
}

// CreateSubmodel stores a new submodel.
func (r *Repository) CreateSubmodel(ctx context.Context, sm *Submodel) error {
	if strings.TrimSpace(sm.ID) == "" {
		return ErrMissingIdentifier
	}
	if err := r.backend.Insert(ctx, sm); err != nil {
		return err
	}
	r.logger.Info("submodel created", "submodel_id", sm.ID)
	return nil
}

// UpdateSubmodel replaces the submodel stored under id. sm.ID must equal id.
func (r *Repository) UpdateSubmodel(ctx context.Context, id string, sm *Submodel) error {
	if sm.ID != id {
		return fmt.Errorf("%w: body id %q, path id %q", ErrIdentifierMismatch, sm.ID, id)
	}

	var dropped []string
	err := r.store.Mutate(ctx, id, func(current *Submodel) error {
		dropped = r.orphanedAttachments(id, current.SubmodelElements, sm.SubmodelElements)
		*current = *sm.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	r.deleteAttachments(ctx, dropped)
	return nil
}

// DeleteSubmodel removes the submodel and every attachment it owns.
func (r *Repository) DeleteSubmodel(ctx context.Context, id string) error {
	doc, err := r.backend.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, id); err != nil {
		return err
	}
	r.deleteAttachments(ctx, r.attachments(id, doc.Submodel.SubmodelElements))
	r.logger.Info("submodel deleted", "submodel_id", id)
	return nil
}

// --- Elements ---

// ListElements pages through the top-level elements.
func (r *Repository) ListElements(ctx context.Context, id string, info pagination.Info) (pagination.Result[*Element], error) {
	return r.store.List(ctx, id, info)
}

// GetElement returns the element at path.
func (r *Repository) GetElement(ctx context.Context, id string, path idshort.Path) (*Element, error) {
	return r.store.Get(ctx, id, path)
}

// CreateElement adds a top-level element. Its idShort must be unique
// among the top-level elements.
func (r *Repository) CreateElement(ctx context.Context, id string, e *Element) error {
	if e.IDShort == "" {
		return fmt.Errorf("%w: top-level elements need an idShort", ErrInvalidElement)
	}
	if err := r.store.CreateTopLevel(ctx, id, e); err != nil {
		return err
	}
	r.record(id, idshort.Path{idshort.NameSegment(e.IDShort)}, e)
	return nil
}

// CreateNestedElement adds e under the container at parent.
func (r *Repository) CreateNestedElement(ctx context.Context, id string, parent idshort.Path, e *Element) error {
	if err := r.store.CreateNested(ctx, id, parent, e); err != nil {
		return err
	}
	if e.IDShort != "" {
		r.record(id, parent.Child(idshort.NameSegment(e.IDShort)), e)
	}
	return nil
}

// UpdateElement replaces the element at path. A non-empty idShort in e
// must match the last path segment. Replacing a File by another kind
// drops its attachment.
func (r *Repository) UpdateElement(ctx context.Context, id string, path idshort.Path, e *Element) error {
	last := path.Last()
	if !last.IsIndex() && e.IDShort != "" && e.IDShort != last.IDShort {
		return fmt.Errorf("%w: body idShort %q, path %s", ErrIdentifierMismatch, e.IDShort, path)
	}
	if !last.IsIndex() && e.IDShort == "" {
		e.IDShort = last.IDShort
	}

	old, err := r.store.Get(ctx, id, path)
	if err != nil {
		return err
	}
	if err := r.store.Update(ctx, id, path, e); err != nil {
		return err
	}
	r.deleteAttachments(ctx, r.orphanedAttachments(id, []*Element{old}, []*Element{e}))
	r.record(id, path, e)
	return nil
}

// DeleteElement removes the element at path with any attachments below it.
func (r *Repository) DeleteElement(ctx context.Context, id string, path idshort.Path) error {
	old, err := r.store.Get(ctx, id, path)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, id, path); err != nil {
		return err
	}
	r.deleteAttachments(ctx, r.attachments(id, []*Element{old}))
	return nil
}

// PatchElements replaces top-level elements by idShort. Elements without
// a stored counterpart are ignored. Returns the idShorts that were
// replaced.
func (r *Repository) PatchElements(ctx context.Context, id string, elements []*Element) ([]string, error) {
	var replaced []string
	var dropped []string
	err := r.store.Mutate(ctx, id, func(sm *Submodel) error {
		replaced, dropped = replaced[:0], dropped[:0]
		for _, patch := range elements {
			for i, current := range sm.SubmodelElements {
				if current.IDShort != patch.IDShort || patch.IDShort == "" {
					continue
				}
				dropped = append(dropped, r.orphanedAttachments(id, []*Element{current}, []*Element{patch})...)
				sm.SubmodelElements[i] = patch.Clone()
				replaced = append(replaced, patch.IDShort)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.deleteAttachments(ctx, dropped)
	applied := make(map[string]bool, len(replaced))
	for _, name := range replaced {
		applied[name] = true
	}
	for _, e := range elements {
		if applied[e.IDShort] {
			r.record(id, idshort.Path{idshort.NameSegment(e.IDShort)}, e)
		}
	}
	return replaced, nil
}

// GetElementValue returns the value-only view of the element at path.
func (r *Repository) GetElementValue(ctx context.Context, id string, path idshort.Path) (any, error) {
	e, err := r.store.Get(ctx, id, path)
	if err != nil {
		return nil, err
	}
	v, ok := ValueOnly(e)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrValueNotSupported, e.ModelType)
	}
	return v, nil
}

// SetElementValue applies a value-only payload to the element at path.
func (r *Repository) SetElementValue(ctx context.Context, id string, path idshort.Path, raw json.RawMessage) error {
	e, err := r.store.Get(ctx, id, path)
	if err != nil {
		return err
	}
	if err := SetValue(e, raw); err != nil {
		return err
	}
	if err := r.store.Update(ctx, id, path, e); err != nil {
		return err
	}
	r.record(id, path, e)
	return nil
}

// --- Attachments ---

// Key part limits. Longer parts are replaced by a digest so a key stays
// within filerepo.MaxKeyLength.
const (
	maxKeyPathLength = 64
	maxKeyNameLength = 100
	keyDigestLength  = 24
)

// FileKey is the attachment key of a File element: a digest of the
// submodel id, then the path and file name, each digested when long.
func FileKey(submodelID string, path idshort.Path, fileName string) string {
	return attachmentPrefix(submodelID) +
		keyPart(path.String(), maxKeyPathLength) + "-" +
		keyPart(fileName, maxKeyNameLength)
}

func attachmentPrefix(submodelID string) string {
	return digest(submodelID) + "-"
}

func keyPart(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return digest(s)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:keyDigestLength]
}

// GetFile returns the attachment of the File element at path.
func (r *Repository) GetFile(ctx context.Context, id string, path idshort.Path) (filerepo.File, error) {
	e, err := r.fileElement(ctx, id, path)
	if err != nil {
		return filerepo.File{}, err
	}
	if !r.owns(id, e.Value) {
		return filerepo.File{}, fmt.Errorf("%w: no attachment at %s", filerepo.ErrFileNotFound, path)
	}
	return r.files.Get(ctx, e.Value)
}

// SetFile stores an attachment for the File element at path and points
// the element's value at it. An empty contentType keeps the element's.
func (r *Repository) SetFile(ctx context.Context, id string, path idshort.Path, fileName, contentType string, data []byte) error {
	e, err := r.fileElement(ctx, id, path)
	if err != nil {
		return err
	}
	if fileName == "" {
		fileName = path.Last().String()
	}
	if contentType == "" {
		contentType = e.ContentType
	}

	key := FileKey(id, path, fileName)
	if err := r.files.Put(ctx, key, filerepo.File{Name: fileName, ContentType: contentType, Data: data}); err != nil {
		return fmt.Errorf("storing attachment: %w", err)
	}

	previous := e.Value
	e.Value, e.ContentType = key, contentType
	if err := r.store.Update(ctx, id, path, e); err != nil {
		r.deleteAttachments(ctx, []string{key})
		return err
	}
	if previous != key && r.owns(id, previous) {
		r.deleteAttachments(ctx, []string{previous})
	}
	return nil
}

// DeleteFile removes the attachment and clears the element's value.
func (r *Repository) DeleteFile(ctx context.Context, id string, path idshort.Path) error {
	e, err := r.fileElement(ctx, id, path)
	if err != nil {
		return err
	}
	if !r.owns(id, e.Value) {
		return fmt.Errorf("%w: no attachment at %s", filerepo.ErrFileNotFound, path)
	}
	if err := r.files.Delete(ctx, e.Value); err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	e.Value, e.ContentType = "", ""
	return r.store.Update(ctx, id, path, e)
}

func (r *Repository) fileElement(ctx context.Context, id string, path idshort.Path) (*Element, error) {
	e, err := r.store.Get(ctx, id, path)
	if err != nil {
		return nil, err
	}
	if e.ModelType != KindFile || r.files == nil {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotAFile, path, e.ModelType)
	}
	return e, nil
}

// owns reports whether value is an attachment key of submodel id.
func (r *Repository) owns(id, value string) bool {
	return r.files != nil && strings.HasPrefix(value, attachmentPrefix(id))
}

// attachments collects the attachment keys held by File elements in the
// given trees.
func (r *Repository) attachments(id string, elements []*Element) []string {
	var keys []string
	walk(elements, nil, func(_ idshort.Path, e *Element) {
		if e.ModelType == KindFile && r.owns(id, e.Value) {
			keys = append(keys, e.Value)
		}
	})
	return keys
}

// orphanedAttachments returns keys held in before but no longer in after.
func (r *Repository) orphanedAttachments(id string, before, after []*Element) []string {
	kept := make(map[string]bool)
	for _, k := range r.attachments(id, after) {
		kept[k] = true
	}
	var out []string
	for _, k := range r.attachments(id, before) {
		if !kept[k] {
			out = append(out, k)
		}
	}
	return out
}

// deleteAttachments runs after the document write has committed, so
// failures are logged rather than returned.
func (r *Repository) deleteAttachments(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := r.files.Delete(ctx, k); err != nil {
			r.logger.Warn("failed to delete attachment", "key", k, "error", err)
		}
	}
}

func (r *Repository) record(id string, path idshort.Path, e *Element) {
	if r.recorder == nil {
		return
	}
	if v, ok := e.NumericValue(); ok {
		r.recorder.RecordElementValue(id, path.String(), v)
	}
}
