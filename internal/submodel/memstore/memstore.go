// Package memstore is an in-process submodel.Backend.
//
// Documents are held as encoded JSON so callers never share memory with
// the store, and reads go through the same query evaluator the SQL
// backend uses.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-twin-core/internal/pagination"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

type entry struct {
	data     []byte
	semantic string
	version  int64
}

// Backend keeps submodels in a map guarded by a mutex.
type Backend struct {
	mu   sync.RWMutex
	docs map[string]*entry
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{docs: make(map[string]*entry)}
}

// Insert stores sm at version 1.
func (b *Backend) Insert(_ context.Context, sm *submodel.Submodel) error {
	data, err := submodel.Encode(sm)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[sm.ID]; ok {
		return fmt.Errorf("%w: %s", submodel.ErrCollidingIdentifier, sm.ID)
	}
	b.docs[sm.ID] = &entry{data: data, semantic: sm.SemanticIDValue(), version: 1}
	return nil
}

// Load returns a private copy of the stored submodel.
func (b *Backend) Load(_ context.Context, id string) (*submodel.Document, error) {
	b.mu.RLock()
	e, ok := b.docs[id]
	var data []byte
	var version int64
	if ok {
		data, version = e.data, e.version
	}
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, id)
	}
	sm, err := submodel.Decode(data)
	if err != nil {
		return nil, err
	}
	return &submodel.Document{Submodel: sm, Version: version}, nil
}

// CompareAndSwap replaces the document if its version is still expected.
func (b *Backend) CompareAndSwap(_ context.Context, sm *submodel.Submodel, expected int64) error {
	data, err := submodel.Encode(sm)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.docs[sm.ID]
	if !ok {
		return fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, sm.ID)
	}
	if e.version != expected {
		return fmt.Errorf("%w: %s at version %d, expected %d",
			submodel.ErrConcurrentModification, sm.ID, e.version, expected)
	}
	b.docs[sm.ID] = &entry{data: data, semantic: sm.SemanticIDValue(), version: expected + 1}
	return nil
}

// Delete removes the document.
func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[id]; !ok {
		return fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, id)
	}
	delete(b.docs, id)
	return nil
}

// Exists reports whether id is stored.
func (b *Backend) Exists(_ context.Context, id string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.docs[id]
	return ok, nil
}

// ListAfter returns submodels ordered by id.
func (b *Backend) ListAfter(ctx context.Context, semanticID, after string, n int) ([]*submodel.Submodel, error) {
	b.mu.RLock()
	ids := make([]string, 0, len(b.docs))
	for id, e := range b.docs {
		if semanticID != "" && e.semantic != semanticID {
			continue
		}
		ids = append(ids, id)
	}
	ids, _ = pagination.Sorted(ids, func(id string) string { return id })(ctx, after, n) //nolint:errcheck // slice sources never fail
	blobs := make([][]byte, len(ids))
	for i, id := range ids {
		blobs[i] = b.docs[id].data
	}
	b.mu.RUnlock()

	out := make([]*submodel.Submodel, 0, len(blobs))
	for _, data := range blobs {
		sm, err := submodel.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, nil
}

// Aggregate evaluates p over the addressed document.
func (b *Backend) Aggregate(_ context.Context, p query.Pipeline) ([]*submodel.Element, error) {
	b.mu.RLock()
	e, ok := b.docs[p.ContainerID()]
	var data []byte
	if ok {
		data = e.data
	}
	b.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	row, err := submodel.DecodeRow(data)
	if err != nil {
		return nil, err
	}
	rows, err := query.Evaluate([]query.Row{row}, p)
	if err != nil {
		return nil, err
	}
	return submodel.ElementsFromRows(rows)
}

// Len returns the number of stored submodels.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}
