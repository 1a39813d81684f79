package submodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-twin-core/internal/pagination"
	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

// DefaultMaxAttempts bounds optimistic read-modify-write retries.
const DefaultMaxAttempts = 5

// Logger is the logging surface used by this package.
// Compatible with *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store executes compiled element operations against a Backend.
//
// It owns the distinction between a missing submodel and a missing
// element: every operation on an absent submodel fails with
// ErrSubmodelNotFound whatever the path, and ErrElementNotFound is only
// returned when the submodel exists.
//
// Thread Safety:
//   - Store holds no mutable state; concurrent writers are serialised by
//     the backend's version check.
type Store struct {
	backend     Backend
	maxAttempts int
	logger      Logger
}

// NewStore creates a Store over backend. maxAttempts <= 0 uses
// DefaultMaxAttempts.
func NewStore(backend Backend, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{backend: backend, maxAttempts: maxAttempts, logger: noopLogger{}}
}

// SetLogger sets a logger for retry diagnostics.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Get returns the element at path inside submodel id.
func (s *Store) Get(ctx context.Context, id string, path idshort.Path) (*Element, error) {
	compiled := query.Compile(id, path)

	rows, err := s.backend.Aggregate(ctx, compiled.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("reading %s in %s: %w", path, id, err)
	}
	if len(rows) == 0 {
		return nil, s.absence(ctx, id, path)
	}
	return rows[0], nil
}

// CreateTopLevel appends e to the top-level elements of submodel id.
// Fails with ErrCollidingElement if a top-level element already has e's
// idShort; the check and the append are one atomic write.
func (s *Store) CreateTopLevel(ctx context.Context, id string, e *Element) error {
	if w, ok := s.backend.(TopLevelWriter); ok {
		matched, err := w.Append(ctx, id, e)
		if err != nil {
			return fmt.Errorf("appending %s to %s: %w", e.IDShort, id, err)
		}
		if matched {
			return nil
		}
		exists, err := s.backend.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("probing submodel %s: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrSubmodelNotFound, id)
		}
		return fmt.Errorf("%w: %s in %s", ErrCollidingElement, e.IDShort, id)
	}

	return s.Mutate(ctx, id, func(sm *Submodel) error {
		if hasNamedChild(sm.SubmodelElements, e.IDShort) {
			return fmt.Errorf("%w: %s in %s", ErrCollidingElement, e.IDShort, id)
		}
		sm.SubmodelElements = append(sm.SubmodelElements, e)
		return nil
	})
}

// CreateNested appends e to the children of the container at parent:
// List items, Collection children or Entity statements. Leaf parents
// fail with ErrNotAContainer.
func (s *Store) CreateNested(ctx context.Context, id string, parent idshort.Path, e *Element) error {
	return s.Mutate(ctx, id, func(sm *Submodel) error {
		p, err := resolve(&sm.SubmodelElements, parent)
		if err != nil {
			return err
		}
		slot := p.children()
		if slot == nil {
			return fmt.Errorf("%w: %s is a %s", ErrNotAContainer, parent, p.ModelType)
		}
		if !p.ModelType.Positional() && hasNamedChild(*slot, e.IDShort) {
			return fmt.Errorf("%w: %s under %s", ErrCollidingElement, e.IDShort, parent)
		}
		*slot = append(*slot, e)
		return nil
	})
}

// Update replaces the element at path with e.
//
// Backends with a native locator write try it first; when it reaches no
// element the submodel is probed and the write falls back to
// read-modify-write, which also covers paths through Entity statements.
func (s *Store) Update(ctx context.Context, id string, path idshort.Path, e *Element) error {
	if w, ok := s.backend.(LocatorWriter); ok {
		matched, err := w.SetAt(ctx, id, query.Locate(path), e)
		if err != nil {
			return fmt.Errorf("updating %s in %s: %w", path, id, err)
		}
		if matched {
			return nil
		}
		exists, err := s.backend.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("probing submodel %s: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrSubmodelNotFound, id)
		}
	}

	return s.Mutate(ctx, id, func(sm *Submodel) error {
		slot, idx, err := locate(&sm.SubmodelElements, path)
		if err != nil {
			return err
		}
		(*slot)[idx] = e
		return nil
	})
}

// Delete removes the element at path. Top-level elements are removed by
// idShort match; nested ones are spliced out of their parent's slot.
func (s *Store) Delete(ctx context.Context, id string, path idshort.Path) error {
	if !path.IsNested() {
		if w, ok := s.backend.(TopLevelWriter); ok {
			removed, err := w.Pull(ctx, id, path.Root())
			if err != nil {
				return fmt.Errorf("deleting %s from %s: %w", path, id, err)
			}
			if !removed {
				return s.absence(ctx, id, path)
			}
			return nil
		}
	}

	return s.Mutate(ctx, id, func(sm *Submodel) error {
		if !path.IsNested() {
			kept := sm.SubmodelElements[:0:0]
			for _, e := range sm.SubmodelElements {
				if e.IDShort != path.Root() {
					kept = append(kept, e)
				}
			}
			if len(kept) == len(sm.SubmodelElements) {
				return fmt.Errorf("%w: %s in %s", ErrElementNotFound, path, id)
			}
			sm.SubmodelElements = kept
			return nil
		}
		slot, idx, err := locate(&sm.SubmodelElements, path)
		if err != nil {
			return err
		}
		*slot = append((*slot)[:idx:idx], (*slot)[idx+1:]...)
		return nil
	})
}

// List pages through the top-level elements in stored order, keyed by
// idShort.
func (s *Store) List(ctx context.Context, id string, info pagination.Info) (pagination.Result[*Element], error) {
	doc, err := s.backend.Load(ctx, id)
	if err != nil {
		return pagination.Result[*Element]{}, err
	}
	src := pagination.Ordered(doc.Submodel.SubmodelElements, elementKey)
	return pagination.Paginate(ctx, src, elementKey, info)
}

func elementKey(e *Element) string { return e.IDShort }

// Mutate is the optimistic read-modify-write primitive. It loads the
// submodel, applies fn to it and writes it back only if nobody else wrote
// in between, retrying up to the attempt budget. An error from fn aborts
// without writing.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Submodel) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := s.backend.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(doc.Submodel); err != nil {
			return err
		}

		err = s.backend.CompareAndSwap(ctx, doc.Submodel, doc.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return err
		}
		s.logger.Debug("optimistic write lost, retrying",
			"submodel_id", id, "version", doc.Version, "attempt", attempt)
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrConcurrentModification, id, s.maxAttempts)
}

// absence turns an empty result into the right not-found error.
func (s *Store) absence(ctx context.Context, id string, path idshort.Path) error {
	exists, err := s.backend.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("probing submodel %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSubmodelNotFound, id)
	}
	return fmt.Errorf("%w: %s in %s", ErrElementNotFound, path, id)
}
