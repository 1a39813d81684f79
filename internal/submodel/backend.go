package submodel

import (
	"context"

	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

// Backend is the storage strategy behind Store and Repository.
//
// Implementations: memstore (in-process map), sqlstore (JSON column in
// SQLite or PostgreSQL) and mongostore (MongoDB documents).
type Backend interface {
	// Insert stores a new submodel at version 1.
	// Returns ErrCollidingIdentifier if the id exists.
	Insert(ctx context.Context, sm *Submodel) error

	// Load returns the submodel and its version.
	// Returns ErrSubmodelNotFound if absent.
	Load(ctx context.Context, id string) (*Document, error)

	// CompareAndSwap replaces the submodel only if its stored version is
	// still expected, bumping the version. Returns ErrConcurrentModification
	// on a version mismatch and ErrSubmodelNotFound if the id vanished.
	CompareAndSwap(ctx context.Context, sm *Submodel, expected int64) error

	// Delete removes the submodel. Returns ErrSubmodelNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Exists reports whether a submodel with id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// ListAfter returns up to n submodels with id greater than after,
	// ordered by id. n <= 0 means all. A non-empty semanticID keeps only
	// submodels whose semantic id's first key has that value.
	ListAfter(ctx context.Context, semanticID, after string, n int) ([]*Submodel, error)

	// Aggregate runs a read pipeline and decodes the resulting rows.
	Aggregate(ctx context.Context, p query.Pipeline) ([]*Element, error)
}

// LocatorWriter is implemented by backends that can replace an element
// in place through a compiled WriteLocator.
type LocatorWriter interface {
	// SetAt replaces the element addressed by loc. matched is false when
	// the locator did not reach an element, in which case nothing changed.
	SetAt(ctx context.Context, id string, loc query.WriteLocator, e *Element) (matched bool, err error)
}

// TopLevelWriter is implemented by backends that can append to and remove
// from the top-level element array without rewriting the document.
type TopLevelWriter interface {
	// Append adds e at the end of the top-level elements unless one of
	// them already has e's idShort. matched is false when the submodel
	// does not exist or the idShort is taken, in which case nothing changed.
	Append(ctx context.Context, id string, e *Element) (matched bool, err error)

	// Pull removes every top-level element with the given idShort.
	// removed is false when nothing matched.
	Pull(ctx context.Context, id, idShort string) (removed bool, err error)
}
