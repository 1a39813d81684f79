package submodel

import (
	"errors"

	"github.com/nerrad567/gray-twin-core/internal/submodel/idshort"
)

var (
	// ErrSubmodelNotFound is returned when the container id does not exist.
	ErrSubmodelNotFound = errors.New("submodel not found")

	// ErrElementNotFound is returned when a path resolves to nothing inside
	// an existing submodel.
	ErrElementNotFound = errors.New("submodel element not found")

	// ErrMalformedPath is returned for idShort paths that fail to parse.
	ErrMalformedPath = idshort.ErrMalformedPath

	// ErrCollidingElement is returned when creating an element whose idShort
	// already exists among its named siblings.
	ErrCollidingElement = errors.New("submodel element idShort already exists")

	// ErrCollidingIdentifier is returned when creating a submodel whose id exists.
	ErrCollidingIdentifier = errors.New("submodel id already exists")

	// ErrMissingIdentifier is returned when a submodel has no id.
	ErrMissingIdentifier = errors.New("submodel id is required")

	// ErrIdentifierMismatch is returned when the id or idShort in a body
	// disagrees with the one being addressed.
	ErrIdentifierMismatch = errors.New("identifier in body does not match the addressed one")

	// ErrNotAContainer is returned when a nested create targets a leaf element.
	ErrNotAContainer = errors.New("submodel element cannot hold children")

	// ErrNotAFile is returned for attachment operations on non-File elements.
	ErrNotAFile = errors.New("submodel element is not a File")

	// ErrValueNotSupported is returned when setting a value-only
	// representation on a kind that has none.
	ErrValueNotSupported = errors.New("value-only access not supported for this element kind")

	// ErrInvalidValue is returned for value-only payloads of the wrong shape.
	ErrInvalidValue = errors.New("invalid value for element kind")

	// ErrInvalidElement is returned for elements with a missing or unknown modelType.
	ErrInvalidElement = errors.New("invalid submodel element")

	// ErrConcurrentModification is returned when an optimistic write lost
	// against another writer more times than the retry budget allows.
	ErrConcurrentModification = errors.New("submodel modified concurrently")
)
