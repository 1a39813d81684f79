package shell

import "errors"

var (
	// ErrShellNotFound is returned when a shell ID does not exist.
	ErrShellNotFound = errors.New("shell not found")

	// ErrCollidingIdentifier is returned when a shell or submodel
	// reference with the same identifier already exists.
	ErrCollidingIdentifier = errors.New("shell identifier already exists")

	// ErrReferenceNotFound is returned when the shell holds no reference
	// to the given submodel.
	ErrReferenceNotFound = errors.New("submodel reference not found")

	// ErrMissingIdentifier is returned when a shell has no id.
	ErrMissingIdentifier = errors.New("shell id is required")

	// ErrInvalidReference is returned when a reference names no submodel.
	ErrInvalidReference = errors.New("submodel reference has no key")
)
