// Package api implements the HTTP REST API and WebSocket server of the
// submodel repository.
//
// This package provides:
//   - Submodel and submodel element CRUD, value-only views and File
//     attachments under /api/v1/submodels
//   - Shell CRUD and submodel references under /api/v1/shells
//   - A WebSocket hub at /api/v1/events relaying repository events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Addressing
//
// Submodel and shell identifiers appear base64url encoded in URLs.
// idShort paths are URL-escaped, e.g. B.L%5B1%5D for B.L[1].
//
// # Errors
//
// Repository sentinels map to statuses in one table (errors.go): a
// missing submodel is 404 submodel_not_found, a missing element inside
// an existing submodel is 404 element_not_found, malformed paths are
// 400 and collisions or lost optimistic writes are 409.
//
// # Paging
//
// List endpoints accept limit and cursor and answer
// {"result": [...], "paging_metadata": {"cursor": "..."}}; the cursor is
// absent on the last page.
package api
