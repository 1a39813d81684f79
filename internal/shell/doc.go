// Package shell stores Asset Administration Shells and the submodel
// references they hold.
//
// Shells live in SQLite next to the migrations that create them. The
// shell document is kept as JSON; submodel references are rows with an
// insertion position so listing preserves the order they were added in.
package shell
