// Package database opens the SQL stores behind the sqlite and postgres
// submodel backends and the shell repository.
//
// SQLite goes through mattn/go-sqlite3 with a single pooled connection;
// PostgreSQL goes through lib/pq. Callers write queries with ?
// placeholders and DB rebinds them for the dialect.
//
// Schema files are embedded by the top-level migrations package, one
// directory per dialect. Migrate records a SHA-256 of every applied up
// file and refuses to continue when one has been edited since. On
// PostgreSQL each migration transaction holds an advisory lock, so
// replicas starting together apply each migration once.
package database
