// Package sqlstore is a submodel.Backend over a relational database.
//
// Each submodel is one row holding its JSON document, a version counter
// for optimistic writes, and the id short and semantic id columns used
// for listing. The same queries run on SQLite and PostgreSQL; placeholders
// are rebound by the database package.
//
// Element reads load the document and run the compiled pipeline through
// query.Evaluate, so results match the document-store backend.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/database"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/query"
)

// Backend implements submodel.Backend on a database.DB.
type Backend struct {
	db *database.DB
}

// New returns a Backend. The submodels table must exist (see migrations).
func New(db *database.DB) *Backend {
	return &Backend{db: db}
}

// Insert stores sm at version 1.
func (b *Backend) Insert(ctx context.Context, sm *submodel.Submodel) error {
	doc, err := submodel.Encode(sm)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO submodels (id, id_short, semantic_id, version, document, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?)`,
		sm.ID, sm.IDShort, nullable(sm.SemanticIDValue()), string(doc), now, now,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", submodel.ErrCollidingIdentifier, sm.ID)
		}
		return fmt.Errorf("inserting submodel %s: %w", sm.ID, err)
	}
	return nil
}

// Load reads the document and its version.
func (b *Backend) Load(ctx context.Context, id string) (*submodel.Document, error) {
	var doc string
	var version int64
	err := b.db.QueryRowContext(ctx,
		`SELECT document, version FROM submodels WHERE id = ?`, id,
	).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, id)
		}
		return nil, fmt.Errorf("loading submodel %s: %w", id, err)
	}

	sm, err := submodel.Decode([]byte(doc))
	if err != nil {
		return nil, err
	}
	return &submodel.Document{Submodel: sm, Version: version}, nil
}

// CompareAndSwap rewrites the row if its version is still expected.
func (b *Backend) CompareAndSwap(ctx context.Context, sm *submodel.Submodel, expected int64) error {
	doc, err := submodel.Encode(sm)
	if err != nil {
		return err
	}

	res, err := b.db.ExecContext(ctx, `
		UPDATE submodels
		SET document = ?, version = version + 1, id_short = ?, semantic_id = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(doc), sm.IDShort, nullable(sm.SemanticIDValue()),
		time.Now().UTC().Format(time.RFC3339), sm.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("updating submodel %s: %w", sm.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := b.Exists(ctx, sm.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, sm.ID)
	}
	return fmt.Errorf("%w: %s moved past version %d", submodel.ErrConcurrentModification, sm.ID, expected)
}

// Delete removes the row.
func (b *Backend) Delete(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM submodels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting submodel %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", submodel.ErrSubmodelNotFound, id)
	}
	return nil
}

// Exists probes the primary key.
func (b *Backend) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := b.db.QueryRowContext(ctx, `SELECT 1 FROM submodels WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing submodel %s: %w", id, err)
	}
	return true, nil
}

// ListAfter pages by primary key.
func (b *Backend) ListAfter(ctx context.Context, semanticID, after string, n int) ([]*submodel.Submodel, error) {
	var (
		where []string
		args  []any
	)
	if after != "" {
		where = append(where, "id > ?")
		args = append(args, after)
	}
	if semanticID != "" {
		where = append(where, "semantic_id = ?")
		args = append(args, semanticID)
	}

	var q strings.Builder
	q.WriteString("SELECT document FROM submodels")
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY id")
	if n > 0 {
		q.WriteString(" LIMIT ?")
		args = append(args, n)
	}

	rows, err := b.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing submodels: %w", err)
	}
	defer rows.Close()

	var out []*submodel.Submodel
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning submodel: %w", err)
		}
		sm, err := submodel.Decode([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submodels: %w", err)
	}
	return out, nil
}

// Aggregate loads the addressed document and evaluates p over it.
func (b *Backend) Aggregate(ctx context.Context, p query.Pipeline) ([]*submodel.Element, error) {
	var doc string
	err := b.db.QueryRowContext(ctx,
		`SELECT document FROM submodels WHERE id = ?`, p.ContainerID(),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	row, err := submodel.DecodeRow([]byte(doc))
	if err != nil {
		return nil, err
	}
	rows, err := query.Evaluate([]query.Row{row}, p)
	if err != nil {
		return nil, err
	}
	return submodel.ElementsFromRows(rows)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
