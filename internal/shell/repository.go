package shell

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/database"
	"github.com/nerrad567/gray-twin-core/internal/pagination"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
)

// Repository defines shell persistence operations.
type Repository interface {
	Create(ctx context.Context, s *Shell) error
	Get(ctx context.Context, id string) (*Shell, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, info pagination.Info) (pagination.Result[*Shell], error)

	ListSubmodelReferences(ctx context.Context, shellID string, info pagination.Info) (pagination.Result[*submodel.Reference], error)
	AddSubmodelReference(ctx context.Context, shellID string, ref *submodel.Reference) error
	RemoveSubmodelReference(ctx context.Context, shellID, submodelID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a new SQLite-backed shell repository.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts s together with its submodel references.
func (r *SQLiteRepository) Create(ctx context.Context, s *Shell) error {
	if s.ID == "" {
		return ErrMissingIdentifier
	}
	doc, err := json.Marshal(document{ID: s.ID, IDShort: s.IDShort, AssetInformation: s.AssetInformation})
	if err != nil {
		return fmt.Errorf("encoding shell %s: %w", s.ID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	now := time.Now().UTC()
	const query = `INSERT INTO shells (id, id_short, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, s.ID, s.IDShort, string(doc),
		now.Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCollidingIdentifier, s.ID)
		}
		return fmt.Errorf("inserting shell %s: %w", s.ID, err)
	}

	for i, ref := range s.Submodels {
		if err := insertReference(ctx, tx, s.ID, i, ref); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing shell %s: %w", s.ID, err)
	}
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// Get returns the shell with its submodel references in insertion order.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Shell, error) {
	const query = `SELECT document, created_at, updated_at FROM shells WHERE id = ?`
	var doc, created, updated string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrShellNotFound, id)
		}
		return nil, fmt.Errorf("querying shell %s: %w", id, err)
	}

	s, err := decodeShell(doc, created, updated)
	if err != nil {
		return nil, err
	}
	s.Submodels, err = r.references(ctx, id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes the shell. References go with it.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shells WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting shell %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrShellNotFound, id)
	}
	return nil
}

// List returns one page of shells ordered by id.
func (r *SQLiteRepository) List(ctx context.Context, info pagination.Info) (pagination.Result[*Shell], error) {
	src := func(ctx context.Context, after string, n int) ([]*Shell, error) {
		query := `SELECT id FROM shells WHERE id > ? ORDER BY id`
		args := []any{after}
		if n > 0 {
			query += ` LIMIT ?`
			args = append(args, n)
		}
		ids, err := r.queryIDs(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		shells := make([]*Shell, 0, len(ids))
		for _, id := range ids {
			s, err := r.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			shells = append(shells, s)
		}
		return shells, nil
	}
	return pagination.Paginate(ctx, src, func(s *Shell) string { return s.ID }, info)
}

// ListSubmodelReferences pages through the shell's submodel references
// in insertion order, keeping those whose submodel id sorts after the
// cursor.
func (r *SQLiteRepository) ListSubmodelReferences(ctx context.Context, shellID string, info pagination.Info) (pagination.Result[*submodel.Reference], error) {
	if err := ensureShell(ctx, r.db, shellID); err != nil {
		return pagination.Result[*submodel.Reference]{}, err
	}
	refs, err := r.references(ctx, shellID)
	if err != nil {
		return pagination.Result[*submodel.Reference]{}, err
	}
	return pagination.Paginate(ctx, pagination.Filtered(refs, referencedSubmodel), referencedSubmodel, info)
}

// AddSubmodelReference appends ref to the shell.
func (r *SQLiteRepository) AddSubmodelReference(ctx context.Context, shellID string, ref *submodel.Reference) error {
	if ref == nil || referencedSubmodel(ref) == "" {
		return ErrInvalidReference
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if err := ensureShell(ctx, tx, shellID); err != nil {
		return err
	}
	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM shell_submodel_refs WHERE shell_id = ?`, shellID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("reading reference position: %w", err)
	}
	if err := insertReference(ctx, tx, shellID, next, ref); err != nil {
		return err
	}
	if err := touch(ctx, tx, shellID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reference: %w", err)
	}
	return nil
}

// RemoveSubmodelReference removes the reference to submodelID.
func (r *SQLiteRepository) RemoveSubmodelReference(ctx context.Context, shellID, submodelID string) error {
	if err := ensureShell(ctx, r.db, shellID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM shell_submodel_refs WHERE shell_id = ? AND submodel_id = ?`, shellID, submodelID)
	if err != nil {
		return fmt.Errorf("deleting reference %s: %w", submodelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s in %s", ErrReferenceNotFound, submodelID, shellID)
	}
	return nil
}

// references loads the shell's references ordered by position.
func (r *SQLiteRepository) references(ctx context.Context, shellID string) ([]*submodel.Reference, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT reference FROM shell_submodel_refs WHERE shell_id = ? ORDER BY position`, shellID)
	if err != nil {
		return nil, fmt.Errorf("querying references: %w", err)
	}
	defer rows.Close()

	var refs []*submodel.Reference
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning reference: %w", err)
		}
		var ref submodel.Reference
		if err := json.Unmarshal([]byte(raw), &ref); err != nil {
			return nil, fmt.Errorf("decoding reference: %w", err)
		}
		refs = append(refs, &ref)
	}
	return refs, rows.Err()
}

func (r *SQLiteRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying shells: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning shell id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// rowQuerier is satisfied by *database.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ensureShell(ctx context.Context, q rowQuerier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM shells WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrShellNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("querying shell %s: %w", id, err)
	}
	return nil
}

func insertReference(ctx context.Context, tx *sql.Tx, shellID string, position int, ref *submodel.Reference) error {
	submodelID := referencedSubmodel(ref)
	if submodelID == "" {
		return ErrInvalidReference
	}
	raw, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encoding reference: %w", err)
	}
	const query = `INSERT INTO shell_submodel_refs (shell_id, position, submodel_id, reference)
		VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, shellID, position, submodelID, string(raw)); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: reference to %s", ErrCollidingIdentifier, submodelID)
		}
		return fmt.Errorf("inserting reference %s: %w", submodelID, err)
	}
	return nil
}

func touch(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE shells SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating shell %s: %w", id, err)
	}
	return nil
}

func decodeShell(doc, created, updated string) (*Shell, error) {
	var d document
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("decoding shell: %w", err)
	}
	s := &Shell{ID: d.ID, IDShort: d.IDShort, AssetInformation: d.AssetInformation}
	s.CreatedAt, _ = time.Parse(time.RFC3339, created) //nolint:errcheck // written by Create
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updated) //nolint:errcheck // written by Create
	return s, nil
}
