package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository defines the persistence operations of the corpus.
type Repository interface {
	// List returns every entry, archived ones included, in insertion order.
	List(ctx context.Context) ([]Entry, error)

	// SaveEntries upserts all entries in one transaction.
	SaveEntries(ctx context.Context, entries []Entry) error

	// ApplyMerge stores the canonical entry, archives the retired keys and
	// records the merge in one transaction. Returns ErrEntryNotFound if a
	// retired key is missing or already archived.
	ApplyMerge(ctx context.Context, m Merge) error

	// ListMerges returns recorded merges, oldest first.
	ListMerges(ctx context.Context) ([]Merge, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = `id, category, name, capabilities, clusters, manufacturer_ids,
	product_ids, provenance, attributes, archived_at, merged_into, created_at, updated_at`

// List returns every entry in rowid order, which is first-seen order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM device_entries ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// SaveEntries upserts entries in a single transaction.
func (r *SQLiteRepository) SaveEntries(ctx context.Context, entries []Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	for i := range entries {
		if err := upsertEntry(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ApplyMerge applies a merge atomically.
func (r *SQLiteRepository) ApplyMerge(ctx context.Context, m Merge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if err := upsertEntry(ctx, tx, &m.Canonical); err != nil {
		return err
	}

	archivedAt := formatTime(m.CreatedAt)
	into := m.Canonical.Key().String()
	for _, k := range m.Retired {
		res, err := tx.ExecContext(ctx, `
			UPDATE device_entries
			SET archived_at = ?, merged_into = ?, updated_at = ?
			WHERE id = ? AND category = ? AND archived_at IS NULL`,
			archivedAt, into, archivedAt, k.ID, k.Category,
		)
		if err != nil {
			return fmt.Errorf("archiving %s: %w", k, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking archive of %s: %w", k, err)
		}
		if n != 1 {
			return fmt.Errorf("archiving %s: %w", k, ErrEntryNotFound)
		}
	}

	mergedFrom, err := json.Marshal(m.MergedFrom)
	if err != nil {
		return fmt.Errorf("marshalling merged_from: %w", err)
	}
	retired, err := json.Marshal(m.Retired)
	if err != nil {
		return fmt.Errorf("marshalling retired: %w", err)
	}
	caps, err := marshalSet(m.Canonical.Capabilities)
	if err != nil {
		return err
	}
	mfrs, err := marshalSet(m.Canonical.ManufacturerIDs)
	if err != nil {
		return err
	}
	products, err := marshalSet(m.Canonical.ProductIDs)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fusion_results (
			id, canonical_id, category, merged_from, retired,
			capabilities, manufacturer_ids, product_ids, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Canonical.ID, m.Canonical.Category, string(mergedFrom), string(retired),
		caps, mfrs, products, formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("recording merge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListMerges returns recorded merges, oldest first. Canonical carries the
// id, category and final sets as they were at merge time.
func (r *SQLiteRepository) ListMerges(ctx context.Context) ([]Merge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, canonical_id, category, merged_from, retired,
			capabilities, manufacturer_ids, product_ids, created_at
		FROM fusion_results
		ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying merges: %w", err)
	}
	defer rows.Close()

	var merges []Merge
	for rows.Next() {
		var m Merge
		var mergedFrom, retired, caps, mfrs, products, createdAt string
		if err := rows.Scan(&m.ID, &m.Canonical.ID, &m.Canonical.Category, &mergedFrom, &retired,
			&caps, &mfrs, &products, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning merge: %w", err)
		}

		fields := []struct {
			raw string
			dst any
		}{
			{mergedFrom, &m.MergedFrom},
			{retired, &m.Retired},
			{caps, &m.Canonical.Capabilities},
			{mfrs, &m.Canonical.ManufacturerIDs},
			{products, &m.Canonical.ProductIDs},
		}
		for _, f := range fields {
			if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
				return nil, fmt.Errorf("unmarshalling merge %s: %w", m.ID, err)
			}
		}

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing merge created_at: %w", err)
		}
		m.CreatedAt = t
		m.Canonical.CreatedAt = t
		m.Canonical.UpdatedAt = t
		merges = append(merges, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merges: %w", err)
	}
	return merges, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertEntry(ctx context.Context, ex execer, e *Entry) error {
	var cols [6]string
	sets := [][]string{e.Capabilities, e.Clusters, e.ManufacturerIDs, e.ProductIDs, e.Provenance}
	for i, s := range sets {
		raw, err := marshalSet(s)
		if err != nil {
			return err
		}
		cols[i] = raw
	}
	attrs := e.Attributes
	if attrs == nil {
		attrs = []NamedItem{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}
	cols[5] = string(raw)

	var archivedAt sql.NullString
	if e.ArchivedAt != nil {
		archivedAt = sql.NullString{String: formatTime(*e.ArchivedAt), Valid: true}
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO device_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, category) DO UPDATE SET
			name = excluded.name,
			capabilities = excluded.capabilities,
			clusters = excluded.clusters,
			manufacturer_ids = excluded.manufacturer_ids,
			product_ids = excluded.product_ids,
			provenance = excluded.provenance,
			attributes = excluded.attributes,
			archived_at = excluded.archived_at,
			merged_into = excluded.merged_into,
			updated_at = excluded.updated_at`,
		e.ID, e.Category, nullableString(e.Name),
		cols[0], cols[1], cols[2], cols[3], cols[4], cols[5],
		archivedAt, nullableString(e.MergedInto),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting entry %s: %w", e.Key(), err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(scanner rowScanner) (*Entry, error) {
	var e Entry
	var name, archivedAt, mergedInto sql.NullString
	var caps, clusters, mfrs, products, provenance, attrs string
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&e.ID, &e.Category, &name,
		&caps, &clusters, &mfrs, &products, &provenance, &attrs,
		&archivedAt, &mergedInto, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	e.Name = name.String
	e.MergedInto = mergedInto.String

	fields := []struct {
		raw string
		dst any
	}{
		{caps, &e.Capabilities},
		{clusters, &e.Clusters},
		{mfrs, &e.ManufacturerIDs},
		{products, &e.ProductIDs},
		{provenance, &e.Provenance},
		{attrs, &e.Attributes},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("unmarshalling %s: %w", e.Key(), err)
		}
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if archivedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, archivedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing archived_at: %w", err)
		}
		e.ArchivedAt = &t
	}
	return &e, nil
}

func marshalSet(s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshalling set: %w", err)
	}
	return string(raw), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableString returns a sql.NullString for optional strings.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
