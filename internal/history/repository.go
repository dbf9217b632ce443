// Package history persists update cycle reports in the update_reports
// table so past cycles can be queried after a restart.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/update"
)

// ErrReportNotFound is returned when no report matches.
var ErrReportNotFound = errors.New("history: report not found")

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Filter controls which reports to return.
type Filter struct {
	OnlyFailed bool // optional: only reports with at least one source error
	Since      time.Time
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult contains a page of reports, newest first.
type ListResult struct {
	Reports []update.Report `json:"reports"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// Repository defines report persistence.
type Repository interface {
	Save(ctx context.Context, r *update.Report) error
	Get(ctx context.Context, id string) (*update.Report, error)
	Latest(ctx context.Context) (*update.Report, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, keep int) (int, error)
}

// SQLiteRepository stores reports in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new report repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts a report. Saving the same report twice replaces it.
func (r *SQLiteRepository) Save(ctx context.Context, rep *update.Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO update_reports (id, timestamp, total_devices, error_count, body)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   timestamp = excluded.timestamp,
		   total_devices = excluded.total_devices,
		   error_count = excluded.error_count,
		   body = excluded.body`,
		rep.ID,
		rep.Timestamp.UTC().Format(timeFormat),
		rep.TotalDevices,
		len(rep.Errors),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// NotifyReport implements update.Notifier.
func (r *SQLiteRepository) NotifyReport(ctx context.Context, rep *update.Report) error {
	return r.Save(ctx, rep)
}

// Get returns the report with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*update.Report, error) {
	return r.one(ctx, `SELECT body FROM update_reports WHERE id = ?`, id)
}

// Latest returns the most recent report.
func (r *SQLiteRepository) Latest(ctx context.Context) (*update.Report, error) {
	return r.one(ctx, `SELECT body FROM update_reports ORDER BY timestamp DESC, rowid DESC LIMIT 1`)
}

func (r *SQLiteRepository) one(ctx context.Context, query string, args ...any) (*update.Report, error) {
	var body string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying report: %w", err)
	}
	return decode(body)
}

// List returns reports matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.OnlyFailed {
		conditions = append(conditions, "error_count > 0")
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM update_reports %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting reports: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT body FROM update_reports %s ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	reports := []update.Report{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		rep, err := decode(body)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}

	return &ListResult{
		Reports: reports,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes all but the newest keep reports and returns how many
// were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM update_reports WHERE id NOT IN (
		   SELECT id FROM update_reports ORDER BY timestamp DESC, rowid DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning reports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning reports: %w", err)
	}
	return int(n), nil
}

func decode(body string) (*update.Report, error) {
	var rep update.Report
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &rep, nil
}
