// Package sqlrecord implements the records.Store contract on database/sql.
// It supports PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite) through a
// small dialect switch; the table layout is identical in both.
package sqlrecord

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Mindburn-Labs/keel/pkg/sequenced"
)

// Dialect selects placeholder style, column types, and uniqueness-violation
// detection for a supported driver.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// DefaultTable holds domain events; snapshot deployments point a second
// Store at a sibling table such as "stored_snapshots".
const DefaultTable = "stored_events"

type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	log     *slog.Logger
}

type Option func(*Store)

// WithTable overrides the default table name.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		table:   DefaultTable,
		log:     slog.Default().With("component", "sqlrecord"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the DDL for a record table in the given dialect.
func Schema(d Dialect, table string) string {
	stateType := "BYTEA"
	if d == DialectSQLite {
		stateType = "BLOB"
	}
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	originator_id TEXT NOT NULL,
	position BIGINT NOT NULL,
	topic TEXT NOT NULL,
	state %s NOT NULL,
	originator_hash TEXT NOT NULL,
	event_hash TEXT NOT NULL,
	PRIMARY KEY (originator_id, position)
);
`, table, stateType)
}

// EnsureSchema creates the store's table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema(s.dialect, s.table)); err != nil {
		return &sequenced.DatastoreError{Op: "ensure_schema", Err: err}
	}
	return nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) AppendItems(ctx context.Context, items []sequenced.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &sequenced.DatastoreError{Op: "append_items", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	// One multi-VALUES insert keeps the batch atomic and the round trips
	// at one; any duplicate key rolls the whole batch back.
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*6)
	n := 1
	for _, it := range items {
		placeholders = append(placeholders, fmt.Sprintf("(%s, %s, %s, %s, %s, %s)",
			s.placeholder(n), s.placeholder(n+1), s.placeholder(n+2),
			s.placeholder(n+3), s.placeholder(n+4), s.placeholder(n+5)))
		n += 6
		args = append(args, it.OriginatorID.String(), it.Position, it.Topic, it.State, it.OriginatorHash, it.EventHash)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (originator_id, position, topic, state, originator_hash, event_hash) VALUES %s",
		s.table, strings.Join(placeholders, ", "))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			_ = tx.Rollback()
			conflict := s.findConflict(ctx, items)
			s.log.Debug("append rejected by uniqueness constraint",
				"originator_id", conflict.OriginatorID, "position", conflict.Position)
			return conflict
		}
		return &sequenced.DatastoreError{Op: "append_items", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &sequenced.DatastoreError{Op: "append_items", Err: err}
	}
	return nil
}

// findConflict locates the first batch position that already exists, for a
// precise ConcurrencyError. Runs on the error path only, outside the failed
// transaction: Postgres aborts the transaction on the constraint error, so
// the probe needs a fresh connection to see the committed winner.
func (s *Store) findConflict(ctx context.Context, items []sequenced.Item) *sequenced.ConcurrencyError {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE originator_id = %s AND position = %s",
		s.table, s.placeholder(1), s.placeholder(2))
	for _, it := range items {
		var one int
		err := s.db.QueryRowContext(ctx, query, it.OriginatorID.String(), it.Position).Scan(&one)
		if err == nil {
			return &sequenced.ConcurrencyError{OriginatorID: it.OriginatorID, Position: it.Position}
		}
	}
	return &sequenced.ConcurrencyError{OriginatorID: items[0].OriginatorID, Position: items[0].Position}
}

func (s *Store) GetItems(ctx context.Context, originatorID uuid.UUID, r sequenced.Range) ([]sequenced.Item, error) {
	var sb strings.Builder
	args := []any{originatorID.String()}
	fmt.Fprintf(&sb, "SELECT originator_id, position, topic, state, originator_hash, event_hash FROM %s WHERE originator_id = %s",
		s.table, s.placeholder(1))
	if r.GTE != nil {
		args = append(args, *r.GTE)
		fmt.Fprintf(&sb, " AND position >= %s", s.placeholder(len(args)))
	}
	if r.LTE != nil {
		args = append(args, *r.LTE)
		fmt.Fprintf(&sb, " AND position <= %s", s.placeholder(len(args)))
	}
	if r.Desc {
		sb.WriteString(" ORDER BY position DESC")
	} else {
		sb.WriteString(" ORDER BY position ASC")
	}
	if r.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", r.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, &sequenced.DatastoreError{Op: "get_items", Err: err}
	}
	defer func() { _ = rows.Close() }()

	items := make([]sequenced.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, &sequenced.DatastoreError{Op: "get_items", Err: err}
	}
	return items, nil
}

func (s *Store) LastItem(ctx context.Context, originatorID uuid.UUID) (*sequenced.Item, error) {
	query := fmt.Sprintf(
		"SELECT originator_id, position, topic, state, originator_hash, event_hash FROM %s WHERE originator_id = %s ORDER BY position DESC LIMIT 1",
		s.table, s.placeholder(1))

	it, err := scanItem(s.db.QueryRowContext(ctx, query, originatorID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (sequenced.Item, error) {
	var (
		it    sequenced.Item
		rawID string
	)
	if err := row.Scan(&rawID, &it.Position, &it.Topic, &it.State, &it.OriginatorHash, &it.EventHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sequenced.Item{}, err
		}
		return sequenced.Item{}, &sequenced.DatastoreError{Op: "scan_item", Err: err}
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return sequenced.Item{}, &sequenced.DatastoreError{Op: "scan_item", Err: fmt.Errorf("malformed originator id %q: %w", rawID, err)}
	}
	it.OriginatorID = id
	return it, nil
}

// isUniqueViolation classifies driver errors; everything else surfaces as
// DatastoreError. lib/pq reports SQLSTATE 23505, modernc sqlite reports a
// "UNIQUE constraint failed" message.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
