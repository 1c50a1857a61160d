package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"chronos/pkg/domain"
	dErrors "chronos/pkg/domain-errors"
)

// PostgresStore persists the audit log in a single audit_entries table.
// Structured sub-objects (changes, snapshots, device, finance, metadata) are
// stored as JSONB so the schema survives model evolution.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table and its query indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	user_name     TEXT NOT NULL,
	user_email    TEXT NOT NULL DEFAULT '',
	role_id       TEXT NOT NULL DEFAULT '',
	role_name     TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	module        TEXT NOT NULL,
	description   TEXT NOT NULL,
	severity      TEXT NOT NULL,
	entity_type   TEXT NOT NULL DEFAULT '',
	entity_id     TEXT NOT NULL DEFAULT '',
	entity_name   TEXT NOT NULL DEFAULT '',
	changes       JSONB NOT NULL DEFAULT '[]',
	before_data   JSONB,
	after_data    JSONB,
	finance       JSONB,
	device        JSONB NOT NULL DEFAULT '{}',
	success       BOOLEAN NOT NULL DEFAULT TRUE,
	error_message TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	metadata      JSONB,
	tags          TEXT[] NOT NULL DEFAULT '{}',
	at            TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_at_idx ON audit_entries (at DESC);
CREATE INDEX IF NOT EXISTS audit_entries_user_at_idx ON audit_entries (user_id, at DESC);
CREATE INDEX IF NOT EXISTS audit_entries_entity_idx ON audit_entries (entity_type, entity_id);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "creating audit schema")
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding audit changes")
	}
	device, err := json.Marshal(e.Device)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encoding device context")
	}
	before := nullableJSON(e.Before)
	after := nullableJSON(e.After)
	metadata := nullableJSON(e.Metadata)

	var finance any
	if e.Finance != nil {
		b, err := json.Marshal(e.Finance)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encoding financial context")
		}
		finance = b
	}

	var entityType, entityID, entityName string
	if e.Entity != nil {
		entityType, entityID, entityName = e.Entity.Type, e.Entity.ID, e.Entity.Name
	}

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	const q = `
INSERT INTO audit_entries (
	id, user_id, user_name, user_email, role_id, role_name,
	action, module, description, severity,
	entity_type, entity_id, entity_name,
	changes, before_data, after_data, finance, device,
	success, error_message, duration_ms, metadata, tags, at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`
	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.Actor.ID, e.Actor.Name, e.Actor.Email, e.Actor.RoleID, e.Actor.RoleName,
		e.Action, e.Module, e.Description, e.Severity,
		entityType, entityID, entityName,
		changes, before, after, finance, device,
		e.Success, e.ErrorMessage, e.DurationMs, metadata, pq.Array(tags), e.At,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "inserting audit entry")
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f Filters) ([]Entry, int, error) {
	where, args := buildWhere(f)

	var total int
	countQ := "SELECT COUNT(*) FROM audit_entries" + where
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "counting audit entries")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := selectColumns + where + orderClause(f.SortBy, f.SortDir) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	entries, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *PostgresStore) Since(ctx context.Context, t time.Time) ([]Entry, error) {
	return s.query(ctx, selectColumns+" WHERE at >= $1 ORDER BY at DESC", t)
}

func (s *PostgresStore) ByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error) {
	return s.query(ctx,
		selectColumns+" WHERE entity_type = $1 AND entity_id = $2 ORDER BY at DESC",
		entityType, entityID)
}

func (s *PostgresStore) ByUser(ctx context.Context, userID domain.UserID, since time.Time) ([]Entry, error) {
	return s.query(ctx,
		selectColumns+" WHERE user_id = $1 AND at >= $2 ORDER BY at DESC",
		userID, since)
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID domain.UserID, since time.Time, failedOnly bool) (int, error) {
	q := "SELECT COUNT(*) FROM audit_entries WHERE user_id = $1 AND at >= $2"
	if failedOnly {
		q += " AND NOT success"
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, userID, since).Scan(&n); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "counting user activity")
	}
	return n, nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_entries WHERE at < $1", cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "deleting expired audit entries")
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "reading delete result")
	}
	return removed, nil
}

const selectColumns = `
SELECT id, user_id, user_name, user_email, role_id, role_name,
	action, module, description, severity,
	entity_type, entity_id, entity_name,
	changes, before_data, after_data, finance, device,
	success, error_message, duration_ms, metadata, tags, at
FROM audit_entries`

func buildWhere(f Filters) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Module != "" {
		add("module = $%d", f.Module)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.AccountID != "" {
		add("finance->>'account_id' = $%d", string(f.AccountID))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Success != nil {
		add("success = $%d", *f.Success)
	}
	if !f.From.IsZero() {
		add("at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("at <= $%d", f.To)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(description ILIKE $%d OR user_name ILIKE $%d OR entity_name ILIKE $%d)", n, n, n))
	}
	if len(f.Tags) > 0 {
		add("tags && $%d", pq.Array(f.Tags))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(by, dir string) string {
	col := "at"
	switch by {
	case SortByModule:
		col = "module"
	case SortByUser:
		col = "user_name"
	case SortBySeverity:
		col = "severity"
	}
	if dir == "asc" {
		return " ORDER BY " + col + " ASC"
	}
	return " ORDER BY " + col + " DESC"
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "querying audit entries")
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "iterating audit entries")
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e            Entry
		entityType   string
		entityID     string
		entityName   string
		changes      []byte
		before       []byte
		after        []byte
		finance      []byte
		device       []byte
		metadata     []byte
		tags         pq.StringArray
		errorMessage string
	)
	err := rows.Scan(
		&e.ID, &e.Actor.ID, &e.Actor.Name, &e.Actor.Email, &e.Actor.RoleID, &e.Actor.RoleName,
		&e.Action, &e.Module, &e.Description, &e.Severity,
		&entityType, &entityID, &entityName,
		&changes, &before, &after, &finance, &device,
		&e.Success, &errorMessage, &e.DurationMs, &metadata, &tags, &e.At,
	)
	if err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "scanning audit entry")
	}

	e.ErrorMessage = errorMessage
	if entityType != "" || entityID != "" {
		e.Entity = &EntityRef{Type: entityType, ID: entityID, Name: entityName}
	}
	if len(tags) > 0 {
		e.Tags = tags
	}
	if err := json.Unmarshal(changes, &e.Changes); err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding audit changes")
	}
	if err := json.Unmarshal(device, &e.Device); err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding device context")
	}
	if len(before) > 0 {
		if err := json.Unmarshal(before, &e.Before); err != nil {
			return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding before snapshot")
		}
	}
	if len(after) > 0 {
		if err := json.Unmarshal(after, &e.After); err != nil {
			return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding after snapshot")
		}
	}
	if len(finance) > 0 {
		e.Finance = &FinancialContext{}
		if err := json.Unmarshal(finance, e.Finance); err != nil {
			return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding financial context")
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding audit metadata")
		}
	}
	return e, nil
}

func nullableJSON(m map[string]any) any {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}
