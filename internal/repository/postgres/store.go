// Package postgres implements the EventStore on PostgreSQL through pgx.
//
// The full event is stored as a JSONB document next to the projected columns
// used by the compare-and-update guard. Each write and its audit row share
// one pgx.Tx, and an optional TxHook runs in that same transaction so job
// inserts commit or roll back with the transition.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"safeguard.io/safeguard/internal/domain"
	"safeguard.io/safeguard/internal/repository"
)

const uniqueViolation = "23505"

// TxHook runs inside the write transaction after the event and audit rows
// are written. Returning an error aborts the write.
type TxHook func(ctx context.Context, tx pgx.Tx, e *domain.Event, entry domain.AuditEntry) error

// Store is the PostgreSQL EventStore.
type Store struct {
	pool  *pgxpool.Pool
	hooks []TxHook
}

var _ repository.EventStore = (*Store)(nil)

// NewStore creates a Store over the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// AddTxHook registers hook for every subsequent write. Not safe to call
// concurrently with writes; register during bootstrap.
func (s *Store) AddTxHook(hook TxHook) {
	s.hooks = append(s.hooks, hook)
}

// Create implements repository.EventStore.
func (s *Store) Create(ctx context.Context, e *domain.Event, entry domain.AuditEntry) error {
	stored := e.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	doc, err := stored.ToJSON()
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create event tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, tenant_id, reference, event_type, status, severity, reporter_id, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		stored.ID, stored.TenantID, stored.Reference, string(stored.Type), string(stored.Status),
		int(stored.Severity.Current), stored.ReporterID, stored.Version, doc, stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create event %s: %w", e.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}

	if err := s.finish(ctx, tx, stored, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create event tx: %w", err)
	}
	e.Version = stored.Version
	return nil
}

// Get implements repository.EventStore.
func (s *Store) Get(ctx context.Context, eventID, tenantID string) (*domain.Event, error) {
	return getEvent(ctx, s.pool, eventID, tenantID)
}

// CompareAndUpdate implements repository.EventStore.
func (s *Store) CompareAndUpdate(ctx context.Context, c repository.Commit) (*domain.Event, error) {
	stored := c.Event.Clone()
	stored.Version = c.ExpectedVersion + 1
	doc, err := stored.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", stored.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update event tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE events
		SET status = $1, event_type = $2, severity = $3, version = $4, document = $5, updated_at = $6
		WHERE id = $7 AND tenant_id = $8 AND status = $9 AND version = $10`,
		string(stored.Status), string(stored.Type), int(stored.Severity.Current), stored.Version, doc, stored.UpdatedAt,
		stored.ID, stored.TenantID, string(c.ExpectedStatus), c.ExpectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", stored.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1 AND tenant_id = $2)`,
			stored.ID, stored.TenantID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check event %s: %w", stored.ID, err)
		}
		if !exists {
			return nil, fmt.Errorf("update event %s: %w", stored.ID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("update event %s (expected %s@%d): %w",
			stored.ID, c.ExpectedStatus, c.ExpectedVersion, repository.ErrConflict)
	}

	if err := s.finish(ctx, tx, stored, c.Audit); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update event tx: %w", err)
	}
	return stored, nil
}

// AuditTrail implements repository.EventStore.
func (s *Store) AuditTrail(ctx context.Context, eventID, tenantID string) ([]domain.AuditEntry, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE id = $1 AND tenant_id = $2)`,
		eventID, tenantID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check event %s: %w", eventID, err)
	}
	if !exists {
		return nil, fmt.Errorf("audit trail %s: %w", eventID, repository.ErrNotFound)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, tenant_id, actor_id, action, old_value, new_value, details, created_at
		FROM event_audit
		WHERE event_id = $1 AND tenant_id = $2
		ORDER BY seq`, eventID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail %s: %w", eventID, err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			entry                  domain.AuditEntry
			action                 string
			oldRaw, newRaw, detRaw []byte
		)
		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.TenantID, &entry.ActorID, &action,
			&oldRaw, &newRaw, &detRaw, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = domain.Action(action)
		if len(oldRaw) > 0 {
			var old domain.Snapshot
			if err := json.Unmarshal(oldRaw, &old); err != nil {
				return nil, fmt.Errorf("decode audit old_value %s: %w", entry.ID, err)
			}
			entry.OldValue = &old
		}
		if err := json.Unmarshal(newRaw, &entry.NewValue); err != nil {
			return nil, fmt.Errorf("decode audit new_value %s: %w", entry.ID, err)
		}
		if len(detRaw) > 0 {
			if err := json.Unmarshal(detRaw, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details %s: %w", entry.ID, err)
			}
		}
		entry.Timestamp = entry.Timestamp.UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit trail %s: %w", eventID, err)
	}
	return out, nil
}

// ListByStatus implements repository.EventStore.
func (s *Store) ListByStatus(ctx context.Context, tenantID string, statuses []domain.Status) ([]*domain.Event, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT document FROM events
		WHERE tenant_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY (document->>'status_changed_at')::timestamptz, id`, tenantID, names)
	if err != nil {
		return nil, fmt.Errorf("list events by status: %w", err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := domain.EventFromJSON(doc)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *Store) finish(ctx context.Context, tx pgx.Tx, e *domain.Event, entry domain.AuditEntry) error {
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	for _, hook := range s.hooks {
		if err := hook(ctx, tx, e, entry); err != nil {
			return fmt.Errorf("transition tx hook for event %s: %w", e.ID, err)
		}
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getEvent(ctx context.Context, q querier, eventID, tenantID string) (*domain.Event, error) {
	var doc []byte
	err := q.QueryRow(ctx,
		`SELECT document FROM events WHERE id = $1 AND tenant_id = $2`,
		eventID, tenantID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get event %s: %w", eventID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	e, err := domain.EventFromJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("decode event %s: %w", eventID, err)
	}
	return e, nil
}

func insertAudit(ctx context.Context, tx pgx.Tx, entry domain.AuditEntry) error {
	var oldRaw []byte
	if entry.OldValue != nil {
		raw, err := json.Marshal(entry.OldValue)
		if err != nil {
			return fmt.Errorf("encode audit old_value: %w", err)
		}
		oldRaw = raw
	}
	newRaw, err := json.Marshal(entry.NewValue)
	if err != nil {
		return fmt.Errorf("encode audit new_value: %w", err)
	}
	var detRaw []byte
	if len(entry.Details) > 0 {
		if detRaw, err = json.Marshal(entry.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO event_audit (id, event_id, tenant_id, actor_id, action, old_value, new_value, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.EventID, entry.TenantID, entry.ActorID, string(entry.Action),
		oldRaw, newRaw, detRaw, entry.Timestamp,
	); err != nil {
		return fmt.Errorf("insert audit entry %s: %w", entry.ID, err)
	}
	return nil
}
