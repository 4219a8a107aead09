package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DexterMayheww/nit-portal-api/internal/data/pgxutil"
	apperrors "github.com/DexterMayheww/nit-portal-api/internal/errors"
	"github.com/DexterMayheww/nit-portal-api/internal/ports"
)

// AuditEntry is a persisted record of an authentication event.
type AuditEntry struct {
	ID       uuid.UUID `json:"id"`
	At       time.Time `json:"at"`
	Actor    string    `json:"actor"`
	Event    string    `json:"event"`
	Provider string    `json:"provider"`
	Success  bool      `json:"success"`
	Detail   string    `json:"detail,omitempty"`
}

// AuditRepo persists authentication audit events. It implements ports.AuditRecorder.
type AuditRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAuditRepo creates a new AuditRepo instance with the given database connection.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

const auditColumns = `id, at, actor, event, provider, success, detail`

// Record inserts a single audit event. Callers treat failures as
// best-effort, so the returned error is informational only.
func (r *AuditRepo) Record(ctx context.Context, event ports.AuditEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO audit_events (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, auditColumns)

	_, err := r.DB.ExecContext(ctx, query,
		uuid.New(),
		r.timeProvider.Now().UTC(),
		event.Actor,
		event.Event,
		event.Provider,
		event.Success,
		event.Detail,
	)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// List returns the most recent audit events, newest first.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		return nil, apperrors.Validationf("limit must be positive, got %d", limit)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_events
		ORDER BY at DESC
		LIMIT $1`, auditColumns)

	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]AuditEntry, 0, limit)
	for rows.Next() {
		var e AuditEntry
		if scanErr := rows.Scan(&e.ID, &e.At, &e.Actor, &e.Event, &e.Provider, &e.Success, &e.Detail); scanErr != nil {
			return nil, apperrors.MapDBError(scanErr)
		}
		entries = append(entries, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperrors.MapDBError(rowsErr)
	}
	return entries, nil
}

// Purge deletes audit events recorded before the cutoff and returns the
// number of rows removed. The count and delete run in one transaction so
// the reported number matches what was actually removed.
func (r *AuditRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			res, execErr := tx.ExecContext(ctx, `DELETE FROM audit_events WHERE at < $1`, before.UTC())
			if execErr != nil {
				return apperrors.MapDBError(execErr)
			}
			n, affErr := res.RowsAffected()
			if affErr != nil {
				return apperrors.MapDBError(affErr)
			}
			purged = n
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// ListByActor returns the most recent audit events for a single actor, newest first.
func (r *AuditRepo) ListByActor(ctx context.Context, actor string, limit int) ([]AuditEntry, error) {
	if actor == "" {
		return nil, apperrors.Validationf("actor is required")
	}
	if limit <= 0 {
		return nil, apperrors.Validationf("limit must be positive, got %d", limit)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM audit_events
		WHERE actor = $1
		ORDER BY at DESC
		LIMIT $2`, auditColumns)

	rows, err := r.DB.QueryContext(ctx, query, actor, limit)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if scanErr := rows.Scan(&e.ID, &e.At, &e.Actor, &e.Event, &e.Provider, &e.Success, &e.Detail); scanErr != nil {
			return nil, apperrors.MapDBError(scanErr)
		}
		entries = append(entries, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperrors.MapDBError(rowsErr)
	}
	return entries, nil
}
