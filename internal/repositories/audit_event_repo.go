package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Shatzii/sentinel/internal/database"
	"github.com/Shatzii/sentinel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEventRepository handles audit trail data access
type AuditEventRepository struct {
	pool *pgxpool.Pool
}

// NewAuditEventRepository creates a new AuditEventRepository
func NewAuditEventRepository(db *database.DB) *AuditEventRepository {
	return &AuditEventRepository{pool: db.Pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAuditEventRow populates an AuditEvent model from a database row
func scanAuditEventRow(row rowScanner) (*models.AuditEvent, error) {
	var event models.AuditEvent

	err := row.Scan(&event.ID, &event.Actor, &event.Message, &event.Details, &event.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &event, nil
}

// scanAuditEventRows iterates through rows and scans each into AuditEvent models
func scanAuditEventRows(rows pgx.Rows) ([]*models.AuditEvent, error) {
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)

	for rows.Next() {
		event, err := scanAuditEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}

	return events, nil
}

// Create inserts a new audit event
func (r *AuditEventRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, actor, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.Actor, event.Message, event.Details, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListRecent retrieves the most recent audit events
func (r *AuditEventRepository) ListRecent(ctx context.Context, limit int, offset int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, actor, message, details, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return scanAuditEventRows(rows)
}

// ListByActor retrieves audit events recorded against a specific actor
func (r *AuditEventRepository) ListByActor(ctx context.Context, actor string, limit int, offset int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, actor, message, details, created_at
		FROM audit_events
		WHERE actor = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return scanAuditEventRows(rows)
}

// CountByActor counts audit events for a specific actor
func (r *AuditEventRepository) CountByActor(ctx context.Context, actor string) (int64, error) {
	query := `SELECT COUNT(*) FROM audit_events WHERE actor = $1`

	var count int64
	err := r.pool.QueryRow(ctx, query, actor).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}

	return count, nil
}

// Cleanup removes audit events older than the given cutoff
func (r *AuditEventRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM audit_events WHERE created_at < $1`

	result, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit events: %w", err)
	}

	return result.RowsAffected(), nil
}
