package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shuttleops/movesync/common/db"
	"github.com/shuttleops/movesync/common/models"
)

// MoveLogRepository appends and reads audit entries. Entries are never updated.
type MoveLogRepository struct {
	db *db.DB
}

// NewMoveLogRepository creates a new move log repository
func NewMoveLogRepository(database *db.DB) *MoveLogRepository {
	return &MoveLogRepository{db: database}
}

// Append inserts an entry and fills its id and timestamp
func (r *MoveLogRepository) Append(ctx context.Context, e *models.MoveLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var patch any
	if len(e.RowPatch) > 0 {
		patch = string(e.RowPatch)
	}

	query := `
		INSERT INTO move_log (action, actor, driver_id, carrier_code, move_id, detail, saga_step, row_patch, warning, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		e.Action,
		e.Actor,
		e.DriverID,
		e.CarrierCode,
		e.MoveID,
		e.Detail,
		e.Step,
		patch,
		e.Warning,
		e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to append move log entry: %w", err)
	}

	return nil
}

// ListByMove retrieves a move's history, oldest first
func (r *MoveLogRepository) ListByMove(ctx context.Context, moveID string) ([]*models.MoveLogEntry, error) {
	query := `
		SELECT id, action, actor, driver_id, carrier_code, move_id, detail, saga_step, row_patch, warning, created_at
		FROM move_log
		WHERE move_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, query, moveID)
}

// ListByDriver retrieves a driver's most recent entries
func (r *MoveLogRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.MoveLogEntry, error) {
	query := `
		SELECT id, action, actor, driver_id, carrier_code, move_id, detail, saga_step, row_patch, warning, created_at
		FROM move_log
		WHERE driver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, driverID, limit)
}

func (r *MoveLogRepository) list(ctx context.Context, query string, args ...any) ([]*models.MoveLogEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list move log: %w", err)
	}
	defer rows.Close()

	var entries []*models.MoveLogEntry
	for rows.Next() {
		e := &models.MoveLogEntry{}
		var patch []byte
		err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.Actor,
			&e.DriverID,
			&e.CarrierCode,
			&e.MoveID,
			&e.Detail,
			&e.Step,
			&patch,
			&e.Warning,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan move log entry: %w", err)
		}
		e.RowPatch = patch
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating move log: %w", err)
	}

	return entries, nil
}
