package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shuttleops/movesync/common/db"
	"github.com/shuttleops/movesync/common/models"
)

// CompletedMoveRepository handles the append-only completed moves table
type CompletedMoveRepository struct {
	db *db.DB
}

// NewCompletedMoveRepository creates a new completed move repository
func NewCompletedMoveRepository(database *db.DB) *CompletedMoveRepository {
	return &CompletedMoveRepository{db: database}
}

// MigrateFromOpen copies an open move into completed_moves and deletes the
// open row in one transaction.
func (r *CompletedMoveRepository) MigrateFromOpen(ctx context.Context, id uuid.UUID) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO completed_moves (`+openMoveColumns+`)
			SELECT `+openMoveColumns+`
			FROM open_moves
			WHERE id = $1
		`, id)
		if err != nil {
			return fmt.Errorf("failed to copy open move to completed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("failed to migrate open move %s: %w", id, ErrNotFound)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM open_moves WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete migrated open move: %w", err)
		}
		return nil
	})
}

// ListByDriver retrieves a driver's completed moves, newest first
func (r *CompletedMoveRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.CompletedMove, error) {
	query := `
		SELECT ` + openMoveColumns + `, completed_at
		FROM completed_moves
		WHERE driver_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed moves: %w", err)
	}
	defer rows.Close()

	var moves []*models.CompletedMove
	for rows.Next() {
		m := &models.CompletedMove{}
		err := rows.Scan(
			&m.ID,
			&m.MoveID,
			&m.RowID,
			&m.ContainerNumber,
			&m.LoadKind,
			&m.Priority,
			&m.Customer,
			&m.Origin,
			&m.Destination,
			&m.CarrierCode,
			&m.SheetStatus,
			&m.DriverID,
			&m.Slot,
			&m.Status,
			&m.TruckNumber,
			&m.LicensePlate,
			&m.PickupPicture,
			&m.DropoffPicture,
			&m.CarrierAssigned,
			&m.CreatedAt,
			&m.ModifiedAt,
			&m.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completed move: %w", err)
		}
		moves = append(moves, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completed moves: %w", err)
	}

	return moves, nil
}
