package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shuttleops/movesync/common/db"
	"github.com/shuttleops/movesync/common/models"
)

const openMoveColumns = `id, move_id, row_id, container_number, load_status, priority, customer,
	origin, destination, carrier_code, sheet_status, driver_id, slot, status, truck_number,
	truck_license_plate, pic_origin, pic_destination, carrier_assigned, created_at, modified_at`

// OpenMoveRepository handles database operations for open moves
type OpenMoveRepository struct {
	db *db.DB
}

// NewOpenMoveRepository creates a new open move repository
func NewOpenMoveRepository(database *db.DB) *OpenMoveRepository {
	return &OpenMoveRepository{db: database}
}

// Create inserts a new open move, assigning its surrogate id
func (r *OpenMoveRepository) Create(ctx context.Context, m *models.OpenMove) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.ModifiedAt = now, now

	query := `
		INSERT INTO open_moves (` + openMoveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := r.db.Exec(ctx, query,
		m.ID,
		m.MoveID,
		m.RowID,
		m.ContainerNumber,
		m.LoadKind,
		m.Priority,
		m.Customer,
		m.Origin,
		m.Destination,
		m.CarrierCode,
		m.SheetStatus,
		m.DriverID,
		m.Slot,
		m.Status,
		m.TruckNumber,
		m.LicensePlate,
		m.PickupPicture,
		m.DropoffPicture,
		m.CarrierAssigned,
		m.CreatedAt,
		m.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create open move: %w", err)
	}

	return nil
}

// Get retrieves an open move by surrogate id
func (r *OpenMoveRepository) Get(ctx context.Context, id uuid.UUID) (*models.OpenMove, error) {
	query := `SELECT ` + openMoveColumns + ` FROM open_moves WHERE id = $1`

	m, err := scanOpenMove(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get open move: %w", err)
	}
	return m, nil
}

// Find retrieves the open move in a driver's slot. An empty moveID matches any move.
func (r *OpenMoveRepository) Find(ctx context.Context, driverID, moveID string, slot models.Slot) (*models.OpenMove, error) {
	query := `
		SELECT ` + openMoveColumns + `
		FROM open_moves
		WHERE driver_id = $1 AND slot = $2 AND ($3::text = '' OR move_id = $3::text)
	`

	m, err := scanOpenMove(r.db.QueryRow(ctx, query, driverID, slot, moveID))
	if err != nil {
		return nil, fmt.Errorf("failed to find open move: %w", err)
	}
	return m, nil
}

// Update writes the mutable fields of an open move
func (r *OpenMoveRepository) Update(ctx context.Context, m *models.OpenMove) error {
	m.ModifiedAt = time.Now().UTC()

	query := `
		UPDATE open_moves
		SET slot = $2, status = $3, sheet_status = $4, pic_origin = $5, pic_destination = $6, modified_at = $7
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		m.ID,
		m.Slot,
		m.Status,
		m.SheetStatus,
		m.PickupPicture,
		m.DropoffPicture,
		m.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update open move: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update open move %s: %w", m.ID, ErrNotFound)
	}

	return nil
}

// Delete removes an open move
func (r *OpenMoveRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM open_moves WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete open move: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete open move %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListByDriver retrieves a driver's open moves, current slot first
func (r *OpenMoveRepository) ListByDriver(ctx context.Context, driverID string) ([]*models.OpenMove, error) {
	query := `
		SELECT ` + openMoveColumns + `
		FROM open_moves
		WHERE driver_id = $1
		ORDER BY slot ASC
	`
	return r.list(ctx, query, driverID)
}

// List retrieves every open move
func (r *OpenMoveRepository) List(ctx context.Context) ([]*models.OpenMove, error) {
	query := `SELECT ` + openMoveColumns + ` FROM open_moves ORDER BY driver_id, slot`
	return r.list(ctx, query)
}

func (r *OpenMoveRepository) list(ctx context.Context, query string, args ...any) ([]*models.OpenMove, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open moves: %w", err)
	}
	defer rows.Close()

	var moves []*models.OpenMove
	for rows.Next() {
		m, err := scanOpenMove(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan open move: %w", err)
		}
		moves = append(moves, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open moves: %w", err)
	}

	return moves, nil
}

func scanOpenMove(row pgx.Row) (*models.OpenMove, error) {
	m := &models.OpenMove{}
	err := row.Scan(
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
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
