package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/models"
)

// MoveSource reads the versioned open move log
type MoveSource interface {
	Version(ctx context.Context) (int64, error)
	Moves(ctx context.Context) (int64, []models.Move, error)
}

// MoveLog reads and writes single rows of the open move log
type MoveLog interface {
	MoveSource
	Row(ctx context.Context, rowID int64) (models.Move, error)
	UpdateRow(ctx context.Context, rowID int64, u models.RowUpdate) error
}

// CarrierGateway talks to the carrier driver-state services
type CarrierGateway interface {
	Resolve(driverID string) (models.Driver, error)
	FetchDriver(ctx context.Context, driver models.Driver) (*models.DriverSnapshot, error)
	AssignCurrent(ctx context.Context, driver models.Driver, req clients.AssignCurrentRequest) error
	UnassignCurrent(ctx context.Context, driver models.Driver) error
	AssignNext(ctx context.Context, driver models.Driver, moveID string) error
	UnassignNext(ctx context.Context, driver models.Driver) error
	PushStatus(ctx context.Context, driver models.Driver, update clients.StatusUpdate) error
}

// OpenMoveStore persists open moves
type OpenMoveStore interface {
	Create(ctx context.Context, m *models.OpenMove) error
	Find(ctx context.Context, driverID, moveID string, slot models.Slot) (*models.OpenMove, error)
	Update(ctx context.Context, m *models.OpenMove) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*models.OpenMove, error)
}

// CompletedMoveStore moves delivered open moves into the completed table
type CompletedMoveStore interface {
	MigrateFromOpen(ctx context.Context, id uuid.UUID) error
}

// AuditStore appends move log entries
type AuditStore interface {
	Append(ctx context.Context, e *models.MoveLogEntry) error
}

// EventPublisher emits transition events for downstream consumers
type EventPublisher interface {
	PublishTransition(ctx context.Context, ev models.TransitionEvent) error
}
