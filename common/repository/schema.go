package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/shuttleops/movesync/common/db"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Migrate creates the tables if they do not exist
func Migrate(ctx context.Context, database *db.DB) error {
	if _, err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
