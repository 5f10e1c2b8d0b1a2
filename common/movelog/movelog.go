// Package movelog maps rows of the open move log sheet to moves.
package movelog

import (
	"context"
	"fmt"

	"github.com/shuttleops/movesync/common/clients"
	"github.com/shuttleops/movesync/common/config"
	"github.com/shuttleops/movesync/common/models"
)

// SheetAPI is the subset of the Smartsheet client the log needs
type SheetAPI interface {
	GetSheetVersion(ctx context.Context, sheetID int64) (int64, error)
	GetSheet(ctx context.Context, sheetID int64, columnIDs []int64) (*clients.Sheet, error)
	GetRow(ctx context.Context, sheetID, rowID int64) (*clients.Row, error)
	UpdateRows(ctx context.Context, sheetID int64, rows []clients.RowUpdate) error
}

// Log reads and writes moves in one sheet
type Log struct {
	api     SheetAPI
	sheetID int64
	cols    config.ColumnIDs
}

// New creates a log over sheetID
func New(api SheetAPI, sheetID int64, cols config.ColumnIDs) *Log {
	return &Log{
		api:     api,
		sheetID: sheetID,
		cols:    cols,
	}
}

// Version returns the sheet's current version
func (l *Log) Version(ctx context.Context) (int64, error) {
	return l.api.GetSheetVersion(ctx, l.sheetID)
}

// Moves fetches every row restricted to the mapped columns, in sheet order
func (l *Log) Moves(ctx context.Context) (int64, []models.Move, error) {
	sheet, err := l.api.GetSheet(ctx, l.sheetID, l.cols.All())
	if err != nil {
		return 0, nil, err
	}

	moves := make([]models.Move, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		moves = append(moves, l.toMove(row))
	}
	return sheet.Version, moves, nil
}

// Row re-reads a single row from the sheet
func (l *Log) Row(ctx context.Context, rowID int64) (models.Move, error) {
	row, err := l.api.GetRow(ctx, l.sheetID, rowID)
	if err != nil {
		return models.Move{}, err
	}
	return l.toMove(*row), nil
}

// UpdateRow applies a sparse update. An empty update makes no call.
func (l *Log) UpdateRow(ctx context.Context, rowID int64, u models.RowUpdate) error {
	if u.Empty() {
		return nil
	}

	var cells []clients.CellUpdate
	add := func(col int64, v *string) {
		if v != nil {
			cells = append(cells, clients.CellUpdate{ColumnID: col, Value: *v})
		}
	}
	add(l.cols.CarrierCode, u.CarrierCode)
	add(l.cols.DriverID, u.DriverID)
	add(l.cols.TruckNumber, u.TruckNumber)
	add(l.cols.Status, u.Status)
	add(l.cols.DetailedStatus, u.DetailedStatus)
	add(l.cols.Comments, u.Comments)

	if err := l.api.UpdateRows(ctx, l.sheetID, []clients.RowUpdate{{ID: rowID, Cells: cells}}); err != nil {
		return fmt.Errorf("failed to update row %d: %w", rowID, err)
	}
	return nil
}

func (l *Log) toMove(row clients.Row) models.Move {
	values := make(map[int64]string, len(row.Cells))
	for _, c := range row.Cells {
		values[c.ColumnID] = c.String()
	}

	return models.Move{
		ID:              values[l.cols.MoveID],
		RowID:           row.ID,
		ContainerNumber: values[l.cols.ContainerNumber],
		LoadKind:        models.LoadKind(values[l.cols.LoadStatus]),
		Priority:        values[l.cols.Priority],
		Customer:        values[l.cols.Customer],
		Origin:          values[l.cols.Origin],
		Destination:     values[l.cols.Destination],
		CarrierCode:     values[l.cols.CarrierCode],
		TruckNumber:     values[l.cols.TruckNumber],
		DriverID:        values[l.cols.DriverID],
		Status:          values[l.cols.Status],
		DetailedStatus:  values[l.cols.DetailedStatus],
		Comments:        values[l.cols.Comments],
	}
}
