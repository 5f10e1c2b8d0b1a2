package models

import (
	"time"

	"github.com/google/uuid"
)

// MoveStatus is the operational status of an assigned move
type MoveStatus string

const (
	StatusPendingDriverArrival MoveStatus = "PENDING_DRIVER_ARRIVAL"
	StatusSearching            MoveStatus = "SEARCHING"
	StatusOTW                  MoveStatus = "OTW"
	StatusDroppingOff          MoveStatus = "DROPPING_OFF"
	StatusDelivered            MoveStatus = "DELIVERED"
	StatusIssue                MoveStatus = "ISSUE"
	StatusDamaged              MoveStatus = "DAMAGED"
	StatusIssueOTW             MoveStatus = "ISSUE_OTW"
)

// Slot distinguishes a driver's active move from the pre-staged one
type Slot string

const (
	SlotCurrent Slot = "CURRENT"
	SlotNext    Slot = "NEXT"
)

// OpenMove is the durable local projection of a move assigned to a driver
// Maps to: open_moves table
type OpenMove struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	MoveID          string     `db:"move_id" json:"move_id"`
	RowID           *int64     `db:"row_id" json:"row_id,omitempty"`
	ContainerNumber *string    `db:"container_number" json:"container_number,omitempty"`
	LoadKind        LoadKind   `db:"load_status" json:"load_status"`
	Priority        string     `db:"priority" json:"priority"`
	Customer        string     `db:"customer" json:"customer"`
	Origin          string     `db:"origin" json:"origin"`
	Destination     string     `db:"destination" json:"destination"`
	CarrierCode     string     `db:"carrier_code" json:"carrier_code"`
	SheetStatus     string     `db:"sheet_status" json:"sheet_status"`
	DriverID        string     `db:"driver_id" json:"driver_id"`
	Slot            Slot       `db:"slot" json:"slot"`
	Status          MoveStatus `db:"status" json:"status"`
	TruckNumber     string     `db:"truck_number" json:"truck_number"`
	LicensePlate    string     `db:"truck_license_plate" json:"truck_license_plate"`
	PickupPicture   *string    `db:"pic_origin" json:"pic_origin,omitempty"`
	DropoffPicture  *string    `db:"pic_destination" json:"pic_destination,omitempty"`

	// True when this assignment wrote the carrier code into the log
	CarrierAssigned bool `db:"carrier_assigned" json:"carrier_assigned"`

	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`
}

// Container returns the container number or "" for bobtails
func (o *OpenMove) Container() string {
	if o.ContainerNumber == nil {
		return ""
	}
	return *o.ContainerNumber
}

// CompletedMove has the same shape as OpenMove; append-only
// Maps to: completed_moves table
type CompletedMove struct {
	OpenMove
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

// PictureSide selects which picture slot an upload fills
type PictureSide string

const (
	PicturePickup  PictureSide = "pickup"
	PictureDropoff PictureSide = "dropoff"
)
