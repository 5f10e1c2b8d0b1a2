package models

import (
	"encoding/json"
	"time"
)

// LogAction is the kind of an audit entry
type LogAction string

const (
	ActionAssign           LogAction = "ASSIGN"
	ActionUnassign         LogAction = "UNASSIGN"
	ActionDelete           LogAction = "DELETE"
	ActionGateIn           LogAction = "GATE_IN"
	ActionGateOut          LogAction = "GATE_OUT"
	ActionPictureUpload    LogAction = "PICTURE_UPLOAD"
	ActionCompleted        LogAction = "COMPLETED"
	ActionAssignedFromNext LogAction = "ASSIGNED_FROM_NEXT"
	ActionIssue            LogAction = "ISSUE"
)

// SagaStep is the furthest write that completed for one transition
type SagaStep string

const (
	StepNone    SagaStep = ""
	StepSheet   SagaStep = "sheet"
	StepStore   SagaStep = "store"
	StepCarrier SagaStep = "carrier"
)

// DetailIsNext marks audit entries for the next slot
const DetailIsNext = "IS_NEXT"

// MoveLogEntry is an immutable audit record
// Maps to: move_log table
type MoveLogEntry struct {
	ID          int64           `db:"id" json:"id"`
	Action      LogAction       `db:"action" json:"action"`
	Actor       string          `db:"actor" json:"actor"`
	DriverID    string          `db:"driver_id" json:"driver_id"`
	CarrierCode string          `db:"carrier_code" json:"carrier_code"`
	MoveID      string          `db:"move_id" json:"move_id"`
	Detail      string          `db:"detail" json:"detail,omitempty"`
	Step        SagaStep        `db:"saga_step" json:"saga_step"`
	RowPatch    json.RawMessage `db:"row_patch" json:"row_patch,omitempty"`
	Warning     string          `db:"warning" json:"warning,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
