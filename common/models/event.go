package models

import "time"

// TransitionEvent is emitted after every engine transition for downstream consumers
type TransitionEvent struct {
	Action      string    `json:"action"`
	Actor       string    `json:"actor"`
	DriverID    string    `json:"driver_id"`
	CarrierCode string    `json:"carrier_code"`
	MoveID      string    `json:"move_id"`
	Slot        Slot      `json:"slot,omitempty"`
	Status      string    `json:"status,omitempty"`
	Step        SagaStep  `json:"saga_step"`
	Warning     string    `json:"warning,omitempty"`
	At          time.Time `json:"at"`
}
