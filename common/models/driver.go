package models

import (
	"regexp"
)

// ActorServer is recorded for transitions the system performs on its own
const ActorServer = "SERVER"

var driverIDPattern = regexp.MustCompile(`^[A-Z]{2}-[0-9]{4}$`)

// ValidDriverID reports whether id is two uppercase letters, a hyphen and four digits
func ValidDriverID(id string) bool {
	return driverIDPattern.MatchString(id)
}

// DriverPrefix returns the carrier prefix of a valid driver id
func DriverPrefix(id string) string {
	if len(id) < 2 {
		return ""
	}
	return id[:2]
}

// Driver is a validated driver id resolved to its carrier
type Driver struct {
	ID          string `json:"driver_id"`
	CarrierCode string `json:"carrier_code"`
}

// DriverSnapshot is the carrier's authoritative view of a driver
type DriverSnapshot struct {
	Name             string `json:"driver_name"`
	AssignedCustomer string `json:"assigned_customer"`
	TruckNumber      string `json:"truck_number"`
	LicensePlate     string `json:"license_plate"`
	CurrentMoveID    string `json:"current_move_id"`
	NextMoveID       string `json:"next_move_id"`
}

// HasCurrent reports whether the carrier holds a current move for the driver
func (s DriverSnapshot) HasCurrent() bool {
	return s.CurrentMoveID != ""
}

// HasNext reports whether the carrier holds a next move for the driver
func (s DriverSnapshot) HasNext() bool {
	return s.NextMoveID != ""
}

// Actor is the user acting through the upstream proxy
type Actor struct {
	Email    string `json:"email"`
	Location string `json:"location"`
	Admin    bool   `json:"admin"`
}

// Name returns the audit name of the actor
func (a Actor) Name() string {
	if a.Email == "" {
		return ActorServer
	}
	return a.Email
}
