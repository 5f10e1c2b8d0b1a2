package models

// Synthetic move ids offered at the head of every candidate list
const (
	MoveStandby = "STANDBY"
	MoveBobtail = "BOBTAIL"
)

// LoadKind is the cargo state of a move
type LoadKind string

const (
	LoadFull    LoadKind = "Full"
	LoadEmpty   LoadKind = "Empty"
	LoadBobtail LoadKind = "Bobtail"
)

// Priority values used by the move log
const (
	PriorityHigh     = "HP"
	PrioritySecond   = "2P"
	PriorityStandard = "ST"
)

// Sheet status values written to the external log
const (
	SheetStatusOpen      = "Open"
	SheetStatusOTW       = "OTW"
	SheetStatusIssue     = "Issue"
	SheetStatusCompleted = "Completed"
)

// Move is one row of the external open move log.
// The log owns it; this process only mirrors it.
type Move struct {
	ID              string   `json:"move_id"`
	RowID           int64    `json:"row_id"`
	ContainerNumber string   `json:"container_number,omitempty"`
	LoadKind        LoadKind `json:"load_status"`
	Priority        string   `json:"priority"`
	Customer        string   `json:"customer"`
	Origin          string   `json:"origin"`
	Destination     string   `json:"destination"`
	CarrierCode     string   `json:"carrier_code,omitempty"`
	TruckNumber     string   `json:"truck_number,omitempty"`
	DriverID        string   `json:"driver_id,omitempty"`
	Status          string   `json:"status,omitempty"`
	DetailedStatus  string   `json:"detailed_status,omitempty"`
	Comments        string   `json:"comments,omitempty"`
}

// Claimed reports whether a driver already holds the move
func (m Move) Claimed() bool {
	return m.DriverID != ""
}

// IsSynthetic reports whether id is STANDBY or BOBTAIL
func IsSynthetic(id string) bool {
	return id == MoveStandby || id == MoveBobtail
}

// RowUpdate is a sparse write to a log row.
// nil leaves the column untouched, a pointer to "" clears it.
type RowUpdate struct {
	CarrierCode    *string `json:"carrier_code,omitempty"`
	DriverID       *string `json:"driver_id,omitempty"`
	TruckNumber    *string `json:"truck_number,omitempty"`
	Status         *string `json:"status,omitempty"`
	DetailedStatus *string `json:"detailed_status,omitempty"`
	Comments       *string `json:"comments,omitempty"`
}

// Empty reports whether the update touches no column
func (u RowUpdate) Empty() bool {
	return u.CarrierCode == nil && u.DriverID == nil && u.TruckNumber == nil &&
		u.Status == nil && u.DetailedStatus == nil && u.Comments == nil
}

// Apply returns a copy of m with the update applied
func (u RowUpdate) Apply(m Move) Move {
	if u.CarrierCode != nil {
		m.CarrierCode = *u.CarrierCode
	}
	if u.DriverID != nil {
		m.DriverID = *u.DriverID
	}
	if u.TruckNumber != nil {
		m.TruckNumber = *u.TruckNumber
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.DetailedStatus != nil {
		m.DetailedStatus = *u.DetailedStatus
	}
	if u.Comments != nil {
		m.Comments = *u.Comments
	}
	return m
}

// Str returns a pointer to s, for building RowUpdate values
func Str(s string) *string {
	return &s
}
