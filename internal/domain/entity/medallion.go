package entity

import "time"

// Medallion is the minimal medallion reference the newmed flow maintains
type Medallion struct {
	ID              int64      `json:"id"`
	Number          string     `json:"medallion_number"`
	Type            string     `json:"medallion_type"`
	Status          string     `json:"medallion_status"`
	OwnerID         *int64     `json:"owner_id,omitempty"`
	ValidityEndDate *time.Time `json:"validity_end_date,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Medallion status values
const (
	MedallionStatusInProgress = "IN_PROGRESS"
	MedallionStatusActive     = "ACTIVE"
)
