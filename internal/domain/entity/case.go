package entity

import "time"

// Case status values stored on transition records
const (
	CaseStatusOpen       = "Open"
	CaseStatusInProgress = "In Progress"
	CaseStatusClosed     = "Closed"
)

// CaseType identifies a workflow family. Immutable once cases reference it.
type CaseType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"created_at"`
}

// Case is one append-only transition record. The current state of a case
// is the record with the latest CreatedOn for its CaseNo.
type Case struct {
	ID             int64     `json:"id"`
	CaseNo         string    `json:"case_no"`
	CaseTypeID     int64     `json:"case_type_id"`
	Status         string    `json:"status"`
	StepConfigID   *int64    `json:"step_config_id,omitempty"`
	StepID         string    `json:"step_id,omitempty"` // joined from the step config on read
	AssigneeUserID *int64    `json:"assignee_user_id,omitempty"`
	AssigneeRoleID *int64    `json:"assignee_role_id,omitempty"`
	SLAID          *int64    `json:"sla_id,omitempty"`
	CreatedBy      *int64    `json:"created_by,omitempty"`
	CreatedOn      time.Time `json:"created_on"`
}

// IsClosed reports whether the record is terminal
func (c *Case) IsClosed() bool {
	return c.Status == CaseStatusClosed
}

// Successor copies the record into a new, unsaved transition record.
// A nil createdBy marks a system transition.
func (c *Case) Successor(createdBy *int64, createdOn time.Time) *Case {
	return &Case{
		CaseNo:         c.CaseNo,
		CaseTypeID:     c.CaseTypeID,
		Status:         c.Status,
		StepConfigID:   c.StepConfigID,
		StepID:         c.StepID,
		AssigneeUserID: c.AssigneeUserID,
		AssigneeRoleID: c.AssigneeRoleID,
		SLAID:          c.SLAID,
		CreatedBy:      createdBy,
		CreatedOn:      createdOn,
	}
}

// CaseEntity links a case to the business object it operates on
type CaseEntity struct {
	ID              int64     `json:"id"`
	CaseNo          string    `json:"case_no"`
	EntityName      string    `json:"entity_name"`
	Identifier      string    `json:"identifier"`
	IdentifierValue string    `json:"identifier_value"`
	IsActive        bool      `json:"is_active"`
	CreatedOn       time.Time `json:"created_on"`
}

// AuditEntry is one audit trail line attached to a case
type AuditEntry struct {
	ID          int64                  `json:"id"`
	CaseNo      string                 `json:"case_no"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedBy   *int64                 `json:"created_by,omitempty"`
	CreatedOn   time.Time              `json:"created_on"`
}
