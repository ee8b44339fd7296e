package entity

import "time"

// CaseReassignment is an append-only override of a step's holder.
// The latest record per (CaseNo, StepID) is authoritative.
type CaseReassignment struct {
	ID                int64         `json:"id"`
	CaseNo            string        `json:"case_no"`
	StepID            string        `json:"step_id"`
	UserID            *int64        `json:"user_id,omitempty"`
	RoleID            *int64        `json:"role_id,omitempty"`
	PreviousUserID    *int64        `json:"previous_user_id,omitempty"`
	RolesAtAssignment []RoleSummary `json:"roles_at_assignment"`
	AssignedByRoles   []RoleSummary `json:"assigned_by_roles"`
	CreatedBy         int64         `json:"created_by"`
	CreatedOn         time.Time     `json:"created_on"`
}

// IsRevoked reports whether the record names neither a user nor a role
func (r *CaseReassignment) IsRevoked() bool {
	return r.UserID == nil && r.RoleID == nil
}
