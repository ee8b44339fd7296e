package entity

// StepConfig is one node of a case type's step chain
type StepConfig struct {
	ID                int64         `json:"id"`
	CaseTypeID        int64         `json:"case_type_id"`
	StepID            string        `json:"step_id"`
	StepName          string        `json:"step_name"`
	GroupName         string        `json:"group_name"`
	NextStepID        string        `json:"next_step_id,omitempty"` // empty at the terminal step
	RequiredRoles     []RoleSummary `json:"required_roles"`
	DefaultAssigneeID *int64        `json:"default_assignee_id,omitempty"`
	Weight            int           `json:"weight"`
}

// IsTerminal reports whether the step ends the chain
func (s *StepConfig) IsTerminal() bool {
	return s.NextStepID == ""
}

// HasRole reports whether the role is one of the step's required roles
func (s *StepConfig) HasRole(roleID int64) bool {
	for _, r := range s.RequiredRoles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// PrimaryRoleID returns the first required role, used as the case's role
// holder when the case moves onto this step
func (s *StepConfig) PrimaryRoleID() *int64 {
	if len(s.RequiredRoles) == 0 {
		return nil
	}
	id := s.RequiredRoles[0].ID
	return &id
}

// FirstStep is the per-case-type entry pointer. A nil StepConfigID means
// every step of the case type is eligible in parallel.
type FirstStep struct {
	CaseTypeID   int64  `json:"case_type_id"`
	StepConfigID *int64 `json:"step_config_id,omitempty"`
}
