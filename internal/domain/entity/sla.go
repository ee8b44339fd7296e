package entity

import "time"

// SLA is a time limit on a step. Levels above 1 name who the case
// escalates to once the previous level runs out.
type SLA struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	StepConfigID     int64  `json:"step_config_id"`
	TimeLimitMinutes int    `json:"time_limit_minutes"`
	EscalationLevel  int    `json:"escalation_level"`
	UserID           *int64 `json:"user_id,omitempty"`
	RoleID           *int64 `json:"role_id,omitempty"`
	IsActive         bool   `json:"is_active"`
}

// DueAt returns when a record started at start breaches this SLA
func (s *SLA) DueAt(start time.Time) time.Time {
	return start.Add(time.Duration(s.TimeLimitMinutes) * time.Minute)
}
