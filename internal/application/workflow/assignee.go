package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// OriginalAssignee describes who held a step before its latest reassignment
type OriginalAssignee struct {
	HasReassignment bool                 `json:"has_reassignment"`
	User            *entity.UserSummary  `json:"original_assignee_user"`
	Roles           []entity.RoleSummary `json:"original_assignee_roles"`
	AssignedBy      *entity.UserSummary  `json:"assigned_by_user,omitempty"`
	ReassignedOn    *time.Time           `json:"reassignment_date,omitempty"`
}

// AssigneeResolver reads the reassignment log for display. It never takes
// part in access decisions.
type AssigneeResolver struct {
	reassignments port.ReassignmentRepository
	users         port.UserDirectory
}

// NewAssigneeResolver creates a new original-assignee resolver
func NewAssigneeResolver(reassignments port.ReassignmentRepository, users port.UserDirectory) *AssigneeResolver {
	return &AssigneeResolver{
		reassignments: reassignments,
		users:         users,
	}
}

// Original returns the holder snapshot recorded by the latest reassignment
// of the step
func (r *AssigneeResolver) Original(ctx context.Context, caseNo, stepID string) (*OriginalAssignee, error) {
	latest, err := r.reassignments.GetLatest(ctx, caseNo, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reassignment: %w", err)
	}
	if latest == nil {
		return &OriginalAssignee{Roles: []entity.RoleSummary{}}, nil
	}

	out := &OriginalAssignee{
		HasReassignment: true,
		Roles:           latest.RolesAtAssignment,
		ReassignedOn:    &latest.CreatedOn,
	}
	if out.Roles == nil {
		out.Roles = []entity.RoleSummary{}
	}

	if latest.PreviousUserID != nil {
		user, err := r.users.GetUser(ctx, *latest.PreviousUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve original user: %w", err)
		}
		out.User = user.Summary()
	}

	creator, err := r.users.GetUser(ctx, latest.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reassigning user: %w", err)
	}
	out.AssignedBy = creator.Summary()

	return out, nil
}
