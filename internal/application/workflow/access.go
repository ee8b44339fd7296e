package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// AccessSource names the rule that decided an access check
type AccessSource string

const (
	SourceUserReassignment AccessSource = "user_reassignment"
	SourceRoleReassignment AccessSource = "role_reassignment"
	SourceRevoked          AccessSource = "revoked"
	SourceDefaultAssignee  AccessSource = "default_assignee"
	SourceRequiredRoles    AccessSource = "required_roles"
	SourceUnknownStep      AccessSource = "unknown_step"
)

// AccessDecision is the result of resolving who holds a case step
type AccessDecision struct {
	HasAccess     bool                 `json:"has_access"`
	AssignedUser  *entity.UserSummary  `json:"current_assignee_user"`
	AssignedRoles []entity.RoleSummary `json:"current_assignee_role"`
	Source        AccessSource         `json:"source"`
}

// AccessResolver decides whether an actor may act on a case step. The
// reassignment log wins over static step configuration. Nothing is cached;
// every call reads the latest reassignment.
type AccessResolver struct {
	reassignments port.ReassignmentRepository
	users         port.UserDirectory
}

// NewAccessResolver creates a new access resolver
func NewAccessResolver(reassignments port.ReassignmentRepository, users port.UserDirectory) *AccessResolver {
	return &AccessResolver{
		reassignments: reassignments,
		users:         users,
	}
}

// Resolve applies, first match wins: user reassignment, role reassignment,
// revoked reassignment, default assignee, required roles. A step the chain
// does not know is denied.
func (r *AccessResolver) Resolve(ctx context.Context, caseNo, stepID string, actor entity.Actor, chain *domainwf.Chain) (*AccessDecision, error) {
	latest, err := r.reassignments.GetLatest(ctx, caseNo, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reassignment: %w", err)
	}

	if latest != nil {
		switch {
		case latest.UserID != nil:
			user, err := r.userSummary(ctx, *latest.UserID)
			if err != nil {
				return nil, err
			}
			roles, err := r.roles(ctx, latest.RoleID)
			if err != nil {
				return nil, err
			}
			return &AccessDecision{
				HasAccess:     *latest.UserID == actor.UserID,
				AssignedUser:  user,
				AssignedRoles: roles,
				Source:        SourceUserReassignment,
			}, nil

		case latest.RoleID != nil:
			roles, err := r.roles(ctx, latest.RoleID)
			if err != nil {
				return nil, err
			}
			return &AccessDecision{
				HasAccess:     actor.HasRole(*latest.RoleID),
				AssignedRoles: roles,
				Source:        SourceRoleReassignment,
			}, nil

		default:
			return &AccessDecision{AssignedRoles: []entity.RoleSummary{}, Source: SourceRevoked}, nil
		}
	}

	step, ok := chain.ByStepID(stepID)
	if !ok {
		return &AccessDecision{AssignedRoles: []entity.RoleSummary{}, Source: SourceUnknownStep}, nil
	}

	if step.DefaultAssigneeID != nil {
		user, err := r.userSummary(ctx, *step.DefaultAssigneeID)
		if err != nil {
			return nil, err
		}
		return &AccessDecision{
			HasAccess:     *step.DefaultAssigneeID == actor.UserID,
			AssignedUser:  user,
			AssignedRoles: step.RequiredRoles,
			Source:        SourceDefaultAssignee,
		}, nil
	}

	return &AccessDecision{
		HasAccess:     actor.HasAnyRole(step.RequiredRoles),
		AssignedRoles: step.RequiredRoles,
		Source:        SourceRequiredRoles,
	}, nil
}

func (r *AccessResolver) userSummary(ctx context.Context, id int64) (*entity.UserSummary, error) {
	user, err := r.users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %d: %w", id, err)
	}
	return user.Summary(), nil
}

func (r *AccessResolver) roles(ctx context.Context, roleID *int64) ([]entity.RoleSummary, error) {
	if roleID == nil {
		return []entity.RoleSummary{}, nil
	}
	roles, err := r.users.GetRoles(ctx, []int64{*roleID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role %d: %w", *roleID, err)
	}
	return roles, nil
}
