package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// ReassignRequest hands the current step of a case to a new user or role.
// With a user, NewRoleID is recorded alongside it. Without one the request
// is a role reassignment, which only ever touches the current step.
type ReassignRequest struct {
	CaseNo          string       `json:"case_no"`
	NewUserID       *int64       `json:"user_id,omitempty"`
	NewRoleID       *int64       `json:"role_id,omitempty"`
	CurrentStepOnly bool         `json:"current_step_only"`
	Actor           entity.Actor `json:"-"`
}

// ReassignResult reports what a reassignment wrote. A no-op writes nothing.
type ReassignResult struct {
	NoOp          bool                       `json:"no_op"`
	Message       string                     `json:"message"`
	Reassignments []*entity.CaseReassignment `json:"reassignments"`
	Case          *entity.Case               `json:"case,omitempty"`
}

// Propagator writes reassignments and carries a user change forward along
// the chain while later steps are still expected to be held by the
// previous holder
type Propagator struct {
	cases         port.CaseRepository
	reassignments port.ReassignmentRepository
	users         port.UserDirectory
	loader        *ChainLoader
	txManager     port.TransactionManager
	now           func() time.Time
}

// NewPropagator creates a new reassignment propagator
func NewPropagator(
	cases port.CaseRepository,
	reassignments port.ReassignmentRepository,
	users port.UserDirectory,
	loader *ChainLoader,
	txManager port.TransactionManager,
	now func() time.Time,
) *Propagator {
	if now == nil {
		now = time.Now
	}
	return &Propagator{
		cases:         cases,
		reassignments: reassignments,
		users:         users,
		loader:        loader,
		txManager:     txManager,
		now:           now,
	}
}

// Reassign runs the reassignment in one transaction. The reassignment rows
// and the single new case record commit or roll back together.
func (p *Propagator) Reassign(ctx context.Context, req ReassignRequest) (*ReassignResult, error) {
	if req.NewUserID == nil && req.NewRoleID == nil {
		return nil, fmt.Errorf("%w: a user or a role is required", domainwf.ErrInvalidReassignment)
	}

	var result *ReassignResult
	err := p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := p.cases.GetLatest(txCtx, req.CaseNo)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %s", domainwf.ErrCaseNotFound, req.CaseNo)
		}
		if c.IsClosed() {
			return fmt.Errorf("%w: %s", domainwf.ErrCaseClosed, req.CaseNo)
		}
		if c.StepConfigID == nil {
			return fmt.Errorf("%w: case %s is not on a step", domainwf.ErrInvalidReassignment, req.CaseNo)
		}

		chain, err := p.loader.Load(txCtx, c.CaseTypeID)
		if err != nil {
			return err
		}
		current, ok := chain.ByID(*c.StepConfigID)
		if !ok {
			return fmt.Errorf("%w: step config %d", domainwf.ErrStepNotFound, *c.StepConfigID)
		}

		if err := p.validateTargets(txCtx, req); err != nil {
			return err
		}

		if req.NewUserID != nil {
			result, err = p.reassignUser(txCtx, c, chain, current, req)
		} else {
			result, err = p.reassignRole(txCtx, c, current, req)
		}
		if err != nil || result.NoOp {
			return err
		}

		next := c.Successor(&req.Actor.UserID, p.now())
		next.AssigneeUserID = req.NewUserID
		next.AssigneeRoleID = req.NewRoleID
		if err := p.cases.Append(txCtx, next); err != nil {
			return err
		}
		result.Case = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Propagator) validateTargets(ctx context.Context, req ReassignRequest) error {
	if req.NewUserID != nil {
		user, err := p.users.GetUser(ctx, *req.NewUserID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("%w: unknown user %d", domainwf.ErrInvalidReassignment, *req.NewUserID)
		}
	}
	if req.NewRoleID != nil {
		roles, err := p.users.GetRoles(ctx, []int64{*req.NewRoleID})
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			return fmt.Errorf("%w: unknown role %d", domainwf.ErrInvalidReassignment, *req.NewRoleID)
		}
	}
	return nil
}

func (p *Propagator) reassignUser(
	ctx context.Context,
	c *entity.Case,
	chain *domainwf.Chain,
	current *entity.StepConfig,
	req ReassignRequest,
) (*ReassignResult, error) {
	previous := c.AssigneeUserID
	if sameID(previous, req.NewUserID) {
		return &ReassignResult{NoOp: true, Message: "Step is already assigned to that user"}, nil
	}

	ordered := []*entity.StepConfig{current}
	if !req.CurrentStepOnly {
		var err error
		if ordered, err = chain.From(current.StepID); err != nil {
			return nil, err
		}
	}

	latest, err := p.reassignments.ListLatestByCase(ctx, c.CaseNo)
	if err != nil {
		return nil, err
	}

	result := &ReassignResult{
		Message: fmt.Sprintf("Reassignment completed starting from step %s.", current.StepID),
	}
	for i, step := range ordered {
		var holder *int64
		if i == 0 {
			holder = previous
		} else if prior, ok := latest[step.StepID]; ok {
			// a later step already handed to someone else has diverged
			if !sameID(prior.UserID, previous) {
				break
			}
			holder = prior.UserID
		} else {
			if !sameID(step.DefaultAssigneeID, previous) {
				break
			}
			holder = step.DefaultAssigneeID
		}

		ra, err := p.record(ctx, c.CaseNo, step, req, req.NewUserID, holder, step.RequiredRoles)
		if err != nil {
			return nil, err
		}
		result.Reassignments = append(result.Reassignments, ra)
	}

	return result, nil
}

func (p *Propagator) reassignRole(
	ctx context.Context,
	c *entity.Case,
	current *entity.StepConfig,
	req ReassignRequest,
) (*ReassignResult, error) {
	noop := &ReassignResult{
		NoOp:    true,
		Message: fmt.Sprintf("Step %s is already assigned to this role", current.StepID),
	}

	existing, err := p.reassignments.GetLatest(ctx, c.CaseNo, current.StepID)
	if err != nil {
		return nil, err
	}

	var ra *entity.CaseReassignment
	switch {
	case existing != nil && sameID(existing.RoleID, req.NewRoleID):
		return noop, nil
	case existing != nil:
		// a step held by a role alone snapshots that role
		fallback := current.RequiredRoles
		if existing.RoleID != nil {
			if fallback, err = p.users.GetRoles(ctx, []int64{*existing.RoleID}); err != nil {
				return nil, err
			}
		}
		ra, err = p.record(ctx, c.CaseNo, current, req, nil, existing.UserID, fallback)
	case current.HasRole(*req.NewRoleID):
		return noop, nil
	default:
		ra, err = p.record(ctx, c.CaseNo, current, req, nil, current.DefaultAssigneeID, current.RequiredRoles)
	}
	if err != nil {
		return nil, err
	}

	return &ReassignResult{
		Message:       fmt.Sprintf("Reassignment updated for step %s.", current.StepID),
		Reassignments: []*entity.CaseReassignment{ra},
	}, nil
}

// record writes one reassignment for the step. holder is who held the step
// before; its roles are snapshotted, or fallback when nobody did.
func (p *Propagator) record(
	ctx context.Context,
	caseNo string,
	step *entity.StepConfig,
	req ReassignRequest,
	newUser *int64,
	holder *int64,
	fallback []entity.RoleSummary,
) (*entity.CaseReassignment, error) {
	rolesAt := fallback
	if holder != nil {
		roles, err := p.users.UserRoles(ctx, *holder)
		if err != nil {
			return nil, err
		}
		rolesAt = roles
	}

	ra := &entity.CaseReassignment{
		CaseNo:            caseNo,
		StepID:            step.StepID,
		UserID:            newUser,
		RoleID:            req.NewRoleID,
		PreviousUserID:    holder,
		RolesAtAssignment: rolesAt,
		AssignedByRoles:   req.Actor.Roles,
		CreatedBy:         req.Actor.UserID,
		CreatedOn:         p.now(),
	}
	if err := p.reassignments.Create(ctx, ra); err != nil {
		return nil, err
	}
	return ra, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
