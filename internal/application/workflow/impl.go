package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/dispatcher"
	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	"github.com/garyjia/medallion-bpm/internal/domain/event"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// Repositories groups the storage ports the engine reads and appends to
type Repositories struct {
	CaseTypes     port.CaseTypeRepository
	Steps         port.StepConfigRepository
	Cases         port.CaseRepository
	Reassignments port.ReassignmentRepository
	Users         port.UserDirectory
	SLAs          port.SLARepository
}

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	repos      Repositories
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time

	// attempts to allocate a case number before giving up
	numberAttempts int

	loader     *ChainLoader
	walker     *Walker
	propagator *Propagator
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher. Events are dispatched inside the
// transition's transaction; a failing handler aborts the transition.
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for record timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithNumberAttempts sets how often case creation retries a case number
// taken by a concurrent request
func WithNumberAttempts(n int) EngineOption {
	return func(e *engineImpl) {
		if n > 0 {
			e.numberAttempts = n
		}
	}
}

// NewEngine creates a new workflow engine
func NewEngine(repos Repositories, txManager port.TransactionManager, opts ...EngineOption) WorkflowEngine {
	e := &engineImpl{
		repos:          repos,
		txManager:      txManager,
		logger:         nopLogger{},
		now:            time.Now,
		numberAttempts: 3,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.loader = NewChainLoader(repos.Steps)
	e.walker = NewWalker(
		e.loader,
		NewAccessResolver(repos.Reassignments, repos.Users),
		NewAssigneeResolver(repos.Reassignments, repos.Users),
	)
	e.propagator = NewPropagator(repos.Cases, repos.Reassignments, repos.Users, e.loader, txManager, e.now)
	return e
}

// CreateCase opens a new case on the case type's first step
func (e *engineImpl) CreateCase(ctx context.Context, prefix string, actor entity.Actor) (*entity.Case, error) {
	var created *entity.Case
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ct, err := e.repos.CaseTypes.GetByPrefix(txCtx, prefix)
		if err != nil {
			return err
		}
		if ct == nil {
			return fmt.Errorf("%w: %s", domainwf.ErrCaseTypeNotFound, prefix)
		}

		chain, err := e.loader.Load(txCtx, ct.ID)
		if err != nil {
			return err
		}

		c := &entity.Case{
			CaseTypeID:     ct.ID,
			Status:         entity.CaseStatusOpen,
			AssigneeUserID: &actor.UserID,
			CreatedBy:      &actor.UserID,
			CreatedOn:      e.now(),
		}

		if first := chain.First(); first != nil {
			if first.DefaultAssigneeID != nil && *first.DefaultAssigneeID != actor.UserID {
				return fmt.Errorf("%w: user %d is not the assignee of first step %s",
					domainwf.ErrPermissionDenied, actor.UserID, first.StepID)
			}
			if len(first.RequiredRoles) > 0 && !actor.HasAnyRole(first.RequiredRoles) {
				return fmt.Errorf("%w: user %d lacks the roles of first step %s",
					domainwf.ErrPermissionDenied, actor.UserID, first.StepID)
			}
			c.StepConfigID = &first.ID
			c.StepID = first.StepID
			if c.SLAID, err = e.slaFor(txCtx, first.ID); err != nil {
				return err
			}
		}

		if c.CaseNo, err = e.allocateCaseNumber(txCtx, ct); err != nil {
			return err
		}
		if err := e.repos.Cases.Append(txCtx, c); err != nil {
			return err
		}

		created = c
		return e.emit(txCtx, event.TypeCaseCreated, c, &actor.UserID, map[string]interface{}{
			"case_type": ct.Prefix,
			"step_id":   c.StepID,
			"status":    c.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Case created", "case_no", created.CaseNo, "step_id", created.StepID, "user_id", actor.UserID)
	return created, nil
}

// allocateCaseNumber reserves the number after the type's latest one
func (e *engineImpl) allocateCaseNumber(ctx context.Context, ct *entity.CaseType) (string, error) {
	var lastErr error
	for attempt := 0; attempt < e.numberAttempts; attempt++ {
		latest, err := e.repos.Cases.LatestCaseNumber(ctx, ct.ID)
		if err != nil {
			return "", err
		}
		caseNo, err := NextCaseNumber(ct.Prefix, latest)
		if err != nil {
			return "", err
		}

		err = e.repos.Cases.ReserveCaseNumber(ctx, caseNo, ct.ID)
		if err == nil {
			return caseNo, nil
		}
		if !errors.Is(err, domainwf.ErrDuplicateCaseNumber) {
			return "", err
		}
		lastErr = err
		e.logger.Info("Case number taken, retrying", "case_no", caseNo, "attempt", attempt+1)
	}
	return "", lastErr
}

// MoveToNextStep follows the next pointer of the current step
func (e *engineImpl) MoveToNextStep(ctx context.Context, caseNo string, actor entity.Actor) (*MoveResult, error) {
	return e.advance(ctx, caseNo, actor, false)
}

// Advance moves forward, closing the case when the chain has ended
func (e *engineImpl) Advance(ctx context.Context, caseNo string, actor entity.Actor) (*MoveResult, error) {
	return e.advance(ctx, caseNo, actor, true)
}

func (e *engineImpl) advance(ctx context.Context, caseNo string, actor entity.Actor, closeAtEnd bool) (*MoveResult, error) {
	var result *MoveResult
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := e.loadOpen(txCtx, caseNo)
		if err != nil {
			return err
		}
		chain, err := e.loader.Load(txCtx, c.CaseTypeID)
		if err != nil {
			return err
		}

		adv := domainwf.Advance{Outcome: domainwf.OutcomeTerminal}
		if c.StepConfigID != nil {
			current, ok := chain.ByID(*c.StepConfigID)
			if !ok {
				return fmt.Errorf("%w: step config %d", domainwf.ErrStepNotFound, *c.StepConfigID)
			}
			adv = chain.Next(current)
		}

		switch adv.Outcome {
		case domainwf.OutcomeStep:
			result, err = e.moveTo(txCtx, c, adv.Step, domainwf.TriggerAdvance, event.TypeCaseMoved, actor)
			return err
		case domainwf.OutcomeDangling:
			return fmt.Errorf("%w: next step %s is not configured", domainwf.ErrStepNotFound, adv.Missing)
		default:
			if !closeAtEnd {
				return fmt.Errorf("%w: %s", domainwf.ErrTerminalStep, caseNo)
			}
			closed, err := e.closeRecord(txCtx, c, actor)
			if err != nil {
				return err
			}
			result = &MoveResult{Case: closed, Closed: true}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if result.Closed {
		e.logger.Info("Case closed at final step", "case_no", caseNo, "user_id", actor.UserID)
	} else {
		e.logger.Info("Case moved", "case_no", caseNo, "step_id", result.Step.StepID, "status", result.Case.Status)
	}
	return result, nil
}

// MoveToStep jumps to an explicit step, keeping the status
func (e *engineImpl) MoveToStep(ctx context.Context, caseNo, stepID string, actor entity.Actor) (*MoveResult, error) {
	var result *MoveResult
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := e.loadOpen(txCtx, caseNo)
		if err != nil {
			return err
		}
		chain, err := e.loader.Load(txCtx, c.CaseTypeID)
		if err != nil {
			return err
		}
		step, ok := chain.ByStepID(stepID)
		if !ok {
			return fmt.Errorf("%w: step %s", domainwf.ErrStepNotFound, stepID)
		}
		result, err = e.moveTo(txCtx, c, step, domainwf.TriggerJump, event.TypeCaseJumped, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Case moved to step", "case_no", caseNo, "step_id", stepID)
	return result, nil
}

// moveTo appends a record placing the case on step with the step's default holder
func (e *engineImpl) moveTo(
	ctx context.Context,
	c *entity.Case,
	step *entity.StepConfig,
	trigger domainwf.Trigger,
	evtType event.Type,
	actor entity.Actor,
) (*MoveResult, error) {
	state, err := e.fire(ctx, c, trigger)
	if err != nil {
		return nil, err
	}

	next := c.Successor(&actor.UserID, e.now())
	next.Status = state.String()
	next.StepConfigID = &step.ID
	next.StepID = step.StepID
	next.AssigneeUserID = step.DefaultAssigneeID
	next.AssigneeRoleID = step.PrimaryRoleID()
	if next.SLAID, err = e.slaFor(ctx, step.ID); err != nil {
		return nil, err
	}

	if err := e.repos.Cases.Append(ctx, next); err != nil {
		return nil, err
	}
	if err := e.emit(ctx, evtType, next, &actor.UserID, map[string]interface{}{
		"from_step_id": c.StepID,
		"step_id":      step.StepID,
		"status":       next.Status,
	}); err != nil {
		return nil, err
	}
	return &MoveResult{Case: next, Step: step}, nil
}

// CloseCase ends the case
func (e *engineImpl) CloseCase(ctx context.Context, caseNo string, actor entity.Actor) (*entity.Case, error) {
	var closed *entity.Case
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := e.loadOpen(txCtx, caseNo)
		if err != nil {
			return err
		}
		closed, err = e.closeRecord(txCtx, c, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Case closed", "case_no", caseNo, "user_id", actor.UserID)
	return closed, nil
}

func (e *engineImpl) closeRecord(ctx context.Context, c *entity.Case, actor entity.Actor) (*entity.Case, error) {
	state, err := e.fire(ctx, c, domainwf.TriggerClose)
	if err != nil {
		return nil, err
	}

	next := c.Successor(&actor.UserID, e.now())
	next.Status = state.String()
	if err := e.repos.Cases.Append(ctx, next); err != nil {
		return nil, err
	}
	if err := e.emit(ctx, event.TypeCaseClosed, next, &actor.UserID, map[string]interface{}{
		"step_id": next.StepID,
		"status":  next.Status,
	}); err != nil {
		return nil, err
	}
	return next, nil
}

// Reassign validates the case can change hands and runs the propagator in
// the same transaction
func (e *engineImpl) Reassign(ctx context.Context, req ReassignRequest) (*ReassignResult, error) {
	var result *ReassignResult
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := e.loadOpen(txCtx, req.CaseNo)
		if err != nil {
			return err
		}
		if _, err := e.fire(txCtx, c, domainwf.TriggerReassign); err != nil {
			return err
		}

		if result, err = e.propagator.Reassign(txCtx, req); err != nil {
			return err
		}
		if result.NoOp {
			return nil
		}

		steps := make([]string, 0, len(result.Reassignments))
		for _, ra := range result.Reassignments {
			steps = append(steps, ra.StepID)
		}
		payload := map[string]interface{}{
			"step_id":           c.StepID,
			"propagated_steps":  steps,
			"current_step_only": req.CurrentStepOnly,
		}
		if req.NewUserID != nil {
			payload["user_id"] = *req.NewUserID
		}
		if req.NewRoleID != nil {
			payload["role_id"] = *req.NewRoleID
		}
		return e.emit(txCtx, event.TypeCaseReassigned, result.Case, &req.Actor.UserID, payload)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Case reassignment handled",
		"case_no", req.CaseNo,
		"no_op", result.NoOp,
		"reassignments", len(result.Reassignments))
	return result, nil
}

// Escalate hands the case to the SLA level's holder. Escalations are system
// transitions and carry no creator.
func (e *engineImpl) Escalate(ctx context.Context, caseNo string, sla *entity.SLA) (*entity.Case, error) {
	var escalated *entity.Case
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := e.loadOpen(txCtx, caseNo)
		if err != nil {
			return err
		}
		if c.StepConfigID == nil || *c.StepConfigID != sla.StepConfigID {
			return fmt.Errorf("%w: sla %d does not cover the current step of %s",
				domainwf.ErrInvalidTransition, sla.ID, caseNo)
		}
		state, err := e.fire(txCtx, c, domainwf.TriggerEscalate)
		if err != nil {
			return err
		}

		next := c.Successor(nil, e.now())
		next.Status = state.String()
		next.AssigneeUserID = sla.UserID
		next.AssigneeRoleID = sla.RoleID
		next.SLAID = &sla.ID
		if err := e.repos.Cases.Append(txCtx, next); err != nil {
			return err
		}

		escalated = next
		return e.emit(txCtx, event.TypeCaseEscalated, next, nil, map[string]interface{}{
			"sla_id":           sla.ID,
			"escalation_level": sla.EscalationLevel,
			"step_id":          next.StepID,
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Case escalated", "case_no", caseNo, "sla_id", sla.ID, "level", sla.EscalationLevel)
	return escalated, nil
}

// WalkChain walks the case's chain for the actor. Read-only.
func (e *engineImpl) WalkChain(ctx context.Context, caseNo string, actor entity.Actor) (*ChainView, error) {
	c, err := e.GetCase(ctx, caseNo)
	if err != nil {
		return nil, err
	}
	return e.walker.Walk(ctx, c, actor)
}

// GetCase returns the current record of a case
func (e *engineImpl) GetCase(ctx context.Context, caseNo string) (*entity.Case, error) {
	c, err := e.repos.Cases.GetLatest(ctx, caseNo)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrCaseNotFound, caseNo)
	}
	return c, nil
}

// History returns every record of a case, newest first
func (e *engineImpl) History(ctx context.Context, caseNo string) ([]*entity.Case, error) {
	records, err := e.repos.Cases.ListHistory(ctx, caseNo)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrCaseNotFound, caseNo)
	}
	return records, nil
}

// loadOpen reads the current record and rejects closed cases
func (e *engineImpl) loadOpen(ctx context.Context, caseNo string) (*entity.Case, error) {
	c, err := e.GetCase(ctx, caseNo)
	if err != nil {
		return nil, err
	}
	if c.IsClosed() {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrCaseClosed, caseNo)
	}
	return c, nil
}

// fire runs the trigger on a machine positioned at the record's status
func (e *engineImpl) fire(ctx context.Context, c *entity.Case, trigger domainwf.Trigger) (domainwf.State, error) {
	state := domainwf.State(c.Status)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: case %s has status %q", domainwf.ErrInvalidState, c.CaseNo, c.Status)
	}

	machine := BuildCaseStateMachine(state)
	if err := machine.Fire(ctx, trigger); err != nil {
		if state.IsTerminal() {
			return "", fmt.Errorf("%w: %s", domainwf.ErrCaseClosed, c.CaseNo)
		}
		return "", err
	}
	return machine.State(), nil
}

// slaFor returns the level 1 SLA of the step, if one is active
func (e *engineImpl) slaFor(ctx context.Context, stepConfigID int64) (*int64, error) {
	sla, err := e.repos.SLAs.GetForStep(ctx, stepConfigID, 1)
	if err != nil {
		return nil, err
	}
	if sla == nil {
		return nil, nil
	}
	return &sla.ID, nil
}

func (e *engineImpl) emit(ctx context.Context, typ event.Type, c *entity.Case, actorID *int64, payload map[string]interface{}) error {
	if e.dispatcher == nil {
		return nil
	}
	evt := event.NewEventWithCorrelation(typ, c.CaseNo, actorID, payload, event.CorrelationFromContext(ctx))
	return e.dispatcher.Dispatch(ctx, evt)
}
