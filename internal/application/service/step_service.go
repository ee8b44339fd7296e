package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/dispatcher"
	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/application/steps"
	"github.com/garyjia/medallion-bpm/internal/application/workflow"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	"github.com/garyjia/medallion-bpm/internal/domain/event"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// SubStepView is a walked step with its fetched data
type SubStepView struct {
	*workflow.StepView
	StepData           interface{} `json:"step_data"`
	IsCurrentStep      bool        `json:"is_current_step"`
	HasAlreadyBeenUsed bool        `json:"has_already_been_used"`
}

// StepGroupView is a display group of sub steps
type StepGroupView struct {
	StepName string         `json:"step_name"`
	SubSteps []*SubStepView `json:"sub_steps"`
}

// CaseInfo is the header of a case view
type CaseInfo struct {
	CaseNo          string     `json:"case_no"`
	CaseStatus      string     `json:"case_status"`
	CurrentStepID   string     `json:"current_step_id,omitempty"`
	CaseCreatedOn   time.Time  `json:"case_created_on"`
	ActionDueOn     *time.Time `json:"action_due_on,omitempty"`
	ToBeCompletedIn string     `json:"to_be_completed_in"`
}

// CaseView is everything the case screen shows
type CaseView struct {
	CaseInfo CaseInfo         `json:"case_info"`
	Parallel bool             `json:"parallel"`
	Steps    []*StepGroupView `json:"steps"`
}

// StepService runs step handlers against cases
type StepService interface {
	// CaseView walks the case's chain and attaches each step's fetch data
	CaseView(ctx context.Context, caseNo string, params map[string]string, actor entity.Actor) (*CaseView, error)

	// FetchStep runs the fetch handler of one step
	FetchStep(ctx context.Context, caseNo, stepID string, params map[string]string, actor entity.Actor) (interface{}, error)

	// ProcessStep checks the actor holds the step, runs its process handler
	// and records it on the audit trail
	ProcessStep(ctx context.Context, caseNo, stepID string, payload json.RawMessage, actor entity.Actor) (interface{}, error)
}

type stepServiceImpl struct {
	engine     workflow.WorkflowEngine
	loader     *workflow.ChainLoader
	access     *workflow.AccessResolver
	cases      port.CaseRepository
	sla        SLAService
	registry   *steps.Registry
	dispatcher dispatcher.Dispatcher
	txManager  port.TransactionManager
	logger     Logger
}

// NewStepService creates a new StepService
func NewStepService(
	engine workflow.WorkflowEngine,
	loader *workflow.ChainLoader,
	access *workflow.AccessResolver,
	cases port.CaseRepository,
	sla SLAService,
	registry *steps.Registry,
	d dispatcher.Dispatcher,
	txManager port.TransactionManager,
	logger Logger,
) StepService {
	return &stepServiceImpl{
		engine:     engine,
		loader:     loader,
		access:     access,
		cases:      cases,
		sla:        sla,
		registry:   registry,
		dispatcher: d,
		txManager:  txManager,
		logger:     logger,
	}
}

// CaseView runs in a transaction because fetch handlers may link the case
// to a new entity on first view
func (s *stepServiceImpl) CaseView(ctx context.Context, caseNo string, params map[string]string, actor entity.Actor) (*CaseView, error) {
	var view *CaseView
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := s.engine.GetCase(txCtx, caseNo)
		if err != nil {
			return err
		}
		walked, err := s.engine.WalkChain(txCtx, caseNo, actor)
		if err != nil {
			return err
		}

		view = &CaseView{
			CaseInfo: CaseInfo{
				CaseNo:        c.CaseNo,
				CaseStatus:    c.Status,
				CurrentStepID: c.StepID,
				CaseCreatedOn: c.CreatedOn,
			},
			Parallel: walked.Parallel,
			Steps:    make([]*StepGroupView, 0, len(walked.Groups)),
		}

		status, err := s.sla.Status(txCtx, c)
		if err != nil {
			return err
		}
		if status != nil {
			view.CaseInfo.ActionDueOn = &status.DueDate
			view.CaseInfo.ToBeCompletedIn = status.TimeLeft
		}

		for _, g := range walked.Groups {
			group := &StepGroupView{StepName: g.GroupName, SubSteps: make([]*SubStepView, 0, len(g.SubSteps))}
			for _, st := range g.SubSteps {
				sub, err := s.subStep(txCtx, c, st, params, actor)
				if err != nil {
					return err
				}
				group.SubSteps = append(group.SubSteps, sub)
			}
			view.Steps = append(view.Steps, group)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *stepServiceImpl) subStep(ctx context.Context, c *entity.Case, st *workflow.StepView, params map[string]string, actor entity.Actor) (*SubStepView, error) {
	sub := &SubStepView{
		StepView:      st,
		IsCurrentStep: c.StepConfigID != nil && *c.StepConfigID == st.StepConfigID,
	}

	used, err := s.cases.HasVisitedStep(ctx, c.CaseNo, st.StepConfigID)
	if err != nil {
		return nil, fmt.Errorf("check step usage: %w", err)
	}
	sub.HasAlreadyBeenUsed = used

	if s.registry.Has(st.StepID, steps.OperationFetch) {
		data, err := s.registry.Run(ctx, st.StepID, steps.OperationFetch, steps.Request{
			CaseNo: c.CaseNo,
			Params: params,
			Actor:  actor,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch step %s: %w", st.StepID, err)
		}
		sub.StepData = data
	}
	return sub, nil
}

func (s *stepServiceImpl) FetchStep(ctx context.Context, caseNo, stepID string, params map[string]string, actor entity.Actor) (interface{}, error) {
	var data interface{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, _, err := s.resolveStep(txCtx, caseNo, stepID); err != nil {
			return err
		}
		var err error
		data, err = s.registry.Run(txCtx, stepID, steps.OperationFetch, steps.Request{
			CaseNo: caseNo,
			Params: params,
			Actor:  actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *stepServiceImpl) ProcessStep(ctx context.Context, caseNo, stepID string, payload json.RawMessage, actor entity.Actor) (interface{}, error) {
	var result interface{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, chain, err := s.resolveStep(txCtx, caseNo, stepID)
		if err != nil {
			return err
		}
		if c.IsClosed() {
			return fmt.Errorf("%w: %s", domainwf.ErrCaseClosed, caseNo)
		}
		if !s.registry.Has(stepID, steps.OperationProcess) {
			return fmt.Errorf("%w: step %s has no process handler", domainwf.ErrHandlerNotFound, stepID)
		}

		decision, err := s.access.Resolve(txCtx, caseNo, stepID, actor, chain)
		if err != nil {
			return err
		}
		if !decision.HasAccess {
			return fmt.Errorf("%w: user %d does not hold step %s of case %s",
				domainwf.ErrPermissionDenied, actor.UserID, stepID, caseNo)
		}

		result, err = s.registry.Run(txCtx, stepID, steps.OperationProcess, steps.Request{
			CaseNo:  caseNo,
			Payload: payload,
			Actor:   actor,
		})
		if err != nil {
			return err
		}

		if s.dispatcher == nil {
			return nil
		}
		step, _ := chain.ByStepID(stepID)
		evt := event.NewEventWithCorrelation(event.TypeStepProcessed, caseNo, &actor.UserID, map[string]interface{}{
			"step_id":       stepID,
			"step_name":     step.StepName,
			"access_source": string(decision.Source),
		}, event.CorrelationFromContext(txCtx))
		return s.dispatcher.Dispatch(txCtx, evt)
	})
	if err != nil {
		s.logger.Error("Failed to process step", "case_no", caseNo, "step_id", stepID, "user_id", actor.UserID, "error", err)
		return nil, err
	}

	s.logger.Info("Step processed", "case_no", caseNo, "step_id", stepID, "user_id", actor.UserID)
	return result, nil
}

// resolveStep loads the case and checks the step belongs to its case type
func (s *stepServiceImpl) resolveStep(ctx context.Context, caseNo, stepID string) (*entity.Case, *domainwf.Chain, error) {
	c, err := s.engine.GetCase(ctx, caseNo)
	if err != nil {
		return nil, nil, err
	}
	chain, err := s.loader.Load(ctx, c.CaseTypeID)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := chain.ByStepID(stepID); !ok {
		return nil, nil, fmt.Errorf("%w: step %s is not part of case %s", domainwf.ErrStepNotFound, stepID, caseNo)
	}
	return c, chain, nil
}
