package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// StepView is one node of a walked chain. Access and assignee fields are
// empty for parallel case types.
type StepView struct {
	StepConfigID int64             `json:"step_config_id"`
	StepID       string            `json:"step_id"`
	StepName     string            `json:"step_name"`
	Access       *AccessDecision   `json:"access,omitempty"`
	Original     *OriginalAssignee `json:"original,omitempty"`
	NextAssignee *AccessDecision   `json:"next_assignee,omitempty"`
}

// StepGroup collects the nodes of one display group in chain order
type StepGroup struct {
	GroupName string      `json:"step_name"`
	SubSteps  []*StepView `json:"sub_steps"`
}

// ChainView is the grouped, annotated walk of a case's step chain
type ChainView struct {
	CaseNo     string       `json:"case_no"`
	CaseTypeID int64        `json:"case_type_id"`
	Parallel   bool         `json:"parallel"`
	Groups     []*StepGroup `json:"steps"`
}

// Steps flattens the view back into chain order
func (v *ChainView) Steps() []*StepView {
	var out []*StepView
	for _, g := range v.Groups {
		out = append(out, g.SubSteps...)
	}
	return out
}

// Walker produces read-only chain views for display
type Walker struct {
	loader   *ChainLoader
	access   *AccessResolver
	assignee *AssigneeResolver
}

// NewWalker creates a new chain walker
func NewWalker(loader *ChainLoader, access *AccessResolver, assignee *AssigneeResolver) *Walker {
	return &Walker{
		loader:   loader,
		access:   access,
		assignee: assignee,
	}
}

// Walk loads the case type's chain and walks it for the actor
func (w *Walker) Walk(ctx context.Context, c *entity.Case, actor entity.Actor) (*ChainView, error) {
	chain, err := w.loader.Load(ctx, c.CaseTypeID)
	if err != nil {
		return nil, err
	}
	return w.WalkChain(ctx, chain, c.CaseNo, actor)
}

// WalkChain walks an already loaded chain. A chain with an entry step is
// followed from it, failing on a revisit. A parallel chain lists every step
// the actor holds a required role for, without enrichment.
func (w *Walker) WalkChain(ctx context.Context, chain *domainwf.Chain, caseNo string, actor entity.Actor) (*ChainView, error) {
	view := &ChainView{
		CaseNo:     caseNo,
		CaseTypeID: chain.CaseTypeID(),
		Parallel:   chain.Parallel(),
		Groups:     []*StepGroup{},
	}
	groups := make(map[string]*StepGroup)
	add := func(step *entity.StepConfig, node *StepView) {
		g, ok := groups[step.GroupName]
		if !ok {
			g = &StepGroup{GroupName: step.GroupName}
			groups[step.GroupName] = g
			view.Groups = append(view.Groups, g)
		}
		g.SubSteps = append(g.SubSteps, node)
	}

	if chain.Parallel() {
		for _, step := range chain.Steps() {
			if !actor.HasAnyRole(step.RequiredRoles) {
				continue
			}
			add(step, newStepView(step))
		}
		return view, nil
	}

	path, err := chain.Path()
	if err != nil {
		return nil, fmt.Errorf("case type %d: %w", chain.CaseTypeID(), err)
	}

	for _, step := range path {
		node := newStepView(step)

		if node.Access, err = w.access.Resolve(ctx, caseNo, step.StepID, actor, chain); err != nil {
			return nil, err
		}
		if node.Original, err = w.assignee.Original(ctx, caseNo, step.StepID); err != nil {
			return nil, err
		}
		if adv := chain.Next(step); adv.Outcome == domainwf.OutcomeStep {
			if node.NextAssignee, err = w.access.Resolve(ctx, caseNo, adv.Step.StepID, actor, chain); err != nil {
				return nil, err
			}
		}

		add(step, node)
	}

	return view, nil
}

func newStepView(step *entity.StepConfig) *StepView {
	return &StepView{
		StepConfigID: step.ID,
		StepID:       step.StepID,
		StepName:     step.StepName,
	}
}
