package workflow

import (
	"fmt"
	"sort"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// Outcome tags the result of following a step's next pointer
type Outcome int

const (
	// OutcomeStep means the pointer resolved to a step of the same case type
	OutcomeStep Outcome = iota
	// OutcomeTerminal means the step has no next pointer
	OutcomeTerminal
	// OutcomeDangling means the pointer names a step id that is not configured
	OutcomeDangling
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStep:
		return "step"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeDangling:
		return "dangling"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Advance is the tagged result of Chain.Next
type Advance struct {
	Outcome Outcome
	Step    *entity.StepConfig // set only for OutcomeStep
	Missing string             // the unresolved step id for OutcomeDangling
}

// Chain is an immutable snapshot of one case type's step configuration
type Chain struct {
	caseTypeID int64
	first      *entity.StepConfig
	steps      []*entity.StepConfig
	byStepID   map[string]*entity.StepConfig
	byID       map[int64]*entity.StepConfig
}

// NewChain indexes the step configs of one case type. firstStepConfigID is
// the entry pointer; nil builds a parallel chain. The pointer must name one
// of the given steps.
func NewChain(caseTypeID int64, steps []*entity.StepConfig, firstStepConfigID *int64) (*Chain, error) {
	c := &Chain{
		caseTypeID: caseTypeID,
		steps:      make([]*entity.StepConfig, len(steps)),
		byStepID:   make(map[string]*entity.StepConfig, len(steps)),
		byID:       make(map[int64]*entity.StepConfig, len(steps)),
	}
	copy(c.steps, steps)
	sort.SliceStable(c.steps, func(i, j int) bool {
		return c.steps[i].Weight < c.steps[j].Weight
	})

	for _, s := range c.steps {
		if _, dup := c.byStepID[s.StepID]; dup {
			return nil, fmt.Errorf("step id %s configured twice for case type %d", s.StepID, caseTypeID)
		}
		c.byStepID[s.StepID] = s
		c.byID[s.ID] = s
	}

	if firstStepConfigID != nil {
		first, ok := c.byID[*firstStepConfigID]
		if !ok {
			return nil, fmt.Errorf("%w: first step config %d is not part of case type %d",
				ErrStepNotFound, *firstStepConfigID, caseTypeID)
		}
		c.first = first
	}

	return c, nil
}

// CaseTypeID returns the case type the chain belongs to
func (c *Chain) CaseTypeID() int64 {
	return c.caseTypeID
}

// First returns the entry step, or nil for a parallel case type
func (c *Chain) First() *entity.StepConfig {
	return c.first
}

// Parallel reports whether the case type has no entry step
func (c *Chain) Parallel() bool {
	return c.first == nil
}

// Steps returns every step in weight order
func (c *Chain) Steps() []*entity.StepConfig {
	out := make([]*entity.StepConfig, len(c.steps))
	copy(out, c.steps)
	return out
}

// ByStepID looks up a step by its business id
func (c *Chain) ByStepID(stepID string) (*entity.StepConfig, bool) {
	s, ok := c.byStepID[stepID]
	return s, ok
}

// ByID looks up a step by its config row id
func (c *Chain) ByID(id int64) (*entity.StepConfig, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Next follows the step's next pointer
func (c *Chain) Next(step *entity.StepConfig) Advance {
	if step.IsTerminal() {
		return Advance{Outcome: OutcomeTerminal}
	}
	next, ok := c.byStepID[step.NextStepID]
	if !ok {
		return Advance{Outcome: OutcomeDangling, Missing: step.NextStepID}
	}
	return Advance{Outcome: OutcomeStep, Step: next}
}

// From returns the steps reached by following next pointers from stepID,
// stepID included. The walk ends at the terminal step or at a dangling
// pointer, and fails with ErrCycleDetected when it revisits a step.
func (c *Chain) From(stepID string) ([]*entity.StepConfig, error) {
	start, ok := c.byStepID[stepID]
	if !ok {
		return nil, fmt.Errorf("%w: step %s", ErrStepNotFound, stepID)
	}

	visited := map[string]bool{start.StepID: true}
	path := []*entity.StepConfig{start}
	for cur := start; ; {
		adv := c.Next(cur)
		if adv.Outcome != OutcomeStep {
			return path, nil
		}
		if visited[adv.Step.StepID] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrCycleDetected, cur.StepID, adv.Step.StepID)
		}
		visited[adv.Step.StepID] = true
		path = append(path, adv.Step)
		cur = adv.Step
	}
}

// Path returns the chain from its entry step. Parallel chains have no path.
func (c *Chain) Path() ([]*entity.StepConfig, error) {
	if c.first == nil {
		return nil, nil
	}
	return c.From(c.first.StepID)
}

// Report summarises the structural health of a chain
type Report struct {
	CaseTypeID  int64    `json:"case_type_id"`
	Parallel    bool     `json:"parallel"`
	Path        []string `json:"path"`
	Cycle       string   `json:"cycle,omitempty"`
	Dangling    []string `json:"dangling,omitempty"`
	Unreachable []string `json:"unreachable,omitempty"`
}

// Healthy reports whether the chain has no cycle and no dangling pointer
func (r *Report) Healthy() bool {
	return r.Cycle == "" && len(r.Dangling) == 0
}

// Inspect walks the chain and reports cycles, dangling pointers and steps
// the entry walk never reaches
func (c *Chain) Inspect() *Report {
	r := &Report{CaseTypeID: c.caseTypeID, Parallel: c.Parallel()}

	for _, s := range c.steps {
		if adv := c.Next(s); adv.Outcome == OutcomeDangling {
			r.Dangling = append(r.Dangling, fmt.Sprintf("%s -> %s", s.StepID, adv.Missing))
		}
	}
	if c.Parallel() {
		return r
	}

	path, err := c.Path()
	if err != nil {
		r.Cycle = err.Error()
		return r
	}

	reached := make(map[string]bool, len(path))
	for _, s := range path {
		r.Path = append(r.Path, s.StepID)
		reached[s.StepID] = true
	}
	for _, s := range c.steps {
		if !reached[s.StepID] {
			r.Unreachable = append(r.Unreachable, s.StepID)
		}
	}
	return r
}
