package workflow

import (
	"context"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// WorkflowEngine orchestrates the case lifecycle over the step chain
type WorkflowEngine interface {
	// CreateCase opens a case of the type with the given prefix. The actor
	// must be allowed to hold the first step.
	CreateCase(ctx context.Context, prefix string, actor entity.Actor) (*entity.Case, error)

	// MoveToNextStep follows the current step's next pointer. Fails with
	// ErrTerminalStep at the end of the chain and writes nothing.
	MoveToNextStep(ctx context.Context, caseNo string, actor entity.Actor) (*MoveResult, error)

	// MoveToStep jumps to an explicit step of the case type
	MoveToStep(ctx context.Context, caseNo, stepID string, actor entity.Actor) (*MoveResult, error)

	// Advance moves to the next step, or closes the case at the terminal step
	Advance(ctx context.Context, caseNo string, actor entity.Actor) (*MoveResult, error)

	// CloseCase appends a Closed record preserving the latest record's fields
	CloseCase(ctx context.Context, caseNo string, actor entity.Actor) (*entity.Case, error)

	// Reassign hands the current step to a new user or role
	Reassign(ctx context.Context, req ReassignRequest) (*ReassignResult, error)

	// Escalate hands an overdue case to the holder named by the SLA level
	Escalate(ctx context.Context, caseNo string, sla *entity.SLA) (*entity.Case, error)

	// WalkChain returns the annotated chain view of a case for the actor
	WalkChain(ctx context.Context, caseNo string, actor entity.Actor) (*ChainView, error)

	// GetCase returns the current record of a case
	GetCase(ctx context.Context, caseNo string) (*entity.Case, error)

	// History returns every record of a case, newest first
	History(ctx context.Context, caseNo string) ([]*entity.Case, error)
}

// MoveResult is the record written by a move. Closed is set when Advance
// ended the case instead of moving it.
type MoveResult struct {
	Case   *entity.Case       `json:"case"`
	Step   *entity.StepConfig `json:"step,omitempty"`
	Closed bool               `json:"closed"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
