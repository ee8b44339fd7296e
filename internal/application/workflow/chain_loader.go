package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// ChainLoader builds immutable step chain snapshots from configuration
type ChainLoader struct {
	steps port.StepConfigRepository
}

// NewChainLoader creates a new chain loader
func NewChainLoader(steps port.StepConfigRepository) *ChainLoader {
	return &ChainLoader{steps: steps}
}

// Load returns the step chain of a case type. A case type without a
// first-step row is a configuration error.
func (l *ChainLoader) Load(ctx context.Context, caseTypeID int64) (*domainwf.Chain, error) {
	first, err := l.steps.GetFirstStep(ctx, caseTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load first step: %w", err)
	}
	if first == nil {
		return nil, fmt.Errorf("%w: case type %d", domainwf.ErrFirstStepNotConfigured, caseTypeID)
	}

	steps, err := l.steps.ListByCaseType(ctx, caseTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load step configs: %w", err)
	}

	return domainwf.NewChain(caseTypeID, steps, first.StepConfigID)
}

// CaseTypeReport is the structural report of one configured case type.
// Err is set when the chain could not be built at all.
type CaseTypeReport struct {
	CaseType *entity.CaseType `json:"case_type"`
	Report   *domainwf.Report `json:"report,omitempty"`
	Err      string           `json:"error,omitempty"`
}

// Healthy reports whether the case type's chain loaded without a cycle or
// dangling pointer
func (r *CaseTypeReport) Healthy() bool {
	return r.Err == "" && r.Report != nil && r.Report.Healthy()
}

// InspectAll loads and inspects the chain of every case type. A chain that
// fails to load is reported on its case type instead of aborting the run.
func (l *ChainLoader) InspectAll(ctx context.Context, caseTypes port.CaseTypeRepository) ([]*CaseTypeReport, error) {
	types, err := caseTypes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list case types: %w", err)
	}

	reports := make([]*CaseTypeReport, 0, len(types))
	for _, ct := range types {
		r := &CaseTypeReport{CaseType: ct}
		if chain, err := l.Load(ctx, ct.ID); err != nil {
			r.Err = err.Error()
		} else {
			r.Report = chain.Inspect()
		}
		reports = append(reports, r)
	}
	return reports, nil
}
