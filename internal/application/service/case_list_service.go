package service

import (
	"context"
	"fmt"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// CaseSummary is a current case record with its SLA state
type CaseSummary struct {
	*entity.Case
	SLA *SLAStatus `json:"sla,omitempty"`
}

// CasePage is one page of case summaries
type CasePage struct {
	Items   []*CaseSummary `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// CaseListService lists current case records
type CaseListService interface {
	// Workbasket returns the open cases held by the actor or one of the
	// actor's roles
	Workbasket(ctx context.Context, actor entity.Actor, page, perPage int) (*CasePage, error)

	// ByType returns the current record of every case of a case type
	ByType(ctx context.Context, prefix string, page, perPage int) (*CasePage, error)
}

type caseListServiceImpl struct {
	cases     port.CaseRepository
	caseTypes port.CaseTypeRepository
	sla       SLAService
	logger    Logger
}

// NewCaseListService creates a new CaseListService
func NewCaseListService(
	cases port.CaseRepository,
	caseTypes port.CaseTypeRepository,
	sla SLAService,
	logger Logger,
) CaseListService {
	return &caseListServiceImpl{
		cases:     cases,
		caseTypes: caseTypes,
		sla:       sla,
		logger:    logger,
	}
}

func (s *caseListServiceImpl) Workbasket(ctx context.Context, actor entity.Actor, page, perPage int) (*CasePage, error) {
	records, err := s.cases.ListActive(ctx, port.ActiveCaseFilter{
		UserID:  &actor.UserID,
		RoleIDs: actor.RoleIDs(),
	})
	if err != nil {
		s.logger.Error("Failed to list workbasket", "user_id", actor.UserID, "error", err)
		return nil, fmt.Errorf("list active cases: %w", err)
	}
	return s.paginate(ctx, records, page, perPage)
}

func (s *caseListServiceImpl) ByType(ctx context.Context, prefix string, page, perPage int) (*CasePage, error) {
	ct, err := s.caseTypes.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("get case type: %w", err)
	}
	if ct == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrCaseTypeNotFound, prefix)
	}

	records, err := s.cases.ListLatestByCaseType(ctx, ct.ID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list cases by type: %w", err)
	}
	return s.paginate(ctx, records, page, perPage)
}

func (s *caseListServiceImpl) paginate(ctx context.Context, records []*entity.Case, page, perPage int) (*CasePage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	out := &CasePage{
		Items:   []*CaseSummary{},
		Total:   len(records),
		Page:    page,
		PerPage: perPage,
	}

	start := (page - 1) * perPage
	if start >= len(records) {
		return out, nil
	}
	end := start + perPage
	if end > len(records) {
		end = len(records)
	}

	for _, c := range records[start:end] {
		status, err := s.sla.Status(ctx, c)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, &CaseSummary{Case: c, SLA: status})
	}
	return out, nil
}
