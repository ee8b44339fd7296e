package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// CaseEntityService links cases to the business entity they operate on
type CaseEntityService interface {
	// Create links the case to the entity. A case links to one entity.
	Create(ctx context.Context, caseNo, entityName, identifier, identifierValue string) (*entity.CaseEntity, error)

	// Get returns the case's link, or nil when the case has none yet
	Get(ctx context.Context, caseNo string) (*entity.CaseEntity, error)

	// LatestForEntity returns the newest link to the entity from cases of
	// the given prefix, or nil
	LatestForEntity(ctx context.Context, entityName, identifierValue, prefix string) (*entity.CaseEntity, error)
}

type caseEntityServiceImpl struct {
	repo   port.CaseEntityRepository
	logger Logger
}

// NewCaseEntityService creates a new CaseEntityService
func NewCaseEntityService(repo port.CaseEntityRepository, logger Logger) CaseEntityService {
	return &caseEntityServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *caseEntityServiceImpl) Create(ctx context.Context, caseNo, entityName, identifier, identifierValue string) (*entity.CaseEntity, error) {
	if caseNo == "" || entityName == "" || identifier == "" || identifierValue == "" {
		return nil, fmt.Errorf("case entity requires case number, entity name, identifier and value")
	}

	ce := &entity.CaseEntity{
		CaseNo:          caseNo,
		EntityName:      entityName,
		Identifier:      identifier,
		IdentifierValue: identifierValue,
		IsActive:        true,
		CreatedOn:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, ce); err != nil {
		s.logger.Error("Failed to create case entity", "case_no", caseNo, "entity", entityName, "error", err)
		return nil, fmt.Errorf("create case entity: %w", err)
	}

	s.logger.Info("Case entity linked", "case_no", caseNo, "entity", entityName, "identifier_value", identifierValue)
	return ce, nil
}

func (s *caseEntityServiceImpl) Get(ctx context.Context, caseNo string) (*entity.CaseEntity, error) {
	ce, err := s.repo.GetByCaseNo(ctx, caseNo)
	if err != nil {
		return nil, fmt.Errorf("get case entity: %w", err)
	}
	return ce, nil
}

func (s *caseEntityServiceImpl) LatestForEntity(ctx context.Context, entityName, identifierValue, prefix string) (*entity.CaseEntity, error) {
	ce, err := s.repo.LatestForEntity(ctx, entityName, identifierValue, prefix)
	if err != nil {
		return nil, fmt.Errorf("get latest case entity: %w", err)
	}
	return ce, nil
}
