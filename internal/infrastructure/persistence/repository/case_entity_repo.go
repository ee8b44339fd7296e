package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// CaseEntityRepository implements port.CaseEntityRepository
type CaseEntityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseEntityRepository creates a new case entity repository
func NewCaseEntityRepository(db *sql.DB, logger *zap.Logger) port.CaseEntityRepository {
	return &CaseEntityRepository{
		db:     db,
		logger: logger,
	}
}

const caseEntitySelect = `
	SELECT id, case_no, entity_name, identifier, identifier_value, is_active, created_on
	FROM case_entities
`

func scanCaseEntity(row interface{ Scan(...interface{}) error }) (*entity.CaseEntity, error) {
	var ce entity.CaseEntity
	if err := row.Scan(&ce.ID, &ce.CaseNo, &ce.EntityName, &ce.Identifier,
		&ce.IdentifierValue, &ce.IsActive, &ce.CreatedOn); err != nil {
		return nil, err
	}
	return &ce, nil
}

// Create links a case to an entity. One link per case number.
func (r *CaseEntityRepository) Create(ctx context.Context, ce *entity.CaseEntity) error {
	ce.CreatedOn = utc(ce.CreatedOn)
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO case_entities (case_no, entity_name, identifier, identifier_value, is_active, created_on)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ce.CaseNo, ce.EntityName, ce.Identifier, ce.IdentifierValue, ce.IsActive, ce.CreatedOn)
	if err != nil {
		r.logger.Error("Failed to create case entity", zap.String("case_no", ce.CaseNo), zap.Error(err))
		return fmt.Errorf("failed to create case entity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ce.ID = id
	return nil
}

// GetByCaseNo returns the entity linked to a case
func (r *CaseEntityRepository) GetByCaseNo(ctx context.Context, caseNo string) (*entity.CaseEntity, error) {
	ce, err := scanCaseEntity(executor(ctx, r.db).QueryRowContext(ctx,
		caseEntitySelect+` WHERE case_no = ?`, caseNo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case entity: %w", err)
	}
	return ce, nil
}

// LatestForEntity returns the newest link to an entity among cases whose
// number starts with prefix
func (r *CaseEntityRepository) LatestForEntity(ctx context.Context, entityName, identifierValue, prefix string) (*entity.CaseEntity, error) {
	ce, err := scanCaseEntity(executor(ctx, r.db).QueryRowContext(ctx, caseEntitySelect+`
		WHERE entity_name = ? AND identifier_value = ? AND substr(case_no, 1, ?) = ?
		ORDER BY created_on DESC, id DESC
		LIMIT 1
	`, entityName, identifierValue, len(prefix), prefix))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case entity: %w", err)
	}
	return ce, nil
}
