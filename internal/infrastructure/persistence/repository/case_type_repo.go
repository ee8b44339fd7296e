package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// CaseTypeRepository implements port.CaseTypeRepository
type CaseTypeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseTypeRepository creates a new case type repository
func NewCaseTypeRepository(db *sql.DB, logger *zap.Logger) port.CaseTypeRepository {
	return &CaseTypeRepository{
		db:     db,
		logger: logger,
	}
}

const caseTypeColumns = `id, name, prefix, created_at`

func scanCaseType(row interface{ Scan(...interface{}) error }) (*entity.CaseType, error) {
	var ct entity.CaseType
	if err := row.Scan(&ct.ID, &ct.Name, &ct.Prefix, &ct.CreatedAt); err != nil {
		return nil, err
	}
	return &ct, nil
}

// GetByID retrieves a case type by ID
func (r *CaseTypeRepository) GetByID(ctx context.Context, id int64) (*entity.CaseType, error) {
	ct, err := scanCaseType(executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+caseTypeColumns+` FROM case_types WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case type", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case type: %w", err)
	}
	return ct, nil
}

// GetByPrefix retrieves a case type by its case number prefix
func (r *CaseTypeRepository) GetByPrefix(ctx context.Context, prefix string) (*entity.CaseType, error) {
	ct, err := scanCaseType(executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+caseTypeColumns+` FROM case_types WHERE prefix = ?`, prefix))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case type by prefix", zap.String("prefix", prefix), zap.Error(err))
		return nil, fmt.Errorf("failed to get case type: %w", err)
	}
	return ct, nil
}

// List returns every case type ordered by prefix
func (r *CaseTypeRepository) List(ctx context.Context) ([]*entity.CaseType, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx,
		`SELECT `+caseTypeColumns+` FROM case_types ORDER BY prefix`)
	if err != nil {
		return nil, fmt.Errorf("failed to list case types: %w", err)
	}
	defer rows.Close()

	var out []*entity.CaseType
	for rows.Next() {
		ct, err := scanCaseType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case type: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// Upsert inserts a case type or renames the one with the same prefix
func (r *CaseTypeRepository) Upsert(ctx context.Context, ct *entity.CaseType) error {
	ct.CreatedAt = utc(ct.CreatedAt)
	err := executor(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO case_types (name, prefix, created_at) VALUES (?, ?, ?)
		ON CONFLICT(prefix) DO UPDATE SET name = excluded.name
		RETURNING id
	`, ct.Name, ct.Prefix, ct.CreatedAt).Scan(&ct.ID)
	if err != nil {
		r.logger.Error("Failed to upsert case type", zap.String("prefix", ct.Prefix), zap.Error(err))
		return fmt.Errorf("failed to upsert case type: %w", err)
	}
	return nil
}
