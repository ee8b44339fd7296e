package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// StepConfigRepository implements port.StepConfigRepository
type StepConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepConfigRepository creates a new step config repository
func NewStepConfigRepository(db *sql.DB, logger *zap.Logger) port.StepConfigRepository {
	return &StepConfigRepository{
		db:     db,
		logger: logger,
	}
}

const stepConfigColumns = `id, case_type_id, step_id, step_name, group_name, next_step_id, default_assignee_id, weight`

func scanStepConfig(row interface{ Scan(...interface{}) error }) (*entity.StepConfig, error) {
	var s entity.StepConfig
	var next sql.NullString
	var assignee sql.NullInt64
	if err := row.Scan(&s.ID, &s.CaseTypeID, &s.StepID, &s.StepName, &s.GroupName,
		&next, &assignee, &s.Weight); err != nil {
		return nil, err
	}
	s.NextStepID = next.String
	s.DefaultAssigneeID = int64Ptr(assignee)
	s.RequiredRoles = []entity.RoleSummary{}
	return &s, nil
}

// ListByCaseType returns the step chain of a case type in weight order
func (r *StepConfigRepository) ListByCaseType(ctx context.Context, caseTypeID int64) ([]*entity.StepConfig, error) {
	exec := executor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+stepConfigColumns+`
		FROM case_step_configs
		WHERE case_type_id = ?
		ORDER BY weight, id
	`, caseTypeID)
	if err != nil {
		r.logger.Error("Failed to list step configs", zap.Int64("case_type_id", caseTypeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list step configs: %w", err)
	}

	var steps []*entity.StepConfig
	byID := make(map[int64]*entity.StepConfig)
	for rows.Next() {
		s, err := scanStepConfig(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan step config: %w", err)
		}
		steps = append(steps, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	roleRows, err := exec.QueryContext(ctx, `
		SELECT scr.step_config_id, r.id, r.name
		FROM case_step_config_roles scr
		JOIN case_step_configs sc ON sc.id = scr.step_config_id
		JOIN roles r ON r.id = scr.role_id
		WHERE sc.case_type_id = ?
		ORDER BY scr.step_config_id, scr.position, r.id
	`, caseTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step roles: %w", err)
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var stepConfigID int64
		var role entity.RoleSummary
		if err := roleRows.Scan(&stepConfigID, &role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan step role: %w", err)
		}
		if s, ok := byID[stepConfigID]; ok {
			s.RequiredRoles = append(s.RequiredRoles, role)
		}
	}
	return steps, roleRows.Err()
}

// GetByID retrieves one step config with its required roles
func (r *StepConfigRepository) GetByID(ctx context.Context, id int64) (*entity.StepConfig, error) {
	exec := executor(ctx, r.db)
	s, err := scanStepConfig(exec.QueryRowContext(ctx,
		`SELECT `+stepConfigColumns+` FROM case_step_configs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step config", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get step config: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT r.id, r.name
		FROM case_step_config_roles scr
		JOIN roles r ON r.id = scr.role_id
		WHERE scr.step_config_id = ?
		ORDER BY scr.position, r.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get step roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role entity.RoleSummary
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan step role: %w", err)
		}
		s.RequiredRoles = append(s.RequiredRoles, role)
	}
	return s, rows.Err()
}

// GetFirstStep returns the case type's entry pointer row
func (r *StepConfigRepository) GetFirstStep(ctx context.Context, caseTypeID int64) (*entity.FirstStep, error) {
	var first sql.NullInt64
	err := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT first_step_config_id FROM case_type_first_steps WHERE case_type_id = ?`,
		caseTypeID).Scan(&first)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get first step: %w", err)
	}
	return &entity.FirstStep{CaseTypeID: caseTypeID, StepConfigID: int64Ptr(first)}, nil
}

// Upsert writes a step config keyed by (case_type_id, step_id) and replaces
// its role mapping. Role order is kept; the first role is the step's primary.
func (r *StepConfigRepository) Upsert(ctx context.Context, s *entity.StepConfig) error {
	exec := executor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		INSERT INTO case_step_configs (
			case_type_id, step_id, step_name, group_name, next_step_id, default_assignee_id, weight
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_type_id, step_id) DO UPDATE SET
			step_name = excluded.step_name,
			group_name = excluded.group_name,
			next_step_id = excluded.next_step_id,
			default_assignee_id = excluded.default_assignee_id,
			weight = excluded.weight
		RETURNING id
	`,
		s.CaseTypeID,
		s.StepID,
		s.StepName,
		s.GroupName,
		nullString(s.NextStepID),
		nullInt64(s.DefaultAssigneeID),
		s.Weight,
	).Scan(&s.ID)
	if err != nil {
		r.logger.Error("Failed to upsert step config",
			zap.Int64("case_type_id", s.CaseTypeID),
			zap.String("step_id", s.StepID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert step config: %w", err)
	}

	if _, err := exec.ExecContext(ctx,
		`DELETE FROM case_step_config_roles WHERE step_config_id = ?`, s.ID); err != nil {
		return fmt.Errorf("failed to clear step roles: %w", err)
	}
	for i, role := range s.RequiredRoles {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO case_step_config_roles (step_config_id, role_id, position) VALUES (?, ?, ?)`,
			s.ID, role.ID, i); err != nil {
			return fmt.Errorf("failed to insert step role: %w", err)
		}
	}
	return nil
}

// SetFirstStep writes the entry pointer. A nil stepConfigID marks the case
// type as parallel.
func (r *StepConfigRepository) SetFirstStep(ctx context.Context, caseTypeID int64, stepConfigID *int64) error {
	_, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO case_type_first_steps (case_type_id, first_step_config_id) VALUES (?, ?)
		ON CONFLICT(case_type_id) DO UPDATE SET first_step_config_id = excluded.first_step_config_id
	`, caseTypeID, nullInt64(stepConfigID))
	if err != nil {
		return fmt.Errorf("failed to set first step: %w", err)
	}
	return nil
}
