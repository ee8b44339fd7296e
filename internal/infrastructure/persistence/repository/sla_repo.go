package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// SLARepository implements port.SLARepository
type SLARepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSLARepository creates a new SLA repository
func NewSLARepository(db *sql.DB, logger *zap.Logger) port.SLARepository {
	return &SLARepository{
		db:     db,
		logger: logger,
	}
}

const slaSelect = `
	SELECT id, name, step_config_id, time_limit_minutes, escalation_level, user_id, role_id, is_active
	FROM slas
`

func scanSLA(row interface{ Scan(...interface{}) error }) (*entity.SLA, error) {
	var s entity.SLA
	var userID, roleID sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.StepConfigID, &s.TimeLimitMinutes,
		&s.EscalationLevel, &userID, &roleID, &s.IsActive); err != nil {
		return nil, err
	}
	s.UserID = int64Ptr(userID)
	s.RoleID = int64Ptr(roleID)
	return &s, nil
}

// GetByID retrieves an SLA by ID
func (r *SLARepository) GetByID(ctx context.Context, id int64) (*entity.SLA, error) {
	s, err := scanSLA(executor(ctx, r.db).QueryRowContext(ctx, slaSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sla: %w", err)
	}
	return s, nil
}

// GetForStep returns the active SLA of a step at an escalation level
func (r *SLARepository) GetForStep(ctx context.Context, stepConfigID int64, level int) (*entity.SLA, error) {
	s, err := scanSLA(executor(ctx, r.db).QueryRowContext(ctx, slaSelect+`
		WHERE step_config_id = ? AND escalation_level = ? AND is_active = 1
	`, stepConfigID, level))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step sla",
			zap.Int64("step_config_id", stepConfigID),
			zap.Int("level", level),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get sla: %w", err)
	}
	return s, nil
}

// Upsert writes an SLA keyed by (step_config_id, escalation_level)
func (r *SLARepository) Upsert(ctx context.Context, s *entity.SLA) error {
	err := executor(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO slas (name, step_config_id, time_limit_minutes, escalation_level, user_id, role_id, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(step_config_id, escalation_level) DO UPDATE SET
			name = excluded.name,
			time_limit_minutes = excluded.time_limit_minutes,
			user_id = excluded.user_id,
			role_id = excluded.role_id,
			is_active = excluded.is_active
		RETURNING id
	`,
		s.Name,
		s.StepConfigID,
		s.TimeLimitMinutes,
		s.EscalationLevel,
		nullInt64(s.UserID),
		nullInt64(s.RoleID),
		s.IsActive,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert sla: %w", err)
	}
	return nil
}
