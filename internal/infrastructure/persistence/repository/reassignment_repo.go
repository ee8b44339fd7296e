package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// ReassignmentRepository implements port.ReassignmentRepository
type ReassignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReassignmentRepository creates a new reassignment repository
func NewReassignmentRepository(db *sql.DB, logger *zap.Logger) port.ReassignmentRepository {
	return &ReassignmentRepository{
		db:     db,
		logger: logger,
	}
}

const reassignmentSelect = `
	SELECT r.id, r.case_no, r.step_id, r.user_id, r.role_id, r.previous_user_id,
		r.roles_at_assignment, r.assigned_by_roles, r.created_by, r.created_on
	FROM case_reassignments r
`

func scanReassignment(row interface{ Scan(...interface{}) error }) (*entity.CaseReassignment, error) {
	var ra entity.CaseReassignment
	var userID, roleID, previous sql.NullInt64
	var rolesAt, assignedBy string
	if err := row.Scan(
		&ra.ID,
		&ra.CaseNo,
		&ra.StepID,
		&userID,
		&roleID,
		&previous,
		&rolesAt,
		&assignedBy,
		&ra.CreatedBy,
		&ra.CreatedOn,
	); err != nil {
		return nil, err
	}
	ra.UserID = int64Ptr(userID)
	ra.RoleID = int64Ptr(roleID)
	ra.PreviousUserID = int64Ptr(previous)

	var err error
	if ra.RolesAtAssignment, err = decodeRoles(rolesAt); err != nil {
		return nil, err
	}
	if ra.AssignedByRoles, err = decodeRoles(assignedBy); err != nil {
		return nil, err
	}
	return &ra, nil
}

// Create appends a reassignment record
func (r *ReassignmentRepository) Create(ctx context.Context, ra *entity.CaseReassignment) error {
	rolesAt, err := encodeRoles(ra.RolesAtAssignment)
	if err != nil {
		return err
	}
	assignedBy, err := encodeRoles(ra.AssignedByRoles)
	if err != nil {
		return err
	}
	ra.CreatedOn = utc(ra.CreatedOn)

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO case_reassignments (
			case_no, step_id, user_id, role_id, previous_user_id,
			roles_at_assignment, assigned_by_roles, created_by, created_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ra.CaseNo,
		ra.StepID,
		nullInt64(ra.UserID),
		nullInt64(ra.RoleID),
		nullInt64(ra.PreviousUserID),
		rolesAt,
		assignedBy,
		ra.CreatedBy,
		ra.CreatedOn,
	)
	if err != nil {
		r.logger.Error("Failed to create reassignment",
			zap.String("case_no", ra.CaseNo),
			zap.String("step_id", ra.StepID),
			zap.Error(err))
		return fmt.Errorf("failed to create reassignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ra.ID = id
	return nil
}

// GetLatest returns the authoritative record for a case step
func (r *ReassignmentRepository) GetLatest(ctx context.Context, caseNo, stepID string) (*entity.CaseReassignment, error) {
	ra, err := scanReassignment(executor(ctx, r.db).QueryRowContext(ctx, reassignmentSelect+`
		WHERE r.case_no = ? AND r.step_id = ?
		ORDER BY r.created_on DESC, r.id DESC
		LIMIT 1
	`, caseNo, stepID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reassignment: %w", err)
	}
	return ra, nil
}

// ListLatestByCase returns the authoritative record of every reassigned step
func (r *ReassignmentRepository) ListLatestByCase(ctx context.Context, caseNo string) (map[string]*entity.CaseReassignment, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, reassignmentSelect+`
		WHERE r.case_no = ? AND r.id = (
			SELECT r2.id FROM case_reassignments r2
			WHERE r2.case_no = r.case_no AND r2.step_id = r.step_id
			ORDER BY r2.created_on DESC, r2.id DESC
			LIMIT 1
		)
	`, caseNo)
	if err != nil {
		return nil, fmt.Errorf("failed to list reassignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*entity.CaseReassignment)
	for rows.Next() {
		ra, err := scanReassignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reassignment: %w", err)
		}
		out[ra.StepID] = ra
	}
	return out, rows.Err()
}

// ListByCase returns the reassignment history of a case, newest first
func (r *ReassignmentRepository) ListByCase(ctx context.Context, caseNo string) ([]*entity.CaseReassignment, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, reassignmentSelect+`
		WHERE r.case_no = ?
		ORDER BY r.created_on DESC, r.id DESC
	`, caseNo)
	if err != nil {
		return nil, fmt.Errorf("failed to list reassignments: %w", err)
	}
	defer rows.Close()

	var out []*entity.CaseReassignment
	for rows.Next() {
		ra, err := scanReassignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reassignment: %w", err)
		}
		out = append(out, ra)
	}
	return out, rows.Err()
}
