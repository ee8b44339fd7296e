package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	"github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// CaseRepository implements port.CaseRepository over the append-only cases table
type CaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger,
	}
}

const caseSelect = `
	SELECT c.id, c.case_no, c.case_type_id, c.status, c.step_config_id,
		COALESCE(sc.step_id, ''), c.assignee_user_id, c.assignee_role_id,
		c.sla_id, c.created_by, c.created_on
	FROM cases c
	LEFT JOIN case_step_configs sc ON sc.id = c.step_config_id
`

// latestOnly keeps the current record of each case number
const latestOnly = `
	c.id = (
		SELECT c2.id FROM cases c2
		WHERE c2.case_no = c.case_no
		ORDER BY c2.created_on DESC, c2.id DESC
		LIMIT 1
	)
`

func scanCase(row interface{ Scan(...interface{}) error }) (*entity.Case, error) {
	var c entity.Case
	var stepConfigID, userID, roleID, slaID, createdBy sql.NullInt64
	if err := row.Scan(
		&c.ID,
		&c.CaseNo,
		&c.CaseTypeID,
		&c.Status,
		&stepConfigID,
		&c.StepID,
		&userID,
		&roleID,
		&slaID,
		&createdBy,
		&c.CreatedOn,
	); err != nil {
		return nil, err
	}
	c.StepConfigID = int64Ptr(stepConfigID)
	c.AssigneeUserID = int64Ptr(userID)
	c.AssigneeRoleID = int64Ptr(roleID)
	c.SLAID = int64Ptr(slaID)
	c.CreatedBy = int64Ptr(createdBy)
	return &c, nil
}

func (r *CaseRepository) queryCases(ctx context.Context, query string, args ...interface{}) ([]*entity.Case, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Append inserts a new transition record
func (r *CaseRepository) Append(ctx context.Context, c *entity.Case) error {
	c.CreatedOn = utc(c.CreatedOn)
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO cases (
			case_no, case_type_id, status, step_config_id,
			assignee_user_id, assignee_role_id, sla_id, created_by, created_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.CaseNo,
		c.CaseTypeID,
		c.Status,
		nullInt64(c.StepConfigID),
		nullInt64(c.AssigneeUserID),
		nullInt64(c.AssigneeRoleID),
		nullInt64(c.SLAID),
		nullInt64(c.CreatedBy),
		c.CreatedOn,
	)
	if err != nil {
		r.logger.Error("Failed to append case record", zap.String("case_no", c.CaseNo), zap.Error(err))
		return fmt.Errorf("failed to append case record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// GetLatest returns the current record of a case
func (r *CaseRepository) GetLatest(ctx context.Context, caseNo string) (*entity.Case, error) {
	c, err := scanCase(executor(ctx, r.db).QueryRowContext(ctx,
		caseSelect+` WHERE c.case_no = ? ORDER BY c.created_on DESC, c.id DESC LIMIT 1`, caseNo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest case record", zap.String("case_no", caseNo), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// ListHistory returns every record of a case, newest first
func (r *CaseRepository) ListHistory(ctx context.Context, caseNo string) ([]*entity.Case, error) {
	out, err := r.queryCases(ctx,
		caseSelect+` WHERE c.case_no = ? ORDER BY c.created_on DESC, c.id DESC`, caseNo)
	if err != nil {
		return nil, fmt.Errorf("failed to list case history: %w", err)
	}
	return out, nil
}

// LatestCaseNumber returns the highest number allocated for the case type.
// Numbers share a prefix, so longer means larger once the counter outgrows
// its padding.
func (r *CaseRepository) LatestCaseNumber(ctx context.Context, caseTypeID int64) (string, error) {
	var caseNo string
	err := executor(ctx, r.db).QueryRowContext(ctx, `
		SELECT case_no FROM case_numbers
		WHERE case_type_id = ?
		ORDER BY LENGTH(case_no) DESC, case_no DESC
		LIMIT 1
	`, caseTypeID).Scan(&caseNo)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest case number: %w", err)
	}
	return caseNo, nil
}

// ReserveCaseNumber claims a case number
func (r *CaseRepository) ReserveCaseNumber(ctx context.Context, caseNo string, caseTypeID int64) error {
	_, err := executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO case_numbers (case_no, case_type_id) VALUES (?, ?)`, caseNo, caseTypeID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", workflow.ErrDuplicateCaseNumber, caseNo)
	}
	if err != nil {
		return fmt.Errorf("failed to reserve case number: %w", err)
	}
	return nil
}

// ListLatestByCaseType returns the current record of each case of a type, newest first
func (r *CaseRepository) ListLatestByCaseType(ctx context.Context, caseTypeID int64, limit, offset int) ([]*entity.Case, error) {
	out, err := r.queryCases(ctx, caseSelect+`
		WHERE c.case_type_id = ? AND `+latestOnly+`
		ORDER BY c.created_on DESC, c.id DESC
		LIMIT ? OFFSET ?
	`, caseTypeID, sqlLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases by type: %w", err)
	}
	return out, nil
}

// ListActive returns current non-closed records held by the filter's user or roles
func (r *CaseRepository) ListActive(ctx context.Context, filter port.ActiveCaseFilter) ([]*entity.Case, error) {
	var holders []string
	args := []interface{}{entity.CaseStatusClosed}
	if filter.UserID != nil {
		holders = append(holders, "c.assignee_user_id = ?")
		args = append(args, *filter.UserID)
	}
	if len(filter.RoleIDs) > 0 {
		holders = append(holders, "c.assignee_role_id IN ("+placeholders(len(filter.RoleIDs))+")")
		for _, id := range filter.RoleIDs {
			args = append(args, id)
		}
	}
	if len(holders) == 0 {
		return nil, nil
	}
	args = append(args, sqlLimit(filter.Limit), filter.Offset)

	out, err := r.queryCases(ctx, caseSelect+`
		WHERE c.status != ? AND (`+strings.Join(holders, " OR ")+`) AND `+latestOnly+`
		ORDER BY c.created_on DESC, c.id DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active cases: %w", err)
	}
	return out, nil
}

// ListActiveWithSLA returns current non-closed records that carry an SLA
func (r *CaseRepository) ListActiveWithSLA(ctx context.Context) ([]*entity.Case, error) {
	out, err := r.queryCases(ctx, caseSelect+`
		WHERE c.status != ? AND c.sla_id IS NOT NULL AND `+latestOnly+`
		ORDER BY c.created_on, c.id
	`, entity.CaseStatusClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases with sla: %w", err)
	}
	return out, nil
}

// HasVisitedStep reports whether any record of the case sat on the step
func (r *CaseRepository) HasVisitedStep(ctx context.Context, caseNo string, stepConfigID int64) (bool, error) {
	var visited bool
	err := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cases WHERE case_no = ? AND step_config_id = ?)`,
		caseNo, stepConfigID).Scan(&visited)
	if err != nil {
		return false, fmt.Errorf("failed to check step history: %w", err)
	}
	return visited, nil
}

// sqlLimit maps a non-positive limit to SQLite's "no limit"
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
