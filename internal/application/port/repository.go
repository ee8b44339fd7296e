package port

import (
	"context"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// Single-row lookups return (nil, nil) when the row does not exist. Callers
// translate that into the matching not-found error.

// CaseTypeRepository defines persistence operations for CaseType
type CaseTypeRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.CaseType, error)
	GetByPrefix(ctx context.Context, prefix string) (*entity.CaseType, error)
	List(ctx context.Context) ([]*entity.CaseType, error)
	Upsert(ctx context.Context, caseType *entity.CaseType) error
}

// StepConfigRepository defines read access to step chains plus the writes
// used by configuration seeding
type StepConfigRepository interface {
	// ListByCaseType returns every step config of the case type in weight
	// order with required roles resolved
	ListByCaseType(ctx context.Context, caseTypeID int64) ([]*entity.StepConfig, error)

	GetByID(ctx context.Context, id int64) (*entity.StepConfig, error)

	// GetFirstStep returns the entry pointer row, or nil when the case type
	// has no row at all
	GetFirstStep(ctx context.Context, caseTypeID int64) (*entity.FirstStep, error)

	// Upsert inserts or updates by (case_type_id, step_id) and replaces the
	// step's role mapping
	Upsert(ctx context.Context, step *entity.StepConfig) error

	SetFirstStep(ctx context.Context, caseTypeID int64, stepConfigID *int64) error
}

// ActiveCaseFilter selects current, non-closed case records by holder
type ActiveCaseFilter struct {
	UserID  *int64
	RoleIDs []int64
	Limit   int
	Offset  int
}

// CaseRepository is the append-only case transition log
type CaseRepository interface {
	// Append inserts a new transition record. Records are never updated.
	Append(ctx context.Context, c *entity.Case) error

	// GetLatest returns the current record: max created_on, ties by id
	GetLatest(ctx context.Context, caseNo string) (*entity.Case, error)

	// ListHistory returns all records of a case, newest first
	ListHistory(ctx context.Context, caseNo string) ([]*entity.Case, error)

	// LatestCaseNumber returns the highest allocated number for the case
	// type, or "" when none exists
	LatestCaseNumber(ctx context.Context, caseTypeID int64) (string, error)

	// ReserveCaseNumber claims a case number. Returns
	// workflow.ErrDuplicateCaseNumber when it is already taken.
	ReserveCaseNumber(ctx context.Context, caseNo string, caseTypeID int64) error

	// ListLatestByCaseType returns the current record of each case of a type
	ListLatestByCaseType(ctx context.Context, caseTypeID int64, limit, offset int) ([]*entity.Case, error)

	// ListActive returns current non-closed records held by the user or any
	// of the roles
	ListActive(ctx context.Context, filter ActiveCaseFilter) ([]*entity.Case, error)

	// ListActiveWithSLA returns current non-closed records that carry an SLA
	ListActiveWithSLA(ctx context.Context) ([]*entity.Case, error)

	// HasVisitedStep reports whether any record of the case sat on the step
	HasVisitedStep(ctx context.Context, caseNo string, stepConfigID int64) (bool, error)
}

// ReassignmentRepository is the append-only holder override log
type ReassignmentRepository interface {
	Create(ctx context.Context, r *entity.CaseReassignment) error

	// GetLatest returns the authoritative record for (caseNo, stepID)
	GetLatest(ctx context.Context, caseNo, stepID string) (*entity.CaseReassignment, error)

	// ListLatestByCase returns the authoritative record per step id
	ListLatestByCase(ctx context.Context, caseNo string) (map[string]*entity.CaseReassignment, error)

	// ListByCase returns the full history, newest first
	ListByCase(ctx context.Context, caseNo string) ([]*entity.CaseReassignment, error)
}

// UserDirectory resolves users and roles into value objects
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	UserRoles(ctx context.Context, userID int64) ([]entity.RoleSummary, error)
	GetRoles(ctx context.Context, ids []int64) ([]entity.RoleSummary, error)
	GetRoleByName(ctx context.Context, name string) (*entity.RoleSummary, error)
	UpsertRole(ctx context.Context, role *entity.RoleSummary) error
	UpsertUser(ctx context.Context, user *entity.User) error
}

// CaseEntityRepository defines persistence operations for CaseEntity
type CaseEntityRepository interface {
	Create(ctx context.Context, ce *entity.CaseEntity) error
	GetByCaseNo(ctx context.Context, caseNo string) (*entity.CaseEntity, error)

	// LatestForEntity returns the newest link to the entity among cases
	// whose number starts with prefix
	LatestForEntity(ctx context.Context, entityName, identifierValue, prefix string) (*entity.CaseEntity, error)
}

// AuditTrailRepository defines persistence operations for AuditEntry
type AuditTrailRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
	ListByCase(ctx context.Context, caseNo string) ([]*entity.AuditEntry, error)
}

// SLARepository defines persistence operations for SLA
type SLARepository interface {
	GetByID(ctx context.Context, id int64) (*entity.SLA, error)

	// GetForStep returns the active SLA of the step at the escalation level
	GetForStep(ctx context.Context, stepConfigID int64, level int) (*entity.SLA, error)

	Upsert(ctx context.Context, sla *entity.SLA) error
}

// TransactionManager handles database transactions. The transaction travels
// in the context handed to fn; repositories pick it up from there.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
