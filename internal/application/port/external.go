package port

import (
	"context"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// AuditLogger appends audit trail lines for one or more cases
type AuditLogger interface {
	Append(ctx context.Context, caseNos []string, description string, metadata map[string]interface{}) error
}

// MedallionRepository is the business-entity collaborator step handlers of
// the medallion flows talk to
type MedallionRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Medallion, error)
	GetByNumber(ctx context.Context, number string) (*entity.Medallion, error)
	Upsert(ctx context.Context, m *entity.Medallion) error
}
