package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// AuditTrailRepository implements port.AuditTrailRepository
type AuditTrailRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditTrailRepository creates a new audit trail repository
func NewAuditTrailRepository(db *sql.DB, logger *zap.Logger) port.AuditTrailRepository {
	return &AuditTrailRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *AuditTrailRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	var metadata sql.NullString
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}
	entry.CreatedOn = utc(entry.CreatedOn)

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO audit_trail (case_no, description, metadata, created_by, created_on)
		VALUES (?, ?, ?, ?, ?)
	`, entry.CaseNo, entry.Description, metadata, nullInt64(entry.CreatedBy), entry.CreatedOn)
	if err != nil {
		r.logger.Error("Failed to create audit entry", zap.String("case_no", entry.CaseNo), zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByCase returns a case's audit trail, oldest first
func (r *AuditTrailRepository) ListByCase(ctx context.Context, caseNo string) ([]*entity.AuditEntry, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, case_no, description, metadata, created_by, created_on
		FROM audit_trail
		WHERE case_no = ?
		ORDER BY created_on, id
	`, caseNo)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}
	defer rows.Close()

	var out []*entity.AuditEntry
	for rows.Next() {
		var entry entity.AuditEntry
		var metadata sql.NullString
		var createdBy sql.NullInt64
		if err := rows.Scan(&entry.ID, &entry.CaseNo, &entry.Description,
			&metadata, &createdBy, &entry.CreatedOn); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.CreatedBy = int64Ptr(createdBy)
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				r.logger.Warn("Skipping unreadable audit metadata",
					zap.Int64("id", entry.ID), zap.Error(err))
			}
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}
