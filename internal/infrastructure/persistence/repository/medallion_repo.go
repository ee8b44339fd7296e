package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// MedallionRepository implements port.MedallionRepository
type MedallionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMedallionRepository creates a new medallion repository
func NewMedallionRepository(db *sql.DB, logger *zap.Logger) port.MedallionRepository {
	return &MedallionRepository{
		db:     db,
		logger: logger,
	}
}

const medallionSelect = `
	SELECT id, medallion_number, medallion_type, medallion_status, owner_id, validity_end_date, updated_at
	FROM medallions
`

func scanMedallion(row interface{ Scan(...interface{}) error }) (*entity.Medallion, error) {
	var m entity.Medallion
	var owner sql.NullInt64
	var validity sql.NullTime
	if err := row.Scan(&m.ID, &m.Number, &m.Type, &m.Status, &owner, &validity, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.OwnerID = int64Ptr(owner)
	m.ValidityEndDate = timePtr(validity)
	return &m, nil
}

// GetByID retrieves a medallion by ID
func (r *MedallionRepository) GetByID(ctx context.Context, id int64) (*entity.Medallion, error) {
	m, err := scanMedallion(executor(ctx, r.db).QueryRowContext(ctx, medallionSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medallion: %w", err)
	}
	return m, nil
}

// GetByNumber retrieves a medallion by its number
func (r *MedallionRepository) GetByNumber(ctx context.Context, number string) (*entity.Medallion, error) {
	m, err := scanMedallion(executor(ctx, r.db).QueryRowContext(ctx,
		medallionSelect+` WHERE medallion_number = ?`, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medallion: %w", err)
	}
	return m, nil
}

// Upsert writes a medallion keyed by number
func (r *MedallionRepository) Upsert(ctx context.Context, m *entity.Medallion) error {
	m.UpdatedAt = time.Now().UTC()
	err := executor(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO medallions (medallion_number, medallion_type, medallion_status, owner_id, validity_end_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(medallion_number) DO UPDATE SET
			medallion_type = excluded.medallion_type,
			medallion_status = excluded.medallion_status,
			owner_id = excluded.owner_id,
			validity_end_date = excluded.validity_end_date,
			updated_at = excluded.updated_at
		RETURNING id
	`, m.Number, m.Type, m.Status, nullInt64(m.OwnerID), nullTime(m.ValidityEndDate), m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		r.logger.Error("Failed to upsert medallion", zap.String("number", m.Number), zap.Error(err))
		return fmt.Errorf("failed to upsert medallion: %w", err)
	}
	return nil
}
