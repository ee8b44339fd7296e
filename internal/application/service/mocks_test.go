package service

import (
	"context"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/application/workflow"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

type mockAuditRepo struct {
	entries    []*entity.AuditEntry
	createFunc func(ctx context.Context, entry *entity.AuditEntry) error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, entry); err != nil {
			return err
		}
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByCase(ctx context.Context, caseNo string) ([]*entity.AuditEntry, error) {
	var out []*entity.AuditEntry
	for _, e := range m.entries {
		if e.CaseNo == caseNo {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockCaseEntityRepo struct {
	createFunc func(ctx context.Context, ce *entity.CaseEntity) error
	byCaseNo   map[string]*entity.CaseEntity
}

func (m *mockCaseEntityRepo) Create(ctx context.Context, ce *entity.CaseEntity) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, ce)
	}
	if m.byCaseNo == nil {
		m.byCaseNo = make(map[string]*entity.CaseEntity)
	}
	ce.ID = int64(len(m.byCaseNo) + 1)
	m.byCaseNo[ce.CaseNo] = ce
	return nil
}

func (m *mockCaseEntityRepo) GetByCaseNo(ctx context.Context, caseNo string) (*entity.CaseEntity, error) {
	return m.byCaseNo[caseNo], nil
}

func (m *mockCaseEntityRepo) LatestForEntity(ctx context.Context, entityName, identifierValue, prefix string) (*entity.CaseEntity, error) {
	var latest *entity.CaseEntity
	for _, ce := range m.byCaseNo {
		if ce.EntityName == entityName && ce.IdentifierValue == identifierValue && len(ce.CaseNo) >= len(prefix) && ce.CaseNo[:len(prefix)] == prefix {
			if latest == nil || ce.ID > latest.ID {
				latest = ce
			}
		}
	}
	return latest, nil
}

type mockCaseRepo struct {
	port.CaseRepository

	listActiveFunc        func(ctx context.Context, filter port.ActiveCaseFilter) ([]*entity.Case, error)
	listLatestByTypeFunc  func(ctx context.Context, caseTypeID int64, limit, offset int) ([]*entity.Case, error)
	listActiveWithSLAFunc func(ctx context.Context) ([]*entity.Case, error)
}

func (m *mockCaseRepo) ListActive(ctx context.Context, filter port.ActiveCaseFilter) ([]*entity.Case, error) {
	return m.listActiveFunc(ctx, filter)
}

func (m *mockCaseRepo) ListLatestByCaseType(ctx context.Context, caseTypeID int64, limit, offset int) ([]*entity.Case, error) {
	return m.listLatestByTypeFunc(ctx, caseTypeID, limit, offset)
}

func (m *mockCaseRepo) ListActiveWithSLA(ctx context.Context) ([]*entity.Case, error) {
	return m.listActiveWithSLAFunc(ctx)
}

type mockCaseTypeRepo struct {
	port.CaseTypeRepository
	types map[string]*entity.CaseType
}

func (m *mockCaseTypeRepo) GetByPrefix(ctx context.Context, prefix string) (*entity.CaseType, error) {
	return m.types[prefix], nil
}

type mockSLARepo struct {
	slas []*entity.SLA
}

func (m *mockSLARepo) GetByID(ctx context.Context, id int64) (*entity.SLA, error) {
	for _, s := range m.slas {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSLARepo) GetForStep(ctx context.Context, stepConfigID int64, level int) (*entity.SLA, error) {
	for _, s := range m.slas {
		if s.StepConfigID == stepConfigID && s.EscalationLevel == level && s.IsActive {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSLARepo) Upsert(ctx context.Context, sla *entity.SLA) error {
	m.slas = append(m.slas, sla)
	return nil
}

type mockEngine struct {
	workflow.WorkflowEngine
	escalateFunc func(ctx context.Context, caseNo string, sla *entity.SLA) (*entity.Case, error)
	escalated    []string
}

func (m *mockEngine) Escalate(ctx context.Context, caseNo string, sla *entity.SLA) (*entity.Case, error) {
	if m.escalateFunc != nil {
		if _, err := m.escalateFunc(ctx, caseNo, sla); err != nil {
			return nil, err
		}
	}
	m.escalated = append(m.escalated, caseNo)
	return &entity.Case{CaseNo: caseNo, SLAID: &sla.ID}, nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func ptr(v int64) *int64 { return &v }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
