package newmed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/medallion-bpm/internal/application/steps"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

type mockEntities struct {
	links map[string]*entity.CaseEntity
}

func (m *mockEntities) Create(ctx context.Context, caseNo, entityName, identifier, identifierValue string) (*entity.CaseEntity, error) {
	ce := &entity.CaseEntity{CaseNo: caseNo, EntityName: entityName, Identifier: identifier, IdentifierValue: identifierValue, IsActive: true}
	m.links[caseNo] = ce
	return ce, nil
}

func (m *mockEntities) Get(ctx context.Context, caseNo string) (*entity.CaseEntity, error) {
	return m.links[caseNo], nil
}

func (m *mockEntities) LatestForEntity(ctx context.Context, entityName, identifierValue, prefix string) (*entity.CaseEntity, error) {
	return nil, nil
}

type mockMedallions struct {
	byNumber   map[string]*entity.Medallion
	upsertFunc func(m *entity.Medallion) error
}

func (m *mockMedallions) GetByID(ctx context.Context, id int64) (*entity.Medallion, error) {
	for _, med := range m.byNumber {
		if med.ID == id {
			return med, nil
		}
	}
	return nil, nil
}

func (m *mockMedallions) GetByNumber(ctx context.Context, number string) (*entity.Medallion, error) {
	if med, ok := m.byNumber[number]; ok {
		cp := *med
		return &cp, nil
	}
	return nil, nil
}

func (m *mockMedallions) Upsert(ctx context.Context, med *entity.Medallion) error {
	if m.upsertFunc != nil {
		if err := m.upsertFunc(med); err != nil {
			return err
		}
	}
	if existing, ok := m.byNumber[med.Number]; ok {
		med.ID = existing.ID
	} else {
		med.ID = int64(len(m.byNumber) + 1)
	}
	cp := *med
	m.byNumber[med.Number] = &cp
	return nil
}

type auditCall struct {
	caseNos     []string
	description string
}

type mockAudit struct {
	calls []auditCall
}

func (m *mockAudit) Append(ctx context.Context, caseNos []string, description string, metadata map[string]interface{}) error {
	m.calls = append(m.calls, auditCall{caseNos: caseNos, description: description})
	return nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type harness struct {
	registry   *steps.Registry
	entities   *mockEntities
	medallions *mockMedallions
	audit      *mockAudit
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		entities:   &mockEntities{links: make(map[string]*entity.CaseEntity)},
		medallions: &mockMedallions{byNumber: make(map[string]*entity.Medallion)},
		audit:      &mockAudit{},
	}
	b := steps.NewBuilder()
	Register(b, Deps{Entities: h.entities, Medallions: h.medallions, Audit: h.audit, Logger: &mockLogger{}})

	registry, err := b.Build()
	require.NoError(t, err)
	h.registry = registry
	return h
}

func (h *harness) process(caseNo, stepID, payload string) (interface{}, error) {
	return h.registry.Run(context.Background(), stepID, steps.OperationProcess, steps.Request{
		CaseNo:  caseNo,
		Payload: json.RawMessage(payload),
	})
}

func (h *harness) fetch(caseNo, stepID string) (interface{}, error) {
	return h.registry.Run(context.Background(), stepID, steps.OperationFetch, steps.Request{CaseNo: caseNo})
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 4, h.registry.Len())
	for _, op := range []steps.Operation{steps.OperationProcess, steps.OperationFetch} {
		assert.True(t, h.registry.Has(StepEnterDetails, op))
		assert.True(t, h.registry.Has(StepAssignOwner, op))
	}
}

func TestEnterDetails(t *testing.T) {
	h := newHarness(t)

	out, err := h.process("NMED000001", StepEnterDetails,
		`{"medallion_number":"1A23","medallion_type":"Regular","expiration_date":"2027-06-30"}`)
	require.NoError(t, err)

	details := out.(Details)
	assert.Equal(t, "1A23", details.MedallionNumber)
	assert.Equal(t, entity.MedallionStatusInProgress, details.MedallionStatus)
	require.NotNil(t, details.ValidTo)
	assert.Equal(t, "2027-06-30", details.ValidTo.Format("2006-01-02"))

	link := h.entities.links["NMED000001"]
	require.NotNil(t, link)
	assert.Equal(t, EntityName, link.EntityName)
	assert.Equal(t, "1A23", link.IdentifierValue)

	require.Len(t, h.audit.calls, 1)
	assert.Equal(t, "Medallion 1A23 details saved", h.audit.calls[0].description)

	t.Run("resubmitting updates the same medallion", func(t *testing.T) {
		_, err := h.process("NMED000001", StepEnterDetails, `{"medallion_number":"1A23","medallion_type":"Wheelchair"}`)
		require.NoError(t, err)
		assert.Len(t, h.medallions.byNumber, 1)
		assert.Equal(t, "Wheelchair", h.medallions.byNumber["1A23"].Type)
		assert.Nil(t, h.medallions.byNumber["1A23"].ValidityEndDate)
	})

	t.Run("number held by another case", func(t *testing.T) {
		_, err := h.process("NMED000002", StepEnterDetails, `{"medallion_number":"1A23","medallion_type":"Regular"}`)
		assert.ErrorIs(t, err, domainwf.ErrInvalidPayload)
		assert.Nil(t, h.entities.links["NMED000002"])
	})

	t.Run("case already holds another number", func(t *testing.T) {
		_, err := h.process("NMED000001", StepEnterDetails, `{"medallion_number":"2B45","medallion_type":"Regular"}`)
		assert.ErrorIs(t, err, domainwf.ErrInvalidPayload)
	})
}

func TestEnterDetails_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing number", `{"medallion_type":"Regular"}`},
		{"malformed number", `{"medallion_number":"ABCD","medallion_type":"Regular"}`},
		{"unknown type", `{"medallion_number":"1A23","medallion_type":"Limo"}`},
		{"bad date", `{"medallion_number":"1A23","medallion_type":"Regular","expiration_date":"30/06/2027"}`},
		{"unknown field", `{"medallion_number":"1A23","medallion_type":"Regular","color":"yellow"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.process("NMED000001", StepEnterDetails, tt.payload)
			assert.ErrorIs(t, err, domainwf.ErrInvalidPayload)
			assert.Empty(t, h.medallions.byNumber)
		})
	}
}

func TestEnterDetails_StorageError(t *testing.T) {
	h := newHarness(t)
	h.medallions.upsertFunc = func(*entity.Medallion) error { return errors.New("database is locked") }

	_, err := h.process("NMED000001", StepEnterDetails, `{"medallion_number":"1A23","medallion_type":"Regular"}`)
	assert.Error(t, err)
	assert.Nil(t, h.entities.links["NMED000001"])
	assert.Empty(t, h.audit.calls)
}

func TestAssignOwner(t *testing.T) {
	h := newHarness(t)

	_, err := h.process("NMED000001", StepAssignOwner, `{"owner_id":7}`)
	assert.ErrorIs(t, err, domainwf.ErrInvalidPayload, "no medallion linked yet")

	_, err = h.process("NMED000001", StepEnterDetails, `{"medallion_number":"1A23","medallion_type":"Regular"}`)
	require.NoError(t, err)

	_, err = h.process("NMED000001", StepAssignOwner, `{"owner_id":0}`)
	assert.ErrorIs(t, err, domainwf.ErrInvalidPayload)

	out, err := h.process("NMED000001", StepAssignOwner, `{"owner_id":7}`)
	require.NoError(t, err)
	details := out.(Details)
	assert.Equal(t, entity.MedallionStatusActive, details.MedallionStatus)
	require.NotNil(t, details.OwnerID)
	assert.Equal(t, int64(7), *details.OwnerID)
	assert.Equal(t, "Medallion 1A23 assigned to owner 7", h.audit.calls[len(h.audit.calls)-1].description)
}

func TestFetchDetails(t *testing.T) {
	h := newHarness(t)

	out, err := h.fetch("NMED000001", StepEnterDetails)
	require.NoError(t, err)
	assert.Equal(t, Details{}, out)

	_, err = h.process("NMED000001", StepEnterDetails, `{"medallion_number":"1A23","medallion_type":"Regular"}`)
	require.NoError(t, err)

	for _, stepID := range []string{StepEnterDetails, StepAssignOwner} {
		out, err := h.fetch("NMED000001", stepID)
		require.NoError(t, err)
		assert.Equal(t, "1A23", out.(Details).MedallionNumber, stepID)
		assert.Equal(t, EntityName, out.(Details).ObjectType)
	}
}
