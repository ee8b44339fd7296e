package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

func makeCases(n int) []*entity.Case {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]*entity.Case, n)
	for i := range out {
		out[i] = &entity.Case{
			CaseNo:    fmt.Sprintf("NMED%06d", i+1),
			Status:    entity.CaseStatusOpen,
			SLAID:     ptr(1),
			CreatedOn: start,
		}
	}
	return out
}

func TestCaseListService_Workbasket(t *testing.T) {
	var got port.ActiveCaseFilter
	cases := &mockCaseRepo{listActiveFunc: func(_ context.Context, filter port.ActiveCaseFilter) ([]*entity.Case, error) {
		got = filter
		return makeCases(45), nil
	}}
	slas := &mockSLARepo{slas: []*entity.SLA{{ID: 1, TimeLimitMinutes: 60, EscalationLevel: 1, IsActive: true}}}
	sla := NewSLAService(cases, slas, nil, &mockLogger{}, nil)
	svc := NewCaseListService(cases, &mockCaseTypeRepo{}, sla, &mockLogger{})

	actor := entity.Actor{UserID: 10, Roles: []entity.RoleSummary{{ID: 1, Name: "Clerk"}, {ID: 3, Name: "Reviewer"}}}

	page, err := svc.Workbasket(context.Background(), actor, 3, 20)
	require.NoError(t, err)
	require.NotNil(t, got.UserID)
	assert.Equal(t, int64(10), *got.UserID)
	assert.Equal(t, []int64{1, 3}, got.RoleIDs)

	assert.Equal(t, 45, page.Total)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "NMED000041", page.Items[0].CaseNo)
	require.NotNil(t, page.Items[0].SLA)
	assert.Equal(t, int64(1), page.Items[0].SLA.SLAID)
}

func TestCaseListService_Paging(t *testing.T) {
	cases := &mockCaseRepo{listLatestByTypeFunc: func(_ context.Context, caseTypeID int64, limit, offset int) ([]*entity.Case, error) {
		assert.Equal(t, int64(4), caseTypeID)
		return makeCases(30), nil
	}}
	types := &mockCaseTypeRepo{types: map[string]*entity.CaseType{"NMED": {ID: 4, Prefix: "NMED"}}}
	svc := NewCaseListService(cases, types, NewSLAService(cases, &mockSLARepo{}, nil, &mockLogger{}, nil), &mockLogger{})

	tests := []struct {
		name        string
		page        int
		perPage     int
		wantPage    int
		wantPerPage int
		wantItems   int
	}{
		{"defaults", 0, 0, 1, defaultPerPage, 20},
		{"second page", 2, 20, 2, 20, 10},
		{"past the end", 9, 10, 9, 10, 0},
		{"capped page size", 1, 1000, 1, maxPerPage, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ByType(context.Background(), "NMED", tt.page, tt.perPage)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantPerPage, page.PerPage)
			assert.Len(t, page.Items, tt.wantItems)
			assert.Equal(t, 30, page.Total)
		})
	}
}

func TestCaseListService_ByTypeUnknownPrefix(t *testing.T) {
	svc := NewCaseListService(&mockCaseRepo{}, &mockCaseTypeRepo{}, nil, &mockLogger{})
	_, err := svc.ByType(context.Background(), "XXXX", 1, 20)
	assert.ErrorIs(t, err, domainwf.ErrCaseTypeNotFound)
}
