package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	"github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

func ptr(v int64) *int64 { return &v }

func TestCaseRepository_AppendAndLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewCaseRepository(f.db, zap.NewNop())
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &entity.Case{
		CaseNo: "NMED000001", CaseTypeID: f.caseType.ID, Status: entity.CaseStatusOpen,
		StepConfigID: &f.steps["108"].ID, AssigneeUserID: &f.alice.ID, AssigneeRoleID: &f.clerk.ID,
		CreatedBy: &f.alice.ID, CreatedOn: base,
	}
	require.NoError(t, repo.Append(ctx, first))
	assert.NotZero(t, first.ID)

	moved := first.Successor(&f.alice.ID, base.Add(time.Minute))
	moved.Status = entity.CaseStatusInProgress
	moved.StepConfigID = &f.steps["109"].ID
	moved.AssigneeUserID = &f.bob.ID
	require.NoError(t, repo.Append(ctx, moved))

	t.Run("latest joins the step id", func(t *testing.T) {
		latest, err := repo.GetLatest(ctx, "NMED000001")
		require.NoError(t, err)
		assert.Equal(t, moved.ID, latest.ID)
		assert.Equal(t, "109", latest.StepID)
		assert.Equal(t, entity.CaseStatusInProgress, latest.Status)
		assert.True(t, latest.CreatedOn.Equal(base.Add(time.Minute)))
	})

	t.Run("same timestamp breaks ties by id", func(t *testing.T) {
		tie := moved.Successor(&f.bob.ID, moved.CreatedOn)
		tie.Status = entity.CaseStatusClosed
		require.NoError(t, repo.Append(ctx, tie))

		latest, err := repo.GetLatest(ctx, "NMED000001")
		require.NoError(t, err)
		assert.Equal(t, tie.ID, latest.ID)
		assert.True(t, latest.IsClosed())
	})

	t.Run("history newest first", func(t *testing.T) {
		history, err := repo.ListHistory(ctx, "NMED000001")
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, first.ID, history[2].ID)
		assert.Equal(t, "108", history[2].StepID)
	})

	t.Run("visited steps", func(t *testing.T) {
		visited, err := repo.HasVisitedStep(ctx, "NMED000001", f.steps["108"].ID)
		require.NoError(t, err)
		assert.True(t, visited)

		visited, err = repo.HasVisitedStep(ctx, "NMED000001", f.steps["110"].ID)
		require.NoError(t, err)
		assert.False(t, visited)
	})

	t.Run("unknown case", func(t *testing.T) {
		c, err := repo.GetLatest(ctx, "NMED999999")
		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestCaseRepository_CaseNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewCaseRepository(f.db, zap.NewNop())

	latest, err := repo.LatestCaseNumber(ctx, f.caseType.ID)
	require.NoError(t, err)
	assert.Equal(t, "", latest)

	require.NoError(t, repo.ReserveCaseNumber(ctx, "NMED000001", f.caseType.ID))
	require.NoError(t, repo.ReserveCaseNumber(ctx, "NMED999999", f.caseType.ID))
	require.NoError(t, repo.ReserveCaseNumber(ctx, "NMED1000000", f.caseType.ID))

	err = repo.ReserveCaseNumber(ctx, "NMED000001", f.caseType.ID)
	assert.ErrorIs(t, err, workflow.ErrDuplicateCaseNumber)

	latest, err = repo.LatestCaseNumber(ctx, f.caseType.ID)
	require.NoError(t, err)
	assert.Equal(t, "NMED1000000", latest)
}

func TestCaseRepository_ActiveQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewCaseRepository(f.db, zap.NewNop())
	slas := NewSLARepository(f.db, zap.NewNop())
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	sla := &entity.SLA{Name: "Entry", StepConfigID: f.steps["108"].ID, TimeLimitMinutes: 30, EscalationLevel: 1, IsActive: true}
	require.NoError(t, slas.Upsert(ctx, sla))

	appendCase := func(caseNo, status string, user, role *int64, slaID *int64, at time.Time) {
		require.NoError(t, repo.Append(ctx, &entity.Case{
			CaseNo: caseNo, CaseTypeID: f.caseType.ID, Status: status,
			StepConfigID: &f.steps["108"].ID, AssigneeUserID: user, AssigneeRoleID: role,
			SLAID: slaID, CreatedBy: &f.alice.ID, CreatedOn: at,
		}))
	}

	appendCase("NMED000001", entity.CaseStatusOpen, &f.alice.ID, &f.clerk.ID, &sla.ID, base)
	appendCase("NMED000002", entity.CaseStatusOpen, &f.bob.ID, &f.manager.ID, nil, base.Add(time.Minute))
	appendCase("NMED000003", entity.CaseStatusOpen, nil, &f.clerk.ID, nil, base.Add(2*time.Minute))
	// case 4 was alice's but moved on to bob
	appendCase("NMED000004", entity.CaseStatusOpen, &f.alice.ID, nil, nil, base.Add(3*time.Minute))
	appendCase("NMED000004", entity.CaseStatusInProgress, &f.bob.ID, nil, nil, base.Add(4*time.Minute))
	appendCase("NMED000005", entity.CaseStatusClosed, &f.alice.ID, &f.clerk.ID, &sla.ID, base.Add(5*time.Minute))

	t.Run("workbasket by user and roles", func(t *testing.T) {
		cases, err := repo.ListActive(ctx, port.ActiveCaseFilter{UserID: &f.alice.ID, RoleIDs: []int64{f.clerk.ID}})
		require.NoError(t, err)
		var nos []string
		for _, c := range cases {
			nos = append(nos, c.CaseNo)
		}
		assert.Equal(t, []string{"NMED000003", "NMED000001"}, nos)
	})

	t.Run("pagination", func(t *testing.T) {
		cases, err := repo.ListActive(ctx, port.ActiveCaseFilter{UserID: &f.alice.ID, RoleIDs: []int64{f.clerk.ID}, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "NMED000001", cases[0].CaseNo)
	})

	t.Run("empty filter", func(t *testing.T) {
		cases, err := repo.ListActive(ctx, port.ActiveCaseFilter{})
		require.NoError(t, err)
		assert.Empty(t, cases)
	})

	t.Run("sla carriers", func(t *testing.T) {
		cases, err := repo.ListActiveWithSLA(ctx)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "NMED000001", cases[0].CaseNo)
	})

	t.Run("latest by type", func(t *testing.T) {
		cases, err := repo.ListLatestByCaseType(ctx, f.caseType.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, cases, 5)
		assert.Equal(t, "NMED000005", cases[0].CaseNo)
		assert.Equal(t, entity.CaseStatusInProgress, cases[1].Status)
	})
}

func TestReassignmentRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewReassignmentRepository(f.db, zap.NewNop())
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	older := &entity.CaseReassignment{
		CaseNo: "NMED000001", StepID: "108", UserID: &f.bob.ID, PreviousUserID: &f.alice.ID,
		RolesAtAssignment: []entity.RoleSummary{f.clerk}, AssignedByRoles: []entity.RoleSummary{f.manager},
		CreatedBy: f.bob.ID, CreatedOn: base,
	}
	newer := &entity.CaseReassignment{
		CaseNo: "NMED000001", StepID: "108", RoleID: &f.manager.ID,
		CreatedBy: f.bob.ID, CreatedOn: base.Add(time.Hour),
	}
	other := &entity.CaseReassignment{
		CaseNo: "NMED000001", StepID: "109", UserID: &f.alice.ID, CreatedBy: f.bob.ID, CreatedOn: base,
	}
	for _, ra := range []*entity.CaseReassignment{older, newer, other} {
		require.NoError(t, repo.Create(ctx, ra))
	}

	latest, err := repo.GetLatest(ctx, "NMED000001", "108")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Nil(t, latest.UserID)
	assert.Equal(t, f.manager.ID, *latest.RoleID)
	assert.Empty(t, latest.RolesAtAssignment)

	none, err := repo.GetLatest(ctx, "NMED000001", "110")
	require.NoError(t, err)
	assert.Nil(t, none)

	byStep, err := repo.ListLatestByCase(ctx, "NMED000001")
	require.NoError(t, err)
	require.Len(t, byStep, 2)
	assert.Equal(t, newer.ID, byStep["108"].ID)
	assert.Equal(t, other.ID, byStep["109"].ID)

	history, err := repo.ListByCase(ctx, "NMED000001")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, newer.ID, history[0].ID)

	oldest := history[2]
	if oldest.ID != older.ID {
		oldest = history[1]
	}
	assert.Equal(t, []entity.RoleSummary{f.clerk}, oldest.RolesAtAssignment)
	assert.Equal(t, []entity.RoleSummary{f.manager}, oldest.AssignedByRoles)
	assert.Equal(t, f.alice.ID, *oldest.PreviousUserID)
}

func TestCaseEntityRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewCaseEntityRepository(f.db, zap.NewNop())
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	links := []*entity.CaseEntity{
		{CaseNo: "NMED000001", EntityName: "MEDALLION", Identifier: "id", IdentifierValue: "7", IsActive: true, CreatedOn: base},
		{CaseNo: "NMED000002", EntityName: "MEDALLION", Identifier: "id", IdentifierValue: "7", IsActive: true, CreatedOn: base.Add(time.Hour)},
		{CaseNo: "RNEW000001", EntityName: "MEDALLION", Identifier: "id", IdentifierValue: "7", IsActive: true, CreatedOn: base.Add(2 * time.Hour)},
	}
	for _, l := range links {
		require.NoError(t, repo.Create(ctx, l))
	}

	err := repo.Create(ctx, &entity.CaseEntity{CaseNo: "NMED000001", EntityName: "MEDALLION", Identifier: "id", IdentifierValue: "8"})
	assert.Error(t, err, "one link per case")

	got, err := repo.GetByCaseNo(ctx, "NMED000002")
	require.NoError(t, err)
	assert.Equal(t, "7", got.IdentifierValue)
	assert.True(t, got.IsActive)

	latest, err := repo.LatestForEntity(ctx, "MEDALLION", "7", "NMED")
	require.NoError(t, err)
	assert.Equal(t, "NMED000002", latest.CaseNo)

	none, err := repo.LatestForEntity(ctx, "MEDALLION", "8", "NMED")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAuditTrailRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewAuditTrailRepository(f.db, zap.NewNop())
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &entity.AuditEntry{
		CaseNo: "NMED000001", Description: "Case created", CreatedBy: &f.alice.ID, CreatedOn: base,
	}))
	require.NoError(t, repo.Create(ctx, &entity.AuditEntry{
		CaseNo: "NMED000001", Description: "Case moved", CreatedOn: base.Add(time.Minute),
		Metadata: map[string]interface{}{"step_id": "109"},
	}))

	entries, err := repo.ListByCase(ctx, "NMED000001")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Case created", entries[0].Description)
	assert.Equal(t, f.alice.ID, *entries[0].CreatedBy)
	assert.Nil(t, entries[0].Metadata)
	assert.Equal(t, "109", entries[1].Metadata["step_id"])
	assert.Nil(t, entries[1].CreatedBy)
}

func TestMedallionRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewMedallionRepository(f.db, zap.NewNop())

	validity := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	m := &entity.Medallion{Number: "1A23", Type: "Regular", Status: entity.MedallionStatusInProgress, ValidityEndDate: &validity}
	require.NoError(t, repo.Upsert(ctx, m))
	assert.NotZero(t, m.ID)

	m.Status = entity.MedallionStatusActive
	m.OwnerID = ptr(42)
	require.NoError(t, repo.Upsert(ctx, m))

	got, err := repo.GetByNumber(ctx, "1A23")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, entity.MedallionStatusActive, got.Status)
	assert.Equal(t, int64(42), *got.OwnerID)
	assert.True(t, got.ValidityEndDate.Equal(validity))

	byID, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "1A23", byID.Number)

	missing, err := repo.GetByNumber(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
