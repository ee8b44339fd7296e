package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

func TestCaseTypeRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewCaseTypeRepository(f.db, zap.NewNop())

	t.Run("lookup by prefix and id", func(t *testing.T) {
		byPrefix, err := repo.GetByPrefix(ctx, "NMED")
		require.NoError(t, err)
		require.NotNil(t, byPrefix)
		assert.Equal(t, f.caseType.ID, byPrefix.ID)

		byID, err := repo.GetByID(ctx, f.caseType.ID)
		require.NoError(t, err)
		assert.Equal(t, "New Medallion", byID.Name)
	})

	t.Run("missing rows return nil", func(t *testing.T) {
		ct, err := repo.GetByPrefix(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, ct)
	})

	t.Run("upsert by prefix keeps id", func(t *testing.T) {
		renamed := &entity.CaseType{Name: "New Medallion Intake", Prefix: "NMED"}
		require.NoError(t, repo.Upsert(ctx, renamed))
		assert.Equal(t, f.caseType.ID, renamed.ID)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "New Medallion Intake", all[0].Name)
	})
}

func TestStepConfigRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewStepConfigRepository(f.db, zap.NewNop())

	t.Run("lists chain in weight order with ordered roles", func(t *testing.T) {
		steps, err := repo.ListByCaseType(ctx, f.caseType.ID)
		require.NoError(t, err)
		require.Len(t, steps, 3)
		assert.Equal(t, []string{"108", "109", "110"}, []string{steps[0].StepID, steps[1].StepID, steps[2].StepID})
		assert.Equal(t, []entity.RoleSummary{f.manager, f.clerk}, steps[1].RequiredRoles)
		assert.Equal(t, "", steps[2].NextStepID)
		assert.Nil(t, steps[2].DefaultAssigneeID)
		require.NotNil(t, steps[0].DefaultAssigneeID)
		assert.Equal(t, f.alice.ID, *steps[0].DefaultAssigneeID)
	})

	t.Run("get by id", func(t *testing.T) {
		s, err := repo.GetByID(ctx, f.steps["109"].ID)
		require.NoError(t, err)
		assert.Equal(t, "Review Medallion", s.StepName)
		assert.Equal(t, f.manager.ID, *s.PrimaryRoleID())

		missing, err := repo.GetByID(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("first step row states", func(t *testing.T) {
		first, err := repo.GetFirstStep(ctx, f.caseType.ID)
		require.NoError(t, err)
		require.NotNil(t, first.StepConfigID)
		assert.Equal(t, f.steps["108"].ID, *first.StepConfigID)

		absent, err := repo.GetFirstStep(ctx, 9999)
		require.NoError(t, err)
		assert.Nil(t, absent)

		require.NoError(t, repo.SetFirstStep(ctx, f.caseType.ID, nil))
		parallel, err := repo.GetFirstStep(ctx, f.caseType.ID)
		require.NoError(t, err)
		require.NotNil(t, parallel)
		assert.Nil(t, parallel.StepConfigID)
	})

	t.Run("upsert replaces roles", func(t *testing.T) {
		s := f.steps["110"]
		s.RequiredRoles = []entity.RoleSummary{f.clerk}
		s.StepName = "Final Approval"
		require.NoError(t, repo.Upsert(ctx, s))

		got, err := repo.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "Final Approval", got.StepName)
		assert.Equal(t, []entity.RoleSummary{f.clerk}, got.RequiredRoles)
	})
}

func TestUserDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := NewUserDirectory(f.db, zap.NewNop())

	u, err := dir.GetUser(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Equal(t, []entity.RoleSummary{f.clerk}, u.Roles)

	missing, err := dir.GetUser(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	roles, err := dir.GetRoles(ctx, []int64{f.manager.ID, 9999, f.clerk.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []entity.RoleSummary{f.clerk, f.manager}, roles)

	none, err := dir.GetRoles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	role, err := dir.GetRoleByName(ctx, "Manager")
	require.NoError(t, err)
	assert.Equal(t, f.manager.ID, role.ID)

	f.alice.Roles = []entity.RoleSummary{f.clerk, f.manager}
	require.NoError(t, dir.UpsertUser(ctx, f.alice))
	held, err := dir.UserRoles(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, held, 2)
}

func TestSLARepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := NewSLARepository(f.db, zap.NewNop())

	level1 := &entity.SLA{Name: "Entry", StepConfigID: f.steps["108"].ID, TimeLimitMinutes: 60, EscalationLevel: 1, IsActive: true}
	level2 := &entity.SLA{Name: "Entry escalation", StepConfigID: f.steps["108"].ID, TimeLimitMinutes: 120,
		EscalationLevel: 2, UserID: &f.bob.ID, IsActive: false}
	require.NoError(t, repo.Upsert(ctx, level1))
	require.NoError(t, repo.Upsert(ctx, level2))

	got, err := repo.GetForStep(ctx, f.steps["108"].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, level1.ID, got.ID)

	inactive, err := repo.GetForStep(ctx, f.steps["108"].ID, 2)
	require.NoError(t, err)
	assert.Nil(t, inactive)

	byID, err := repo.GetByID(ctx, level2.ID)
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, *byID.UserID)
	assert.Nil(t, byID.RoleID)
}
