package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	"github.com/garyjia/medallion-bpm/migrations"
	"github.com/garyjia/medallion-bpm/pkg/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "bpm.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = database.NewMigrator(db, zap.NewNop()).Run(migrations.FS)
	require.NoError(t, err)
	return db.DB
}

// fixture is a three-step NMED chain 108 -> 109 -> 110 held by two users
type fixture struct {
	db       *sql.DB
	clerk    entity.RoleSummary
	manager  entity.RoleSummary
	alice    *entity.User
	bob      *entity.User
	caseType *entity.CaseType
	steps    map[string]*entity.StepConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := setupTestDB(t)
	logger := zap.NewNop()
	dir := NewUserDirectory(db, logger)
	types := NewCaseTypeRepository(db, logger)
	stepsRepo := NewStepConfigRepository(db, logger)

	f := &fixture{db: db, steps: make(map[string]*entity.StepConfig)}
	f.clerk = entity.RoleSummary{Name: "Clerk"}
	f.manager = entity.RoleSummary{Name: "Manager"}
	require.NoError(t, dir.UpsertRole(ctx, &f.clerk))
	require.NoError(t, dir.UpsertRole(ctx, &f.manager))

	f.alice = &entity.User{FirstName: "Alice", LastName: "Ng", Email: "alice@example.com", Roles: []entity.RoleSummary{f.clerk}}
	f.bob = &entity.User{FirstName: "Bob", LastName: "Ortiz", Email: "bob@example.com", Roles: []entity.RoleSummary{f.manager}}
	require.NoError(t, dir.UpsertUser(ctx, f.alice))
	require.NoError(t, dir.UpsertUser(ctx, f.bob))

	f.caseType = &entity.CaseType{Name: "New Medallion", Prefix: "NMED"}
	require.NoError(t, types.Upsert(ctx, f.caseType))

	chain := []*entity.StepConfig{
		{StepID: "108", StepName: "Enter Medallion Details", GroupName: "Medallion", NextStepID: "109",
			RequiredRoles: []entity.RoleSummary{f.clerk}, DefaultAssigneeID: &f.alice.ID, Weight: 1},
		{StepID: "109", StepName: "Review Medallion", GroupName: "Medallion", NextStepID: "110",
			RequiredRoles: []entity.RoleSummary{f.manager, f.clerk}, DefaultAssigneeID: &f.bob.ID, Weight: 2},
		{StepID: "110", StepName: "Approve", GroupName: "Approval",
			RequiredRoles: []entity.RoleSummary{f.manager}, Weight: 3},
	}
	for _, s := range chain {
		s.CaseTypeID = f.caseType.ID
		require.NoError(t, stepsRepo.Upsert(ctx, s))
		f.steps[s.StepID] = s
	}
	require.NoError(t, stepsRepo.SetFirstStep(ctx, f.caseType.ID, &f.steps["108"].ID))
	return f
}
