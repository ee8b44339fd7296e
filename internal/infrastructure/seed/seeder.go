// Package seed loads BPM configuration from an Excel workbook
package seed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// Sheet names, in the order they are applied
const (
	SheetRoles      = "Roles"
	SheetUsers      = "Users"
	SheetCaseTypes  = "CaseTypes"
	SheetSteps      = "CaseStepConfig"
	SheetFirstSteps = "CaseFirstStepConfig"
	SheetSLAs       = "SLA"
)

// Headers lists the columns each sheet is read by. Column order in the
// workbook does not matter; the header row names them.
var Headers = map[string][]string{
	SheetRoles:      {"name"},
	SheetUsers:      {"id", "first_name", "middle_name", "last_name", "email", "roles"},
	SheetCaseTypes:  {"name", "prefix"},
	SheetSteps:      {"case_type_prefix", "step_id", "step_name", "group_name", "next_step_id", "roles", "default_assignee_id", "weight"},
	SheetFirstSteps: {"case_type_prefix", "first_step_id"},
	SheetSLAs:       {"case_type_prefix", "step_id", "name", "time_limit_minutes", "escalation_level", "user_id", "role_name", "is_active"},
}

// Summary counts the rows applied per sheet
type Summary struct {
	Roles      int `json:"roles"`
	Users      int `json:"users"`
	CaseTypes  int `json:"case_types"`
	Steps      int `json:"steps"`
	FirstSteps int `json:"first_steps"`
	SLAs       int `json:"slas"`
}

// Seeder applies a configuration workbook. Every sheet is optional; rows
// are upserted so a workbook can be applied repeatedly.
type Seeder struct {
	users     port.UserDirectory
	caseTypes port.CaseTypeRepository
	steps     port.StepConfigRepository
	slas      port.SLARepository
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewSeeder creates a new workbook seeder
func NewSeeder(
	users port.UserDirectory,
	caseTypes port.CaseTypeRepository,
	steps port.StepConfigRepository,
	slas port.SLARepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *Seeder {
	return &Seeder{
		users:     users,
		caseTypes: caseTypes,
		steps:     steps,
		slas:      slas,
		txManager: txManager,
		logger:    logger,
	}
}

// LoadFile opens the workbook at path and applies it
func (s *Seeder) LoadFile(ctx context.Context, path string) (*Summary, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return s.Load(ctx, f)
}

// Load applies every sheet of the workbook in one transaction. A row that
// names an unknown case type, step, role or user aborts the whole load.
func (s *Seeder) Load(ctx context.Context, f *excelize.File) (*Summary, error) {
	sum := &Summary{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		run := &loadRun{Seeder: s, f: f, roles: make(map[string]entity.RoleSummary)}
		steps := []struct {
			sheet string
			apply func(context.Context, record) error
			count *int
		}{
			{SheetRoles, run.role, &sum.Roles},
			{SheetUsers, run.user, &sum.Users},
			{SheetCaseTypes, run.caseType, &sum.CaseTypes},
			{SheetSteps, run.step, &sum.Steps},
			{SheetFirstSteps, run.firstStep, &sum.FirstSteps},
			{SheetSLAs, run.sla, &sum.SLAs},
		}
		for _, st := range steps {
			records, err := run.records(st.sheet)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := st.apply(txCtx, rec); err != nil {
					return fmt.Errorf("sheet %s row %d: %w", st.sheet, rec.row, err)
				}
				*st.count++
			}
			s.logger.Info("Sheet applied", zap.String("sheet", st.sheet), zap.Int("rows", len(records)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// record is one data row keyed by header
type record struct {
	row    int
	values map[string]string
}

func (r record) str(key string) string {
	return strings.TrimSpace(r.values[key])
}

func (r record) required(key string) (string, error) {
	v := r.str(key)
	if v == "" {
		return "", fmt.Errorf("column %s is required", key)
	}
	return v, nil
}

// optionalInt returns nil for an empty cell. Spreadsheet numbers such as
// "109.0" are accepted.
func (r record) optionalInt(key string) (*int64, error) {
	v := r.str(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int64(f)) {
		return nil, fmt.Errorf("column %s: %q is not a whole number", key, v)
	}
	n := int64(f)
	return &n, nil
}

func (r record) intOr(key string, def int64) (int64, error) {
	n, err := r.optionalInt(key)
	if err != nil || n == nil {
		return def, err
	}
	return *n, nil
}

// stepID normalises numeric step ids the spreadsheet may render as floats
func (r record) stepID(key string) (string, error) {
	v := r.str(key)
	if v == "" {
		return "", nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return v, nil
}

func (r record) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r record) flag(key string, def bool) (bool, error) {
	v := strings.ToLower(r.str(key))
	switch v {
	case "":
		return def, nil
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("column %s: %q is not a boolean", key, v)
	}
}

type loadRun struct {
	*Seeder
	f     *excelize.File
	roles map[string]entity.RoleSummary
}

// records reads a sheet into header-keyed rows. A missing sheet yields none.
func (l *loadRun) records(sheet string) ([]record, error) {
	if idx, err := l.f.GetSheetIndex(sheet); err != nil || idx < 0 {
		l.logger.Warn("Sheet not found, skipping", zap.String("sheet", sheet))
		return nil, nil
	}
	rows, err := l.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []record
	for i, row := range rows[1:] {
		rec := record{row: i + 2, values: make(map[string]string, len(header))}
		blank := true
		for col, name := range header {
			if col < len(row) {
				rec.values[name] = row[col]
				if strings.TrimSpace(row[col]) != "" {
					blank = false
				}
			}
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *loadRun) resolveRole(ctx context.Context, name string) (entity.RoleSummary, error) {
	if role, ok := l.roles[name]; ok {
		return role, nil
	}
	role, err := l.users.GetRoleByName(ctx, name)
	if err != nil {
		return entity.RoleSummary{}, err
	}
	if role == nil {
		return entity.RoleSummary{}, fmt.Errorf("unknown role %q", name)
	}
	l.roles[name] = *role
	return *role, nil
}

func (l *loadRun) resolveRoles(ctx context.Context, names []string) ([]entity.RoleSummary, error) {
	roles := make([]entity.RoleSummary, 0, len(names))
	for _, name := range names {
		role, err := l.resolveRole(ctx, name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (l *loadRun) requireUser(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	u, err := l.users.GetUser(ctx, *id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("unknown user %d", *id)
	}
	return nil
}

func (l *loadRun) resolveCaseType(ctx context.Context, rec record) (*entity.CaseType, error) {
	prefix, err := rec.required("case_type_prefix")
	if err != nil {
		return nil, err
	}
	ct, err := l.caseTypes.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if ct == nil {
		return nil, fmt.Errorf("unknown case type %q", prefix)
	}
	return ct, nil
}

func (l *loadRun) resolveStep(ctx context.Context, ct *entity.CaseType, stepID string) (*entity.StepConfig, error) {
	steps, err := l.steps.ListByCaseType(ctx, ct.ID)
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		if s.StepID == stepID {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown step %s of case type %s", stepID, ct.Prefix)
}

func (l *loadRun) role(ctx context.Context, rec record) error {
	name, err := rec.required("name")
	if err != nil {
		return err
	}
	role := entity.RoleSummary{Name: name}
	if err := l.users.UpsertRole(ctx, &role); err != nil {
		return err
	}
	l.roles[name] = role
	return nil
}

func (l *loadRun) user(ctx context.Context, rec record) error {
	id, err := rec.optionalInt("id")
	if err != nil {
		return err
	}
	first, err := rec.required("first_name")
	if err != nil {
		return err
	}
	roles, err := l.resolveRoles(ctx, rec.list("roles"))
	if err != nil {
		return err
	}

	u := &entity.User{
		FirstName:  first,
		MiddleName: rec.str("middle_name"),
		LastName:   rec.str("last_name"),
		Email:      rec.str("email"),
		Roles:      roles,
	}
	if id != nil {
		u.ID = *id
	}
	return l.users.UpsertUser(ctx, u)
}

func (l *loadRun) caseType(ctx context.Context, rec record) error {
	name, err := rec.required("name")
	if err != nil {
		return err
	}
	prefix, err := rec.required("prefix")
	if err != nil {
		return err
	}
	return l.caseTypes.Upsert(ctx, &entity.CaseType{Name: name, Prefix: strings.ToUpper(prefix)})
}

func (l *loadRun) step(ctx context.Context, rec record) error {
	ct, err := l.resolveCaseType(ctx, rec)
	if err != nil {
		return err
	}
	stepID, err := rec.stepID("step_id")
	if err != nil {
		return err
	}
	if stepID == "" {
		return fmt.Errorf("column step_id is required")
	}
	name, err := rec.required("step_name")
	if err != nil {
		return err
	}
	next, err := rec.stepID("next_step_id")
	if err != nil {
		return err
	}
	roles, err := l.resolveRoles(ctx, rec.list("roles"))
	if err != nil {
		return err
	}
	assignee, err := rec.optionalInt("default_assignee_id")
	if err != nil {
		return err
	}
	if err := l.requireUser(ctx, assignee); err != nil {
		return err
	}
	weight, err := rec.intOr("weight", 0)
	if err != nil {
		return err
	}

	group := rec.str("group_name")
	if group == "" {
		group = name
	}
	return l.steps.Upsert(ctx, &entity.StepConfig{
		CaseTypeID:        ct.ID,
		StepID:            stepID,
		StepName:          name,
		GroupName:         group,
		NextStepID:        next,
		RequiredRoles:     roles,
		DefaultAssigneeID: assignee,
		Weight:            int(weight),
	})
}

// firstStep sets the entry pointer. An empty first_step_id marks the case
// type parallel.
func (l *loadRun) firstStep(ctx context.Context, rec record) error {
	ct, err := l.resolveCaseType(ctx, rec)
	if err != nil {
		return err
	}
	stepID, err := rec.stepID("first_step_id")
	if err != nil {
		return err
	}
	if stepID == "" {
		return l.steps.SetFirstStep(ctx, ct.ID, nil)
	}
	step, err := l.resolveStep(ctx, ct, stepID)
	if err != nil {
		return err
	}
	return l.steps.SetFirstStep(ctx, ct.ID, &step.ID)
}

func (l *loadRun) sla(ctx context.Context, rec record) error {
	ct, err := l.resolveCaseType(ctx, rec)
	if err != nil {
		return err
	}
	stepID, err := rec.stepID("step_id")
	if err != nil {
		return err
	}
	step, err := l.resolveStep(ctx, ct, stepID)
	if err != nil {
		return err
	}
	limit, err := rec.intOr("time_limit_minutes", 0)
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("column time_limit_minutes must be positive")
	}
	level, err := rec.intOr("escalation_level", 1)
	if err != nil {
		return err
	}
	userID, err := rec.optionalInt("user_id")
	if err != nil {
		return err
	}
	if err := l.requireUser(ctx, userID); err != nil {
		return err
	}
	var roleID *int64
	if name := rec.str("role_name"); name != "" {
		role, err := l.resolveRole(ctx, name)
		if err != nil {
			return err
		}
		roleID = &role.ID
	}
	active, err := rec.flag("is_active", true)
	if err != nil {
		return err
	}

	name := rec.str("name")
	if name == "" {
		name = fmt.Sprintf("%s %s level %d", ct.Prefix, step.StepID, level)
	}
	return l.slas.Upsert(ctx, &entity.SLA{
		Name:             name,
		StepConfigID:     step.ID,
		TimeLimitMinutes: int(limit),
		EscalationLevel:  int(level),
		UserID:           userID,
		RoleID:           roleID,
		IsActive:         active,
	})
}

// WriteTemplate saves an empty workbook with every sheet and its header row
func WriteTemplate(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range []string{SheetRoles, SheetUsers, SheetCaseTypes, SheetSteps, SheetFirstSteps, SheetSLAs} {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		header := make([]interface{}, len(Headers[sheet]))
		for j, h := range Headers[sheet] {
			header[j] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sheet, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
