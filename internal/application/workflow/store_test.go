package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// memStore is an in-memory backing for every repository the engine uses.
// Transactions snapshot it and restore the snapshot on error.
type memStore struct {
	caseTypes     []*entity.CaseType
	steps         []*entity.StepConfig
	firstSteps    map[int64]*entity.FirstStep
	cases         []*entity.Case
	numbers       map[string]int64
	reassignments []*entity.CaseReassignment
	users         map[int64]*entity.User
	roles         map[int64]entity.RoleSummary
	slas          []*entity.SLA
	nextID        int64

	// failures injected by tests
	failCreateAt  int // fail the n-th reassignment insert, 1-based
	createCalls   int
	reservedTaken map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		firstSteps:    make(map[int64]*entity.FirstStep),
		numbers:       make(map[string]int64),
		users:         make(map[int64]*entity.User),
		roles:         make(map[int64]entity.RoleSummary),
		reservedTaken: make(map[string]bool),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	cases         []*entity.Case
	reassignments []*entity.CaseReassignment
	numbers       map[string]int64
	nextID        int64
}

func (s *memStore) snapshot() memSnapshot {
	numbers := make(map[string]int64, len(s.numbers))
	for k, v := range s.numbers {
		numbers[k] = v
	}
	return memSnapshot{
		cases:         append([]*entity.Case(nil), s.cases...),
		reassignments: append([]*entity.CaseReassignment(nil), s.reassignments...),
		numbers:       numbers,
		nextID:        s.nextID,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.cases = snap.cases
	s.reassignments = snap.reassignments
	s.numbers = snap.numbers
	s.nextID = snap.nextID
}

type memTxKey struct{}

type memTxManager struct {
	store *memStore
	begun int
}

func (m *memTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.begun++
	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// case types

type memCaseTypes struct{ *memStore }

func (s memCaseTypes) GetByID(_ context.Context, id int64) (*entity.CaseType, error) {
	for _, ct := range s.caseTypes {
		if ct.ID == id {
			return ct, nil
		}
	}
	return nil, nil
}

func (s memCaseTypes) GetByPrefix(_ context.Context, prefix string) (*entity.CaseType, error) {
	for _, ct := range s.caseTypes {
		if ct.Prefix == prefix {
			return ct, nil
		}
	}
	return nil, nil
}

func (s memCaseTypes) List(_ context.Context) ([]*entity.CaseType, error) {
	return s.caseTypes, nil
}

func (s memCaseTypes) Upsert(_ context.Context, ct *entity.CaseType) error {
	if ct.ID == 0 {
		ct.ID = s.id()
	}
	s.memStore.caseTypes = append(s.memStore.caseTypes, ct)
	return nil
}

// step configs

type memSteps struct{ *memStore }

func (s memSteps) ListByCaseType(_ context.Context, caseTypeID int64) ([]*entity.StepConfig, error) {
	var out []*entity.StepConfig
	for _, st := range s.steps {
		if st.CaseTypeID == caseTypeID {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight < out[j].Weight })
	return out, nil
}

func (s memSteps) GetByID(_ context.Context, id int64) (*entity.StepConfig, error) {
	for _, st := range s.steps {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, nil
}

func (s memSteps) GetFirstStep(_ context.Context, caseTypeID int64) (*entity.FirstStep, error) {
	return s.firstSteps[caseTypeID], nil
}

func (s memSteps) Upsert(_ context.Context, st *entity.StepConfig) error {
	if st.ID == 0 {
		st.ID = s.id()
	}
	s.memStore.steps = append(s.memStore.steps, st)
	return nil
}

func (s memSteps) SetFirstStep(_ context.Context, caseTypeID int64, stepConfigID *int64) error {
	s.firstSteps[caseTypeID] = &entity.FirstStep{CaseTypeID: caseTypeID, StepConfigID: stepConfigID}
	return nil
}

// case transition log

type memCases struct{ *memStore }

func (s memCases) Append(_ context.Context, c *entity.Case) error {
	c.ID = s.id()
	s.memStore.cases = append(s.memStore.cases, c)
	return nil
}

func (s memCases) history(caseNo string) []*entity.Case {
	var out []*entity.Case
	for _, c := range s.cases {
		if c.CaseNo == caseNo {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedOn.Equal(out[j].CreatedOn) {
			return out[i].CreatedOn.After(out[j].CreatedOn)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s memCases) GetLatest(_ context.Context, caseNo string) (*entity.Case, error) {
	h := s.history(caseNo)
	if len(h) == 0 {
		return nil, nil
	}
	return h[0], nil
}

func (s memCases) ListHistory(_ context.Context, caseNo string) ([]*entity.Case, error) {
	return s.history(caseNo), nil
}

func (s memCases) LatestCaseNumber(_ context.Context, caseTypeID int64) (string, error) {
	latest := ""
	for no, ct := range s.numbers {
		if ct != caseTypeID {
			continue
		}
		if len(no) > len(latest) || (len(no) == len(latest) && no > latest) {
			latest = no
		}
	}
	return latest, nil
}

func (s memCases) ReserveCaseNumber(_ context.Context, caseNo string, caseTypeID int64) error {
	if _, ok := s.numbers[caseNo]; ok || s.reservedTaken[caseNo] {
		// a concurrent writer got there first; it now shows up as latest
		s.numbers[caseNo] = caseTypeID
		delete(s.reservedTaken, caseNo)
		return domainwf.ErrDuplicateCaseNumber
	}
	s.numbers[caseNo] = caseTypeID
	return nil
}

func (s memCases) ListLatestByCaseType(_ context.Context, caseTypeID int64, limit, offset int) ([]*entity.Case, error) {
	return nil, errors.New("not used")
}

func (s memCases) ListActive(_ context.Context, _ port.ActiveCaseFilter) ([]*entity.Case, error) {
	return nil, errors.New("not used")
}

func (s memCases) ListActiveWithSLA(_ context.Context) ([]*entity.Case, error) {
	return nil, errors.New("not used")
}

func (s memCases) HasVisitedStep(_ context.Context, caseNo string, stepConfigID int64) (bool, error) {
	for _, c := range s.history(caseNo) {
		if c.StepConfigID != nil && *c.StepConfigID == stepConfigID {
			return true, nil
		}
	}
	return false, nil
}

// reassignment log

type memReassignments struct{ *memStore }

func (s memReassignments) Create(_ context.Context, r *entity.CaseReassignment) error {
	s.memStore.createCalls++
	if s.failCreateAt > 0 && s.createCalls == s.failCreateAt {
		return errors.New("disk full")
	}
	r.ID = s.id()
	s.memStore.reassignments = append(s.memStore.reassignments, r)
	return nil
}

func (s memReassignments) ListByCase(_ context.Context, caseNo string) ([]*entity.CaseReassignment, error) {
	var out []*entity.CaseReassignment
	for i := len(s.reassignments) - 1; i >= 0; i-- {
		if s.reassignments[i].CaseNo == caseNo {
			out = append(out, s.reassignments[i])
		}
	}
	return out, nil
}

func (s memReassignments) GetLatest(ctx context.Context, caseNo, stepID string) (*entity.CaseReassignment, error) {
	all, _ := s.ListByCase(ctx, caseNo)
	for _, r := range all {
		if r.StepID == stepID {
			return r, nil
		}
	}
	return nil, nil
}

func (s memReassignments) ListLatestByCase(ctx context.Context, caseNo string) (map[string]*entity.CaseReassignment, error) {
	all, _ := s.ListByCase(ctx, caseNo)
	out := make(map[string]*entity.CaseReassignment)
	for _, r := range all {
		if _, seen := out[r.StepID]; !seen {
			out[r.StepID] = r
		}
	}
	return out, nil
}

// user directory

type memUsers struct{ *memStore }

func (s memUsers) GetUser(_ context.Context, id int64) (*entity.User, error) {
	return s.users[id], nil
}

func (s memUsers) UserRoles(_ context.Context, userID int64) ([]entity.RoleSummary, error) {
	u, ok := s.users[userID]
	if !ok {
		return []entity.RoleSummary{}, nil
	}
	return u.Roles, nil
}

func (s memUsers) GetRoles(_ context.Context, ids []int64) ([]entity.RoleSummary, error) {
	out := []entity.RoleSummary{}
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s memUsers) GetRoleByName(_ context.Context, name string) (*entity.RoleSummary, error) {
	for _, r := range s.roles {
		if strings.EqualFold(r.Name, name) {
			role := r
			return &role, nil
		}
	}
	return nil, nil
}

func (s memUsers) UpsertRole(_ context.Context, role *entity.RoleSummary) error {
	s.roles[role.ID] = *role
	return nil
}

func (s memUsers) UpsertUser(_ context.Context, user *entity.User) error {
	s.users[user.ID] = user
	return nil
}

// SLAs

type memSLAs struct{ *memStore }

func (s memSLAs) GetByID(_ context.Context, id int64) (*entity.SLA, error) {
	for _, sla := range s.slas {
		if sla.ID == id {
			return sla, nil
		}
	}
	return nil, nil
}

func (s memSLAs) GetForStep(_ context.Context, stepConfigID int64, level int) (*entity.SLA, error) {
	for _, sla := range s.slas {
		if sla.StepConfigID == stepConfigID && sla.EscalationLevel == level && sla.IsActive {
			return sla, nil
		}
	}
	return nil, nil
}

func (s memSLAs) Upsert(_ context.Context, sla *entity.SLA) error {
	if sla.ID == 0 {
		sla.ID = s.id()
	}
	s.memStore.slas = append(s.memStore.slas, sla)
	return nil
}

func (s *memStore) repositories() Repositories {
	return Repositories{
		CaseTypes:     memCaseTypes{s},
		Steps:         memSteps{s},
		Cases:         memCases{s},
		Reassignments: memReassignments{s},
		Users:         memUsers{s},
		SLAs:          memSLAs{s},
	}
}

// fixture ids
const (
	roleClerk    int64 = 1
	roleManager  int64 = 2
	roleReviewer int64 = 3

	userA int64 = 10
	userB int64 = 11
	userC int64 = 12
	userD int64 = 13

	caseTypeABC int64 = 1
)

var (
	clerk    = entity.RoleSummary{ID: roleClerk, Name: "Clerk"}
	manager  = entity.RoleSummary{ID: roleManager, Name: "Manager"}
	reviewer = entity.RoleSummary{ID: roleReviewer, Name: "Reviewer"}
)

func ptr(v int64) *int64 { return &v }

// newFixture builds case type ABC with chain 101 -> 102 -> 103, every step
// held by user A through its default assignee. Step 101 carries a 60 minute
// level 1 SLA and a level 2 escalation to user D.
func newFixture() *memStore {
	s := newMemStore()
	s.nextID = 100

	for _, r := range []entity.RoleSummary{clerk, manager, reviewer} {
		s.roles[r.ID] = r
	}
	s.users[userA] = &entity.User{ID: userA, FirstName: "Ada", LastName: "Archer", Roles: []entity.RoleSummary{clerk}}
	s.users[userB] = &entity.User{ID: userB, FirstName: "Ben", LastName: "Brook", Roles: []entity.RoleSummary{manager}}
	s.users[userC] = &entity.User{ID: userC, FirstName: "Cyd", LastName: "Cole", Roles: []entity.RoleSummary{clerk, reviewer}}
	s.users[userD] = &entity.User{ID: userD, FirstName: "Dee", LastName: "Dunn", Roles: []entity.RoleSummary{reviewer}}

	s.caseTypes = []*entity.CaseType{{ID: caseTypeABC, Name: "Abc Requests", Prefix: "ABC"}}
	s.steps = []*entity.StepConfig{
		{ID: 1, CaseTypeID: caseTypeABC, StepID: "101", StepName: "Intake", GroupName: "Intake", NextStepID: "102",
			RequiredRoles: []entity.RoleSummary{clerk}, DefaultAssigneeID: ptr(userA), Weight: 1},
		{ID: 2, CaseTypeID: caseTypeABC, StepID: "102", StepName: "Verify", GroupName: "Intake", NextStepID: "103",
			RequiredRoles: []entity.RoleSummary{clerk}, DefaultAssigneeID: ptr(userA), Weight: 2},
		{ID: 3, CaseTypeID: caseTypeABC, StepID: "103", StepName: "Approve", GroupName: "Approval",
			RequiredRoles: []entity.RoleSummary{manager, clerk}, DefaultAssigneeID: ptr(userA), Weight: 3},
	}
	s.firstSteps[caseTypeABC] = &entity.FirstStep{CaseTypeID: caseTypeABC, StepConfigID: ptr(1)}
	s.slas = []*entity.SLA{
		{ID: 1, Name: "Intake", StepConfigID: 1, TimeLimitMinutes: 60, EscalationLevel: 1, IsActive: true},
		{ID: 2, Name: "Intake escalation", StepConfigID: 1, TimeLimitMinutes: 120, EscalationLevel: 2, UserID: ptr(userD), IsActive: true},
	}
	return s
}

func actorOf(s *memStore, userID int64) entity.Actor {
	return s.users[userID].Actor()
}

// testClock hands out strictly increasing timestamps
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}
