package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/application/workflow"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
)

// OverdueLabel is the time-left text of a breached SLA
const OverdueLabel = "Action is overdue"

// SLAStatus is the due date of a case record under its SLA
type SLAStatus struct {
	SLAID           int64     `json:"sla_id"`
	Name            string    `json:"name"`
	EscalationLevel int       `json:"escalation_level"`
	DueDate         time.Time `json:"due_date"`
	TimeLeft        string    `json:"time_left"`
	Overdue         bool      `json:"overdue"`
}

// CalculateTimeDue renders the time between now and due
func CalculateTimeDue(due, now time.Time) string {
	left := due.Sub(now)
	if left < 0 {
		return OverdueLabel
	}

	const day = 24 * time.Hour
	days := int(left / day)
	hours := int((left % day) / time.Hour)
	minutes := int((left % time.Hour) / time.Minute)

	switch {
	case left > day:
		return fmt.Sprintf("%d days, %d hours, %d minutes", days, hours, minutes)
	case left > time.Hour:
		return fmt.Sprintf("%d hours, %d minutes", hours, minutes)
	case left > time.Minute:
		return fmt.Sprintf("%d minutes", minutes)
	default:
		return "Less than 1 minute"
	}
}

// SLAService reports due dates and escalates breached cases
type SLAService interface {
	// Status returns the SLA state of a case record, or nil without an SLA
	Status(ctx context.Context, c *entity.Case) (*SLAStatus, error)

	// EscalateOverdue hands every breached case to its SLA's next level.
	// Returns how many cases were escalated.
	EscalateOverdue(ctx context.Context) (int, error)
}

type slaServiceImpl struct {
	cases  port.CaseRepository
	slas   port.SLARepository
	engine workflow.WorkflowEngine
	logger Logger
	now    func() time.Time
}

// NewSLAService creates a new SLAService
func NewSLAService(
	cases port.CaseRepository,
	slas port.SLARepository,
	engine workflow.WorkflowEngine,
	logger Logger,
	now func() time.Time,
) SLAService {
	if now == nil {
		now = time.Now
	}
	return &slaServiceImpl{
		cases:  cases,
		slas:   slas,
		engine: engine,
		logger: logger,
		now:    now,
	}
}

func (s *slaServiceImpl) Status(ctx context.Context, c *entity.Case) (*SLAStatus, error) {
	if c.SLAID == nil {
		return nil, nil
	}
	sla, err := s.slas.GetByID(ctx, *c.SLAID)
	if err != nil {
		return nil, fmt.Errorf("get sla: %w", err)
	}
	if sla == nil {
		return nil, nil
	}
	return s.status(sla, c), nil
}

// status clocks the SLA from the record's creation
func (s *slaServiceImpl) status(sla *entity.SLA, c *entity.Case) *SLAStatus {
	due := sla.DueAt(c.CreatedOn)
	now := s.now()
	return &SLAStatus{
		SLAID:           sla.ID,
		Name:            sla.Name,
		EscalationLevel: sla.EscalationLevel,
		DueDate:         due,
		TimeLeft:        CalculateTimeDue(due, now),
		Overdue:         now.After(due),
	}
}

func (s *slaServiceImpl) EscalateOverdue(ctx context.Context) (int, error) {
	active, err := s.cases.ListActiveWithSLA(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cases with sla: %w", err)
	}

	escalated := 0
	for _, c := range active {
		if c.StepConfigID == nil {
			continue
		}
		sla, err := s.slas.GetByID(ctx, *c.SLAID)
		if err != nil {
			return escalated, fmt.Errorf("get sla: %w", err)
		}
		if sla == nil || !sla.IsActive || !s.status(sla, c).Overdue {
			continue
		}

		next, err := s.slas.GetForStep(ctx, *c.StepConfigID, sla.EscalationLevel+1)
		if err != nil {
			return escalated, fmt.Errorf("get next sla level: %w", err)
		}
		if next == nil {
			continue
		}

		// one failing case must not hold back the others
		if _, err := s.engine.Escalate(ctx, c.CaseNo, next); err != nil {
			s.logger.Error("Failed to escalate case", "case_no", c.CaseNo, "sla_id", next.ID, "error", err)
			continue
		}
		escalated++
	}

	if escalated > 0 {
		s.logger.Info("Escalated overdue cases", "count", escalated)
	}
	return escalated, nil
}
