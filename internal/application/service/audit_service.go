package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/dispatcher"
	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	"github.com/garyjia/medallion-bpm/internal/domain/event"
	"github.com/garyjia/medallion-bpm/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetadataActorKey is the metadata entry Append reads the acting user from
const MetadataActorKey = "actor_id"

// AuditService records the audit trail of cases
type AuditService interface {
	port.AuditLogger

	// ListByCase returns the trail of a case, oldest first
	ListByCase(ctx context.Context, caseNo string) ([]*entity.AuditEntry, error)

	// Subscribe records every case event published on the dispatcher
	Subscribe(d dispatcher.Dispatcher)
}

type auditServiceImpl struct {
	repo   port.AuditTrailRepository
	logger Logger
	now    func() time.Time
}

// NewAuditService creates a new AuditService
func NewAuditService(repo port.AuditTrailRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Append writes the same description to each case's trail
func (s *auditServiceImpl) Append(ctx context.Context, caseNos []string, description string, metadata map[string]interface{}) error {
	var actor *int64
	switch v := metadata[MetadataActorKey].(type) {
	case int64:
		actor = &v
	case *int64:
		actor = v
	}
	return s.write(ctx, caseNos, description, metadata, actor)
}

func (s *auditServiceImpl) write(ctx context.Context, caseNos []string, description string, metadata map[string]interface{}, actor *int64) error {
	description = utils.SanitizeString(description)
	for _, caseNo := range caseNos {
		entry := &entity.AuditEntry{
			CaseNo:      caseNo,
			Description: description,
			Metadata:    metadata,
			CreatedBy:   actor,
			CreatedOn:   s.now().UTC(),
		}
		if err := s.repo.Create(ctx, entry); err != nil {
			s.logger.Error("Failed to write audit entry", "case_no", caseNo, "error", err)
			return fmt.Errorf("write audit entry: %w", err)
		}
	}
	return nil
}

func (s *auditServiceImpl) ListByCase(ctx context.Context, caseNo string) ([]*entity.AuditEntry, error) {
	entries, err := s.repo.ListByCase(ctx, caseNo)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func (s *auditServiceImpl) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeAll("audit-trail", s.handleEvent)
}

// handleEvent runs inside the transition's transaction, so a failed write
// aborts the transition with it
func (s *auditServiceImpl) handleEvent(ctx context.Context, evt *event.Event) error {
	metadata := map[string]interface{}{
		"event_id":       evt.ID,
		"event_type":     evt.Type.String(),
		"correlation_id": evt.CorrelationID,
	}
	for k, v := range evt.Payload {
		metadata[k] = v
	}
	return s.write(ctx, []string{evt.CaseNo}, Describe(evt), metadata, evt.ActorID)
}

// Describe renders the audit line for a case event
func Describe(evt *event.Event) string {
	step := evt.GetPayloadString("step_id")
	switch evt.Type {
	case event.TypeCaseCreated:
		if step == "" {
			return fmt.Sprintf("Created case %s", evt.CaseNo)
		}
		return fmt.Sprintf("Created case %s at step %s", evt.CaseNo, step)
	case event.TypeCaseMoved, event.TypeCaseJumped:
		return fmt.Sprintf("Moved case %s to step %s", evt.CaseNo, step)
	case event.TypeCaseReassigned:
		return fmt.Sprintf("Reassigned step %s of case %s", step, evt.CaseNo)
	case event.TypeCaseEscalated:
		return fmt.Sprintf("Escalated case %s to level %d", evt.CaseNo, evt.GetPayloadInt("escalation_level"))
	case event.TypeCaseClosed:
		return fmt.Sprintf("Closed case %s", evt.CaseNo)
	case event.TypeStepProcessed:
		return fmt.Sprintf("Processed step %s for case %s", step, evt.CaseNo)
	default:
		return fmt.Sprintf("%s on case %s", evt.Type, evt.CaseNo)
	}
}
