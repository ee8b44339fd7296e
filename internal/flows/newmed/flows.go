// Package newmed registers the step handlers of the New Medallion case type
package newmed

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/medallion-bpm/internal/application/port"
	"github.com/garyjia/medallion-bpm/internal/application/service"
	"github.com/garyjia/medallion-bpm/internal/application/steps"
	"github.com/garyjia/medallion-bpm/internal/domain/entity"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// Case type prefix and step ids of the flow
const (
	Prefix             = "NMED"
	StepEnterDetails   = "108"
	StepAssignOwner    = "109"
	EntityName         = "medallion"
	EntityIdentifier   = "medallion_number"
	expirationDateForm = "2006-01-02"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Deps are the collaborators the handlers reach
type Deps struct {
	Entities   service.CaseEntityService
	Medallions port.MedallionRepository
	Audit      port.AuditLogger
	Logger     Logger
}

// DetailsInput is the payload of the Enter Medallion Details step
type DetailsInput struct {
	MedallionNumber string `json:"medallion_number" validate:"required,medallion_number"`
	MedallionType   string `json:"medallion_type" validate:"required,oneof=Regular Wheelchair"`
	ExpirationDate  string `json:"expiration_date" validate:"omitempty,datetime=2006-01-02"`
}

// OwnerInput is the payload of the Assign Owner step
type OwnerInput struct {
	OwnerID int64 `json:"owner_id" validate:"required,gt=0"`
}

// Details is the medallion as the case screen shows it. Empty until the
// case is linked to a medallion.
type Details struct {
	ObjectType      string     `json:"object_type,omitempty"`
	MedallionID     int64      `json:"medallion_id,omitempty"`
	MedallionNumber string     `json:"medallion_number,omitempty"`
	MedallionType   string     `json:"medallion_type,omitempty"`
	MedallionStatus string     `json:"medallion_status,omitempty"`
	OwnerID         *int64     `json:"owner_id,omitempty"`
	ValidTo         *time.Time `json:"valid_to,omitempty"`
}

func detailsOf(m *entity.Medallion) Details {
	return Details{
		ObjectType:      EntityName,
		MedallionID:     m.ID,
		MedallionNumber: m.Number,
		MedallionType:   m.Type,
		MedallionStatus: m.Status,
		OwnerID:         m.OwnerID,
		ValidTo:         m.ValidityEndDate,
	}
}

type flow struct {
	Deps
}

// Register adds the flow's handlers to the registry builder
func Register(b *steps.Builder, deps Deps) {
	f := &flow{Deps: deps}
	b.Register(
		steps.Process(StepEnterDetails, "Enter Medallion Details", f.enterDetails),
		steps.Fetch(StepEnterDetails, "Fetch Medallion Details", f.fetchDetails),
		steps.Process(StepAssignOwner, "Assign Medallion Owner", f.assignOwner),
		steps.Fetch(StepAssignOwner, "Fetch Medallion Owner", f.fetchDetails),
	)
}

// enterDetails creates or updates the case's medallion and links the case
// to it on first save. A number already held by another medallion is
// rejected.
func (f *flow) enterDetails(ctx context.Context, caseNo string, in DetailsInput) (Details, error) {
	link, err := f.Entities.Get(ctx, caseNo)
	if err != nil {
		return Details{}, err
	}
	if link != nil && link.IdentifierValue != in.MedallionNumber {
		return Details{}, fmt.Errorf("%w: case %s already holds medallion %s",
			domainwf.ErrInvalidPayload, caseNo, link.IdentifierValue)
	}

	existing, err := f.Medallions.GetByNumber(ctx, in.MedallionNumber)
	if err != nil {
		return Details{}, err
	}
	if existing != nil && link == nil {
		return Details{}, fmt.Errorf("%w: medallion number %s already exists",
			domainwf.ErrInvalidPayload, in.MedallionNumber)
	}

	m := existing
	if m == nil {
		m = &entity.Medallion{Number: in.MedallionNumber, Status: entity.MedallionStatusInProgress}
	}
	m.Type = in.MedallionType
	m.ValidityEndDate = nil
	if in.ExpirationDate != "" {
		validTo, err := time.Parse(expirationDateForm, in.ExpirationDate)
		if err != nil {
			return Details{}, fmt.Errorf("%w: expiration_date: %v", domainwf.ErrInvalidPayload, err)
		}
		m.ValidityEndDate = &validTo
	}
	if err := f.Medallions.Upsert(ctx, m); err != nil {
		return Details{}, err
	}

	if link == nil {
		if _, err := f.Entities.Create(ctx, caseNo, EntityName, EntityIdentifier, m.Number); err != nil {
			return Details{}, err
		}
	}

	if err := f.Audit.Append(ctx, []string{caseNo}, fmt.Sprintf("Medallion %s details saved", m.Number),
		map[string]interface{}{"medallion_id": m.ID}); err != nil {
		return Details{}, err
	}

	f.Logger.Info("Medallion details saved", "case_no", caseNo, "medallion_number", m.Number)
	return detailsOf(m), nil
}

func (f *flow) assignOwner(ctx context.Context, caseNo string, in OwnerInput) (Details, error) {
	m, err := f.linkedMedallion(ctx, caseNo)
	if err != nil {
		return Details{}, err
	}
	if m == nil {
		return Details{}, fmt.Errorf("%w: case %s has no medallion yet", domainwf.ErrInvalidPayload, caseNo)
	}

	m.OwnerID = &in.OwnerID
	m.Status = entity.MedallionStatusActive
	if err := f.Medallions.Upsert(ctx, m); err != nil {
		return Details{}, err
	}

	if err := f.Audit.Append(ctx, []string{caseNo}, fmt.Sprintf("Medallion %s assigned to owner %d", m.Number, in.OwnerID),
		map[string]interface{}{"medallion_id": m.ID, "owner_id": in.OwnerID}); err != nil {
		return Details{}, err
	}

	f.Logger.Info("Medallion owner assigned", "case_no", caseNo, "medallion_number", m.Number, "owner_id", in.OwnerID)
	return detailsOf(m), nil
}

func (f *flow) fetchDetails(ctx context.Context, caseNo string, _ map[string]string) (Details, error) {
	m, err := f.linkedMedallion(ctx, caseNo)
	if err != nil || m == nil {
		return Details{}, err
	}
	return detailsOf(m), nil
}

// linkedMedallion returns the medallion the case is linked to, or nil
func (f *flow) linkedMedallion(ctx context.Context, caseNo string) (*entity.Medallion, error) {
	link, err := f.Entities.Get(ctx, caseNo)
	if err != nil || link == nil {
		return nil, err
	}
	m, err := f.Medallions.GetByNumber(ctx, link.IdentifierValue)
	if err != nil {
		return nil, err
	}
	if m == nil {
		f.Logger.Error("Case linked to a missing medallion", "case_no", caseNo, "medallion_number", link.IdentifierValue)
	}
	return m, nil
}
