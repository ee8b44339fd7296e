package event

// Type identifies the type of domain event
type Type string

const (
	TypeCaseCreated    Type = "case.created"
	TypeCaseMoved      Type = "case.moved"
	TypeCaseJumped     Type = "case.jumped"
	TypeCaseReassigned Type = "case.reassigned"
	TypeCaseEscalated  Type = "case.escalated"
	TypeCaseClosed     Type = "case.closed"
	TypeStepProcessed  Type = "step.processed"
)

// CaseTypes lists every event emitted by case transitions
var CaseTypes = []Type{
	TypeCaseCreated,
	TypeCaseMoved,
	TypeCaseJumped,
	TypeCaseReassigned,
	TypeCaseEscalated,
	TypeCaseClosed,
	TypeStepProcessed,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range CaseTypes {
		if t == known {
			return true
		}
	}
	return false
}
