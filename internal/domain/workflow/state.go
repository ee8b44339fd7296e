package workflow

import "github.com/garyjia/medallion-bpm/internal/domain/entity"

// State is a case status in the case lifecycle
type State string

const (
	StateOpen       State = entity.CaseStatusOpen
	StateInProgress State = entity.CaseStatusInProgress
	StateClosed     State = entity.CaseStatusClosed
)

var validStates = map[State]bool{
	StateOpen:       true,
	StateInProgress: true,
	StateClosed:     true,
}

// IsTerminal returns true if no further transitions are accepted
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known case status
func (s State) IsValid() bool {
	return validStates[s]
}
