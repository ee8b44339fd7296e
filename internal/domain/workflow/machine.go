package workflow

import "context"

// StateMachine tracks one case's status and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, moving to the target state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}

type stateMachine struct {
	current State
	table   map[State]map[Trigger][]transition
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.table[m.current][trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.table[m.current][trigger]
	if len(candidates) == 0 {
		return &TransitionError{From: m.current, Trigger: trigger, Err: ErrInvalidTransition}
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return &TransitionError{From: m.current, Trigger: trigger, Err: ErrGuardFailed}
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.current]))
	for trigger := range m.table[m.current] {
		triggers = append(triggers, trigger)
	}
	return triggers
}

// TransitionError describes a rejected trigger
type TransitionError struct {
	From    State
	Trigger Trigger
	Err     error
}

func (e *TransitionError) Error() string {
	return e.Err.Error() + ": cannot fire " + e.Trigger.String() + " from " + e.From.String()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
