package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a configured transition may run
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transitions and builds machines from them
type StateMachineBuilder interface {
	// Configure returns the transition table for the given source state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at the given state
	Build(initial State) StateMachine
}

// StateConfiguration configures transitions out of one state
type StateConfiguration interface {
	// Permit allows a trigger to move to the target state
	Permit(trigger Trigger, to State) StateConfiguration

	// PermitIf allows a trigger to move to the target state when the guard passes
	PermitIf(trigger Trigger, to State, guard GuardFunc) StateConfiguration

	// PermitReentry allows a trigger that keeps the current state
	PermitReentry(trigger Trigger) StateConfiguration
}

type transition struct {
	to    State
	guard GuardFunc
}

type stateConfig struct {
	from        State
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	configs map[State]*stateConfig
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{configs: make(map[State]*stateConfig)}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	cfg, ok := b.configs[state]
	if !ok {
		cfg = &stateConfig{from: state, transitions: make(map[Trigger][]transition)}
		b.configs[state] = cfg
	}
	return cfg
}

// Build copies the transition table so later Configure calls do not leak
// into machines already handed out
func (b *stateMachineBuilder) Build(initial State) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initial))
	}

	table := make(map[State]map[Trigger][]transition, len(b.configs))
	for state, cfg := range b.configs {
		row := make(map[Trigger][]transition, len(cfg.transitions))
		for trigger, ts := range cfg.transitions {
			row[trigger] = append([]transition(nil), ts...)
		}
		table[state] = row
	}

	return &stateMachine{current: initial, table: table}
}

func (c *stateConfig) Permit(trigger Trigger, to State) StateConfiguration {
	return c.PermitIf(trigger, to, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, to State, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{to: to, guard: guard})
	return c
}

func (c *stateConfig) PermitReentry(trigger Trigger) StateConfiguration {
	return c.Permit(trigger, c.from)
}
