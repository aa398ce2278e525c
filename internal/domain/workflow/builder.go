package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a guarded transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transitions and builds machines from them
type StateMachineBuilder interface {
	// Configure returns the transition table for the given status
	Configure(status Status) StateConfiguration

	// Build creates a machine starting at initial
	Build(initial Status) StateMachine
}

// StateConfiguration configures transitions out of a single status
type StateConfiguration interface {
	// Permit allows a trigger to move to the target status
	Permit(trigger Trigger, to Status) StateConfiguration

	// PermitIf allows a trigger to move to the target status when guard passes.
	// Guarded transitions for the same trigger are tried in registration order.
	PermitIf(trigger Trigger, to Status, guard GuardFunc) StateConfiguration
}

type transition struct {
	to    Status
	guard GuardFunc
}

type stateConfig struct {
	from        Status
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	configurations map[Status]*stateConfig
}

type stateMachine struct {
	current        Status
	configurations map[Status]*stateConfig
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[Status]*stateConfig),
	}
}

func (b *stateMachineBuilder) Configure(status Status) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	cfg, ok := b.configurations[status]
	if !ok {
		cfg = &stateConfig{
			from:        status,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[status] = cfg
	}
	return cfg
}

// Build copies the transition tables so machines never share mutable state
// with the builder or with each other.
func (b *stateMachineBuilder) Build(initial Status) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	configs := make(map[Status]*stateConfig, len(b.configurations))
	for status, cfg := range b.configurations {
		transitions := make(map[Trigger][]transition, len(cfg.transitions))
		for trigger, ts := range cfg.transitions {
			transitions[trigger] = append([]transition(nil), ts...)
		}
		configs[status] = &stateConfig{from: status, transitions: transitions}
	}

	return &stateMachine{current: initial, configurations: configs}
}

func (c *stateConfig) Permit(trigger Trigger, to Status) StateConfiguration {
	return c.PermitIf(trigger, to, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, to Status, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{to: to, guard: guard})
	return c
}

func (m *stateMachine) State() Status {
	return m.current
}

// CanFire does not evaluate guards; it only reports whether a transition is configured.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	cfg, ok := m.configurations[m.current]
	if !ok {
		return false
	}
	return len(cfg.transitions[trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	cfg, ok := m.configurations[m.current]
	if !ok {
		return fmt.Errorf("%w: %s from %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	ts := cfg.transitions[trigger]
	if len(ts) == 0 {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}
