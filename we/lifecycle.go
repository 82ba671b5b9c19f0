package we

import "fmt"

// Lifecycle is a transition table for the states of an aggregate.
type Lifecycle[S comparable] struct {
	initial     map[S]struct{}
	transitions map[S]map[S]struct{}
}

func NewLifecycle[S comparable](initial []S, transitions map[S][]S) *Lifecycle[S] {
	l := &Lifecycle[S]{
		initial:     make(map[S]struct{}, len(initial)),
		transitions: make(map[S]map[S]struct{}, len(transitions)),
	}

	for _, state := range initial {
		l.initial[state] = struct{}{}
	}

	for from, targets := range transitions {
		allowed := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			allowed[to] = struct{}{}
		}
		l.transitions[from] = allowed
	}

	return l
}

// Create validates the state of a new aggregate.
func (l *Lifecycle[S]) Create(state S) error {
	if _, ok := l.initial[state]; !ok {
		return &InvalidStateTransitionError{From: "none", To: fmt.Sprint(state)}
	}

	return nil
}

// Transition validates a move between two states.
func (l *Lifecycle[S]) Transition(from S, to S) error {
	if _, ok := l.transitions[from][to]; !ok {
		return InvalidStateTransition(from, to)
	}

	return nil
}

func (l *Lifecycle[S]) IsTerminal(state S) bool {
	return len(l.transitions[state]) == 0
}
