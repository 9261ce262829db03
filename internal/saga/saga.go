// Package saga runs a ledger mutation as an ordered list of steps, each
// paired with a compensation that undoes it when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
)

// Step is one unit of work. Compensate may be nil for steps with nothing to
// undo. Compensation describes the reversal for the retry outbox when
// Compensate fails.
type Step struct {
	Name         string
	Do           func(ctx context.Context) error
	Compensate   func(ctx context.Context) error
	Compensation *domain.Compensation
}

// FailureHandler is told about every compensation that could not be applied.
type FailureHandler func(ctx context.Context, sagaName string, step Step, err error)

// CompensationError lists the compensations that failed during an abort.
type CompensationError struct {
	Saga     string
	Failures []StepFailure
}

type StepFailure struct {
	Step string
	Err  error
}

func (e *CompensationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Step, f.Err))
	}
	return fmt.Sprintf("%s: %d compensation(s) failed: %s", e.Saga, len(e.Failures), strings.Join(parts, "; "))
}

func (e *CompensationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

type Option func(*Saga)

// OnCompensationFailure registers a handler for failed compensations.
func OnCompensationFailure(h FailureHandler) Option {
	return func(s *Saga) { s.onFailure = h }
}

// LogOnly keeps compensation failures out of the error returned by Abort.
// They are still logged and passed to the failure handler.
func LogOnly() Option {
	return func(s *Saga) { s.logOnly = true }
}

// Saga executes steps one at a time and remembers the completed ones.
type Saga struct {
	name      string
	done      []Step
	onFailure FailureHandler
	logOnly   bool
}

func New(name string, opts ...Option) *Saga {
	s := &Saga{name: name}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes step. On success the step becomes eligible for compensation.
func (s *Saga) Run(ctx context.Context, step Step) error {
	logger.Debug("Saga step", "saga", s.name, "step", step.Name)
	if err := step.Do(ctx); err != nil {
		return fmt.Errorf("%s: %w", step.Name, err)
	}
	if step.Compensate != nil {
		s.done = append(s.done, step)
	}
	return nil
}

// Completed returns the number of steps awaiting compensation.
func (s *Saga) Completed() int {
	return len(s.done)
}

// Abort compensates every completed step in reverse order and returns cause,
// joined with a CompensationError when any compensation failed.
func (s *Saga) Abort(ctx context.Context, cause error) error {
	logger.Warn("Saga aborted, compensating", "saga", s.name, "steps", len(s.done), "cause", cause)

	var failures []StepFailure
	for i := len(s.done) - 1; i >= 0; i-- {
		step := s.done[i]
		if err := step.Compensate(ctx); err != nil {
			logger.Error("Compensation failed", "saga", s.name, "step", step.Name, "error", err)
			failures = append(failures, StepFailure{Step: step.Name, Err: err})
			if s.onFailure != nil {
				s.onFailure(ctx, s.name, step, err)
			}
		}
	}
	s.done = nil

	if len(failures) == 0 || s.logOnly {
		return cause
	}
	return errors.Join(cause, &CompensationError{Saga: s.name, Failures: failures})
}
