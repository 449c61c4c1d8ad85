package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// sagaStep is one forward action in a multi-step side-effecting operation,
// paired with the action that undoes it.
type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// saga executes steps in order. When a step fails, the compensations of the
// steps that already completed run in reverse; a compensation failure is
// logged but never escalated, so the step's original error always reaches
// the caller.
type saga struct {
	completed []sagaStep
}

func (s *saga) execute(ctx context.Context, steps []sagaStep) error {
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			log.Error().Err(err).Str("step", step.name).Msg("Pipeline step failed, rolling back")
			s.rollback(ctx)
			return err
		}
		s.completed = append(s.completed, step)
	}
	return nil
}

func (s *saga) rollback(ctx context.Context) {
	for i := len(s.completed) - 1; i >= 0; i-- {
		step := s.completed[i]
		if step.compensate == nil {
			continue
		}
		if err := step.compensate(ctx); err != nil {
			log.Error().Err(err).Str("step", step.name).Msg("Compensating action failed")
		}
	}
}
