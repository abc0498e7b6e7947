// Package saga keeps a stack of compensating actions for multi-step writes
// that cannot share one database transaction.
package saga

import (
	"context"
	"errors"

	"github.com/terratrac/eudr-backend/internal/metrics"
	"go.uber.org/zap"
)

type step struct {
	name string
	undo func(context.Context) error
}

type Saga struct {
	steps  []step
	logger *zap.Logger
}

func New(logger *zap.Logger) *Saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saga{logger: logger}
}

// Push registers undo to run on Rollback. Steps run last-in first-out.
func (s *Saga) Push(name string, undo func(context.Context) error) {
	s.steps = append(s.steps, step{name: name, undo: undo})
}

// Len reports the number of pending compensations.
func (s *Saga) Len() int { return len(s.steps) }

// Rollback runs every registered step in reverse order, even after one of
// them fails, and clears the stack. Cancellation of ctx does not stop it.
func (s *Saga) Rollback(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		st := s.steps[i]
		if err := st.undo(ctx); err != nil {
			metrics.CompensationsTotal.WithLabelValues(st.name, "error").Inc()
			s.logger.Error("compensation failed", zap.String("step", st.name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		metrics.CompensationsTotal.WithLabelValues(st.name, "ok").Inc()
		s.logger.Info("compensation applied", zap.String("step", st.name))
	}
	s.steps = nil
	return errors.Join(errs...)
}
