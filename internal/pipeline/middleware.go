package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/observability"
	"github.com/farmalink/erpbridge/internal/ratelimit"
)

// Throttled gates a step behind the minimum-interval throttle, keyed by
// module name, so an accidentally retriggered batch cannot hammer the
// upstream system.
func Throttled(step Step, throttle ratelimit.Throttle) Step {
	return &throttledStep{step: step, throttle: throttle}
}

type throttledStep struct {
	step     Step
	throttle ratelimit.Throttle
}

func (s *throttledStep) Name() string { return s.step.Name() }

func (s *throttledStep) Run(ctx context.Context, st *State) error {
	if s.throttle != nil {
		if err := s.throttle.Wait(ctx, st.Strategy.Name()); err != nil {
			return fmt.Errorf("throttle %s: %w", s.step.Name(), err)
		}
	}
	return s.step.Run(ctx, st)
}

// Timed logs each step's wall-clock duration.
func Timed(step Step, logger *zap.Logger) Step {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &timedStep{step: step, logger: logger}
}

type timedStep struct {
	step   Step
	logger *zap.Logger
}

func (s *timedStep) Name() string { return s.step.Name() }

func (s *timedStep) Run(ctx context.Context, st *State) error {
	start := time.Now()
	err := s.step.Run(ctx, st)
	observability.WithContextLogger(s.logger, ctx).Info("step finished",
		zap.String("step", s.step.Name()),
		zap.String("file", st.File.Name),
		zap.Duration("took", time.Since(start)),
		zap.Bool("failed", err != nil),
	)
	return err
}
