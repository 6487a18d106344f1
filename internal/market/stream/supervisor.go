package stream

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"marketcollector/config"

	"go.uber.org/zap"
)

// Runner is one connection lifetime. A nil return means graceful shutdown;
// an error means the connection was lost and may be retried.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervisor restarts the stream loop after connection loss with exponential
// backoff and jitter. The attempt counter resets once a connection survives
// the healthy-after window, so a flaky night does not exhaust the budget of a
// stable deployment.
type Supervisor struct {
	loop   Runner
	cfg    config.ReconnectConfig
	logger *zap.Logger
}

func NewSupervisor(loop Runner, cfg config.ReconnectConfig, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		loop:   loop,
		cfg:    cfg,
		logger: logger,
	}
}

// Run drives the loop until ctx is cancelled or, when max_attempts is set,
// the reconnect budget is exhausted.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.cfg.InitialBackoff
	attempts := 0

	for {
		started := time.Now()
		err := s.loop.Run(ctx)
		if err == nil {
			// Graceful shutdown.
			return nil
		}

		if s.cfg.HealthyAfter > 0 && time.Since(started) >= s.cfg.HealthyAfter {
			backoff = s.cfg.InitialBackoff
			attempts = 0
		}

		attempts++
		if s.cfg.MaxAttempts > 0 && attempts > s.cfg.MaxAttempts {
			return fmt.Errorf("reconnect attempts exhausted after %d tries: %w", attempts-1, err)
		}

		delay := Jitter(backoff)
		s.logger.Warn("stream loop terminated, reconnecting",
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

// Jitter spreads a backoff uniformly over [d/2, 3d/2) so reconnecting
// clients do not stampede the feed in lockstep.
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
