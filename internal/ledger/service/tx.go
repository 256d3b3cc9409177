package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	ledgerdomain "github.com/jimmy-lan/habits-restapi/internal/ledger/domain"
	"github.com/jimmy-lan/habits-restapi/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config bounds the engine's transaction attempts.
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		AttemptTimeout: 5 * time.Second,
		RetryBackoff:   50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaults.AttemptTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaults.RetryBackoff
	}
	return c
}

// runTx executes fn inside a database transaction, retrying the whole
// closure on write conflicts. Each attempt is bounded by the
// configured timeout; a rolled-back attempt leaves no observable
// effect, so fn must be safe to run from scratch.
func (s *Service) runTx(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		err := s.db.WithContext(attemptCtx).Transaction(func(tx *gorm.DB) error {
			return fn(attemptCtx, tx)
		})
		cancel()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= s.cfg.MaxAttempts {
			return fmt.Errorf("%w: %v", ledgerdomain.ErrWriteConflict, err)
		}

		metrics.Engine().IncRetry(op)
		s.log.Warn("retrying conflicting ledger transaction",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
}

// isRetryable classifies store errors that indicate a serialization
// conflict rather than a permanent failure.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "SQLSTATE 40001"), // serialization_failure
		strings.Contains(msg, "SQLSTATE 40P01"), // deadlock_detected
		strings.Contains(msg, "deadlock detected"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"):
		return true
	}
	return false
}
