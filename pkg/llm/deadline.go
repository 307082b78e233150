package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/config"
)

// WithCallDeadline bounds one interactive model call by the configured hard
// timeout. Once the soft timeout passes a warning is logged while the call
// keeps running; the hard timeout cancels the returned context. Zero timeouts
// leave ctx untouched. The returned cancel releases the warning timer and the
// deadline and must be called when the call completes.
func WithCallDeadline(ctx context.Context, limits config.LimitsConfig, logger *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	soft := time.Duration(limits.SoftTimeoutSeconds) * time.Second
	hard := time.Duration(limits.HardTimeoutSeconds) * time.Second
	return withCallDeadline(ctx, soft, hard, logger, operation)
}

func withCallDeadline(ctx context.Context, soft, hard time.Duration, logger *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	if hard <= 0 {
		return ctx, func() {}
	}

	ctx, cancel := context.WithTimeout(ctx, hard)
	if soft <= 0 || soft >= hard {
		return ctx, cancel
	}

	timer := time.AfterFunc(soft, func() {
		logger.Warn("Model call still running past soft timeout",
			zap.String("operation", operation),
			zap.Duration("soft_timeout", soft),
			zap.Duration("hard_timeout", hard))
	})
	return ctx, func() {
		timer.Stop()
		cancel()
	}
}
