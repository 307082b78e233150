package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/plumelab/plume-engine/pkg/config"
)

func TestWithCallDeadline_AppliesHardTimeout(t *testing.T) {
	limits := config.LimitsConfig{SoftTimeoutSeconds: 25, HardTimeoutSeconds: 30}
	ctx, cancel := WithCallDeadline(context.Background(), limits, zap.NewNop(), "grammar_check")
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline on the returned context")
	}
	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 30*time.Second {
		t.Errorf("expected deadline about 30s out, got %v", remaining)
	}
}

func TestWithCallDeadline_ZeroConfigLeavesContextUntouched(t *testing.T) {
	ctx, cancel := WithCallDeadline(context.Background(), config.LimitsConfig{}, zap.NewNop(), "grammar_check")
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Error("expected no deadline when timeouts are unset")
	}
}

func TestWithCallDeadline_HardTimeoutCancels(t *testing.T) {
	ctx, cancel := withCallDeadline(context.Background(), 0, 20*time.Millisecond, zap.NewNop(), "qa_span")
	defer cancel()

	select {
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", ctx.Err())
		}
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled by the hard timeout")
	}
}

func TestWithCallDeadline_WarnsPastSoftTimeout(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := withCallDeadline(context.Background(), 10*time.Millisecond, 5*time.Second, zap.New(core), "qa_span")
	defer cancel()

	deadline := time.Now().Add(time.Second)
	for logs.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if logs.Len() == 0 {
		t.Fatal("expected a warning once the soft timeout passed")
	}

	entry := logs.All()[0]
	if entry.Message != "Model call still running past soft timeout" {
		t.Errorf("unexpected warning message: %q", entry.Message)
	}
	if got := entry.ContextMap()["operation"]; got != "qa_span" {
		t.Errorf("expected operation field 'qa_span', got %v", got)
	}
	if ctx.Err() != nil {
		t.Errorf("hard deadline should not have fired yet: %v", ctx.Err())
	}
}

func TestWithCallDeadline_CancelSuppressesWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	_, cancel := withCallDeadline(context.Background(), 30*time.Millisecond, 5*time.Second, zap.New(core), "reformulation")

	// The call completes before the soft timeout.
	cancel()

	time.Sleep(60 * time.Millisecond)
	if logs.Len() != 0 {
		t.Errorf("expected no warning after cancel, got %d entries", logs.Len())
	}
}
