package review

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// transientMarkers are scanned case-insensitively against an outcome's
// error text. A match means the failure is worth retrying; anything
// else is terminal.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"network",
	"connection",
	"rate limit",
	"502",
	"503",
	"504",
}

// Retryable reports whether an error text looks transient. Empty error
// text is treated as retryable: a failure that could not even say what
// went wrong is assumed to be environmental.
func Retryable(errText string) bool {
	if strings.TrimSpace(errText) == "" {
		return true
	}
	lower := strings.ToLower(errText)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// InvokeFunc is one reviewer attempt.
type InvokeFunc func(ctx context.Context) (Outcome, error)

// Coordinator retries transient reviewer failures with bounded
// exponential backoff.
type Coordinator struct {
	MaxAttempts int
	// BaseDelay is the backoff time unit; attempt n waits 2^n of
	// these. Defaults to one second.
	BaseDelay time.Duration
}

// Run invokes fn up to MaxAttempts times. Success and terminal
// failures return immediately; context cancellation propagates without
// further attempts. When all attempts are spent the last failure is
// returned.
func (c Coordinator) Run(ctx context.Context, fn InvokeFunc) (Outcome, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := c.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	var last Outcome
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			last = failure(err.Error())
		} else {
			last = out
		}
		if last.Success {
			return last, nil
		}
		if !Retryable(last.Error) {
			slog.Info("reviewer failure is not retryable", "error", last.Error)
			return last, nil
		}
		if attempt == attempts {
			break
		}

		delay := base * (1 << attempt)
		slog.Info("retrying reviewer invocation",
			"attempt", attempt, "max_attempts", attempts, "backoff", delay, "error", last.Error)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}
	return last, nil
}
