package request

import (
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy replaces the auto-approval policy.
func WithPolicy(policy ApprovalPolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithLogger sets the structured logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces the engine's time source. Used by tests to pin "now"
// for duration-bound checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
