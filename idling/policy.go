package idling

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// ResponseAction decides what happens when a [Policy] times out. The
	// set of implementations is closed: [RaiseAppNotIdle],
	// [RaiseResourceTimeout], and [LogWarning].
	ResponseAction interface {
		fmt.Stringer
		respond(logger *logiface.Logger[logiface.Event], timeout time.Duration, busy []string, message string) error
	}

	// RaiseAppNotIdle responds with an [*AppNotIdleError].
	RaiseAppNotIdle struct{}

	// RaiseResourceTimeout responds with a [*ResourceTimeoutError].
	RaiseResourceTimeout struct{}

	// LogWarning logs at warning level and does not fail.
	LogWarning struct{}

	// Policy is an immutable timeout and response. The zero value is not
	// valid; use [NewPolicy].
	Policy struct {
		action  ResponseAction
		timeout time.Duration
	}
)

var (
	_ ResponseAction = RaiseAppNotIdle{}
	_ ResponseAction = RaiseResourceTimeout{}
	_ ResponseAction = LogWarning{}
)

func (RaiseAppNotIdle) String() string { return "RaiseAppNotIdle" }

func (RaiseAppNotIdle) respond(_ *logiface.Logger[logiface.Event], timeout time.Duration, busy []string, message string) error {
	return &AppNotIdleError{Message: message, Busy: busy, Timeout: timeout}
}

func (RaiseResourceTimeout) String() string { return "RaiseResourceTimeout" }

func (RaiseResourceTimeout) respond(_ *logiface.Logger[logiface.Event], timeout time.Duration, busy []string, message string) error {
	return &ResourceTimeoutError{Message: message, Busy: busy, Timeout: timeout}
}

func (LogWarning) String() string { return "LogWarning" }

func (LogWarning) respond(logger *logiface.Logger[logiface.Event], timeout time.Duration, busy []string, message string) error {
	logger.Warning().
		Dur(`timeout`, timeout).
		Str(`busy`, strings.Join(busy, `,`)).
		Log(message)
	return nil
}

// NewPolicy validates and returns a policy.
func NewPolicy(timeout time.Duration, action ResponseAction) (Policy, error) {
	if timeout <= 0 {
		return Policy{}, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidPolicy, timeout)
	}
	if action == nil {
		return Policy{}, fmt.Errorf("%w: nil response action", ErrInvalidPolicy)
	}
	return Policy{timeout: timeout, action: action}, nil
}

// MustPolicy is NewPolicy that panics on error.
func MustPolicy(timeout time.Duration, action ResponseAction) Policy {
	p, err := NewPolicy(timeout, action)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) Timeout() time.Duration { return p.timeout }

func (p Policy) Action() ResponseAction { return p.action }

// Valid reports whether p was built by NewPolicy.
func (p Policy) Valid() bool { return p.timeout > 0 && p.action != nil }

// WithTimeout returns a copy of p with a different timeout.
func (p Policy) WithTimeout(timeout time.Duration) (Policy, error) {
	return NewPolicy(timeout, p.action)
}

// WithAction returns a copy of p with a different response.
func (p Policy) WithAction(action ResponseAction) (Policy, error) {
	return NewPolicy(p.timeout, action)
}

// HandleTimeout applies the response action, returning the error it raises,
// or nil if it only logs.
func (p Policy) HandleTimeout(logger *logiface.Logger[logiface.Event], busy []string, message string) error {
	if !p.Valid() {
		return fmt.Errorf("%w: zero value policy handling timeout: %s", ErrInvalidPolicy, message)
	}
	return p.action.respond(logger, p.timeout, busy, message)
}

func (p Policy) String() string {
	return fmt.Sprintf("Policy{timeout=%s, action=%v}", p.timeout, p.action)
}
