package idling

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidPolicy is returned when constructing a policy with a
	// non-positive timeout or nil action.
	ErrInvalidPolicy = errors.New("idling: invalid policy")

	// ErrNotificationPending is returned by NotifyWhenAllIdle when a
	// notification is already outstanding.
	ErrNotificationPending = errors.New("idling: idle notification already pending")

	// ErrNotOnMainThread is returned (or panicked, for accessors) when an
	// operation confined to the looper goroutine is called elsewhere.
	ErrNotOnMainThread = errors.New("idling: must be called on the looper goroutine")

	// ErrAppNotIdle is matched by [*AppNotIdleError].
	ErrAppNotIdle = errors.New("idling: app not idle")

	// ErrResourceTimeout is matched by [*ResourceTimeoutError].
	ErrResourceTimeout = errors.New("idling: idling resources timed out")

	// ErrRaceCondition is matched by [*RaceConditionError].
	ErrRaceCondition = errors.New("idling: idling resource race detected")
)

// AppNotIdleError indicates the master synchronisation deadline elapsed.
type AppNotIdleError struct {
	Message string
	Busy    []string
	Timeout time.Duration
}

func (e *AppNotIdleError) Error() string {
	return fmt.Sprintf("idling: app not idle within %s: %s (busy: %s)", e.Timeout, e.Message, formatNames(e.Busy))
}

func (e *AppNotIdleError) Is(target error) bool { return target == ErrAppNotIdle }

// ResourceTimeoutError indicates the dynamic resource error deadline
// elapsed. Cause is set to a [*RaceConditionError] when a busy resource was
// observed reporting inconsistent state.
type ResourceTimeoutError struct {
	Cause   error
	Message string
	Busy    []string
	Timeout time.Duration
}

func (e *ResourceTimeoutError) Error() string {
	msg := fmt.Sprintf("idling: resources timed out after %s: %s (busy: %s)", e.Timeout, e.Message, formatNames(e.Busy))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResourceTimeoutError) Is(target error) bool { return target == ErrResourceTimeout }

func (e *ResourceTimeoutError) Unwrap() error { return e.Cause }

// RaceConditionError names resources that reported idle by poll without
// ever signalling the transition, then went busy again.
type RaceConditionError struct {
	Resources []string
}

func (e *RaceConditionError) Error() string {
	return fmt.Sprintf("idling: resources reported idle without a transition callback, then reported busy: %s", formatNames(e.Resources))
}

func (e *RaceConditionError) Is(target error) bool { return target == ErrRaceCondition }

func formatNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
