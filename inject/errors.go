package inject

import (
	"errors"
	"fmt"
)

var (
	// ErrDeliveryDenied is returned, possibly wrapped, by a DeliveryStrategy
	// that was refused permission to deliver an event.
	ErrDeliveryDenied = errors.New("inject: delivery denied")

	// ErrUnmappableRune is returned when text contains a rune the key
	// character map cannot produce.
	ErrUnmappableRune = errors.New("inject: unmappable rune")
)

// DeliveryDeniedError reports an event refused for security reasons.
type DeliveryDeniedError struct {
	Cause error
	Event fmt.Stringer
}

func (e *DeliveryDeniedError) Error() string {
	return fmt.Sprintf("inject: delivery of %v denied: %v", e.Event, e.Cause)
}

func (e *DeliveryDeniedError) Is(target error) bool { return target == ErrDeliveryDenied }

func (e *DeliveryDeniedError) Unwrap() error { return e.Cause }
