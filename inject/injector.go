package inject

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-uisync/looper"
	"github.com/joeycumines/logiface"
)

type (
	// DeliveryStrategy performs the low-level delivery of events. An
	// implementation refused permission must return an error matching
	// [ErrDeliveryDenied]. A [*looper.PanicError] or
	// [looper.ErrLooperTerminated] is returned to the caller; any other
	// error is treated as a transient failure.
	DeliveryStrategy interface {
		DeliverKey(ctx context.Context, event KeyEvent) (bool, error)
		DeliverMotion(ctx context.Context, event MotionEvent) (bool, error)
	}

	// Injector normalises events and forwards them to a DeliveryStrategy.
	Injector struct {
		strategy   DeliveryStrategy
		logger     *logiface.Logger[logiface.Event]
		clock      func() time.Time
		fromSystem bool
	}
)

// NewInjector returns an Injector delivering via strategy.
func NewInjector(strategy DeliveryStrategy, opts ...Option) (*Injector, error) {
	if strategy == nil {
		return nil, errors.New("inject: nil delivery strategy")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Injector{
		strategy:   strategy,
		logger:     cfg.logger,
		clock:      cfg.clock,
		fromSystem: cfg.fromSystem,
	}, nil
}

// Now returns the current time per the injector's clock.
func (x *Injector) Now() time.Time { return x.clock() }

// NormalizeKey fills in unset timestamps and provenance.
func (x *Injector) NormalizeKey(event KeyEvent) KeyEvent {
	if event.EventTime.IsZero() {
		event.EventTime = x.clock()
	}
	if event.DownTime.IsZero() {
		event.DownTime = event.EventTime
	}
	if x.fromSystem {
		event.Flags |= FlagFromSystem
	}
	return event
}

// NormalizeMotion fills in unset timestamps and provenance.
func (x *Injector) NormalizeMotion(event MotionEvent) MotionEvent {
	if event.EventTime.IsZero() {
		event.EventTime = x.clock()
	}
	if event.DownTime.IsZero() {
		event.DownTime = event.EventTime
	}
	if x.fromSystem {
		event.Flags |= FlagFromSystem
	}
	return event
}

// InjectKey normalises and delivers event. It returns a
// [*DeliveryDeniedError] if delivery was refused, and (false, nil) for any
// other failure.
func (x *Injector) InjectKey(ctx context.Context, event KeyEvent) (bool, error) {
	event = x.NormalizeKey(event)
	ok, err := x.strategy.DeliverKey(ctx, event)
	return x.classify(ctx, event, ok, err)
}

// InjectMotion normalises and delivers event. Outcomes are as InjectKey.
func (x *Injector) InjectMotion(ctx context.Context, event MotionEvent) (bool, error) {
	event = x.NormalizeMotion(event)
	ok, err := x.strategy.DeliverMotion(ctx, event)
	return x.classify(ctx, event, ok, err)
}

func (x *Injector) classify(ctx context.Context, event fmt.Stringer, ok bool, err error) (bool, error) {
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, ErrDeliveryDenied):
		return false, &DeliveryDeniedError{Cause: err, Event: event}
	case errors.As(err, new(*looper.PanicError)),
		errors.Is(err, looper.ErrLooperTerminated):
		// a crashed handler or a dead looper is not worth retrying
		return false, err
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		x.logger.Warning().
			Err(err).
			Str(`event`, event.String()).
			Log(`inject: delivery failed`)
		return false, nil
	}
}
