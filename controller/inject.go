package controller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/go-uisync/looper"
)

type injectionResult struct {
	err error
	ok  bool
}

// InjectKeyEvent delivers event from the injection executor, draining the
// looper until delivery completes. A security refusal is returned as an
// error matching [inject.ErrDeliveryDenied]; any other failed delivery
// reports false.
func (x *Controller) InjectKeyEvent(ctx context.Context, event inject.KeyEvent) (bool, error) {
	if !x.loop.IsCurrentThread() {
		return false, ErrNotOnMainThread
	}
	return x.injectOnExecutor(ctx, `InjectKeyEvent`, KeyInjected, func(ctx context.Context) (bool, error) {
		return x.injector.InjectKey(ctx, event)
	})
}

// InjectMotionEvent is the motion equivalent of InjectKeyEvent. Regardless
// of the outcome, it drains until idle before returning.
func (x *Controller) InjectMotionEvent(ctx context.Context, event inject.MotionEvent) (bool, error) {
	if !x.loop.IsCurrentThread() {
		return false, ErrNotOnMainThread
	}
	const op = `InjectMotionEvent`
	if x.looping {
		return false, &ReentrancyError{Op: op}
	}

	ok, err := x.injectOnExecutor(ctx, op, MotionInjected, func(ctx context.Context) (bool, error) {
		return x.injector.InjectMotion(ctx, event)
	})

	if idleErr := x.LoopMainThreadUntilIdle(ctx); idleErr != nil {
		if err == nil {
			return false, idleErr
		}
		err = errors.Join(err, idleErr)
	}
	return ok, err
}

// InjectString types text using the configured key character map. Each key
// event is attempted up to the configured limit, re-timestamped each time.
// Returns false, without error, at the first event that could not be
// delivered.
func (x *Controller) InjectString(ctx context.Context, text string) (bool, error) {
	if !x.loop.IsCurrentThread() {
		return false, ErrNotOnMainThread
	}
	if text == `` {
		return true, nil
	}

	events, err := x.keyMap.Events(text)
	if err != nil {
		return false, err
	}

	for i, event := range events {
		var ok bool
		for attempt := 1; !ok && attempt <= x.maxKeyTries; attempt++ {
			ok, err = x.InjectKeyEvent(ctx, event.WithEventTime(x.injector.Now()))
			if err != nil {
				return false, err
			}
		}
		if !ok {
			x.logger.Warning().
				Int(`index`, i).
				Int(`events`, len(events)).
				Int(`attempts`, x.maxKeyTries).
				Stringer(`event`, event).
				Log(`controller: giving up injecting string`)
			return false, nil
		}
	}

	return true, nil
}

// injectOnExecutor runs fn off the looper, so delivery that itself pumps the
// looper cannot deadlock, and drains until it signals c.
func (x *Controller) injectOnExecutor(ctx context.Context, op string, c Condition, fn func(ctx context.Context) (bool, error)) (bool, error) {
	if x.looping {
		return false, &ReentrancyError{Op: op}
	}

	injectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	generation := x.conditions.generation.Load()
	result := make(chan injectionResult, 1)
	if err := x.executor.Submit(func() {
		result <- runInjection(injectCtx, fn)
		x.postSignal(c, generation)
	}); err != nil {
		return false, fmt.Errorf("controller: %s: %w", op, err)
	}
	x.metrics.injection(c)

	if _, err := x.loopUntil(ctx, op, c); err != nil {
		return false, err
	}

	var r injectionResult
	select {
	case r = <-result:
	default:
		return false, ErrInjectionIncomplete
	}

	switch {
	case r.err == nil:
		return r.ok, nil
	case errors.Is(r.err, inject.ErrDeliveryDenied),
		errors.Is(r.err, context.Canceled),
		errors.Is(r.err, context.DeadlineExceeded):
		return false, r.err
	default:
		var panicErr *looper.PanicError
		if errors.As(r.err, &panicErr) {
			return false, r.err
		}
		return false, fmt.Errorf("controller: %s: %w", op, r.err)
	}
}

func runInjection(ctx context.Context, fn func(ctx context.Context) (bool, error)) (r injectionResult) {
	defer func() {
		if v := recover(); v != nil {
			r = injectionResult{err: &looper.PanicError{Value: v, Stack: debug.Stack()}}
		}
	}()
	r.ok, r.err = fn(ctx)
	return r
}
