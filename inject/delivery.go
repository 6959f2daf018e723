package inject

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-uisync/looper"
)

type (
	// InputTarget receives events on the looper goroutine. Handlers report
	// whether the event was consumed.
	InputTarget interface {
		HandleKey(event KeyEvent) bool
		HandleMotion(event MotionEvent) bool
	}

	// SecureTarget may be implemented by an InputTarget that refuses
	// injected input.
	SecureTarget interface {
		Secure() bool
	}

	// Poster runs tasks on the looper, as [looper.Looper.RunSync].
	Poster interface {
		RunSync(ctx context.Context, task looper.Task) error
	}

	// WindowDelivery delivers events to an InputTarget by running its
	// handler on the looper and waiting for it to return. Events older
	// than MaxEventAge, if set, are rejected as stale, per Clock (default
	// time.Now).
	WindowDelivery struct {
		loop        Poster
		target      InputTarget
		Clock       func() time.Time
		MaxEventAge time.Duration
	}

	// Recorder is an in-memory DeliveryStrategy for tests. Key and Motion,
	// if set, decide the outcome of each delivery; by default every event
	// is delivered. Only delivered events are recorded.
	Recorder struct {
		Key      func(event KeyEvent) (bool, error)
		Motion   func(event MotionEvent) (bool, error)
		keys     []KeyEvent
		motions  []MotionEvent
		mu       sync.Mutex
		attempts int
	}
)

var (
	_ DeliveryStrategy = (*WindowDelivery)(nil)
	_ DeliveryStrategy = (*Recorder)(nil)
)

// NewWindowDelivery returns a WindowDelivery for target.
func NewWindowDelivery(loop Poster, target InputTarget) (*WindowDelivery, error) {
	if loop == nil || target == nil {
		return nil, errors.New("inject: window delivery requires a looper and a target")
	}
	return &WindowDelivery{loop: loop, target: target}, nil
}

func (x *WindowDelivery) DeliverKey(ctx context.Context, event KeyEvent) (bool, error) {
	if err := x.denied(); err != nil {
		return false, err
	}
	if x.stale(event.EventTime) {
		return false, nil
	}
	var handled bool
	err := x.loop.RunSync(ctx, func() error {
		handled = x.target.HandleKey(event)
		return nil
	})
	return handled, err
}

func (x *WindowDelivery) DeliverMotion(ctx context.Context, event MotionEvent) (bool, error) {
	if err := x.denied(); err != nil {
		return false, err
	}
	if x.stale(event.EventTime) {
		return false, nil
	}
	var handled bool
	err := x.loop.RunSync(ctx, func() error {
		handled = x.target.HandleMotion(event)
		return nil
	})
	return handled, err
}

func (x *WindowDelivery) denied() error {
	if secure, ok := x.target.(SecureTarget); ok && secure.Secure() {
		return fmt.Errorf("%w: target window is secure", ErrDeliveryDenied)
	}
	return nil
}

func (x *WindowDelivery) stale(eventTime time.Time) bool {
	if x.MaxEventAge <= 0 {
		return false
	}
	now := time.Now
	if x.Clock != nil {
		now = x.Clock
	}
	return now().Sub(eventTime) > x.MaxEventAge
}

func (x *Recorder) DeliverKey(_ context.Context, event KeyEvent) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.attempts++
	ok, err := true, error(nil)
	if x.Key != nil {
		ok, err = x.Key(event)
	}
	if ok && err == nil {
		x.keys = append(x.keys, event)
	}
	return ok, err
}

func (x *Recorder) DeliverMotion(_ context.Context, event MotionEvent) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.attempts++
	ok, err := true, error(nil)
	if x.Motion != nil {
		ok, err = x.Motion(event)
	}
	if ok && err == nil {
		x.motions = append(x.motions, event)
	}
	return ok, err
}

// Keys returns the delivered key events.
func (x *Recorder) Keys() []KeyEvent {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]KeyEvent(nil), x.keys...)
}

// Motions returns the delivered motion events.
func (x *Recorder) Motions() []MotionEvent {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]MotionEvent(nil), x.motions...)
}

// Attempts returns the number of delivery attempts, successful or not.
func (x *Recorder) Attempts() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.attempts
}
