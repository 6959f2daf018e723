package controller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/go-uisync/looper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectKeyEvent(t *testing.T) {
	h := newHarness(t)
	event := inject.KeyEvent{Action: inject.KeyActionDown, Code: inject.KeyCodeA, Rune: 'a'}
	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectKeyEvent(ctx, event)
		return err
	}))
	assert.True(t, ok)

	keys := h.recorder.Keys()
	require.Len(t, keys, 1)
	assert.False(t, keys[0].EventTime.IsZero())
	assert.NotZero(t, keys[0].Flags&inject.FlagFromSystem)
	if diff := cmp.Diff(event, keys[0], cmpopts.IgnoreFields(inject.KeyEvent{}, `DownTime`, `EventTime`, `Flags`)); diff != `` {
		t.Errorf("unexpected event (-want +got):\n%s", diff)
	}

	m := h.ctrl.Metrics()
	assert.Equal(t, uint64(1), m.KeyInjections)
	assert.Equal(t, uint64(1), m.Rounds)
	assert.Equal(t, Condition(0), h.ctrl.Signalled())
}

func TestInjectKeyEvent_denied(t *testing.T) {
	h := newHarness(t)
	h.recorder.Key = func(inject.KeyEvent) (bool, error) {
		return false, fmt.Errorf("%w: not ours", inject.ErrDeliveryDenied)
	}
	err := h.onMain(func(ctx context.Context) error {
		ok, err := h.ctrl.InjectKeyEvent(ctx, inject.KeyEvent{Code: inject.KeyCodeA})
		assert.False(t, ok)
		return err
	})
	assert.ErrorIs(t, err, inject.ErrDeliveryDenied)
	var denied *inject.DeliveryDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestInjectKeyEvent_failureIsFalse(t *testing.T) {
	h := newHarness(t)
	h.recorder.Key = func(inject.KeyEvent) (bool, error) {
		return false, errors.New("transient")
	}
	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectKeyEvent(ctx, inject.KeyEvent{Code: inject.KeyCodeA})
		return err
	}))
	assert.False(t, ok)
	assert.Equal(t, 1, h.recorder.Attempts())
}

func TestInjectKeyEvent_panic(t *testing.T) {
	h := newHarness(t)
	h.recorder.Key = func(inject.KeyEvent) (bool, error) { panic("delivery") }
	err := h.onMain(func(ctx context.Context) error {
		_, err := h.ctrl.InjectKeyEvent(ctx, inject.KeyEvent{Code: inject.KeyCodeA})
		return err
	})
	var panicErr *looper.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "delivery", panicErr.Value)

	// the executor survives
	require.NoError(t, h.onMain(func(ctx context.Context) error {
		h.recorder.Key = nil
		ok, err := h.ctrl.InjectKeyEvent(ctx, inject.KeyEvent{Code: inject.KeyCodeA})
		assert.True(t, ok)
		return err
	}))
}

func TestInjectKeyEvent_drainsWhileDelivering(t *testing.T) {
	h := newHarness(t)
	// delivery waits on work only the looper can run
	h.recorder.Key = func(inject.KeyEvent) (bool, error) {
		var delivered bool
		err := h.loop.RunSync(context.Background(), func() error {
			delivered = true
			return nil
		})
		return delivered, err
	}
	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectKeyEvent(ctx, inject.KeyEvent{Code: inject.KeyCodeA})
		return err
	}))
	assert.True(t, ok)
	assert.GreaterOrEqual(t, h.ctrl.Metrics().Dispatched, uint64(2))
}

func TestInjectKeyEvent_incomplete(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.Policies().SetMaster(idling.MustPolicy(50*time.Millisecond, idling.LogWarning{})))
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h.recorder.Key = func(inject.KeyEvent) (bool, error) {
		<-release
		return true, nil
	}

	err := h.onMain(func(ctx context.Context) error {
		ok, err := h.ctrl.InjectKeyEvent(ctx, inject.KeyEvent{Code: inject.KeyCodeA})
		assert.False(t, ok)
		return err
	})
	assert.ErrorIs(t, err, ErrInjectionIncomplete)
	assert.Equal(t, uint64(1), h.ctrl.Metrics().Timeouts)
	assert.Contains(t, h.logs.String(), `KEY_INJECTED`)
}

func TestInjectMotionEvent(t *testing.T) {
	h := newHarness(t)
	var followUp atomic.Bool
	h.recorder.Motion = func(inject.MotionEvent) (bool, error) {
		// side effect of the input, queued after delivery
		_, err := h.loop.PostDelayed(func() error {
			followUp.Store(true)
			return nil
		}, 10*time.Millisecond)
		return err == nil, err
	}
	event := inject.MotionEvent{Action: inject.MotionActionDown, X: 10, Y: 20, Pressure: 1}
	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectMotionEvent(ctx, event)
		return err
	}))
	assert.True(t, ok)
	assert.True(t, followUp.Load())
	require.Len(t, h.recorder.Motions(), 1)
	assert.Equal(t, uint64(1), h.ctrl.Metrics().MotionInjections)
}

func TestInjectMotionEvent_deniedStillIdles(t *testing.T) {
	h := newHarness(t)
	var queued atomic.Bool
	h.recorder.Motion = func(inject.MotionEvent) (bool, error) {
		_, _ = h.loop.PostDelayed(func() error {
			queued.Store(true)
			return nil
		}, 10*time.Millisecond)
		return false, inject.ErrDeliveryDenied
	}
	err := h.onMain(func(ctx context.Context) error {
		_, err := h.ctrl.InjectMotionEvent(ctx, inject.MotionEvent{Action: inject.MotionActionDown})
		return err
	})
	assert.ErrorIs(t, err, inject.ErrDeliveryDenied)
	assert.True(t, queued.Load())
}

func TestInjectString_empty(t *testing.T) {
	h := newHarness(t)
	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectString(ctx, ``)
		return err
	}))
	assert.True(t, ok)
	assert.Zero(t, h.recorder.Attempts())
	assert.Zero(t, h.ctrl.Metrics().Rounds)
}

func TestInjectString(t *testing.T) {
	h := newHarness(t)
	want, err := inject.USKeyCharacterMap{}.Events(`Hi!`)
	require.NoError(t, err)

	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectString(ctx, `Hi!`)
		return err
	}))
	assert.True(t, ok)

	got := h.recorder.Keys()
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(inject.KeyEvent{}, `DownTime`, `EventTime`, `Flags`)); diff != `` {
		t.Errorf("unexpected events (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].EventTime.Before(got[i-1].EventTime))
	}
}

func TestInjectString_retriesWithFreshTimestamps(t *testing.T) {
	h := newHarness(t)
	var times []time.Time
	h.recorder.Key = func(event inject.KeyEvent) (bool, error) {
		times = append(times, event.EventTime)
		// the first event is rejected twice
		return len(times) > 2, nil
	}

	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectString(ctx, `a`)
		return err
	}))
	assert.True(t, ok)
	assert.Equal(t, 4, h.recorder.Attempts())
	require.Len(t, times, 4)
	assert.True(t, times[1].After(times[0]) || times[1].Equal(times[0]))
	assert.Len(t, h.recorder.Keys(), 2)
}

func TestInjectString_givesUp(t *testing.T) {
	h := newHarness(t, WithMaxKeyAttempts(3))
	h.recorder.Key = func(event inject.KeyEvent) (bool, error) {
		return event.Rune != 'b', nil
	}

	var ok bool
	require.NoError(t, h.onMain(func(ctx context.Context) (err error) {
		ok, err = h.ctrl.InjectString(ctx, `abc`)
		return err
	}))
	assert.False(t, ok)
	// a down, a up, then three attempts at b down
	assert.Equal(t, 5, h.recorder.Attempts())
	assert.Len(t, h.recorder.Keys(), 2)
	assert.Contains(t, h.logs.String(), `giving up injecting string`)
}

func TestInjectString_unmappable(t *testing.T) {
	h := newHarness(t)
	err := h.onMain(func(ctx context.Context) error {
		_, err := h.ctrl.InjectString(ctx, "snow☃")
		return err
	})
	assert.ErrorIs(t, err, inject.ErrUnmappableRune)
	assert.Zero(t, h.recorder.Attempts())
}

// crashingTarget panics in every handler.
type crashingTarget struct {
	calls atomic.Int32
}

func (x *crashingTarget) HandleKey(inject.KeyEvent) bool {
	x.calls.Add(1)
	panic("key handler")
}

func (x *crashingTarget) HandleMotion(inject.MotionEvent) bool {
	x.calls.Add(1)
	panic("motion handler")
}

func TestInject_windowHandlerPanic(t *testing.T) {
	h := newHarness(t)
	target := &crashingTarget{}
	delivery, err := inject.NewWindowDelivery(h.loop, target)
	require.NoError(t, err)
	injector, err := inject.NewInjector(delivery)
	require.NoError(t, err)
	ctrl, err := New(h.loop, injector, h.registry)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	var panicErr *looper.PanicError

	err = h.onMain(func(ctx context.Context) error {
		ok, err := ctrl.InjectKeyEvent(ctx, inject.KeyEvent{Action: inject.KeyActionDown, Code: inject.KeyCodeA, Rune: 'a'})
		assert.False(t, ok)
		return err
	})
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "key handler", panicErr.Value)
	assert.Equal(t, int32(1), target.calls.Load())

	// typing stops at the first crash, without retrying
	err = h.onMain(func(ctx context.Context) error {
		ok, err := ctrl.InjectString(ctx, `a`)
		assert.False(t, ok)
		return err
	})
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, int32(2), target.calls.Load())

	err = h.onMain(func(ctx context.Context) error {
		_, err := ctrl.InjectMotionEvent(ctx, inject.MotionEvent{Action: inject.MotionActionDown})
		return err
	})
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "motion handler", panicErr.Value)
	assert.Equal(t, int32(3), target.calls.Load())

	// the controller is still usable
	require.NoError(t, h.onMain(ctrl.LoopMainThreadUntilIdle))
	assert.Equal(t, Condition(0), ctrl.Signalled())
}
