package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-uisync/controller"
	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/go-uisync/looper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textField is an InputTarget accumulating typed runes. It is only touched
// on the looper goroutine.
type textField struct {
	text   []rune
	taps   int
	secure bool
}

func (x *textField) HandleKey(event inject.KeyEvent) bool {
	if event.Action == inject.KeyActionDown && event.Rune != 0 {
		x.text = append(x.text, event.Rune)
	}
	return true
}

func (x *textField) HandleMotion(event inject.MotionEvent) bool {
	if event.Action == inject.MotionActionUp {
		x.taps++
	}
	return true
}

func (x *textField) Secure() bool { return x.secure }

func newTestSession(t *testing.T, opts ...Option) (*Session, *textField) {
	t.Helper()
	field := &textField{}
	s, err := New(append([]Option{WithInputTarget(field), WithLogger(nil)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s, field
}

func TestNew_validation(t *testing.T) {
	_, err := New()
	assert.Error(t, err)

	_, err = New(WithInputTarget(&textField{}), WithDeliveryStrategy(&inject.Recorder{}))
	assert.Error(t, err)

	_, err = New(WithDeliveryStrategy(&inject.Recorder{}), WithBackgroundPools(1, 2, 3))
	assert.Error(t, err)

	_, err = New(WithDeliveryStrategy(&inject.Recorder{}), WithBackgroundPools(0))
	assert.Error(t, err)
}

func TestSession_lifecycle(t *testing.T) {
	s, err := New(WithDeliveryStrategy(&inject.Recorder{}), WithLogger(nil), WithBackgroundPools(1, 2))
	require.NoError(t, err)
	require.NotNil(t, s.Pool(1))
	assert.Nil(t, s.Pool(2))
	assert.Same(t, s.Registry().Policies(), s.Policies())

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrStarted)

	require.NoError(t, s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		assert.True(t, s.Looper().IsCurrentThread())
		return nil
	}))

	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, s.Close(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Start(), ErrClosed)
	assert.Equal(t, looper.StateTerminated, s.Looper().State())
}

func TestSession_closeWithoutStart(t *testing.T) {
	s, err := New(WithDeliveryStrategy(&inject.Recorder{}), WithLogger(nil))
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
}

func TestSession_typeAndTap(t *testing.T) {
	s, field := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.RunOnMain(ctx, func(ctx context.Context, c *controller.Controller) error {
		ok, err := c.InjectString(ctx, `Hello, World`)
		if err != nil {
			return err
		}
		assert.True(t, ok)
		for _, action := range [...]inject.MotionAction{inject.MotionActionDown, inject.MotionActionUp} {
			ok, err := c.InjectMotionEvent(ctx, inject.MotionEvent{Action: action, X: 1, Y: 1})
			if err != nil {
				return err
			}
			assert.True(t, ok)
		}
		return nil
	}))

	require.NoError(t, s.RunOnMain(ctx, func(context.Context, *controller.Controller) error {
		assert.Equal(t, `Hello, World`, string(field.text))
		assert.Equal(t, 1, field.taps)
		return nil
	}))
}

func TestSession_secureTargetDenied(t *testing.T) {
	s, field := newTestSession(t)
	field.secure = true
	err := s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		_, err := c.InjectKeyEvent(ctx, inject.KeyEvent{Code: inject.KeyCodeA, Rune: 'a'})
		return err
	})
	assert.ErrorIs(t, err, inject.ErrDeliveryDenied)
}

func TestSession_staleEventsRetried(t *testing.T) {
	var offset atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }
	s, field := newTestSession(t, WithClock(clock), WithMaxEventAge(time.Second))

	err := s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		// pre-dated events are refused as stale
		ok, err := c.InjectKeyEvent(ctx, inject.KeyEvent{
			Action:    inject.KeyActionDown,
			Code:      inject.KeyCodeA,
			Rune:      'a',
			EventTime: clock().Add(-time.Minute),
		})
		assert.False(t, ok)
		if err != nil {
			return err
		}
		// while typing re-stamps each attempt
		ok, err = c.InjectString(ctx, `b`)
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, `b`, string(field.text))
}

func TestSession_duplicateResourceNames(t *testing.T) {
	s, _ := newTestSession(t)
	first := idling.NewCountingResource(`db`)
	second := idling.NewCountingResource(`db`)
	second.Increment()

	ok, err := s.RegisterIdlingResources(context.Background(), first, second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		assert.Equal(t, []string{`db`}, s.Registry().Names())
		assert.True(t, s.Registry().AllIdle())
		return c.LoopMainThreadUntilIdle(ctx)
	}))
}

func TestSession_resourceForcedIdle(t *testing.T) {
	s, _ := newTestSession(t)
	resource := idling.NewCountingResource(`images`)
	resource.Increment()
	ok, err := s.RegisterIdlingResources(context.Background(), resource)
	require.NoError(t, err)
	require.True(t, ok)

	time.AfterFunc(150*time.Millisecond, resource.Decrement)
	start := time.Now()
	require.NoError(t, s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		return c.LoopMainThreadUntilIdle(ctx)
	}))
	assert.Less(t, time.Since(start), s.Policies().DynamicWarning().Timeout())
}

func TestSession_backgroundTask(t *testing.T) {
	s, _ := newTestSession(t, WithBackgroundPools(1, 1))
	var done atomic.Bool
	require.NoError(t, s.Pool(1).Submit(func() {
		time.Sleep(200 * time.Millisecond)
		done.Store(true)
	}))
	require.NoError(t, s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		return c.LoopMainThreadUntilIdle(ctx)
	}))
	assert.True(t, done.Load())
}

func TestSession_masterTimeout(t *testing.T) {
	policies := idling.NewPolicies()
	require.NoError(t, policies.SetMasterTimeout(2*time.Second))
	s, _ := newTestSession(t, WithPolicies(policies))

	resource := idling.NewCountingResource(`forever`)
	resource.Increment()
	_, err := s.RegisterIdlingResources(context.Background(), resource)
	require.NoError(t, err)

	err = s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		return c.LoopMainThreadUntilIdle(ctx)
	})
	var appErr *idling.AppNotIdleError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Busy, `forever`)
	assert.Equal(t, 2*time.Second, appErr.Timeout)
}

func TestSession_offMainThread(t *testing.T) {
	s, field := newTestSession(t)
	ok, err := s.Controller().InjectKeyEvent(context.Background(), inject.KeyEvent{Code: inject.KeyCodeA, Rune: 'a'})
	assert.False(t, ok)
	assert.ErrorIs(t, err, controller.ErrNotOnMainThread)
	require.NoError(t, s.RunOnMain(context.Background(), func(context.Context, *controller.Controller) error {
		assert.Empty(t, field.text)
		return nil
	}))
}
