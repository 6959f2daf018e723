package inject

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-uisync/looper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTarget struct {
	loop    *looper.Looper
	keys    []KeyEvent
	motions []MotionEvent
	mu      sync.Mutex
	secure  bool
	offLoop bool
}

func (x *testTarget) HandleKey(event KeyEvent) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.offLoop = x.offLoop || !x.loop.IsCurrentThread()
	x.keys = append(x.keys, event)
	return true
}

func (x *testTarget) HandleMotion(event MotionEvent) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.offLoop = x.offLoop || !x.loop.IsCurrentThread()
	x.motions = append(x.motions, event)
	return event.Action != MotionActionCancel
}

func (x *testTarget) Secure() bool { return x.secure }

func startLooper(t *testing.T) *looper.Looper {
	t.Helper()
	l, err := looper.New()
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(context.Background())
	}()
	t.Cleanup(func() {
		_ = l.Close()
		<-done
	})
	return l
}

func TestWindowDelivery_runsOnLooper(t *testing.T) {
	l := startLooper(t)
	target := &testTarget{loop: l}
	d, err := NewWindowDelivery(l, target)
	require.NoError(t, err)
	inj, err := NewInjector(d)
	require.NoError(t, err)

	ok, err := inj.InjectKey(context.Background(), KeyEvent{Code: KeyCodeEnter})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = inj.InjectMotion(context.Background(), MotionEvent{Action: MotionActionCancel})
	require.NoError(t, err)
	assert.False(t, ok)

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.False(t, target.offLoop)
	assert.Len(t, target.keys, 1)
	assert.Len(t, target.motions, 1)
}

func TestWindowDelivery_secureTargetDenied(t *testing.T) {
	l := startLooper(t)
	d, err := NewWindowDelivery(l, &testTarget{loop: l, secure: true})
	require.NoError(t, err)
	inj, err := NewInjector(d)
	require.NoError(t, err)

	_, err = inj.InjectMotion(context.Background(), MotionEvent{})
	assert.ErrorIs(t, err, ErrDeliveryDenied)
}

func TestWindowDelivery_rejectsStaleEvents(t *testing.T) {
	l := startLooper(t)
	target := &testTarget{loop: l}
	d, err := NewWindowDelivery(l, target)
	require.NoError(t, err)
	d.MaxEventAge = time.Second

	ok, err := d.DeliverKey(context.Background(), KeyEvent{EventTime: time.Now().Add(-time.Minute)})
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.DeliverKey(context.Background(), KeyEvent{EventTime: time.Now()})
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = NewWindowDelivery(nil, target)
	assert.Error(t, err)
}
