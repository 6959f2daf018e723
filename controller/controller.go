package controller

import (
	"context"
	"errors"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/go-uisync/looper"
	"github.com/joeycumines/go-uisync/pool"
	"github.com/joeycumines/logiface"
)

type (
	// MainLoop is the looper surface the controller drives.
	MainLoop interface {
		IsCurrentThread() bool
		PostAsync(task looper.Task) error
		PostAsyncAt(task looper.Task, when time.Time) (looper.CancelFunc, error)
		QueueState() looper.QueueState
		DispatchNext(ctx context.Context) error
	}

	// IdleMonitor watches a background pool, as [*pool.Monitor].
	IdleMonitor interface {
		IsIdleNow() bool
		NotifyWhenIdle(onIdle func()) error
		CancelIdleMonitor() bool
	}

	// ResourceRegistry aggregates idling resources, as [*idling.Registry].
	ResourceRegistry interface {
		AllIdle() bool
		NotifyWhenAllIdle(callback idling.IdleNotificationCallback) error
		CancelIdleMonitor()
		BusyResources() []string
	}

	// EventInjector delivers events, as [*inject.Injector].
	EventInjector interface {
		InjectKey(ctx context.Context, event inject.KeyEvent) (bool, error)
		InjectMotion(ctx context.Context, event inject.MotionEvent) (bool, error)
		Now() time.Time
	}

	// Controller coordinates injection and idle synchronisation for one
	// looper. Its primitives must be called on the looper goroutine.
	Controller struct {
		loop         MainLoop
		injector     EventInjector
		registry     ResourceRegistry
		logger       *logiface.Logger[logiface.Event]
		policies     *idling.Policies
		keyMap       inject.KeyCharacterMap
		executor     *pool.Pool
		staleSignals *catrate.Limiter
		metrics      *metricsRecorder
		monitors     []IdleMonitor
		conditions   conditionSet
		maxKeyTries  int
		ownsExecutor bool
		// looping and delayWaiting are confined to the looper goroutine
		looping      bool
		delayWaiting bool
	}
)

var (
	_ MainLoop         = (*looper.Looper)(nil)
	_ IdleMonitor      = (*pool.Monitor)(nil)
	_ ResourceRegistry = (*idling.Registry)(nil)
	_ EventInjector    = (*inject.Injector)(nil)
)

// New returns a Controller. The registry's policy set is shared unless
// WithPolicies is given.
func New(loop MainLoop, injector EventInjector, registry ResourceRegistry, opts ...Option) (*Controller, error) {
	if loop == nil || injector == nil || registry == nil {
		return nil, errors.New("controller: loop, injector and registry are required")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	x := &Controller{
		loop:         loop,
		injector:     injector,
		registry:     registry,
		logger:       cfg.logger,
		policies:     cfg.policies,
		keyMap:       cfg.keyMap,
		executor:     cfg.executor,
		staleSignals: catrate.NewLimiter(map[time.Duration]int{time.Second: 5, time.Minute: 30}),
		metrics:      newMetricsRecorder(),
		monitors:     cfg.monitors,
		maxKeyTries:  cfg.maxKeyAttempts,
	}

	if x.policies == nil {
		if r, ok := registry.(interface{ Policies() *idling.Policies }); ok {
			x.policies = r.Policies()
		} else {
			x.policies = idling.NewPolicies()
		}
	}

	if x.executor == nil {
		x.executor, err = pool.New(1, pool.WithName(`injection`), pool.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		x.ownsExecutor = true
	}

	return x, nil
}

// Close stops the injection executor, if the controller started it.
func (x *Controller) Close() error {
	if !x.ownsExecutor {
		return nil
	}
	return x.executor.Close()
}

// Policies returns the policy set consulted on every round.
func (x *Controller) Policies() *idling.Policies { return x.policies }

// Generation returns the current round generation. Safe from any goroutine.
func (x *Controller) Generation() uint64 { return x.conditions.generation.Load() }

// Signalled returns the conditions signalled in the current round. Safe from
// any goroutine.
func (x *Controller) Signalled() Condition { return x.conditions.signalled() }

// Metrics returns a snapshot of the synchronisation statistics.
func (x *Controller) Metrics() Metrics { return x.metrics.get() }

// signalTask applies c, if generation is still current, on the looper.
func (x *Controller) signalTask(c Condition, generation uint64) looper.Task {
	return func() error {
		x.applySignal(c, generation)
		return nil
	}
}

// postSignal may be called from any goroutine.
func (x *Controller) postSignal(c Condition, generation uint64) {
	if x.loop.IsCurrentThread() {
		x.applySignal(c, generation)
		return
	}
	if err := x.loop.PostAsync(x.signalTask(c, generation)); err != nil {
		x.logger.Warning().
			Err(err).
			Stringer(`condition`, c).
			Log(`controller: failed to post signal`)
	}
}

func (x *Controller) applySignal(c Condition, generation uint64) {
	if x.conditions.signal(c, generation) {
		return
	}
	x.metrics.staleSignal()
	if _, ok := x.staleSignals.Allow(c); ok {
		x.logger.Warning().
			Stringer(`condition`, c).
			Uint64(`signal_generation`, generation).
			Uint64(`generation`, x.conditions.generation.Load()).
			Log(`controller: ignoring signal from a previous round`)
	}
}
