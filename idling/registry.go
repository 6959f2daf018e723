package idling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-uisync/looper"
	"github.com/joeycumines/logiface"
)

type (
	// Dispatcher is the looper surface the registry needs.
	Dispatcher interface {
		IsCurrentThread() bool
		PostAsync(task looper.Task) error
		PostAsyncDelayed(task looper.Task, delay time.Duration) (looper.CancelFunc, error)
		RunSync(ctx context.Context, task looper.Task) error
	}

	// IdleNotificationCallback receives the outcome of NotifyWhenAllIdle.
	// Methods are called on the looper goroutine; a returned error is
	// returned from the dispatched message, i.e. to whoever drained it.
	IdleNotificationCallback interface {
		AllResourcesIdle() error
		// ResourcesStillBusyWarning is called every dynamic warning timeout
		// while resources remain busy.
		ResourcesStillBusyWarning(busy []string) error
		// ResourcesHaveTimedOut is called once, at the dynamic error
		// timeout. The notification is no longer pending afterwards.
		ResourcesHaveTimedOut(busy []string) error
	}

	// Registry tracks registered resources. Apart from Register, every
	// method must be called on the looper goroutine.
	Registry struct {
		loop      Dispatcher
		logger    *logiface.Logger[logiface.Event]
		policies  *Policies
		anomalies *catrate.Limiter
		names     map[string]int
		pending   IdleNotificationCallback
		states    []*resourceState
		timers    []looper.CancelFunc
		racePoll  time.Duration
		round     uint64
	}

	resourceState struct {
		resource Resource
		idle     bool
		// unconfirmed is set when a poll saw idle but no transition
		// callback has arrived
		unconfirmed bool
		// raced is set when an unconfirmed resource went busy again
		raced bool
	}
)

// NewRegistry returns an empty registry bound to loop.
func NewRegistry(loop Dispatcher, opts ...RegistryOption) (*Registry, error) {
	if loop == nil {
		return nil, errors.New("idling: nil dispatcher")
	}
	cfg, err := resolveRegistryOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Registry{
		loop:      loop,
		logger:    cfg.logger,
		policies:  cfg.policies,
		anomalies: catrate.NewLimiter(map[time.Duration]int{time.Minute: 5}),
		names:     make(map[string]int),
		racePoll:  cfg.racePollInterval,
	}, nil
}

// Policies returns the policy set consulted by NotifyWhenAllIdle.
func (x *Registry) Policies() *Policies { return x.policies }

// Register adds resources, re-dispatching onto the looper if necessary. A
// resource whose name is already registered is logged and ignored. Reports
// whether every resource was added.
func (x *Registry) Register(ctx context.Context, resources ...Resource) (bool, error) {
	if x.loop.IsCurrentThread() {
		return x.register(resources), nil
	}
	var ok bool
	err := x.loop.RunSync(ctx, func() error {
		ok = x.register(resources)
		return nil
	})
	return ok, err
}

func (x *Registry) register(resources []Resource) bool {
	all := true
	for _, resource := range resources {
		if resource == nil {
			all = false
			continue
		}
		name := resource.Name()
		if _, ok := x.names[name]; ok {
			if _, ok := x.anomalies.Allow(`duplicate:` + name); ok {
				x.logger.Warning().
					Str(`resource`, name).
					Log(`idling: ignoring registration of duplicate resource name`)
			}
			all = false
			continue
		}
		index := len(x.states)
		x.states = append(x.states, &resourceState{
			resource: resource,
			idle:     resource.IsIdleNow(),
		})
		x.names[name] = index
		resource.RegisterIdleTransitionCallback(func() { x.postTransition(index) })
		x.logger.Debug().
			Str(`resource`, name).
			Log(`idling: registered resource`)
	}
	return all
}

// postTransition may be called from any goroutine.
func (x *Registry) postTransition(index int) {
	if err := x.loop.PostAsync(func() error { return x.onTransition(index) }); err != nil {
		x.logger.Debug().
			Err(err).
			Log(`idling: dropped idle transition`)
	}
}

func (x *Registry) onTransition(index int) error {
	state := x.states[index]
	state.idle = true
	state.unconfirmed = false
	state.raced = false
	if x.pending != nil && x.bitsIdle() {
		return x.fireIdle()
	}
	return nil
}

// Names returns registered resource names, in registration order.
func (x *Registry) Names() []string {
	x.checkOwner()
	names := make([]string, len(x.states))
	for i, state := range x.states {
		names[i] = state.resource.Name()
	}
	return names
}

// AllIdle polls resources not known to be idle and reports whether all are
// idle. Outside a pending notification, idle resources are re-polled too,
// as they may have become busy since.
func (x *Registry) AllIdle() bool {
	x.checkOwner()
	all := true
	for _, state := range x.states {
		if !state.idle || x.pending == nil {
			state.idle = state.resource.IsIdleNow()
		}
		if !state.idle {
			all = false
		}
	}
	return all
}

// BusyResources returns the names of resources currently known to be busy.
func (x *Registry) BusyResources() []string {
	x.checkOwner()
	return x.busyNames()
}

// Pending reports whether a notification is outstanding.
func (x *Registry) Pending() bool {
	x.checkOwner()
	return x.pending != nil
}

// NotifyWhenAllIdle calls callback.AllResourcesIdle synchronously if every
// resource is idle. Otherwise callback is stored, the dynamic warning and
// error timers are started, and the busy resources are polled periodically
// to catch idle transitions that were never signalled.
func (x *Registry) NotifyWhenAllIdle(callback IdleNotificationCallback) error {
	if !x.loop.IsCurrentThread() {
		return ErrNotOnMainThread
	}
	if callback == nil {
		return errors.New("idling: nil notification callback")
	}
	if x.pending != nil {
		return ErrNotificationPending
	}
	if x.AllIdle() {
		return callback.AllResourcesIdle()
	}

	x.round++
	round := x.round
	x.pending = callback
	for _, state := range x.states {
		state.unconfirmed = false
		state.raced = false
	}

	warning := x.policies.DynamicWarning()
	errorPolicy := x.policies.DynamicError()
	if err := x.schedule(warning.Timeout(), x.warningTask(round, warning.Timeout())); err != nil {
		x.clearPending()
		return err
	}
	if err := x.schedule(errorPolicy.Timeout(), x.timeoutTask(round)); err != nil {
		x.clearPending()
		return err
	}
	if err := x.schedule(x.racePoll, x.racePollTask(round)); err != nil {
		x.clearPending()
		return err
	}
	return nil
}

// CancelIdleMonitor discards any pending notification and its timers. It is
// safe to call when nothing is pending.
func (x *Registry) CancelIdleMonitor() {
	x.checkOwner()
	x.clearPending()
}

func (x *Registry) schedule(delay time.Duration, task looper.Task) error {
	cancel, err := x.loop.PostAsyncDelayed(task, delay)
	if err != nil {
		return err
	}
	x.timers = append(x.timers, cancel)
	return nil
}

func (x *Registry) clearPending() {
	for _, cancel := range x.timers {
		cancel()
	}
	clear(x.timers)
	x.timers = x.timers[:0]
	x.pending = nil
	x.round++
}

func (x *Registry) active(round uint64) bool {
	return x.pending != nil && x.round == round
}

func (x *Registry) fireIdle() error {
	callback := x.pending
	x.clearPending()
	return callback.AllResourcesIdle()
}

func (x *Registry) warningTask(round uint64, every time.Duration) looper.Task {
	var task looper.Task
	task = func() error {
		if !x.active(round) {
			return nil
		}
		if err := x.schedule(every, task); err != nil {
			return err
		}
		return x.pending.ResourcesStillBusyWarning(x.busyNames())
	}
	return task
}

func (x *Registry) timeoutTask(round uint64) looper.Task {
	return func() error {
		if !x.active(round) {
			return nil
		}
		callback := x.pending
		busy := x.busyNames()
		raced := x.racedNames()
		x.clearPending()

		err := callback.ResourcesHaveTimedOut(busy)
		if len(raced) == 0 {
			return err
		}
		race := &RaceConditionError{Resources: raced}
		var timeoutErr *ResourceTimeoutError
		if errors.As(err, &timeoutErr) && timeoutErr.Cause == nil {
			timeoutErr.Cause = race
			return err
		}
		x.logger.Err().
			Err(race).
			Log(`idling: unresolved resource race at timeout`)
		return err
	}
}

func (x *Registry) racePollTask(round uint64) looper.Task {
	var task looper.Task
	task = func() error {
		if !x.active(round) {
			return nil
		}
		var accepted []string
		for _, state := range x.states {
			if state.idle {
				continue
			}
			switch {
			case state.resource.IsIdleNow():
				if !state.unconfirmed {
					state.unconfirmed = true
					continue
				}
				state.idle = true
				state.unconfirmed = false
				accepted = append(accepted, state.resource.Name())
			case state.unconfirmed:
				state.unconfirmed = false
				state.raced = true
			}
		}
		for _, name := range accepted {
			if _, ok := x.anomalies.Allow(`race:` + name); ok {
				x.logger.Warning().
					Str(`resource`, name).
					Log(`idling: resource went idle without signalling a transition`)
			}
		}
		if x.bitsIdle() {
			return x.fireIdle()
		}
		return x.schedule(x.racePoll, task)
	}
	return task
}

func (x *Registry) bitsIdle() bool {
	for _, state := range x.states {
		if !state.idle {
			return false
		}
	}
	return true
}

func (x *Registry) busyNames() []string {
	var names []string
	for _, state := range x.states {
		if !state.idle {
			names = append(names, state.resource.Name())
		}
	}
	return names
}

func (x *Registry) racedNames() []string {
	var names []string
	for _, state := range x.states {
		if state.raced && !state.idle {
			names = append(names, state.resource.Name())
		}
	}
	return names
}

func (x *Registry) checkOwner() {
	if !x.loop.IsCurrentThread() {
		panic(ErrNotOnMainThread)
	}
}

// String is a debugging aid. It must be called on the looper goroutine.
func (x *Registry) String() string {
	var b strings.Builder
	b.WriteString(`Registry{`)
	for i, state := range x.states {
		if i != 0 {
			b.WriteString(`, `)
		}
		b.WriteString(state.resource.Name())
		if state.idle {
			b.WriteString(`=idle`)
		} else {
			b.WriteString(`=busy`)
		}
	}
	b.WriteString(`}`)
	return b.String()
}
