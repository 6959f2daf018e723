package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/looper"
)

// LoopMainThreadUntilIdle drains the looper until every monitored pool and
// registered resource is idle and the queue is empty, or has nothing due
// within the lookahead window. The check repeats until a pass finds nothing
// busy, so work started by the previous pass is also waited on.
//
// Errors returned by drained messages are returned to the caller, after the
// controller's own state has been restored.
func (x *Controller) LoopMainThreadUntilIdle(ctx context.Context) error {
	if !x.loop.IsCurrentThread() {
		return ErrNotOnMainThread
	}
	const op = `LoopMainThreadUntilIdle`
	if x.looping {
		return &ReentrancyError{Op: op}
	}
	for {
		conditions, err := x.requestIdleNotifications()
		if err != nil {
			x.cancelIdleNotifications()
			return err
		}
		completed, err := x.loopUntil(ctx, op, conditions)
		x.cancelIdleNotifications()
		if err != nil {
			return err
		}
		if conditions == 0 || !completed {
			// a timeout that only logged ends the wait, rather than spinning
			return nil
		}
	}
}

// LoopMainThreadForAtLeast drains the looper for at least d, then until
// idle. It may not be nested.
func (x *Controller) LoopMainThreadForAtLeast(ctx context.Context, d time.Duration) error {
	if !x.loop.IsCurrentThread() {
		return ErrNotOnMainThread
	}
	if d <= 0 {
		return ErrInvalidDuration
	}
	const op = `LoopMainThreadForAtLeast`
	if x.delayWaiting || x.looping {
		return &ReentrancyError{Op: op}
	}
	x.delayWaiting = true
	defer func() { x.delayWaiting = false }()

	generation := x.conditions.generation.Load()
	cancel, err := x.loop.PostAsyncAt(x.signalTask(DelayElapsed, generation), time.Now().Add(d))
	if err != nil {
		return err
	}
	_, err = x.loopUntil(ctx, op, DelayElapsed)
	cancel()
	if err != nil {
		return err
	}

	return x.LoopMainThreadUntilIdle(ctx)
}

// requestIdleNotifications asks every busy source to signal the current
// round, returning the conditions to wait on.
func (x *Controller) requestIdleNotifications() (Condition, error) {
	var conditions Condition
	generation := x.conditions.generation.Load()

	for i, monitor := range x.monitors {
		if monitor.IsIdleNow() {
			continue
		}
		c := poolCondition(i)
		if err := monitor.NotifyWhenIdle(func() { x.postSignal(c, generation) }); err != nil {
			return conditions, fmt.Errorf("controller: %s: %w", c, err)
		}
		conditions |= c
	}

	if !x.registry.AllIdle() {
		conditions |= DynamicResourcesIdled
		if err := x.registry.NotifyWhenAllIdle(&resourceCallback{x: x, generation: generation}); err != nil {
			return conditions, err
		}
	}

	return conditions, nil
}

func (x *Controller) cancelIdleNotifications() {
	for _, monitor := range x.monitors {
		monitor.CancelIdleMonitor()
	}
	x.registry.CancelIdleMonitor()
}

// barrierPollInterval bounds each wait behind a sync barrier once the
// conditions are met. Removing a barrier posts nothing, so an empty queue
// behind it would otherwise block until the deadline.
const barrierPollInterval = 10 * time.Millisecond

// loopUntil dispatches messages until all conditions are signalled and the
// queue is idle, or the master policy expires. It reports whether the
// conditions were reached. The round always ends on return: the generation
// advances and the conditions are cleared.
func (x *Controller) loopUntil(ctx context.Context, op string, conditions Condition) (completed bool, err error) {
	if x.looping {
		return false, &ReentrancyError{Op: op}
	}
	x.looping = true

	var (
		start      = time.Now()
		dispatched uint64
		timedOut   bool
	)
	defer func() {
		x.looping = false
		x.conditions.endRound(conditions)
		x.metrics.round(time.Since(start), dispatched, timedOut)
	}()

	master := x.policies.Master()
	deadline := start.Add(master.Timeout())
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		var barrier bool
		if x.conditions.all(conditions) {
			switch state := x.loop.QueueState(); state {
			case looper.QueueEmpty, looper.TaskDueLong:
				return true, nil
			case looper.QueueBarrier:
				barrier = true
				x.logger.Debug().
					Str(`op`, op).
					Log(`controller: conditions met but a sync barrier is pending`)
			}
		}

		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !time.Now().Before(deadline) {
			timedOut = true
			return false, x.handleTimeout(master, op, conditions)
		}

		dispatchCtx, cancelDispatch := waitCtx, context.CancelFunc(func() {})
		if barrier {
			dispatchCtx, cancelDispatch = context.WithTimeout(waitCtx, barrierPollInterval)
		}
		err := x.loop.DispatchNext(dispatchCtx)
		expired := dispatchCtx.Err()
		cancelDispatch()
		if err == nil {
			dispatched++
			continue
		}
		if expired != nil && errors.Is(err, expired) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			// deadline or barrier poll, both handled at the top of the loop
			continue
		}
		if !errors.Is(err, looper.ErrLooperTerminated) {
			dispatched++
		}
		return false, err
	}
}

// handleTimeout names the unsignalled conditions, and for the resource
// condition, the busy resources.
func (x *Controller) handleTimeout(policy idling.Policy, op string, conditions Condition) error {
	pending := conditions &^ x.conditions.signalled()
	busy := pending.Names()
	if pending&DynamicResourcesIdled != 0 {
		busy = append(busy, x.registry.BusyResources()...)
	}
	if pending == 0 {
		busy = append(busy, `main looper: `+x.loop.QueueState().String())
	}
	return policy.HandleTimeout(x.logger, busy, fmt.Sprintf("%s timed out waiting for %s", op, pending))
}
