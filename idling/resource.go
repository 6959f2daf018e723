package idling

import (
	"sync"
)

type (
	// Resource is a caller-supplied idle-signal source.
	Resource interface {
		// Name must be unique within a registry.
		Name() string
		// IsIdleNow must not block.
		IsIdleNow() bool
		// RegisterIdleTransitionCallback is called once, at registration.
		// The resource must invoke callback each time it transitions from
		// busy to idle; it may do so from any goroutine.
		RegisterIdleTransitionCallback(callback func())
	}

	// CountingResource is a [Resource] that is idle while its counter is
	// zero.
	CountingResource struct {
		callback func()
		name     string
		mu       sync.Mutex
		count    int
	}
)

var _ Resource = (*CountingResource)(nil)

// NewCountingResource returns an idle CountingResource.
func NewCountingResource(name string) *CountingResource {
	return &CountingResource{name: name}
}

func (x *CountingResource) Name() string { return x.name }

func (x *CountingResource) IsIdleNow() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.count == 0
}

func (x *CountingResource) RegisterIdleTransitionCallback(callback func()) {
	x.mu.Lock()
	x.callback = callback
	x.mu.Unlock()
}

// Increment marks one more unit of work in flight.
func (x *CountingResource) Increment() {
	x.mu.Lock()
	x.count++
	x.mu.Unlock()
}

// Decrement marks one unit of work complete, signalling the transition to
// idle when the counter reaches zero. It panics if the counter would go
// negative.
func (x *CountingResource) Decrement() {
	x.mu.Lock()
	if x.count == 0 {
		x.mu.Unlock()
		panic("idling: counting resource " + x.name + " decremented below zero")
	}
	x.count--
	var callback func()
	if x.count == 0 {
		callback = x.callback
	}
	x.mu.Unlock()
	if callback != nil {
		callback()
	}
}

// Count returns the current counter value.
func (x *CountingResource) Count() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.count
}
