package controller

import (
	"strings"
	"sync/atomic"
)

// Condition is a set of idle conditions, one bit each.
type Condition uint32

const (
	// DelayElapsed is signalled by LoopMainThreadForAtLeast's timer.
	DelayElapsed Condition = 1 << iota
	// BackgroundPool0Idled is signalled by the first background pool
	// monitor.
	BackgroundPool0Idled
	// BackgroundPool1Idled is signalled by the second background pool
	// monitor.
	BackgroundPool1Idled
	// DynamicResourcesIdled is signalled when every registered idling
	// resource is idle (or the dynamic error policy only logged).
	DynamicResourcesIdled
	// KeyInjected is signalled when a key injection finishes.
	KeyInjected
	// MotionInjected is signalled when a motion injection finishes.
	MotionInjected

	conditionCount = iota
)

var conditionNames = [conditionCount]string{
	"DELAY_ELAPSED",
	"BACKGROUND_POOL_0_IDLED",
	"BACKGROUND_POOL_1_IDLED",
	"DYNAMIC_RESOURCES_IDLED",
	"KEY_INJECTED",
	"MOTION_INJECTED",
}

func poolCondition(index int) Condition {
	return BackgroundPool0Idled << index
}

// Names returns the name of each condition in c.
func (c Condition) Names() []string {
	var names []string
	for i, name := range conditionNames {
		if c&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return names
}

func (c Condition) String() string {
	if c == 0 {
		return "NONE"
	}
	return strings.Join(c.Names(), "|")
}

// conditionSet is the generation-tagged bitset. Writes happen only on the
// looper goroutine; atomics make diagnostic reads safe elsewhere.
type conditionSet struct {
	bits       atomic.Uint32
	generation atomic.Uint64
}

// signal sets c if generation is current, reporting whether it was
// accepted.
func (s *conditionSet) signal(c Condition, generation uint64) bool {
	if generation != s.generation.Load() {
		return false
	}
	s.bits.Or(uint32(c))
	return true
}

func (s *conditionSet) all(c Condition) bool {
	return Condition(s.bits.Load())&c == c
}

func (s *conditionSet) signalled() Condition {
	return Condition(s.bits.Load())
}

// endRound invalidates outstanding signals and clears c.
func (s *conditionSet) endRound(c Condition) {
	s.generation.Add(1)
	s.bits.And(^uint32(c))
}
