package idling

import (
	"sync/atomic"
	"time"
)

// Default policy values.
const (
	DefaultMasterTimeout         = 60 * time.Second
	DefaultDynamicWarningTimeout = 5 * time.Second
	DefaultDynamicErrorTimeout   = 26 * time.Second
)

// Policies holds the three policy slots read on every synchronisation pass.
// Each slot may be replaced at any time, from any goroutine.
type Policies struct {
	master         atomic.Pointer[Policy]
	dynamicWarning atomic.Pointer[Policy]
	dynamicError   atomic.Pointer[Policy]
}

// NewPolicies returns Policies initialised to the defaults: master raises
// [*AppNotIdleError], the dynamic warning logs, and the dynamic error raises
// [*ResourceTimeoutError].
func NewPolicies() *Policies {
	p := new(Policies)
	p.Reset()
	return p
}

// Reset restores the defaults.
func (x *Policies) Reset() {
	master := MustPolicy(DefaultMasterTimeout, RaiseAppNotIdle{})
	warning := MustPolicy(DefaultDynamicWarningTimeout, LogWarning{})
	errorPolicy := MustPolicy(DefaultDynamicErrorTimeout, RaiseResourceTimeout{})
	x.master.Store(&master)
	x.dynamicWarning.Store(&warning)
	x.dynamicError.Store(&errorPolicy)
}

func (x *Policies) Master() Policy { return *x.master.Load() }

func (x *Policies) DynamicWarning() Policy { return *x.dynamicWarning.Load() }

func (x *Policies) DynamicError() Policy { return *x.dynamicError.Load() }

func (x *Policies) SetMaster(p Policy) error { return store(&x.master, p) }

func (x *Policies) SetDynamicWarning(p Policy) error { return store(&x.dynamicWarning, p) }

func (x *Policies) SetDynamicError(p Policy) error { return store(&x.dynamicError, p) }

// SetMasterTimeout replaces the master timeout, keeping its action.
func (x *Policies) SetMasterTimeout(d time.Duration) error {
	return setTimeout(&x.master, d)
}

// SetDynamicWarningTimeout replaces the dynamic warning timeout, keeping its
// action.
func (x *Policies) SetDynamicWarningTimeout(d time.Duration) error {
	return setTimeout(&x.dynamicWarning, d)
}

// SetDynamicErrorTimeout replaces the dynamic error timeout, keeping its
// action.
func (x *Policies) SetDynamicErrorTimeout(d time.Duration) error {
	return setTimeout(&x.dynamicError, d)
}

func store(slot *atomic.Pointer[Policy], p Policy) error {
	if !p.Valid() {
		return ErrInvalidPolicy
	}
	slot.Store(&p)
	return nil
}

func setTimeout(slot *atomic.Pointer[Policy], d time.Duration) error {
	for {
		old := slot.Load()
		p, err := old.WithTimeout(d)
		if err != nil {
			return err
		}
		if slot.CompareAndSwap(old, &p) {
			return nil
		}
	}
}
