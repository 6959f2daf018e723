package controller

import "fmt"

// resourceCallback routes registry notifications for one round. The
// registry invokes it on the looper goroutine.
type resourceCallback struct {
	x          *Controller
	generation uint64
}

func (cb *resourceCallback) AllResourcesIdle() error {
	cb.x.postSignal(DynamicResourcesIdled, cb.generation)
	return nil
}

func (cb *resourceCallback) ResourcesStillBusyWarning(busy []string) error {
	policy := cb.x.policies.DynamicWarning()
	return policy.HandleTimeout(cb.x.logger, busy, fmt.Sprintf("resources still busy after %s", policy.Timeout()))
}

// ResourcesHaveTimedOut signals the condition when the error policy only
// logs, so the round is not held to the master deadline.
func (cb *resourceCallback) ResourcesHaveTimedOut(busy []string) error {
	policy := cb.x.policies.DynamicError()
	if err := policy.HandleTimeout(cb.x.logger, busy, fmt.Sprintf("resources timed out after %s", policy.Timeout())); err != nil {
		return err
	}
	cb.x.postSignal(DynamicResourcesIdled, cb.generation)
	return nil
}
