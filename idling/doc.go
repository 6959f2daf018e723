// Package idling provides idling policies and the registry of caller-supplied
// idling resources.
//
// A [Resource] represents an asynchronous work source that must be quiescent
// before the state of the UI can be trusted. The [Registry] aggregates every
// registered resource, and arranges for a one-shot notification once all of
// them are idle, escalating through the dynamic warning and error
// [Policy] values held by [Policies] if that takes too long.
//
// All registry state is confined to the looper goroutine. Resources may
// signal transitions from any goroutine; those signals are posted to the
// looper rather than applied directly.
package idling
