// Package inject normalises synthetic input events and forwards them to a
// pluggable [DeliveryStrategy].
//
// Delivery has three outcomes: delivered (true), not delivered (false,
// retryable), or denied by a security policy ([ErrDeliveryDenied]), which
// callers typically treat as fatal.
package inject
