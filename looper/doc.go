// Package looper implements the single-threaded cooperative event loop that
// the synchronisation core drives.
//
// A [Looper] owns a time-ordered message queue. Any goroutine may post work
// onto it, but only the goroutine executing [Looper.Run] (the owner) may
// pop and dispatch messages. The owner may drain the queue re-entrantly,
// one message at a time, using [Looper.DispatchNext]; this is how blocking
// primitives running on the loop make progress without yielding control.
//
// # Queue inspection
//
// [Looper.QueueState] classifies the head of the queue without mutating it:
//   - [QueueEmpty]: nothing pending
//   - [TaskDueSoon]: the head message is due within the lookahead window
//   - [TaskDueLong]: the head message is scheduled further in the future
//   - [QueueBarrier]: the head entry is a synchronisation barrier
//
// A queue that is non-empty may still be functionally idle, e.g. when the
// only pending message is a timer due in an hour.
//
// # Barriers
//
// [Looper.PostSyncBarrier] blocks delivery of ordinary messages scheduled at
// or after the barrier, until [Looper.RemoveSyncBarrier] is called.
// Asynchronous messages, posted with [Looper.PostAsync] and friends, are
// delivered regardless.
package looper
