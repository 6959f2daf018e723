// Package controller implements the UI controller: event injection and the
// blocking "loop until idle" primitives, driven on the looper goroutine.
//
// Every primitive must be called on the looper goroutine, typically from a
// task passed to [looper.Looper.RunSync] by the test goroutine. While a
// primitive blocks, the controller drains the looper itself, one message at
// a time, until every required [Condition] has been signalled and the queue
// is idle (empty, or with nothing due soon).
//
// Conditions are signalled from other goroutines, such as the injection
// executor, by posting a message tagged with the generation current when
// the request was made. Every round ends by advancing the generation, so a
// late signal from an earlier round is dropped instead of satisfying a
// later one.
package controller
