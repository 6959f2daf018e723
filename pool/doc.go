// Package pool provides a fixed-size background worker pool, and a
// [Monitor] that detects when such a pool has drained.
//
// Idleness is confirmed by parking one barrier task per worker on a
// [CyclicBarrier]: only when every worker is simultaneously blocked at the
// barrier can no other task be running, and if the backlog is also empty at
// that instant the pool was drained up to that point.
package pool
