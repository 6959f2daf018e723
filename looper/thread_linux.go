//go:build linux

package looper

import (
	"golang.org/x/sys/unix"
)

// osThreadID returns the kernel thread ID of the calling thread. It is only
// stable for goroutines locked to their thread.
func osThreadID() int {
	return unix.Gettid()
}
