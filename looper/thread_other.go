//go:build !linux

package looper

func osThreadID() int {
	return 0
}
