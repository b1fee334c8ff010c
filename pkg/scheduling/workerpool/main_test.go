package workerpool

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// Workers must all exit once Shutdown returns.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
