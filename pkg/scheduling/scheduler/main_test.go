package scheduler

import (
	"io"
	"testing"

	"go.uber.org/goleak"

	"github.com/vnykmshr/flowbench/internal/logger"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter(io.Discard, "ERROR", "text")
	goleak.VerifyTestMain(m)
}
