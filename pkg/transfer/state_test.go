package transfer

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/vnykmshr/flowbench/internal/testutil"
)

func TestStateCounters(t *testing.T) {
	s := NewState(1000)

	s.addRead(400)
	s.addRead(100)
	s.addWritten(250)

	p := s.Snapshot()
	testutil.AssertEqual(t, p.TargetBytes, int64(1000))
	testutil.AssertEqual(t, p.BytesRead, int64(500))
	testutil.AssertEqual(t, p.BytesWritten, int64(250))
	testutil.AssertEqual(t, p.Percent(), 25.0)
}

func TestStateFinishOnce(t *testing.T) {
	s := NewState(10)
	boom := errors.New("boom")

	testutil.AssertEqual(t, s.ProducerDone(), false)
	testutil.AssertEqual(t, s.ProducerErr(), nil)

	s.finishProducer(boom)
	s.finishProducer(nil)
	testutil.AssertEqual(t, s.ProducerDone(), true)
	testutil.AssertEqual(t, s.ProducerErr(), boom)

	s.finishConsumer(nil)
	testutil.AssertEqual(t, s.ConsumerDone(), true)
	testutil.AssertEqual(t, s.ConsumerErr(), nil)
}

// An observer that sees the flag must also see the error stored before it.
func TestStateErrorVisibleWithFlag(t *testing.T) {
	boom := errors.New("boom")

	for i := 0; i < 100; i++ {
		s := NewState(1)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.finishConsumer(boom)
		}()

		for !s.ConsumerDone() {
			runtime.Gosched()
		}
		if s.ConsumerErr() != boom {
			t.Fatalf("iteration %d: flag visible without error", i)
		}
		wg.Wait()
	}
}

func TestProgressPercentZeroTarget(t *testing.T) {
	testutil.AssertEqual(t, Progress{BytesWritten: 5}.Percent(), 0.0)
}
