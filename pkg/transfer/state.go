package transfer

import (
	"sync/atomic"
	"time"
)

// Progress is a point-in-time view of a run.
type Progress struct {
	TargetBytes  int64         `json:"target_bytes"`
	BytesRead    int64         `json:"bytes_read"`
	BytesWritten int64         `json:"bytes_written"`
	Queued       int           `json:"queued"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Percent returns BytesWritten as a percentage of TargetBytes.
func (p Progress) Percent() float64 {
	if p.TargetBytes <= 0 {
		return 0
	}
	return float64(p.BytesWritten) * 100 / float64(p.TargetBytes)
}

// State is the shared state of one run. Each counter and flag has a single
// writer: the producer owns the read side and the consumer the write side.
// Any goroutine may read.
type State struct {
	target int64

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64

	// Errors are stored before the matching flag is published, so a reader
	// that observes the flag also observes the error.
	producerErr  error
	consumerErr  error
	producerDone atomic.Bool
	consumerDone atomic.Bool
}

// NewState creates the state for a run of target bytes.
func NewState(target int64) *State {
	return &State{target: target}
}

// Target returns the number of bytes the run tries to move.
func (s *State) Target() int64 { return s.target }

// BytesRead returns the bytes pulled from the source so far.
func (s *State) BytesRead() int64 { return s.bytesRead.Load() }

// BytesWritten returns the bytes accepted by the sink so far.
func (s *State) BytesWritten() int64 { return s.bytesWritten.Load() }

// ProducerDone reports whether the producer has finished.
func (s *State) ProducerDone() bool { return s.producerDone.Load() }

// ConsumerDone reports whether the consumer has finished.
func (s *State) ConsumerDone() bool { return s.consumerDone.Load() }

// ProducerErr returns the producer's failure, or nil while it is running.
func (s *State) ProducerErr() error {
	if !s.producerDone.Load() {
		return nil
	}
	return s.producerErr
}

// ConsumerErr returns the consumer's failure, or nil while it is running.
func (s *State) ConsumerErr() error {
	if !s.consumerDone.Load() {
		return nil
	}
	return s.consumerErr
}

// Snapshot returns the current counters.
func (s *State) Snapshot() Progress {
	return Progress{
		TargetBytes:  s.target,
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
	}
}

func (s *State) addRead(n int) {
	s.bytesRead.Add(int64(n))
}

func (s *State) addWritten(n int) {
	s.bytesWritten.Add(int64(n))
}

// finishProducer records err and publishes the completion flag. Only the
// first call has an effect.
func (s *State) finishProducer(err error) {
	if s.producerDone.Load() {
		return
	}
	s.producerErr = err
	s.producerDone.Store(true)
}

func (s *State) finishConsumer(err error) {
	if s.consumerDone.Load() {
		return
	}
	s.consumerErr = err
	s.consumerDone.Store(true)
}
