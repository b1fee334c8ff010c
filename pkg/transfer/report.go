package transfer

import (
	"time"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/streaming/channel"
)

// Report is the outcome of one run. BytesWritten counts bytes the sink
// accepted; after a storage error it may include buffered bytes that never
// reached storage.
type Report struct {
	RunID          string        `json:"run_id"`
	Source         string        `json:"source,omitempty"`
	Sink           string        `json:"sink,omitempty"`
	TargetBytes    int64         `json:"target_bytes"`
	BytesRead      int64         `json:"bytes_read"`
	BytesWritten   int64         `json:"bytes_written"`
	Elapsed        time.Duration `json:"-"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Throughput     float64       `json:"throughput_bytes_per_second"`
	Complete       bool          `json:"complete"`
	Error          string        `json:"error,omitempty"`
	Channel        channel.Stats `json:"channel"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`

	// ProducerErr and ConsumerErr are the stage failures, nil on success.
	ProducerErr error `json:"-"`
	ConsumerErr error `json:"-"`
}

func newReport(runID string, config Config, state *State, stats channel.Stats, startedAt, finishedAt time.Time) *Report {
	r := &Report{
		RunID:        runID,
		Source:       config.Locator,
		Sink:         config.SinkName,
		TargetBytes:  state.Target(),
		BytesRead:    state.BytesRead(),
		BytesWritten: state.BytesWritten(),
		Elapsed:      finishedAt.Sub(startedAt),
		Channel:      stats,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		ProducerErr:  state.ProducerErr(),
		ConsumerErr:  state.ConsumerErr(),
	}

	r.ElapsedSeconds = r.Elapsed.Seconds()
	if r.ElapsedSeconds > 0 {
		r.Throughput = float64(r.BytesWritten) / r.ElapsedSeconds
	}
	r.Complete = r.BytesWritten == r.TargetBytes && r.ProducerErr == nil && r.ConsumerErr == nil
	if err := r.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

// NewSetupFailure reports a run that never moved a byte because its source
// or sink could not be opened. Storage errors are attributed to the
// consumer and everything else to the producer.
func NewSetupFailure(runID string, config Config, err error, at time.Time) *Report {
	r := &Report{
		RunID:       runID,
		Source:      config.Locator,
		Sink:        config.SinkName,
		TargetBytes: config.TargetBytes,
		StartedAt:   at,
		FinishedAt:  at,
		Error:       err.Error(),
	}
	if errors.IsStorage(err) {
		r.ConsumerErr = err
	} else {
		r.ProducerErr = err
	}
	return r
}

// Err returns the run's failure: the storage failure when the consumer
// failed, otherwise the producer's failure.
func (r *Report) Err() error {
	if r.ConsumerErr != nil {
		return r.ConsumerErr
	}
	return r.ProducerErr
}

// Status classifies the run with one of the metrics status labels.
func (r *Report) Status() string {
	switch {
	case r.ConsumerErr != nil:
		return metrics.StatusStorageError
	case r.ProducerErr != nil:
		return metrics.StatusTransportError
	case r.Complete:
		return metrics.StatusComplete
	default:
		return metrics.StatusIncomplete
	}
}

// ThroughputKiBps returns the throughput in KiB per second.
func (r *Report) ThroughputKiBps() float64 {
	return r.Throughput / 1024
}

// Progress returns the final counters as a Progress value.
func (r *Report) Progress() Progress {
	return Progress{
		TargetBytes:  r.TargetBytes,
		BytesRead:    r.BytesRead,
		BytesWritten: r.BytesWritten,
		Elapsed:      r.Elapsed,
	}
}
