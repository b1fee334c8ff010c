package transfer

import (
	"github.com/vnykmshr/flowbench/pkg/metrics"
)

// observer forwards stage events to the metrics registry. A nil observer or
// a nil registry records nothing.
type observer struct {
	metrics  *metrics.Registry
	pipeline string
}

func (o *observer) enabled() bool {
	return o != nil && o.metrics != nil
}

func (o *observer) read(n int) {
	if !o.enabled() {
		return
	}
	o.metrics.TransferBytesRead.WithLabelValues(o.pipeline).Add(float64(n))
}

func (o *observer) written(n int) {
	if !o.enabled() {
		return
	}
	o.metrics.TransferBytesWritten.WithLabelValues(o.pipeline).Add(float64(n))
}

func (o *observer) blocked(queued int) {
	if !o.enabled() {
		return
	}
	o.metrics.BackpressureEvents.WithLabelValues(o.pipeline).Inc()
	o.metrics.ChannelQueued.WithLabelValues(o.pipeline).Set(float64(queued))
}

func (o *observer) receiveTimeout() {
	if !o.enabled() {
		return
	}
	o.metrics.ReceiveTimeouts.WithLabelValues(o.pipeline).Inc()
}

func (o *observer) queued(n int) {
	if !o.enabled() {
		return
	}
	o.metrics.ChannelQueued.WithLabelValues(o.pipeline).Set(float64(n))
}

func (o *observer) started(capacity int) {
	if !o.enabled() {
		return
	}
	o.metrics.ChannelCapacity.WithLabelValues(o.pipeline).Set(float64(capacity))
}

func (o *observer) finished(r *Report) {
	if !o.enabled() {
		return
	}
	o.metrics.TransferRuns.WithLabelValues(o.pipeline, r.Status()).Inc()
	o.metrics.TransferDuration.WithLabelValues(o.pipeline).Observe(r.Elapsed.Seconds())
	o.metrics.TransferThroughput.WithLabelValues(o.pipeline).Set(r.Throughput)
	o.metrics.ChannelQueued.WithLabelValues(o.pipeline).Set(0)
}
