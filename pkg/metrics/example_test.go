package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates recording a transfer on an isolated registry.
func Example_basicUsage() {
	registry := NewRegistry(prometheus.NewRegistry())

	registry.TransferBytesWritten.WithLabelValues("default").Add(1 << 20)
	registry.TransferRuns.WithLabelValues("default", StatusComplete).Inc()

	fmt.Println(testutil.ToFloat64(registry.TransferBytesWritten.WithLabelValues("default")))
	fmt.Println(testutil.ToFloat64(registry.TransferRuns.WithLabelValues("default", StatusComplete)))

	// Output:
	// 1.048576e+06
	// 1
}

// Example_disabled demonstrates that a disabled config yields a nil registry.
func Example_disabled() {
	registry := New(Config{Enabled: false})
	fmt.Println(registry == nil)

	// Output:
	// true
}

// Example_customNamespace demonstrates overriding the metric namespace.
func Example_customNamespace() {
	reg := prometheus.NewRegistry()
	registry := New(Config{Enabled: true, Registry: reg, Namespace: "edge"})
	registry.ChannelCapacity.WithLabelValues("default").Set(49152)

	families, _ := reg.Gather()
	for _, f := range families {
		fmt.Println(f.GetName())
	}

	// Output:
	// edge_channel_capacity_bytes
}
