package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config selects whether and where flowbench metrics are registered.
type Config struct {
	// Enabled turns collection on. New returns nil otherwise.
	Enabled bool

	// Registry receives the collectors (nil = prometheus.DefaultRegisterer).
	// The CLI passes a private registry so /metrics only shows what it adds.
	Registry prometheus.Registerer

	// Namespace prefixes metric names (empty = DefaultNamespace).
	Namespace string
}

// DefaultConfig enables metrics on the default registerer.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}
