package metrics

import (
	"context"
	"time"
)

// MetricsCollector defines the core domain interface
type MetricsCollector interface {
	Record(ctx context.Context, snapshot *MetricsSnapshot) error
	Close() error
}

// MetricsRepository defines the interface for metrics data storage
type MetricsRepository interface {
	Record(snapshot *MetricsSnapshot) error
	Close() error
}

// MetricsSnapshot captures one evaluation of the sampling loop
type MetricsSnapshot struct {
	Timestamp time.Time
	Source    string
	Load      LoadMetrics
	State     StateMetrics
}

// Domain value objects
type LoadMetrics struct {
	Value     float64
	CoreCount int
}

type StateMetrics struct {
	Active     bool
	Transition bool
	Suppressed bool
	PowerMode  string
}
