// Package metrics stores application gauges in an embedded time-series store.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	mu      sync.RWMutex
	storage tstorage.Storage
)

// InitMetrics opens the metrics store under workdir/metrics.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()

	st, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7*24*time.Hour),
	)
	if err != nil {
		return err
	}
	storage = st
	return nil
}

// SetGauge records the current value of a named gauge.
func SetGauge(name string, value int64) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{
		{
			Metric: name,
			DataPoint: tstorage.DataPoint{
				Timestamp: time.Now().Unix(),
				Value:     float64(value),
			},
		},
	})
}

// Select returns the datapoints of a gauge between start and end (unix seconds).
func Select(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return nil, nil
	}
	return storage.Select(name, nil, start, end)
}

// Close flushes and closes the metrics store.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
