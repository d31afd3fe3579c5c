package annostore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// RecordAdd, RecordUpdate and RecordDelete are also invoked by the
// underlying store, so a collector sees cascading deletes and bulk updates.
type MetricsCollector interface {
	// RecordAdd is called after each add.
	RecordAdd(duration time.Duration, err error)

	// RecordUpdate is called after each update.
	RecordUpdate(duration time.Duration, err error)

	// RecordDelete is called after each delete.
	RecordDelete(duration time.Duration, err error)

	// RecordSerialize is called after each binary pack. bytes is the size
	// of the packed buffer.
	RecordSerialize(count, bytes int, duration time.Duration)

	// RecordSave is called after each snapshot save.
	RecordSave(count int, duration time.Duration, err error)

	// RecordLoad is called after each snapshot load.
	RecordLoad(count int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)          {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)       {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)       {}
func (NoopMetricsCollector) RecordSerialize(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordSave(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordLoad(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	AddTotalNanos    atomic.Int64
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	SerializeCount   atomic.Int64
	SerializeRecords atomic.Int64
	SerializeBytes   atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveTotalNanos   atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadedRecords    atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordSerialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSerialize(count, bytes int, duration time.Duration) {
	b.SerializeCount.Add(1)
	b.SerializeRecords.Add(int64(count))
	b.SerializeBytes.Add(int64(bytes))
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(count int, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(count int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadedRecords.Add(int64(count))
}

// GetStats returns a snapshot of the current counters.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:         b.AddCount.Load(),
		AddErrors:        b.AddErrors.Load(),
		AddAvgNanos:      avg(b.AddTotalNanos.Load(), b.AddCount.Load()),
		UpdateCount:      b.UpdateCount.Load(),
		UpdateErrors:     b.UpdateErrors.Load(),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		SerializeCount:   b.SerializeCount.Load(),
		SerializeRecords: b.SerializeRecords.Load(),
		SerializeBytes:   b.SerializeBytes.Load(),
		SaveCount:        b.SaveCount.Load(),
		SaveErrors:       b.SaveErrors.Load(),
		SaveAvgNanos:     avg(b.SaveTotalNanos.Load(), b.SaveCount.Load()),
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		LoadedRecords:    b.LoadedRecords.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount         int64
	AddErrors        int64
	AddAvgNanos      int64
	UpdateCount      int64
	UpdateErrors     int64
	DeleteCount      int64
	DeleteErrors     int64
	SerializeCount   int64
	SerializeRecords int64
	SerializeBytes   int64
	SaveCount        int64
	SaveErrors       int64
	SaveAvgNanos     int64
	LoadCount        int64
	LoadErrors       int64
	LoadedRecords    int64
}
