package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jamesainslie/scout/pkg/scout/perf"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

const (
	metricScanFiles     = "scout.scan.files.total"
	metricScanBytes     = "scout.scan.bytes.total"
	metricScanDuration  = "scout.scan.duration.seconds"
	metricChanges       = "scout.monitor.changes.total"
	metricPerfEvents    = "scout.perf.events.total"
	metricWorkers       = "scout.workers.current"
	metricWorkersActive = "scout.workers.in_flight"
	metricPending       = "scout.monitor.pending"
	metricMemory        = "scout.process.memory.mb"
	metricCPU           = "scout.process.cpu.percent"

	attrOutcome = "outcome"
	attrAction  = "action"
	attrKind    = "kind"
)

var scanDurationBounds = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}

// Snapshot is the point-in-time state observed by the gauges.
type Snapshot struct {
	Workers    int
	InFlight   int
	Pending    int
	MemoryMB   float64
	CPUPercent float64
}

// Recorder holds the scout instruments.
type Recorder struct {
	scanFiles    metric.Int64Counter
	scanBytes    metric.Int64Counter
	scanDuration metric.Float64Histogram
	changes      metric.Int64Counter
	perfEvents   metric.Int64Counter

	workers  metric.Int64ObservableGauge
	inFlight metric.Int64ObservableGauge
	pending  metric.Int64ObservableGauge
	memory   metric.Float64ObservableGauge
	cpu      metric.Float64ObservableGauge

	snapshot func() Snapshot
}

// NewRecorder creates the instruments on mt. When snapshot is non-nil the
// gauges report its result on every collection.
func NewRecorder(mt metric.Meter, snapshot func() Snapshot) (*Recorder, error) {
	b := newBuilder(mt)

	r := &Recorder{
		scanFiles:    b.counter(metricScanFiles, "Files seen by scans, by outcome", "{file}"),
		scanBytes:    b.counter(metricScanBytes, "Bytes analyzed by scans", "By"),
		scanDuration: b.histogram(metricScanDuration, "Scan duration in seconds", "s", scanDurationBounds...),
		changes:      b.counter(metricChanges, "Reconciled filesystem changes, by action", "{change}"),
		perfEvents:   b.counter(metricPerfEvents, "Admission controller events, by kind", "{event}"),
		workers:      b.gauge(metricWorkers, "Current worker pool size", "{worker}"),
		inFlight:     b.gauge(metricWorkersActive, "Analyses currently admitted", "{worker}"),
		pending:      b.gauge(metricPending, "Changes waiting out the debounce window", "{change}"),
		memory:       b.floatGauge(metricMemory, "Resident memory of the process", "MBy"),
		cpu:          b.floatGauge(metricCPU, "Process CPU usage", "%"),
		snapshot:     snapshot,
	}
	if b.err != nil {
		return nil, b.err
	}

	if snapshot != nil {
		_, err := mt.RegisterCallback(r.observe, r.workers, r.inFlight, r.pending, r.memory, r.cpu)
		if err != nil {
			return nil, fmt.Errorf("register scout gauges callback: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) observe(_ context.Context, obs metric.Observer) error {
	s := r.snapshot()
	obs.ObserveInt64(r.workers, int64(s.Workers))
	obs.ObserveInt64(r.inFlight, int64(s.InFlight))
	obs.ObserveInt64(r.pending, int64(s.Pending))
	obs.ObserveFloat64(r.memory, s.MemoryMB)
	obs.ObserveFloat64(r.cpu, s.CPUPercent)
	return nil
}

// RecordScan records a finished scan. Safe to call on a nil receiver.
func (r *Recorder) RecordScan(ctx context.Context, st *types.ScanStats) {
	if r == nil || st == nil {
		return
	}

	for outcome, n := range map[string]int64{
		"processed": st.FilesProcessed,
		"skipped":   st.FilesSkipped,
		"errored":   st.FilesErrored,
	} {
		r.scanFiles.Add(ctx, n, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
	}
	r.scanBytes.Add(ctx, st.BytesProcessed)
	r.scanDuration.Record(ctx, st.Elapsed.Seconds())
}

// RecordChanges counts reconciliation results by action.
func (r *Recorder) RecordChanges(ctx context.Context, results []types.ChangeResult) {
	if r == nil {
		return
	}
	for _, res := range results {
		r.changes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAction, string(res.Action))))
	}
}

// RecordPerfEvent counts an admission controller event.
func (r *Recorder) RecordPerfEvent(ctx context.Context, ev perf.Event) {
	if r == nil {
		return
	}
	r.perfEvents.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, string(ev.Kind))))
}
