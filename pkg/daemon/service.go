// Package daemon wires scanning, change monitoring and admission control
// for one project root into a single Service.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/jamesainslie/scout/pkg/daemon/broadcaster"
	"github.com/jamesainslie/scout/pkg/daemon/indexer"
	"github.com/jamesainslie/scout/pkg/daemon/monitor"
	"github.com/jamesainslie/scout/pkg/scout/config"
	"github.com/jamesainslie/scout/pkg/scout/logging"
	"github.com/jamesainslie/scout/pkg/scout/metrics"
	"github.com/jamesainslie/scout/pkg/scout/perf"
	"github.com/jamesainslie/scout/pkg/scout/scanner"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// Options configures a Service.
type Options struct {
	// Root is the project directory. Required.
	Root string

	// Config supplies scope rules and limits. Nil uses config.Default.
	Config *config.Config

	// Port persists records. Nil keeps them in memory.
	Port indexer.Port

	// Broadcaster receives service events. Nil creates a private one.
	Broadcaster *broadcaster.Broadcaster

	// Meter receives the scout instruments. Nil disables metrics.
	Meter metric.Meter

	// Sampler overrides the process sampler of the admission controller.
	Sampler perf.Sampler

	// ScanOnly skips change monitoring in Start.
	ScanOnly bool
}

// Stats is a combined snapshot of every component.
type Stats struct {
	Root      string        `json:"root"`
	Uptime    time.Duration `json:"uptime"`
	Started   bool          `json:"started"`
	Scanning  bool          `json:"scanning"`
	ScanPause bool          `json:"scan_paused"`

	Scan      types.ScanStats  `json:"scan"`
	LastScan  *types.ScanStats `json:"last_scan,omitempty"`
	Index     indexer.Stats    `json:"index"`
	Monitor   monitor.Stats    `json:"monitor"`
	Perf      *perf.Stats      `json:"perf,omitempty"`
	Published int64            `json:"events_published"`
	Dropped   int64            `json:"events_dropped"`
}

// Service owns the scanner, monitor, admission controller, indexer and
// event broadcaster for one root.
type Service struct {
	cfg    *config.Config
	root   string
	rootID string

	scanner     *scanner.Scanner
	manager     *perf.Manager
	indexer     *indexer.Indexer
	monitor     *monitor.Monitor
	broadcaster *broadcaster.Broadcaster
	recorder    *metrics.Recorder
	log         *logging.Logger
	startTime   time.Time
	scanOnly    bool

	mu       sync.Mutex
	started  bool
	scanning bool
	lastScan *types.ScanStats
}

// New builds a stopped service. Invalid configuration and roots are
// reported here, before any scan.
func New(opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sopts, err := scanner.FromConfig(opts.Root, cfg)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:         cfg,
		broadcaster: opts.Broadcaster,
		scanOnly:    opts.ScanOnly,
		log:         logging.Get("daemon"),
		startTime:   time.Now(),
	}
	if s.broadcaster == nil {
		s.broadcaster = broadcaster.New()
	}

	if cfg.PerformanceEnabled {
		s.manager = perf.NewManager(perfOptions(cfg, opts.Sampler))
		sopts.Gate = s.manager
	}
	sopts.OnBatch = s.onBatch

	if s.scanner, err = scanner.New(sopts); err != nil {
		return nil, err
	}
	s.root = s.scanner.Root()
	s.rootID = indexer.RootID(s.root)

	port := opts.Port
	if port == nil {
		port = indexer.NewMemory()
	}
	s.indexer = indexer.New(port, s.rootID)

	s.monitor, err = monitor.New(monitor.Options{
		Analyzer:        s.scanner,
		Indexer:         s.indexer,
		DebounceWindow:  cfg.DebounceWindow,
		PollInterval:    cfg.PollInterval,
		BufferWarnLimit: cfg.BufferWarnLimit,
		OnChange:        s.onChange,
	})
	if err != nil {
		return nil, err
	}

	if opts.Meter != nil {
		if s.recorder, err = metrics.NewRecorder(opts.Meter, s.Snapshot); err != nil {
			return nil, err
		}
	}
	if s.manager != nil {
		s.manager.Subscribe(s.onPerfEvent)
	}
	return s, nil
}

func perfOptions(cfg *config.Config, sampler perf.Sampler) perf.Options {
	return perf.Options{
		Limits: perf.Limits{
			MemoryLimitMB:          cfg.MemoryLimitMB,
			EmergencyMemoryLimitMB: cfg.EmergencyMemoryLimitMB,
			CPUUsageLimit:          cfg.CPUUsageLimit,
			AutoPause:              cfg.AutoPauseOnHighLoad,
			AutoResume:             true,
		},
		InitialWorkers: cfg.MaxConcurrentWorkers,
		MaxWorkers:     cfg.MaxConcurrentWorkers * 2,
		AdjustInterval: cfg.AdjustInterval,
		SampleInterval: cfg.SampleInterval,
		HistorySize:    cfg.HistorySize,
		PauseTimeout:   cfg.PauseTimeout,
		Sampler:        sampler,
	}
}

// Root returns the absolute project root.
func (s *Service) Root() string {
	return s.root
}

// RootID returns the identifier records are stored under.
func (s *Service) RootID() string {
	return s.rootID
}

// Broadcaster returns the event broadcaster.
func (s *Service) Broadcaster() *broadcaster.Broadcaster {
	return s.broadcaster
}

// Start begins resource sampling and, unless ScanOnly is set, change
// monitoring.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.manager != nil {
		s.manager.Start(ctx)
	}
	if !s.scanOnly {
		if err := s.monitor.Start(ctx); err != nil {
			if s.manager != nil {
				s.manager.Stop()
			}
			return err
		}
	}
	s.started = true
	s.log.Info("service started", "root", s.root, "performance", s.manager != nil)
	return nil
}

// Scan crawls the root, indexing each batch and publishing progress.
// Admission failures are returned with the partial statistics.
func (s *Service) Scan(ctx context.Context) (*types.ScanStats, error) {
	s.mu.Lock()
	s.scanning = true
	s.mu.Unlock()

	stats, err := s.scanner.Scan(ctx)

	s.mu.Lock()
	s.scanning = false
	if stats != nil {
		s.lastScan = stats
	}
	s.mu.Unlock()

	if stats != nil {
		done := broadcaster.ScanComplete{Root: s.root, Stats: *stats}
		if err != nil {
			done.Err = err.Error()
		}
		s.broadcaster.Publish(done)
		s.recorder.RecordScan(ctx, stats)
	}
	return stats, err
}

func (s *Service) onBatch(ctx context.Context, batch []types.FileRecord) error {
	err := s.indexer.IndexBatch(ctx, batch)
	s.broadcaster.Publish(broadcaster.ScanProgress{
		Root:  s.root,
		Batch: batch,
		Stats: s.scanner.Stats(),
	})
	return err
}

func (s *Service) onChange(results []types.ChangeResult) {
	s.broadcaster.Publish(broadcaster.FileChange{Root: s.root, Results: results})
	s.recorder.RecordChanges(context.Background(), results)
}

func (s *Service) onPerfEvent(ev perf.Event) {
	s.broadcaster.Publish(broadcaster.PerformanceEvent{Root: s.root, Event: ev})
	s.recorder.RecordPerfEvent(context.Background(), ev)
}

// PauseScan suspends a running scan.
func (s *Service) PauseScan() {
	s.scanner.Pause()
}

// ResumeScan continues a paused scan and clears the load pause latch.
func (s *Service) ResumeScan() {
	s.scanner.Resume()
	if s.manager != nil {
		s.manager.ResetPause()
	}
}

// Stop halts any running scan, stops monitoring after reconciling pending
// changes, and stops resource sampling.
func (s *Service) Stop(ctx context.Context) error {
	s.scanner.Stop()

	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return nil
	}

	err := s.monitor.Stop(ctx)
	if s.manager != nil {
		s.manager.Stop()
	}
	s.log.Info("service stopped", "root", s.root)
	if err != nil {
		return fmt.Errorf("stopping monitor: %w", err)
	}
	return nil
}

// Subscribe registers for events of the given kinds under this root.
func (s *Service) Subscribe(kinds ...broadcaster.Kind) *broadcaster.Subscriber {
	return s.broadcaster.Subscribe(s.root, kinds...)
}

// Unsubscribe removes a subscription.
func (s *Service) Unsubscribe(id string) {
	s.broadcaster.Unsubscribe(id)
}

// Stats returns a snapshot of every component.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Root:     s.root,
		Uptime:   time.Since(s.startTime),
		Started:  s.started,
		Scanning: s.scanning,
		LastScan: s.lastScan,
	}
	s.mu.Unlock()

	st.ScanPause = s.scanner.Paused()
	st.Scan = s.scanner.Stats()
	st.Index = s.indexer.Stats()
	st.Monitor = s.monitor.Stats()
	if s.manager != nil {
		ps := s.manager.Stats()
		st.Perf = &ps
	}
	st.Published = s.broadcaster.Published()
	st.Dropped = s.broadcaster.Dropped()
	return st
}

// Snapshot reports the gauge values exported by metrics.Recorder.
func (s *Service) Snapshot() metrics.Snapshot {
	snap := metrics.Snapshot{Pending: s.monitor.Pending()}
	if s.manager == nil {
		return snap
	}

	ps := s.manager.Stats()
	snap.Workers = ps.CurrentWorkers
	snap.InFlight = ps.InFlight
	if ps.Current != nil {
		snap.MemoryMB = ps.Current.MemoryMB
		snap.CPUPercent = ps.Current.CPUPercent
	}
	return snap
}
