// Package scanner schedules periodic signal scans. Each named job scans its
// symbol set on a cron schedule, publishes fresh signals to the broadcaster
// and hands them to the copy-trade engine.
package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vadiminshakov/copytrade/internal/domain"
	"github.com/vadiminshakov/copytrade/internal/events"
	"github.com/vadiminshakov/copytrade/internal/services/signal"
)

// SignalSource produces and expires signals.
type SignalSource interface {
	GenerateBatch(ctx context.Context, symbols []string, interval string, limit int, attr signal.Attribution) ([]*domain.Signal, map[string]error)
	ExpireStale(ctx context.Context) (int, error)
}

// Dispatcher fans a fresh signal out to followers.
type Dispatcher interface {
	HandleSignal(ctx context.Context, sig *domain.Signal) error
}

// JobSpec describes one recurring scan.
type JobSpec struct {
	Name        string
	Schedule    string // standard 5-field cron expression
	Symbols     []string
	Interval    string
	KlineLimit  int
	Attribution signal.Attribution
}

// ScanResult summarizes one completed scan pass.
type ScanResult struct {
	Job        string            `json:"job"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	Generated  int               `json:"generated"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// JobStatus reports one scheduled job, including whether a pass is running
// right now and what its last pass produced.
type JobStatus struct {
	Name     string      `json:"name"`
	Schedule string      `json:"schedule"`
	NextRun  time.Time   `json:"nextRun"`
	Running  bool        `json:"running"`
	LastScan *ScanResult `json:"lastScan,omitempty"`
}

var errScanInProgress = errors.New("scan already in progress")

type job struct {
	spec     JobSpec
	entryID  cron.EntryID
	running  sync.Mutex
	active   atomic.Bool
	lastScan *ScanResult // guarded by Scanner.mu
}

// Scanner owns the cron schedule and the scan bodies.
type Scanner struct {
	source      SignalSource
	dispatcher  Dispatcher
	broadcaster *events.Broadcaster
	logger      *zap.Logger
	cron        *cron.Cron

	mu       sync.Mutex
	jobs     map[string]*job
	lastScan *ScanResult
}

// NewScanner creates a scanner with an idle schedule.
func NewScanner(source SignalSource, dispatcher Dispatcher, broadcaster *events.Broadcaster, logger *zap.Logger) *Scanner {
	return &Scanner{
		source:      source,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		logger:      logger,
		cron:        cron.New(),
		jobs:        make(map[string]*job),
	}
}

// AddJob registers a named scan job, replacing an existing job with the same
// name. An invalid cron expression fails immediately, before anything is
// replaced.
func (s *Scanner) AddJob(spec JobSpec) error {
	if spec.Name == "" {
		return errors.New("scan job needs a name")
	}
	if len(spec.Symbols) == 0 {
		return errors.Errorf("scan job %s has no symbols", spec.Name)
	}

	j := &job{spec: spec}
	entryID, err := s.cron.AddFunc(spec.Schedule, func() {
		if _, err := s.runJob(context.Background(), j); err != nil && !errors.Is(err, errScanInProgress) {
			s.logger.Error("scheduled scan failed",
				zap.String("job", spec.Name),
				zap.Error(err))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid schedule %q for job %s", spec.Schedule, spec.Name)
	}
	j.entryID = entryID

	s.mu.Lock()
	if old, ok := s.jobs[spec.Name]; ok {
		s.cron.Remove(old.entryID)
	}
	s.jobs[spec.Name] = j
	s.mu.Unlock()

	s.logger.Info("scan job registered",
		zap.String("job", spec.Name),
		zap.String("schedule", spec.Schedule),
		zap.Strings("symbols", spec.Symbols))
	return nil
}

// RemoveJob unregisters a job. Removing an unknown name is a no-op.
func (s *Scanner) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[name]; ok {
		s.cron.Remove(j.entryID)
		delete(s.jobs, name)
	}
}

// AddExpirySweep schedules the pending-signal expiry sweep.
func (s *Scanner) AddExpirySweep(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.source.ExpireStale(context.Background()); err != nil {
			s.logger.Error("signal expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid expiry sweep schedule %q", schedule)
	}
	return nil
}

// Start begins firing scheduled jobs.
func (s *Scanner) Start() {
	s.cron.Start()
	s.logger.Info("scanner started")
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *Scanner) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scanner stopped")
}

// Scan runs one ad-hoc scan pass outside the schedule.
func (s *Scanner) Scan(ctx context.Context, spec JobSpec) (*ScanResult, error) {
	return s.runJob(ctx, &job{spec: spec})
}

// runJob executes one scan pass. A pass that is still running blocks a new
// trigger of the same job from starting; the new trigger is skipped, not
// queued, so slow passes never pile up.
func (s *Scanner) runJob(ctx context.Context, j *job) (*ScanResult, error) {
	if !j.running.TryLock() {
		s.logger.Warn("skipping scan, previous pass still running",
			zap.String("job", j.spec.Name))
		return nil, errScanInProgress
	}
	defer j.running.Unlock()

	j.active.Store(true)
	defer j.active.Store(false)

	result := &ScanResult{
		Job:       j.spec.Name,
		StartedAt: time.Now(),
		Failed:    make(map[string]string),
	}

	signals, failures := s.source.GenerateBatch(ctx, j.spec.Symbols, j.spec.Interval, j.spec.KlineLimit, j.spec.Attribution)
	for symbol, err := range failures {
		result.Failed[symbol] = err.Error()
	}

	for _, sig := range signals {
		event := events.Event{
			Type:      events.TypeSignalNew,
			Payload:   sig,
			Timestamp: sig.CreatedAt,
		}
		s.broadcaster.Publish(events.TopicSignalNew, event)
		s.broadcaster.Publish(events.SignalTopic(sig.Symbol), event)

		if err := s.dispatcher.HandleSignal(ctx, sig); err != nil {
			s.logger.Error("copy-trade dispatch failed",
				zap.String("signal", sig.ID.String()),
				zap.Error(err))
		}
	}

	result.Generated = len(signals)
	result.FinishedAt = time.Now()

	s.mu.Lock()
	s.lastScan = result
	j.lastScan = result
	s.mu.Unlock()

	s.logger.Info("scan pass finished",
		zap.String("job", j.spec.Name),
		zap.Int("generated", result.Generated),
		zap.Int("failed", len(result.Failed)),
		zap.Duration("took", result.FinishedAt.Sub(result.StartedAt)))
	return result, nil
}

// Status reports every registered job with its next scheduled run, whether a
// pass is currently executing and the summary of its last finished pass.
func (s *Scanner) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for name, j := range s.jobs {
		statuses = append(statuses, JobStatus{
			Name:     name,
			Schedule: j.spec.Schedule,
			NextRun:  s.cron.Entry(j.entryID).Next,
			Running:  j.active.Load(),
			LastScan: j.lastScan,
		})
	}
	sort.Slice(statuses, func(i, k int) bool { return statuses[i].Name < statuses[k].Name })
	return statuses
}

// LastScan returns the most recent scan summary, nil before the first pass.
func (s *Scanner) LastScan() *ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}
