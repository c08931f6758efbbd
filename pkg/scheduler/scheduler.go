package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/davemejos/mediasync/pkg/assetstore"
	"github.com/davemejos/mediasync/pkg/cleanup"
	"github.com/davemejos/mediasync/pkg/config"
	"github.com/davemejos/mediasync/pkg/errcodes"
	"github.com/davemejos/mediasync/pkg/media"
	"github.com/davemejos/mediasync/pkg/models"
	"github.com/davemejos/mediasync/pkg/realtime"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Status is the scheduler's observable state.
type Status struct {
	IsRunning      bool             `json:"is_running"`
	LastRun        *time.Time       `json:"last_run,omitempty"`
	NextRun        *time.Time       `json:"next_run,omitempty"`
	TotalProcessed int64            `json:"total_processed"`
	TotalFailed    int64            `json:"total_failed"`
	QueueSize      int              `json:"queue_size"`
	Config         config.Scheduler `json:"config"`
}

// Scheduler drains the cleanup queue on a fixed interval and runs a
// shorter-interval health check that only logs. There is exactly one
// per process; claims are compare-and-set so even a second process (or
// a manual force-cleanup racing a tick) can't double-process an item.
type Scheduler struct {
	appConfig *config.Config
	log       logger.Logger
	processID string

	store        assetstore.Client
	mediaService *media.Service
	queue        *cleanup.Queue
	broadcaster  realtime.Broadcaster

	mu             sync.Mutex
	config         config.Scheduler
	running        bool
	shutdown       chan struct{}
	doneProcessing chan struct{}

	// Stats are under their own lock so the run loop never contends
	// with Stop, which holds mu while draining the in-flight batch.
	statsMu        sync.Mutex
	lastRun        *time.Time
	nextRun        *time.Time
	totalProcessed int64
	totalFailed    int64
}

func New(cfg *config.Config, db *bun.DB, store assetstore.Client, broadcaster realtime.Broadcaster) *Scheduler {
	return &Scheduler{
		appConfig:    cfg,
		log:          logger.New(),
		processID:    randStringBytes(8),
		store:        store,
		mediaService: media.NewService(db),
		queue:        cleanup.NewQueue(db),
		broadcaster:  broadcaster,
		config:       cfg.Scheduler,
	}
}

// Start moves the scheduler from stopped to running. Starting a running
// scheduler is a conflict.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Scheduler) startLocked() error {
	if s.running {
		return errcodes.Conflict("Scheduler is already running.")
	}
	if !s.config.Enabled {
		return errcodes.Conflict("Scheduler is disabled by configuration.")
	}

	s.shutdown = make(chan struct{})
	s.doneProcessing = make(chan struct{})
	s.running = true

	next := time.Now().Add(s.config.Interval)
	s.statsMu.Lock()
	s.nextRun = &next
	s.statsMu.Unlock()

	// The goroutine works off a snapshot of the settings; config
	// changes go through a stop/apply/restart cycle.
	go s.run(s.shutdown, s.doneProcessing, s.config)

	s.log.Info("scheduler started", logger.Data{
		"interval":   s.config.Interval.String(),
		"batch_size": s.config.BatchSize,
	})
	return nil
}

// Stop halts the timers and waits for any in-flight batch to finish.
// Stopping a stopped scheduler is a conflict.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Scheduler) stopLocked() error {
	if !s.running {
		return errcodes.Conflict("Scheduler is not running.")
	}

	close(s.shutdown)
	<-s.doneProcessing
	s.running = false

	s.statsMu.Lock()
	s.nextRun = nil
	s.statsMu.Unlock()

	s.log.Info("scheduler stopped")
	return nil
}

// UpdateConfig applies new settings. A running scheduler goes through a
// stop/apply/restart cycle; the stop waits for the in-flight batch, so
// no batch is dropped mid-item.
func (s *Scheduler) UpdateConfig(cfg config.Scheduler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasRunning := s.running
	if wasRunning {
		if err := s.stopLocked(); err != nil {
			return err
		}
	}

	s.config = cfg

	if wasRunning && cfg.Enabled {
		return s.startLocked()
	}
	return nil
}

// Config returns the currently applied settings.
func (s *Scheduler) Config() config.Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Status reports the running state and counters.
func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	counts, err := s.queue.Counts(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	status := &Status{
		IsRunning: s.running,
		QueueSize: counts[models.CleanupStatusPending],
		Config:    s.config,
	}
	s.mu.Unlock()

	s.statsMu.Lock()
	status.LastRun = s.lastRun
	status.NextRun = s.nextRun
	status.TotalProcessed = s.totalProcessed
	status.TotalFailed = s.totalFailed
	s.statsMu.Unlock()

	return status, nil
}

// ForceCleanup drains one batch immediately, independent of the timer.
// The queue's claim semantics make this safe to call while a tick is in
// progress.
func (s *Scheduler) ForceCleanup(ctx context.Context) (processed, failed int, err error) {
	s.mu.Lock()
	batchSize := s.config.BatchSize
	backoff := s.config.Interval
	s.mu.Unlock()

	return s.runBatch(ctx, batchSize, backoff)
}

func (s *Scheduler) run(shutdown, done chan struct{}, cfg config.Scheduler) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	health := time.NewTicker(cfg.HealthCheckInterval)
	defer health.Stop()

	for {
		select {
		case <-shutdown:
			// Reaching this arm means no batch is in flight.
			done <- struct{}{}
			return
		case <-ticker.C:
			ctx := context.Background()
			processed, failed, err := s.runBatch(ctx, cfg.BatchSize, cfg.Interval)
			if err != nil {
				s.log.Err(err).Error("scheduler batch error")
			}

			now := time.Now()
			next := now.Add(cfg.Interval)
			s.statsMu.Lock()
			s.lastRun = &now
			s.nextRun = &next
			s.totalProcessed += int64(processed)
			s.totalFailed += int64(failed)
			s.statsMu.Unlock()
		case <-health.C:
			s.healthCheck(context.Background(), cfg)
		}
	}
}

func (s *Scheduler) runBatch(ctx context.Context, batchSize int, backoff time.Duration) (processed, failed int, err error) {
	items, err := s.queue.ClaimDue(ctx, s.processID, batchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, item := range items {
		actionErr := s.execute(ctx, item)
		if actionErr != nil {
			s.log.Err(actionErr).Warn("cleanup item error", logger.Data{
				"item_id":  item.ID,
				"type":     item.Type,
				"attempts": item.Attempts + 1,
			})
			if err := s.queue.Fail(ctx, item, actionErr, backoff); err != nil {
				s.log.Err(err).Error("record cleanup failure error")
			}
			failed++
			continue
		}
		if err := s.queue.Complete(ctx, item); err != nil {
			s.log.Err(err).Error("record cleanup completion error")
		}
		processed++
	}

	return processed, failed, nil
}

// healthCheck logs threshold breaches. It never takes corrective action
// itself.
func (s *Scheduler) healthCheck(ctx context.Context, cfg config.Scheduler) {
	counts, err := s.queue.Counts(ctx)
	if err != nil {
		s.log.Err(err).Error("scheduler health check error")
		return
	}

	if pending := counts[models.CleanupStatusPending]; pending > cfg.QueueWarnThreshold {
		s.log.Warn("cleanup queue backlog over threshold", logger.Data{
			"pending":   pending,
			"threshold": cfg.QueueWarnThreshold,
		})
	}
	if failedCount := counts[models.CleanupStatusFailed]; failedCount > cfg.FailureWarnThreshold {
		s.log.Warn("permanently failed cleanup items over threshold", logger.Data{
			"failed":    failedCount,
			"threshold": cfg.FailureWarnThreshold,
		})
	}
}

const letterBytes = "abcdefghijklmnopqrstuvwxyz"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
