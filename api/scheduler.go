/*
scheduler.go - Automated overdue sweeper

PURPOSE:
  Periodically flips unpaid and invoiced payment terms whose due date has
  passed to overdue, across every stored contract.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Delegates the per-term decision to schedule.MarkOverdue via the service
  - Records each run in sweep_runs for audit and UI display
  - Re-running on the same day is harmless: already overdue terms are skipped

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewOverdueScheduler(store, handler.Service)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - schedule/status.go: MarkOverdue
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payment-schedule/schedule"
	"github.com/warp/payment-schedule/store/sqlite"
)

const (
	sweepRunning   = "running"
	sweepCompleted = "completed"
	sweepFailed    = "failed"
)

// OverdueScheduler runs the overdue sweep on a ticker.
type OverdueScheduler struct {
	Store         *sqlite.Store
	Service       *schedule.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	// Serializes sweeps between the ticker and manual triggers.
	runMu sync.Mutex
}

// NewOverdueScheduler creates a new scheduler.
func NewOverdueScheduler(store *sqlite.Store, svc *schedule.Service) *OverdueScheduler {
	return &OverdueScheduler{
		Store:         store,
		Service:       svc,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (sc *OverdueScheduler) Start() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	sc.ticker = time.NewTicker(sc.CheckInterval)
	sc.wg.Add(1)

	go sc.run()

	log.Printf("[Scheduler] Started with check interval: %v", sc.CheckInterval)
}

// Stop stops the scheduler.
func (sc *OverdueScheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.ticker != nil {
		sc.ticker.Stop()
		close(sc.stop)
		sc.wg.Wait()
		sc.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (sc *OverdueScheduler) run() {
	defer sc.wg.Done()

	// Run immediately on start
	sc.RunOnce(context.Background())

	for {
		select {
		case <-sc.ticker.C:
			sc.RunOnce(context.Background())
		case <-sc.stop:
			return
		}
	}
}

// RunOnce performs one sweep and records it. The returned run carries the
// outcome; failures are logged, not returned.
func (sc *OverdueScheduler) RunOnce(ctx context.Context) sqlite.SweepRun {
	sc.runMu.Lock()
	defer sc.runMu.Unlock()

	run := sqlite.SweepRun{
		ID:        uuid.NewString(),
		Status:    sweepRunning,
		StartedAt: time.Now(),
	}
	if err := sc.Store.SaveSweepRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Failed to save run record: %v", err)
	}

	marked, err := sc.Service.SweepOverdue(ctx)
	completed := time.Now()
	run.Marked = marked
	run.CompletedAt = &completed
	if err != nil {
		run.Status = sweepFailed
		run.Error = err.Error()
		log.Printf("[Scheduler] Sweep failed after %d term(s): %v", marked, err)
	} else {
		run.Status = sweepCompleted
		if marked > 0 {
			log.Printf("[Scheduler] Marked %d term(s) overdue", marked)
		}
	}
	overdueMarked.Add(float64(marked))

	if err := sc.Store.SaveSweepRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Failed to update run record: %v", err)
	}
	return run
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (sc *OverdueScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(sc.CheckInterval)
}
