// Package jobs runs background maintenance over open user services.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/src-lua/apogee/internal/calendar"
	"github.com/src-lua/apogee/internal/engine"
)

// RolloverSweep periodically settles every known user's ledger and
// materializes their instances for today, so counters converge even when
// nobody reads them.
type RolloverSweep struct {
	sessions *engine.Sessions
	users    []string
	interval time.Duration
	log      *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	passMu  sync.Mutex
	settled map[string]calendar.Day
}

// SweepResult summarizes one pass.
type SweepResult struct {
	Users int
	// Rolled counts users whose rollover day advanced since the previous pass.
	Rolled    int
	Generated int
	Failed    int
}

// NewRolloverSweep creates the job. users are opened in sessions up front;
// services opened later are picked up on the next pass.
func NewRolloverSweep(sessions *engine.Sessions, users []string, interval time.Duration, logger *slog.Logger) *RolloverSweep {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RolloverSweep{
		sessions: sessions,
		users:    users,
		interval: interval,
		log:      logger.With(slog.String("job", "rollover_sweep")),
		stopCh:   make(chan struct{}),
		settled:  make(map[string]calendar.Day),
	}
}

// Start begins the sweep loop.
func (j *RolloverSweep) Start() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run()
	j.log.Info("rollover sweep started", slog.Duration("interval", j.interval))
}

// Stop waits for the loop to exit. A stopped sweep cannot be restarted.
func (j *RolloverSweep) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.mu.Unlock()

	close(j.stopCh)
	j.wg.Wait()
	j.log.Info("rollover sweep stopped")
}

func (j *RolloverSweep) run() {
	defer j.wg.Done()

	j.sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopCh:
			return
		}
	}
}

func (j *RolloverSweep) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	res, err := j.RunOnce(ctx)
	if err != nil {
		j.log.Error("rollover sweep failed",
			slog.Int("failed", res.Failed),
			slog.String("error", err.Error()),
		)
		return
	}
	j.log.Debug("rollover sweep done",
		slog.Int("users", res.Users),
		slog.Int("rolled", res.Rolled),
		slog.Int("generated", res.Generated),
	)
}

// RunOnce runs a single pass. Failures of one user do not stop the others;
// they are joined into the returned error.
func (j *RolloverSweep) RunOnce(ctx context.Context) (SweepResult, error) {
	j.passMu.Lock()
	defer j.passMu.Unlock()

	for _, u := range j.users {
		j.sessions.For(u)
	}

	var res SweepResult
	var errs []error
	for _, svc := range j.sessions.Services() {
		res.Users++
		st, err := svc.EnsureRolledOver(ctx)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("user %s: rollover: %w", svc.UserID(), err))
			continue
		}
		if st.LastRolloverDay.After(j.settled[svc.UserID()]) {
			res.Rolled++
		}
		j.settled[svc.UserID()] = st.LastRolloverDay
		created, err := svc.GenerateToday(ctx)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("user %s: generate: %w", svc.UserID(), err))
			continue
		}
		res.Generated += created
	}
	return res, errors.Join(errs...)
}

// IsRunning reports whether the loop is active.
func (j *RolloverSweep) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}
