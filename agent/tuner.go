package agent

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nstehr/hive/hive-core/config"
)

// Tuner runs in the background, re-reading the tuning file and swapping the
// session's table when the file has changed. Rounds never wait on it.
type Tuner struct {
	mu        sync.Mutex
	session   *Session
	path      string
	interval  int // re-check every N rounds
	lastRound int // round of the last check
	started   bool
	modTime   time.Time
	ready     chan struct{}
}

// NewTuner watches path on behalf of session. An interval <= 0 defaults to 200 rounds.
func NewTuner(session *Session, path string, interval int) *Tuner {
	if interval <= 0 {
		interval = 200
	}
	t := &Tuner{
		session:  session,
		path:     path,
		interval: interval,
		ready:    make(chan struct{}, 1),
	}
	if fi, err := os.Stat(path); err == nil {
		t.modTime = fi.ModTime()
	}
	session.AttachTuner(t)
	return t
}

// UpdateRound records the round just finished. Signals on the first call and
// on interval boundaries.
func (t *Tuner) UpdateRound(round int) {
	t.mu.Lock()
	shouldSignal := !t.started || round-t.lastRound >= t.interval
	if shouldSignal {
		t.started = true
		t.lastRound = round
	}
	t.mu.Unlock()

	if shouldSignal {
		select {
		case t.ready <- struct{}{}:
		default:
		}
	}
}

// Start blocks until ctx is cancelled, reloading on every signal.
func (t *Tuner) Start(ctx context.Context) {
	slog.Info("tuner started", "path", t.path, "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("tuner stopped")
			return
		case <-t.ready:
			t.check()
		}
	}
}

// check reloads the file if its modification time moved. It reports whether
// a new table was handed to the session.
func (t *Tuner) check() bool {
	fi, err := os.Stat(t.path)
	if err != nil {
		slog.Warn("tuning file unavailable", "path", t.path, "error", err)
		return false
	}

	t.mu.Lock()
	unchanged := !fi.ModTime().After(t.modTime)
	t.mu.Unlock()
	if unchanged {
		return false
	}

	cfg, err := config.Load(t.path)
	if err != nil {
		slog.Error("tuning reload failed", "path", t.path, "error", err)
		return false
	}

	t.mu.Lock()
	t.modTime = fi.ModTime()
	t.mu.Unlock()

	slog.Info("tuning reloaded",
		"path", t.path,
		"returnCarry", cfg.Tasks.ReturnCarry,
		"criticalReserve", cfg.Tasks.CriticalReserve,
		"spawnPerLeader", cfg.Leader.SpawnPerLeader,
		"spawnReserve", cfg.Leader.SpawnReserve,
		"threatRadiusSq", cfg.Leader.ThreatRadiusSq,
		"digPenalty", cfg.Scoring.DigPenalty,
	)
	t.session.Retune(cfg)
	return true
}
