package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "minderbot/pkg/logx"
)

// Config controls the schedule service.
type Config struct {
	Enabled bool
	// HistorySize bounds the in-memory run history (default 200).
	HistorySize int
	// StartupSpread jitters each interval job's first run by up to
	// min(interval, 30s) so restarts don't fire every job at once.
	StartupSpread bool
}

// JobFunc is one periodic job body. The context is cancelled when the
// service is stopped with a deadline pressure, never mid-run otherwise.
type JobFunc func(ctx context.Context) error

// HistoryItem records one completed run.
type HistoryItem struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

// JobInfo describes one registered job for status surfaces.
type JobInfo struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}

// runState is the per-job single-flight guard, shared across trigger firings.
type runState struct {
	mu      sync.Mutex
	running bool
}

func (r *runState) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *runState) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

type jobDef struct {
	name  string
	spec  string // human-readable trigger description
	sched cron.Schedule
	run   JobFunc

	entryID cron.EntryID
	state   *runState
}

// Service owns the cron runner and all registered jobs.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config

	parser cron.Parser
	c      *cron.Cron
	defs   []jobDef

	runCtx    context.Context
	runCancel context.CancelFunc
	inFlight  sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}
