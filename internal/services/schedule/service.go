package schedule

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "minderbot/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Register installs a fixed-interval job. The first run happens one full
// interval after Start. Registration is only allowed while stopped.
func (s *Service) Register(name string, every time.Duration, job JobFunc) error {
	if every <= 0 {
		return fmt.Errorf("job %q: interval must be > 0", name)
	}
	sched := cron.Schedule(intervalSchedule{every: every})
	return s.register(name, fmt.Sprintf("@every %s", every), sched, every, job)
}

// RegisterDaily installs a job firing once a day at HH:MM local time.
func (s *Service) RegisterDaily(name string, atHHMM string, job JobFunc) error {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}
	spec := fmt.Sprintf("%d %d * * *", m, h)
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}
	return s.register(name, "daily "+atHHMM, sched, 0, job)
}

func (s *Service) register(name, spec string, sched cron.Schedule, every time.Duration, job JobFunc) error {
	if job == nil {
		return fmt.Errorf("job %q: nil func", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("scheduler already started")
	}
	for i := range s.defs {
		if s.defs[i].name == name {
			return fmt.Errorf("job %q already registered", name)
		}
	}
	if every > 0 && s.cfg.StartupSpread {
		sched = withStartupSpread(sched, every, name)
	}
	s.defs = append(s.defs, jobDef{
		name:  name,
		spec:  spec,
		sched: sched,
		run:   job,
		state: &runState{},
	})
	return nil
}

// Start arms every registered trigger. It is a no-op when already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New()
	for i := range s.defs {
		d := &s.defs[i]
		d.entryID = s.c.Schedule(d.sched, cron.FuncJob(func() { s.runJob(d) }))
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("jobs", len(s.defs)))
}

// Stop cancels every trigger. A run already in flight completes; no job
// function runs after Stop returns (or, under deadline pressure, after the
// in-flight context is cancelled).
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	// cron's Stop context closes once all running jobs have returned.
	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		// Caller ran out of patience; cancel in-flight work and keep waiting.
		if cancel != nil {
			cancel()
		}
		<-done
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) runJob(d *jobDef) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	// Single-flight: a tick still running when its trigger fires again wins.
	if !d.state.tryAcquire() {
		s.log.Debug("job still running; skipping this firing", logx.String("job", d.name))
		return
	}
	defer d.state.release()

	s.inFlight.Add(1)
	defer s.inFlight.Done()

	start := time.Now()
	err := s.safeRun(ctx, d)
	dur := time.Since(start)

	item := HistoryItem{Name: d.name, Started: start, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("job failed", logx.String("job", d.name), logx.Err(err), logx.Duration("dur", dur))
	} else {
		// Avoid noisy logs for very frequent jobs: only elevate to INFO when it took noticeable time.
		if dur >= 750*time.Millisecond {
			s.log.Info("job completed", logx.String("job", d.name), logx.Duration("dur", dur))
		} else {
			s.log.Debug("job completed", logx.String("job", d.name), logx.Duration("dur", dur))
		}
	}
	s.appendHistory(item)
}

func (s *Service) safeRun(ctx context.Context, d *jobDef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("panic in job", logx.String("job", d.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return d.run(ctx)
}

func (s *Service) appendHistory(item HistoryItem) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	size := s.cfg.HistorySize
	// A zero/negative history_size would mean unbounded growth; long-running
	// bots slowly retain memory that way, so default to a sensible cap.
	if size <= 0 {
		size = 200
	}
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
}

// History returns a copy of the bounded run history, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

// Jobs lists registered jobs with their next/prev fire times (zero when stopped).
func (s *Service) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.defs))
	for i := range s.defs {
		d := &s.defs[i]
		info := JobInfo{Name: d.name, Spec: d.spec}
		if s.c != nil {
			e := s.c.Entry(d.entryID)
			info.Next = e.Next
			info.Prev = e.Prev
		}
		out = append(out, info)
	}
	return out
}

// Clock is a local time of day parsed from "HH:MM".
type Clock struct {
	Hour, Minute int
}

// ParseClock validates and parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	h, m, err := parseHHMM(s)
	if err != nil {
		return Clock{}, err
	}
	return Clock{Hour: h, Minute: m}, nil
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
