package broadcast

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"minderbot/internal/kit"
	logx "minderbot/pkg/logx"
)

func New(cfg Config, sender kit.Sender, reg Registry, pool []string, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		sender: sender,
		reg:    reg,
		pool:   append([]string(nil), pool...),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

// SetPool replaces the content pool. The next cycle picks from the new pool.
func (s *Service) SetPool(pool []string) {
	s.mu.Lock()
	s.pool = append([]string(nil), pool...)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = 30 * time.Second
	}
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = 4 * time.Hour
	}
	if cfg.JitterMax < 0 {
		cfg.JitterMax = 0
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start launches the loop. It is a no-op when already running or when the
// content pool is empty.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	if len(s.pool) == 0 {
		s.mu.Unlock()
		s.log.Info("broadcast pool empty; loop not started")
		return
	}
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	first := s.cfg.StartupDelay
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(runCtx, stopCh, first)
	}()
	s.log.Info("broadcast loop started", logx.Duration("startup_delay", first))
}

// Stop halts the loop. A cycle already in flight runs to its next suspension
// point (context-aware waits) and no new cycle begins after Stop returns.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	stopCh := s.stopCh
	cancel := s.runCancel
	s.stopCh = nil
	s.runCancel = nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
	s.log.Info("broadcast loop stopped")
}

func (s *Service) loop(ctx context.Context, stopCh <-chan struct{}, first time.Duration) {
	delay := first
	for {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		case <-stopCh:
			if !t.Stop() {
				<-t.C
			}
			return
		case <-t.C:
		}

		s.runCycle(ctx)
		delay = s.nextDelay()
		s.log.Debug("broadcast rescheduled", logx.Duration("next_in", delay))
	}
}

// nextDelay computes the self-reschedule delay:
// base_interval + uniform(0, jitter_max), both bounds inclusive.
func (s *Service) nextDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.cfg.BaseInterval
	if s.cfg.JitterMax > 0 {
		d += time.Duration(s.rng.Int63n(int64(s.cfg.JitterMax) + 1))
	}
	return d
}

func (s *Service) pickContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pool) == 0 {
		return ""
	}
	return s.pool[s.rng.Intn(len(s.pool))]
}

func (s *Service) snapshot() (kit.Sender, Registry, *rate.Limiter, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender, s.reg, s.limiter, s.cfg.EvictAfter
}
