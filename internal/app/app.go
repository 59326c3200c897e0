package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"minderbot/internal/config"
	"minderbot/internal/kit"
	"minderbot/internal/services/briefing"
	"minderbot/internal/services/broadcast"
	"minderbot/internal/services/dispatch"
	"minderbot/internal/services/remind"
	"minderbot/internal/services/schedule"
	"minderbot/internal/storage"
	"minderbot/internal/transport/telegram"
	logx "minderbot/pkg/logx"
)

// App wires config, storage, the Telegram adapter and the background
// services together and owns their lifecycle.
type App struct {
	cfgPath string

	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter *telegram.Adapter

	disp  *dispatch.Service
	sched *schedule.Service
	comp  *briefing.Composer
	bcast *broadcast.Service

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, baseLog := logx.New(mapLogConfig(cfg))
	log := baseLog.With(logx.String("comp", "app"))
	cfgm.SetLogger(baseLog.With(logx.String("comp", "config")))
	cfgm.SetValidator(validateConfig)

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
	}

	// Storage (optional; reminders, briefings and broadcasts all need it).
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, baseLog.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a.store = st
	if st == nil {
		log.Warn("storage disabled; reminders, briefings and broadcasts are inactive")
	}

	// Telegram adapter (optional; without it every send is a logged drop).
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		ad, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			PollTimeout: pollTimeout,
		}, baseLog.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		a.adapter = ad
	} else {
		log.Warn("telegram token not set; outbound delivery disabled")
	}

	var sender kit.Sender
	if a.adapter != nil {
		sender = a.adapter
	}

	dcfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.disp = dispatch.New(dcfg, sender, baseLog.With(logx.String("comp", "dispatch")))

	scfg, err := mapScheduleConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.sched = schedule.New(scfg, baseLog.With(logx.String("comp", "schedule")))
	a.comp = briefing.NewComposer(baseLog.With(logx.String("comp", "briefing")))

	if err := a.registerJobs(cfg); err != nil {
		return nil, err
	}

	bcfg, err := mapBroadcastConfig(cfg)
	if err != nil {
		return nil, err
	}
	var reg broadcast.Registry
	if st != nil {
		reg = st
	}
	a.bcast = broadcast.New(bcfg, sender, reg, cfg.Broadcast.Pool, baseLog.With(logx.String("comp", "broadcast")))

	// Every chat that talks to the bot becomes a broadcast destination.
	if a.adapter != nil && st != nil {
		a.adapter.SetChatObserver(func(t kit.ChatTarget) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := st.UpsertDestination(ctx, t.ChatID, t.ThreadID); err != nil {
				log.Warn("destination upsert failed", logx.Int64("chat", t.ChatID), logx.Err(err))
			}
		})
	}

	return a, nil
}

// registerJobs installs the reminder pollers and the two daily briefings on
// the scheduler. Registration happens before Start; the scheduler rejects
// late additions.
func (a *App) registerJobs(cfg *config.Config) error {
	if a.store == nil {
		return nil
	}

	if cfg.Reminders.Enabled {
		iv, err := mapRemindIntervals(cfg)
		if err != nil {
			return err
		}
		every := map[string]time.Duration{
			"calendar":  iv.calendar,
			"tasks":     iv.tasks,
			"prices":    iv.prices,
			"documents": iv.documents,
		}
		for _, src := range remindSources(a.store) {
			p := remind.NewPoller(src, a.disp, a.logs.Logger().With(logx.String("comp", "remind")))
			if err := a.sched.Register("remind."+src.Name(), every[src.Name()], p.Tick); err != nil {
				return err
			}
		}
	}

	if cfg.Briefing.Enabled {
		dayStart := firstNonEmpty(cfg.Briefing.DayStart, defaultDayStart)
		dayEnd := firstNonEmpty(cfg.Briefing.DayEnd, defaultDayEnd)
		morning := dayStartVariant(a.store, time.Now)
		evening := dayEndVariant(a.store, time.Now)
		if err := a.sched.RegisterDaily("briefing.day-start", dayStart, a.briefingJob(morning)); err != nil {
			return err
		}
		if err := a.sched.RegisterDaily("briefing.day-end", dayEnd, a.briefingJob(evening)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) briefingJob(v briefing.Variant) schedule.JobFunc {
	return func(ctx context.Context) error {
		a.disp.Send(ctx, a.comp.Compose(ctx, v))
		return nil
	}
}

func (a *App) Start(ctx context.Context) error {
	// The run context is detached from the caller's cancellation: a signal
	// only begins shutdown, and in-flight ticks drain during Stop instead of
	// being cut mid-run.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.runCancel = cancel

	if a.adapter != nil {
		a.adapter.Start(runCtx)
	}
	if a.sched.Enabled() {
		a.sched.Start(runCtx)
	}
	if a.bcast.Enabled() && a.adapter != nil && a.store != nil {
		a.bcast.Start(runCtx)
	}

	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

// reloadLoop applies hot-reloaded config to the services that support live
// updates. Storage, scheduler cadence and the job set need a restart; those
// changes are logged and deferred.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest config matters.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
					continue
				default:
				}
				break
			}
			a.applyConfig(ctx, cfg)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))

	// The validator already vetted the config before publish; a mapping
	// error here means the validator and the mappers drifted apart.
	if dcfg, err := mapDispatchConfig(cfg); err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.disp.Apply(dcfg)
	}

	prevBcast := a.bcast.Enabled()
	if bcfg, err := mapBroadcastConfig(cfg); err != nil {
		a.log.Warn("invalid broadcast config; keeping previous", logx.Err(err))
	} else {
		a.bcast.SetPool(cfg.Broadcast.Pool)
		a.bcast.Apply(bcfg)
		canRun := a.adapter != nil && a.store != nil
		if prevBcast && !bcfg.Enabled {
			a.log.Info("broadcast disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.bcast.Stop(stopCtx)
			cancel()
		} else if bcfg.Enabled && canRun {
			if !prevBcast {
				a.log.Info("broadcast enabled via config")
			}
			// No-op when already running; also picks up a pool that was
			// empty at boot and filled in by this reload.
			a.bcast.Start(ctx)
		}
	}

	a.log.Info("config reloaded")
}

// Stop unwinds in reverse start order. Each step gets a bounded slice of the
// caller's deadline so one stuck component can't stall the whole shutdown.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")

	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		fn(stepCtx)
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("scheduler", 10*time.Second, a.sched.Stop)
	step("broadcast", 5*time.Second, a.bcast.Stop)
	if a.adapter != nil {
		step("telegram", 3*time.Second, a.adapter.Stop)
	}

	// Services have drained (or hit their step deadline); only now tear down
	// the run context, which also unwinds the reload and watch loops.
	if a.runCancel != nil {
		a.runCancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown deadline reached with loops still running")
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	return a.logs.Close()
}
