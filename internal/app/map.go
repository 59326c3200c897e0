package app

import (
	"fmt"
	"time"

	"minderbot/internal/config"
	"minderbot/internal/services/broadcast"
	"minderbot/internal/services/dispatch"
	"minderbot/internal/services/remind"
	"minderbot/internal/services/schedule"
	"minderbot/internal/storage"
	logx "minderbot/pkg/logx"
)

// Mapping helpers translate the file-level config (duration strings, JSON
// tags) into the typed per-service configs. Each helper validates as it maps
// so a bad hot-reload is rejected before anything is applied.

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapScheduleConfig(cfg *config.Config) (schedule.Config, error) {
	if cfg.Scheduler.HistorySize < 0 {
		return schedule.Config{}, fmt.Errorf("scheduler.history_size must be >= 0")
	}
	return schedule.Config{
		Enabled:       cfg.Scheduler.Enabled,
		HistorySize:   cfg.Scheduler.HistorySize,
		StartupSpread: cfg.Scheduler.StartupSpread,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	if cfg.Dispatch.RetryMax < 0 {
		return dispatch.Config{}, fmt.Errorf("dispatch.retry_max must be >= 0")
	}
	base, err := config.ParseDurationOrDefault("dispatch.retry_base", cfg.Dispatch.RetryBase, 0)
	if err != nil {
		return dispatch.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("dispatch.retry_max_delay", cfg.Dispatch.RetryMaxDelay, 0)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		ChatID:        cfg.Dispatch.ChatID,
		ThreadID:      cfg.Dispatch.ThreadID,
		RatePerSec:    cfg.Dispatch.RatePerSec,
		RetryMax:      cfg.Dispatch.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
	}, nil
}

func mapBroadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	startup, err := config.ParseDurationOrDefault("broadcast.startup_delay", cfg.Broadcast.StartupDelay, 0)
	if err != nil {
		return broadcast.Config{}, err
	}
	base, err := config.ParseDurationOrDefault("broadcast.base_interval", cfg.Broadcast.BaseInterval, 0)
	if err != nil {
		return broadcast.Config{}, err
	}
	jitter, err := config.ParseDurationOrDefault("broadcast.jitter_max", cfg.Broadcast.JitterMax, 0)
	if err != nil {
		return broadcast.Config{}, err
	}
	if cfg.Broadcast.EvictAfter < 0 {
		return broadcast.Config{}, fmt.Errorf("broadcast.evict_after must be >= 0")
	}
	evict := cfg.Broadcast.EvictAfter
	if evict == 0 {
		evict = 5
	}
	return broadcast.Config{
		Enabled:      cfg.Broadcast.Enabled,
		StartupDelay: startup,
		BaseInterval: base,
		JitterMax:    jitter,
		RatePerSec:   cfg.Broadcast.RatePerSec,
		EvictAfter:   evict,
	}, nil
}

// remindIntervals is the per-domain poll cadence, defaults applied.
type remindIntervals struct {
	calendar  time.Duration
	tasks     time.Duration
	prices    time.Duration
	documents time.Duration
}

func mapRemindIntervals(cfg *config.Config) (remindIntervals, error) {
	var iv remindIntervals
	var err error
	if iv.calendar, err = config.ParseDurationOrDefault("reminders.calendar_every", cfg.Reminders.CalendarEvery, time.Minute); err != nil {
		return iv, err
	}
	if iv.tasks, err = config.ParseDurationOrDefault("reminders.tasks_every", cfg.Reminders.TasksEvery, 30*time.Minute); err != nil {
		return iv, err
	}
	if iv.prices, err = config.ParseDurationOrDefault("reminders.prices_every", cfg.Reminders.PricesEvery, 5*time.Minute); err != nil {
		return iv, err
	}
	if iv.documents, err = config.ParseDurationOrDefault("reminders.documents_every", cfg.Reminders.DocumentsEvery, 24*time.Hour); err != nil {
		return iv, err
	}
	return iv, nil
}

// remindSources builds the four domain pollers over the store.
func remindSources(st storage.Store) []remind.Source {
	return []remind.Source{
		remind.NewCalendarSource(st),
		remind.NewTaskSource(st),
		remind.NewPriceSource(st),
		remind.NewDocumentSource(st),
	}
}

// validateConfig is the transactional pre-commit check used by the config
// manager: a reload that fails here is dropped wholesale, the previous config
// stays live.
func validateConfig(cfg *config.Config) error {
	if _, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapScheduleConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDispatchConfig(cfg); err != nil {
		return err
	}
	if _, err := mapBroadcastConfig(cfg); err != nil {
		return err
	}
	if _, err := mapRemindIntervals(cfg); err != nil {
		return err
	}
	if cfg.Briefing.Enabled {
		if _, err := schedule.ParseClock(firstNonEmpty(cfg.Briefing.DayStart, defaultDayStart)); err != nil {
			return fmt.Errorf("briefing.day_start: %w", err)
		}
		if _, err := schedule.ParseClock(firstNonEmpty(cfg.Briefing.DayEnd, defaultDayEnd)); err != nil {
			return fmt.Errorf("briefing.day_end: %w", err)
		}
	}
	return nil
}

func firstNonEmpty(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
