package config

// Config is the full bot configuration.
//
// All duration-typed fields are Go duration strings (e.g. "500ms", "15m").
// Files may be JSON or YAML; both are decoded strictly so typos in keys are
// caught at load time rather than silently ignored.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Reminders RemindersConfig `json:"reminders"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Briefing  BriefingConfig  `json:"briefing"`
	Broadcast BroadcastConfig `json:"broadcast"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer backing the reminder domains
// and the broadcast destination registry.
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // default "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SchedulerConfig struct {
	Enabled       bool `json:"enabled"`
	HistorySize   int  `json:"history_size,omitempty"`
	StartupSpread bool `json:"startup_spread,omitempty"`
}

// RemindersConfig sets the poll cadence per reminder domain.
//
// Defaults (when omitted): calendar "1m", tasks "30m", prices "5m",
// documents "24h".
type RemindersConfig struct {
	Enabled        bool   `json:"enabled"`
	CalendarEvery  string `json:"calendar_every,omitempty"`
	TasksEvery     string `json:"tasks_every,omitempty"`
	PricesEvery    string `json:"prices_every,omitempty"`
	DocumentsEvery string `json:"documents_every,omitempty"`
}

// DispatchConfig controls the single outbound notification channel.
//
// RetryMax 0 means fire-and-forget (the default): a failed send is logged
// and dropped, never re-attempted.
type DispatchConfig struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`

	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

// BriefingConfig schedules the two daily report compositions (local time,
// HH:MM).
type BriefingConfig struct {
	Enabled  bool   `json:"enabled"`
	DayStart string `json:"day_start,omitempty"` // default "07:30"
	DayEnd   string `json:"day_end,omitempty"`   // default "21:30"
}

// BroadcastConfig controls the jittered fan-out loop.
type BroadcastConfig struct {
	Enabled bool `json:"enabled"`

	StartupDelay string `json:"startup_delay,omitempty"`
	BaseInterval string `json:"base_interval,omitempty"`
	JitterMax    string `json:"jitter_max,omitempty"`

	RatePerSec int `json:"rate_per_sec,omitempty"`
	// EvictAfter drops a destination after this many consecutive failed
	// sends. 0 disables eviction.
	EvictAfter int `json:"evict_after,omitempty"`

	// Pool is the fixed content pool one item is picked from per cycle.
	Pool []string `json:"pool,omitempty"`
}
