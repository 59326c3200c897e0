package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseFileJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
  "telegram": {"token": "123:abc", "poll_timeout": "15s"},
  "logging": {"level": "debug", "console": true},
  "storage": {"path": "/tmp/bot.db"},
  "scheduler": {"enabled": true, "startup_spread": true},
  "reminders": {"enabled": true, "calendar_every": "2m"},
  "dispatch": {"chat_id": -100123, "retry_max": 2, "retry_base": "250ms"},
  "briefing": {"enabled": true, "day_start": "08:00"},
  "broadcast": {"enabled": true, "base_interval": "4h", "jitter_max": "30m", "pool": ["hi"]}
}`)
	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if !cfg.Scheduler.Enabled || !cfg.Scheduler.StartupSpread {
		t.Fatalf("scheduler flags wrong: %+v", cfg.Scheduler)
	}
	if cfg.Dispatch.ChatID != -100123 || cfg.Dispatch.RetryMax != 2 {
		t.Fatalf("dispatch wrong: %+v", cfg.Dispatch)
	}
	if len(cfg.Broadcast.Pool) != 1 || cfg.Broadcast.Pool[0] != "hi" {
		t.Fatalf("pool wrong: %v", cfg.Broadcast.Pool)
	}
}

func TestParseFileYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
logging:
  level: info
reminders:
  enabled: true
  prices_every: 5m
broadcast:
  enabled: true
  pool:
    - "first"
    - "second"
`)
	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if cfg.Reminders.PricesEvery != "5m" {
		t.Fatalf("prices_every = %q", cfg.Reminders.PricesEvery)
	}
	if len(cfg.Broadcast.Pool) != 2 {
		t.Fatalf("pool = %v", cfg.Broadcast.Pool)
	}
}

func TestParseFileRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegramm": {"token": "oops"}}`)
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseFileRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging": {"level": "info"}}{"again": true}`)
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "  ", want: 0},
		{raw: "500ms", want: 500 * time.Millisecond},
		{raw: "2h30m", want: 2*time.Hour + 30*time.Minute},
		{raw: "-1s", wantErr: true},
		{raw: "5 minutes", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDurationField("test.field", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	d, err := ParseDurationOrDefault("test.field", "", time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("ParseDurationOrDefault = (%v, %v), want (1m, nil)", d, err)
	}
	d, err = ParseDurationOrDefault("test.field", "10s", time.Minute)
	if err != nil || d != 10*time.Second {
		t.Fatalf("ParseDurationOrDefault = (%v, %v), want (10s, nil)", d, err)
	}
}

func TestManagerReloadPublishes(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging": {"level": "info"}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	if err := os.WriteFile(path, []byte(`{"logging": {"level": "debug"}}`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()

	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(time.Second):
		t.Fatal("no config published after reload")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatal("Get() not updated after reload")
	}
}

func TestManagerReloadSkipsUnchanged(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging": {"level": "info"}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	m.reload()
	select {
	case <-sub:
		t.Fatal("unchanged reload was published")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManagerValidatorRejectsBadReload(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging": {"level": "info"}}`)
	m := NewManager(path)
	m.SetValidator(func(cfg *Config) error {
		if cfg.Logging.Level == "banana" {
			return os.ErrInvalid
		}
		return nil
	})
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	if err := os.WriteFile(path, []byte(`{"logging": {"level": "banana"}}`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()

	select {
	case <-sub:
		t.Fatal("rejected config was published")
	case <-time.After(100 * time.Millisecond):
	}
	if m.Get().Logging.Level != "info" {
		t.Fatal("previous config not kept after rejected reload")
	}
}

func TestWatchCancelDropsPendingReload(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging": {"level": "info"}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Arm the watcher, trigger the debounce, then cancel inside the debounce
	// window. The pending reload must not fire after Watch returns.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"logging": {"level": "debug"}}`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	select {
	case <-sub:
		t.Fatal("reload published after watch was cancelled")
	case <-time.After(400 * time.Millisecond):
	}
	if m.Get().Logging.Level != "info" {
		t.Fatalf("config committed after cancel: %q", m.Get().Logging.Level)
	}
}
