// Package telegram adapts the Telegram Bot API (via telebot) to the
// transport-neutral kit types. It is the single outbound channel and the
// place where new broadcast destinations are discovered from incoming chat
// traffic.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"minderbot/internal/kit"
	logx "minderbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// ChatObserver is notified whenever a message arrives from a chat, so the
// destination registry can grow as new chats are discovered.
type ChatObserver func(kit.ChatTarget)

type Adapter struct {
	cfg Config
	log logx.Logger

	bot *tele.Bot

	mu      sync.Mutex
	running bool
	onChat  ChatObserver
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	a.registerHandlers()
	return a, nil
}

// SetChatObserver installs the discovery callback. Call before Start.
func (a *Adapter) SetChatObserver(fn ChatObserver) {
	a.mu.Lock()
	a.onChat = fn
	a.mu.Unlock()
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Chat == nil {
			return nil
		}
		a.observe(kit.ChatTarget{ChatID: m.Chat.ID, ThreadID: m.ThreadID})
		return nil
	})
}

func (a *Adapter) observe(t kit.ChatTarget) {
	a.mu.Lock()
	fn := a.onChat
	a.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// Start launches the long-poll loop. It returns immediately; the loop is
// stopped by Stop or when ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		if a.bot != nil {
			a.bot.Stop()
		}
	}()
	go func() {
		a.log.Info("polling started")
		// Start blocks until Stop() is called.
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
}

// Stop halts the long-poll loop. Best-effort: Telegram's long poll can take
// a moment to unwind, so the actual stop runs async.
func (a *Adapter) Stop(ctx context.Context) {
	a.mu.Lock()
	wasRunning := a.running
	a.running = false
	a.mu.Unlock()
	if !wasRunning {
		return
	}
	// telebot Stop is expected to be fast; run it async just in case.
	go a.bot.Stop()
}

const telegramTextLimit = 4000

// SendText implements kit.Sender. Long messages are split on newline
// boundaries into Telegram-sized chunks.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := splitText(text, telegramTextLimit)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil {
			select {
			case <-ctx.Done():
				if first.ChatID != 0 {
					return first, ctx.Err()
				}
				return kit.MessageRef{}, ctx.Err()
			default:
			}
		}

		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		msg, err := a.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			if first.ChatID != 0 {
				return first, err
			}
			return kit.MessageRef{}, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}

	return first, nil
}

// splitText splits long messages into chunks that are safe to send,
// preferring newline boundaries near the end of each window.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		if end < len(rs) {
			cut := -1
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' {
					// Avoid extremely small chunks.
					if i-start >= limit/3 {
						cut = i + 1
						break
					}
				}
			}
			if cut != -1 {
				end = cut
			}
		}

		// A window of nothing but newlines trims to "", and the API rejects
		// empty messages.
		chunk := strings.TrimRight(string(rs[start:end]), "\n")
		if chunk != "" {
			out = append(out, chunk)
		}

		start = end
		// Skip leading newlines to avoid empty chunks.
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
