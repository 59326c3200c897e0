// Package remind implements the per-domain reminder pollers.
//
// One Poller per domain (calendar, tasks, price alerts, travel documents).
// A tick fetches due-and-unnotified candidates from the domain source,
// pushes one notification per candidate through the dispatcher, and marks
// each candidate notified after the attempt was made — success or not.
// A failed send is therefore dropped, never re-delivered on a later tick.
//
// If the fetch itself fails, the tick is skipped with no state written; the
// same candidates stay eligible for the next tick.
package remind

import (
	"context"
	"fmt"
	"time"

	"minderbot/internal/storage"
	logx "minderbot/pkg/logx"
)

// Notifier is the outbound channel contract the pollers need.
// Send swallows transport failures; see the dispatch package.
type Notifier interface {
	Send(ctx context.Context, text string)
}

// Source is the domain collaborator contract.
//
// Due must be a pure read (idempotent, side-effect free), returning
// candidates oldest due-time first. MarkNotified must be idempotent.
type Source interface {
	Name() string
	Due(ctx context.Context, now time.Time) ([]storage.Candidate, error)
	MarkNotified(ctx context.Context, id int64) error
}

// Poller drives one domain. Ticks are scheduled externally; the poller
// itself is stateless between ticks — all delivery state lives in the
// source's notified flag.
type Poller struct {
	src Source
	out Notifier
	log logx.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewPoller(src Source, out Notifier, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		src: src,
		out: out,
		log: log.With(logx.String("domain", src.Name())),
		now: time.Now,
	}
}

// Tick runs one poll cycle. The returned error only ever reports a fetch
// failure; per-candidate work never fails the tick.
func (p *Poller) Tick(ctx context.Context) error {
	now := p.now()

	cands, err := p.src.Due(ctx, now)
	if err != nil {
		// Skip the whole tick; nothing was marked, so the same candidates
		// stay eligible next time.
		return fmt.Errorf("fetch due candidates: %w", err)
	}
	if len(cands) == 0 {
		return nil
	}

	for _, c := range cands {
		p.out.Send(ctx, FormatCandidate(c, now))
		// Mark after the attempt regardless of the send outcome.
		if err := p.src.MarkNotified(ctx, c.ID); err != nil {
			p.log.Warn("mark notified failed", logx.Int64("id", c.ID), logx.Err(err))
		}
	}

	p.log.Info("reminders delivered", logx.Int("count", len(cands)))
	return nil
}
