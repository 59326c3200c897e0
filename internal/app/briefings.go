package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"minderbot/internal/services/briefing"
	"minderbot/internal/storage"
)

const (
	defaultDayStart = "07:30"
	defaultDayEnd   = "21:30"

	// expiringDocsHorizon bounds the "expiring soon" section; it matches the
	// document reminder look-ahead so the briefing never surprises with items
	// the reminder path would not.
	expiringDocsHorizon = 30 * 24 * time.Hour
)

// dayStartVariant is the morning report: today's agenda plus everything that
// slipped. Section order is fixed; a failing section is omitted by the
// composer without disturbing the rest.
func dayStartVariant(st storage.Store, now func() time.Time) briefing.Variant {
	return briefing.Variant{
		Name:   "day-start",
		Header: "🌅 Morning briefing",
		Sections: []briefing.Section{
			{Title: "📅 Today's schedule", Fetch: func(ctx context.Context) (string, error) {
				from := startOfDay(now())
				return listBetween(ctx, st, storage.DomainCalendar, from, from.Add(24*time.Hour), lineWithClock)
			}},
			{Title: "📝 Tasks due today", Fetch: func(ctx context.Context) (string, error) {
				from := startOfDay(now())
				return listBetween(ctx, st, storage.DomainTask, from, from.Add(24*time.Hour), lineWithClock)
			}},
			{Title: "⏰ Overdue", Fetch: func(ctx context.Context) (string, error) {
				return listOverdue(ctx, st, startOfDay(now()))
			}},
			{Title: "📈 Market watch", Fetch: func(ctx context.Context) (string, error) {
				return listPending(ctx, st, storage.DomainPrice, lineBare)
			}},
			{Title: "🛂 Documents expiring soon", Fetch: func(ctx context.Context) (string, error) {
				n := now()
				return listBetween(ctx, st, storage.DomainDocument, n, n.Add(expiringDocsHorizon), lineWithDate)
			}},
		},
	}
}

// dayEndVariant is the evening report: tomorrow's agenda and what is still
// open.
func dayEndVariant(st storage.Store, now func() time.Time) briefing.Variant {
	return briefing.Variant{
		Name:   "day-end",
		Header: "🌙 Evening briefing",
		Sections: []briefing.Section{
			{Title: "📅 Tomorrow's schedule", Fetch: func(ctx context.Context) (string, error) {
				from := startOfDay(now()).Add(24 * time.Hour)
				return listBetween(ctx, st, storage.DomainCalendar, from, from.Add(24*time.Hour), lineWithClock)
			}},
			{Title: "📝 Open tasks", Fetch: func(ctx context.Context) (string, error) {
				return listPending(ctx, st, storage.DomainTask, lineWithDate)
			}},
			{Title: "📈 Market watch", Fetch: func(ctx context.Context) (string, error) {
				return listPending(ctx, st, storage.DomainPrice, lineBare)
			}},
		},
	}
}

func listBetween(ctx context.Context, st storage.Store, d storage.Domain, from, to time.Time, render func(storage.Candidate) string) (string, error) {
	items, err := st.CandidatesBetween(ctx, d, from, to)
	if err != nil {
		return "", err
	}
	return renderLines(items, render), nil
}

func listPending(ctx context.Context, st storage.Store, d storage.Domain, render func(storage.Candidate) string) (string, error) {
	items, err := st.PendingCandidates(ctx, d)
	if err != nil {
		return "", err
	}
	return renderLines(items, render), nil
}

func listOverdue(ctx context.Context, st storage.Store, before time.Time) (string, error) {
	items, err := st.PendingCandidates(ctx, storage.DomainTask)
	if err != nil {
		return "", err
	}
	var kept []storage.Candidate
	for _, c := range items {
		if c.DueAt.Before(before) {
			kept = append(kept, c)
		}
	}
	return renderLines(kept, lineWithDate), nil
}

func renderLines(items []storage.Candidate, render func(storage.Candidate) string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for _, c := range items {
		lines = append(lines, render(c))
	}
	return strings.Join(lines, "\n")
}

func lineWithClock(c storage.Candidate) string {
	return fmt.Sprintf("• %s  %s", c.DueAt.Local().Format("15:04"), c.Title)
}

func lineWithDate(c storage.Candidate) string {
	return fmt.Sprintf("• %s — %s", c.Title, c.DueAt.Local().Format("Mon 02 Jan"))
}

func lineBare(c storage.Candidate) string {
	return "• " + c.Title
}

func startOfDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
