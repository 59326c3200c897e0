package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"minderbot/internal/services/briefing"
	"minderbot/internal/storage"
	logx "minderbot/pkg/logx"
)

// fakeStore serves canned candidates; the destination methods are unused by
// the briefing paths.
type fakeStore struct {
	candidates []storage.Candidate
	betweenErr error
}

func (f *fakeStore) AddCandidate(ctx context.Context, c storage.Candidate) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeStore) DueBefore(ctx context.Context, d storage.Domain, cutoff time.Time) ([]storage.Candidate, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) MarkNotified(ctx context.Context, id int64) error {
	return errors.New("not implemented")
}

func (f *fakeStore) CandidatesBetween(ctx context.Context, d storage.Domain, from, to time.Time) ([]storage.Candidate, error) {
	if f.betweenErr != nil {
		return nil, f.betweenErr
	}
	var out []storage.Candidate
	for _, c := range f.candidates {
		if c.Domain == d && !c.DueAt.Before(from) && !c.DueAt.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) PendingCandidates(ctx context.Context, d storage.Domain) ([]storage.Candidate, error) {
	var out []storage.Candidate
	for _, c := range f.candidates {
		if c.Domain == d && !c.Notified {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertDestination(ctx context.Context, chatID int64, threadID int) error {
	return nil
}

func (f *fakeStore) ListDestinations(ctx context.Context) ([]storage.Destination, error) {
	return nil, nil
}

func (f *fakeStore) RecordSendResult(ctx context.Context, chatID int64, ok bool, evictAfter int) (bool, error) {
	return false, nil
}

func (f *fakeStore) Close() error { return nil }

func testNow() time.Time {
	return time.Date(2026, 3, 10, 7, 30, 0, 0, time.Local)
}

func TestDayStartVariantSections(t *testing.T) {
	t.Parallel()
	now := testNow()
	st := &fakeStore{candidates: []storage.Candidate{
		{Domain: storage.DomainCalendar, Title: "standup", DueAt: now.Add(2 * time.Hour)},
		{Domain: storage.DomainTask, Title: "pay rent", DueAt: now.Add(5 * time.Hour)},
		{Domain: storage.DomainTask, Title: "file taxes", DueAt: now.Add(-72 * time.Hour)},
		{Domain: storage.DomainPrice, Title: "BTC below 40k", DueAt: now},
		{Domain: storage.DomainDocument, Title: "passport", DueAt: now.Add(10 * 24 * time.Hour)},
	}}

	v := dayStartVariant(st, testNow)
	if len(v.Sections) != 5 {
		t.Fatalf("day-start has %d sections, want 5", len(v.Sections))
	}

	comp := briefing.NewComposer(logx.Nop())
	out := comp.Compose(context.Background(), v)

	for _, want := range []string{"standup", "pay rent", "file taxes", "BTC below 40k", "passport"} {
		if !strings.Contains(out, want) {
			t.Fatalf("briefing missing %q:\n%s", want, out)
		}
	}
	// The overdue task belongs to the overdue section, not today's list.
	todaysIdx := strings.Index(out, "Tasks due today")
	overdueIdx := strings.Index(out, "Overdue")
	taxesIdx := strings.Index(out, "file taxes")
	if !(taxesIdx > overdueIdx && overdueIdx > todaysIdx) {
		t.Fatalf("overdue task rendered in the wrong section:\n%s", out)
	}
}

func TestDayStartVariantSectionFailureIsolated(t *testing.T) {
	t.Parallel()
	now := testNow()
	st := &fakeStore{
		candidates: []storage.Candidate{
			{Domain: storage.DomainPrice, Title: "BTC below 40k", DueAt: now},
		},
		betweenErr: errors.New("db locked"),
	}

	comp := briefing.NewComposer(logx.Nop())
	out := comp.Compose(context.Background(), dayStartVariant(st, testNow))

	// Calendar/tasks/documents sections fail (CandidatesBetween), the
	// pending-backed sections still render.
	if strings.Contains(out, "Today's schedule") {
		t.Fatalf("failed section rendered:\n%s", out)
	}
	if !strings.Contains(out, "BTC below 40k") {
		t.Fatalf("healthy section missing:\n%s", out)
	}
}

func TestDayEndVariantSections(t *testing.T) {
	t.Parallel()
	now := testNow()
	tomorrow := startOfDay(now).Add(24*time.Hour + 10*time.Hour)
	st := &fakeStore{candidates: []storage.Candidate{
		{Domain: storage.DomainCalendar, Title: "dentist", DueAt: tomorrow},
		{Domain: storage.DomainCalendar, Title: "today only", DueAt: now.Add(time.Hour)},
		{Domain: storage.DomainTask, Title: "open task", DueAt: now.Add(48 * time.Hour)},
	}}

	v := dayEndVariant(st, testNow)
	if len(v.Sections) != 3 {
		t.Fatalf("day-end has %d sections, want 3", len(v.Sections))
	}

	comp := briefing.NewComposer(logx.Nop())
	out := comp.Compose(context.Background(), v)

	if !strings.Contains(out, "dentist") || !strings.Contains(out, "open task") {
		t.Fatalf("expected items missing:\n%s", out)
	}
	if strings.Contains(out, "today only") {
		t.Fatalf("tomorrow's schedule leaked today's event:\n%s", out)
	}
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()
	got := startOfDay(time.Date(2026, 3, 10, 23, 59, 59, 0, time.Local))
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("startOfDay = %v, want %v", got, want)
	}
}

func TestRenderLines(t *testing.T) {
	t.Parallel()
	if got := renderLines(nil, lineBare); got != "" {
		t.Fatalf("renderLines(nil) = %q, want empty", got)
	}
	items := []storage.Candidate{
		{Title: "first", DueAt: testNow()},
		{Title: "second", DueAt: testNow()},
	}
	got := renderLines(items, lineBare)
	if got != "• first\n• second" {
		t.Fatalf("renderLines = %q", got)
	}
}
