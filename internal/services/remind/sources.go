package remind

import (
	"context"
	"time"

	"minderbot/internal/storage"
)

// Per-domain look-ahead windows. A candidate is eligible when
// due_at <= now + window (inclusive at exactly the boundary).
const (
	CalendarWindow = 15 * time.Minute
	DocumentWindow = 30 * 24 * time.Hour
)

// storeSource adapts the storage layer to the Source contract, applying the
// domain's look-ahead cutoff.
type storeSource struct {
	name   string
	domain storage.Domain
	st     storage.Store
	cutoff func(now time.Time) time.Time
}

func (s *storeSource) Name() string { return s.name }

func (s *storeSource) Due(ctx context.Context, now time.Time) ([]storage.Candidate, error) {
	return s.st.DueBefore(ctx, s.domain, s.cutoff(now))
}

func (s *storeSource) MarkNotified(ctx context.Context, id int64) error {
	return s.st.MarkNotified(ctx, id)
}

// NewCalendarSource notifies about events starting within the next 15 minutes.
func NewCalendarSource(st storage.Store) Source {
	return &storeSource{
		name:   "calendar",
		domain: storage.DomainCalendar,
		st:     st,
		cutoff: func(now time.Time) time.Time { return now.Add(CalendarWindow) },
	}
}

// NewTaskSource notifies about tasks due today or earlier.
func NewTaskSource(st storage.Store) Source {
	return &storeSource{
		name:   "tasks",
		domain: storage.DomainTask,
		st:     st,
		cutoff: endOfDay,
	}
}

// NewPriceSource notifies about price alerts that have become due.
func NewPriceSource(st storage.Store) Source {
	return &storeSource{
		name:   "prices",
		domain: storage.DomainPrice,
		st:     st,
		cutoff: func(now time.Time) time.Time { return now },
	}
}

// NewDocumentSource notifies about travel documents expiring within 30 days.
func NewDocumentSource(st storage.Store) Source {
	return &storeSource{
		name:   "documents",
		domain: storage.DomainDocument,
		st:     st,
		cutoff: func(now time.Time) time.Time { return now.Add(DocumentWindow) },
	}
}

func endOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return midnight.Add(24*time.Hour - time.Nanosecond)
}
