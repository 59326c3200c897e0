package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//
// If Driver is "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Domain names one reminder domain. Each domain has its own look-ahead
// window, owned by the reminder layer.
type Domain string

const (
	DomainCalendar Domain = "calendar"
	DomainTask     Domain = "task"
	DomainPrice    Domain = "price"
	DomainDocument Domain = "document"
)

// Candidate is one due-able item owned by its domain.
// Keep it compact and schema-stable.
type Candidate struct {
	ID       int64
	Domain   Domain
	Title    string
	Body     string
	DueAt    time.Time
	Notified bool
}

// Destination is one broadcast target.
// FailStreak counts consecutive delivery failures; any success resets it.
type Destination struct {
	ChatID     int64
	ThreadID   int
	AddedAt    time.Time
	FailStreak int
}
