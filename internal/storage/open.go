package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "minderbot/pkg/logx"
)

// Store is the persistence API used by the reminder, briefing and broadcast
// services.
type Store interface {
	// Candidates.
	AddCandidate(ctx context.Context, c Candidate) (int64, error)
	DueBefore(ctx context.Context, domain Domain, cutoff time.Time) ([]Candidate, error)
	MarkNotified(ctx context.Context, id int64) error
	CandidatesBetween(ctx context.Context, domain Domain, from, to time.Time) ([]Candidate, error)
	PendingCandidates(ctx context.Context, domain Domain) ([]Candidate, error)

	// Broadcast destinations.
	UpsertDestination(ctx context.Context, chatID int64, threadID int) error
	ListDestinations(ctx context.Context) ([]Destination, error)
	RecordSendResult(ctx context.Context, chatID int64, ok bool, evictAfter int) (evicted bool, err error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
