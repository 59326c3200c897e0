package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "minderbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AddCandidate(ctx context.Context, c Candidate) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO candidates(domain, title, body, due_at, notified) VALUES(?,?,?,?,?)`,
		string(c.Domain), c.Title, nullStr(c.Body), c.DueAt.UnixMilli(), boolInt(c.Notified),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DueBefore returns unnotified candidates with due_at <= cutoff, oldest first.
// The cutoff is inclusive.
func (s *sqliteStore) DueBefore(ctx context.Context, domain Domain, cutoff time.Time) ([]Candidate, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, title, COALESCE(body, ''), due_at, notified
		   FROM candidates
		  WHERE domain = ? AND notified = 0 AND due_at <= ?
		  ORDER BY due_at ASC, id ASC`,
		string(domain), cutoff.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// MarkNotified flips the one-way notified flag. Calling it twice on the same
// id is harmless; the flag never reverts.
func (s *sqliteStore) MarkNotified(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET notified = 1 WHERE id = ? AND notified = 0`, id)
	return err
}

// CandidatesBetween returns candidates due in [from, to], notified or not.
// Used by briefing snapshots, which must not depend on delivery state.
func (s *sqliteStore) CandidatesBetween(ctx context.Context, domain Domain, from, to time.Time) ([]Candidate, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, title, COALESCE(body, ''), due_at, notified
		   FROM candidates
		  WHERE domain = ? AND due_at >= ? AND due_at <= ?
		  ORDER BY due_at ASC, id ASC`,
		string(domain), from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// PendingCandidates returns all unnotified candidates for a domain, oldest first.
func (s *sqliteStore) PendingCandidates(ctx context.Context, domain Domain) ([]Candidate, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, title, COALESCE(body, ''), due_at, notified
		   FROM candidates
		  WHERE domain = ? AND notified = 0
		  ORDER BY due_at ASC, id ASC`,
		string(domain),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func (s *sqliteStore) UpsertDestination(ctx context.Context, chatID int64, threadID int) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO destinations(chat_id, thread_id, added_at, fail_streak)
		 VALUES(?,?,?,0)
		 ON CONFLICT(chat_id) DO UPDATE SET thread_id = excluded.thread_id`,
		chatID, threadID, time.Now().UnixMilli(),
	)
	return err
}

func (s *sqliteStore) ListDestinations(ctx context.Context) ([]Destination, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, thread_id, added_at, fail_streak
		   FROM destinations ORDER BY added_at ASC, chat_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Destination
	for rows.Next() {
		var d Destination
		var addedMS int64
		if err := rows.Scan(&d.ChatID, &d.ThreadID, &addedMS, &d.FailStreak); err != nil {
			return nil, err
		}
		d.AddedAt = time.UnixMilli(addedMS)
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordSendResult updates the destination's consecutive-failure streak.
// A success resets the streak; once the streak reaches evictAfter the
// destination row is removed and evicted=true is returned.
// evictAfter <= 0 disables eviction.
func (s *sqliteStore) RecordSendResult(ctx context.Context, chatID int64, ok bool, evictAfter int) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	if ok {
		_, err := s.db.ExecContext(ctx,
			`UPDATE destinations SET fail_streak = 0 WHERE chat_id = ?`, chatID)
		return false, err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE destinations SET fail_streak = fail_streak + 1 WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, err
	}
	if evictAfter <= 0 {
		return false, nil
	}

	var streak int
	err = s.db.QueryRowContext(ctx,
		`SELECT fail_streak FROM destinations WHERE chat_id = ?`, chatID).Scan(&streak)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if streak < evictAfter {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM destinations WHERE chat_id = ?`, chatID)
	return err == nil, err
}

func scanCandidates(rows *sql.Rows) ([]Candidate, error) {
	var out []Candidate
	for rows.Next() {
		var c Candidate
		var dom string
		var dueMS int64
		var notified int
		if err := rows.Scan(&c.ID, &dom, &c.Title, &c.Body, &dueMS, &notified); err != nil {
			return nil, err
		}
		c.Domain = Domain(dom)
		c.DueAt = time.UnixMilli(dueMS)
		c.Notified = notified != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
