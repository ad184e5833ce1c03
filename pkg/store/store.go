// Package store persists channel cursors and analysis history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS channel_cursors (
	channel_id   TEXT PRIMARY KEY,
	last_seen_ts TEXT NOT NULL,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	message_ts TEXT NOT NULL,
	job_name   TEXT NOT NULL,
	job_url    TEXT NOT NULL,
	category   TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_channel_created
	ON analyses(channel_id, created_at DESC);
`

// Analysis is one stored pipeline result.
type Analysis struct {
	ID        string
	ChannelID string
	MessageTS string
	JobName   string
	JobURL    string
	Category  string
	Summary   string
	CreatedAt time.Time
}

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger := logx.NewLogger("store")
	logger.Info("database initialized: %s", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastSeen returns the last processed message timestamp for a channel, or
// empty when the channel has never been seen.
func (s *Store) LastSeen(ctx context.Context, channel string) (string, error) {
	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seen_ts FROM channel_cursors WHERE channel_id = ?`, channel).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading cursor for %s: %w", channel, err)
	}
	return ts, nil
}

// SetLastSeen upserts the channel cursor.
func (s *Store) SetLastSeen(ctx context.Context, channel, ts string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_cursors (channel_id, last_seen_ts, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(channel_id) DO UPDATE SET
			last_seen_ts = excluded.last_seen_ts,
			updated_at = CURRENT_TIMESTAMP`,
		channel, ts)
	if err != nil {
		return fmt.Errorf("saving cursor for %s: %w", channel, err)
	}
	return nil
}

// SaveAnalysis stores one pipeline result and returns its generated ID.
func (s *Store) SaveAnalysis(ctx context.Context, a Analysis) (string, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, channel_id, message_ts, job_name, job_url, category, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.ChannelID, a.MessageTS, a.JobName, a.JobURL, a.Category, a.Summary,
		createdAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("saving analysis for job %s: %w", a.JobName, err)
	}
	return id, nil
}

// RecentAnalyses returns up to limit results for a channel, newest first.
func (s *Store) RecentAnalyses(ctx context.Context, channel string, limit int) ([]Analysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, message_ts, job_name, job_url, category, summary, created_at
		FROM analyses
		WHERE channel_id = ?
		ORDER BY created_at DESC, message_ts DESC
		LIMIT ?`,
		channel, limit)
	if err != nil {
		return nil, fmt.Errorf("listing analyses for %s: %w", channel, err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		var createdAt string
		if err := rows.Scan(&a.ID, &a.ChannelID, &a.MessageTS, &a.JobName,
			&a.JobURL, &a.Category, &a.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning analysis row: %w", err)
		}
		if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing analysis timestamp %q: %w", createdAt, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CategoryCounts aggregates stored analyses by failure category since a
// cutoff time.
func (s *Store) CategoryCounts(ctx context.Context, channel string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM analyses
		WHERE channel_id = ? AND created_at >= ?
		GROUP BY category`,
		channel, since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("counting analyses for %s: %w", channel, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}
