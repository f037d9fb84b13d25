// Package ledger persists API cost events and computes spend aggregates.
//
// DESIGN: The ledger is append-only: events are inserted exactly once and
// never updated or coalesced. Aggregates (session cost, daily cost) are
// computed with SQL SUMs at read time, so a read concurrent with an
// in-flight append is a point-in-time snapshot rather than a transactional
// view. That is acceptable: budget enforcement treats aggregates as
// advisory beyond the pre-flight check.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// timeFormat is a fixed-width RFC3339 variant so stored timestamps compare
// lexicographically in SQL range queries.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cost_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	agent_name TEXT NOT NULL,
	session_id TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL,
	task_description TEXT,
	estimated INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cost_events_timestamp ON cost_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_cost_events_session ON cost_events(session_id);
CREATE INDEX IF NOT EXISTS idx_cost_events_agent ON cost_events(agent_name);
`

// Event is a single immutable cost record.
type Event struct {
	Timestamp    time.Time
	AgentName    string
	SessionID    string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	TaskLabel    string
	Estimated    bool // token counts came from a heuristic, not the provider
}

// Summary is the derived budget state for display and budget checks.
type Summary struct {
	SessionID        string
	SessionCost      float64
	SessionBudget    float64
	SessionRemaining float64 // clamped at 0 for display
	DailyCost        float64
	DailyBudget      float64
	DailyRemaining   float64 // clamped at 0 for display
}

// Store is a SQLite-backed append-only cost event store.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open opens or creates the ledger database at the given path. Day-boundary
// aggregation uses loc; pass nil for the local time zone.
func Open(dbPath string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	return &Store{db: db, loc: loc}, nil
}

// Close closes the ledger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one event. Appends are independent inserts; concurrent
// writers only contend on the database's own write lock.
func (s *Store) Record(ctx context.Context, e Event) error {
	estimated := 0
	if e.Estimated {
		estimated = 1
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO cost_events
		(timestamp, agent_name, session_id, model, input_tokens, output_tokens, cost_usd, task_description, estimated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(timeFormat), e.AgentName, e.SessionID, e.Model,
		e.InputTokens, e.OutputTokens, e.CostUSD, e.TaskLabel, estimated,
	)
	if err != nil {
		return fmt.Errorf("recording cost event: %w", err)
	}
	return nil
}

// SessionCost sums the cost of all events recorded under a session id.
func (s *Store) SessionCost(ctx context.Context, sessionID string) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT SUM(cost_usd) FROM cost_events WHERE session_id = ?", sessionID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing session cost: %w", err)
	}
	return total.Float64, nil
}

// DailyCost sums the cost of all events whose timestamp falls within the
// calendar day containing t, in the store's configured time zone. The day
// interval is half-open: [midnight, next midnight).
func (s *Store) DailyCost(ctx context.Context, t time.Time) (float64, error) {
	local := t.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT SUM(cost_usd) FROM cost_events WHERE timestamp >= ? AND timestamp < ?",
		start.UTC().Format(timeFormat), end.UTC().Format(timeFormat),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing daily cost: %w", err)
	}
	return total.Float64, nil
}

// AgentCosts returns the cost breakdown by agent over the trailing window,
// most expensive first.
func (s *Store) AgentCosts(ctx context.Context, window time.Duration) (map[string]float64, error) {
	cutoff := time.Now().Add(-window)

	rows, err := s.db.QueryContext(ctx, `SELECT agent_name, SUM(cost_usd)
		FROM cost_events
		WHERE timestamp >= ?
		GROUP BY agent_name
		ORDER BY SUM(cost_usd) DESC`,
		cutoff.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("querying agent costs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]float64)
	for rows.Next() {
		var agent string
		var cost float64
		if err := rows.Scan(&agent, &cost); err != nil {
			return nil, err
		}
		result[agent] = cost
	}
	return result, rows.Err()
}

// EventCount returns the number of events recorded for a session.
func (s *Store) EventCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cost_events WHERE session_id = ?", sessionID,
	).Scan(&count)
	return count, err
}

// Summary computes the budget state for a session against the given budgets.
// Remaining values are clamped at zero for display; budget logic compares
// raw cost against budget instead.
func (s *Store) Summary(ctx context.Context, sessionID string, sessionBudget, dailyBudget float64) (Summary, error) {
	sessionCost, err := s.SessionCost(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	dailyCost, err := s.DailyCost(ctx, time.Now())
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		SessionID:        sessionID,
		SessionCost:      sessionCost,
		SessionBudget:    sessionBudget,
		SessionRemaining: math.Max(0, sessionBudget-sessionCost),
		DailyCost:        dailyCost,
		DailyBudget:      dailyBudget,
		DailyRemaining:   math.Max(0, dailyBudget-dailyCost),
	}, nil
}
