package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEvent(sessionID string, cost float64, ts time.Time) Event {
	return Event{
		Timestamp:    ts,
		AgentName:    "Research Coordinator",
		SessionID:    sessionID,
		Model:        "anthropic/claude-sonnet-4-20250514",
		InputTokens:  1000,
		OutputTokens: 500,
		CostUSD:      cost,
		TaskLabel:    "test task",
	}
}

func TestStore_RecordAndSessionCost(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, testEvent("s1", 0.01, time.Now())))
	require.NoError(t, s.Record(ctx, testEvent("s1", 0.02, time.Now())))
	require.NoError(t, s.Record(ctx, testEvent("s2", 0.99, time.Now())))

	cost, err := s.SessionCost(ctx, "s1")
	require.NoError(t, err)
	assert.InDelta(t, 0.03, cost, 1e-9)

	cost, err = s.SessionCost(ctx, "s2")
	require.NoError(t, err)
	assert.InDelta(t, 0.99, cost, 1e-9)
}

func TestStore_SessionCostEmptySession(t *testing.T) {
	s := openTestStore(t)

	cost, err := s.SessionCost(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}

func TestStore_DailyCostBoundaries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	startOfDay := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	lastInstant := time.Date(2026, 8, 30, 23, 59, 59, 999_000_000, time.UTC)
	nextMidnight := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	dayBefore := time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC)

	require.NoError(t, s.Record(ctx, testEvent("s1", 0.10, startOfDay)))
	require.NoError(t, s.Record(ctx, testEvent("s1", 0.20, lastInstant)))
	require.NoError(t, s.Record(ctx, testEvent("s1", 0.40, nextMidnight))) // excluded: next day
	require.NoError(t, s.Record(ctx, testEvent("s1", 0.80, dayBefore)))    // excluded: previous day

	cost, err := s.DailyCost(ctx, day)
	require.NoError(t, err)
	assert.InDelta(t, 0.30, cost, 1e-9)
}

func TestStore_DailyCostUsesConfiguredTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), loc)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	// 03:00 UTC on Aug 31 is still Aug 30 in New York.
	lateEvening := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, testEvent("s1", 0.25, lateEvening)))

	nyAug30 := time.Date(2026, 8, 30, 12, 0, 0, 0, loc)
	cost, err := s.DailyCost(ctx, nyAug30)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, cost, 1e-9)

	nyAug31 := time.Date(2026, 8, 31, 12, 0, 0, 0, loc)
	cost, err = s.DailyCost(ctx, nyAug31)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}

func TestStore_ConcurrentAppendsSumExactly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Record(ctx, testEvent("concurrent", 0.01, time.Now())))
		}()
	}
	wg.Wait()

	cost, err := s.SessionCost(ctx, "concurrent")
	require.NoError(t, err)
	assert.InDelta(t, float64(n)*0.01, cost, 1e-6, "no event lost or double-counted")

	count, err := s.EventCount(ctx, "concurrent")
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

func TestStore_AgentCosts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	e1 := testEvent("s1", 0.05, now)
	e1.AgentName = "Research Coordinator"
	e2 := testEvent("s1", 0.03, now)
	e2.AgentName = "Literature Searcher"
	old := testEvent("s1", 0.50, now.Add(-48*time.Hour))
	old.AgentName = "Research Coordinator"

	require.NoError(t, s.Record(ctx, e1))
	require.NoError(t, s.Record(ctx, e2))
	require.NoError(t, s.Record(ctx, old))

	costs, err := s.AgentCosts(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, costs, 2)
	assert.InDelta(t, 0.05, costs["Research Coordinator"], 1e-9)
	assert.InDelta(t, 0.03, costs["Literature Searcher"], 1e-9)
}

func TestStore_Summary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, testEvent("s1", 1.25, time.Now())))

	sum, err := s.Summary(ctx, "s1", 5.0, 10.0)
	require.NoError(t, err)
	assert.Equal(t, "s1", sum.SessionID)
	assert.InDelta(t, 1.25, sum.SessionCost, 1e-9)
	assert.Equal(t, 5.0, sum.SessionBudget)
	assert.InDelta(t, 3.75, sum.SessionRemaining, 1e-9)
	assert.InDelta(t, 1.25, sum.DailyCost, 1e-9)
	assert.InDelta(t, 8.75, sum.DailyRemaining, 1e-9)
}

func TestStore_SummaryRemainingClampedAtZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, testEvent("s1", 7.0, time.Now())))

	sum, err := s.Summary(ctx, "s1", 5.0, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum.SessionRemaining, "remaining is clamped for display")
	assert.InDelta(t, 7.0, sum.SessionCost, 1e-9, "raw cost is not clamped")
}

func TestStore_EstimatedFlagRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testEvent("s1", 0.01, time.Now())
	e.Estimated = true
	require.NoError(t, s.Record(ctx, e))

	var estimated int
	err := s.db.QueryRow("SELECT estimated FROM cost_events WHERE session_id = 's1'").Scan(&estimated)
	require.NoError(t, err)
	assert.Equal(t, 1, estimated)
}

func TestStore_RecordAfterCloseFails(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	err := s.Record(context.Background(), testEvent("s1", 0.01, time.Now()))
	assert.Error(t, err)
}
