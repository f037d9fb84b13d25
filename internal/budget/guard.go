// Package budget classifies current spend against configured thresholds.
//
// DESIGN: Evaluate is a pure function from aggregates to a Status. The Guard
// wraps it with per-session alert state so each warning level is reported at
// most once per session: without that, every call above 70% would log the
// same warning again. Blocked status is not deduplicated; the gateway
// refuses blocked calls outright.
package budget

import (
	"sync"
)

// Status classifies spend against a budget, ordered by severity.
type Status int

const (
	StatusOK Status = iota
	StatusWarn70
	StatusWarn90
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn70:
		return "warn70"
	case StatusWarn90:
		return "warn90"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Thresholds holds the warning fractions applied to each budget.
type Thresholds struct {
	Warn70 float64 // e.g. 0.70
	Warn90 float64 // e.g. 0.90
}

// Evaluate returns the more severe of the session-relative and day-relative
// classifications. A budget of zero means that axis is unlimited and always
// evaluates to ok.
func Evaluate(sessionCost, sessionBudget, dailyCost, dailyBudget float64, th Thresholds) Status {
	session := classify(sessionCost, sessionBudget, th)
	daily := classify(dailyCost, dailyBudget, th)
	if daily > session {
		return daily
	}
	return session
}

func classify(cost, budget float64, th Thresholds) Status {
	if budget <= 0 {
		return StatusOK
	}
	usage := cost / budget
	switch {
	case usage >= 1.0:
		return StatusBlocked
	case usage >= th.Warn90:
		return StatusWarn90
	case usage >= th.Warn70:
		return StatusWarn70
	default:
		return StatusOK
	}
}

// Guard evaluates budget status and tracks which warning levels have already
// been reported per session.
type Guard struct {
	thresholds Thresholds

	mu       sync.Mutex
	reported map[string]Status // session id -> highest warning already reported
}

// NewGuard creates a guard with the given warning thresholds.
func NewGuard(th Thresholds) *Guard {
	return &Guard{
		thresholds: th,
		reported:   make(map[string]Status),
	}
}

// Check evaluates the aggregates for a session. firstReport is true when the
// status is a warning level not yet reported for this session; callers
// should only surface the warning in that case.
func (g *Guard) Check(sessionID string, sessionCost, sessionBudget, dailyCost, dailyBudget float64) (status Status, firstReport bool) {
	status = Evaluate(sessionCost, sessionBudget, dailyCost, dailyBudget, g.thresholds)

	if status == StatusWarn70 || status == StatusWarn90 {
		g.mu.Lock()
		if g.reported[sessionID] < status {
			g.reported[sessionID] = status
			firstReport = true
		}
		g.mu.Unlock()
	}

	return status, firstReport
}

// Reset clears the alert state for a session. Used when a session ends or
// its budget is raised.
func (g *Guard) Reset(sessionID string) {
	g.mu.Lock()
	delete(g.reported, sessionID)
	g.mu.Unlock()
}
