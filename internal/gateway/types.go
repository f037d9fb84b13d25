// Package gateway wraps every outbound generation call with prompt
// normalization, response caching, pre-flight budget enforcement, and
// durable cost accounting.
//
// DESIGN: Per-call state machine:
//
//	NORMALIZE -> CACHE_LOOKUP -> hit:  return, zero cost, no ledger write
//	                          -> miss: BUDGET_CHECK -> blocked: BudgetExceededError
//	                                                -> ok: INVOKE_PROVIDER
//	                                                       -> failure: ProviderError, no ledger write
//	                                                       -> success: meter, ledger write, cache write
//
// Exactly one cost event is appended per metered miss-then-success call;
// none on any other path.
package gateway

import (
	"context"
	"fmt"
)

// Usage carries authoritative token counts from a provider response.
// Zero-valued Usage means the provider reported nothing and counts must be
// estimated.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Reported returns true when the provider supplied real token counts.
func (u Usage) Reported() bool {
	return u.InputTokens > 0 || u.OutputTokens > 0
}

// Invoker is the narrow capability the gateway requires of a provider
// client: one blocking generation call. Timeout and retry policy belong to
// the implementation; the gateway only propagates ctx.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (text string, usage Usage, err error)
}

// ProviderError wraps a failure from the provider collaborator. The gateway
// passes it through without retrying.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// BudgetExceededError is the pre-flight refusal when session or daily spend
// has reached its budget. Recoverable: the caller can retry later, raise
// the budget, or accept partial results.
type BudgetExceededError struct {
	SessionCost   float64
	SessionBudget float64
	DailyCost     float64
	DailyBudget   float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: session $%.4f of $%.2f, daily $%.4f of $%.2f",
		e.SessionCost, e.SessionBudget, e.DailyCost, e.DailyBudget)
}

// Result is the metered outcome of a gateway call.
type Result struct {
	Text         string
	CostUSD      float64
	InputTokens  int
	OutputTokens int
	CacheHit     bool
	Estimated    bool // token counts came from the estimation heuristic
	Unrecorded   bool // ledger append failed; aggregates may undercount
}
