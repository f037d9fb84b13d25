package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sokitar/agentic-survey-research-team/internal/budget"
	"github.com/sokitar/agentic-survey-research-team/internal/cache"
	"github.com/sokitar/agentic-survey-research-team/internal/ledger"
	"github.com/sokitar/agentic-survey-research-team/internal/normalize"
	"github.com/sokitar/agentic-survey-research-team/internal/pricing"
)

// Options configures a Gateway.
type Options struct {
	Model         string
	SessionBudget float64
	DailyBudget   float64

	// SerializeCalls holds a mutex across the check-then-spend window.
	// Without it, two concurrent calls can both pass the budget check
	// before either records spend, allowing transient overshoot. That race
	// is accepted by default; enable this for a hard per-session guarantee
	// at the cost of serializing provider calls.
	SerializeCalls bool
}

// Gateway orchestrates normalization, caching, budget enforcement, the
// provider call, and cost accounting. Safe for concurrent use.
type Gateway struct {
	opts    Options
	rates   *pricing.Table
	costs   *ledger.Store
	cache   *cache.Store
	guard   *budget.Guard
	invoker Invoker

	sessionID string
	now       func() time.Time

	callMu sync.Mutex // held per call only when SerializeCalls is set
}

// New wires a gateway around the given collaborators. A fresh session id is
// generated; sessions are process-lifetime and never merged across runs.
func New(opts Options, rates *pricing.Table, costs *ledger.Store, respCache *cache.Store, guard *budget.Guard, invoker Invoker) *Gateway {
	g := &Gateway{
		opts:      opts,
		rates:     rates,
		costs:     costs,
		cache:     respCache,
		guard:     guard,
		invoker:   invoker,
		sessionID: "session_" + uuid.NewString(),
		now:       time.Now,
	}
	log.Info().
		Str("session_id", g.sessionID).
		Str("model", opts.Model).
		Float64("session_budget_usd", opts.SessionBudget).
		Float64("daily_budget_usd", opts.DailyBudget).
		Msg("gateway: initialized")
	return g
}

// SessionID returns the identifier that scopes this process's session cost.
func (g *Gateway) SessionID() string {
	return g.sessionID
}

// Call runs one metered generation request through the full state machine.
// It returns BudgetExceededError on pre-flight refusal and ProviderError
// when the provider fails; cache and ledger failures degrade locally and
// never abort the call.
func (g *Gateway) Call(ctx context.Context, rawPrompt, agentName, taskLabel string) (Result, error) {
	if g.opts.SerializeCalls {
		g.callMu.Lock()
		defer g.callMu.Unlock()
	}

	prompt := normalize.Prompt(rawPrompt, agentName)
	key := cache.Key(g.opts.Model, agentName, prompt)

	if text, ok := g.cache.Get(key); ok {
		log.Debug().
			Str("agent", agentName).
			Str("key", key[:8]).
			Msg("gateway: cache hit")
		return Result{Text: text, CacheHit: true}, nil
	}

	if err := g.checkBudget(ctx); err != nil {
		return Result{}, err
	}

	text, usage, err := g.invoker.Invoke(ctx, prompt)
	if err != nil {
		// Pass through untouched: retry policy belongs to the caller or the
		// provider client, and cancellation must not be masked.
		return Result{}, err
	}

	res, err := g.meter(ctx, prompt, text, usage, agentName, taskLabel)
	if err != nil {
		return Result{}, err
	}

	g.cache.Put(key, text, res.CostUSD)
	return res, nil
}

// checkBudget is the pre-flight refusal gate. Aggregate read failures are
// logged and treated as zero spend: a broken ledger must not refuse calls,
// it only weakens the advisory check.
func (g *Gateway) checkBudget(ctx context.Context) error {
	sessionCost, err := g.costs.SessionCost(ctx, g.sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("gateway: session cost read failed, budget check degraded")
	}
	dailyCost, err := g.costs.DailyCost(ctx, g.now())
	if err != nil {
		log.Warn().Err(err).Msg("gateway: daily cost read failed, budget check degraded")
	}

	status, firstReport := g.guard.Check(g.sessionID, sessionCost, g.opts.SessionBudget, dailyCost, g.opts.DailyBudget)

	switch status {
	case budget.StatusBlocked:
		return &BudgetExceededError{
			SessionCost:   sessionCost,
			SessionBudget: g.opts.SessionBudget,
			DailyCost:     dailyCost,
			DailyBudget:   g.opts.DailyBudget,
		}
	case budget.StatusWarn90, budget.StatusWarn70:
		if firstReport {
			log.Warn().
				Str("status", status.String()).
				Float64("session_cost_usd", sessionCost).
				Float64("session_budget_usd", g.opts.SessionBudget).
				Float64("daily_cost_usd", dailyCost).
				Float64("daily_budget_usd", g.opts.DailyBudget).
				Msg("gateway: budget warning")
		}
	}
	return nil
}

// meter resolves token counts, computes cost, and appends the cost event.
// A ledger append failure does not fail the call; the result is flagged
// Unrecorded so summaries are known to potentially undercount.
func (g *Gateway) meter(ctx context.Context, prompt, text string, usage Usage, agentName, taskLabel string) (Result, error) {
	inputTokens := usage.InputTokens
	outputTokens := usage.OutputTokens
	estimated := !usage.Reported()
	if estimated {
		inputTokens = EstimateTokens(prompt)
		outputTokens = EstimateTokens(text)
	}

	cost, err := g.rates.Cost(g.opts.Model, inputTokens, outputTokens)
	if err != nil {
		// Configuration error: abort before any ledger write.
		return Result{}, err
	}

	res := Result{
		Text:         text,
		CostUSD:      cost,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Estimated:    estimated,
	}

	event := ledger.Event{
		Timestamp:    g.now(),
		AgentName:    agentName,
		SessionID:    g.sessionID,
		Model:        g.opts.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		TaskLabel:    taskLabel,
		Estimated:    estimated,
	}
	if err := g.costs.Record(ctx, event); err != nil {
		log.Error().Err(err).Msg("gateway: cost event not recorded, aggregates may undercount")
		res.Unrecorded = true
	}

	log.Info().
		Str("agent", agentName).
		Float64("cost_usd", cost).
		Int("input_tokens", inputTokens).
		Int("output_tokens", outputTokens).
		Bool("estimated", estimated).
		Msg("gateway: api call metered")

	return res, nil
}

// Summary returns the current budget state for this gateway's session.
func (g *Gateway) Summary(ctx context.Context) (ledger.Summary, error) {
	return g.costs.Summary(ctx, g.sessionID, g.opts.SessionBudget, g.opts.DailyBudget)
}
