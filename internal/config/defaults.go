// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined
// here. This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// BUDGETS
// =============================================================================

// DefaultSessionBudgetUSD is the spend cap for a single research session.
const DefaultSessionBudgetUSD = 5.0

// DefaultDailyBudgetUSD is the spend cap for a calendar day.
const DefaultDailyBudgetUSD = 10.0

// DefaultWarnThreshold70 is the fraction of budget at which the first
// advisory warning fires.
const DefaultWarnThreshold70 = 0.70

// DefaultWarnThreshold90 is the fraction of budget at which the critical
// advisory warning fires.
const DefaultWarnThreshold90 = 0.90

// =============================================================================
// TOKEN ESTIMATION
// =============================================================================

// TokenEstimateRatio is the approximate number of characters per token.
// Used for rough token counting when the provider response carries no
// usage data and the tokenizer encoding cannot be loaded.
const TokenEstimateRatio = 4

// =============================================================================
// CACHE
// =============================================================================

// DefaultCacheTTL is how long cached responses remain valid.
const DefaultCacheTTL = 24 * time.Hour

// DefaultSweepInterval is the frequency of the background cache sweep.
// The sweep only reclaims storage; expiry is always checked on read.
const DefaultSweepInterval = 1 * time.Hour

// =============================================================================
// STORAGE PATHS
// =============================================================================

// DefaultLedgerPath is the SQLite database holding cost events.
const DefaultLedgerPath = "cost_tracking.db"

// DefaultCachePath is the SQLite database holding cached responses.
const DefaultCachePath = "cost_optimization.db"

// =============================================================================
// PROVIDER
// =============================================================================

// DefaultModel is the model used for all agent calls unless overridden.
const DefaultModel = "anthropic/claude-sonnet-4-20250514"

// DefaultProviderTimeout bounds a single generation call.
const DefaultProviderTimeout = 5 * time.Minute
