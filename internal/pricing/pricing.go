// Package pricing converts token counts into USD cost.
//
// DESIGN: The rate table is loaded once at startup from configuration and
// never mutated. A lookup miss is a configuration error surfaced as
// UnknownModelError, not a silent fallback to default pricing: charging an
// unknown model at guessed rates would corrupt the ledger.
package pricing

import (
	"fmt"
	"math"
)

// Rates holds per-1k-token pricing for a single model.
type Rates struct {
	InputPer1K  float64 // USD per 1000 input tokens
	OutputPer1K float64 // USD per 1000 output tokens
}

// UnknownModelError indicates the rate table has no entry for a model.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("pricing: unknown model %q (no rate table entry)", e.Model)
}

// Table is an immutable model -> rates lookup.
type Table struct {
	rates map[string]Rates
}

// NewTable builds a table from the given entries. The map is copied; callers
// may reuse theirs.
func NewTable(entries map[string]Rates) *Table {
	rates := make(map[string]Rates, len(entries))
	for model, r := range entries {
		rates[model] = r
	}
	return &Table{rates: rates}
}

// Lookup returns the rates for a model, or UnknownModelError.
func (t *Table) Lookup(model string) (Rates, error) {
	r, ok := t.rates[model]
	if !ok {
		return Rates{}, &UnknownModelError{Model: model}
	}
	return r, nil
}

// Cost computes the USD cost of a call, rounded to micro-dollar precision.
// Pure function of (rates, token counts); linear and non-decreasing in both
// token arguments.
func (t *Table) Cost(model string, inputTokens, outputTokens int) (float64, error) {
	r, err := t.Lookup(model)
	if err != nil {
		return 0, err
	}
	inputCost := float64(inputTokens) / 1000 * r.InputPer1K
	outputCost := float64(outputTokens) / 1000 * r.OutputPer1K
	return round6(inputCost + outputCost), nil
}

// Models returns the set of known model identifiers.
func (t *Table) Models() []string {
	models := make([]string, 0, len(t.rates))
	for m := range t.rates {
		models = append(models, m)
	}
	return models
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
