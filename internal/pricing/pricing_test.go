package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	return NewTable(map[string]Rates{
		"anthropic/claude-sonnet-4-20250514": {InputPer1K: 0.003, OutputPer1K: 0.015},
	})
}

func TestTable_Lookup(t *testing.T) {
	table := testTable()

	r, err := table.Lookup("anthropic/claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, 0.003, r.InputPer1K)
	assert.Equal(t, 0.015, r.OutputPer1K)
}

func TestTable_LookupUnknownModel(t *testing.T) {
	table := testTable()

	_, err := table.Lookup("gpt-4o")
	require.Error(t, err)

	var unknownErr *UnknownModelError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "gpt-4o", unknownErr.Model)
}

func TestTable_CostZeroTokens(t *testing.T) {
	table := testTable()

	cost, err := table.Cost("anthropic/claude-sonnet-4-20250514", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}

func TestTable_CostKnownValue(t *testing.T) {
	table := testTable()

	// 1000 input at $0.003/1k + 500 output at $0.015/1k = $0.0105
	cost, err := table.Cost("anthropic/claude-sonnet-4-20250514", 1000, 500)
	require.NoError(t, err)
	assert.InDelta(t, 0.0105, cost, 1e-9)
}

func TestTable_CostLinear(t *testing.T) {
	table := testTable()

	c1, err := table.Cost("anthropic/claude-sonnet-4-20250514", 1000, 500)
	require.NoError(t, err)
	c2, err := table.Cost("anthropic/claude-sonnet-4-20250514", 2000, 1000)
	require.NoError(t, err)
	assert.InDelta(t, c1*2, c2, 1e-9)
}

func TestTable_CostNonDecreasing(t *testing.T) {
	table := testTable()

	prev := -1.0
	for tokens := 0; tokens <= 10000; tokens += 500 {
		cost, err := table.Cost("anthropic/claude-sonnet-4-20250514", tokens, tokens)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cost, prev)
		prev = cost
	}
}

func TestTable_CostUnknownModel(t *testing.T) {
	table := testTable()

	_, err := table.Cost("no-such-model", 100, 100)
	var unknownErr *UnknownModelError
	require.True(t, errors.As(err, &unknownErr))
}

func TestTable_CostMicroDollarRounding(t *testing.T) {
	table := NewTable(map[string]Rates{
		"m": {InputPer1K: 0.0000007, OutputPer1K: 0},
	})

	cost, err := table.Cost("m", 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.000001, cost)
}

func TestNewTable_CopiesEntries(t *testing.T) {
	entries := map[string]Rates{"m": {InputPer1K: 1, OutputPer1K: 2}}
	table := NewTable(entries)

	entries["m"] = Rates{InputPer1K: 99, OutputPer1K: 99}

	r, err := table.Lookup("m")
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.InputPer1K)
}
