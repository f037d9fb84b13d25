package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrompt_Deterministic(t *testing.T) {
	prompts := []string{
		"Conduct a comprehensive and detailed study.",
		"analyze and examine the results\n\n\nwith care  ",
		"plain prompt with nothing to rewrite",
	}
	roles := []string{"Research Coordinator", "Literature Searcher", "Research Analyzer", ""}

	for _, p := range prompts {
		for _, role := range roles {
			first := Prompt(p, role)
			for i := 0; i < 10; i++ {
				assert.Equal(t, first, Prompt(p, role), "prompt %q role %q", p, role)
			}
		}
	}
}

func TestPrompt_RemovesRedundantPhrases(t *testing.T) {
	out := Prompt("Provide a comprehensive and detailed plan.", "")
	assert.Equal(t, "Provide a comprehensive plan.", out)

	out = Prompt("analyze and examine the data", "")
	assert.Equal(t, "analyze the data", out)

	out = Prompt("please make sure to cite sources", "")
	assert.Equal(t, "ensure cite sources", out)
}

func TestPrompt_CompressesExampleMarkers(t *testing.T) {
	out := Prompt("Cover transformers. For example: attention papers.", "")
	assert.Equal(t, "Cover transformers. e.g. attention papers.", out)
}

func TestPrompt_CoordinatorRules(t *testing.T) {
	raw := "Run a detailed analysis and a comprehensive review."

	out := Prompt(raw, "Research Coordinator")
	assert.Equal(t, "Run a strategic analysis and a focused review.", out)

	// Other roles leave coordinator phrasing alone
	out = Prompt(raw, "Literature Searcher")
	assert.Equal(t, raw, out)
}

func TestPrompt_SearcherRules(t *testing.T) {
	out := Prompt("Run the exhaustive search and find all possible papers.", "Literature Searcher")
	assert.Equal(t, "Run the targeted search and find key papers.", out)
}

func TestPrompt_AnalyzerRules(t *testing.T) {
	out := Prompt("Do not list everything.", "Research Analyzer")
	assert.Equal(t, "Do not synthesize key points.", out)
}

func TestPrompt_CollapsesWhitespace(t *testing.T) {
	out := Prompt("line one   \n\n\n\nline two\t\n", "")
	assert.Equal(t, "line one\n\nline two", out)
}

func TestPrompt_PreservesContent(t *testing.T) {
	raw := "Summarize recent results on protein folding benchmarks."
	assert.Equal(t, raw, Prompt(raw, "Research Coordinator"))
}

func TestPrompt_IdenticalInputsCollapse(t *testing.T) {
	// Two phrasings that differ only in stripped redundancy produce the
	// same canonical form, which is what makes them share a cache key.
	a := Prompt("Provide a comprehensive and detailed survey of X.", "Literature Searcher")
	b := Prompt("Provide a comprehensive survey of X.", "Literature Searcher")
	assert.Equal(t, a, b)
}

func TestPrompt_ShorterOrEqualOutput(t *testing.T) {
	raw := "it is important to research and investigate every comprehensive and detailed angle.\n\n\n"
	out := Prompt(raw, "")
	assert.LessOrEqual(t, len(out), len(raw))
}
