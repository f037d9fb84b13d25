// Package normalize rewrites prompts into a canonical, cheaper form.
//
// DESIGN: Prompt is a pure function: same (prompt, role) in, byte-identical
// output out, on every call. Cache keys are derived from the normalized
// text, so any nondeterminism here silently destroys the hit rate. Rules
// are applied as an ordered list, never a map. The rewrites only trim
// redundant phrasing; they must not change what is being asked.
package normalize

import (
	"strings"
)

// rule is a literal phrase substitution.
type rule struct {
	old string
	new string
}

// redundancyRules strips filler common in research prompts. Order matters:
// rules are applied top to bottom.
var redundancyRules = []rule{
	{"comprehensive and detailed", "comprehensive"},
	{"analyze and examine", "analyze"},
	{"identify and find", "identify"},
	{"research and investigate", "research"},
	{"please make sure to", "ensure"},
	{"it is important to ", ""},
	{"you should focus on", "focus on"},
	{"For example:", "e.g."},
	{"Such as:", "e.g."},
}

// roleRules tighten phrasing for a specific agent role. Matched by substring
// against the lowercased role name.
var roleRules = map[string][]rule{
	"coordinator": {
		{"detailed analysis", "strategic analysis"},
		{"comprehensive review", "focused review"},
	},
	"searcher": {
		{"find all possible", "find key"},
		{"exhaustive search", "targeted search"},
	},
	"analyzer": {
		{"list everything", "synthesize key points"},
	},
}

// roleOrder fixes the iteration order over roleRules.
var roleOrder = []string{"coordinator", "searcher", "analyzer"}

// Prompt returns the canonical form of a raw prompt for the given agent
// role. Used both as the cache key input and as the outbound prompt.
func Prompt(raw, role string) string {
	out := raw

	for _, r := range redundancyRules {
		out = strings.ReplaceAll(out, r.old, r.new)
	}

	lowerRole := strings.ToLower(role)
	for _, name := range roleOrder {
		if strings.Contains(lowerRole, name) {
			for _, r := range roleRules[name] {
				out = strings.ReplaceAll(out, r.old, r.new)
			}
		}
	}

	return collapseWhitespace(out)
}

// collapseWhitespace trims trailing spaces per line and squeezes runs of
// blank lines down to one. Internal spacing within a line is preserved.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
