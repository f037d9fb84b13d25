// Package research runs the sequential agent pipeline over the gateway.
//
// DESIGN: The pipeline is a deliberately simple collaborator: three roles
// called in order, each result feeding the next prompt. All cost, cache,
// and budget behavior lives in the gateway; this package only decides what
// to ask and in what order.
package research

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sokitar/agentic-survey-research-team/internal/gateway"
)

// Agent role names. The normalizer keys its role-specific rules off these.
const (
	RoleCoordinator = "Research Coordinator"
	RoleSearcher    = "Literature Searcher"
	RoleAnalyzer    = "Research Analyzer"
)

// StepResult is the output of one pipeline stage.
type StepResult struct {
	Agent  string
	Output string
	Meta   gateway.Result
}

// Report is the combined outcome of a research run.
type Report struct {
	Topic string
	Steps []StepResult
}

// TotalCost sums the metered cost across all steps. Cache hits contribute
// zero.
func (r *Report) TotalCost() float64 {
	var total float64
	for _, s := range r.Steps {
		total += s.Meta.CostUSD
	}
	return total
}

// Final returns the last stage's output, the synthesized analysis.
func (r *Report) Final() string {
	if len(r.Steps) == 0 {
		return ""
	}
	return r.Steps[len(r.Steps)-1].Output
}

// Team drives the coordinator -> searcher -> analyzer sequence.
type Team struct {
	gw *gateway.Gateway
}

// NewTeam creates a pipeline over the given gateway.
func NewTeam(gw *gateway.Gateway) *Team {
	return &Team{gw: gw}
}

// Research runs the full pipeline for a topic. The first failed stage
// aborts the run; earlier stage results are returned alongside the error so
// partial work is not lost on a budget refusal.
func (t *Team) Research(ctx context.Context, topic string) (*Report, error) {
	report := &Report{Topic: topic}

	steps := []struct {
		agent  string
		task   string
		prompt func() string
	}{
		{
			agent: RoleCoordinator,
			task:  "research planning",
			prompt: func() string {
				return fmt.Sprintf(
					"Plan a comprehensive research investigation on: %s\n\n"+
						"Break the topic into key areas, identify the most relevant "+
						"types of papers and sources, and outline the research strategy.",
					topic)
			},
		},
		{
			agent: RoleSearcher,
			task:  "literature search",
			prompt: func() string {
				return fmt.Sprintf(
					"Using this research plan:\n\n%s\n\n"+
						"Identify the key papers, authors, and venues for: %s. "+
						"For each, give a one-line relevance note.",
					report.Steps[0].Output, topic)
			},
		},
		{
			agent: RoleAnalyzer,
			task:  "synthesis",
			prompt: func() string {
				return fmt.Sprintf(
					"Given this literature survey:\n\n%s\n\n"+
						"Synthesize key points, open problems, and recommended reading "+
						"order for: %s.",
					report.Steps[1].Output, topic)
			},
		},
	}

	for _, step := range steps {
		log.Info().Str("agent", step.agent).Str("topic", topic).Msg("research: running stage")

		res, err := t.gw.Call(ctx, step.prompt(), step.agent, step.task)
		if err != nil {
			return report, fmt.Errorf("%s stage: %w", step.agent, err)
		}
		report.Steps = append(report.Steps, StepResult{
			Agent:  step.agent,
			Output: res.Text,
			Meta:   res,
		})
	}

	return report, nil
}
