// Command research is the terminal front end for the survey research team.
// It wires the cost gateway around the Anthropic provider and runs a small
// chat loop.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/sokitar/agentic-survey-research-team/internal/budget"
	"github.com/sokitar/agentic-survey-research-team/internal/cache"
	"github.com/sokitar/agentic-survey-research-team/internal/config"
	"github.com/sokitar/agentic-survey-research-team/internal/gateway"
	"github.com/sokitar/agentic-survey-research-team/internal/ledger"
	"github.com/sokitar/agentic-survey-research-team/internal/pricing"
	"github.com/sokitar/agentic-survey-research-team/internal/provider"
	"github.com/sokitar/agentic-survey-research-team/internal/research"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	setupLogging(*verbose)

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

// setupLogging picks a human console writer on a TTY and JSON otherwise.
func setupLogging(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	rateEntries := make(map[string]pricing.Rates, len(cfg.Rates))
	for model, r := range cfg.Rates {
		rateEntries[model] = pricing.Rates{InputPer1K: r.InputPer1K, OutputPer1K: r.OutputPer1K}
	}
	rates := pricing.NewTable(rateEntries)

	// A model with no rate entry is a configuration error, caught here
	// rather than mid-call.
	if _, err := rates.Lookup(cfg.Model); err != nil {
		return fmt.Errorf("configured model has no rate entry: %w", err)
	}

	costs, err := ledger.Open(cfg.LedgerPath, cfg.Location())
	if err != nil {
		return err
	}
	defer func() { _ = costs.Close() }()

	respCache, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL())
	if err != nil {
		return err
	}
	defer func() { _ = respCache.Close() }()

	stop := make(chan struct{})
	defer close(stop)
	respCache.StartSweeper(cfg.Cache.SweepInterval(), stop)

	invoker, err := provider.NewAnthropic(cfg.AnthropicAPIKey, cfg.Model, config.DefaultProviderTimeout)
	if err != nil {
		return err
	}

	guard := budget.NewGuard(budget.Thresholds{
		Warn70: cfg.Budget.WarnThreshold70,
		Warn90: cfg.Budget.WarnThreshold90,
	})

	gw := gateway.New(gateway.Options{
		Model:          cfg.Model,
		SessionBudget:  cfg.Budget.SessionBudgetUSD,
		DailyBudget:    cfg.Budget.DailyBudgetUSD,
		SerializeCalls: cfg.SerializeSessions,
	}, rates, costs, respCache, guard, invoker)

	team := research.NewTeam(gw)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chatLoop(ctx, gw, respCache, team)
	return nil
}

func chatLoop(ctx context.Context, gw *gateway.Gateway, respCache *cache.Store, team *research.Team) {
	fmt.Println("Survey Research Team")
	fmt.Println("Type 'research <topic>' to start, 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToLower(cmd) {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "cost":
			printSummary(ctx, gw)
		case "cache":
			printCacheStats(respCache)
		case "research":
			if strings.TrimSpace(arg) == "" {
				fmt.Println("usage: research <topic>")
				continue
			}
			runResearch(ctx, team, strings.TrimSpace(arg))
		default:
			fmt.Printf("unknown command %q, try 'help'\n", cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func runResearch(ctx context.Context, team *research.Team, topic string) {
	report, err := team.Research(ctx, topic)

	var budgetErr *gateway.BudgetExceededError
	switch {
	case errors.As(err, &budgetErr):
		fmt.Printf("stopped: %v\n", budgetErr)
		if len(report.Steps) > 0 {
			fmt.Printf("partial results from %d completed stage(s) kept\n", len(report.Steps))
		}
	case err != nil:
		fmt.Printf("research failed: %v\n", err)
		return
	}

	if out := report.Final(); out != "" {
		fmt.Println("\n" + out)
	}
	fmt.Printf("\nrun cost: $%.4f across %d stage(s)\n", report.TotalCost(), len(report.Steps))
}

func printSummary(ctx context.Context, gw *gateway.Gateway) {
	s, err := gw.Summary(ctx)
	if err != nil {
		fmt.Printf("summary unavailable: %v\n", err)
		return
	}
	fmt.Printf("session %s\n", s.SessionID)
	fmt.Printf("  session: $%.4f of $%.2f ($%.4f remaining)\n", s.SessionCost, s.SessionBudget, s.SessionRemaining)
	fmt.Printf("  today:   $%.4f of $%.2f ($%.4f remaining)\n", s.DailyCost, s.DailyBudget, s.DailyRemaining)
}

func printCacheStats(respCache *cache.Store) {
	st := respCache.Stats()
	fmt.Printf("cache: %d live entries, hit rate %.0f%% (%d/%d), $%.4f saved\n",
		st.EntryCount, st.HitRate*100, st.Hits, st.Lookups, st.TotalSavedUSD)
	if st.OldestEntryAge > 0 {
		fmt.Printf("  oldest entry: %s old\n", st.OldestEntryAge.Round(time.Second))
	}
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  research <topic>  run the agent pipeline on a topic")
	fmt.Println("  cost              show session and daily spend against budgets")
	fmt.Println("  cache             show response cache statistics")
	fmt.Println("  quit              exit")
}
