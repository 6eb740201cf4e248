package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/skridlevsky/interest-dash/internal/config"
	"github.com/skridlevsky/interest-dash/internal/interest"
	"github.com/skridlevsky/interest-dash/internal/jira"
	"github.com/skridlevsky/interest-dash/internal/render"
	"github.com/spf13/pflag"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	var (
		jql       string
		asJSON    bool
		reporters bool
		totals    bool
		conflicts bool
	)

	flagSet := pflag.NewFlagSet("report", pflag.ContinueOnError)
	flagSet.StringVar(&jql, "jql", cfg.JiraJQL, "JIRA filter selecting the issues")
	flagSet.BoolVar(&asJSON, "json", false, "write the report as JSON instead of CSV")
	flagSet.BoolVar(&reporters, "reporters", cfg.IncludeReporters, "count issue reporters as interested")
	flagSet.BoolVar(&totals, "totals", cfg.ShowTotals, "append a per-person totals row")
	flagSet.BoolVar(&conflicts, "conflicts", cfg.ShowConflicts, "include the issue conflict matrix (JSON only)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return
		}
		log.Fatalf("Invalid arguments: %v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return
	}
	if args := flagSet.Args(); len(args) > 0 {
		log.Fatalf("Unexpected argument: %s", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := jira.NewClient(cfg.JiraURL, cfg.JiraUser, cfg.JiraPassword, jira.Options{
		Timeout:           cfg.JiraTimeout,
		RequestsPerSecond: cfg.JiraRateLimit,
		Concurrency:       cfg.JiraConcurrency,
	})

	query := interest.Query{
		BaseURL:          client.BaseURL(),
		JQL:              jql,
		IncludeReporters: reporters,
		IncludeTotals:    totals,
		IncludeConflicts: conflicts,
	}

	log.Printf("Querying %s: %s", query.BaseURL, query.JQL)
	report, err := interest.NewAggregator(client).Aggregate(ctx, query)
	if err != nil {
		log.Fatalf("Report failed: %v", err)
	}
	log.Printf("Found %d issues, %d people", report.Table.Len(), len(report.Table.People))
	for _, skipped := range report.Skipped {
		log.Printf("  Skipped %s: %s", skipped.Key, skipped.Reason)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	} else {
		err = render.CSV(os.Stdout, report)
	}
	if err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `report fetches the issue interest table once and writes it to stdout.

Credentials and defaults come from the same environment as the server
(JIRA_USER, JIRA_PASSWORD, JIRA_URL, JIRA_JQL, ...).

Usage:
  report [flags]

Flags:
`)
	flagSet.PrintDefaults()
}
