// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/coinbrief/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run an ad-hoc web search through the engine",
	Long: `Search runs a single query through the full service stack: budget check,
rate limiting, caching, and the resilient provider call. Useful for
inspecting what the report pipeline would see for a given query.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of sources (0 = config default)")
	searchCmd.Flags().String("identifier", "cli", "rate-limit identifier for this caller")
	searchCmd.Flags().Bool("force-refresh", false, "bypass cached results")
	searchCmd.Flags().Bool("bypass-rate-limit", false, "skip the local rate limiter")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a search query")
	}
	query := strings.Join(args, " ")

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	maxResults, _ := cmd.Flags().GetInt("max-results")
	identifier, _ := cmd.Flags().GetString("identifier")
	forceRefresh, _ := cmd.Flags().GetBool("force-refresh")
	bypass, _ := cmd.Flags().GetBool("bypass-rate-limit")

	result, err := e.search.SearchOne(context.Background(), query, search.Options{
		Identifier:      identifier,
		MaxResults:      maxResults,
		ForceRefresh:    forceRefresh,
		BypassRateLimit: bypass,
	})
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatJSON(result, os.Stdout)
	}
	search.FormatTable(result, os.Stdout)
	return nil
}
