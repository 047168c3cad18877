// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/coinbrief/internal/report"
	"github.com/pdiddy/coinbrief/internal/search"
	"github.com/pdiddy/coinbrief/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report [project name]",
	Short: "Generate a research report for a crypto project",
	Long: `Report runs the full engine for one project: staged web search, the
multi-stage AI pipeline, and quality evaluation. The finished report is
written as markdown with a YAML metadata sidecar.

Modes: lite (default) for a shorter report from fewer queries, deep-dive
for a longer report with a dedicated forward-looking analysis stage.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("symbol", "", "ticker symbol (e.g. SOL)")
	reportCmd.Flags().String("website", "", "official project website")
	reportCmd.Flags().String("category", "", "project category (e.g. L1, DeFi)")
	reportCmd.Flags().String("mode", string(types.ModeLite), "report mode: lite or deep-dive")
	reportCmd.Flags().String("output-dir", "reports", "directory for generated reports")
	reportCmd.Flags().String("identifier", "cli", "rate-limit identifier for this caller")
	reportCmd.Flags().Bool("force-refresh", false, "bypass cached search results")
	reportCmd.Flags().Bool("json", false, "print the full report object as JSON instead of writing files")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a project name")
	}

	modeStr, _ := cmd.Flags().GetString("mode")
	mode := types.Mode(modeStr)
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q: use %s or %s", mode, types.ModeLite, types.ModeDeepDive)
	}

	symbol, _ := cmd.Flags().GetString("symbol")
	website, _ := cmd.Flags().GetString("website")
	category, _ := cmd.Flags().GetString("category")
	project := types.Project{
		Name:     strings.Join(args, " "),
		Symbol:   symbol,
		Website:  website,
		Category: category,
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()
	e.cache.Start()
	defer e.cache.Stop()

	identifier, _ := cmd.Flags().GetString("identifier")
	forceRefresh, _ := cmd.Flags().GetBool("force-refresh")
	opts := search.Options{
		Identifier:   identifier,
		ForceRefresh: forceRefresh,
	}

	rep, err := e.generator.Generate(context.Background(), project, mode, opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	outDir, _ := cmd.Flags().GetString("output-dir")
	path, err := report.WriteFiles(outDir, project, rep, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Printf("Report written to %s\n", path)
	fmt.Printf("  grade %s, confidence %.2f, %d sources, $%.2f search spend\n",
		rep.Metadata.Grade, rep.ConfidenceScore, len(rep.Sources), rep.Metadata.SearchCost)
	for _, w := range rep.Metadata.StrictModeWarnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}
