// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show search usage analytics",
	Long: `Analytics aggregates the recorded search metrics: volume, success and
cache hit rates, average cost and latency, top queries, and error counts.`,
	RunE: runAnalytics,
}

func init() {
	analyticsCmd.Flags().Duration("since", 24*time.Hour, "aggregation window (0 = all records)")
	analyticsCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(analyticsCmd)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	window, _ := cmd.Flags().GetDuration("since")
	var since time.Time
	if window > 0 {
		since = time.Now().Add(-window)
	}
	snap := e.analytics.SnapshotSince(since)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Printf("Queries:        %d\n", snap.TotalQueries)
	fmt.Printf("Success rate:   %.0f%%\n", snap.SuccessRate*100)
	fmt.Printf("Cache hit rate: %.0f%%\n", snap.CacheHitRate*100)
	fmt.Printf("Avg duration:   %s\n", snap.AvgDuration)
	fmt.Printf("Total cost:     $%.2f (avg $%.3f/query)\n", snap.TotalCost, snap.AvgCost)

	if len(snap.TopQueries) > 0 {
		fmt.Println("\nTop queries:")
		for _, q := range snap.TopQueries {
			fmt.Printf("  %4d  %s\n", q.Count, q.Query)
		}
	}
	if len(snap.ErrorCounts) > 0 {
		fmt.Println("\nErrors:")
		for msg, n := range snap.ErrorCounts {
			fmt.Printf("  %4d  %s\n", n, msg)
		}
	}
	return nil
}
