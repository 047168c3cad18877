// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show daily search spend against the configured limit",
	Long: `Budget reports today's search spend, the remaining allowance, and a
per-day trend over the recent history kept in the ledger.`,
	RunE: runBudget,
}

func init() {
	budgetCmd.Flags().Int("days", 7, "number of trailing days in the trend")
	budgetCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(budgetCmd)
}

func runBudget(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	days, _ := cmd.Flags().GetInt("days")
	trend := e.budget.Trend(days)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		out := struct {
			SpentToday float64     `json:"spent_today"`
			Remaining  float64     `json:"remaining"`
			DailyLimit float64     `json:"daily_limit"`
			NearLimit  bool        `json:"near_limit"`
			Trend      interface{} `json:"trend,omitempty"`
		}{e.budget.SpentToday(), e.budget.Remaining(), e.cfg.Budget.DailyLimit, e.budget.NearLimit(), trend}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Today: $%.2f spent of $%.2f ($%.2f remaining)\n",
		e.budget.SpentToday(), e.cfg.Budget.DailyLimit, e.budget.Remaining())
	if e.budget.NearLimit() {
		fmt.Println("Warning: spend is near the daily limit")
	}

	if len(trend) > 0 {
		fmt.Printf("\n%-12s  %8s  %s\n", "Day", "Cost", "Queries")
		for _, d := range trend {
			fmt.Printf("%-12s  %8.2f  %d\n", d.Day, d.Cost, d.Queries)
		}
	}
	return nil
}
