/*
Copyright © 2026 DesiroReboot <desiroreboot@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/history"
)

var (
	historyFilePath string
	historyLimit    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the score history",
	Long:  `List and summarise the append-only composite-score log the adaptive cutoffs are derived from.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded composite scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.Open(historyFilePath, log)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}

		records := hist.Snapshot()
		if len(records) == 0 {
			fmt.Println("No score history recorded.")
			return nil
		}
		if historyLimit > 0 && len(records) > historyLimit {
			records = records[len(records)-historyLimit:]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tSCORE\tINPUT SIZE\tSOURCE")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%.1f\t%d\t%s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"),
				r.CompositeScore, r.InputSize, r.SourceTag)
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the score history",
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.Open(historyFilePath, log)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}

		records := hist.Snapshot()
		if len(records) == 0 {
			fmt.Println("No score history recorded.")
			return nil
		}

		min, max := records[0].CompositeScore, records[0].CompositeScore
		var sum float64
		for _, r := range records {
			sum += r.CompositeScore
			if r.CompositeScore < min {
				min = r.CompositeScore
			}
			if r.CompositeScore > max {
				max = r.CompositeScore
			}
		}

		recent := records
		if len(recent) > 20 {
			recent = recent[len(recent)-20:]
		}
		var recentSum float64
		for _, r := range recent {
			recentSum += r.CompositeScore
		}

		fmt.Printf("Records:        %d\n", len(records))
		fmt.Printf("Mean score:     %.1f\n", sum/float64(len(records)))
		fmt.Printf("Recent mean:    %.1f (last %d)\n", recentSum/float64(len(recent)), len(recent))
		fmt.Printf("Min / max:      %.1f / %.1f\n", min, max)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.PersistentFlags().StringVar(&historyFilePath, "history", "./data/scores.jsonl", "Score history file")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50, "Show only the most recent N records (0 = all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
}
