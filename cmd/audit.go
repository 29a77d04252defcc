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
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/store"
)

var (
	auditDBPath string
	auditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect past selection decisions",
	Long:  `List the recorded selections with the cutoffs that were in effect when each one was made.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded selections",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(auditDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		selections, err := db.ListSelections(context.Background(), auditLimit)
		if err != nil {
			return fmt.Errorf("failed to list selections: %w", err)
		}

		if len(selections) == 0 {
			fmt.Println("No selections recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REQUEST\tSCORE\tACCEPT\tREPAIR\tREPAIRED\tATTEMPTS\tUNVERIFIED\tCREATED\tTEXT")
		for _, s := range selections {
			snippet := s.FinalText
			if len(snippet) > 40 {
				snippet = snippet[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%v\t%d\t%v\t%s\t%s\n",
				s.RequestID, s.CompositeScore, s.AcceptCutoff, s.RepairCutoff,
				s.Repaired, s.RepairAttempts, s.Unverified,
				s.CreatedAt.Format("2006-01-02 15:04"), snippet)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.PersistentFlags().StringVar(&auditDBPath, "db", "./data/vtrework.db", "Database path")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "Show only the most recent N selections (0 = all)")

	auditCmd.AddCommand(auditListCmd)
}
