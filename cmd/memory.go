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

var memoryDBPath string

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the result memory cache",
	Long:  `List, inspect, and clear the SQLite result memory cache.`,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all result memory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(memoryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		entries, err := db.ListMemory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries in result memory.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tTARGET\tSCORE\tUSED\tLAST USED\tINVALID\tTEXT")
		for _, e := range entries {
			snippet := e.Payload
			if len(snippet) > 40 {
				snippet = snippet[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%d\t%s\t%v\t%s\n",
				e.ID, e.SourceLang, e.TargetLang, e.CompositeScore,
				e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"),
				e.Invalidated, snippet)
		}
		return w.Flush()
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show result memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(memoryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total entries:   %d\n", stats.TotalEntries)
		fmt.Printf("Active entries:  %d\n", stats.ActiveEntries)
		fmt.Printf("Invalid entries: %d\n", stats.InvalidEntries)
		fmt.Printf("Total usage:     %d\n", stats.TotalUsage)
		return nil
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a result memory entry by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(memoryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.DeleteMemory(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		fmt.Printf("Deleted entry: %s\n", args[0])
		return nil
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all entries from result memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(memoryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		n, err := db.ClearMemory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear memory: %w", err)
		}
		fmt.Printf("Cleared %d entries from result memory.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(memoryCmd)

	memoryCmd.PersistentFlags().StringVar(&memoryDBPath, "db", "./data/vtrework.db", "Database path")

	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryDeleteCmd)
	memoryCmd.AddCommand(memoryClearCmd)
}
