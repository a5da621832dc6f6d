package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/universalyoga/studiosync/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()
		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}

		history, err := db.ListSyncHistory(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("No sync attempts recorded")
			return nil
		}

		for _, h := range history {
			fmt.Printf("%s  %-11s %-5s trigger=%-11s %4d records %6dms\n",
				h.Timestamp, h.Status, h.Type, h.Trigger, h.DataSize, h.Duration)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum rows to show (0 for all)")
}
