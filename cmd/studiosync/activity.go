package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/universalyoga/studiosync/internal/store"
)

var activityLimit int

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "List recent catalog activity",
	Long: `List the audit log: one entry per course/instance mutation,
deletion, and sync event, newest first.`,
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

		records, err := db.ListActivity(ctx, activityLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No activity recorded")
			return nil
		}

		for _, a := range records {
			related := ""
			if a.RelatedID != "" {
				related = " (#" + a.RelatedID + ")"
			}
			fmt.Printf("%s  %-8s %s%s\n", a.Timestamp, a.Type, a.Description, related)
		}
		return nil
	},
}

func init() {
	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 20, "maximum rows to show (0 for all)")
}
