package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/universalyoga/studiosync/internal/schema"
	"github.com/universalyoga/studiosync/internal/store"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every local record",
	Long: `Delete all courses, instances, activity, and sync history from
the local store. Replica copies are not touched; the next sync uploads
the (now empty) catalog.

Requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to reset without --yes")
		}

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

		courses, err := db.CourseCount(ctx)
		if err != nil {
			return err
		}
		instances, err := db.InstanceCount(ctx)
		if err != nil {
			return err
		}

		if err := db.Reset(ctx); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}

		// Leave a trace of the wipe in the fresh activity log.
		note := schema.NewActivity(schema.ActivitySystem,
			fmt.Sprintf("Reset removed %d courses and %d instances", courses, instances), "")
		if err := db.InsertActivity(ctx, note); err != nil {
			return fmt.Errorf("failed to record reset: %w", err)
		}

		fmt.Printf("Removed %d courses and %d instances\n", courses, instances)
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
}
