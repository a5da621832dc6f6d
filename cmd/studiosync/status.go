package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/universalyoga/studiosync/internal/schema"
	"github.com/universalyoga/studiosync/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog counts and sync state",
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

		courses, err := db.CourseCount(ctx)
		if err != nil {
			return err
		}
		instances, err := db.InstanceCount(ctx)
		if err != nil {
			return err
		}
		pendingCourses, err := db.ListCoursesPendingSync(ctx)
		if err != nil {
			return err
		}
		pendingInstances, err := db.ListInstancesPendingSync(ctx)
		if err != nil {
			return err
		}
		deletingCourses, err := db.ListCoursesPendingDelete(ctx)
		if err != nil {
			return err
		}
		deletingInstances, err := db.ListInstancesPendingDelete(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Courses:    %d (%d pending, %d awaiting deletion)\n",
			courses, len(pendingCourses), len(deletingCourses))
		fmt.Printf("Instances:  %d (%d pending, %d awaiting deletion)\n",
			instances, len(pendingInstances), len(deletingInstances))
		fmt.Printf("Autosync:   enabled=%v debounce=%s\n",
			cfg.Autosync.Enabled, cfg.Autosync.Debounce)

		history, err := db.ListSyncHistory(ctx, 1)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Println("Last sync:  never")
			return nil
		}

		h := history[0]
		fmt.Printf("Last sync:  %s %s (%s, %d records, %dms)\n",
			h.Timestamp, h.Status, h.Type, h.DataSize, h.Duration)
		if h.Status == schema.SyncFailed {
			fmt.Println("            records remain pending and will retry on the next sync")
		}
		return nil
	},
}
