// Command studiosync manages a yoga studio catalog: a local SQLite store
// of courses and class instances mirrored to two remote replicas.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/universalyoga/studiosync/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "studiosync",
	Short: "Yoga studio catalog with dual-replica sync",
	Long: `studiosync keeps a local catalog of courses and class instances
and mirrors it to two remote replicas.

All edits land locally first and are marked pending; a debounced
background sync (or an explicit 'studiosync sync') uploads the full
catalog to the primary replica and then, only after the primary
succeeds, to the secondary. Deletions are confirmed at both replicas
before the local record is removed.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "studiosync.yaml",
		"path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(resetCmd)
}

// loadConfig reads the configured file, tolerating its absence.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
