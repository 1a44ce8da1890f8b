package main

import (
	"context"

	"github.com/spf13/cobra"
	"sublink/internal/logger"
	"sublink/internal/metrics"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired entries from the store",
	Long: `Removes base configs and short links whose TTL has passed. Expired entries
are already invisible to lookups; pruning reclaims their space.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st := mustOpenStore()
		defer st.Close()

		n, err := st.Purge(context.Background())
		if err != nil {
			logger.Log.Fatalf("Pruning failed: %v", err)
		}
		metrics.StorePurged.Add(float64(n))
		logger.Log.Infof("✅ Store maintenance complete. Removed %d expired entries from %s.", n, cfg.Store.Path)
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
