package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/newhook/tidybot/internal/logcache"
	"github.com/newhook/tidybot/internal/logging"
	"github.com/newhook/tidybot/internal/report"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the downloaded run log cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(GetContext())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nSize:    %s\nTTL:     %s\n",
			stats.Entries, formatBytes(stats.Bytes), cfg.Cache.GetTTL())
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheStore()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Prune(GetContext())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Success(fmt.Sprintf("Removed %d expired entries", removed)))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheStore()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Clear(GetContext())
		if err != nil {
			return err
		}
		logging.Info("cache cleared", "removed", removed)
		fmt.Fprintln(cmd.OutOrStdout(), report.Success(fmt.Sprintf("Removed %d entries", removed)))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCacheStore() (*logcache.Store, error) {
	dir, err := stateRoot()
	if err != nil {
		return nil, err
	}
	return logcache.OpenStore(GetContext(), filepath.Join(dir, logging.ConfigDir, logcache.DBFileName), cfg.Cache.GetTTL())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
