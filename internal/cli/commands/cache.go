package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/subx-cli/subx/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the match cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print match cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheStore()
		if err != nil {
			return err
		}
		stats, err := store.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("%d entries, %s on disk\n", stats.EntryCount, humanize.Bytes(uint64(stats.TotalBytes)))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every match cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("match cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}

func openCacheStore() (*cache.Store, error) {
	dir, err := cache.DefaultDir()
	if err != nil {
		return nil, err
	}
	return cache.NewStore(dir)
}
