package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/subx-cli/subx/internal/cache"
	"github.com/subx-cli/subx/internal/diagnostics"
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Write a support bundle with runtime facts, configuration, and cache stats",
	RunE:  runDiagnostics,
}

func init() {
	diagnosticsCmd.Flags().StringP("output", "o", "", "directory to write the bundle into (default: cache directory)")
	RootCmd.AddCommand(diagnosticsCmd)
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	cfg, err := loadSnapshot(nil)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("output")
	if outDir == "" {
		dir, err := cache.DefaultDir()
		if err != nil {
			return err
		}
		outDir = dir
	}

	var stats cache.Stats
	if store, err := openCacheStore(); err == nil {
		stats, _ = store.Stats()
	}

	path, err := diagnostics.WriteBundle(outDir, cfg, stats)
	if err != nil {
		return err
	}
	fmt.Printf("diagnostics bundle written to %s\n", path)
	return nil
}
