package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/discovery"
	"github.com/subx-cli/subx/internal/subs"
)

var subtitleExtensions = map[string]bool{"srt": true, "ass": true, "ssa": true, "vtt": true, "sub": true}

var convertCmd = &cobra.Command{
	Use:   "convert [PATH]",
	Short: "Convert subtitle files between formats",
	Long: `convert discovers subtitle files under the given paths and rewrites each
in the requested target format.

Example:
  subx convert ./subs --format vtt --output ./converted`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringArrayP("input", "i", nil, "input path (file or directory); repeatable")
	convertCmd.Flags().Bool("recursive", false, "recurse into subdirectories")
	convertCmd.Flags().String("format", "srt", "target format: srt, ass, vtt, sub")
	convertCmd.Flags().StringP("output", "o", "", "output directory (target directory mode)")
	convertCmd.Flags().String("encoding", "", "override the source text encoding")
	convertCmd.Flags().Bool("keep-original", true, "keep the original file when converting in place")
	RootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputs, _ := cmd.Flags().GetStringArray("input")
	if len(args) == 1 {
		inputs = append(inputs, args[0])
	}
	if len(inputs) == 0 {
		return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll, fmt.Errorf("convert requires at least one input path (-i or a positional argument)"))
	}

	formatStr, _ := cmd.Flags().GetString("format")
	targetFormat, ok := subs.FormatFromExtension(formatStr)
	if !ok {
		return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll, fmt.Errorf("unsupported target format %q", formatStr))
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	outDir, _ := cmd.Flags().GetString("output")
	keepOriginal, _ := cmd.Flags().GetBool("keep-original")

	logger := newLogger(cmd)

	// "input was a directory" also routes through outDir, per §4.10.
	isDirInput := false
	for _, in := range inputs {
		if info, err := os.Stat(in); err == nil && info.IsDir() {
			isDirInput = true
		}
	}
	effectiveOutDir := outDir
	if effectiveOutDir == "" && isDirInput && len(inputs) == 1 {
		effectiveOutDir = inputs[0]
	}

	files, err := discovery.Discover(discovery.Options{Roots: inputs, Recursive: recursive, Extensions: subtitleExtensions})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn().Msg("no subtitle files found under the given inputs")
		return nil
	}

	if effectiveOutDir != "" {
		if err := os.MkdirAll(effectiveOutDir, 0o755); err != nil {
			return core.NewTaskError(core.ErrIoError, core.BehaviorAbortAll, err)
		}
	}

	failures := 0
	for _, f := range files {
		if f.Kind != discovery.KindSubtitle {
			continue
		}
		sourceFormat, ok := subs.FormatFromExtension(f.Extension)
		if !ok {
			continue
		}

		s, err := subs.OpenFile(f.Path)
		if err != nil {
			logger.Error().Err(err).Str("path", f.Path).Msg("parsing subtitle")
			failures++
			continue
		}

		outPath := subs.DeriveOutputPath(f.Path, targetFormat, effectiveOutDir)
		if outPath == f.Path && sourceFormat == targetFormat {
			continue // already in the target format at the target location
		}

		if err := s.ConvertTo(outPath, targetFormat); err != nil {
			logger.Error().Err(err).Str("path", f.Path).Msg("converting subtitle")
			failures++
			continue
		}
		fmt.Printf("%s -> %s\n", f.Path, outPath)

		if !keepOriginal && outPath != f.Path {
			if err := os.Remove(f.Path); err != nil {
				logger.Warn().Err(err).Str("path", f.Path).Msg("removing original after conversion")
			}
		}
	}

	if failures > 0 {
		return core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("%d conversion(s) failed", failures))
	}
	return nil
}
