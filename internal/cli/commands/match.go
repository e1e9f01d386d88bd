package commands

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/subx-cli/subx/internal/cache"
	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/discovery"
	"github.com/subx-cli/subx/internal/matcher"
	"github.com/subx-cli/subx/internal/progress"
	"github.com/subx-cli/subx/internal/relocate"
	"github.com/subx-cli/subx/internal/scheduler"
	"github.com/subx-cli/subx/internal/subs"
)

var matchExtensions = map[string]bool{
	"mkv": true, "mp4": true, "avi": true, "mov": true, "webm": true, "m4v": true, "ts": true, "wmv": true,
	"srt": true, "ass": true, "ssa": true, "vtt": true, "sub": true,
}

var matchCmd = &cobra.Command{
	Use:   "match [PATH]",
	Short: "Match subtitle files to their video files using an AI matcher",
	Long: `match discovers video and subtitle files under the given paths, asks the
configured AI provider which subtitle belongs with which video, then
relocates accepted matches next to their video per --copy/--move.

Example:
  subx match ./downloads --recursive --copy`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringArrayP("input", "i", nil, "input path (file or directory); repeatable")
	matchCmd.Flags().Bool("recursive", false, "recurse into subdirectories")
	matchCmd.Flags().Bool("dry-run", false, "compute and print the plan without mutating the filesystem")
	matchCmd.Flags().Int("confidence", 70, "minimum match confidence (0-100) to accept")
	matchCmd.Flags().Bool("backup", false, "back up a colliding destination instead of failing")
	matchCmd.Flags().Bool("copy", false, "copy matched subtitles to their video's directory")
	matchCmd.Flags().Bool("move", false, "move matched subtitles to their video's directory")
	RootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	inputs, _ := cmd.Flags().GetStringArray("input")
	if len(args) == 1 {
		inputs = append(inputs, args[0])
	}
	if len(inputs) == 0 {
		return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll, fmt.Errorf("match requires at least one input path (-i or a positional argument)"))
	}

	copyFlag, _ := cmd.Flags().GetBool("copy")
	moveFlag, _ := cmd.Flags().GetBool("move")
	if copyFlag && moveFlag {
		return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll, fmt.Errorf("--copy and --move are mutually exclusive"))
	}
	mode := relocate.ModeNone
	if copyFlag {
		mode = relocate.ModeCopy
	} else if moveFlag {
		mode = relocate.ModeMove
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	confidence, _ := cmd.Flags().GetInt("confidence")

	overlay := map[string]interface{}{}
	if cmd.Flags().Changed("backup") {
		backup, _ := cmd.Flags().GetBool("backup")
		overlay["general.backup_enabled"] = backup
	}

	logger := newLogger(cmd)
	cfg, err := loadSnapshot(overlay)
	if err != nil {
		return err
	}

	files, err := discovery.Discover(discovery.Options{Roots: inputs, Recursive: recursive, Extensions: matchExtensions})
	if err != nil {
		return err
	}

	var videos, subtitles []discovery.MediaFile
	sampleText := map[string]string{}
	for _, f := range files {
		switch f.Kind {
		case discovery.KindVideo:
			videos = append(videos, f)
		case discovery.KindSubtitle:
			subtitles = append(subtitles, f)
			sampleText[f.ID] = sampleFromSubtitle(f.Path, cfg.AI.MaxSampleLength)
		}
	}
	if len(videos) == 0 || len(subtitles) == 0 {
		logger.Warn().Int("videos", len(videos)).Int("subtitles", len(subtitles)).Msg("nothing to match")
		return nil
	}

	provider, err := buildProvider(cmd.Context(), cfg, logger)
	if err != nil {
		return core.NewTaskError(core.ErrConfigError, core.BehaviorAbortAll, err)
	}

	cacheDir, err := cache.DefaultDir()
	if err != nil {
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortAll, err)
	}
	store, err := cache.NewStore(cacheDir)
	if err != nil {
		return err
	}

	m := matcher.New(provider, store, matcher.Options{
		Provider:           cfg.AI.Provider,
		Model:              cfg.AI.Model,
		Temperature:        cfg.AI.Temperature,
		MaxSampleLength:    cfg.AI.MaxSampleLength,
		ConfidenceGate:     float64(confidence),
		ParseRetryAttempts: cfg.AI.RetryAttempts,
	}, logger, func() int64 { return time.Now().Unix() })

	decision, err := m.Match(cmd.Context(), videos, subtitles, sampleText)
	if err != nil {
		return err
	}
	if len(decision.Matches) == 0 {
		fmt.Println("No matches accepted.")
		return nil
	}

	index := make(map[string]discovery.MediaFile, len(videos)+len(subtitles))
	for _, f := range videos {
		index[f.ID] = f
	}
	for _, f := range subtitles {
		index[f.ID] = f
	}

	// Known up front so the progress reporter and the result-drain
	// goroutine below can both start before any task is submitted.
	plannedCount := 0
	for _, mr := range decision.Matches {
		_, vok := index[mr.VideoID]
		_, sok := index[mr.SubtitleID]
		if vok && sok {
			plannedCount++
		}
	}

	sched := scheduler.New(cmd.Context(), scheduler.Options{
		MaxWorkers:           cfg.Parallel.MaxWorkers,
		QueueSize:            cfg.Parallel.TaskQueueSize,
		OverflowStrategy:     scheduler.OverflowStrategy(cfg.Parallel.OverflowStrategy),
		TaskTimeout:          time.Duration(cfg.General.TaskTimeoutSeconds) * time.Second,
		EnableProgress:       cfg.General.EnableProgressBar,
		EnableTaskPriorities: cfg.Parallel.EnableTaskPriorities,
	})

	var reporter *progress.Reporter
	if cfg.General.EnableProgressBar && plannedCount > 0 && !dryRun {
		reporter = progress.New(plannedCount, cmd.OutOrStdout())
	}

	// Results() must be drained concurrently with submission: it's
	// buffered only to QueueSize, so once enough tasks complete before
	// Shutdown is called, workers block sending to it and
	// Shutdown's wg.Wait() never returns.
	var failures int64
	var done int64
	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		for res := range sched.Results() {
			if res.Err != nil {
				logger.Error().Err(res.Err).Str("task_id", res.TaskID).Msg("relocation failed")
				atomic.AddInt64(&failures, 1)
			}
			n := atomic.AddInt64(&done, 1)
			if reporter != nil {
				reporter.TaskDone(n)
			}
		}
		if reporter != nil {
			reporter.Done()
		}
	}()

	for _, mr := range decision.Matches {
		video, vok := index[mr.VideoID]
		subtitle, sok := index[mr.SubtitleID]
		if !vok || !sok {
			continue
		}
		item, err := relocate.Plan(relocate.Match{VideoPath: video.Path, SubtitlePath: subtitle.Path}, mode, cfg.General.BackupEnabled)
		if err != nil {
			logger.Error().Err(err).Msg("planning relocation")
			atomic.AddInt64(&failures, 1)
			continue
		}

		fmt.Printf("%s -> %s (confidence %.0f%%)%s\n", subtitle.Path, item.TargetSubtitlePath, mr.Confidence, dryRunSuffix(dryRun))

		if dryRun {
			continue
		}
		submitErr := sched.Submit(core.Task{
			// Higher-confidence matches relocate first when
			// parallel.enable_task_priorities is set.
			Priority: int(mr.Confidence),
			Run: func(ctx context.Context, h *core.Handler) error {
				return relocate.Execute(item, false)
			},
		})
		if submitErr != nil {
			logger.Error().Err(submitErr).Msg("submitting relocation task")
			atomic.AddInt64(&failures, 1)
			continue
		}
	}
	sched.Shutdown()
	<-resultsDone

	if n := atomic.LoadInt64(&failures); n > 0 {
		return core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("%d relocation(s) failed", n))
	}
	return nil
}

func dryRunSuffix(dryRun bool) string {
	if dryRun {
		return " [dry-run]"
	}
	return ""
}

func sampleFromSubtitle(path string, maxLen int) string {
	s, err := subs.OpenFile(path)
	if err != nil {
		return ""
	}
	return s.SampleText(maxLen)
}
