package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/subx-cli/subx/internal/config"
	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/discovery"
	"github.com/subx-cli/subx/internal/media"
	"github.com/subx-cli/subx/internal/progress"
	"github.com/subx-cli/subx/internal/scheduler"
	"github.com/subx-cli/subx/internal/subs"
	"github.com/subx-cli/subx/internal/syncdetect"
	"github.com/subx-cli/subx/internal/vad"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Align subtitle timing to detected speech, or apply a manual offset",
	Long: `sync either shifts one subtitle to match one audio/video file's detected
speech onset, or, in --batch mode, discovers (audio, subtitle) pairs under
one or more input paths and syncs each pair independently.

Example:
  subx sync -v movie.mkv -s movie.srt
  subx sync -i ./season1 --batch --recursive`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringP("video", "v", "", "path to the audio/video file (single mode)")
	syncCmd.Flags().StringP("subtitle", "s", "", "path to the subtitle file (single mode)")
	syncCmd.Flags().StringArrayP("input", "i", nil, "input path (file or directory); repeatable (batch mode)")
	syncCmd.Flags().Bool("batch", false, "batch mode: pair media with subtitles under the input paths")
	syncCmd.Flags().Bool("recursive", false, "recurse into subdirectories (batch mode)")
	syncCmd.Flags().Float64("offset", 0, "manual offset in seconds; bypasses speech detection")
	syncCmd.Flags().String("method", "", "detection method override: auto or vad")
	syncCmd.Flags().Float64("vad-sensitivity", -1, "override sync.vad.sensitivity for this run")
	syncCmd.Flags().StringP("output", "o", "", "output path (single mode) or directory (batch mode)")
	syncCmd.Flags().Bool("dry-run", false, "report the computed offset without writing the shifted subtitle")
	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	videoPath, _ := cmd.Flags().GetString("video")
	subtitlePath, _ := cmd.Flags().GetString("subtitle")
	inputs, _ := cmd.Flags().GetStringArray("input")
	batch, _ := cmd.Flags().GetBool("batch")
	offsetFlag := cmd.Flags().Changed("offset")
	methodFlag := cmd.Flags().Changed("method")
	sensitivityFlag := cmd.Flags().Changed("vad-sensitivity")

	if offsetFlag && (methodFlag || sensitivityFlag) {
		return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll, fmt.Errorf("--offset is mutually exclusive with --method/--vad-sensitivity"))
	}

	overlay := map[string]interface{}{}
	if method, _ := cmd.Flags().GetString("method"); methodFlag {
		overlay["sync.default_method"] = method
	}
	if sens, _ := cmd.Flags().GetFloat64("vad-sensitivity"); sensitivityFlag {
		overlay["sync.vad.sensitivity"] = sens
	}

	logger := newLogger(cmd)
	cfg, err := loadSnapshot(overlay)
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	output, _ := cmd.Flags().GetString("output")

	if !batch && len(inputs) == 0 {
		if videoPath == "" || subtitlePath == "" {
			return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll,
				fmt.Errorf("single sync mode requires both -v and -s, or use -i/--batch for batch mode"))
		}
		var manualOffset *float64
		if offsetFlag {
			v, _ := cmd.Flags().GetFloat64("offset")
			manualOffset = &v
		}
		res, err := syncOne(cmd.Context(), cfg, videoPath, subtitlePath, output, manualOffset, dryRun, logger)
		if err != nil {
			return err
		}
		printSyncResult(videoPath, subtitlePath, res)
		return nil
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	if len(inputs) == 0 {
		return core.NewTaskError(core.ErrInvalidArgument, core.BehaviorAbortAll, fmt.Errorf("batch sync requires -i"))
	}
	pairs, err := discoverPairs(inputs, recursive)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		logger.Warn().Msg("no (audio, subtitle) pairs found under the given inputs")
		return nil
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
	if cfg.General.EnableProgressBar {
		reporter = progress.New(len(pairs), cmd.OutOrStdout())
	}

	// Results() must be drained concurrently with submission: it's
	// buffered only to QueueSize, so once enough tasks complete before
	// Shutdown is called, workers block sending to it and Shutdown's
	// wg.Wait() never returns.
	var failures int64
	var done int64
	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		for res := range sched.Results() {
			if res.Err != nil {
				logger.Error().Err(res.Err).Str("task_id", res.TaskID).Msg("sync failed")
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

	for _, pr := range pairs {
		pr := pr
		_ = sched.Submit(core.Task{
			ID: pr.subtitle,
			Run: func(ctx context.Context, h *core.Handler) error {
				res, err := syncOne(ctx, cfg, pr.media, pr.subtitle, output, nil, dryRun, h.Logger)
				if err != nil {
					return err
				}
				printSyncResult(pr.media, pr.subtitle, res)
				return nil
			},
		})
	}
	sched.Shutdown()
	<-resultsDone

	if n := atomic.LoadInt64(&failures); n > 0 {
		return core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("%d sync task(s) failed", n))
	}
	return nil
}

// syncOne runs the Single-mode algorithm of spec.md §4.10: manual offset
// bypasses detection entirely; otherwise decode audio (C1), detect speech
// (C2), derive an offset (C3), and shift the subtitle (C4).
func syncOne(ctx context.Context, cfg *config.Snapshot, mediaPath, subtitlePath, output string, manualOffset *float64, dryRun bool, logger zerolog.Logger) (*syncdetect.Result, error) {
	subtitle, err := subs.OpenFile(subtitlePath)
	if err != nil {
		return nil, err
	}

	var result *syncdetect.Result
	if manualOffset != nil {
		result, err = syncdetect.DetectManual(*manualOffset, cfg.Sync.MaxOffsetSeconds)
		if err != nil {
			return nil, err
		}
	} else {
		firstCue, ok := subtitle.FirstCueStart()
		if !ok {
			return nil, core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("empty subtitle: %s has no cues", subtitlePath))
		}

		pcm, err := media.Decode(ctx, "", "", mediaPath, cfg.Sync.VAD.SampleRate)
		if err != nil {
			return nil, err
		}

		engine, err := vad.NewDefaultEngine(cfg.Sync.VAD.SampleRate, cfg.Sync.VAD.Sensitivity)
		if err != nil {
			return nil, core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask, fmt.Errorf("initializing VAD engine: %w", err))
		}
		defer engine.Close()

		segments, err := vad.Detect(engine, vad.PCMToFloat32(pcm.Samples), vad.Params{
			SampleRate:          cfg.Sync.VAD.SampleRate,
			ChunkSize:           cfg.Sync.VAD.ChunkSize,
			Sensitivity:         cfg.Sync.VAD.Sensitivity,
			PaddingChunks:       cfg.Sync.VAD.PaddingChunks,
			MinSpeechDurationMs: cfg.Sync.VAD.MinSpeechDurationMs,
			SpeechMergeGapMs:    cfg.Sync.VAD.SpeechMergeGapMs,
		})
		if err != nil {
			return nil, err
		}

		result, err = syncdetect.Detect(segments, firstCue, subtitle.CueStarts(), cfg.Sync.MaxOffsetSeconds, cfg.Sync.VAD.MinSpeechDurationMs)
		if err != nil {
			return nil, err
		}
	}

	for _, w := range result.Warnings {
		logger.Warn().Msg(w)
	}

	if dryRun {
		return result, nil
	}

	if err := subtitle.ShiftBy(time.Duration(result.OffsetSeconds * float64(time.Second))); err != nil {
		return nil, err
	}

	outPath := output
	if outPath == "" {
		outPath = subtitlePath
	}
	format, ok := subs.FormatFromExtension(strings.TrimPrefix(filepath.Ext(subtitlePath), "."))
	if !ok {
		format = subs.FormatSRT
	}
	if err := subtitle.ConvertTo(outPath, format); err != nil {
		return nil, err
	}
	return result, nil
}

func printSyncResult(mediaPath, subtitlePath string, res *syncdetect.Result) {
	fmt.Printf("%s + %s: offset=%.3fs confidence=%.2f method=%s\n", mediaPath, subtitlePath, res.OffsetSeconds, res.Confidence, res.MethodUsed)
}

type mediaSubtitlePair struct {
	media    string
	subtitle string
}

// discoverPairs implements spec.md §4.10's batch pairing rule: pair audio
// with subtitle by nearest basename match within the same directory.
func discoverPairs(inputs []string, recursive bool) ([]mediaSubtitlePair, error) {
	files, err := discovery.Discover(discovery.Options{Roots: inputs, Recursive: recursive})
	if err != nil {
		return nil, err
	}

	type bucket struct {
		media      []discovery.MediaFile
		subtitles  []discovery.MediaFile
	}
	byDir := map[string]*bucket{}
	for _, f := range files {
		dir := filepath.Dir(f.Path)
		b, ok := byDir[dir]
		if !ok {
			b = &bucket{}
			byDir[dir] = b
		}
		switch f.Kind {
		case discovery.KindVideo, discovery.KindAudio:
			b.media = append(b.media, f)
		case discovery.KindSubtitle:
			b.subtitles = append(b.subtitles, f)
		}
	}

	var dirs []string
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var pairs []mediaSubtitlePair
	for _, dir := range dirs {
		b := byDir[dir]
		used := make(map[string]bool)
		for _, m := range b.media {
			best := ""
			bestScore := -1
			for _, s := range b.subtitles {
				if used[s.Path] {
					continue
				}
				score := commonPrefixLen(m.Name, s.Name)
				if score > bestScore {
					bestScore = score
					best = s.Path
				}
			}
			if best != "" {
				used[best] = true
				pairs = append(pairs, mediaSubtitlePair{media: m.Path, subtitle: best})
			}
		}
	}
	return pairs, nil
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
