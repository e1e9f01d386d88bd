// Package subs implements C4, the Subtitle Model + Format Bridge: an
// in-memory cue list built over github.com/asticode/go-astisub, with
// shift_by/convert_to operations layered on top, grounded on the
// teacher's pkg/subs wrapper around the same library.
package subs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	astisub "github.com/asticode/go-astisub"

	"github.com/subx-cli/subx/internal/core"
)

// Format names the subtitle formats SubX's format bridge supports.
type Format string

const (
	FormatSRT Format = "srt"
	FormatASS Format = "ass"
	FormatSSA Format = "ssa"
	FormatVTT Format = "vtt"
	FormatSUB Format = "sub"
)

// Subtitles wraps astisub.Subtitles, the same embedding pattern as the
// teacher's pkg/subs.Subtitles.
type Subtitles struct {
	*astisub.Subtitles
}

// OpenFile parses a subtitle file, detecting its format from the
// extension (go-astisub's own dispatch, per spec §4.4's parse contract).
func OpenFile(path string) (*Subtitles, error) {
	s, err := astisub.OpenFile(path)
	if err != nil {
		return nil, core.NewTaskError(core.ErrUnsupportedFormat, core.BehaviorAbortTask, fmt.Errorf("parsing subtitle %s: %w", path, err))
	}
	return &Subtitles{s}, nil
}

// Parse parses subtitle bytes given a format hint, for callers that
// already hold file content in memory.
func Parse(data []byte, format Format) (*Subtitles, error) {
	r := bytes.NewReader(data)
	var (
		s   *astisub.Subtitles
		err error
	)
	switch format {
	case FormatSRT:
		parsed, e := astisub.ReadFromSRT(r)
		s, err = parsed, e
	case FormatASS, FormatSSA:
		parsed, e := astisub.ReadFromSSA(r)
		s, err = parsed, e
	case FormatVTT:
		parsed, e := astisub.ReadFromWebVTT(r)
		s, err = parsed, e
	case FormatSUB:
		parsed, e := astisub.ReadFromSubViewer(r)
		s, err = parsed, e
	default:
		return nil, core.NewTaskError(core.ErrUnsupportedFormat, core.BehaviorAbortTask, fmt.Errorf("unsupported subtitle format %q", format))
	}
	if err != nil {
		return nil, core.NewTaskError(core.ErrDecodeError, core.BehaviorAbortTask, fmt.Errorf("parsing subtitle as %s: %w", format, err))
	}
	return &Subtitles{s}, nil
}

// Serialize writes the subtitle in the requested format, round-tripping
// at minimum (index, start, end, text) per spec §4.4.
func Serialize(s *Subtitles, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatSRT:
		err = s.WriteToSRT(&buf)
	case FormatASS, FormatSSA:
		err = s.WriteToSSA(&buf)
	case FormatVTT:
		err = s.WriteToWebVTT(&buf)
	case FormatSUB:
		err = s.WriteToSubViewer(&buf)
	default:
		return nil, core.NewTaskError(core.ErrUnsupportedFormat, core.BehaviorAbortTask, fmt.Errorf("unsupported subtitle format %q", format))
	}
	if err != nil {
		return nil, core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	return buf.Bytes(), nil
}

// ShiftBy adds delta to every cue's start and end, clamping at zero, and
// rejects the result if any cue's end would no longer exceed its start
// (spec §4.4's StructuralError), satisfying the shift invariant of §8:
// duration is preserved for every cue whose start does not clamp.
func (s *Subtitles) ShiftBy(delta time.Duration) error {
	for _, item := range s.Items {
		newStart := clampNonNegative(item.StartAt + delta)
		newEnd := clampNonNegative(item.EndAt + delta)
		if newEnd <= newStart {
			return core.NewTaskError(core.ErrKindUnknown, core.BehaviorAbortTask,
				fmt.Errorf("structural error: cue end %v would not exceed start %v after shift", newEnd, newStart))
		}
		item.StartAt = newStart
		item.EndAt = newEnd
	}
	return nil
}

func clampNonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// ConvertTo serializes s in targetFormat and writes it to outPath,
// implementing the convert_to operation's file-naming half for C10's
// `convert` command (the naming rule itself lives in the orchestrator).
func (s *Subtitles) ConvertTo(outPath string, targetFormat Format) error {
	data, err := Serialize(s, targetFormat)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	return nil
}

// FormatFromExtension maps a lowercase file extension (no dot) to a
// Format, or ("", false) if unrecognized.
func FormatFromExtension(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case "srt":
		return FormatSRT, true
	case "ass":
		return FormatASS, true
	case "ssa":
		return FormatSSA, true
	case "vtt":
		return FormatVTT, true
	case "sub":
		return FormatSUB, true
	default:
		return "", false
	}
}

// DeriveOutputPath implements C4's convert_to naming rule: sibling file
// with the extension replaced, or inside outDir if non-empty.
func DeriveOutputPath(sourcePath string, targetFormat Format, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	name := base + "." + string(targetFormat)
	if outDir != "" {
		return filepath.Join(outDir, name)
	}
	return filepath.Join(filepath.Dir(sourcePath), name)
}

// FirstCueStart returns the start time, in seconds, of the subtitle's
// first cue, used by the Sync Detector (C3) as T0.
func (s *Subtitles) FirstCueStart() (float64, bool) {
	if len(s.Items) == 0 {
		return 0, false
	}
	return s.Items[0].StartAt.Seconds(), true
}

// CueStarts returns every cue's start time in seconds, in input order,
// used by the Sync Detector's coverage-fraction confidence term.
func (s *Subtitles) CueStarts() []float64 {
	out := make([]float64, len(s.Items))
	for i, item := range s.Items {
		out[i] = item.StartAt.Seconds()
	}
	return out
}

// SampleText returns a bounded content sample from the first few cues,
// used by the AI Matcher's prompt builder (§4.7 step 3).
func (s *Subtitles) SampleText(maxLen int) string {
	var sb strings.Builder
	for _, item := range s.Items {
		for _, line := range item.Lines {
			sb.WriteString(line.String())
			sb.WriteString(" ")
			if sb.Len() >= maxLen {
				break
			}
		}
		if sb.Len() >= maxLen {
			break
		}
	}
	out := sb.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return strings.TrimSpace(out)
}
