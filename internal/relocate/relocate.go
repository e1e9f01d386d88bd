// Package relocate implements C8, the Relocation Planner & Executor:
// turning accepted matches into filesystem mutations with collision-safe,
// backup-aware, dry-run-stable semantics per spec.md §4.8.
package relocate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/langtag"
	"github.com/subx-cli/subx/internal/pkg/fsutil"
)

// Mode is the relocation mode of spec.md §4.8.
type Mode int

const (
	ModeNone Mode = iota
	ModeCopy
	ModeMove
)

// PlanItem is spec.md §3's Relocation Plan Item.
type PlanItem struct {
	SourceSubtitlePath string
	TargetSubtitlePath string
	Action             Mode
	RequiresRelocation  bool
	NewName             string
	BackupPath          string
}

// Match is the minimal pair the planner needs: the video and subtitle
// paths of one accepted Match Record, already resolved from discovery.
type Match struct {
	VideoPath    string
	SubtitlePath string
}

// Plan computes a PlanItem for one match per spec §4.8's Planning rules.
// It is called identically for dry-run and real execution, and for a
// cache-hit replan — it never reads requires_relocation/target_path from
// any cached value, only from the current filesystem and mode, which is
// the Bug #21 regression invariant of spec §8.
func Plan(m Match, mode Mode, backupEnabled bool) (*PlanItem, error) {
	videoDir := filepath.Dir(m.VideoPath)
	subtitleDir := filepath.Dir(m.SubtitlePath)

	videoBase := strings.TrimSuffix(filepath.Base(m.VideoPath), filepath.Ext(m.VideoPath))
	subtitleExt := strings.TrimPrefix(filepath.Ext(m.SubtitlePath), ".")
	subtitleBaseNoExt := strings.TrimSuffix(filepath.Base(m.SubtitlePath), filepath.Ext(m.SubtitlePath))

	newName := videoBase
	if lang, ok := langtag.Detect(subtitleBaseNoExt); ok {
		newName += "." + lang
	}
	newName += "." + subtitleExt

	requiresRelocation := mode != ModeNone && canonicalDir(videoDir) != canonicalDir(subtitleDir)

	var targetDir string
	if requiresRelocation {
		targetDir = videoDir
	} else {
		targetDir = subtitleDir
	}
	targetPath := filepath.Join(targetDir, newName)

	item := &PlanItem{
		SourceSubtitlePath: m.SubtitlePath,
		TargetSubtitlePath: targetPath,
		Action:             mode,
		RequiresRelocation:  requiresRelocation,
		NewName:             newName,
	}

	if backupEnabled {
		if info, err := os.Stat(targetPath); err == nil && !info.IsDir() {
			if !sameContent(targetPath, m.SubtitlePath) {
				item.BackupPath = nextBackupPath(targetPath)
			}
		}
	}

	return item, nil
}

func canonicalDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}

func nextBackupPath(target string) string {
	candidate := target + ".bak"
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	for n := 1; ; n++ {
		candidate = fmt.Sprintf("%s.bak.%d", target, n)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func sameContent(a, b string) bool {
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return infoA.Size() == infoB.Size()
}

// Execute applies one PlanItem's filesystem mutation. dryRun skips every
// mutation, per spec §4.8's Dry-run clause: the plan is reported, not
// applied, and is byte-identical to what Execute would have done given
// an unchanged filesystem.
func Execute(item *PlanItem, dryRun bool) error {
	if dryRun {
		return nil
	}

	sourceAbs, _ := filepath.Abs(item.SourceSubtitlePath)
	targetAbs, _ := filepath.Abs(item.TargetSubtitlePath)
	if sourceAbs == targetAbs {
		if item.Action == ModeNone {
			return nil
		}
	}

	if _, err := os.Stat(item.TargetSubtitlePath); err == nil {
		same, err := isSameFile(item.TargetSubtitlePath, item.SourceSubtitlePath)
		if err != nil {
			return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
		}
		if same {
			return nil
		}
		if item.BackupPath == "" {
			return &core.TaskError{
				Kind:     core.ErrTargetCollision,
				Behavior: core.BehaviorAbortTask,
				Key:      "general.backup_enabled",
				Err:      fmt.Errorf("destination %s exists and differs from source; enable general.backup_enabled or resolve manually", item.TargetSubtitlePath),
			}
		}
		if err := os.Rename(item.TargetSubtitlePath, item.BackupPath); err != nil {
			return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, fmt.Errorf("backing up existing destination: %w", err))
		}
	}

	nopLogger := zerolog.Nop()
	if err := fsutil.CheckDiskSpace(filepath.Dir(item.TargetSubtitlePath), requiredMB(item.SourceSubtitlePath), &nopLogger); err != nil {
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}

	switch item.Action {
	case ModeNone:
		if filepath.Clean(item.SourceSubtitlePath) != filepath.Clean(item.TargetSubtitlePath) {
			return renameOrCopyMove(item.SourceSubtitlePath, item.TargetSubtitlePath, true)
		}
		return nil
	case ModeCopy:
		return copyFile(item.SourceSubtitlePath, item.TargetSubtitlePath)
	case ModeMove:
		return renameOrCopyMove(item.SourceSubtitlePath, item.TargetSubtitlePath, true)
	default:
		return nil
	}
}

func requiredMB(path string) int {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	mb := info.Size() / (1024 * 1024)
	if mb < 1 {
		return 1
	}
	return int(mb)
}

func isSameFile(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	resolvedA, errA := filepath.EvalSymlinks(absA)
	resolvedB, errB := filepath.EvalSymlinks(absB)
	if errA == nil && errB == nil {
		return resolvedA == resolvedB, nil
	}
	return absA == absB, nil
}

func renameOrCopyMove(src, dst string, removeSrc bool) error {
	same, err := fsutil.SameFilesystem(filepath.Dir(src), filepath.Dir(dst))
	if err == nil && same {
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if removeSrc {
		if err := os.Remove(src); err != nil {
			return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, fmt.Errorf("removing source after move: %w", err))
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	return nil
}
