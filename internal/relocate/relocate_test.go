package relocate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subx-cli/subx/internal/core"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPlanSameDirRequiresNoRelocation(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "movie.mkv")
	subPath := filepath.Join(dir, "movie.en.srt")
	writeFile(t, videoPath, "v")
	writeFile(t, subPath, "s")

	item, err := Plan(Match{VideoPath: videoPath, SubtitlePath: subPath}, ModeMove, false)
	require.NoError(t, err)
	assert.False(t, item.RequiresRelocation)
	assert.Equal(t, "movie.en.srt", item.NewName)
}

func TestPlanDifferentDirRequiresRelocation(t *testing.T) {
	videoDir := t.TempDir()
	subDir := t.TempDir()
	videoPath := filepath.Join(videoDir, "movie.mkv")
	subPath := filepath.Join(subDir, "subtitle.srt")
	writeFile(t, videoPath, "v")
	writeFile(t, subPath, "s")

	item, err := Plan(Match{VideoPath: videoPath, SubtitlePath: subPath}, ModeMove, false)
	require.NoError(t, err)
	assert.True(t, item.RequiresRelocation)
	assert.Equal(t, filepath.Join(videoDir, "movie.srt"), item.TargetSubtitlePath)
}

func TestPlanModeNoneNeverRequiresRelocation(t *testing.T) {
	videoDir := t.TempDir()
	subDir := t.TempDir()
	videoPath := filepath.Join(videoDir, "movie.mkv")
	subPath := filepath.Join(subDir, "subtitle.srt")
	writeFile(t, videoPath, "v")
	writeFile(t, subPath, "s")

	item, err := Plan(Match{VideoPath: videoPath, SubtitlePath: subPath}, ModeNone, false)
	require.NoError(t, err)
	assert.False(t, item.RequiresRelocation)
}

func TestPlanNamesLanguageTagFromSubtitleBasename(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "show.mkv")
	subPath := filepath.Join(dir, "whatever.fr.srt")
	writeFile(t, videoPath, "v")
	writeFile(t, subPath, "s")

	item, err := Plan(Match{VideoPath: videoPath, SubtitlePath: subPath}, ModeMove, false)
	require.NoError(t, err)
	assert.Equal(t, "show.fr.srt", item.NewName)
}

func TestPlanSetsBackupPathWhenTargetDiffers(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "movie.mkv")
	subPath := filepath.Join(dir, "other.en.srt")
	writeFile(t, videoPath, "v")
	writeFile(t, subPath, "short")
	writeFile(t, filepath.Join(dir, "movie.en.srt"), "this-is-a-different-length-content")

	item, err := Plan(Match{VideoPath: videoPath, SubtitlePath: subPath}, ModeNone, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "movie.en.srt.bak"), item.BackupPath)
}

func TestExecuteDryRunNeverTouchesFilesystem(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.srt")
	dst := filepath.Join(dir, "b.srt")
	writeFile(t, src, "content")

	item := &PlanItem{SourceSubtitlePath: src, TargetSubtitlePath: dst, Action: ModeMove}
	require.NoError(t, Execute(item, true))

	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestExecuteMoveRelocatesFile(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "a.srt")
	dst := filepath.Join(dstDir, "b.srt")
	writeFile(t, src, "content")

	item := &PlanItem{SourceSubtitlePath: src, TargetSubtitlePath: dst, Action: ModeMove}
	require.NoError(t, Execute(item, false))

	_, err := os.Stat(dst)
	assert.NoError(t, err)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestExecuteCopyLeavesSourceInPlace(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "a.srt")
	dst := filepath.Join(dstDir, "b.srt")
	writeFile(t, src, "content")

	item := &PlanItem{SourceSubtitlePath: src, TargetSubtitlePath: dst, Action: ModeCopy}
	require.NoError(t, Execute(item, false))

	_, err := os.Stat(dst)
	assert.NoError(t, err)
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestExecuteCollisionWithoutBackupPathErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.srt")
	dst := filepath.Join(dir, "b.srt")
	writeFile(t, src, "content-a")
	writeFile(t, dst, "content-b-different-length")

	item := &PlanItem{SourceSubtitlePath: src, TargetSubtitlePath: dst, Action: ModeMove}
	err := Execute(item, false)
	require.Error(t, err)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, core.ErrTargetCollision, taskErr.Kind)
}

func TestExecuteCollisionWithBackupPathRenamesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.srt")
	dst := filepath.Join(dir, "b.srt")
	backup := filepath.Join(dir, "b.srt.bak")
	writeFile(t, src, "content-a")
	writeFile(t, dst, "content-b-different-length")

	item := &PlanItem{SourceSubtitlePath: src, TargetSubtitlePath: dst, Action: ModeMove, BackupPath: backup}
	require.NoError(t, Execute(item, false))

	_, err := os.Stat(backup)
	assert.NoError(t, err)
	_, err = os.Stat(dst)
	assert.NoError(t, err)
}

func TestExecuteSameTargetAsSourceIsNoop(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.srt")
	writeFile(t, src, "content")

	item := &PlanItem{SourceSubtitlePath: src, TargetSubtitlePath: src, Action: ModeNone}
	assert.NoError(t, Execute(item, false))
}
