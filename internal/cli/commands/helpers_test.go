package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subx-cli/subx/internal/core"
)

func writeHelperFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestExitCodeForCancellation(t *testing.T) {
	assert.Equal(t, 130, exitCodeFor(context.Canceled))
}

func TestExitCodeForTaskErrorKind(t *testing.T) {
	err := core.NewConfigError("ai.model", errors.New("bad value"))
	assert.Equal(t, 2, exitCodeFor(err))
}

func TestExitCodeForUnknownErrorDefaultsToUsage(t *testing.T) {
	assert.Equal(t, 2, exitCodeFor(errors.New("unrecognized flag")))
}

func TestDryRunSuffix(t *testing.T) {
	assert.Equal(t, " [dry-run]", dryRunSuffix(true))
	assert.Equal(t, "", dryRunSuffix(false))
}

func TestCommonPrefixLen(t *testing.T) {
	assert.Equal(t, 6, commonPrefixLen("movie.s01e01", "movie.other"))
	assert.Equal(t, 0, commonPrefixLen("a", "b"))
	assert.Equal(t, 3, commonPrefixLen("abc", "abc"))
}

func TestDiscoverPairsMatchesNearestBasename(t *testing.T) {
	dir := t.TempDir()
	writeHelperFile(t, dir, "movie.mkv")
	writeHelperFile(t, dir, "movie.srt")
	writeHelperFile(t, dir, "other.srt")

	pairs, err := discoverPairs([]string{dir}, false)
	assert.NoError(t, err)
	assert.Len(t, pairs, 1)
}
