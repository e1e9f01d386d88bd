package matcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subx-cli/subx/internal/cache"
	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/discovery"
	"github.com/subx-cli/subx/internal/llms"
)

type fakeProvider struct {
	name     string
	response llms.Response
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req llms.Request) (llms.Response, error) {
	f.calls++
	return f.response, f.err
}

func newTestMatcher(t *testing.T, provider llms.Provider, gate float64) *Matcher {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	return New(provider, store, Options{Provider: "custom", Model: "test-model", ConfidenceGate: gate}, zerolog.Nop(), func() int64 { return 1000 })
}

// discoverPair writes a real video and subtitle file to disk and returns
// their discovered MediaFile entries, so a Matcher's cache-resolver (which
// re-stats the file at its recorded path) can succeed as it would in
// production.
func discoverPair(t *testing.T) (discovery.MediaFile, discovery.MediaFile) {
	t.Helper()
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "movie.mkv")
	subPath := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(videoPath, []byte("video"), 0o644))
	require.NoError(t, os.WriteFile(subPath, []byte("subtitle"), 0o644))

	files, err := discovery.Discover(discovery.Options{Roots: []string{dir}})
	require.NoError(t, err)
	require.Len(t, files, 2)

	var video, sub discovery.MediaFile
	for _, f := range files {
		switch f.Kind {
		case discovery.KindVideo:
			video = f
		case discovery.KindSubtitle:
			sub = f
		}
	}
	require.NotEmpty(t, video.ID)
	require.NotEmpty(t, sub.ID)
	return video, sub
}

func matchResponse(video, sub discovery.MediaFile, confidence int) llms.Response {
	return llms.Response{Content: fmt.Sprintf(
		`{"matches":[{"video_file_id":%q,"subtitle_file_id":%q,"confidence":%d}],"reasoning":"names align"}`,
		video.ID, sub.ID, confidence)}
}

func TestMatchAcceptsHighConfidenceResult(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &fakeProvider{response: matchResponse(video, sub, 95)}
	m := newTestMatcher(t, provider, 50)

	decision, err := m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, decision.State)
	require.Len(t, decision.Matches, 1)
	assert.Equal(t, video.ID, decision.Matches[0].VideoID)
	assert.Equal(t, 1, provider.calls)
}

func TestMatchRejectsBelowConfidenceGate(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &fakeProvider{response: matchResponse(video, sub, 10)}
	m := newTestMatcher(t, provider, 50)

	decision, err := m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.NoError(t, err)
	assert.Empty(t, decision.Matches)
}

func TestMatchDropsUnknownFileIDs(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &fakeProvider{response: llms.Response{Content: fmt.Sprintf(
		`{"matches":[{"video_file_id":"unknown","subtitle_file_id":%q,"confidence":95}],"reasoning":"x"}`, sub.ID)}}
	m := newTestMatcher(t, provider, 50)

	decision, err := m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.NoError(t, err)
	assert.Empty(t, decision.Matches)
}

func TestMatchUsesCacheOnSecondCall(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &fakeProvider{response: matchResponse(video, sub, 95)}
	m := newTestMatcher(t, provider, 50)

	_, err := m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.NoError(t, err)
	_, err = m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "second call should hit cache, not the provider")
}

func TestMatchProviderErrorReturnsProviderErrorKind(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &fakeProvider{err: errors.New("network down")}
	m := newTestMatcher(t, provider, 50)

	_, err := m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.Error(t, err)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, core.ErrProviderError, taskErr.Kind)
}

func TestMatchMalformedJSONReturnsProviderError(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &fakeProvider{response: llms.Response{Content: `not json`}}
	m := newTestMatcher(t, provider, 50)

	_, err := m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.Error(t, err)
	var taskErr *core.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, core.ErrProviderError, taskErr.Kind)
}

type flakyEnvelopeProvider struct {
	badResponses int
	good         llms.Response
	calls        int
}

func (f *flakyEnvelopeProvider) Name() string { return "flaky" }

func (f *flakyEnvelopeProvider) Complete(ctx context.Context, req llms.Request) (llms.Response, error) {
	f.calls++
	if f.calls <= f.badResponses {
		return llms.Response{Content: "not json"}, nil
	}
	return f.good, nil
}

func TestMatchRetriesParseFailureUntilSuccess(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &flakyEnvelopeProvider{badResponses: 2, good: matchResponse(video, sub, 95)}
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	m := New(provider, store, Options{Provider: "custom", Model: "test-model", ConfidenceGate: 50, ParseRetryAttempts: 3}, zerolog.Nop(), func() int64 { return 1000 })

	decision, err := m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, decision.State)
	assert.Equal(t, 3, provider.calls)
}

func TestMatchParseFailureExhaustsRetries(t *testing.T) {
	video, sub := discoverPair(t)
	provider := &flakyEnvelopeProvider{badResponses: 5, good: matchResponse(video, sub, 95)}
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	m := New(provider, store, Options{Provider: "custom", Model: "test-model", ConfidenceGate: 50, ParseRetryAttempts: 2}, zerolog.Nop(), func() int64 { return 1000 })

	_, err = m.Match(context.Background(), []discovery.MediaFile{video}, []discovery.MediaFile{sub}, nil)
	require.Error(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestParseEnvelopeStripsCodeFence(t *testing.T) {
	content := "```json\n{\"matches\":[],\"reasoning\":\"none\"}\n```"
	matches, reasoning, err := parseEnvelope(content)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, "none", reasoning)
}

func TestParseEnvelopeMissingMatchesArray(t *testing.T) {
	_, _, err := parseEnvelope(`{"reasoning":"x"}`)
	assert.Error(t, err)
}

func TestParseEnvelopeMissingRequiredIDs(t *testing.T) {
	_, _, err := parseEnvelope(`{"matches":[{"confidence":90}]}`)
	assert.Error(t, err)
}

func TestStripCodeFencePlainJSONUnaffected(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
