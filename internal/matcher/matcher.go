// Package matcher implements C7, the AI Matcher: builds a prompt from
// discovered files, queries an llms.Provider, parses the strict-JSON
// response envelope, and applies a confidence gate — consulting and then
// updating the Match Cache (C6) around the network round trip.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/subx-cli/subx/internal/cache"
	"github.com/subx-cli/subx/internal/core"
	"github.com/subx-cli/subx/internal/discovery"
	"github.com/subx-cli/subx/internal/llms"
)

// State is the state-machine label of spec.md §4.7.
type State string

const (
	StateIdle            State = "Idle"
	StatePromptBuilt      State = "PromptBuilt"
	StateRequesting       State = "Requesting"
	StateParsingResponse  State = "ParsingResponse"
	StateValidating       State = "Validating"
	StateAccepted         State = "Accepted"
	StateRejected         State = "Rejected"
)

// Decision is the outcome of one Match call.
type Decision struct {
	State   State
	Matches []cache.MatchRecord
	Reason  string
}

// Options carries the ai.* configuration leaves the matcher needs.
type Options struct {
	Provider        string
	Model           string
	Temperature     float64
	MaxSampleLength int
	ConfidenceGate  float64 // minimum confidence ∈ [0,100] to accept a match

	// ParseRetryAttempts bounds how many times a non-conforming response
	// envelope re-enters Requesting (spec.md §4.7 step 6's state machine:
	// parse failures retry, just like the HTTP-layer retries
	// llms.RetryingProvider already performs around Complete). Treated
	// as 1 (no retry) when <= 0.
	ParseRetryAttempts int
}

// Matcher ties together the LLM provider and the match cache.
type Matcher struct {
	provider llms.Provider
	store    *cache.Store
	opts     Options
	logger   zerolog.Logger
	now      func() int64
}

func New(provider llms.Provider, store *cache.Store, opts Options, logger zerolog.Logger, now func() int64) *Matcher {
	return &Matcher{provider: provider, store: store, opts: opts, logger: logger, now: now}
}

// Match implements the full protocol of spec.md §4.7 steps 1-9.
func (m *Matcher) Match(ctx context.Context, videos, subtitles []discovery.MediaFile, sampleText map[string]string) (*Decision, error) {
	videoIDs := ids(videos)
	subtitleIDs := ids(subtitles)

	key := cache.Key(videoIDs, subtitleIDs, m.opts.Provider, m.opts.Model)

	index := make(map[string]discovery.MediaFile, len(videos)+len(subtitles))
	for _, f := range videos {
		index[f.ID] = f
	}
	for _, f := range subtitles {
		index[f.ID] = f
	}
	resolver := func(id string) bool {
		f, ok := index[id]
		if !ok {
			return false
		}
		// Resolve against the discovered file's own current size/mtime: a
		// stale cache entry whose file has since changed no longer
		// resolves, which is exactly the soundness guard cache.Get needs.
		fresh, err := discovery.Discover(discovery.Options{Roots: []string{f.Path}})
		if err != nil || len(fresh) != 1 {
			return false
		}
		return fresh[0].ID == f.ID
	}

	if entry, ok := m.store.Get(key, resolver); ok {
		return &Decision{State: StateAccepted, Matches: entry.Matches, Reason: "cache hit"}, nil
	}

	prompt, systemPrompt := m.buildPrompt(videos, subtitles, sampleText)
	req := llms.Request{
		Model:       m.opts.Model,
		Temperature: m.opts.Temperature,
		Messages: []llms.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	// A non-conforming envelope re-enters Requesting rather than failing
	// the task outright, per the state machine's "Retries reenter
	// Requesting from ParsingResponse" rule.
	attempts := m.opts.ParseRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var matches []parsedMatch
	var reasoning string
	var parseErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := m.provider.Complete(ctx, req)
		if err != nil {
			return &Decision{State: StateRejected, Reason: err.Error()}, core.NewTaskError(core.ErrProviderError, core.BehaviorAbortTask, err)
		}

		matches, reasoning, parseErr = parseEnvelope(resp.Content)
		if parseErr == nil {
			break
		}
		m.logger.Warn().Err(parseErr).Int("attempt", attempt).Msg("AI response envelope failed to parse, retrying")
	}
	if parseErr != nil {
		return &Decision{State: StateRejected, Reason: parseErr.Error()}, core.NewTaskError(core.ErrProviderError, core.BehaviorAbortTask, fmt.Errorf("parsing AI response: %w", parseErr))
	}

	accepted := make([]cache.MatchRecord, 0, len(matches))
	for _, mr := range matches {
		if mr.Confidence < m.opts.ConfidenceGate {
			continue
		}
		if _, videoKnown := index[mr.VideoID]; !videoKnown {
			continue
		}
		if _, subtitleKnown := index[mr.SubtitleID]; !subtitleKnown {
			continue
		}
		accepted = append(accepted, cache.MatchRecord{
			VideoID:      mr.VideoID,
			SubtitleID:   mr.SubtitleID,
			Confidence:   mr.Confidence,
			MatchFactors: mr.MatchFactors,
			Reasoning:    reasoning,
		})
	}

	if err := m.store.Put(key, cache.Entry{Matches: accepted}, m.now()); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist match cache entry")
	}

	return &Decision{State: StateAccepted, Matches: accepted, Reason: reasoning}, nil
}

func ids(files []discovery.MediaFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.ID
	}
	sort.Strings(out)
	return out
}

const systemPromptTemplate = `You are a file-matching assistant. Given lists of video and subtitle ` +
	`files identified by id, determine which subtitle belongs with which video. ` +
	`Respond with strict JSON only, of the exact form: ` +
	`{"matches": [{"video_file_id": "...", "subtitle_file_id": "...", "confidence": 0-100}], "reasoning": "..."}`

func (m *Matcher) buildPrompt(videos, subtitles []discovery.MediaFile, sampleText map[string]string) (prompt, system string) {
	var sb strings.Builder
	sb.WriteString("Video files:\n")
	for _, v := range videos {
		fmt.Fprintf(&sb, "- id=%s name=%q\n", v.ID, v.Name)
	}
	sb.WriteString("\nSubtitle files:\n")
	for _, s := range subtitles {
		sample := sampleText[s.ID]
		if len(sample) > m.opts.MaxSampleLength {
			sample = sample[:m.opts.MaxSampleLength]
		}
		if sample != "" {
			fmt.Fprintf(&sb, "- id=%s name=%q sample=%q\n", s.ID, s.Name, sample)
		} else {
			fmt.Fprintf(&sb, "- id=%s name=%q\n", s.ID, s.Name)
		}
	}
	return sb.String(), systemPromptTemplate
}

// parsedMatch mirrors one element of the AI response's "matches" array.
type parsedMatch struct {
	VideoID      string
	SubtitleID   string
	Confidence   float64
	MatchFactors []string
}

// parseEnvelope tolerantly parses the strict-JSON envelope of spec.md
// §4.7 step 3 using gjson, so minor formatting deviations (e.g. a
// trailing code fence some models wrap JSON in) don't break parsing.
func parseEnvelope(content string) ([]parsedMatch, string, error) {
	content = stripCodeFence(content)
	if !gjson.Valid(content) {
		return nil, "", fmt.Errorf("AI response is not valid JSON")
	}
	root := gjson.Parse(content)
	matchesResult := root.Get("matches")
	if !matchesResult.Exists() || !matchesResult.IsArray() {
		return nil, "", fmt.Errorf("AI response missing \"matches\" array")
	}

	var matches []parsedMatch
	var parseErr error
	matchesResult.ForEach(func(_, value gjson.Result) bool {
		videoID := value.Get("video_file_id").String()
		subtitleID := value.Get("subtitle_file_id").String()
		if videoID == "" || subtitleID == "" {
			parseErr = fmt.Errorf("match entry missing video_file_id or subtitle_file_id")
			return false
		}
		matches = append(matches, parsedMatch{
			VideoID:    videoID,
			SubtitleID: subtitleID,
			Confidence: value.Get("confidence").Float(),
		})
		return true
	})
	if parseErr != nil {
		return nil, "", parseErr
	}

	reasoning := root.Get("reasoning").String()
	return matches, reasoning, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
