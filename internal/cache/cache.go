// Package cache implements C6, the Match Cache: a content-addressed store
// mapping a fingerprint of (video set, subtitle set, provider, model) to a
// prior AI matcher decision, persisted with the teacher's
// write-to-sibling-then-rename atomic write pattern (internal/pkg/crash's
// report writer uses the same idiom for its zip bundles).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/subx-cli/subx/internal/core"
)

// magic + version identify the on-disk entry format so a future layout
// change can reject-and-recompute instead of misparsing, per spec §4.6.
var magic = [4]byte{'S', 'C', 'A', 'C'} // SubX CAche
const currentVersion byte = 1

// MatchRecord is spec.md §3's Match Record.
type MatchRecord struct {
	VideoID      string   `json:"video_id"`
	SubtitleID   string   `json:"subtitle_id"`
	Confidence   float64  `json:"confidence"`
	MatchFactors []string `json:"match_factors"`
	Reasoning    string   `json:"reasoning"`
}

// Entry is spec.md §3's Cache Entry.
type Entry struct {
	Fingerprint string        `json:"fingerprint"`
	CreatedAt   int64         `json:"created_at"`
	Matches     []MatchRecord `json:"matches"`
}

// Resolver validates that a file id still resolves to an extant file with
// matching size/mtime, the guard behind the cache-soundness invariant of
// spec §8. Implemented by the discovery package's MediaFile index.
type Resolver func(fileID string) bool

// Store is a directory of one file per key. A single store-wide mutex
// serializes all concurrent Puts (spec §4.6: "concurrent
// puts to the same key serialize and last-writer-wins").
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore opens (creating if needed) a cache directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	return &Store{dir: dir}, nil
}

// Key derives the deterministic fingerprint of spec.md §4.6:
// SHA-256(join("|", sort(video_ids ∪ subtitle_ids)), provider, model).
func Key(videoIDs, subtitleIDs []string, provider, model string) string {
	all := make([]string, 0, len(videoIDs)+len(subtitleIDs))
	all = append(all, videoIDs...)
	all = append(all, subtitleIDs...)
	sort.Strings(all)
	joined := strings.Join(all, "|")
	h := sha256.New()
	h.Write([]byte(joined))
	h.Write([]byte{0})
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.dir, key+".cache")
}

// Get returns the entry for key, or (nil, false) on a miss, a version
// mismatch, or a resolve failure (any referenced file id no longer
// resolves) — all treated as a miss so stale entries never drive
// filesystem mutation, per the cache-soundness invariant.
func (s *Store) Get(key string, resolve Resolver) (*Entry, bool) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		return nil, false
	}
	if len(data) < 5 || [4]byte(data[:4]) != magic {
		return nil, false
	}
	version := data[4]
	if version != currentVersion {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data[5:], &entry); err != nil {
		return nil, false
	}
	for _, m := range entry.Matches {
		if resolve != nil && (!resolve(m.VideoID) || !resolve(m.SubtitleID)) {
			return nil, false
		}
	}
	return &entry, true
}

// Put atomically writes entry under key using write-temp-then-rename, and
// serializes concurrent writers to the same store per spec §4.6. now is
// an injected clock so tests stay deterministic.
func (s *Store) Put(key string, entry Entry, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Fingerprint = key
	entry.CreatedAt = now

	body, err := json.Marshal(entry)
	if err != nil {
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}

	header := make([]byte, 5)
	copy(header[:4], magic[:])
	header[4] = currentVersion

	final := s.pathFor(key)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	if _, err := f.Write(header); err != nil {
		f.Close()
		os.Remove(tmp)
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	return nil
}

// PrunePolicy selects which entries Prune removes.
type PrunePolicy func(key string, entry Entry) bool

// Prune removes every entry for which policy returns true, returning the
// count removed. Used by `subx cache clear` with a policy that matches
// every entry.
func (s *Store) Prune(policy PrunePolicy) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	removed := 0
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".cache") {
			continue
		}
		key := strings.TrimSuffix(de.Name(), ".cache")
		data, err := os.ReadFile(filepath.Join(s.dir, de.Name()))
		if err != nil || len(data) < 5 {
			continue
		}
		var entry Entry
		_ = json.Unmarshal(data[5:], &entry)
		if policy(key, entry) {
			if err := os.Remove(filepath.Join(s.dir, de.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats reports basic cache directory statistics for `subx cache stats`.
type Stats struct {
	EntryCount int
	TotalBytes int64
}

func (s *Store) Stats() (Stats, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Stats{}, core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, err)
	}
	var stats Stats
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".cache") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		stats.EntryCount++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}

// Clear removes every cache entry.
func (s *Store) Clear() error {
	_, err := s.Prune(func(string, Entry) bool { return true })
	return err
}
