// Package discovery enumerates input roots (files or directories) into a
// deduplicated, canonically-ordered set of MediaFile entries, grounded on
// the teacher's directory-walk discovery pass adapted to SubX's file kinds.
package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/subx-cli/subx/internal/core"
)

// Kind classifies a discovered file for the matcher and synchronizer.
type Kind int

const (
	KindVideo Kind = iota
	KindSubtitle
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindSubtitle:
		return "subtitle"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// MediaFile is spec.md §3's Media File entity.
type MediaFile struct {
	ID        string
	Path      string
	Name      string // basename without extension
	Extension string // lowercase, without dot
	Kind      Kind
	Size      int64
	ModTime   int64
}

var videoExts = map[string]bool{"mkv": true, "mp4": true, "avi": true, "mov": true, "webm": true, "m4v": true, "ts": true, "wmv": true}
var subtitleExts = map[string]bool{"srt": true, "ass": true, "ssa": true, "vtt": true, "sub": true}
var audioExts = map[string]bool{"mp3": true, "wav": true, "flac": true, "aac": true, "ogg": true, "m4a": true}

func classify(ext string) (Kind, bool) {
	switch {
	case videoExts[ext]:
		return KindVideo, true
	case subtitleExts[ext]:
		return KindSubtitle, true
	case audioExts[ext]:
		return KindAudio, true
	default:
		return 0, false
	}
}

// FingerprintID derives the stable 12-hex-digit id from (absolute path,
// size, mtime) per spec.md §3.
func FingerprintID(absPath string, size, modTime int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:%d", absPath, size, modTime)
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Options controls one discovery pass.
type Options struct {
	Roots     []string
	Recursive bool
	// Extensions restricts discovery to this set (lowercase, no dot).
	// A nil/empty set accepts any recognized media/subtitle/audio extension.
	Extensions map[string]bool
}

// Discover enumerates Options.Roots into a canonically sorted,
// duplicate-free []MediaFile. Every element's extension is in Extensions
// (case-insensitively) when Extensions is non-empty, satisfying the
// Discovery invariant of spec.md §8.
func Discover(opts Options) ([]MediaFile, error) {
	seen := make(map[string]bool)
	var out []MediaFile

	for _, root := range opts.Roots {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, core.NewTaskError(core.ErrInvalidPath, core.BehaviorAbortTask, fmt.Errorf("path does not exist: %s", root))
			}
			if os.IsPermission(err) {
				return nil, core.NewTaskError(core.ErrPermissionDenied, core.BehaviorAbortTask, err)
			}
			return nil, core.NewTaskError(core.ErrInvalidPath, core.BehaviorAbortTask, err)
		}

		if !info.IsDir() {
			if err := addFile(root, info, opts, seen, &out); err != nil {
				return nil, err
			}
			continue
		}

		walkErr := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				if os.IsPermission(err) {
					return nil
				}
				return err
			}
			if fi.IsDir() {
				if path != root && !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			return addFile(path, fi, opts, seen, &out)
		})
		if walkErr != nil {
			return nil, core.NewTaskError(core.ErrIoError, core.BehaviorAbortTask, walkErr)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return canonical(out[i].Path) < canonical(out[j].Path)
	})
	return out, nil
}

func addFile(path string, fi os.FileInfo, opts Options, seen map[string]bool, out *[]MediaFile) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if len(opts.Extensions) > 0 {
		if !opts.Extensions[ext] {
			return nil
		}
	}
	kind, ok := classify(ext)
	if !ok && len(opts.Extensions) == 0 {
		return nil
	}

	abs := canonical(path)
	if seen[abs] {
		return nil
	}
	seen[abs] = true

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mtime := fi.ModTime().Unix()
	*out = append(*out, MediaFile{
		ID:        FingerprintID(abs, fi.Size(), mtime),
		Path:      abs,
		Name:      name,
		Extension: ext,
		Kind:      kind,
		Size:      fi.Size(),
		ModTime:   mtime,
	})
	return nil
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}
