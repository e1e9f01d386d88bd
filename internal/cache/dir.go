package cache

import "github.com/adrg/xdg"

// DefaultDir resolves the platform cache directory for the match cache,
// mirroring the teacher's xdg-based directory resolution for its own
// persisted state.
func DefaultDir() (string, error) {
	return xdg.CacheFile("subx/matches")
}
