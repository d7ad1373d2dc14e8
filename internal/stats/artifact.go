package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Meta describes the run that produced the artifact.
type Meta struct {
	TotalGames   int    `json:"total_games"`
	PatchGames   int    `json:"patch_games"`
	CurrentPatch string `json:"current_patch"`
	GeneratedAt  string `json:"generated_at"` // RFC3339
	SampleSize   int    `json:"sample_size"`  // player pool target per region
}

// Artifact is the single JSON document a run emits.
type Artifact struct {
	Meta         Meta                          `json:"meta"`
	Regions      map[string]RegionStats        `json:"regions"`
	Leaderboards map[string][]LeaderboardEntry `json:"leaderboards"`
}

// WriteAtomic writes the artifact to path via a temp file and rename, so
// readers never observe a partial document.
func WriteAtomic(path string, a *Artifact) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish artifact: %w", err)
	}
	return nil
}
