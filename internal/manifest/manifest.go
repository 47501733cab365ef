// Package manifest lists the artifacts written for a run with their sha256.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	RunID     string    `json:"runId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

// Build hashes every path. Paths are recorded relative to base when base is
// non-empty and the path lies under it.
func Build(runID, base string, paths []string) (Manifest, error) {
	m := Manifest{RunID: runID, CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, p := range sorted {
		d, err := common.HashFile(p)
		if err != nil {
			return m, fmt.Errorf("hash %s: %w", p, err)
		}
		m.Items = append(m.Items, Item{Path: relTo(base, p), Size: d.Size, Sha256: d.Sha256, Type: typeOf(p)})
	}
	return m, nil
}

func typeOf(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		return "json"
	case ".jsonl":
		return "journal"
	case ".csv":
		return "csv"
	case ".html", ".htm":
		return "html"
	case ".pdf":
		return "pdf"
	case ".log":
		return "log"
	case ".yaml", ".yml", ".toml":
		return "config"
	}
	return "other"
}

func relTo(base, p string) string {
	if base == "" {
		return p
	}
	rel, err := filepath.Rel(base, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}

// Verify rehashes every item relative to base and returns the paths whose
// size or digest no longer match.
func Verify(m Manifest, base string) ([]string, error) {
	var changed []string
	for _, it := range m.Items {
		p := it.Path
		if base != "" && !filepath.IsAbs(p) {
			p = filepath.Join(base, filepath.FromSlash(p))
		}
		d, err := common.HashFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				changed = append(changed, it.Path)
				continue
			}
			return nil, err
		}
		if d.Sha256 != it.Sha256 || d.Size != it.Size {
			changed = append(changed, it.Path)
		}
	}
	return changed, nil
}
