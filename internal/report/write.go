package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/manifest"
)

// Formats lists the output formats WriteAll understands.
var Formats = []string{"json", "csv", "html", "pdf"}

var writers = map[string]func(Report, string) error{
	"json": SaveJSON,
	"csv":  SaveCSV,
	"html": SaveHTML,
	"pdf":  SavePDF,
}

// FileName is the base name used for every rendering of a run.
func FileName(rep Report, format string) string {
	id := rep.RunID
	if id == "" {
		id = "run"
	}
	return fmt.Sprintf("cert-%s.%s", id, format)
}

// WriteAll renders rep in every requested format under dir concurrently and
// returns the written paths keyed by format. An empty list writes them all.
func WriteAll(ctx context.Context, rep Report, dir string, formats []string) (map[string]string, error) {
	if len(formats) == 0 {
		formats = Formats
	}
	for _, f := range formats {
		if _, ok := writers[strings.ToLower(f)]; !ok {
			return nil, fmt.Errorf("unknown report format %q", f)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	paths := make(map[string]string, len(formats))
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range formats {
		format := strings.ToLower(f)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := filepath.Join(dir, FileName(rep, format))
			if err := writers[format](rep, out); err != nil {
				return fmt.Errorf("write %s report: %w", format, err)
			}
			common.Debugf("report %s written to %s", format, out)
			mu.Lock()
			paths[format] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Publish writes every requested format, then a manifest covering those
// files plus any extra files that exist (the run journal). It returns the
// paths of everything written, sorted, the manifest included.
func Publish(ctx context.Context, rep Report, dir string, formats []string, extra ...string) ([]string, error) {
	written, err := WriteAll(ctx, rep, dir, formats)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(written)+len(extra)+1)
	for _, p := range written {
		files = append(files, p)
	}
	for _, p := range extra {
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	m, err := manifest.Build(rep.RunID, dir, files)
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(dir, FileName(rep, "manifest.json"))
	if err := manifest.Save(m, manifestPath); err != nil {
		return nil, err
	}
	files = append(files, manifestPath)
	sort.Strings(files)
	return files, nil
}
