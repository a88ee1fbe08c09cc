package health

import (
	"context"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxLinkCheckWorkers bounds the existence-check pool. The checks are pure
// filesystem stats, often against network shares, so a bounded fan-out pays
// off without touching the host API.
const maxLinkCheckWorkers = 16

// LinkStatus is the probed state of one external reference.
type LinkStatus struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	Type           string `json:"type"`
	FileExists     bool   `json:"file_exists"`
	NeedsAttention bool   `json:"needs_attention"`
}

// LinksCheck lists the document's external references and probes their
// backing files in parallel.
type LinksCheck struct{}

func (c *LinksCheck) Name() string { return "linked_files" }

func (c *LinksCheck) Run(ctx context.Context, doc Document) (any, error) {
	links, err := doc.LinkedFiles(ctx)
	if err != nil {
		return nil, err
	}

	// dedupe paths before hitting the filesystem, several links can share
	// one backing file
	unique := make(map[string]struct{}, len(links))
	for _, link := range links {
		if link.Path != "" {
			unique[link.Path] = struct{}{}
		}
	}

	exists := checkPathsExist(ctx, unique)

	statuses := make([]LinkStatus, 0, len(links))
	missing := 0
	for _, link := range links {
		ok := exists[link.Path]
		if !ok {
			missing++
		}
		statuses = append(statuses, LinkStatus{
			Name:           link.Name,
			Path:           link.Path,
			Type:           link.Type,
			FileExists:     ok,
			NeedsAttention: !ok,
		})
	}

	return map[string]any{
		"total_links":   len(links),
		"missing_links": missing,
		"links":         statuses,
	}, nil
}

func checkPathsExist(ctx context.Context, paths map[string]struct{}) map[string]bool {
	results := make(map[string]bool, len(paths))
	if len(paths) == 0 {
		return results
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(maxLinkCheckWorkers, max(1, runtime.NumCPU())))

	for p := range paths {
		p := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return nil
			}
			_, statErr := os.Stat(p)
			mu.Lock()
			results[p] = statErr == nil
			mu.Unlock()
			return nil
		})
	}
	// workers never return errors, Wait only joins them
	_ = g.Wait()
	return results
}
