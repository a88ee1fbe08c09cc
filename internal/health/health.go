package health

import (
	"context"
	"fmt"

	"github.com/enneadtab/revit-worker/internal/bridge"
	"go.uber.org/zap"
)

// Document is the slice of the bridge surface the health checks read from.
type Document interface {
	CountElements(ctx context.Context, category string) (int, error)
	Warnings(ctx context.Context) ([]bridge.Warning, error)
	Views(ctx context.Context) ([]bridge.View, error)
	Sheets(ctx context.Context) ([]bridge.Sheet, error)
	LinkedFiles(ctx context.Context) ([]bridge.LinkedFile, error)
}

// Check computes one named metric group from the open document.
type Check interface {
	Name() string
	Run(ctx context.Context, doc Document) (any, error)
}

// Collector runs all checks best-effort: a failing check records its error
// under its own name and never aborts the run. Health metrics are the
// essential stage of a job, so every partial result is worth keeping.
type Collector struct {
	checks []Check
}

func NewCollector(checks ...Check) *Collector {
	if len(checks) == 0 {
		checks = DefaultChecks()
	}
	return &Collector{checks: checks}
}

func DefaultChecks() []Check {
	return []Check{
		&ElementsCheck{Categories: []string{"Walls", "Doors", "Windows", "Rooms", "Furniture"}},
		&WarningsCheck{},
		&ViewsCheck{},
		&SheetsCheck{},
		&LinksCheck{},
	}
}

// Collect runs every check and returns the merged result map.
func (c *Collector) Collect(ctx context.Context, doc Document) map[string]any {
	log := zap.S().Named("health")
	result := make(map[string]any, len(c.checks))

	for _, check := range c.checks {
		value, err := check.Run(ctx, doc)
		if err != nil {
			log.Warnf("health check %q failed: %v", check.Name(), err)
			result[check.Name()] = map[string]string{"error": err.Error()}
			continue
		}
		result[check.Name()] = value
	}
	return result
}

// ElementsCheck counts placed instances per category.
type ElementsCheck struct {
	Categories []string
}

func (c *ElementsCheck) Name() string { return "elements" }

func (c *ElementsCheck) Run(ctx context.Context, doc Document) (any, error) {
	counts := make(map[string]int, len(c.Categories))
	var firstErr error
	for _, category := range c.Categories {
		count, err := doc.CountElements(ctx, category)
		if err != nil {
			// keep counting the rest, a single category failure is not
			// worth losing the whole group
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		counts[category] = count
	}
	if len(counts) == 0 && firstErr != nil {
		return nil, fmt.Errorf("no element counts available: %w", firstErr)
	}
	return counts, nil
}

// WarningsCheck summarizes review warnings.
type WarningsCheck struct{}

func (c *WarningsCheck) Name() string { return "warnings" }

func (c *WarningsCheck) Run(ctx context.Context, doc Document) (any, error) {
	warnings, err := doc.Warnings(ctx)
	if err != nil {
		return nil, err
	}
	critical := 0
	for _, w := range warnings {
		if w.Severity == "error" {
			critical++
		}
	}
	return map[string]int{
		"total_warnings":    len(warnings),
		"critical_warnings": critical,
	}, nil
}

// ViewsCheck summarizes views, flagging the not-on-sheet backlog.
type ViewsCheck struct{}

func (c *ViewsCheck) Name() string { return "views" }

func (c *ViewsCheck) Run(ctx context.Context, doc Document) (any, error) {
	views, err := doc.Views(ctx)
	if err != nil {
		return nil, err
	}
	notOnSheet := 0
	templates := 0
	for _, v := range views {
		if v.IsTemplate {
			templates++
			continue
		}
		if !v.OnSheet {
			notOnSheet++
		}
	}
	return map[string]int{
		"total_views":        len(views),
		"views_not_on_sheet": notOnSheet,
		"view_templates":     templates,
	}, nil
}

// SheetsCheck counts sheets and placeholders.
type SheetsCheck struct{}

func (c *SheetsCheck) Name() string { return "sheets" }

func (c *SheetsCheck) Run(ctx context.Context, doc Document) (any, error) {
	sheets, err := doc.Sheets(ctx)
	if err != nil {
		return nil, err
	}
	placeholders := 0
	for _, s := range sheets {
		if s.IsPlaceholder {
			placeholders++
		}
	}
	return map[string]int{
		"total_sheets":       len(sheets),
		"placeholder_sheets": placeholders,
	}, nil
}
