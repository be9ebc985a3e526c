// Package render turns coverage reports into terminal text, JSON and Markdown.
package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/ppiankov/policygap/internal/coverage"
	"github.com/ppiankov/policygap/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Options controls presentation only; report content is never altered
type Options struct {
	Color         bool // ANSI colour bands in terminal output
	IncludeFooter bool // footer line in Markdown output
}

// Renderer renders reports
type Renderer struct {
	opts     Options
	markdown *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer(opts Options) (*Renderer, error) {
	tmpl, err := template.New("report.md.tmpl").Funcs(templateFuncs()).ParseFS(templateFS, "templates/report.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse markdown template: %w", err)
	}
	return &Renderer{opts: opts, markdown: tmpl}, nil
}

// Summary is the short plain-text view printed after every run
func (r *Renderer) Summary(report model.CoverageReport) string {
	var b strings.Builder

	b.WriteString("Coverage Report\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "Overall coverage: %s\n", r.colorize(report.OverallCoveragePercent, fmt.Sprintf("%.0f%%", report.OverallCoveragePercent)))
	fmt.Fprintf(&b, "Sub-categories: %d (%d covered, %d partial, %d uncovered)\n",
		report.TotalSubCategories, report.CoveredCount, report.PartialCount, report.UncoveredCount)
	fmt.Fprintf(&b, "Scenarios: %d", report.TotalScenarios)
	if report.UntaggedScenarios > 0 {
		fmt.Fprintf(&b, " (%d untagged)", report.UntaggedScenarios)
	}
	b.WriteString("\n")

	if len(report.Gaps) > 0 {
		fmt.Fprintf(&b, "\nGaps (%d):\n", len(report.Gaps))
		for i, gap := range report.Gaps {
			fmt.Fprintf(&b, "  G%d. %s\n", i+1, gap)
		}
	} else {
		b.WriteString("\nNo coverage gaps.\n")
	}

	if len(report.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range report.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}

	return b.String()
}

// Table lists every sub-category with its percent, scenario count and status icon
func (r *Renderer) Table(report model.CoverageReport) string {
	width := len("Sub-Category")
	for _, e := range report.SubCategoryCoverage {
		if n := len(e.SubCategoryName) + len(e.SubCategoryID) + 3; n > width {
			width = n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %-14s  %s\n", width, "Sub-Category", "Coverage", "Status")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", width+26))
	for _, e := range report.SubCategoryCoverage {
		name := fmt.Sprintf("%s (%s)", e.SubCategoryName, e.SubCategoryID)
		cov := fmt.Sprintf("%.0f%% (%d)", e.CoveragePercent, e.ScenarioCount)
		fmt.Fprintf(&b, "%-*s  %-14s  %s\n", width, name, cov, r.colorize(e.CoveragePercent, StatusIcon(e.CoverageStatus)))
	}
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", width+26))
	total := fmt.Sprintf("Total (%d✓ %d~ %d✗)", report.CoveredCount, report.PartialCount, report.UncoveredCount)
	fmt.Fprintf(&b, "%-*s  %s\n", width, total, r.colorize(report.OverallCoveragePercent, fmt.Sprintf("%.0f%%", report.OverallCoveragePercent)))

	return b.String()
}

// Heatmap draws one bar per sub-category, grouped by parent category
func (r *Renderer) Heatmap(report model.CoverageReport) string {
	var b strings.Builder
	for _, row := range HeatmapRows(report.HeatmapData) {
		fmt.Fprintf(&b, "%s:\n", row.Parent)
		for _, c := range row.Cells {
			bar := fmt.Sprintf("[%s] %.0f%%", Bar(c.Percent, 10), c.Percent)
			fmt.Fprintf(&b, "  %s: %s\n", c.Name, r.colorize(c.Percent, bar))
		}
	}
	return b.String()
}

// Delta renders a comparison between two reports
func (r *Renderer) Delta(d coverage.ReportDelta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall coverage: %.0f%% -> %s (%+.1f)\n",
		d.OverallBefore, r.colorize(d.OverallAfter, fmt.Sprintf("%.0f%%", d.OverallAfter)), d.OverallDelta)
	fmt.Fprintf(&b, "Scenarios: %+d\n", d.ScenarioDelta)

	if !d.Changed() {
		b.WriteString("No coverage change.\n")
		return b.String()
	}

	lines := []struct {
		label string
		ids   []string
	}{
		{"Newly covered", d.NewlyCovered},
		{"Improved", d.Improved},
		{"Regressed", d.Regressed},
		{"Opened gaps", d.OpenedGaps},
		{"Closed gaps", d.ClosedGaps},
		{"Added sub-categories", d.AddedSubCategories},
		{"Removed sub-categories", d.RemovedSubCategories},
	}
	for _, l := range lines {
		if len(l.ids) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", l.label, strings.Join(l.ids, ", "))
		}
	}
	return b.String()
}

// Specs renders the improver's scenario requests
func (r *Renderer) Specs(specs []model.ScenarioSpec) string {
	if len(specs) == 0 {
		return "No scenarios needed; every sub-category is covered.\n"
	}

	var b strings.Builder
	for i, s := range specs {
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i+1, s.ScenarioType, s.SubCategoryName, s.SubCategoryID)
		if len(s.TargetRuleIDs) > 0 {
			fmt.Fprintf(&b, "   rules: %s\n", strings.Join(s.TargetRuleIDs, ", "))
		}
		fmt.Fprintf(&b, "   %s\n", s.Rationale)
		if s.Draft != "" {
			fmt.Fprintf(&b, "   draft: %s\n", s.Draft)
		}
	}
	return b.String()
}

// markdownData is what the Markdown template sees
type markdownData struct {
	Report  model.CoverageReport
	Heatmap []HeatmapRow
	Footer  bool
}

// Markdown renders the full report as a Markdown document
func (r *Renderer) Markdown(report model.CoverageReport) (string, error) {
	var b strings.Builder
	data := markdownData{Report: report, Heatmap: HeatmapRows(report.HeatmapData), Footer: r.opts.IncludeFooter}
	if err := r.markdown.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return b.String(), nil
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report model.CoverageReport, path string) error {
	md, err := r.Markdown(report)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(md))
}

// RenderJSON writes any value as indented JSON to path
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := JSON(v)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// JSON marshals v with two-space indentation and a trailing newline
func JSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// HeatmapCell is one sub-category in a heatmap row
type HeatmapCell struct {
	Name    string
	Percent float64
}

// HeatmapRow is one parent category
type HeatmapRow struct {
	Parent string
	Cells  []HeatmapCell
}

// HeatmapRows flattens heatmap data into rows sorted by parent, then by name
func HeatmapRows(heatmap map[string]map[string]float64) []HeatmapRow {
	rows := make([]HeatmapRow, 0, len(heatmap))
	for parent, cells := range heatmap {
		row := HeatmapRow{Parent: parent, Cells: make([]HeatmapCell, 0, len(cells))}
		for name, pct := range cells {
			row.Cells = append(row.Cells, HeatmapCell{Name: name, Percent: pct})
		}
		sort.Slice(row.Cells, func(i, j int) bool { return row.Cells[i].Name < row.Cells[j].Name })
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Parent < rows[j].Parent })
	return rows
}

// Bar draws a fixed-width bar, one '#' per filled cell
func Bar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

// StatusIcon is the one-glyph form of a coverage status
func StatusIcon(s model.CoverageStatus) string {
	switch s {
	case model.StatusCovered:
		return "✓"
	case model.StatusPartial:
		return "~"
	case model.StatusUncovered:
		return "✗"
	default:
		return "?"
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"pct":    func(p float64) string { return fmt.Sprintf("%.0f%%", p) },
		"bar":    func(p float64) string { return Bar(p, 10) },
		"icon":   StatusIcon,
		"dist":   coverage.FormatDistribution,
		"cell":   func(s string) string { return strings.ReplaceAll(s, "|", `\|`) },
		"inc":    func(i int) int { return i + 1 },
		"mul100": func(f float64) float64 { return f * 100 },
	}
}
