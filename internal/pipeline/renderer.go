package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/ppiankov/claimgraph/internal/model"
)

// Terminal palette
var (
	colorOK    = lipgloss.Color("#2CD7C7")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorError = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#6C7A89")
)

// Renderer writes audit reports and run summaries
type Renderer struct {
	ok, warn, fail, muted, bold lipgloss.Style
}

// NewRenderer creates a renderer. Styling is applied only when color is set.
func NewRenderer(color bool) *Renderer {
	r := &Renderer{
		ok:    lipgloss.NewStyle(),
		warn:  lipgloss.NewStyle(),
		fail:  lipgloss.NewStyle(),
		muted: lipgloss.NewStyle(),
		bold:  lipgloss.NewStyle(),
	}
	if color {
		r.ok = r.ok.Foreground(colorOK).Bold(true)
		r.warn = r.warn.Foreground(colorWarn)
		r.fail = r.fail.Foreground(colorError).Bold(true)
		r.muted = r.muted.Foreground(colorMuted)
		r.bold = r.bold.Bold(true)
	}
	return r
}

// ColorEnabled reports whether styled output should go to f
func ColorEnabled(f *os.File, want bool) bool {
	if !want || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *Renderer) badge(ok bool) string {
	if ok {
		return r.ok.Render("PASS")
	}
	return r.fail.Render("FAIL")
}

func (r *Renderer) count(c model.Count) string {
	line := fmt.Sprintf("%d of %d %s", c.N, c.M, c.Label)
	if c.Complete() {
		return r.ok.Render("✓") + " " + line
	}
	return r.warn.Render("⚠") + " " + line
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.AuditReport, path string) error {
	return WriteJSON(path, report)
}

// RenderMarkdown writes the report as Markdown
func (r *Renderer) RenderMarkdown(report *model.AuditReport, path string) error {
	if err := os.WriteFile(path, []byte(Markdown(report)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown formats the report as a Markdown document
func Markdown(report *model.AuditReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Audit Report: %s\n\n", strings.ToUpper(string(report.Status)))
	fmt.Fprintf(&b, "**Integrity index:** %d/100  \n", report.Summary.Index)
	fmt.Fprintf(&b, "**Formula:** `%s`  \n", report.Summary.Formula)
	fmt.Fprintf(&b, "**Findings:** %d critical, %d warnings\n\n", report.Summary.Critical, report.Summary.Warnings)

	b.WriteString("## Summary\n\n")
	for _, c := range report.Summary.Counts {
		mark := "x"
		if !c.Complete() {
			mark = " "
		}
		fmt.Fprintf(&b, "- [%s] %d of %d %s\n", mark, c.N, c.M, c.Label)
	}
	b.WriteString("\n")

	if len(report.Summary.Signals) > 0 {
		b.WriteString("### Index components\n\n")
		b.WriteString("| Component | Severity | Description | Formula |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, s := range report.Summary.Signals {
			formula, _ := s.Data["formula"].(string)
			fmt.Fprintf(&b, "| %s | %s | %s | `%s` |\n", s.Type, s.Severity, escapeCell(s.Description), formula)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Findings\n\n")
	for _, c := range report.Categories {
		status := "passed"
		if !c.Passed {
			status = "failed"
		}
		fmt.Fprintf(&b, "### %s (%s)\n\n", c.Name, status)
		if len(c.Findings) == 0 {
			b.WriteString("No findings.\n\n")
			continue
		}
		b.WriteString("| Severity | Code | Subject | Message |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, f := range c.Findings {
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n", f.Severity, f.Code, f.Subject, escapeCell(f.Message))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Claims\n\n")
	b.WriteString("| Claim | Tier | Status | Depth | Roots |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, c := range report.Claims {
		roots := strings.Join(c.Roots, ", ")
		if len(c.Cycle) > 0 {
			roots = "cycle: " + strings.Join(c.Cycle, " -> ")
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %s |\n", c.ID, c.Tier, c.Status, c.Depth, escapeCell(roots))
	}
	b.WriteString("\n")

	b.WriteString("## Metadata coverage\n\n")
	b.WriteString("| Field | Covered | Percent | Missing |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, fc := range report.Coverage {
		fmt.Fprintf(&b, "| %s | %d of %d | %.1f%% | %s |\n", fc.Field, fc.Covered, fc.Total, fc.Percent, strings.Join(fc.Missing, ", "))
	}
	b.WriteString("\n")

	b.WriteString("---\n\n")
	b.WriteString("*Same inputs produce the same report. Every count above is itemized in the JSON report.*\n")
	return b.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// RenderSummary prints the audit verdict and counts
func (r *Renderer) RenderSummary(w io.Writer, report *model.AuditReport) {
	fmt.Fprintf(w, "%s  integrity index %s\n",
		r.badge(report.Status == model.AuditPass),
		r.bold.Render(fmt.Sprintf("%d/100", report.Summary.Index)))
	for _, c := range report.Summary.Counts {
		fmt.Fprintf(w, "  %s\n", r.count(c))
	}

	if report.Summary.Critical > 0 || report.Summary.Warnings > 0 {
		fmt.Fprintf(w, "  %s, %s\n",
			r.fail.Render(fmt.Sprintf("%d critical", report.Summary.Critical)),
			r.warn.Render(fmt.Sprintf("%d warnings", report.Summary.Warnings)))
	}
	for _, c := range report.Categories {
		for _, f := range c.Findings {
			if f.Severity != model.SeverityCritical {
				continue
			}
			fmt.Fprintf(w, "  %s %s %s\n", r.fail.Render("✗"), r.muted.Render(string(c.Name)+":"), f.Message)
		}
	}
}

// RenderRunSummary prints the outcome of a render run
func (r *Renderer) RenderRunSummary(w io.Writer, results []*DocumentResult) {
	var directives, errs, failed, cached int
	for _, res := range results {
		directives += len(res.Manifest.Entries)
		errs += res.Manifest.ErrorCount()
		if res.Manifest.Failed {
			failed++
		}
		if res.Cached {
			cached++
		}
	}

	ok := errs == 0 && failed == 0
	fmt.Fprintf(w, "%s  %d documents, %d directives, %d unresolved, %d failed %s\n",
		r.badge(ok), len(results), directives, errs, failed,
		r.muted.Render(fmt.Sprintf("(%d from cache)", cached)))

	for _, res := range results {
		if res.Manifest.Failed {
			fmt.Fprintf(w, "  %s %s: %s\n", r.fail.Render("✗"), res.Document.Name, res.Manifest.FailureReason)
			continue
		}
		for _, e := range res.Manifest.Entries {
			if e.Status != model.StatusError {
				continue
			}
			fmt.Fprintf(w, "  %s %s %s %s\n", r.warn.Render("⚠"), e.Directive.Location, e.Directive.Raw, r.muted.Render(string(e.Error.Kind)))
		}
	}
}
