// Package render draws dashboards, repair procedures and assistant answers
// for the terminal. Rich output uses lipgloss and glamour; Plain output is
// aligned text for pipes, logs and NO_COLOR terminals.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/miradorstack/fieldops/internal/models"
)

// Render modes accepted by Select.
const (
	ModeAuto  = "auto"
	ModeRich  = "rich"
	ModePlain = "plain"
)

const defaultWidth = 100

// Renderer is the chart port used by the CLI.
type Renderer interface {
	Dashboard(d models.Dashboard) error
	Procedure(faultID string, p models.RepairProcedure) error
	Conversation(messages []models.ChatMessage) error
	SearchResults(query string, results []models.SearchResult) error
}

// Select picks a renderer once for the process. Auto chooses Rich only when
// out is a terminal and NO_COLOR is unset.
func Select(mode string, out io.Writer, width int) (Renderer, error) {
	if width <= 0 {
		width = defaultWidth
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeRich:
		return NewRich(out, width), nil
	case ModePlain:
		return NewPlain(out), nil
	case "", ModeAuto:
		if isTerminal(out) && os.Getenv("NO_COLOR") == "" {
			return NewRich(out, width), nil
		}
		return NewPlain(out), nil
	}
	return nil, fmt.Errorf("unknown render mode %q", mode)
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func firstTimeFix(k models.KPISummary) string {
	if !k.HasFirstTimeFix {
		return "n/a"
	}
	return fmt.Sprintf("%s (target %s)", percent(k.FirstTimeFixRate), percent(k.FirstTimeFixTarget))
}

func filterLine(f models.FaultFilter) string {
	parts := []string{}
	if !f.Start.IsZero() || !f.End.IsZero() {
		parts = append(parts, fmt.Sprintf("%s to %s", day(f.Start), day(f.End)))
	}
	for _, kv := range [][2]string{{"location", f.Location}, {"category", string(f.Category)}, {"risk", string(f.Risk)}} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	if len(parts) == 0 {
		return "all faults"
	}
	return strings.Join(parts, ", ")
}

func day(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("2006-01-02")
}

// procedureMarkdown lays out a repair procedure as a markdown document.
func procedureMarkdown(faultID string, p models.RepairProcedure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title)
	if faultID != "" {
		fmt.Fprintf(&b, "**Fault:** %s  \n", faultID)
	}
	fmt.Fprintf(&b, "**Source:** %s  \n**Category:** %s  \n**Confidence:** %s  \n**Estimated time:** %s\n\n",
		p.DocumentID, p.Category, percent(p.Confidence), p.EstimatedTime)
	if len(p.RequiredTools) > 0 {
		b.WriteString("## Required tools\n\n")
		for _, tool := range p.RequiredTools {
			fmt.Fprintf(&b, "- %s\n", tool)
		}
		b.WriteString("\n")
	}
	if !p.HasStructuredSteps() {
		b.WriteString("## Procedure\n\n")
		b.WriteString(p.FullContent)
		b.WriteString("\n")
		return b.String()
	}
	sections := []struct {
		title string
		steps []string
	}{
		{"Safety", p.Steps.Safety},
		{"Diagnostic", p.Steps.Diagnostic},
		{"Repair", p.Steps.Repair},
		{"Verification", p.Steps.Verification},
	}
	for _, s := range sections {
		if len(s.steps) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", s.title)
		for _, step := range s.steps {
			fmt.Fprintf(&b, "%s\n", step)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func roleLabel(role string) string {
	if role == models.RoleUser {
		return "You"
	}
	return "Assistant"
}
