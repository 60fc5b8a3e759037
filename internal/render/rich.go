package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/miradorstack/fieldops/internal/models"
)

// Palette for risk levels and categories.
var (
	colorCritical = lipgloss.Color("#e53935")
	colorHigh     = lipgloss.Color("#ff8a65")
	colorMedium   = lipgloss.Color("#ffc107")
	colorLow      = lipgloss.Color("#8bc34a")
	colorMuted    = lipgloss.Color("#6b7785")
	colorAccent   = lipgloss.Color("#2196f3")
)

const barWidth = 30

// Rich draws boxed KPIs and bar charts with lipgloss and renders markdown
// through glamour.
type Rich struct {
	out           io.Writer
	width         int
	markdownStyle string

	title   lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
	card    lipgloss.Style
	warning lipgloss.Style
}

// NewRich writes to out, wrapping at width columns.
func NewRich(out io.Writer, width int) *Rich {
	r := lipgloss.NewRenderer(out)
	return &Rich{
		out:           out,
		width:         width,
		markdownStyle: "dark",
		title:         r.NewStyle().Bold(true).Foreground(colorAccent),
		heading:       r.NewStyle().Bold(true).Underline(true).MarginTop(1),
		muted:         r.NewStyle().Foreground(colorMuted),
		card:          r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1),
		warning:       r.NewStyle().Bold(true).Foreground(colorMedium),
	}
}

func riskColor(level models.RiskLevel) lipgloss.Color {
	switch level {
	case models.RiskCritical:
		return colorCritical
	case models.RiskHigh:
		return colorHigh
	case models.RiskMedium:
		return colorMedium
	}
	return colorLow
}

func categoryColor(c models.Category) lipgloss.Color {
	switch c {
	case models.CategoryCableFault:
		return colorCritical
	case models.CategoryMajor:
		return colorHigh
	}
	return colorLow
}

func (r *Rich) kpi(label, value string) string {
	return r.card.Render(r.muted.Render(label) + "\n" + lipgloss.NewStyle().Bold(true).Render(value))
}

func (r *Rich) bar(value, limit int, color lipgloss.Color) string {
	n := 0
	if limit > 0 {
		n = value * barWidth / limit
	}
	if value > 0 && n == 0 {
		n = 1
	}
	return r.title.Foreground(color).Bold(false).Render(strings.Repeat("█", n))
}

func (r *Rich) Dashboard(d models.Dashboard) error {
	var b strings.Builder
	b.WriteString(r.title.Render("Fault Triage Dashboard"))
	b.WriteString(r.muted.Render(fmt.Sprintf("  %s · %s", d.GeneratedAt.Format("2006-01-02 15:04 MST"), filterLine(d.Filter))))
	b.WriteString("\n")
	for _, warning := range d.Warnings {
		b.WriteString(r.warning.Render("⚠ " + warning))
		b.WriteString("\n")
	}

	k := d.KPIs
	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		r.kpi("Total faults", fmt.Sprint(k.TotalFaults)),
		r.kpi("Active", fmt.Sprint(k.ActiveFaults)),
		r.kpi("Last 24h", fmt.Sprint(k.RecentFaults)),
		r.kpi("Critical active", fmt.Sprint(k.CriticalActive)),
		r.kpi("SLA risk", fmt.Sprint(k.SLARisk)),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		r.kpi("First-time fix", firstTimeFix(k)),
		r.kpi("Customers affected", fmt.Sprint(k.CustomersAffected)),
		r.kpi("Revenue at risk", fmt.Sprintf("%.0f DKK", k.RevenueAtRisk)),
	)
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, row1, row2))
	b.WriteString("\n")

	b.WriteString(r.heading.Render("Critical alerts"))
	b.WriteString("\n")
	if len(d.Alerts) == 0 {
		b.WriteString(r.muted.Render("No critical alerts."))
		b.WriteString("\n")
	}
	for _, a := range d.Alerts {
		color := colorHigh
		if a.Level == models.AlertCritical {
			color = colorCritical
		}
		badge := r.title.Foreground(color).Render(strings.ToUpper(a.Level))
		fmt.Fprintf(&b, "%s %s %s at %s: %s\n", badge, a.FaultID, a.Category, a.Location, a.Description)
		b.WriteString(r.muted.Render(fmt.Sprintf("    %d customers · %.1fh open · %s", a.CustomersAffected, a.HoursSinceFault, a.Action)))
		b.WriteString("\n")
		for _, rec := range a.Recommendations {
			b.WriteString(r.muted.Render("    • " + rec))
			b.WriteString("\n")
		}
	}

	if len(d.CategoryImpact) > 0 {
		b.WriteString(r.heading.Render("Active faults by category"))
		b.WriteString("\n")
		maxActive := 0
		for _, c := range d.CategoryImpact {
			maxActive = max(maxActive, c.ActiveFaults)
		}
		for _, c := range d.CategoryImpact {
			fmt.Fprintf(&b, "%-12s %s %d (%d customers)\n", c.Category, r.bar(c.ActiveFaults, maxActive, categoryColor(c.Category)), c.ActiveFaults, c.CustomersAffected)
		}
	}

	if len(d.PriorityTimeline) > 0 {
		b.WriteString(r.heading.Render("Priority timeline"))
		b.WriteString("\n")
		for _, pt := range d.PriorityTimeline {
			n := int(pt.Priority*barWidth + 0.5)
			bar := r.title.Foreground(riskColor(pt.Risk)).Bold(false).Render(strings.Repeat("█", max(n, 1)))
			fmt.Fprintf(&b, "%-8s %6.1fh %s %.3f %s\n", pt.FaultID, pt.HoursSinceFault, bar, pt.Priority, r.muted.Render(pt.Description))
		}
	}

	if len(d.LocationImpact) > 0 {
		b.WriteString(r.heading.Render("Location impact"))
		b.WriteString("\n")
		for _, l := range d.LocationImpact {
			fmt.Fprintf(&b, "%-20s %-12s %3d faults %6d customers  mean %.3f\n", l.Location, l.Category, l.Faults, l.CustomersAffected, l.MeanPriority)
		}
	}

	if len(d.Queue) > 0 {
		b.WriteString(r.heading.Render("Triage queue"))
		b.WriteString("\n")
		var q strings.Builder
		if err := writeQueue(&q, d.Queue); err != nil {
			return err
		}
		b.WriteString(q.String())
	}

	_, err := io.WriteString(r.out, lipgloss.NewStyle().MaxWidth(r.width).Render(b.String())+"\n")
	return err
}

func (r *Rich) markdown(doc string) (string, error) {
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.markdownStyle),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return tr.Render(doc)
}

func (r *Rich) Procedure(faultID string, p models.RepairProcedure) error {
	out, err := r.markdown(procedureMarkdown(faultID, p))
	if err != nil {
		return err
	}
	_, err = io.WriteString(r.out, out)
	return err
}

func (r *Rich) Conversation(messages []models.ChatMessage) error {
	var b strings.Builder
	for _, m := range messages {
		label := r.title.Render(roleLabel(m.Role)) + " " + r.muted.Render(m.Timestamp.Format("15:04:05"))
		b.WriteString(label)
		b.WriteString("\n")
		body := m.Content
		if m.Role == models.RoleAssistant {
			rendered, err := r.markdown(m.Content)
			if err != nil {
				return err
			}
			body = strings.TrimRight(rendered, "\n")
		}
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Rich) SearchResults(query string, results []models.SearchResult) error {
	var b strings.Builder
	b.WriteString(r.title.Render(fmt.Sprintf("Results for %q", query)))
	b.WriteString("\n")
	for _, res := range results {
		header := fmt.Sprintf("%s · %s · %s · %s", res.DocumentID, res.Title, res.Category, percent(res.RelevanceScore))
		b.WriteString(r.card.Width(min(r.width, 100) - 2).Render(lipgloss.NewStyle().Bold(true).Render(header) + "\n" + res.ContentExcerpt))
		b.WriteString("\n")
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}
