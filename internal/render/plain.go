package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/miradorstack/fieldops/internal/models"
)

// Plain writes aligned text without escape sequences.
type Plain struct {
	out io.Writer
}

// NewPlain writes to out.
func NewPlain(out io.Writer) *Plain {
	return &Plain{out: out}
}

func (p *Plain) Dashboard(d models.Dashboard) error {
	w := bufio.NewWriter(p.out)
	fmt.Fprintf(w, "FAULT TRIAGE DASHBOARD  %s  (%s)\n", d.GeneratedAt.Format("2006-01-02 15:04 MST"), filterLine(d.Filter))
	for _, warning := range d.Warnings {
		fmt.Fprintf(w, "WARNING: %s\n", warning)
	}

	k := d.KPIs
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total faults\t%d\tActive\t%d\tLast 24h\t%d\n", k.TotalFaults, k.ActiveFaults, k.RecentFaults)
	fmt.Fprintf(tw, "Critical active\t%d\tSLA risk\t%d\tFirst-time fix\t%s\n", k.CriticalActive, k.SLARisk, firstTimeFix(k))
	fmt.Fprintf(tw, "Customers affected\t%d\tRevenue at risk\t%.0f DKK\t\t\n", k.CustomersAffected, k.RevenueAtRisk)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if len(d.Alerts) == 0 {
		fmt.Fprintln(w, "No critical alerts.")
	} else {
		fmt.Fprintln(w, "CRITICAL ALERTS")
		for _, a := range d.Alerts {
			fmt.Fprintf(w, "[%s] %s %s at %s: %s (%d customers, %.1fh open)\n",
				strings.ToUpper(a.Level), a.FaultID, a.Category, a.Location, a.Description, a.CustomersAffected, a.HoursSinceFault)
			fmt.Fprintf(w, "    action: %s\n", a.Action)
			for _, rec := range a.Recommendations {
				fmt.Fprintf(w, "    - %s\n", rec)
			}
		}
	}

	if len(d.CategoryImpact) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ACTIVE FAULTS BY CATEGORY")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CATEGORY\tACTIVE\tCUSTOMERS")
		for _, c := range d.CategoryImpact {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Category, c.ActiveFaults, c.CustomersAffected)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(d.PriorityTimeline) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "PRIORITY TIMELINE")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FAULT\tHOURS\tPRIORITY\tRISK\tDESCRIPTION")
		for _, pt := range d.PriorityTimeline {
			fmt.Fprintf(tw, "%s\t%.1f\t%.3f\t%s\t%s\n", pt.FaultID, pt.HoursSinceFault, pt.Priority, pt.Risk, pt.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(d.LocationImpact) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "LOCATION IMPACT")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LOCATION\tCATEGORY\tFAULTS\tCUSTOMERS\tMEAN PRIORITY")
		for _, l := range d.LocationImpact {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.3f\n", l.Location, l.Category, l.Faults, l.CustomersAffected, l.MeanPriority)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(d.Queue) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "TRIAGE QUEUE")
		if err := writeQueue(w, d.Queue); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeQueue(w io.Writer, queue []models.EnrichedFault) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FAULT\tCATEGORY\tLOCATION\tEQUIPMENT\tPRIORITY\tRISK\tSLA")
	for _, f := range queue {
		sla := ""
		if f.SLABreachRisk {
			sla = "AT RISK"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.3f\t%s\t%s\n",
			f.Fault.ID, f.Fault.Category, f.Fault.Location, f.Fault.EquipmentType, f.Priority, f.Risk, sla)
	}
	return tw.Flush()
}

func (p *Plain) Procedure(faultID string, proc models.RepairProcedure) error {
	_, err := io.WriteString(p.out, procedureMarkdown(faultID, proc))
	return err
}

func (p *Plain) Conversation(messages []models.ChatMessage) error {
	w := bufio.NewWriter(p.out)
	for _, m := range messages {
		fmt.Fprintf(w, "%s [%s]:\n%s\n\n", roleLabel(m.Role), m.Timestamp.Format("15:04:05"), m.Content)
	}
	return w.Flush()
}

func (p *Plain) SearchResults(query string, results []models.SearchResult) error {
	w := bufio.NewWriter(p.out)
	fmt.Fprintf(w, "Results for %q\n", query)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tTITLE\tCATEGORY\tRELEVANCE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.DocumentID, r.Title, r.Category, percent(r.RelevanceScore))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(w, "\n%s:\n%s\n", r.DocumentID, r.ContentExcerpt)
	}
	return w.Flush()
}
