package engine

import (
	"sort"
	"time"

	"github.com/miradorstack/fieldops/internal/models"
)

const (
	// FirstTimeFixTarget is the first-time-fix goal shown next to the KPI.
	FirstTimeFixTarget = 0.85
	// MaxCriticalAlerts bounds the alert cards.
	MaxCriticalAlerts = 5
	// TimelineSize bounds the priority timeline.
	TimelineSize = 20
	// DefaultWindowDays is the dashboard date window when none is given.
	DefaultWindowDays = 7

	recentHours = 24
)

// DefaultFilter covers the last DefaultWindowDays calendar days up to now.
func DefaultFilter(now time.Time) models.FaultFilter {
	return models.FaultFilter{
		Start: now.AddDate(0, 0, -DefaultWindowDays),
		End:   now,
	}
}

// ApplyFilter keeps faults matching every set criterion. Dates compare by
// calendar day in the location of each bound, inclusive at both ends.
func ApplyFilter(faults []models.EnrichedFault, filter models.FaultFilter) []models.EnrichedFault {
	out := make([]models.EnrichedFault, 0, len(faults))
	for _, f := range faults {
		if !filter.Start.IsZero() {
			loc := filter.Start.Location()
			if dayOf(f.Fault.Timestamp, loc).Before(dayOf(filter.Start, loc)) {
				continue
			}
		}
		if !filter.End.IsZero() {
			loc := filter.End.Location()
			if dayOf(f.Fault.Timestamp, loc).After(dayOf(filter.End, loc)) {
				continue
			}
		}
		if filter.Location != "" && f.Fault.Location != filter.Location {
			continue
		}
		if filter.Category != "" && f.Fault.Category != filter.Category {
			continue
		}
		if filter.Risk != "" && f.Risk != filter.Risk {
			continue
		}
		out = append(out, f)
	}
	return out
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Active returns the unresolved faults, preserving order.
func Active(faults []models.EnrichedFault) []models.EnrichedFault {
	out := make([]models.EnrichedFault, 0, len(faults))
	for _, f := range faults {
		if !f.Resolved {
			out = append(out, f)
		}
	}
	return out
}

// Summarize computes the KPI row.
func Summarize(faults []models.EnrichedFault) models.KPISummary {
	kpi := models.KPISummary{TotalFaults: len(faults), FirstTimeFixTarget: FirstTimeFixTarget}
	resolved, fixed := 0, 0
	for _, f := range faults {
		if f.HoursSinceFault < recentHours {
			kpi.RecentFaults++
		}
		if f.SLABreachRisk {
			kpi.SLARisk++
		}
		if f.Resolved {
			resolved++
			if f.Fault.FirstTimeFix {
				fixed++
			}
			continue
		}
		kpi.ActiveFaults++
		kpi.CustomersAffected += f.Fault.CustomersAffected
		kpi.RevenueAtRisk += f.Fault.RevenueImpact
		if f.Risk == models.RiskCritical {
			kpi.CriticalActive++
		}
	}
	if resolved > 0 {
		kpi.HasFirstTimeFix = true
		kpi.FirstTimeFixRate = float64(fixed) / float64(resolved)
	}
	return kpi
}

// CategoryImpact sums active faults and customers per category, ordered by
// category name.
func CategoryImpact(faults []models.EnrichedFault) []models.CategoryImpact {
	index := make(map[models.Category]int)
	var out []models.CategoryImpact
	for _, f := range Active(faults) {
		i, ok := index[f.Fault.Category]
		if !ok {
			i = len(out)
			index[f.Fault.Category] = i
			out = append(out, models.CategoryImpact{Category: f.Fault.Category})
		}
		out[i].ActiveFaults++
		out[i].CustomersAffected += f.Fault.CustomersAffected
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// PriorityTimeline returns the TimelineSize most urgent active faults.
func PriorityTimeline(faults []models.EnrichedFault) []models.TimelinePoint {
	queue := TriageQueue(faults)
	if len(queue) > TimelineSize {
		queue = queue[:TimelineSize]
	}
	out := make([]models.TimelinePoint, 0, len(queue))
	for _, f := range queue {
		out = append(out, models.TimelinePoint{
			FaultID:           f.Fault.ID,
			Description:       f.Fault.Description,
			HoursSinceFault:   f.HoursSinceFault,
			Priority:          f.Priority,
			Risk:              f.Risk,
			CustomersAffected: f.Fault.CustomersAffected,
		})
	}
	return out
}

// LocationImpact aggregates active faults per location and category.
func LocationImpact(faults []models.EnrichedFault) []models.LocationImpact {
	type key struct {
		location string
		category models.Category
	}
	index := make(map[key]int)
	sums := make([]float64, 0)
	var out []models.LocationImpact
	for _, f := range Active(faults) {
		k := key{f.Fault.Location, f.Fault.Category}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, models.LocationImpact{Location: k.location, Category: k.category})
			sums = append(sums, 0)
		}
		out[i].Faults++
		out[i].CustomersAffected += f.Fault.CustomersAffected
		sums[i] += f.Priority
	}
	for i := range out {
		out[i].MeanPriority = sums[i] / float64(out[i].Faults)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TriageQueue returns active faults by descending priority. Equal priorities
// keep load order.
func TriageQueue(faults []models.EnrichedFault) []models.EnrichedFault {
	queue := Active(faults)
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Priority > queue[j].Priority })
	return queue
}

// CriticalAlerts lists up to MaxCriticalAlerts active faults that are
// CRITICAL or at SLA risk, most urgent first. rules may be nil.
func CriticalAlerts(faults []models.EnrichedFault, rules *ActionRules) []models.Alert {
	var alerts []models.Alert
	for _, f := range TriageQueue(faults) {
		if f.Risk != models.RiskCritical && !f.SLABreachRisk {
			continue
		}
		level := models.AlertHigh
		if f.Risk == models.RiskCritical {
			level = models.AlertCritical
		}
		alerts = append(alerts, models.Alert{
			FaultID:           f.Fault.ID,
			Level:             level,
			Location:          f.Fault.Location,
			Category:          f.Fault.Category,
			Description:       f.Fault.Description,
			EquipmentType:     f.Fault.EquipmentType,
			Risk:              f.Risk,
			Priority:          f.Priority,
			HoursSinceFault:   f.HoursSinceFault,
			CustomersAffected: f.Fault.CustomersAffected,
			RevenueImpact:     f.Fault.RevenueImpact,
			SLABreachRisk:     f.SLABreachRisk,
			Action:            DefaultAction(f.Fault),
			Recommendations:   rules.Recommend(f),
		})
		if len(alerts) == MaxCriticalAlerts {
			break
		}
	}
	return alerts
}

// DefaultAction is the dispatch instruction shown on every alert card.
func DefaultAction(fault models.FaultRecord) string {
	return "Deploy " + fault.TechnicianType + " technician immediately"
}

// AssignedFaults returns the first limit active faults in load order. Cable
// faults are flagged urgent.
func AssignedFaults(faults []models.EnrichedFault, limit int) []models.AssignedFault {
	var out []models.AssignedFault
	for _, f := range Active(faults) {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, models.AssignedFault{Fault: f, Urgent: f.Fault.Category == models.CategoryCableFault})
	}
	return out
}

// Options lists the distinct filter values present in faults.
func Options(faults []models.EnrichedFault) models.FilterOptions {
	locations := make(map[string]struct{})
	categories := make(map[models.Category]struct{})
	for _, f := range faults {
		locations[f.Fault.Location] = struct{}{}
		categories[f.Fault.Category] = struct{}{}
	}
	opts := models.FilterOptions{
		Locations:  make([]string, 0, len(locations)),
		Categories: make([]models.Category, 0, len(categories)),
		Risks:      append([]models.RiskLevel(nil), models.RiskLevels...),
	}
	for l := range locations {
		opts.Locations = append(opts.Locations, l)
	}
	for c := range categories {
		opts.Categories = append(opts.Categories, c)
	}
	sort.Strings(opts.Locations)
	sort.Slice(opts.Categories, func(i, j int) bool { return opts.Categories[i] < opts.Categories[j] })
	return opts
}
