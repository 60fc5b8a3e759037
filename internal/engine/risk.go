package engine

import (
	"time"

	"github.com/miradorstack/fieldops/internal/models"
)

// SLA response thresholds per category, in hours. A fault breaches once the
// elapsed time is strictly greater.
var slaThresholdHours = map[models.Category]float64{
	models.CategoryCableFault: 4,
	models.CategoryMajor:      2,
	models.CategoryMinor:      1,
}

// DeriveRisk buckets a priority score. Cutoffs are exclusive: 0.8 is HIGH.
func DeriveRisk(score float64) models.RiskLevel {
	switch {
	case score > 0.8:
		return models.RiskCritical
	case score > 0.6:
		return models.RiskHigh
	case score > 0.4:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// SLABreachRisk reports whether an unresolved fault has exceeded its
// category's response threshold. Unknown categories never breach.
func SLABreachRisk(category models.Category, resolved bool, hoursSinceFault float64) bool {
	if resolved {
		return false
	}
	threshold, ok := slaThresholdHours[category]
	if !ok {
		return false
	}
	return hoursSinceFault > threshold
}

// Derive returns the risk level and SLA-breach flag of a fault at now.
func Derive(fault models.FaultRecord, now time.Time) (models.RiskLevel, bool) {
	hours := HoursSince(fault.Timestamp, now)
	return DeriveRisk(fault.EffectivePriority()), SLABreachRisk(fault.Category, fault.IsResolved(), hours)
}

// HoursSince returns elapsed hours between ts and now.
func HoursSince(ts, now time.Time) float64 {
	return now.Sub(ts).Hours()
}

// IsBusinessHours reports whether ts falls on a weekday between 08:00 and 17:59.
func IsBusinessHours(ts time.Time) bool {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return ts.Hour() >= 8 && ts.Hour() <= 17
}

// Enrich computes the derived view for every record at now.
func Enrich(records []models.FaultRecord, now time.Time) []models.EnrichedFault {
	out := make([]models.EnrichedFault, 0, len(records))
	for _, record := range records {
		hours := HoursSince(record.Timestamp, now)
		resolved := record.IsResolved()
		priority := record.EffectivePriority()
		out = append(out, models.EnrichedFault{
			Fault:           record,
			HoursSinceFault: hours,
			Resolved:        resolved,
			Risk:            DeriveRisk(priority),
			SLABreachRisk:   SLABreachRisk(record.Category, resolved, hours),
			BusinessHours:   IsBusinessHours(record.Timestamp),
			Priority:        priority,
		})
	}
	return out
}
