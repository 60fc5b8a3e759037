package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Category classifies a fault by operational impact.
type Category string

const (
	CategoryMinor      Category = "Minor"
	CategoryMajor      Category = "Major"
	CategoryCableFault Category = "Cable Fault"
)

// ParseCategory normalises warehouse and fixture spellings ("cable_fault",
// "CableFault", "cable fault") onto the canonical values. Unknown values are
// kept verbatim so they still group in charts.
func ParseCategory(value string) Category {
	trimmed := strings.TrimSpace(value)
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(trimmed))
	switch key {
	case "minor":
		return CategoryMinor
	case "major":
		return CategoryMajor
	case "cablefault", "cable":
		return CategoryCableFault
	}
	return Category(trimmed)
}

// Known reports whether c is one of the canonical categories.
func (c Category) Known() bool {
	switch c {
	case CategoryMinor, CategoryMajor, CategoryCableFault:
		return true
	}
	return false
}

// RiskLevel is the urgency bucket derived from a priority score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevels lists the buckets from most to least urgent.
var RiskLevels = []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}

// ParseRiskLevel accepts any casing of the four levels.
func ParseRiskLevel(value string) (RiskLevel, bool) {
	level := RiskLevel(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range RiskLevels {
		if level == known {
			return level, true
		}
	}
	return "", false
}

// ErrAlreadyResolved is returned when a resolution timestamp is set twice.
var ErrAlreadyResolved = errors.New("fault already resolved")

const (
	TechnicianSpecialist = "Specialist"
	TechnicianGeneral    = "General"
	unknownValue         = "Unknown"
)

// FaultRecord is one logged network-equipment incident. The ML fields are
// only populated when the warehouse exposes the triage table.
type FaultRecord struct {
	ID                 string    `json:"fault_id"`
	Timestamp          time.Time `json:"fault_timestamp"`
	Code               string    `json:"fault_code"`
	Description        string    `json:"fault_description"`
	Category           Category  `json:"fault_category"`
	NetworkType        string    `json:"network_type"`
	EquipmentType      string    `json:"equipment_type"`
	Location           string    `json:"location"`
	Severity           string    `json:"severity"`
	CustomerImpact     string    `json:"customer_impact"`
	CustomersAffected  int       `json:"customers_affected"`
	ServiceCalls       int       `json:"service_calls_generated"`
	ResolutionHours    float64   `json:"resolution_time_hours"`
	FirstTimeFix       bool      `json:"first_time_fix"`
	TechnicianType     string    `json:"technician_type_required"`
	RevenueImpact      float64   `json:"estimated_revenue_impact"`
	PriorityScore      float64   `json:"priority_score"`
	PredictedCategory  Category  `json:"predicted_category,omitempty"`
	CalculatedPriority *float64  `json:"calculated_priority_score,omitempty"`

	resolvedAt *time.Time
}

// Resolve records the resolution time. It can only be set once.
func (f *FaultRecord) Resolve(at time.Time) error {
	if f.resolvedAt != nil {
		return ErrAlreadyResolved
	}
	resolved := at
	f.resolvedAt = &resolved
	return nil
}

// ResolvedAt returns the resolution time and whether it is set.
func (f FaultRecord) ResolvedAt() (time.Time, bool) {
	if f.resolvedAt == nil {
		return time.Time{}, false
	}
	return *f.resolvedAt, true
}

// IsResolved reports whether a resolution timestamp is present.
func (f FaultRecord) IsResolved() bool {
	return f.resolvedAt != nil
}

// EffectivePriority prefers the ML score when the triage table provided one.
func (f FaultRecord) EffectivePriority() float64 {
	if f.CalculatedPriority != nil {
		return *f.CalculatedPriority
	}
	return f.PriorityScore
}

// ApplyDefaults fills every optional field that was absent at load time.
func (f *FaultRecord) ApplyDefaults() {
	if f.TechnicianType == "" {
		if f.Category == CategoryCableFault {
			f.TechnicianType = TechnicianSpecialist
		} else {
			f.TechnicianType = TechnicianGeneral
		}
	}
	if f.Severity == "" {
		switch f.Category {
		case CategoryCableFault:
			f.Severity = "High"
		case CategoryMajor:
			f.Severity = "Medium"
		default:
			f.Severity = "Low"
		}
	}
	if f.CustomerImpact == "" {
		switch f.Category {
		case CategoryCableFault:
			f.CustomerImpact = "Severe"
		case CategoryMajor:
			f.CustomerImpact = "Moderate"
		default:
			f.CustomerImpact = "Minimal"
		}
	}
	if f.Location == "" {
		f.Location = unknownValue
	}
	if f.NetworkType == "" {
		f.NetworkType = unknownValue
	}
	if f.PredictedCategory == "" {
		f.PredictedCategory = f.Category
	}
}

type faultAlias FaultRecord

type faultJSON struct {
	faultAlias
	ResolutionTimestamp *time.Time `json:"resolution_timestamp"`
}

// MarshalJSON includes the resolution timestamp, null when unresolved.
func (f FaultRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(faultJSON{faultAlias: faultAlias(f), ResolutionTimestamp: f.resolvedAt})
}

// UnmarshalJSON restores the resolution timestamp.
func (f *FaultRecord) UnmarshalJSON(data []byte) error {
	var aux faultJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = FaultRecord(aux.faultAlias)
	f.resolvedAt = aux.ResolutionTimestamp
	return nil
}

// EnrichedFault is the read-time view of a fault. Derived fields are never
// stored and are recomputed for every request.
type EnrichedFault struct {
	Fault           FaultRecord `json:"fault"`
	HoursSinceFault float64     `json:"hours_since_fault"`
	Resolved        bool        `json:"is_resolved"`
	Risk            RiskLevel   `json:"risk_level"`
	SLABreachRisk   bool        `json:"sla_breach_risk"`
	BusinessHours   bool        `json:"business_hours_fault"`
	Priority        float64     `json:"priority"`
}
