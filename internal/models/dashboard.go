package models

import "time"

// FaultFilter narrows the dashboard. Zero values mean "All"; Start and End
// are inclusive calendar days. AllTime disables the default date window.
type FaultFilter struct {
	Start    time.Time `json:"start,omitempty"`
	End      time.Time `json:"end,omitempty"`
	Location string    `json:"location,omitempty"`
	Category Category  `json:"category,omitempty"`
	Risk     RiskLevel `json:"risk,omitempty"`
	AllTime  bool      `json:"all_time,omitempty"`
}

// KPISummary is the headline row of the manager dashboard.
type KPISummary struct {
	TotalFaults        int     `json:"total_faults"`
	ActiveFaults       int     `json:"active_faults"`
	RecentFaults       int     `json:"faults_last_24h"`
	CriticalActive     int     `json:"critical_active"`
	SLARisk            int     `json:"sla_risk"`
	FirstTimeFixRate   float64 `json:"first_time_fix_rate"`
	HasFirstTimeFix    bool    `json:"has_first_time_fix"`
	FirstTimeFixTarget float64 `json:"first_time_fix_target"`
	CustomersAffected  int     `json:"customers_affected"`
	RevenueAtRisk      float64 `json:"revenue_at_risk_dkk"`
}

// CategoryImpact aggregates active faults per category.
type CategoryImpact struct {
	Category          Category `json:"category"`
	ActiveFaults      int      `json:"active_faults"`
	CustomersAffected int      `json:"customers_affected"`
}

// TimelinePoint is one bar of the priority timeline.
type TimelinePoint struct {
	FaultID           string    `json:"fault_id"`
	Description       string    `json:"fault_description"`
	HoursSinceFault   float64   `json:"hours_since_fault"`
	Priority          float64   `json:"priority"`
	Risk              RiskLevel `json:"risk_level"`
	CustomersAffected int       `json:"customers_affected"`
}

// LocationImpact aggregates faults per location and category.
type LocationImpact struct {
	Location          string   `json:"location"`
	Category          Category `json:"category"`
	Faults            int      `json:"faults"`
	CustomersAffected int      `json:"customers_affected"`
	MeanPriority      float64  `json:"mean_priority"`
}

// Alert levels.
const (
	AlertCritical = "critical"
	AlertHigh     = "high"
)

// Alert is a critical-alert card.
type Alert struct {
	FaultID           string    `json:"fault_id"`
	Level             string    `json:"level"`
	Location          string    `json:"location"`
	Category          Category  `json:"category"`
	Description       string    `json:"description"`
	EquipmentType     string    `json:"equipment_type"`
	Risk              RiskLevel `json:"risk_level"`
	Priority          float64   `json:"priority"`
	HoursSinceFault   float64   `json:"hours_since_fault"`
	CustomersAffected int       `json:"customers_affected"`
	RevenueImpact     float64   `json:"estimated_revenue_impact"`
	SLABreachRisk     bool      `json:"sla_breach_risk"`
	Action            string    `json:"recommended_action"`
	Recommendations   []string  `json:"recommendations,omitempty"`
}

// AssignedFault is a field engineer work item.
type AssignedFault struct {
	Fault  EnrichedFault `json:"fault"`
	Urgent bool          `json:"urgent"`
}

// FilterOptions lists selectable filter values for the current dataset.
type FilterOptions struct {
	Locations  []string    `json:"locations"`
	Categories []Category  `json:"categories"`
	Risks      []RiskLevel `json:"risks"`
}

// Dashboard is everything the manager view renders for one request.
type Dashboard struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	Filter           FaultFilter      `json:"filter"`
	KPIs             KPISummary       `json:"kpis"`
	Alerts           []Alert          `json:"alerts"`
	CategoryImpact   []CategoryImpact `json:"category_impact"`
	PriorityTimeline []TimelinePoint  `json:"priority_timeline"`
	LocationImpact   []LocationImpact `json:"location_impact"`
	Queue            []EnrichedFault  `json:"triage_queue"`
	Options          FilterOptions    `json:"options"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// Dataset is one load of the warehouse. It is the unit stored in the cache.
type Dataset struct {
	Faults     []FaultRecord       `json:"faults"`
	Procedures []ProcedureDocument `json:"procedures"`
	Warnings   []string            `json:"warnings,omitempty"`
	Source     string              `json:"source"`
	LoadedAt   time.Time           `json:"loaded_at"`
}
