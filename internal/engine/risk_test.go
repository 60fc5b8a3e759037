package engine

import (
	"testing"
	"time"

	"github.com/miradorstack/fieldops/internal/models"
)

func TestDeriveRiskCutoffs(t *testing.T) {
	cases := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0.81, models.RiskCritical},
		{0.80, models.RiskHigh},
		{0.61, models.RiskHigh},
		{0.60, models.RiskMedium},
		{0.41, models.RiskMedium},
		{0.40, models.RiskLow},
		{0.0, models.RiskLow},
		{1.0, models.RiskCritical},
	}
	for _, tc := range cases {
		if got := DeriveRisk(tc.score); got != tc.want {
			t.Fatalf("score %.2f: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestSLABreachRiskThresholds(t *testing.T) {
	if SLABreachRisk(models.CategoryCableFault, false, 4.0) {
		t.Fatalf("cable fault at exactly 4h must not breach")
	}
	if !SLABreachRisk(models.CategoryCableFault, false, 4.01) {
		t.Fatalf("cable fault at 4.01h must breach")
	}
	if SLABreachRisk(models.CategoryMajor, false, 2) || !SLABreachRisk(models.CategoryMajor, false, 2.5) {
		t.Fatalf("major threshold is 2h")
	}
	if SLABreachRisk(models.CategoryMinor, false, 1) || !SLABreachRisk(models.CategoryMinor, false, 1.1) {
		t.Fatalf("minor threshold is 1h")
	}
	if SLABreachRisk(models.Category("Planned"), false, 1000) {
		t.Fatalf("unknown categories never breach")
	}
}

func TestSLABreachRiskFalseWhenResolved(t *testing.T) {
	for _, category := range []models.Category{models.CategoryMinor, models.CategoryMajor, models.CategoryCableFault} {
		for _, hours := range []float64{0, 5, 72, 10000} {
			if SLABreachRisk(category, true, hours) {
				t.Fatalf("resolved %s fault at %.0fh flagged", category, hours)
			}
		}
	}
}

func TestDeriveRecomputesAsTimeAdvances(t *testing.T) {
	occurred := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	fault := models.FaultRecord{ID: "F1", Category: models.CategoryCableFault, Timestamp: occurred, PriorityScore: 0.85}

	risk, breach := Derive(fault, occurred.Add(4*time.Hour))
	if risk != models.RiskCritical || breach {
		t.Fatalf("at 4h expected CRITICAL without breach, got %s %v", risk, breach)
	}
	_, breach = Derive(fault, occurred.Add(4*time.Hour+time.Minute))
	if !breach {
		t.Fatalf("expected breach after 4h")
	}

	if err := fault.Resolve(occurred.Add(5 * time.Hour)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, breach = Derive(fault, occurred.Add(10*time.Hour)); breach {
		t.Fatalf("resolved fault must not breach")
	}
}

func TestDeriveUsesCalculatedPriority(t *testing.T) {
	calculated := 0.95
	fault := models.FaultRecord{PriorityScore: 0.2, CalculatedPriority: &calculated}
	if risk, _ := Derive(fault, time.Now()); risk != models.RiskCritical {
		t.Fatalf("expected calculated priority to drive risk, got %s", risk)
	}
}

func TestEnrich(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC) // Wednesday
	weekday := models.FaultRecord{ID: "A", Category: models.CategoryMajor, Timestamp: now.Add(-3 * time.Hour), PriorityScore: 0.7}
	weekend := models.FaultRecord{ID: "B", Category: models.CategoryMinor, Timestamp: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC), PriorityScore: 0.3}
	if err := weekend.Resolve(weekend.Timestamp.Add(time.Hour)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	enriched := Enrich([]models.FaultRecord{weekday, weekend}, now)
	if len(enriched) != 2 {
		t.Fatalf("expected 2 enriched faults, got %d", len(enriched))
	}
	a, b := enriched[0], enriched[1]
	if a.HoursSinceFault != 3 || a.Resolved || a.Risk != models.RiskHigh || !a.SLABreachRisk || !a.BusinessHours {
		t.Fatalf("unexpected enrichment for A: %+v", a)
	}
	if !b.Resolved || b.SLABreachRisk || b.BusinessHours || b.Risk != models.RiskLow {
		t.Fatalf("unexpected enrichment for B: %+v", b)
	}
}

func TestIsBusinessHours(t *testing.T) {
	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	cases := map[time.Time]bool{
		monday.Add(7*time.Hour + 59*time.Minute):  false,
		monday.Add(8 * time.Hour):                 true,
		monday.Add(17*time.Hour + 59*time.Minute): true,
		monday.Add(18 * time.Hour):                false,
		monday.AddDate(0, 0, 5).Add(10 * time.Hour): false,
	}
	for ts, want := range cases {
		if got := IsBusinessHours(ts); got != want {
			t.Fatalf("%v: expected %v, got %v", ts, want, got)
		}
	}
}
