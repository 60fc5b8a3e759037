package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/fieldops/internal/models"
)

func sampleDashboard() models.Dashboard {
	return models.Dashboard{
		GeneratedAt: time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC),
		Filter:      models.FaultFilter{Location: "Aarhus"},
		KPIs: models.KPISummary{
			TotalFaults: 12, ActiveFaults: 4, RecentFaults: 2, CriticalActive: 1, SLARisk: 2,
			FirstTimeFixRate: 0.75, HasFirstTimeFix: true, FirstTimeFixTarget: 0.85,
			CustomersAffected: 340, RevenueAtRisk: 15230,
		},
		Alerts: []models.Alert{{
			FaultID: "F000016", Level: models.AlertCritical, Location: "Aarhus", Category: models.CategoryCableFault,
			Description: "Fiber cut", CustomersAffected: 250, HoursSinceFault: 5.5,
			Action: "Deploy Specialist technician immediately", Recommendations: []string{"Notify the NOC"},
		}},
		CategoryImpact:   []models.CategoryImpact{{Category: models.CategoryCableFault, ActiveFaults: 1, CustomersAffected: 250}},
		PriorityTimeline: []models.TimelinePoint{{FaultID: "F000016", HoursSinceFault: 5.5, Priority: 0.91, Risk: models.RiskCritical, Description: "Fiber cut"}},
		LocationImpact:   []models.LocationImpact{{Location: "Aarhus", Category: models.CategoryCableFault, Faults: 1, CustomersAffected: 250, MeanPriority: 0.91}},
		Queue: []models.EnrichedFault{{
			Fault:    models.FaultRecord{ID: "F000016", Category: models.CategoryCableFault, Location: "Aarhus", EquipmentType: "Cisco ASR9000"},
			Priority: 0.91, Risk: models.RiskCritical, SLABreachRisk: true,
		}},
		Warnings: []string{"ML predictions unavailable, using original data"},
	}
}

func sampleProcedure() models.RepairProcedure {
	return models.RepairProcedure{
		DocumentID: "SOP-001", Title: "Fiber Optic Cable Repair", Category: models.CategoryCableFault,
		Confidence: 1.2, EstimatedTime: "4-8 hours", RequiredTools: []string{"OTDR", "Fusion splicer"},
		Steps: models.StepGroups{
			Safety: []string{"1. Wear eye protection"},
			Repair: []string{"1. Splice the fiber"},
		},
	}
}

func TestSelect(t *testing.T) {
	var buf bytes.Buffer

	r, err := Select(ModePlain, &buf, 0)
	require.NoError(t, err)
	assert.IsType(t, &Plain{}, r)

	r, err = Select(ModeRich, &buf, 80)
	require.NoError(t, err)
	assert.IsType(t, &Rich{}, r)

	r, err = Select(ModeAuto, &buf, 80)
	require.NoError(t, err)
	assert.IsType(t, &Plain{}, r, "a buffer is not a terminal")

	_, err = Select("sparkles", &buf, 80)
	assert.Error(t, err)
}

func TestPlainDashboard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlain(&buf).Dashboard(sampleDashboard()))

	out := buf.String()
	assert.Contains(t, out, "FAULT TRIAGE DASHBOARD")
	assert.Contains(t, out, "location=Aarhus")
	assert.Contains(t, out, "WARNING: ML predictions unavailable, using original data")
	assert.Contains(t, out, "75.0% (target 85.0%)")
	assert.Contains(t, out, "15230 DKK")
	assert.Contains(t, out, "[CRITICAL] F000016 Cable Fault at Aarhus")
	assert.Contains(t, out, "action: Deploy Specialist technician immediately")
	assert.Contains(t, out, "AT RISK")
	assert.NotContains(t, out, "\x1b[")
}

func TestPlainDashboardWithoutResolvedFaults(t *testing.T) {
	d := models.Dashboard{KPIs: models.KPISummary{FirstTimeFixTarget: 0.85}}
	var buf bytes.Buffer
	require.NoError(t, NewPlain(&buf).Dashboard(d))
	assert.Contains(t, buf.String(), "First-time fix  n/a")
	assert.Contains(t, buf.String(), "No critical alerts.")
	assert.Contains(t, buf.String(), "all faults")
}

func TestPlainProcedure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlain(&buf).Procedure("F000016", sampleProcedure()))

	out := buf.String()
	assert.Contains(t, out, "# Fiber Optic Cable Repair")
	assert.Contains(t, out, "**Confidence:** 120.0%")
	assert.Contains(t, out, "## Safety\n\n1. Wear eye protection")
	assert.Contains(t, out, "- Fusion splicer")
	assert.NotContains(t, out, "## Diagnostic")
}

func TestProcedureMarkdownFallsBackToFullContent(t *testing.T) {
	p := models.RepairProcedure{Title: "Generic", FullContent: "Call support."}
	md := procedureMarkdown("", p)
	assert.Contains(t, md, "## Procedure\n\nCall support.")
	assert.NotContains(t, md, "**Fault:**")
}

func TestRichRendersWithoutError(t *testing.T) {
	var buf bytes.Buffer
	r := NewRich(&buf, 100)
	r.markdownStyle = "notty"

	require.NoError(t, r.Dashboard(sampleDashboard()))
	assert.Contains(t, buf.String(), "Fault Triage Dashboard")
	assert.Contains(t, buf.String(), "F000016")

	buf.Reset()
	require.NoError(t, r.Procedure("F000016", sampleProcedure()))
	assert.Contains(t, buf.String(), "Fiber Optic Cable Repair")
	assert.Contains(t, buf.String(), "Splice the fiber")

	buf.Reset()
	msgs := []models.ChatMessage{
		{Role: models.RoleUser, Content: "fiber cut?"},
		{Role: models.RoleAssistant, Content: "**Source:** Fiber Optic Cable Repair (SOP-001)"},
	}
	require.NoError(t, r.Conversation(msgs))
	assert.Contains(t, buf.String(), "You")
	assert.Contains(t, buf.String(), "SOP-001")
}

func TestPlainSearchResults(t *testing.T) {
	var buf bytes.Buffer
	results := []models.SearchResult{{DocumentID: "SOP-002", Title: "CMTS", Category: models.CategoryMajor, RelevanceScore: 0.5, ContentExcerpt: "Check upstream"}}
	require.NoError(t, NewPlain(&buf).SearchResults("upstream", results))
	assert.Contains(t, buf.String(), `Results for "upstream"`)
	assert.Contains(t, buf.String(), "50.0%")
	assert.Contains(t, buf.String(), "SOP-002:\nCheck upstream")
}
