package engine

import (
	"strings"

	"github.com/miradorstack/fieldops/internal/models"
)

// GenericProcedureID identifies the fallback procedure.
const GenericProcedureID = "GENERIC"

type categoryEstimate struct {
	time  string
	tools []string
}

var (
	cableFaultEstimate = categoryEstimate{"4-8 hours", []string{"TDR", "Spectrum Analyzer", "Splice Kit", "Excavation Tools"}}
	majorEstimate      = categoryEstimate{"2-4 hours", []string{"Optical Power Meter", "Laptop", "Console Cable"}}
	minorEstimate      = categoryEstimate{"30 minutes - 1 hour", []string{"Signal Level Meter", "Laptop"}}
)

func estimateFor(category models.Category) categoryEstimate {
	switch category {
	case models.CategoryCableFault:
		return cableFaultEstimate
	case models.CategoryMajor:
		return majorEstimate
	default:
		return minorEstimate
	}
}

// BuildProcedure turns the best matching document into a repair procedure,
// or returns the generic procedure when nothing matches.
func BuildProcedure(fault models.FaultRecord, candidates []models.ProcedureDocument) models.RepairProcedure {
	doc, score, ok := Match(fault.Code, fault.EquipmentType, fault.Description, candidates)
	if !ok {
		return GenericProcedure(fault)
	}

	body := doc.Body()
	estimate := estimateFor(doc.Category)
	procedure := models.RepairProcedure{
		DocumentID:    doc.ID,
		Title:         doc.Title,
		Category:      doc.Category,
		Confidence:    score,
		Steps:         ExtractSteps(body),
		EstimatedTime: estimate.time,
		RequiredTools: append([]string(nil), estimate.tools...),
		FullContent:   body,
	}
	if declared, ok := declaredValue(body, "ESTIMATED TIME:"); ok {
		procedure.EstimatedTime = declared
	}
	if declared, ok := declaredValue(body, "TOOLS REQUIRED:"); ok {
		if tools := splitList(declared); len(tools) > 0 {
			procedure.RequiredTools = tools
		}
	}
	return procedure
}

// GenericProcedure is the fallback shown when no document scores above zero.
func GenericProcedure(fault models.FaultRecord) models.RepairProcedure {
	return models.RepairProcedure{
		DocumentID: GenericProcedureID,
		Title:      "Generic Repair Procedure",
		Category:   fault.Category,
		Steps: models.StepGroups{
			Safety: []string{
				"Ensure proper PPE (hard hat, safety vest, gloves)",
				"Check for electrical hazards before starting work",
				"Establish safety perimeter around work area",
				"Verify equipment is properly grounded",
			},
			Diagnostic: []string{
				"Review fault description and error codes",
				"Check system alarms and status indicators",
				"Perform initial visual inspection",
				"Test signal levels and connectivity",
			},
			Repair: []string{
				"Follow manufacturer guidelines for the equipment",
				"Replace or repair faulty components as needed",
				"Ensure all connections are secure",
				"Update system configuration if required",
			},
			Verification: []string{
				"Test system functionality after repair",
				"Verify signal levels are within specifications",
				"Check for any remaining alarms or errors",
				"Document repair actions and test results",
			},
		},
		EstimatedTime: "2-4 hours",
		RequiredTools: []string{"Standard toolkit", "Multimeter", "Signal analyzer"},
		FullContent:   "Generic repair procedure for " + fault.Description,
		Generic:       true,
	}
}

// declaredValue returns the text after a "KEY:" line prefix, matched
// case-insensitively.
func declaredValue(body, prefix string) (string, bool) {
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
			continue
		}
		value := strings.TrimSpace(line[len(prefix):])
		if value != "" {
			return value, true
		}
	}
	return "", false
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
