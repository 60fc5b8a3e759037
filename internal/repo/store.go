package repo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/miradorstack/fieldops/internal/models"
)

// Source reads fault and procedure records from a backing store.
type Source interface {
	Name() string
	LoadFaults(ctx context.Context) ([]models.FaultRecord, error)
	LoadProcedures(ctx context.Context) ([]models.ProcedureDocument, error)
}

// TriageScore is the ML output for one fault.
type TriageScore struct {
	PredictedCategory  models.Category
	CalculatedPriority *float64
}

// TriageSource is implemented by sources that expose ML triage outputs.
type TriageSource interface {
	LoadTriage(ctx context.Context) (map[string]TriageScore, error)
}

// mergeTriage copies ML outputs onto faults. Faults without a score keep
// their original category and priority.
func mergeTriage(faults []models.FaultRecord, scores map[string]TriageScore) {
	for i := range faults {
		score, ok := scores[faults[i].ID]
		if !ok {
			continue
		}
		if score.PredictedCategory != "" {
			faults[i].PredictedCategory = score.PredictedCategory
		}
		if score.CalculatedPriority != nil {
			priority := *score.CalculatedPriority
			faults[i].CalculatedPriority = &priority
		}
	}
}

// parseList accepts JSON arrays, Postgres array literals and comma
// separated strings.
func parseList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "[") {
		var out []string
		if err := json.Unmarshal([]byte(value), &out); err == nil {
			return out
		}
	}
	value = strings.TrimSuffix(strings.TrimPrefix(value, "{"), "}")
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
