package engine

import (
	"strings"

	"github.com/miradorstack/fieldops/internal/models"
)

const (
	codeListedWeight    = 0.8
	equipmentWeight     = 0.6
	codeInContentWeight = 0.4
)

// Score rates how well doc fits a fault. Empty code or equipment type
// contribute nothing.
func Score(code, equipmentType string, doc models.ProcedureDocument) float64 {
	score := 0.0
	if code != "" {
		for _, listed := range doc.FaultCodes {
			if listed == code {
				score += codeListedWeight
				break
			}
		}
	}
	if equipmentType != "" {
		needle := strings.ToLower(equipmentType)
		for _, equipment := range doc.EquipmentTypes {
			if strings.Contains(strings.ToLower(equipment), needle) {
				score += equipmentWeight
				break
			}
		}
	}
	if code != "" && strings.Contains(doc.Body(), code) {
		score += codeInContentWeight
	}
	return score
}

// Match returns the candidate with the strictly highest score. Ties keep the
// earliest candidate. ok is false when nothing scores above zero. The
// description is accepted for callers that pass the whole fault but does not
// affect scoring.
func Match(code, equipmentType, description string, candidates []models.ProcedureDocument) (models.ProcedureDocument, float64, bool) {
	_ = description
	bestIdx := -1
	bestScore := 0.0
	for i, doc := range candidates {
		score := Score(code, equipmentType, doc)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return models.ProcedureDocument{}, 0, false
	}
	return candidates[bestIdx], bestScore, true
}
