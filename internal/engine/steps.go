package engine

import (
	"strings"

	"github.com/miradorstack/fieldops/internal/models"
)

type section int

const (
	sectionNone section = iota
	sectionSafety
	sectionDiagnostic
	sectionRepair
	sectionVerification
)

// headerSection checks triggers in fixed order so a line naming several
// sections lands in the first.
func headerSection(upper string) section {
	switch {
	case strings.Contains(upper, "SAFETY"):
		return sectionSafety
	case strings.Contains(upper, "DIAGNOSTIC"):
		return sectionDiagnostic
	case strings.Contains(upper, "REPAIR"), strings.Contains(upper, "RESOLUTION"):
		return sectionRepair
	case strings.Contains(upper, "VERIFICATION"):
		return sectionVerification
	}
	return sectionNone
}

func isStepLine(line string) bool {
	if strings.HasPrefix(line, "-") {
		return true
	}
	return len(line) >= 2 && line[0] >= '1' && line[0] <= '9' && line[1] == '.'
}

// ExtractSteps splits procedure text into step groups. Section headers switch
// the active group and are never captured; only numbered ("1." to "9.") or
// bulleted lines are kept. Lines before the first header are dropped.
func ExtractSteps(content string) models.StepGroups {
	var groups models.StepGroups
	active := sectionNone
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if next := headerSection(strings.ToUpper(line)); next != sectionNone {
			active = next
			continue
		}
		if !isStepLine(line) {
			continue
		}
		switch active {
		case sectionSafety:
			groups.Safety = append(groups.Safety, line)
		case sectionDiagnostic:
			groups.Diagnostic = append(groups.Diagnostic, line)
		case sectionRepair:
			groups.Repair = append(groups.Repair, line)
		case sectionVerification:
			groups.Verification = append(groups.Verification, line)
		}
	}
	return groups
}
