package models

import "strings"

// ProcedureDocument is a repair or troubleshooting reference keyed by fault
// code and equipment type.
type ProcedureDocument struct {
	ID             string   `json:"document_id"`
	Title          string   `json:"title"`
	Category       Category `json:"category"`
	EquipmentTypes []string `json:"equipment_types"`
	FaultCodes     []string `json:"fault_codes"`
	Content        string   `json:"content"`
}

// Body returns the content, falling back to the title for stub documents.
func (d ProcedureDocument) Body() string {
	if strings.TrimSpace(d.Content) != "" {
		return d.Content
	}
	return d.Title
}

// StepGroups holds ordered steps per section.
type StepGroups struct {
	Safety       []string `json:"safety"`
	Diagnostic   []string `json:"diagnostic"`
	Repair       []string `json:"repair"`
	Verification []string `json:"verification"`
}

// Empty reports whether no structured steps were found.
func (s StepGroups) Empty() bool {
	return len(s.Safety) == 0 && len(s.Diagnostic) == 0 && len(s.Repair) == 0 && len(s.Verification) == 0
}

// RepairProcedure is built per request from the best matching document.
type RepairProcedure struct {
	DocumentID    string     `json:"source_document"`
	Title         string     `json:"document_title"`
	Category      Category   `json:"category"`
	Confidence    float64    `json:"confidence"`
	Steps         StepGroups `json:"steps"`
	EstimatedTime string     `json:"estimated_time"`
	RequiredTools []string   `json:"required_tools"`
	FullContent   string     `json:"full_content"`
	Generic       bool       `json:"generic"`
}

// HasStructuredSteps reports whether callers can render step lists instead
// of the full content.
func (p RepairProcedure) HasStructuredSteps() bool {
	return !p.Steps.Empty()
}

// SearchResult is one ranked hit from the document search capability.
type SearchResult struct {
	DocumentID     string   `json:"document_id"`
	Title          string   `json:"title"`
	Category       Category `json:"category"`
	RelevanceScore float64  `json:"relevance_score"`
	ContentExcerpt string   `json:"content_excerpt"`
}
