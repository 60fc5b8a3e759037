package repo

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/miradorstack/fieldops/internal/engine"
	"github.com/miradorstack/fieldops/internal/models"
)

// ProcedureLister supplies the documents a LocalSearcher ranks.
type ProcedureLister func(ctx context.Context) ([]models.ProcedureDocument, error)

// LocalSearcher ranks loaded procedures by keyword overlap. It stands in for
// the search index when none is configured.
type LocalSearcher struct {
	list ProcedureLister
}

// NewLocalSearcher ranks the documents returned by list.
func NewLocalSearcher(list ProcedureLister) *LocalSearcher {
	return &LocalSearcher{list: list}
}

// Backend names the search backend for metrics.
func (s *LocalSearcher) Backend() string { return "local" }

// Search scores each document on query terms found in its title (weighted
// double) and body, plus the fault-code and equipment matcher score.
func (s *LocalSearcher) Search(ctx context.Context, q SearchQuery) ([]models.SearchResult, error) {
	docs, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	terms := tokenize(q.Enhanced())

	type scored struct {
		doc   models.ProcedureDocument
		score float64
	}
	var ranked []scored
	for _, doc := range docs {
		title := strings.ToLower(doc.Title)
		body := strings.ToLower(doc.Body())
		score := engine.Score(q.FaultCode, q.EquipmentType, doc)
		for _, term := range terms {
			if strings.Contains(title, term) {
				score += 2
			}
			if strings.Contains(body, term) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{doc: doc, score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > MaxSearchResults {
		ranked = ranked[:MaxSearchResults]
	}

	results := make([]models.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, models.SearchResult{
			DocumentID:     r.doc.ID,
			Title:          r.doc.Title,
			Category:       r.doc.Category,
			RelevanceScore: normaliseScore(r.score, ranked[0].score),
			ContentExcerpt: engine.Excerpt(r.doc.Body(), q.Text, engine.DefaultExcerptLength),
		})
	}
	return results, nil
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "how": {}, "what": {}, "with": {}, "do": {}, "to": {}, "of": {}, "is": {}, "a": {}, "an": {}, "on": {}, "in": {}, "i": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-'
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
