package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/fieldops/internal/cache"
	"github.com/miradorstack/fieldops/internal/engine"
	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/repo"
	"github.com/miradorstack/fieldops/internal/utils"
)

func newAssistant(loader DatasetLoader, searcher repo.Searcher, opts AssistantOptions) *AssistantService {
	svc := NewAssistantService(nil, loader, searcher, cache.NewMemoryProvider(), opts)
	svc.now = func() time.Time { return testNow }
	ids := 0
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("id-%d", ids)
	}
	return svc
}

func TestProcedureForFault(t *testing.T) {
	svc := newAssistant(&stubLoader{ds: sampleDataset()}, nil, AssistantOptions{})

	fp, err := svc.Procedure(context.Background(), "F2")
	if err != nil {
		t.Fatalf("procedure: %v", err)
	}
	if fp.Fault.Fault.ID != "F2" || fp.Procedure.DocumentID != "SOP-003" || fp.Procedure.Generic {
		t.Fatalf("unexpected procedure %+v", fp)
	}
	if !approx(fp.Procedure.Confidence, 0.8) {
		t.Fatalf("expected confidence 0.8, got %v", fp.Procedure.Confidence)
	}

	if _, err := svc.Procedure(context.Background(), "nope"); !errors.Is(err, ErrFaultNotFound) {
		t.Fatalf("expected ErrFaultNotFound, got %v", err)
	}
}

func TestProcedureGenericWithoutDocuments(t *testing.T) {
	ds := sampleDataset()
	ds.Procedures = nil
	svc := newAssistant(&stubLoader{ds: ds}, nil, AssistantOptions{})

	fp, err := svc.Procedure(context.Background(), "F1")
	if err != nil {
		t.Fatalf("procedure: %v", err)
	}
	if !fp.Procedure.Generic || fp.Procedure.DocumentID != engine.GenericProcedureID {
		t.Fatalf("expected generic procedure, got %+v", fp.Procedure)
	}
}

func TestProcedureOverBuiltinFixtures(t *testing.T) {
	loader := repo.NewLoader(repo.NewFixtureDirStore("", nil), nil, 0, nil)
	svc := newAssistant(loader, nil, AssistantOptions{})

	fp, err := svc.Procedure(context.Background(), "F000016")
	if err != nil {
		t.Fatalf("procedure: %v", err)
	}
	if fp.Procedure.DocumentID != "SOP-001" || !approx(fp.Procedure.Confidence, 1.2) {
		t.Fatalf("unexpected match %s %.2f", fp.Procedure.DocumentID, fp.Procedure.Confidence)
	}
	if len(fp.Procedure.Steps.Safety) == 0 || len(fp.Procedure.Steps.Diagnostic) == 0 {
		t.Fatalf("expected structured steps, got %+v", fp.Procedure.Steps)
	}

	generic, err := svc.Procedure(context.Background(), "F000030")
	if err != nil {
		t.Fatalf("procedure: %v", err)
	}
	if !generic.Procedure.Generic {
		t.Fatalf("expected generic procedure for F000030")
	}
}

func TestSearchFallsBackOnError(t *testing.T) {
	searcher := &stubSearcher{err: errBoom}
	svc := newAssistant(&stubLoader{}, searcher, AssistantOptions{})

	results := svc.Search(context.Background(), repo.SearchQuery{Text: "fiber cut"})
	if len(results) != 1 || results[0].DocumentID != repo.FallbackDocumentID {
		t.Fatalf("expected fallback result, got %+v", results)
	}

	searcher.err = nil
	searcher.results = []models.SearchResult{{DocumentID: "A"}, {DocumentID: "B"}, {DocumentID: "C"}, {DocumentID: "D"}}
	results = svc.Search(context.Background(), repo.SearchQuery{Text: "fiber"})
	if len(results) != repo.MaxSearchResults {
		t.Fatalf("expected results capped at %d, got %d", repo.MaxSearchResults, len(results))
	}

	searcher.results = nil
	if results = svc.Search(context.Background(), repo.SearchQuery{Text: "zebra"}); results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", results)
	}
}

func TestAskComposesAnswer(t *testing.T) {
	searcher := &stubSearcher{results: []models.SearchResult{{
		DocumentID: "SOP-001", Title: "Cable Fault Resolution Procedures", Category: models.CategoryCableFault,
		RelevanceScore: 0.953, ContentExcerpt: "1. Ensure proper PPE",
	}}}
	svc := newAssistant(&stubLoader{}, searcher, AssistantOptions{})

	conv, err := svc.Ask(context.Background(), "", "  How to fix 812.3?  ")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if conv.SessionID != "id-1" {
		t.Fatalf("expected a generated session id, got %q", conv.SessionID)
	}
	want := "Based on our technical documentation, here's what I found:\n\n" +
		"**Source:** Cable Fault Resolution Procedures (SOP-001)\n" +
		"**Confidence:** 95.3%\n" +
		"**Category:** Cable Fault\n\n" +
		"**Answer:**\n1. Ensure proper PPE\n\n" +
		"Would you like me to provide the complete step-by-step procedure?"
	if conv.Answer.Content != want {
		t.Fatalf("unexpected answer:\n%s", conv.Answer.Content)
	}
	if len(conv.History) != 2 || conv.History[0].Content != "How to fix 812.3?" || conv.History[0].Role != models.RoleUser {
		t.Fatalf("unexpected history %+v", conv.History)
	}
	if searcher.queries[0].Text != "How to fix 812.3?" {
		t.Fatalf("question should be searched as-is, got %+v", searcher.queries[0])
	}
}

func TestAskWithoutResults(t *testing.T) {
	svc := newAssistant(&stubLoader{}, &stubSearcher{}, AssistantOptions{})
	conv, err := svc.Ask(context.Background(), "s1", "unknown issue")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.HasPrefix(conv.Answer.Content, "I couldn't find specific information") {
		t.Fatalf("unexpected answer %q", conv.Answer.Content)
	}
}

func TestAskKeepsLastMessages(t *testing.T) {
	svc := newAssistant(&stubLoader{}, &stubSearcher{}, AssistantOptions{HistorySize: 4})
	for i := 0; i < 3; i++ {
		if _, err := svc.Ask(context.Background(), "s1", fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
	}
	history, err := svc.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 || history[0].Content != "question 1" {
		t.Fatalf("expected the last four messages, got %+v", history)
	}

	other, err := svc.History(context.Background(), "s2")
	if err != nil || len(other) != 0 {
		t.Fatalf("sessions must be isolated, got %v %v", other, err)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	svc := newAssistant(&stubLoader{}, &stubSearcher{}, AssistantOptions{})
	if _, err := svc.Ask(context.Background(), "", "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

type downSource struct{}

func (downSource) Name() string { return "down" }

func (downSource) LoadFaults(context.Context) ([]models.FaultRecord, error) {
	return nil, utils.NewAppError("load faults", "fault table unavailable", errBoom)
}

func (downSource) LoadProcedures(context.Context) ([]models.ProcedureDocument, error) {
	return nil, errBoom
}

func TestProceduresWithUnavailableFaultTable(t *testing.T) {
	loader := repo.NewLoader(downSource{}, nil, 0, nil)
	svc := newAssistant(loader, nil, AssistantOptions{})

	docs, warnings, err := svc.Procedures(context.Background())
	if err != nil {
		t.Fatalf("a degraded load must still list procedures: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("expected an empty procedure list, got %v", docs)
	}
	if len(warnings) != 1 || warnings[0] != "Fault data unavailable: fault table unavailable" {
		t.Fatalf("unexpected warnings %v", warnings)
	}

	_, err = svc.Procedure(context.Background(), "F1")
	if !errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrFaultNotFound) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if msg := utils.UserMessage(err); msg != "fault data unavailable" {
		t.Fatalf("unexpected user message %q", msg)
	}
}
