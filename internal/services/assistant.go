package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/fieldops/internal/cache"
	"github.com/miradorstack/fieldops/internal/engine"
	"github.com/miradorstack/fieldops/internal/metrics"
	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/repo"
	"github.com/miradorstack/fieldops/internal/utils"
)

const (
	// DefaultHistorySize is how many chat messages a session returns.
	DefaultHistorySize = 10
	sessionKeyPrefix   = "fieldops:session:"

	noAnswer = "I couldn't find specific information about that issue. Please try rephrasing your question or contact technical support for assistance."
)

// ErrEmptyQuestion is returned by Ask for blank questions.
var ErrEmptyQuestion = errors.New("question is empty")

// FaultProcedure pairs a fault with the procedure built for it.
type FaultProcedure struct {
	Fault     models.EnrichedFault   `json:"fault"`
	Procedure models.RepairProcedure `json:"procedure"`
}

// Conversation is the state of one assistant session after a turn.
type Conversation struct {
	SessionID string               `json:"session_id"`
	Answer    models.ChatMessage   `json:"answer"`
	History   []models.ChatMessage `json:"history"`
}

// AssistantOptions tunes session storage.
type AssistantOptions struct {
	HistorySize int
	SessionTTL  time.Duration
}

// AssistantService answers field engineer questions from procedure documents.
type AssistantService struct {
	logger   *slog.Logger
	loader   DatasetLoader
	searcher repo.Searcher
	sessions cache.Provider
	opts     AssistantOptions
	mu       sync.Mutex
	now      func() time.Time
	newID    func() string
}

// NewAssistantService wires search and session storage. A nil sessions
// provider keeps sessions in process memory.
func NewAssistantService(logger *slog.Logger, loader DatasetLoader, searcher repo.Searcher, sessions cache.Provider, opts AssistantOptions) *AssistantService {
	if logger == nil {
		logger = slog.Default()
	}
	if sessions == nil {
		sessions = cache.NewMemoryProvider()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &AssistantService{
		logger:   logger,
		loader:   loader,
		searcher: searcher,
		sessions: sessions,
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Procedure builds the repair procedure for a loaded fault.
func (s *AssistantService) Procedure(ctx context.Context, faultID string) (FaultProcedure, error) {
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return FaultProcedure{}, dataUnavailable("procedure", err)
	}
	for _, record := range ds.Faults {
		if record.ID != faultID {
			continue
		}
		enriched := engine.Enrich([]models.FaultRecord{record}, s.now())[0]
		procedure := engine.BuildProcedure(record, ds.Procedures)
		metrics.ObserveProcedure(procedure.Generic)
		s.logger.Debug("procedure built",
			slog.String("fault_id", faultID),
			slog.String("document_id", procedure.DocumentID),
			slog.Float64("confidence", procedure.Confidence),
		)
		return FaultProcedure{Fault: enriched, Procedure: procedure}, nil
	}
	return FaultProcedure{}, utils.NewAppError("procedure", "fault "+faultID+" not found", ErrFaultNotFound)
}

// Procedures lists the loaded procedure documents. A degraded load yields
// whatever documents were read plus the load warnings, never an error.
func (s *AssistantService) Procedures(ctx context.Context) ([]models.ProcedureDocument, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ds, err := s.loader.Load(ctx)
	if err != nil {
		s.logger.Warn("procedures listed from degraded dataset", slog.Any("error", err))
	}
	docs := ds.Procedures
	if docs == nil {
		docs = []models.ProcedureDocument{}
	}
	return docs, ds.Warnings, nil
}

// Search returns at most repo.MaxSearchResults results. Backend failures
// yield the single fallback result instead of an error.
func (s *AssistantService) Search(ctx context.Context, q repo.SearchQuery) []models.SearchResult {
	if s.searcher == nil {
		metrics.ObserveSearch("none", metrics.OutcomeFallback)
		return repo.FallbackResults(q.Text)
	}
	results, err := s.searcher.Search(ctx, q)
	if err != nil {
		s.logger.Error("procedure search failed", slog.String("backend", s.searcher.Backend()), slog.Any("error", err))
		metrics.ObserveSearch(s.searcher.Backend(), metrics.OutcomeFallback)
		return repo.FallbackResults(q.Text)
	}
	metrics.ObserveSearch(s.searcher.Backend(), metrics.OutcomeSuccess)
	if len(results) > repo.MaxSearchResults {
		results = results[:repo.MaxSearchResults]
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	return results
}

// Ask answers question from the best search result and appends the turn to
// the session. An empty sessionID starts a new session.
func (s *AssistantService) Ask(ctx context.Context, sessionID, question string) (Conversation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Conversation{}, utils.NewAppError("ask", "question is required", ErrEmptyQuestion)
	}
	if sessionID == "" {
		sessionID = s.newID()
	}

	asked := models.ChatMessage{ID: s.newID(), Role: models.RoleUser, Content: question, Timestamp: s.now()}
	results := s.Search(ctx, repo.SearchQuery{Text: question})
	answer := models.ChatMessage{
		ID:        s.newID(),
		Role:      models.RoleAssistant,
		Content:   composeAnswer(results),
		Timestamp: s.now(),
		Sources:   results,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.history(ctx, sessionID)
	if err != nil {
		return Conversation{}, err
	}
	history = append(history, asked, answer)
	if len(history) > s.opts.HistorySize {
		history = history[len(history)-s.opts.HistorySize:]
	}
	if err := cache.SetJSON(ctx, s.sessions, sessionKeyPrefix+sessionID, history, s.opts.SessionTTL); err != nil {
		return Conversation{}, utils.NewAppError("ask", "session storage unavailable", err)
	}
	return Conversation{SessionID: sessionID, Answer: answer, History: history}, nil
}

// History returns the stored messages of a session, oldest first.
func (s *AssistantService) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history(ctx, sessionID)
}

func (s *AssistantService) history(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	history, err := cache.GetJSON[[]models.ChatMessage](ctx, s.sessions, sessionKeyPrefix+sessionID)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		return []models.ChatMessage{}, nil
	case errors.Is(err, cache.ErrCorruptEntry):
		s.logger.Warn("discarding corrupt session", slog.String("session_id", sessionID), slog.Any("error", err))
		return []models.ChatMessage{}, nil
	case err != nil:
		return nil, utils.NewAppError("session", "session storage unavailable", err)
	}
	if history == nil {
		history = []models.ChatMessage{}
	}
	return history, nil
}

func composeAnswer(results []models.SearchResult) string {
	if len(results) == 0 {
		return noAnswer
	}
	best := results[0]
	return fmt.Sprintf(`Based on our technical documentation, here's what I found:

**Source:** %s (%s)
**Confidence:** %.1f%%
**Category:** %s

**Answer:**
%s

Would you like me to provide the complete step-by-step procedure?`,
		best.Title, best.DocumentID, best.RelevanceScore*100, best.Category, best.ContentExcerpt)
}
