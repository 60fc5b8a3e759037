// Command mock-search serves the bundled procedure documents behind an
// OpenSearch-shaped _search endpoint for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/miradorstack/fieldops/internal/models"
	"github.com/miradorstack/fieldops/internal/repo"
	"github.com/miradorstack/fieldops/internal/utils"
)

type searchRequest struct {
	Query struct {
		Bool struct {
			Must []struct {
				MultiMatch struct {
					Query string `json:"query"`
				} `json:"multi_match"`
			} `json:"must"`
		} `json:"bool"`
	} `json:"query"`
}

type hitSource struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Content    string `json:"content"`
}

type hit struct {
	ID     string    `json:"_id"`
	Score  float64   `json:"_score"`
	Source hitSource `json:"_source"`
}

func main() {
	addr := flag.String("addr", ":9200", "listen address")
	flag.Parse()

	logger := utils.NewLogger("info", false, utils.LogFile{})
	store := repo.NewFixtureDirStore(os.Getenv("FIELDOPS_FIXTURES_DIR"), logger)
	docs, err := store.LoadProcedures(context.Background())
	if err != nil {
		logger.Error("load procedures", slog.Any("error", err))
		os.Exit(1)
	}
	byID := make(map[string]models.ProcedureDocument, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	searcher := repo.NewLocalSearcher(func(context.Context) ([]models.ProcedureDocument, error) {
		return docs, nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, map[string]any{
			"name":    "mock-search",
			"version": map[string]any{"distribution": "opensearch", "number": "2.11.0"},
		})
	})
	mux.HandleFunc("POST /{index}/_search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text := ""
		if must := req.Query.Bool.Must; len(must) > 0 {
			text = must[0].MultiMatch.Query
		}
		results, err := searcher.Search(r.Context(), repo.SearchQuery{Text: text})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hits := make([]hit, 0, len(results))
		maxScore := 0.0
		for _, res := range results {
			doc := byID[res.DocumentID]
			hits = append(hits, hit{
				ID:    res.DocumentID,
				Score: res.RelevanceScore,
				Source: hitSource{
					DocumentID: doc.ID,
					Title:      doc.Title,
					Category:   string(doc.Category),
					Content:    doc.Body(),
				},
			})
			if res.RelevanceScore > maxScore {
				maxScore = res.RelevanceScore
			}
		}
		writeJSON(w, logger, map[string]any{
			"took": 1,
			"hits": map[string]any{
				"total":     map[string]any{"value": len(hits), "relation": "eq"},
				"max_score": maxScore,
				"hits":      hits,
			},
		})
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("mock search listening", slog.String("addr", *addr), slog.Int("documents", len(docs)))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode error", slog.Any("error", err))
	}
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("request", slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", rw.status), slog.Duration("elapsed", time.Since(start)))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
