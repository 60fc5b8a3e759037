package repo

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/miradorstack/fieldops/internal/engine"
	"github.com/miradorstack/fieldops/internal/models"
)

// MaxSearchResults caps every search response.
const MaxSearchResults = 3

// FallbackDocumentID marks the placeholder result returned on failure.
const FallbackDocumentID = "SOP-FALLBACK"

// SearchQuery is a free-text query with optional fault filters.
type SearchQuery struct {
	Text          string
	FaultCode     string
	EquipmentType string
}

// Enhanced joins the text with the filter values, which is what the search
// backends match against.
func (q SearchQuery) Enhanced() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.Text, q.FaultCode, q.EquipmentType} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Searcher answers procedure queries.
type Searcher interface {
	Backend() string
	Search(ctx context.Context, q SearchQuery) ([]models.SearchResult, error)
}

// FallbackResults is the single placeholder shown when search fails.
func FallbackResults(query string) []models.SearchResult {
	return []models.SearchResult{{
		DocumentID:     FallbackDocumentID,
		Title:          "Search Service Unavailable",
		Category:       models.Category("System"),
		RelevanceScore: 0.5,
		ContentExcerpt: fmt.Sprintf("Unable to search for: %s. Please check system connectivity.", query),
	}}
}

// OpenSearchConfig configures the procedure index client.
type OpenSearchConfig struct {
	Addresses          []string
	Username           string
	Password           string
	Index              string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Transport          http.RoundTripper
}

// OpenSearchClient searches an OpenSearch procedure index.
type OpenSearchClient struct {
	client *opensearch.Client
	index  string
	logger *slog.Logger
}

// NewOpenSearchClient builds the SDK client. No request is sent until the
// first search.
func NewOpenSearchClient(cfg OpenSearchConfig, logger *slog.Logger) (*OpenSearchClient, error) {
	addresses := make([]string, 0, len(cfg.Addresses))
	for _, host := range cfg.Addresses {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			host = "http://" + host
		}
		addresses = append(addresses, strings.TrimRight(host, "/"))
	}
	if len(addresses) == 0 {
		return nil, errors.New("opensearch addresses are required")
	}
	if cfg.Index == "" {
		return nil, errors.New("opensearch index is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		dialer := &net.Dialer{Timeout: timeout}
		transport = &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		}
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("init opensearch client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenSearchClient{client: client, index: cfg.Index, logger: logger}, nil
}

// Backend names the search backend for metrics.
func (c *OpenSearchClient) Backend() string { return "opensearch" }

type searchHit struct {
	ID     string  `json:"_id"`
	Score  float64 `json:"_score"`
	Source struct {
		DocumentID string `json:"document_id"`
		Title      string `json:"title"`
		Category   string `json:"category"`
		Content    string `json:"content"`
	} `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		MaxScore float64     `json:"max_score"`
		Hits     []searchHit `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match over title, content and the keyed fields.
// Scores are normalised by the best hit.
func (c *OpenSearchClient) Search(ctx context.Context, q SearchQuery) ([]models.SearchResult, error) {
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, err
	}
	req := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.index, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search %s failed: %s: %s", c.index, res.Status(), strings.TrimSpace(string(data)))
	}

	var decoded searchResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]models.SearchResult, 0, len(decoded.Hits.Hits))
	for _, hit := range decoded.Hits.Hits {
		if len(results) == MaxSearchResults {
			break
		}
		id := hit.Source.DocumentID
		if id == "" {
			id = hit.ID
		}
		results = append(results, models.SearchResult{
			DocumentID:     id,
			Title:          hit.Source.Title,
			Category:       models.ParseCategory(hit.Source.Category),
			RelevanceScore: normaliseScore(hit.Score, decoded.Hits.MaxScore),
			ContentExcerpt: engine.Excerpt(hit.Source.Content, q.Text, engine.DefaultExcerptLength),
		})
	}
	c.logger.Debug("procedure search", slog.String("query", q.Text), slog.Int("results", len(results)))
	return results, nil
}

func buildSearchBody(q SearchQuery) map[string]any {
	should := make([]any, 0, 2)
	if q.FaultCode != "" {
		should = append(should, map[string]any{"term": map[string]any{"fault_codes": map[string]any{"value": q.FaultCode, "boost": 2}}})
	}
	if q.EquipmentType != "" {
		should = append(should, map[string]any{"match": map[string]any{"equipment_types": q.EquipmentType}})
	}
	return map[string]any{
		"size": MaxSearchResults,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"multi_match": map[string]any{
						"query":  q.Enhanced(),
						"fields": []string{"title^2", "content", "fault_codes", "equipment_types"},
					}},
				},
				"should": should,
			},
		},
		"_source": []string{"document_id", "title", "category", "content"},
	}
}

func normaliseScore(score, best float64) float64 {
	if best <= 0 || score <= 0 {
		return 0
	}
	n := score / best
	if n > 1 {
		return 1
	}
	return n
}
