package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/miradorstack/fieldops/internal/models"
)

// roundTripFunc answers OpenSearch requests in-process.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestOpenSearch(t *testing.T, rt roundTripFunc) *OpenSearchClient {
	t.Helper()
	client, err := NewOpenSearchClient(OpenSearchConfig{
		Addresses: []string{"http://search.local:9200"},
		Index:     "sop-documents",
		Transport: rt,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestOpenSearchSearch(t *testing.T) {
	var captured map[string]any
	client := newTestOpenSearch(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/sop-documents/_search" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		data, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(data, &captured); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"hits":{"max_score":8.0,"hits":[
			{"_id":"a","_score":8.0,"_source":{"document_id":"SOP-001","title":"Fiber Optic Cable Repair","category":"Cable Fault","content":"SAFETY first. Splice the fiber and test signal loss."}},
			{"_id":"SOP-002","_score":4.0,"_source":{"title":"CMTS Troubleshooting","category":"major","content":"Check upstream signal"}},
			{"_id":"c","_score":2.0,"_source":{"document_id":"SOP-003","title":"Amplifier","category":"Minor","content":"x"}},
			{"_id":"d","_score":1.0,"_source":{"document_id":"SOP-004","title":"Extra","category":"Minor","content":"y"}}
		]}}`), nil
	})

	results, err := client.Search(context.Background(), SearchQuery{Text: "signal loss", FaultCode: "812.3"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != MaxSearchResults {
		t.Fatalf("expected %d results, got %d", MaxSearchResults, len(results))
	}
	if results[0].DocumentID != "SOP-001" || results[0].RelevanceScore != 1 || results[0].Category != models.CategoryCableFault {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].DocumentID != "SOP-002" || results[1].RelevanceScore != 0.5 || results[1].Category != models.CategoryMajor {
		t.Fatalf("unexpected second result %+v", results[1])
	}
	if !strings.Contains(results[0].ContentExcerpt, "signal loss") {
		t.Fatalf("expected excerpt around the query, got %q", results[0].ContentExcerpt)
	}

	if captured["size"].(float64) != MaxSearchResults {
		t.Fatalf("expected size %d in request, got %v", MaxSearchResults, captured["size"])
	}
	body, _ := json.Marshal(captured)
	if !bytes.Contains(body, []byte(`"signal loss 812.3"`)) || !bytes.Contains(body, []byte(`"fault_codes"`)) {
		t.Fatalf("request body missing enhanced query or code filter: %s", body)
	}
}

func TestOpenSearchSearchErrors(t *testing.T) {
	client := newTestOpenSearch(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `{"error":"index_not_found"}`), nil
	})
	if _, err := client.Search(context.Background(), SearchQuery{Text: "cable"}); err == nil || !strings.Contains(err.Error(), "index_not_found") {
		t.Fatalf("expected status error, got %v", err)
	}

	failing := newTestOpenSearch(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	if _, err := failing.Search(context.Background(), SearchQuery{Text: "cable"}); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestNewOpenSearchClientValidation(t *testing.T) {
	if _, err := NewOpenSearchClient(OpenSearchConfig{Index: "x"}, nil); err == nil {
		t.Fatalf("expected error without addresses")
	}
	if _, err := NewOpenSearchClient(OpenSearchConfig{Addresses: []string{"localhost:9200"}}, nil); err == nil {
		t.Fatalf("expected error without index")
	}
}

func TestFallbackResults(t *testing.T) {
	results := FallbackResults("fiber cut")
	if len(results) != 1 || results[0].DocumentID != FallbackDocumentID || results[0].RelevanceScore != 0.5 {
		t.Fatalf("unexpected fallback %+v", results)
	}
	if results[0].ContentExcerpt != "Unable to search for: fiber cut. Please check system connectivity." {
		t.Fatalf("unexpected excerpt %q", results[0].ContentExcerpt)
	}
}

func TestLocalSearcher(t *testing.T) {
	docs := []models.ProcedureDocument{
		{ID: "SOP-A", Title: "Amplifier Replacement", Category: models.CategoryMinor, Content: "Replace the amplifier module."},
		{ID: "SOP-B", Title: "Fiber Splice", Category: models.CategoryCableFault, FaultCodes: []string{"812.3"}, Content: "Locate the fiber break and splice."},
		{ID: "SOP-C", Title: "Billing", Content: "Unrelated."},
	}
	searcher := NewLocalSearcher(func(context.Context) ([]models.ProcedureDocument, error) { return docs, nil })
	if searcher.Backend() != "local" {
		t.Fatalf("unexpected backend %s", searcher.Backend())
	}

	results, err := searcher.Search(context.Background(), SearchQuery{Text: "how do I splice fiber", FaultCode: "812.3"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "SOP-B" || results[0].RelevanceScore != 1 {
		t.Fatalf("unexpected results %+v", results)
	}

	none, err := searcher.Search(context.Background(), SearchQuery{Text: "zebra"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no results, got %v %v", none, err)
	}

	broken := NewLocalSearcher(func(context.Context) ([]models.ProcedureDocument, error) { return nil, errors.New("boom") })
	if _, err := broken.Search(context.Background(), SearchQuery{Text: "fiber"}); err == nil {
		t.Fatalf("expected lister error")
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("How do I fix the 812.3 Fiber fiber?")
	want := []string{"fix", "812.3", "fiber"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
