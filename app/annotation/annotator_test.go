package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/llm"
)

type mockStore struct {
	mu          sync.Mutex
	annotations []*database.Annotation
	summaries   []*database.Summary
	err         error
}

func (m *mockStore) InsertAnnotation(ctx context.Context, a *database.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	a.ID = "annotation-" + a.ArticleID
	m.annotations = append(m.annotations, a)
	return nil
}

func (m *mockStore) InsertSummary(ctx context.Context, s *database.Summary) error {
	if m.err != nil {
		return m.err
	}
	s.ID = "summary-1"
	m.summaries = append(m.summaries, s)
	return nil
}

type mockGenerator struct {
	responses []string
	errs      []error
	prompts   []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	i := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", errors.New("unexpected call")
}

func geminiBody(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return body
}

var testArticles = []Article{
	{ID: "a1", Title: "SEC approves spot ETH ETF", Source: "CoinDesk", Content: "Approval.", NameCategory: "ETH"},
	{ID: "a2", Title: "BTC miners sell", Source: "Cointelegraph", Content: "Selling.", NameCategory: "BTC"},
}

const goodResponse = `{"summary": "Bullish approval", "sentiment": "Positive", "trending_score": 90, "key_points": ["approval"], "related_cryptos": ["ETH"], "market_impact_score": 85}`

func TestAnnotateModelFailureOnSecondArticle(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(geminiBody("Result:\n```json\n" + goodResponse + "\n```"))
	}))
	defer server.Close()

	gemini, err := llm.NewGeminiClient("key", llm.WithGeminiBaseURL(server.URL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	store := &mockStore{}
	annotator := NewAnnotator(gemini, store, "", 0)

	report, err := annotator.Annotate(context.Background(), Request{
		Articles:    testArticles,
		SummaryType: "Sentiment-Based Summarization",
	})
	if err != nil {
		t.Fatalf("Annotate returned error: %v", err)
	}

	if report.Processed != 2 || report.Successful != 1 || report.Failed != 1 {
		t.Errorf("Expected 2/1/1, got %d/%d/%d", report.Processed, report.Successful, report.Failed)
	}
	if !report.Success {
		t.Error("Expected report success even with a failed item")
	}
	if report.Message != "Processed 1/2 articles successfully" {
		t.Errorf("Unexpected message: %s", report.Message)
	}
	if report.SummaryType != "Sentiment-Based Summarization" {
		t.Errorf("Unexpected summary type: %s", report.SummaryType)
	}

	if len(store.annotations) != 2 {
		t.Fatalf("Expected 2 stored records, got %d", len(store.annotations))
	}

	first := store.annotations[0]
	if first.Sentiment != "Positive" || first.TrendingScore != 90 || first.OriginalNameCategory != "ETH" {
		t.Errorf("Unexpected first record: %+v", first)
	}

	second := store.annotations[1]
	if second.Summary != DefaultSummary || second.Sentiment != "Neutral" || second.TrendingScore != 50 || second.MarketImpactScore != 50 {
		t.Errorf("Expected default second record, got %+v", second)
	}

	if !report.Results[0].Success || report.Results[0].Summary == nil {
		t.Errorf("Expected first result to succeed with summary, got %+v", report.Results[0])
	}
	if report.Results[1].Success || report.Results[1].Error == "" || report.Results[1].ArticleID != "a2" {
		t.Errorf("Expected second result to fail with error, got %+v", report.Results[1])
	}
}

func TestAnnotateNoJSONPersistsDefaults(t *testing.T) {
	store := &mockStore{}
	gen := &mockGenerator{responses: []string{"Sorry, I can't do that."}}
	annotator := NewAnnotator(gen, store, "", 0)

	report, err := annotator.Annotate(context.Background(), Request{Articles: testArticles[:1], SummaryType: "extractive"})
	if err != nil {
		t.Fatalf("Annotate returned error: %v", err)
	}

	if report.Failed != 1 || report.Results[0].Success {
		t.Errorf("Expected item to be reported as failed, got %+v", report.Results[0])
	}
	if !strings.Contains(report.Results[0].Error, "no JSON") {
		t.Errorf("Expected parse reason in error, got %q", report.Results[0].Error)
	}
	if len(store.annotations) != 1 || store.annotations[0].Sentiment != "Neutral" || store.annotations[0].TrendingScore != 50 {
		t.Errorf("Expected default record to be stored, got %+v", store.annotations)
	}
	if store.annotations[0].SummaryType != "Extractive Summarization" {
		t.Errorf("Expected canonical template key, got %s", store.annotations[0].SummaryType)
	}
}

func TestAnnotateClampsScores(t *testing.T) {
	store := &mockStore{}
	gen := &mockGenerator{responses: []string{`{"trending_score": 250, "market_impact_score": -3}`}}
	annotator := NewAnnotator(gen, store, "", 0)

	if _, err := annotator.Annotate(context.Background(), Request{Articles: testArticles[:1], SummaryType: "impact"}); err != nil {
		t.Fatalf("Annotate returned error: %v", err)
	}

	got := store.annotations[0]
	if got.TrendingScore != 100 || got.MarketImpactScore != 0 {
		t.Errorf("Expected clamped scores 100/0, got %d/%d", got.TrendingScore, got.MarketImpactScore)
	}
}

func TestAnnotateInsertFailure(t *testing.T) {
	store := &mockStore{err: errors.New("disk full")}
	gen := &mockGenerator{responses: []string{goodResponse, goodResponse}}
	annotator := NewAnnotator(gen, store, "", 0)

	report, err := annotator.Annotate(context.Background(), Request{Articles: testArticles, SummaryType: "abstractive"})
	if err != nil {
		t.Fatalf("Annotate returned error: %v", err)
	}

	if report.Successful != 0 || report.Failed != 2 {
		t.Errorf("Expected both items to fail, got %d/%d", report.Successful, report.Failed)
	}
	if report.Results[0].Error != "Failed to save summary" {
		t.Errorf("Unexpected error: %q", report.Results[0].Error)
	}
	if len(gen.prompts) != 2 {
		t.Errorf("Expected batch to continue after insert failure, got %d calls", len(gen.prompts))
	}
}

func TestAnnotateValidation(t *testing.T) {
	gen := &mockGenerator{}

	tests := []struct {
		name      string
		annotator *Annotator
		req       Request
		wantErr   error
	}{
		{"no articles", NewAnnotator(gen, &mockStore{}, "", 0), Request{SummaryType: "extractive"}, ErrNoArticles},
		{"unknown template", NewAnnotator(gen, &mockStore{}, "", 0), Request{Articles: testArticles, SummaryType: "poetry"}, ErrUnknownTemplate},
		{"missing title", NewAnnotator(gen, &mockStore{}, "", 0), Request{Articles: []Article{{ID: "x"}}, SummaryType: "extractive"}, ErrInvalidArticle},
		{"missing id", NewAnnotator(gen, &mockStore{}, "", 0), Request{Articles: []Article{{Title: "t"}}, SummaryType: "extractive"}, ErrInvalidArticle},
		{"not configured", NewAnnotator(nil, &mockStore{}, "", 0), Request{Articles: testArticles, SummaryType: "extractive"}, ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := tt.annotator.Annotate(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if report != nil {
				t.Error("Expected no report on validation failure")
			}
		})
	}

	if len(gen.prompts) != 0 {
		t.Errorf("Expected no model calls for invalid requests, got %d", len(gen.prompts))
	}
}

func TestAnnotateUsesConfiguredLanguage(t *testing.T) {
	gen := &mockGenerator{responses: []string{goodResponse}}
	annotator := NewAnnotator(gen, &mockStore{}, "English", 0)

	if _, err := annotator.Annotate(context.Background(), Request{Articles: testArticles[:1], SummaryType: "actionable"}); err != nil {
		t.Fatalf("Annotate returned error: %v", err)
	}
	if !strings.Contains(gen.prompts[0], "Respond in English language") {
		t.Error("Expected prompt to carry the configured language")
	}
	if !strings.Contains(gen.prompts[0], "Title: SEC approves spot ETH ETF\nSource: CoinDesk\nContent: Approval.") {
		t.Error("Expected prompt to carry the article")
	}
}
