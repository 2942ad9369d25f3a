// Package annotation runs articles through a prompt template and the model,
// and persists one analysis record per article.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/llm"
	"github.com/unikonkon/crypto-news-aggregator/app/pipeline"
	"github.com/unikonkon/crypto-news-aggregator/app/prompt"
)

var (
	ErrNoArticles      = errors.New("no articles provided")
	ErrUnknownTemplate = prompt.ErrUnknownTemplate
	ErrInvalidArticle  = errors.New("invalid article")
	ErrNotConfigured   = errors.New("AI service not configured")
)

// Article is the caller-selected article with the fields snapshotted into
// the annotation record.
type Article struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Source       string     `json:"source"`
	URL          string     `json:"url"`
	Category     string     `json:"category"`
	NameCategory string     `json:"name_category"`
	PubDate      *time.Time `json:"pub_date"`
}

type Request struct {
	Articles    []Article
	SummaryType string
}

type ItemResult struct {
	ArticleID string               `json:"article_id"`
	Success   bool                 `json:"success"`
	Summary   *database.Annotation `json:"summary,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type Report struct {
	Success     bool         `json:"success"`
	Processed   int          `json:"processed"`
	Successful  int          `json:"successful"`
	Failed      int          `json:"failed"`
	TotalTime   float64      `json:"total_time"` // seconds
	SummaryType string       `json:"summary_type"`
	Results     []ItemResult `json:"results"`
	Message     string       `json:"message"`
}

type Store interface {
	InsertAnnotation(ctx context.Context, annotation *database.Annotation) error
}

type Annotator struct {
	generator llm.Generator
	store     Store
	language  string
	delay     time.Duration
	now       func() time.Time
}

// NewAnnotator builds an annotator. A nil generator makes every request fail
// with ErrNotConfigured.
func NewAnnotator(generator llm.Generator, store Store, language string, delay time.Duration) *Annotator {
	return &Annotator{
		generator: generator,
		store:     store,
		language:  language,
		delay:     delay,
		now:       time.Now,
	}
}

func (a *Annotator) Configured() bool {
	return a.generator != nil
}

// Annotate validates the whole request before doing any work, then processes
// the articles one by one. A failed article never stops the batch.
func (a *Annotator) Annotate(ctx context.Context, req Request) (*Report, error) {
	if len(req.Articles) == 0 {
		return nil, ErrNoArticles
	}

	template, err := prompt.ParseTemplate(req.SummaryType)
	if err != nil {
		return nil, err
	}

	for i, article := range req.Articles {
		if strings.TrimSpace(article.ID) == "" || strings.TrimSpace(article.Title) == "" {
			return nil, fmt.Errorf("%w: article %d is missing id or title", ErrInvalidArticle, i)
		}
	}

	if !a.Configured() {
		return nil, ErrNotConfigured
	}

	start := a.now()
	slog.Info("Annotation started", "articles", len(req.Articles), "summary_type", template.Key())

	results := pipeline.Run(ctx, req.Articles, func(ctx context.Context, _ int, article Article) ItemResult {
		return a.annotateOne(ctx, template, article)
	}, pipeline.Options{Delay: a.delay})

	report := &Report{
		Success:     true,
		Processed:   len(req.Articles),
		SummaryType: template.Key(),
		Results:     results,
	}
	for _, r := range results {
		if r.Success {
			report.Successful++
		}
	}
	report.Failed = report.Processed - report.Successful
	report.TotalTime = math.Round(a.now().Sub(start).Seconds()*1000) / 1000
	report.Message = fmt.Sprintf("Processed %d/%d articles successfully", report.Successful, report.Processed)

	slog.Info("Annotation completed", "summary_type", template.Key(),
		"successful", report.Successful, "failed", report.Failed, "duration", a.now().Sub(start))

	return report, nil
}

func (a *Annotator) annotateOne(ctx context.Context, template prompt.Template, article Article) ItemResult {
	result := ItemResult{ArticleID: article.ID}

	text, err := prompt.Render(template, prompt.ArticleContent{
		Title:   article.Title,
		Source:  article.Source,
		Content: article.Content,
	}, a.language)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	started := a.now()
	analysis, failure := a.analyze(ctx, article.ID, text)
	elapsed := a.now().Sub(started)

	record := &database.Annotation{
		ArticleID:            article.ID,
		OriginalTitle:        article.Title,
		OriginalContent:      article.Content,
		OriginalSource:       article.Source,
		OriginalURL:          article.URL,
		OriginalCategory:     article.Category,
		OriginalNameCategory: article.NameCategory,
		OriginalPubDate:      article.PubDate,
		SummaryType:          template.Key(),
		Summary:              analysis.Summary,
		Sentiment:            analysis.Sentiment,
		TrendingScore:        Clamp(analysis.TrendingScore),
		KeyPoints:            analysis.KeyPoints,
		RelatedCryptos:       analysis.RelatedCryptos,
		MarketImpactScore:    Clamp(analysis.MarketImpactScore),
		ProcessingTimeMs:     elapsed.Milliseconds(),
	}

	if err := a.store.InsertAnnotation(ctx, record); err != nil {
		slog.Error("Database error", "operation", "insert_annotation", "article_id", article.ID, "error", err)
		result.Error = "Failed to save summary"
		return result
	}

	if failure != nil {
		result.Error = failure.Error()
		return result
	}

	result.Success = true
	result.Summary = record
	return result
}

// analyze always returns a usable analysis; the error reports why defaults
// were used.
func (a *Annotator) analyze(ctx context.Context, articleID, text string) (Analysis, error) {
	response, err := a.generator.Generate(ctx, text)
	if err != nil {
		slog.Error("Model call failed", "article_id", articleID, "error", err)
		return DefaultAnalysis(), fmt.Errorf("model call failed: %w", err)
	}

	analysis, err := Parse(response)
	if err != nil {
		slog.Error("Failed to parse model response", "article_id", articleID, "error", err, "raw", response)
		return analysis, err
	}

	return analysis, nil
}
