package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unikonkon/crypto-news-aggregator/app/annotation"
	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/ingest"
	"github.com/unikonkon/crypto-news-aggregator/app/insights"
	"github.com/unikonkon/crypto-news-aggregator/app/prompt"
	"github.com/unikonkon/crypto-news-aggregator/app/tasks"
)

// maxInsightRecords bounds how many annotations one insight request reads.
const maxInsightRecords = 1000

type Deps struct {
	Articles    database.ArticleRepositoryInterface
	Annotations database.AnnotationRepositoryInterface
	Summaries   database.SummaryRepositoryInterface
	Sources     SourceListerInterface
	Ingester    IngesterInterface
	Annotator   AnnotatorInterface
	Digester    DigesterInterface
	Scheduler   tasks.TaskSchedulerInterface // optional, enables async ingest
	Cache       HealthReporterInterface      // optional
	Version     string
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		articleRepo:    d.Articles,
		annotationRepo: d.Annotations,
		summaryRepo:    d.Summaries,
		sources:        d.Sources,
		ingester:       d.Ingester,
		annotator:      d.Annotator,
		digester:       d.Digester,
		scheduler:      d.Scheduler,
		cache:          d.Cache,
		version:        d.Version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"sources":   len(h.sources.All()),
	}

	if count, err := h.articleRepo.GetArticleCount(c.Request.Context()); err == nil {
		health["articles"] = count
	} else {
		slog.Error("Database error", "operation", "get_article_count", "error", err)
		health["status"] = "degraded"
	}

	if h.cache != nil {
		health["cache"] = h.cache.Health(c.Request.Context())
	}

	c.JSON(http.StatusOK, health)
}

// Ingest runs an ingestion pass for ?source= (empty or "all" means every
// enabled source). With ?async=true the run is queued on the scheduler.
func (h *Handler) Ingest(c *gin.Context) {
	source := c.Query("source")

	if async, _ := strconv.ParseBool(c.Query("async")); async && h.scheduler != nil {
		task := tasks.NewIngestTask(h.ingester, source)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing ingest task", "source", source, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Failed to enqueue ingest task",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"message": "Ingest task enqueued",
			"task":    gin.H{"id": task.ID, "type": task.Type, "source": task.Source},
		})
		return
	}

	// A client disconnect must not abort a started run.
	report, err := h.ingester.Run(context.WithoutCancel(c.Request.Context()), source)
	if errors.Is(err, ingest.ErrSourceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found", "source": source})
		return
	}
	if err != nil {
		slog.Error("Ingest failed", "source", source, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ingest failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) CreateAnnotations(c *gin.Context) {
	var req annotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	articles, ok := h.resolveArticles(c, req.Articles, req.ArticleIDs)
	if !ok {
		return
	}

	report, err := h.annotator.Annotate(context.WithoutCancel(c.Request.Context()), annotation.Request{
		Articles:    articles,
		SummaryType: req.SummaryType,
	})
	switch {
	case errors.Is(err, annotation.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	case errors.Is(err, annotation.ErrNoArticles),
		errors.Is(err, annotation.ErrUnknownTemplate),
		errors.Is(err, annotation.ErrInvalidArticle):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("Annotation failed", "summary_type", req.SummaryType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Annotation failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *Handler) ListAnnotations(c *gin.Context) {
	filter, ok := annotationFilter(c)
	if !ok {
		return
	}

	records, total, err := h.annotationRepo.ListAnnotations(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_annotations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"annotations": records,
		"pagination":  newPagination(filter.Page, total),
	})
}

func (h *Handler) ListArticles(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}

	filter := database.ArticleFilter{
		Source: c.Query("source"),
		Tag:    c.Query("tag"),
		From:   from,
		To:     to,
		SortBy: c.Query("sortBy"),
		Order:  c.Query("order"),
		Page:   pageParams(c),
	}

	articles, total, err := h.articleRepo.ListArticles(c.Request.Context(), filter)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles":   articles,
		"pagination": newPagination(filter.Page, total),
	})
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.articleRepo.ListTags(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_tags", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags, "total": len(tags)})
}

func (h *Handler) CreateSummary(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	articles, ok := h.resolveArticles(c, req.Articles, req.ArticleIDs)
	if !ok {
		return
	}

	summary, err := h.digester.Summarize(context.WithoutCancel(c.Request.Context()), articles)
	if errors.Is(err, annotation.ErrNoArticles) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "create_summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create summary"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "summary": summary})
}

func (h *Handler) ListSummaries(c *gin.Context) {
	page := pageParams(c)

	summaries, total, err := h.summaryRepo.ListSummaries(c.Request.Context(), page)
	if err != nil {
		slog.Error("Database error", "operation", "list_summaries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summaries":  summaries,
		"pagination": newPagination(page, total),
	})
}

// GetInsights aggregates the annotations matching the list filters,
// reading at most maxInsightRecords of the newest.
func (h *Handler) GetInsights(c *gin.Context) {
	filter, ok := annotationFilter(c)
	if !ok {
		return
	}

	var records []database.Annotation
	filter.Page = database.Page{Page: 1, Limit: database.MaxPageLimit}
	for len(records) < maxInsightRecords {
		batch, total, err := h.annotationRepo.ListAnnotations(c.Request.Context(), filter)
		if err != nil {
			slog.Error("Database error", "operation", "list_annotations", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		records = append(records, batch...)
		if len(batch) < filter.Page.Limit || len(records) >= total {
			break
		}
		filter.Page.Page++
	}

	c.JSON(http.StatusOK, insights.Compute(records))
}

func (h *Handler) ListSources(c *gin.Context) {
	all := h.sources.All()

	sources := make([]map[string]interface{}, 0, len(all))
	for _, s := range all {
		sources = append(sources, map[string]interface{}{
			"name":         s.Name,
			"url":          s.URL,
			"enabled":      s.Enabled,
			"rich_content": s.Strategy.RichContent,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "total": len(sources)})
}

func (h *Handler) ListTemplates(c *gin.Context) {
	templates := make([]gin.H, 0, len(prompt.All))
	for _, t := range prompt.All {
		templates = append(templates, gin.H{"key": t.Key(), "slug": t.Slug()})
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// resolveArticles merges inline articles with stored ones referenced by id.
// It writes the error response itself and reports false on failure.
func (h *Handler) resolveArticles(c *gin.Context, inline []annotation.Article, ids []string) ([]annotation.Article, bool) {
	articles := append([]annotation.Article{}, inline...)

	for _, id := range ids {
		stored, err := h.articleRepo.GetArticle(c.Request.Context(), id)
		if err != nil {
			slog.Error("Database error", "operation", "get_article", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return nil, false
		}
		if stored == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("article not found: %s", id)})
			return nil, false
		}
		articles = append(articles, fromStored(stored))
	}

	return articles, true
}

func fromStored(a *database.Article) annotation.Article {
	return annotation.Article{
		ID:           a.ID,
		Title:        a.Title,
		Content:      a.Content,
		Source:       a.Source,
		URL:          a.URL,
		Category:     a.Category,
		NameCategory: a.NameCategory,
		PubDate:      a.PubDate,
	}
}

func annotationFilter(c *gin.Context) (database.AnnotationFilter, bool) {
	from, to, ok := dateRange(c)
	if !ok {
		return database.AnnotationFilter{}, false
	}

	summaryType := c.Query("type")
	if summaryType != "" {
		t, err := prompt.ParseTemplate(summaryType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return database.AnnotationFilter{}, false
		}
		summaryType = t.Key()
	}

	return database.AnnotationFilter{
		Source:      c.Query("source"),
		Tag:         c.Query("tag"),
		SummaryType: summaryType,
		From:        from,
		To:          to,
		Page:        pageParams(c),
	}, true
}

// pageParams reads page and limit; unparsable values fall back to defaults.
func pageParams(c *gin.Context) database.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return database.Page{Page: page, Limit: limit}.Normalize()
}

func newPagination(page database.Page, total int) pagination {
	page = page.Normalize()
	return pagination{
		Page:  page.Page,
		Limit: page.Limit,
		Total: total,
		Pages: (total + page.Limit - 1) / page.Limit,
	}
}

// dateRange parses ?from= and ?to= as RFC 3339 timestamps or plain dates.
// A plain "to" date covers the whole day.
func dateRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	from, err := parseDate(c.Query("from"), false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from parameter", "details": err.Error()})
		return nil, nil, false
	}
	to, err := parseDate(c.Query("to"), true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to parameter", "details": err.Error()})
		return nil, nil, false
	}
	return from, to, true
}

func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("expected RFC 3339 timestamp or YYYY-MM-DD: %q", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
