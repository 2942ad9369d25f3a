package api

import (
	"context"

	"github.com/unikonkon/crypto-news-aggregator/app/annotation"
	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/feed"
	"github.com/unikonkon/crypto-news-aggregator/app/ingest"
	"github.com/unikonkon/crypto-news-aggregator/app/tasks"
)

type IngesterInterface interface {
	Run(ctx context.Context, sourceName string) (*ingest.Report, error)
}

type AnnotatorInterface interface {
	Annotate(ctx context.Context, req annotation.Request) (*annotation.Report, error)
}

type DigesterInterface interface {
	Summarize(ctx context.Context, articles []annotation.Article) (*database.Summary, error)
}

type SourceListerInterface interface {
	All() []feed.Source
}

// HealthReporterInterface is implemented by optional backing services such
// as the dedup cache.
type HealthReporterInterface interface {
	Health(ctx context.Context) map[string]interface{}
}

var (
	_ IngesterInterface     = (*ingest.Orchestrator)(nil)
	_ AnnotatorInterface    = (*annotation.Annotator)(nil)
	_ DigesterInterface     = (*annotation.Digester)(nil)
	_ SourceListerInterface = (*feed.Registry)(nil)
)

type Handler struct {
	articleRepo    database.ArticleRepositoryInterface
	annotationRepo database.AnnotationRepositoryInterface
	summaryRepo    database.SummaryRepositoryInterface
	sources        SourceListerInterface
	ingester       IngesterInterface
	annotator      AnnotatorInterface
	digester       DigesterInterface
	scheduler      tasks.TaskSchedulerInterface
	cache          HealthReporterInterface
	version        string
}

// annotateRequest is the body of POST /api/annotations. Articles may be sent
// inline or referenced by stored id.
type annotateRequest struct {
	Articles    []annotation.Article `json:"articles"`
	ArticleIDs  []string             `json:"articleIds"`
	SummaryType string               `json:"summaryType"`
}

type summarizeRequest struct {
	Articles   []annotation.Article `json:"articles"`
	ArticleIDs []string             `json:"articleIds"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}
