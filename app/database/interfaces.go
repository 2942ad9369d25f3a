package database

import (
	"context"
)

type ArticleRepositoryInterface interface {
	InsertArticle(ctx context.Context, article NewArticle) (bool, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	GetArticle(ctx context.Context, id string) (*Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, int, error)
	ListTags(ctx context.Context) ([]string, error)
	GetArticleCount(ctx context.Context) (int, error)
}

type AnnotationRepositoryInterface interface {
	InsertAnnotation(ctx context.Context, annotation *Annotation) error
	ListAnnotations(ctx context.Context, filter AnnotationFilter) ([]Annotation, int, error)
}

type SummaryRepositoryInterface interface {
	InsertSummary(ctx context.Context, summary *Summary) error
	ListSummaries(ctx context.Context, page Page) ([]Summary, int, error)
}
