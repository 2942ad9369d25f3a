package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var annotationColumns = []string{
	"id", "article_id", "original_title", "original_content", "original_source",
	"original_url", "original_category", "original_name_category", "original_pub_date",
	"summary_type", "ai_summary", "ai_sentiment", "trending_score", "key_points",
	"related_cryptos", "market_impact_score", "processing_time_ms", "created_at", "updated_at",
}

// AnnotationRepository stores model analyses. Records are append-only.
type AnnotationRepository struct {
	db  *DB
	now func() time.Time
}

func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{db: db, now: time.Now}
}

var _ AnnotationRepositoryInterface = (*AnnotationRepository)(nil)

// InsertAnnotation assigns ID and timestamps to a and stores it.
func (r *AnnotationRepository) InsertAnnotation(ctx context.Context, a *Annotation) error {
	keyPoints, err := marshalList(a.KeyPoints)
	if err != nil {
		return fmt.Errorf("failed to encode key points: %w", err)
	}
	related, err := marshalList(a.RelatedCryptos)
	if err != nil {
		return fmt.Errorf("failed to encode related cryptos: %w", err)
	}

	id := uuid.NewString()
	now := r.now().UTC().Truncate(time.Millisecond)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO annotations (
			id, article_id, original_title, original_content, original_source,
			original_url, original_category, original_name_category, original_pub_date,
			summary_type, ai_summary, ai_sentiment, trending_score, key_points,
			related_cryptos, market_impact_score, processing_time_ms, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, a.ArticleID, a.OriginalTitle, a.OriginalContent, a.OriginalSource,
		a.OriginalURL, nullString(a.OriginalCategory), nullString(a.OriginalNameCategory), nullTime(a.OriginalPubDate),
		a.SummaryType, a.Summary, a.Sentiment, a.TrendingScore, keyPoints,
		related, a.MarketImpactScore, a.ProcessingTimeMs, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to insert annotation: %w", err)
	}

	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// ListAnnotations returns one page of annotations, newest first.
func (r *AnnotationRepository) ListAnnotations(ctx context.Context, f AnnotationFilter) ([]Annotation, int, error) {
	page := f.Page.Normalize()

	total, err := count(ctx, r.db, applyAnnotationFilter(sq.Select("COUNT(*)").From("annotations"), f))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count annotations: %w", err)
	}

	query, args, err := applyAnnotationFilter(sq.Select(annotationColumns...).From("annotations"), f).
		OrderBy("created_at DESC", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build annotation query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	annotations := []Annotation{}
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan annotation row: %w", err)
		}
		annotations = append(annotations, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating annotation rows: %w", err)
	}

	return annotations, total, nil
}

func applyAnnotationFilter(b sq.SelectBuilder, f AnnotationFilter) sq.SelectBuilder {
	if f.Source != "" {
		b = b.Where(sq.Eq{"original_source": f.Source})
	}
	if f.SummaryType != "" {
		b = b.Where(sq.Eq{"summary_type": f.SummaryType})
	}
	b = applyTagFilter(b, "original_name_category", f.Tag)
	if f.From != nil {
		b = b.Where(sq.GtOrEq{"created_at": formatTime(*f.From)})
	}
	if f.To != nil {
		b = b.Where(sq.LtOrEq{"created_at": formatTime(*f.To)})
	}
	return b
}

func scanAnnotation(row rowScanner) (*Annotation, error) {
	var (
		a                      Annotation
		category, nameCategory sql.NullString
		pubDate                sql.NullString
		keyPoints, related     string
		createdAt, updatedAt   string
	)

	err := row.Scan(&a.ID, &a.ArticleID, &a.OriginalTitle, &a.OriginalContent, &a.OriginalSource,
		&a.OriginalURL, &category, &nameCategory, &pubDate,
		&a.SummaryType, &a.Summary, &a.Sentiment, &a.TrendingScore, &keyPoints,
		&related, &a.MarketImpactScore, &a.ProcessingTimeMs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.OriginalCategory = category.String
	a.OriginalNameCategory = nameCategory.String
	if a.OriginalPubDate, err = parseNullTime(pubDate); err != nil {
		return nil, fmt.Errorf("invalid original_pub_date: %w", err)
	}
	if err := json.Unmarshal([]byte(keyPoints), &a.KeyPoints); err != nil {
		return nil, fmt.Errorf("invalid key_points: %w", err)
	}
	if err := json.Unmarshal([]byte(related), &a.RelatedCryptos); err != nil {
		return nil, fmt.Errorf("invalid related_cryptos: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &a, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
